package main

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	"github.com/joho/godotenv"

	"datapipeline/internal/ops"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println(".env file not loaded:", err)
	}

	ctx := context.Background()
	cfg, err := config.LoadDefaultConfig(ctx)
	if err != nil {
		log.Fatalf("load aws config: %v", err)
	}
	client := secretsmanager.NewFromConfig(cfg)

	arn, err := ops.SeedSecret(ctx, client, time.Now())
	if err != nil {
		log.Fatalf("secret setup failed: %v", err)
	}

	// Read it back the same way the Lambda will.
	stored, err := ops.VerifySecret(ctx, client)
	if err != nil {
		log.Fatalf("secret verification failed: %v", err)
	}

	fmt.Printf("Secret ready\n")
	fmt.Printf("  Name: %s\n", ops.SecretName)
	fmt.Printf("  ARN:  %s\n", arn)
	fmt.Printf("  Data sources: %v\n", stored.SourceNames())
}
