package main

import (
	"context"
	"fmt"
	"log"

	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/eventbridge"
	awslambda "github.com/aws/aws-sdk-go-v2/service/lambda"
	"github.com/aws/aws-sdk-go-v2/service/sts"
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

	err = ops.EnsureSchedule(ctx,
		eventbridge.NewFromConfig(cfg),
		awslambda.NewFromConfig(cfg),
		sts.NewFromConfig(cfg),
		cfg.Region,
	)
	if err != nil {
		log.Fatalf("schedule setup failed: %v", err)
	}

	fmt.Printf("Schedule ready\n")
	fmt.Printf("  Rule:   %s\n", ops.RuleName)
	fmt.Printf("  Target: %s (daily at 2 AM UTC)\n", ops.FunctionName)
}
