package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/iam"
	"github.com/joho/godotenv"

	"datapipeline/internal/ops"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println(".env file not loaded:", err)
	}

	var bucket string
	flag.StringVar(&bucket, "bucket", "", "S3 bucket name the role is scoped to (defaults to BUCKET_NAME)")
	flag.Parse()

	if bucket == "" {
		bucket = strings.TrimSpace(os.Getenv("BUCKET_NAME"))
	}
	if bucket == "" {
		fmt.Fprintln(os.Stderr, "usage: create-role -bucket <bucket-name>")
		os.Exit(2)
	}

	ctx := context.Background()
	cfg, err := config.LoadDefaultConfig(ctx)
	if err != nil {
		log.Fatalf("load aws config: %v", err)
	}

	roleARN, err := ops.EnsureRole(ctx, iam.NewFromConfig(cfg), bucket)
	if err != nil {
		log.Fatalf("role setup failed: %v", err)
	}

	fmt.Printf("IAM role ready\n")
	fmt.Printf("  Role name: %s\n", ops.RoleName)
	fmt.Printf("  Role ARN:  %s\n", roleARN)
}
