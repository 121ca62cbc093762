package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/iam"
	awslambda "github.com/aws/aws-sdk-go-v2/service/lambda"
	"github.com/joho/godotenv"

	"datapipeline/internal/ops"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println(".env file not loaded:", err)
	}

	var bucket, zipPath string
	flag.StringVar(&bucket, "bucket", "", "S3 bucket name for pipeline output (defaults to BUCKET_NAME)")
	flag.StringVar(&zipPath, "zip", "lambda_function.zip", "path to the deployment package")
	flag.Parse()

	if bucket == "" {
		bucket = strings.TrimSpace(os.Getenv("BUCKET_NAME"))
	}
	if bucket == "" {
		fmt.Fprintln(os.Stderr, "usage: deploy -bucket <bucket-name> [-zip lambda_function.zip]")
		os.Exit(2)
	}

	ctx := context.Background()
	cfg, err := config.LoadDefaultConfig(ctx)
	if err != nil {
		log.Fatalf("load aws config: %v", err)
	}

	// The role must exist before deploying; create-role sets it up.
	iamClient := iam.NewFromConfig(cfg)
	role, err := iamClient.GetRole(ctx, &iam.GetRoleInput{RoleName: aws.String(ops.RoleName)})
	if err != nil {
		log.Fatalf("role %s not found, run create-role first: %v", ops.RoleName, err)
	}

	functionARN, err := ops.DeployFunction(ctx, awslambda.NewFromConfig(cfg), ops.DeployParams{
		RoleARN:    aws.ToString(role.Role.Arn),
		BucketName: bucket,
		SecretName: ops.SecretName,
		ZipPath:    zipPath,
	})
	if err != nil {
		log.Fatalf("deployment failed: %v", err)
	}

	fmt.Printf("Deployment complete\n")
	fmt.Printf("  Function: %s\n", ops.FunctionName)
	fmt.Printf("  ARN:      %s\n", functionARN)
	fmt.Printf("\nCheck logs with: aws logs tail /aws/lambda/%s --follow\n", ops.FunctionName)
	fmt.Printf("Invoke with:     aws lambda invoke --function-name %s response.json\n", ops.FunctionName)
}
