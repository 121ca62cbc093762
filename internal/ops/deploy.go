package ops

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"

	"github.com/aws/aws-sdk-go-v2/aws"
	awslambda "github.com/aws/aws-sdk-go-v2/service/lambda"
	lambdatypes "github.com/aws/aws-sdk-go-v2/service/lambda/types"
)

const (
	FunctionName = "data-pipeline-etl"

	functionRuntime = lambdatypes.RuntimeProvidedal2023
	functionHandler = "bootstrap"
	functionTimeout = 60
	functionMemory  = 256
)

type LambdaAPI interface {
	CreateFunction(ctx context.Context, params *awslambda.CreateFunctionInput, optFns ...func(*awslambda.Options)) (*awslambda.CreateFunctionOutput, error)
	UpdateFunctionCode(ctx context.Context, params *awslambda.UpdateFunctionCodeInput, optFns ...func(*awslambda.Options)) (*awslambda.UpdateFunctionCodeOutput, error)
	UpdateFunctionConfiguration(ctx context.Context, params *awslambda.UpdateFunctionConfigurationInput, optFns ...func(*awslambda.Options)) (*awslambda.UpdateFunctionConfigurationOutput, error)
}

type DeployParams struct {
	RoleARN    string
	BucketName string
	SecretName string
	ZipPath    string
}

// DeployFunction creates the ETL function from the zip at ZipPath, or
// updates code and configuration when it already exists. Returns the
// function ARN.
func DeployFunction(ctx context.Context, client LambdaAPI, p DeployParams) (string, error) {
	zipData, err := os.ReadFile(p.ZipPath)
	if err != nil {
		return "", fmt.Errorf("read deployment package %s: %w", p.ZipPath, err)
	}

	secretName := p.SecretName
	if secretName == "" {
		secretName = SecretName
	}

	// AWS_REGION is set by the Lambda runtime itself.
	envVars := map[string]string{
		"BUCKET_NAME": p.BucketName,
		"SECRET_NAME": secretName,
	}

	out, err := client.CreateFunction(ctx, &awslambda.CreateFunctionInput{
		FunctionName: aws.String(FunctionName),
		Runtime:      functionRuntime,
		Role:         aws.String(p.RoleARN),
		Handler:      aws.String(functionHandler),
		Code:         &lambdatypes.FunctionCode{ZipFile: zipData},
		Description:  aws.String("Data pipeline ETL function"),
		Timeout:      aws.Int32(functionTimeout),
		MemorySize:   aws.Int32(functionMemory),
		Environment:  &lambdatypes.Environment{Variables: envVars},
		Tags: map[string]string{
			"Project":   "DataPipeline",
			"ManagedBy": "ops",
		},
	})
	if err == nil {
		log.Printf("function created: %s", aws.ToString(out.FunctionArn))
		return aws.ToString(out.FunctionArn), nil
	}

	var conflict *lambdatypes.ResourceConflictException
	if !errors.As(err, &conflict) {
		return "", fmt.Errorf("create function %s: %w", FunctionName, err)
	}

	log.Printf("function %s already exists, updating", FunctionName)

	codeOut, err := client.UpdateFunctionCode(ctx, &awslambda.UpdateFunctionCodeInput{
		FunctionName: aws.String(FunctionName),
		ZipFile:      zipData,
	})
	if err != nil {
		return "", fmt.Errorf("update function code: %w", err)
	}
	log.Printf("code updated: version %s", aws.ToString(codeOut.Version))

	cfgOut, err := client.UpdateFunctionConfiguration(ctx, &awslambda.UpdateFunctionConfigurationInput{
		FunctionName: aws.String(FunctionName),
		Runtime:      functionRuntime,
		Handler:      aws.String(functionHandler),
		Description:  aws.String("Data pipeline ETL function"),
		Timeout:      aws.Int32(functionTimeout),
		MemorySize:   aws.Int32(functionMemory),
		Environment:  &lambdatypes.Environment{Variables: envVars},
	})
	if err != nil {
		return "", fmt.Errorf("update function configuration: %w", err)
	}

	log.Printf("function updated: %s", aws.ToString(cfgOut.FunctionArn))
	return aws.ToString(cfgOut.FunctionArn), nil
}
