package main

import (
	"context"
	"log"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/aws/aws-sdk-go-v2/config"

	"datapipeline/internal/pipeline"
)

func main() {
	ctx := context.Background()

	env, err := pipeline.LoadEnvironment()
	if err != nil {
		log.Fatalf("load environment: %v", err)
	}

	cfg, err := config.LoadDefaultConfig(ctx)
	if err != nil {
		log.Fatalf("load aws config: %v", err)
	}

	h := pipeline.NewHandler(cfg, env)
	lambda.Start(h.Handle)
}
