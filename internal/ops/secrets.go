package ops

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	smtypes "github.com/aws/aws-sdk-go-v2/service/secretsmanager/types"

	"datapipeline/internal/pipeline"
)

const SecretName = "data-pipeline-config"

type SecretsManagerAPI interface {
	CreateSecret(ctx context.Context, params *secretsmanager.CreateSecretInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.CreateSecretOutput, error)
	UpdateSecret(ctx context.Context, params *secretsmanager.UpdateSecretInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.UpdateSecretOutput, error)
	GetSecretValue(ctx context.Context, params *secretsmanager.GetSecretValueInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.GetSecretValueOutput, error)
}

// BuildConfigDocument assembles the full configuration document seeded
// into Secrets Manager. It shares the pipeline's config types, so what is
// seeded is exactly what the loader parses back.
func BuildConfigDocument(now time.Time) *pipeline.Config {
	return &pipeline.Config{
		Version:     "1.0.0",
		CreatedAt:   now.Format(time.RFC3339),
		Description: "Configuration for data pipeline ETL process",
		DataSources: map[string]pipeline.SourceConfig{
			"marketing": {
				Name:        "FakeStore API",
				Description: "Fake e-commerce product data for marketing analysis",
				URL:         "https://fakestoreapi.com/products",
				Endpoints: map[string]string{
					"all_products":      "/products",
					"single_product":    "/products/{id}",
					"categories":        "/products/categories",
					"category_products": "/products/category/{category}",
				},
				Headers:    map[string]string{"Accept": "application/json"},
				Timeout:    30,
				MaxRecords: 50,
			},
			"sales": {
				Name:        "JSONPlaceholder API",
				Description: "Fake JSON data simulating sales transactions",
				URL:         "https://jsonplaceholder.typicode.com",
				Endpoints: map[string]string{
					"posts":    "/posts",
					"comments": "/comments",
					"users":    "/users",
				},
				Headers:    map[string]string{"Accept": "application/json"},
				Timeout:    30,
				MaxRecords: 100,
			},
			"crm": {
				Name:        "RandomUser API",
				Description: "Random user generator for CRM customer data",
				URL:         "https://randomuser.me/api/",
				Parameters: map[string]any{
					"results": 50,
					"nat":     "us,gb,ca,au",
					"format":  "json",
					"seed":    "datapipeline",
				},
				Headers:    map[string]string{"Accept": "application/json"},
				Timeout:    30,
				MaxRecords: 50,
			},
		},
		Processing: &pipeline.ProcessingConfig{
			BatchSize:          100,
			ParallelProcessing: false,
			ErrorHandling:      "continue_on_error",
			Retry: &pipeline.RetryConfig{
				MaxRetries:        3,
				RetryDelay:        5,
				BackoffMultiplier: 2,
			},
			DataQualityChecks: map[string]bool{
				"remove_duplicates": true,
				"validate_schema":   true,
				"check_null_values": true,
			},
		},
		Output: &pipeline.OutputConfig{
			Format:      "json",
			PartitionBy: []string{"source", "date"},
			FileNaming:  "{source}_{timestamp}.json",
		},
		Monitoring: &pipeline.MonitoringConfig{
			LogLevel:       "INFO",
			MetricsEnabled: true,
			AlertOnFailure: false,
		},
		Tags: map[string]string{
			"environment": "development",
			"project":     "data-pipeline",
			"owner":       "data-team",
			"cost-center": "learning",
		},
	}
}

// SeedSecret creates the configuration secret, or updates it when it
// already exists. Returns the secret ARN.
func SeedSecret(ctx context.Context, client SecretsManagerAPI, now time.Time) (string, error) {
	doc, err := json.MarshalIndent(BuildConfigDocument(now), "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal config document: %w", err)
	}

	out, err := client.CreateSecret(ctx, &secretsmanager.CreateSecretInput{
		Name:         aws.String(SecretName),
		Description:  aws.String("Configuration for data pipeline - API endpoints and settings"),
		SecretString: aws.String(string(doc)),
		Tags: []smtypes.Tag{
			{Key: aws.String("Project"), Value: aws.String("DataPipeline")},
			{Key: aws.String("Environment"), Value: aws.String("Development")},
			{Key: aws.String("ManagedBy"), Value: aws.String("ops")},
		},
	})
	if err == nil {
		log.Printf("secret created: %s", aws.ToString(out.ARN))
		return aws.ToString(out.ARN), nil
	}

	var exists *smtypes.ResourceExistsException
	if !errors.As(err, &exists) {
		return "", fmt.Errorf("create secret %s: %w", SecretName, err)
	}

	log.Printf("secret %s already exists, updating", SecretName)
	upd, err := client.UpdateSecret(ctx, &secretsmanager.UpdateSecretInput{
		SecretId:     aws.String(SecretName),
		Description:  aws.String("Configuration for data pipeline - API endpoints and settings (Updated)"),
		SecretString: aws.String(string(doc)),
	})
	if err != nil {
		return "", fmt.Errorf("update secret %s: %w", SecretName, err)
	}

	log.Printf("secret updated: %s", aws.ToString(upd.ARN))
	return aws.ToString(upd.ARN), nil
}

// VerifySecret reads the secret back and parses it with the runtime's own
// config types.
func VerifySecret(ctx context.Context, client SecretsManagerAPI) (*pipeline.Config, error) {
	out, err := client.GetSecretValue(ctx, &secretsmanager.GetSecretValueInput{
		SecretId: aws.String(SecretName),
	})
	if err != nil {
		return nil, fmt.Errorf("get secret %s: %w", SecretName, err)
	}

	var cfg pipeline.Config
	if err := json.Unmarshal([]byte(aws.ToString(out.SecretString)), &cfg); err != nil {
		return nil, fmt.Errorf("parse secret %s: %w", SecretName, err)
	}
	return &cfg, nil
}
