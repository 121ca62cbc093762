package ops

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	smtypes "github.com/aws/aws-sdk-go-v2/service/secretsmanager/types"

	"datapipeline/internal/pipeline"
)

type fakeSecretsManager struct {
	exists  bool
	created *secretsmanager.CreateSecretInput
	updated *secretsmanager.UpdateSecretInput
	stored  string
}

func (f *fakeSecretsManager) CreateSecret(ctx context.Context, params *secretsmanager.CreateSecretInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.CreateSecretOutput, error) {
	if f.exists {
		return nil, &smtypes.ResourceExistsException{Message: aws.String("already exists")}
	}
	f.created = params
	f.stored = aws.ToString(params.SecretString)
	return &secretsmanager.CreateSecretOutput{ARN: aws.String("arn:aws:secretsmanager:us-east-1:123456789012:secret:data-pipeline-config-abc")}, nil
}

func (f *fakeSecretsManager) UpdateSecret(ctx context.Context, params *secretsmanager.UpdateSecretInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.UpdateSecretOutput, error) {
	f.updated = params
	f.stored = aws.ToString(params.SecretString)
	return &secretsmanager.UpdateSecretOutput{ARN: aws.String("arn:aws:secretsmanager:us-east-1:123456789012:secret:data-pipeline-config-abc")}, nil
}

func (f *fakeSecretsManager) GetSecretValue(ctx context.Context, params *secretsmanager.GetSecretValueInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.GetSecretValueOutput, error) {
	return &secretsmanager.GetSecretValueOutput{SecretString: aws.String(f.stored)}, nil
}

func TestSeedSecretCreates(t *testing.T) {
	fake := &fakeSecretsManager{}

	arn, err := SeedSecret(context.Background(), fake, time.Now())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if arn == "" {
		t.Error("expected secret arn")
	}
	if fake.created == nil {
		t.Fatal("expected CreateSecret call")
	}
	if aws.ToString(fake.created.Name) != SecretName {
		t.Errorf("expected secret name %s, got %s", SecretName, aws.ToString(fake.created.Name))
	}
	if fake.updated != nil {
		t.Error("UpdateSecret should not be called on first run")
	}
}

func TestSeedSecretUpdatesWhenExists(t *testing.T) {
	fake := &fakeSecretsManager{exists: true}

	if _, err := SeedSecret(context.Background(), fake, time.Now()); err != nil {
		t.Fatalf("re-run should not fail: %v", err)
	}
	if fake.updated == nil {
		t.Fatal("expected UpdateSecret call")
	}
}

func TestSeededDocumentParsesWithPipelineTypes(t *testing.T) {
	fake := &fakeSecretsManager{}
	if _, err := SeedSecret(context.Background(), fake, time.Now()); err != nil {
		t.Fatalf("seed: %v", err)
	}

	cfg, err := VerifySecret(context.Background(), fake)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}

	if len(cfg.DataSources) != 3 {
		t.Fatalf("expected 3 sources, got %d", len(cfg.DataSources))
	}
	if cfg.DataSources["marketing"].Limit() != 50 {
		t.Errorf("marketing limit = %d, want 50", cfg.DataSources["marketing"].Limit())
	}
	if cfg.DataSources["sales"].Limit() != 100 {
		t.Errorf("sales limit = %d, want 100", cfg.DataSources["sales"].Limit())
	}
	if cfg.Processing == nil || cfg.Processing.Retry == nil || cfg.Processing.Retry.MaxRetries != 3 {
		t.Error("processing_config should round-trip intact")
	}
	if cfg.Processing.ParallelProcessing {
		t.Error("parallel_processing should seed as false")
	}
	if cfg.Monitoring == nil || cfg.Monitoring.AlertOnFailure {
		t.Error("alert_on_failure should seed as false")
	}
	if cfg.Output == nil || cfg.Output.Format != "json" {
		t.Error("output_config should seed format=json")
	}
}

func TestBuildConfigDocumentIsValidJSON(t *testing.T) {
	doc := BuildConfigDocument(time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC))

	b, err := json.Marshal(doc)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	var back pipeline.Config
	if err := json.Unmarshal(b, &back); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if back.Version != "1.0.0" {
		t.Errorf("expected version 1.0.0, got %q", back.Version)
	}
	if back.CreatedAt != "2024-03-05T00:00:00Z" {
		t.Errorf("unexpected created_at %q", back.CreatedAt)
	}
}
