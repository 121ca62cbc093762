package pipeline

import (
	"context"
	"errors"
	"os"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
)

type fakeSecrets struct {
	secret string
	err    error
	calls  int
}

func (f *fakeSecrets) GetSecretValue(ctx context.Context, params *secretsmanager.GetSecretValueInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.GetSecretValueOutput, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return &secretsmanager.GetSecretValueOutput{SecretString: aws.String(f.secret)}, nil
}

func TestConfigLoaderSuccess(t *testing.T) {
	secret := `{
		"version": "1.0.0",
		"data_sources": {
			"marketing": {"name": "FakeStore API", "url": "https://fakestoreapi.com/products", "max_records": 50}
		},
		"processing_config": {"parallel_processing": false, "retry_config": {"max_retries": 3}},
		"monitoring": {"alert_on_failure": true}
	}`
	loader := NewConfigLoader(&fakeSecrets{secret: secret}, "data-pipeline-config")

	cfg := loader.Load(context.Background())
	if len(cfg.DataSources) != 1 {
		t.Fatalf("expected 1 source, got %d", len(cfg.DataSources))
	}
	if cfg.DataSources["marketing"].Limit() != 50 {
		t.Errorf("expected limit 50, got %d", cfg.DataSources["marketing"].Limit())
	}
	if cfg.Processing == nil || cfg.Processing.Retry.MaxRetries != 3 {
		t.Error("processing block should survive parsing")
	}
	if cfg.Monitoring == nil || !cfg.Monitoring.AlertOnFailure {
		t.Error("monitoring block should survive parsing")
	}
}

func TestConfigLoaderDegradesToDefaultsOnError(t *testing.T) {
	loader := NewConfigLoader(&fakeSecrets{err: errors.New("access denied")}, "data-pipeline-config")

	cfg := loader.Load(context.Background())
	assertDefaultConfig(t, cfg)
}

func TestConfigLoaderDegradesToDefaultsOnBadJSON(t *testing.T) {
	loader := NewConfigLoader(&fakeSecrets{secret: "not json"}, "data-pipeline-config")
	assertDefaultConfig(t, loader.Load(context.Background()))
}

func TestConfigLoaderDegradesToDefaultsOnEmptySources(t *testing.T) {
	loader := NewConfigLoader(&fakeSecrets{secret: `{"data_sources": {}}`}, "data-pipeline-config")
	assertDefaultConfig(t, loader.Load(context.Background()))
}

func assertDefaultConfig(t *testing.T, cfg *Config) {
	t.Helper()
	if len(cfg.DataSources) != 3 {
		t.Fatalf("expected 3 default sources, got %d", len(cfg.DataSources))
	}
	for _, name := range []string{"marketing", "sales", "crm"} {
		src, ok := cfg.DataSources[name]
		if !ok {
			t.Fatalf("default config missing source %s", name)
		}
		if src.URL == "" {
			t.Errorf("default source %s has no url", name)
		}
		if src.Limit() != 10 {
			t.Errorf("default source %s limit = %d, want 10", name, src.Limit())
		}
	}
}

func TestSourceNamesStableOrder(t *testing.T) {
	cfg := DefaultConfig()
	names := cfg.SourceNames()
	want := []string{"crm", "marketing", "sales"}
	if len(names) != len(want) {
		t.Fatalf("expected %v, got %v", want, names)
	}
	for i := range want {
		if names[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, names)
		}
	}
}

func TestSourceConfigLimitFallbacks(t *testing.T) {
	if (SourceConfig{}).Limit() != 10 {
		t.Error("empty config should default to 10")
	}
	if (SourceConfig{DefaultLimit: 25}).Limit() != 25 {
		t.Error("default_limit should win")
	}
	if (SourceConfig{MaxRecords: 50}).Limit() != 50 {
		t.Error("max_records should be used when default_limit is unset")
	}
}

func TestLoadEnvironmentDefaults(t *testing.T) {
	for _, key := range []string{"BUCKET_NAME", "SECRET_NAME", "ALERTS_TOPIC_ARN"} {
		os.Unsetenv(key)
	}
	os.Setenv("BUCKET_NAME", " my-bucket ")
	defer os.Unsetenv("BUCKET_NAME")

	env, err := LoadEnvironment()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if env.BucketName != "my-bucket" {
		t.Errorf("expected trimmed bucket name, got %q", env.BucketName)
	}
	if env.SecretName != "data-pipeline-config" {
		t.Errorf("expected default secret name, got %q", env.SecretName)
	}
}
