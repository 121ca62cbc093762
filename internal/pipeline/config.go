package pipeline

import (
	"context"
	"encoding/json"
	"log"
	"strings"

	goenv "github.com/Netflix/go-env"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
)

// Environment holds the runtime configuration consumed by the handler.
type Environment struct {
	BucketName     string `env:"BUCKET_NAME"`
	SecretName     string `env:"SECRET_NAME,default=data-pipeline-config"`
	Region         string `env:"AWS_REGION,default=us-east-1"`
	AlertsTopicARN string `env:"ALERTS_TOPIC_ARN"`
	Extras         goenv.EnvSet
}

func LoadEnvironment() (Environment, error) {
	var env Environment
	es, err := goenv.UnmarshalFromEnviron(&env)
	if err != nil {
		return env, err
	}
	env.Extras = es
	env.BucketName = strings.TrimSpace(env.BucketName)
	env.SecretName = strings.TrimSpace(env.SecretName)
	return env, nil
}

// SourceConfig describes one external data provider. The seeded secret
// carries more fields than the extractor reads; unknown ones survive a
// round trip through the loader untouched.
type SourceConfig struct {
	Name         string            `json:"name"`
	Description  string            `json:"description,omitempty"`
	URL          string            `json:"url"`
	DefaultLimit int               `json:"default_limit,omitempty"`
	MaxRecords   int               `json:"max_records,omitempty"`
	Endpoints    map[string]string `json:"endpoints,omitempty"`
	Parameters   map[string]any    `json:"parameters,omitempty"`
	Headers      map[string]string `json:"headers,omitempty"`
	AuthRequired bool              `json:"auth_required,omitempty"`
	Timeout      int               `json:"timeout,omitempty"`
}

// Limit returns the record limit for a source, defaulting to 10.
func (s SourceConfig) Limit() int {
	if s.DefaultLimit > 0 {
		return s.DefaultLimit
	}
	if s.MaxRecords > 0 {
		return s.MaxRecords
	}
	return 10
}

type RetryConfig struct {
	MaxRetries        int     `json:"max_retries"`
	RetryDelay        int     `json:"retry_delay"`
	BackoffMultiplier float64 `json:"backoff_multiplier"`
}

// ProcessingConfig is parsed from the stored document but never consulted
// by the run loop: sources are processed sequentially with no retries.
type ProcessingConfig struct {
	BatchSize          int             `json:"batch_size"`
	ParallelProcessing bool            `json:"parallel_processing"`
	ErrorHandling      string          `json:"error_handling"`
	Retry              *RetryConfig    `json:"retry_config,omitempty"`
	DataQualityChecks  map[string]bool `json:"data_quality_checks,omitempty"`
}

type OutputConfig struct {
	Format      string   `json:"format"`
	Compression string   `json:"compression,omitempty"`
	PartitionBy []string `json:"partition_by,omitempty"`
	FileNaming  string   `json:"file_naming,omitempty"`
}

type MonitoringConfig struct {
	LogLevel          string `json:"log_level,omitempty"`
	MetricsEnabled    bool   `json:"metrics_enabled"`
	AlertOnFailure    bool   `json:"alert_on_failure"`
	NotificationEmail string `json:"notification_email,omitempty"`
}

// Config is the full pipeline configuration document stored in Secrets
// Manager. Only DataSources and Monitoring drive runtime behavior.
type Config struct {
	Version     string                  `json:"version,omitempty"`
	CreatedAt   string                  `json:"created_at,omitempty"`
	Description string                  `json:"description,omitempty"`
	DataSources map[string]SourceConfig `json:"data_sources"`
	Processing  *ProcessingConfig       `json:"processing_config,omitempty"`
	Output      *OutputConfig           `json:"output_config,omitempty"`
	Monitoring  *MonitoringConfig       `json:"monitoring,omitempty"`
	Tags        map[string]string       `json:"tags,omitempty"`
}

// SourceNames returns the configured source names in a stable order.
func (c *Config) SourceNames() []string {
	names := make([]string, 0, len(c.DataSources))
	for name := range c.DataSources {
		names = append(names, name)
	}
	for i := 1; i < len(names); i++ {
		for j := i; j > 0 && names[j] < names[j-1]; j-- {
			names[j], names[j-1] = names[j-1], names[j]
		}
	}
	return names
}

// DefaultConfig is the built-in fallback used when the secret cannot be
// retrieved or parsed.
func DefaultConfig() *Config {
	return &Config{
		DataSources: map[string]SourceConfig{
			"marketing": {
				Name:         "FakeStore API",
				URL:          "https://fakestoreapi.com/products",
				DefaultLimit: 10,
			},
			"sales": {
				Name:         "JSONPlaceholder",
				URL:          "https://jsonplaceholder.typicode.com/posts",
				DefaultLimit: 10,
			},
			"crm": {
				Name:         "RandomUser API",
				URL:          "https://randomuser.me/api/",
				DefaultLimit: 10,
			},
		},
	}
}

type SecretsAPI interface {
	GetSecretValue(ctx context.Context, params *secretsmanager.GetSecretValueInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.GetSecretValueOutput, error)
}

// ConfigLoader reads the pipeline configuration from Secrets Manager.
type ConfigLoader struct {
	secrets    SecretsAPI
	secretName string
}

func NewConfigLoader(secrets SecretsAPI, secretName string) *ConfigLoader {
	return &ConfigLoader{secrets: secrets, secretName: secretName}
}

// Load fetches and parses the stored configuration. Any failure degrades
// to the built-in defaults; callers never see an error.
func (l *ConfigLoader) Load(ctx context.Context) *Config {
	out, err := l.secrets.GetSecretValue(ctx, &secretsmanager.GetSecretValueInput{
		SecretId: aws.String(l.secretName),
	})
	if err != nil {
		log.Printf("cannot get config from Secrets Manager: %v; using default configuration", err)
		return DefaultConfig()
	}

	var cfg Config
	if err := json.Unmarshal([]byte(aws.ToString(out.SecretString)), &cfg); err != nil {
		log.Printf("invalid config document in secret %s: %v; using default configuration", l.secretName, err)
		return DefaultConfig()
	}
	if len(cfg.DataSources) == 0 {
		log.Printf("secret %s has no data_sources; using default configuration", l.secretName)
		return DefaultConfig()
	}
	return &cfg
}
