package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambdacontext"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/google/uuid"
)

type SNSAPI interface {
	Publish(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error)
}

// ExecutionResult tracks one run across all configured sources. It is
// built incrementally and persisted as the run summary at the end.
type ExecutionResult struct {
	ExecutionID      string   `json:"execution_id"`
	StartTime        string   `json:"start_time"`
	EndTime          string   `json:"end_time"`
	DurationSeconds  float64  `json:"duration_seconds"`
	Success          bool     `json:"success"`
	SourcesProcessed []string `json:"sources_processed"`
	TotalRecords     int      `json:"total_records"`
	Errors           []string `json:"errors"`
	FilesCreated     []string `json:"files_created"`
}

// Response is the invocation envelope. It is always well-formed: failures
// surface through StatusCode and the serialized result, never through the
// handler's error return.
type Response struct {
	StatusCode int               `json:"statusCode"`
	Body       string            `json:"body"`
	Headers    map[string]string `json:"headers"`
}

// Handler orchestrates one pipeline run: load config, then sequentially
// extract, transform and load every configured source, then persist the
// execution summary.
type Handler struct {
	env       Environment
	config    *ConfigLoader
	extractor *Extractor
	loader    *S3Loader
	sns       SNSAPI
	now       func() time.Time
}

// NewHandler wires the pipeline from a resolved AWS config, the way the
// Lambda entrypoint builds it.
func NewHandler(cfg aws.Config, env Environment) *Handler {
	return &Handler{
		env:       env,
		config:    NewConfigLoader(secretsmanager.NewFromConfig(cfg), env.SecretName),
		extractor: NewExtractor(30 * time.Second),
		loader:    NewS3Loader(s3.NewFromConfig(cfg), env.BucketName),
		sns:       sns.NewFromConfig(cfg),
		now:       time.Now,
	}
}

// NewHandlerWithClients builds a handler from explicit dependencies so
// tests can substitute fakes.
func NewHandlerWithClients(env Environment, secrets SecretsAPI, s3c S3API, snsc SNSAPI, extractor *Extractor) *Handler {
	return &Handler{
		env:       env,
		config:    NewConfigLoader(secrets, env.SecretName),
		extractor: extractor,
		loader:    NewS3Loader(s3c, env.BucketName),
		sns:       snsc,
		now:       time.Now,
	}
}

// Handle runs the pipeline. A per-source failure is recorded and the run
// continues; only a failure outside the source loop marks the run failed.
func (h *Handler) Handle(ctx context.Context, _ events.CloudWatchEvent) (Response, error) {
	start := h.now()

	result := &ExecutionResult{
		ExecutionID:      h.executionID(ctx),
		StartTime:        start.Format(time.RFC3339),
		Success:          true,
		SourcesProcessed: []string{},
		Errors:           []string{},
		FilesCreated:     []string{},
	}

	log.Printf("data pipeline execution started: id=%s bucket=%s", result.ExecutionID, h.env.BucketName)

	var cfg *Config
	if h.env.BucketName == "" {
		result.Success = false
		result.Errors = append(result.Errors, "Fatal error: BUCKET_NAME is not set")
	} else {
		cfg = h.config.Load(ctx)
		log.Printf("configuration loaded: %d data sources", len(cfg.DataSources))

		for _, sourceName := range cfg.SourceNames() {
			h.processSource(ctx, sourceName, cfg.DataSources[sourceName], result)
		}

		summary := h.buildSummary(result, cfg, start)
		summaryKey, err := h.loader.SaveSummary(ctx, summary, h.now())
		if err != nil {
			log.Printf("fatal error: %v", err)
			result.Success = false
			result.Errors = append(result.Errors, fmt.Sprintf("Fatal error: %v", err))
		} else {
			result.FilesCreated = append(result.FilesCreated, summaryKey)
		}
	}

	end := h.now()
	result.EndTime = end.Format(time.RFC3339)
	result.DurationSeconds = end.Sub(start).Seconds()

	log.Printf("execution finished: success=%t sources=%d records=%d files=%d errors=%d duration=%.2fs",
		result.Success, len(result.SourcesProcessed), result.TotalRecords,
		len(result.FilesCreated), len(result.Errors), result.DurationSeconds)

	h.alertOnFailure(ctx, cfg, result)

	status := 200
	if !result.Success {
		status = 500
	}
	body, _ := json.Marshal(result)
	return Response{
		StatusCode: status,
		Body:       string(body),
		Headers:    map[string]string{"Content-Type": "application/json"},
	}, nil
}

func (h *Handler) processSource(ctx context.Context, sourceName string, sourceCfg SourceConfig, result *ExecutionResult) {
	log.Printf("processing %s", sourceName)

	rawData, err := h.extractor.Extract(ctx, sourceName, sourceCfg)
	if err != nil {
		msg := fmt.Sprintf("Error processing %s: %v", sourceName, err)
		log.Print(msg)
		result.Errors = append(result.Errors, msg)
		return
	}

	transformed := Transform(sourceName, rawData, h.now())

	key, err := h.loader.SaveRecords(ctx, sourceName, transformed, h.now())
	if err != nil {
		msg := fmt.Sprintf("Error processing %s: %v", sourceName, err)
		log.Print(msg)
		result.Errors = append(result.Errors, msg)
		return
	}

	result.SourcesProcessed = append(result.SourcesProcessed, sourceName)
	result.TotalRecords += len(transformed)
	result.FilesCreated = append(result.FilesCreated, key)

	log.Printf("%s: %d records processed", sourceName, len(transformed))
}

func (h *Handler) buildSummary(result *ExecutionResult, cfg *Config, start time.Time) ExecutionSummary {
	now := h.now()
	return ExecutionSummary{
		ExecutionID:     result.ExecutionID,
		ExecutionDate:   now.Format("2006-01-02"),
		ExecutionTime:   now.Format(time.RFC3339),
		DurationSeconds: now.Sub(start).Seconds(),
		Success:         result.Success,
		Statistics: SummaryStatistics{
			SourcesConfigured: len(cfg.DataSources),
			SourcesProcessed:  len(result.SourcesProcessed),
			TotalRecords:      result.TotalRecords,
			FilesCreated:      len(result.FilesCreated),
			Errors:            len(result.Errors),
		},
		SourcesProcessed: result.SourcesProcessed,
		FilesCreated:     result.FilesCreated,
		Errors:           result.Errors,
	}
}

// alertOnFailure publishes a plain-text run report when the stored config
// asks for failure alerts and a topic is configured. Alerting problems
// are logged and dropped; they never fail a run.
func (h *Handler) alertOnFailure(ctx context.Context, cfg *Config, result *ExecutionResult) {
	if result.Success && len(result.Errors) == 0 {
		return
	}
	topicARN := strings.TrimSpace(h.env.AlertsTopicARN)
	if topicARN == "" || h.sns == nil {
		return
	}
	if cfg == nil || cfg.Monitoring == nil || !cfg.Monitoring.AlertOnFailure {
		return
	}

	lines := []string{
		"Data Pipeline Run Report",
		"",
		fmt.Sprintf("Execution: %s", result.ExecutionID),
		fmt.Sprintf("Success: %t", result.Success),
		fmt.Sprintf("Sources processed: %s", strings.Join(result.SourcesProcessed, ", ")),
		fmt.Sprintf("Total records: %d", result.TotalRecords),
	}
	for _, e := range result.Errors {
		lines = append(lines, fmt.Sprintf("Error: %s", e))
	}

	_, err := h.sns.Publish(ctx, &sns.PublishInput{
		TopicArn: aws.String(topicARN),
		Subject:  aws.String(fmt.Sprintf("Data pipeline run %s had errors", result.ExecutionID)),
		Message:  aws.String(strings.Join(lines, "\n")),
	})
	if err != nil {
		log.Printf("failure alert publish failed: %v", err)
	}
}

func (h *Handler) executionID(ctx context.Context) string {
	if lc, ok := lambdacontext.FromContext(ctx); ok && lc.AwsRequestID != "" {
		return lc.AwsRequestID
	}
	return uuid.NewString()
}
