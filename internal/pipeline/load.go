package pipeline

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

type S3API interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3Loader writes pipeline output as immutable JSON objects under
// date-partitioned keys. There is no retry and no overwrite path: a
// second run produces a second object under a new timestamped key.
type S3Loader struct {
	s3     S3API
	bucket string
}

func NewS3Loader(client S3API, bucket string) *S3Loader {
	return &S3Loader{s3: client, bucket: bucket}
}

// SaveRecords writes one data object for a source and returns its key:
// data/<source>/date=YYYY-MM-DD/<source>_<YYYYMMDD_HHMMSS>.json
func (l *S3Loader) SaveRecords(ctx context.Context, sourceName string, records []TransformedRecord, now time.Time) (string, error) {
	key := fmt.Sprintf("data/%s/date=%s/%s_%s.json",
		sourceName,
		now.Format("2006-01-02"),
		sourceName,
		now.Format("20060102_150405"),
	)

	body, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal %s records: %w", sourceName, err)
	}

	_, err = l.s3.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(l.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(body),
		ContentType: aws.String("application/json"),
		Metadata: map[string]string{
			"source":              sourceName,
			"record_count":        strconv.Itoa(len(records)),
			"extracted_date":      now.Format("2006-01-02"),
			"extracted_timestamp": now.Format(time.RFC3339),
		},
	})
	if err != nil {
		return "", fmt.Errorf("s3 putobject %s: %w", key, err)
	}

	log.Printf("saved to s3://%s/%s", l.bucket, key)
	return key, nil
}

type SummaryStatistics struct {
	SourcesConfigured int `json:"sources_configured"`
	SourcesProcessed  int `json:"sources_processed"`
	TotalRecords      int `json:"total_records"`
	FilesCreated      int `json:"files_created"`
	Errors            int `json:"errors"`
}

type ExecutionSummary struct {
	ExecutionID      string            `json:"execution_id"`
	ExecutionDate    string            `json:"execution_date"`
	ExecutionTime    string            `json:"execution_time"`
	DurationSeconds  float64           `json:"duration_seconds"`
	Success          bool              `json:"success"`
	Statistics       SummaryStatistics `json:"statistics"`
	SourcesProcessed []string          `json:"sources_processed"`
	FilesCreated     []string          `json:"files_created"`
	Errors           []string          `json:"errors"`
}

// SaveSummary writes the per-run execution summary under the metadata
// prefix and returns its key.
func (l *S3Loader) SaveSummary(ctx context.Context, summary ExecutionSummary, now time.Time) (string, error) {
	key := fmt.Sprintf("metadata/executions/date=%s/execution_%s.json",
		now.Format("2006-01-02"),
		summary.ExecutionID,
	)

	body, err := json.MarshalIndent(summary, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal execution summary: %w", err)
	}

	_, err = l.s3.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(l.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(body),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return "", fmt.Errorf("s3 putobject %s: %w", key, err)
	}

	log.Printf("summary saved to s3://%s/%s", l.bucket, key)
	return key, nil
}
