package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/joho/godotenv"
)

// Ad hoc S3 check: list buckets, write a test object under temp/, read it
// back, clean up.
func main() {
	if err := godotenv.Load(); err != nil {
		log.Println(".env file not loaded:", err)
	}

	var bucket string
	flag.StringVar(&bucket, "bucket", "", "target S3 bucket (defaults to BUCKET_NAME)")
	flag.Parse()

	if bucket == "" {
		bucket = strings.TrimSpace(os.Getenv("BUCKET_NAME"))
	}
	if bucket == "" {
		fmt.Fprintln(os.Stderr, "usage: smoke-s3 -bucket <bucket-name>")
		os.Exit(2)
	}

	ctx := context.Background()
	cfg, err := config.LoadDefaultConfig(ctx)
	if err != nil {
		log.Fatalf("load aws config: %v", err)
	}
	client := s3.NewFromConfig(cfg)

	buckets, err := client.ListBuckets(ctx, &s3.ListBucketsInput{})
	if err != nil {
		log.Fatalf("list buckets: %v", err)
	}
	found := false
	fmt.Println("buckets:")
	for _, b := range buckets.Buckets {
		marker := ""
		if aws.ToString(b.Name) == bucket {
			marker = "  <- target"
			found = true
		}
		fmt.Printf("  %s%s\n", aws.ToString(b.Name), marker)
	}
	if !found {
		log.Fatalf("bucket %s not found in this account", bucket)
	}

	payload, _ := json.MarshalIndent(map[string]any{
		"test_id":   "smoke_001",
		"timestamp": time.Now().Format(time.RFC3339),
		"message":   "data pipeline connectivity check",
	}, "", "  ")

	key := fmt.Sprintf("temp/test_%s.json", time.Now().Format("20060102_150405"))

	_, err = client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(payload),
		ContentType: aws.String("application/json"),
		Metadata:    map[string]string{"test": "true", "created_by": "smoke-s3"},
	})
	if err != nil {
		log.Fatalf("put object: %v", err)
	}
	fmt.Printf("uploaded s3://%s/%s\n", bucket, key)

	got, err := client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		log.Fatalf("get object: %v", err)
	}
	body, err := io.ReadAll(got.Body)
	got.Body.Close()
	if err != nil {
		log.Fatalf("read object: %v", err)
	}
	if !bytes.Equal(body, payload) {
		log.Fatalf("downloaded object does not match uploaded payload")
	}
	fmt.Println("download verified")

	_, err = client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		log.Fatalf("delete object: %v", err)
	}
	fmt.Println("cleaned up, S3 access OK")
}
