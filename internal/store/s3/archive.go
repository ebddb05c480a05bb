// Package s3 archives batch evaluation reports to S3 or an S3-compatible
// object store (MinIO, R2) as JSON Lines.
package s3

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/url"
	"path"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"signalbench/internal/model"
)

// Config holds the object-store connection settings.
type Config struct {
	// Endpoint is an S3-compatible endpoint URL. Leave empty for AWS S3.
	Endpoint string
	Region   string
	Bucket   string
	Prefix   string // key prefix, e.g. "reports"

	// AccessKey/SecretKey select static credentials; empty uses the default
	// AWS credential chain.
	AccessKey string
	SecretKey string

	// ForcePathStyle puts the bucket in the path (MinIO and most
	// S3-compatible providers).
	ForcePathStyle bool
}

// putter is the subset of *s3.Client used by Archiver.
type putter interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// Archiver writes one object per batch run.
type Archiver struct {
	api    putter
	bucket string
	prefix string
}

// New builds an Archiver from cfg.
func New(ctx context.Context, cfg Config) (*Archiver, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("s3: bucket name is required")
	}
	if cfg.Region == "" {
		return nil, fmt.Errorf("s3: region is required")
	}

	opts := []func(*config.LoadOptions) error{config.WithRegion(cfg.Region)}
	if cfg.AccessKey != "" {
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, "")))
	}
	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("s3: load aws config: %w", err)
	}

	var s3Opts []func(*s3.Options)
	if cfg.Endpoint != "" {
		endpoint := normaliseEndpoint(cfg.Endpoint)
		s3Opts = append(s3Opts, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(endpoint)
		})
	}
	if cfg.ForcePathStyle {
		s3Opts = append(s3Opts, func(o *s3.Options) {
			o.UsePathStyle = true
		})
	}

	return newArchiver(s3.NewFromConfig(awsCfg, s3Opts...), cfg.Bucket, cfg.Prefix), nil
}

func newArchiver(api putter, bucket, prefix string) *Archiver {
	return &Archiver{api: api, bucket: bucket, prefix: prefix}
}

// Key returns "{prefix}/{YYYY-MM-DD}/{runID}.jsonl".
func (a *Archiver) Key(runID string, at time.Time) string {
	return path.Join(a.prefix, at.UTC().Format("2006-01-02"), runID+".jsonl")
}

// Archive uploads summaries as one JSON object per line and returns the key.
func (a *Archiver) Archive(ctx context.Context, runID string, at time.Time, summaries []model.Summary) (string, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	for i := range summaries {
		if err := enc.Encode(&summaries[i]); err != nil {
			return "", fmt.Errorf("s3: encode %s: %w", summaries[i].Ticker, err)
		}
	}

	key := a.Key(runID, at)
	_, err := a.api.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(a.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(buf.Bytes()),
		ContentType: aws.String("application/x-ndjson"),
		Metadata:    map[string]string{"run-id": runID},
	})
	if err != nil {
		return "", fmt.Errorf("s3: put %s: %w", key, err)
	}
	log.Printf("[s3] archived %d summaries to s3://%s/%s", len(summaries), a.bucket, key)
	return key, nil
}

// normaliseEndpoint prepends https:// when the endpoint has no scheme.
func normaliseEndpoint(endpoint string) string {
	parsed, err := url.Parse(endpoint)
	if err == nil && parsed.Scheme != "" {
		return endpoint
	}
	return "https://" + endpoint
}
