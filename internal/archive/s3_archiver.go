package archive

import (
	"bytes"
	"context"
	"fmt"

	"servizephyr/internal/model"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/rs/zerolog"
)

const s3Scheme = "s3://"

type objectStore interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// s3Archiver uploads gzipped reports to a bucket.
type s3Archiver struct {
	client objectStore
	bucket string
	prefix string
	logger zerolog.Logger
}

// NewS3Archiver creates an Archiver backed by bucket in region.
func NewS3Archiver(ctx context.Context, bucket, region, prefix string, logger zerolog.Logger) (Archiver, error) {
	cfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	return newS3Archiver(s3.NewFromConfig(cfg), bucket, prefix, logger), nil
}

func newS3Archiver(client objectStore, bucket, prefix string, logger zerolog.Logger) *s3Archiver {
	return &s3Archiver{
		client: client,
		bucket: bucket,
		prefix: prefix,
		logger: logger.With().Str("component", "archive-s3").Logger(),
	}
}

func (a *s3Archiver) Store(ctx context.Context, report model.CleanupReport) (string, error) {
	data, err := encodeReport(report)
	if err != nil {
		return "", err
	}

	key := a.prefix + ReportKey(report)
	_, err = a.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:          aws.String(a.bucket),
		Key:             aws.String(key),
		Body:            bytes.NewReader(data),
		ContentType:     aws.String("application/json"),
		ContentEncoding: aws.String("gzip"),
	})
	if err != nil {
		return "", fmt.Errorf("failed to put s3://%s/%s: %w", a.bucket, key, err)
	}

	location := s3Scheme + a.bucket + "/" + key
	a.logger.Info().
		Str("location", location).
		Str("tenant_id", report.TenantID).
		Int("deleted", report.DeletedCount).
		Msg("Sweep report archived")

	return location, nil
}
