// Package archive stores inbound sender images in Cloudflare R2 object
// storage. Archival is best-effort: the bot replies the same way whether
// or not the copy succeeds.
package archive

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/smithy-go"
	"github.com/google/uuid"

	"github.com/aldenlin/celebmatch-linebot-go/internal/metrics"
)

// ServiceName is the label used for metrics.
const ServiceName = "archive"

// objectPutter is the slice of the S3 API the archiver needs.
type objectPutter interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// Config holds R2 archive configuration.
type Config struct {
	AccountID       string
	AccessKeyID     string
	SecretAccessKey string
	BucketName      string
	KeyPrefix       string
	Metrics         *metrics.Metrics
}

// Archiver copies image bytes into an R2 bucket under uuid keys.
// A nil Archiver is valid and archives nothing.
type Archiver struct {
	s3      objectPutter
	bucket  string
	prefix  string
	metrics *metrics.Metrics
}

// New creates an R2-backed archiver.
func New(ctx context.Context, cfg Config) (*Archiver, error) {
	if cfg.AccountID == "" || cfg.AccessKeyID == "" || cfg.SecretAccessKey == "" || cfg.BucketName == "" {
		return nil, errors.New("archive: account id, credentials and bucket name are required")
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.AccessKeyID,
			cfg.SecretAccessKey,
			"",
		)),
		awsconfig.WithRegion("auto"),
	)
	if err != nil {
		return nil, fmt.Errorf("archive: load aws config: %w", err)
	}

	endpoint := fmt.Sprintf("https://%s.r2.cloudflarestorage.com", cfg.AccountID)
	s3Client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(endpoint)
		o.UsePathStyle = true // Required for R2
	})

	return &Archiver{
		s3:      s3Client,
		bucket:  cfg.BucketName,
		prefix:  cfg.KeyPrefix,
		metrics: cfg.Metrics,
	}, nil
}

// Enabled reports whether archival is configured.
func (a *Archiver) Enabled() bool {
	return a != nil
}

// Archive stores the image bytes under a fresh uuid key and returns the
// key. A nil archiver returns an empty key and no error.
func (a *Archiver) Archive(ctx context.Context, data []byte, contentType string) (string, error) {
	if a == nil {
		return "", nil
	}

	key := uuid.New().String() + ".jpg"
	if a.prefix != "" {
		key = a.prefix + "/" + key
	}

	input := &s3.PutObjectInput{
		Bucket: aws.String(a.bucket),
		Key:    aws.String(key),
		Body:   bytes.NewReader(data),
	}
	if contentType != "" {
		input.ContentType = aws.String(contentType)
	}

	start := time.Now()
	_, err := a.s3.PutObject(ctx, input)

	status := "success"
	if err != nil {
		status = errorStatus(err)
	}
	if a.metrics != nil {
		a.metrics.RecordExternalCall(ServiceName, status, time.Since(start).Seconds())
	}
	if err != nil {
		return "", fmt.Errorf("archive: put %q: %w", key, err)
	}
	return key, nil
}

// errorStatus labels a failed put with the service error code when the
// SDK surfaces one, so the metric distinguishes auth failures from
// transport errors.
func errorStatus(err error) string {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) && apiErr.ErrorCode() != "" {
		return apiErr.ErrorCode()
	}
	return "error"
}
