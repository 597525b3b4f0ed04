// Package sink persists finalized recording artifacts to durable object
// storage.
package sink

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/aws/aws-sdk-go/aws"
	awssession "github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3iface"
)

// UploadError reports a rejected or unreachable sink for one artifact key.
type UploadError struct {
	Key string
	Err error
}

func (e *UploadError) Error() string {
	return fmt.Sprintf("upload %s: %v", e.Key, e.Err)
}

func (e *UploadError) Unwrap() error {
	return e.Err
}

// Config identifies the target bucket. Credentials come from the default
// AWS chain (env, shared config, instance role). Endpoint and path-style
// addressing support S3-compatible stores.
type Config struct {
	Bucket         string
	Region         string
	Endpoint       string
	ForcePathStyle bool
}

// S3 is the blob sink. One instance is built at process startup and shared
// across sessions; no retry policy lives here.
type S3 struct {
	client s3iface.S3API
	bucket string
	logger *slog.Logger
}

// NewS3 builds the sink client once for the process lifetime.
func NewS3(cfg Config, logger *slog.Logger) (*S3, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("sink bucket is required")
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	awsCfg := aws.NewConfig()
	if cfg.Region != "" {
		awsCfg = awsCfg.WithRegion(cfg.Region)
	}
	if cfg.Endpoint != "" {
		awsCfg = awsCfg.WithEndpoint(cfg.Endpoint)
	}
	if cfg.ForcePathStyle {
		awsCfg = awsCfg.WithS3ForcePathStyle(true)
	}

	sess, err := awssession.NewSession(awsCfg)
	if err != nil {
		return nil, fmt.Errorf("create aws session: %w", err)
	}

	return &S3{client: s3.New(sess), bucket: cfg.Bucket, logger: logger}, nil
}

// Put writes one artifact under key with the given content type.
func (s *S3) Put(ctx context.Context, key string, content []byte, contentType string) error {
	_, err := s.client.PutObjectWithContext(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(content),
		ContentType:   aws.String(contentType),
		ContentLength: aws.Int64(int64(len(content))),
	})
	if err != nil {
		return &UploadError{Key: key, Err: err}
	}

	s.logger.Info("artifact stored", "bucket", s.bucket, "key", key, "bytes", len(content))
	return nil
}
