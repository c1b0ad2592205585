package storage

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/rs/zerolog"

	"github.com/nickrsmith/og-platform-sub004/internal/config"
)

// S3Backend stores content in an S3 or S3-compatible bucket, keyed by
// content address under an optional prefix.
type S3Backend struct {
	client  *s3.Client
	bucket  string
	prefix  string
	baseURL string
	logger  zerolog.Logger
}

// NewS3Backend creates an S3 content store from configuration and verifies
// bucket access.
func NewS3Backend(ctx context.Context, cfg config.S3StorageConfig, baseURL string, logger zerolog.Logger) (*S3Backend, error) {
	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.Region),
	}
	if cfg.AccessKeyID != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.UsePathStyle = cfg.UsePathStyle
	})

	backend := &S3Backend{
		client:  client,
		bucket:  cfg.Bucket,
		prefix:  "content/",
		baseURL: strings.TrimSuffix(baseURL, "/"),
		logger:  logger.With().Str("component", "storage_s3").Logger(),
	}

	if _, err := client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(cfg.Bucket)}); err != nil {
		return nil, fmt.Errorf("failed to access bucket %q: %w", cfg.Bucket, err)
	}

	return backend, nil
}

// Store hashes the content while spooling it to a local temp file, then
// uploads it under its content address. S3 needs a seekable body with a
// known length, so the spool can't be avoided for streamed input.
func (b *S3Backend) Store(ctx context.Context, reader io.Reader) (string, error) {
	tmp, err := os.CreateTemp("", "dataroom-s3-*")
	if err != nil {
		return "", fmt.Errorf("failed to create temp file: %w", err)
	}
	defer func() {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
	}()

	hasher := sha256.New()
	if _, err := io.Copy(io.MultiWriter(tmp, hasher), reader); err != nil {
		return "", fmt.Errorf("failed to spool content: %w", err)
	}
	address := hex.EncodeToString(hasher.Sum(nil))

	exists, err := b.Exists(ctx, address)
	if err != nil {
		return "", err
	}
	if exists {
		return address, nil
	}

	if _, err := tmp.Seek(0, io.SeekStart); err != nil {
		return "", fmt.Errorf("failed to rewind temp file: %w", err)
	}

	_, err = b.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(b.key(address)),
		Body:   tmp,
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload content: %w", err)
	}

	return address, nil
}

// Retrieve opens the content at the given address.
func (b *S3Backend) Retrieve(ctx context.Context, contentAddress string) (io.ReadCloser, error) {
	out, err := b.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(b.key(contentAddress)),
	})
	if err != nil {
		var noKey *types.NoSuchKey
		if errors.As(err, &noKey) {
			return nil, ErrContentNotFound
		}
		return nil, fmt.Errorf("failed to get content: %w", err)
	}
	return out.Body, nil
}

// Delete removes the content at the given address.
func (b *S3Backend) Delete(ctx context.Context, contentAddress string) error {
	_, err := b.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(b.key(contentAddress)),
	})
	if err != nil {
		return fmt.Errorf("failed to delete content: %w", err)
	}
	return nil
}

// Exists reports whether content is stored at the given address.
func (b *S3Backend) Exists(ctx context.Context, contentAddress string) (bool, error) {
	_, err := b.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(b.key(contentAddress)),
	})
	if err != nil {
		var notFound *types.NotFound
		if errors.As(err, &notFound) {
			return false, nil
		}
		return false, fmt.Errorf("failed to head content: %w", err)
	}
	return true, nil
}

// URL returns the public URL for the content.
func (b *S3Backend) URL(contentAddress string) string {
	if b.baseURL != "" {
		return b.baseURL + "/" + contentAddress
	}
	return "s3://" + b.bucket + "/" + b.key(contentAddress)
}

// key maps a content address to its object key.
func (b *S3Backend) key(contentAddress string) string {
	return b.prefix + contentAddress
}

// Ensure S3Backend implements Backend.
var _ Backend = (*S3Backend)(nil)
