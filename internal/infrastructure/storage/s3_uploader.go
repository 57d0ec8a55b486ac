// Package storage uploads pipeline artifacts to S3-compatible object storage.
package storage

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"go.uber.org/zap"

	infraconfig "github.com/pulse/activitypipe/internal/infrastructure/config"
)

// objectAPI is the subset of the S3 client the uploader uses
type objectAPI interface {
	HeadBucket(ctx context.Context, in *s3.HeadBucketInput, optFns ...func(*s3.Options)) (*s3.HeadBucketOutput, error)
	CreateBucket(ctx context.Context, in *s3.CreateBucketInput, optFns ...func(*s3.Options)) (*s3.CreateBucketOutput, error)
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3Uploader copies local artifacts into a bucket.
// It works with any S3-compatible storage (AWS S3, MinIO, RustFS, etc.)
type S3Uploader struct {
	client objectAPI
	bucket string
	prefix string
	logger *zap.Logger
}

// S3UploaderOption is a functional option for configuring S3Uploader
type S3UploaderOption func(*S3Uploader)

// WithLogger sets a custom logger for S3Uploader
func WithLogger(logger *zap.Logger) S3UploaderOption {
	return func(u *S3Uploader) {
		u.logger = logger
	}
}

// NewS3Uploader creates an uploader from configuration. Without static keys the
// default AWS credential chain is used.
func NewS3Uploader(ctx context.Context, cfg *infraconfig.StorageConfig, opts ...S3UploaderOption) (*S3Uploader, error) {
	if cfg == nil {
		return nil, errors.New("storage configuration is required")
	}
	if cfg.Bucket == "" {
		return nil, errors.New("storage bucket is required")
	}
	if (cfg.AccessKeyID == "") != (cfg.SecretAccessKey == "") {
		return nil, errors.New("storage access key and secret key must be set together")
	}

	endpoint := cfg.Endpoint
	if endpoint != "" && !strings.HasPrefix(endpoint, "http://") && !strings.HasPrefix(endpoint, "https://") {
		endpoint = "http://" + endpoint
	}
	if endpoint != "" {
		if _, err := url.Parse(endpoint); err != nil {
			return nil, fmt.Errorf("invalid storage endpoint: %w", err)
		}
	}

	region := cfg.Region
	if region == "" {
		region = "us-east-1"
	}

	loadOpts := []func(*config.LoadOptions) error{config.WithRegion(region)}
	if cfg.AccessKeyID != "" {
		loadOpts = append(loadOpts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}
	awsCfg, err := config.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.UsePathStyle = cfg.UsePathStyle
		if endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
		}
	})

	return newS3Uploader(client, cfg.Bucket, cfg.Prefix, opts...), nil
}

func newS3Uploader(client objectAPI, bucket, prefix string, opts ...S3UploaderOption) *S3Uploader {
	u := &S3Uploader{
		client: client,
		bucket: bucket,
		prefix: strings.Trim(prefix, "/"),
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(u)
	}
	return u
}

// Bucket returns the bucket name
func (u *S3Uploader) Bucket() string {
	return u.bucket
}

// Key returns the object key for a local file
func (u *S3Uploader) Key(localPath string) string {
	name := filepath.Base(localPath)
	if u.prefix == "" {
		return name
	}
	return path.Join(u.prefix, name)
}

// EnsureBucket creates the bucket if it doesn't exist.
func (u *S3Uploader) EnsureBucket(ctx context.Context) error {
	_, err := u.client.HeadBucket(ctx, &s3.HeadBucketInput{
		Bucket: aws.String(u.bucket),
	})
	if err == nil {
		return nil
	}

	var notFound *types.NotFound
	var noSuchBucket *types.NoSuchBucket
	if !errors.As(err, &notFound) && !errors.As(err, &noSuchBucket) {
		return fmt.Errorf("failed to check bucket existence: %w", err)
	}

	u.logger.Info("Creating storage bucket", zap.String("bucket", u.bucket))
	_, err = u.client.CreateBucket(ctx, &s3.CreateBucketInput{
		Bucket: aws.String(u.bucket),
	})
	if err != nil {
		// lost a creation race
		var alreadyOwned *types.BucketAlreadyOwnedByYou
		if errors.As(err, &alreadyOwned) {
			return nil
		}
		return fmt.Errorf("failed to create bucket: %w", err)
	}
	return nil
}

// Upload ensures the bucket and puts each file under the configured prefix.
// It stops at the first failure and returns the keys written so far.
func (u *S3Uploader) Upload(ctx context.Context, paths ...string) ([]string, error) {
	if err := u.EnsureBucket(ctx); err != nil {
		return nil, err
	}

	keys := make([]string, 0, len(paths))
	for _, p := range paths {
		key := u.Key(p)
		if err := u.putFile(ctx, p, key); err != nil {
			return keys, err
		}
		keys = append(keys, key)
		u.logger.Info("Uploaded artifact",
			zap.String("bucket", u.bucket),
			zap.String("key", key),
		)
	}
	return keys, nil
}

func (u *S3Uploader) putFile(ctx context.Context, localPath, key string) error {
	f, err := os.Open(localPath)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", localPath, err)
	}
	defer f.Close()

	_, err = u.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(u.bucket),
		Key:         aws.String(key),
		Body:        f,
		ContentType: aws.String(contentType(localPath)),
	})
	if err != nil {
		return fmt.Errorf("failed to upload %s: %w", key, err)
	}
	return nil
}

func contentType(p string) string {
	switch strings.ToLower(filepath.Ext(p)) {
	case ".json":
		return "application/json"
	case ".csv":
		return "text/csv"
	case ".parquet":
		return "application/vnd.apache.parquet"
	default:
		return "application/octet-stream"
	}
}
