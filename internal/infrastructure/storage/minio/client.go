// Package minio stores generated case documents and proof packets in an
// S3-compatible bucket.
package minio

import (
	"context"
	"io"
	"net/url"
	"sync"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/minio/minio-go/v7/pkg/lifecycle"

	"github.com/landlordcomply/landlordcomply/internal/config"
	"github.com/landlordcomply/landlordcomply/internal/infrastructure/monitoring/logging"
	"github.com/landlordcomply/landlordcomply/pkg/errors"
)

// MinIOAPI is the subset of *minio.Client the package calls.
type MinIOAPI interface {
	ListBuckets(ctx context.Context) ([]minio.BucketInfo, error)
	BucketExists(ctx context.Context, bucketName string) (bool, error)
	MakeBucket(ctx context.Context, bucketName string, opts minio.MakeBucketOptions) error
	SetBucketLifecycle(ctx context.Context, bucketName string, config *lifecycle.Configuration) error
	PresignedGetObject(ctx context.Context, bucketName, objectName string, expiry time.Duration, reqParams url.Values) (*url.URL, error)
	PutObject(ctx context.Context, bucketName, objectName string, reader io.Reader, objectSize int64, opts minio.PutObjectOptions) (minio.UploadInfo, error)
	GetObject(ctx context.Context, bucketName, objectName string, opts minio.GetObjectOptions) (*minio.Object, error)
	RemoveObject(ctx context.Context, bucketName, objectName string, opts minio.RemoveObjectOptions) error
	StatObject(ctx context.Context, bucketName, objectName string, opts minio.StatObjectOptions) (minio.ObjectInfo, error)
}

var (
	ErrClientClosed = errors.New(errors.ErrCodeInternal, "minio client is closed")
	ErrUnavailable  = errors.New(errors.CodeStorageError, "object storage unavailable")
)

// Expired export scratch space under this prefix is removed by the bucket.
const tmpPrefix = "tmp/"

// Client owns the single bucket the service writes to.
type Client struct {
	api           MinIOAPI
	bucket        string
	region        string
	presignExpiry time.Duration
	logger        logging.Logger
	mu            sync.RWMutex
	closed        bool
}

// NewClient connects, creates the bucket when missing and installs the
// scratch-space expiry rule.
func NewClient(cfg config.MinIOConfig, log logging.Logger) (*Client, error) {
	api, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeStorageError, "failed to create minio client")
	}
	c := NewClientWithAPI(api, cfg, log)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if _, err := api.ListBuckets(ctx); err != nil {
		return nil, ErrUnavailable.WithCause(err).WithDetail(cfg.Endpoint)
	}
	if err := c.EnsureBucket(ctx); err != nil {
		return nil, err
	}
	c.setupLifecycle(ctx)

	log.Info("MinIO client connected",
		logging.String("endpoint", cfg.Endpoint),
		logging.String("bucket", c.bucket),
		logging.Bool("ssl", cfg.UseSSL))
	return c, nil
}

// NewClientWithAPI wraps an existing API implementation without any network calls.
func NewClientWithAPI(api MinIOAPI, cfg config.MinIOConfig, log logging.Logger) *Client {
	if log == nil {
		log = logging.NewNopLogger()
	}
	applyDefaults(&cfg)
	return &Client{
		api:           api,
		bucket:        cfg.Bucket,
		region:        cfg.Region,
		presignExpiry: cfg.PresignExpiry,
		logger:        log,
	}
}

func applyDefaults(cfg *config.MinIOConfig) {
	if cfg.Region == "" {
		cfg.Region = "us-east-1"
	}
	if cfg.Bucket == "" {
		cfg.Bucket = "landlordcomply-documents"
	}
	if cfg.PresignExpiry == 0 {
		cfg.PresignExpiry = 15 * time.Minute
	}
}

func (c *Client) Bucket() string { return c.bucket }

func (c *Client) EnsureBucket(ctx context.Context) error {
	exists, err := c.api.BucketExists(ctx, c.bucket)
	if err != nil {
		return errors.Wrap(err, errors.CodeStorageError, "failed to check bucket existence").WithDetail(c.bucket)
	}
	if exists {
		return nil
	}
	if err := c.api.MakeBucket(ctx, c.bucket, minio.MakeBucketOptions{Region: c.region}); err != nil {
		return errors.Wrap(err, errors.CodeStorageError, "failed to create bucket").WithDetail(c.bucket)
	}
	c.logger.Info("Created bucket", logging.String("bucket", c.bucket))
	return nil
}

func (c *Client) setupLifecycle(ctx context.Context) {
	cfg := lifecycle.NewConfiguration()
	cfg.Rules = []lifecycle.Rule{{
		ID:         "tmp-cleanup",
		Status:     "Enabled",
		RuleFilter: lifecycle.Filter{Prefix: tmpPrefix},
		Expiration: lifecycle.Expiration{Days: 1},
	}}
	if err := c.api.SetBucketLifecycle(ctx, c.bucket, cfg); err != nil {
		c.logger.Warn("Failed to set bucket lifecycle", logging.String("bucket", c.bucket), logging.Err(err))
	}
}

// HealthCheck verifies the endpoint answers and the bucket exists.
func (c *Client) HealthCheck(ctx context.Context) error {
	if c.isClosed() {
		return ErrClientClosed
	}
	exists, err := c.api.BucketExists(ctx, c.bucket)
	if err != nil {
		return ErrUnavailable.WithCause(err)
	}
	if !exists {
		return ErrUnavailable.WithDetail("bucket " + c.bucket + " missing")
	}
	return nil
}

func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

func (c *Client) isClosed() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.closed
}
