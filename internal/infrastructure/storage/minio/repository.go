package minio

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/url"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"

	"github.com/landlordcomply/landlordcomply/internal/infrastructure/monitoring/logging"
	"github.com/landlordcomply/landlordcomply/pkg/errors"
)

var (
	ErrObjectNotFound = errors.New(errors.ErrCodeDocumentNotFound, "object not found")
	ErrInvalidRequest = errors.New(errors.ErrCodeValidation, "invalid object request")
)

// DocumentStore persists rendered documents by object key.
type DocumentStore interface {
	Put(ctx context.Context, obj *PutRequest) (*ObjectInfo, error)
	Get(ctx context.Context, key string) ([]byte, error)
	Exists(ctx context.Context, key string) (bool, error)
	Delete(ctx context.Context, key string) error
	// PresignedURL returns a time-limited GET link. A non-empty filename
	// makes browsers download rather than display the object.
	PresignedURL(ctx context.Context, key, filename string, expiry time.Duration) (string, error)
}

type PutRequest struct {
	Key         string
	Data        []byte
	ContentType string
	Metadata    map[string]string
}

type ObjectInfo struct {
	Key          string
	ETag         string
	Size         int64
	ContentType  string
	LastModified time.Time
}

// ObjectKey lays documents out per case: cases/<case>/<kind>/<id>.<ext>.
func ObjectKey(caseID, kind, docID, ext string) string {
	return fmt.Sprintf("cases/%s/%s/%s.%s", caseID, strings.ToLower(kind), docID, strings.TrimPrefix(ext, "."))
}

type documentStore struct {
	client *Client
	logger logging.Logger
}

func NewDocumentStore(client *Client, log logging.Logger) DocumentStore {
	if log == nil {
		log = client.logger
	}
	return &documentStore{client: client, logger: log}
}

func (s *documentStore) Put(ctx context.Context, req *PutRequest) (*ObjectInfo, error) {
	if s.client.isClosed() {
		return nil, ErrClientClosed
	}
	if req == nil || req.Key == "" || len(req.Data) == 0 {
		return nil, ErrInvalidRequest
	}
	contentType := req.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	info, err := s.client.api.PutObject(ctx, s.client.bucket, req.Key, bytes.NewReader(req.Data), int64(len(req.Data)), minio.PutObjectOptions{
		ContentType:  contentType,
		UserMetadata: req.Metadata,
	})
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeStorageError, "upload failed").WithDetail(req.Key)
	}
	s.logger.Debug("Object stored", logging.String("key", req.Key), logging.Int64("size", info.Size))
	return &ObjectInfo{
		Key:          req.Key,
		ETag:         info.ETag,
		Size:         int64(len(req.Data)),
		ContentType:  contentType,
		LastModified: info.LastModified,
	}, nil
}

func (s *documentStore) Get(ctx context.Context, key string) ([]byte, error) {
	if s.client.isClosed() {
		return nil, ErrClientClosed
	}
	obj, err := s.client.api.GetObject(ctx, s.client.bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, s.translate(err, key, "download failed")
	}
	defer obj.Close()
	data, err := io.ReadAll(obj)
	if err != nil {
		return nil, s.translate(err, key, "download failed")
	}
	return data, nil
}

func (s *documentStore) Exists(ctx context.Context, key string) (bool, error) {
	_, err := s.client.api.StatObject(ctx, s.client.bucket, key, minio.StatObjectOptions{})
	if err == nil {
		return true, nil
	}
	if isNoSuchKey(err) {
		return false, nil
	}
	return false, errors.Wrap(err, errors.CodeStorageError, "stat failed").WithDetail(key)
}

func (s *documentStore) Delete(ctx context.Context, key string) error {
	if err := s.client.api.RemoveObject(ctx, s.client.bucket, key, minio.RemoveObjectOptions{}); err != nil {
		return s.translate(err, key, "delete failed")
	}
	return nil
}

func (s *documentStore) PresignedURL(ctx context.Context, key, filename string, expiry time.Duration) (string, error) {
	if key == "" {
		return "", ErrInvalidRequest
	}
	if expiry <= 0 {
		expiry = s.client.presignExpiry
	}
	var params url.Values
	if filename != "" {
		params = url.Values{}
		params.Set("response-content-disposition", fmt.Sprintf("attachment; filename=%q", filename))
	}
	u, err := s.client.api.PresignedGetObject(ctx, s.client.bucket, key, expiry, params)
	if err != nil {
		return "", errors.Wrap(err, errors.CodeStorageError, "presign failed").WithDetail(key)
	}
	return u.String(), nil
}

func (s *documentStore) translate(err error, key, msg string) error {
	if isNoSuchKey(err) {
		return ErrObjectNotFound.WithDetail(key)
	}
	return errors.Wrap(err, errors.CodeStorageError, msg).WithDetail(key)
}

func isNoSuchKey(err error) bool {
	return minio.ToErrorResponse(err).Code == "NoSuchKey"
}
