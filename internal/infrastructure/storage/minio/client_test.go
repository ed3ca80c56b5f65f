package minio

import (
	"context"
	stderrors "errors"
	"io"
	"net/url"
	"testing"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/lifecycle"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/suite"

	"github.com/landlordcomply/landlordcomply/internal/config"
	"github.com/landlordcomply/landlordcomply/pkg/errors"
)

type MockMinIOAPI struct {
	mock.Mock
}

func (m *MockMinIOAPI) ListBuckets(ctx context.Context) ([]minio.BucketInfo, error) {
	args := m.Called(ctx)
	return args.Get(0).([]minio.BucketInfo), args.Error(1)
}

func (m *MockMinIOAPI) BucketExists(ctx context.Context, bucketName string) (bool, error) {
	args := m.Called(ctx, bucketName)
	return args.Bool(0), args.Error(1)
}

func (m *MockMinIOAPI) MakeBucket(ctx context.Context, bucketName string, opts minio.MakeBucketOptions) error {
	return m.Called(ctx, bucketName, opts).Error(0)
}

func (m *MockMinIOAPI) SetBucketLifecycle(ctx context.Context, bucketName string, cfg *lifecycle.Configuration) error {
	return m.Called(ctx, bucketName, cfg).Error(0)
}

func (m *MockMinIOAPI) PresignedGetObject(ctx context.Context, bucketName, objectName string, expiry time.Duration, reqParams url.Values) (*url.URL, error) {
	args := m.Called(ctx, bucketName, objectName, expiry, reqParams)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*url.URL), args.Error(1)
}

func (m *MockMinIOAPI) PutObject(ctx context.Context, bucketName, objectName string, reader io.Reader, objectSize int64, opts minio.PutObjectOptions) (minio.UploadInfo, error) {
	args := m.Called(ctx, bucketName, objectName, reader, objectSize, opts)
	return args.Get(0).(minio.UploadInfo), args.Error(1)
}

// GetObject can only fail here: a usable *minio.Object needs a live server.
func (m *MockMinIOAPI) GetObject(ctx context.Context, bucketName, objectName string, opts minio.GetObjectOptions) (*minio.Object, error) {
	args := m.Called(ctx, bucketName, objectName, opts)
	return nil, args.Error(1)
}

func (m *MockMinIOAPI) RemoveObject(ctx context.Context, bucketName, objectName string, opts minio.RemoveObjectOptions) error {
	return m.Called(ctx, bucketName, objectName, opts).Error(0)
}

func (m *MockMinIOAPI) StatObject(ctx context.Context, bucketName, objectName string, opts minio.StatObjectOptions) (minio.ObjectInfo, error) {
	args := m.Called(ctx, bucketName, objectName, opts)
	return args.Get(0).(minio.ObjectInfo), args.Error(1)
}

type ClientTestSuite struct {
	suite.Suite
	api    *MockMinIOAPI
	client *Client
}

func (s *ClientTestSuite) SetupTest() {
	s.api = new(MockMinIOAPI)
	s.client = NewClientWithAPI(s.api, config.MinIOConfig{Bucket: "docs"}, nil)
}

func (s *ClientTestSuite) TestDefaults() {
	c := NewClientWithAPI(s.api, config.MinIOConfig{}, nil)
	s.Equal("landlordcomply-documents", c.Bucket())
	s.Equal("us-east-1", c.region)
	s.Equal(15*time.Minute, c.presignExpiry)
}

func (s *ClientTestSuite) TestEnsureBucket_Creates() {
	s.api.On("BucketExists", mock.Anything, "docs").Return(false, nil)
	s.api.On("MakeBucket", mock.Anything, "docs", minio.MakeBucketOptions{Region: "us-east-1"}).Return(nil)

	s.NoError(s.client.EnsureBucket(context.Background()))
	s.api.AssertExpectations(s.T())
}

func (s *ClientTestSuite) TestEnsureBucket_Exists() {
	s.api.On("BucketExists", mock.Anything, "docs").Return(true, nil)

	s.NoError(s.client.EnsureBucket(context.Background()))
	s.api.AssertNotCalled(s.T(), "MakeBucket", mock.Anything, mock.Anything, mock.Anything)
}

func (s *ClientTestSuite) TestSetupLifecycle_ScopesToTmpPrefix() {
	s.api.On("SetBucketLifecycle", mock.Anything, "docs", mock.MatchedBy(func(cfg *lifecycle.Configuration) bool {
		return len(cfg.Rules) == 1 && cfg.Rules[0].RuleFilter.Prefix == tmpPrefix
	})).Return(stderrors.New("not supported"))

	// a failing lifecycle call is logged, not fatal
	s.client.setupLifecycle(context.Background())
	s.api.AssertExpectations(s.T())
}

func (s *ClientTestSuite) TestHealthCheck() {
	s.api.On("BucketExists", mock.Anything, "docs").Return(false, nil).Once()
	err := s.client.HealthCheck(context.Background())
	s.True(errors.IsCode(err, errors.CodeStorageError))

	s.api.On("BucketExists", mock.Anything, "docs").Return(true, nil).Once()
	s.NoError(s.client.HealthCheck(context.Background()))

	s.NoError(s.client.Close())
	assert.ErrorIs(s.T(), s.client.HealthCheck(context.Background()), ErrClientClosed)
}

func TestClientSuite(t *testing.T) {
	suite.Run(t, new(ClientTestSuite))
}
