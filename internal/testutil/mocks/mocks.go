// Package mocks holds testify mocks for the infrastructure ports the
// application services depend on. It lives apart from testutil so the
// infrastructure packages can keep using testutil in their own tests.
package mocks

import (
	"context"
	"sync"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/landlordcomply/landlordcomply/internal/infrastructure/messaging/kafka"
	"github.com/landlordcomply/landlordcomply/internal/infrastructure/storage/minio"
)

// Publisher is a mock kafka.Publisher. Use Record for a publisher that
// accepts everything and keeps the events.
type Publisher struct {
	mock.Mock

	mu     sync.Mutex
	record bool
	events []PublishedEvent
}

// PublishedEvent is one recorded PublishEvent call.
type PublishedEvent struct {
	Topic     string
	Key       string
	EventType string
	Payload   interface{}
}

// NewRecordingPublisher returns a Publisher that accepts every event.
func NewRecordingPublisher() *Publisher {
	return &Publisher{record: true}
}

func (p *Publisher) PublishEvent(ctx context.Context, topic, key, eventType string, payload interface{}) error {
	if p.record {
		p.mu.Lock()
		p.events = append(p.events, PublishedEvent{Topic: topic, Key: key, EventType: eventType, Payload: payload})
		p.mu.Unlock()
		return nil
	}
	args := p.Called(ctx, topic, key, eventType, payload)
	return args.Error(0)
}

func (p *Publisher) Close() error { return nil }

// Events returns the recorded events on topic, or all when topic is empty.
func (p *Publisher) Events(topic string) []PublishedEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []PublishedEvent
	for _, e := range p.events {
		if topic == "" || e.Topic == topic {
			out = append(out, e)
		}
	}
	return out
}

var _ kafka.Publisher = (*Publisher)(nil)

// DocumentStore is a mock minio.DocumentStore.
type DocumentStore struct {
	mock.Mock
}

func (m *DocumentStore) Put(ctx context.Context, obj *minio.PutRequest) (*minio.ObjectInfo, error) {
	args := m.Called(ctx, obj)
	switch v := args.Get(0).(type) {
	case func(context.Context, *minio.PutRequest) *minio.ObjectInfo:
		return v(ctx, obj), args.Error(1)
	case *minio.ObjectInfo:
		return v, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *DocumentStore) Get(ctx context.Context, key string) ([]byte, error) {
	args := m.Called(ctx, key)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]byte), args.Error(1)
}

func (m *DocumentStore) Exists(ctx context.Context, key string) (bool, error) {
	args := m.Called(ctx, key)
	return args.Bool(0), args.Error(1)
}

func (m *DocumentStore) Delete(ctx context.Context, key string) error {
	args := m.Called(ctx, key)
	return args.Error(0)
}

func (m *DocumentStore) PresignedURL(ctx context.Context, key, filename string, expiry time.Duration) (string, error) {
	args := m.Called(ctx, key, filename, expiry)
	return args.String(0), args.Error(1)
}

// AcceptPuts makes every Put succeed, echoing the request size.
func (m *DocumentStore) AcceptPuts() *mock.Call {
	return m.On("Put", mock.Anything, mock.Anything).Return(func(_ context.Context, obj *minio.PutRequest) *minio.ObjectInfo {
		return &minio.ObjectInfo{Key: obj.Key, Size: int64(len(obj.Data)), ContentType: obj.ContentType}
	}, nil)
}

var _ minio.DocumentStore = (*DocumentStore)(nil)
