// Package kafka publishes and consumes the service's domain events over
// segmentio/kafka-go.
package kafka

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/landlordcomply/landlordcomply/internal/config"
	"github.com/landlordcomply/landlordcomply/internal/infrastructure/monitoring/logging"
	"github.com/landlordcomply/landlordcomply/pkg/errors"
)

var ErrProducerClosed = errors.New(errors.ErrCodeInternal, "producer closed")

const (
	defaultSource          = "landlordcomply"
	defaultMaxMessageBytes = 1024 * 1024
)

// Message is one record to write or one record read.
type Message struct {
	Topic     string
	Partition int
	Offset    int64
	Key       []byte
	Value     []byte
	Headers   map[string]string
	Timestamp time.Time
}

// Publisher is what the application layer depends on.
type Publisher interface {
	// PublishEvent wraps payload in an EventEnvelope and writes it to the
	// prefixed topic, keyed by key (usually the case id).
	PublishEvent(ctx context.Context, topic, key, eventType string, payload interface{}) error
	Close() error
}

// PublishObserver is notified of every publish outcome; metrics hook in here.
type PublishObserver func(topic string, err error)

// ProducerMetrics holds producer metrics.
type ProducerMetrics struct {
	MessagesSent   atomic.Int64
	MessagesFailed atomic.Int64
	BytesSent      atomic.Int64
	LastLatencyMs  atomic.Int64
}

// WriterInterface abstracts kafka.Writer for testing.
type WriterInterface interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
	Stats() kafka.WriterStats
}

// Producer writes messages through a kafka.Writer.
type Producer struct {
	writer          WriterInterface
	topicPrefix     string
	source          string
	maxMessageBytes int
	logger          logging.Logger
	observer        PublishObserver
	closed          atomic.Bool
	metrics         *ProducerMetrics
}

type ProducerOption func(*Producer)

func WithObserver(o PublishObserver) ProducerOption {
	return func(p *Producer) { p.observer = o }
}

func WithSource(source string) ProducerOption {
	return func(p *Producer) { p.source = source }
}

// NewProducer builds a hash-balanced writer so all events of one case land
// on one partition in order.
func NewProducer(cfg config.KafkaConfig, logger logging.Logger, opts ...ProducerOption) (*Producer, error) {
	if err := ValidateProducerConfig(cfg); err != nil {
		return nil, err
	}
	batchTimeout := cfg.BatchTimeout
	if batchTimeout == 0 {
		batchTimeout = 10 * time.Millisecond
	}
	writer := &kafka.Writer{
		Addr:                   kafka.TCP(cfg.Brokers...),
		Balancer:               &kafka.Hash{},
		MaxAttempts:            cfg.MaxRetries + 1,
		BatchTimeout:           batchTimeout,
		WriteTimeout:           10 * time.Second,
		RequiredAcks:           kafka.RequireAll,
		AllowAutoTopicCreation: cfg.AutoCreateTopics,
		Transport:              &kafka.Transport{DialTimeout: 10 * time.Second, ClientID: cfg.ClientID},
	}
	return NewProducerWithWriter(writer, cfg.TopicPrefix, logger, opts...), nil
}

// NewProducerWithWriter wraps an existing writer.
func NewProducerWithWriter(w WriterInterface, topicPrefix string, logger logging.Logger, opts ...ProducerOption) *Producer {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	p := &Producer{
		writer:          w,
		topicPrefix:     topicPrefix,
		source:          defaultSource,
		maxMessageBytes: defaultMaxMessageBytes,
		logger:          logger,
		metrics:         &ProducerMetrics{},
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Publish writes a single message whose topic is already fully qualified.
func (p *Producer) Publish(ctx context.Context, msg *Message) error {
	if p.closed.Load() {
		return ErrProducerClosed
	}
	if msg.Topic == "" {
		return errors.New(errors.ErrCodeValidation, "topic required")
	}
	if len(msg.Value) == 0 {
		return errors.New(errors.ErrCodeValidation, "value required")
	}
	if len(msg.Value) > p.maxMessageBytes {
		return errors.New(errors.ErrCodeValidation, "message too large")
	}

	start := time.Now()
	err := p.writer.WriteMessages(ctx, toKafkaMessage(msg))
	if p.observer != nil {
		p.observer(msg.Topic, err)
	}
	if err != nil {
		p.metrics.MessagesFailed.Add(1)
		return errors.Wrap(err, errors.CodeMessageQueueError, "publish failed").WithDetail(msg.Topic)
	}

	latency := time.Since(start).Milliseconds()
	p.metrics.MessagesSent.Add(1)
	p.metrics.BytesSent.Add(int64(len(msg.Value)))
	p.metrics.LastLatencyMs.Store(latency)
	p.logger.Debug("Message published", logging.String("topic", msg.Topic), logging.Int64("latency_ms", latency))
	return nil
}

func (p *Producer) PublishEvent(ctx context.Context, topic, key, eventType string, payload interface{}) error {
	env, err := NewEventEnvelope(eventType, p.source, payload)
	if err != nil {
		return err
	}
	if rid, ok := logging.RequestIDFromContext(ctx); ok {
		env.RequestID = rid
	}
	msg, err := env.ToMessage(TopicName(p.topicPrefix, topic), key)
	if err != nil {
		return err
	}
	return p.Publish(ctx, msg)
}

// Stats returns a snapshot of the counters.
func (p *Producer) Stats() (sent, failed, bytes int64) {
	return p.metrics.MessagesSent.Load(), p.metrics.MessagesFailed.Load(), p.metrics.BytesSent.Load()
}

func (p *Producer) Close() error {
	if !p.closed.CompareAndSwap(false, true) {
		return nil
	}
	err := p.writer.Close()
	p.logger.Info("Kafka producer closed", logging.Int64("sent", p.metrics.MessagesSent.Load()))
	return err
}

func toKafkaMessage(msg *Message) kafka.Message {
	headers := make([]kafka.Header, 0, len(msg.Headers))
	for k, v := range msg.Headers {
		headers = append(headers, kafka.Header{Key: k, Value: []byte(v)})
	}
	ts := msg.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}
	return kafka.Message{
		Topic:   msg.Topic,
		Key:     msg.Key,
		Value:   msg.Value,
		Headers: headers,
		Time:    ts,
	}
}

func ValidateProducerConfig(cfg config.KafkaConfig) error {
	if len(cfg.Brokers) == 0 {
		return errors.New(errors.ErrCodeValidation, "brokers required")
	}
	if cfg.MaxRetries < 0 {
		return errors.New(errors.ErrCodeValidation, "max_retries must be >= 0")
	}
	return nil
}

// NopPublisher drops every event. Used when kafka.enabled is false.
type NopPublisher struct {
	logger logging.Logger
}

func NewNopPublisher(logger logging.Logger) *NopPublisher {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &NopPublisher{logger: logger}
}

func (n *NopPublisher) PublishEvent(_ context.Context, topic, key, eventType string, _ interface{}) error {
	n.logger.Debug("Event dropped, kafka disabled",
		logging.String("topic", topic), logging.String("key", key), logging.String("event_type", eventType))
	return nil
}

func (n *NopPublisher) Close() error { return nil }
