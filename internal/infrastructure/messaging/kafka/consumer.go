package kafka

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/landlordcomply/landlordcomply/internal/config"
	"github.com/landlordcomply/landlordcomply/internal/infrastructure/monitoring/logging"
	"github.com/landlordcomply/landlordcomply/pkg/errors"
)

var ErrAlreadyRunning = errors.New(errors.ErrCodeConflict, "consumer already running")

// Handler processes one message. A returned error triggers retries, then
// the dead-letter topic.
type Handler func(ctx context.Context, msg *Message) error

// RetryPolicy controls redelivery of a failing message.
type RetryPolicy struct {
	MaxRetries int
	Backoff    time.Duration
	MaxBackoff time.Duration
}

// ConsumerMetrics holds consumer metrics.
type ConsumerMetrics struct {
	MessagesConsumed     atomic.Int64
	MessagesProcessed    atomic.Int64
	MessagesFailed       atomic.Int64
	MessagesRetried      atomic.Int64
	MessagesDeadLettered atomic.Int64
	Lag                  atomic.Int64
}

// ReaderInterface abstracts kafka.Reader for testing.
type ReaderInterface interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Consumer runs a fetch-handle-commit loop over a consumer group. Offsets
// are committed after the handler finishes, whether it succeeded or the
// message was dead-lettered, so one poisoned record cannot stall a partition.
type Consumer struct {
	reader      ReaderInterface
	deadLetter  *Producer
	dlTopic     string
	topicPrefix string
	retry       RetryPolicy
	logger      logging.Logger

	handlers map[string]Handler
	mu       sync.RWMutex

	running atomic.Bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	metrics *ConsumerMetrics
}

// NewConsumer joins cfg.GroupID and reads the given (unprefixed) topics.
func NewConsumer(cfg config.KafkaConfig, topics []string, logger logging.Logger) (*Consumer, error) {
	if err := ValidateConsumerConfig(cfg, topics); err != nil {
		return nil, err
	}
	full := make([]string, len(topics))
	for i, t := range topics {
		full[i] = TopicName(cfg.TopicPrefix, t)
	}
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:        cfg.Brokers,
		GroupID:        cfg.GroupID,
		GroupTopics:    full,
		MinBytes:       1,
		MaxBytes:       10 * 1024 * 1024,
		MaxWait:        time.Second,
		StartOffset:    kafka.FirstOffset,
		SessionTimeout: 30 * time.Second,
		Dialer:         &kafka.Dialer{Timeout: 10 * time.Second, DualStack: true, ClientID: cfg.ClientID},
	})

	dl, err := NewProducer(cfg, logger, WithSource(cfg.ClientID))
	if err != nil {
		_ = reader.Close()
		return nil, err
	}
	c := NewConsumerWithReader(reader, cfg.TopicPrefix, logger)
	c.deadLetter = dl
	c.dlTopic = TopicName(cfg.TopicPrefix, TopicDeadLetter)
	c.retry.MaxRetries = cfg.MaxRetries
	return c, nil
}

// NewConsumerWithReader wraps an existing reader with no dead-letter topic.
func NewConsumerWithReader(r ReaderInterface, topicPrefix string, logger logging.Logger) *Consumer {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &Consumer{
		reader:      r,
		topicPrefix: topicPrefix,
		retry:       RetryPolicy{MaxRetries: 3, Backoff: time.Second, MaxBackoff: 30 * time.Second},
		logger:      logger,
		handlers:    make(map[string]Handler),
		metrics:     &ConsumerMetrics{},
	}
}

// SetRetryPolicy replaces the retry policy; zero fields keep their values.
func (c *Consumer) SetRetryPolicy(p RetryPolicy) {
	if p.MaxRetries >= 0 {
		c.retry.MaxRetries = p.MaxRetries
	}
	if p.Backoff > 0 {
		c.retry.Backoff = p.Backoff
	}
	if p.MaxBackoff > 0 {
		c.retry.MaxBackoff = p.MaxBackoff
	}
}

// Subscribe registers handler for the unprefixed topic.
func (c *Consumer) Subscribe(topic string, handler Handler) {
	full := TopicName(c.topicPrefix, topic)
	c.mu.Lock()
	c.handlers[full] = handler
	c.mu.Unlock()
	c.logger.Info("Subscribed to topic", logging.String("topic", full))
}

// Start launches the consume loop and returns immediately.
func (c *Consumer) Start(ctx context.Context) error {
	if c.running.Swap(true) {
		return ErrAlreadyRunning
	}
	ctx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	c.wg.Add(1)
	go c.consumeLoop(ctx)
	c.logger.Info("Kafka consumer started")
	return nil
}

func (c *Consumer) consumeLoop(ctx context.Context) {
	defer c.wg.Done()
	for {
		if ctx.Err() != nil {
			return
		}
		m, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			c.logger.Error("FetchMessage failed", logging.Err(err))
			select {
			case <-ctx.Done():
				return
			case <-time.After(time.Second):
			}
			continue
		}

		c.metrics.MessagesConsumed.Add(1)
		if m.HighWaterMark > 0 {
			c.metrics.Lag.Store(m.HighWaterMark - m.Offset - 1)
		}
		msg := fromKafkaMessage(m)

		c.mu.RLock()
		handler, ok := c.handlers[m.Topic]
		c.mu.RUnlock()

		if !ok {
			c.logger.Warn("No handler for topic", logging.String("topic", m.Topic))
		} else if err := c.processMessage(ctx, msg, handler); err != nil {
			c.metrics.MessagesFailed.Add(1)
		} else {
			c.metrics.MessagesProcessed.Add(1)
		}

		if ctx.Err() != nil {
			return
		}
		if err := c.reader.CommitMessages(ctx, m); err != nil {
			c.logger.Error("CommitMessages failed", logging.Err(err), logging.String("topic", m.Topic))
		}
	}
}

func (c *Consumer) processMessage(ctx context.Context, msg *Message, handler Handler) error {
	err := handler(ctx, msg)
	if err == nil {
		return nil
	}

	backoff := c.retry.Backoff
	for i := 0; i < c.retry.MaxRetries; i++ {
		c.metrics.MessagesRetried.Add(1)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
		if err = handler(ctx, msg); err == nil {
			return nil
		}
		backoff *= 2
		if backoff > c.retry.MaxBackoff {
			backoff = c.retry.MaxBackoff
		}
	}

	c.logger.Error("Message processing failed after retries",
		logging.String("topic", msg.Topic),
		logging.Int64("offset", msg.Offset),
		logging.Err(err))

	if c.deadLetter != nil {
		headers := make(map[string]string, len(msg.Headers)+2)
		for k, v := range msg.Headers {
			headers[k] = v
		}
		headers[headerOriginalTopic] = msg.Topic
		headers[headerErrorMessage] = err.Error()
		dl := &Message{Topic: c.dlTopic, Key: msg.Key, Value: msg.Value, Headers: headers}
		if dlErr := c.deadLetter.Publish(ctx, dl); dlErr != nil {
			c.logger.Error("Failed to dead-letter message", logging.Err(dlErr))
		} else {
			c.metrics.MessagesDeadLettered.Add(1)
		}
	}
	return err
}

// Processed and Failed expose counters for tests and health output.
func (c *Consumer) Processed() int64 { return c.metrics.MessagesProcessed.Load() }
func (c *Consumer) Failed() int64    { return c.metrics.MessagesFailed.Load() }

// Close stops the loop and waits for the in-flight message.
func (c *Consumer) Close() error {
	if !c.running.CompareAndSwap(true, false) {
		return nil
	}
	if c.cancel != nil {
		c.cancel()
	}
	c.wg.Wait()
	err := c.reader.Close()
	if c.deadLetter != nil {
		_ = c.deadLetter.Close()
	}
	c.logger.Info("Kafka consumer closed", logging.Int64("consumed", c.metrics.MessagesConsumed.Load()))
	return err
}

func fromKafkaMessage(m kafka.Message) *Message {
	msg := &Message{
		Topic:     m.Topic,
		Partition: m.Partition,
		Offset:    m.Offset,
		Key:       m.Key,
		Value:     m.Value,
		Timestamp: m.Time,
		Headers:   make(map[string]string, len(m.Headers)),
	}
	for _, h := range m.Headers {
		msg.Headers[h.Key] = string(h.Value)
	}
	return msg
}

func ValidateConsumerConfig(cfg config.KafkaConfig, topics []string) error {
	if len(cfg.Brokers) == 0 {
		return errors.New(errors.ErrCodeValidation, "brokers required")
	}
	if cfg.GroupID == "" {
		return errors.New(errors.ErrCodeValidation, "group_id required")
	}
	if len(topics) == 0 {
		return errors.New(errors.ErrCodeValidation, "at least one topic required")
	}
	return nil
}
