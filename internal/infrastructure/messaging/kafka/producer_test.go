package kafka

import (
	"context"
	stderrors "errors"
	"testing"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/landlordcomply/landlordcomply/internal/config"
	"github.com/landlordcomply/landlordcomply/internal/infrastructure/monitoring/logging"
	"github.com/landlordcomply/landlordcomply/pkg/errors"
)

type mockKafkaWriter struct {
	writeFunc func(ctx context.Context, msgs ...kafka.Message) error
	written   []kafka.Message
	closed    bool
}

func (m *mockKafkaWriter) WriteMessages(ctx context.Context, msgs ...kafka.Message) error {
	if m.writeFunc != nil {
		if err := m.writeFunc(ctx, msgs...); err != nil {
			return err
		}
	}
	m.written = append(m.written, msgs...)
	return nil
}

func (m *mockKafkaWriter) Close() error {
	m.closed = true
	return nil
}

func (m *mockKafkaWriter) Stats() kafka.WriterStats { return kafka.WriterStats{} }

func headerValue(m kafka.Message, key string) string {
	for _, h := range m.Headers {
		if h.Key == key {
			return string(h.Value)
		}
	}
	return ""
}

func TestValidateProducerConfig(t *testing.T) {
	assert.NoError(t, ValidateProducerConfig(config.KafkaConfig{Brokers: []string{"localhost:9092"}}))
	assert.Error(t, ValidateProducerConfig(config.KafkaConfig{}))
	assert.Error(t, ValidateProducerConfig(config.KafkaConfig{Brokers: []string{"b"}, MaxRetries: -1}))
}

func TestPublish_Success(t *testing.T) {
	w := &mockKafkaWriter{}
	p := NewProducerWithWriter(w, "", nil)

	err := p.Publish(context.Background(), &Message{Topic: "t", Key: []byte("k"), Value: []byte("v")})
	require.NoError(t, err)
	require.Len(t, w.written, 1)
	assert.Equal(t, "t", w.written[0].Topic)
	assert.Equal(t, "k", string(w.written[0].Key))
	assert.False(t, w.written[0].Time.IsZero())

	sent, failed, bytes := p.Stats()
	assert.Equal(t, int64(1), sent)
	assert.Equal(t, int64(0), failed)
	assert.Equal(t, int64(1), bytes)
}

func TestPublish_Validation(t *testing.T) {
	p := NewProducerWithWriter(&mockKafkaWriter{}, "", nil)
	assert.True(t, errors.IsCode(p.Publish(context.Background(), &Message{Value: []byte("v")}), errors.ErrCodeValidation))
	assert.True(t, errors.IsCode(p.Publish(context.Background(), &Message{Topic: "t"}), errors.ErrCodeValidation))

	big := make([]byte, defaultMaxMessageBytes+1)
	assert.True(t, errors.IsCode(p.Publish(context.Background(), &Message{Topic: "t", Value: big}), errors.ErrCodeValidation))
}

func TestPublish_WriterFailure(t *testing.T) {
	w := &mockKafkaWriter{writeFunc: func(context.Context, ...kafka.Message) error { return stderrors.New("broker down") }}
	var observed []string
	p := NewProducerWithWriter(w, "", nil, WithObserver(func(topic string, err error) {
		if err != nil {
			observed = append(observed, topic)
		}
	}))

	err := p.Publish(context.Background(), &Message{Topic: "t", Value: []byte("v")})
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.CodeMessageQueueError))
	assert.Equal(t, []string{"t"}, observed)
	_, failed, _ := p.Stats()
	assert.Equal(t, int64(1), failed)
}

func TestPublishEvent_PrefixesTopicAndWrapsEnvelope(t *testing.T) {
	w := &mockKafkaWriter{}
	p := NewProducerWithWriter(w, "prod", nil, WithSource("apiserver"))
	ctx := logging.ContextWithRequestID(context.Background(), "req-1")

	err := p.PublishEvent(ctx, TopicCaseCreated, "case-1", "CASE_CREATED", CaseCreatedPayload{CaseID: "case-1", DepositAmount: 1500})
	require.NoError(t, err)
	require.Len(t, w.written, 1)

	m := w.written[0]
	assert.Equal(t, "prod.case.created", m.Topic)
	assert.Equal(t, "case-1", string(m.Key))
	assert.Equal(t, "CASE_CREATED", headerValue(m, headerEventType))
	assert.Equal(t, "req-1", headerValue(m, headerRequestID))

	env, err := DecodeEnvelope(&Message{Value: m.Value})
	require.NoError(t, err)
	assert.Equal(t, "apiserver", env.Source)
	assert.Equal(t, SchemaVersion, env.SchemaVersion)

	var payload CaseCreatedPayload
	require.NoError(t, env.DecodePayload(&payload))
	assert.Equal(t, 1500.0, payload.DepositAmount)
}

func TestProducerClose(t *testing.T) {
	w := &mockKafkaWriter{}
	p := NewProducerWithWriter(w, "", nil)
	require.NoError(t, p.Close())
	require.NoError(t, p.Close())
	assert.True(t, w.closed)

	err := p.Publish(context.Background(), &Message{Topic: "t", Value: []byte("v")})
	assert.ErrorIs(t, err, ErrProducerClosed)
}

func TestNopPublisher(t *testing.T) {
	var p Publisher = NewNopPublisher(nil)
	assert.NoError(t, p.PublishEvent(context.Background(), TopicAudit, "k", "X", struct{}{}))
	assert.NoError(t, p.Close())
}
