package kafka

import (
	"context"
	"fmt"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"

	"github.com/landlordcomply/landlordcomply/internal/infrastructure/monitoring/logging"
	"github.com/landlordcomply/landlordcomply/pkg/errors"
)

// Topic names before the configured prefix is applied.
const (
	TopicCaseCreated          = "case.created"
	TopicCaseStatusChanged    = "case.status_changed"
	TopicAudit                = "audit"
	TopicEmailRequested       = "notification.email_requested"
	TopicDeadlineReminder     = "deadline.reminder"
	TopicDeadLetter           = "dead_letter"
	SchemaVersion             = "v1"
	defaultReplicationFactor  = 1
	headerEventType           = "event_type"
	headerSource              = "source_service"
	headerSchemaVersion       = "schema_version"
	headerOriginalTopic       = "original_topic"
	headerErrorMessage        = "error_message"
	headerRequestID           = "request_id"
	defaultAuditRetention     = 365 * 24 * time.Hour
	defaultEventRetention     = 30 * 24 * time.Hour
	defaultTransientRetention = 3 * 24 * time.Hour
)

// TopicName joins prefix and name with a dot; an empty prefix leaves name as is.
func TopicName(prefix, name string) string {
	if prefix == "" {
		return name
	}
	return prefix + "." + name
}

// EventEnvelope wraps every event payload on the wire.
type EventEnvelope struct {
	EventID       string            `json:"event_id"`
	EventType     string            `json:"event_type"`
	Source        string            `json:"source"`
	Timestamp     time.Time         `json:"timestamp"`
	SchemaVersion string            `json:"schema_version"`
	RequestID     string            `json:"request_id,omitempty"`
	Payload       json.RawMessage   `json:"payload"`
	Metadata      map[string]string `json:"metadata,omitempty"`
}

type CaseCreatedPayload struct {
	CaseID         string    `json:"case_id"`
	UserID         string    `json:"user_id"`
	PropertyID     string    `json:"property_id"`
	JurisdictionID string    `json:"jurisdiction_id"`
	RuleSetID      string    `json:"rule_set_id"`
	DueDate        time.Time `json:"due_date"`
	DepositAmount  float64   `json:"deposit_amount"`
}

type StatusChangedPayload struct {
	CaseID         string     `json:"case_id"`
	UserID         string     `json:"user_id"`
	From           string     `json:"from"`
	To             string     `json:"to"`
	DeliveryMethod string     `json:"delivery_method,omitempty"`
	SentAt         *time.Time `json:"sent_at,omitempty"`
	Actor          string     `json:"actor"`
}

type AuditPayload struct {
	EventID     string                 `json:"event_id"`
	CaseID      string                 `json:"case_id"`
	Action      string                 `json:"action"`
	Description string                 `json:"description"`
	Actor       string                 `json:"actor"`
	Metadata    map[string]interface{} `json:"metadata,omitempty"`
	CreatedAt   time.Time              `json:"created_at"`
}

type EmailRequestedPayload struct {
	CaseID       string `json:"case_id"`
	DocumentID   string `json:"document_id"`
	DocumentType string `json:"document_type"`
	UserID       string `json:"user_id"`
	Recipient    string `json:"recipient"`
	DownloadURL  string `json:"download_url"`
}

type DeadlineReminderPayload struct {
	CaseID   string    `json:"case_id"`
	UserID   string    `json:"user_id"`
	DueDate  time.Time `json:"due_date"`
	DaysLeft int       `json:"days_left"`
	Urgency  string    `json:"urgency"`
}

// NewEventEnvelope encodes payload into a fresh envelope stamped now.
func NewEventEnvelope(eventType, source string, payload interface{}) (*EventEnvelope, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeSerialization, "failed to marshal payload")
	}
	return &EventEnvelope{
		EventID:       uuid.NewString(),
		EventType:     eventType,
		Source:        source,
		Timestamp:     time.Now().UTC(),
		SchemaVersion: SchemaVersion,
		Payload:       data,
	}, nil
}

func (e *EventEnvelope) DecodePayload(target interface{}) error {
	if len(e.Payload) == 0 || string(e.Payload) == "null" {
		return errors.New(errors.ErrCodeValidation, "envelope has no payload")
	}
	if err := json.Unmarshal(e.Payload, target); err != nil {
		return errors.Wrap(err, errors.ErrCodeSerialization, "failed to decode payload")
	}
	return nil
}

// ToMessage renders the envelope as a message keyed by key.
func (e *EventEnvelope) ToMessage(topic, key string) (*Message, error) {
	val, err := json.Marshal(e)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeSerialization, "failed to marshal envelope")
	}
	headers := map[string]string{
		headerEventType:     e.EventType,
		headerSource:        e.Source,
		headerSchemaVersion: e.SchemaVersion,
	}
	if e.RequestID != "" {
		headers[headerRequestID] = e.RequestID
	}
	return &Message{
		Topic:     topic,
		Key:       []byte(key),
		Value:     val,
		Headers:   headers,
		Timestamp: e.Timestamp,
	}, nil
}

// DecodeEnvelope parses a consumed message value.
func DecodeEnvelope(msg *Message) (*EventEnvelope, error) {
	if len(msg.Value) == 0 {
		return nil, errors.New(errors.ErrCodeValidation, "empty message value")
	}
	var env EventEnvelope
	if err := json.Unmarshal(msg.Value, &env); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeSerialization, "failed to unmarshal envelope")
	}
	return &env, nil
}

// TopicConfig describes a topic to create.
type TopicConfig struct {
	Name              string
	NumPartitions     int
	ReplicationFactor int
	Retention         time.Duration
	CleanupPolicy     string
}

// ConnInterface abstracts kafka.Conn for testing.
type ConnInterface interface {
	CreateTopics(topics ...kafka.TopicConfig) error
	ReadPartitions(topics ...string) ([]kafka.Partition, error)
	Close() error
}

// TopicManager creates the service topics at startup when
// kafka.auto_create_topics is set.
type TopicManager struct {
	conn   ConnInterface
	logger logging.Logger
}

func NewTopicManager(brokers []string, logger logging.Logger) (*TopicManager, error) {
	if len(brokers) == 0 {
		return nil, errors.New(errors.ErrCodeValidation, "brokers required")
	}
	conn, err := kafka.Dial("tcp", brokers[0])
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeMessageQueueError, "failed to dial kafka")
	}
	return &TopicManager{conn: conn, logger: logger}, nil
}

func (m *TopicManager) CreateTopic(ctx context.Context, cfg TopicConfig) error {
	if cfg.Name == "" {
		return errors.New(errors.ErrCodeValidation, "topic name required")
	}
	if cfg.NumPartitions <= 0 {
		return errors.New(errors.ErrCodeValidation, "NumPartitions must be > 0")
	}
	if cfg.ReplicationFactor <= 0 {
		cfg.ReplicationFactor = defaultReplicationFactor
	}

	kCfg := kafka.TopicConfig{
		Topic:             cfg.Name,
		NumPartitions:     cfg.NumPartitions,
		ReplicationFactor: cfg.ReplicationFactor,
	}
	if cfg.Retention > 0 {
		kCfg.ConfigEntries = append(kCfg.ConfigEntries, kafka.ConfigEntry{
			ConfigName: "retention.ms", ConfigValue: fmt.Sprintf("%d", cfg.Retention.Milliseconds()),
		})
	}
	if cfg.CleanupPolicy != "" {
		kCfg.ConfigEntries = append(kCfg.ConfigEntries, kafka.ConfigEntry{
			ConfigName: "cleanup.policy", ConfigValue: cfg.CleanupPolicy,
		})
	}

	if err := m.conn.CreateTopics(kCfg); err != nil {
		if exists, _ := m.TopicExists(ctx, cfg.Name); exists {
			return nil
		}
		return errors.Wrap(err, errors.CodeMessageQueueError, "failed to create topic").WithDetail(cfg.Name)
	}
	m.logger.Info("Topic created", logging.String("topic", cfg.Name))
	return nil
}

func (m *TopicManager) TopicExists(_ context.Context, name string) (bool, error) {
	partitions, err := m.conn.ReadPartitions(name)
	if err != nil {
		return false, nil
	}
	return len(partitions) > 0, nil
}

func (m *TopicManager) EnsureTopics(ctx context.Context, topics []TopicConfig) error {
	for _, topic := range topics {
		if err := m.CreateTopic(ctx, topic); err != nil {
			return err
		}
	}
	return nil
}

func (m *TopicManager) Close() error {
	return m.conn.Close()
}

// DefaultTopics lists every topic the services publish to, prefixed.
func DefaultTopics(prefix string, partitions int) []TopicConfig {
	if partitions <= 0 {
		partitions = 3
	}
	return []TopicConfig{
		{Name: TopicName(prefix, TopicCaseCreated), NumPartitions: partitions, Retention: defaultEventRetention},
		{Name: TopicName(prefix, TopicCaseStatusChanged), NumPartitions: partitions, Retention: defaultEventRetention},
		{Name: TopicName(prefix, TopicAudit), NumPartitions: partitions, Retention: defaultAuditRetention},
		{Name: TopicName(prefix, TopicEmailRequested), NumPartitions: partitions, Retention: defaultTransientRetention},
		{Name: TopicName(prefix, TopicDeadlineReminder), NumPartitions: partitions, Retention: defaultTransientRetention},
		{Name: TopicName(prefix, TopicDeadLetter), NumPartitions: 1, Retention: defaultEventRetention},
	}
}
