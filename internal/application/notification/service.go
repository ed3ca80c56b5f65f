// Package notification accepts requests to email a generated document to a
// tenant and delivers them asynchronously through Kafka.
package notification

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"net/mail"
	"strings"
	"time"

	"github.com/landlordcomply/landlordcomply/internal/application/cases"
	"github.com/landlordcomply/landlordcomply/internal/domain/disposition"
	"github.com/landlordcomply/landlordcomply/internal/infrastructure/database/redis"
	"github.com/landlordcomply/landlordcomply/internal/infrastructure/messaging/kafka"
	"github.com/landlordcomply/landlordcomply/internal/infrastructure/monitoring/logging"
	"github.com/landlordcomply/landlordcomply/internal/infrastructure/monitoring/prometheus"
	"github.com/landlordcomply/landlordcomply/pkg/errors"
)

const (
	defaultMaxPerWindow = 5
	defaultWindow       = time.Hour
)

// DocumentLinker resolves an owned document to a download link.
type DocumentLinker interface {
	GetDocumentURL(ctx context.Context, userID, caseID, documentID string) (*cases.DocumentLink, error)
}

// AuditRecorder appends to a case's audit trail.
type AuditRecorder interface {
	AppendAuditEvent(ctx context.Context, e *disposition.AuditEvent) error
}

// EmailRequest is the body of an email request.
type EmailRequest struct {
	Email string `json:"email"`
}

// EmailReceipt acknowledges an accepted request.
type EmailReceipt struct {
	CaseID     string    `json:"case_id"`
	DocumentID string    `json:"document_id"`
	Recipient  string    `json:"recipient"`
	Remaining  int       `json:"remaining"`
	QueuedAt   time.Time `json:"queued_at"`
}

// Service queues document emails.
type Service interface {
	RequestDocumentEmail(ctx context.Context, userID, caseID, documentID, email string) (*EmailReceipt, error)
}

type notificationServiceImpl struct {
	documents DocumentLinker
	audit     AuditRecorder
	limiter   redis.RateLimiter
	publisher kafka.Publisher
	metrics   *prometheus.AppMetrics
	logger    logging.Logger
	now       func() time.Time
	max       int
	window    time.Duration
}

// Option configures the service.
type Option func(*notificationServiceImpl)

// WithLimit sets how many emails one recipient, and one document, may
// receive per window.
func WithLimit(max int, window time.Duration) Option {
	return func(s *notificationServiceImpl) {
		if max > 0 {
			s.max = max
		}
		if window > 0 {
			s.window = window
		}
	}
}

func WithMetrics(m *prometheus.AppMetrics) Option {
	return func(s *notificationServiceImpl) { s.metrics = m }
}

func WithClock(now func() time.Time) Option {
	return func(s *notificationServiceImpl) { s.now = now }
}

// NewService constructs the notification service. limiter may be nil, in
// which case requests are never throttled.
func NewService(documents DocumentLinker, audit AuditRecorder, limiter redis.RateLimiter, publisher kafka.Publisher, log logging.Logger, opts ...Option) Service {
	if log == nil {
		log = logging.NewNopLogger()
	}
	s := &notificationServiceImpl{
		documents: documents,
		audit:     audit,
		limiter:   limiter,
		publisher: publisher,
		metrics:   prometheus.NewNopMetrics(),
		logger:    log.Named("notification"),
		now:       time.Now,
		max:       defaultMaxPerWindow,
		window:    defaultWindow,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.publisher == nil {
		s.publisher = kafka.NewNopPublisher(s.logger)
	}
	return s
}

// RecipientKey is the rate-limit key of an address. Only the hash of the
// lowercased address is stored.
func RecipientKey(email string) string {
	sum := sha256.Sum256([]byte(strings.ToLower(strings.TrimSpace(email))))
	return "email:to:" + hex.EncodeToString(sum[:])
}

func documentKey(documentID string) string {
	return "email:doc:" + documentID
}

func (s *notificationServiceImpl) RequestDocumentEmail(ctx context.Context, userID, caseID, documentID, email string) (*EmailReceipt, error) {
	if userID == "" {
		return nil, errors.Unauthorized("authentication required")
	}
	addr, err := mail.ParseAddress(strings.TrimSpace(email))
	if err != nil {
		return nil, errors.InvalidParam("a valid email address is required").WithDetail(email)
	}
	recipient := strings.ToLower(addr.Address)

	link, err := s.documents.GetDocumentURL(ctx, userID, caseID, documentID)
	if err != nil {
		return nil, err
	}

	remaining, err := s.allow(ctx, RecipientKey(recipient), documentKey(link.Document.ID))
	if err != nil {
		return nil, err
	}

	now := s.now()
	ev := disposition.NewAuditEvent(caseID, disposition.ActionEmailRequested,
		"Document email requested", userID,
		map[string]any{
			"document_id":      link.Document.ID,
			"document_type":    string(link.Document.Type),
			"recipient_sha256": strings.TrimPrefix(RecipientKey(recipient), "email:to:"),
		}, now)
	if s.audit != nil {
		if err := s.audit.AppendAuditEvent(ctx, ev); err != nil {
			return nil, err
		}
	}

	err = s.publisher.PublishEvent(ctx, kafka.TopicEmailRequested, caseID, kafka.TopicEmailRequested, kafka.EmailRequestedPayload{
		CaseID:       caseID,
		DocumentID:   link.Document.ID,
		DocumentType: string(link.Document.Type),
		UserID:       userID,
		Recipient:    recipient,
		DownloadURL:  link.URL,
	})
	if err != nil {
		s.metrics.RecordError("notification", string(errors.GetCode(err)))
		return nil, errors.Wrap(err, errors.ErrCodeMessagingError, "failed to queue email")
	}
	s.metrics.EmailsRequestedTotal.WithLabelValues().Inc()
	s.logger.Info("Document email queued",
		logging.CaseID(caseID), logging.UserID(userID), logging.String("document_id", link.Document.ID))

	return &EmailReceipt{
		CaseID:     caseID,
		DocumentID: link.Document.ID,
		Recipient:  recipient,
		Remaining:  remaining,
		QueuedAt:   now.UTC(),
	}, nil
}

// allow counts one hit against both the recipient and the document window
// and returns what is left of the tighter one. A refusal by either leaves
// both untouched.
func (s *notificationServiceImpl) allow(ctx context.Context, recipientKey, docKey string) (int, error) {
	if s.limiter == nil {
		return s.max, nil
	}
	d, err := s.limiter.AllowAll(ctx, []string{recipientKey, docKey}, s.max, s.window)
	if err != nil {
		return 0, err
	}
	if !d.Allowed {
		scope := "email_recipient"
		if d.Key == docKey {
			scope = "email_document"
		}
		s.metrics.RecordRateLimitRejection(scope)
		return 0, errors.RateLimit("too many email requests, try again later").
			WithField("scope", scope).
			WithField("retry_after_seconds", int(d.ResetIn.Round(time.Second).Seconds()))
	}
	return d.Remaining, nil
}
