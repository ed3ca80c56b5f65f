package notification

import (
	"context"
	"fmt"
	"strings"

	"github.com/landlordcomply/landlordcomply/internal/infrastructure/messaging/kafka"
	"github.com/landlordcomply/landlordcomply/internal/infrastructure/monitoring/logging"
	"github.com/landlordcomply/landlordcomply/internal/infrastructure/monitoring/prometheus"
)

// Mail is one outgoing message. To is empty for messages addressed to an
// account rather than an address; UserID then names the account.
type Mail struct {
	To      string
	UserID  string
	Subject string
	Body    string
	Tags    map[string]string
}

// Mailer delivers mail.
type Mailer interface {
	Send(ctx context.Context, m *Mail) error
}

// LogMailer writes each message to the log instead of sending it.
type LogMailer struct {
	logger logging.Logger
}

func NewLogMailer(log logging.Logger) *LogMailer {
	if log == nil {
		log = logging.NewNopLogger()
	}
	return &LogMailer{logger: log.Named("mailer")}
}

func (m *LogMailer) Send(_ context.Context, mail *Mail) error {
	m.logger.Info("Mail delivered to log",
		logging.String("to", mail.To),
		logging.UserID(mail.UserID),
		logging.String("subject", mail.Subject),
		logging.Int("body_bytes", len(mail.Body)),
		logging.Any("tags", mail.Tags))
	return nil
}

// Dispatcher turns notification events into mail.
type Dispatcher struct {
	mailer  Mailer
	metrics *prometheus.AppMetrics
	logger  logging.Logger
}

func NewDispatcher(mailer Mailer, metrics *prometheus.AppMetrics, log logging.Logger) *Dispatcher {
	if log == nil {
		log = logging.NewNopLogger()
	}
	if metrics == nil {
		metrics = prometheus.NewNopMetrics()
	}
	return &Dispatcher{mailer: mailer, metrics: metrics, logger: log.Named("dispatcher")}
}

// Register subscribes the dispatcher's handlers on c.
func (d *Dispatcher) Register(c *kafka.Consumer) {
	c.Subscribe(kafka.TopicEmailRequested, d.HandleEmailRequested)
	c.Subscribe(kafka.TopicDeadlineReminder, d.HandleDeadlineReminder)
}

// HandleEmailRequested sends the download link to the requested address.
func (d *Dispatcher) HandleEmailRequested(ctx context.Context, msg *kafka.Message) error {
	var p kafka.EmailRequestedPayload
	if err := decode(msg, &p); err != nil {
		d.metrics.EmailsDispatchedTotal.WithLabelValues("invalid").Inc()
		return err
	}
	kind := strings.ReplaceAll(strings.ToLower(p.DocumentType), "_", " ")
	mail := &Mail{
		To:      p.Recipient,
		Subject: "Your security deposit " + kind,
		Body: fmt.Sprintf("A %s regarding your security deposit is available.\n\nDownload it here: %s\n\nThe link expires shortly; ask your landlord to resend it if it has.\n",
			kind, p.DownloadURL),
		Tags: map[string]string{"case_id": p.CaseID, "document_id": p.DocumentID},
	}
	return d.send(ctx, mail, p.CaseID)
}

// HandleDeadlineReminder tells the landlord a deadline is near or missed.
func (d *Dispatcher) HandleDeadlineReminder(ctx context.Context, msg *kafka.Message) error {
	var p kafka.DeadlineReminderPayload
	if err := decode(msg, &p); err != nil {
		d.metrics.EmailsDispatchedTotal.WithLabelValues("invalid").Inc()
		return err
	}
	var subject string
	if p.DaysLeft < 0 {
		subject = fmt.Sprintf("Deposit accounting overdue by %d day(s)", -p.DaysLeft)
	} else {
		subject = fmt.Sprintf("Deposit accounting due in %d day(s)", p.DaysLeft)
	}
	mail := &Mail{
		UserID:  p.UserID,
		Subject: subject,
		Body: fmt.Sprintf("Case %s must be accounted for by %s. Generate the notice, select a delivery method and send it to the tenant.\n",
			p.CaseID, p.DueDate.Format("January 2, 2006")),
		Tags: map[string]string{"case_id": p.CaseID, "urgency": p.Urgency},
	}
	return d.send(ctx, mail, p.CaseID)
}

func (d *Dispatcher) send(ctx context.Context, mail *Mail, caseID string) error {
	if err := d.mailer.Send(ctx, mail); err != nil {
		d.metrics.EmailsDispatchedTotal.WithLabelValues("failed").Inc()
		d.logger.Warn("Mail delivery failed", logging.CaseID(caseID), logging.Err(err))
		return err
	}
	d.metrics.EmailsDispatchedTotal.WithLabelValues("sent").Inc()
	return nil
}

func decode(msg *kafka.Message, target interface{}) error {
	env, err := kafka.DecodeEnvelope(msg)
	if err != nil {
		return err
	}
	return env.DecodePayload(target)
}
