// Package reminders runs the periodic deadline sweep that warns landlords
// about open cases whose accounting is nearly or already overdue.
package reminders

import (
	"context"
	"time"

	"github.com/landlordcomply/landlordcomply/internal/domain/calculator"
	"github.com/landlordcomply/landlordcomply/internal/domain/disposition"
	"github.com/landlordcomply/landlordcomply/internal/infrastructure/messaging/kafka"
	"github.com/landlordcomply/landlordcomply/internal/infrastructure/monitoring/logging"
	"github.com/landlordcomply/landlordcomply/internal/infrastructure/monitoring/prometheus"
)

const (
	defaultWindowDays = 7
	defaultBatchSize  = 500
	markerTTL         = 48 * time.Hour
)

// CaseLister finds open cases by due date.
type CaseLister interface {
	ListOpenCasesDueBefore(ctx context.Context, cutoff time.Time, limit int) ([]*disposition.Case, error)
}

// Marker records that a reminder went out. SetNX reports false when the
// key already exists; Del releases a marker whose reminder was not sent.
type Marker interface {
	SetNX(ctx context.Context, key string, value interface{}, ttl time.Duration) (bool, error)
	Del(ctx context.Context, keys ...string) error
}

// Config tunes the sweep.
type Config struct {
	Interval   time.Duration
	WindowDays int
	BatchSize  int
}

// Result summarises one sweep.
type Result struct {
	Scanned   int
	Sent      int
	Skipped   int
	Failed    int
	ByUrgency map[calculator.Urgency]int
}

// Sweeper publishes deadline reminders.
type Sweeper struct {
	cases     CaseLister
	marker    Marker
	publisher kafka.Publisher
	metrics   *prometheus.AppMetrics
	logger    logging.Logger
	cfg       Config
	now       func() time.Time
}

func NewSweeper(cases CaseLister, marker Marker, publisher kafka.Publisher, cfg Config, metrics *prometheus.AppMetrics, log logging.Logger) *Sweeper {
	if log == nil {
		log = logging.NewNopLogger()
	}
	if metrics == nil {
		metrics = prometheus.NewNopMetrics()
	}
	if cfg.WindowDays <= 0 {
		cfg.WindowDays = defaultWindowDays
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = defaultBatchSize
	}
	if cfg.Interval <= 0 {
		cfg.Interval = time.Hour
	}
	return &Sweeper{
		cases:     cases,
		marker:    marker,
		publisher: publisher,
		metrics:   metrics,
		logger:    log.Named("reminders"),
		cfg:       cfg,
		now:       time.Now,
	}
}

// SetClock replaces the sweeper's clock.
func (s *Sweeper) SetClock(now func() time.Time) { s.now = now }

// MarkerKey is the once-per-day dedupe key of a case.
func MarkerKey(caseID string, day time.Time) string {
	return "reminder:" + caseID + ":" + day.UTC().Format("20060102")
}

// Sweep runs one pass. Publish and marker failures are counted and logged;
// only a failure to list cases aborts the pass.
func (s *Sweeper) Sweep(ctx context.Context) (*Result, error) {
	start := time.Now()
	defer func() {
		s.metrics.SweepDuration.WithLabelValues().Observe(time.Since(start).Seconds())
	}()

	now := s.now()
	due, err := s.cases.ListOpenCasesDueBefore(ctx, now.AddDate(0, 0, s.cfg.WindowDays), s.cfg.BatchSize)
	if err != nil {
		s.metrics.RecordError("reminders", "list_failed")
		return nil, err
	}

	res := &Result{Scanned: len(due), ByUrgency: map[calculator.Urgency]int{}}
	for _, c := range due {
		if ctx.Err() != nil {
			return res, ctx.Err()
		}
		summary := calculator.Summarize(c.DueDate, now)
		res.ByUrgency[summary.Urgency]++
		if summary.Urgency != calculator.UrgencyCritical && summary.Urgency != calculator.UrgencyOverdue {
			continue
		}

		key := MarkerKey(c.ID, now)
		first, err := s.marker.SetNX(ctx, key, now.Unix(), markerTTL)
		if err != nil {
			res.Failed++
			s.logger.Warn("Reminder marker unavailable", logging.CaseID(c.ID), logging.Err(err))
			continue
		}
		if !first {
			res.Skipped++
			continue
		}

		err = s.publisher.PublishEvent(ctx, kafka.TopicDeadlineReminder, c.ID, kafka.TopicDeadlineReminder, kafka.DeadlineReminderPayload{
			CaseID:   c.ID,
			UserID:   c.UserID,
			DueDate:  c.DueDate,
			DaysLeft: summary.DaysLeft,
			Urgency:  string(summary.Urgency),
		})
		if err != nil {
			res.Failed++
			s.logger.Warn("Failed to publish reminder", logging.CaseID(c.ID), logging.Err(err))
			// Release the marker so the next pass retries today.
			if derr := s.marker.Del(ctx, key); derr != nil {
				s.logger.Warn("Failed to release reminder marker", logging.CaseID(c.ID), logging.Err(derr))
			}
			continue
		}
		res.Sent++
		s.metrics.RemindersSentTotal.WithLabelValues(string(summary.Urgency)).Inc()
	}

	gauges := map[string]int{}
	for _, u := range []calculator.Urgency{calculator.UrgencyOverdue, calculator.UrgencyCritical, calculator.UrgencyWarning, calculator.UrgencyNormal} {
		gauges[string(u)] = res.ByUrgency[u]
	}
	s.metrics.SetRemindersDue(gauges)

	s.logger.Info("Deadline sweep finished",
		logging.Int("scanned", res.Scanned), logging.Int("sent", res.Sent),
		logging.Int("skipped", res.Skipped), logging.Int("failed", res.Failed))
	return res, nil
}

// Run sweeps immediately and then on every interval until ctx is done.
func (s *Sweeper) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()
	for {
		if _, err := s.Sweep(ctx); err != nil && ctx.Err() == nil {
			s.logger.Error("Deadline sweep failed", logging.Err(err))
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}
