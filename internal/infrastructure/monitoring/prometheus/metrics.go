package prometheus

import (
	"strconv"
	"time"
)

// AppMetrics holds every metric the services export.
type AppMetrics struct {
	HTTPRequestsTotal   CounterVec
	HTTPRequestDuration HistogramVec
	HTTPActiveRequests  GaugeVec

	CaseTransitionsTotal    CounterVec
	CasesCreatedTotal       CounterVec
	ReadinessScore          HistogramVec
	ReadinessFailedChecks   CounterVec
	DocumentsGeneratedTotal CounterVec

	RateLimitRejectionsTotal CounterVec
	EmailsRequestedTotal     CounterVec
	EmailsDispatchedTotal    CounterVec

	EventsPublishedTotal CounterVec
	RemindersDue         GaugeVec
	RemindersSentTotal   CounterVec
	SweepDuration        HistogramVec

	CacheHitsTotal   CounterVec
	CacheMissesTotal CounterVec
	DBPoolConns      GaugeVec
	ErrorsTotal      CounterVec
}

var (
	DefaultHTTPDurationBuckets = []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5}
	ReadinessScoreBuckets      = []float64{10, 20, 30, 40, 50, 60, 70, 80, 90, 100}
	SweepDurationBuckets       = []float64{.01, .05, .1, .5, 1, 5, 10, 30}
)

// NewAppMetrics registers all metrics on collector.
func NewAppMetrics(c MetricsCollector) *AppMetrics {
	return &AppMetrics{
		HTTPRequestsTotal:   c.RegisterCounter("http_requests_total", "Total HTTP requests", "method", "path", "status_code"),
		HTTPRequestDuration: c.RegisterHistogram("http_request_duration_seconds", "HTTP request duration", DefaultHTTPDurationBuckets, "method", "path"),
		HTTPActiveRequests:  c.RegisterGauge("http_active_requests", "In-flight HTTP requests", "method"),

		CaseTransitionsTotal:    c.RegisterCounter("case_transitions_total", "Case status transitions", "from", "to", "result"),
		CasesCreatedTotal:       c.RegisterCounter("cases_created_total", "Cases opened", "state"),
		ReadinessScore:          c.RegisterHistogram("readiness_score", "Readiness score of evaluated cases", ReadinessScoreBuckets),
		ReadinessFailedChecks:   c.RegisterCounter("readiness_failed_checks_total", "Failed readiness checks", "check", "severity"),
		DocumentsGeneratedTotal: c.RegisterCounter("documents_generated_total", "Generated documents", "type"),

		RateLimitRejectionsTotal: c.RegisterCounter("rate_limit_rejections_total", "Requests rejected by a rate limiter", "scope"),
		EmailsRequestedTotal:     c.RegisterCounter("emails_requested_total", "Document email requests accepted"),
		EmailsDispatchedTotal:    c.RegisterCounter("emails_dispatched_total", "Document emails handed to the mailer", "status"),

		EventsPublishedTotal: c.RegisterCounter("events_published_total", "Domain events written to Kafka", "topic", "status"),
		RemindersDue:         c.RegisterGauge("reminders_due", "Open cases by deadline urgency at the last sweep", "urgency"),
		RemindersSentTotal:   c.RegisterCounter("reminders_sent_total", "Deadline reminders published", "urgency"),
		SweepDuration:        c.RegisterHistogram("reminder_sweep_duration_seconds", "Deadline sweep duration", SweepDurationBuckets),

		CacheHitsTotal:   c.RegisterCounter("cache_hits_total", "Cache hits", "cache"),
		CacheMissesTotal: c.RegisterCounter("cache_misses_total", "Cache misses", "cache"),
		DBPoolConns:      c.RegisterGauge("db_pool_connections", "Postgres pool connections", "state"),
		ErrorsTotal:      c.RegisterCounter("errors_total", "Errors by component and code", "component", "code"),
	}
}

func (m *AppMetrics) RecordHTTPRequest(method, path string, status int, d time.Duration) {
	m.HTTPRequestsTotal.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, path).Observe(d.Seconds())
}

// RecordTransition counts an attempted transition; result is "ok" or the
// error code that refused it.
func (m *AppMetrics) RecordTransition(from, to, result string) {
	m.CaseTransitionsTotal.WithLabelValues(from, to, result).Inc()
}

func (m *AppMetrics) RecordReadiness(score int, failed map[string]string) {
	m.ReadinessScore.WithLabelValues().Observe(float64(score))
	for check, severity := range failed {
		m.ReadinessFailedChecks.WithLabelValues(check, severity).Inc()
	}
}

func (m *AppMetrics) RecordRateLimitRejection(scope string) {
	m.RateLimitRejectionsTotal.WithLabelValues(scope).Inc()
}

func (m *AppMetrics) RecordCacheAccess(cache string, hit bool) {
	if hit {
		m.CacheHitsTotal.WithLabelValues(cache).Inc()
		return
	}
	m.CacheMissesTotal.WithLabelValues(cache).Inc()
}

// PublishObserver feeds events_published_total. Its signature matches the
// Kafka producer's observer hook.
func (m *AppMetrics) PublishObserver() func(topic string, err error) {
	return func(topic string, err error) {
		status := "ok"
		if err != nil {
			status = "error"
		}
		m.EventsPublishedTotal.WithLabelValues(topic, status).Inc()
	}
}

// SetRemindersDue replaces the per-urgency gauges with counts.
func (m *AppMetrics) SetRemindersDue(counts map[string]int) {
	m.RemindersDue.Reset()
	for urgency, n := range counts {
		m.RemindersDue.WithLabelValues(urgency).Set(float64(n))
	}
}

func (m *AppMetrics) RecordError(component, code string) {
	m.ErrorsTotal.WithLabelValues(component, code).Inc()
}

// NewNopMetrics returns AppMetrics whose vectors discard everything.
func NewNopMetrics() *AppMetrics {
	return &AppMetrics{
		HTTPRequestsTotal:        noopCounterVec{},
		HTTPRequestDuration:      noopHistogramVec{},
		HTTPActiveRequests:       noopGaugeVec{},
		CaseTransitionsTotal:     noopCounterVec{},
		CasesCreatedTotal:        noopCounterVec{},
		ReadinessScore:           noopHistogramVec{},
		ReadinessFailedChecks:    noopCounterVec{},
		DocumentsGeneratedTotal:  noopCounterVec{},
		RateLimitRejectionsTotal: noopCounterVec{},
		EmailsRequestedTotal:     noopCounterVec{},
		EmailsDispatchedTotal:    noopCounterVec{},
		EventsPublishedTotal:     noopCounterVec{},
		RemindersDue:             noopGaugeVec{},
		RemindersSentTotal:       noopCounterVec{},
		SweepDuration:            noopHistogramVec{},
		CacheHitsTotal:           noopCounterVec{},
		CacheMissesTotal:         noopCounterVec{},
		DBPoolConns:              noopGaugeVec{},
		ErrorsTotal:              noopCounterVec{},
	}
}
