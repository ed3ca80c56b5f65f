package middleware

import (
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/landlordcomply/landlordcomply/internal/infrastructure/monitoring/prometheus"
	"github.com/landlordcomply/landlordcomply/pkg/errors"
)

// RateLimitInfo is the state of one key's current window.
type RateLimitInfo struct {
	Limit     int
	Remaining int
	ResetAt   time.Time
}

// FixedWindowLimiter counts requests per key in fixed windows, in memory.
// Each process keeps its own counts.
type FixedWindowLimiter struct {
	limit   int
	window  time.Duration
	now     func() time.Time
	mu      sync.Mutex
	windows map[string]*fixedWindow
	stop    chan struct{}
	once    sync.Once
}

type fixedWindow struct {
	start time.Time
	count int
}

// NewFixedWindowLimiter allows limit requests per key per window. With a
// positive cleanupInterval a goroutine drops expired windows until Stop.
func NewFixedWindowLimiter(limit int, window, cleanupInterval time.Duration) *FixedWindowLimiter {
	l := &FixedWindowLimiter{
		limit:   limit,
		window:  window,
		now:     time.Now,
		windows: make(map[string]*fixedWindow),
		stop:    make(chan struct{}),
	}
	if cleanupInterval > 0 {
		go l.cleanupLoop(cleanupInterval)
	}
	return l
}

// Allow counts one request for key.
func (l *FixedWindowLimiter) Allow(key string) (bool, RateLimitInfo) {
	now := l.now()
	l.mu.Lock()
	defer l.mu.Unlock()

	w, ok := l.windows[key]
	if !ok || now.Sub(w.start) >= l.window {
		w = &fixedWindow{start: now}
		l.windows[key] = w
	}
	w.count++
	info := RateLimitInfo{
		Limit:     l.limit,
		Remaining: max(l.limit-w.count, 0),
		ResetAt:   w.start.Add(l.window),
	}
	return w.count <= l.limit, info
}

func (l *FixedWindowLimiter) cleanupLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			l.cleanup()
		case <-l.stop:
			return
		}
	}
}

func (l *FixedWindowLimiter) cleanup() {
	now := l.now()
	l.mu.Lock()
	defer l.mu.Unlock()
	for k, w := range l.windows {
		if now.Sub(w.start) >= l.window {
			delete(l.windows, k)
		}
	}
}

// SetLimit changes the budget for windows that start from now on. Open
// windows keep counting against the new limit.
func (l *FixedWindowLimiter) SetLimit(limit int, window time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if limit > 0 {
		l.limit = limit
	}
	if window > 0 {
		l.window = window
	}
}

// Len returns the number of tracked keys.
func (l *FixedWindowLimiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.windows)
}

// Stop ends the cleanup goroutine. It is safe to call more than once.
func (l *FixedWindowLimiter) Stop() {
	l.once.Do(func() { close(l.stop) })
}

// RateLimit rejects clients over their per-IP budget with 429.
func RateLimit(l *FixedWindowLimiter, metrics *prometheus.AppMetrics, skipPaths ...string) gin.HandlerFunc {
	skip := make(map[string]bool, len(skipPaths))
	for _, p := range skipPaths {
		skip[p] = true
	}
	if metrics == nil {
		metrics = prometheus.NewNopMetrics()
	}
	return func(c *gin.Context) {
		if skip[c.Request.URL.Path] {
			c.Next()
			return
		}
		ok, info := l.Allow("ip:" + c.ClientIP())
		c.Header("X-RateLimit-Limit", strconv.Itoa(info.Limit))
		c.Header("X-RateLimit-Remaining", strconv.Itoa(info.Remaining))
		c.Header("X-RateLimit-Reset", strconv.FormatInt(info.ResetAt.Unix(), 10))
		if !ok {
			retry := int(time.Until(info.ResetAt).Seconds())
			if retry < 1 {
				retry = 1
			}
			c.Header("Retry-After", strconv.Itoa(retry))
			metrics.RecordRateLimitRejection("ip")
			RespondError(c, errors.RateLimit("rate limit exceeded, please retry later"))
			return
		}
		c.Next()
	}
}
