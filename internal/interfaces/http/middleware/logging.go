package middleware

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/landlordcomply/landlordcomply/internal/infrastructure/auth"
	"github.com/landlordcomply/landlordcomply/internal/infrastructure/monitoring/logging"
	"github.com/landlordcomply/landlordcomply/pkg/errors"
)

// HeaderRequestID carries the request id in both directions.
const HeaderRequestID = "X-Request-ID"

const maxRequestIDLen = 128

// RequestID takes the caller's X-Request-ID or generates one, echoes it in
// the response and stores it on the request context together with a
// request-scoped logger.
func RequestID(logger logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(HeaderRequestID)
		if id == "" || len(id) > maxRequestIDLen {
			id = uuid.NewString()
		}
		c.Header(HeaderRequestID, id)
		ctx := logging.ContextWithRequestID(c.Request.Context(), id)
		ctx = logging.WithContext(ctx, logger.With(logging.RequestID(id)))
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

// LoggingConfig holds configuration for the request logging middleware.
type LoggingConfig struct {
	// SkipPaths are not logged unless they fail.
	SkipPaths []string
	// SlowThreshold logs successful requests slower than this at Warn.
	SlowThreshold time.Duration
}

func DefaultLoggingConfig() LoggingConfig {
	return LoggingConfig{
		SkipPaths:     []string{"/healthz", "/readyz", "/metrics"},
		SlowThreshold: 3 * time.Second,
	}
}

// RequestLogging logs one line per request: 5xx at Error, 4xx and slow
// requests at Warn, the rest at Info.
func RequestLogging(logger logging.Logger, cfg LoggingConfig) gin.HandlerFunc {
	skip := make(map[string]bool, len(cfg.SkipPaths))
	for _, p := range cfg.SkipPaths {
		skip[p] = true
	}
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		if skip[c.Request.URL.Path] && status < http.StatusBadRequest {
			return
		}
		elapsed := time.Since(start)
		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}

		log := logging.FromContext(c.Request.Context(), logger)
		fields := []logging.Field{
			logging.String("method", c.Request.Method),
			logging.String("route", route),
			logging.String("path", c.Request.URL.Path),
			logging.Int("status", status),
			logging.Int64("duration_ms", elapsed.Milliseconds()),
			logging.Int("bytes", c.Writer.Size()),
			logging.String("client_ip", c.ClientIP()),
		}
		if uid := auth.UserIDFromContext(c.Request.Context()); uid != "" {
			fields = append(fields, logging.UserID(uid))
		}

		switch {
		case status >= http.StatusInternalServerError:
			log.Error("HTTP request", fields...)
		case status >= http.StatusBadRequest:
			log.Warn("HTTP request", fields...)
		case cfg.SlowThreshold > 0 && elapsed > cfg.SlowThreshold:
			log.Warn("Slow HTTP request", fields...)
		default:
			log.Info("HTTP request", fields...)
		}
	}
}

// Recovery turns a panic into a 500 envelope.
func Recovery(logger logging.Logger) gin.HandlerFunc {
	return gin.CustomRecoveryWithWriter(nil, func(c *gin.Context, recovered any) {
		logging.FromContext(c.Request.Context(), logger).Error("Handler panicked",
			logging.String("path", c.Request.URL.Path), logging.Any("panic", recovered))
		c.AbortWithStatusJSON(http.StatusInternalServerError, ErrorResponse{Error: ErrorBody{
			Code:    string(errors.ErrCodeInternal),
			Message: errors.DefaultMessageForCode(errors.ErrCodeInternal),
		}})
	})
}
