package middleware

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/landlordcomply/landlordcomply/internal/infrastructure/monitoring/prometheus"
)

// Metrics records request count, latency and in-flight requests labelled by
// route template, so path parameters do not explode cardinality.
func Metrics(m *prometheus.AppMetrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		method := c.Request.Method
		active := m.HTTPActiveRequests.WithLabelValues(method)
		active.Inc()
		start := time.Now()

		c.Next()

		active.Dec()
		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		m.RecordHTTPRequest(method, route, c.Writer.Status(), time.Since(start))
	}
}
