package middleware

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/persistorai/canvas/internal/metrics"
)

// PrometheusMiddleware records HTTP request duration and count. Routes in
// skip are not observed; websocket sessions would swamp the histogram.
func PrometheusMiddleware(skip ...string) gin.HandlerFunc {
	skipped := make(map[string]bool, len(skip))
	for _, p := range skip {
		skipped[p] = true
	}

	return func(c *gin.Context) {
		path := c.FullPath() // route pattern, not actual path (avoids cardinality explosion)
		if skipped[path] {
			c.Next()
			return
		}
		if path == "" {
			path = "unknown"
		}

		start := time.Now()
		c.Next()

		status := strconv.Itoa(c.Writer.Status())
		metrics.RequestDuration.WithLabelValues(c.Request.Method, path, status).Observe(time.Since(start).Seconds())
		metrics.RequestsTotal.WithLabelValues(c.Request.Method, path, status).Inc()
	}
}
