package mw

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/adhesikan/NotifyHub/internal/metrics"
)

// Metrics records request counts and latency per route. The route template
// is used as the label, not the raw path, to keep cardinality bounded.
func Metrics() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		method := c.Request.Method
		status := strconv.Itoa(c.Writer.Status())

		metrics.HTTPRequestsTotal.WithLabelValues(path, status, method).Inc()
		metrics.HTTPRequestDuration.WithLabelValues(path, method).Observe(time.Since(start).Seconds())
	}
}
