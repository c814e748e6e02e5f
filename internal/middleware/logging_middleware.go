// internal/middleware/logging_middleware.go
package middleware

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"smartwheel/internal/monitor"
	"smartwheel/internal/utils"
)

// LoggingMiddleware logs every request and records its latency
func LoggingMiddleware(logger *utils.ServiceLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		startTime := time.Now()
		c.Next()
		duration := time.Since(startTime)

		logger.LogAPIRequest(
			c.Request.Method,
			c.Request.URL.Path,
			c.Request.UserAgent(),
			c.ClientIP(),
			c.Writer.Status(),
			duration,
		)

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		monitor.HTTPRequests.
			WithLabelValues(c.Request.Method, route, strconv.Itoa(c.Writer.Status())).
			Observe(duration.Seconds())
	}
}
