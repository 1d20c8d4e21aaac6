package middleware

import (
	"time"

	"userhub/pkg/logger"
	"userhub/pkg/utils"

	"github.com/gin-gonic/gin"
)

const RequestIDHeader = "X-Request-ID"

// HTTPMetrics receives one call per finished request.
type HTTPMetrics interface {
	RecordHTTPRequest(method, route string, status int)
}

// RequestLoggingMiddleware tags each request with an id (reusing the
// caller's X-Request-ID when present), logs it once finished and feeds
// metrics when m is non-nil.
func RequestLoggingMiddleware(cl *logger.ContextLogger, m HTTPMetrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader(RequestIDHeader)
		if requestID == "" {
			requestID = utils.GenerateRequestID()
		}
		c.Header(RequestIDHeader, requestID)
		c.Request = c.Request.WithContext(logger.WithRequestID(c.Request.Context(), requestID))

		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		status := c.Writer.Status()
		cl.LogRequest(c.Request.Context(), c.Request.Method, route, status, time.Since(start).Milliseconds())
		if m != nil {
			m.RecordHTTPRequest(c.Request.Method, route, status)
		}
	}
}
