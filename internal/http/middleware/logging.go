// README: Request logging middleware; tags every request with a request_id.
package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

const (
	RequestIDHeader = "X-Request-ID"
	requestIDKey    = "request_id"
)

// Logging logs one line per request after the handler ran.
func Logging(log logrus.FieldLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		id := c.GetHeader(RequestIDHeader)
		if id == "" || len(id) > 64 {
			id = uuid.NewString()
		}
		c.Set(requestIDKey, id)
		c.Header(RequestIDHeader, id)

		c.Next()

		entry := log.WithFields(logrus.Fields{
			requestIDKey: id,
			"method":     c.Request.Method,
			"path":       c.FullPath(),
			"status":     c.Writer.Status(),
			"latency_ms": time.Since(start).Milliseconds(),
		})
		if len(c.Errors) > 0 {
			entry.WithError(c.Errors.Last()).Warn("request completed with errors")
			return
		}
		entry.Debug("request")
	}
}

// RequestID returns the id Logging assigned, or "".
func RequestID(c *gin.Context) string {
	return c.GetString(requestIDKey)
}
