package http

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"eri/internal/log"
)

const requestIDHeader = "X-Request-ID"

// requestLogger tags every request with an id, echoed in the response, and
// logs one line per request once the handler returns.
func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		requestID := c.GetHeader(requestIDHeader)
		if _, err := uuid.Parse(requestID); err != nil {
			requestID = uuid.NewString()
		}
		c.Set("request_id", requestID)
		c.Header(requestIDHeader, requestID)

		c.Next()

		fields := []any{
			"request_id", requestID,
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"duration_ms", time.Since(start).Milliseconds(),
			"client_ip", c.ClientIP(),
		}
		if c.Writer.Status() >= 500 {
			log.Warnw("request", fields...)
			return
		}
		log.Debugw("request", fields...)
	}
}
