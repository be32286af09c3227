package middleware

import (
	"context"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const traceIDHeader = "X-Trace-Id"

// TraceMiddleware tags every request with a trace ID. An incoming
// X-Trace-Id is honored so callers can correlate across services;
// otherwise a fresh UUID is assigned. The ID is echoed back in the
// response header and stored on the request context for the logger.
func TraceMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := strings.TrimSpace(c.GetHeader(traceIDHeader))
		if id == "" {
			id = uuid.NewString()
		}

		c.Set("trace_id", id)
		c.Request = c.Request.WithContext(
			context.WithValue(c.Request.Context(), "trace_id", id))
		c.Writer.Header().Set(traceIDHeader, id)

		c.Next()
	}
}
