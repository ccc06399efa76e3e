package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/atelierlabs/studio-portal/pkg/telemetry/correlation"
)

const requestIDHeader = "X-Request-ID"

// RequestID assigns each request a ULID unless the caller supplied one,
// and threads it through the request context so downstream work can log it.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := correlation.ContextWithCorrelationID(c.Request.Context(), c.GetHeader(requestIDHeader))
		ctx, id := correlation.EnsureCorrelationID(ctx)

		c.Request = c.Request.WithContext(ctx)
		c.Set("request_id", id)
		c.Writer.Header().Set(requestIDHeader, id)
		c.Next()
	}
}
