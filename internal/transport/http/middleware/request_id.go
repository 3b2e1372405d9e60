package middleware

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/medicore/auth-service/internal/infra/logger"
)

const requestIDHeader = "X-Request-ID"

// RequestID propagates a correlation identifier through the request context
// and response headers. Caller-supplied IDs are kept only when they parse as
// UUIDs so log fields stay bounded and grep-friendly.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		reqID := c.GetHeader(requestIDHeader)
		if _, err := uuid.Parse(reqID); err != nil {
			reqID = uuid.NewString()
		}

		c.Writer.Header().Set(requestIDHeader, reqID)
		ctx := context.WithValue(c.Request.Context(), logger.RequestIDKey{}, reqID)
		c.Request = c.Request.WithContext(ctx)

		c.Next()
	}
}
