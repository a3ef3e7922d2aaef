package middleware

import (
	"context"
	"crypto/rand"
	"encoding/hex"

	"payam-chat/internal/services"
	"payam-chat/pkg/logger"

	"github.com/gin-gonic/gin"
)

// RequestIDMiddleware tags the request with an id and pins the clock every
// service call in the request will see.
func RequestIDMiddleware(clock services.Clock) gin.HandlerFunc {
	if clock == nil {
		clock = services.SystemClock
	}
	return func(c *gin.Context) {
		requestID := c.GetHeader("X-Request-Id")
		if requestID == "" {
			requestID = newRequestID()
		}
		c.Writer.Header().Set("X-Request-Id", requestID)
		ctx := context.WithValue(c.Request.Context(), logger.RequestIdKey, requestID)
		ctx = services.WithRequestTime(ctx, clock())
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

// 32 hex characters, no hyphens
func newRequestID() string {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return ""
	}
	return hex.EncodeToString(buf)
}
