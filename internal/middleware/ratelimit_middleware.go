package middleware

import (
	"context"
	"net/http"
	"strconv"

	"payam-chat/internal/redis"
	"payam-chat/internal/services"
	"payam-chat/internal/transport/httpdto"
	"payam-chat/pkg/logger"

	"github.com/gin-gonic/gin"
)

// Limiter is implemented by redis.RateLimiter.
type Limiter interface {
	AllowMessage(ctx context.Context, userID string) (*redis.RateLimitResult, error)
	AllowAuth(ctx context.Context, ip string) (*redis.RateLimitResult, error)
}

// AuthRateLimitMiddleware limits login and registration attempts per client IP.
// If redis is unreachable the request is let through.
func AuthRateLimitMiddleware(limiter Limiter, l *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		result, err := limiter.AllowAuth(c.Request.Context(), c.ClientIP())
		enforce(c, result, err, "rate limit exceeded", l)
	}
}

// MessageRateLimitMiddleware limits message sends per user. It must run
// after AuthMiddleware.
func MessageRateLimitMiddleware(limiter Limiter, l *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := services.UserIDFromContext(c.Request.Context())
		if !ok {
			c.Next()
			return
		}
		result, err := limiter.AllowMessage(c.Request.Context(), userID)
		enforce(c, result, err, "message rate limit exceeded", l)
	}
}

func enforce(c *gin.Context, result *redis.RateLimitResult, err error, msg string, l *logger.Logger) {
	if err != nil {
		l.WithContext(c.Request.Context()).Warnf("Rate limiter unavailable: %v", err)
		c.Next()
		return
	}

	setRateLimitHeaders(c, result)
	if !result.Allowed {
		c.AbortWithStatusJSON(http.StatusTooManyRequests, httpdto.NewErrorResponse(msg, "RATE_LIMITED"))
		return
	}
	c.Next()
}

func setRateLimitHeaders(c *gin.Context, result *redis.RateLimitResult) {
	c.Header("X-RateLimit-Limit", strconv.Itoa(result.Limit))
	c.Header("X-RateLimit-Remaining", strconv.Itoa(result.Remaining))
	c.Header("X-RateLimit-Reset", strconv.FormatInt(int64(result.ResetIn.Seconds()), 10))
}
