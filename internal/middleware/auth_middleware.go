package middleware

import (
	"context"
	"net/http"
	"strings"

	"payam-chat/internal/services"
	"payam-chat/internal/transport/httpdto"
	"payam-chat/pkg/logger"

	"github.com/gin-gonic/gin"
)

type TokenParser interface {
	ParseAccessToken(token string) (services.AccessClaims, error)
}

// PresenceToucher records activity for the authenticated user.
type PresenceToucher interface {
	TouchPresence(ctx context.Context, userID string) error
}

const adminContextKey = "admin_username"

// AuthMiddleware accepts user tokens only. A user that no longer exists or
// was deactivated is rejected even with a valid token.
func AuthMiddleware(tokens TokenParser, presence PresenceToucher, l *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, err := tokens.ParseAccessToken(extractBearer(c))
		if err != nil || claims.Role != services.RoleUser {
			abortUnauthorized(c)
			return
		}

		ctx := services.WithUserContext(c.Request.Context(), claims.UserID)
		if presence != nil {
			if err := presence.TouchPresence(ctx, claims.UserID); err != nil {
				l.WithContext(ctx).Warnf("Rejected token for %s: %v", claims.UserID, err)
				abortUnauthorized(c)
				return
			}
		}

		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

func AdminAuthMiddleware(tokens TokenParser) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, err := tokens.ParseAccessToken(extractBearer(c))
		if err != nil || claims.Role != services.RoleAdmin {
			abortUnauthorized(c)
			return
		}
		c.Set(adminContextKey, claims.UserID)
		c.Next()
	}
}

func AdminFromContext(c *gin.Context) (string, bool) {
	name := c.GetString(adminContextKey)
	return name, name != ""
}

func abortUnauthorized(c *gin.Context) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, httpdto.NewErrorResponse("unauthorized", "INVALID_CREDENTIAL"))
}

func extractBearer(c *gin.Context) string {
	value := c.GetHeader("Authorization")
	parts := strings.SplitN(value, " ", 2)
	if len(parts) != 2 {
		return ""
	}
	if !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}
