package middleware

import (
	"payam-chat/internal/services"
	"payam-chat/internal/transport/httpdto"
	"payam-chat/pkg/logger"

	"github.com/gin-gonic/gin"
)

// ErrorHandler renders errors attached with c.Error when the handler did not
// write a response itself.
func ErrorHandler(l *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 || c.Writer.Written() {
			return
		}

		err := c.Errors.Last().Err
		status := services.HTTPStatus(err)
		msg := err.Error()
		if status >= 500 {
			l.WithContext(c.Request.Context()).Errorf("request error: %v", err)
			msg = "internal error"
		}
		c.JSON(status, httpdto.NewErrorResponse(msg, services.ErrorCode(err)))
	}
}
