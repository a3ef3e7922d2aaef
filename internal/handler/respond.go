// Package handler provides HTTP handlers for API endpoints.
package handler

import (
	"context"
	"net/http"
	"strconv"

	"payam-chat/internal/services"
	"payam-chat/internal/transport/httpdto"
	payam_errors "payam-chat/pkg/errors"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// AttachmentLinker resolves stored attachment paths to client URLs.
type AttachmentLinker interface {
	URL(ctx context.Context, key string) (string, error)
}

// writeError renders err with the status and code it maps to. Internal
// failures are attached to the context for the logging middleware and hidden
// from the client.
func writeError(c *gin.Context, err error) {
	status := services.HTTPStatus(err)
	msg := err.Error()
	if status >= http.StatusInternalServerError {
		_ = c.Error(err)
		msg = "internal error"
	}
	c.JSON(status, httpdto.NewErrorResponse(msg, services.ErrorCode(err)))
}

func badRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, httpdto.NewErrorResponse(msg, services.ErrorCode(payam_errors.ErrInvalidInput)))
}

func currentUser(c *gin.Context) (string, bool) {
	userID, ok := services.UserIDFromContext(c.Request.Context())
	if !ok {
		c.JSON(http.StatusUnauthorized, httpdto.NewErrorResponse("unauthorized", services.ErrorCode(payam_errors.ErrInvalidCredential)))
		return "", false
	}
	return userID, true
}

func pathUUID(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		badRequest(c, "invalid "+name)
		return uuid.Nil, false
	}
	return id, true
}

func parseInt(value string) (int, error) {
	if value == "" {
		return 0, nil
	}
	return strconv.Atoi(value)
}

func parseInt64(value string) (int64, error) {
	if value == "" {
		return 0, nil
	}
	return strconv.ParseInt(value, 10, 64)
}

// urlResolver binds links to the request context. A failed lookup leaves the
// URL empty; the message itself is still returned.
func urlResolver(ctx context.Context, links AttachmentLinker) httpdto.URLResolver {
	if links == nil {
		return nil
	}
	return func(path string) string {
		url, err := links.URL(ctx, path)
		if err != nil {
			return ""
		}
		return url
	}
}
