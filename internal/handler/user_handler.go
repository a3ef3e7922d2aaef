package handler

import (
	"context"
	"net/http"

	"payam-chat/internal/domain/user"
	"payam-chat/internal/transport/httpdto"

	"github.com/gin-gonic/gin"
)

type Directory interface {
	GetByPublicID(ctx context.Context, publicID string) (user.User, error)
	Search(ctx context.Context, query, excludeUserID string, limit int) ([]user.User, error)
}

type UserHandler struct {
	directory Directory
}

func NewUserHandler(directory Directory) *UserHandler {
	return &UserHandler{directory: directory}
}

func (h *UserHandler) Me(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	u, err := h.directory.GetByPublicID(c.Request.Context(), userID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(httpdto.FromMe(u)))
}

// Search matches public ids and display names. The caller never appears in
// the results.
func (h *UserHandler) Search(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	limit, err := parseInt(c.Query("limit"))
	if err != nil {
		badRequest(c, "invalid limit")
		return
	}

	users, err := h.directory.Search(c.Request.Context(), c.Query("q"), userID, limit)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(httpdto.SearchResponse{
		Users: httpdto.FromUserSlice(users),
	}))
}
