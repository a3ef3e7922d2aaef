package handler

import (
	"context"
	"net/http"

	"payam-chat/internal/domain/message"
	"payam-chat/internal/repository"
	"payam-chat/internal/services"
	"payam-chat/internal/transport/httpdto"

	"github.com/gin-gonic/gin"
)

type AdminOperations interface {
	Authenticate(ctx context.Context, username, password string) (string, int64, error)
	Stats(ctx context.Context) (repository.AdminStats, error)
	Users(ctx context.Context, page, limit int) ([]repository.AdminUserRow, error)
	MessageLog(ctx context.Context, page, limit int) ([]message.LogEntry, error)
	DeactivateUser(ctx context.Context, userID string) error
	DeactivateUsers(ctx context.Context, userIDs []string) (int64, error)
	DeleteMessage(ctx context.Context, messageID int64) error
}

type AdminHandler struct {
	admin AdminOperations
}

func NewAdminHandler(admin AdminOperations) *AdminHandler {
	return &AdminHandler{admin: admin}
}

func (h *AdminHandler) Login(c *gin.Context) {
	var req httpdto.AdminLoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request")
		return
	}

	token, expiresIn, err := h.admin.Authenticate(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(httpdto.AdminLoginResponse{
		AccessToken: token,
		ExpiresIn:   expiresIn,
	}))
}

func (h *AdminHandler) Stats(c *gin.Context) {
	stats, err := h.admin.Stats(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(stats))
}

func (h *AdminHandler) Users(c *gin.Context) {
	page, limit, ok := pageParams(c)
	if !ok {
		return
	}

	rows, err := h.admin.Users(c.Request.Context(), page, limit)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(httpdto.FromAdminUsers(rows, page)))
}

func (h *AdminHandler) Messages(c *gin.Context) {
	page, limit, ok := pageParams(c)
	if !ok {
		return
	}

	entries, err := h.admin.MessageLog(c.Request.Context(), page, limit)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(httpdto.FromLogEntries(entries, page)))
}

func (h *AdminHandler) DeactivateUser(c *gin.Context) {
	if err := h.admin.DeactivateUser(c.Request.Context(), c.Param("id")); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, httpdto.NewEmptyResponse())
}

// DeactivateUsers is all-or-nothing: one unknown id leaves every user active.
func (h *AdminHandler) DeactivateUsers(c *gin.Context) {
	var req httpdto.DeactivateUsersRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request")
		return
	}

	n, err := h.admin.DeactivateUsers(c.Request.Context(), req.UserIDs)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(httpdto.DeactivateUsersResponse{Deactivated: n}))
}

func (h *AdminHandler) DeleteMessage(c *gin.Context) {
	messageID, err := parseInt64(c.Param("id"))
	if err != nil || messageID <= 0 {
		badRequest(c, "invalid message id")
		return
	}

	if err := h.admin.DeleteMessage(c.Request.Context(), messageID); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, httpdto.NewEmptyResponse())
}

func pageParams(c *gin.Context) (int, int, bool) {
	page, err := parseInt(c.Query("page"))
	if err != nil || page > services.MaxPage {
		badRequest(c, "invalid page")
		return 0, 0, false
	}
	limit, err := parseInt(c.Query("limit"))
	if err != nil {
		badRequest(c, "invalid limit")
		return 0, 0, false
	}
	if page < 1 {
		page = 1
	}
	return page, limit, true
}
