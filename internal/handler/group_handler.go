package handler

import (
	"context"
	"net/http"

	"payam-chat/internal/domain/group"
	"payam-chat/internal/domain/message"
	"payam-chat/internal/services"
	"payam-chat/internal/transport/httpdto"
	payam_errors "payam-chat/pkg/errors"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type Groups interface {
	Create(ctx context.Context, creatorID, name, description string) (group.Group, error)
	AddMember(ctx context.Context, groupID uuid.UUID, actorID, userID string) (group.Membership, error)
	Join(ctx context.Context, groupPublicID, userID string) (group.Group, error)
	Leave(ctx context.Context, groupID uuid.UUID, userID string) error
	ListForUser(ctx context.Context, userID string) ([]group.Summary, error)
	Members(ctx context.Context, groupID uuid.UUID, viewerID string) ([]group.Membership, error)
	Messages(ctx context.Context, groupID uuid.UUID, viewerID string) ([]message.GroupMessage, error)
	Send(ctx context.Context, in services.GroupAppendInput) (message.GroupMessage, error)
}

type GroupHandler struct {
	groups      Groups
	attachments Attachments
}

func NewGroupHandler(groups Groups, attachments Attachments) *GroupHandler {
	return &GroupHandler{groups: groups, attachments: attachments}
}

func (h *GroupHandler) Create(c *gin.Context) {
	var req httpdto.CreateGroupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request")
		return
	}
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	g, err := h.groups.Create(c.Request.Context(), userID, req.Name, req.Description)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, httpdto.NewSuccessResponse(httpdto.FromGroup(g)))
}

func (h *GroupHandler) List(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	ctx := c.Request.Context()
	summaries, err := h.groups.ListForUser(ctx, userID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(httpdto.FromGroupSummaries(summaries, userID, h.resolver(ctx))))
}

func (h *GroupHandler) Join(c *gin.Context) {
	var req httpdto.JoinGroupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request")
		return
	}
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	g, err := h.groups.Join(c.Request.Context(), req.PublicID, userID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(httpdto.FromGroup(g)))
}

// AddMember is restricted to group admins.
func (h *GroupHandler) AddMember(c *gin.Context) {
	groupID, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	var req httpdto.AddMemberRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request")
		return
	}
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	m, err := h.groups.AddMember(c.Request.Context(), groupID, userID, req.UserID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, httpdto.NewSuccessResponse(httpdto.FromMembership(m)))
}

func (h *GroupHandler) Leave(c *gin.Context) {
	groupID, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	if err := h.groups.Leave(c.Request.Context(), groupID, userID); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, httpdto.NewEmptyResponse())
}

func (h *GroupHandler) Members(c *gin.Context) {
	groupID, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	members, err := h.groups.Members(c.Request.Context(), groupID, userID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(httpdto.FromMemberships(members)))
}

// Messages returns the group history and records the caller as having
// received and read all of it.
func (h *GroupHandler) Messages(c *gin.Context) {
	groupID, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	ctx := c.Request.Context()
	msgs, err := h.groups.Messages(ctx, groupID, userID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(httpdto.FromGroupMessageSlice(msgs, userID, h.resolver(ctx))))
}

func (h *GroupHandler) Send(c *gin.Context) {
	groupID, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	var req httpdto.SendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request")
		return
	}
	msgType, valid := message.ParseType(req.Type)
	if !valid || msgType.IsAttachment() {
		badRequest(c, "invalid type")
		return
	}
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	m, err := h.groups.Send(c.Request.Context(), services.GroupAppendInput{
		GroupID:  groupID,
		SenderID: userID,
		Content:  req.Content,
		Type:     msgType,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, httpdto.NewSuccessResponse(httpdto.FromGroupMessage(m, userID, nil)))
}

func (h *GroupHandler) Upload(c *gin.Context) {
	groupID, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	if h.attachments == nil {
		writeError(c, payam_errors.ErrForbidden)
		return
	}

	ctx := c.Request.Context()
	if _, err := h.groups.Members(ctx, groupID, userID); err != nil {
		writeError(c, err)
		return
	}

	att, ok := storeMultipart(c, h.attachments, userID)
	if !ok {
		return
	}

	m, err := h.groups.Send(ctx, services.GroupAppendInput{
		GroupID:    groupID,
		SenderID:   userID,
		Type:       services.TypeFor(att.contentType),
		Attachment: &att.Attachment,
	})
	if err != nil {
		h.attachments.Discard(ctx, att.Path)
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, httpdto.NewSuccessResponse(httpdto.FromGroupMessage(m, userID, h.resolver(ctx))))
}

func (h *GroupHandler) resolver(ctx context.Context) httpdto.URLResolver {
	if h.attachments == nil {
		return nil
	}
	return urlResolver(ctx, h.attachments)
}
