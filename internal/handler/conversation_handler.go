package handler

import (
	"context"
	"net/http"

	"payam-chat/internal/domain/conversation"
	"payam-chat/internal/transport/httpdto"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type Conversations interface {
	ResolveOrCreate(ctx context.Context, userA, userB string) (conversation.Conversation, error)
	ListForUser(ctx context.Context, userID string) ([]conversation.Summary, error)
	Get(ctx context.Context, conversationID uuid.UUID, viewerID string) (conversation.Conversation, error)
}

type ConversationHandler struct {
	conversations Conversations
	links         AttachmentLinker
}

func NewConversationHandler(conversations Conversations, links AttachmentLinker) *ConversationHandler {
	return &ConversationHandler{conversations: conversations, links: links}
}

// Resolve returns the private conversation with peer_id, creating it on
// first contact.
func (h *ConversationHandler) Resolve(c *gin.Context) {
	var req httpdto.ResolveConversationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request")
		return
	}

	userID, ok := currentUser(c)
	if !ok {
		return
	}

	conv, err := h.conversations.ResolveOrCreate(c.Request.Context(), userID, req.PeerID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(httpdto.FromConversation(conv, userID)))
}

func (h *ConversationHandler) List(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	summaries, err := h.conversations.ListForUser(c.Request.Context(), userID)
	if err != nil {
		writeError(c, err)
		return
	}
	resolve := urlResolver(c.Request.Context(), h.links)
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(httpdto.FromSummaries(summaries, userID, resolve)))
}
