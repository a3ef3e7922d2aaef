package httpdto

import (
	"payam-chat/internal/domain/conversation"
)

// ResolveConversationRequest is used for POST /v1/conversations
type ResolveConversationRequest struct {
	PeerID string `json:"peer_id" binding:"required"`
}

// ConversationDTO represents a conversation from the caller's side.
type ConversationDTO struct {
	ID        string `json:"id"`
	PeerID    string `json:"peer_id"`
	CreatedAt string `json:"created_at"`
}

// ConversationSummaryDTO is one row of GET /v1/conversations
type ConversationSummaryDTO struct {
	ID           string      `json:"id"`
	Peer         UserDTO     `json:"peer"`
	Preview      string      `json:"preview"`
	LastMessage  *MessageDTO `json:"last_message,omitempty"`
	LastActivity string      `json:"last_activity,omitempty"`
	UnreadCount  int         `json:"unread_count"`
}

type ConversationsResponse struct {
	Conversations []ConversationSummaryDTO `json:"conversations"`
}

func FromConversation(c conversation.Conversation, viewerID string) ConversationDTO {
	return ConversationDTO{
		ID:        c.ID.String(),
		PeerID:    c.Counterpart(viewerID),
		CreatedAt: formatTime(c.CreatedAt),
	}
}

func FromSummary(s conversation.Summary, viewerID string, resolve URLResolver) ConversationSummaryDTO {
	dto := ConversationSummaryDTO{
		ID:           s.Conversation.ID.String(),
		Peer:         FromUser(s.Counterpart),
		Preview:      s.Preview(),
		LastActivity: formatTime(s.LastActivity()),
		UnreadCount:  s.UnreadCount,
	}
	if s.LastMessage != nil {
		last := FromMessage(*s.LastMessage, viewerID, resolve)
		dto.LastMessage = &last
	}
	return dto
}

func FromSummaries(summaries []conversation.Summary, viewerID string, resolve URLResolver) ConversationsResponse {
	dtos := make([]ConversationSummaryDTO, len(summaries))
	for i, s := range summaries {
		dtos[i] = FromSummary(s, viewerID, resolve)
	}
	return ConversationsResponse{Conversations: dtos}
}
