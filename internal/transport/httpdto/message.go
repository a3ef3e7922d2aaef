package httpdto

import (
	"payam-chat/internal/domain/message"
	"payam-chat/internal/services"
)

// SendMessageRequest is used for POST /v1/conversations/:id/messages and
// POST /v1/groups/:id/messages
type SendMessageRequest struct {
	Content string `json:"content"`
	Type    string `json:"type,omitempty"`
}

// URLResolver turns a stored attachment path into a link clients can fetch.
type URLResolver func(path string) string

type AttachmentDTO struct {
	Name      string `json:"name"`
	SizeBytes int64  `json:"size_bytes"`
	URL       string `json:"url,omitempty"`
}

// MessageDTO represents a private message. Delivered and Read are the stored
// flags for the recipient; Unread is relative to the caller.
type MessageDTO struct {
	ID             int64          `json:"id"`
	ConversationID string         `json:"conversation_id"`
	Seq            int64          `json:"seq"`
	SenderID       string         `json:"sender_id"`
	SenderName     string         `json:"sender_name"`
	Content        string         `json:"content"`
	Type           string         `json:"type"`
	Attachment     *AttachmentDTO `json:"attachment,omitempty"`
	CreatedAt      string         `json:"created_at"`
	Delivered      bool           `json:"delivered"`
	Read           bool           `json:"read"`
	Unread         bool           `json:"unread"`
	IsMine         bool           `json:"is_mine"`
}

type GroupMessageDTO struct {
	ID          int64          `json:"id"`
	GroupID     string         `json:"group_id"`
	Seq         int64          `json:"seq"`
	SenderID    string         `json:"sender_id"`
	SenderName  string         `json:"sender_name"`
	Content     string         `json:"content"`
	Type        string         `json:"type"`
	Attachment  *AttachmentDTO `json:"attachment,omitempty"`
	CreatedAt   string         `json:"created_at"`
	DeliveredTo []string       `json:"delivered_to"`
	ReadBy      []string       `json:"read_by"`
	Read        bool           `json:"read"`
	Unread      bool           `json:"unread"`
	IsMine      bool           `json:"is_mine"`
}

type MessagesResponse struct {
	Messages []MessageDTO `json:"messages"`
	LastSeq  int64        `json:"last_seq"`
}

type GroupMessagesResponse struct {
	Messages []GroupMessageDTO `json:"messages"`
	LastSeq  int64             `json:"last_seq"`
}

type UnreadCountResponse struct {
	ConversationID string `json:"conversation_id"`
	Unread         int    `json:"unread"`
}

// FromMessage converts a domain message as seen by viewerID.
func FromMessage(m message.Message, viewerID string, resolve URLResolver) MessageDTO {
	state := services.StateFor(m, viewerID)
	return MessageDTO{
		ID:             m.ID,
		ConversationID: m.ConversationID.String(),
		Seq:            m.Seq,
		SenderID:       m.SenderID,
		SenderName:     m.SenderName,
		Content:        m.Content,
		Type:           string(m.Type),
		Attachment:     fromAttachment(m.Attachment, resolve),
		CreatedAt:      formatTime(m.CreatedAt),
		Delivered:      m.Delivered,
		Read:           m.Read,
		Unread:         state.Unread,
		IsMine:         m.SenderID == viewerID,
	}
}

func FromMessageSlice(msgs []message.Message, viewerID string, resolve URLResolver) MessagesResponse {
	dtos := make([]MessageDTO, len(msgs))
	for i, m := range msgs {
		dtos[i] = FromMessage(m, viewerID, resolve)
	}
	return MessagesResponse{Messages: dtos, LastSeq: message.LastSeq(msgs)}
}

func FromGroupMessage(m message.GroupMessage, viewerID string, resolve URLResolver) GroupMessageDTO {
	state := services.StateFor(m, viewerID)
	return GroupMessageDTO{
		ID:          m.ID,
		GroupID:     m.GroupID.String(),
		Seq:         m.Seq,
		SenderID:    m.SenderID,
		SenderName:  m.SenderName,
		Content:     m.Content,
		Type:        string(m.Type),
		Attachment:  fromAttachment(m.Attachment, resolve),
		CreatedAt:   formatTime(m.CreatedAt),
		DeliveredTo: nonNil(m.DeliveredTo),
		ReadBy:      nonNil(m.ReadBy),
		Read:        state.Read,
		Unread:      state.Unread,
		IsMine:      m.SenderID == viewerID,
	}
}

func FromGroupMessageSlice(msgs []message.GroupMessage, viewerID string, resolve URLResolver) GroupMessagesResponse {
	dtos := make([]GroupMessageDTO, len(msgs))
	for i, m := range msgs {
		dtos[i] = FromGroupMessage(m, viewerID, resolve)
	}
	return GroupMessagesResponse{Messages: dtos, LastSeq: message.LastSeq(msgs)}
}

func fromAttachment(a *message.Attachment, resolve URLResolver) *AttachmentDTO {
	if a == nil {
		return nil
	}
	dto := &AttachmentDTO{Name: a.OriginalName, SizeBytes: a.SizeBytes}
	if resolve != nil {
		dto.URL = resolve(a.Path)
	}
	return dto
}

func nonNil(ids []string) []string {
	if ids == nil {
		return []string{}
	}
	return ids
}
