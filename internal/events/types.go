package events

import "time"

// Message events
const (
	EventTypeMessageNew        = "message.new"
	EventTypeMessageRead       = "message.read"
	EventTypeMessageDeleted    = "message.deleted"
	EventTypeGroupMessageNew   = "group.message.new"
	EventTypeGroupMessagesRead = "group.message.read"
)

// Presence events
const (
	EventTypePresenceOnline  = "presence.online"
	EventTypePresenceOffline = "presence.offline"
)

const (
	AggregateTypeMessage      = "message"
	AggregateTypeConversation = "conversation"
	AggregateTypeGroup        = "group"
	AggregateTypePresence     = "presence"
)

type MessagePayload struct {
	ID             int64     `json:"id"`
	ConversationID string    `json:"conversation_id,omitempty"`
	GroupID        string    `json:"group_id,omitempty"`
	Seq            int64     `json:"seq"`
	SenderID       string    `json:"sender_id"`
	SenderName     string    `json:"sender_name"`
	Content        string    `json:"content"`
	Type           string    `json:"type"`
	CreatedAt      time.Time `json:"created_at"`
}

// ReadPayload tells the author that reader has read everything up to UpToSeq.
type ReadPayload struct {
	ConversationID string    `json:"conversation_id,omitempty"`
	GroupID        string    `json:"group_id,omitempty"`
	ReaderID       string    `json:"reader_id"`
	UpToSeq        int64     `json:"up_to_seq"`
	ReadAt         time.Time `json:"read_at"`
}

type PresencePayload struct {
	UserID   string    `json:"user_id"`
	IsOnline bool      `json:"is_online"`
	At       time.Time `json:"at"`
}
