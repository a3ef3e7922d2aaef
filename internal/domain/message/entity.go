package message

import (
	"time"

	"github.com/google/uuid"
)

type Type string

const (
	TypeText  Type = "text"
	TypeImage Type = "image"
	TypeAudio Type = "audio"
	TypeFile  Type = "file"
)

// ParseType maps a wire value to a Type. Empty input means text.
func ParseType(value string) (Type, bool) {
	switch Type(value) {
	case "", TypeText:
		return TypeText, true
	case TypeImage, TypeAudio, TypeFile:
		return Type(value), true
	default:
		return "", false
	}
}

func (t Type) IsAttachment() bool {
	return t == TypeImage || t == TypeAudio || t == TypeFile
}

// Label is the content stored for attachment messages.
func (t Type) Label() string {
	return "[" + string(t) + "]"
}

// Attachment is the blob-store reference persisted with a message.
type Attachment struct {
	Path         string
	OriginalName string
	SizeBytes    int64
}

// Message represents the messages table
type Message struct {
	ID             int64
	ConversationID uuid.UUID
	Seq            int64
	SenderID       string
	SenderName     string
	Content        string
	Type           Type
	Attachment     *Attachment
	CreatedAt      time.Time
	Delivered      bool
	Read           bool
}

// GroupMessage represents group_messages joined with its receipts.
type GroupMessage struct {
	ID          int64
	GroupID     uuid.UUID
	Seq         int64
	SenderID    string
	SenderName  string
	Content     string
	Type        Type
	Attachment  *Attachment
	CreatedAt   time.Time
	DeliveredTo []string
	ReadBy      []string
}

// LogKind tells which thread family a log entry was mirrored from.
type LogKind string

const (
	LogKindPrivate LogKind = "private"
	LogKindGroup   LogKind = "group"
)

// LogEntry represents message_logs, the write-only audit mirror.
type LogEntry struct {
	ID         int64     `db:"id"`
	Kind       LogKind   `db:"kind"`
	SourceID   int64     `db:"source_id"`
	ThreadID   string    `db:"thread_id"`
	SenderID   string    `db:"sender_id"`
	SenderName string    `db:"sender_name"`
	Content    string    `db:"content"`
	Type       Type      `db:"type"`
	CreatedAt  time.Time `db:"created_at"`
}

func (m Message) LogEntry() LogEntry {
	return LogEntry{
		Kind:       LogKindPrivate,
		SourceID:   m.ID,
		ThreadID:   m.ConversationID.String(),
		SenderID:   m.SenderID,
		SenderName: m.SenderName,
		Content:    m.Content,
		Type:       m.Type,
		CreatedAt:  m.CreatedAt,
	}
}

func (m GroupMessage) LogEntry() LogEntry {
	return LogEntry{
		Kind:       LogKindGroup,
		SourceID:   m.ID,
		ThreadID:   m.GroupID.String(),
		SenderID:   m.SenderID,
		SenderName: m.SenderName,
		Content:    m.Content,
		Type:       m.Type,
		CreatedAt:  m.CreatedAt,
	}
}
