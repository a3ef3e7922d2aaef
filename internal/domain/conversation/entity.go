package conversation

import (
	"time"

	"payam-chat/internal/domain/message"
	"payam-chat/internal/domain/user"

	"github.com/google/uuid"
)

// NoMessagesPreview is shown for conversations that have no messages yet.
const NoMessagesPreview = "No messages yet"

// Conversation represents the conversations table. The participant pair is
// stored in canonical order so that one row exists per unordered pair.
type Conversation struct {
	ID              uuid.UUID
	ParticipantLow  string
	ParticipantHigh string
	LastSeq         int64
	CreatedAt       time.Time
}

// CanonicalPair orders two public ids so that (a, b) and (b, a) map to the same key.
func CanonicalPair(a, b string) (string, string) {
	if a < b {
		return a, b
	}
	return b, a
}

func (c Conversation) HasParticipant(userID string) bool {
	return userID == c.ParticipantLow || userID == c.ParticipantHigh
}

// Counterpart returns the other participant. userID must be a participant.
func (c Conversation) Counterpart(userID string) string {
	if userID == c.ParticipantLow {
		return c.ParticipantHigh
	}
	return c.ParticipantLow
}

// Summary is one row of a user's conversation list.
type Summary struct {
	Conversation Conversation
	Counterpart  user.User
	LastMessage  *message.Message
	UnreadCount  int
}

// Preview returns the last message content or the placeholder.
func (s Summary) Preview() string {
	if s.LastMessage == nil {
		return NoMessagesPreview
	}
	return message.Preview(s.LastMessage.Content, 50)
}

// LastActivity is the time used for ordering; zero when the conversation is empty.
func (s Summary) LastActivity() time.Time {
	if s.LastMessage == nil {
		return time.Time{}
	}
	return s.LastMessage.CreatedAt
}
