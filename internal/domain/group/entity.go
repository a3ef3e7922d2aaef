package group

import (
	"time"

	"payam-chat/internal/domain/message"

	"github.com/google/uuid"
)

// Group represents the groups table
type Group struct {
	ID          uuid.UUID
	PublicID    string
	Name        string
	Description string
	CreatorID   string
	LastSeq     int64
	CreatedAt   time.Time
}

// Membership represents group_members
type Membership struct {
	GroupID     uuid.UUID
	UserID      string
	DisplayName string
	JoinedAt    time.Time
	IsAdmin     bool
}

// Summary is one row of a user's group list.
type Summary struct {
	Group       Group
	IsAdmin     bool
	LastMessage *message.GroupMessage
	UnreadCount int
}

func (s Summary) LastActivity() time.Time {
	if s.LastMessage == nil {
		return s.Group.CreatedAt
	}
	return s.LastMessage.CreatedAt
}
