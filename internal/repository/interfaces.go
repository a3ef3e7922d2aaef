package repository

import (
	"context"
	"time"

	"github.com/google/uuid"

	"payam-chat/internal/domain/conversation"
	"payam-chat/internal/domain/group"
	"payam-chat/internal/domain/message"
	"payam-chat/internal/domain/user"
)

type UserRepository interface {
	// Create returns ErrDuplicateHandle when the phone number is taken and
	// ErrAlreadyExists when the public id collides.
	Create(ctx context.Context, u *user.User) error
	GetByPublicID(ctx context.Context, publicID string) (user.User, error)
	GetByPhoneNumber(ctx context.Context, phone string) (user.User, error)
	Search(ctx context.Context, query, excludePublicID string, limit int) ([]user.User, error)

	// TouchPresence returns ErrNotFound for unknown and deactivated users.
	TouchPresence(ctx context.Context, publicID string, seenAt time.Time) error
	SetOffline(ctx context.Context, publicID string) error
	Deactivate(ctx context.Context, publicID string) error
	DeactivateMany(ctx context.Context, publicIDs []string) (int64, error)
}

type ConversationRepository interface {
	// Create returns ErrAlreadyExists when the pair already has a conversation.
	Create(ctx context.Context, c *conversation.Conversation) error
	GetByID(ctx context.Context, id uuid.UUID) (conversation.Conversation, error)
	GetByPair(ctx context.Context, low, high string) (conversation.Conversation, error)
	ListSummaries(ctx context.Context, userID string) ([]conversation.Summary, error)

	// NextSeq bumps and returns the conversation's message counter. Inside a
	// transaction it holds the row lock until commit.
	NextSeq(ctx context.Context, id uuid.UUID) (int64, error)
}

type MessageRepository interface {
	Create(ctx context.Context, m *message.Message) error
	Delete(ctx context.Context, id int64) error

	ListByConversation(ctx context.Context, conversationID uuid.UUID) ([]message.Message, error)
	ListAfterSeq(ctx context.Context, conversationID uuid.UUID, afterSeq int64) ([]message.Message, error)
	ListUnread(ctx context.Context, conversationID uuid.UUID, forUserID string) ([]message.Message, error)
	CountUnread(ctx context.Context, conversationID uuid.UUID, forUserID string) (int, error)
	ListUnreadForUser(ctx context.Context, userID string) ([]message.Message, error)

	MarkDelivered(ctx context.Context, conversationID uuid.UUID) (int64, error)
	// MarkRead also sets delivered, so no row is ever read but undelivered.
	MarkRead(ctx context.Context, conversationID uuid.UUID, viewerID string) (int64, error)
	// MarkReadByIDs flags only the listed messages, skipping those sent by viewerID.
	MarkReadByIDs(ctx context.Context, viewerID string, ids []int64) (int64, error)
}

type GroupRepository interface {
	// Create returns ErrAlreadyExists when the public id collides.
	Create(ctx context.Context, g *group.Group) error
	GetByID(ctx context.Context, id uuid.UUID) (group.Group, error)
	GetByPublicID(ctx context.Context, publicID string) (group.Group, error)
	ListSummaries(ctx context.Context, userID string) ([]group.Summary, error)
	NextSeq(ctx context.Context, id uuid.UUID) (int64, error)

	// AddMember returns ErrDuplicateMembership when the user is already a member.
	AddMember(ctx context.Context, m *group.Membership) error
	RemoveMember(ctx context.Context, groupID uuid.UUID, userID string) error
	GetMember(ctx context.Context, groupID uuid.UUID, userID string) (group.Membership, error)
	ListMembers(ctx context.Context, groupID uuid.UUID) ([]group.Membership, error)
	// PromoteOldestMember makes the earliest member an admin when the group has
	// none left. It returns ErrNotFound when nobody was promoted.
	PromoteOldestMember(ctx context.Context, groupID uuid.UUID) (string, error)
}

type GroupMessageRepository interface {
	Create(ctx context.Context, m *message.GroupMessage) error
	ListByGroup(ctx context.Context, groupID uuid.UUID) ([]message.GroupMessage, error)
	CountUnread(ctx context.Context, groupID uuid.UUID, userID string) (int, error)

	MarkDeliveredForUser(ctx context.Context, groupID uuid.UUID, userID string, at time.Time) (int64, error)
	MarkReadForUser(ctx context.Context, groupID uuid.UUID, userID string, at time.Time) (int64, error)
}

type MessageLogRepository interface {
	Append(ctx context.Context, e *message.LogEntry) error
}

// Manager vends repositories bound to a DBTX, so the same code runs against
// the pool or inside a transaction.
type Manager interface {
	Users(db DBTX) UserRepository
	Conversations(db DBTX) ConversationRepository
	Messages(db DBTX) MessageRepository
	Groups(db DBTX) GroupRepository
	GroupMessages(db DBTX) GroupMessageRepository
	MessageLogs(db DBTX) MessageLogRepository
}

type PostgresManager struct{}

func NewPostgresManager() Manager {
	return &PostgresManager{}
}

func (m *PostgresManager) Users(db DBTX) UserRepository {
	return NewUserRepository(db)
}

func (m *PostgresManager) Conversations(db DBTX) ConversationRepository {
	return NewConversationRepository(db)
}

func (m *PostgresManager) Messages(db DBTX) MessageRepository {
	return NewMessageRepository(db)
}

func (m *PostgresManager) Groups(db DBTX) GroupRepository {
	return NewGroupRepository(db)
}

func (m *PostgresManager) GroupMessages(db DBTX) GroupMessageRepository {
	return NewGroupMessageRepository(db)
}

func (m *PostgresManager) MessageLogs(db DBTX) MessageLogRepository {
	return NewMessageLogRepository(db)
}
