package services

import (
	"context"

	"payam-chat/internal/domain/message"
	"payam-chat/internal/proxy"
	"payam-chat/internal/repository"
	"payam-chat/pkg/logger"

	"github.com/google/uuid"
)

type AppendInput struct {
	ConversationID uuid.UUID
	SenderID       string
	Content        string
	Type           message.Type
	Attachment     *message.Attachment
}

// MessageService is the store of private messages.
type MessageService struct {
	db     repository.DBTX
	repos  repository.Manager
	access *proxy.AccessControl
	events *EventPublisher
	clock  Clock
	log    *logger.Logger
}

func NewMessageService(db repository.DBTX, repos repository.Manager, access *proxy.AccessControl, events *EventPublisher, clock Clock, log *logger.Logger) *MessageService {
	return &MessageService{db: db, repos: repos, access: access, events: events, clock: clock, log: log}
}

// Append validates and stores one message. The sequence number, the message
// row and its audit-log copy are written in a single transaction.
func (s *MessageService) Append(ctx context.Context, in AppendInput) (message.Message, error) {
	msgType := in.Type
	if msgType == "" {
		msgType = message.TypeText
	}
	content, err := message.PrepareContent(msgType, in.Content, in.Attachment)
	if err != nil {
		return message.Message{}, err
	}

	conv, err := s.access.CanSendMessage(ctx, in.SenderID, in.ConversationID)
	if err != nil {
		return message.Message{}, err
	}
	sender, err := s.repos.Users(s.db).GetByPublicID(ctx, in.SenderID)
	if err != nil {
		return message.Message{}, err
	}

	m := message.Message{
		ConversationID: conv.ID,
		SenderID:       sender.PublicID,
		SenderName:     sender.DisplayName,
		Content:        content,
		Type:           msgType,
		Attachment:     in.Attachment,
		CreatedAt:      now(ctx, s.clock),
	}

	err = repository.WithTx(ctx, s.db, func(tx repository.DBTX) error {
		seq, err := s.repos.Conversations(tx).NextSeq(ctx, conv.ID)
		if err != nil {
			return err
		}
		m.Seq = seq
		if err := s.repos.Messages(tx).Create(ctx, &m); err != nil {
			return err
		}
		entry := m.LogEntry()
		return s.repos.MessageLogs(tx).Append(ctx, &entry)
	})
	if err != nil {
		return message.Message{}, err
	}

	s.events.MessageNew(ctx, conv.Counterpart(m.SenderID), m)
	return m, nil
}

func (s *MessageService) ListAll(ctx context.Context, conversationID uuid.UUID) ([]message.Message, error) {
	return s.repos.Messages(s.db).ListByConversation(ctx, conversationID)
}

func (s *MessageService) ListUnread(ctx context.Context, conversationID uuid.UUID, forUserID string) ([]message.Message, error) {
	return s.repos.Messages(s.db).ListUnread(ctx, conversationID, forUserID)
}

// ListSince returns messages with a sequence number above afterSeq.
func (s *MessageService) ListSince(ctx context.Context, conversationID uuid.UUID, afterSeq int64) ([]message.Message, error) {
	return s.repos.Messages(s.db).ListAfterSeq(ctx, conversationID, afterSeq)
}

// MarkDelivered flags every message of the conversation as delivered,
// whoever wrote it.
func (s *MessageService) MarkDelivered(ctx context.Context, conversationID uuid.UUID) (int64, error) {
	return s.repos.Messages(s.db).MarkDelivered(ctx, conversationID)
}

// MarkRead flags messages written by anyone but viewerID as read.
func (s *MessageService) MarkRead(ctx context.Context, conversationID uuid.UUID, viewerID string) (int64, error) {
	return s.repos.Messages(s.db).MarkRead(ctx, conversationID, viewerID)
}

// Delete removes one private message. Its audit-log copy stays.
func (s *MessageService) Delete(ctx context.Context, messageID int64) error {
	if err := s.repos.Messages(s.db).Delete(ctx, messageID); err != nil {
		return err
	}
	s.log.WithContext(ctx).Infof("Deleted message %d", messageID)
	return nil
}
