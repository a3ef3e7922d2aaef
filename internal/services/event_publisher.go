package services

import (
	"context"
	"time"

	"payam-chat/internal/domain/message"
	"payam-chat/internal/events"
	"payam-chat/pkg/logger"

	"github.com/google/uuid"
)

// EventPublisher pushes realtime notifications to per-user redis channels.
// Publishing happens after commit and never fails the calling operation.
type EventPublisher struct {
	pub events.Publisher
	log *logger.Logger
}

func NewEventPublisher(pub events.Publisher, log *logger.Logger) *EventPublisher {
	return &EventPublisher{pub: pub, log: log}
}

func (p *EventPublisher) MessageNew(ctx context.Context, recipientID string, m message.Message) {
	payload := events.MessagePayload{
		ID:             m.ID,
		ConversationID: m.ConversationID.String(),
		Seq:            m.Seq,
		SenderID:       m.SenderID,
		SenderName:     m.SenderName,
		Content:        m.Content,
		Type:           string(m.Type),
		CreatedAt:      m.CreatedAt,
	}
	p.publish(ctx, []string{recipientID}, events.EventTypeMessageNew, events.AggregateTypeConversation, m.ConversationID.String(), m.CreatedAt, payload)
}

// MessagesRead tells authorID that readerID has read the conversation up to upToSeq.
func (p *EventPublisher) MessagesRead(ctx context.Context, authorID string, conversationID uuid.UUID, readerID string, upToSeq int64, at time.Time) {
	payload := events.ReadPayload{
		ConversationID: conversationID.String(),
		ReaderID:       readerID,
		UpToSeq:        upToSeq,
		ReadAt:         at,
	}
	p.publish(ctx, []string{authorID}, events.EventTypeMessageRead, events.AggregateTypeConversation, conversationID.String(), at, payload)
}

func (p *EventPublisher) GroupMessageNew(ctx context.Context, recipients []string, m message.GroupMessage) {
	payload := events.MessagePayload{
		ID:         m.ID,
		GroupID:    m.GroupID.String(),
		Seq:        m.Seq,
		SenderID:   m.SenderID,
		SenderName: m.SenderName,
		Content:    m.Content,
		Type:       string(m.Type),
		CreatedAt:  m.CreatedAt,
	}
	p.publish(ctx, recipients, events.EventTypeGroupMessageNew, events.AggregateTypeGroup, m.GroupID.String(), m.CreatedAt, payload)
}

func (p *EventPublisher) GroupMessagesRead(ctx context.Context, authors []string, groupID uuid.UUID, readerID string, upToSeq int64, at time.Time) {
	payload := events.ReadPayload{
		GroupID:  groupID.String(),
		ReaderID: readerID,
		UpToSeq:  upToSeq,
		ReadAt:   at,
	}
	p.publish(ctx, authors, events.EventTypeGroupMessagesRead, events.AggregateTypeGroup, groupID.String(), at, payload)
}

func (p *EventPublisher) publish(ctx context.Context, recipients []string, eventType, aggregateType, aggregateID string, at time.Time, payload interface{}) {
	if p == nil || p.pub == nil || len(recipients) == 0 {
		return
	}
	data, err := events.NewEnvelope(eventType, aggregateType, aggregateID, at, payload)
	if err != nil {
		p.log.WithContext(ctx).Errorf("Failed to encode %s event: %v", eventType, err)
		return
	}
	for _, recipient := range recipients {
		if err := p.pub.Publish(ctx, events.UserChannel(recipient), data); err != nil {
			p.log.WithContext(ctx).Warnf("Failed to publish %s to %s: %v", eventType, recipient, err)
		}
	}
}
