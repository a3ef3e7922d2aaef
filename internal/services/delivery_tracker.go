package services

import (
	"context"

	"payam-chat/internal/domain/message"
	"payam-chat/internal/proxy"
	"payam-chat/internal/repository"
	"payam-chat/pkg/logger"

	"github.com/google/uuid"
)

// DeliveryTracker applies the delivered and read transitions whenever a user
// looks at a thread. Delivered is always applied before read.
type DeliveryTracker struct {
	db     repository.DBTX
	repos  repository.Manager
	access *proxy.AccessControl
	events *EventPublisher
	clock  Clock
	log    *logger.Logger
}

func NewDeliveryTracker(db repository.DBTX, repos repository.Manager, access *proxy.AccessControl, events *EventPublisher, clock Clock, log *logger.Logger) *DeliveryTracker {
	return &DeliveryTracker{db: db, repos: repos, access: access, events: events, clock: clock, log: log}
}

// OpenConversation marks the conversation delivered and read for viewerID and
// returns the whole history as it is after the transition.
func (t *DeliveryTracker) OpenConversation(ctx context.Context, conversationID uuid.UUID, viewerID string) ([]message.Message, error) {
	return t.view(ctx, conversationID, viewerID, func(repo repository.MessageRepository) ([]message.Message, error) {
		return repo.ListByConversation(ctx, conversationID)
	})
}

// Poll is OpenConversation restricted to messages after afterSeq.
func (t *DeliveryTracker) Poll(ctx context.Context, conversationID uuid.UUID, viewerID string, afterSeq int64) ([]message.Message, error) {
	return t.view(ctx, conversationID, viewerID, func(repo repository.MessageRepository) ([]message.Message, error) {
		return repo.ListAfterSeq(ctx, conversationID, afterSeq)
	})
}

func (t *DeliveryTracker) view(ctx context.Context, conversationID uuid.UUID, viewerID string, list func(repository.MessageRepository) ([]message.Message, error)) ([]message.Message, error) {
	conv, err := t.access.CanViewConversation(ctx, viewerID, conversationID)
	if err != nil {
		return nil, err
	}

	var (
		msgs []message.Message
		read int64
	)
	err = repository.WithTx(ctx, t.db, func(tx repository.DBTX) error {
		repo := t.repos.Messages(tx)
		if _, err := repo.MarkDelivered(ctx, conv.ID); err != nil {
			return err
		}
		n, err := repo.MarkRead(ctx, conv.ID, viewerID)
		if err != nil {
			return err
		}
		read = n
		msgs, err = list(repo)
		return err
	})
	if err != nil {
		return nil, err
	}

	if read > 0 {
		t.events.MessagesRead(ctx, conv.Counterpart(viewerID), conv.ID, viewerID, max(conv.LastSeq, message.LastSeq(msgs)), now(ctx, t.clock))
	}
	return msgs, nil
}

// PollUnread returns every unread message addressed to viewerID across all
// conversations and marks exactly those messages delivered and read.
func (t *DeliveryTracker) PollUnread(ctx context.Context, viewerID string) ([]message.Message, error) {
	var msgs []message.Message
	var touched []uuid.UUID
	err := repository.WithTx(ctx, t.db, func(tx repository.DBTX) error {
		repo := t.repos.Messages(tx)
		var err error
		msgs, err = repo.ListUnreadForUser(ctx, viewerID)
		if err != nil {
			return err
		}
		ids := make([]int64, 0, len(msgs))
		seen := map[uuid.UUID]bool{}
		for _, m := range msgs {
			ids = append(ids, m.ID)
			if !seen[m.ConversationID] {
				seen[m.ConversationID] = true
				touched = append(touched, m.ConversationID)
			}
		}
		_, err = repo.MarkReadByIDs(ctx, viewerID, ids)
		return err
	})
	if err != nil {
		return nil, err
	}

	at := now(ctx, t.clock)
	for i := range msgs {
		msgs[i].Delivered = true
		msgs[i].Read = true
	}
	for _, convID := range touched {
		var author string
		var upTo int64
		for _, m := range msgs {
			if m.ConversationID == convID {
				author = m.SenderID
				if m.Seq > upTo {
					upTo = m.Seq
				}
			}
		}
		t.events.MessagesRead(ctx, author, convID, viewerID, upTo, at)
	}
	return msgs, nil
}

// UnreadCount always equals len(ListUnread) for the same arguments.
func (t *DeliveryTracker) UnreadCount(ctx context.Context, conversationID uuid.UUID, forUserID string) (int, error) {
	if _, err := t.access.CanViewConversation(ctx, forUserID, conversationID); err != nil {
		return 0, err
	}
	return t.repos.Messages(t.db).CountUnread(ctx, conversationID, forUserID)
}

// OpenGroup adds viewerID to the delivered-to and read-by sets of every group
// message and returns the history.
func (t *DeliveryTracker) OpenGroup(ctx context.Context, groupID uuid.UUID, viewerID string) ([]message.GroupMessage, error) {
	if _, err := t.access.EnsureMember(ctx, viewerID, groupID); err != nil {
		return nil, err
	}

	at := now(ctx, t.clock)
	var (
		msgs []message.GroupMessage
		read int64
	)
	err := repository.WithTx(ctx, t.db, func(tx repository.DBTX) error {
		repo := t.repos.GroupMessages(tx)
		if _, err := repo.MarkDeliveredForUser(ctx, groupID, viewerID, at); err != nil {
			return err
		}
		n, err := repo.MarkReadForUser(ctx, groupID, viewerID, at)
		if err != nil {
			return err
		}
		read = n
		msgs, err = repo.ListByGroup(ctx, groupID)
		return err
	})
	if err != nil {
		return nil, err
	}

	if read > 0 {
		t.events.GroupMessagesRead(ctx, groupAuthors(msgs, viewerID), groupID, viewerID, message.LastSeq(msgs), at)
	}
	return msgs, nil
}

// MarkReadForUser adds userID to the read-by set of every group message not
// written by them. Repeated calls change nothing.
func (t *DeliveryTracker) MarkReadForUser(ctx context.Context, groupID uuid.UUID, userID string) (int64, error) {
	if _, err := t.access.EnsureMember(ctx, userID, groupID); err != nil {
		return 0, err
	}
	return t.repos.GroupMessages(t.db).MarkReadForUser(ctx, groupID, userID, now(ctx, t.clock))
}

func (t *DeliveryTracker) GroupUnreadCount(ctx context.Context, groupID uuid.UUID, userID string) (int, error) {
	if _, err := t.access.EnsureMember(ctx, userID, groupID); err != nil {
		return 0, err
	}
	return t.repos.GroupMessages(t.db).CountUnread(ctx, groupID, userID)
}

// DeliveryState is the per-viewer view of one message.
type DeliveryState struct {
	Delivered bool
	Read      bool
	Unread    bool
}

func StateFor(d message.Deliverable, viewerID string) DeliveryState {
	return DeliveryState{
		Delivered: d.IsDeliveredTo(viewerID),
		Read:      d.IsReadBy(viewerID),
		Unread:    message.IsUnreadFor(d, viewerID),
	}
}

func groupAuthors(msgs []message.GroupMessage, except string) []string {
	seen := map[string]bool{except: true}
	var authors []string
	for _, m := range msgs {
		if !seen[m.SenderID] {
			seen[m.SenderID] = true
			authors = append(authors, m.SenderID)
		}
	}
	return authors
}
