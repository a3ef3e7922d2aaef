package services

import (
	"context"
	"errors"
	"slices"

	"payam-chat/internal/domain/conversation"
	"payam-chat/internal/domain/user"
	"payam-chat/internal/proxy"
	"payam-chat/internal/repository"
	payam_errors "payam-chat/pkg/errors"
	"payam-chat/pkg/logger"

	"github.com/google/uuid"
)

// ConversationService resolves the single private thread of a user pair.
type ConversationService struct {
	db     repository.DBTX
	repos  repository.Manager
	access *proxy.AccessControl
	clock  Clock
	log    *logger.Logger
}

func NewConversationService(db repository.DBTX, repos repository.Manager, access *proxy.AccessControl, clock Clock, log *logger.Logger) *ConversationService {
	return &ConversationService{db: db, repos: repos, access: access, clock: clock, log: log}
}

// ResolveOrCreate returns the conversation between userA and userB, creating
// it on first contact. Argument order does not matter and concurrent callers
// get the same row.
func (s *ConversationService) ResolveOrCreate(ctx context.Context, userA, userB string) (conversation.Conversation, error) {
	if !user.IsValidPublicID(userA) || !user.IsValidPublicID(userB) || userA == userB {
		return conversation.Conversation{}, payam_errors.ErrInvalidParticipants
	}

	users := s.repos.Users(s.db)
	for _, id := range []string{userA, userB} {
		u, err := users.GetByPublicID(ctx, id)
		if err != nil {
			return conversation.Conversation{}, err
		}
		if !u.IsActive {
			return conversation.Conversation{}, payam_errors.ErrNotFound
		}
	}

	low, high := conversation.CanonicalPair(userA, userB)
	convs := s.repos.Conversations(s.db)

	c, err := convs.GetByPair(ctx, low, high)
	if err == nil {
		return c, nil
	}
	if !errors.Is(err, payam_errors.ErrNotFound) {
		return conversation.Conversation{}, err
	}

	c = conversation.Conversation{
		ID:              uuid.New(),
		ParticipantLow:  low,
		ParticipantHigh: high,
		CreatedAt:       now(ctx, s.clock),
	}
	if err := convs.Create(ctx, &c); err != nil {
		if errors.Is(err, payam_errors.ErrAlreadyExists) {
			// lost the race; the winner's row is the conversation
			return convs.GetByPair(ctx, low, high)
		}
		return conversation.Conversation{}, err
	}
	s.log.WithContext(ctx).Infof("Created conversation %s", c.ID)
	return c, nil
}

// ListForUser returns every conversation of userID, most recent activity
// first and conversations without messages last.
func (s *ConversationService) ListForUser(ctx context.Context, userID string) ([]conversation.Summary, error) {
	summaries, err := s.repos.Conversations(s.db).ListSummaries(ctx, userID)
	if err != nil {
		return nil, err
	}
	SortSummaries(summaries)
	return summaries, nil
}

func (s *ConversationService) Get(ctx context.Context, conversationID uuid.UUID, viewerID string) (conversation.Conversation, error) {
	return s.access.CanViewConversation(ctx, viewerID, conversationID)
}

func SortSummaries(summaries []conversation.Summary) {
	slices.SortStableFunc(summaries, func(a, b conversation.Summary) int {
		ta, tb := a.LastActivity(), b.LastActivity()
		switch {
		case ta.IsZero() && tb.IsZero():
			return 0
		case ta.IsZero():
			return 1
		case tb.IsZero():
			return -1
		}
		return tb.Compare(ta)
	})
}
