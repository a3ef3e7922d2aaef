package proxy

import (
	"context"
	"errors"

	"payam-chat/internal/domain/conversation"
	"payam-chat/internal/domain/group"
	"payam-chat/internal/repository"
	payam_errors "payam-chat/pkg/errors"

	"github.com/google/uuid"
)

// AccessControl answers "may this user touch this thread" for conversations
// and groups. Failed checks return ErrUnauthorized.
type AccessControl struct {
	conversationRepo repository.ConversationRepository
	groupRepo        repository.GroupRepository
}

func NewAccessControl(conversationRepo repository.ConversationRepository, groupRepo repository.GroupRepository) *AccessControl {
	return &AccessControl{conversationRepo: conversationRepo, groupRepo: groupRepo}
}

func (a *AccessControl) CanViewConversation(ctx context.Context, userID string, conversationID uuid.UUID) (conversation.Conversation, error) {
	return a.ensureParticipant(ctx, conversationID, userID)
}

func (a *AccessControl) CanSendMessage(ctx context.Context, userID string, conversationID uuid.UUID) (conversation.Conversation, error) {
	return a.ensureParticipant(ctx, conversationID, userID)
}

// EnsureMember returns the caller's membership row.
func (a *AccessControl) EnsureMember(ctx context.Context, userID string, groupID uuid.UUID) (group.Membership, error) {
	if a.groupRepo == nil {
		return group.Membership{}, payam_errors.ErrForbidden
	}
	if _, err := a.groupRepo.GetByID(ctx, groupID); err != nil {
		return group.Membership{}, err
	}
	m, err := a.groupRepo.GetMember(ctx, groupID, userID)
	if err != nil {
		if errors.Is(err, payam_errors.ErrNotFound) {
			return group.Membership{}, payam_errors.ErrUnauthorized
		}
		return group.Membership{}, err
	}
	return m, nil
}

func (a *AccessControl) CanManageGroup(ctx context.Context, userID string, groupID uuid.UUID) error {
	m, err := a.EnsureMember(ctx, userID, groupID)
	if err != nil {
		return err
	}
	if !m.IsAdmin {
		return payam_errors.ErrUnauthorized
	}
	return nil
}

// SharesConversation reports whether a and b have a private conversation.
func (a *AccessControl) SharesConversation(ctx context.Context, userA, userB string) (bool, error) {
	if a.conversationRepo == nil {
		return false, nil
	}
	low, high := conversation.CanonicalPair(userA, userB)
	_, err := a.conversationRepo.GetByPair(ctx, low, high)
	if err != nil {
		if errors.Is(err, payam_errors.ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func (a *AccessControl) ensureParticipant(ctx context.Context, conversationID uuid.UUID, userID string) (conversation.Conversation, error) {
	if a.conversationRepo == nil {
		return conversation.Conversation{}, payam_errors.ErrForbidden
	}
	c, err := a.conversationRepo.GetByID(ctx, conversationID)
	if err != nil {
		return conversation.Conversation{}, err
	}
	if !c.HasParticipant(userID) {
		return conversation.Conversation{}, payam_errors.ErrUnauthorized
	}
	return c, nil
}
