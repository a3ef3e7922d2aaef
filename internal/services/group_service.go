package services

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"unicode/utf8"

	"payam-chat/internal/domain/group"
	"payam-chat/internal/domain/message"
	"payam-chat/internal/domain/user"
	"payam-chat/internal/proxy"
	"payam-chat/internal/repository"
	payam_errors "payam-chat/pkg/errors"
	"payam-chat/pkg/logger"

	"github.com/google/uuid"
)

const MaxGroupNameLength = 100

type GroupAppendInput struct {
	GroupID    uuid.UUID
	SenderID   string
	Content    string
	Type       message.Type
	Attachment *message.Attachment
}

type GroupService struct {
	db      repository.DBTX
	repos   repository.Manager
	access  *proxy.AccessControl
	tracker *DeliveryTracker
	events  *EventPublisher
	clock   Clock
	log     *logger.Logger
}

func NewGroupService(db repository.DBTX, repos repository.Manager, access *proxy.AccessControl, tracker *DeliveryTracker, events *EventPublisher, clock Clock, log *logger.Logger) *GroupService {
	return &GroupService{db: db, repos: repos, access: access, tracker: tracker, events: events, clock: clock, log: log}
}

// Create makes a group with the creator as its first, admin, member.
func (s *GroupService) Create(ctx context.Context, creatorID, name, description string) (group.Group, error) {
	name = strings.TrimSpace(name)
	if name == "" || utf8.RuneCountInString(name) > MaxGroupNameLength {
		return group.Group{}, payam_errors.ErrInvalidInput
	}
	creator, err := s.activeUser(ctx, creatorID)
	if err != nil {
		return group.Group{}, err
	}

	createdAt := now(ctx, s.clock)
	for attempt := 0; attempt < maxPublicIDAttempts; attempt++ {
		publicID, err := newPublicID()
		if err != nil {
			return group.Group{}, err
		}
		g := group.Group{
			ID:          uuid.New(),
			PublicID:    publicID,
			Name:        name,
			Description: strings.TrimSpace(description),
			CreatorID:   creator.PublicID,
			CreatedAt:   createdAt,
		}
		err = repository.WithTx(ctx, s.db, func(tx repository.DBTX) error {
			groups := s.repos.Groups(tx)
			if err := groups.Create(ctx, &g); err != nil {
				return err
			}
			return groups.AddMember(ctx, &group.Membership{
				GroupID:     g.ID,
				UserID:      creator.PublicID,
				DisplayName: creator.DisplayName,
				JoinedAt:    createdAt,
				IsAdmin:     true,
			})
		})
		if errors.Is(err, payam_errors.ErrAlreadyExists) {
			continue
		}
		if err != nil {
			return group.Group{}, err
		}
		s.log.WithContext(ctx).Infof("Created group %s by %s", g.PublicID, creator.PublicID)
		return g, nil
	}
	return group.Group{}, fmt.Errorf("allocate group id: %w", payam_errors.ErrAlreadyExists)
}

// AddMember lets a group admin add another user.
func (s *GroupService) AddMember(ctx context.Context, groupID uuid.UUID, actorID, userID string) (group.Membership, error) {
	if err := s.access.CanManageGroup(ctx, actorID, groupID); err != nil {
		return group.Membership{}, err
	}
	return s.addMember(ctx, groupID, userID)
}

// Join adds userID to the group with the given public id.
func (s *GroupService) Join(ctx context.Context, groupPublicID, userID string) (group.Group, error) {
	g, err := s.repos.Groups(s.db).GetByPublicID(ctx, strings.ToUpper(strings.TrimSpace(groupPublicID)))
	if err != nil {
		return group.Group{}, err
	}
	if _, err := s.addMember(ctx, g.ID, userID); err != nil {
		return group.Group{}, err
	}
	return g, nil
}

func (s *GroupService) addMember(ctx context.Context, groupID uuid.UUID, userID string) (group.Membership, error) {
	u, err := s.activeUser(ctx, userID)
	if err != nil {
		return group.Membership{}, err
	}
	m := group.Membership{
		GroupID:     groupID,
		UserID:      u.PublicID,
		DisplayName: u.DisplayName,
		JoinedAt:    now(ctx, s.clock),
	}
	if err := s.repos.Groups(s.db).AddMember(ctx, &m); err != nil {
		return group.Membership{}, err
	}
	return m, nil
}

// Leave removes userID from the group. When the last admin leaves, the
// longest-standing remaining member becomes admin.
func (s *GroupService) Leave(ctx context.Context, groupID uuid.UUID, userID string) error {
	var promoted string
	err := repository.WithTx(ctx, s.db, func(tx repository.DBTX) error {
		repo := s.repos.Groups(tx)
		if err := repo.RemoveMember(ctx, groupID, userID); err != nil {
			return err
		}
		id, err := repo.PromoteOldestMember(ctx, groupID)
		if err != nil && !errors.Is(err, payam_errors.ErrNotFound) {
			return err
		}
		promoted = id
		return nil
	})
	if err != nil {
		return err
	}
	if promoted != "" {
		s.log.WithContext(ctx).Infof("Promoted %s to admin of group %s", promoted, groupID)
	}
	return nil
}

// ListForUser returns the user's groups, most recent activity first.
func (s *GroupService) ListForUser(ctx context.Context, userID string) ([]group.Summary, error) {
	summaries, err := s.repos.Groups(s.db).ListSummaries(ctx, userID)
	if err != nil {
		return nil, err
	}
	slices.SortStableFunc(summaries, func(a, b group.Summary) int {
		return b.LastActivity().Compare(a.LastActivity())
	})
	return summaries, nil
}

func (s *GroupService) Members(ctx context.Context, groupID uuid.UUID, viewerID string) ([]group.Membership, error) {
	if _, err := s.access.EnsureMember(ctx, viewerID, groupID); err != nil {
		return nil, err
	}
	return s.repos.Groups(s.db).ListMembers(ctx, groupID)
}

// Messages opens the group for viewerID; see DeliveryTracker.OpenGroup.
func (s *GroupService) Messages(ctx context.Context, groupID uuid.UUID, viewerID string) ([]message.GroupMessage, error) {
	return s.tracker.OpenGroup(ctx, groupID, viewerID)
}

// Send appends a group message with the same content rules as private
// messages. The sender starts out with nobody in the delivered or read sets.
func (s *GroupService) Send(ctx context.Context, in GroupAppendInput) (message.GroupMessage, error) {
	msgType := in.Type
	if msgType == "" {
		msgType = message.TypeText
	}
	content, err := message.PrepareContent(msgType, in.Content, in.Attachment)
	if err != nil {
		return message.GroupMessage{}, err
	}
	member, err := s.access.EnsureMember(ctx, in.SenderID, in.GroupID)
	if err != nil {
		return message.GroupMessage{}, err
	}

	m := message.GroupMessage{
		GroupID:     in.GroupID,
		SenderID:    member.UserID,
		SenderName:  member.DisplayName,
		Content:     content,
		Type:        msgType,
		Attachment:  in.Attachment,
		CreatedAt:   now(ctx, s.clock),
		DeliveredTo: []string{},
		ReadBy:      []string{},
	}
	err = repository.WithTx(ctx, s.db, func(tx repository.DBTX) error {
		seq, err := s.repos.Groups(tx).NextSeq(ctx, in.GroupID)
		if err != nil {
			return err
		}
		m.Seq = seq
		if err := s.repos.GroupMessages(tx).Create(ctx, &m); err != nil {
			return err
		}
		entry := m.LogEntry()
		return s.repos.MessageLogs(tx).Append(ctx, &entry)
	})
	if err != nil {
		return message.GroupMessage{}, err
	}

	members, err := s.repos.Groups(s.db).ListMembers(ctx, in.GroupID)
	if err != nil {
		s.log.WithContext(ctx).Warnf("Failed to list members of %s for fan-out: %v", in.GroupID, err)
		return m, nil
	}
	recipients := make([]string, 0, len(members))
	for _, gm := range members {
		if gm.UserID != m.SenderID {
			recipients = append(recipients, gm.UserID)
		}
	}
	s.events.GroupMessageNew(ctx, recipients, m)
	return m, nil
}

func (s *GroupService) activeUser(ctx context.Context, publicID string) (user.User, error) {
	u, err := s.repos.Users(s.db).GetByPublicID(ctx, publicID)
	if err != nil {
		return user.User{}, err
	}
	if !u.IsActive {
		return user.User{}, payam_errors.ErrNotFound
	}
	return u, nil
}
