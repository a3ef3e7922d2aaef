package httpdto

import (
	"payam-chat/internal/domain/conversation"
	"payam-chat/internal/domain/group"
	"payam-chat/internal/domain/message"
)

// CreateGroupRequest is used for POST /v1/groups
type CreateGroupRequest struct {
	Name        string `json:"name" binding:"required"`
	Description string `json:"description,omitempty"`
}

// JoinGroupRequest is used for POST /v1/groups/join
type JoinGroupRequest struct {
	PublicID string `json:"public_id" binding:"required"`
}

// AddMemberRequest is used for POST /v1/groups/:id/members
type AddMemberRequest struct {
	UserID string `json:"user_id" binding:"required"`
}

type GroupDTO struct {
	ID          string `json:"id"`
	PublicID    string `json:"public_id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	CreatorID   string `json:"creator_id"`
	CreatedAt   string `json:"created_at"`
}

type GroupSummaryDTO struct {
	Group        GroupDTO         `json:"group"`
	IsAdmin      bool             `json:"is_admin"`
	Preview      string           `json:"preview"`
	LastMessage  *GroupMessageDTO `json:"last_message,omitempty"`
	LastActivity string           `json:"last_activity"`
	UnreadCount  int              `json:"unread_count"`
}

type GroupsResponse struct {
	Groups []GroupSummaryDTO `json:"groups"`
}

type MemberDTO struct {
	UserID      string `json:"user_id"`
	DisplayName string `json:"display_name"`
	IsAdmin     bool   `json:"is_admin"`
	JoinedAt    string `json:"joined_at"`
}

type MembersResponse struct {
	Members []MemberDTO `json:"members"`
}

func FromGroup(g group.Group) GroupDTO {
	return GroupDTO{
		ID:          g.ID.String(),
		PublicID:    g.PublicID,
		Name:        g.Name,
		Description: g.Description,
		CreatorID:   g.CreatorID,
		CreatedAt:   formatTime(g.CreatedAt),
	}
}

func FromGroupSummaries(summaries []group.Summary, viewerID string, resolve URLResolver) GroupsResponse {
	dtos := make([]GroupSummaryDTO, len(summaries))
	for i, s := range summaries {
		dto := GroupSummaryDTO{
			Group:        FromGroup(s.Group),
			IsAdmin:      s.IsAdmin,
			Preview:      conversation.NoMessagesPreview,
			LastActivity: formatTime(s.LastActivity()),
			UnreadCount:  s.UnreadCount,
		}
		if s.LastMessage != nil {
			last := FromGroupMessage(*s.LastMessage, viewerID, resolve)
			dto.LastMessage = &last
			dto.Preview = message.Preview(s.LastMessage.Content, 50)
		}
		dtos[i] = dto
	}
	return GroupsResponse{Groups: dtos}
}

func FromMembership(m group.Membership) MemberDTO {
	return MemberDTO{
		UserID:      m.UserID,
		DisplayName: m.DisplayName,
		IsAdmin:     m.IsAdmin,
		JoinedAt:    formatTime(m.JoinedAt),
	}
}

func FromMemberships(members []group.Membership) MembersResponse {
	dtos := make([]MemberDTO, len(members))
	for i, m := range members {
		dtos[i] = FromMembership(m)
	}
	return MembersResponse{Members: dtos}
}
