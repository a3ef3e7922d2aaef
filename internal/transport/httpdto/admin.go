package httpdto

import (
	"payam-chat/internal/domain/message"
	"payam-chat/internal/repository"
)

// DeactivateUsersRequest is used for POST /v1/admin/users/deactivate
type DeactivateUsersRequest struct {
	UserIDs []string `json:"user_ids" binding:"required"`
}

type DeactivateUsersResponse struct {
	Deactivated int64 `json:"deactivated"`
}

type AdminUserDTO struct {
	PublicID     string `json:"public_id"`
	DisplayName  string `json:"display_name"`
	PhoneNumber  string `json:"phone_number"`
	CreatedAt    string `json:"created_at"`
	LastSeen     string `json:"last_seen,omitempty"`
	IsOnline     bool   `json:"is_online"`
	IsActive     bool   `json:"is_active"`
	MessageCount int    `json:"message_count"`
}

type LogEntryDTO struct {
	ID         int64  `json:"id"`
	Kind       string `json:"kind"`
	SourceID   int64  `json:"source_id"`
	ThreadID   string `json:"thread_id"`
	SenderID   string `json:"sender_id"`
	SenderName string `json:"sender_name"`
	Content    string `json:"content"`
	Type       string `json:"type"`
	CreatedAt  string `json:"created_at"`
}

// Page wraps admin listings.
type Page[T any] struct {
	Items []T `json:"items"`
	Page  int `json:"page"`
}

func FromAdminUsers(rows []repository.AdminUserRow, page int) Page[AdminUserDTO] {
	items := make([]AdminUserDTO, len(rows))
	for i, r := range rows {
		items[i] = AdminUserDTO{
			PublicID:     r.PublicID,
			DisplayName:  r.DisplayName,
			PhoneNumber:  r.PhoneNumber,
			CreatedAt:    formatTime(r.CreatedAt),
			IsOnline:     r.IsOnline,
			IsActive:     r.IsActive,
			MessageCount: r.MessageCount,
		}
		if r.LastSeenAt.Valid {
			items[i].LastSeen = formatTime(r.LastSeenAt.Time)
		}
	}
	return Page[AdminUserDTO]{Items: items, Page: page}
}

func FromLogEntries(entries []message.LogEntry, page int) Page[LogEntryDTO] {
	items := make([]LogEntryDTO, len(entries))
	for i, e := range entries {
		items[i] = LogEntryDTO{
			ID:         e.ID,
			Kind:       string(e.Kind),
			SourceID:   e.SourceID,
			ThreadID:   e.ThreadID,
			SenderID:   e.SenderID,
			SenderName: e.SenderName,
			Content:    e.Content,
			Type:       string(e.Type),
			CreatedAt:  formatTime(e.CreatedAt),
		}
	}
	return Page[LogEntryDTO]{Items: items, Page: page}
}
