package httpdto

import (
	"time"

	"payam-chat/internal/domain/user"
)

// UserDTO represents a user in API responses. The phone number is never
// exposed to other users.
type UserDTO struct {
	PublicID    string `json:"public_id"`
	DisplayName string `json:"display_name"`
	IsOnline    bool   `json:"is_online"`
	LastSeen    string `json:"last_seen,omitempty"`
	CreatedAt   string `json:"created_at"`
}

// MeDTO is the caller's own profile.
type MeDTO struct {
	UserDTO
	PhoneNumber string `json:"phone_number"`
	HasPassword bool   `json:"has_password"`
}

type SearchResponse struct {
	Users []UserDTO `json:"users"`
}

// FromUser converts a domain user to UserDTO
func FromUser(u user.User) UserDTO {
	dto := UserDTO{
		PublicID:    u.PublicID,
		DisplayName: u.DisplayName,
		IsOnline:    u.IsOnline,
		CreatedAt:   formatTime(u.CreatedAt),
	}
	if u.LastSeenAt.Valid {
		dto.LastSeen = formatTime(u.LastSeenAt.Time)
	}
	return dto
}

func FromMe(u user.User) MeDTO {
	return MeDTO{
		UserDTO:     FromUser(u),
		PhoneNumber: u.PhoneNumber,
		HasPassword: u.HasCredential(),
	}
}

// FromUserSlice converts a slice of domain users to UserDTO slice
func FromUserSlice(users []user.User) []UserDTO {
	dtos := make([]UserDTO, len(users))
	for i, u := range users {
		dtos[i] = FromUser(u)
	}
	return dtos
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}
