package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"payam-chat/internal/domain/message"

	"github.com/jmoiron/sqlx"
)

type AdminStats struct {
	TotalUsers         int `db:"total_users" json:"total_users"`
	ActiveUsers        int `db:"active_users" json:"active_users"`
	OnlineNow          int `db:"online_now" json:"online_now"`
	RegisteredToday    int `db:"registered_today" json:"registered_today"`
	TotalMessages      int `db:"total_messages" json:"total_messages"`
	UnreadMessages     int `db:"unread_messages" json:"unread_messages"`
	TotalGroups        int `db:"total_groups" json:"total_groups"`
	TotalGroupMessages int `db:"total_group_messages" json:"total_group_messages"`
}

type AdminUserRow struct {
	PublicID     string       `db:"public_id"`
	DisplayName  string       `db:"display_name"`
	PhoneNumber  string       `db:"phone_number"`
	CreatedAt    time.Time    `db:"created_at"`
	LastSeenAt   sql.NullTime `db:"last_seen_at"`
	IsOnline     bool         `db:"is_online"`
	IsActive     bool         `db:"is_active"`
	MessageCount int          `db:"message_count"`
}

// AdminRepository serves the read-only dashboards. It sits on sqlx because
// every query maps straight onto a tagged struct.
type AdminRepository struct {
	db *sqlx.DB
}

func NewAdminRepository(db *sqlx.DB) *AdminRepository {
	return &AdminRepository{db: db}
}

func (r *AdminRepository) Stats(ctx context.Context, since time.Time) (AdminStats, error) {
	var s AdminStats
	err := r.db.GetContext(ctx, &s, `
        SELECT
            (SELECT COUNT(*) FROM users)                                  AS total_users,
            (SELECT COUNT(*) FROM users WHERE is_active = TRUE)           AS active_users,
            (SELECT COUNT(*) FROM users WHERE is_online = TRUE)           AS online_now,
            (SELECT COUNT(*) FROM users WHERE created_at >= $1)           AS registered_today,
            (SELECT COUNT(*) FROM messages)                               AS total_messages,
            (SELECT COUNT(*) FROM messages WHERE read = FALSE)            AS unread_messages,
            (SELECT COUNT(*) FROM groups)                                 AS total_groups,
            (SELECT COUNT(*) FROM group_messages)                         AS total_group_messages
    `, since)
	if err != nil {
		return AdminStats{}, fmt.Errorf("db error: %w", err)
	}
	return s, nil
}

func (r *AdminRepository) ListUsers(ctx context.Context, limit, offset int) ([]AdminUserRow, error) {
	rows := []AdminUserRow{}
	err := r.db.SelectContext(ctx, &rows, `
        SELECT u.public_id, u.display_name, u.phone_number, u.created_at, u.last_seen_at,
               u.is_online, u.is_active,
               (SELECT COUNT(*) FROM message_logs l WHERE l.sender_id = u.public_id) AS message_count
        FROM users u
        ORDER BY u.created_at DESC, u.id DESC
        LIMIT $1 OFFSET $2
    `, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return rows, nil
}

// ListMessageLog pages through the audit mirror, newest first. It keeps
// entries whose source message was deleted.
func (r *AdminRepository) ListMessageLog(ctx context.Context, limit, offset int) ([]message.LogEntry, error) {
	entries := []message.LogEntry{}
	err := r.db.SelectContext(ctx, &entries, `
        SELECT id, kind, source_id, thread_id, sender_id, sender_name, content, type, created_at
        FROM message_logs
        ORDER BY created_at DESC, id DESC
        LIMIT $1 OFFSET $2
    `, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return entries, nil
}
