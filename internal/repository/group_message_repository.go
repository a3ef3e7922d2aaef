package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"payam-chat/internal/domain/message"

	"github.com/google/uuid"
)

type PostgresGroupMessageRepository struct {
	db DBTX
}

func NewGroupMessageRepository(db DBTX) GroupMessageRepository {
	return &PostgresGroupMessageRepository{db: db}
}

func (r *PostgresGroupMessageRepository) Create(ctx context.Context, m *message.GroupMessage) error {
	path, name, size := attachmentArgs(m.Attachment)
	err := r.db.QueryRowContext(ctx, `
        INSERT INTO group_messages (group_id, seq, sender_id, sender_name, content, type, file_path, file_name, file_size, created_at)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
        RETURNING id
    `,
		m.GroupID,
		m.Seq,
		m.SenderID,
		m.SenderName,
		m.Content,
		m.Type,
		path,
		name,
		size,
		m.CreatedAt,
	).Scan(&m.ID)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

// ListByGroup returns the group history with the delivered-to and read-by sets
// folded in from the receipts table.
func (r *PostgresGroupMessageRepository) ListByGroup(ctx context.Context, groupID uuid.UUID) ([]message.GroupMessage, error) {
	rows, err := r.db.QueryContext(ctx, `
        SELECT gm.id, gm.group_id, gm.seq, gm.sender_id, gm.sender_name, gm.content, gm.type,
               gm.file_path, gm.file_name, gm.file_size, gm.created_at,
               COALESCE(string_agg(rc.user_id, ',' ORDER BY rc.user_id), '') AS delivered_to,
               COALESCE(string_agg(rc.user_id, ',' ORDER BY rc.user_id) FILTER (WHERE rc.read_at IS NOT NULL), '') AS read_by
        FROM group_messages gm
        LEFT JOIN group_message_receipts rc ON rc.message_id = gm.id
        WHERE gm.group_id = $1
        GROUP BY gm.id
        ORDER BY gm.seq ASC, gm.id ASC
    `, groupID)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	messages := []message.GroupMessage{}
	for rows.Next() {
		var (
			m           message.GroupMessage
			path        sql.NullString
			name        sql.NullString
			size        sql.NullInt64
			deliveredTo string
			readBy      string
		)
		if err := rows.Scan(
			&m.ID,
			&m.GroupID,
			&m.Seq,
			&m.SenderID,
			&m.SenderName,
			&m.Content,
			&m.Type,
			&path,
			&name,
			&size,
			&m.CreatedAt,
			&deliveredTo,
			&readBy,
		); err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		m.Attachment = attachmentFrom(path, name, size)
		m.DeliveredTo = splitIDs(deliveredTo)
		m.ReadBy = splitIDs(readBy)
		messages = append(messages, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return messages, nil
}

func (r *PostgresGroupMessageRepository) CountUnread(ctx context.Context, groupID uuid.UUID, userID string) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx, `
        SELECT COUNT(*)
        FROM group_messages gm
        WHERE gm.group_id = $1 AND gm.sender_id <> $2
          AND NOT EXISTS (
              SELECT 1 FROM group_message_receipts rc
              WHERE rc.message_id = gm.id AND rc.user_id = $2 AND rc.read_at IS NOT NULL
          )
    `, groupID, userID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	return n, nil
}

// MarkDeliveredForUser adds userID to the delivered-to set of every message
// written by someone else. Existing receipts are left untouched.
func (r *PostgresGroupMessageRepository) MarkDeliveredForUser(ctx context.Context, groupID uuid.UUID, userID string, at time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, `
        INSERT INTO group_message_receipts (message_id, user_id, delivered_at)
        SELECT gm.id, $2, $3
        FROM group_messages gm
        WHERE gm.group_id = $1 AND gm.sender_id <> $2
        ON CONFLICT (message_id, user_id) DO NOTHING
    `, groupID, userID, at)
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	return res.RowsAffected()
}

// MarkReadForUser adds userID to the read-by set of every message written by
// someone else. A message already read keeps its original read time.
func (r *PostgresGroupMessageRepository) MarkReadForUser(ctx context.Context, groupID uuid.UUID, userID string, at time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, `
        INSERT INTO group_message_receipts (message_id, user_id, delivered_at, read_at)
        SELECT gm.id, $2, $3, $3
        FROM group_messages gm
        WHERE gm.group_id = $1 AND gm.sender_id <> $2
        ON CONFLICT (message_id, user_id) DO UPDATE
            SET read_at = EXCLUDED.read_at
            WHERE group_message_receipts.read_at IS NULL
    `, groupID, userID, at)
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	return res.RowsAffected()
}
