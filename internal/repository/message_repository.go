package repository

import (
	"context"
	"database/sql"
	"fmt"

	"payam-chat/internal/domain/message"
	payam_errors "payam-chat/pkg/errors"

	"github.com/google/uuid"
)

const messageColumns = `id, conversation_id, seq, sender_id, sender_name, content, type, file_path, file_name, file_size, created_at, delivered, read`

type PostgresMessageRepository struct {
	db DBTX
}

func NewMessageRepository(db DBTX) MessageRepository {
	return &PostgresMessageRepository{db: db}
}

func attachmentArgs(a *message.Attachment) (sql.NullString, sql.NullString, sql.NullInt64) {
	if a == nil {
		return sql.NullString{}, sql.NullString{}, sql.NullInt64{}
	}
	return sql.NullString{String: a.Path, Valid: true},
		sql.NullString{String: a.OriginalName, Valid: true},
		sql.NullInt64{Int64: a.SizeBytes, Valid: true}
}

func attachmentFrom(path, name sql.NullString, size sql.NullInt64) *message.Attachment {
	if !path.Valid {
		return nil
	}
	return &message.Attachment{Path: path.String, OriginalName: name.String, SizeBytes: size.Int64}
}

func (r *PostgresMessageRepository) Create(ctx context.Context, m *message.Message) error {
	path, name, size := attachmentArgs(m.Attachment)
	err := r.db.QueryRowContext(ctx, `
        INSERT INTO messages (conversation_id, seq, sender_id, sender_name, content, type, file_path, file_name, file_size, created_at, delivered, read)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
        RETURNING id
    `,
		m.ConversationID,
		m.Seq,
		m.SenderID,
		m.SenderName,
		m.Content,
		m.Type,
		path,
		name,
		size,
		m.CreatedAt,
		m.Delivered,
		m.Read,
	).Scan(&m.ID)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *PostgresMessageRepository) Delete(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM messages WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	if n == 0 {
		return payam_errors.ErrNotFound
	}
	return nil
}

func (r *PostgresMessageRepository) ListByConversation(ctx context.Context, conversationID uuid.UUID) ([]message.Message, error) {
	return r.list(ctx, `
        SELECT `+messageColumns+`
        FROM messages
        WHERE conversation_id = $1
        ORDER BY seq ASC, id ASC
    `, conversationID)
}

func (r *PostgresMessageRepository) ListAfterSeq(ctx context.Context, conversationID uuid.UUID, afterSeq int64) ([]message.Message, error) {
	return r.list(ctx, `
        SELECT `+messageColumns+`
        FROM messages
        WHERE conversation_id = $1 AND seq > $2
        ORDER BY seq ASC, id ASC
    `, conversationID, afterSeq)
}

func (r *PostgresMessageRepository) ListUnread(ctx context.Context, conversationID uuid.UUID, forUserID string) ([]message.Message, error) {
	return r.list(ctx, `
        SELECT `+messageColumns+`
        FROM messages
        WHERE conversation_id = $1 AND sender_id <> $2 AND read = FALSE
        ORDER BY seq ASC, id ASC
    `, conversationID, forUserID)
}

func (r *PostgresMessageRepository) CountUnread(ctx context.Context, conversationID uuid.UUID, forUserID string) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx, `
        SELECT COUNT(*)
        FROM messages
        WHERE conversation_id = $1 AND sender_id <> $2 AND read = FALSE
    `, conversationID, forUserID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	return n, nil
}

// ListUnreadForUser returns unread messages addressed to userID across all of
// their conversations, oldest first.
func (r *PostgresMessageRepository) ListUnreadForUser(ctx context.Context, userID string) ([]message.Message, error) {
	return r.list(ctx, `
        SELECT m.id, m.conversation_id, m.seq, m.sender_id, m.sender_name, m.content, m.type,
               m.file_path, m.file_name, m.file_size, m.created_at, m.delivered, m.read
        FROM messages m
        JOIN conversations c ON c.id = m.conversation_id
        WHERE (c.participant_low = $1 OR c.participant_high = $1)
          AND m.sender_id <> $1 AND m.read = FALSE
        ORDER BY m.created_at ASC, m.id ASC
    `, userID)
}

func (r *PostgresMessageRepository) MarkDelivered(ctx context.Context, conversationID uuid.UUID) (int64, error) {
	res, err := r.db.ExecContext(ctx, `
        UPDATE messages SET delivered = TRUE
        WHERE conversation_id = $1 AND delivered = FALSE
    `, conversationID)
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	return res.RowsAffected()
}

func (r *PostgresMessageRepository) MarkRead(ctx context.Context, conversationID uuid.UUID, viewerID string) (int64, error) {
	res, err := r.db.ExecContext(ctx, `
        UPDATE messages SET delivered = TRUE, read = TRUE
        WHERE conversation_id = $1 AND sender_id <> $2 AND read = FALSE
    `, conversationID, viewerID)
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	return res.RowsAffected()
}

func (r *PostgresMessageRepository) MarkReadByIDs(ctx context.Context, viewerID string, ids []int64) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	args := make([]interface{}, 0, len(ids)+1)
	args = append(args, viewerID)
	for _, id := range ids {
		args = append(args, id)
	}
	res, err := r.db.ExecContext(ctx, `
        UPDATE messages SET delivered = TRUE, read = TRUE
        WHERE sender_id <> $1 AND read = FALSE AND id IN (`+buildPlaceholders(2, len(ids))+`)
    `, args...)
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	return res.RowsAffected()
}

func (r *PostgresMessageRepository) list(ctx context.Context, query string, args ...interface{}) ([]message.Message, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	messages := []message.Message{}
	for rows.Next() {
		var (
			m    message.Message
			path sql.NullString
			name sql.NullString
			size sql.NullInt64
		)
		if err := rows.Scan(
			&m.ID,
			&m.ConversationID,
			&m.Seq,
			&m.SenderID,
			&m.SenderName,
			&m.Content,
			&m.Type,
			&path,
			&name,
			&size,
			&m.CreatedAt,
			&m.Delivered,
			&m.Read,
		); err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		m.Attachment = attachmentFrom(path, name, size)
		messages = append(messages, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return messages, nil
}
