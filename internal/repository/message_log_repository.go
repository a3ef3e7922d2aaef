package repository

import (
	"context"
	"fmt"

	"payam-chat/internal/domain/message"
)

type messageLogRepository struct {
	db DBTX
}

func NewMessageLogRepository(db DBTX) MessageLogRepository {
	return &messageLogRepository{db: db}
}

func (r *messageLogRepository) Append(ctx context.Context, e *message.LogEntry) error {
	err := r.db.QueryRowContext(ctx, `
        INSERT INTO message_logs (kind, source_id, thread_id, sender_id, sender_name, content, type, created_at)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
        RETURNING id
    `,
		e.Kind,
		e.SourceID,
		e.ThreadID,
		e.SenderID,
		e.SenderName,
		e.Content,
		e.Type,
		e.CreatedAt,
	).Scan(&e.ID)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}
