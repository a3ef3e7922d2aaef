package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"payam-chat/internal/domain/conversation"
	"payam-chat/internal/domain/message"
	payam_errors "payam-chat/pkg/errors"

	"github.com/google/uuid"
)

const conversationColumns = `id, participant_low, participant_high, last_seq, created_at`

type PostgresConversationRepository struct {
	db DBTX
}

func NewConversationRepository(db DBTX) ConversationRepository {
	return &PostgresConversationRepository{db: db}
}

func (r *PostgresConversationRepository) Create(ctx context.Context, c *conversation.Conversation) error {
	_, err := r.db.ExecContext(ctx, `
        INSERT INTO conversations (id, participant_low, participant_high, last_seq, created_at)
        VALUES ($1,$2,$3,$4,$5)
    `, c.ID, c.ParticipantLow, c.ParticipantHigh, c.LastSeq, c.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return payam_errors.ErrAlreadyExists
		}
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *PostgresConversationRepository) GetByID(ctx context.Context, id uuid.UUID) (conversation.Conversation, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+conversationColumns+` FROM conversations WHERE id = $1`, id)
	return scanConversation(row)
}

func (r *PostgresConversationRepository) GetByPair(ctx context.Context, low, high string) (conversation.Conversation, error) {
	row := r.db.QueryRowContext(ctx, `
        SELECT `+conversationColumns+`
        FROM conversations
        WHERE participant_low = $1 AND participant_high = $2
    `, low, high)
	return scanConversation(row)
}

func scanConversation(row *sql.Row) (conversation.Conversation, error) {
	var c conversation.Conversation
	err := row.Scan(&c.ID, &c.ParticipantLow, &c.ParticipantHigh, &c.LastSeq, &c.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return conversation.Conversation{}, payam_errors.ErrNotFound
		}
		return conversation.Conversation{}, fmt.Errorf("db error: %w", err)
	}
	return c, nil
}

// ListSummaries returns every conversation of userID with the counterpart, the
// most recent message and the number of messages userID has not read.
func (r *PostgresConversationRepository) ListSummaries(ctx context.Context, userID string) ([]conversation.Summary, error) {
	rows, err := r.db.QueryContext(ctx, `
        SELECT c.id, c.participant_low, c.participant_high, c.last_seq, c.created_at,
               u.id, u.public_id, u.display_name, u.last_seen_at, u.is_online, u.is_active,
               lm.id, lm.seq, lm.sender_id, lm.sender_name, lm.content, lm.type, lm.created_at, lm.delivered, lm.read,
               (SELECT COUNT(*) FROM messages m
                 WHERE m.conversation_id = c.id AND m.sender_id <> $1 AND m.read = FALSE) AS unread
        FROM conversations c
        JOIN users u ON u.public_id = CASE WHEN c.participant_low = $1 THEN c.participant_high ELSE c.participant_low END
        LEFT JOIN LATERAL (
            SELECT id, seq, sender_id, sender_name, content, type, created_at, delivered, read
            FROM messages
            WHERE conversation_id = c.id
            ORDER BY created_at DESC, id DESC
            LIMIT 1
        ) lm ON TRUE
        WHERE c.participant_low = $1 OR c.participant_high = $1
    `, userID)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	summaries := []conversation.Summary{}
	for rows.Next() {
		var (
			s           conversation.Summary
			lmID        sql.NullInt64
			lmSeq       sql.NullInt64
			lmSender    sql.NullString
			lmName      sql.NullString
			lmContent   sql.NullString
			lmType      sql.NullString
			lmCreatedAt sql.NullTime
			lmDelivered sql.NullBool
			lmRead      sql.NullBool
		)
		if err := rows.Scan(
			&s.Conversation.ID,
			&s.Conversation.ParticipantLow,
			&s.Conversation.ParticipantHigh,
			&s.Conversation.LastSeq,
			&s.Conversation.CreatedAt,
			&s.Counterpart.ID,
			&s.Counterpart.PublicID,
			&s.Counterpart.DisplayName,
			&s.Counterpart.LastSeenAt,
			&s.Counterpart.IsOnline,
			&s.Counterpart.IsActive,
			&lmID, &lmSeq, &lmSender, &lmName, &lmContent, &lmType, &lmCreatedAt, &lmDelivered, &lmRead,
			&s.UnreadCount,
		); err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		if lmID.Valid {
			s.LastMessage = &message.Message{
				ID:             lmID.Int64,
				ConversationID: s.Conversation.ID,
				Seq:            lmSeq.Int64,
				SenderID:       lmSender.String,
				SenderName:     lmName.String,
				Content:        lmContent.String,
				Type:           message.Type(lmType.String),
				CreatedAt:      lmCreatedAt.Time,
				Delivered:      lmDelivered.Bool,
				Read:           lmRead.Bool,
			}
		}
		summaries = append(summaries, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return summaries, nil
}

func (r *PostgresConversationRepository) NextSeq(ctx context.Context, id uuid.UUID) (int64, error) {
	var seq int64
	err := r.db.QueryRowContext(ctx, `
        UPDATE conversations SET last_seq = last_seq + 1
        WHERE id = $1
        RETURNING last_seq
    `, id).Scan(&seq)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, payam_errors.ErrNotFound
		}
		return 0, fmt.Errorf("db error: %w", err)
	}
	return seq, nil
}
