package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"payam-chat/internal/domain/group"
	"payam-chat/internal/domain/message"
	payam_errors "payam-chat/pkg/errors"

	"github.com/google/uuid"
)

const groupColumns = `id, public_id, name, description, creator_id, last_seq, created_at`

type PostgresGroupRepository struct {
	db DBTX
}

func NewGroupRepository(db DBTX) GroupRepository {
	return &PostgresGroupRepository{db: db}
}

func (r *PostgresGroupRepository) Create(ctx context.Context, g *group.Group) error {
	_, err := r.db.ExecContext(ctx, `
        INSERT INTO groups (id, public_id, name, description, creator_id, last_seq, created_at)
        VALUES ($1,$2,$3,$4,$5,$6,$7)
    `, g.ID, g.PublicID, g.Name, g.Description, g.CreatorID, g.LastSeq, g.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return payam_errors.ErrAlreadyExists
		}
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *PostgresGroupRepository) GetByID(ctx context.Context, id uuid.UUID) (group.Group, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+groupColumns+` FROM groups WHERE id = $1`, id)
	return scanGroup(row)
}

func (r *PostgresGroupRepository) GetByPublicID(ctx context.Context, publicID string) (group.Group, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+groupColumns+` FROM groups WHERE public_id = $1`, publicID)
	return scanGroup(row)
}

func scanGroup(row *sql.Row) (group.Group, error) {
	var g group.Group
	err := row.Scan(&g.ID, &g.PublicID, &g.Name, &g.Description, &g.CreatorID, &g.LastSeq, &g.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return group.Group{}, payam_errors.ErrNotFound
		}
		return group.Group{}, fmt.Errorf("db error: %w", err)
	}
	return g, nil
}

func (r *PostgresGroupRepository) ListSummaries(ctx context.Context, userID string) ([]group.Summary, error) {
	rows, err := r.db.QueryContext(ctx, `
        SELECT g.id, g.public_id, g.name, g.description, g.creator_id, g.last_seq, g.created_at, gm.is_admin,
               lm.id, lm.seq, lm.sender_id, lm.sender_name, lm.content, lm.type, lm.created_at,
               (SELECT COUNT(*) FROM group_messages x
                 WHERE x.group_id = g.id AND x.sender_id <> $1
                   AND NOT EXISTS (
                       SELECT 1 FROM group_message_receipts rc
                       WHERE rc.message_id = x.id AND rc.user_id = $1 AND rc.read_at IS NOT NULL
                   )) AS unread
        FROM groups g
        JOIN group_members gm ON gm.group_id = g.id AND gm.user_id = $1
        LEFT JOIN LATERAL (
            SELECT id, seq, sender_id, sender_name, content, type, created_at
            FROM group_messages
            WHERE group_id = g.id
            ORDER BY created_at DESC, id DESC
            LIMIT 1
        ) lm ON TRUE
        ORDER BY COALESCE(lm.created_at, g.created_at) DESC
    `, userID)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	summaries := []group.Summary{}
	for rows.Next() {
		var (
			s           group.Summary
			lmID        sql.NullInt64
			lmSeq       sql.NullInt64
			lmSender    sql.NullString
			lmName      sql.NullString
			lmContent   sql.NullString
			lmType      sql.NullString
			lmCreatedAt sql.NullTime
		)
		if err := rows.Scan(
			&s.Group.ID,
			&s.Group.PublicID,
			&s.Group.Name,
			&s.Group.Description,
			&s.Group.CreatorID,
			&s.Group.LastSeq,
			&s.Group.CreatedAt,
			&s.IsAdmin,
			&lmID, &lmSeq, &lmSender, &lmName, &lmContent, &lmType, &lmCreatedAt,
			&s.UnreadCount,
		); err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		if lmID.Valid {
			s.LastMessage = &message.GroupMessage{
				ID:         lmID.Int64,
				GroupID:    s.Group.ID,
				Seq:        lmSeq.Int64,
				SenderID:   lmSender.String,
				SenderName: lmName.String,
				Content:    lmContent.String,
				Type:       message.Type(lmType.String),
				CreatedAt:  lmCreatedAt.Time,
			}
		}
		summaries = append(summaries, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return summaries, nil
}

func (r *PostgresGroupRepository) NextSeq(ctx context.Context, id uuid.UUID) (int64, error) {
	var seq int64
	err := r.db.QueryRowContext(ctx, `
        UPDATE groups SET last_seq = last_seq + 1
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

func (r *PostgresGroupRepository) AddMember(ctx context.Context, m *group.Membership) error {
	_, err := r.db.ExecContext(ctx, `
        INSERT INTO group_members (group_id, user_id, display_name, joined_at, is_admin)
        VALUES ($1,$2,$3,$4,$5)
    `, m.GroupID, m.UserID, m.DisplayName, m.JoinedAt, m.IsAdmin)
	if err != nil {
		if isUniqueViolation(err) {
			return payam_errors.ErrDuplicateMembership
		}
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *PostgresGroupRepository) RemoveMember(ctx context.Context, groupID uuid.UUID, userID string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM group_members WHERE group_id = $1 AND user_id = $2`, groupID, userID)
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

func (r *PostgresGroupRepository) PromoteOldestMember(ctx context.Context, groupID uuid.UUID) (string, error) {
	var userID string
	err := r.db.QueryRowContext(ctx, `
        UPDATE group_members SET is_admin = TRUE
        WHERE group_id = $1
          AND user_id = (
              SELECT user_id FROM group_members
              WHERE group_id = $1
              ORDER BY joined_at ASC, user_id ASC
              LIMIT 1
          )
          AND NOT EXISTS (SELECT 1 FROM group_members WHERE group_id = $1 AND is_admin)
        RETURNING user_id
    `, groupID).Scan(&userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", payam_errors.ErrNotFound
		}
		return "", fmt.Errorf("db error: %w", err)
	}
	return userID, nil
}

func (r *PostgresGroupRepository) GetMember(ctx context.Context, groupID uuid.UUID, userID string) (group.Membership, error) {
	var m group.Membership
	err := r.db.QueryRowContext(ctx, `
        SELECT group_id, user_id, display_name, joined_at, is_admin
        FROM group_members
        WHERE group_id = $1 AND user_id = $2
    `, groupID, userID).Scan(&m.GroupID, &m.UserID, &m.DisplayName, &m.JoinedAt, &m.IsAdmin)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return group.Membership{}, payam_errors.ErrNotFound
		}
		return group.Membership{}, fmt.Errorf("db error: %w", err)
	}
	return m, nil
}

func (r *PostgresGroupRepository) ListMembers(ctx context.Context, groupID uuid.UUID) ([]group.Membership, error) {
	rows, err := r.db.QueryContext(ctx, `
        SELECT group_id, user_id, display_name, joined_at, is_admin
        FROM group_members
        WHERE group_id = $1
        ORDER BY joined_at ASC, user_id ASC
    `, groupID)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	members := []group.Membership{}
	for rows.Next() {
		var m group.Membership
		if err := rows.Scan(&m.GroupID, &m.UserID, &m.DisplayName, &m.JoinedAt, &m.IsAdmin); err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		members = append(members, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return members, nil
}
