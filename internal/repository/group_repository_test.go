package repository

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"payam-chat/internal/domain/group"
	payam_errors "payam-chat/pkg/errors"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGroupRepository_AddMember_Duplicate(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewGroupRepository(db)
	m := &group.Membership{GroupID: uuid.New(), UserID: "AAAAAAAAAA", DisplayName: "Ali", JoinedAt: time.Now().UTC()}

	mock.ExpectExec(`INSERT INTO group_members`).
		WithArgs(m.GroupID, "AAAAAAAAAA", "Ali", m.JoinedAt, false).
		WillReturnError(&pgconn.PgError{Code: "23505"})

	err := repo.AddMember(context.Background(), m)
	assert.ErrorIs(t, err, payam_errors.ErrDuplicateMembership)
}

func TestGroupRepository_RemoveMember_NotFound(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewGroupRepository(db)
	id := uuid.New()

	mock.ExpectExec(`DELETE FROM group_members WHERE group_id = \$1 AND user_id = \$2`).
		WithArgs(id, "AAAAAAAAAA").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.RemoveMember(context.Background(), id, "AAAAAAAAAA")
	assert.ErrorIs(t, err, payam_errors.ErrNotFound)
}

func TestGroupRepository_ListMembers(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewGroupRepository(db)
	id := uuid.New()
	now := time.Now().UTC()

	mock.ExpectQuery(`FROM group_members WHERE group_id = \$1 ORDER BY joined_at ASC`).
		WithArgs(id).
		WillReturnRows(sqlmock.NewRows([]string{"group_id", "user_id", "display_name", "joined_at", "is_admin"}).
			AddRow(id.String(), "AAAAAAAAAA", "Ali", now, true).
			AddRow(id.String(), "BBBBBBBBBB", "Sara", now, false))

	members, err := repo.ListMembers(context.Background(), id)
	require.NoError(t, err)
	require.Len(t, members, 2)
	assert.True(t, members[0].IsAdmin)
	assert.Equal(t, id, members[1].GroupID)
}

func TestGroupMessageRepository_ListByGroup(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewGroupMessageRepository(db)
	id := uuid.New()
	now := time.Now().UTC()

	cols := []string{
		"id", "group_id", "seq", "sender_id", "sender_name", "content", "type",
		"file_path", "file_name", "file_size", "created_at", "delivered_to", "read_by",
	}
	mock.ExpectQuery(`FROM group_messages gm LEFT JOIN group_message_receipts rc`).
		WithArgs(id).
		WillReturnRows(sqlmock.NewRows(cols).
			AddRow(int64(1), id.String(), int64(1), "AAAAAAAAAA", "Ali", "salam", "text", nil, nil, nil, now, "BBBBBBBBBB,CCCCCCCCCC", "BBBBBBBBBB").
			AddRow(int64(2), id.String(), int64(2), "BBBBBBBBBB", "Sara", "hi", "text", nil, nil, nil, now, "", ""))

	msgs, err := repo.ListByGroup(context.Background(), id)
	require.NoError(t, err)
	require.Len(t, msgs, 2)

	assert.Equal(t, []string{"BBBBBBBBBB", "CCCCCCCCCC"}, msgs[0].DeliveredTo)
	assert.True(t, msgs[0].IsReadBy("BBBBBBBBBB"))
	assert.False(t, msgs[0].IsReadBy("CCCCCCCCCC"))
	assert.True(t, msgs[0].IsDeliveredTo("CCCCCCCCCC"))

	assert.Empty(t, msgs[1].ReadBy)
	assert.True(t, msgs[1].IsReadBy("BBBBBBBBBB"))
}

func TestGroupMessageRepository_MarkReadForUser(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewGroupMessageRepository(db)
	id := uuid.New()
	now := time.Now().UTC()

	mock.ExpectExec(`INSERT INTO group_message_receipts .* ON CONFLICT \(message_id, user_id\) DO UPDATE`).
		WithArgs(id, "BBBBBBBBBB", now).
		WillReturnResult(sqlmock.NewResult(0, 3))

	n, err := repo.MarkReadForUser(context.Background(), id, "BBBBBBBBBB", now)
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)

	mock.ExpectExec(`INSERT INTO group_message_receipts .* DO NOTHING`).
		WithArgs(id, "BBBBBBBBBB", now).
		WillReturnResult(sqlmock.NewResult(0, 0))

	n, err = repo.MarkDeliveredForUser(context.Background(), id, "BBBBBBBBBB", now)
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGroupRepository_PromoteOldestMember(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewGroupRepository(db)
	id := uuid.New()

	mock.ExpectQuery(`UPDATE group_members SET is_admin = TRUE .* ORDER BY joined_at ASC, user_id ASC LIMIT 1 .* NOT EXISTS .* RETURNING user_id`).
		WithArgs(id).
		WillReturnRows(sqlmock.NewRows([]string{"user_id"}).AddRow("BBBBBBBBBB"))

	promoted, err := repo.PromoteOldestMember(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, "BBBBBBBBBB", promoted)

	mock.ExpectQuery(`UPDATE group_members SET is_admin = TRUE`).
		WithArgs(id).
		WillReturnError(sql.ErrNoRows)

	_, err = repo.PromoteOldestMember(context.Background(), id)
	assert.ErrorIs(t, err, payam_errors.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}
