package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"payam-chat/internal/domain/user"
	payam_errors "payam-chat/pkg/errors"
)

const userColumns = `id, public_id, display_name, phone_number, password_hash, created_at, last_seen_at, is_online, is_active`

type PostgresUserRepository struct {
	db DBTX
}

func NewUserRepository(db DBTX) UserRepository {
	return &PostgresUserRepository{db: db}
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanUser(row rowScanner) (user.User, error) {
	var u user.User
	err := row.Scan(
		&u.ID,
		&u.PublicID,
		&u.DisplayName,
		&u.PhoneNumber,
		&u.PasswordHash,
		&u.CreatedAt,
		&u.LastSeenAt,
		&u.IsOnline,
		&u.IsActive,
	)
	return u, err
}

func (r *PostgresUserRepository) Create(ctx context.Context, u *user.User) error {
	err := r.db.QueryRowContext(ctx, `
        INSERT INTO users (public_id, display_name, phone_number, password_hash, created_at, is_online, is_active)
        VALUES ($1,$2,$3,$4,$5,$6,$7)
        RETURNING id
    `,
		u.PublicID,
		u.DisplayName,
		u.PhoneNumber,
		u.PasswordHash,
		u.CreatedAt,
		u.IsOnline,
		u.IsActive,
	).Scan(&u.ID)
	if err != nil {
		if isUniqueViolation(err) {
			if violatedConstraint(err) == "users_phone_number_key" {
				return payam_errors.ErrDuplicateHandle
			}
			return payam_errors.ErrAlreadyExists
		}
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *PostgresUserRepository) GetByPublicID(ctx context.Context, publicID string) (user.User, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE public_id = $1`, publicID)
	return r.one(row)
}

func (r *PostgresUserRepository) GetByPhoneNumber(ctx context.Context, phone string) (user.User, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE phone_number = $1`, phone)
	return r.one(row)
}

func (r *PostgresUserRepository) one(row *sql.Row) (user.User, error) {
	u, err := scanUser(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return user.User{}, payam_errors.ErrNotFound
		}
		return user.User{}, fmt.Errorf("db error: %w", err)
	}
	return u, nil
}

// Search matches the query as a case-sensitive substring of the public id or
// the display name.
func (r *PostgresUserRepository) Search(ctx context.Context, query, excludePublicID string, limit int) ([]user.User, error) {
	rows, err := r.db.QueryContext(ctx, `
        SELECT `+userColumns+`
        FROM users
        WHERE public_id <> $1
          AND is_active = TRUE
          AND (strpos(public_id, $2) > 0 OR strpos(display_name, $2) > 0)
        ORDER BY display_name ASC, id ASC
        LIMIT $3
    `, excludePublicID, query, limit)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	users := []user.User{}
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return users, nil
}

func (r *PostgresUserRepository) TouchPresence(ctx context.Context, publicID string, seenAt time.Time) error {
	return r.exec(ctx, `
        UPDATE users SET last_seen_at = $1, is_online = TRUE
        WHERE public_id = $2 AND is_active = TRUE
    `, seenAt, publicID)
}

func (r *PostgresUserRepository) SetOffline(ctx context.Context, publicID string) error {
	return r.exec(ctx, `UPDATE users SET is_online = FALSE WHERE public_id = $1`, publicID)
}

func (r *PostgresUserRepository) Deactivate(ctx context.Context, publicID string) error {
	return r.exec(ctx, `
        UPDATE users SET is_active = FALSE, is_online = FALSE
        WHERE public_id = $1
    `, publicID)
}

func (r *PostgresUserRepository) DeactivateMany(ctx context.Context, publicIDs []string) (int64, error) {
	if len(publicIDs) == 0 {
		return 0, nil
	}
	args := make([]interface{}, len(publicIDs))
	for i, id := range publicIDs {
		args[i] = id
	}
	res, err := r.db.ExecContext(ctx, `
        UPDATE users SET is_active = FALSE, is_online = FALSE
        WHERE public_id IN (`+buildPlaceholders(1, len(publicIDs))+`)
    `, args...)
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	return res.RowsAffected()
}

func (r *PostgresUserRepository) exec(ctx context.Context, query string, args ...interface{}) error {
	res, err := r.db.ExecContext(ctx, query, args...)
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
