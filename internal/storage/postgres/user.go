package postgres

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/chezflora/internal/domain/user"
)

var _ user.Repository = (*UserRepository)(nil)

// UserRepository implements user.Repository backed by PostgreSQL.
type UserRepository struct {
	db querier
}

// NewUserRepository returns a UserRepository that uses the given pool.
func NewUserRepository(pool *pgxpool.Pool) *UserRepository {
	return &UserRepository{db: pool}
}

const userColumns = `id, first_name, last_name, email, password_hash, phone, role, status, last_login, created_at, updated_at`

func scanUser(row pgx.Row) (*user.User, error) {
	var u user.User
	err := row.Scan(&u.ID, &u.FirstName, &u.LastName, &u.Email, &u.PasswordHash, &u.Phone,
		&u.Role, &u.Status, &u.LastLogin, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return nil, notFound(err, user.ErrNotFound)
	}
	return &u, nil
}

func (r *UserRepository) Create(ctx context.Context, u *user.User) error {
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	err := r.db.QueryRow(ctx, `
		INSERT INTO users (id, first_name, last_name, email, password_hash, phone, role, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING created_at, updated_at`,
		u.ID, u.FirstName, u.LastName, u.Email, u.PasswordHash, u.Phone, u.Role, u.Status,
	).Scan(&u.CreatedAt, &u.UpdatedAt)
	if isUniqueViolation(err) {
		return user.ErrEmailTaken
	}
	return errors.Wrap(err, "insert user")
}

func (r *UserRepository) GetByID(ctx context.Context, id string) (*user.User, error) {
	return scanUser(r.db.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id))
}

// GetByEmail matches case-insensitively.
func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*user.User, error) {
	return scanUser(r.db.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE lower(email) = lower($1)`, email))
}

func (r *UserRepository) UpdateProfile(ctx context.Context, id string, p user.Profile) error {
	tag, err := r.db.Exec(ctx, `
		UPDATE users SET first_name = $2, last_name = $3, phone = $4, updated_at = now()
		WHERE id = $1`, id, p.FirstName, p.LastName, p.Phone)
	if err != nil {
		return errors.Wrap(err, "update profile")
	}
	if tag.RowsAffected() == 0 {
		return user.ErrNotFound
	}
	return nil
}

// UpdatePassword also invalidates any pending reset token.
func (r *UserRepository) UpdatePassword(ctx context.Context, id, hash string) error {
	tag, err := r.db.Exec(ctx, `
		UPDATE users SET password_hash = $2, reset_token = NULL, reset_token_expires = NULL, updated_at = now()
		WHERE id = $1`, id, hash)
	if err != nil {
		return errors.Wrap(err, "update password")
	}
	if tag.RowsAffected() == 0 {
		return user.ErrNotFound
	}
	return nil
}

func (r *UserRepository) TouchLogin(ctx context.Context, id string, at time.Time) error {
	_, err := r.db.Exec(ctx, `UPDATE users SET last_login = $2 WHERE id = $1`, id, at)
	return errors.Wrap(err, "touch login")
}

func (r *UserRepository) SetResetToken(ctx context.Context, id, tokenHash string, expiresAt time.Time) error {
	_, err := r.db.Exec(ctx, `
		UPDATE users SET reset_token = $2, reset_token_expires = $3, updated_at = now()
		WHERE id = $1`, id, tokenHash, expiresAt)
	return errors.Wrap(err, "set reset token")
}

func (r *UserRepository) GetByResetToken(ctx context.Context, tokenHash string, now time.Time) (*user.User, error) {
	return scanUser(r.db.QueryRow(ctx, `
		SELECT `+userColumns+` FROM users
		WHERE reset_token = $1 AND reset_token_expires > $2`, tokenHash, now))
}

func (r *UserRepository) ClearExpiredResetTokens(ctx context.Context, now time.Time) (int64, error) {
	tag, err := r.db.Exec(ctx, `
		UPDATE users SET reset_token = NULL, reset_token_expires = NULL
		WHERE reset_token IS NOT NULL AND reset_token_expires <= $1`, now)
	if err != nil {
		return 0, errors.Wrap(err, "clear reset tokens")
	}
	return tag.RowsAffected(), nil
}

func (r *UserRepository) ListActiveAdmins(ctx context.Context) ([]user.User, error) {
	rows, err := r.db.Query(ctx, `
		SELECT `+userColumns+` FROM users
		WHERE role IN ('admin', 'super_admin') AND status = 'active'
		ORDER BY created_at`)
	if err != nil {
		return nil, errors.Wrap(err, "list admins")
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (user.User, error) {
		u, err := scanUser(row)
		if err != nil {
			return user.User{}, err
		}
		return *u, nil
	})
}
