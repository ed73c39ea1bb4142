package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	domain "github.com/bryanwahyu/signaware/internal/domain/users"
)

type UserRepository struct {
	db      *sqlx.DB
	dialect Dialect
}

type userRow struct {
	ID              string         `db:"id"`
	Email           string         `db:"email"`
	PasswordHash    sql.NullString `db:"password_hash"`
	FirstName       sql.NullString `db:"first_name"`
	LastName        sql.NullString `db:"last_name"`
	Role            string         `db:"role"`
	GoogleID        sql.NullString `db:"google_id"`
	Avatar          sql.NullString `db:"avatar"`
	IsEmailVerified bool           `db:"is_email_verified"`
	IsActive        bool           `db:"is_active"`
	LastLoginAt     sql.NullTime   `db:"last_login_at"`
	CreatedAt       time.Time      `db:"created_at"`
	UpdatedAt       time.Time      `db:"updated_at"`
}

func (r userRow) toDomain() *domain.User {
	return &domain.User{
		ID:              r.ID,
		Email:           r.Email,
		PasswordHash:    r.PasswordHash.String,
		FirstName:       r.FirstName.String,
		LastName:        r.LastName.String,
		Role:            domain.Role(r.Role),
		GoogleID:        r.GoogleID.String,
		Avatar:          r.Avatar.String,
		IsEmailVerified: r.IsEmailVerified,
		IsActive:        r.IsActive,
		LastLoginAt:     timePtr(r.LastLoginAt),
		CreatedAt:       r.CreatedAt.UTC(),
		UpdatedAt:       r.UpdatedAt.UTC(),
	}
}

const userColumns = `id, email, password_hash, first_name, last_name, role, google_id, avatar,
  is_email_verified, is_active, last_login_at, created_at, updated_at`

func (r *UserRepository) Create(ctx context.Context, u *domain.User) error {
	const q = `
INSERT INTO users (` + userColumns + `)
VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?)`
	_, err := r.db.ExecContext(ctx, r.db.Rebind(q),
		u.ID, u.Email, nullString(u.PasswordHash), nullString(u.FirstName), nullString(u.LastName),
		string(u.Role), nullString(u.GoogleID), nullString(u.Avatar),
		u.IsEmailVerified, u.IsActive, nullTime(u.LastLoginAt), u.CreatedAt.UTC(), u.UpdatedAt.UTC(),
	)
	if err != nil {
		if r.dialect.IsUniqueViolation(err) {
			return domain.ErrEmailTaken
		}
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

func (r *UserRepository) Get(ctx context.Context, id string) (*domain.User, error) {
	return r.getBy(ctx, "id", id)
}

func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	return r.getBy(ctx, "email", email)
}

func (r *UserRepository) getBy(ctx context.Context, column, value string) (*domain.User, error) {
	q := `SELECT ` + userColumns + ` FROM users WHERE ` + column + ` = ?`
	var row userRow
	if err := r.db.GetContext(ctx, &row, r.db.Rebind(q), value); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("get user: %w", err)
	}
	return row.toDomain(), nil
}

func (r *UserRepository) Update(ctx context.Context, u *domain.User) error {
	const q = `
UPDATE users SET
  email=?, password_hash=?, first_name=?, last_name=?, role=?, google_id=?, avatar=?,
  is_email_verified=?, is_active=?, last_login_at=?, updated_at=?
WHERE id=?`
	res, err := r.db.ExecContext(ctx, r.db.Rebind(q),
		u.Email, nullString(u.PasswordHash), nullString(u.FirstName), nullString(u.LastName),
		string(u.Role), nullString(u.GoogleID), nullString(u.Avatar),
		u.IsEmailVerified, u.IsActive, nullTime(u.LastLoginAt), u.UpdatedAt.UTC(), u.ID,
	)
	if err != nil {
		if r.dialect.IsUniqueViolation(err) {
			return domain.ErrEmailTaken
		}
		return fmt.Errorf("update user: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// Delete relies on ON DELETE CASCADE for documents and chat messages.
func (r *UserRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, r.db.Rebind(`DELETE FROM users WHERE id = ?`), id)
	if err != nil {
		return fmt.Errorf("delete user: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return domain.ErrNotFound
	}
	return nil
}
