package auth

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/keyxmakerx/healthcore/internal/apperror"
)

// UserRepository reads and writes the users table.
type UserRepository interface {
	Create(ctx context.Context, user *User) error
	FindByEmail(ctx context.Context, email string) (*User, error)
	EmailExists(ctx context.Context, email string) (bool, error)
	UpdateLastLogin(ctx context.Context, id string) error

	// FindFirstWithRole returns the oldest user holding role.
	// Returns apperror.NotFound if nobody does.
	FindFirstWithRole(ctx context.Context, role string) (*User, error)
}

type userRepository struct {
	db *sql.DB
}

// NewUserRepository returns a MariaDB-backed UserRepository.
func NewUserRepository(db *sql.DB) UserRepository {
	return &userRepository{db: db}
}

const selectUser = `SELECT id, email, display_name, password_hash, roles, created_at, last_login_at FROM users`

// findOne runs a single-row user query. notFound is returned as an
// apperror when no row matches.
func (r *userRepository) findOne(ctx context.Context, notFound string, query string, args ...any) (*User, error) {
	var (
		u     User
		roles string
	)
	err := r.db.QueryRowContext(ctx, query, args...).Scan(
		&u.ID, &u.Email, &u.DisplayName, &u.PasswordHash, &roles, &u.CreatedAt, &u.LastLoginAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperror.NewNotFound(notFound)
	}
	if err != nil {
		return nil, fmt.Errorf("selecting user: %w", err)
	}
	u.Roles = parseRoles(roles)
	return &u, nil
}

func (r *userRepository) Create(ctx context.Context, user *User) error {
	if _, err := r.db.ExecContext(ctx,
		`INSERT INTO users (id, email, display_name, password_hash, roles, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		user.ID, user.Email, user.DisplayName, user.PasswordHash, joinRoles(user.Roles), user.CreatedAt,
	); err != nil {
		return fmt.Errorf("inserting user %s: %w", user.ID, err)
	}
	return nil
}

func (r *userRepository) FindByEmail(ctx context.Context, email string) (*User, error) {
	return r.findOne(ctx, "user not found", selectUser+` WHERE email = ?`, email)
}

func (r *userRepository) EmailExists(ctx context.Context, email string) (bool, error) {
	var n int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM users WHERE email = ?`, email).Scan(&n); err != nil {
		return false, fmt.Errorf("counting users by email: %w", err)
	}
	return n > 0, nil
}

func (r *userRepository) UpdateLastLogin(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, `UPDATE users SET last_login_at = NOW() WHERE id = ?`, id); err != nil {
		return fmt.Errorf("touching last_login_at for %s: %w", id, err)
	}
	return nil
}

// FindFirstWithRole matches role against the comma-separated roles column.
func (r *userRepository) FindFirstWithRole(ctx context.Context, role string) (*User, error) {
	return r.findOne(ctx, "no user with role "+role,
		selectUser+` WHERE FIND_IN_SET(?, roles) > 0 AND email <> '' ORDER BY created_at ASC, id ASC LIMIT 1`,
		role)
}
