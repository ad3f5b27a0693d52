package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/keyxmakerx/healthcore/internal/apperror"
)

// errBadCredentials covers both an unknown email and a wrong password.
var errBadCredentials = apperror.NewUnauthorized("invalid email or password")

// AuthService signs users in and answers who they are. It also resolves
// the administrator address used for verification emails.
type AuthService interface {
	Login(ctx context.Context, input LoginInput) (token string, user *User, err error)
	ValidateSession(ctx context.Context, token string) (*Session, error)
	DestroySession(ctx context.Context, token string) error

	// AdministratorEmail returns the address verification emails go to:
	// the oldest Administrator, else the oldest System Manager. Returns a
	// NotFound apperror when neither exists.
	AdministratorEmail(ctx context.Context) (string, error)

	// Bootstrap creates an Administrator with the given credentials when
	// none exists yet. Empty credentials are a no-op.
	Bootstrap(ctx context.Context, email, password string) error
}

type authService struct {
	users    UserRepository
	sessions sessionStore
}

// NewAuthService returns an AuthService backed by users and Redis sessions
// that live for sessionTTL.
func NewAuthService(users UserRepository, rdb *redis.Client, sessionTTL time.Duration) AuthService {
	return &authService{
		users:    users,
		sessions: sessionStore{rdb: rdb, ttl: sessionTTL},
	}
}

func (s *authService) Login(ctx context.Context, input LoginInput) (string, *User, error) {
	user, err := s.users.FindByEmail(ctx, normalizeEmail(input.Email))
	switch {
	case apperror.Is(err, apperror.KindNotFound):
		return "", nil, errBadCredentials
	case err != nil:
		return "", nil, apperror.NewPersistence(fmt.Errorf("looking up %q: %w", input.Email, err))
	case !verifyPassword(input.Password, user.PasswordHash):
		return "", nil, errBadCredentials
	}

	token, err := s.sessions.open(ctx, user)
	if err != nil {
		return "", nil, apperror.NewInternal(err)
	}

	if err := s.users.UpdateLastLogin(ctx, user.ID); err != nil {
		slog.Warn("last login not recorded", slog.String("user_id", user.ID), slog.Any("error", err))
	}
	slog.Info("signed in", slog.String("user_id", user.ID), slog.String("email", user.Email))

	return token, user, nil
}

func (s *authService) ValidateSession(ctx context.Context, token string) (*Session, error) {
	session, err := s.sessions.load(ctx, token)
	if errors.Is(err, errNoSession) {
		return nil, apperror.NewUnauthorized("session expired or invalid")
	}
	if err != nil {
		return nil, apperror.NewInternal(err)
	}
	return session, nil
}

func (s *authService) DestroySession(ctx context.Context, token string) error {
	if err := s.sessions.close(ctx, token); err != nil {
		return apperror.NewInternal(err)
	}
	return nil
}

func (s *authService) AdministratorEmail(ctx context.Context) (string, error) {
	for _, role := range []string{RoleAdministrator, RoleSystemManager} {
		user, err := s.users.FindFirstWithRole(ctx, role)
		if err == nil {
			return user.Email, nil
		}
		if !apperror.Is(err, apperror.KindNotFound) {
			return "", apperror.NewPersistence(fmt.Errorf("finding %s: %w", role, err))
		}
	}
	return "", apperror.NewNotFound("no administrator email found")
}

func (s *authService) Bootstrap(ctx context.Context, email, password string) error {
	email = normalizeEmail(email)
	if email == "" || password == "" {
		return nil
	}

	_, err := s.users.FindFirstWithRole(ctx, RoleAdministrator)
	if err == nil {
		return nil
	}
	if !apperror.Is(err, apperror.KindNotFound) {
		return apperror.NewPersistence(fmt.Errorf("checking for administrator: %w", err))
	}

	exists, err := s.users.EmailExists(ctx, email)
	if err != nil {
		return apperror.NewPersistence(fmt.Errorf("checking email: %w", err))
	}
	if exists {
		slog.Warn("bootstrap email belongs to an existing user without the Administrator role",
			slog.String("email", email),
		)
		return nil
	}

	hash, err := hashPassword(password)
	if err != nil {
		return apperror.NewInternal(fmt.Errorf("hashing password: %w", err))
	}

	user := &User{
		ID:           newUserID(),
		Email:        email,
		DisplayName:  RoleAdministrator,
		PasswordHash: hash,
		Roles:        []string{RoleAdministrator},
		CreatedAt:    time.Now().UTC(),
	}
	if err := s.users.Create(ctx, user); err != nil {
		return apperror.NewPersistence(fmt.Errorf("creating administrator: %w", err))
	}

	slog.Info("administrator user created", slog.String("email", email))
	return nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func newUserID() string {
	if id, err := uuid.NewV7(); err == nil {
		return id.String()
	}
	return uuid.NewString()
}
