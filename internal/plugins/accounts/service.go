package accounts

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/samber/lo"

	"github.com/keyxmakerx/healthcore/internal/apperror"
)

// AccountService is the Account Store other plugins depend on. Passwords go
// in through Create/Update and come out only through Credentials.
type AccountService interface {
	// GetDefaultOutgoing returns the account flagged as default outgoing.
	// Returns a NotFound apperror when none exists.
	GetDefaultOutgoing(ctx context.Context) (*EmailAccount, error)

	// Create persists a new account, assigning Name when empty.
	Create(ctx context.Context, account *EmailAccount, password string) error

	// Update overwrites the mutable fields of an existing account. Name is
	// the lookup key and never changes. An empty password keeps the stored one.
	Update(ctx context.Context, account *EmailAccount, password string) error

	// List returns listing projections, default first, newest first.
	List(ctx context.Context) ([]AccountSummary, error)

	// Credentials decrypts the stored password of the named account.
	Credentials(ctx context.Context, name string) (string, error)
}

// accountService implements AccountService.
type accountService struct {
	repo   AccountRepository
	cipher *passwordCipher
}

// NewAccountService creates a new account service. secretKey derives the
// AES-256 key used for stored passwords.
func NewAccountService(repo AccountRepository, secretKey string) (AccountService, error) {
	c, err := newPasswordCipher(secretKey)
	if err != nil {
		return nil, fmt.Errorf("initializing password cipher: %w", err)
	}
	return &accountService{repo: repo, cipher: c}, nil
}

// GetDefaultOutgoing returns the default outgoing account.
func (s *accountService) GetDefaultOutgoing(ctx context.Context) (*EmailAccount, error) {
	row, err := s.repo.FindDefaultOutgoing(ctx)
	if err != nil {
		return nil, storeError(err)
	}
	return row.toAccount(), nil
}

// Create encrypts the password and inserts the account. On success the
// passed account carries the assigned Name and HasPassword.
func (s *accountService) Create(ctx context.Context, account *EmailAccount, password string) error {
	if account.Name == "" {
		account.Name = newName()
	}

	sealed, err := s.cipher.seal(password)
	if err != nil {
		return apperror.NewInternal(fmt.Errorf("encrypting smtp password: %w", err))
	}

	if err := s.repo.Insert(ctx, rowFrom(account, sealed)); err != nil {
		return storeError(err)
	}
	account.HasPassword = len(sealed) > 0
	return nil
}

// Update encrypts a new password if one is given and overwrites the row.
func (s *accountService) Update(ctx context.Context, account *EmailAccount, password string) error {
	if account.Name == "" {
		return apperror.NewBadRequest("email account name is required")
	}

	sealed, err := s.cipher.seal(password)
	if err != nil {
		return apperror.NewInternal(fmt.Errorf("encrypting smtp password: %w", err))
	}

	if err := s.repo.Update(ctx, rowFrom(account, sealed)); err != nil {
		return storeError(err)
	}
	if len(sealed) > 0 {
		account.HasPassword = true
	}
	return nil
}

// List returns account summaries.
func (s *accountService) List(ctx context.Context) ([]AccountSummary, error) {
	rows, err := s.repo.List(ctx)
	if err != nil {
		return nil, storeError(err)
	}
	return lo.Map(rows, func(r accountRow, _ int) AccountSummary {
		return r.toAccount().Summary()
	}), nil
}

// Credentials decrypts at call time -- plaintext is never cached.
func (s *accountService) Credentials(ctx context.Context, name string) (string, error) {
	row, err := s.repo.FindByName(ctx, name)
	if err != nil {
		return "", storeError(err)
	}
	password, err := s.cipher.open(row.PasswordEncrypted)
	if err != nil {
		return "", apperror.NewInternal(fmt.Errorf("decrypting smtp password for %s: %w", name, err))
	}
	return password, nil
}

// storeError passes apperrors through and classifies anything else as a
// persistence failure.
func storeError(err error) error {
	if _, ok := err.(*apperror.AppError); ok {
		return err
	}
	return apperror.NewPersistence(err)
}

// newName returns a time-ordered identifier, falling back to a random one.
func newName() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}
