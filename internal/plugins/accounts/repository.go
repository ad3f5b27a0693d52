package accounts

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/keyxmakerx/healthcore/internal/apperror"
)

// AccountRepository defines the data access contract for email accounts.
// All SQL lives in the concrete implementation -- no SQL leaks out.
type AccountRepository interface {
	// FindDefaultOutgoing returns the oldest row flagged default_outgoing.
	// Returns apperror.NotFound if none is flagged.
	FindDefaultOutgoing(ctx context.Context) (*accountRow, error)

	// FindByName returns a single row by its identifier.
	FindByName(ctx context.Context, name string) (*accountRow, error)

	// Insert stores a new row. Timestamps are assigned by the database.
	Insert(ctx context.Context, row *accountRow) error

	// Update overwrites every mutable column of the row with the same name.
	// A nil PasswordEncrypted keeps the stored password.
	Update(ctx context.Context, row *accountRow) error

	// List returns all rows, default account first, newest first.
	List(ctx context.Context) ([]accountRow, error)
}

// accountRepository implements AccountRepository with MariaDB.
type accountRepository struct {
	db *sql.DB
}

// NewAccountRepository creates a new email account repository.
func NewAccountRepository(db *sql.DB) AccountRepository {
	return &accountRepository{db: db}
}

const accountColumns = `name, email_account_name, email_id, service, smtp_server,
	smtp_port, use_tls, use_ssl, password_encrypted, enable_outgoing,
	default_outgoing, enable_incoming, awaiting_password, ascii_encode_password,
	created_at, updated_at`

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanAccount(s rowScanner, row *accountRow) error {
	return s.Scan(
		&row.Name, &row.AccountName, &row.EmailID, &row.Service, &row.SMTPServer,
		&row.SMTPPort, &row.UseTLS, &row.UseSSL, &row.PasswordEncrypted,
		&row.EnableOutgoing, &row.DefaultOutgoing, &row.EnableIncoming,
		&row.AwaitingPassword, &row.ASCIIEncodePassword,
		&row.CreatedAt, &row.UpdatedAt,
	)
}

// FindDefaultOutgoing picks the oldest flagged row when several exist, so
// repeated lookups agree with each other.
func (r *accountRepository) FindDefaultOutgoing(ctx context.Context) (*accountRow, error) {
	row := &accountRow{}
	err := scanAccount(r.db.QueryRowContext(ctx,
		`SELECT `+accountColumns+`
		 FROM email_accounts
		 WHERE default_outgoing = 1
		 ORDER BY created_at ASC, name ASC
		 LIMIT 1`,
	), row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperror.NewNotFound("no default email account configured")
	}
	if err != nil {
		return nil, fmt.Errorf("querying default email account: %w", err)
	}
	return row, nil
}

// FindByName retrieves a single account row.
func (r *accountRepository) FindByName(ctx context.Context, name string) (*accountRow, error) {
	row := &accountRow{}
	err := scanAccount(r.db.QueryRowContext(ctx,
		`SELECT `+accountColumns+` FROM email_accounts WHERE name = ?`, name,
	), row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperror.NewNotFound("email account not found")
	}
	if err != nil {
		return nil, fmt.Errorf("querying email account %s: %w", name, err)
	}
	return row, nil
}

// Insert writes a new account row.
func (r *accountRepository) Insert(ctx context.Context, row *accountRow) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO email_accounts (name, email_account_name, email_id, service,
		        smtp_server, smtp_port, use_tls, use_ssl, password_encrypted,
		        enable_outgoing, default_outgoing, enable_incoming,
		        awaiting_password, ascii_encode_password)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		row.Name, row.AccountName, row.EmailID, row.Service,
		row.SMTPServer, row.SMTPPort, row.UseTLS, row.UseSSL, row.PasswordEncrypted,
		row.EnableOutgoing, row.DefaultOutgoing, row.EnableIncoming,
		row.AwaitingPassword, row.ASCIIEncodePassword,
	)
	if err != nil {
		return fmt.Errorf("inserting email account: %w", err)
	}
	return nil
}

// Update overwrites the mutable columns in place. The name never changes.
func (r *accountRepository) Update(ctx context.Context, row *accountRow) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE email_accounts SET
		     email_account_name = ?,
		     email_id = ?,
		     service = ?,
		     smtp_server = ?,
		     smtp_port = ?,
		     use_tls = ?,
		     use_ssl = ?,
		     password_encrypted = COALESCE(?, password_encrypted),
		     enable_outgoing = ?,
		     default_outgoing = ?,
		     enable_incoming = ?,
		     awaiting_password = ?,
		     ascii_encode_password = ?
		 WHERE name = ?`,
		row.AccountName, row.EmailID, row.Service,
		row.SMTPServer, row.SMTPPort, row.UseTLS, row.UseSSL,
		row.PasswordEncrypted,
		row.EnableOutgoing, row.DefaultOutgoing, row.EnableIncoming,
		row.AwaitingPassword, row.ASCIIEncodePassword,
		row.Name,
	)
	if err != nil {
		return fmt.Errorf("updating email account %s: %w", row.Name, err)
	}

	// MariaDB reports 0 affected rows when nothing changed, so only treat a
	// missing row as not found.
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		var exists bool
		if err := r.db.QueryRowContext(ctx,
			`SELECT EXISTS(SELECT 1 FROM email_accounts WHERE name = ?)`, row.Name,
		).Scan(&exists); err != nil {
			return fmt.Errorf("checking email account %s: %w", row.Name, err)
		}
		if !exists {
			return apperror.NewNotFound("email account not found")
		}
	}
	return nil
}

// List returns every account row.
func (r *accountRepository) List(ctx context.Context) ([]accountRow, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+accountColumns+`
		 FROM email_accounts
		 ORDER BY default_outgoing DESC, created_at DESC`,
	)
	if err != nil {
		return nil, fmt.Errorf("listing email accounts: %w", err)
	}
	defer rows.Close()

	var out []accountRow
	for rows.Next() {
		var row accountRow
		if err := scanAccount(rows, &row); err != nil {
			return nil, fmt.Errorf("scanning email account: %w", err)
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating email accounts: %w", err)
	}
	return out, nil
}
