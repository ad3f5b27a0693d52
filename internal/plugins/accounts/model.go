// Package accounts stores Email Accounts: the SMTP identities the system
// sends mail through. Exactly one account is expected to carry the
// default outgoing flag. The stored password is NEVER returned outside
// this package except through Credentials, which only the mail transport
// calls.
package accounts

import (
	"fmt"
	"time"
)

// ManagedAccountName is the display name of the account this service owns.
// An existing default with any other name is considered foreign and gets
// overwritten by reconciliation.
const ManagedAccountName = "4Geeks Health SMTP"

// EmailAccount is an outbound mail identity. Password is write-only: it is
// accepted on Create/Update and never serialized.
type EmailAccount struct {
	Name                string    `json:"name"`
	AccountName         string    `json:"email_account_name"`
	EmailID             string    `json:"email_id"`
	Service             string    `json:"service"`
	SMTPServer          string    `json:"smtp_server"`
	SMTPPort            int       `json:"smtp_port"`
	UseTLS              bool      `json:"use_tls"`
	UseSSL              bool      `json:"use_ssl"`
	HasPassword         bool      `json:"has_password"`
	EnableOutgoing      bool      `json:"enable_outgoing"`
	DefaultOutgoing     bool      `json:"default_outgoing"`
	EnableIncoming      bool      `json:"enable_incoming"`
	AwaitingPassword    bool      `json:"awaiting_password"`
	ASCIIEncodePassword bool      `json:"ascii_encode_password"`
	CreatedAt           time.Time `json:"created_at"`
	UpdatedAt           time.Time `json:"updated_at"`
}

// IsManaged reports whether the account carries the managed display name.
func (a *EmailAccount) IsManaged() bool {
	return a.AccountName == ManagedAccountName
}

// Addr returns the host:port the transport dials.
func (a *EmailAccount) Addr() string {
	return fmt.Sprintf("%s:%d", a.SMTPServer, a.SMTPPort)
}

// AccountSummary is the non-secret projection used by listings.
type AccountSummary struct {
	Name            string `json:"name"`
	AccountName     string `json:"email_account_name"`
	EmailID         string `json:"email_id"`
	SMTPServer      string `json:"smtp_server"`
	SMTPPort        int    `json:"smtp_port"`
	UseTLS          bool   `json:"use_tls"`
	UseSSL          bool   `json:"use_ssl"`
	EnableOutgoing  bool   `json:"enable_outgoing"`
	DefaultOutgoing bool   `json:"default_outgoing"`
	Service         string `json:"service"`
}

// Summary projects an account onto its listing fields.
func (a *EmailAccount) Summary() AccountSummary {
	return AccountSummary{
		Name:            a.Name,
		AccountName:     a.AccountName,
		EmailID:         a.EmailID,
		SMTPServer:      a.SMTPServer,
		SMTPPort:        a.SMTPPort,
		UseTLS:          a.UseTLS,
		UseSSL:          a.UseSSL,
		EnableOutgoing:  a.EnableOutgoing,
		DefaultOutgoing: a.DefaultOutgoing,
		Service:         a.Service,
	}
}

// accountRow is the raw database row including encrypted password bytes.
// Internal only -- never exposed outside the repository.
type accountRow struct {
	Name                string
	AccountName         string
	EmailID             string
	Service             string
	SMTPServer          string
	SMTPPort            int
	UseTLS              bool
	UseSSL              bool
	PasswordEncrypted   []byte // AES-256-GCM encrypted, nil if not set.
	EnableOutgoing      bool
	DefaultOutgoing     bool
	EnableIncoming      bool
	AwaitingPassword    bool
	ASCIIEncodePassword bool
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

// toAccount converts a database row to the safe EmailAccount struct.
func (r *accountRow) toAccount() *EmailAccount {
	return &EmailAccount{
		Name:                r.Name,
		AccountName:         r.AccountName,
		EmailID:             r.EmailID,
		Service:             r.Service,
		SMTPServer:          r.SMTPServer,
		SMTPPort:            r.SMTPPort,
		UseTLS:              r.UseTLS,
		UseSSL:              r.UseSSL,
		HasPassword:         len(r.PasswordEncrypted) > 0,
		EnableOutgoing:      r.EnableOutgoing,
		DefaultOutgoing:     r.DefaultOutgoing,
		EnableIncoming:      r.EnableIncoming,
		AwaitingPassword:    r.AwaitingPassword,
		ASCIIEncodePassword: r.ASCIIEncodePassword,
		CreatedAt:           r.CreatedAt,
		UpdatedAt:           r.UpdatedAt,
	}
}

// rowFrom builds a row from an account and already-encrypted password.
func rowFrom(a *EmailAccount, encrypted []byte) *accountRow {
	return &accountRow{
		Name:                a.Name,
		AccountName:         a.AccountName,
		EmailID:             a.EmailID,
		Service:             a.Service,
		SMTPServer:          a.SMTPServer,
		SMTPPort:            a.SMTPPort,
		UseTLS:              a.UseTLS,
		UseSSL:              a.UseSSL,
		PasswordEncrypted:   encrypted,
		EnableOutgoing:      a.EnableOutgoing,
		DefaultOutgoing:     a.DefaultOutgoing,
		EnableIncoming:      a.EnableIncoming,
		AwaitingPassword:    a.AwaitingPassword,
		ASCIIEncodePassword: a.ASCIIEncodePassword,
	}
}
