// Package smtpsetup keeps the default outgoing Email Account in line with
// the configured SMTP settings and exposes the status, test-email, reset
// and listing operations behind the SMTP configuration endpoints.
//
// Every operation returns a result value with a status of success, error,
// warning or info. Internal failures are converted by Render; nothing in
// this package surfaces a raw error to a caller except Reconcile, whose
// persistence failures are fatal at startup.
package smtpsetup

import (
	"github.com/keyxmakerx/healthcore/internal/plugins/accounts"
)

// Result statuses.
const (
	StatusSuccess = "success"
	StatusError   = "error"
	StatusWarning = "warning"
	StatusInfo    = "info"
)

// managedService is the provider label stored on the managed account.
const managedService = "GMail"

// guestFallbackRecipient receives guest test emails sent without a recipient.
const guestFallbackRecipient = "test@example.com"

// AccountDetails is the part of the default account shown by Status.
type AccountDetails struct {
	Name           string `json:"name"`
	AccountName    string `json:"email_account_name"`
	SMTPServer     string `json:"smtp_server"`
	SMTPPort       int    `json:"smtp_port"`
	EmailID        string `json:"email_id"`
	EnableOutgoing bool   `json:"enable_outgoing"`
}

func detailsOf(a *accounts.EmailAccount) *AccountDetails {
	return &AccountDetails{
		Name:           a.Name,
		AccountName:    a.AccountName,
		SMTPServer:     a.SMTPServer,
		SMTPPort:       a.SMTPPort,
		EmailID:        a.EmailID,
		EnableOutgoing: a.EnableOutgoing,
	}
}

// StatusResult describes whether the default outgoing account can send.
// IsManaged is only set on success.
type StatusResult struct {
	Status         string          `json:"status"`
	Message        string          `json:"message"`
	Configured     bool            `json:"configured"`
	IsManaged      *bool           `json:"is_4geeks_config,omitempty"`
	AccountDetails *AccountDetails `json:"account_details,omitempty"`
}

// ActionResult is the outcome of a send or reset.
type ActionResult struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

// ListResult carries the non-secret account listing.
type ListResult struct {
	Status                string                    `json:"status"`
	Message               string                    `json:"message,omitempty"`
	Accounts              []accounts.AccountSummary `json:"accounts"`
	HasPermissionToModify bool                      `json:"has_permission_to_modify"`
}

// SendTestRequest is the optional body of the send-test endpoints.
type SendTestRequest struct {
	RecipientEmail string `json:"recipient_email"`
}

// Caller identifies who triggered an action. The zero value is a guest.
type Caller struct {
	UserID string
	Email  string
}

// IsGuest reports whether the caller is unauthenticated.
func (c Caller) IsGuest() bool {
	return c.UserID == ""
}

// PageContext holds the static display settings of the configuration page.
type PageContext struct {
	Title       string `json:"title"`
	NoCache     int    `json:"no_cache"`
	ShowSidebar bool   `json:"show_sidebar"`
	ShowSearch  bool   `json:"show_search"`
}

// Page is everything the configuration page renders.
type Page struct {
	Context  PageContext
	Status   StatusResult
	Accounts ListResult
}
