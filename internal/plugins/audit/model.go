// Package audit records Communications: append-only entries describing
// every SMTP configuration action and its outcome. Entries are written by
// other plugins and never modified afterwards.
//
// Audit failures never block the primary operation. Record swallows errors
// after logging them; Log is the strict variant for callers that care.
package audit

import (
	"fmt"
	"time"

	"github.com/keyxmakerx/healthcore/internal/sanitize"
)

// --- Action Constants ---

const (
	// ActionTestEmailSent is logged when the post-reconciliation
	// verification email is delivered.
	ActionTestEmailSent = "SMTP Test Email Sent"

	// ActionTestEmailFailed is logged when the verification email fails.
	ActionTestEmailFailed = "SMTP Test Email Failed"

	// ActionConfigReset is logged when an administrator resets the default
	// account to the configured settings.
	ActionConfigReset = "SMTP Configuration Reset"

	// ActionConfigResetFailed is logged when that reset fails.
	ActionConfigResetFailed = "SMTP Configuration Reset Failed"

	// ActionManualTestSent is logged when an authenticated user sends a test email.
	ActionManualTestSent = "Manual SMTP Test Email Sent"

	// ActionManualTestFailed is logged when that test email fails.
	ActionManualTestFailed = "Manual SMTP Test Email Failed"
)

// Status is the outcome recorded on an entry. Values match the
// communications.status ENUM.
type Status string

const (
	StatusSuccess Status = "Success"
	StatusFailed  Status = "Failed"
)

// Valid reports whether s is one of the stored ENUM values.
func (s Status) Valid() bool {
	return s == StatusSuccess || s == StatusFailed
}

// Fixed Communication attributes for entries written by this service.
const (
	SystemSender        = "Administrator"
	CommunicationType   = "Automated Message"
	CommunicationMedium = "Email"
	SentOrReceived      = "Sent"
	ReferenceDoctype    = "Email Account"
)

const (
	subjectPrefix = "Health Core SMTP Setup - "

	defaultRecentCommunications = 20
	maxRecentCommunications     = 100
)

// Entry is a single Communication. Callers fill Action, Details, Status and
// optionally Sender and ReferenceName; the service derives the rest.
type Entry struct {
	ID                string    `json:"id"`
	Action            string    `json:"action"`
	Details           string    `json:"details"`
	Status            Status    `json:"status"`
	Sender            string    `json:"sender"`
	Subject           string    `json:"subject"`
	Content           string    `json:"content"`
	CommunicationType string    `json:"communication_type"`
	Medium            string    `json:"communication_medium"`
	SentOrReceived    string    `json:"sent_or_received"`
	ReferenceDoctype  string    `json:"reference_doctype"`
	ReferenceName     string    `json:"reference_name,omitempty"`
	CreatedAt         time.Time `json:"created_at"`
}

// Subject returns the stored subject line for an action.
func Subject(action string) string {
	return subjectPrefix + action
}

// RenderContent builds the HTML body of an entry. Every interpolated value
// is stripped of markup first.
func RenderContent(action, details string, status Status) string {
	html := fmt.Sprintf(
		"<p><strong>Action:</strong> %s</p><p><strong>Details:</strong> %s</p><p><strong>Status:</strong> %s</p>",
		sanitize.Text(action), sanitize.Text(details), sanitize.Text(string(status)),
	)
	return sanitize.HTML(html)
}

// fillDefaults derives the fixed and computed attributes.
func (e *Entry) fillDefaults() {
	if e.Sender == "" {
		e.Sender = SystemSender
	}
	e.Subject = Subject(e.Action)
	e.Content = RenderContent(e.Action, e.Details, e.Status)
	e.CommunicationType = CommunicationType
	e.Medium = CommunicationMedium
	e.SentOrReceived = SentOrReceived
	e.ReferenceDoctype = ReferenceDoctype
}
