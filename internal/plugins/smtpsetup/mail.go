package smtpsetup

import (
	"fmt"
	"html"
	"time"

	"github.com/keyxmakerx/healthcore/internal/plugins/accounts"
	"github.com/keyxmakerx/healthcore/internal/plugins/audit"
	"github.com/keyxmakerx/healthcore/internal/plugins/smtp"
)

const (
	verificationSubject = "4Geeks Health SMTP Configuration Test"
	testSubject         = "Health Core SMTP Test Email"

	timestampLayout = "2006-01-02 15:04:05"
)

// verificationMail is sent to the administrator after the default account
// is created or overwritten.
func verificationMail(account *accounts.EmailAccount, recipient string) smtp.Mail {
	body := fmt.Sprintf(
		"<p>Hello,</p>"+
			"<p>This is a test email to confirm that your 4Geeks Health system has been successfully configured with the default SMTP service.</p>"+
			"<p><strong>Configuration Details:</strong></p>"+
			"<ul><li>Email Account: %s</li><li>SMTP Server: %s</li><li>SMTP Port: %d</li><li>From Email: %s</li></ul>"+
			"<p>Your system is now ready to send emails for patient communications, invoices, and reminders.</p>"+
			"<p>If you need to modify these settings, you can do so by navigating to:</p>"+
			"<p><strong>Setup → Email → Email Account</strong></p>"+
			"<p>Best regards,<br>4Geeks Health System</p>",
		html.EscapeString(account.AccountName),
		html.EscapeString(account.SMTPServer),
		account.SMTPPort,
		html.EscapeString(account.EmailID),
	)

	return smtp.Mail{
		To:               []string{recipient},
		Subject:          verificationSubject,
		HTMLBody:         body,
		ReferenceDoctype: audit.ReferenceDoctype,
		ReferenceName:    account.Name,
	}
}

// testMail is the message sent by the send-test endpoints. Guests get a
// "Test Mode" line instead of the sender's identity.
func testMail(account *accounts.EmailAccount, recipient string, caller Caller, sentAt time.Time) smtp.Mail {
	origin := "<li>Test Mode: Guest Access</li>"
	if !caller.IsGuest() {
		origin = "<li>Sent by: " + html.EscapeString(caller.Email) + "</li>"
	}

	body := fmt.Sprintf(
		"<p>Hello,</p>"+
			"<p>This is a test email sent from your 4Geeks Health system to verify that email sending is working correctly.</p>"+
			"<p><strong>Configuration Details:</strong></p>"+
			"<ul><li>Email Account: %s</li><li>Sent at: %s</li>%s</ul>"+
			"<p>If you received this email, your SMTP configuration is working properly.</p>"+
			"<p>Best regards,<br>4Geeks Health System</p>",
		html.EscapeString(account.AccountName),
		sentAt.Format(timestampLayout),
		origin,
	)

	return smtp.Mail{
		To:               []string{recipient},
		Subject:          testSubject,
		HTMLBody:         body,
		ReferenceDoctype: audit.ReferenceDoctype,
		ReferenceName:    account.Name,
	}
}
