package smtpsetup

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/keyxmakerx/healthcore/internal/apperror"
	"github.com/keyxmakerx/healthcore/internal/config"
	"github.com/keyxmakerx/healthcore/internal/plugins/accounts"
	"github.com/keyxmakerx/healthcore/internal/plugins/audit"
	"github.com/keyxmakerx/healthcore/internal/plugins/smtp"
)

// RecipientResolver finds the address verification emails go to.
// auth.AuthService satisfies it.
type RecipientResolver interface {
	AdministratorEmail(ctx context.Context) (string, error)
}

// EmailChecker validates address syntax. validator.Validator satisfies it.
type EmailChecker interface {
	Email(addr string) bool
}

// Service runs the SMTP configuration operations.
type Service interface {
	// Reconcile makes the default outgoing account match cfg. Missing
	// credentials skip it with a warning. Only persistence failures are
	// returned; verification email failures are audited instead.
	Reconcile(ctx context.Context, cfg config.SMTPConfig) error

	// Status reports whether the default outgoing account can send.
	Status(ctx context.Context) StatusResult

	// SendTest sends the test email to recipient, or to a fallback when
	// recipient is empty. Authenticated callers are audited.
	SendTest(ctx context.Context, caller Caller, recipient string) ActionResult

	// Reset reconciles against the configured settings and audits the attempt.
	Reset(ctx context.Context, caller Caller) ActionResult

	// ResetInfo is the guest answer to a reset request. It never touches
	// the account store.
	ResetInfo() ActionResult

	// ListAccounts lists every account without secrets.
	ListAccounts(ctx context.Context, canModify bool) ListResult

	// TestConnection handshakes with the default account's server.
	TestConnection(ctx context.Context) ActionResult

	// PageContext returns the static settings of the configuration page.
	PageContext() PageContext

	// Page gathers everything the guest-visible configuration page shows.
	Page(ctx context.Context) Page
}

// service implements Service.
type service struct {
	accounts accounts.AccountService
	mail     smtp.MailService
	audit    audit.AuditService
	admins   RecipientResolver
	emails   EmailChecker
	desired  config.SMTPConfig
	now      func() time.Time
}

// NewService creates the SMTP configuration service. desired is the
// setting Reset reconciles against.
func NewService(
	accts accounts.AccountService,
	mail smtp.MailService,
	auditSvc audit.AuditService,
	admins RecipientResolver,
	emails EmailChecker,
	desired config.SMTPConfig,
) Service {
	return &service{
		accounts: accts,
		mail:     mail,
		audit:    auditSvc,
		admins:   admins,
		emails:   emails,
		desired:  desired,
		now:      time.Now,
	}
}

// --- Reconciliation ---

// Reconcile turns missing credentials into a logged no-op.
func (s *service) Reconcile(ctx context.Context, cfg config.SMTPConfig) error {
	err := s.reconcile(ctx, cfg)
	if apperror.Is(err, apperror.KindConfigMissing) {
		slog.Warn("SMTP credentials not configured, skipping default email account setup")
		return nil
	}
	return err
}

func (s *service) reconcile(ctx context.Context, cfg config.SMTPConfig) error {
	if !cfg.HasCredentials() {
		return apperror.NewConfigMissing("SMTP credentials are not configured (smtp_user, smtp_password)")
	}

	current, err := s.accounts.GetDefaultOutgoing(ctx)
	switch {
	case apperror.Is(err, apperror.KindNotFound):
		account := &accounts.EmailAccount{}
		applyManaged(account, cfg)
		if err := s.accounts.Create(ctx, account, cfg.Password); err != nil {
			return fmt.Errorf("creating default email account: %w", err)
		}
		slog.Info("created default email account",
			slog.String("name", account.Name),
			slog.String("smtp_server", account.SMTPServer),
		)
		s.verify(ctx, account)

	case err != nil:
		return fmt.Errorf("looking up default email account: %w", err)

	case current.IsManaged():
		slog.Debug("default email account already configured", slog.String("name", current.Name))

	default:
		previous := current.AccountName
		applyManaged(current, cfg)
		if err := s.accounts.Update(ctx, current, cfg.Password); err != nil {
			return fmt.Errorf("updating default email account: %w", err)
		}
		slog.Info("replaced default email account settings",
			slog.String("name", current.Name),
			slog.String("previous_account_name", previous),
		)
		s.verify(ctx, current)
	}

	return nil
}

// applyManaged overwrites every mutable field with the managed settings.
// Name is left alone.
func applyManaged(a *accounts.EmailAccount, cfg config.SMTPConfig) {
	a.AccountName = accounts.ManagedAccountName
	a.EmailID = cfg.User
	a.Service = managedService
	a.SMTPServer = cfg.Server
	a.SMTPPort = cfg.Port
	a.UseTLS = true
	a.UseSSL = false
	a.EnableOutgoing = true
	a.DefaultOutgoing = true
	a.EnableIncoming = false
	a.AwaitingPassword = false
	a.ASCIIEncodePassword = false
}

// verify sends the verification email and audits the outcome. Nothing
// here fails the reconciliation.
func (s *service) verify(ctx context.Context, account *accounts.EmailAccount) {
	recipient, err := s.admins.AdministratorEmail(ctx)
	if err != nil || recipient == "" {
		slog.Warn("No administrator email found for test email", slog.Any("error", err))
		return
	}

	if err := s.mail.SendWith(ctx, account, verificationMail(account, recipient)); err != nil {
		slog.Error("verification email failed",
			slog.String("account", account.Name),
			slog.Any("error", err),
		)
		s.audit.Record(ctx, audit.Entry{
			Action:        audit.ActionTestEmailFailed,
			Details:       "Failed to send test email: " + apperror.SafeMessage(err),
			Status:        audit.StatusFailed,
			ReferenceName: account.Name,
		})
		return
	}

	slog.Info("verification email sent", slog.String("recipient", recipient))
	s.audit.Record(ctx, audit.Entry{
		Action:        audit.ActionTestEmailSent,
		Details:       fmt.Sprintf("Test email sent to %s using email account %s", recipient, account.AccountName),
		Status:        audit.StatusSuccess,
		ReferenceName: account.Name,
	})
}

// --- Queries ---

// Status never fails; lookup errors become an error result.
func (s *service) Status(ctx context.Context) StatusResult {
	account, err := s.accounts.GetDefaultOutgoing(ctx)
	if apperror.Is(err, apperror.KindNotFound) {
		return StatusResult{
			Status:  StatusError,
			Message: "No default outgoing email account configured",
		}
	}
	if err != nil {
		slog.Error("reading SMTP status failed", slog.Any("error", err))
		return StatusResult{
			Status:  StatusError,
			Message: "Error validating SMTP configuration: " + apperror.SafeMessage(err),
		}
	}

	if !account.EnableOutgoing {
		return StatusResult{
			Status:         StatusWarning,
			Message:        "Default email account exists but outgoing email is disabled",
			AccountDetails: detailsOf(account),
		}
	}

	managed := account.IsManaged()
	return StatusResult{
		Status:         StatusSuccess,
		Message:        "SMTP configuration is active and ready",
		Configured:     true,
		IsManaged:      &managed,
		AccountDetails: detailsOf(account),
	}
}

// ListAccounts never returns a nil slice so the JSON is always a list.
func (s *service) ListAccounts(ctx context.Context, canModify bool) ListResult {
	list, err := s.accounts.List(ctx)
	if err != nil {
		slog.Error("listing email accounts failed", slog.Any("error", err))
		return ListResult{
			Status:   StatusError,
			Message:  "Failed to retrieve email account settings: " + apperror.SafeMessage(err),
			Accounts: []accounts.AccountSummary{},
		}
	}
	if list == nil {
		list = []accounts.AccountSummary{}
	}

	return ListResult{
		Status:                StatusSuccess,
		Accounts:              list,
		HasPermissionToModify: canModify,
	}
}

// PageContext is static.
func (s *service) PageContext() PageContext {
	return PageContext{
		Title:       "SMTP Configuration",
		NoCache:     1,
		ShowSidebar: true,
		ShowSearch:  false,
	}
}

// Page shows status and accounts only; audit entries need a session.
func (s *service) Page(ctx context.Context) Page {
	return Page{
		Context:  s.PageContext(),
		Status:   s.Status(ctx),
		Accounts: s.ListAccounts(ctx, false),
	}
}

// --- Actions ---

func (s *service) SendTest(ctx context.Context, caller Caller, recipient string) ActionResult {
	recipient = strings.TrimSpace(recipient)
	if recipient != "" && !s.emails.Email(recipient) {
		return s.testFailed(ctx, caller, recipient, apperror.NewBadRequest("Invalid email address provided"))
	}
	if recipient == "" {
		recipient = s.fallbackRecipient(caller)
	}

	account, err := s.accounts.GetDefaultOutgoing(ctx)
	if apperror.Is(err, apperror.KindNotFound) {
		err = apperror.NewNotFound("No default email account configured")
	}
	if err != nil {
		return s.testFailed(ctx, caller, recipient, err)
	}

	if err := s.mail.SendWith(ctx, account, testMail(account, recipient, caller, s.now())); err != nil {
		return s.testFailed(ctx, caller, recipient, err)
	}

	slog.Info("test email sent",
		slog.String("recipient", recipient),
		slog.Bool("guest", caller.IsGuest()),
	)
	if !caller.IsGuest() {
		s.audit.Record(ctx, audit.Entry{
			Action:        audit.ActionManualTestSent,
			Details:       fmt.Sprintf("Test email sent to %s by user %s", recipient, caller.Email),
			Status:        audit.StatusSuccess,
			Sender:        caller.Email,
			ReferenceName: account.Name,
		})
	}

	return ActionResult{
		Status:  StatusSuccess,
		Message: "Test email sent successfully to " + recipient,
	}
}

func (s *service) fallbackRecipient(caller Caller) string {
	if !caller.IsGuest() && caller.Email != "" {
		return caller.Email
	}
	return guestFallbackRecipient
}

// testFailed audits an authenticated failure and shapes the result.
// Validation and lookup failures keep their own message; delivery and
// store failures get a prefix.
func (s *service) testFailed(ctx context.Context, caller Caller, recipient string, err error) ActionResult {
	slog.Warn("test email failed",
		slog.String("recipient", recipient),
		slog.Bool("guest", caller.IsGuest()),
		slog.Any("error", err),
	)

	if !caller.IsGuest() {
		s.audit.Record(ctx, audit.Entry{
			Action:  audit.ActionManualTestFailed,
			Details: fmt.Sprintf("Failed to send test email to %s: %s", recipient, apperror.SafeMessage(err)),
			Status:  audit.StatusFailed,
			Sender:  caller.Email,
		})
	}

	switch apperror.KindOf(err) {
	case apperror.KindValidation, apperror.KindNotFound:
		return Render(err)
	}
	if caller.IsGuest() {
		return failure("Error: ", err)
	}
	return failure("Failed to send test email: ", err)
}

func (s *service) Reset(ctx context.Context, caller Caller) ActionResult {
	if caller.IsGuest() {
		return s.ResetInfo()
	}

	// Missing credentials are skipped by Reconcile, so the reset still
	// counts as done.
	if err := s.Reconcile(ctx, s.desired); err != nil {
		slog.Error("SMTP configuration reset failed",
			slog.String("user_id", caller.UserID),
			slog.Any("error", err),
		)
		s.audit.Record(ctx, audit.Entry{
			Action:  audit.ActionConfigResetFailed,
			Details: "Failed to reset SMTP configuration: " + apperror.SafeMessage(err),
			Status:  audit.StatusFailed,
			Sender:  caller.Email,
		})
		return failure("Failed to reset SMTP configuration: ", err)
	}

	slog.Info("SMTP configuration reset", slog.String("user_id", caller.UserID))
	s.audit.Record(ctx, audit.Entry{
		Action:  audit.ActionConfigReset,
		Details: "Administrator reset email configuration to 4Geeks default SMTP",
		Status:  audit.StatusSuccess,
		Sender:  caller.Email,
	})

	return ActionResult{
		Status:  StatusSuccess,
		Message: "Email configuration has been reset to 4Geeks default SMTP settings",
	}
}

func (s *service) ResetInfo() ActionResult {
	return ActionResult{
		Status:  StatusInfo,
		Message: "SMTP reset functionality requires admin login. Please contact your system administrator to reset SMTP configuration.",
	}
}

func (s *service) TestConnection(ctx context.Context) ActionResult {
	if err := s.mail.TestConnection(ctx); err != nil {
		slog.Warn("SMTP connection test failed", slog.Any("error", err))
		return failure("SMTP connection test failed: ", err)
	}
	return ActionResult{
		Status:  StatusSuccess,
		Message: "Connected and authenticated with the default email account's server",
	}
}

// --- Boundary ---

// Render converts any error into the uniform error result. Only the
// apperror's client-safe message is exposed.
func Render(err error) ActionResult {
	return ActionResult{Status: StatusError, Message: apperror.SafeMessage(err)}
}

func failure(prefix string, err error) ActionResult {
	r := Render(err)
	r.Message = prefix + r.Message
	return r
}
