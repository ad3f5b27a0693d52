package smtp

import (
	"bytes"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"time"

	"github.com/emersion/go-sasl"
	gosmtp "github.com/emersion/go-smtp"

	"github.com/keyxmakerx/healthcore/internal/apperror"
	"github.com/keyxmakerx/healthcore/internal/plugins/accounts"
)

const (
	// dialTimeout bounds the TCP (and TLS) connect.
	dialTimeout = 10 * time.Second

	// sessionTimeout bounds the whole SMTP conversation after connecting,
	// unless the context deadline is sooner.
	sessionTimeout = 60 * time.Second
)

// Sender talks SMTP to the server described by an Email Account.
type Sender interface {
	// Send delivers msg using the account's server, security mode and
	// credentials. Failures are returned as transport apperrors.
	Send(ctx context.Context, account *accounts.EmailAccount, password string, msg Mail) error

	// TestConnection performs the handshake and authentication only.
	TestConnection(ctx context.Context, account *accounts.EmailAccount, password string) error
}

// clientSender implements Sender with the go-smtp client.
type clientSender struct {
	now       func() time.Time
	tlsConfig func(host string) *tls.Config
}

// NewSender creates a Sender that verifies server certificates against the
// system roots.
func NewSender() Sender {
	return &clientSender{
		now: time.Now,
		tlsConfig: func(host string) *tls.Config {
			return &tls.Config{ServerName: host, MinVersion: tls.VersionTLS12}
		},
	}
}

// Send composes and delivers a message.
func (s *clientSender) Send(ctx context.Context, account *accounts.EmailAccount, password string, msg Mail) error {
	if len(msg.To) == 0 {
		return apperror.NewBadRequest("at least one recipient is required")
	}

	body, err := compose(account, msg, s.now())
	if err != nil {
		return apperror.NewInternal(fmt.Errorf("composing mail: %w", err))
	}

	client, err := s.open(ctx, account, password)
	if err != nil {
		return apperror.NewTransport(err)
	}
	defer client.Close()

	if err := deliver(client, account.EmailID, msg.To, body); err != nil {
		return apperror.NewTransport(err)
	}

	slog.Info("mail sent",
		slog.String("account", account.Name),
		slog.String("server", account.Addr()),
		slog.Int("recipients", len(msg.To)),
	)
	return nil
}

// TestConnection opens and closes a session.
func (s *clientSender) TestConnection(ctx context.Context, account *accounts.EmailAccount, password string) error {
	client, err := s.open(ctx, account, password)
	if err != nil {
		return apperror.NewTransport(err)
	}
	defer client.Close()

	if err := client.Quit(); err != nil {
		return apperror.NewTransport(fmt.Errorf("QUIT: %w", err))
	}
	return nil
}

// open connects according to the account's security flags and
// authenticates when a password is present. UseSSL wins over UseTLS.
func (s *clientSender) open(ctx context.Context, account *accounts.EmailAccount, password string) (*gosmtp.Client, error) {
	if account.SMTPServer == "" {
		return nil, errors.New("email account has no SMTP server")
	}
	addr := account.Addr()

	dialer := &net.Dialer{Timeout: dialTimeout}
	var conn net.Conn
	var err error
	if account.UseSSL {
		tlsDialer := &tls.Dialer{NetDialer: dialer, Config: s.tlsConfig(account.SMTPServer)}
		conn, err = tlsDialer.DialContext(ctx, "tcp", addr)
		if err != nil {
			return nil, fmt.Errorf("connecting to %s (SSL): %w", addr, err)
		}
	} else {
		conn, err = dialer.DialContext(ctx, "tcp", addr)
		if err != nil {
			return nil, fmt.Errorf("connecting to %s: %w", addr, err)
		}
	}

	deadline := time.Now().Add(sessionTimeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	if err := conn.SetDeadline(deadline); err != nil {
		conn.Close()
		return nil, fmt.Errorf("setting connection deadline: %w", err)
	}

	var client *gosmtp.Client
	if account.UseTLS && !account.UseSSL {
		// NewClientStartTLS closes conn when the upgrade fails.
		client, err = gosmtp.NewClientStartTLS(conn, s.tlsConfig(account.SMTPServer))
		if err != nil {
			return nil, fmt.Errorf("starting TLS with %s: %w", addr, err)
		}
	} else {
		client = gosmtp.NewClient(conn)
	}

	if account.EmailID != "" && password != "" {
		auth := sasl.NewPlainClient("", account.EmailID, password)
		if err := client.Auth(auth); err != nil {
			client.Close()
			return nil, fmt.Errorf("authenticating: %w", err)
		}
	}

	return client, nil
}

// deliver handles MAIL FROM, RCPT TO and DATA on an open client.
func deliver(client *gosmtp.Client, from string, to []string, body []byte) error {
	if err := client.Mail(from, nil); err != nil {
		return fmt.Errorf("MAIL FROM: %w", err)
	}
	for _, rcpt := range to {
		if err := client.Rcpt(rcpt, nil); err != nil {
			return fmt.Errorf("RCPT TO %s: %w", rcpt, err)
		}
	}

	w, err := client.Data()
	if err != nil {
		return fmt.Errorf("DATA: %w", err)
	}
	if _, err := io.Copy(w, bytes.NewReader(body)); err != nil {
		w.Close()
		return fmt.Errorf("writing message: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("closing message: %w", err)
	}

	return client.Quit()
}

var errOutgoingDisabled = apperror.NewBadRequest("outgoing email is disabled on this email account")

// MailService is the interface other plugins use to send email through a
// stored account. Credentials are decrypted at send time and never cached.
type MailService interface {
	// SendWith sends msg through the given account.
	SendWith(ctx context.Context, account *accounts.EmailAccount, msg Mail) error

	// TestConnection checks connectivity of the default outgoing account.
	TestConnection(ctx context.Context) error
}

// mailService implements MailService.
type mailService struct {
	accounts accounts.AccountService
	sender   Sender
}

// NewMailService creates a new mail service.
func NewMailService(accts accounts.AccountService, sender Sender) MailService {
	return &mailService{accounts: accts, sender: sender}
}

// SendWith decrypts the account password and sends. Accounts with outgoing
// mail disabled are refused before any connection is made.
func (s *mailService) SendWith(ctx context.Context, account *accounts.EmailAccount, msg Mail) error {
	if !account.EnableOutgoing {
		return errOutgoingDisabled
	}
	password, err := s.accounts.Credentials(ctx, account.Name)
	if err != nil {
		return err
	}
	return s.sender.Send(ctx, account, password, msg)
}

// TestConnection handshakes with the default outgoing account's server.
func (s *mailService) TestConnection(ctx context.Context) error {
	account, err := s.defaultOutgoing(ctx)
	if err != nil {
		return err
	}
	password, err := s.accounts.Credentials(ctx, account.Name)
	if err != nil {
		return err
	}
	return s.sender.TestConnection(ctx, account, password)
}

func (s *mailService) defaultOutgoing(ctx context.Context) (*accounts.EmailAccount, error) {
	account, err := s.accounts.GetDefaultOutgoing(ctx)
	if err != nil {
		return nil, err
	}
	if !account.EnableOutgoing {
		return nil, errOutgoingDisabled
	}
	return account, nil
}
