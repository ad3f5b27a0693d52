package smtp

import (
	"bytes"
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"errors"
	"io"
	"math/big"
	"net"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/emersion/go-message/mail"
	"github.com/emersion/go-sasl"
	gosmtp "github.com/emersion/go-smtp"

	"github.com/keyxmakerx/healthcore/internal/apperror"
	"github.com/keyxmakerx/healthcore/internal/plugins/accounts"
)

// --- In-process SMTP server ---

type received struct {
	from string
	to   []string
	data []byte
	tls  bool
}

type testBackend struct {
	user, password string

	mu       sync.Mutex
	messages []received
	authed   bool
}

func (b *testBackend) NewSession(c *gosmtp.Conn) (gosmtp.Session, error) {
	return &testSession{backend: b, conn: c}, nil
}

func (b *testBackend) last() (received, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.messages) == 0 {
		return received{}, false
	}
	return b.messages[len(b.messages)-1], true
}

type testSession struct {
	backend *testBackend
	conn    *gosmtp.Conn
	msg     received
}

func (s *testSession) AuthMechanisms() []string {
	return []string{sasl.Plain}
}

func (s *testSession) Auth(mech string) (sasl.Server, error) {
	return sasl.NewPlainServer(func(identity, username, password string) error {
		if username != s.backend.user || password != s.backend.password {
			return errors.New("invalid credentials")
		}
		s.backend.mu.Lock()
		s.backend.authed = true
		s.backend.mu.Unlock()
		return nil
	}), nil
}

func (s *testSession) Mail(from string, _ *gosmtp.MailOptions) error {
	s.msg.from = from
	return nil
}

func (s *testSession) Rcpt(to string, _ *gosmtp.RcptOptions) error {
	s.msg.to = append(s.msg.to, to)
	return nil
}

func (s *testSession) Data(r io.Reader) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	s.msg.data = data
	_, s.msg.tls = s.conn.TLSConnectionState()
	s.backend.mu.Lock()
	s.backend.messages = append(s.backend.messages, s.msg)
	s.backend.mu.Unlock()
	return nil
}

func (s *testSession) Reset()        { s.msg = received{} }
func (s *testSession) Logout() error { return nil }

// startServer runs a plaintext SMTP server on a loopback port and returns
// an account pointing at it.
func startServer(t *testing.T, be *testBackend) *accounts.EmailAccount {
	t.Helper()
	return serve(t, be, nil, false)
}

// serve starts an SMTP server. With cfg set it offers STARTTLS, or speaks
// TLS from the first byte when implicit is true.
func serve(t *testing.T, be *testBackend, cfg *tls.Config, implicit bool) *accounts.EmailAccount {
	t.Helper()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listening: %v", err)
	}
	addr := ln.Addr().String()
	if implicit {
		ln = tls.NewListener(ln, cfg)
	}

	srv := gosmtp.NewServer(be)
	if !implicit {
		srv.TLSConfig = cfg
	}
	srv.Domain = "localhost"
	srv.AllowInsecureAuth = true
	srv.ReadTimeout = 5 * time.Second
	srv.WriteTimeout = 5 * time.Second

	go func() { _ = srv.Serve(ln) }()
	t.Cleanup(func() { _ = srv.Close() })

	host, portStr, _ := net.SplitHostPort(addr)
	port, _ := strconv.Atoi(portStr)

	return &accounts.EmailAccount{
		Name:            "acct-1",
		AccountName:     accounts.ManagedAccountName,
		EmailID:         be.user,
		SMTPServer:      host,
		SMTPPort:        port,
		EnableOutgoing:  true,
		DefaultOutgoing: true,
	}
}

func testMail() Mail {
	return Mail{
		To:               []string{"admin@clinic.example"},
		Subject:          "4Geeks Health SMTP Configuration Test",
		HTMLBody:         "<h2>SMTP Configuration Test</h2><p>Account: <strong>4Geeks Health SMTP</strong></p>",
		ReferenceDoctype: "Email Account",
		ReferenceName:    "acct-1",
	}
}

// --- Sender tests ---

func TestSend_DeliversComposedMessage(t *testing.T) {
	be := &testBackend{user: "noreply@clinic.example", password: "app-password"}
	account := startServer(t, be)

	sender := NewSender()
	if err := sender.Send(context.Background(), account, "app-password", testMail()); err != nil {
		t.Fatalf("Send: %v", err)
	}

	got, ok := be.last()
	if !ok {
		t.Fatal("server received no message")
	}
	be.mu.Lock()
	authed := be.authed
	be.mu.Unlock()
	if !authed {
		t.Error("expected PLAIN authentication")
	}
	if got.from != "noreply@clinic.example" {
		t.Errorf("MAIL FROM = %q", got.from)
	}
	if len(got.to) != 1 || got.to[0] != "admin@clinic.example" {
		t.Errorf("RCPT TO = %v", got.to)
	}

	mr, err := mail.CreateReader(bytes.NewReader(got.data))
	if err != nil {
		t.Fatalf("parsing message: %v", err)
	}
	defer mr.Close()

	subject, _ := mr.Header.Subject()
	if subject != "4Geeks Health SMTP Configuration Test" {
		t.Errorf("Subject = %q", subject)
	}
	from, _ := mr.Header.AddressList("From")
	if len(from) != 1 || from[0].Name != accounts.ManagedAccountName {
		t.Errorf("From = %v", from)
	}
	if ref := mr.Header.Get("X-Reference-Name"); ref != "acct-1" {
		t.Errorf("X-Reference-Name = %q", ref)
	}

	var text, html string
	for {
		part, err := mr.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			t.Fatalf("reading part: %v", err)
		}
		h, ok := part.Header.(*mail.InlineHeader)
		if !ok {
			continue
		}
		ct, _, _ := h.ContentType()
		body, _ := io.ReadAll(part.Body)
		switch ct {
		case "text/plain":
			text = string(body)
		case "text/html":
			html = string(body)
		}
	}
	if !strings.Contains(html, "<strong>4Geeks Health SMTP</strong>") {
		t.Errorf("html part missing account name: %q", html)
	}
	if !strings.Contains(text, "Account: 4Geeks Health SMTP") || strings.Contains(text, "<") {
		t.Errorf("unexpected text part: %q", text)
	}
}

func TestSend_AuthFailure(t *testing.T) {
	be := &testBackend{user: "noreply@clinic.example", password: "right"}
	account := startServer(t, be)

	err := NewSender().Send(context.Background(), account, "wrong", testMail())
	if !apperror.Is(err, apperror.KindTransport) {
		t.Fatalf("expected transport error, got %v", err)
	}
	if _, ok := be.last(); ok {
		t.Error("message should not be delivered after failed auth")
	}
}

func TestSend_ConnectionRefused(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listening: %v", err)
	}
	addr := ln.Addr().(*net.TCPAddr)
	ln.Close()

	account := &accounts.EmailAccount{
		Name:       "acct-1",
		EmailID:    "noreply@clinic.example",
		SMTPServer: "127.0.0.1",
		SMTPPort:   addr.Port,
	}
	err = NewSender().Send(context.Background(), account, "pw", testMail())
	if !apperror.Is(err, apperror.KindTransport) {
		t.Fatalf("expected transport error, got %v", err)
	}
	if !strings.Contains(apperror.SafeMessage(err), "connecting to") {
		t.Errorf("message should describe the failure, got %q", apperror.SafeMessage(err))
	}
}

func TestSend_NoRecipients(t *testing.T) {
	account := &accounts.EmailAccount{SMTPServer: "127.0.0.1", SMTPPort: 1}
	err := NewSender().Send(context.Background(), account, "", Mail{Subject: "x"})
	if !apperror.Is(err, apperror.KindValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestTestConnection(t *testing.T) {
	be := &testBackend{user: "noreply@clinic.example", password: "pw"}
	account := startServer(t, be)

	if err := NewSender().TestConnection(context.Background(), account, "pw"); err != nil {
		t.Fatalf("TestConnection: %v", err)
	}
	if _, ok := be.last(); ok {
		t.Error("TestConnection must not send a message")
	}
}

// selfSigned returns a server config for 127.0.0.1 and a client config
// that trusts it.
func selfSigned(t *testing.T) (server, client *tls.Config) {
	t.Helper()

	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		t.Fatalf("generating key: %v", err)
	}
	tmpl := &x509.Certificate{
		SerialNumber: big.NewInt(1),
		Subject:      pkix.Name{CommonName: "smtp.test"},
		IPAddresses:  []net.IP{net.ParseIP("127.0.0.1")},
		NotBefore:    time.Now().Add(-time.Hour),
		NotAfter:     time.Now().Add(time.Hour),
		KeyUsage:     x509.KeyUsageDigitalSignature,
		ExtKeyUsage:  []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
	}
	der, err := x509.CreateCertificate(rand.Reader, tmpl, tmpl, &key.PublicKey, key)
	if err != nil {
		t.Fatalf("creating certificate: %v", err)
	}
	cert, err := x509.ParseCertificate(der)
	if err != nil {
		t.Fatalf("parsing certificate: %v", err)
	}

	roots := x509.NewCertPool()
	roots.AddCert(cert)

	server = &tls.Config{Certificates: []tls.Certificate{{Certificate: [][]byte{der}, PrivateKey: key, Leaf: cert}}}
	client = &tls.Config{RootCAs: roots, MinVersion: tls.VersionTLS12}
	return server, client
}

// trustingSender is NewSender with the test root installed.
func trustingSender(roots *tls.Config) Sender {
	return &clientSender{
		now: time.Now,
		tlsConfig: func(host string) *tls.Config {
			cfg := roots.Clone()
			cfg.ServerName = host
			return cfg
		},
	}
}

func TestSend_SecurityModes(t *testing.T) {
	tests := []struct {
		name     string
		implicit bool
		useTLS   bool
		useSSL   bool
	}{
		{name: "starttls", useTLS: true},
		{name: "implicit tls", implicit: true, useSSL: true},
		{name: "ssl wins over tls", implicit: true, useTLS: true, useSSL: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			serverCfg, clientCfg := selfSigned(t)
			be := &testBackend{user: "noreply@clinic.example", password: "pw"}
			account := serve(t, be, serverCfg, tt.implicit)
			account.UseTLS, account.UseSSL = tt.useTLS, tt.useSSL

			if err := trustingSender(clientCfg).Send(context.Background(), account, "pw", testMail()); err != nil {
				t.Fatalf("Send: %v", err)
			}
			got, ok := be.last()
			if !ok {
				t.Fatal("server received no message")
			}
			if !got.tls {
				t.Error("message was delivered over a plaintext connection")
			}
		})
	}
}

func TestSend_StartTLSRequiredButNotOffered(t *testing.T) {
	_, clientCfg := selfSigned(t)
	be := &testBackend{user: "noreply@clinic.example", password: "pw"}
	account := startServer(t, be)
	account.UseTLS = true

	err := trustingSender(clientCfg).Send(context.Background(), account, "pw", testMail())
	if !apperror.Is(err, apperror.KindTransport) {
		t.Fatalf("expected transport error, got %v", err)
	}
	if _, ok := be.last(); ok {
		t.Error("message must not fall back to plaintext")
	}
}

func TestTestConnection_StartTLS(t *testing.T) {
	serverCfg, clientCfg := selfSigned(t)
	be := &testBackend{user: "noreply@clinic.example", password: "pw"}
	account := serve(t, be, serverCfg, false)
	account.UseTLS = true

	if err := trustingSender(clientCfg).TestConnection(context.Background(), account, "pw"); err != nil {
		t.Fatalf("TestConnection: %v", err)
	}
}

func TestSend_UntrustedCertificate(t *testing.T) {
	serverCfg, _ := selfSigned(t)
	be := &testBackend{user: "noreply@clinic.example", password: "pw"}
	account := serve(t, be, serverCfg, false)
	account.UseTLS = true

	err := NewSender().Send(context.Background(), account, "pw", testMail())
	if !apperror.Is(err, apperror.KindTransport) {
		t.Fatalf("expected transport error, got %v", err)
	}
}

func TestTextFromHTML(t *testing.T) {
	got := textFromHTML("<h2>Title</h2><p>Line &amp; one</p><p>Sent at: now</p>")
	want := "Title\nLine & one\nSent at: now"
	if got != want {
		t.Errorf("textFromHTML() = %q, want %q", got, want)
	}
}

// --- MailService tests ---

type mockAccountService struct {
	defaultAccount *accounts.EmailAccount
	defaultErr     error
	password       string
	credentialsErr error
}

func (m *mockAccountService) GetDefaultOutgoing(context.Context) (*accounts.EmailAccount, error) {
	if m.defaultErr != nil {
		return nil, m.defaultErr
	}
	return m.defaultAccount, nil
}

func (m *mockAccountService) Create(context.Context, *accounts.EmailAccount, string) error {
	return nil
}

func (m *mockAccountService) Update(context.Context, *accounts.EmailAccount, string) error {
	return nil
}

func (m *mockAccountService) List(context.Context) ([]accounts.AccountSummary, error) {
	return nil, nil
}

func (m *mockAccountService) Credentials(context.Context, string) (string, error) {
	return m.password, m.credentialsErr
}

type mockSender struct {
	sendErr      error
	lastPassword string
	lastAccount  *accounts.EmailAccount
	sendCount    int
}

func (m *mockSender) Send(_ context.Context, account *accounts.EmailAccount, password string, _ Mail) error {
	m.sendCount++
	m.lastAccount = account
	m.lastPassword = password
	return m.sendErr
}

func (m *mockSender) TestConnection(_ context.Context, account *accounts.EmailAccount, password string) error {
	m.lastAccount = account
	m.lastPassword = password
	return m.sendErr
}

func TestMailService_SendWithDecryptsPassword(t *testing.T) {
	acct := &accounts.EmailAccount{Name: "acct-1", EnableOutgoing: true, SMTPServer: "smtp.gmail.com"}
	sender := &mockSender{}
	svc := NewMailService(&mockAccountService{defaultAccount: acct, password: "decrypted"}, sender)

	if err := svc.SendWith(context.Background(), acct, testMail()); err != nil {
		t.Fatalf("SendWith: %v", err)
	}
	if sender.lastAccount != acct || sender.lastPassword != "decrypted" {
		t.Errorf("sender got account %v password %q", sender.lastAccount, sender.lastPassword)
	}
}

func TestMailService_OutgoingDisabled(t *testing.T) {
	acct := &accounts.EmailAccount{Name: "acct-1", SMTPServer: "smtp.gmail.com"}
	sender := &mockSender{}
	svc := NewMailService(&mockAccountService{defaultAccount: acct}, sender)

	if err := svc.TestConnection(context.Background()); !apperror.Is(err, apperror.KindValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if sender.sendCount != 0 {
		t.Error("sender should not be called")
	}
}

func TestMailService_NoDefault(t *testing.T) {
	svc := NewMailService(&mockAccountService{defaultErr: apperror.NewNotFound("none")}, &mockSender{})
	if err := svc.TestConnection(context.Background()); !apperror.Is(err, apperror.KindNotFound) {
		t.Errorf("expected not found, got %v", err)
	}
}

func TestMailService_SendWithRefusesDisabledAccount(t *testing.T) {
	sender := &mockSender{}
	svc := NewMailService(&mockAccountService{password: "pw"}, sender)

	err := svc.SendWith(context.Background(), &accounts.EmailAccount{Name: "acct-2"}, testMail())
	if !apperror.Is(err, apperror.KindValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if sender.sendCount != 0 {
		t.Error("sender should not be called")
	}
}
