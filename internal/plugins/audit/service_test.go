package audit

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/keyxmakerx/healthcore/internal/apperror"
)

// --- Mock Repository ---

type mockAuditRepo struct {
	insertFn     func(ctx context.Context, entry *Entry) error
	listRecentFn func(ctx context.Context, limit int) ([]Entry, error)

	inserted  []Entry
	lastLimit int
}

func (m *mockAuditRepo) Insert(ctx context.Context, entry *Entry) error {
	if m.insertFn != nil {
		if err := m.insertFn(ctx, entry); err != nil {
			return err
		}
	}
	m.inserted = append(m.inserted, *entry)
	return nil
}

func (m *mockAuditRepo) ListRecent(ctx context.Context, limit int) ([]Entry, error) {
	m.lastLimit = limit
	if m.listRecentFn != nil {
		return m.listRecentFn(ctx, limit)
	}
	return nil, nil
}

// --- Tests ---

func TestLog_FillsDefaults(t *testing.T) {
	repo := &mockAuditRepo{}
	svc := NewAuditService(repo)

	entry := &Entry{
		Action:        ActionConfigReset,
		Details:       "Administrator reset email configuration to 4Geeks default SMTP",
		Status:        StatusSuccess,
		ReferenceName: "acct-1",
	}
	if err := svc.Log(context.Background(), entry); err != nil {
		t.Fatalf("Log: %v", err)
	}
	if len(repo.inserted) != 1 {
		t.Fatalf("expected 1 insert, got %d", len(repo.inserted))
	}

	got := repo.inserted[0]
	if got.ID == "" {
		t.Error("expected ID to be generated")
	}
	if got.Sender != SystemSender {
		t.Errorf("Sender = %q, want %q", got.Sender, SystemSender)
	}
	if got.Subject != "Health Core SMTP Setup - SMTP Configuration Reset" {
		t.Errorf("Subject = %q", got.Subject)
	}
	if got.CommunicationType != "Automated Message" || got.Medium != "Email" ||
		got.SentOrReceived != "Sent" || got.ReferenceDoctype != "Email Account" {
		t.Errorf("fixed attributes not set: %+v", got)
	}
	for _, want := range []string{"<strong>Action:</strong> SMTP Configuration Reset", "<strong>Status:</strong> Success"} {
		if !strings.Contains(got.Content, want) {
			t.Errorf("Content missing %q: %s", want, got.Content)
		}
	}
}

func TestLog_KeepsCallerSender(t *testing.T) {
	repo := &mockAuditRepo{}
	svc := NewAuditService(repo)

	entry := &Entry{Action: ActionManualTestSent, Status: StatusSuccess, Sender: "nurse@clinic.example"}
	if err := svc.Log(context.Background(), entry); err != nil {
		t.Fatalf("Log: %v", err)
	}
	if repo.inserted[0].Sender != "nurse@clinic.example" {
		t.Errorf("Sender overwritten: %q", repo.inserted[0].Sender)
	}
}

func TestLog_Validation(t *testing.T) {
	svc := NewAuditService(&mockAuditRepo{})

	cases := map[string]*Entry{
		"missing action": {Status: StatusSuccess},
		"bad status":     {Action: ActionConfigReset, Status: "Pending"},
		"empty status":   {Action: ActionConfigReset},
	}
	for name, entry := range cases {
		t.Run(name, func(t *testing.T) {
			err := svc.Log(context.Background(), entry)
			if !apperror.Is(err, apperror.KindValidation) {
				t.Errorf("expected validation error, got %v", err)
			}
		})
	}
}

func TestLog_StoreFailure(t *testing.T) {
	repo := &mockAuditRepo{insertFn: func(context.Context, *Entry) error {
		return errors.New("table is full")
	}}
	svc := NewAuditService(repo)

	err := svc.Log(context.Background(), &Entry{Action: ActionConfigReset, Status: StatusSuccess})
	if !apperror.Is(err, apperror.KindPersistence) {
		t.Fatalf("expected persistence error, got %v", err)
	}
}

func TestRecord_SwallowsErrors(t *testing.T) {
	repo := &mockAuditRepo{insertFn: func(context.Context, *Entry) error {
		return errors.New("connection reset")
	}}
	svc := NewAuditService(repo)

	// Must not panic or block; nothing to assert beyond returning.
	svc.Record(context.Background(), Entry{Action: ActionTestEmailFailed, Status: StatusFailed})
	svc.Record(context.Background(), Entry{})
}

func TestRenderContent_EscapesDetails(t *testing.T) {
	content := RenderContent(ActionTestEmailFailed, `Failed to send test email: <script>alert(1)</script>`, StatusFailed)
	if strings.Contains(content, "<script") {
		t.Errorf("markup not stripped: %s", content)
	}
	if !strings.Contains(content, "Failed to send test email:") {
		t.Errorf("details text lost: %s", content)
	}
}

func TestRecent_ClampsLimit(t *testing.T) {
	repo := &mockAuditRepo{}
	svc := NewAuditService(repo)
	ctx := context.Background()

	cases := []struct{ in, want int }{
		{0, 20},
		{-5, 1},
		{50, 50},
		{1000, 100},
	}
	for _, tc := range cases {
		if _, err := svc.Recent(ctx, tc.in); err != nil {
			t.Fatalf("Recent(%d): %v", tc.in, err)
		}
		if repo.lastLimit != tc.want {
			t.Errorf("Recent(%d) queried limit %d, want %d", tc.in, repo.lastLimit, tc.want)
		}
	}
}

func TestRecent_StoreFailure(t *testing.T) {
	repo := &mockAuditRepo{listRecentFn: func(context.Context, int) ([]Entry, error) {
		return nil, errors.New("boom")
	}}
	svc := NewAuditService(repo)

	_, err := svc.Recent(context.Background(), 10)
	if !apperror.Is(err, apperror.KindPersistence) {
		t.Fatalf("expected persistence error, got %v", err)
	}
}
