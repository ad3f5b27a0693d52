package authz

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"

	"github.com/keyxmakerx/healthcore/internal/apperror"
	"github.com/keyxmakerx/healthcore/internal/plugins/auth"
)

func newPolicy(t *testing.T) *Policy {
	t.Helper()
	p, err := New()
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return p
}

func TestAllowed(t *testing.T) {
	p := newPolicy(t)

	tests := []struct {
		name     string
		roles    []string
		resource string
		action   string
		want     bool
	}{
		{"manager reads accounts", []string{auth.RoleSystemManager}, ResourceEmailAccount, ActionRead, true},
		{"manager writes accounts", []string{auth.RoleSystemManager}, ResourceEmailAccount, ActionWrite, true},
		{"manager sends mail", []string{auth.RoleSystemManager}, ResourceCommunication, ActionCreate, true},
		{"administrator inherits", []string{auth.RoleAdministrator}, ResourceEmailAccount, ActionWrite, true},
		{"no roles", nil, ResourceEmailAccount, ActionRead, false},
		{"unknown role", []string{"Nurse"}, ResourceEmailAccount, ActionRead, false},
		{"any role matches", []string{"Nurse", auth.RoleSystemManager}, ResourceCommunication, ActionRead, true},
		{"unknown action", []string{auth.RoleSystemManager}, ResourceEmailAccount, "delete", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := p.Allowed(tt.roles, tt.resource, tt.action); got != tt.want {
				t.Errorf("Allowed(%v, %s, %s) = %v, want %v", tt.roles, tt.resource, tt.action, got, tt.want)
			}
		})
	}
}

func runRequire(t *testing.T, p *Policy, session *auth.Session) (bool, error) {
	t.Helper()
	e := echo.New()
	c := e.NewContext(httptest.NewRequest(http.MethodPost, "/api/method/resetToDefaultSmtp", nil), httptest.NewRecorder())
	if session != nil {
		c.Set("auth_session", session)
	}

	called := false
	err := p.Require(ResourceEmailAccount, ActionWrite)(func(echo.Context) error {
		called = true
		return nil
	})(c)
	return called, err
}

func TestRequire_Allows(t *testing.T) {
	called, err := runRequire(t, newPolicy(t), &auth.Session{UserID: "u1", Roles: []string{auth.RoleAdministrator}})
	if err != nil || !called {
		t.Fatalf("expected handler to run, err=%v called=%v", err, called)
	}
}

func TestRequire_Forbids(t *testing.T) {
	called, err := runRequire(t, newPolicy(t), &auth.Session{UserID: "u1", Roles: []string{"Nurse"}})
	if called {
		t.Fatal("handler must not run when denied")
	}
	if apperror.SafeCode(err) != http.StatusForbidden {
		t.Fatalf("expected 403, got %v", err)
	}
	if apperror.SafeMessage(err) != "You don't have permission to modify email account settings" {
		t.Errorf("unexpected message %q", apperror.SafeMessage(err))
	}
}

func TestRequire_NoSession(t *testing.T) {
	called, err := runRequire(t, newPolicy(t), nil)
	if called {
		t.Fatal("handler must not run without a session")
	}
	if apperror.SafeCode(err) != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %v", err)
	}
}

func TestDenialMessage_Fallback(t *testing.T) {
	if DenialMessage("x", "y") == "" {
		t.Error("expected a fallback message")
	}
}
