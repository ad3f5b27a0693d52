package audit

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"

	"github.com/keyxmakerx/healthcore/internal/apperror"
)

func TestHandlerRecent(t *testing.T) {
	repo := &mockAuditRepo{listRecentFn: func(context.Context, int) ([]Entry, error) {
		return []Entry{{ID: "c1", Action: ActionConfigReset, Status: StatusSuccess}}, nil
	}}
	h := NewHandler(NewAuditService(repo))

	e := echo.New()
	rec := httptest.NewRecorder()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/api/method/getSmtpAuditLog?limit=5", nil), rec)

	if err := h.Recent(c); err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if repo.lastLimit != 5 {
		t.Errorf("limit = %d, want 5", repo.lastLimit)
	}

	var got recentResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("decoding: %v", err)
	}
	if got.Status != "success" || len(got.Communications) != 1 || got.Communications[0].ID != "c1" {
		t.Errorf("unexpected response %+v", got)
	}
}

func TestHandlerRecent_EmptyIsList(t *testing.T) {
	h := NewHandler(NewAuditService(&mockAuditRepo{}))

	e := echo.New()
	rec := httptest.NewRecorder()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), rec)

	if err := h.Recent(c); err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if want := `{"status":"success","communications":[]}`; rec.Body.String() != want+"\n" {
		t.Errorf("body = %q, want %q", rec.Body.String(), want)
	}
}

func TestHandlerRecent_BadLimit(t *testing.T) {
	h := NewHandler(NewAuditService(&mockAuditRepo{}))

	e := echo.New()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/?limit=abc", nil), httptest.NewRecorder())

	if err := h.Recent(c); apperror.SafeCode(err) != http.StatusBadRequest {
		t.Fatalf("expected 400, got %v", err)
	}
}
