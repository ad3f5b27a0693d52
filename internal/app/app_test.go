package app

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"

	"github.com/keyxmakerx/healthcore/internal/apperror"
	"github.com/keyxmakerx/healthcore/internal/authz"
	"github.com/keyxmakerx/healthcore/internal/config"
)

func newTestApp(t *testing.T) *App {
	t.Helper()
	a, err := New(&config.Config{Env: "development", BaseURL: "http://localhost:8080"}, nil, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return a
}

func serve(a *App, method, path string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	a.Echo.ServeHTTP(rec, httptest.NewRequest(method, path, nil))
	return rec
}

func TestErrorHandler_APIJSON(t *testing.T) {
	a := newTestApp(t)
	a.Echo.POST("/api/method/resetToDefaultSmtp", func(echo.Context) error {
		return errors.New("unreachable")
	}, a.Policy.Require(authz.ResourceEmailAccount, authz.ActionWrite))

	rec := serve(a, http.MethodPost, "/api/method/resetToDefaultSmtp")
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("code = %d, want 401", rec.Code)
	}

	var body errorResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decoding: %v", err)
	}
	if body.Status != "error" || body.Error != "unauthorized" {
		t.Errorf("unexpected body %+v", body)
	}
}

func TestErrorHandler_HidesInternalErrors(t *testing.T) {
	a := newTestApp(t)
	a.Echo.GET("/api/method/boom", func(echo.Context) error {
		return apperror.NewPersistence(errors.New("Error 1045: Access denied for user 'root'"))
	})

	rec := serve(a, http.MethodGet, "/api/method/boom")
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("code = %d, want 500", rec.Code)
	}
	if strings.Contains(rec.Body.String(), "1045") {
		t.Error("internal error leaked")
	}
}

func TestErrorHandler_RecoversPanics(t *testing.T) {
	a := newTestApp(t)
	a.Echo.GET("/api/method/panic", func(echo.Context) error { panic("nil map") })

	rec := serve(a, http.MethodGet, "/api/method/panic")
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("code = %d, want 500", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"status":"error"`) {
		t.Errorf("unexpected body %s", rec.Body.String())
	}
}

func TestErrorHandler_HTMLPage(t *testing.T) {
	a := newTestApp(t)

	rec := serve(a, http.MethodGet, "/no-such-page")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("code = %d, want 404", rec.Code)
	}
	if ct := rec.Header().Get(echo.HeaderContentType); !strings.HasPrefix(ct, "text/html") {
		t.Errorf("content type = %q", ct)
	}
	if !strings.Contains(rec.Body.String(), "404 Not Found") {
		t.Errorf("missing heading in %s", rec.Body.String())
	}
}

func TestSecurityHeadersApplied(t *testing.T) {
	rec := serve(newTestApp(t), http.MethodGet, "/api/method/missing")
	if rec.Header().Get("X-Content-Type-Options") != "nosniff" {
		t.Error("security headers missing")
	}
	if rec.Header().Get("X-Request-ID") == "" {
		t.Error("request ID missing")
	}
}
