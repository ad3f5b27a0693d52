package middleware

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/keyxmakerx/healthcore/internal/apperror"
)

const (
	csrfTokenBytes = 32
	csrfCookieName = "healthcore_csrf"
	csrfHeaderName = "X-CSRF-Token"
	csrfFormField  = "csrf_token"
	csrfContextKey = "csrf_token"
)

// CSRF implements the double-submit cookie pattern for browser pages.
// Every response carries a token cookie; mutating requests must echo it
// in the X-CSRF-Token header or the csrf_token form field.
//
// /api/ routes are skipped: they are called with JSON bodies, which a
// cross-site form cannot produce, or with Bearer tokens.
func CSRF() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			if strings.HasPrefix(req.URL.Path, "/api/") {
				return next(c)
			}

			token := ""
			if cookie, err := req.Cookie(csrfCookieName); err == nil {
				token = cookie.Value
			}
			fresh := token == ""
			if fresh {
				var err error
				if token, err = newCSRFToken(); err != nil {
					return apperror.NewInternal(fmt.Errorf("generating CSRF token: %w", err))
				}
				c.SetCookie(&http.Cookie{
					Name:     csrfCookieName,
					Value:    token,
					Path:     "/",
					HttpOnly: false, // Read by page scripts.
					Secure:   req.TLS != nil || req.Header.Get("X-Forwarded-Proto") == "https",
					SameSite: http.SameSiteLaxMode,
				})
			}
			c.Set(csrfContextKey, token)

			if isSafeMethod(req.Method) {
				return next(c)
			}

			// A freshly issued token cannot have been submitted yet.
			submitted := req.Header.Get(csrfHeaderName)
			if submitted == "" {
				submitted = req.FormValue(csrfFormField)
			}
			if fresh || submitted == "" || subtle.ConstantTimeCompare([]byte(submitted), []byte(token)) != 1 {
				return apperror.NewForbidden("invalid or missing CSRF token")
			}

			return next(c)
		}
	}
}

func isSafeMethod(method string) bool {
	return method == http.MethodGet ||
		method == http.MethodHead ||
		method == http.MethodOptions
}

func newCSRFToken() (string, error) {
	b := make([]byte, csrfTokenBytes)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

// GetCSRFToken returns the request's CSRF token, or "".
func GetCSRFToken(c echo.Context) string {
	token, _ := c.Get(csrfContextKey).(string)
	return token
}
