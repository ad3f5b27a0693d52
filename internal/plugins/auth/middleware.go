package auth

import (
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/keyxmakerx/healthcore/internal/apperror"
)

// sessionContextKey is where RequireAuth leaves the *Session. Handlers in
// other packages read it through GetSession.
const sessionContextKey = "auth_session"

// RequireAuth resolves the caller's session from a Bearer token or the
// session cookie. Requests without a live session get a 401.
func RequireAuth(service AuthService) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			token, fromCookie := sessionToken(c)
			if token == "" {
				return apperror.NewUnauthorized("authentication required")
			}

			session, err := service.ValidateSession(c.Request().Context(), token)
			if err != nil {
				if fromCookie {
					c.SetCookie(sessionCookie(c.Request(), "", -1))
				}
				if apperror.Is(err, apperror.KindPermission) {
					return apperror.NewUnauthorized("authentication required")
				}
				return err
			}

			c.Set(sessionContextKey, session)
			return next(c)
		}
	}
}

// GetSession returns the session RequireAuth stored, or nil on routes it
// does not guard.
func GetSession(c echo.Context) *Session {
	session, _ := c.Get(sessionContextKey).(*Session)
	return session
}

// sessionToken prefers a Bearer token over the cookie. The second return
// value reports whether the token came from the cookie.
func sessionToken(c echo.Context) (string, bool) {
	if h := c.Request().Header.Get(echo.HeaderAuthorization); h != "" {
		if token, ok := strings.CutPrefix(h, "Bearer "); ok {
			return strings.TrimSpace(token), false
		}
	}
	if cookie, err := c.Cookie(sessionCookieName); err == nil && cookie.Value != "" {
		return cookie.Value, true
	}
	return "", false
}
