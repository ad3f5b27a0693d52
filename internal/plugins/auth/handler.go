package auth

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/keyxmakerx/healthcore/internal/apperror"
)

const sessionCookieName = "healthcore_session"

// Handler serves sign-in, sign-out and the current identity.
type Handler struct {
	service   AuthService
	cookieTTL time.Duration
}

// NewHandler returns a Handler whose session cookie lives as long as the
// Redis session does.
func NewHandler(service AuthService, sessionTTL time.Duration) *Handler {
	return &Handler{service: service, cookieTTL: sessionTTL}
}

// Login handles POST /api/auth/login. The token goes out both as a cookie
// and in the body for Bearer clients.
func (h *Handler) Login(c echo.Context) error {
	var req LoginRequest
	if err := c.Bind(&req); err != nil {
		return apperror.NewBadRequest("invalid request")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	token, user, err := h.service.Login(c.Request().Context(), LoginInput{
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		return err
	}

	c.SetCookie(sessionCookie(c.Request(), token, int(h.cookieTTL.Seconds())))
	return c.JSON(http.StatusOK, LoginResponse{Token: token, User: user})
}

// Logout handles POST /api/auth/logout. The cookie is dropped even when the
// session could not be removed.
func (h *Handler) Logout(c echo.Context) error {
	if token, _ := sessionToken(c); token != "" {
		if err := h.service.DestroySession(c.Request().Context(), token); err != nil {
			c.Logger().Warnf("logout: %v", err)
		}
	}
	c.SetCookie(sessionCookie(c.Request(), "", -1))
	return c.NoContent(http.StatusNoContent)
}

// Me handles GET /api/auth/me.
func (h *Handler) Me(c echo.Context) error {
	session := GetSession(c)
	if session == nil {
		return apperror.NewMissingContext()
	}
	return c.JSON(http.StatusOK, session)
}

// sessionCookie builds the HttpOnly session cookie. A negative maxAge
// deletes it.
func sessionCookie(req *http.Request, token string, maxAge int) *http.Cookie {
	return &http.Cookie{
		Name:     sessionCookieName,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		Secure:   req.TLS != nil || req.Header.Get("X-Forwarded-Proto") == "https",
		SameSite: http.SameSiteLaxMode,
		MaxAge:   maxAge,
	}
}
