package audit

import (
	"github.com/labstack/echo/v4"
)

// RegisterRoutes mounts the Communications log. The caller supplies the
// authentication and permission middleware so this package stays free of
// the auth and authz imports.
func RegisterRoutes(e *echo.Echo, h *Handler, guards ...echo.MiddlewareFunc) {
	e.GET("/api/method/getSmtpAuditLog", h.Recent, guards...)
}
