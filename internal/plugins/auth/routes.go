package auth

import (
	"time"

	"github.com/labstack/echo/v4"

	"github.com/keyxmakerx/healthcore/internal/middleware"
)

// RegisterRoutes mounts /api/auth. Login allows 10 attempts per IP per
// minute.
func RegisterRoutes(e *echo.Echo, h *Handler, service AuthService) {
	g := e.Group("/api/auth")
	g.POST("/login", h.Login, middleware.RateLimit(10, time.Minute))
	g.POST("/logout", h.Logout)
	g.GET("/me", h.Me, RequireAuth(service))
}
