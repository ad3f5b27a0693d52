package app

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/keyxmakerx/healthcore/internal/authz"
	"github.com/keyxmakerx/healthcore/internal/middleware"
	"github.com/keyxmakerx/healthcore/internal/plugins/accounts"
	"github.com/keyxmakerx/healthcore/internal/plugins/audit"
	"github.com/keyxmakerx/healthcore/internal/plugins/auth"
	"github.com/keyxmakerx/healthcore/internal/plugins/smtp"
	"github.com/keyxmakerx/healthcore/internal/plugins/smtpsetup"
	"github.com/keyxmakerx/healthcore/internal/templates/layouts"
)

// healthTimeout bounds each dependency ping of /healthz.
const healthTimeout = 2 * time.Second

// Services are the plugin services main.go needs at startup.
type Services struct {
	Auth      auth.AuthService
	SMTPSetup smtpsetup.Service
}

// RegisterRoutes builds every plugin and registers its routes. This is the
// single place plugins are wired together.
func (a *App) RegisterRoutes() (*Services, error) {
	e := a.Echo

	// --- Plugins ---

	authSvc := auth.NewAuthService(auth.NewUserRepository(a.DB), a.Redis, a.Config.Auth.SessionTTL)

	accountSvc, err := accounts.NewAccountService(accounts.NewAccountRepository(a.DB), a.Config.Auth.SecretKey)
	if err != nil {
		return nil, fmt.Errorf("creating account service: %w", err)
	}

	auditSvc := audit.NewAuditService(audit.NewAuditRepository(a.DB))
	mailSvc := smtp.NewMailService(accountSvc, smtp.NewSender())

	setupSvc := smtpsetup.NewService(accountSvc, mailSvc, auditSvc, authSvc, a.Validator, a.Config.SMTP)

	middleware.LayoutInjector = injectLayout

	// --- Public Routes ---

	e.GET("/", func(c echo.Context) error {
		return c.Redirect(http.StatusSeeOther, "/smtp-configuration")
	})
	e.GET("/healthz", a.health)

	// --- Plugin Routes ---

	auth.RegisterRoutes(e, auth.NewHandler(authSvc, a.Config.Auth.SessionTTL), authSvc)
	smtpsetup.RegisterRoutes(e, smtpsetup.NewHandler(setupSvc, a.Policy), authSvc, a.Policy)
	audit.RegisterRoutes(e, audit.NewHandler(auditSvc),
		auth.RequireAuth(authSvc),
		a.Policy.Require(authz.ResourceCommunication, authz.ActionRead),
	)

	return &Services{Auth: authSvc, SMTPSetup: setupSvc}, nil
}

// health pings MariaDB and Redis.
func (a *App) health(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), healthTimeout)
	defer cancel()

	checks := map[string]string{"database": "ok", "redis": "ok"}
	healthy := true
	if err := a.DB.PingContext(ctx); err != nil {
		checks["database"] = "unreachable"
		healthy = false
	}
	if err := a.Redis.Ping(ctx).Err(); err != nil {
		checks["redis"] = "unreachable"
		healthy = false
	}

	status, code := "ok", http.StatusOK
	if !healthy {
		status, code = "degraded", http.StatusServiceUnavailable
	}
	return c.JSON(code, map[string]any{"status": status, "checks": checks})
}

// injectLayout copies session and CSRF data for the page shell.
func injectLayout(c echo.Context, ctx context.Context) context.Context {
	ctx = layouts.SetActivePath(ctx, c.Path())
	ctx = layouts.SetCSRFToken(ctx, middleware.GetCSRFToken(c))
	if session := auth.GetSession(c); session != nil {
		ctx = layouts.SetIsAuthenticated(ctx, true)
		ctx = layouts.SetUserEmail(ctx, session.Email)
	}
	return ctx
}
