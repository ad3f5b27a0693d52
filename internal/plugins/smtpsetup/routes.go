package smtpsetup

import (
	"time"

	"github.com/labstack/echo/v4"

	"github.com/keyxmakerx/healthcore/internal/authz"
	"github.com/keyxmakerx/healthcore/internal/middleware"
	"github.com/keyxmakerx/healthcore/internal/plugins/auth"
)

// RegisterRoutes sets up the SMTP configuration endpoints. Guest routes
// never mutate the account store; the guest test email is rate-limited
// because it sends real mail. Guarded routes check the policy before the
// handler runs.
func RegisterRoutes(e *echo.Echo, h *Handler, authSvc auth.AuthService, policy *authz.Policy) {
	g := e.Group("/api/method")

	// Guest.
	g.GET("/getSmtpStatus", h.Status)
	g.GET("/getEmailAccounts", h.GuestAccounts)
	g.GET("/getSmtpPageContext", h.PageContext)
	g.POST("/sendTestEmail", h.GuestSendTest, middleware.RateLimit(5, time.Minute))
	g.POST("/resetSmtp", h.ResetInfo)

	// Session required.
	requireAuth := auth.RequireAuth(authSvc)
	g.GET("/getSmtpConfigurationStatus", h.Status, requireAuth)
	g.POST("/resetToDefaultSmtp", h.Reset,
		requireAuth, policy.Require(authz.ResourceEmailAccount, authz.ActionWrite))
	g.POST("/sendTestEmailApi", h.SendTest,
		requireAuth, policy.Require(authz.ResourceCommunication, authz.ActionCreate))
	g.GET("/getEmailAccountSettings", h.AccountSettings,
		requireAuth, policy.Require(authz.ResourceEmailAccount, authz.ActionRead))
	g.POST("/testSmtpConnection", h.TestConnection,
		requireAuth, policy.Require(authz.ResourceEmailAccount, authz.ActionWrite))

	e.GET("/smtp-configuration", h.ConfigurationPage)
}
