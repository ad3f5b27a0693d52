package smtpsetup

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/keyxmakerx/healthcore/internal/apperror"
	"github.com/keyxmakerx/healthcore/internal/authz"
	"github.com/keyxmakerx/healthcore/internal/middleware"
	"github.com/keyxmakerx/healthcore/internal/plugins/auth"
)

// maxBodyBytes caps request bodies of the send endpoints.
const maxBodyBytes = 64 << 10

// Handler serves the SMTP configuration endpoints. Results are always
// rendered as 200 with a status field; only authentication and permission
// failures leave as HTTP errors.
type Handler struct {
	service Service
	policy  *authz.Policy
}

// NewHandler creates a new SMTP configuration handler.
func NewHandler(service Service, policy *authz.Policy) *Handler {
	return &Handler{service: service, policy: policy}
}

// Status returns the default account status (GET getSmtpStatus and
// getSmtpConfigurationStatus).
func (h *Handler) Status(c echo.Context) error {
	return c.JSON(http.StatusOK, h.service.Status(c.Request().Context()))
}

// GuestAccounts lists accounts for anyone; the modify flag is always false
// (GET getEmailAccounts).
func (h *Handler) GuestAccounts(c echo.Context) error {
	return c.JSON(http.StatusOK, h.service.ListAccounts(c.Request().Context(), false))
}

// AccountSettings lists accounts with the caller's real modify permission
// (GET getEmailAccountSettings).
func (h *Handler) AccountSettings(c echo.Context) error {
	session := auth.GetSession(c)
	if session == nil {
		return apperror.NewMissingContext()
	}
	canModify := h.policy.Allowed(session.Roles, authz.ResourceEmailAccount, authz.ActionWrite)
	return c.JSON(http.StatusOK, h.service.ListAccounts(c.Request().Context(), canModify))
}

// GuestSendTest sends a test email without auditing (POST sendTestEmail).
func (h *Handler) GuestSendTest(c echo.Context) error {
	req, err := decodeSendTest(c)
	if err != nil {
		return c.JSON(http.StatusOK, Render(err))
	}
	return c.JSON(http.StatusOK, h.service.SendTest(c.Request().Context(), Caller{}, req.RecipientEmail))
}

// SendTest sends an audited test email as the session user
// (POST sendTestEmailApi).
func (h *Handler) SendTest(c echo.Context) error {
	caller, err := callerFrom(c)
	if err != nil {
		return err
	}
	req, err := decodeSendTest(c)
	if err != nil {
		return c.JSON(http.StatusOK, Render(err))
	}
	return c.JSON(http.StatusOK, h.service.SendTest(c.Request().Context(), caller, req.RecipientEmail))
}

// ResetInfo answers guest reset requests (POST resetSmtp).
func (h *Handler) ResetInfo(c echo.Context) error {
	return c.JSON(http.StatusOK, h.service.ResetInfo())
}

// Reset re-applies the configured settings (POST resetToDefaultSmtp).
func (h *Handler) Reset(c echo.Context) error {
	caller, err := callerFrom(c)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, h.service.Reset(c.Request().Context(), caller))
}

// TestConnection checks the default account's server (POST testSmtpConnection).
func (h *Handler) TestConnection(c echo.Context) error {
	return c.JSON(http.StatusOK, h.service.TestConnection(c.Request().Context()))
}

// PageContext returns the page's static settings (GET getSmtpPageContext).
func (h *Handler) PageContext(c echo.Context) error {
	return c.JSON(http.StatusOK, h.service.PageContext())
}

// ConfigurationPage renders the HTML page (GET /smtp-configuration).
func (h *Handler) ConfigurationPage(c echo.Context) error {
	c.Response().Header().Set("Cache-Control", "no-store")
	return middleware.Render(c, http.StatusOK, ConfigurationPage(h.service.Page(c.Request().Context())))
}

// --- Helpers ---

func callerFrom(c echo.Context) (Caller, error) {
	session := auth.GetSession(c)
	if session == nil {
		return Caller{}, apperror.NewMissingContext()
	}
	return Caller{UserID: session.UserID, Email: session.Email}, nil
}

// decodeSendTest reads the optional JSON body. An empty body is a request
// without a recipient; unknown fields and trailing data are rejected.
func decodeSendTest(c echo.Context) (SendTestRequest, error) {
	var req SendTestRequest

	data, err := io.ReadAll(io.LimitReader(c.Request().Body, maxBodyBytes+1))
	if err != nil {
		return req, apperror.NewBadRequest("Invalid request body")
	}
	if len(data) > maxBodyBytes {
		return req, apperror.NewBadRequest("Request body too large")
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return req, nil
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		return req, apperror.NewBadRequest("Invalid request body: " + err.Error())
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return req, apperror.NewBadRequest("Invalid request body: unexpected trailing data")
	}
	return req, nil
}
