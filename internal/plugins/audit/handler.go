package audit

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/keyxmakerx/healthcore/internal/apperror"
)

// Handler serves the Communications log.
type Handler struct {
	service AuditService
}

// NewHandler creates a new audit handler.
func NewHandler(service AuditService) *Handler {
	return &Handler{service: service}
}

// recentResponse is the body of the log endpoint.
type recentResponse struct {
	Status         string  `json:"status"`
	Communications []Entry `json:"communications"`
}

// Recent returns the newest entries (GET /api/method/getSmtpAuditLog?limit=N).
func (h *Handler) Recent(c echo.Context) error {
	limit := 0
	if raw := c.QueryParam("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			return apperror.NewBadRequest("limit must be an integer")
		}
		limit = n
	}

	entries, err := h.service.Recent(c.Request().Context(), limit)
	if err != nil {
		return err
	}
	if entries == nil {
		entries = []Entry{}
	}
	return c.JSON(http.StatusOK, recentResponse{Status: "success", Communications: entries})
}
