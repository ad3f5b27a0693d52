package middleware

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/samber/lo"
)

// CORSConfig holds configuration for the CORS middleware.
type CORSConfig struct {
	// AllowedOrigins lists origins permitted to call /api/method from a
	// browser on another origin, e.g. the health-records front end.
	AllowedOrigins []string

	// AllowCredentials lets browsers send the session cookie cross-origin.
	AllowCredentials bool
}

var (
	corsMethods = strings.Join([]string{http.MethodGet, http.MethodPost, http.MethodOptions}, ", ")
	corsHeaders = strings.Join([]string{
		echo.HeaderContentType,
		echo.HeaderAuthorization,
		csrfHeaderName,
		requestIDHeader,
	}, ", ")
)

// CORS answers preflights and sets CORS headers for allowed origins.
// Requests without an Origin header pass through untouched.
func CORS(cfg CORSConfig) echo.MiddlewareFunc {
	allowAll := lo.Contains(cfg.AllowedOrigins, "*")
	origins := lo.SliceToMap(cfg.AllowedOrigins, func(o string) (string, bool) {
		return strings.TrimRight(o, "/"), true
	})

	// Wildcard plus credentials would let any site act as the user.
	if allowAll && cfg.AllowCredentials {
		slog.Warn("CORS: AllowedOrigins contains * so credentials are disabled")
		cfg.AllowCredentials = false
	}

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			origin := req.Header.Get(echo.HeaderOrigin)
			if origin == "" || !(allowAll || origins[origin]) {
				return next(c)
			}

			h := c.Response().Header()
			h.Set(echo.HeaderAccessControlAllowOrigin, origin)
			h.Add(echo.HeaderVary, echo.HeaderOrigin)
			if cfg.AllowCredentials {
				h.Set(echo.HeaderAccessControlAllowCredentials, "true")
			}

			if req.Method == http.MethodOptions {
				h.Set(echo.HeaderAccessControlAllowMethods, corsMethods)
				h.Set(echo.HeaderAccessControlAllowHeaders, corsHeaders)
				h.Set(echo.HeaderAccessControlMaxAge, "3600")
				return c.NoContent(http.StatusNoContent)
			}

			h.Set(echo.HeaderAccessControlExposeHeaders, requestIDHeader)
			return next(c)
		}
	}
}
