// Package middleware provides the HTTP middleware of the healthcore Echo
// server. Global middleware is registered in internal/app/app.go; per-route
// middleware (rate limits, auth, policy) is attached by each plugin's routes.
package middleware

import (
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

// requestIDHeader carries the request ID in both directions.
const requestIDHeader = "X-Request-ID"

// RequestLogger assigns every request an ID and logs it once completed.
// An incoming X-Request-ID is reused so proxies can correlate.
func RequestLogger() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			req := c.Request()

			id := req.Header.Get(requestIDHeader)
			if id == "" {
				id = uuid.NewString()
			}
			c.Response().Header().Set(requestIDHeader, id)

			err := next(c)
			if err != nil {
				// Let the error handler write the response so the status is final.
				c.Error(err)
			}

			status := c.Response().Status
			attrs := []slog.Attr{
				slog.String("request_id", id),
				slog.String("method", req.Method),
				slog.String("path", req.URL.Path),
				slog.Int("status", status),
				slog.Duration("latency", time.Since(start)),
				slog.String("remote_ip", c.RealIP()),
			}

			level := slog.LevelInfo
			switch {
			case status >= 500:
				level = slog.LevelError
			case status >= 400:
				level = slog.LevelWarn
			}
			slog.LogAttrs(req.Context(), level, "request", attrs...)

			return nil
		}
	}
}
