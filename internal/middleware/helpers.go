package middleware

import (
	"context"

	"github.com/a-h/templ"
	"github.com/labstack/echo/v4"
)

// LayoutInjector copies layout data (session, CSRF token, path) from the
// Echo context into the Go context the templ components read. It is set
// once at startup in app/routes.go so this package imports no plugin.
var LayoutInjector func(echo.Context, context.Context) context.Context

// Render writes a templ component with the given status code, after
// running the LayoutInjector when one is registered.
func Render(c echo.Context, statusCode int, component templ.Component) error {
	ctx := c.Request().Context()
	if LayoutInjector != nil {
		ctx = LayoutInjector(c, ctx)
	}

	c.Response().Header().Set(echo.HeaderContentType, echo.MIMETextHTMLCharsetUTF8)
	c.Response().WriteHeader(statusCode)
	return component.Render(ctx, c.Response().Writer)
}
