// Package app is the application bootstrap and dependency injection root.
// It holds the shared infrastructure (DB pool, Redis client, Echo instance,
// validator, authorization policy) and wires the plugins together.
package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/a-h/templ"
	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"

	"github.com/keyxmakerx/healthcore/internal/apperror"
	"github.com/keyxmakerx/healthcore/internal/authz"
	"github.com/keyxmakerx/healthcore/internal/config"
	"github.com/keyxmakerx/healthcore/internal/middleware"
	"github.com/keyxmakerx/healthcore/internal/templates/layouts"
	"github.com/keyxmakerx/healthcore/internal/validator"
)

// App holds all shared dependencies and the Echo HTTP server instance.
// Created once at startup in main.go and used to register all routes.
type App struct {
	Config *config.Config

	// DB is the MariaDB connection pool shared by all plugins.
	DB *sql.DB

	// Redis holds sessions.
	Redis *redis.Client

	Echo *echo.Echo

	// Policy is the single authorization policy consulted by guarded routes.
	Policy *authz.Policy

	Validator *validator.Validator
}

// New creates the App and configures Echo with global middleware and the
// error handler.
func New(cfg *config.Config, db *sql.DB, rdb *redis.Client) (*App, error) {
	policy, err := authz.New()
	if err != nil {
		return nil, fmt.Errorf("building authorization policy: %w", err)
	}
	v, err := validator.New()
	if err != nil {
		return nil, fmt.Errorf("building validator: %w", err)
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Validator = v

	middleware.TrustedProxies(e, cfg.TrustedProxies)

	app := &App{
		Config:    cfg,
		DB:        db,
		Redis:     rdb,
		Echo:      e,
		Policy:    policy,
		Validator: v,
	}

	app.setupMiddleware()
	e.HTTPErrorHandler = app.errorHandler

	return app, nil
}

// setupMiddleware registers global middleware. The request logger is
// outermost so it sees the final status of recovered panics.
func (a *App) setupMiddleware() {
	a.Echo.Use(middleware.RequestLogger())
	a.Echo.Use(middleware.Recovery())
	a.Echo.Use(middleware.SecurityHeaders(a.Config.IsProduction()))
	a.Echo.Use(middleware.CORS(middleware.CORSConfig{
		AllowedOrigins:   append([]string{a.Config.BaseURL}, a.Config.CORSOrigins...),
		AllowCredentials: true,
	}))
	a.Echo.Use(middleware.CSRF())
}

// errorResponse is the JSON shape of every API error. status is always
// "error" so clients can treat it like any other result.
type errorResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
	Error   string `json:"error"`
}

// errorHandler maps AppErrors and Echo HTTP errors to responses: JSON for
// /api paths, an HTML error page otherwise.
func (a *App) errorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	code := http.StatusInternalServerError
	message := "An unexpected error occurred"
	errType := "internal_error"

	var appErr *apperror.AppError
	var echoErr *echo.HTTPError
	switch {
	case errors.As(err, &appErr):
		code = appErr.Code
		message = appErr.Message
		errType = appErr.Type
		if appErr.Internal != nil {
			slog.Error("internal error",
				slog.String("type", appErr.Type),
				slog.String("kind", appErr.Kind.String()),
				slog.String("message", appErr.Message),
				slog.Any("internal", appErr.Internal),
				slog.String("path", c.Request().URL.Path),
			)
		}

	case errors.As(err, &echoErr):
		code = echoErr.Code
		errType = strings.ToLower(strings.ReplaceAll(http.StatusText(code), " ", "_"))
		if msg, ok := echoErr.Message.(string); ok {
			message = msg
		} else {
			message = http.StatusText(code)
		}

	default:
		slog.Error("unhandled error",
			slog.Any("error", err),
			slog.String("path", c.Request().URL.Path),
		)
	}

	if strings.HasPrefix(c.Request().URL.Path, "/api") {
		if err := c.JSON(code, errorResponse{Status: "error", Message: message, Error: errType}); err != nil {
			slog.Error("writing error response", slog.Any("error", err))
		}
		return
	}

	if err := middleware.Render(c, code, errorPage(code, message)); err != nil {
		slog.Error("rendering error page", slog.Any("error", err))
	}
}

// errorPage is the HTML shown for failed browser requests.
func errorPage(code int, message string) templ.Component {
	body := templ.ComponentFunc(func(_ context.Context, w io.Writer) error {
		var m layouts.Markup
		m.Raw(`<section class="error"><h1>`)
		m.Text(strconv.Itoa(code) + " " + http.StatusText(code))
		m.Raw(`</h1><p>`)
		m.Text(message)
		m.Raw(`</p><p><a href="/smtp-configuration">Back to SMTP Configuration</a></p></section>`)
		_, err := io.WriteString(w, m.String())
		return err
	})
	return layouts.Base(layouts.Options{Title: http.StatusText(code), NoCache: true}, body)
}

// Start begins listening for HTTP requests on the configured port.
func (a *App) Start() error {
	addr := fmt.Sprintf(":%d", a.Config.Port)
	slog.Info("starting healthcore server",
		slog.String("addr", addr),
		slog.String("env", a.Config.Env),
	)
	return a.Echo.Start(addr)
}
