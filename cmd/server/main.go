// Package main is the entry point for the healthcore SMTP configuration
// server. It loads configuration, connects to MariaDB and Redis, applies
// migrations, reconciles the default email account and serves HTTP.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/keyxmakerx/healthcore/internal/app"
	"github.com/keyxmakerx/healthcore/internal/config"
	"github.com/keyxmakerx/healthcore/internal/database"
)

const (
	// connectTimeout bounds waiting for MariaDB and Redis.
	connectTimeout = 2 * time.Minute

	bootstrapTimeout = 30 * time.Second

	// reconcileTimeout covers the account write and the verification
	// email, independent of how long connecting took.
	reconcileTimeout = 2 * time.Minute
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", slog.Any("error", err))
		os.Exit(1)
	}

	setupLogging(cfg)

	if err := run(cfg); err != nil {
		slog.Error("server failed", slog.Any("error", err))
		os.Exit(1)
	}
}

func run(cfg *config.Config) error {
	slog.Info("starting healthcore",
		slog.String("env", cfg.Env),
		slog.Int("port", cfg.Port),
	)

	ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
	defer cancel()

	// --- Connect to MariaDB ---
	db, err := database.NewMariaDB(ctx, cfg.Database)
	if err != nil {
		return err
	}
	defer db.Close()
	slog.Info("connected to MariaDB")

	if err := database.RunMigrations(db, cfg.MigrationsPath); err != nil {
		return err
	}

	// --- Connect to Redis ---
	rdb, err := database.NewRedis(ctx, cfg.Redis)
	if err != nil {
		return err
	}
	defer rdb.Close()
	slog.Info("connected to Redis")

	// --- Create Application ---
	application, err := app.New(cfg, db, rdb)
	if err != nil {
		return err
	}
	services, err := application.RegisterRoutes()
	if err != nil {
		return err
	}

	cancel()

	if err := install(services, cfg); err != nil {
		return err
	}

	// --- Graceful Shutdown ---
	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		<-quit

		slog.Info("shutting down server...")

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()

		if err := application.Echo.Shutdown(shutdownCtx); err != nil {
			slog.Error("server forced shutdown", slog.Any("error", err))
		}
	}()

	if err := application.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	slog.Info("server stopped")
	return nil
}

// install seeds the Administrator and reconciles the default email
// account, each under its own deadline. Persistence failures are fatal;
// mail failures are only audited.
func install(services *app.Services, cfg *config.Config) error {
	bctx, bcancel := context.WithTimeout(context.Background(), bootstrapTimeout)
	defer bcancel()
	if err := services.Auth.Bootstrap(bctx, cfg.Admin.Email, cfg.Admin.Password); err != nil {
		return err
	}

	rctx, rcancel := context.WithTimeout(context.Background(), reconcileTimeout)
	defer rcancel()
	return services.SMTPSetup.Reconcile(rctx, cfg.SMTP)
}

// setupLogging configures the global slog logger. Development uses text
// output, everything else JSON. LOG_LEVEL picks the threshold.
func setupLogging(cfg *config.Config) {
	opts := &slog.HandlerOptions{Level: parseLevel(cfg.LogLevel)}

	var handler slog.Handler
	if cfg.IsDevelopment() {
		handler = slog.NewTextHandler(os.Stdout, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}

	slog.SetDefault(slog.New(handler))
}

func parseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
