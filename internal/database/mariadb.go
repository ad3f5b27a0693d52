// Package database opens the MariaDB pool and the Redis client the server
// shares across plugins, and applies schema migrations.
package database

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/sethvargo/go-retry"

	"github.com/keyxmakerx/healthcore/internal/config"
)

const (
	readyAttempts = 10
	pingTimeout   = 5 * time.Second
)

// NewMariaDB opens a pool sized from cfg and waits for the server to answer.
func NewMariaDB(ctx context.Context, cfg config.DatabaseConfig) (*sql.DB, error) {
	db, err := sql.Open("mysql", cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("opening mariadb pool: %w", err)
	}
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	if err := waitReady(ctx, "mariadb", db.PingContext); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

// waitReady pings with capped exponential backoff. Containers started
// together often come up before their dependencies accept connections.
func waitReady(ctx context.Context, name string, ping func(context.Context) error) error {
	backoff := retry.WithMaxRetries(readyAttempts-1,
		retry.WithCappedDuration(30*time.Second, retry.NewExponential(time.Second)))

	attempt := 0
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		attempt++
		pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
		defer cancel()

		if err := ping(pingCtx); err != nil {
			slog.Warn("dependency not ready",
				slog.String("dependency", name),
				slog.Int("attempt", attempt),
				slog.Int("max_attempts", readyAttempts),
				slog.Any("error", err),
			)
			return retry.RetryableError(err)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("%s unreachable after %d attempts: %w", name, attempt, err)
	}
	return nil
}
