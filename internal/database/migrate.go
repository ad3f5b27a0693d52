package database

import (
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/mysql"
	_ "github.com/golang-migrate/migrate/v4/source/file"
)

// migrateLogger forwards golang-migrate output to slog at debug level.
type migrateLogger struct{}

func (migrateLogger) Printf(format string, v ...any) {
	slog.Debug(strings.TrimSpace(fmt.Sprintf(format, v...)), slog.String("component", "migrate"))
}

func (migrateLogger) Verbose() bool { return false }

// RunMigrations brings the schema up to the newest file in dir. A dirty
// schema is reported as an error so startup stops before serving.
func RunMigrations(db *sql.DB, dir string) error {
	target, err := mysql.WithInstance(db, &mysql.Config{})
	if err != nil {
		return fmt.Errorf("migrate: wrapping connection: %w", err)
	}
	m, err := migrate.NewWithDatabaseInstance("file://"+dir, "mysql", target)
	if err != nil {
		return fmt.Errorf("migrate: loading %s: %w", dir, err)
	}
	m.Log = migrateLogger{}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migrate: applying: %w", err)
	}

	version, dirty, err := m.Version()
	switch {
	case errors.Is(err, migrate.ErrNilVersion):
		slog.Info("schema empty, no migrations found", slog.String("dir", dir))
		return nil
	case err != nil:
		return fmt.Errorf("migrate: reading version: %w", err)
	case dirty:
		return fmt.Errorf("migrate: schema version %d is dirty", version)
	}

	slog.Info("schema up to date", slog.Uint64("version", uint64(version)))
	return nil
}
