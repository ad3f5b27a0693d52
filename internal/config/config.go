// Package config handles loading application configuration. All config is
// centralized here so no other package reads env vars or the site config
// file directly. Sensible defaults are provided for development.
//
// Values are resolved by viper in this order: environment variable, site
// config file (SITE_CONFIG, JSON/YAML/TOML), default.
package config

import (
	"errors"
	"fmt"
	"net"
	"slices"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/samber/lo"
	"github.com/spf13/viper"
)

// Config holds all application configuration. Passed to other packages via
// dependency injection.
type Config struct {
	// Env is the runtime environment: "development" or "production".
	Env string

	// Port is the HTTP listen port (default: 8080).
	Port int

	// BaseURL is the public-facing URL used for CORS and links.
	BaseURL string

	// LogLevel controls log verbosity: "debug", "info", "warn", "error".
	LogLevel string

	// MigrationsPath is the directory holding golang-migrate SQL files.
	MigrationsPath string

	// TrustedProxies lists the reverse proxy CIDRs whose forwarding
	// headers are believed.
	TrustedProxies []string

	// CORSOrigins lists extra origins allowed to call the API from a browser.
	CORSOrigins []string

	Database DatabaseConfig
	Redis    RedisConfig
	Auth     AuthConfig

	// SMTP is the desired default outgoing account. Read-only; never
	// written back from the account store.
	SMTP SMTPConfig

	// Admin seeds the Administrator user on first start.
	Admin AdminConfig
}

// DatabaseConfig holds MariaDB connection parameters. If DATABASE_URL is
// set, it takes precedence over the individual fields.
type DatabaseConfig struct {
	// Host is the MariaDB address in host:port format (default: "localhost:3306").
	Host string

	User     string
	Password string
	Name     string

	// dsnOverride is set when DATABASE_URL is provided, bypassing individual fields.
	dsnOverride string

	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// DSN returns the go-sql-driver/mysql connection string. The driver's
// FormatDSN handles special characters in passwords.
func (d DatabaseConfig) DSN() string {
	if d.dsnOverride != "" {
		return d.dsnOverride
	}
	cfg := mysql.NewConfig()
	cfg.User = d.User
	cfg.Passwd = d.Password
	cfg.Net = "tcp"
	cfg.Addr = ensurePort(d.Host, "3306")
	cfg.DBName = d.Name
	cfg.ParseTime = true
	return cfg.FormatDSN()
}

// ensurePort appends the default port if the host string doesn't include one.
func ensurePort(host, defaultPort string) string {
	_, _, err := net.SplitHostPort(host)
	if err != nil {
		return net.JoinHostPort(host, defaultPort)
	}
	return host
}

// RedisConfig holds Redis connection parameters.
type RedisConfig struct {
	// URL is the Redis connection URL (e.g., "redis://localhost:6379").
	URL string
}

// AuthConfig holds authentication settings.
type AuthConfig struct {
	// SecretKey encrypts stored SMTP credentials (AES-256-GCM, SHA-256 derived).
	SecretKey string

	// SessionTTL is how long sessions last before expiring.
	SessionTTL time.Duration
}

// SMTPConfig is the desired configuration of the default outgoing account,
// taken from the smtp_server, smtp_port, smtp_user and smtp_password keys.
type SMTPConfig struct {
	Server   string
	Port     int
	User     string
	Password string
}

// HasCredentials reports whether both user and password are present.
// Without them reconciliation is skipped.
func (s SMTPConfig) HasCredentials() bool {
	return s.User != "" && s.Password != ""
}

// AdminConfig holds the optional bootstrap Administrator credentials.
type AdminConfig struct {
	Email    string
	Password string
}

// defaults mirrors the table of keys this package understands. Every key is
// also readable from the environment under its upper-cased name.
var defaults = map[string]any{
	"env":                  "development",
	"port":                 8080,
	"base_url":             "http://localhost:8080",
	"log_level":            "debug",
	"migrations_path":      "db/migrations",
	"trusted_proxies":      "127.0.0.0/8,10.0.0.0/8,172.16.0.0/12,192.168.0.0/16,fd00::/8",
	"cors_origins":         "",
	"db_host":              "localhost:3306",
	"db_user":              "healthcore",
	"db_password":          "healthcore",
	"db_name":              "healthcore",
	"database_url":         "",
	"db_max_open_conns":    25,
	"db_max_idle_conns":    5,
	"db_conn_max_lifetime": 5 * time.Minute,
	"redis_url":            "redis://localhost:6379",
	"secret_key":           "",
	"session_ttl":          720 * time.Hour,
	"smtp_server":          "smtp.gmail.com",
	"smtp_port":            587,
	"smtp_user":            "",
	"smtp_password":        "",
	"admin_email":          "",
	"admin_password":       "",
}

// Load reads configuration from the environment and, when SITE_CONFIG
// points at a file, from that file. Returns an error if required values
// are missing in production.
func Load() (*Config, error) {
	v := viper.New()
	for key, val := range defaults {
		v.SetDefault(key, val)
	}
	v.AutomaticEnv()

	if path := v.GetString("site_config"); path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading site config %s: %w", path, err)
		}
		if unknown := unknownKeys(v.AllKeys()); len(unknown) > 0 {
			return nil, fmt.Errorf("site config %s: unknown keys %s", path, strings.Join(unknown, ", "))
		}
	}

	return fromViper(v)
}

func fromViper(v *viper.Viper) (*Config, error) {
	dsn, err := normalizeDSN(v.GetString("database_url"))
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		Env:            v.GetString("env"),
		Port:           v.GetInt("port"),
		BaseURL:        v.GetString("base_url"),
		LogLevel:       v.GetString("log_level"),
		MigrationsPath: v.GetString("migrations_path"),
		TrustedProxies: splitList(v.GetString("trusted_proxies")),
		CORSOrigins:    splitList(v.GetString("cors_origins")),

		Database: DatabaseConfig{
			Host:            v.GetString("db_host"),
			User:            v.GetString("db_user"),
			Password:        v.GetString("db_password"),
			Name:            v.GetString("db_name"),
			dsnOverride:     dsn,
			MaxOpenConns:    v.GetInt("db_max_open_conns"),
			MaxIdleConns:    v.GetInt("db_max_idle_conns"),
			ConnMaxLifetime: v.GetDuration("db_conn_max_lifetime"),
		},

		Redis: RedisConfig{
			URL: v.GetString("redis_url"),
		},

		Auth: AuthConfig{
			SecretKey:  v.GetString("secret_key"),
			SessionTTL: v.GetDuration("session_ttl"),
		},

		SMTP: SMTPConfig{
			Server:   v.GetString("smtp_server"),
			Port:     v.GetInt("smtp_port"),
			User:     strings.TrimSpace(v.GetString("smtp_user")),
			Password: v.GetString("smtp_password"),
		},

		Admin: AdminConfig{
			Email:    strings.TrimSpace(v.GetString("admin_email")),
			Password: v.GetString("admin_password"),
		},
	}

	if cfg.SMTP.Server == "" {
		cfg.SMTP.Server = "smtp.gmail.com"
	}
	if cfg.SMTP.Port <= 0 {
		cfg.SMTP.Port = 587
	}

	if cfg.IsProduction() {
		if cfg.Auth.SecretKey == "" {
			return nil, errors.New("SECRET_KEY is required in production")
		}
		if len(cfg.Auth.SecretKey) < 32 {
			return nil, errors.New("SECRET_KEY must be at least 32 characters in production")
		}
	}

	// Dev-only default secret so local dev works without .env.
	if cfg.Auth.SecretKey == "" {
		cfg.Auth.SecretKey = "dev-secret-key-do-not-use-in-production!!"
	}

	return cfg, nil
}

// unknownKeys lists keys that have no default, sorted. Every setting has
// a default, so anything else in the site config is a typo or a stale key.
func unknownKeys(keys []string) []string {
	unknown := lo.Filter(keys, func(k string, _ int) bool {
		_, ok := defaults[k]
		return !ok
	})
	slices.Sort(unknown)
	return unknown
}

// normalizeDSN validates a DATABASE_URL and forces parseTime so DATETIME
// columns scan into time.Time. An empty override stays empty.
func normalizeDSN(raw string) (string, error) {
	if raw == "" {
		return "", nil
	}
	mc, err := mysql.ParseDSN(raw)
	if err != nil {
		return "", fmt.Errorf("parsing DATABASE_URL: %w", err)
	}
	mc.ParseTime = true
	return mc.FormatDSN(), nil
}

// splitList parses a comma-separated setting, dropping blanks.
func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	env := strings.ToLower(c.Env)
	return env == "development" || env == "dev"
}

// IsProduction returns true for "production" and "prod" in any case.
func (c *Config) IsProduction() bool {
	env := strings.ToLower(c.Env)
	return env == "production" || env == "prod"
}
