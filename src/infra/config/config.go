// Package config handles application configuration via environment variables.
// It uses kelseyhightower/envconfig for parsing, with the prefix "SQLGATE".
// Example: SQLGATE_DATABASE_URL=postgres://..., SQLGATE_TX_ROLLBACK_MODE=true
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// ErrNoConnectionConfig is returned when neither a connection URL nor
// discrete host settings are present. This is a startup misconfiguration,
// surfaced at first use of the database handle and never retried.
var ErrNoConnectionConfig = errors.New(
	"no database configuration: set SQLGATE_DATABASE_URL or SQLGATE_DB_HOST")

// Config holds all application configuration.
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Runtime  RuntimeConfig
	Log      LogConfig
}

// ServerConfig holds HTTP settings for the demo service.
type ServerConfig struct {
	// Port is the HTTP server port (default: 8080)
	Port int `envconfig:"PORT" default:"8080"`

	// Host is the HTTP server host (default: 0.0.0.0)
	Host string `envconfig:"HOST" default:"0.0.0.0"`

	// ReadTimeout is the maximum duration for reading the entire request (default: 10s)
	ReadTimeout time.Duration `envconfig:"READ_TIMEOUT" default:"10s"`

	// WriteTimeout is the maximum duration before timing out writes of the response (default: 30s)
	WriteTimeout time.Duration `envconfig:"WRITE_TIMEOUT" default:"30s"`

	// ShutdownTimeout is the maximum duration to wait for active connections to finish (default: 30s)
	ShutdownTimeout time.Duration `envconfig:"SHUTDOWN_TIMEOUT" default:"30s"`
}

// DatabaseConfig holds connection settings. Either URL or the discrete
// Host/Port/User/Password/Name fields must be provided; URL wins when both
// are set.
type DatabaseConfig struct {
	// URL is a full connection URL; when set, the discrete fields are ignored.
	URL string `envconfig:"DATABASE_URL"`

	// Host is the database host. No default: its absence (together with an
	// empty URL) is a fatal configuration error.
	Host string `envconfig:"DB_HOST"`

	// Port is the database port; 0 selects the flavor default.
	Port int `envconfig:"DB_PORT"`

	// Flavor selects the database flavor: postgres or cockroachdb.
	Flavor string `envconfig:"DB_FLAVOR" default:"postgres"`

	// User is the database user (default: postgres)
	User string `envconfig:"DB_USER" default:"postgres"`

	// Password is the database password
	Password string `envconfig:"DB_PASSWORD"`

	// Name is the database name (default: sqlgate)
	Name string `envconfig:"DB_NAME" default:"sqlgate"`

	// SSLMode is the SSL mode for the connection (default: disable)
	SSLMode string `envconfig:"DB_SSLMODE" default:"disable"`

	// MaxConns is the maximum pool size (default: 25)
	MaxConns int `envconfig:"DB_MAX_CONNS" default:"25"`

	// MinConns is the minimum pool size (default: 5)
	MinConns int `envconfig:"DB_MIN_CONNS" default:"5"`

	// ConnMaxLifetime is the maximum lifetime of a connection (default: 5m)
	ConnMaxLifetime time.Duration `envconfig:"DB_CONN_MAX_LIFETIME" default:"5m"`
}

// RuntimeConfig holds process-wide behavior flags.
type RuntimeConfig struct {
	// Environment is one of production, development, test (default: development).
	// Outside production, query logs carry the dispatch call site.
	Environment string `envconfig:"ENV" default:"development"`

	// ForcedRollback makes every transaction scope roll back while still
	// returning its result, keeping test runs non-persistent.
	ForcedRollback bool `envconfig:"TX_ROLLBACK_MODE" default:"false"`

	// LoggingEnabled is the global toggle for default-mode query logging.
	LoggingEnabled bool `envconfig:"SQL_LOGGING" default:"true"`

	// DateStringsEnabled presents timestamp row values as RFC 3339 strings.
	DateStringsEnabled bool `envconfig:"DATE_STRINGS" default:"false"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	// Level is the log level: debug, info, warn, error (default: info)
	Level string `envconfig:"LOG_LEVEL" default:"info"`

	// Format is the log format: json, text, plain (default: json)
	Format string `envconfig:"LOG_FORMAT" default:"json"`
}

// DefaultPort returns the conventional port for the configured flavor.
func (c *DatabaseConfig) DefaultPort() int {
	if strings.EqualFold(c.Flavor, "cockroachdb") {
		return 26257
	}
	return 5432
}

// DSN resolves the connection string: the URL as-is when present, otherwise a
// URL built from the discrete fields with the flavor default port. Returns
// ErrNoConnectionConfig when neither form is usable.
func (c *DatabaseConfig) DSN() (string, error) {
	if c.URL != "" {
		return c.URL, nil
	}
	if c.Host == "" {
		return "", ErrNoConnectionConfig
	}
	port := c.Port
	if port == 0 {
		port = c.DefaultPort()
	}
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.User, c.Password, c.Host, port, c.Name, c.SSLMode,
	), nil
}

// IsProduction reports whether the process runs in production mode.
func (c *RuntimeConfig) IsProduction() bool {
	return strings.EqualFold(c.Environment, "production")
}

// Addr returns the server address in host:port format.
func (c *ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// Load reads configuration from environment variables.
// Sections are loaded separately to flatten env var names
// (SQLGATE_PORT instead of SQLGATE_SERVER_PORT).
func Load() (*Config, error) {
	var cfg Config

	if err := envconfig.Process("SQLGATE", &cfg.Server); err != nil {
		return nil, fmt.Errorf("failed to load server config: %w", err)
	}
	if err := envconfig.Process("SQLGATE", &cfg.Database); err != nil {
		return nil, fmt.Errorf("failed to load database config: %w", err)
	}
	if err := envconfig.Process("SQLGATE", &cfg.Runtime); err != nil {
		return nil, fmt.Errorf("failed to load runtime config: %w", err)
	}
	if err := envconfig.Process("SQLGATE", &cfg.Log); err != nil {
		return nil, fmt.Errorf("failed to load log config: %w", err)
	}

	return &cfg, nil
}

// MustLoad loads configuration and panics on error.
// Use this only in main.go during startup.
func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		panic(err)
	}
	return cfg
}
