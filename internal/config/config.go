// Package config provides centralized configuration management for csvtable.
// It loads configuration from environment variables with sensible defaults and
// validates all settings on startup to fail fast on misconfiguration.
package config

import (
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration.
// All settings can be configured via environment variables.
type Config struct {
	Server   ServerConfig
	CSV      CSVConfig
	Store    StoreConfig
	Database DatabaseConfig
	Rate     RateLimitConfig
	Security SecurityConfig
	Logging  LoggingConfig
	Profiles ProfilesConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	// Host is the interface to bind to (default: 0.0.0.0)
	Host string `env:"SERVER_HOST" default:"0.0.0.0"`

	// Port is the port to listen on (default: 8080)
	Port int `env:"SERVER_PORT" default:"8080"`

	ReadTimeout  time.Duration `env:"SERVER_READ_TIMEOUT" default:"15s"`
	WriteTimeout time.Duration `env:"SERVER_WRITE_TIMEOUT" default:"60s"`
	IdleTimeout  time.Duration `env:"SERVER_IDLE_TIMEOUT" default:"60s"`

	// ShutdownTimeout is the maximum duration to wait for graceful shutdown (default: 30s)
	ShutdownTimeout time.Duration `env:"SERVER_SHUTDOWN_TIMEOUT" default:"30s"`

	// RequestTimeout is the middleware timeout for requests (default: 60s)
	RequestTimeout time.Duration `env:"SERVER_REQUEST_TIMEOUT" default:"60s"`

	// TrustedProxies lists CIDRs whose X-Real-IP and X-Forwarded-For
	// headers are honoured
	TrustedProxies []string `env:"TRUSTED_PROXIES"`
}

// CSVConfig holds the defaults applied to every load and save.
type CSVConfig struct {
	// Delimiter separates fields. "\t" is accepted for tab (default: ;)
	Delimiter string `env:"CSV_DELIMITER" default:";"`

	// Encoding names the text encoding of files (default: default, UTF-8 without BOM)
	Encoding string `env:"CSV_ENCODING" default:"default"`

	HasColumns      bool `env:"CSV_HAS_COLUMNS" default:"true"`
	CountBlankLines bool `env:"CSV_COUNT_BLANK_LINES" default:"true"`
	InferTypes      bool `env:"CSV_INFER_TYPES" default:"false"`

	// Workers > 1 enables concurrent row processing (default: 1)
	Workers int `env:"CSV_WORKERS" default:"1"`

	// MaxFileSize is the maximum accepted upload size in bytes (default: 100MB)
	MaxFileSize int64 `env:"CSV_MAX_FILE_SIZE" envAlt:"UPLOAD_MAX_FILE_SIZE" default:"104857600"`

	// MaxConcurrent is the maximum number of parallel loads (default: 5)
	MaxConcurrent int `env:"CSV_MAX_CONCURRENT" envAlt:"UPLOAD_MAX_CONCURRENT" default:"5"`

	// MaxWaitTime is how long to wait for a load slot (default: 30s)
	MaxWaitTime time.Duration `env:"CSV_MAX_WAIT_TIME" default:"30s"`

	// Timeout bounds a single load, merge or export (default: 10m)
	Timeout time.Duration `env:"CSV_TIMEOUT" default:"10m"`
}

// StoreConfig bounds the in-memory table store.
type StoreConfig struct {
	// MaxTables is the maximum number of tables held at once (default: 100)
	MaxTables int `env:"STORE_MAX_TABLES" default:"100"`

	// TTL is how long an unused table is kept (default: 1h)
	TTL time.Duration `env:"STORE_TTL" default:"1h"`

	// JanitorInterval is how often expired tables are evicted (default: 1m)
	JanitorInterval time.Duration `env:"STORE_JANITOR_INTERVAL" default:"1m"`
}

// DatabaseConfig holds settings for the optional Postgres export target.
type DatabaseConfig struct {
	// URL is the PostgreSQL connection string. Postgres export is disabled
	// when empty. Supports both DATABASE_URL and DB_URL.
	URL string `env:"DATABASE_URL" envAlt:"DB_URL"`

	MaxConns        int32         `env:"DB_MAX_CONNS" default:"10"`
	MinConns        int32         `env:"DB_MIN_CONNS" default:"0"`
	MaxConnLifetime time.Duration `env:"DB_MAX_CONN_LIFETIME" default:"1h"`
	MaxConnIdleTime time.Duration `env:"DB_MAX_CONN_IDLE_TIME" default:"30m"`
}

// RateLimitConfig holds rate limiting settings per time window.
type RateLimitConfig struct {
	// Enabled controls whether rate limiting is active (default: true)
	Enabled bool `env:"RATE_LIMIT_ENABLED" default:"true"`

	// RequestsPerMinute is the default rate limit per IP (default: 100)
	RequestsPerMinute int `env:"RATE_LIMIT_REQUESTS_PER_MINUTE" default:"100"`

	// UploadLimit is requests per minute for upload and merge endpoints (default: 10)
	UploadLimit int `env:"RATE_LIMIT_UPLOAD" default:"10"`
}

// SecurityConfig holds security-related settings.
type SecurityConfig struct {
	// RequireAPIKey enables X-API-Key authentication on /api routes
	RequireAPIKey bool `env:"REQUIRE_API_KEY" default:"false"`

	// APIKeys is a comma-separated list of accepted keys
	APIKeys []string `env:"API_KEYS"`

	// EnableCSP enables Content-Security-Policy headers (default: true)
	EnableCSP bool `env:"SECURITY_ENABLE_CSP" default:"true"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	// Level is the minimum log level: debug, info, warn, error (default: info)
	Level string `env:"LOG_LEVEL" default:"info"`

	// Format is the log format: text or json (default: text)
	Format string `env:"LOG_FORMAT" default:"text"`
}

// ProfilesConfig locates named load/save profiles.
type ProfilesConfig struct {
	// Path is a YAML profiles file. No profiles are available when empty.
	Path string `env:"CSV_PROFILES"`

	// Default is the profile applied when a request names none.
	Default string `env:"CSV_PROFILE"`
}

// Addr returns the server listen address in host:port format.
func (c *ServerConfig) Addr() string {
	return c.Host + ":" + strconv.Itoa(c.Port)
}

// DelimiterValue returns the delimiter with "\t" expanded to a tab.
func (c *CSVConfig) DelimiterValue() string {
	return ExpandDelimiter(c.Delimiter)
}

// ExpandDelimiter turns the escape sequences accepted in configuration
// ("\t", "tab") into the literal delimiter.
func ExpandDelimiter(s string) string {
	switch strings.ToLower(s) {
	case `\t`, "tab":
		return "\t"
	}
	return s
}
