// Package config loads the comments backend settings from environment
// variables. Every key has a default; unparsable values fall back to it, and
// the assembled Config is validated before use so that a bad deployment fails
// at startup rather than on the first request.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// CORSConfig defines Cross-Origin Resource Sharing settings.
type CORSConfig struct {
	AllowedOrigins []string // CORS_ALLOWED_ORIGINS, comma separated; empty allows all
}

// SecurityConfig defines security-related settings such as HSTS.
type SecurityConfig struct {
	EnableHSTS bool
	HSTSMaxAge time.Duration
}

// DBConfig selects and tunes the relational store.
type DBConfig struct {
	Driver       string // DB_DRIVER: sqlite|postgres|mysql
	DSN          string // DB_DSN, required for postgres and mysql
	Path         string // DB_PATH, SQLite file used when DB_DSN is empty
	MaxOpenConns int    // DB_MAX_OPEN_CONNS
	Debug        bool   // DB_DEBUG logs every SQL statement
}

// CacheConfig configures the service token cache.
type CacheConfig struct {
	RedisURL string        // REDIS_URL; empty disables the cache
	TokenTTL time.Duration // TOKEN_CACHE_TTL; 0 keeps tokens until evicted
}

// CommentsConfig holds comment presentation and validation settings.
type CommentsConfig struct {
	DeletedPlaceholder string // DELETED_PLACEHOLDER replaces the text of deleted comments
	MaxRunes           int    // MAX_COMMENT_RUNES in [1, 3000]
}

// OTELConfig defines OpenTelemetry observability settings.
type OTELConfig struct {
	Enabled     bool    // OTEL_ENABLED
	Endpoint    string  // OTEL_EXPORTER_OTLP_ENDPOINT (e.g. "otel:4317")
	Insecure    bool    // OTEL_EXPORTER_OTLP_INSECURE (true if no TLS)
	ServiceName string  // OTEL_SERVICE_NAME (e.g. "go-comments-backend")
	SampleRatio float64 // OTEL_TRACES_SAMPLER_ARG in [0..1]
}

// Config holds all configuration values for the application.
type Config struct {
	// Server
	Port              string
	ReadTimeout       time.Duration
	ReadHeaderTimeout time.Duration
	WriteTimeout      time.Duration
	IdleTimeout       time.Duration
	MaxHeaderBytes    int
	GinMode           string // debug|release|test

	// Logging / Docs
	LogLevel       string // trace|debug|info|warn|error|fatal|panic
	LogPretty      bool   // pretty console logs in dev
	LogRedact      bool   // scrub signatures/PII from access logs
	SwaggerEnabled bool
	APIBasePath    string

	// Storage
	DB    DBConfig
	Cache CacheConfig

	Comments CommentsConfig

	// Rate limiting
	RateRPS   float64 // tokens per second
	RateBurst int

	CORS     CORSConfig
	Security SecurityConfig

	// How long an Idempotency-Key replays the comment it created
	IdempotencyTTL time.Duration

	OTEL OTELConfig
}

// maxCommentRunes mirrors the width of the comment_text column.
const maxCommentRunes = 3000

// MustLoad loads the configuration and panics if validation fails.
func MustLoad() Config {
	cfg, err := Load()
	if err != nil {
		panic(err)
	}
	return cfg
}

// Load reads the process environment, applies defaults and validates.
func Load() (Config, error) {
	return loadFrom(os.LookupEnv)
}

func loadFrom(lookup func(string) (string, bool)) (Config, error) {
	e := env(lookup)
	cfg := Config{
		Port:              e.str("PORT", "8080"),
		ReadTimeout:       e.duration("READ_TIMEOUT", 15*time.Second),
		ReadHeaderTimeout: e.duration("READ_HEADER_TIMEOUT", 10*time.Second),
		WriteTimeout:      e.duration("WRITE_TIMEOUT", 20*time.Second),
		IdleTimeout:       e.duration("IDLE_TIMEOUT", 60*time.Second),
		MaxHeaderBytes:    e.integer("MAX_HEADER_BYTES", 1<<20),
		GinMode:           ginMode(e.str("GIN_MODE", "release")),

		LogLevel:       logLevel(e.str("LOG_LEVEL", "info")),
		LogPretty:      e.flag("LOG_PRETTY", false),
		LogRedact:      e.flag("LOG_REDACT", true),
		SwaggerEnabled: e.flag("SWAGGER_ENABLED", false),
		APIBasePath:    normalizeBasePath(e.str("API_BASE_PATH", "/")),

		DB:       loadDB(e),
		Cache:    CacheConfig{RedisURL: strings.TrimSpace(e.str("REDIS_URL", "")), TokenTTL: e.duration("TOKEN_CACHE_TTL", time.Hour)},
		Comments: CommentsConfig{DeletedPlaceholder: e.str("DELETED_PLACEHOLDER", "Comment deleted"), MaxRunes: e.integer("MAX_COMMENT_RUNES", maxCommentRunes)},

		RateRPS:   e.float("RATE_RPS", 5),
		RateBurst: e.integer("RATE_BURST", 10),

		CORS: CORSConfig{AllowedOrigins: splitCSV(e.str("CORS_ALLOWED_ORIGINS", ""))},
		Security: SecurityConfig{
			EnableHSTS: e.flag("ENABLE_HSTS", false),
			HSTSMaxAge: e.duration("HSTS_MAX_AGE", 180*24*time.Hour),
		},

		IdempotencyTTL: e.duration("IDEMPOTENCY_TTL", 24*time.Hour),

		OTEL: OTELConfig{
			Enabled:     e.flag("OTEL_ENABLED", false),
			Endpoint:    e.str("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
			Insecure:    e.flag("OTEL_EXPORTER_OTLP_INSECURE", true),
			ServiceName: e.str("OTEL_SERVICE_NAME", "go-comments-backend"),
			SampleRatio: e.float("OTEL_TRACES_SAMPLER_ARG", 1),
		},
	}
	return cfg, cfg.Validate()
}

func loadDB(e env) DBConfig {
	return DBConfig{
		Driver:       strings.ToLower(strings.TrimSpace(e.str("DB_DRIVER", "sqlite"))),
		DSN:          strings.TrimSpace(e.str("DB_DSN", "")),
		Path:         e.str("DB_PATH", "comments.db"),
		MaxOpenConns: e.integer("DB_MAX_OPEN_CONNS", 10),
		Debug:        e.flag("DB_DEBUG", false),
	}
}

// Validate reports every invalid setting at once, keyed by env var name.
func (c Config) Validate() error {
	positive := []validation.Rule{validation.Required, validation.Min(time.Duration(1))}
	sqlite := c.DB.Driver == "sqlite"

	return validation.Errors{
		"PORT":                validation.Validate(strings.TrimSpace(c.Port), validation.Required),
		"READ_TIMEOUT":        validation.Validate(c.ReadTimeout, positive...),
		"READ_HEADER_TIMEOUT": validation.Validate(c.ReadHeaderTimeout, positive...),
		"WRITE_TIMEOUT":       validation.Validate(c.WriteTimeout, positive...),
		"IDLE_TIMEOUT":        validation.Validate(c.IdleTimeout, positive...),
		"MAX_HEADER_BYTES":    validation.Validate(c.MaxHeaderBytes, validation.Required, validation.Min(1)),
		"LOG_LEVEL": validation.Validate(c.LogLevel,
			validation.In("trace", "debug", "info", "warn", "error", "fatal", "panic").
				Error("must be one of trace, debug, info, warn, error, fatal, panic")),

		"DB_DRIVER": validation.Validate(c.DB.Driver,
			validation.Required,
			validation.In("sqlite", "postgres", "mysql").Error("must be one of sqlite, postgres, mysql")),
		"DB_DSN": validation.Validate(c.DB.DSN,
			validation.When(!sqlite, validation.Required.Error("is required for DB_DRIVER="+c.DB.Driver))),
		"DB_PATH": validation.Validate(strings.TrimSpace(c.DB.Path),
			validation.When(sqlite && c.DB.DSN == "", validation.Required)),
		"DB_MAX_OPEN_CONNS": validation.Validate(c.DB.MaxOpenConns, validation.Required, validation.Min(1)),
		"TOKEN_CACHE_TTL":   validation.Validate(c.Cache.TokenTTL, validation.Min(time.Duration(0))),
		"MAX_COMMENT_RUNES": validation.Validate(c.Comments.MaxRunes,
			validation.Required, validation.Min(1), validation.Max(maxCommentRunes)),

		"RATE_RPS":        validation.Validate(c.RateRPS, validation.Min(0.0)),
		"RATE_BURST":      validation.Validate(c.RateBurst, validation.Required, validation.Min(1)),
		"HSTS_MAX_AGE":    validation.Validate(c.Security.HSTSMaxAge, validation.Min(time.Duration(0))),
		"IDEMPOTENCY_TTL": validation.Validate(c.IdempotencyTTL, positive...),
		"OTEL_TRACES_SAMPLER_ARG": validation.Validate(c.OTEL.SampleRatio,
			validation.Min(0.0), validation.Max(1.0)),
	}.Filter()
}

func ginMode(m string) string {
	switch m = strings.ToLower(strings.TrimSpace(m)); m {
	case "debug", "release", "test":
		return m
	}
	return "release"
}

func logLevel(l string) string {
	l = strings.ToLower(strings.TrimSpace(l))
	if l == "warning" {
		return "warn"
	}
	return l
}

// env reads typed values; unset, empty or unparsable keys yield the default.
type env func(string) (string, bool)

func (e env) str(k, def string) string {
	if v, ok := e(k); ok && v != "" {
		return v
	}
	return def
}

func (e env) integer(k string, def int) int {
	if i, err := strconv.Atoi(strings.TrimSpace(e.str(k, ""))); err == nil {
		return i
	}
	return def
}

func (e env) float(k string, def float64) float64 {
	if f, err := strconv.ParseFloat(strings.TrimSpace(e.str(k, "")), 64); err == nil {
		return f
	}
	return def
}

func (e env) duration(k string, def time.Duration) time.Duration {
	if d, err := time.ParseDuration(strings.TrimSpace(e.str(k, ""))); err == nil {
		return d
	}
	return def
}

func (e env) flag(k string, def bool) bool {
	switch strings.ToLower(strings.TrimSpace(e.str(k, ""))) {
	case "1", "true", "yes", "y", "on":
		return true
	case "0", "false", "no", "n", "off":
		return false
	}
	return def
}

func splitCSV(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// normalizeBasePath ensures a leading '/' and no trailing '/', except for root.
func normalizeBasePath(p string) string {
	p = strings.Trim(strings.TrimSpace(p), "/")
	return "/" + p
}
