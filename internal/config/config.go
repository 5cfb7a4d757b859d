// Package config provides application configuration loaded from environment
// variables (and an optional config file) with defaults and validation. It
// centralizes settings for the HTTP server, logging, the application store,
// the status lookup sources, the captcha, rate limiting and observability.
package config

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// CORSConfig defines Cross-Origin Resource Sharing settings.
type CORSConfig struct {
	AllowedOrigins []string
}

// SecurityConfig defines security-related settings such as HSTS.
type SecurityConfig struct {
	EnableHSTS bool
	HSTSMaxAge time.Duration
}

// OTELConfig defines OpenTelemetry observability settings.
type OTELConfig struct {
	Enabled     bool    // OTEL_ENABLED
	Endpoint    string  // OTEL_EXPORTER_OTLP_ENDPOINT (e.g. "otel:4317")
	Insecure    bool    // OTEL_EXPORTER_OTLP_INSECURE (true if no TLS)
	ServiceName string  // OTEL_SERVICE_NAME (e.g. "visa-track-backend")
	SampleRatio float64 // OTEL_TRACES_SAMPLER_ARG in [0..1]
}

// DBConfig selects the relational store holding application records.
type DBConfig struct {
	Driver string // sqlite|postgres
	Path   string // SQLite file path
	DSN    string // Postgres DSN
}

// RedisConfig points at the Redis instance used by the local store and the
// captcha store.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// LookupConfig controls status resolution.
type LookupConfig struct {
	Sources       []string      // ordered adapter names: remote, document, local
	RemoteURL     string        // remote status endpoint
	RemoteTimeout time.Duration // per-request timeout for the remote adapter
	LocalStoreKey string        // Redis key holding the local application table
	OfficeName    string        // office named in status messages
	RecordTTL     time.Duration // lifetime of admin-created records
	AutoFormatID  bool          // reshape tracking IDs before lookup
	TouchTimeout  time.Duration // bound on best-effort access tracking
}

// CaptchaConfig controls challenge persistence.
type CaptchaConfig struct {
	Store string        // memory|redis
	TTL   time.Duration // how long a challenge stays answerable
}

// NATSConfig controls application event publishing. Empty URL disables it.
type NATSConfig struct {
	URL           string
	SubjectPrefix string
}

// Config holds all configuration values for the application.
type Config struct {
	// Server
	Port              string        // just the number
	ReadTimeout       time.Duration // e.g. 15s
	ReadHeaderTimeout time.Duration // e.g. 10s
	WriteTimeout      time.Duration // e.g. 20s
	IdleTimeout       time.Duration // e.g. 60s
	MaxHeaderBytes    int           // bytes
	GinMode           string        // debug|release|test

	// Logging / Docs
	LogLevel       string // debug|info|warn|error|fatal|panic
	LogPretty      bool   // pretty console logs in dev
	SwaggerEnabled bool   // enable Swagger UI route
	APIBasePath    string // base path for API routes

	// Stores
	DB    DBConfig
	Redis RedisConfig

	// Domain
	Lookup   LookupConfig
	Captcha  CaptchaConfig
	AdminPIN string
	NATS     NATSConfig

	// Rate limiting
	RateRPS   float64 // tokens per second (>= 0)
	RateBurst int     // bucket size (>= 1)

	// Status form budget per client, on top of the global limiter
	TrackRateRPS   float64
	TrackRateBurst int

	// Web protection
	CORS     CORSConfig
	Security SecurityConfig

	// Idempotency
	IdempotencyTTL time.Duration // how long a given Idempotency-Key is valid

	// Observability
	OTEL OTELConfig
}

// Load reads configuration from the environment (and CONFIG_FILE when set),
// applies defaults, normalizes values, and validates the result.
func Load() (Config, error) {
	v := viper.New()
	v.AutomaticEnv()
	if path := strings.TrimSpace(v.GetString("CONFIG_FILE")); path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config file %q: %w", path, err)
		}
	}
	return load(source{v})
}

func load(s source) (Config, error) {
	cfg := Config{
		// Server
		Port:              s.getenv("PORT", "8080"),
		ReadTimeout:       s.getdur("READ_TIMEOUT", 15*time.Second),
		ReadHeaderTimeout: s.getdur("READ_HEADER_TIMEOUT", 10*time.Second),
		WriteTimeout:      s.getdur("WRITE_TIMEOUT", 20*time.Second),
		IdleTimeout:       s.getdur("IDLE_TIMEOUT", 60*time.Second),
		MaxHeaderBytes:    s.getint("MAX_HEADER_BYTES", 1<<20),
		GinMode:           strings.ToLower(s.getenv("GIN_MODE", "release")),

		// Logging / Docs
		LogLevel:       strings.ToLower(s.getenv("LOG_LEVEL", "info")),
		LogPretty:      s.getbool("LOG_PRETTY", false),
		SwaggerEnabled: s.getbool("SWAGGER_ENABLED", false),
		APIBasePath:    normalizeBasePath(s.getenv("API_BASE_PATH", "/api/v1")),

		// Stores
		DB: DBConfig{
			Driver: strings.ToLower(s.getenv("DB_DRIVER", "sqlite")),
			Path:   s.getenv("DB_PATH", "app.db"),
			DSN:    s.getenv("DB_DSN", ""),
		},
		Redis: RedisConfig{
			Addr:     s.getenv("REDIS_ADDR", ""),
			Password: s.getenv("REDIS_PASSWORD", ""),
			DB:       s.getint("REDIS_DB", 0),
		},

		// Domain
		Lookup: LookupConfig{
			Sources:       splitCSV(strings.ToLower(s.getenv("SOURCE_ORDER", "document"))),
			RemoteURL:     s.getenv("REMOTE_STATUS_URL", ""),
			RemoteTimeout: s.getdur("REMOTE_TIMEOUT", 5*time.Second),
			LocalStoreKey: s.getenv("LOCAL_STORE_KEY", "vfs_applications"),
			OfficeName:    s.getenv("OFFICE_NAME", "IRCC Office"),
			RecordTTL:     s.getdur("RECORD_TTL", 365*24*time.Hour),
			AutoFormatID:  s.getbool("TRACKING_ID_AUTOFORMAT", false),
			TouchTimeout:  s.getdur("TOUCH_TIMEOUT", 2*time.Second),
		},
		Captcha: CaptchaConfig{
			Store: strings.ToLower(s.getenv("CAPTCHA_STORE", "memory")),
			TTL:   s.getdur("CAPTCHA_TTL", 5*time.Minute),
		},
		AdminPIN: s.getenv("ADMIN_PIN", "7788"),
		NATS: NATSConfig{
			URL:           s.getenv("NATS_URL", ""),
			SubjectPrefix: s.getenv("NATS_SUBJECT_PREFIX", "visa"),
		},

		// Rate limiting
		RateRPS:   s.getfloat("RATE_RPS", 5.0),
		RateBurst: s.getint("RATE_BURST", 10),

		TrackRateRPS:   s.getfloat("TRACK_RATE_RPS", 0.5),
		TrackRateBurst: s.getint("TRACK_RATE_BURST", 5),

		// Web protection
		CORS: CORSConfig{
			AllowedOrigins: splitCSV(s.getenv("CORS_ALLOWED_ORIGINS", "")),
		},
		Security: SecurityConfig{
			EnableHSTS: s.getbool("ENABLE_HSTS", false),
			HSTSMaxAge: s.getdur("HSTS_MAX_AGE", 180*24*time.Hour),
		},

		// Idempotency
		IdempotencyTTL: s.getdur("IDEMPOTENCY_TTL", 24*time.Hour),

		// Observability (OpenTelemetry)
		OTEL: OTELConfig{
			Enabled:     s.getbool("OTEL_ENABLED", false),
			Endpoint:    s.getenv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
			Insecure:    s.getbool("OTEL_EXPORTER_OTLP_INSECURE", true),
			ServiceName: s.getenv("OTEL_SERVICE_NAME", "visa-track-backend"),
			SampleRatio: s.getfloat("OTEL_TRACES_SAMPLER_ARG", 1.0),
		},
	}

	// --- normalization ---
	if cfg.LogLevel == "warning" {
		cfg.LogLevel = "warn"
	}
	switch cfg.GinMode {
	case "debug", "release", "test":
	default:
		cfg.GinMode = "release"
	}
	if cfg.DB.Driver == "postgresql" {
		cfg.DB.Driver = "postgres"
	}

	// --- validation ---
	switch cfg.LogLevel {
	case "debug", "info", "warn", "error", "fatal", "panic":
	default:
		return cfg, errors.New("LOG_LEVEL must be one of: debug, info, warn, error, fatal, panic")
	}
	if strings.TrimSpace(cfg.Port) == "" {
		return cfg, errors.New("PORT must not be empty")
	}
	if cfg.ReadTimeout <= 0 || cfg.ReadHeaderTimeout <= 0 || cfg.WriteTimeout <= 0 || cfg.IdleTimeout <= 0 {
		return cfg, errors.New("timeouts must be positive durations")
	}
	if cfg.MaxHeaderBytes <= 0 {
		return cfg, errors.New("MAX_HEADER_BYTES must be > 0")
	}
	switch cfg.DB.Driver {
	case "sqlite":
		if strings.TrimSpace(cfg.DB.Path) == "" {
			return cfg, errors.New("DB_PATH must not be empty")
		}
	case "postgres":
		if strings.TrimSpace(cfg.DB.DSN) == "" {
			return cfg, errors.New("DB_DSN must be set when DB_DRIVER=postgres")
		}
	default:
		return cfg, errors.New("DB_DRIVER must be one of: sqlite, postgres")
	}
	if len(cfg.Lookup.Sources) == 0 {
		return cfg, errors.New("SOURCE_ORDER must name at least one source")
	}
	for _, name := range cfg.Lookup.Sources {
		switch name {
		case "document":
		case "remote":
			if strings.TrimSpace(cfg.Lookup.RemoteURL) == "" {
				return cfg, errors.New("REMOTE_STATUS_URL must be set when SOURCE_ORDER includes remote")
			}
		case "local":
			if strings.TrimSpace(cfg.Redis.Addr) == "" {
				return cfg, errors.New("REDIS_ADDR must be set when SOURCE_ORDER includes local")
			}
		default:
			return cfg, fmt.Errorf("SOURCE_ORDER contains unknown source %q", name)
		}
	}
	if cfg.Lookup.RemoteTimeout <= 0 || cfg.Lookup.TouchTimeout <= 0 {
		return cfg, errors.New("REMOTE_TIMEOUT and TOUCH_TIMEOUT must be > 0")
	}
	if cfg.Lookup.RecordTTL <= 0 {
		return cfg, errors.New("RECORD_TTL must be > 0")
	}
	switch cfg.Captcha.Store {
	case "memory":
	case "redis":
		if strings.TrimSpace(cfg.Redis.Addr) == "" {
			return cfg, errors.New("REDIS_ADDR must be set when CAPTCHA_STORE=redis")
		}
	default:
		return cfg, errors.New("CAPTCHA_STORE must be one of: memory, redis")
	}
	if cfg.Captcha.TTL <= 0 {
		return cfg, errors.New("CAPTCHA_TTL must be > 0")
	}
	if strings.TrimSpace(cfg.AdminPIN) == "" {
		return cfg, errors.New("ADMIN_PIN must not be empty")
	}
	if cfg.RateRPS < 0 {
		return cfg, errors.New("RATE_RPS must be >= 0")
	}
	if cfg.RateBurst < 1 {
		return cfg, errors.New("RATE_BURST must be >= 1")
	}
	if cfg.TrackRateRPS < 0 {
		return cfg, errors.New("TRACK_RATE_RPS must be >= 0")
	}
	if cfg.TrackRateBurst < 1 {
		return cfg, errors.New("TRACK_RATE_BURST must be >= 1")
	}
	if cfg.Security.HSTSMaxAge < 0 {
		return cfg, errors.New("HSTS_MAX_AGE must be >= 0")
	}
	if cfg.IdempotencyTTL <= 0 {
		return cfg, errors.New("IDEMPOTENCY_TTL must be > 0")
	}
	if cfg.OTEL.SampleRatio < 0 || cfg.OTEL.SampleRatio > 1 {
		return cfg, errors.New("OTEL_TRACES_SAMPLER_ARG must be in [0,1]")
	}

	return cfg, nil
}

// ---- helpers ----

// source wraps viper with the lenient parsing rules used across the service:
// unparsable values fall back to the default instead of failing the load.
type source struct{ v *viper.Viper }

func (s source) raw(k string) (string, bool) {
	if !s.v.IsSet(k) {
		return "", false
	}
	val := s.v.GetString(k)
	return val, val != ""
}

func (s source) getenv(k, def string) string {
	if v, ok := s.raw(k); ok {
		return v
	}
	return def
}

func (s source) getfloat(k string, def float64) float64 {
	if v, ok := s.raw(k); ok {
		if f, err := strconv.ParseFloat(strings.TrimSpace(v), 64); err == nil {
			return f
		}
	}
	return def
}

func (s source) getint(k string, def int) int {
	if v, ok := s.raw(k); ok {
		if i, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
			return i
		}
	}
	return def
}

func (s source) getbool(k string, def bool) bool {
	if v, ok := s.raw(k); ok {
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "1", "true", "yes", "y", "on":
			return true
		case "0", "false", "no", "n", "off":
			return false
		}
	}
	return def
}

func (s source) getdur(k string, def time.Duration) time.Duration {
	if v, ok := s.raw(k); ok {
		if d, err := time.ParseDuration(strings.TrimSpace(v)); err == nil {
			return d
		}
	}
	return def
}

func splitCSV(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		t := strings.TrimSpace(p)
		if t != "" {
			out = append(out, t)
		}
	}
	return out
}

// normalizeBasePath ensures leading '/' and strips trailing '/' (except root).
func normalizeBasePath(p string) string {
	p = strings.TrimSpace(p)
	if p == "" {
		return "/"
	}
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	if len(p) > 1 && strings.HasSuffix(p, "/") {
		p = strings.TrimRight(p, "/")
	}
	return p
}
