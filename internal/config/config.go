// Package config provides application configuration loaded from environment
// variables with defaults and validation. It centralizes application settings
// such as server timeouts, logging, database paths, rate limiting,
// observability, and the automation loop policy.
package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"
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
	ServiceName string  // OTEL_SERVICE_NAME (e.g. "go-community-sim")
	SampleRatio float64 // OTEL_TRACES_SAMPLER_ARG in [0..1]
}

// AutomationConfig defines the bot activity loop policy.
type AutomationConfig struct {
	Interval     time.Duration // AUTOMATION_INTERVAL between activity cycles
	Autostart    bool          // AUTOMATION_AUTOSTART starts the loop at boot
	CycleTimeout time.Duration // CYCLE_TIMEOUT bounds one cycle's DB work

	DupThreshold   float64       // DUP_THRESHOLD similarity score treated as duplicate
	DupWindowPosts int           // DUP_WINDOW_POSTS recent posts scored against
	DupWindowAge   time.Duration // DUP_WINDOW_AGE max age of posts in the window

	SpamCap    int           // SPAM_CAP max actions per bot per SpamWindow
	SpamWindow time.Duration // SPAM_WINDOW trailing window for the cap
	Cooldown   time.Duration // BOT_COOLDOWN min gap between one bot's actions

	OpenQuestionLimit int           // OPEN_QUESTION_LIMIT offered to answerer bots per cycle
	EventBatch        int           // EVENT_BATCH interaction events drained per cycle
	DirectoryTTL      time.Duration // DIRECTORY_CACHE_TTL bot registry cache lifetime
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

	// Logging
	LogLevel    string // debug|info|warn|error|fatal|panic
	LogPretty   bool   // pretty console logs in dev
	APIBasePath string // base path for API routes

	// App
	DBPath string // SQLite path

	// Rate limiting
	RateRPS   float64 // tokens per second (>= 0)
	RateBurst int     // bucket size (>= 1)

	// Web protection
	CORS     CORSConfig
	Security SecurityConfig

	// Automation loop
	Automation AutomationConfig

	// Observability
	OTEL OTELConfig
}

// MustLoad loads the configuration and panics if validation fails.
func MustLoad() Config {
	cfg, err := Load()
	if err != nil {
		panic(err)
	}
	return cfg
}

// Load reads configuration from environment variables,
// applies defaults, normalizes values, and validates the result.
func Load() (Config, error) {
	cfg := Config{
		// Server
		Port:              getenv("PORT", "8080"),
		ReadTimeout:       getdur("READ_TIMEOUT", 15*time.Second),
		ReadHeaderTimeout: getdur("READ_HEADER_TIMEOUT", 10*time.Second),
		WriteTimeout:      getdur("WRITE_TIMEOUT", 20*time.Second),
		IdleTimeout:       getdur("IDLE_TIMEOUT", 60*time.Second),
		MaxHeaderBytes:    getint("MAX_HEADER_BYTES", 1<<20),
		GinMode:           strings.ToLower(getenv("GIN_MODE", "release")),

		// Logging
		LogLevel:    strings.ToLower(getenv("LOG_LEVEL", "info")),
		LogPretty:   getbool("LOG_PRETTY", false),
		APIBasePath: normalizeBasePath(getenv("API_BASE_PATH", "/api/v1")),

		// App
		DBPath: getenv("DB_PATH", "app.db"),

		// Rate limiting
		RateRPS:   getfloat("RATE_RPS", 5.0),
		RateBurst: getint("RATE_BURST", 10),

		// Web protection
		CORS: CORSConfig{
			AllowedOrigins: splitCSV(getenv("CORS_ALLOWED_ORIGINS", "")),
		},
		Security: SecurityConfig{
			EnableHSTS: getbool("ENABLE_HSTS", false),
			HSTSMaxAge: getdur("HSTS_MAX_AGE", 180*24*time.Hour),
		},

		// Automation loop
		Automation: AutomationConfig{
			Interval:     getdur("AUTOMATION_INTERVAL", 30*time.Minute),
			Autostart:    getbool("AUTOMATION_AUTOSTART", false),
			CycleTimeout: getdur("CYCLE_TIMEOUT", time.Minute),

			DupThreshold:   getfloat("DUP_THRESHOLD", 0.7),
			DupWindowPosts: getint("DUP_WINDOW_POSTS", 50),
			DupWindowAge:   getdur("DUP_WINDOW_AGE", 24*time.Hour),

			SpamCap:    getint("SPAM_CAP", 3),
			SpamWindow: getdur("SPAM_WINDOW", time.Hour),
			Cooldown:   getdur("BOT_COOLDOWN", 5*time.Minute),

			OpenQuestionLimit: getint("OPEN_QUESTION_LIMIT", 20),
			EventBatch:        getint("EVENT_BATCH", 50),
			DirectoryTTL:      getdur("DIRECTORY_CACHE_TTL", time.Minute),
		},

		// Observability (OpenTelemetry)
		OTEL: OTELConfig{
			Enabled:     getbool("OTEL_ENABLED", false),
			Endpoint:    getenv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
			Insecure:    getbool("OTEL_EXPORTER_OTLP_INSECURE", true),
			ServiceName: getenv("OTEL_SERVICE_NAME", "go-community-sim"),
			SampleRatio: getfloat("OTEL_TRACES_SAMPLER_ARG", 1.0),
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
	if strings.TrimSpace(cfg.DBPath) == "" {
		return cfg, errors.New("DB_PATH must not be empty")
	}
	if cfg.RateRPS < 0 {
		return cfg, errors.New("RATE_RPS must be >= 0")
	}
	if cfg.RateBurst < 1 {
		return cfg, errors.New("RATE_BURST must be >= 1")
	}
	if cfg.Security.HSTSMaxAge < 0 {
		return cfg, errors.New("HSTS_MAX_AGE must be >= 0")
	}
	if cfg.Automation.Interval <= 0 {
		return cfg, errors.New("AUTOMATION_INTERVAL must be > 0")
	}
	if cfg.Automation.CycleTimeout < 0 {
		return cfg, errors.New("CYCLE_TIMEOUT must be >= 0")
	}
	if cfg.Automation.DupThreshold < 0 || cfg.Automation.DupThreshold > 1 {
		return cfg, errors.New("DUP_THRESHOLD must be between 0 and 1")
	}
	if cfg.Automation.DupWindowPosts < 1 {
		return cfg, errors.New("DUP_WINDOW_POSTS must be >= 1")
	}
	if cfg.Automation.DupWindowAge <= 0 {
		return cfg, errors.New("DUP_WINDOW_AGE must be > 0")
	}
	if cfg.Automation.SpamCap < 1 {
		return cfg, errors.New("SPAM_CAP must be >= 1")
	}
	if cfg.Automation.SpamWindow <= 0 {
		return cfg, errors.New("SPAM_WINDOW must be > 0")
	}
	if cfg.Automation.Cooldown < 0 {
		return cfg, errors.New("BOT_COOLDOWN must be >= 0")
	}
	if cfg.Automation.OpenQuestionLimit < 1 {
		return cfg, errors.New("OPEN_QUESTION_LIMIT must be >= 1")
	}
	if cfg.Automation.EventBatch < 1 {
		return cfg, errors.New("EVENT_BATCH must be >= 1")
	}
	if cfg.OTEL.SampleRatio < 0 || cfg.OTEL.SampleRatio > 1 {
		return cfg, errors.New("OTEL_TRACES_SAMPLER_ARG must be in [0,1]")
	}

	return cfg, nil
}

// ---- helpers (no external deps) ----

func getenv(k, def string) string {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		return v
	}
	return def
}

func getfloat(k string, def float64) float64 {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func getint(k string, def int) int {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}

func getbool(k string, def bool) bool {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "1", "true", "yes", "y", "on":
			return true
		case "0", "false", "no", "n", "off":
			return false
		}
	}
	return def
}

func getdur(k string, def time.Duration) time.Duration {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		if d, err := time.ParseDuration(v); err == nil {
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
