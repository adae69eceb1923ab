// Package config loads quiz-funnel configuration from a YAML file with .env
// and environment variable overrides.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Default configuration values.
const (
	defaultServiceName  = "quiz-funnel"
	defaultServicePort  = 8094
	defaultVersion      = "0.1.0"
	defaultLoggingLevel = "info"
	defaultDBHost       = "localhost"
	defaultDBPort       = 5432
	defaultDBName       = "quiz_funnel"
	defaultDBUser       = "postgres"
	defaultDBSSLMode    = "disable"

	defaultWebhookURL     = "https://webhooks.automatiklabs.com/webhook/cap-trial"
	defaultWebhookTimeout = 10 * time.Second

	defaultGuardWindow   = 7 * 24 * time.Hour
	defaultGuardCooldown = 2 * time.Second

	defaultDetectTimeout  = 8 * time.Second
	defaultDetectDebounce = time.Second
	defaultDetectCacheTTL = 15 * time.Minute

	defaultSessionTTL = 2 * time.Hour

	defaultMaxSubmitsPerMinute = 6
	defaultMaxChecksPerMinute  = 30
	defaultWindowSeconds       = 60

	defaultEventBufferSize     = 1000
	defaultEventFlushThreshold = 100
	defaultEventFlushInterval  = time.Second
)

// Duration is a time.Duration that unmarshals from both "10s"-style YAML
// strings and integer nanoseconds. yaml.v3 does not decode duration strings
// into time.Duration on its own.
type Duration time.Duration

// Std returns the wrapped time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// String implements fmt.Stringer.
func (d Duration) String() string { return time.Duration(d).String() }

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var raw any
	if err := value.Decode(&raw); err != nil {
		return err
	}

	switch v := raw.(type) {
	case int:
		*d = Duration(v)
	case int64:
		*d = Duration(v)
	case float64:
		*d = Duration(v)
	case string:
		parsed, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid duration %q: %w", v, err)
		}
		*d = Duration(parsed)
	default:
		return fmt.Errorf("invalid duration value %v", raw)
	}
	return nil
}

// Config holds the application configuration.
type Config struct {
	Service   ServiceConfig   `yaml:"service"`
	Database  DatabaseConfig  `yaml:"database"`
	Webhook   WebhookConfig   `yaml:"webhook"`
	Guard     GuardConfig     `yaml:"guard"`
	Detection DetectionConfig `yaml:"detection"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// ServiceConfig holds service-level configuration.
type ServiceConfig struct {
	Name       string   `yaml:"name"`
	Version    string   `yaml:"version"`
	Port       int      `yaml:"port"`
	Debug      bool     `yaml:"debug"`
	SessionTTL Duration `yaml:"session_ttl"`
	// EventBufferSize is the capacity of the audit event channel.
	EventBufferSize     int      `yaml:"event_buffer_size"`
	EventFlushThreshold int      `yaml:"event_flush_threshold"`
	EventFlushInterval  Duration `yaml:"event_flush_interval"`
}

// DatabaseConfig holds PostgreSQL database configuration.
type DatabaseConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Database string `yaml:"database"`
	SSLMode  string `yaml:"sslmode"`
	// Disabled switches the submission store to the in-memory backend.
	// Intended for local development only.
	Disabled bool `yaml:"disabled"`
}

// DSN returns the PostgreSQL connection string.
func (d *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.Database, d.SSLMode,
	)
}

// WebhookConfig holds the webhook sink configuration.
type WebhookConfig struct {
	URL     string   `yaml:"url"`
	Timeout Duration `yaml:"timeout"`
	// GeoURL is the best-effort IP geolocation endpoint. Empty disables
	// the lookup entirely.
	GeoURL string `yaml:"geo_url"`
}

// GuardConfig holds submission guard configuration.
type GuardConfig struct {
	// Window is the cross-session validity window of a submission record.
	Window Duration `yaml:"window"`
	// Cooldown is how long the in-flight flag stays held after a webhook
	// call resolves.
	Cooldown Duration `yaml:"cooldown"`
}

// DetectionConfig holds WordPress detection configuration.
type DetectionConfig struct {
	Timeout  Duration `yaml:"timeout"`
	Debounce Duration `yaml:"debounce"`
	// CacheTTL bounds how long a classification verdict stays cached.
	CacheTTL Duration `yaml:"cache_ttl"`
}

// RateLimitConfig holds rate limiting configuration.
type RateLimitConfig struct {
	MaxSubmitsPerMinute int `yaml:"max_submits_per_minute"`
	MaxChecksPerMinute  int `yaml:"max_checks_per_minute"`
	WindowSeconds       int `yaml:"window_seconds"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level string `yaml:"level"`
}

// Load reads the YAML file at path, loads .env files, applies defaults and
// then environment overrides (env always wins). A missing config file is not
// an error; defaults apply.
func Load(path string) (*Config, error) {
	loadEnvFiles()

	cfg := &Config{}

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if unmarshalErr := yaml.Unmarshal(data, cfg); unmarshalErr != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, unmarshalErr)
		}
	case os.IsNotExist(err):
		// Defaults only.
	default:
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	setDefaults(cfg)
	applyEnvOverrides(cfg)
	return cfg, nil
}

// loadEnvFiles loads .env.local then .env; missing files are ignored.
func loadEnvFiles() {
	if envFile := os.Getenv("ENV_FILE"); envFile != "" {
		_ = godotenv.Load(envFile)
		return
	}
	_ = godotenv.Load(".env.local")
	_ = godotenv.Load(".env")
}

// setDefaults applies default values to the config.
func setDefaults(cfg *Config) {
	setServiceDefaults(&cfg.Service)
	setDatabaseDefaults(&cfg.Database)
	setWebhookDefaults(&cfg.Webhook)
	setGuardDefaults(&cfg.Guard)
	setDetectionDefaults(&cfg.Detection)
	setRateLimitDefaults(&cfg.RateLimit)
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = defaultLoggingLevel
	}
}

func setServiceDefaults(svc *ServiceConfig) {
	if svc.Name == "" {
		svc.Name = defaultServiceName
	}
	if svc.Version == "" {
		svc.Version = defaultVersion
	}
	if svc.Port == 0 {
		svc.Port = defaultServicePort
	}
	if svc.SessionTTL == 0 {
		svc.SessionTTL = Duration(defaultSessionTTL)
	}
	if svc.EventBufferSize == 0 {
		svc.EventBufferSize = defaultEventBufferSize
	}
	if svc.EventFlushThreshold == 0 {
		svc.EventFlushThreshold = defaultEventFlushThreshold
	}
	if svc.EventFlushInterval == 0 {
		svc.EventFlushInterval = Duration(defaultEventFlushInterval)
	}
}

func setDatabaseDefaults(db *DatabaseConfig) {
	if db.Host == "" {
		db.Host = defaultDBHost
	}
	if db.Port == 0 {
		db.Port = defaultDBPort
	}
	if db.User == "" {
		db.User = defaultDBUser
	}
	if db.Database == "" {
		db.Database = defaultDBName
	}
	if db.SSLMode == "" {
		db.SSLMode = defaultDBSSLMode
	}
}

func setWebhookDefaults(wh *WebhookConfig) {
	if wh.URL == "" {
		wh.URL = defaultWebhookURL
	}
	if wh.Timeout == 0 {
		wh.Timeout = Duration(defaultWebhookTimeout)
	}
}

func setGuardDefaults(g *GuardConfig) {
	if g.Window == 0 {
		g.Window = Duration(defaultGuardWindow)
	}
	if g.Cooldown == 0 {
		g.Cooldown = Duration(defaultGuardCooldown)
	}
}

func setDetectionDefaults(d *DetectionConfig) {
	if d.Timeout == 0 {
		d.Timeout = Duration(defaultDetectTimeout)
	}
	if d.Debounce == 0 {
		d.Debounce = Duration(defaultDetectDebounce)
	}
	if d.CacheTTL == 0 {
		d.CacheTTL = Duration(defaultDetectCacheTTL)
	}
}

func setRateLimitDefaults(rl *RateLimitConfig) {
	if rl.MaxSubmitsPerMinute == 0 {
		rl.MaxSubmitsPerMinute = defaultMaxSubmitsPerMinute
	}
	if rl.MaxChecksPerMinute == 0 {
		rl.MaxChecksPerMinute = defaultMaxChecksPerMinute
	}
	if rl.WindowSeconds == 0 {
		rl.WindowSeconds = defaultWindowSeconds
	}
}

// applyEnvOverrides applies environment variable overrides. Env always wins
// over both file values and defaults.
func applyEnvOverrides(cfg *Config) {
	overrideString(&cfg.Webhook.URL, "QUIZ_FUNNEL_WEBHOOK_URL")
	overrideString(&cfg.Webhook.GeoURL, "QUIZ_FUNNEL_GEO_URL")
	overrideInt(&cfg.Service.Port, "QUIZ_FUNNEL_PORT")
	overrideBool(&cfg.Service.Debug, "APP_DEBUG")
	overrideDuration(&cfg.Guard.Window, "QUIZ_FUNNEL_GUARD_WINDOW")

	overrideString(&cfg.Database.Host, "POSTGRES_QUIZ_FUNNEL_HOST")
	overrideInt(&cfg.Database.Port, "POSTGRES_QUIZ_FUNNEL_PORT")
	overrideString(&cfg.Database.User, "POSTGRES_QUIZ_FUNNEL_USER")
	overrideString(&cfg.Database.Password, "POSTGRES_QUIZ_FUNNEL_PASSWORD")
	overrideString(&cfg.Database.Database, "POSTGRES_QUIZ_FUNNEL_DB")
	overrideString(&cfg.Database.SSLMode, "POSTGRES_QUIZ_FUNNEL_SSLMODE")
	overrideBool(&cfg.Database.Disabled, "POSTGRES_QUIZ_FUNNEL_DISABLED")

	overrideString(&cfg.Logging.Level, "LOG_LEVEL")
}

func overrideString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func overrideInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			*dst = i
		}
	}
}

func overrideBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func overrideDuration(dst *Duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			*dst = Duration(d)
		}
	}
}

// ValidationError reports a single invalid configuration field.
type ValidationError struct {
	Field   string
	Message string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Service.Port < 1 || c.Service.Port > 65535 {
		return &ValidationError{Field: "service.port", Message: "must be between 1 and 65535"}
	}
	if c.Webhook.URL == "" {
		return &ValidationError{Field: "webhook.url", Message: "is required"}
	}
	if c.Guard.Window <= 0 {
		return &ValidationError{Field: "guard.window", Message: "must be positive"}
	}
	return nil
}
