// ABOUTME: Configuration loading and parsing for coven-wizard
// ABOUTME: Supports YAML files with environment variable expansion and duration parsing

package config

import (
	"fmt"
	"os"
	"regexp"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/2389/coven-wizard/internal/engine"
)

// Defaults applied when a section leaves a value unset.
const (
	DefaultCookieName  = "coven_wizard_session"
	DefaultMetricsPath = "/metrics"
	DefaultLanguage    = "en"
	DefaultIdleTimeout = 30 * time.Minute
	minSecretLength    = 32
)

// Config represents the complete coven-wizard configuration
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Database  DatabaseConfig  `yaml:"database"`
	Workflows WorkflowsConfig `yaml:"workflows"`
	Engine    EngineConfig    `yaml:"engine"`
	Sessions  SessionsConfig  `yaml:"sessions"`
	I18n      I18nConfig      `yaml:"i18n"`
	Logging   LoggingConfig   `yaml:"logging"`
	Metrics   MetricsConfig   `yaml:"metrics"`
}

// ServerConfig holds server address configuration
type ServerConfig struct {
	HTTPAddr string `yaml:"http_addr"`
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Path string `yaml:"path"`
}

// WorkflowsConfig points at definition files seeded into the store on startup
type WorkflowsConfig struct {
	Dir string `yaml:"dir"`
}

// EngineConfig holds the engine pacing and the default display override
type EngineConfig struct {
	StartDelay      time.Duration   `yaml:"-"`
	AdvanceDelay    time.Duration   `yaml:"-"`
	ReplyDelay      time.Duration   `yaml:"-"`
	DefaultOverride engine.Override `yaml:"-"`

	// Raw string values for YAML unmarshaling
	StartDelayRaw      string `yaml:"start_delay"`
	AdvanceDelayRaw    string `yaml:"advance_delay"`
	ReplyDelayRaw      string `yaml:"reply_delay"`
	DefaultOverrideRaw string `yaml:"default_override"`
}

// Delays returns the engine pacing in the form the engine accepts.
func (e EngineConfig) Delays() engine.Delays {
	return engine.Delays{Start: e.StartDelay, Advance: e.AdvanceDelay, Reply: e.ReplyDelay}
}

// SessionsConfig holds chat view lifetime and cookie settings
type SessionsConfig struct {
	IdleTimeout    time.Duration `yaml:"-"`
	IdleTimeoutRaw string        `yaml:"idle_timeout"`

	// Secret signs session cookies. Must be at least 32 bytes.
	Secret     string `yaml:"secret"`
	CookieName string `yaml:"cookie_name"`
}

// I18nConfig holds the fallback language used when a browser sends none
type I18nConfig struct {
	DefaultLanguage string `yaml:"default_language"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// MetricsConfig holds metrics endpoint configuration
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// Load reads a configuration file from the given path and returns a parsed Config.
// Environment variables in the format ${VAR_NAME} are expanded.
// Duration strings are parsed into time.Duration values.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	// Expand environment variables in the raw YAML content
	expandedData := expandEnvVars(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expandedData), &cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	applyDefaults(&cfg)

	// Parse duration fields
	if err := parseDurations(&cfg); err != nil {
		return nil, fmt.Errorf("parsing durations: %w", err)
	}

	cfg.Engine.DefaultOverride, err = engine.ParseOverride(cfg.Engine.DefaultOverrideRaw)
	if err != nil {
		return nil, fmt.Errorf("parsing engine.default_override: %w", err)
	}

	// Validate required fields
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}

// expandEnvVars replaces ${VAR_NAME} patterns with the corresponding environment variable values.
// If the environment variable is not set, it is replaced with an empty string.
func expandEnvVars(s string) string {
	re := regexp.MustCompile(`\$\{([^}]+)\}`)

	return re.ReplaceAllStringFunc(s, func(match string) string {
		varName := re.FindStringSubmatch(match)[1]
		return os.Getenv(varName)
	})
}

// applyDefaults fills in values the file left empty.
func applyDefaults(cfg *Config) {
	if cfg.Engine.StartDelayRaw == "" {
		cfg.Engine.StartDelay = engine.DefaultStartDelay
	}
	if cfg.Engine.AdvanceDelayRaw == "" {
		cfg.Engine.AdvanceDelay = engine.DefaultAdvanceDelay
	}
	if cfg.Engine.ReplyDelayRaw == "" {
		cfg.Engine.ReplyDelay = engine.DefaultReplyDelay
	}
	if cfg.Sessions.IdleTimeoutRaw == "" {
		cfg.Sessions.IdleTimeout = DefaultIdleTimeout
	}
	if cfg.Sessions.CookieName == "" {
		cfg.Sessions.CookieName = DefaultCookieName
	}
	if cfg.Metrics.Path == "" {
		cfg.Metrics.Path = DefaultMetricsPath
	}
	if cfg.I18n.DefaultLanguage == "" {
		cfg.I18n.DefaultLanguage = DefaultLanguage
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "text"
	}
}

// Validate checks that all required configuration fields are present and valid.
// Returns an error describing the first validation failure encountered.
func (c *Config) Validate() error {
	if c.Server.HTTPAddr == "" {
		return fmt.Errorf("server.http_addr is required")
	}

	if c.Database.Path == "" {
		return fmt.Errorf("database.path is required")
	}

	if c.Sessions.Secret != "" && len(c.Sessions.Secret) < minSecretLength {
		return fmt.Errorf("sessions.secret must be at least %d bytes", minSecretLength)
	}

	switch c.Logging.Format {
	case "text", "json":
	default:
		return fmt.Errorf("logging.format must be text or json, got %q", c.Logging.Format)
	}

	return nil
}

// parseDurations converts the raw duration strings into time.Duration values
func parseDurations(cfg *Config) error {
	fields := []struct {
		name string
		raw  string
		dst  *time.Duration
	}{
		{"start_delay", cfg.Engine.StartDelayRaw, &cfg.Engine.StartDelay},
		{"advance_delay", cfg.Engine.AdvanceDelayRaw, &cfg.Engine.AdvanceDelay},
		{"reply_delay", cfg.Engine.ReplyDelayRaw, &cfg.Engine.ReplyDelay},
		{"idle_timeout", cfg.Sessions.IdleTimeoutRaw, &cfg.Sessions.IdleTimeout},
	}

	for _, f := range fields {
		if f.raw == "" {
			continue
		}
		d, err := time.ParseDuration(f.raw)
		if err != nil {
			return fmt.Errorf("parsing %s %q: %w", f.name, f.raw, err)
		}
		if d < 0 {
			return fmt.Errorf("parsing %s %q: must not be negative", f.name, f.raw)
		}
		*f.dst = d
	}

	return nil
}
