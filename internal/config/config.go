// Package config loads blackbird settings from ~/.blackbird/config.yaml,
// a .env file and BLACKBIRD_* environment variables, in that order.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Load reads the config file at path (or ~/.blackbird/config.yaml when
// empty), applies .env and environment overrides, and validates.
func Load(path string) (*Config, error) {
	dir, err := BlackbirdDir()
	if err != nil {
		return nil, err
	}
	if path == "" {
		path, err = ConfigPath()
		if err != nil {
			return nil, err
		}
	}

	cfg, err := LoadFile(path)
	if err != nil {
		return nil, err
	}

	// .env is optional
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		slog.Warn("failed to load .env", "error", err)
	}
	ApplyEnv(cfg)
	cfg.Resolve(dir)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyEnv overrides cfg with BLACKBIRD_* environment variables
func ApplyEnv(cfg *Config) {
	cfg.Server.Port = getEnvInt("BLACKBIRD_PORT", cfg.Server.Port)
	cfg.Server.Bind = getEnv("BLACKBIRD_BIND", cfg.Server.Bind)
	cfg.Server.LogLevel = getEnv("BLACKBIRD_LOG_LEVEL", cfg.Server.LogLevel)
	cfg.Server.Debug = getEnvBool("BLACKBIRD_DEBUG", cfg.Server.Debug)
	cfg.Server.CORSOrigins = getEnvList("BLACKBIRD_CORS_ORIGINS", cfg.Server.CORSOrigins)
	cfg.Server.TrustedProxies = getEnvList("BLACKBIRD_TRUSTED_PROXIES", cfg.Server.TrustedProxies)
	cfg.API.BaseURL = getEnv("BLACKBIRD_API_URL", cfg.API.BaseURL)
	cfg.Storage.Driver = getEnv("BLACKBIRD_STORAGE_DRIVER", cfg.Storage.Driver)
	cfg.Storage.Path = getEnv("BLACKBIRD_STORAGE_PATH", cfg.Storage.Path)
	cfg.Lessons.Path = getEnv("BLACKBIRD_LESSONS_PATH", cfg.Lessons.Path)

	if url := os.Getenv("BLACKBIRD_AMQP_URL"); url != "" {
		cfg.Events.AMQPURL = url
		cfg.Events.Enabled = true
	}
}

// Validate rejects settings the daemon cannot start with
func (c *Config) Validate() error {
	var errs []error

	if c.Server.Port < 1 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server.port %d out of range", c.Server.Port))
	}
	switch c.Server.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Errorf("server.log_level %q must be debug, info, warn or error", c.Server.LogLevel))
	}
	if c.API.BaseURL == "" {
		errs = append(errs, errors.New("api.base_url is required"))
	}
	switch c.Storage.Driver {
	case "sqlite", "json":
	default:
		errs = append(errs, fmt.Errorf("storage.driver %q must be sqlite or json", c.Storage.Driver))
	}
	if d := c.Exercise.DefaultDifficulty; d < 1 || d > 14 {
		errs = append(errs, fmt.Errorf("exercise.default_difficulty %d must be between 1 and 14", d))
	}
	if c.Exercise.TickSeconds < 1 {
		errs = append(errs, errors.New("exercise.tick_seconds must be at least 1"))
	}
	if c.Exercise.RedirectDelayMS < 0 {
		errs = append(errs, errors.New("exercise.redirect_delay_ms must not be negative"))
	}
	if _, err := c.Server.ProxyPrefixes(); err != nil {
		errs = append(errs, fmt.Errorf("server.trusted_proxies: %w", err))
	}
	if c.Cookies.Name == "" {
		errs = append(errs, errors.New("cookies.name is required"))
	}
	if c.Events.Enabled && c.Events.AMQPURL == "" {
		errs = append(errs, errors.New("events.amqp_url is required when events are enabled"))
	}

	if len(errs) > 0 {
		return fmt.Errorf("invalid config: %w", errors.Join(errs...))
	}
	return nil
}

// SlogLevel maps the configured log level onto slog
func (s ServerConfig) SlogLevel() slog.Level {
	switch s.LogLevel {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
