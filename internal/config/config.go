// Package config reads the bot's settings from the environment, optionally
// seeded from an env file.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	ModePolling = "polling"
	ModeWebhook = "webhook"
)

type Config struct {
	BotToken      string
	Mode          string
	WebhookURL    string
	WebhookSecret string
	Port          int

	StorageDir        string
	IdleTimeout       time.Duration
	ConversionTimeout time.Duration
	PreviewPages      int

	RedisHost     string
	RedisPort     string
	RedisPassword string
	RedisDB       int

	// PostgresDSN wins over PostgresHost; with only the host set the DSN is
	// assembled from the POSTGRES_* variables.
	PostgresDSN  string
	PostgresHost string

	LogLevel  string
	LogFormat string
}

// Load reads path into the environment without overriding variables that
// are already set, then builds a Config. A missing file is not an error.
func Load(path string) (*Config, error) {
	if path = strings.TrimSpace(path); path != "" {
		if err := godotenv.Load(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("load %s: %w", path, err)
		}
	}
	return FromEnv()
}

func FromEnv() (*Config, error) {
	var errs []error

	c := &Config{
		BotToken:      strings.TrimSpace(os.Getenv("BOT_TOKEN")),
		Mode:          strings.ToLower(strings.TrimSpace(os.Getenv("BOT_MODE"))),
		WebhookURL:    strings.TrimSpace(os.Getenv("WEBHOOK_URL")),
		WebhookSecret: strings.TrimSpace(os.Getenv("WEBHOOK_SECRET")),
		StorageDir:    strings.TrimSpace(os.Getenv("STORAGE_DIR")),
		RedisHost:     strings.TrimSpace(os.Getenv("REDIS_HOST")),
		RedisPort:     envString("REDIS_PORT", "6379"),
		RedisPassword: os.Getenv("REDIS_PASSWORD"),
		PostgresDSN:   strings.TrimSpace(os.Getenv("POSTGRES_DSN")),
		PostgresHost:  strings.TrimSpace(os.Getenv("POSTGRES_HOST")),
		LogLevel:      envString("LOG_LEVEL", "info"),
		LogFormat:     envString("LOG_FORMAT", "json"),
	}

	if c.Mode == "" {
		c.Mode = ModePolling
		if c.WebhookURL != "" {
			c.Mode = ModeWebhook
		}
	}
	if c.StorageDir == "" {
		c.StorageDir = filepath.Join(os.TempDir(), "any2any")
	}

	c.Port = envInt("PORT", 8080, &errs)
	c.PreviewPages = envInt("MAX_PREVIEW_PAGES", 10, &errs)
	c.RedisDB = envInt("REDIS_DB", 0, &errs)
	c.IdleTimeout = envDuration("SESSION_IDLE_TIMEOUT", 30*time.Minute, &errs)
	c.ConversionTimeout = envDuration("CONVERSION_TIMEOUT", 10*time.Minute, &errs)

	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Config) Validate() error {
	var errs []error
	if c.BotToken == "" {
		errs = append(errs, errors.New("BOT_TOKEN is required"))
	}
	switch c.Mode {
	case ModePolling:
	case ModeWebhook:
		if c.WebhookURL == "" {
			errs = append(errs, errors.New("WEBHOOK_URL is required in webhook mode"))
		}
	default:
		errs = append(errs, fmt.Errorf("BOT_MODE must be %q or %q, got %q", ModePolling, ModeWebhook, c.Mode))
	}
	if c.Port <= 0 || c.Port > 65535 {
		errs = append(errs, fmt.Errorf("PORT out of range: %d", c.Port))
	}
	if c.IdleTimeout < 0 {
		errs = append(errs, errors.New("SESSION_IDLE_TIMEOUT must not be negative"))
	}
	if c.ConversionTimeout <= 0 {
		errs = append(errs, errors.New("CONVERSION_TIMEOUT must be positive"))
	}
	if c.PreviewPages <= 0 {
		errs = append(errs, errors.New("MAX_PREVIEW_PAGES must be positive"))
	}
	return errors.Join(errs...)
}

func (c *Config) RedisEnabled() bool {
	return c.RedisHost != ""
}

func (c *Config) RedisAddr() string {
	return fmt.Sprintf("%s:%s", c.RedisHost, c.RedisPort)
}

func (c *Config) JournalEnabled() bool {
	return c.PostgresDSN != "" || c.PostgresHost != ""
}

func envString(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func envInt(key string, def int, errs *[]error) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("%s: %w", key, err))
		return def
	}
	return n
}

// envDuration accepts Go durations ("90s", "30m") and bare seconds; "0"
// disables.
func envDuration(key string, def time.Duration, errs *[]error) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	if secs, err := strconv.Atoi(v); err == nil {
		return time.Duration(secs) * time.Second
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("%s: %w", key, err))
		return def
	}
	return d
}
