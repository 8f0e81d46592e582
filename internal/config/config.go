package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	"github.com/robfig/cron/v3"
)

// EnvPrefix is the prefix for structured environment overrides.
// REMINDER_SCHEDULER__LOOKAHEAD=10m maps to scheduler.lookahead.
const EnvPrefix = "REMINDER_"

// Config holds the application configuration.
type Config struct {
	AppEnv    string          `koanf:"app_env"`
	Server    ServerConfig    `koanf:"server"`
	Database  DatabaseConfig  `koanf:"database"`
	Auth      AuthConfig      `koanf:"auth"`
	Log       LogConfig       `koanf:"log"`
	Scheduler SchedulerConfig `koanf:"scheduler"`
	Notify    NotifyConfig    `koanf:"notify"`
	SMTP      SMTPConfig      `koanf:"smtp"`
}

type ServerConfig struct {
	Port           int      `koanf:"port"`
	AllowedOrigins []string `koanf:"allowed_origins"`
}

type DatabaseConfig struct {
	Path        string        `koanf:"path"`
	BusyTimeout time.Duration `koanf:"busy_timeout"`
}

type AuthConfig struct {
	JWTSecret string        `koanf:"jwt_secret"`
	TokenTTL  time.Duration `koanf:"token_ttl"`
}

type LogConfig struct {
	Level  string `koanf:"level"`
	Pretty bool   `koanf:"pretty"`
}

// SchedulerConfig drives the due-window scan loop.
type SchedulerConfig struct {
	Spec      string        `koanf:"spec"`      // cron spec, e.g. "@every 1m"
	Lookahead time.Duration `koanf:"lookahead"` // upper bound of the due window
	CatchUp   bool          `koanf:"catch_up"`  // scan from the unbounded past instead of now
	Workers   int           `koanf:"workers"`   // concurrent deliveries per tick
	// MaxConsecutiveFailures stops the process after that many failed ticks in a row. 0 disables.
	MaxConsecutiveFailures int `koanf:"max_consecutive_failures"`
}

type NotifyConfig struct {
	SendTimeout  time.Duration `koanf:"send_timeout"`
	RatePerSec   int           `koanf:"rate_per_sec"`
	Timezone     string        `koanf:"timezone"`
	DashboardURL string        `koanf:"dashboard_url"`
	AppName      string        `koanf:"app_name"`
}

type SMTPConfig struct {
	Host     string `koanf:"host"`
	Port     int    `koanf:"port"`
	Username string `koanf:"username"`
	Password string `koanf:"password"`
	From     string `koanf:"from"`
}

// Enabled reports whether enough SMTP settings are present to send mail.
func (c SMTPConfig) Enabled() bool {
	return c.Host != "" && c.Username != "" && c.Password != ""
}

// IsProduction reports whether the app runs with production settings.
func (c *Config) IsProduction() bool {
	return c.AppEnv == "production"
}

// Load layers defaults, an optional YAML file, REMINDER_ env vars and the legacy
// plain env names, in that order.
func Load(configPath string) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(NewDefaultProvider(), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if configPath == "" {
		configPath = os.Getenv(EnvPrefix + "CONFIG")
	}
	if configPath != "" {
		if _, err := os.Stat(configPath); err == nil {
			if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
				return nil, fmt.Errorf("failed to load config file: %w", err)
			}
		} else if !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to stat config file: %w", err)
		}
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("failed to load env vars: %w", err)
	}

	applyLegacyEnv(k)

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	return &cfg, nil
}

// envKey turns REMINDER_SMTP__HOST into smtp.host.
func envKey(s string) string {
	s = strings.TrimPrefix(s, EnvPrefix)
	return strings.ReplaceAll(strings.ToLower(s), "__", ".")
}

// applyLegacyEnv honours the variable names used by earlier deployments.
func applyLegacyEnv(k *koanf.Koanf) {
	legacy := map[string]string{
		"PORT":           "server.port",
		"DATABASE_PATH":  "database.path",
		"JWT_SECRET":     "auth.jwt_secret",
		"APP_ENV":        "app_env",
		"EMAIL_USER":     "smtp.username",
		"EMAIL_PASSWORD": "smtp.password",
		"EMAIL_FROM":     "smtp.from",
		"SMTP_HOST":      "smtp.host",
	}
	for name, key := range legacy {
		if v, ok := os.LookupEnv(name); ok && v != "" {
			k.Set(key, v)
		}
	}
}

// Validate checks settings that would otherwise fail at runtime.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be between 1 and 65535, got %d", c.Server.Port)
	}
	if c.Database.Path == "" {
		return fmt.Errorf("database.path is required")
	}
	if c.Auth.JWTSecret == "" {
		return fmt.Errorf("auth.jwt_secret is required (set JWT_SECRET)")
	}
	if c.Auth.TokenTTL <= 0 {
		return fmt.Errorf("auth.token_ttl must be positive")
	}
	if _, err := cron.ParseStandard(c.Scheduler.Spec); err != nil {
		return fmt.Errorf("invalid scheduler.spec %q: %w", c.Scheduler.Spec, err)
	}
	if c.Scheduler.Lookahead <= 0 {
		return fmt.Errorf("scheduler.lookahead must be positive")
	}
	if c.Scheduler.Workers <= 0 {
		return fmt.Errorf("scheduler.workers must be positive")
	}
	if c.Scheduler.MaxConsecutiveFailures < 0 {
		return fmt.Errorf("scheduler.max_consecutive_failures must not be negative")
	}
	if c.Notify.SendTimeout <= 0 {
		return fmt.Errorf("notify.send_timeout must be positive")
	}
	if c.Notify.RatePerSec < 0 {
		return fmt.Errorf("notify.rate_per_sec must not be negative")
	}
	if _, err := c.Location(); err != nil {
		return err
	}
	return nil
}

// Location resolves the display timezone for notification times.
func (c *Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.Notify.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid notify.timezone %q: %w", c.Notify.Timezone, err)
	}
	return loc, nil
}
