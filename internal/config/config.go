// Package config loads service configuration from an optional YAML file and
// the environment. Environment variables win over the file.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"
)

var ErrInvalidConfig = errors.New("config: invalid configuration")

type Config struct {
	Server struct {
		Port           int           `yaml:"port"`
		RequestTimeout time.Duration `yaml:"request_timeout"`
	} `yaml:"server"`
	Store struct {
		DatabaseURL string        `yaml:"database_url"`
		SQLitePath  string        `yaml:"sqlite_path"`
		RedisURL    string        `yaml:"redis_url"`
		CacheTTL    time.Duration `yaml:"cache_ttl"`
	} `yaml:"store"`
	Engine struct {
		DefaultInitialCash float64 `yaml:"default_initial_cash"`
		TakeProfitPct      float64 `yaml:"take_profit_pct"`
		StopLossPct        float64 `yaml:"stop_loss_pct"`
		RiskFreeRate       float64 `yaml:"risk_free_rate"`
	} `yaml:"engine"`
	Sessions struct {
		IdleTTL         time.Duration `yaml:"idle_ttl"`
		JanitorSchedule string        `yaml:"janitor_schedule"`
	} `yaml:"sessions"`
	Log struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
	} `yaml:"log"`
}

// Default returns the configuration used when nothing is set.
func Default() *Config {
	var c Config
	c.Server.Port = 8080
	c.Server.RequestTimeout = 30 * time.Second
	c.Store.CacheTTL = 30 * time.Second
	c.Engine.DefaultInitialCash = 200
	c.Engine.TakeProfitPct = 0.20
	c.Engine.StopLossPct = 0.10
	c.Sessions.IdleTTL = 30 * time.Minute
	c.Sessions.JanitorSchedule = "@every 5m"
	c.Log.Level = "info"
	c.Log.Format = "json"
	return &c
}

// Load reads .env, then the YAML file at CONFIG_PATH (if set), then the
// environment overrides, and validates the result.
func Load() (*Config, error) {
	_ = godotenv.Load()
	return LoadFile(os.Getenv("CONFIG_PATH"))
}

// LoadFile is Load without .env handling. An empty path uses defaults.
func LoadFile(path string) (*Config, error) {
	c := Default()
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(b, c); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
		}
	}
	if err := c.applyEnv(); err != nil {
		return nil, err
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Config) applyEnv() error {
	if v := os.Getenv("PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%w: PORT %q", ErrInvalidConfig, v)
		}
		c.Server.Port = port
	}
	envString(&c.Store.DatabaseURL, "DATABASE_URL")
	envString(&c.Store.SQLitePath, "SQLITE_PATH")
	envString(&c.Store.RedisURL, "REDIS_URL")
	envString(&c.Log.Level, "LOG_LEVEL")
	envString(&c.Log.Format, "LOG_FORMAT")
	return nil
}

func envString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("%w: server.port must be 1-65535, got %d", ErrInvalidConfig, c.Server.Port)
	}
	if c.Engine.TakeProfitPct < 0 || c.Engine.StopLossPct < 0 {
		return fmt.Errorf("%w: engine take_profit_pct and stop_loss_pct must be non-negative", ErrInvalidConfig)
	}
	for name, d := range map[string]time.Duration{
		"server.request_timeout": c.Server.RequestTimeout,
		"store.cache_ttl":        c.Store.CacheTTL,
		"sessions.idle_ttl":      c.Sessions.IdleTTL,
	} {
		if d < 0 {
			return fmt.Errorf("%w: %s must not be negative", ErrInvalidConfig, name)
		}
	}
	if _, err := cron.ParseStandard(c.Sessions.JanitorSchedule); err != nil {
		return fmt.Errorf("%w: sessions.janitor_schedule: %v", ErrInvalidConfig, err)
	}
	if _, err := c.LogLevel(); err != nil {
		return err
	}
	switch c.Log.Format {
	case "json", "text":
	default:
		return fmt.Errorf("%w: log.format must be json or text, got %q", ErrInvalidConfig, c.Log.Format)
	}
	return nil
}

// LogLevel maps log.level to a slog.Level.
func (c *Config) LogLevel() (slog.Level, error) {
	switch strings.ToLower(c.Log.Level) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return slog.LevelInfo, fmt.Errorf("%w: log.level %q", ErrInvalidConfig, c.Log.Level)
}

// Logger builds the process logger described by the log section.
func (c *Config) Logger() *slog.Logger {
	level, _ := c.LogLevel()
	opts := &slog.HandlerOptions{Level: level}
	if c.Log.Format == "text" {
		return slog.New(slog.NewTextHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, opts))
}
