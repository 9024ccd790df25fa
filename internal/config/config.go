// Package config loads process configuration from defaults, an optional YAML
// file and the environment, in that order of precedence (last wins).
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"

	"prodmax/internal/clock"
)

// Store backends.
const (
	StorePostgres = "postgres"
	StoreMemory   = "memory"
)

// Config is the full process configuration.
type Config struct {
	Addr        string `yaml:"addr" env:"ADDR"`
	Store       string `yaml:"store" env:"STORE"`
	DatabaseURL string `yaml:"database_url" env:"DATABASE_URL"`

	MaxAPIURL     string        `yaml:"max_api_url" env:"MAX_API_URL"`
	MaxBotToken   string        `yaml:"max_bot_token" env:"MAX_BOT_TOKEN"`
	MaxAPITimeout time.Duration `yaml:"max_api_timeout" env:"MAX_API_TIMEOUT"`

	WebhookURL     string `yaml:"webhook_url" env:"WEBHOOK_URL"`
	WebhookSecret  string `yaml:"webhook_secret" env:"WEBHOOK_SECRET"`
	AdminTokenHash string `yaml:"admin_token_hash" env:"ADMIN_TOKEN_HASH"`

	// Timezone is the reference zone that defines calendar days for streaks.
	Timezone           string        `yaml:"timezone" env:"TIMEZONE"`
	PomodoroMinutes    int           `yaml:"pomodoro_minutes" env:"POMODORO_MINUTES"`
	PomodoroMaxMinutes int           `yaml:"pomodoro_max_minutes" env:"POMODORO_MAX_MINUTES"`
	PomodoroXP         int           `yaml:"pomodoro_xp" env:"POMODORO_XP"`
	PersistTimeout     time.Duration `yaml:"persist_timeout" env:"PERSIST_TIMEOUT"`
	ShutdownTimeout    time.Duration `yaml:"shutdown_timeout" env:"SHUTDOWN_TIMEOUT"`

	LogLevel  string `yaml:"log_level" env:"LOG_LEVEL"`
	LogFormat string `yaml:"log_format" env:"LOG_FORMAT"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Addr:               ":3000",
		Store:              StorePostgres,
		MaxAPIURL:          "https://platform-api.max.ru",
		MaxAPITimeout:      10 * time.Second,
		Timezone:           "UTC",
		PomodoroMinutes:    25,
		PomodoroMaxMinutes: 240,
		PomodoroXP:         15,
		PersistTimeout:     10 * time.Second,
		ShutdownTimeout:    15 * time.Second,
		LogLevel:           "info",
		LogFormat:          "text",
	}
}

// Load builds the configuration. An empty path skips the file; a named file
// that does not exist is an error.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate reports every problem at once.
func (c Config) Validate() error {
	var errs []error

	switch c.Store {
	case StorePostgres:
		if c.DatabaseURL == "" {
			errs = append(errs, errors.New("DATABASE_URL is required for the postgres store"))
		}
	case StoreMemory:
	default:
		errs = append(errs, fmt.Errorf("unknown store %q", c.Store))
	}

	if _, err := clock.LoadCalendar(c.Timezone); err != nil {
		errs = append(errs, err)
	}
	if c.PomodoroMinutes <= 0 {
		errs = append(errs, errors.New("pomodoro_minutes must be positive"))
	}
	if c.PomodoroMaxMinutes < c.PomodoroMinutes {
		errs = append(errs, errors.New("pomodoro_max_minutes must not be below pomodoro_minutes"))
	}
	if c.PomodoroXP < 0 {
		errs = append(errs, errors.New("pomodoro_xp must not be negative"))
	}
	if c.PersistTimeout <= 0 {
		errs = append(errs, errors.New("persist_timeout must be positive"))
	}
	if _, err := c.SlogLevel(); err != nil {
		errs = append(errs, err)
	}
	if f := strings.ToLower(c.LogFormat); f != "text" && f != "json" {
		errs = append(errs, fmt.Errorf("unknown log format %q", c.LogFormat))
	}

	return errors.Join(errs...)
}

// Calendar returns the reference calendar for streak days.
func (c Config) Calendar() (clock.Calendar, error) {
	return clock.LoadCalendar(c.Timezone)
}

// SlogLevel maps LogLevel onto slog.
func (c Config) SlogLevel() (slog.Level, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return 0, fmt.Errorf("log level: %w", err)
	}
	return lvl, nil
}

// Logger builds the process logger.
func (c Config) Logger() *slog.Logger {
	lvl, err := c.SlogLevel()
	if err != nil {
		lvl = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: lvl}
	if strings.EqualFold(c.LogFormat, "json") {
		return slog.New(slog.NewJSONHandler(os.Stderr, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stderr, opts))
}
