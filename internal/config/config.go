package config

import (
	"bytes"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/caarlos0/env/v11"
	"github.com/goccy/go-json"
)

// CurrentSchemaVersion is the current config schema version.
const CurrentSchemaVersion = 1

// Environment variable names for config overrides.
// Priority: Environment > Config File > Default
const (
	EnvPort             = "ANATOMYDPS_PORT"
	EnvLogPath          = "ANATOMYDPS_LOG_PATH"
	EnvAutoImport       = "ANATOMYDPS_AUTO_IMPORT"
	EnvFollow           = "ANATOMYDPS_FOLLOW"
	EnvRollingWindowMin = "ANATOMYDPS_ROLLING_WINDOW_MIN"
	EnvZoneDebounceSec  = "ANATOMYDPS_ZONE_DEBOUNCE_SEC"
	EnvFlushSize        = "ANATOMYDPS_FLUSH_SIZE"
	EnvProgressEvery    = "ANATOMYDPS_PROGRESS_EVERY"
	EnvLogLevel         = "ANATOMYDPS_LOG_LEVEL"
	EnvLogFormat        = "ANATOMYDPS_LOG_FORMAT"
	EnvDiscordWebhook   = "ANATOMYDPS_DISCORD_WEBHOOK_URL"
	EnvDiscordBatchSec  = "ANATOMYDPS_DISCORD_BATCH_SEC"
)

// Config holds application configuration.
type Config struct {
	SchemaVersion    int    `json:"schema_version"`
	Port             int    `json:"port"`
	LogPath          string `json:"log_path"`
	AutoImport       bool   `json:"auto_import"`
	Follow           bool   `json:"follow"`
	RollingWindowMin int    `json:"rolling_window_min"`
	ZoneDebounceSec  int    `json:"zone_debounce_sec"`
	FlushSize        int    `json:"flush_size"`
	ProgressEvery    int    `json:"progress_every"`
	LogLevel         string `json:"log_level"`
	LogFormat        string `json:"log_format"`

	// Zone run summaries are posted here when set.
	DiscordWebhookURL Secret `json:"discord_webhook_url,omitempty"`
	DiscordBatchSec   int    `json:"discord_batch_sec"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		SchemaVersion:    CurrentSchemaVersion,
		Port:             8080,
		LogPath:          DefaultLogPath(),
		AutoImport:       true,
		Follow:           true,
		RollingWindowMin: 5,
		ZoneDebounceSec:  30,
		FlushSize:        1000,
		ProgressEvery:    10000,
		LogLevel:         "info",
		LogFormat:        "text",
		DiscordBatchSec:  3,
	}
}

// DefaultLogPath returns where the game writes Player.log for the current user.
// It returns "" when the home directory is unknown.
func DefaultLogPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, "AppData", "LocalLow", "Elder Game", "Project Gorgon", "Player.log")
}

// LoadConfig reads config from disk. If the file doesn't exist or is corrupt,
// it returns DefaultConfig with a warning logged (non-fatal).
func LoadConfig() (Config, error) {
	path, err := ConfigPath()
	if err != nil {
		return DefaultConfig(), err
	}

	return LoadConfigFrom(path)
}

// LoadConfigFrom reads config from the specified path.
func LoadConfigFrom(path string) (Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		slog.Warn("failed to read config file, using defaults", "path", path, "error", err)
		return cfg, nil
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	if err := dec.Decode(&cfg); err != nil {
		slog.Warn("config file is corrupt, using defaults", "path", path, "error", err)
		return DefaultConfig(), nil
	}

	if cfg.SchemaVersion != CurrentSchemaVersion {
		slog.Warn("config schema version mismatch, using defaults",
			"got", cfg.SchemaVersion, "expected", CurrentSchemaVersion)
		return DefaultConfig(), nil
	}

	return Normalize(cfg), nil
}

// Normalize replaces out-of-range values with their defaults.
func Normalize(cfg Config) Config {
	defaults := DefaultConfig()

	cfg.SchemaVersion = CurrentSchemaVersion

	if cfg.Port <= 0 || cfg.Port > 65535 {
		cfg.Port = defaults.Port
	}
	if cfg.RollingWindowMin <= 0 {
		cfg.RollingWindowMin = defaults.RollingWindowMin
	}
	if cfg.ZoneDebounceSec < 0 {
		cfg.ZoneDebounceSec = defaults.ZoneDebounceSec
	}
	if cfg.FlushSize <= 0 {
		cfg.FlushSize = defaults.FlushSize
	}
	if cfg.ProgressEvery <= 0 {
		cfg.ProgressEvery = defaults.ProgressEvery
	}

	if cfg.DiscordBatchSec <= 0 {
		cfg.DiscordBatchSec = defaults.DiscordBatchSec
	}
	cfg.DiscordWebhookURL = Secret(strings.TrimSpace(cfg.DiscordWebhookURL.Value()))

	cfg.LogLevel = strings.ToLower(strings.TrimSpace(cfg.LogLevel))
	switch cfg.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		cfg.LogLevel = defaults.LogLevel
	}

	cfg.LogFormat = strings.ToLower(strings.TrimSpace(cfg.LogFormat))
	if cfg.LogFormat != "text" && cfg.LogFormat != "json" {
		cfg.LogFormat = defaults.LogFormat
	}

	return cfg
}

// SlogLevel maps LogLevel to a slog level.
func (c Config) SlogLevel() slog.Level {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return slog.LevelInfo
	}
	return lvl
}

// SaveConfig writes config to disk atomically.
func SaveConfig(cfg Config) error {
	path, err := ConfigPath()
	if err != nil {
		return err
	}

	return SaveConfigTo(cfg, path)
}

// SaveConfigTo writes config to the specified path atomically.
func SaveConfigTo(cfg Config, path string) error {
	cfg.SchemaVersion = CurrentSchemaVersion

	return writeJSONAtomic(path, cfg)
}

// envOverrides holds the raw override values; empty means unset.
type envOverrides struct {
	Port             string `env:"ANATOMYDPS_PORT"`
	LogPath          string `env:"ANATOMYDPS_LOG_PATH"`
	AutoImport       string `env:"ANATOMYDPS_AUTO_IMPORT"`
	Follow           string `env:"ANATOMYDPS_FOLLOW"`
	RollingWindowMin string `env:"ANATOMYDPS_ROLLING_WINDOW_MIN"`
	ZoneDebounceSec  string `env:"ANATOMYDPS_ZONE_DEBOUNCE_SEC"`
	FlushSize        string `env:"ANATOMYDPS_FLUSH_SIZE"`
	ProgressEvery    string `env:"ANATOMYDPS_PROGRESS_EVERY"`
	LogLevel         string `env:"ANATOMYDPS_LOG_LEVEL"`
	LogFormat        string `env:"ANATOMYDPS_LOG_FORMAT"`
	DiscordWebhook   string `env:"ANATOMYDPS_DISCORD_WEBHOOK_URL"`
	DiscordBatchSec  string `env:"ANATOMYDPS_DISCORD_BATCH_SEC"`
}

// ApplyEnvOverrides applies environment variable overrides to the config.
// Environment variables take highest priority over config file values.
// Values that do not parse are ignored.
func ApplyEnvOverrides(cfg Config) (Config, error) {
	var raw envOverrides
	if err := env.Parse(&raw); err != nil {
		return cfg, fmt.Errorf("parse env: %w", err)
	}

	if port, ok := atoi(raw.Port); ok && port > 0 && port <= 65535 {
		cfg.Port = port
	}
	if raw.LogPath != "" {
		cfg.LogPath = raw.LogPath
	}
	if raw.AutoImport != "" {
		cfg.AutoImport = parseBool(raw.AutoImport)
	}
	if raw.Follow != "" {
		cfg.Follow = parseBool(raw.Follow)
	}
	if n, ok := atoi(raw.RollingWindowMin); ok && n > 0 {
		cfg.RollingWindowMin = n
	}
	if n, ok := atoi(raw.ZoneDebounceSec); ok && n >= 0 {
		cfg.ZoneDebounceSec = n
	}
	if n, ok := atoi(raw.FlushSize); ok && n > 0 {
		cfg.FlushSize = n
	}
	if n, ok := atoi(raw.ProgressEvery); ok && n > 0 {
		cfg.ProgressEvery = n
	}
	if raw.LogLevel != "" {
		cfg.LogLevel = raw.LogLevel
	}
	if raw.LogFormat != "" {
		cfg.LogFormat = raw.LogFormat
	}
	if raw.DiscordWebhook != "" {
		cfg.DiscordWebhookURL = Secret(raw.DiscordWebhook)
	}
	if n, ok := atoi(raw.DiscordBatchSec); ok && n > 0 {
		cfg.DiscordBatchSec = n
	}

	return Normalize(cfg), nil
}

func atoi(s string) (int, bool) {
	if s == "" {
		return 0, false
	}
	n, err := strconv.Atoi(strings.TrimSpace(s))
	return n, err == nil
}

// parseBool parses a boolean from various string representations.
// Accepts: "true", "1", "yes", "on" (case-insensitive) as true.
// All other values are treated as false.
func parseBool(s string) bool {
	s = strings.ToLower(strings.TrimSpace(s))
	return s == "true" || s == "1" || s == "yes" || s == "on"
}
