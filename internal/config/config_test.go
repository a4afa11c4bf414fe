package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
)

func TestLoadConfigFrom_NotExist(t *testing.T) {
	cfg, err := LoadConfigFrom("/nonexistent/path/config.json")
	if err != nil {
		t.Errorf("unexpected error: %v", err)
	}

	defaults := DefaultConfig()
	if cfg.Port != defaults.Port {
		t.Errorf("expected port %d, got %d", defaults.Port, cfg.Port)
	}
	if cfg.SchemaVersion != defaults.SchemaVersion {
		t.Errorf("expected schema version %d, got %d", defaults.SchemaVersion, cfg.SchemaVersion)
	}
	if !cfg.AutoImport || !cfg.Follow {
		t.Error("auto_import and follow should default to true")
	}
}

func TestLoadConfigFrom_Corrupt(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "config.json")

	if err := os.WriteFile(path, []byte("not valid json{{{"), 0600); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadConfigFrom(path)
	if err != nil {
		t.Errorf("unexpected error: %v", err)
	}

	defaults := DefaultConfig()
	if cfg.Port != defaults.Port {
		t.Errorf("expected default port %d, got %d", defaults.Port, cfg.Port)
	}
}

func TestLoadConfigFrom_InvalidVersion(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "config.json")

	content := `{"schema_version": 999, "port": 9999}`
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadConfigFrom(path)
	if err != nil {
		t.Errorf("unexpected error: %v", err)
	}

	defaults := DefaultConfig()
	if cfg.Port != defaults.Port {
		t.Errorf("expected default port %d, got %d", defaults.Port, cfg.Port)
	}
}

func TestSaveLoadConfig_RoundTrip(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "config.json")

	original := Config{
		SchemaVersion:    CurrentSchemaVersion,
		Port:             9000,
		LogPath:          "/custom/Player.log",
		AutoImport:       false,
		Follow:           true,
		RollingWindowMin: 10,
		ZoneDebounceSec:  45,
		FlushSize:        500,
		ProgressEvery:    2000,
		LogLevel:         "debug",
		LogFormat:        "json",

		DiscordWebhookURL: "https://discord.example/api/webhooks/1/abc",
		DiscordBatchSec:   5,
	}

	if err := SaveConfigTo(original, path); err != nil {
		t.Fatalf("failed to save config: %v", err)
	}

	loaded, err := LoadConfigFrom(path)
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}

	if loaded != original {
		t.Errorf("round trip mismatch:\n got  %+v\n want %+v", loaded, original)
	}

	// No temp files left behind.
	entries, err := os.ReadDir(tmpDir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		t.Errorf("expected only config.json in dir, found %d entries", len(entries))
	}
}

func TestSaveConfigTo_Overwrites(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.json")

	cfg := DefaultConfig()
	cfg.Port = 9001
	if err := SaveConfigTo(cfg, path); err != nil {
		t.Fatal(err)
	}
	cfg.Port = 9002
	if err := SaveConfigTo(cfg, path); err != nil {
		t.Fatal(err)
	}

	loaded, _ := LoadConfigFrom(path)
	if loaded.Port != 9002 {
		t.Errorf("expected port 9002, got %d", loaded.Port)
	}
}

func TestLoadConfigFrom_NormalizesInvalidValues(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "config.json")

	content := `{"schema_version": 1, "port": -1, "rolling_window_min": 0, "zone_debounce_sec": -5,
		"flush_size": 0, "progress_every": -1, "log_level": "LOUD", "log_format": "xml"}`
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadConfigFrom(path)
	if err != nil {
		t.Errorf("unexpected error: %v", err)
	}

	defaults := DefaultConfig()
	if cfg.Port != defaults.Port {
		t.Errorf("expected normalized port %d, got %d", defaults.Port, cfg.Port)
	}
	if cfg.RollingWindowMin != defaults.RollingWindowMin {
		t.Errorf("rolling_window_min = %d", cfg.RollingWindowMin)
	}
	if cfg.ZoneDebounceSec != defaults.ZoneDebounceSec {
		t.Errorf("zone_debounce_sec = %d", cfg.ZoneDebounceSec)
	}
	if cfg.FlushSize != defaults.FlushSize || cfg.ProgressEvery != defaults.ProgressEvery {
		t.Errorf("flush_size = %d, progress_every = %d", cfg.FlushSize, cfg.ProgressEvery)
	}
	if cfg.LogLevel != "info" || cfg.LogFormat != "text" {
		t.Errorf("log_level = %q, log_format = %q", cfg.LogLevel, cfg.LogFormat)
	}
}

func TestNormalize_ZeroDebounceAllowed(t *testing.T) {
	cfg := DefaultConfig()
	cfg.ZoneDebounceSec = 0
	if got := Normalize(cfg).ZoneDebounceSec; got != 0 {
		t.Errorf("zero debounce should be kept, got %d", got)
	}
}

func TestSlogLevel(t *testing.T) {
	tests := []struct {
		level string
		want  slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"error", slog.LevelError},
		{"bogus", slog.LevelInfo},
	}
	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			if got := (Config{LogLevel: tt.level}).SlogLevel(); got != tt.want {
				t.Errorf("SlogLevel() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestApplyEnvOverrides_Port(t *testing.T) {
	t.Setenv(EnvPort, "9999")

	cfg, err := ApplyEnvOverrides(DefaultConfig())
	if err != nil {
		t.Fatal(err)
	}

	if cfg.Port != 9999 {
		t.Errorf("expected port 9999, got %d", cfg.Port)
	}
}

func TestApplyEnvOverrides_Booleans(t *testing.T) {
	tests := []struct {
		envValue string
		expected bool
	}{
		{"true", true},
		{"TRUE", true},
		{"1", true},
		{"yes", true},
		{"on", true},
		{"false", false},
		{"0", false},
		{"no", false},
		{"off", false},
		{"invalid", false},
	}

	for _, tt := range tests {
		t.Run(tt.envValue, func(t *testing.T) {
			t.Setenv(EnvFollow, tt.envValue)
			t.Setenv(EnvAutoImport, tt.envValue)

			cfg, err := ApplyEnvOverrides(DefaultConfig())
			if err != nil {
				t.Fatal(err)
			}

			if cfg.Follow != tt.expected || cfg.AutoImport != tt.expected {
				t.Errorf("for %q: expected %v, got follow=%v auto_import=%v",
					tt.envValue, tt.expected, cfg.Follow, cfg.AutoImport)
			}
		})
	}
}

func TestApplyEnvOverrides_InvalidNumbersIgnored(t *testing.T) {
	t.Setenv(EnvPort, "not-a-number")
	t.Setenv(EnvRollingWindowMin, "-3")
	t.Setenv(EnvFlushSize, "lots")

	defaults := DefaultConfig()
	cfg, err := ApplyEnvOverrides(defaults)
	if err != nil {
		t.Fatal(err)
	}

	if cfg.Port != defaults.Port {
		t.Errorf("expected port to remain %d with invalid env, got %d", defaults.Port, cfg.Port)
	}
	if cfg.RollingWindowMin != defaults.RollingWindowMin {
		t.Errorf("rolling_window_min = %d", cfg.RollingWindowMin)
	}
	if cfg.FlushSize != defaults.FlushSize {
		t.Errorf("flush_size = %d", cfg.FlushSize)
	}
}

func TestApplyEnvOverrides_AllFields(t *testing.T) {
	t.Setenv(EnvLogPath, "/custom/log/Player.log")
	t.Setenv(EnvRollingWindowMin, "15")
	t.Setenv(EnvZoneDebounceSec, "0")
	t.Setenv(EnvFlushSize, "250")
	t.Setenv(EnvProgressEvery, "5000")
	t.Setenv(EnvLogLevel, "DEBUG")
	t.Setenv(EnvLogFormat, "json")

	cfg, err := ApplyEnvOverrides(DefaultConfig())
	if err != nil {
		t.Fatal(err)
	}

	if cfg.LogPath != "/custom/log/Player.log" {
		t.Errorf("log_path = %q", cfg.LogPath)
	}
	if cfg.RollingWindowMin != 15 || cfg.ZoneDebounceSec != 0 {
		t.Errorf("rolling_window_min = %d, zone_debounce_sec = %d", cfg.RollingWindowMin, cfg.ZoneDebounceSec)
	}
	if cfg.FlushSize != 250 || cfg.ProgressEvery != 5000 {
		t.Errorf("flush_size = %d, progress_every = %d", cfg.FlushSize, cfg.ProgressEvery)
	}
	if cfg.LogLevel != "debug" || cfg.LogFormat != "json" {
		t.Errorf("log_level = %q, log_format = %q", cfg.LogLevel, cfg.LogFormat)
	}
}

func TestApplyEnvOverrides_Discord(t *testing.T) {
	t.Setenv(EnvDiscordWebhook, " https://discord.example/api/webhooks/1/abc ")
	t.Setenv(EnvDiscordBatchSec, "10")

	cfg, err := ApplyEnvOverrides(DefaultConfig())
	if err != nil {
		t.Fatal(err)
	}
	if cfg.DiscordWebhookURL.Value() != "https://discord.example/api/webhooks/1/abc" {
		t.Errorf("webhook not applied or not trimmed")
	}
	if cfg.DiscordBatchSec != 10 {
		t.Errorf("discord_batch_sec = %d", cfg.DiscordBatchSec)
	}
}

func TestSecret_Redacted(t *testing.T) {
	s := Secret("https://discord.example/api/webhooks/1/abc")

	for _, got := range []string{s.String(), fmt.Sprintf("%v", s), fmt.Sprintf("%#v", s)} {
		if got != "[REDACTED]" {
			t.Errorf("formatted secret = %q", got)
		}
	}
	if s.IsEmpty() || !Secret("").IsEmpty() {
		t.Error("IsEmpty mismatch")
	}
}

func TestParseBool(t *testing.T) {
	trueValues := []string{"true", "TRUE", "True", "1", "yes", "YES", "on", "ON", " true ", " 1 "}
	for _, v := range trueValues {
		if !parseBool(v) {
			t.Errorf("parseBool(%q) should be true", v)
		}
	}

	falseValues := []string{"false", "FALSE", "0", "no", "off", "", "invalid", "anything"}
	for _, v := range falseValues {
		if parseBool(v) {
			t.Errorf("parseBool(%q) should be false", v)
		}
	}
}

func TestDataDir_EnvOverride(t *testing.T) {
	dir := t.TempDir()
	t.Setenv(EnvDataDir, dir)

	got, err := DataDir()
	if err != nil {
		t.Fatal(err)
	}
	if got != filepath.Clean(dir) {
		t.Errorf("DataDir() = %q, want %q", got, dir)
	}

	p, err := AliasDatabasePath()
	if err != nil {
		t.Fatal(err)
	}
	if p != filepath.Join(dir, "aliases.sqlite") {
		t.Errorf("AliasDatabasePath() = %q", p)
	}
}
