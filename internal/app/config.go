package app

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/graaaaa/anatomydps/internal/config"
)

// ErrInvalidConfig is returned when a config update is out of range.
var ErrInvalidConfig = errors.New("invalid config")

// ConfigUsecase defines the configuration management use case.
type ConfigUsecase interface {
	// GetConfig returns the configuration stored on disk.
	GetConfig(ctx context.Context) ConfigResponse

	// UpdateConfig updates the configuration with the given changes.
	// Returns the result indicating success and whether restart is required.
	UpdateConfig(ctx context.Context, req ConfigUpdateRequest) (ConfigUpdateResponse, error)
}

// ConfigResponse represents the stored configuration.
type ConfigResponse struct {
	Port             int    `json:"port"`
	LogPath          string `json:"log_path"`
	AutoImport       bool   `json:"auto_import"`
	Follow           bool   `json:"follow"`
	RollingWindowMin int    `json:"rolling_window_min"`
	ZoneDebounceSec  int    `json:"zone_debounce_sec"`
	LogLevel         string `json:"log_level"`
	DiscordEnabled   bool   `json:"discord_enabled"`
}

// ConfigUpdateRequest contains optional fields for updating configuration.
type ConfigUpdateRequest struct {
	Port             *int    `json:"port,omitempty"`
	LogPath          *string `json:"log_path,omitempty"`
	AutoImport       *bool   `json:"auto_import,omitempty"`
	Follow           *bool   `json:"follow,omitempty"`
	RollingWindowMin *int    `json:"rolling_window_min,omitempty"`
	ZoneDebounceSec  *int    `json:"zone_debounce_sec,omitempty"`
	LogLevel         *string `json:"log_level,omitempty"`
}

// ConfigUpdateResponse indicates the result of a configuration update.
type ConfigUpdateResponse struct {
	Success         bool `json:"success"`
	RestartRequired bool `json:"restart_required"`
	NewPort         int  `json:"new_port,omitempty"`
}

// ConfigService implements ConfigUsecase.
type ConfigService struct {
	ConfigPath string
}

// GetConfig returns the current configuration.
func (s ConfigService) GetConfig(ctx context.Context) ConfigResponse {
	cfg, _ := config.LoadConfigFrom(s.ConfigPath)

	return ConfigResponse{
		Port:             cfg.Port,
		LogPath:          cfg.LogPath,
		AutoImport:       cfg.AutoImport,
		Follow:           cfg.Follow,
		RollingWindowMin: cfg.RollingWindowMin,
		ZoneDebounceSec:  cfg.ZoneDebounceSec,
		LogLevel:         cfg.LogLevel,
		DiscordEnabled:   !cfg.DiscordWebhookURL.IsEmpty(),
	}
}

// UpdateConfig validates and saves the changes. Every change takes effect
// on the next start.
func (s ConfigService) UpdateConfig(ctx context.Context, req ConfigUpdateRequest) (ConfigUpdateResponse, error) {
	cfg, err := config.LoadConfigFrom(s.ConfigPath)
	if err != nil {
		return ConfigUpdateResponse{}, fmt.Errorf("load config: %w", err)
	}

	originalPort := cfg.Port
	changed := false

	if req.Port != nil {
		if *req.Port < 1 || *req.Port > 65535 {
			return ConfigUpdateResponse{}, fmt.Errorf("%w: port must be between 1 and 65535", ErrInvalidConfig)
		}
		cfg.Port = *req.Port
		changed = true
	}
	if req.LogPath != nil {
		cfg.LogPath = strings.TrimSpace(*req.LogPath)
		changed = true
	}
	if req.AutoImport != nil {
		cfg.AutoImport = *req.AutoImport
		changed = true
	}
	if req.Follow != nil {
		cfg.Follow = *req.Follow
		changed = true
	}
	if req.RollingWindowMin != nil {
		if *req.RollingWindowMin < 1 {
			return ConfigUpdateResponse{}, fmt.Errorf("%w: rolling_window_min must be positive", ErrInvalidConfig)
		}
		cfg.RollingWindowMin = *req.RollingWindowMin
		changed = true
	}
	if req.ZoneDebounceSec != nil {
		if *req.ZoneDebounceSec < 0 {
			return ConfigUpdateResponse{}, fmt.Errorf("%w: zone_debounce_sec must be non-negative", ErrInvalidConfig)
		}
		cfg.ZoneDebounceSec = *req.ZoneDebounceSec
		changed = true
	}
	if req.LogLevel != nil {
		switch lvl := strings.ToLower(*req.LogLevel); lvl {
		case "debug", "info", "warn", "error":
			cfg.LogLevel = lvl
		default:
			return ConfigUpdateResponse{}, fmt.Errorf("%w: unknown log_level %q", ErrInvalidConfig, *req.LogLevel)
		}
		changed = true
	}

	if changed {
		if err := config.SaveConfigTo(cfg, s.ConfigPath); err != nil {
			return ConfigUpdateResponse{}, fmt.Errorf("save config: %w", err)
		}
	}

	resp := ConfigUpdateResponse{
		Success:         true,
		RestartRequired: changed,
	}
	if cfg.Port != originalPort {
		resp.NewPort = cfg.Port
	}
	return resp, nil
}
