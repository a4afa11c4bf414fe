package app

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/graaaaa/anatomydps/internal/config"
)

func intPtr(v int) *int { return &v }

func TestConfigService_UpdateAndGet(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	svc := ConfigService{ConfigPath: path}

	follow := false
	resp, err := svc.UpdateConfig(context.Background(), ConfigUpdateRequest{
		Port:             intPtr(9100),
		Follow:           &follow,
		RollingWindowMin: intPtr(10),
	})
	if err != nil {
		t.Fatal(err)
	}
	if !resp.Success || !resp.RestartRequired || resp.NewPort != 9100 {
		t.Errorf("response = %+v", resp)
	}

	got := svc.GetConfig(context.Background())
	if got.Port != 9100 || got.Follow || got.RollingWindowMin != 10 {
		t.Errorf("config = %+v", got)
	}
	if got.ZoneDebounceSec != config.DefaultConfig().ZoneDebounceSec {
		t.Errorf("untouched field changed: %+v", got)
	}
}

func TestConfigService_NoChanges(t *testing.T) {
	svc := ConfigService{ConfigPath: filepath.Join(t.TempDir(), "config.json")}
	resp, err := svc.UpdateConfig(context.Background(), ConfigUpdateRequest{})
	if err != nil {
		t.Fatal(err)
	}
	if resp.RestartRequired || resp.NewPort != 0 {
		t.Errorf("response = %+v", resp)
	}
}

func TestConfigService_Validation(t *testing.T) {
	svc := ConfigService{ConfigPath: filepath.Join(t.TempDir(), "config.json")}
	bad := "chatty"
	tests := []struct {
		name string
		req  ConfigUpdateRequest
	}{
		{"port", ConfigUpdateRequest{Port: intPtr(70000)}},
		{"window", ConfigUpdateRequest{RollingWindowMin: intPtr(0)}},
		{"debounce", ConfigUpdateRequest{ZoneDebounceSec: intPtr(-1)}},
		{"log level", ConfigUpdateRequest{LogLevel: &bad}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := svc.UpdateConfig(context.Background(), tt.req); !errors.Is(err, ErrInvalidConfig) {
				t.Errorf("err = %v, want ErrInvalidConfig", err)
			}
		})
	}
}
