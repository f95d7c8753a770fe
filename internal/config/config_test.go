// ModSentry - Moderator Activity Tracking and Anomaly Response
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/modsentry

package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func validConfig() *Config {
	cfg := Default()
	cfg.Platform.BaseURL = "https://platform.example/api"
	cfg.Platform.PrivilegedRole = "role-123"
	return cfg
}

func TestDefaultConfig(t *testing.T) {
	cfg := Default()

	if cfg.Detection.Window != 5*time.Minute {
		t.Errorf("Detection.Window = %v, want 5m", cfg.Detection.Window)
	}
	if cfg.Detection.BanThreshold != 5 {
		t.Errorf("Detection.BanThreshold = %d, want 5", cfg.Detection.BanThreshold)
	}
	if cfg.Detection.TimeoutThreshold != 8 {
		t.Errorf("Detection.TimeoutThreshold = %d, want 8", cfg.Detection.TimeoutThreshold)
	}
	if cfg.Detection.DeleteThreshold != 10 {
		t.Errorf("Detection.DeleteThreshold = %d, want 10", cfg.Detection.DeleteThreshold)
	}
	if cfg.Detection.SuspiciousUnbanWindow != time.Hour {
		t.Errorf("Detection.SuspiciousUnbanWindow = %v, want 1h", cfg.Detection.SuspiciousUnbanWindow)
	}
	if cfg.Cache.MessageCacheSize != 50 {
		t.Errorf("Cache.MessageCacheSize = %d, want 50", cfg.Cache.MessageCacheSize)
	}
	if cfg.Tracker.InactivityDays != 7 {
		t.Errorf("Tracker.InactivityDays = %d, want 7", cfg.Tracker.InactivityDays)
	}
	if cfg.Queue.MaxSize != 500 {
		t.Errorf("Queue.MaxSize = %d, want 500", cfg.Queue.MaxSize)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:   "valid config",
			mutate: func(c *Config) {},
		},
		{
			name:    "missing base url",
			mutate:  func(c *Config) { c.Platform.BaseURL = "" },
			wantErr: "BaseURL",
		},
		{
			name:    "missing privileged role",
			mutate:  func(c *Config) { c.Platform.PrivilegedRole = "" },
			wantErr: "PrivilegedRole",
		},
		{
			name:    "negative retry attempts",
			mutate:  func(c *Config) { c.Platform.RetryAttempts = -1 },
			wantErr: "retry_attempts",
		},
		{
			name:    "zero detection window",
			mutate:  func(c *Config) { c.Detection.Window = 0 },
			wantErr: "detection.window",
		},
		{
			name:    "negative ban threshold",
			mutate:  func(c *Config) { c.Detection.BanThreshold = -1 },
			wantErr: "ban_threshold",
		},
		{
			name:    "invalid port",
			mutate:  func(c *Config) { c.Server.Port = 70000 },
			wantErr: "Port",
		},
		{
			name:    "bad reconcile time",
			mutate:  func(c *Config) { c.Scheduler.ReconcileAt = "25:00" },
			wantErr: "reconcile_at",
		},
		{
			name:    "bad timezone",
			mutate:  func(c *Config) { c.Scheduler.Timezone = "Mars/Olympus" },
			wantErr: "timezone",
		},
		{
			name:    "zero queue size",
			mutate:  func(c *Config) { c.Queue.MaxSize = 0 },
			wantErr: "queue.max_size",
		},
		{
			name: "event source enabled without url",
			mutate: func(c *Config) {
				c.EventSource.Enabled = true
				c.EventSource.URL = ""
			},
			wantErr: "eventsource.url",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("Validate() unexpected error: %v", err)
				}
				return
			}
			if err == nil {
				t.Fatalf("Validate() = nil, want error containing %q", tt.wantErr)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() error = %v, want error containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestParseClock(t *testing.T) {
	tests := []struct {
		in         string
		hour, min  int
		wantErr    bool
	}{
		{in: "00:00", hour: 0, min: 0},
		{in: "12:00", hour: 12, min: 0},
		{in: "23:59", hour: 23, min: 59},
		{in: "24:00", wantErr: true},
		{in: "12:60", wantErr: true},
		{in: "noon", wantErr: true},
		{in: "", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			h, m, err := ParseClock(tt.in)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("ParseClock(%q) = nil error, want error", tt.in)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseClock(%q) error: %v", tt.in, err)
			}
			if h != tt.hour || m != tt.min {
				t.Errorf("ParseClock(%q) = %d:%d, want %d:%d", tt.in, h, m, tt.hour, tt.min)
			}
		})
	}
}

func TestEnvTransformFunc(t *testing.T) {
	tests := []struct {
		env  string
		want string
	}{
		{"MODSENTRY_QUEUE_MAX_SIZE", "queue.max_size"},
		{"MODSENTRY_PLATFORM_BASE_URL", "platform.base_url"},
		{"MODSENTRY_LOGGING_LEVEL", "logging.level"},
		{"MODSENTRY_DETECTION_BAN_THRESHOLD", "detection.ban_threshold"},
		{"MODSENTRY_SERVER_CORS_ORIGINS", "server.cors_origins"},
	}
	for _, tt := range tests {
		if got := envTransformFunc(tt.env); got != tt.want {
			t.Errorf("envTransformFunc(%q) = %q, want %q", tt.env, got, tt.want)
		}
	}
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("MODSENTRY_PLATFORM_BASE_URL", "https://platform.example/api")
	t.Setenv("MODSENTRY_PLATFORM_PRIVILEGED_ROLE", "role-9")
	t.Setenv("MODSENTRY_QUEUE_MAX_SIZE", "42")
	t.Setenv("MODSENTRY_LOGGING_LEVEL", "debug")
	t.Setenv("MODSENTRY_SERVER_CORS_ORIGINS", "https://a.example, https://b.example")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.Platform.BaseURL != "https://platform.example/api" {
		t.Errorf("Platform.BaseURL = %q", cfg.Platform.BaseURL)
	}
	if cfg.Queue.MaxSize != 42 {
		t.Errorf("Queue.MaxSize = %d, want 42", cfg.Queue.MaxSize)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("Logging.Level = %q, want debug", cfg.Logging.Level)
	}
	want := []string{"https://a.example", "https://b.example"}
	if len(cfg.Server.CORSOrigins) != len(want) {
		t.Fatalf("Server.CORSOrigins = %v, want %v", cfg.Server.CORSOrigins, want)
	}
	for i := range want {
		if cfg.Server.CORSOrigins[i] != want[i] {
			t.Errorf("Server.CORSOrigins[%d] = %q, want %q", i, cfg.Server.CORSOrigins[i], want[i])
		}
	}
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := []byte(`
platform:
  base_url: https://file.example/api
  privileged_role: role-file
detection:
  ban_threshold: 3
`)
	if err := os.WriteFile(path, content, 0o600); err != nil {
		t.Fatalf("write config file: %v", err)
	}
	t.Setenv(ConfigPathEnvVar, path)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.Platform.BaseURL != "https://file.example/api" {
		t.Errorf("Platform.BaseURL = %q", cfg.Platform.BaseURL)
	}
	if cfg.Detection.BanThreshold != 3 {
		t.Errorf("Detection.BanThreshold = %d, want 3", cfg.Detection.BanThreshold)
	}
	// Unset keys keep defaults.
	if cfg.Detection.TimeoutThreshold != 8 {
		t.Errorf("Detection.TimeoutThreshold = %d, want 8", cfg.Detection.TimeoutThreshold)
	}
}
