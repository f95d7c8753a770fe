// ModSentry - Moderator Activity Tracking and Anomaly Response
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/modsentry

package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// DefaultConfigPaths lists the paths searched for a config file, in order.
// The first file found wins.
var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
	"/etc/modsentry/config.yaml",
	"/etc/modsentry/config.yml",
}

// ConfigPathEnvVar overrides the config file path.
const ConfigPathEnvVar = "MODSENTRY_CONFIG"

// envPrefix is stripped from environment variables before mapping them
// to config paths: MODSENTRY_QUEUE_MAX_SIZE -> queue.max_size.
const envPrefix = "MODSENTRY_"

// Default returns a Config with all default values. The burst thresholds
// and window match the behavior the platform operators tuned in production:
// five bans, eight timeouts or ten deletes within five minutes.
func Default() *Config {
	return &Config{
		Platform: PlatformConfig{
			BaseURL:          "",
			Token:            "",
			PrivilegedRole:   "",
			Timeout:          10 * time.Second,
			RetryAttempts:    3,
			RetryBaseDelay:   time.Second,
			BreakerThreshold: 5,
			BreakerCooldown:  30 * time.Second,
		},
		Store: StoreConfig{
			Path: "/data/modsentry",
		},
		EventSource: EventSourceConfig{
			Enabled:          false,
			URL:              "nats://127.0.0.1:4222",
			Topic:            "audit.actions",
			DurableName:      "modsentry",
			QueueGroup:       "modsentry",
			SubscribersCount: 1,
			AckWaitTimeout:   30 * time.Second,
			MaxReconnects:    -1, // retry forever
			ReconnectWait:    2 * time.Second,
		},
		Tracker: TrackerConfig{
			DestinationTTL:         5 * time.Minute,
			MaxConsecutiveFailures: 3,
			InactivityDays:         7,
			AutoScanOnStart:        true,
		},
		Detection: DetectionConfig{
			Window:                5 * time.Minute,
			BanThreshold:          5,
			TimeoutThreshold:      8,
			DeleteThreshold:       10,
			PermissionThreshold:   5,
			SuspiciousUnbanWindow: time.Hour,
			BanHistoryTTL:         24 * time.Hour,
		},
		Cache: CacheConfig{
			MessageCacheSize:     50,
			MessageCacheTTL:      time.Hour,
			MaxOperators:         100,
			ActionHistoryMax:     100,
			BanHistoryMax:        200,
			PermissionChangesMax: 100,
			TargetActionsMax:     50,
			MaxAttachments:       5,
			MaxAttachmentBytes:   8 << 20, // 8MB
		},
		Queue: QueueConfig{
			MaxSize:         500,
			BatchSize:       5,
			ProcessInterval: 2 * time.Second,
			SendsPerSecond:  1.5,
			CleanupInterval: 5 * time.Minute,
			DrainTimeout:    10 * time.Second,
		},
		Scheduler: SchedulerConfig{
			Timezone:           "America/New_York",
			ReconcileAt:        "00:00",
			InactivityAt:       "12:00",
			ErrorRetryInterval: time.Hour,
		},
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            3858,
			Timeout:         30 * time.Second,
			RateLimitReqs:   100,
			RateLimitWindow: time.Minute,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Caller: false,
		},
	}
}

// Load loads configuration with layered sources:
//  1. Built-in defaults
//  2. Optional YAML config file
//  3. Environment variables (highest priority)
func Load() (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(Default(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("load defaults: %w", err)
	}

	if path := findConfigFile(); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("load config file %s: %w", path, err)
		}
	}

	envProvider := env.Provider(envPrefix, ".", envTransformFunc)
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("load environment variables: %w", err)
	}

	if err := processSliceFields(k); err != nil {
		return nil, fmt.Errorf("process slice fields: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("unmarshal configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// findConfigFile searches for a config file in the default paths.
func findConfigFile() string {
	if envPath := os.Getenv(ConfigPathEnvVar); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
	}
	for _, path := range DefaultConfigPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

// sliceConfigPaths lists config paths parsed as comma-separated slices
// when supplied via environment variables.
var sliceConfigPaths = []string{
	"server.cors_origins",
}

// processSliceFields converts comma-separated string values to slices for
// known slice fields. Env vars arrive as strings; the config expects slices.
func processSliceFields(k *koanf.Koanf) error {
	for _, path := range sliceConfigPaths {
		val := k.Get(path)
		if val == nil {
			continue
		}
		strVal, ok := val.(string)
		if !ok || strVal == "" {
			continue
		}

		parts := strings.Split(strVal, ",")
		trimmed := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				trimmed = append(trimmed, p)
			}
		}
		if len(trimmed) > 0 {
			if err := k.Set(path, trimmed); err != nil {
				return fmt.Errorf("set %s: %w", path, err)
			}
		}
	}
	return nil
}

// envTransformFunc maps environment variable names to koanf config paths.
// The first underscore after the prefix separates the section from the key:
//
//	MODSENTRY_QUEUE_MAX_SIZE    -> queue.max_size
//	MODSENTRY_PLATFORM_BASE_URL -> platform.base_url
//	MODSENTRY_LOGGING_LEVEL     -> logging.level
func envTransformFunc(key string) string {
	key = strings.ToLower(strings.TrimPrefix(key, envPrefix))
	section, rest, found := strings.Cut(key, "_")
	if !found {
		return key
	}
	return section + "." + rest
}
