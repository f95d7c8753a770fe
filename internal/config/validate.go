// ModSentry - Moderator Activity Tracking and Anomaly Response
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/modsentry

package config

import (
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks the configuration for errors beyond what struct tags
// can express.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("struct validation: %w", err)
	}

	if c.Platform.Timeout <= 0 {
		return fmt.Errorf("platform.timeout must be positive, got %v", c.Platform.Timeout)
	}
	if c.Platform.RetryAttempts < 0 {
		return fmt.Errorf("platform.retry_attempts must not be negative, got %d", c.Platform.RetryAttempts)
	}
	if c.Platform.RetryAttempts > 0 && c.Platform.RetryBaseDelay <= 0 {
		return fmt.Errorf("platform.retry_base_delay must be positive when retries are enabled, got %v", c.Platform.RetryBaseDelay)
	}

	if c.Detection.Window <= 0 {
		return fmt.Errorf("detection.window must be positive, got %v", c.Detection.Window)
	}
	for name, v := range map[string]int{
		"detection.ban_threshold":        c.Detection.BanThreshold,
		"detection.timeout_threshold":    c.Detection.TimeoutThreshold,
		"detection.delete_threshold":     c.Detection.DeleteThreshold,
		"detection.permission_threshold": c.Detection.PermissionThreshold,
	} {
		if v < 0 {
			return fmt.Errorf("%s must not be negative, got %d", name, v)
		}
	}

	if c.Cache.MessageCacheSize <= 0 {
		return fmt.Errorf("cache.message_cache_size must be positive, got %d", c.Cache.MessageCacheSize)
	}
	if c.Cache.MaxOperators <= 0 {
		return fmt.Errorf("cache.max_operators must be positive, got %d", c.Cache.MaxOperators)
	}

	if c.Queue.MaxSize <= 0 {
		return fmt.Errorf("queue.max_size must be positive, got %d", c.Queue.MaxSize)
	}
	if c.Queue.BatchSize <= 0 {
		return fmt.Errorf("queue.batch_size must be positive, got %d", c.Queue.BatchSize)
	}
	if c.Queue.ProcessInterval <= 0 {
		return fmt.Errorf("queue.process_interval must be positive, got %v", c.Queue.ProcessInterval)
	}
	if c.Queue.SendsPerSecond <= 0 {
		return fmt.Errorf("queue.sends_per_second must be positive, got %v", c.Queue.SendsPerSecond)
	}

	if _, err := time.LoadLocation(c.Scheduler.Timezone); err != nil {
		return fmt.Errorf("scheduler.timezone %q: %w", c.Scheduler.Timezone, err)
	}
	if _, _, err := ParseClock(c.Scheduler.ReconcileAt); err != nil {
		return fmt.Errorf("scheduler.reconcile_at: %w", err)
	}
	if _, _, err := ParseClock(c.Scheduler.InactivityAt); err != nil {
		return fmt.Errorf("scheduler.inactivity_at: %w", err)
	}

	if c.EventSource.Enabled {
		if c.EventSource.URL == "" {
			return fmt.Errorf("eventsource.url is required when the event source is enabled")
		}
		if c.EventSource.Topic == "" {
			return fmt.Errorf("eventsource.topic is required when the event source is enabled")
		}
		if c.EventSource.SubscribersCount <= 0 {
			return fmt.Errorf("eventsource.subscribers_count must be positive, got %d", c.EventSource.SubscribersCount)
		}
	}

	if c.Tracker.InactivityDays <= 0 {
		return fmt.Errorf("tracker.inactivity_days must be positive, got %d", c.Tracker.InactivityDays)
	}
	if c.Tracker.MaxConsecutiveFailures <= 0 {
		return fmt.Errorf("tracker.max_consecutive_failures must be positive, got %d", c.Tracker.MaxConsecutiveFailures)
	}

	return nil
}

// ParseClock parses a "HH:MM" wall-clock time.
func ParseClock(s string) (hour, minute int, err error) {
	t, err := time.Parse("15:04", s)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid clock time %q, want HH:MM: %w", s, err)
	}
	return t.Hour(), t.Minute(), nil
}
