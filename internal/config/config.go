// ModSentry - Moderator Activity Tracking and Anomaly Response
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/modsentry

// Package config provides layered configuration loading for ModSentry
// using Koanf v2: struct defaults, then an optional YAML file, then
// environment variables.
package config

import (
	"time"
)

// Config is the root configuration structure.
type Config struct {
	Platform    PlatformConfig    `koanf:"platform"`
	Store       StoreConfig       `koanf:"store"`
	EventSource EventSourceConfig `koanf:"eventsource"`
	Tracker     TrackerConfig     `koanf:"tracker"`
	Detection   DetectionConfig   `koanf:"detection"`
	Cache       CacheConfig       `koanf:"cache"`
	Queue       QueueConfig       `koanf:"queue"`
	Scheduler   SchedulerConfig   `koanf:"scheduler"`
	Server      ServerConfig      `koanf:"server"`
	Logging     LoggingConfig     `koanf:"logging"`
}

// PlatformConfig configures the connection to the host platform's REST API
// (privilege directory and destination channels).
type PlatformConfig struct {
	// BaseURL is the platform API root, e.g. "https://platform.example/api".
	BaseURL string `koanf:"base_url" validate:"required,url"`

	// Token authenticates ModSentry against the platform API.
	Token string `koanf:"token"`

	// PrivilegedRole is the role id that marks an account as an operator.
	PrivilegedRole string `koanf:"privileged_role" validate:"required"`

	// IncidentDestination receives broadcast alerts when a mitigation
	// succeeds. Optional; broadcast alerts are skipped when empty.
	IncidentDestination string `koanf:"incident_destination"`

	// PingTarget is mentioned in critical alerts (e.g. the owner account).
	PingTarget string `koanf:"ping_target"`

	// Timeout bounds each outbound platform call.
	Timeout time.Duration `koanf:"timeout"`

	// RetryAttempts caps retries for transient platform errors.
	RetryAttempts int `koanf:"retry_attempts"`

	// RetryBaseDelay is the initial backoff delay, doubled per attempt.
	RetryBaseDelay time.Duration `koanf:"retry_base_delay"`

	// BreakerThreshold is the consecutive-failure count that opens the
	// destination-send circuit breaker.
	BreakerThreshold uint32 `koanf:"breaker_threshold"`

	// BreakerCooldown is how long the breaker stays open before probing.
	BreakerCooldown time.Duration `koanf:"breaker_cooldown"`
}

// StoreConfig configures the durable operator store.
type StoreConfig struct {
	// Path is the BadgerDB directory. Empty selects the in-memory store
	// (useful for tests and ephemeral deployments).
	Path string `koanf:"path"`
}

// EventSourceConfig configures the NATS JetStream audit event feed.
type EventSourceConfig struct {
	Enabled bool `koanf:"enabled"`

	// URL of the NATS server carrying the platform audit stream.
	URL string `koanf:"url"`

	// Topic carrying classified audit events.
	Topic string `koanf:"topic"`

	// StreamName binds the subscriber to an existing JetStream stream.
	StreamName string `koanf:"stream_name"`

	// DurableName is the durable consumer prefix.
	DurableName string `koanf:"durable_name"`

	// QueueGroup load-balances across instances.
	QueueGroup string `koanf:"queue_group"`

	// SubscribersCount is the number of concurrent pull subscribers.
	SubscribersCount int `koanf:"subscribers_count"`

	// AckWaitTimeout bounds redelivery of unacknowledged events.
	AckWaitTimeout time.Duration `koanf:"ack_wait_timeout"`

	// MaxReconnects and ReconnectWait govern NATS connection recovery.
	MaxReconnects int           `koanf:"max_reconnects"`
	ReconnectWait time.Duration `koanf:"reconnect_wait"`
}

// TrackerConfig configures operator enrollment and reconciliation.
type TrackerConfig struct {
	// DestinationTTL bounds the destination handle cache.
	DestinationTTL time.Duration `koanf:"destination_ttl"`

	// MaxConsecutiveFailures triggers the self-heal cache invalidation.
	MaxConsecutiveFailures int `koanf:"max_consecutive_failures"`

	// InactivityDays is the advisory inactivity threshold.
	InactivityDays int `koanf:"inactivity_days"`

	// AutoScanOnStart runs an enrollment-only scan at process startup.
	AutoScanOnStart bool `koanf:"auto_scan_on_start"`
}

// DetectionConfig configures burst detection thresholds. A zero threshold
// disables monitoring for that category.
type DetectionConfig struct {
	// Window is the sliding window for all burst categories.
	Window time.Duration `koanf:"window"`

	// BanThreshold, TimeoutThreshold and DeleteThreshold are the
	// per-category burst trigger counts within Window.
	BanThreshold     int `koanf:"ban_threshold"`
	TimeoutThreshold int `koanf:"timeout_threshold"`
	DeleteThreshold  int `koanf:"delete_threshold"`

	// PermissionThreshold triggers the advisory mass-permission alert.
	PermissionThreshold int `koanf:"permission_threshold"`

	// SuspiciousUnbanWindow flags an unban issued within this duration
	// of the same operator's own ban of the same target.
	SuspiciousUnbanWindow time.Duration `koanf:"suspicious_unban_window"`

	// BanHistoryTTL bounds how long ban records are kept for the
	// suspicious-unban check.
	BanHistoryTTL time.Duration `koanf:"ban_history_ttl"`
}

// CacheConfig bounds the per-operator activity caches.
type CacheConfig struct {
	// MessageCacheSize is the per-operator cached message cap.
	MessageCacheSize int `koanf:"message_cache_size"`

	// MessageCacheTTL is the maximum age of a cached message.
	MessageCacheTTL time.Duration `koanf:"message_cache_ttl"`

	// MaxOperators caps how many operators hold a message cache at once.
	MaxOperators int `koanf:"max_operators"`

	// ActionHistoryMax, BanHistoryMax, PermissionChangesMax and
	// TargetActionsMax cap the corresponding per-operator histories.
	ActionHistoryMax     int `koanf:"action_history_max"`
	BanHistoryMax        int `koanf:"ban_history_max"`
	PermissionChangesMax int `koanf:"permission_changes_max"`
	TargetActionsMax     int `koanf:"target_actions_max"`

	// MaxAttachments caps downloaded attachments per cached message.
	MaxAttachments int `koanf:"max_attachments"`

	// MaxAttachmentBytes skips attachments larger than this.
	MaxAttachmentBytes int64 `koanf:"max_attachment_bytes"`
}

// QueueConfig configures the delivery queue.
type QueueConfig struct {
	// MaxSize caps queued items; overflow follows the priority
	// eviction policy.
	MaxSize int `koanf:"max_size"`

	// BatchSize is the maximum items popped per worker wake-up.
	BatchSize int `koanf:"batch_size"`

	// ProcessInterval is the worker wake-up interval.
	ProcessInterval time.Duration `koanf:"process_interval"`

	// SendsPerSecond paces outbound sends to respect platform rate limits.
	SendsPerSecond float64 `koanf:"sends_per_second"`

	// CleanupInterval is how often the worker triggers cache cleanup.
	CleanupInterval time.Duration `koanf:"cleanup_interval"`

	// DrainTimeout bounds the graceful drain at shutdown.
	DrainTimeout time.Duration `koanf:"drain_timeout"`
}

// SchedulerConfig configures the daily control loops.
type SchedulerConfig struct {
	// Timezone is the IANA zone for the daily run times.
	Timezone string `koanf:"timezone"`

	// ReconcileAt is the daily reconciliation time, "HH:MM".
	ReconcileAt string `koanf:"reconcile_at" validate:"required"`

	// InactivityAt is the daily inactivity check time, "HH:MM".
	InactivityAt string `koanf:"inactivity_at" validate:"required"`

	// ErrorRetryInterval is the fallback delay after a failed run.
	ErrorRetryInterval time.Duration `koanf:"error_retry_interval"`
}

// Location resolves the configured timezone. Validation guarantees the
// zone loads; UTC is the fallback for an unvalidated config.
func (c *SchedulerConfig) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// ServerConfig configures the admin HTTP server.
type ServerConfig struct {
	Host    string        `koanf:"host"`
	Port    int           `koanf:"port" validate:"min=1,max=65535"`
	Timeout time.Duration `koanf:"timeout"`

	// RateLimitReqs requests per RateLimitWindow per client IP.
	RateLimitReqs   int           `koanf:"rate_limit_reqs"`
	RateLimitWindow time.Duration `koanf:"rate_limit_window"`

	// CORSOrigins lists allowed origins for the admin UI.
	CORSOrigins []string `koanf:"cors_origins"`
}

// LoggingConfig configures zerolog output.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
	Caller bool   `koanf:"caller"`
}
