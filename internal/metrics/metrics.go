// ModSentry - Moderator Activity Tracking and Anomaly Response
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/modsentry

package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Event Processing Metrics
	EventsProcessed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "modsentry_events_processed_total",
			Help: "Total number of audit events processed",
		},
		[]string{"category"},
	)

	EventsDiscarded = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "modsentry_events_discarded_total",
			Help: "Total number of audit events discarded",
		},
		[]string{"reason"}, // "untracked", "malformed", "unknown_category"
	)

	EventProcessingDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "modsentry_event_processing_duration_seconds",
			Help:    "Duration of audit event processing in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	// Detection Metrics
	BurstAlertsTriggered = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "modsentry_burst_alerts_total",
			Help: "Total number of burst alerts triggered",
		},
		[]string{"category"},
	)

	SuspiciousUnbansDetected = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "modsentry_suspicious_unbans_total",
			Help: "Total number of suspicious unban patterns detected",
		},
	)

	MassPermissionAlerts = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "modsentry_mass_permission_alerts_total",
			Help: "Total number of mass permission-change advisories",
		},
	)

	// Mitigation Metrics
	MitigationsAttempted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "modsentry_mitigations_attempted_total",
			Help: "Total number of privilege revocations attempted",
		},
	)

	MitigationsSucceeded = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "modsentry_mitigations_succeeded_total",
			Help: "Total number of privilege revocations that succeeded",
		},
	)

	MitigationsFailed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "modsentry_mitigations_failed_total",
			Help: "Total number of privilege revocations that failed",
		},
		[]string{"reason"}, // "forbidden", "not_found", "api_error"
	)

	// Delivery Queue Metrics
	QueueDepth = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "modsentry_queue_depth",
			Help: "Current number of queued deliveries by priority tier",
		},
		[]string{"tier"}, // "critical", "high", "normal", "low"
	)

	QueueEnqueued = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "modsentry_queue_enqueued_total",
			Help: "Total number of deliveries enqueued",
		},
		[]string{"tier"},
	)

	QueueEvicted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "modsentry_queue_evicted_total",
			Help: "Total number of queued deliveries evicted to admit higher-priority work",
		},
		[]string{"tier"},
	)

	QueueRejected = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "modsentry_queue_rejected_total",
			Help: "Total number of arriving deliveries rejected because the queue was full",
		},
		[]string{"tier"},
	)

	QueueDelivered = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "modsentry_queue_delivered_total",
			Help: "Total number of deliveries sent to their destinations",
		},
	)

	QueueDeliveryFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "modsentry_queue_delivery_failures_total",
			Help: "Total number of deliveries abandoned after retries",
		},
	)

	QueueDrainLost = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "modsentry_queue_drain_lost_total",
			Help: "Total number of deliveries lost at shutdown drain timeout",
		},
	)

	QueueBatchSize = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "modsentry_queue_batch_size",
			Help:    "Number of deliveries processed per worker wake-up",
			Buckets: []float64{1, 2, 3, 5, 10, 25},
		},
	)

	// Reconciliation Metrics
	ReconciliationRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "modsentry_reconciliation_runs_total",
			Help: "Total number of reconciliation runs",
		},
		[]string{"result"}, // "success", "failure"
	)

	ReconciliationDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "modsentry_reconciliation_duration_seconds",
			Help:    "Duration of reconciliation runs in seconds",
			Buckets: []float64{0.1, 0.5, 1, 5, 10, 30, 60, 120},
		},
	)

	ReconciliationDrift = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "modsentry_reconciliation_drift",
			Help: "Operators added or removed by the last reconciliation run",
		},
		[]string{"direction"}, // "enrolled", "unenrolled"
	)

	TrackedOperators = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "modsentry_tracked_operators",
			Help: "Current number of tracked operators",
		},
	)

	InactiveOperatorsFlagged = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "modsentry_inactive_operators_flagged_total",
			Help: "Total number of inactivity advisories issued",
		},
	)

	// Activity Cache Metrics
	CacheEntries = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "modsentry_cache_entries",
			Help: "Current number of cached entries",
		},
		[]string{"cache_type"}, // "message", "ban_history", "action_history"
	)

	CacheEvictions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "modsentry_cache_evictions_total",
			Help: "Total number of cache evictions",
		},
		[]string{"cache_type", "reason"}, // reason: "capacity", "ttl", "operator_removed"
	)

	CacheAttachmentsStored = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "modsentry_cache_attachments_stored_total",
			Help: "Total number of message attachments cached",
		},
	)

	CacheAttachmentsSkipped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "modsentry_cache_attachments_skipped_total",
			Help: "Total number of attachments skipped",
		},
		[]string{"reason"}, // "type", "size", "fetch_error", "over_limit"
	)

	// Platform API Metrics
	PlatformRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "modsentry_platform_requests_total",
			Help: "Total number of platform API requests",
		},
		[]string{"operation", "result"}, // result: "success", "failure", "rejected"
	)

	PlatformRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "modsentry_platform_request_duration_seconds",
			Help:    "Duration of platform API requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation"},
	)

	PlatformRetries = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "modsentry_platform_retries_total",
			Help: "Total number of platform API retry attempts",
		},
	)

	// Circuit Breaker Metrics
	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "modsentry_circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	CircuitBreakerTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "modsentry_circuit_breaker_state_transitions_total",
			Help: "Total number of circuit breaker state transitions",
		},
		[]string{"name", "from_state", "to_state"},
	)

	// Event Source Metrics
	SourceMessagesConsumed = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "modsentry_source_messages_consumed_total",
			Help: "Total number of messages consumed from the audit stream",
		},
	)

	SourceMessagesParseFailed = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "modsentry_source_messages_parse_failed_total",
			Help: "Total number of audit stream messages that failed to parse",
		},
	)

	// API Metrics
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "modsentry_api_requests_total",
			Help: "Total number of admin API requests",
		},
		[]string{"method", "endpoint", "status_code"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "modsentry_api_request_duration_seconds",
			Help:    "Admin API request duration in seconds",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		},
		[]string{"method", "endpoint"},
	)

	// System Metrics
	AppInfo = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "modsentry_app_info",
			Help: "Application version and build information",
		},
		[]string{"version", "go_version"},
	)
)

// tierNames maps priority tier ordinals to label values.
var tierNames = [...]string{"critical", "high", "normal", "low"}

// TierLabel returns the metric label for a priority tier ordinal.
func TierLabel(tier int) string {
	if tier < 0 || tier >= len(tierNames) {
		return "unknown"
	}
	return tierNames[tier]
}

// RecordEvent records a processed audit event.
func RecordEvent(category string, duration time.Duration) {
	EventsProcessed.WithLabelValues(category).Inc()
	EventProcessingDuration.Observe(duration.Seconds())
}

// RecordMitigation records a privilege revocation attempt and its outcome.
func RecordMitigation(err error, reason string) {
	MitigationsAttempted.Inc()
	if err != nil {
		MitigationsFailed.WithLabelValues(reason).Inc()
		return
	}
	MitigationsSucceeded.Inc()
}

// RecordPlatformRequest records a platform API call.
func RecordPlatformRequest(operation string, duration time.Duration, err error) {
	PlatformRequestDuration.WithLabelValues(operation).Observe(duration.Seconds())
	result := "success"
	if err != nil {
		result = "failure"
	}
	PlatformRequests.WithLabelValues(operation, result).Inc()
}

// RecordReconciliation records a reconciliation run.
func RecordReconciliation(duration time.Duration, enrolled, unenrolled int, err error) {
	ReconciliationDuration.Observe(duration.Seconds())
	if err != nil {
		ReconciliationRuns.WithLabelValues("failure").Inc()
		return
	}
	ReconciliationRuns.WithLabelValues("success").Inc()
	ReconciliationDrift.WithLabelValues("enrolled").Set(float64(enrolled))
	ReconciliationDrift.WithLabelValues("unenrolled").Set(float64(unenrolled))
}

// UpdateQueueDepth sets the queue depth gauges from a per-tier snapshot.
func UpdateQueueDepth(depths map[int]int) {
	for tier, name := range tierNames {
		QueueDepth.WithLabelValues(name).Set(float64(depths[tier]))
	}
}

// RecordAPIRequest records one admin API request.
func RecordAPIRequest(method, endpoint string, statusCode int, duration time.Duration) {
	APIRequestsTotal.WithLabelValues(method, endpoint, strconv.Itoa(statusCode)).Inc()
	APIRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}
