// ModSentry - Moderator Activity Tracking and Anomaly Response
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/modsentry

/*
Package metrics provides Prometheus metrics collection and export.

The package instruments the event pipeline end to end: audit event
processing, burst detection, mitigation outcomes, delivery queue depth
and throughput, reconciliation runs, cache pressure, platform API
latency and circuit breaker state.

Metrics are exposed at the /metrics endpoint in Prometheus text format:

	curl http://localhost:3858/metrics

All metric recording functions are safe for concurrent use. Label
cardinality is bounded: tiers, categories and error reasons come from
fixed constant sets, never from user or operator identifiers.

Example PromQL queries:

	# Events processed per second by category
	rate(modsentry_events_processed_total[5m])

	# Queue depth by tier
	modsentry_queue_depth

	# Mitigation failure ratio
	rate(modsentry_mitigations_failed_total[1h])
	/
	rate(modsentry_mitigations_attempted_total[1h])

	# p95 platform API latency
	histogram_quantile(0.95, rate(modsentry_platform_request_duration_seconds_bucket[5m]))
*/
package metrics
