// ModSentry - Moderator Activity Tracking and Anomaly Response
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/modsentry

// Package detection implements burst and pattern detection over operator
// actions: per-category sliding windows with thresholds, suspicious
// unban correlation against recent bans, and mass permission-change
// advisories. Detectors report findings; responding to them is the
// caller's concern.
package detection

import (
	"sync"
	"time"

	"github.com/tomtom215/modsentry/internal/config"
	"github.com/tomtom215/modsentry/internal/logging"
	"github.com/tomtom215/modsentry/internal/metrics"
	"github.com/tomtom215/modsentry/internal/models"
)

// AlertKind classifies a detection finding.
type AlertKind string

const (
	// AlertBurst means an operator crossed a per-category burst threshold.
	AlertBurst AlertKind = "burst"

	// AlertSuspiciousUnban means an operator unbanned a target they
	// themselves banned within the suspicious window.
	AlertSuspiciousUnban AlertKind = "suspicious_unban"

	// AlertMassPermission means an operator changed permissions on many
	// channels within the window. Advisory only.
	AlertMassPermission AlertKind = "mass_permission"
)

// Alert is a detection finding ready for alerting.
type Alert struct {
	Kind       AlertKind
	OperatorID string
	Category   models.ActionCategory
	TargetID   string
	Count      int
	Threshold  int

	// SinceBan is set for suspicious unbans: how long after their own
	// ban the operator issued the unban.
	SinceBan time.Duration
}

// Detector tracks per-operator action timestamps and evaluates the
// detection rules. Safe for concurrent use.
type Detector struct {
	cfg    config.DetectionConfig
	limits config.CacheConfig

	mu          sync.Mutex
	actions     map[string]map[models.ActionCategory][]time.Time
	banHistory  map[string]map[string]time.Time
	permChanges map[string][]time.Time
}

// NewDetector creates a detector with the given thresholds. The limits
// cap each per-operator history, oldest entries pruned first.
func NewDetector(cfg config.DetectionConfig, limits config.CacheConfig) *Detector {
	return &Detector{
		cfg:         cfg,
		limits:      limits,
		actions:     make(map[string]map[models.ActionCategory][]time.Time),
		banHistory:  make(map[string]map[string]time.Time),
		permChanges: make(map[string][]time.Time),
	}
}

// capNewest keeps at most max of the newest entries. Entries arrive in
// time order, so the oldest sit at the front.
func capNewest(entries []time.Time, max int) []time.Time {
	if max <= 0 || len(entries) <= max {
		return entries
	}
	return entries[len(entries)-max:]
}

// threshold returns the burst threshold for a category, or zero when the
// category is not burst-monitored.
func (d *Detector) threshold(cat models.ActionCategory) int {
	switch cat {
	case models.ActionBan:
		return d.cfg.BanThreshold
	case models.ActionTimeout:
		return d.cfg.TimeoutThreshold
	case models.ActionDelete:
		return d.cfg.DeleteThreshold
	default:
		return 0
	}
}

// RecordAction records one action and evaluates the burst rule. When the
// in-window count reaches the category threshold it returns a burst
// alert and clears that window, so one sustained burst produces exactly
// one alert until new actions accumulate again.
func (d *Detector) RecordAction(operatorID string, cat models.ActionCategory, at time.Time) *Alert {
	cat = cat.BurstCategory()

	d.mu.Lock()
	defer d.mu.Unlock()

	byCat := d.actions[operatorID]
	if byCat == nil {
		byCat = make(map[models.ActionCategory][]time.Time)
		d.actions[operatorID] = byCat
	}

	// Append and prune everything outside the window.
	cutoff := at.Add(-d.cfg.Window)
	window := append(byCat[cat], at)
	kept := window[:0]
	for _, t := range window {
		if t.After(cutoff) {
			kept = append(kept, t)
		}
	}
	kept = capNewest(kept, d.limits.ActionHistoryMax)
	byCat[cat] = kept

	threshold := d.threshold(cat)
	if threshold == 0 || len(kept) < threshold {
		return nil
	}

	count := len(kept)
	byCat[cat] = nil // debounce: restart the window after alerting

	metrics.BurstAlertsTriggered.WithLabelValues(string(cat)).Inc()
	logging.Warn().
		Str("operator", operatorID).
		Str("category", string(cat)).
		Int("count", count).
		Int("threshold", threshold).
		Msg("Burst threshold crossed")

	return &Alert{
		Kind:       AlertBurst,
		OperatorID: operatorID,
		Category:   cat,
		Count:      count,
		Threshold:  threshold,
	}
}

// RecordBan remembers who an operator banned, for suspicious-unban
// correlation. Entries older than BanHistoryTTL are pruned, and the
// history holds at most BanHistoryMax targets, oldest dropped first.
func (d *Detector) RecordBan(operatorID, targetID string, at time.Time) {
	d.mu.Lock()
	defer d.mu.Unlock()

	bans := d.banHistory[operatorID]
	if bans == nil {
		bans = make(map[string]time.Time)
		d.banHistory[operatorID] = bans
	}
	bans[targetID] = at

	cutoff := at.Add(-d.cfg.BanHistoryTTL)
	for target, t := range bans {
		if !t.After(cutoff) {
			delete(bans, target)
		}
	}

	for max := d.limits.BanHistoryMax; max > 0 && len(bans) > max; {
		oldest := ""
		for target, t := range bans {
			if oldest == "" || t.Before(bans[oldest]) {
				oldest = target
			}
		}
		delete(bans, oldest)
	}
}

// CheckUnban evaluates the suspicious-unban rule: an operator unbanning
// a target they banned within SuspiciousUnbanWindow. The matched ban
// record is consumed so the same pair cannot alert twice.
func (d *Detector) CheckUnban(operatorID, targetID string, at time.Time) *Alert {
	d.mu.Lock()
	defer d.mu.Unlock()

	banTime, ok := d.banHistory[operatorID][targetID]
	if !ok {
		return nil
	}

	sinceBan := at.Sub(banTime)
	if sinceBan > d.cfg.SuspiciousUnbanWindow {
		return nil
	}

	delete(d.banHistory[operatorID], targetID)

	metrics.SuspiciousUnbansDetected.Inc()
	logging.Warn().
		Str("operator", operatorID).
		Str("target", targetID).
		Dur("since_ban", sinceBan).
		Msg("Suspicious unban pattern")

	return &Alert{
		Kind:       AlertSuspiciousUnban,
		OperatorID: operatorID,
		Category:   models.ActionUnban,
		TargetID:   targetID,
		SinceBan:   sinceBan,
	}
}

// RecordPermissionChange records one permission change and evaluates the
// mass-change rule. The window clears after an alert.
func (d *Detector) RecordPermissionChange(operatorID string, at time.Time) *Alert {
	d.mu.Lock()
	defer d.mu.Unlock()

	cutoff := at.Add(-d.cfg.Window)
	changes := append(d.permChanges[operatorID], at)
	kept := changes[:0]
	for _, t := range changes {
		if t.After(cutoff) {
			kept = append(kept, t)
		}
	}
	kept = capNewest(kept, d.limits.PermissionChangesMax)
	d.permChanges[operatorID] = kept

	if d.cfg.PermissionThreshold == 0 || len(kept) < d.cfg.PermissionThreshold {
		return nil
	}

	count := len(kept)
	d.permChanges[operatorID] = nil

	metrics.MassPermissionAlerts.Inc()
	logging.Warn().
		Str("operator", operatorID).
		Int("count", count).
		Msg("Mass permission changes")

	return &Alert{
		Kind:       AlertMassPermission,
		OperatorID: operatorID,
		Category:   models.ActionPermissionChange,
		Count:      count,
		Threshold:  d.cfg.PermissionThreshold,
	}
}

// Forget drops all detection state for an unenrolled operator.
func (d *Detector) Forget(operatorID string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.actions, operatorID)
	delete(d.banHistory, operatorID)
	delete(d.permChanges, operatorID)
}
