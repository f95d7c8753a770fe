// ModSentry - Moderator Activity Tracking and Anomaly Response
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/modsentry

package tracker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/tomtom215/modsentry/internal/logging"
	"github.com/tomtom215/modsentry/internal/metrics"
	"github.com/tomtom215/modsentry/internal/models"
	"github.com/tomtom215/modsentry/internal/platform"
	"github.com/tomtom215/modsentry/internal/queue"
)

// Reconcile converges the enrolled set with platform reality in three
// phases: unenroll ex-privileged operators, enroll new role holders,
// then verify every remaining audit destination and refresh stale
// labels. Repeated failures trigger the handle cache invalidation so a
// stale-reference failure mode recovers without a restart.
func (t *Tracker) Reconcile(ctx context.Context) error {
	started := t.now()

	enrolled, unenrolled, err := t.reconcile(ctx)
	metrics.RecordReconciliation(t.now().Sub(started), enrolled, unenrolled, err)

	if err != nil {
		t.recordFailure()
		return err
	}
	t.resetFailures()

	logging.Info().
		Int("enrolled", enrolled).
		Int("unenrolled", unenrolled).
		Dur("duration", t.now().Sub(started)).
		Msg("Reconciliation complete")
	return nil
}

func (t *Tracker) reconcile(ctx context.Context) (enrolled, unenrolled int, err error) {
	members, err := t.api.ListPrivileged(ctx)
	if err != nil {
		return 0, 0, fmt.Errorf("list privileged members: %w", err)
	}
	byID := make(map[string]platform.Member, len(members))
	for _, m := range members {
		if m.Bot {
			continue
		}
		byID[m.ID] = m
	}

	tracked, err := t.store.List(ctx)
	if err != nil {
		return 0, 0, fmt.Errorf("list tracked operators: %w", err)
	}

	// Remove: tracked operators who lost the role.
	for _, op := range tracked {
		if _, still := byID[op.OperatorID]; still {
			continue
		}
		if err := t.Unenroll(ctx, op.OperatorID); err != nil {
			logging.Err(err).Str("operator", op.OperatorID).Msg("Unenroll failed during reconciliation")
			continue
		}
		unenrolled++
	}

	// Add: role holders not yet tracked.
	for id, member := range byID {
		if t.IsTracked(ctx, id) {
			continue
		}
		if err := t.Enroll(ctx, member); err != nil {
			logging.Err(err).Str("operator", id).Msg("Enroll failed during reconciliation")
			continue
		}
		enrolled++
	}

	// Verify: destinations still exist and labels are current.
	t.verifyDestinations(ctx, byID)

	if n, err := t.store.Count(ctx); err == nil {
		metrics.TrackedOperators.Set(float64(n))
	}
	return enrolled, unenrolled, nil
}

// verifyDestinations recreates missing audit destinations and refreshes
// labels that drifted from the operator's current state.
func (t *Tracker) verifyDestinations(ctx context.Context, current map[string]platform.Member) {
	tracked, err := t.store.List(ctx)
	if err != nil {
		logging.Err(err).Msg("Destination verification skipped")
		return
	}

	for _, op := range tracked {
		member, still := current[op.OperatorID]
		if !still {
			continue
		}

		// Reflect profile changes in the stored snapshot.
		changed := false
		if member.DisplayName != "" && member.DisplayName != op.DisplayName {
			op.DisplayName = member.DisplayName
			changed = true
		}
		if member.AvatarHash != op.AvatarHash {
			op.AvatarHash = member.AvatarHash
			changed = true
		}

		label := destinationLabel(op, t.cfg.InactivityDays, t.now())

		dest, err := t.api.GetDestination(ctx, op.DestinationRef)
		switch {
		case errors.Is(err, platform.ErrNotFound):
			newID, createErr := t.api.CreateDestination(ctx, label)
			if createErr != nil {
				logging.Err(createErr).Str("operator", op.OperatorID).Msg("Audit destination recreation failed")
				continue
			}
			logging.Warn().
				Str("operator", op.OperatorID).
				Str("old_destination", op.DestinationRef).
				Str("new_destination", newID).
				Msg("Audit destination missing, recreated")
			op.DestinationRef = newID
			t.cacheDestination(op.OperatorID, newID)
			changed = true
		case err != nil:
			logging.Err(err).Str("operator", op.OperatorID).Msg("Audit destination check failed")
			continue
		case dest.Name != label:
			if renameErr := t.api.RenameDestination(ctx, op.DestinationRef, label); renameErr != nil {
				logging.Err(renameErr).Str("operator", op.OperatorID).Msg("Audit destination rename failed")
			}
		}

		if changed {
			if err := t.store.Upsert(ctx, op); err != nil {
				logging.Err(err).Str("operator", op.OperatorID).Msg("Operator record update failed")
			}
		}
	}
}

// AutoScan is the startup catch-up: enroll current role holders without
// removing or verifying anyone, so a fresh process tracks immediately.
func (t *Tracker) AutoScan(ctx context.Context) error {
	members, err := t.api.ListPrivileged(ctx)
	if err != nil {
		return fmt.Errorf("list privileged members: %w", err)
	}

	var enrolled int
	for _, m := range members {
		if m.Bot || t.IsTracked(ctx, m.ID) {
			continue
		}
		if err := t.Enroll(ctx, m); err != nil {
			logging.Err(err).Str("operator", m.ID).Msg("Enroll failed during auto-scan")
			continue
		}
		enrolled++
	}

	logging.Info().Int("enrolled", enrolled).Msg("Startup auto-scan complete")
	return nil
}

// CheckInactivity flags operators with no recorded action inside the
// inactivity threshold. Advisory only, no role changes.
func (t *Tracker) CheckInactivity(ctx context.Context) error {
	tracked, err := t.store.List(ctx)
	if err != nil {
		return fmt.Errorf("list tracked operators: %w", err)
	}

	threshold := time.Duration(t.cfg.InactivityDays) * 24 * time.Hour
	now := t.now()

	var flagged int
	for _, op := range tracked {
		idle := now.Sub(op.IdleSince())
		if idle < threshold {
			continue
		}
		flagged++
		metrics.InactiveOperatorsFlagged.Inc()
		t.notifyInactive(ctx, op, idle)
	}

	logging.Info().
		Int("checked", len(tracked)).
		Int("flagged", flagged).
		Msg("Inactivity check complete")
	return nil
}

func (t *Tracker) notifyInactive(ctx context.Context, op *models.TrackedOperator, idle time.Duration) {
	days := int(idle.Hours() / 24)
	body := fmt.Sprintf(
		"Inactivity notice: operator %s has no recorded moderation activity for %d days (threshold %d).",
		op.DisplayName, days, t.cfg.InactivityDays,
	)

	if destID := t.Destination(ctx, op.OperatorID); destID != "" {
		t.queue.Enqueue(queue.Item{
			DestinationID: destID,
			Tier:          queue.TierLow,
			Message:       platform.Message{Content: body},
		})
	}
}

func (t *Tracker) recordFailure() {
	t.failMu.Lock()
	defer t.failMu.Unlock()

	t.consecutive++
	logging.Warn().
		Int("consecutive_failures", t.consecutive).
		Int("max", t.cfg.MaxConsecutiveFailures).
		Msg("Reconciliation failed")

	if t.consecutive >= t.cfg.MaxConsecutiveFailures {
		t.consecutive = 0
		t.InvalidateCache()
	}
}

func (t *Tracker) resetFailures() {
	t.failMu.Lock()
	t.consecutive = 0
	t.failMu.Unlock()
}
