// ModSentry - Moderator Activity Tracking and Anomaly Response
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/modsentry

// Package tracker owns the enrolled-operator lifecycle and the event
// classification path. Every audit event enters through
// ClassifyAndRecord; reconciliation and the inactivity check keep the
// enrolled set consistent with platform reality.
package tracker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/tomtom215/modsentry/internal/activity"
	"github.com/tomtom215/modsentry/internal/config"
	"github.com/tomtom215/modsentry/internal/detection"
	"github.com/tomtom215/modsentry/internal/logging"
	"github.com/tomtom215/modsentry/internal/mitigation"
	"github.com/tomtom215/modsentry/internal/models"
	"github.com/tomtom215/modsentry/internal/platform"
	"github.com/tomtom215/modsentry/internal/queue"
	"github.com/tomtom215/modsentry/internal/store"
)

// Tracker coordinates the operator store, activity cache, detectors and
// mitigation around the platform APIs.
type Tracker struct {
	cfg       config.TrackerConfig
	store     store.OperatorStore
	api       platform.API
	cache     *activity.Cache
	detector  *detection.Detector
	responder *mitigation.Controller
	queue     *queue.Queue

	// destCache holds resolved destination handles so the hot path never
	// round-trips the platform. Entries expire after DestinationTTL.
	destMu    sync.Mutex
	destCache map[string]destEntry

	failMu      sync.Mutex
	consecutive int

	now func() time.Time
}

type destEntry struct {
	id         string
	resolvedAt time.Time
}

// New wires the tracker.
func New(
	cfg config.TrackerConfig,
	st store.OperatorStore,
	api platform.API,
	cache *activity.Cache,
	detector *detection.Detector,
	responder *mitigation.Controller,
	q *queue.Queue,
) *Tracker {
	return &Tracker{
		cfg:       cfg,
		store:     st,
		api:       api,
		cache:     cache,
		detector:  detector,
		responder: responder,
		queue:     q,
		destCache: make(map[string]destEntry),
		now:       time.Now,
	}
}

// IsTracked reports whether the operator is currently enrolled.
func (t *Tracker) IsTracked(ctx context.Context, operatorID string) bool {
	_, err := t.store.Get(ctx, operatorID)
	return err == nil
}

// destinationLabel builds the audit destination name reflecting the
// operator's state as of now.
func destinationLabel(op *models.TrackedOperator, inactivityDays int, now time.Time) string {
	status := "Active"
	if op.HasActed() {
		if now.Sub(op.LastActionAt) > time.Duration(inactivityDays)*24*time.Hour {
			status = "Idle"
		}
	} else {
		status = "New"
	}
	return fmt.Sprintf("%s | %d actions | %s", op.DisplayName, op.ActionCount, status)
}

// Enroll starts tracking a privileged member: a fresh audit destination
// is created and the operator record persisted. Enrolling an
// already-tracked operator is a no-op.
func (t *Tracker) Enroll(ctx context.Context, member platform.Member) error {
	if t.IsTracked(ctx, member.ID) {
		return nil
	}

	op := models.TrackedOperator{
		OperatorID:  member.ID,
		DisplayName: member.DisplayName,
		AvatarHash:  member.AvatarHash,
		EnrolledAt:  t.now(),
	}

	destID, err := t.api.CreateDestination(ctx, destinationLabel(&op, t.cfg.InactivityDays, t.now()))
	if err != nil {
		return fmt.Errorf("create audit destination for %s: %w", member.ID, err)
	}
	op.DestinationRef = destID

	if err := t.store.Upsert(ctx, &op); err != nil {
		return fmt.Errorf("persist operator %s: %w", member.ID, err)
	}
	t.cacheDestination(member.ID, destID)

	logging.Info().
		Str("operator", member.ID).
		Str("display_name", member.DisplayName).
		Str("destination", destID).
		Msg("Operator enrolled")
	return nil
}

// Unenroll stops tracking an operator and drops all in-memory state.
// The audit destination is left in place as a historical record.
func (t *Tracker) Unenroll(ctx context.Context, operatorID string) error {
	if err := t.store.Remove(ctx, operatorID); err != nil {
		return fmt.Errorf("remove operator %s: %w", operatorID, err)
	}
	t.cache.RemoveOperator(operatorID)
	t.detector.Forget(operatorID)

	t.destMu.Lock()
	delete(t.destCache, operatorID)
	t.destMu.Unlock()

	logging.Info().Str("operator", operatorID).Msg("Operator unenrolled")
	return nil
}

// Destination returns the operator's audit destination id, preferring
// the handle cache over the store.
func (t *Tracker) Destination(ctx context.Context, operatorID string) string {
	t.destMu.Lock()
	entry, ok := t.destCache[operatorID]
	t.destMu.Unlock()
	if ok && t.now().Sub(entry.resolvedAt) < t.cfg.DestinationTTL {
		return entry.id
	}

	op, err := t.store.Get(ctx, operatorID)
	if err != nil {
		return ""
	}
	t.cacheDestination(operatorID, op.DestinationRef)
	return op.DestinationRef
}

func (t *Tracker) cacheDestination(operatorID, destID string) {
	t.destMu.Lock()
	t.destCache[operatorID] = destEntry{id: destID, resolvedAt: t.now()}
	t.destMu.Unlock()
}

// InvalidateCache drops every cached destination handle so the next use
// re-resolves from the store and platform.
func (t *Tracker) InvalidateCache() {
	t.destMu.Lock()
	t.destCache = make(map[string]destEntry)
	t.destMu.Unlock()
	logging.Warn().Msg("Destination handle cache invalidated")
}

// Enqueue exposes the delivery queue to API callers.
func (t *Tracker) Enqueue(it queue.Item) bool {
	return t.queue.Enqueue(it)
}

// QueueStatus reports the delivery queue snapshot.
func (t *Tracker) QueueStatus() queue.Status {
	return t.queue.Status()
}
