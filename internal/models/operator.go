// ModSentry - Moderator Activity Tracking and Anomaly Response
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/modsentry

package models

import (
	"time"
)

// TrackedOperator is the durable record for one enrolled operator.
// It is created when the operator gains the privileged role, mutated on
// every classified action and on scheduled reconciliation, and removed
// when the operator loses the role.
type TrackedOperator struct {
	// OperatorID is the platform-level account identifier. Opaque to ModSentry.
	OperatorID string `json:"operator_id"`

	// DestinationRef addresses the operator's audit destination
	// (e.g. a dedicated audit thread) on the platform.
	DestinationRef string `json:"destination_ref"`

	// DisplayName and AvatarHash are a snapshot of the operator's profile,
	// used only to detect and reflect profile changes in the destination label.
	DisplayName string `json:"display_name"`
	AvatarHash  string `json:"avatar_hash,omitempty"`

	// ActionCount is the cumulative number of classified actions recorded
	// for this operator since enrollment.
	ActionCount int64 `json:"action_count"`

	// LastActionAt is the time of the most recent classified action.
	// Zero if the operator has never acted since enrollment.
	LastActionAt time.Time `json:"last_action_at,omitzero"`

	// EnrolledAt is when tracking began.
	EnrolledAt time.Time `json:"enrolled_at"`
}

// HasActed reports whether any action has been recorded for this operator.
func (o *TrackedOperator) HasActed() bool {
	return !o.LastActionAt.IsZero()
}

// IdleSince returns the reference time for inactivity checks: the last
// action time, or the enrollment time if the operator has never acted.
func (o *TrackedOperator) IdleSince() time.Time {
	if o.HasActed() {
		return o.LastActionAt
	}
	return o.EnrolledAt
}
