// ModSentry - Moderator Activity Tracking and Anomaly Response
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/modsentry

package models

import (
	"time"
)

// ActionCategory identifies the category of a classified operator action.
// The set is closed: unknown categories are recorded for activity history
// but carry no monitoring threshold.
type ActionCategory string

const (
	// ActionBan is a permanent removal of a platform account.
	ActionBan ActionCategory = "ban"

	// ActionUnban reverses a ban.
	ActionUnban ActionCategory = "unban"

	// ActionKick removes an account from the community without a ban.
	ActionKick ActionCategory = "kick"

	// ActionTimeout temporarily mutes an account.
	ActionTimeout ActionCategory = "timeout"

	// ActionUntimeout lifts a timeout early.
	ActionUntimeout ActionCategory = "untimeout"

	// ActionDelete is a message deletion performed by the operator.
	ActionDelete ActionCategory = "delete"

	// ActionBulkDelete is a bulk message purge. Counted as delete for
	// burst detection purposes.
	ActionBulkDelete ActionCategory = "bulk_delete"

	// ActionPermissionChange is a channel or category permission edit.
	ActionPermissionChange ActionCategory = "permission_change"

	// ActionRoleGrant and ActionRoleRevoke are role membership edits
	// performed by the operator on other accounts.
	ActionRoleGrant  ActionCategory = "role_grant"
	ActionRoleRevoke ActionCategory = "role_revoke"

	// ActionChannelCreate and ActionChannelDelete are structural edits.
	ActionChannelCreate ActionCategory = "channel_create"
	ActionChannelDelete ActionCategory = "channel_delete"

	// ActionMessage is an ordinary message authored by the operator.
	// Never monitored; feeds the message cache only.
	ActionMessage ActionCategory = "message"
)

// Destructive reports whether the category is subject to burst monitoring.
func (c ActionCategory) Destructive() bool {
	switch c {
	case ActionBan, ActionTimeout, ActionDelete, ActionBulkDelete:
		return true
	}
	return false
}

// BurstCategory maps a category to the window it is counted under.
// Bulk deletes share the delete window; everything else counts as itself.
func (c ActionCategory) BurstCategory() ActionCategory {
	if c == ActionBulkDelete {
		return ActionDelete
	}
	return c
}

// ActionEvent is one classified operator action pushed from the platform's
// audit feed. Events are ephemeral: consumed exactly once by the activity
// cache and the bulk action detector, never persisted.
type ActionEvent struct {
	// OperatorID is the acting operator.
	OperatorID string `json:"operator_id"`

	// Category is the classified action category.
	Category ActionCategory `json:"category"`

	// TargetID is the account or object acted upon, when applicable.
	TargetID string `json:"target_id,omitempty"`

	// Timestamp is when the platform recorded the action.
	Timestamp time.Time `json:"timestamp"`

	// Metadata carries free-form detail for alert embeds (reason, channel,
	// message content for cache entries, attachment URLs).
	Metadata map[string]string `json:"metadata,omitempty"`
}

// Meta returns a metadata value, or empty string when absent.
func (e *ActionEvent) Meta(key string) string {
	if e.Metadata == nil {
		return ""
	}
	return e.Metadata[key]
}
