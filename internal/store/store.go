// ModSentry - Moderator Activity Tracking and Anomaly Response
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/modsentry

// Package store provides durable persistence for tracked operator records.
// The BadgerDB-backed store survives restarts; the in-memory store serves
// tests and ephemeral deployments.
package store

import (
	"context"
	"errors"

	"github.com/tomtom215/modsentry/internal/models"
)

// ErrOperatorNotFound is returned when no record exists for an operator id.
var ErrOperatorNotFound = errors.New("operator not found")

// OperatorStore persists tracked operator records across restarts.
// Implementations must be safe for concurrent use.
type OperatorStore interface {
	// Get returns the record for an operator id, or ErrOperatorNotFound.
	Get(ctx context.Context, operatorID string) (*models.TrackedOperator, error)

	// Upsert creates or replaces the record for op.OperatorID.
	Upsert(ctx context.Context, op *models.TrackedOperator) error

	// Remove deletes the record for an operator id. Removing an absent
	// operator is not an error.
	Remove(ctx context.Context, operatorID string) error

	// List returns all tracked operator records.
	List(ctx context.Context) ([]*models.TrackedOperator, error)

	// Count returns the number of tracked operators.
	Count(ctx context.Context) (int, error)

	// Close releases the store's resources.
	Close() error
}
