// ModSentry - Moderator Activity Tracking and Anomaly Response
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/modsentry

package store

import (
	"context"
	"sync"

	"github.com/tomtom215/modsentry/internal/models"
)

// MemoryStore implements OperatorStore in process memory.
type MemoryStore struct {
	mu  sync.RWMutex
	ops map[string]models.TrackedOperator
}

// NewMemoryStore creates an empty in-memory operator store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{ops: make(map[string]models.TrackedOperator)}
}

// Get returns the record for an operator id.
func (s *MemoryStore) Get(ctx context.Context, operatorID string) (*models.TrackedOperator, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	op, ok := s.ops[operatorID]
	if !ok {
		return nil, ErrOperatorNotFound
	}
	cp := op
	return &cp, nil
}

// Upsert creates or replaces the record for op.OperatorID.
func (s *MemoryStore) Upsert(ctx context.Context, op *models.TrackedOperator) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ops[op.OperatorID] = *op
	return nil
}

// Remove deletes the record for an operator id.
func (s *MemoryStore) Remove(ctx context.Context, operatorID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.ops, operatorID)
	return nil
}

// List returns all tracked operator records.
func (s *MemoryStore) List(ctx context.Context) ([]*models.TrackedOperator, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ops := make([]*models.TrackedOperator, 0, len(s.ops))
	for _, op := range s.ops {
		cp := op
		ops = append(ops, &cp)
	}
	return ops, nil
}

// Count returns the number of tracked operators.
func (s *MemoryStore) Count(ctx context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.ops), nil
}

// Close is a no-op for the in-memory store.
func (s *MemoryStore) Close() error {
	return nil
}
