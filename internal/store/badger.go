// ModSentry - Moderator Activity Tracking and Anomaly Response
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/modsentry

package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"

	"github.com/tomtom215/modsentry/internal/models"
)

// Key prefix for BadgerDB storage. Keys are "operator:<operator_id>".
const operatorKeyPrefix = "operator:"

// BadgerStore implements OperatorStore using BadgerDB for durable storage.
type BadgerStore struct {
	db *badger.DB
}

// OpenBadger opens a BadgerStore at the given directory. An empty path
// opens an in-memory database.
func OpenBadger(path string) (*BadgerStore, error) {
	var opts badger.Options
	if path == "" {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		opts = badger.DefaultOptions(path)
	}
	opts = opts.WithLogger(nil)

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger at %q: %w", path, err)
	}
	return &BadgerStore{db: db}, nil
}

// NewBadgerStore wraps an already-open BadgerDB handle.
func NewBadgerStore(db *badger.DB) *BadgerStore {
	return &BadgerStore{db: db}
}

// Get returns the record for an operator id.
func (s *BadgerStore) Get(ctx context.Context, operatorID string) (*models.TrackedOperator, error) {
	var op models.TrackedOperator

	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(operatorKey(operatorID))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return ErrOperatorNotFound
		}
		if err != nil {
			return fmt.Errorf("get operator: %w", err)
		}

		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &op)
		})
	})
	if err != nil {
		return nil, err
	}
	return &op, nil
}

// Upsert creates or replaces the record for op.OperatorID.
func (s *BadgerStore) Upsert(ctx context.Context, op *models.TrackedOperator) error {
	if op.OperatorID == "" {
		return fmt.Errorf("upsert operator: empty operator id")
	}

	data, err := json.Marshal(op)
	if err != nil {
		return fmt.Errorf("marshal operator: %w", err)
	}

	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(operatorKey(op.OperatorID), data)
	})
}

// Remove deletes the record for an operator id.
func (s *BadgerStore) Remove(ctx context.Context, operatorID string) error {
	return s.db.Update(func(txn *badger.Txn) error {
		err := txn.Delete(operatorKey(operatorID))
		if err != nil && !errors.Is(err, badger.ErrKeyNotFound) {
			return fmt.Errorf("delete operator: %w", err)
		}
		return nil
	})
}

// List returns all tracked operator records.
func (s *BadgerStore) List(ctx context.Context) ([]*models.TrackedOperator, error) {
	var ops []*models.TrackedOperator

	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = true
		it := txn.NewIterator(opts)
		defer it.Close()

		prefix := []byte(operatorKeyPrefix)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			var op models.TrackedOperator
			err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &op)
			})
			if err != nil {
				return fmt.Errorf("unmarshal operator %s: %w", it.Item().Key(), err)
			}
			ops = append(ops, &op)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return ops, nil
}

// Count returns the number of tracked operators.
func (s *BadgerStore) Count(ctx context.Context) (int, error) {
	count := 0
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()

		prefix := []byte(operatorKeyPrefix)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			count++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return count, nil
}

// Close closes the underlying database.
func (s *BadgerStore) Close() error {
	return s.db.Close()
}

func operatorKey(operatorID string) []byte {
	return []byte(operatorKeyPrefix + operatorID)
}
