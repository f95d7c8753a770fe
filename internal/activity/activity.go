// ModSentry - Moderator Activity Tracking and Anomaly Response
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/modsentry

// Package activity provides the bounded in-memory caches for operator
// activity: recent messages with pre-downloaded attachments, last-action
// timestamps for inactivity tracking, and per-target action history.
// All caches are capped; Cleanup trims overflow and expired entries.
package activity

import (
	"sort"
	"sync"
	"time"

	"github.com/tomtom215/modsentry/internal/config"
	"github.com/tomtom215/modsentry/internal/logging"
	"github.com/tomtom215/modsentry/internal/metrics"
	"github.com/tomtom215/modsentry/internal/platform"
)

// CachedMessage is a message captured from a tracked operator, with any
// attachments already downloaded so deletion logs can reproduce them.
type CachedMessage struct {
	MessageID   string
	AuthorID    string
	ChannelID   string
	Content     string
	CachedAt    time.Time
	Attachments []platform.Attachment
}

// Cache holds per-operator activity state. Safe for concurrent use.
type Cache struct {
	cfg config.CacheConfig

	mu            sync.Mutex
	messages      map[string][]CachedMessage
	lastAction    map[string]time.Time
	targetActions map[string]map[string][]time.Time

	now func() time.Time
}

// NewCache creates an empty activity cache bounded by cfg.
func NewCache(cfg config.CacheConfig) *Cache {
	return &Cache{
		cfg:           cfg,
		messages:      make(map[string][]CachedMessage),
		lastAction:    make(map[string]time.Time),
		targetActions: make(map[string]map[string][]time.Time),
		now:           time.Now,
	}
}

// CacheMessage stores a message for its author. The per-operator cache
// keeps the newest MessageCacheSize entries inside MessageCacheTTL; when
// more than MaxOperators hold caches, the operator whose cache starts
// oldest is evicted.
func (c *Cache) CacheMessage(msg CachedMessage) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	cache := append(c.messages[msg.AuthorID], msg)

	if len(cache) > c.cfg.MessageCacheSize {
		evicted := len(cache) - c.cfg.MessageCacheSize
		cache = cache[evicted:]
		metrics.CacheEvictions.WithLabelValues("message", "capacity").Add(float64(evicted))
	}

	cutoff := now.Add(-c.cfg.MessageCacheTTL)
	kept := cache[:0]
	for _, m := range cache {
		if m.CachedAt.After(cutoff) {
			kept = append(kept, m)
		} else {
			metrics.CacheEvictions.WithLabelValues("message", "ttl").Inc()
		}
	}
	c.messages[msg.AuthorID] = kept

	if len(c.messages) > c.cfg.MaxOperators {
		c.evictOldestOperatorLocked(msg.AuthorID)
	}

	c.updateMessageGaugeLocked()
}

// evictOldestOperatorLocked drops the message cache of the operator whose
// oldest entry is the stalest, sparing the operator who just wrote.
func (c *Cache) evictOldestOperatorLocked(spare string) {
	var oldestOp string
	var oldestTime time.Time
	for op, msgs := range c.messages {
		if len(msgs) == 0 {
			oldestOp = op
			break
		}
		if oldestOp == "" || msgs[0].CachedAt.Before(oldestTime) {
			oldestTime = msgs[0].CachedAt
			oldestOp = op
		}
	}
	if oldestOp != "" && oldestOp != spare {
		delete(c.messages, oldestOp)
		metrics.CacheEvictions.WithLabelValues("message", "capacity").Inc()
	}
}

// CachedMessage returns a cached message by id.
func (c *Cache) CachedMessage(messageID string) (CachedMessage, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, cache := range c.messages {
		for _, m := range cache {
			if m.MessageID == messageID {
				return m, true
			}
		}
	}
	return CachedMessage{}, false
}

// RecordActivity updates an operator's last-action timestamp.
func (c *Cache) RecordActivity(operatorID string, at time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if at.After(c.lastAction[operatorID]) {
		c.lastAction[operatorID] = at
	}
}

// LastActivity returns an operator's last recorded action time.
func (c *Cache) LastActivity(operatorID string) (time.Time, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	t, ok := c.lastAction[operatorID]
	return t, ok
}

// RecordTargetAction records that an operator acted on a target, for
// repeat-target review in activity logs.
func (c *Cache) RecordTargetAction(operatorID, targetID string, at time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()

	targets := c.targetActions[operatorID]
	if targets == nil {
		targets = make(map[string][]time.Time)
		c.targetActions[operatorID] = targets
	}
	targets[targetID] = append(targets[targetID], at)
}

// TargetActionCount returns how many recorded actions an operator has
// taken against a target.
func (c *Cache) TargetActionCount(operatorID, targetID string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.targetActions[operatorID][targetID])
}

// RemoveOperator drops all cached state for an unenrolled operator.
func (c *Cache) RemoveOperator(operatorID string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.messages, operatorID)
	delete(c.lastAction, operatorID)
	delete(c.targetActions, operatorID)
	metrics.CacheEvictions.WithLabelValues("message", "operator_removed").Inc()
	c.updateMessageGaugeLocked()
}

// Cleanup trims caches back to their configured bounds and drops expired
// messages. Returns the number of entries removed.
func (c *Cache) Cleanup() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	cleaned := 0

	cutoff := now.Add(-c.cfg.MessageCacheTTL)
	for op, msgs := range c.messages {
		kept := msgs[:0]
		for _, m := range msgs {
			if m.CachedAt.After(cutoff) {
				kept = append(kept, m)
			} else {
				cleaned++
			}
		}
		if len(kept) == 0 {
			delete(c.messages, op)
		} else {
			c.messages[op] = kept
		}
	}

	for op, targets := range c.targetActions {
		if len(targets) <= c.cfg.TargetActionsMax {
			continue
		}
		// Keep the targets with the most recent activity.
		type targetAge struct {
			id     string
			latest time.Time
		}
		ordered := make([]targetAge, 0, len(targets))
		for id, times := range targets {
			var latest time.Time
			for _, t := range times {
				if t.After(latest) {
					latest = t
				}
			}
			ordered = append(ordered, targetAge{id: id, latest: latest})
		}
		sort.Slice(ordered, func(i, j int) bool {
			return ordered[i].latest.After(ordered[j].latest)
		})
		for _, ta := range ordered[c.cfg.TargetActionsMax:] {
			delete(targets, ta.id)
			cleaned++
		}
		c.targetActions[op] = targets
	}

	c.updateMessageGaugeLocked()

	if cleaned > 0 {
		logging.Debug().Int("cleaned", cleaned).Msg("Trimmed stale activity cache entries")
	}
	return cleaned
}

func (c *Cache) updateMessageGaugeLocked() {
	total := 0
	for _, msgs := range c.messages {
		total += len(msgs)
	}
	metrics.CacheEntries.WithLabelValues("message").Set(float64(total))
}
