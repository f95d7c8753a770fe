// ModSentry - Moderator Activity Tracking and Anomaly Response
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/modsentry

// Package queue implements the outbound delivery queue: a bounded
// priority queue feeding a paced background worker. It decouples event
// processing from platform sends so a slow or rate-limited platform
// never stalls the classification path.
package queue

import (
	"container/heap"
	"sync"
	"time"

	"github.com/tomtom215/modsentry/internal/logging"
	"github.com/tomtom215/modsentry/internal/metrics"
	"github.com/tomtom215/modsentry/internal/platform"
)

// Priority tiers, lower is more urgent.
const (
	TierCritical = 0
	TierHigh     = 1
	TierNormal   = 2
	TierLow      = 3
)

// Item is one queued delivery.
type Item struct {
	DestinationID string
	Message       platform.Message
	Tier          int
	Alert         bool
	EnqueuedAt    time.Time

	seq uint64
}

// itemHeap orders by (tier, seq): strictly higher priority first, FIFO
// within a tier.
type itemHeap []*Item

func (h itemHeap) Len() int { return len(h) }

func (h itemHeap) Less(i, j int) bool {
	if h[i].Tier != h[j].Tier {
		return h[i].Tier < h[j].Tier
	}
	return h[i].seq < h[j].seq
}

func (h itemHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *itemHeap) Push(x any) { *h = append(*h, x.(*Item)) }

func (h *itemHeap) Pop() any {
	old := *h
	n := len(old)
	it := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return it
}

// Status is a point-in-time queue snapshot.
type Status struct {
	Running bool        `json:"running"`
	Total   int         `json:"total"`
	ByTier  map[int]int `json:"by_tier"`
}

// Queue is the shared bounded priority queue. The mutex covers heap
// mutations only, never an outbound send.
type Queue struct {
	maxSize int

	mu      sync.Mutex
	items   itemHeap
	nextSeq uint64
	closed  bool
	running bool
}

// New creates an empty queue with the given capacity.
func New(maxSize int) *Queue {
	q := &Queue{maxSize: maxSize}
	heap.Init(&q.items)
	return q
}

// Enqueue admits an item, applying the capacity policy when full: items
// of strictly lower priority are evicted to make room, and an incoming
// item that outranks nothing in the queue is dropped with a warning.
// Alert delivery wins over log completeness under load.
func (q *Queue) Enqueue(it Item) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		logging.Warn().Str("destination", it.DestinationID).Msg("Enqueue after queue close, dropping")
		return false
	}

	if len(q.items) >= q.maxSize {
		if !q.evictForLocked(it.Tier) {
			metrics.QueueRejected.WithLabelValues(metrics.TierLabel(it.Tier)).Inc()
			logging.Warn().
				Str("destination", it.DestinationID).
				Str("tier", metrics.TierLabel(it.Tier)).
				Int("depth", len(q.items)).
				Msg("Queue full, dropping incoming item")
			return false
		}
	}

	it.seq = q.nextSeq
	q.nextSeq++
	if it.EnqueuedAt.IsZero() {
		it.EnqueuedAt = time.Now()
	}
	heap.Push(&q.items, &it)

	metrics.QueueEnqueued.WithLabelValues(metrics.TierLabel(it.Tier)).Inc()
	q.updateDepthLocked()
	return true
}

// evictForLocked removes one item of strictly lower priority than the
// incoming tier, newest first so older entries keep their place.
// Returns false when nothing in the queue outranks the newcomer.
func (q *Queue) evictForLocked(incomingTier int) bool {
	victim := -1
	for i, it := range q.items {
		if it.Tier <= incomingTier {
			continue
		}
		if victim == -1 || q.items[i].Tier > q.items[victim].Tier ||
			(q.items[i].Tier == q.items[victim].Tier && q.items[i].seq > q.items[victim].seq) {
			victim = i
		}
	}
	if victim == -1 {
		return false
	}

	evicted := q.items[victim]
	heap.Remove(&q.items, victim)
	metrics.QueueEvicted.WithLabelValues(metrics.TierLabel(evicted.Tier)).Inc()
	logging.Warn().
		Str("destination", evicted.DestinationID).
		Str("tier", metrics.TierLabel(evicted.Tier)).
		Msg("Evicted queued item under capacity pressure")
	return true
}

// PopBatch removes up to n items in priority order.
func (q *Queue) PopBatch(n int) []*Item {
	q.mu.Lock()
	defer q.mu.Unlock()

	if n > len(q.items) {
		n = len(q.items)
	}
	batch := make([]*Item, 0, n)
	for i := 0; i < n; i++ {
		batch = append(batch, heap.Pop(&q.items).(*Item))
	}
	q.updateDepthLocked()
	return batch
}

// Len returns the current queue depth.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Status reports counts by tier and whether the worker is running.
func (q *Queue) Status() Status {
	q.mu.Lock()
	defer q.mu.Unlock()

	byTier := make(map[int]int, 4)
	for _, it := range q.items {
		byTier[it.Tier]++
	}
	return Status{Running: q.running, Total: len(q.items), ByTier: byTier}
}

// close stops admission. Items already queued remain drainable.
func (q *Queue) close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.closed = true
}

func (q *Queue) setRunning(v bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.running = v
}

func (q *Queue) updateDepthLocked() {
	depths := make(map[int]int, 4)
	for _, it := range q.items {
		depths[it.Tier]++
	}
	metrics.UpdateQueueDepth(depths)
}
