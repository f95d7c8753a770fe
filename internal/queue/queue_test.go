// ModSentry - Moderator Activity Tracking and Anomaly Response
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/modsentry

package queue

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/tomtom215/modsentry/internal/config"
	"github.com/tomtom215/modsentry/internal/metrics"
	"github.com/tomtom215/modsentry/internal/platform"
)

func item(tier int, dest string) Item {
	return Item{
		DestinationID: dest,
		Tier:          tier,
		Message:       platform.Message{Content: dest},
	}
}

func TestPriorityOrdering(t *testing.T) {
	q := New(10)

	q.Enqueue(item(TierLow, "low-1"))
	q.Enqueue(item(TierNormal, "normal-1"))
	q.Enqueue(item(TierCritical, "critical-1"))
	q.Enqueue(item(TierHigh, "high-1"))

	var got []string
	for _, it := range q.PopBatch(4) {
		got = append(got, it.DestinationID)
	}
	want := []string{"critical-1", "high-1", "normal-1", "low-1"}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("pop %d = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestFIFOWithinTier(t *testing.T) {
	q := New(10)

	for i := 0; i < 5; i++ {
		q.Enqueue(item(TierNormal, fmt.Sprintf("msg-%d", i)))
	}

	for i, it := range q.PopBatch(5) {
		want := fmt.Sprintf("msg-%d", i)
		if it.DestinationID != want {
			t.Errorf("pop %d = %q, want %q", i, it.DestinationID, want)
		}
	}
}

func TestHigherPriorityJumpsQueue(t *testing.T) {
	q := New(10)

	q.Enqueue(item(TierNormal, "first"))
	q.Enqueue(item(TierCritical, "urgent"))

	batch := q.PopBatch(2)
	if batch[0].DestinationID != "urgent" {
		t.Errorf("first pop = %q, want urgent despite later enqueue", batch[0].DestinationID)
	}
}

func TestEvictionAdmitsHigherTier(t *testing.T) {
	q := New(3)

	q.Enqueue(item(TierLow, "low-1"))
	q.Enqueue(item(TierLow, "low-2"))
	q.Enqueue(item(TierNormal, "normal-1"))

	if !q.Enqueue(item(TierCritical, "critical-1")) {
		t.Fatal("critical item rejected from a full queue of lower tiers")
	}
	if q.Len() != 3 {
		t.Fatalf("len = %d, want 3", q.Len())
	}

	// The newest low item is the victim.
	var dests []string
	for _, it := range q.PopBatch(3) {
		dests = append(dests, it.DestinationID)
	}
	for _, d := range dests {
		if d == "low-2" {
			t.Error("low-2 should have been evicted")
		}
	}
}

func TestFullQueueDropsLowIncoming(t *testing.T) {
	q := New(2)

	q.Enqueue(item(TierCritical, "critical-1"))
	q.Enqueue(item(TierCritical, "critical-2"))

	if q.Enqueue(item(TierLow, "low-1")) {
		t.Error("low item admitted to a full queue of critical items")
	}
	if q.Len() != 2 {
		t.Errorf("len = %d, want 2", q.Len())
	}
}

func TestOverflowCountersDistinguishRejectionFromEviction(t *testing.T) {
	rejectedBefore := testutil.ToFloat64(metrics.QueueRejected.WithLabelValues("low"))
	evictedBefore := testutil.ToFloat64(metrics.QueueEvicted.WithLabelValues("low"))

	q := New(1)
	q.Enqueue(item(TierLow, "low-1"))

	// Full queue, nothing to outrank: the arrival is rejected.
	q.Enqueue(item(TierLow, "low-2"))
	if got := testutil.ToFloat64(metrics.QueueRejected.WithLabelValues("low")); got != rejectedBefore+1 {
		t.Errorf("rejected counter = %v, want %v", got, rejectedBefore+1)
	}
	if got := testutil.ToFloat64(metrics.QueueEvicted.WithLabelValues("low")); got != evictedBefore {
		t.Errorf("evicted counter moved on rejection: %v, want %v", got, evictedBefore)
	}

	// Higher-tier arrival evicts the queued low item instead.
	q.Enqueue(item(TierCritical, "critical-1"))
	if got := testutil.ToFloat64(metrics.QueueEvicted.WithLabelValues("low")); got != evictedBefore+1 {
		t.Errorf("evicted counter = %v, want %v", got, evictedBefore+1)
	}
	if got := testutil.ToFloat64(metrics.QueueRejected.WithLabelValues("low")); got != rejectedBefore+1 {
		t.Errorf("rejected counter moved on eviction: %v, want %v", got, rejectedBefore+1)
	}
}

func TestStatus(t *testing.T) {
	q := New(10)

	q.Enqueue(item(TierCritical, "a"))
	q.Enqueue(item(TierNormal, "b"))
	q.Enqueue(item(TierNormal, "c"))

	st := q.Status()
	if st.Total != 3 {
		t.Errorf("total = %d, want 3", st.Total)
	}
	if st.ByTier[TierNormal] != 2 || st.ByTier[TierCritical] != 1 {
		t.Errorf("by_tier = %v", st.ByTier)
	}
	if st.Running {
		t.Error("running before worker start")
	}
}

func TestEnqueueAfterClose(t *testing.T) {
	q := New(10)
	q.close()
	if q.Enqueue(item(TierCritical, "late")) {
		t.Error("enqueue accepted after close")
	}
}

type recordingSender struct {
	mu    sync.Mutex
	sent  []string
	fail  map[string]error
	calls int
}

func (s *recordingSender) Send(_ context.Context, destinationID string, _ *platform.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if err := s.fail[destinationID]; err != nil {
		return err
	}
	s.sent = append(s.sent, destinationID)
	return nil
}

func (s *recordingSender) sentIDs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.sent...)
}

func testQueueConfig() config.QueueConfig {
	return config.QueueConfig{
		MaxSize:         50,
		BatchSize:       5,
		ProcessInterval: 10 * time.Millisecond,
		SendsPerSecond:  1000,
		CleanupInterval: time.Hour,
		DrainTimeout:    time.Second,
	}
}

func TestWorkerDeliversInOrder(t *testing.T) {
	q := New(50)
	sender := &recordingSender{}
	w := NewWorker(testQueueConfig(), q, sender, nil)

	q.Enqueue(item(TierLow, "low-1"))
	q.Enqueue(item(TierCritical, "critical-1"))
	q.Enqueue(item(TierNormal, "normal-1"))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = w.Serve(ctx)
	}()

	deadline := time.After(2 * time.Second)
	for q.Len() > 0 {
		select {
		case <-deadline:
			t.Fatal("worker did not drain the queue")
		case <-time.After(5 * time.Millisecond):
		}
	}
	cancel()
	<-done

	got := sender.sentIDs()
	want := []string{"critical-1", "normal-1", "low-1"}
	if len(got) != len(want) {
		t.Fatalf("sent %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("send %d = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestWorkerDropsFailedDelivery(t *testing.T) {
	q := New(50)
	sender := &recordingSender{fail: map[string]error{"bad": errors.New("destination gone")}}
	w := NewWorker(testQueueConfig(), q, sender, nil)

	q.Enqueue(item(TierNormal, "bad"))
	q.Enqueue(item(TierNormal, "good"))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = w.Serve(ctx)
	}()

	deadline := time.After(2 * time.Second)
	for q.Len() > 0 {
		select {
		case <-deadline:
			t.Fatal("worker did not drain the queue")
		case <-time.After(5 * time.Millisecond):
		}
	}
	cancel()
	<-done

	got := sender.sentIDs()
	if len(got) != 1 || got[0] != "good" {
		t.Errorf("sent %v, want [good] with bad dropped", got)
	}
}

func TestDrainDeliversRemaining(t *testing.T) {
	q := New(50)
	sender := &recordingSender{}
	cfg := testQueueConfig()
	// Long interval so items sit until the drain runs them.
	cfg.ProcessInterval = time.Hour
	w := NewWorker(cfg, q, sender, nil)

	for i := 0; i < 10; i++ {
		q.Enqueue(item(TierNormal, fmt.Sprintf("msg-%d", i)))
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = w.Serve(ctx)
	}()

	time.Sleep(20 * time.Millisecond)
	cancel()
	<-done

	if got := len(sender.sentIDs()); got != 10 {
		t.Errorf("drained %d items, want 10", got)
	}
	if q.Len() != 0 {
		t.Errorf("queue depth after drain = %d, want 0", q.Len())
	}
}

type countingCleaner struct {
	mu    sync.Mutex
	calls int
}

func (c *countingCleaner) Cleanup() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls++
	return 0
}

func TestWorkerTriggersCleanup(t *testing.T) {
	q := New(10)
	cleaner := &countingCleaner{}
	cfg := testQueueConfig()
	cfg.CleanupInterval = 10 * time.Millisecond
	w := NewWorker(cfg, q, &recordingSender{}, cleaner)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = w.Serve(ctx)
	}()

	time.Sleep(60 * time.Millisecond)
	cancel()
	<-done

	cleaner.mu.Lock()
	calls := cleaner.calls
	cleaner.mu.Unlock()
	if calls == 0 {
		t.Error("cleanup never triggered")
	}
}
