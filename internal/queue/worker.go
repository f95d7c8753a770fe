// ModSentry - Moderator Activity Tracking and Anomaly Response
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/modsentry

package queue

import (
	"container/heap"
	"context"
	"time"

	"golang.org/x/time/rate"

	"github.com/tomtom215/modsentry/internal/config"
	"github.com/tomtom215/modsentry/internal/logging"
	"github.com/tomtom215/modsentry/internal/metrics"
	"github.com/tomtom215/modsentry/internal/platform"
)

// Sender delivers one payload to a destination. Satisfied by the
// platform client and its circuit-breaker wrapper.
type Sender interface {
	Send(ctx context.Context, destinationID string, msg *platform.Message) error
}

// Cleaner is invoked periodically by the worker so cache maintenance
// rides the same loop instead of needing its own timer.
type Cleaner interface {
	Cleanup() int
}

// Worker drains the queue in priority order on a fixed wake-up
// interval, pacing sends against the platform rate limit. Implements
// suture.Service.
type Worker struct {
	cfg     config.QueueConfig
	queue   *Queue
	sender  Sender
	cleaner Cleaner
	limiter *rate.Limiter
}

// NewWorker creates the delivery worker. cleaner may be nil.
func NewWorker(cfg config.QueueConfig, q *Queue, sender Sender, cleaner Cleaner) *Worker {
	return &Worker{
		cfg:     cfg,
		queue:   q,
		sender:  sender,
		cleaner: cleaner,
		limiter: rate.NewLimiter(rate.Limit(cfg.SendsPerSecond), 1),
	}
}

// Serve implements suture.Service. It processes batches until the
// context is canceled, then drains remaining items within DrainTimeout.
func (w *Worker) Serve(ctx context.Context) error {
	w.queue.setRunning(true)
	defer w.queue.setRunning(false)

	logging.Info().
		Dur("interval", w.cfg.ProcessInterval).
		Int("batch_size", w.cfg.BatchSize).
		Float64("sends_per_second", w.cfg.SendsPerSecond).
		Msg("Delivery queue worker started")

	ticker := time.NewTicker(w.cfg.ProcessInterval)
	defer ticker.Stop()

	cleanup := time.NewTicker(w.cfg.CleanupInterval)
	defer cleanup.Stop()

	for {
		select {
		case <-ctx.Done():
			w.drain()
			return ctx.Err()
		case <-cleanup.C:
			if w.cleaner != nil {
				w.cleaner.Cleanup()
			}
		case <-ticker.C:
			w.processBatch(ctx)
		}
	}
}

// String implements fmt.Stringer for supervisor logs.
func (w *Worker) String() string { return "delivery-queue-worker" }

func (w *Worker) processBatch(ctx context.Context) {
	batch := w.queue.PopBatch(w.cfg.BatchSize)
	if len(batch) == 0 {
		return
	}
	metrics.QueueBatchSize.Observe(float64(len(batch)))

	for _, it := range batch {
		if err := w.limiter.Wait(ctx); err != nil {
			// Shutdown mid-batch: hand the rest back for the drain.
			w.requeue(batch, it)
			return
		}
		w.deliver(ctx, it)
	}
}

func (w *Worker) deliver(ctx context.Context, it *Item) {
	err := w.sender.Send(ctx, it.DestinationID, &it.Message)
	if err == nil {
		metrics.QueueDelivered.Inc()
		return
	}

	metrics.QueueDeliveryFailures.Inc()
	logging.Err(err).
		Str("destination", it.DestinationID).
		Str("tier", metrics.TierLabel(it.Tier)).
		Bool("alert", it.Alert).
		Dur("queued_for", time.Since(it.EnqueuedAt)).
		Msg("Delivery failed, dropping item")
}

// requeue pushes back the unprocessed tail of a batch. Original
// sequence numbers are preserved so FIFO order survives.
func (w *Worker) requeue(batch []*Item, from *Item) {
	w.queue.mu.Lock()
	defer w.queue.mu.Unlock()

	pushing := false
	for _, it := range batch {
		if it == from {
			pushing = true
		}
		if pushing {
			heap.Push(&w.queue.items, it)
		}
	}
	w.queue.updateDepthLocked()
}

// drain sends remaining items at the usual pace until empty or the
// drain timeout elapses. Anything left is reported, not silently lost.
func (w *Worker) drain() {
	w.queue.close()

	remaining := w.queue.Len()
	if remaining == 0 {
		logging.Info().Msg("Delivery queue drained clean")
		return
	}

	logging.Info().
		Int("remaining", remaining).
		Dur("timeout", w.cfg.DrainTimeout).
		Msg("Draining delivery queue")

	ctx, cancel := context.WithTimeout(context.Background(), w.cfg.DrainTimeout)
	defer cancel()

	for {
		batch := w.queue.PopBatch(w.cfg.BatchSize)
		if len(batch) == 0 {
			logging.Info().Msg("Delivery queue drained clean")
			return
		}
		for i, it := range batch {
			if err := w.limiter.Wait(ctx); err != nil {
				lost := len(batch) - i + w.queue.Len()
				metrics.QueueDrainLost.Add(float64(lost))
				logging.Error().
					Int("lost", lost).
					Msg("Drain timeout elapsed with undelivered items")
				return
			}
			w.deliver(ctx, it)
		}
	}
}
