// ModSentry - Moderator Activity Tracking and Anomaly Response
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/modsentry

package eventsource

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/goccy/go-json"

	"github.com/tomtom215/modsentry/internal/config"
	"github.com/tomtom215/modsentry/internal/models"
)

func testSource(t *testing.T, handler Handler) (*Source, *gochannel.GoChannel) {
	t.Helper()

	pubsub := gochannel.NewGoChannel(gochannel.Config{}, watermill.NopLogger{})
	cfg := config.EventSourceConfig{Topic: "audit.events"}
	return NewWithSubscriber(cfg, pubsub, handler), pubsub
}

func publish(t *testing.T, pubsub *gochannel.GoChannel, payload []byte) {
	t.Helper()
	if err := pubsub.Publish("audit.events", message.NewMessage(watermill.NewUUID(), payload)); err != nil {
		t.Fatalf("publish: %v", err)
	}
}

func TestDecodesAndDispatchesEvents(t *testing.T) {
	var mu sync.Mutex
	var got []models.ActionEvent
	src, pubsub := testSource(t, func(_ context.Context, event models.ActionEvent) {
		mu.Lock()
		got = append(got, event)
		mu.Unlock()
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = src.Serve(ctx)
	}()
	time.Sleep(20 * time.Millisecond)

	event := models.ActionEvent{
		OperatorID: "op-1",
		Category:   models.ActionBan,
		TargetID:   "target-1",
		Timestamp:  time.Date(2026, 8, 29, 12, 0, 0, 0, time.UTC),
		Metadata:   map[string]string{"reason": "spam"},
	}
	payload, _ := json.Marshal(event)
	publish(t, pubsub, payload)

	deadline := time.After(2 * time.Second)
	for {
		mu.Lock()
		n := len(got)
		mu.Unlock()
		if n > 0 {
			break
		}
		select {
		case <-deadline:
			t.Fatal("event never dispatched")
		case <-time.After(5 * time.Millisecond):
		}
	}
	cancel()
	<-done

	mu.Lock()
	defer mu.Unlock()
	if got[0].OperatorID != "op-1" || got[0].Category != models.ActionBan {
		t.Errorf("dispatched event = %+v", got[0])
	}
	if got[0].Meta("reason") != "spam" {
		t.Errorf("metadata lost: %+v", got[0].Metadata)
	}
}

func TestMalformedEventsAreSkipped(t *testing.T) {
	var mu sync.Mutex
	var got []models.ActionEvent
	src, pubsub := testSource(t, func(_ context.Context, event models.ActionEvent) {
		mu.Lock()
		got = append(got, event)
		mu.Unlock()
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = src.Serve(ctx)
	}()
	time.Sleep(20 * time.Millisecond)

	publish(t, pubsub, []byte("not json"))
	publish(t, pubsub, []byte(`{"category":"ban"}`)) // missing operator

	valid, _ := json.Marshal(models.ActionEvent{
		OperatorID: "op-1", Category: models.ActionKick, Timestamp: time.Now(),
	})
	publish(t, pubsub, valid)

	deadline := time.After(2 * time.Second)
	for {
		mu.Lock()
		n := len(got)
		mu.Unlock()
		if n > 0 {
			break
		}
		select {
		case <-deadline:
			t.Fatal("valid event never dispatched, consumer stuck on malformed input")
		case <-time.After(5 * time.Millisecond):
		}
	}
	cancel()
	<-done

	mu.Lock()
	defer mu.Unlock()
	if len(got) != 1 || got[0].OperatorID != "op-1" {
		t.Errorf("dispatched = %+v, want only the valid event", got)
	}
}
