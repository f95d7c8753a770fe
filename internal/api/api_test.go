// ModSentry - Moderator Activity Tracking and Anomaly Response
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/modsentry

package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/modsentry/internal/config"
	"github.com/tomtom215/modsentry/internal/queue"
)

type fakeCore struct {
	status   queue.Status
	enqueued []queue.Item
	full     bool
}

func (c *fakeCore) QueueStatus() queue.Status { return c.status }

func (c *fakeCore) Enqueue(it queue.Item) bool {
	if c.full {
		return false
	}
	c.enqueued = append(c.enqueued, it)
	return true
}

func testServer(t *testing.T, core *fakeCore) (*httptest.Server, *int, *int) {
	t.Helper()

	cfg := &config.ServerConfig{
		Port:            3858,
		RateLimitReqs:   1000,
		RateLimitWindow: time.Minute,
		CORSOrigins:     []string{"*"},
	}
	var reconciles, inactivities int
	router := NewRouter(cfg, core,
		func() { reconciles++ },
		func() { inactivities++ },
	)
	srv := httptest.NewServer(router.Setup())
	t.Cleanup(srv.Close)
	return srv, &reconciles, &inactivities
}

func TestHealth(t *testing.T) {
	core := &fakeCore{status: queue.Status{Running: true}}
	srv, _, _ := testServer(t, core)

	resp, err := http.Get(srv.URL + "/api/v1/health")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	var body map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body["status"] != "ok" {
		t.Errorf("status field = %v", body["status"])
	}
	if body["queue_running"] != true {
		t.Errorf("queue_running = %v", body["queue_running"])
	}
}

func TestQueueStatus(t *testing.T) {
	core := &fakeCore{status: queue.Status{
		Running: true,
		Total:   3,
		ByTier:  map[int]int{queue.TierCritical: 1, queue.TierNormal: 2},
	}}
	srv, _, _ := testServer(t, core)

	resp, err := http.Get(srv.URL + "/api/v1/queue")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()

	var body struct {
		Running bool           `json:"running"`
		Total   int            `json:"total"`
		ByTier  map[string]int `json:"by_tier"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Total != 3 || body.ByTier["critical"] != 1 || body.ByTier["normal"] != 2 {
		t.Errorf("body = %+v", body)
	}
}

func TestEnqueue(t *testing.T) {
	core := &fakeCore{}
	srv, _, _ := testServer(t, core)

	payload := `{"destination_id":"dest-1","content":"hello","tier":1,"alert":true}`
	resp, err := http.Post(srv.URL+"/api/v1/queue/enqueue", "application/json", strings.NewReader(payload))
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if len(core.enqueued) != 1 {
		t.Fatalf("enqueued = %d items", len(core.enqueued))
	}
	it := core.enqueued[0]
	if it.DestinationID != "dest-1" || it.Tier != queue.TierHigh || !it.Alert {
		t.Errorf("item = %+v", it)
	}
}

func TestEnqueueValidation(t *testing.T) {
	core := &fakeCore{}
	srv, _, _ := testServer(t, core)

	tests := []struct {
		name    string
		payload string
	}{
		{"missing destination", `{"content":"hello"}`},
		{"missing content", `{"destination_id":"dest-1"}`},
		{"tier out of range", `{"destination_id":"dest-1","content":"x","tier":7}`},
		{"not json", `nope`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, err := http.Post(srv.URL+"/api/v1/queue/enqueue", "application/json", strings.NewReader(tt.payload))
			if err != nil {
				t.Fatalf("post: %v", err)
			}
			resp.Body.Close()
			if resp.StatusCode != http.StatusBadRequest {
				t.Errorf("status = %d, want 400", resp.StatusCode)
			}
		})
	}
	if len(core.enqueued) != 0 {
		t.Errorf("invalid requests reached the queue: %+v", core.enqueued)
	}
}

func TestEnqueueQueueFull(t *testing.T) {
	core := &fakeCore{full: true}
	srv, _, _ := testServer(t, core)

	payload := `{"destination_id":"dest-1","content":"hello"}`
	resp, err := http.Post(srv.URL+"/api/v1/queue/enqueue", "application/json", strings.NewReader(payload))
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", resp.StatusCode)
	}
}

func TestManualTriggers(t *testing.T) {
	core := &fakeCore{}
	srv, reconciles, inactivities := testServer(t, core)

	for _, path := range []string{"/api/v1/run/reconcile", "/api/v1/run/inactivity"} {
		resp, err := http.Post(srv.URL+path, "application/json", nil)
		if err != nil {
			t.Fatalf("post %s: %v", path, err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusAccepted {
			t.Errorf("%s status = %d, want 202", path, resp.StatusCode)
		}
	}
	if *reconciles != 1 || *inactivities != 1 {
		t.Errorf("triggers = %d/%d, want 1/1", *reconciles, *inactivities)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	core := &fakeCore{}
	srv, _, _ := testServer(t, core)

	resp, err := http.Get(srv.URL + "/metrics")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d", resp.StatusCode)
	}
}

func TestRequestIDHeader(t *testing.T) {
	core := &fakeCore{}
	srv, _, _ := testServer(t, core)

	resp, err := http.Get(srv.URL + "/api/v1/health")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	resp.Body.Close()
	if resp.Header.Get("X-Request-ID") == "" {
		t.Error("expected generated X-Request-ID header")
	}

	req, err := http.NewRequest(http.MethodGet, srv.URL+"/api/v1/health", nil)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("X-Request-ID", "upstream-42")
	resp, err = http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("do: %v", err)
	}
	resp.Body.Close()
	if got := resp.Header.Get("X-Request-ID"); got != "upstream-42" {
		t.Errorf("X-Request-ID = %q, want upstream-42", got)
	}
}

func TestGetRequestIDRoundTrip(t *testing.T) {
	if got := GetRequestID(context.Background()); got != "" {
		t.Errorf("GetRequestID on empty context = %q, want empty", got)
	}

	var captured string
	h := RequestID(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		captured = GetRequestID(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/health", nil)
	req.Header.Set("X-Request-ID", "upstream-7")
	h.ServeHTTP(httptest.NewRecorder(), req)

	if captured != "upstream-7" {
		t.Errorf("GetRequestID = %q, want upstream-7", captured)
	}
}
