// ModSentry - Moderator Activity Tracking and Anomaly Response
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/modsentry

package api

import (
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/goccy/go-json"

	"github.com/tomtom215/modsentry/internal/logging"
	"github.com/tomtom215/modsentry/internal/metrics"
	"github.com/tomtom215/modsentry/internal/platform"
	"github.com/tomtom215/modsentry/internal/queue"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// Handler holds the endpoint implementations.
type Handler struct {
	core          Core
	reconcileNow  func()
	inactivityNow func()
	started       time.Time
}

// NewHandler creates the endpoint set.
func NewHandler(core Core, reconcileNow, inactivityNow func()) *Handler {
	return &Handler{
		core:          core,
		reconcileNow:  reconcileNow,
		inactivityNow: inactivityNow,
		started:       time.Now(),
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logging.Err(err).Msg("Response encoding failed")
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// Health reports liveness and uptime.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":         "ok",
		"uptime_seconds": int(time.Since(h.started).Seconds()),
		"queue_running":  h.core.QueueStatus().Running,
	})
}

// QueueStatus reports queue depth by tier and the worker state.
func (h *Handler) QueueStatus(w http.ResponseWriter, r *http.Request) {
	st := h.core.QueueStatus()
	writeJSON(w, http.StatusOK, map[string]any{
		"running": st.Running,
		"total":   st.Total,
		"by_tier": map[string]int{
			"critical": st.ByTier[queue.TierCritical],
			"high":     st.ByTier[queue.TierHigh],
			"normal":   st.ByTier[queue.TierNormal],
			"low":      st.ByTier[queue.TierLow],
		},
	})
}

type enqueueRequest struct {
	DestinationID string `json:"destination_id" validate:"required"`
	Content       string `json:"content" validate:"required"`
	Tier          int    `json:"tier" validate:"min=0,max=3"`
	Alert         bool   `json:"alert"`
}

// Enqueue admits an arbitrary delivery, primarily for operational
// announcements.
func (h *Handler) Enqueue(w http.ResponseWriter, r *http.Request) {
	var req enqueueRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if err := validate.Struct(&req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	accepted := h.core.Enqueue(queue.Item{
		DestinationID: req.DestinationID,
		Tier:          req.Tier,
		Alert:         req.Alert,
		Message:       platform.Message{Content: req.Content},
	})
	if !accepted {
		writeError(w, http.StatusServiceUnavailable, "queue full")
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "queued"})
}

// RunReconcile triggers an immediate reconciliation run.
func (h *Handler) RunReconcile(w http.ResponseWriter, r *http.Request) {
	h.reconcileNow()
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "triggered"})
}

// RunInactivity triggers an immediate inactivity check.
func (h *Handler) RunInactivity(w http.ResponseWriter, r *http.Request) {
	h.inactivityNow()
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "triggered"})
}

// requestMetrics records request counts and latency per route, and logs
// each completed request under its request ID.
func requestMetrics(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		started := time.Now()
		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(sw, r)
		elapsed := time.Since(started)
		metrics.RecordAPIRequest(r.Method, r.URL.Path, sw.status, elapsed)
		logging.Debug().
			Str("request_id", GetRequestID(r.Context())).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", sw.status).
			Dur("duration", elapsed).
			Msg("Request completed")
	})
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}
