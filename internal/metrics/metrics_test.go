// ModSentry - Moderator Activity Tracking and Anomaly Response
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/modsentry

package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestTierLabel(t *testing.T) {
	tests := []struct {
		tier int
		want string
	}{
		{0, "critical"},
		{1, "high"},
		{2, "normal"},
		{3, "low"},
		{4, "unknown"},
		{-1, "unknown"},
	}
	for _, tt := range tests {
		if got := TierLabel(tt.tier); got != tt.want {
			t.Errorf("TierLabel(%d) = %q, want %q", tt.tier, got, tt.want)
		}
	}
}

func TestRecordMitigation(t *testing.T) {
	before := testutil.ToFloat64(MitigationsSucceeded)

	RecordMitigation(nil, "")
	if got := testutil.ToFloat64(MitigationsSucceeded); got != before+1 {
		t.Errorf("MitigationsSucceeded = %v, want %v", got, before+1)
	}

	failBefore := testutil.ToFloat64(MitigationsFailed.WithLabelValues("forbidden"))
	RecordMitigation(errors.New("missing permissions"), "forbidden")
	if got := testutil.ToFloat64(MitigationsFailed.WithLabelValues("forbidden")); got != failBefore+1 {
		t.Errorf("MitigationsFailed[forbidden] = %v, want %v", got, failBefore+1)
	}
}

func TestRecordReconciliation(t *testing.T) {
	okBefore := testutil.ToFloat64(ReconciliationRuns.WithLabelValues("success"))
	RecordReconciliation(2*time.Second, 3, 1, nil)
	if got := testutil.ToFloat64(ReconciliationRuns.WithLabelValues("success")); got != okBefore+1 {
		t.Errorf("ReconciliationRuns[success] = %v, want %v", got, okBefore+1)
	}
	if got := testutil.ToFloat64(ReconciliationDrift.WithLabelValues("enrolled")); got != 3 {
		t.Errorf("ReconciliationDrift[enrolled] = %v, want 3", got)
	}
	if got := testutil.ToFloat64(ReconciliationDrift.WithLabelValues("unenrolled")); got != 1 {
		t.Errorf("ReconciliationDrift[unenrolled] = %v, want 1", got)
	}

	failBefore := testutil.ToFloat64(ReconciliationRuns.WithLabelValues("failure"))
	RecordReconciliation(time.Second, 0, 0, errors.New("directory unavailable"))
	if got := testutil.ToFloat64(ReconciliationRuns.WithLabelValues("failure")); got != failBefore+1 {
		t.Errorf("ReconciliationRuns[failure] = %v, want %v", got, failBefore+1)
	}
}

func TestUpdateQueueDepth(t *testing.T) {
	UpdateQueueDepth(map[int]int{0: 2, 1: 5, 2: 0, 3: 9})

	wants := map[string]float64{"critical": 2, "high": 5, "normal": 0, "low": 9}
	for tier, want := range wants {
		if got := testutil.ToFloat64(QueueDepth.WithLabelValues(tier)); got != want {
			t.Errorf("QueueDepth[%s] = %v, want %v", tier, got, want)
		}
	}

	// Missing tiers reset to zero.
	UpdateQueueDepth(map[int]int{0: 1})
	if got := testutil.ToFloat64(QueueDepth.WithLabelValues("low")); got != 0 {
		t.Errorf("QueueDepth[low] = %v, want 0", got)
	}
}
