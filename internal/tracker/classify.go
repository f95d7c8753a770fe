// ModSentry - Moderator Activity Tracking and Anomaly Response
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/modsentry

package tracker

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/tomtom215/modsentry/internal/activity"
	"github.com/tomtom215/modsentry/internal/logging"
	"github.com/tomtom215/modsentry/internal/metrics"
	"github.com/tomtom215/modsentry/internal/models"
	"github.com/tomtom215/modsentry/internal/platform"
	"github.com/tomtom215/modsentry/internal/queue"
)

// ClassifyAndRecord is the entry point for every audit event. Events
// from untracked operators are discarded; tracked operators get their
// record updated, the detectors evaluated, and an audit log line
// queued to their destination.
func (t *Tracker) ClassifyAndRecord(ctx context.Context, event models.ActionEvent) {
	started := t.now()

	op, err := t.store.Get(ctx, event.OperatorID)
	if err != nil {
		metrics.EventsDiscarded.WithLabelValues("untracked").Inc()
		return
	}

	if event.Timestamp.IsZero() {
		event.Timestamp = started
	}

	// Message events feed only the forensic cache, they are not
	// moderation actions.
	if event.Category == models.ActionMessage {
		t.recordMessage(ctx, event)
		metrics.RecordEvent(string(event.Category), t.now().Sub(started))
		return
	}

	op.ActionCount++
	if event.Timestamp.After(op.LastActionAt) {
		op.LastActionAt = event.Timestamp
	}
	if err := t.store.Upsert(ctx, op); err != nil {
		logging.Err(err).Str("operator", op.OperatorID).Msg("Operator record update failed")
	}

	t.cache.RecordActivity(event.OperatorID, event.Timestamp)
	if event.TargetID != "" {
		t.cache.RecordTargetAction(event.OperatorID, event.TargetID, event.Timestamp)
	}

	t.evaluate(ctx, event)
	t.logAction(ctx, event)

	metrics.RecordEvent(string(event.Category), t.now().Sub(started))
}

// evaluate runs the detection rules for one event and dispatches the
// response for any finding.
func (t *Tracker) evaluate(ctx context.Context, event models.ActionEvent) {
	destID := t.Destination(ctx, event.OperatorID)

	switch event.Category {
	case models.ActionBan:
		t.detector.RecordBan(event.OperatorID, event.TargetID, event.Timestamp)
		if alert := t.detector.RecordAction(event.OperatorID, event.Category, event.Timestamp); alert != nil {
			t.responder.Mitigate(ctx, alert, destID)
		}
	case models.ActionUnban:
		if alert := t.detector.CheckUnban(event.OperatorID, event.TargetID, event.Timestamp); alert != nil {
			t.responder.Advise(alert, destID)
		}
	case models.ActionPermissionChange:
		if alert := t.detector.RecordPermissionChange(event.OperatorID, event.Timestamp); alert != nil {
			t.responder.Advise(alert, destID)
		}
	default:
		if alert := t.detector.RecordAction(event.OperatorID, event.Category, event.Timestamp); alert != nil {
			t.responder.Mitigate(ctx, alert, destID)
		}
	}
}

// recordMessage caches a tracked operator's message, including small
// attachments, so deletions by others can be shown later.
func (t *Tracker) recordMessage(ctx context.Context, event models.ActionEvent) {
	msg := activity.CachedMessage{
		MessageID: event.Meta("message_id"),
		AuthorID:  event.OperatorID,
		ChannelID: event.Meta("channel_id"),
		Content:   event.Meta("content"),
		CachedAt:  event.Timestamp,
	}
	if msg.MessageID == "" {
		metrics.EventsDiscarded.WithLabelValues("malformed").Inc()
		return
	}

	if refs := parseAttachmentRefs(event); len(refs) > 0 {
		msg.Attachments = t.cache.LoadAttachments(ctx, t.api, refs)
	}
	t.cache.CacheMessage(msg)
}

// parseAttachmentRefs reads the pipe-delimited attachment lists the
// event source encodes into metadata.
func parseAttachmentRefs(event models.ActionEvent) []activity.AttachmentRef {
	urls := splitMeta(event.Meta("attachment_urls"))
	if len(urls) == 0 {
		return nil
	}
	names := splitMeta(event.Meta("attachment_names"))
	types := splitMeta(event.Meta("attachment_types"))

	refs := make([]activity.AttachmentRef, 0, len(urls))
	for i, u := range urls {
		ref := activity.AttachmentRef{URL: u}
		if i < len(names) {
			ref.Filename = names[i]
		}
		if i < len(types) {
			ref.ContentType = types[i]
		}
		refs = append(refs, ref)
	}
	return refs
}

func splitMeta(s string) []string {
	if s == "" {
		return nil
	}
	return strings.Split(s, "|")
}

// logAction queues the routine audit line for the operator's
// destination. Deletions of cached messages include the lost content.
func (t *Tracker) logAction(ctx context.Context, event models.ActionEvent) {
	destID := t.Destination(ctx, event.OperatorID)
	if destID == "" {
		return
	}

	tier := queue.TierNormal
	if event.Category.Destructive() {
		tier = queue.TierHigh
	}

	var b strings.Builder
	fmt.Fprintf(&b, "[%s] %s", event.Timestamp.UTC().Format(time.RFC3339), event.Category)
	if event.TargetID != "" {
		fmt.Fprintf(&b, " target=%s", event.TargetID)
	}
	if reason := event.Meta("reason"); reason != "" {
		fmt.Fprintf(&b, " reason=%q", reason)
	}

	if event.Category == models.ActionDelete || event.Category == models.ActionBulkDelete {
		if cached, ok := t.cache.CachedMessage(event.Meta("message_id")); ok {
			fmt.Fprintf(&b, "\nDeleted message from %s: %q", cached.AuthorID, cached.Content)
			if n := len(cached.Attachments); n > 0 {
				fmt.Fprintf(&b, " (%d cached attachments)", n)
			}
		}
	}

	t.queue.Enqueue(queue.Item{
		DestinationID: destID,
		Tier:          tier,
		Message: platform.Message{
			Content:     b.String(),
			Attachments: t.cachedAttachments(event),
		},
	})
}

// cachedAttachments returns the cached attachments for a delete event
// so the lost files ride along with the audit line.
func (t *Tracker) cachedAttachments(event models.ActionEvent) []platform.Attachment {
	if event.Category != models.ActionDelete && event.Category != models.ActionBulkDelete {
		return nil
	}
	cached, ok := t.cache.CachedMessage(event.Meta("message_id"))
	if !ok {
		return nil
	}
	return cached.Attachments
}
