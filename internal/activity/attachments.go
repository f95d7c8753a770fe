// ModSentry - Moderator Activity Tracking and Anomaly Response
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/modsentry

package activity

import (
	"context"
	"strings"

	"github.com/tomtom215/modsentry/internal/config"
	"github.com/tomtom215/modsentry/internal/logging"
	"github.com/tomtom215/modsentry/internal/metrics"
	"github.com/tomtom215/modsentry/internal/platform"
)

// AttachmentRef points at an attachment on the platform CDN.
type AttachmentRef struct {
	Filename    string
	ContentType string
	URL         string
}

// cacheableTypes are the content-type fragments worth preserving.
// Anything else (documents, archives, executables) is skipped.
var cacheableTypes = []string{"image", "video", "gif"}

func cacheable(contentType string) bool {
	for _, t := range cacheableTypes {
		if strings.Contains(contentType, t) {
			return true
		}
	}
	return false
}

// LoadAttachments downloads up to cfg.MaxAttachments media attachments,
// best effort. Failures are logged and skipped; the message is always
// cached even when every download fails.
func LoadAttachments(ctx context.Context, fetcher platform.Fetcher, cfg config.CacheConfig, refs []AttachmentRef) []platform.Attachment {
	var loaded []platform.Attachment

	for _, ref := range refs {
		if len(loaded) >= cfg.MaxAttachments {
			metrics.CacheAttachmentsSkipped.WithLabelValues("over_limit").Inc()
			continue
		}
		if !cacheable(ref.ContentType) {
			metrics.CacheAttachmentsSkipped.WithLabelValues("type").Inc()
			continue
		}

		data, err := fetcher.FetchAttachment(ctx, ref.URL, cfg.MaxAttachmentBytes)
		if err != nil {
			metrics.CacheAttachmentsSkipped.WithLabelValues("fetch_error").Inc()
			logging.Debug().Str("filename", ref.Filename).Err(err).Msg("Skipping attachment download")
			continue
		}

		loaded = append(loaded, platform.Attachment{
			Filename:    ref.Filename,
			ContentType: ref.ContentType,
			Data:        data,
		})
		metrics.CacheAttachmentsStored.Inc()
	}

	return loaded
}

// LoadAttachments downloads attachments using the cache's own bounds.
func (c *Cache) LoadAttachments(ctx context.Context, fetcher platform.Fetcher, refs []AttachmentRef) []platform.Attachment {
	return LoadAttachments(ctx, fetcher, c.cfg, refs)
}
