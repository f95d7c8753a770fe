// ModSentry - Moderator Activity Tracking and Anomaly Response
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/modsentry

package platform

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/modsentry/internal/config"
	"github.com/tomtom215/modsentry/internal/logging"
	"github.com/tomtom215/modsentry/internal/metrics"
)

// Client is the REST implementation of the platform API.
//
// Thread Safety: safe for concurrent use. Each request creates its own
// HTTP request.
type Client struct {
	baseURL        string
	token          string
	privilegedRole string
	client         *http.Client
	maxRetries     int
	retryBaseDelay time.Duration
}

// NewClient creates a platform client from configuration.
func NewClient(cfg *config.PlatformConfig) *Client {
	return &Client{
		baseURL:        cfg.BaseURL,
		token:          cfg.Token,
		privilegedRole: cfg.PrivilegedRole,
		client: &http.Client{
			Timeout: cfg.Timeout,
		},
		maxRetries:     cfg.RetryAttempts,
		retryBaseDelay: cfg.RetryBaseDelay,
	}
}

// Ping verifies connectivity and credentials.
func (c *Client) Ping(ctx context.Context) error {
	return c.doJSON(ctx, http.MethodGet, "/gateway/ping", nil, nil, "ping")
}

// ListPrivileged returns every member holding the privileged role.
func (c *Client) ListPrivileged(ctx context.Context) ([]Member, error) {
	var members []Member
	path := "/members?role=" + url.QueryEscape(c.privilegedRole)
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &members, "list_privileged"); err != nil {
		return nil, err
	}
	return members, nil
}

// GetMember returns one member by id.
func (c *Client) GetMember(ctx context.Context, memberID string) (*Member, error) {
	var member Member
	path := "/members/" + url.PathEscape(memberID)
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &member, "get_member"); err != nil {
		return nil, err
	}
	return &member, nil
}

// RevokePrivilege removes the privileged role from a member.
func (c *Client) RevokePrivilege(ctx context.Context, memberID string) error {
	path := "/members/" + url.PathEscape(memberID) + "/roles/" + url.PathEscape(c.privilegedRole)
	return c.doJSON(ctx, http.MethodDelete, path, nil, nil, "revoke_privilege")
}

// CreateDestination creates a destination channel and returns its id.
func (c *Client) CreateDestination(ctx context.Context, name string) (string, error) {
	body := map[string]string{"name": name}
	var dest Destination
	if err := c.doJSON(ctx, http.MethodPost, "/channels", body, &dest, "create_destination"); err != nil {
		return "", err
	}
	return dest.ID, nil
}

// GetDestination returns a destination by id.
func (c *Client) GetDestination(ctx context.Context, destinationID string) (*Destination, error) {
	var dest Destination
	path := "/channels/" + url.PathEscape(destinationID)
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &dest, "get_destination"); err != nil {
		return nil, err
	}
	return &dest, nil
}

// RenameDestination updates a destination's name.
func (c *Client) RenameDestination(ctx context.Context, destinationID, name string) error {
	body := map[string]string{"name": name}
	path := "/channels/" + url.PathEscape(destinationID)
	return c.doJSON(ctx, http.MethodPatch, path, body, nil, "rename_destination")
}

// Send delivers a message to a destination channel. Messages with
// attachments go out as multipart form data, plain messages as JSON.
func (c *Client) Send(ctx context.Context, destinationID string, msg *Message) error {
	path := "/channels/" + url.PathEscape(destinationID) + "/messages"
	if len(msg.Attachments) == 0 {
		return c.doJSON(ctx, http.MethodPost, path, msg, nil, "send")
	}
	return c.sendMultipart(ctx, path, msg)
}

// FetchAttachment downloads the content at url, bounded by maxBytes.
func (c *Client) FetchAttachment(ctx context.Context, fetchURL string, maxBytes int64) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fetchURL, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("create attachment request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch attachment: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch attachment: unexpected status %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read attachment body: %w", err)
	}
	if int64(len(data)) > maxBytes {
		return nil, fmt.Errorf("attachment exceeds %d bytes", maxBytes)
	}
	return data, nil
}

// doJSON performs a JSON request with retry on transient failures.
// A nil result discards the response body.
func (c *Client) doJSON(ctx context.Context, method, path string, body, result interface{}, operation string) error {
	start := time.Now()
	err := c.doWithRetry(ctx, operation, func(ctx context.Context) (*http.Response, error) {
		var reader io.Reader
		if body != nil {
			data, err := json.Marshal(body)
			if err != nil {
				return nil, fmt.Errorf("marshal request body: %w", err)
			}
			reader = bytes.NewReader(data)
		} else {
			reader = http.NoBody
		}

		req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
		if err != nil {
			return nil, fmt.Errorf("create request: %w", err)
		}
		c.setHeaders(req)
		if body != nil {
			req.Header.Set("Content-Type", "application/json")
		}
		return c.client.Do(req)
	}, result)
	metrics.RecordPlatformRequest(operation, time.Since(start), err)
	return err
}

func (c *Client) sendMultipart(ctx context.Context, path string, msg *Message) error {
	start := time.Now()
	err := c.doWithRetry(ctx, "send", func(ctx context.Context) (*http.Response, error) {
		var buf bytes.Buffer
		w := multipart.NewWriter(&buf)

		payload, err := json.Marshal(map[string]string{"content": msg.Content})
		if err != nil {
			return nil, fmt.Errorf("marshal message payload: %w", err)
		}
		if err := w.WriteField("payload_json", string(payload)); err != nil {
			return nil, fmt.Errorf("write payload field: %w", err)
		}

		for i, att := range msg.Attachments {
			part, err := w.CreateFormFile(fmt.Sprintf("files[%d]", i), att.Filename)
			if err != nil {
				return nil, fmt.Errorf("create form file: %w", err)
			}
			if _, err := part.Write(att.Data); err != nil {
				return nil, fmt.Errorf("write attachment %s: %w", att.Filename, err)
			}
		}
		if err := w.Close(); err != nil {
			return nil, fmt.Errorf("close multipart writer: %w", err)
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, &buf)
		if err != nil {
			return nil, fmt.Errorf("create request: %w", err)
		}
		c.setHeaders(req)
		req.Header.Set("Content-Type", w.FormDataContentType())
		return c.client.Do(req)
	}, nil)
	metrics.RecordPlatformRequest("send", time.Since(start), err)
	return err
}

// doWithRetry runs one request attempt, retrying HTTP 429 and 5xx with
// exponential backoff (base delay doubled per attempt). A Retry-After
// header on a 429 overrides the computed delay.
func (c *Client) doWithRetry(ctx context.Context, operation string, do func(context.Context) (*http.Response, error), result interface{}) error {
	var lastErr error

	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if attempt > 0 {
			metrics.PlatformRetries.Inc()
		}

		resp, err := do(ctx)
		if err != nil {
			lastErr = err
		} else {
			retryable, err := c.handleResponse(resp, result)
			if !retryable {
				return err
			}
			lastErr = err
		}

		if attempt == c.maxRetries {
			break
		}

		delay := c.retryBaseDelay * time.Duration(1<<uint(attempt))
		if resp != nil {
			if retryAfter := resp.Header.Get("Retry-After"); retryAfter != "" {
				if d, perr := time.ParseDuration(retryAfter + "s"); perr == nil {
					delay = d
				}
			}
		}

		logging.Debug().
			Str("operation", operation).
			Int("attempt", attempt+1).
			Dur("delay", delay).
			Err(lastErr).
			Msg("Retrying platform request")

		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	return fmt.Errorf("%s failed after %d attempts: %w", operation, c.maxRetries+1, lastErr)
}

// handleResponse consumes the response body. It reports whether the
// status is retryable and returns the mapped error for terminal statuses.
func (c *Client) handleResponse(resp *http.Response, result interface{}) (retryable bool, err error) {
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return true, ErrRateLimited
	case resp.StatusCode >= 500:
		return true, fmt.Errorf("platform: server error %d", resp.StatusCode)
	case resp.StatusCode == http.StatusForbidden:
		return false, ErrForbidden
	case resp.StatusCode == http.StatusNotFound:
		return false, ErrNotFound
	case resp.StatusCode >= 400:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return false, fmt.Errorf("platform: status %d: %s", resp.StatusCode, body)
	}

	if result != nil {
		if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
			return false, fmt.Errorf("decode response: %w", err)
		}
	}
	return false, nil
}

func (c *Client) setHeaders(req *http.Request) {
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "ModSentry (https://github.com/tomtom215/modsentry)")
}
