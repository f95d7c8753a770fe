// ModSentry - Moderator Activity Tracking and Anomaly Response
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/modsentry

// Package platform provides the REST client for the host platform:
// the privilege directory, per-operator destination channels and
// message delivery. All outbound calls carry bounded retries with
// exponential backoff; destination sends additionally run behind a
// circuit breaker.
package platform

import (
	"context"
	"errors"
)

// Sentinel errors mapped from platform HTTP status codes.
var (
	// ErrForbidden means the platform rejected the call for lack of
	// permission (HTTP 403).
	ErrForbidden = errors.New("platform: forbidden")

	// ErrNotFound means the referenced member, destination or resource
	// does not exist (HTTP 404).
	ErrNotFound = errors.New("platform: not found")

	// ErrRateLimited means retries were exhausted against HTTP 429.
	ErrRateLimited = errors.New("platform: rate limited")
)

// Member is a platform account as reported by the directory.
type Member struct {
	ID          string   `json:"id"`
	DisplayName string   `json:"display_name"`
	AvatarHash  string   `json:"avatar_hash"`
	Roles       []string `json:"roles"`
	Bot         bool     `json:"bot"`
}

// HasRole reports whether the member holds the given role id.
func (m *Member) HasRole(roleID string) bool {
	for _, r := range m.Roles {
		if r == roleID {
			return true
		}
	}
	return false
}

// Destination is a channel that receives an operator's activity log.
type Destination struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Attachment is a file included with an outbound message.
type Attachment struct {
	Filename    string `json:"filename"`
	ContentType string `json:"content_type"`
	Data        []byte `json:"-"`
}

// Message is an outbound payload for a destination channel.
type Message struct {
	Content     string       `json:"content"`
	Attachments []Attachment `json:"-"`
}

// Directory reads the privilege directory and manages role membership.
type Directory interface {
	// ListPrivileged returns every member currently holding the
	// privileged role.
	ListPrivileged(ctx context.Context) ([]Member, error)

	// GetMember returns one member by id, or ErrNotFound.
	GetMember(ctx context.Context, memberID string) (*Member, error)

	// RevokePrivilege removes the privileged role from a member.
	// Returns ErrForbidden when the platform denies the change.
	RevokePrivilege(ctx context.Context, memberID string) error
}

// Destinations manages per-operator destination channels and delivery.
type Destinations interface {
	// CreateDestination creates a channel with the given name and
	// returns its id.
	CreateDestination(ctx context.Context, name string) (string, error)

	// GetDestination returns a destination by id, or ErrNotFound.
	GetDestination(ctx context.Context, destinationID string) (*Destination, error)

	// RenameDestination updates a destination's name.
	RenameDestination(ctx context.Context, destinationID, name string) error

	// Send delivers a message to a destination channel.
	Send(ctx context.Context, destinationID string, msg *Message) error
}

// Fetcher retrieves attachment bytes referenced by audit events.
type Fetcher interface {
	// FetchAttachment downloads the content at url, bounded by maxBytes.
	FetchAttachment(ctx context.Context, url string, maxBytes int64) ([]byte, error)
}

// API is the full platform surface the rest of the system depends on.
type API interface {
	Directory
	Destinations
	Fetcher

	// Ping verifies connectivity and credentials.
	Ping(ctx context.Context) error
}
