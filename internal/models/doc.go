// ModSentry - Moderator Activity Tracking and Anomaly Response
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/modsentry

// Package models defines the core data types shared across ModSentry:
// tracked operators, classified action events, and the closed set of
// action categories with their monitoring metadata.
package models
