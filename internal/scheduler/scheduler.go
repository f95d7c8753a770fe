// ModSentry - Moderator Activity Tracking and Anomaly Response
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/modsentry

// Package scheduler runs jobs once per day at a fixed local
// time-of-day, sleeping until the next occurrence. A failed run is
// retried after a fallback interval instead of waiting a full day, and
// jobs can be triggered on demand between scheduled runs.
package scheduler

import (
	"context"
	"time"

	"github.com/tomtom215/modsentry/internal/logging"
)

// Job is a scheduled unit of work.
type Job func(ctx context.Context) error

// Daily runs a job at the same local time every day. Implements
// suture.Service.
type Daily struct {
	name    string
	loc     *time.Location
	hour    int
	minute  int
	retry   time.Duration
	job     Job
	trigger chan struct{}

	now func() time.Time
}

// NewDaily creates a scheduler firing at hour:minute in loc.
func NewDaily(name string, loc *time.Location, hour, minute int, retry time.Duration, job Job) *Daily {
	return &Daily{
		name:    name,
		loc:     loc,
		hour:    hour,
		minute:  minute,
		retry:   retry,
		job:     job,
		trigger: make(chan struct{}, 1),
		now:     time.Now,
	}
}

// RunNow requests an immediate run. Non-blocking; a request while one
// is already pending is coalesced.
func (d *Daily) RunNow() {
	select {
	case d.trigger <- struct{}{}:
	default:
	}
}

// nextOccurrence returns the next time hour:minute comes around in loc,
// strictly after now.
func nextOccurrence(now time.Time, loc *time.Location, hour, minute int) time.Time {
	local := now.In(loc)
	next := time.Date(local.Year(), local.Month(), local.Day(), hour, minute, 0, 0, loc)
	if !next.After(local) {
		next = next.AddDate(0, 0, 1)
	}
	return next
}

// Serve implements suture.Service: sleep until the next scheduled
// occurrence, run the job, repeat. A job error shortens the next sleep
// to the retry interval.
func (d *Daily) Serve(ctx context.Context) error {
	logging.Info().
		Str("scheduler", d.name).
		Str("at", time.Date(0, 1, 1, d.hour, d.minute, 0, 0, time.UTC).Format("15:04")).
		Str("timezone", d.loc.String()).
		Msg("Scheduler started")

	timer := time.NewTimer(time.Until(nextOccurrence(d.now(), d.loc, d.hour, d.minute)))
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-d.trigger:
		case <-timer.C:
		}

		wait := d.run(ctx)
		if !timer.Stop() {
			select {
			case <-timer.C:
			default:
			}
		}
		timer.Reset(wait)
	}
}

// run executes the job and returns how long to sleep before the next
// attempt.
func (d *Daily) run(ctx context.Context) time.Duration {
	started := d.now()
	if err := d.job(ctx); err != nil {
		if ctx.Err() != nil {
			return time.Second
		}
		logging.Err(err).
			Str("scheduler", d.name).
			Dur("retry_in", d.retry).
			Msg("Scheduled run failed")
		return d.retry
	}

	next := nextOccurrence(d.now(), d.loc, d.hour, d.minute)
	logging.Debug().
		Str("scheduler", d.name).
		Dur("duration", d.now().Sub(started)).
		Time("next_run", next).
		Msg("Scheduled run complete")
	return time.Until(next)
}

// String implements fmt.Stringer for supervisor logs.
func (d *Daily) String() string { return d.name }
