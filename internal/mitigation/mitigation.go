// ModSentry - Moderator Activity Tracking and Anomaly Response
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/modsentry

// Package mitigation responds to detection findings: it revokes the
// operator's privileged role and raises alerts through the delivery
// queue. Lacking permission to act is never fatal; the alert path
// always runs.
package mitigation

import (
	"context"
	"errors"
	"fmt"

	"github.com/tomtom215/modsentry/internal/config"
	"github.com/tomtom215/modsentry/internal/detection"
	"github.com/tomtom215/modsentry/internal/logging"
	"github.com/tomtom215/modsentry/internal/metrics"
	"github.com/tomtom215/modsentry/internal/platform"
	"github.com/tomtom215/modsentry/internal/queue"
)

// Enqueuer admits items to the delivery queue.
type Enqueuer interface {
	Enqueue(it queue.Item) bool
}

// Controller executes the mitigation sequence for burst alerts and
// raises advisory alerts for pattern findings.
type Controller struct {
	cfg       *config.PlatformConfig
	directory platform.Directory
	enqueuer  Enqueuer
}

// NewController wires the controller to the platform directory and the
// delivery queue.
func NewController(cfg *config.PlatformConfig, directory platform.Directory, enqueuer Enqueuer) *Controller {
	return &Controller{cfg: cfg, directory: directory, enqueuer: enqueuer}
}

// Mitigate runs the full response for a burst alert: revoke the
// privileged role if still held, alert the operator's audit
// destination, and on a successful revocation broadcast to the
// incident destination. Idempotent: an already de-privileged operator
// is a safe no-op on the revocation step.
//
// operatorDestID may be empty when the operator has no audit
// destination yet; the incident broadcast still goes out.
func (c *Controller) Mitigate(ctx context.Context, alert *detection.Alert, operatorDestID string) {
	revoked, err := c.revoke(ctx, alert.OperatorID)
	metrics.RecordMitigation(err, classifyFailure(err))

	if operatorDestID != "" {
		c.enqueuer.Enqueue(queue.Item{
			DestinationID: operatorDestID,
			Tier:          queue.TierCritical,
			Alert:         true,
			Message:       platform.Message{Content: c.operatorAlertBody(alert, revoked)},
		})
	}

	if revoked && c.cfg.IncidentDestination != "" {
		c.enqueuer.Enqueue(queue.Item{
			DestinationID: c.cfg.IncidentDestination,
			Tier:          queue.TierCritical,
			Alert:         true,
			Message:       platform.Message{Content: c.incidentBody(alert)},
		})
	}
}

// Advise raises a high-priority alert without touching the operator's
// role, for findings that warrant eyes but not automatic demotion.
func (c *Controller) Advise(alert *detection.Alert, operatorDestID string) {
	body := c.advisoryBody(alert)

	if operatorDestID != "" {
		c.enqueuer.Enqueue(queue.Item{
			DestinationID: operatorDestID,
			Tier:          queue.TierHigh,
			Alert:         true,
			Message:       platform.Message{Content: body},
		})
	}
	if c.cfg.IncidentDestination != "" {
		c.enqueuer.Enqueue(queue.Item{
			DestinationID: c.cfg.IncidentDestination,
			Tier:          queue.TierHigh,
			Alert:         true,
			Message:       platform.Message{Content: body},
		})
	}
}

// revoke removes the privileged role when still held. Returns whether a
// revocation actually happened. Authorization failures are logged and
// swallowed so the alert path always continues.
func (c *Controller) revoke(ctx context.Context, operatorID string) (bool, error) {
	member, err := c.directory.GetMember(ctx, operatorID)
	if err != nil {
		if errors.Is(err, platform.ErrNotFound) {
			logging.Info().Str("operator", operatorID).Msg("Operator left the platform, nothing to revoke")
			return false, nil
		}
		logging.Err(err).Str("operator", operatorID).Msg("Could not resolve operator for mitigation")
		return false, err
	}

	if !member.HasRole(c.cfg.PrivilegedRole) {
		logging.Info().Str("operator", operatorID).Msg("Operator already de-privileged")
		return false, nil
	}

	if err := c.directory.RevokePrivilege(ctx, operatorID); err != nil {
		if errors.Is(err, platform.ErrForbidden) {
			logging.Error().
				Str("operator", operatorID).
				Msg("Insufficient permission to revoke privileged role, continuing with alert only")
			return false, err
		}
		logging.Err(err).Str("operator", operatorID).Msg("Privilege revocation failed")
		return false, err
	}

	logging.Warn().Str("operator", operatorID).Msg("Privileged role revoked")
	return true, nil
}

func classifyFailure(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, platform.ErrForbidden):
		return "forbidden"
	case errors.Is(err, platform.ErrRateLimited):
		return "rate_limited"
	default:
		return "platform_error"
	}
}

func (c *Controller) operatorAlertBody(alert *detection.Alert, revoked bool) string {
	action := "Privileges retained, review required."
	if revoked {
		action = "Privileged role removed pending review."
	}
	return fmt.Sprintf(
		"%s BULK ACTION ALERT: operator %s performed %d %s actions within the detection window (threshold %d). %s",
		c.cfg.PingTarget, alert.OperatorID, alert.Count, alert.Category, alert.Threshold, action,
	)
}

func (c *Controller) incidentBody(alert *detection.Alert) string {
	return fmt.Sprintf(
		"%s INCIDENT: operator %s was automatically de-privileged after %d %s actions (threshold %d). "+
			"Review their audit destination and restore the role manually if this was legitimate.",
		c.cfg.PingTarget, alert.OperatorID, alert.Count, alert.Category, alert.Threshold,
	)
}

func (c *Controller) advisoryBody(alert *detection.Alert) string {
	switch alert.Kind {
	case detection.AlertSuspiciousUnban:
		return fmt.Sprintf(
			"%s SUSPICIOUS UNBAN: operator %s unbanned %s only %s after banning them. No action taken automatically.",
			c.cfg.PingTarget, alert.OperatorID, alert.TargetID, alert.SinceBan.Round(0),
		)
	case detection.AlertMassPermission:
		return fmt.Sprintf(
			"%s MASS PERMISSION CHANGES: operator %s made %d permission changes within the detection window (threshold %d). No action taken automatically.",
			c.cfg.PingTarget, alert.OperatorID, alert.Count, alert.Threshold,
		)
	default:
		return fmt.Sprintf("%s ALERT: operator %s triggered %s", c.cfg.PingTarget, alert.OperatorID, alert.Kind)
	}
}
