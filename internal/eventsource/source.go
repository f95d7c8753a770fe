// ModSentry - Moderator Activity Tracking and Anomaly Response
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/modsentry

// Package eventsource consumes the platform audit feed from NATS
// JetStream and hands decoded action events to the tracker. Malformed
// messages are acked and counted, never redelivered.
package eventsource

import (
	"context"
	"fmt"

	"github.com/ThreeDotsLabs/watermill"
	wmNats "github.com/ThreeDotsLabs/watermill-nats/v2/pkg/nats"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/goccy/go-json"
	natsgo "github.com/nats-io/nats.go"

	"github.com/tomtom215/modsentry/internal/config"
	"github.com/tomtom215/modsentry/internal/logging"
	"github.com/tomtom215/modsentry/internal/metrics"
	"github.com/tomtom215/modsentry/internal/models"
)

// Handler receives each decoded audit event.
type Handler func(ctx context.Context, event models.ActionEvent)

// Source is the durable JetStream consumer feeding the classification
// path. Implements suture.Service.
type Source struct {
	cfg        config.EventSourceConfig
	subscriber message.Subscriber
	handler    Handler
	logger     watermill.LoggerAdapter
}

// New connects a durable JetStream subscriber for the audit topic.
func New(cfg config.EventSourceConfig, handler Handler) (*Source, error) {
	logger := logging.NewWatermillAdapter()

	natsOpts := []natsgo.Option{
		natsgo.RetryOnFailedConnect(true),
		natsgo.MaxReconnects(cfg.MaxReconnects),
		natsgo.ReconnectWait(cfg.ReconnectWait),
		natsgo.DisconnectErrHandler(func(_ *natsgo.Conn, err error) {
			if err != nil {
				logger.Error("Audit feed disconnected", err, nil)
			}
		}),
		natsgo.ReconnectHandler(func(nc *natsgo.Conn) {
			logger.Info("Audit feed reconnected", watermill.LogFields{"url": nc.ConnectedUrl()})
		}),
	}

	subOpts := []natsgo.SubOpt{
		natsgo.AckWait(cfg.AckWaitTimeout),
		natsgo.DeliverNew(),
	}

	// Bind to a pre-provisioned stream when one is named; wildcard
	// topics cannot auto-provision.
	autoProvision := true
	if cfg.StreamName != "" {
		subOpts = append(subOpts, natsgo.BindStream(cfg.StreamName))
		autoProvision = false
	}

	sub, err := wmNats.NewSubscriber(wmNats.SubscriberConfig{
		URL:              cfg.URL,
		QueueGroupPrefix: cfg.QueueGroup,
		SubscribersCount: cfg.SubscribersCount,
		AckWaitTimeout:   cfg.AckWaitTimeout,
		NatsOptions:      natsOpts,
		Unmarshaler:      &wmNats.NATSMarshaler{},
		JetStream: wmNats.JetStreamConfig{
			AutoProvision:    autoProvision,
			SubscribeOptions: subOpts,
			DurablePrefix:    cfg.DurableName,
		},
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("create audit feed subscriber: %w", err)
	}

	return &Source{cfg: cfg, subscriber: sub, handler: handler, logger: logger}, nil
}

// NewWithSubscriber wires a source over an existing subscriber.
func NewWithSubscriber(cfg config.EventSourceConfig, sub message.Subscriber, handler Handler) *Source {
	return &Source{
		cfg:        cfg,
		subscriber: sub,
		handler:    handler,
		logger:     logging.NewWatermillAdapter(),
	}
}

// Serve implements suture.Service: consume the audit topic until the
// context is canceled.
func (s *Source) Serve(ctx context.Context) error {
	messages, err := s.subscriber.Subscribe(ctx, s.cfg.Topic)
	if err != nil {
		return fmt.Errorf("subscribe to %s: %w", s.cfg.Topic, err)
	}

	logging.Info().
		Str("topic", s.cfg.Topic).
		Str("durable", s.cfg.DurableName).
		Msg("Audit event source started")

	for {
		select {
		case <-ctx.Done():
			_ = s.subscriber.Close()
			return ctx.Err()
		case msg, ok := <-messages:
			if !ok {
				return nil
			}
			s.process(ctx, msg)
		}
	}
}

// String implements fmt.Stringer for supervisor logs.
func (s *Source) String() string { return "audit-event-source" }

// process decodes and dispatches one message. Every message is acked:
// a malformed payload will never decode on redelivery either.
func (s *Source) process(ctx context.Context, msg *message.Message) {
	defer msg.Ack()

	var event models.ActionEvent
	if err := json.Unmarshal(msg.Payload, &event); err != nil {
		metrics.SourceMessagesParseFailed.Inc()
		logging.Err(err).Str("message_uuid", msg.UUID).Msg("Discarding malformed audit event")
		return
	}
	if event.OperatorID == "" || event.Category == "" {
		metrics.SourceMessagesParseFailed.Inc()
		logging.Warn().Str("message_uuid", msg.UUID).Msg("Discarding audit event without operator or category")
		return
	}

	metrics.SourceMessagesConsumed.Inc()
	s.handler(ctx, event)
}
