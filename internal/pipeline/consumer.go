// FXC - Transaction Ledger and Balance Aggregation Service
// Copyright 2026 Denis Selimovic (denis-selimovic)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/denis-selimovic/fxc

package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/denis-selimovic/fxc/internal/logging"
	"github.com/denis-selimovic/fxc/internal/metrics"
)

// MessageSource is the subscription contract the consumer needs.
// Satisfied by *Subscriber and by the gochannel pubsub in tests.
type MessageSource interface {
	Subscribe(ctx context.Context, topic string) (<-chan *message.Message, error)
}

// MessagePublisher is the publish contract the consumer needs for
// re-enqueues and dead letters. Satisfied by *Publisher.
type MessagePublisher interface {
	Publish(ctx context.Context, topic string, msg *message.Message) error
}

// ConsumerConfig holds topics for the consumer loop.
type ConsumerConfig struct {
	// IngestTopic is consumed from and republished to on retry.
	IngestTopic string

	// DeadLetterTopic receives events that exhausted their retry budget.
	DeadLetterTopic string
}

// Consumer runs the sequential delivery loop: receive, process, execute
// the decision against the transport. One message at a time; no two
// deliveries from the queue are ever processed concurrently.
type Consumer struct {
	source    MessageSource
	publisher MessagePublisher
	processor *Processor
	config    ConsumerConfig
	logger    zerolog.Logger
}

// NewConsumer creates a consumer loop around the given source, publisher
// and processor.
func NewConsumer(source MessageSource, publisher MessagePublisher, processor *Processor, cfg ConsumerConfig) *Consumer {
	return &Consumer{
		source:    source,
		publisher: publisher,
		processor: processor,
		config:    cfg,
		logger:    logging.With().Str("component", "consumer").Logger(),
	}
}

// Run consumes deliveries until the context is canceled or the message
// channel closes. An in-flight delivery finishes before Run returns.
// Event failures never propagate out of the loop; the only errors Run
// returns are subscription-level.
func (c *Consumer) Run(ctx context.Context) error {
	messages, err := c.source.Subscribe(ctx, c.config.IngestTopic)
	if err != nil {
		return fmt.Errorf("subscribe to %s: %w", c.config.IngestTopic, err)
	}

	c.logger.Info().Str("topic", c.config.IngestTopic).Msg("consumer started")

	for {
		select {
		case <-ctx.Done():
			c.logger.Info().Msg("consumer stopping")
			return ctx.Err()
		case msg, ok := <-messages:
			if !ok {
				c.logger.Info().Msg("message channel closed")
				return nil
			}
			c.handle(ctx, msg)
		}
	}
}

// handle processes a single delivery and executes the decision.
func (c *Consumer) handle(ctx context.Context, msg *message.Message) {
	start := time.Now()
	metrics.EventsReceived.Inc()

	env := EnvelopeFromMetadata(msg.Metadata)
	decision := c.processor.Process(ctx, msg.Payload, env)
	metrics.RecordOutcome(decision.Action.String())
	metrics.ObserveProcessDuration(start)

	switch decision.Action {
	case ActionAck:
		c.ack(msg)

	case ActionRequeue:
		c.requeue(ctx, msg, decision)

	case ActionDeadLetter:
		c.deadLetter(ctx, msg, decision)
	}
}

// ack removes the delivery from the queue. An ack that cannot reach the
// transport means the broker will redeliver an already-applied event;
// that is surfaced loudly because the counter step is not idempotent
// across transport-native redelivery.
func (c *Consumer) ack(msg *message.Message) {
	if !msg.Ack() {
		metrics.AckFailures.Inc()
		c.logger.Error().
			Str("uuid", msg.UUID).
			Msg("ack failed, transport redelivery may double-count this event")
	}
}

// requeue publishes a copy of the event carrying the updated envelope,
// then acknowledges the current delivery so the transport does not
// redeliver it unmodified. If the publish fails, the current delivery is
// nacked instead: the transport redelivers it with the old envelope and
// no event is lost.
func (c *Consumer) requeue(ctx context.Context, msg *message.Message, decision Decision) {
	copyMsg := message.NewMessage(uuid.NewString(), msg.Payload)
	for k, v := range msg.Metadata {
		copyMsg.Metadata.Set(k, v)
	}
	decision.Envelope.ApplyTo(copyMsg.Metadata)

	if err := c.publisher.Publish(ctx, c.config.IngestTopic, copyMsg); err != nil {
		metrics.RequeueFailures.Inc()
		c.logger.Error().Err(err).
			Str("uuid", msg.UUID).
			Int("retry_count", decision.Envelope.RetryCount).
			Msg("requeue publish failed, nacking for transport redelivery")
		msg.Nack()
		return
	}

	c.logger.Warn().
		Err(decision.Err).
		Str("uuid", msg.UUID).
		Int("retry_count", decision.Envelope.RetryCount).
		Bool("ledger_confirmed", decision.Envelope.LedgerConfirmed).
		Msg("event failed, requeued with updated envelope")
	c.ack(msg)
}

// deadLetter routes the event out of normal processing for manual
// inspection, then acknowledges. If the dead-letter publish fails, the
// delivery is nacked so a later redelivery can try again rather than
// silently losing the event.
func (c *Consumer) deadLetter(ctx context.Context, msg *message.Message, decision Decision) {
	dlMsg := message.NewMessage(uuid.NewString(), msg.Payload)
	for k, v := range msg.Metadata {
		dlMsg.Metadata.Set(k, v)
	}
	decision.Envelope.ApplyTo(dlMsg.Metadata)
	if decision.Err != nil {
		dlMsg.Metadata.Set(MetaError, decision.Err.Error())
	}
	dlMsg.Metadata.Set(MetaDeadLetteredAt, time.Now().UTC().Format(time.RFC3339))

	if err := c.publisher.Publish(ctx, c.config.DeadLetterTopic, dlMsg); err != nil {
		c.logger.Error().Err(err).
			Str("uuid", msg.UUID).
			Msg("dead-letter publish failed, nacking for transport redelivery")
		msg.Nack()
		return
	}

	c.logger.Error().
		Err(decision.Err).
		Str("uuid", msg.UUID).
		Int("retry_count", decision.Envelope.RetryCount).
		Msg("max retries exceeded, event dead-lettered")
	c.ack(msg)
}
