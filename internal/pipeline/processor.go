// FXC - Transaction Ledger and Balance Aggregation Service
// Copyright 2026 Denis Selimovic (denis-selimovic)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/denis-selimovic/fxc

package pipeline

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/denis-selimovic/fxc/internal/counter"
	"github.com/denis-selimovic/fxc/internal/logging"
	"github.com/denis-selimovic/fxc/internal/metrics"
)

// Ledger is the durable store contract the processor needs: resolve the
// provider and conditionally append the entry, transactionally.
// Satisfied by *ledger.Store.
type Ledger interface {
	Record(ctx context.Context, providerID, amount int64, skipInsert bool) (name string, found bool, err error)
}

// Counters is the counter store contract the processor needs: a single
// atomic increment of the pending delta. Satisfied by *counter.Store.
type Counters interface {
	AddPending(ctx context.Context, key string, delta int64) error
}

// Action is the terminal decision for one delivery.
type Action int

const (
	// ActionAck removes the delivery from the queue.
	ActionAck Action = iota
	// ActionRequeue acknowledges the delivery and re-enqueues a copy
	// carrying the updated envelope.
	ActionRequeue
	// ActionDeadLetter routes the delivery to the dead-letter topic.
	ActionDeadLetter
)

// String returns the metric label for the action.
func (a Action) String() string {
	switch a {
	case ActionAck:
		return "ack"
	case ActionRequeue:
		return "requeue"
	case ActionDeadLetter:
		return "dead_letter"
	default:
		return "unknown"
	}
}

// Decision is the outcome of processing one delivery. Envelope is the
// state to carry on the re-enqueued copy when Action is ActionRequeue;
// Err is the failure that forced a requeue or dead-letter.
type Decision struct {
	Action   Action
	Envelope Envelope
	Err      error
}

// Processor implements the per-delivery retry protocol. It owns no
// transport concerns: the consumer loop decodes the envelope, calls
// Process, and executes the decision against the queue.
type Processor struct {
	ledger     Ledger
	counters   Counters
	maxRetries int
	logger     zerolog.Logger
}

// NewProcessor creates a processor. maxRetries bounds explicit
// re-enqueues; an event that keeps failing is dead-lettered on delivery
// number maxRetries+1.
func NewProcessor(ledger Ledger, counters Counters, maxRetries int) *Processor {
	return &Processor{
		ledger:     ledger,
		counters:   counters,
		maxRetries: maxRetries,
		logger:     logging.With().Str("component", "pipeline").Logger(),
	}
}

// Process runs the retry protocol for one delivery and returns the
// terminal decision. It never returns an error: every failure is resolved
// into a requeue or dead-letter decision so no event error can escape and
// terminate the delivery loop.
func (p *Processor) Process(ctx context.Context, payload []byte, env Envelope) Decision {
	ev, err := DecodeEvent(payload)
	if err != nil {
		p.logger.Error().Err(err).Int("retry_count", env.RetryCount).Msg("event payload malformed")
		return p.fail(env, err)
	}

	// Lookup and conditional durable write share one database transaction.
	// The envelope's confirmation flag is the only thing that suppresses
	// the insert: it is never inferred from ledger contents.
	name, found, err := p.ledger.Record(ctx, ev.ID, ev.Value, env.LedgerConfirmed)
	if err != nil {
		p.logger.Error().Err(err).
			Int64("provider_id", ev.ID).
			Int("retry_count", env.RetryCount).
			Msg("ledger write failed")
		return p.fail(env, err)
	}

	if !found {
		// Terminal no-op: acknowledged and dropped, visible via metrics so
		// upstream data-quality drift does not hide behind silence.
		metrics.UnknownProviderEvents.Inc()
		p.logger.Warn().Int64("provider_id", ev.ID).Msg("no provider matches event id, dropping event")
		return Decision{Action: ActionAck}
	}

	// The durable write is committed from here on. Any later failure must
	// carry this fact so a retry cannot double-insert.
	env.LedgerConfirmed = true

	key := counter.Key(ev.ID, name)
	if err := p.counters.AddPending(ctx, key, ev.Value); err != nil {
		p.logger.Error().Err(err).
			Str("key", key).
			Int("retry_count", env.RetryCount).
			Msg("pending counter increment failed")
		return p.fail(env, err)
	}

	p.logger.Debug().
		Int64("provider_id", ev.ID).
		Int64("value", ev.Value).
		Str("key", key).
		Msg("event stored")
	return Decision{Action: ActionAck}
}

// fail resolves a processing failure into requeue or dead-letter based on
// the retry budget. The envelope carries the ledger confirmation exactly
// as of the failure point.
func (p *Processor) fail(env Envelope, err error) Decision {
	if env.RetryCount < p.maxRetries {
		return Decision{
			Action: ActionRequeue,
			Envelope: Envelope{
				RetryCount:      env.RetryCount + 1,
				LedgerConfirmed: env.LedgerConfirmed,
			},
			Err: err,
		}
	}
	return Decision{Action: ActionDeadLetter, Envelope: env, Err: err}
}
