// FXC - Transaction Ledger and Balance Aggregation Service
// Copyright 2026 Denis Selimovic (denis-selimovic)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/denis-selimovic/fxc

// Package flush folds pending balance deltas into the running totals on a
// minute-aligned schedule.
//
// The engine snapshots the pending hash, then atomically applies each
// delta to its running total while subtracting the exact snapshotted
// value from the pending entry. Increments that land between snapshot and
// apply survive in the hash and are picked up by the next cycle. A failed
// cycle changes nothing and is simply retried at the next boundary.
package flush

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/denis-selimovic/fxc/internal/logging"
	"github.com/denis-selimovic/fxc/internal/metrics"
)

// Deltas is the counter store contract the engine needs.
// Satisfied by *counter.Store.
type Deltas interface {
	PendingDeltas(ctx context.Context) (map[string]int64, error)
	ApplyDeltas(ctx context.Context, deltas map[string]int64) error
}

// Config holds flush engine settings.
type Config struct {
	// Interval between flush cycles. Cycles fire on wall-clock
	// boundaries of this interval, not a fixed delay after start.
	Interval time.Duration

	// Timeout bounds a single flush cycle.
	Timeout time.Duration
}

// DefaultConfig returns the production flush settings.
func DefaultConfig() Config {
	return Config{
		Interval: time.Minute,
		Timeout:  30 * time.Second,
	}
}

// Engine runs the periodic write-coalescing flush.
type Engine struct {
	store  Deltas
	config Config
	logger zerolog.Logger
}

// New creates a flush engine over the given counter store.
func New(store Deltas, cfg Config) *Engine {
	if cfg.Interval <= 0 {
		cfg.Interval = time.Minute
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	return &Engine{
		store:  store,
		config: cfg,
		logger: logging.With().Str("component", "flush").Logger(),
	}
}

// Run flushes at every interval boundary until the context is canceled.
// A failed cycle is logged and abandoned; the next boundary retries it
// implicitly because nothing was consumed from the pending hash.
func (e *Engine) Run(ctx context.Context) error {
	e.logger.Info().Dur("interval", e.config.Interval).Msg("flush engine started")

	for {
		timer := time.NewTimer(untilNextBoundary(time.Now(), e.config.Interval))
		select {
		case <-ctx.Done():
			timer.Stop()
			e.logger.Info().Msg("flush engine stopping")
			return ctx.Err()
		case <-timer.C:
		}

		cycleCtx, cancel := context.WithTimeout(ctx, e.config.Timeout)
		if err := e.Flush(cycleCtx); err != nil {
			e.logger.Error().Err(err).Msg("flush cycle failed")
		}
		cancel()
	}
}

// Flush runs one cycle: snapshot the pending hash and fold every nonzero
// delta into its running total. Returns nil on an empty snapshot.
func (e *Engine) Flush(ctx context.Context) error {
	start := time.Now()

	deltas, err := e.store.PendingDeltas(ctx)
	if err != nil {
		metrics.RecordFlush("error", 0, start)
		return err
	}

	if len(deltas) == 0 {
		metrics.RecordFlush("empty", 0, start)
		e.logger.Debug().Msg("no pending deltas")
		return nil
	}

	if err := e.store.ApplyDeltas(ctx, deltas); err != nil {
		metrics.RecordFlush("error", len(deltas), start)
		return err
	}

	metrics.RecordFlush("ok", len(deltas), start)
	e.logger.Info().Int("keys", len(deltas)).Msg("pending deltas flushed")
	return nil
}

// untilNextBoundary returns the wait until the next wall-clock multiple
// of interval. Firing on boundaries keeps cycle times predictable across
// restarts instead of drifting with process start time.
func untilNextBoundary(now time.Time, interval time.Duration) time.Duration {
	next := now.Truncate(interval).Add(interval)
	return next.Sub(now)
}
