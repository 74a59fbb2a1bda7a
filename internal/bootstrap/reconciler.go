// FXC - Transaction Ledger and Balance Aggregation Service
// Copyright 2026 Denis Selimovic (denis-selimovic)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/denis-selimovic/fxc

// Package bootstrap seeds the running-total counters from the durable
// ledger at startup. The ledger is the source of truth: every process
// start recomputes each provider's total from its initial value plus the
// sum of its ledger entries and overwrites the counter store with the
// result, so counters lost or corrupted between runs heal here.
package bootstrap

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/denis-selimovic/fxc/internal/counter"
	"github.com/denis-selimovic/fxc/internal/ledger"
	"github.com/denis-selimovic/fxc/internal/logging"
	"github.com/denis-selimovic/fxc/internal/metrics"
)

// Totals is the ledger contract the reconciler needs.
// Satisfied by *ledger.Store.
type Totals interface {
	Totals(ctx context.Context) ([]ledger.ProviderTotal, error)
}

// Seeder is the counter store contract the reconciler needs.
// Satisfied by *counter.Store.
type Seeder interface {
	SeedTotals(ctx context.Context, totals map[string]int64) error
}

// Config holds reconciler settings.
type Config struct {
	// Attempts bounds how many times reconciliation is tried before the
	// startup is declared failed.
	Attempts int

	// Delay is the fixed wait between attempts.
	Delay time.Duration
}

// DefaultConfig returns the production bootstrap settings.
func DefaultConfig() Config {
	return Config{
		Attempts: 10,
		Delay:    2 * time.Second,
	}
}

// Reconciler computes authoritative totals from the ledger and writes
// them into the counter store before the ingest pipeline starts.
type Reconciler struct {
	ledger   Totals
	counters Seeder
	config   Config
	logger   zerolog.Logger
}

// New creates a reconciler.
func New(ledger Totals, counters Seeder, cfg Config) *Reconciler {
	if cfg.Attempts <= 0 {
		cfg.Attempts = 10
	}
	if cfg.Delay <= 0 {
		cfg.Delay = 2 * time.Second
	}
	return &Reconciler{
		ledger:   ledger,
		counters: counters,
		config:   cfg,
		logger:   logging.With().Str("component", "bootstrap").Logger(),
	}
}

// Run reconciles with bounded retries. Both stores must be reachable
// within the attempt budget; otherwise the error is returned and the
// caller must not start ingesting, since counters would drift from the
// ledger silently.
func (r *Reconciler) Run(ctx context.Context) error {
	var lastErr error
	for attempt := 1; attempt <= r.config.Attempts; attempt++ {
		metrics.BootstrapAttempts.Inc()

		seeded, err := r.reconcile(ctx)
		if err == nil {
			r.logger.Info().Int("attempt", attempt).Int("providers", seeded).Msg("counters seeded from ledger")
			return nil
		}
		lastErr = err
		r.logger.Warn().Err(err).
			Int("attempt", attempt).
			Int("max_attempts", r.config.Attempts).
			Msg("bootstrap reconciliation failed")

		if attempt == r.config.Attempts {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(r.config.Delay):
		}
	}
	return fmt.Errorf("bootstrap failed after %d attempts: %w", r.config.Attempts, lastErr)
}

// reconcile performs one read-compute-seed pass and reports how many
// provider totals were written.
func (r *Reconciler) reconcile(ctx context.Context) (int, error) {
	totals, err := r.ledger.Totals(ctx)
	if err != nil {
		return 0, fmt.Errorf("read ledger totals: %w", err)
	}

	seed := make(map[string]int64, len(totals))
	for _, pt := range totals {
		seed[counter.Key(pt.ProviderID, pt.Name)] = pt.Total
	}

	if err := r.counters.SeedTotals(ctx, seed); err != nil {
		return 0, fmt.Errorf("seed counters: %w", err)
	}

	metrics.BootstrapSeededKeys.Set(float64(len(seed)))
	return len(seed), nil
}
