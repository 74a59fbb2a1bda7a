// FXC - Transaction Ledger and Balance Aggregation Service
// Copyright 2026 Denis Selimovic (denis-selimovic)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/denis-selimovic/fxc

// Package counter implements the fast counter store on Redis (or any
// protocol-compatible server such as KeyDB).
//
// Two namespaces share one database:
//
//   - pending deltas: one hash, field = composite provider key, holding
//     increments not yet folded into totals; an absent field is zero
//   - running totals: plain integer keys named after the composite key
//
// Event processing only ever touches the pending hash (single-field
// HINCRBY); the flush engine migrates pending into totals in one MULTI/EXEC
// batch. All mutations are single atomic primitives or explicit multi-key
// transactions, never read-modify-write over two round trips, so the
// delivery loop and the flush engine can run in separate processes and
// coordinate purely through the store.
package counter

import (
	"context"
	"fmt"
	"strconv"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/denis-selimovic/fxc/internal/logging"
	"github.com/denis-selimovic/fxc/internal/metrics"
)

// Config holds counter store connection settings.
type Config struct {
	Addr           string
	Password       string
	DB             int
	PendingHashKey string
}

// Store provides counter operations backed by Redis.
type Store struct {
	client      redis.UniversalClient
	pendingHash string
	logger      zerolog.Logger
}

// Open connects to Redis and verifies the connection.
func Open(ctx context.Context, cfg Config) (*Store, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return NewWithClient(client, cfg.PendingHashKey), nil
}

// NewWithClient wraps an existing Redis client. Used by tests.
func NewWithClient(client redis.UniversalClient, pendingHash string) *Store {
	if pendingHash == "" {
		pendingHash = "pending_deltas"
	}
	return &Store{
		client:      client,
		pendingHash: pendingHash,
		logger:      logging.With().Str("component", "counter").Logger(),
	}
}

// AddPending atomically increments the pending delta for key. This is the
// only counter mutation event processing performs; running totals are
// updated exclusively by the flush engine.
func (s *Store) AddPending(ctx context.Context, key string, delta int64) error {
	if err := s.client.HIncrBy(ctx, s.pendingHash, key, delta).Err(); err != nil {
		metrics.StoreErrors.WithLabelValues("counter").Inc()
		return fmt.Errorf("increment pending delta for %s: %w", key, err)
	}
	return nil
}

// PendingDeltas reads the full pending-delta hash as a snapshot.
// Zero-valued and malformed fields are excluded; malformed fields are
// logged so divergence is visible rather than silent.
func (s *Store) PendingDeltas(ctx context.Context) (map[string]int64, error) {
	raw, err := s.client.HGetAll(ctx, s.pendingHash).Result()
	if err != nil {
		metrics.StoreErrors.WithLabelValues("counter").Inc()
		return nil, fmt.Errorf("read pending deltas: %w", err)
	}

	deltas, malformed := parsePending(raw)
	for _, field := range malformed {
		metrics.StoreErrors.WithLabelValues("counter").Inc()
		s.logger.Error().
			Str("field", field).
			Str("value", raw[field]).
			Msg("pending delta is not an integer, skipping field")
	}
	return deltas, nil
}

// ApplyDeltas folds a pending snapshot into running totals: for every key,
// the total is incremented by the snapshot value and the pending field is
// decremented by that exact value, adjacent within one MULTI/EXEC batch.
// Decrementing (rather than resetting to zero) preserves increments that
// landed on a key after the snapshot was read.
func (s *Store) ApplyDeltas(ctx context.Context, deltas map[string]int64) error {
	if len(deltas) == 0 {
		return nil
	}

	pipe := s.client.TxPipeline()
	for key, value := range deltas {
		pipe.IncrBy(ctx, key, value)
		pipe.HIncrBy(ctx, s.pendingHash, key, -value)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		metrics.StoreErrors.WithLabelValues("counter").Inc()
		return fmt.Errorf("apply %d pending deltas: %w", len(deltas), err)
	}
	return nil
}

// SeedTotals overwrites running totals with authoritative values in one
// MULTI/EXEC batch. Called once at bootstrap, before any flushing.
func (s *Store) SeedTotals(ctx context.Context, totals map[string]int64) error {
	if len(totals) == 0 {
		return nil
	}

	pipe := s.client.TxPipeline()
	for key, value := range totals {
		pipe.Set(ctx, key, value, 0)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		metrics.StoreErrors.WithLabelValues("counter").Inc()
		return fmt.Errorf("seed %d running totals: %w", len(totals), err)
	}
	return nil
}

// RunningTotal reads one running total. Absent keys are zero.
func (s *Store) RunningTotal(ctx context.Context, key string) (int64, error) {
	val, err := s.client.Get(ctx, key).Result()
	if err != nil {
		if err == redis.Nil {
			return 0, nil
		}
		metrics.StoreErrors.WithLabelValues("counter").Inc()
		return 0, fmt.Errorf("read running total for %s: %w", key, err)
	}
	total, err := strconv.ParseInt(val, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("running total for %s is not an integer: %w", key, err)
	}
	return total, nil
}

// Ping verifies store connectivity. Used by health checks.
func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Close releases the client.
func (s *Store) Close() error {
	return s.client.Close()
}

// parsePending converts the raw hash into integer deltas, excluding zero
// values (absent ≡ zero) and collecting fields that fail to parse.
func parsePending(raw map[string]string) (deltas map[string]int64, malformed []string) {
	deltas = make(map[string]int64, len(raw))
	for field, value := range raw {
		n, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			malformed = append(malformed, field)
			continue
		}
		if n == 0 {
			continue
		}
		deltas[field] = n
	}
	return deltas, malformed
}
