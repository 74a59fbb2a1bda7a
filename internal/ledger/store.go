// FXC - Transaction Ledger and Balance Aggregation Service
// Copyright 2026 Denis Selimovic (denis-selimovic)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/denis-selimovic/fxc

// Package ledger implements the durable transaction ledger on Postgres.
//
// The ledger holds two tables: immutable provider reference data and an
// append-only record of processed transactions. Entries are never updated
// or deleted; only the per-provider sum matters. The provider lookup and
// the ledger insert for one event share a single database transaction so
// a confirmed insert implies a confirmed lookup.
package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	// Postgres driver, registered as "postgres".
	_ "github.com/lib/pq"

	"github.com/denis-selimovic/fxc/internal/metrics"
)

// Config holds connection settings for the ledger database.
type Config struct {
	DSN             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// ProviderTotal is one row of the reconciliation query: the provider's
// baseline plus the sum of all its ledger entries.
type ProviderTotal struct {
	ProviderID int64
	Name       string
	Total      int64
}

// Store provides ledger operations backed by Postgres.
type Store struct {
	db *sql.DB
}

// Open connects to Postgres and verifies the connection.
func Open(ctx context.Context, cfg Config) (*Store, error) {
	db, err := sql.Open("postgres", cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}

	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	return &Store{db: db}, nil
}

// NewWithDB wraps an existing database handle. Used by tests.
func NewWithDB(db *sql.DB) *Store {
	return &Store{db: db}
}

// EnsureSchema creates the ledger tables if they do not exist.
func (s *Store) EnsureSchema(ctx context.Context) error {
	const schema = `
CREATE TABLE IF NOT EXISTS providers (
	id            BIGINT PRIMARY KEY,
	name          TEXT NOT NULL,
	initial_value BIGINT NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS ledger_entries (
	id          BIGSERIAL PRIMARY KEY,
	provider_id BIGINT NOT NULL REFERENCES providers (id),
	amount      BIGINT NOT NULL,
	created_at  TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_ledger_entries_provider ON ledger_entries (provider_id);
`
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		metrics.StoreErrors.WithLabelValues("ledger").Inc()
		return fmt.Errorf("ensure ledger schema: %w", err)
	}
	return nil
}

// SeedProvider upserts a provider row. Providers are reference data
// loaded ahead of ingestion; this exists for provisioning and tests.
func (s *Store) SeedProvider(ctx context.Context, id int64, name string, initialValue int64) error {
	const query = `
INSERT INTO providers (id, name, initial_value) VALUES ($1, $2, $3)
ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name, initial_value = EXCLUDED.initial_value`
	if _, err := s.db.ExecContext(ctx, query, id, name, initialValue); err != nil {
		metrics.StoreErrors.WithLabelValues("ledger").Inc()
		return fmt.Errorf("seed provider %d: %w", id, err)
	}
	return nil
}

// Record resolves the provider name for providerID and, unless skipInsert
// is set, appends a ledger entry for the event, both inside one database
// transaction. skipInsert is the idempotency guard: a redelivered event
// whose insert already committed on a prior attempt must not insert again.
//
// found reports whether a provider row matched. An unknown provider is not
// an error; the caller drops the event (terminal no-op).
func (s *Store) Record(ctx context.Context, providerID, amount int64, skipInsert bool) (name string, found bool, err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		metrics.StoreErrors.WithLabelValues("ledger").Inc()
		return "", false, fmt.Errorf("begin ledger tx: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	row := tx.QueryRowContext(ctx, `SELECT name FROM providers WHERE id = $1`, providerID)
	if scanErr := row.Scan(&name); scanErr != nil {
		if errors.Is(scanErr, sql.ErrNoRows) {
			// Unknown provider: nothing to insert, commit the empty tx.
			if commitErr := tx.Commit(); commitErr != nil {
				metrics.StoreErrors.WithLabelValues("ledger").Inc()
				err = fmt.Errorf("commit ledger tx: %w", commitErr)
				return "", false, err
			}
			return "", false, nil
		}
		metrics.StoreErrors.WithLabelValues("ledger").Inc()
		err = fmt.Errorf("lookup provider %d: %w", providerID, scanErr)
		return "", false, err
	}

	if !skipInsert {
		if _, execErr := tx.ExecContext(ctx,
			`INSERT INTO ledger_entries (provider_id, amount) VALUES ($1, $2)`,
			providerID, amount,
		); execErr != nil {
			metrics.StoreErrors.WithLabelValues("ledger").Inc()
			err = fmt.Errorf("insert ledger entry: %w", execErr)
			return "", false, err
		}
	}

	if commitErr := tx.Commit(); commitErr != nil {
		metrics.StoreErrors.WithLabelValues("ledger").Inc()
		err = fmt.Errorf("commit ledger tx: %w", commitErr)
		return "", false, err
	}

	if skipInsert {
		metrics.LedgerInsertsSkipped.Inc()
	} else {
		metrics.LedgerInserts.Inc()
	}
	return name, true, nil
}

// Totals computes initial_value + sum(ledger entries) for every provider.
// Providers without entries are included with their baseline alone.
func (s *Store) Totals(ctx context.Context) ([]ProviderTotal, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT p.id, p.name, p.initial_value + COALESCE(SUM(l.amount), 0)
FROM providers p
LEFT JOIN ledger_entries l ON l.provider_id = p.id
GROUP BY p.id, p.name, p.initial_value
ORDER BY p.id`)
	if err != nil {
		metrics.StoreErrors.WithLabelValues("ledger").Inc()
		return nil, fmt.Errorf("query provider totals: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var totals []ProviderTotal
	for rows.Next() {
		var t ProviderTotal
		if err := rows.Scan(&t.ProviderID, &t.Name, &t.Total); err != nil {
			metrics.StoreErrors.WithLabelValues("ledger").Inc()
			return nil, fmt.Errorf("scan provider total: %w", err)
		}
		totals = append(totals, t)
	}
	if err := rows.Err(); err != nil {
		metrics.StoreErrors.WithLabelValues("ledger").Inc()
		return nil, fmt.Errorf("iterate provider totals: %w", err)
	}
	return totals, nil
}

// Ping verifies database connectivity. Used by health checks.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close releases the database handle.
func (s *Store) Close() error {
	return s.db.Close()
}
