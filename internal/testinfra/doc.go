// FXC - Transaction Ledger and Balance Aggregation Service
// Copyright 2026 Denis Selimovic (denis-selimovic)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/denis-selimovic/fxc

// Package testinfra manages Docker containers for integration tests with
// testcontainers-go: a Postgres container for the ledger store and a
// Redis container for the counter store.
//
// All helpers are behind the integration build tag and skip gracefully
// when Docker is not available:
//
//	func TestLedgerStore(t *testing.T) {
//	    testinfra.SkipIfNoDocker(t)
//	    ctx := context.Background()
//	    pg, err := testinfra.NewPostgresContainer(ctx)
//	    if err != nil {
//	        t.Fatal(err)
//	    }
//	    defer testinfra.CleanupContainer(t, ctx, pg)
//
//	    store, err := ledger.Open(ctx, ledger.Config{DSN: pg.DSN})
//	    // ...
//	}
package testinfra
