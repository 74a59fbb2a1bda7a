// FXC - Transaction Ledger and Balance Aggregation Service
// Copyright 2026 Denis Selimovic (denis-selimovic)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/denis-selimovic/fxc

//go:build integration

package ledger_test

import (
	"context"
	"testing"
	"time"

	"github.com/denis-selimovic/fxc/internal/ledger"
	"github.com/denis-selimovic/fxc/internal/testinfra"
)

func openTestStore(t *testing.T) (*ledger.Store, context.Context) {
	t.Helper()
	testinfra.SkipIfNoDocker(t)

	ctx := context.Background()
	pg, err := testinfra.NewPostgresContainer(ctx)
	if err != nil {
		t.Fatalf("start postgres: %v", err)
	}
	t.Cleanup(func() { testinfra.CleanupContainer(t, ctx, pg) })

	store, err := ledger.Open(ctx, ledger.Config{
		DSN:             pg.DSN,
		MaxOpenConns:    5,
		MaxIdleConns:    2,
		ConnMaxLifetime: time.Minute,
	})
	if err != nil {
		t.Fatalf("open ledger store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	if err := store.EnsureSchema(ctx); err != nil {
		t.Fatalf("ensure schema: %v", err)
	}
	return store, ctx
}

func seedProvider(t *testing.T, store *ledger.Store, ctx context.Context, id int64, name string, initial int64) {
	t.Helper()
	if err := store.SeedProvider(ctx, id, name, initial); err != nil {
		t.Fatalf("seed provider: %v", err)
	}
}

func TestRecord_Integration(t *testing.T) {
	store, ctx := openTestStore(t)
	seedProvider(t, store, ctx, 1, "acme", 100)

	name, found, err := store.Record(ctx, 1, 30, false)
	if err != nil {
		t.Fatalf("Record: %v", err)
	}
	if !found || name != "acme" {
		t.Fatalf("Record = (%q, %v), want (\"acme\", true)", name, found)
	}

	totals, err := store.Totals(ctx)
	if err != nil {
		t.Fatalf("Totals: %v", err)
	}
	if len(totals) != 1 || totals[0].Total != 130 {
		t.Errorf("totals = %+v, want [{1 acme 130}]", totals)
	}
}

func TestRecord_SkipInsertLeavesLedgerUntouched(t *testing.T) {
	store, ctx := openTestStore(t)
	seedProvider(t, store, ctx, 1, "acme", 100)

	if _, _, err := store.Record(ctx, 1, 30, false); err != nil {
		t.Fatalf("Record: %v", err)
	}
	name, found, err := store.Record(ctx, 1, 30, true)
	if err != nil {
		t.Fatalf("Record skip: %v", err)
	}
	if !found || name != "acme" {
		t.Fatalf("Record skip = (%q, %v), want (\"acme\", true)", name, found)
	}

	totals, err := store.Totals(ctx)
	if err != nil {
		t.Fatalf("Totals: %v", err)
	}
	if totals[0].Total != 130 {
		t.Errorf("total = %d, want 130 (skipInsert must not append)", totals[0].Total)
	}
}

func TestRecord_UnknownProvider(t *testing.T) {
	store, ctx := openTestStore(t)

	_, found, err := store.Record(ctx, 404, 30, false)
	if err != nil {
		t.Fatalf("Record: %v", err)
	}
	if found {
		t.Error("unknown provider should report found=false")
	}
}

func TestTotals_ProviderWithoutEntries(t *testing.T) {
	store, ctx := openTestStore(t)
	seedProvider(t, store, ctx, 1, "acme", 100)
	seedProvider(t, store, ctx, 2, "globex", -5)

	if _, _, err := store.Record(ctx, 1, 30, false); err != nil {
		t.Fatalf("Record: %v", err)
	}

	totals, err := store.Totals(ctx)
	if err != nil {
		t.Fatalf("Totals: %v", err)
	}
	got := map[int64]int64{}
	for _, pt := range totals {
		got[pt.ProviderID] = pt.Total
	}
	if got[1] != 130 {
		t.Errorf("totals[1] = %d, want 130", got[1])
	}
	if got[2] != -5 {
		t.Errorf("totals[2] = %d, want initial value -5 with no entries", got[2])
	}
}
