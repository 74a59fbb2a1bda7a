// FXC - Transaction Ledger and Balance Aggregation Service
// Copyright 2026 Denis Selimovic (denis-selimovic)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/denis-selimovic/fxc

package bootstrap

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/denis-selimovic/fxc/internal/ledger"
)

type fakeTotals struct {
	totals []ledger.ProviderTotal
	errs   []error
	calls  int
}

func (f *fakeTotals) Totals(context.Context) ([]ledger.ProviderTotal, error) {
	f.calls++
	if len(f.errs) > 0 {
		err := f.errs[0]
		f.errs = f.errs[1:]
		if err != nil {
			return nil, err
		}
	}
	return f.totals, nil
}

type fakeSeeder struct {
	seeded map[string]int64
	errs   []error
	calls  int
}

func (f *fakeSeeder) SeedTotals(_ context.Context, totals map[string]int64) error {
	f.calls++
	if len(f.errs) > 0 {
		err := f.errs[0]
		f.errs = f.errs[1:]
		if err != nil {
			return err
		}
	}
	f.seeded = totals
	return nil
}

var testTotals = []ledger.ProviderTotal{
	{ProviderID: 1, Name: "acme", Total: 130},
	{ProviderID: 2, Name: "globex", Total: -20},
}

func TestRun_SeedsCounterKeys(t *testing.T) {
	t.Parallel()

	seeder := &fakeSeeder{}
	r := New(&fakeTotals{totals: testTotals}, seeder, DefaultConfig())

	if err := r.Run(context.Background()); err != nil {
		t.Fatalf("Run error: %v", err)
	}

	want := map[string]int64{"1_acme": 130, "2_globex": -20}
	if len(seeder.seeded) != len(want) {
		t.Fatalf("seeded = %v, want %v", seeder.seeded, want)
	}
	for k, v := range want {
		if seeder.seeded[k] != v {
			t.Errorf("seeded[%s] = %d, want %d", k, seeder.seeded[k], v)
		}
	}
}

func TestRun_RetriesTransientFailures(t *testing.T) {
	t.Parallel()

	totals := &fakeTotals{
		totals: testTotals,
		errs:   []error{errors.New("connection refused"), errors.New("connection refused")},
	}
	seeder := &fakeSeeder{}
	r := New(totals, seeder, Config{Attempts: 5, Delay: time.Millisecond})

	if err := r.Run(context.Background()); err != nil {
		t.Fatalf("Run error: %v", err)
	}
	if totals.calls != 3 {
		t.Errorf("ledger reads = %d, want 3", totals.calls)
	}
	if seeder.seeded["1_acme"] != 130 {
		t.Errorf("seeded[1_acme] = %d, want 130", seeder.seeded["1_acme"])
	}
}

func TestRun_SeedFailureRetries(t *testing.T) {
	t.Parallel()

	seeder := &fakeSeeder{errs: []error{errors.New("pipeline exec failed")}}
	r := New(&fakeTotals{totals: testTotals}, seeder, Config{Attempts: 3, Delay: time.Millisecond})

	if err := r.Run(context.Background()); err != nil {
		t.Fatalf("Run error: %v", err)
	}
	if seeder.calls != 2 {
		t.Errorf("seed attempts = %d, want 2", seeder.calls)
	}
}

func TestRun_FailsAfterAttemptBudget(t *testing.T) {
	t.Parallel()

	down := errors.New("still down")
	totals := &fakeTotals{errs: []error{down, down, down}}
	r := New(totals, &fakeSeeder{}, Config{Attempts: 3, Delay: time.Millisecond})

	err := r.Run(context.Background())
	if err == nil {
		t.Fatal("expected failure after exhausting attempts")
	}
	if !errors.Is(err, down) {
		t.Errorf("error should wrap the last failure, got %v", err)
	}
	if totals.calls != 3 {
		t.Errorf("ledger reads = %d, want 3", totals.calls)
	}
}

func TestRun_CancelBetweenAttempts(t *testing.T) {
	t.Parallel()

	totals := &fakeTotals{errs: []error{errors.New("down"), errors.New("down")}}
	r := New(totals, &fakeSeeder{}, Config{Attempts: 10, Delay: time.Hour})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- r.Run(ctx) }()

	// First attempt fails fast, then the reconciler sits in its delay.
	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("Run returned %v, want context.Canceled", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestRun_EmptyLedgerSeedsNothing(t *testing.T) {
	t.Parallel()

	seeder := &fakeSeeder{}
	r := New(&fakeTotals{}, seeder, DefaultConfig())

	if err := r.Run(context.Background()); err != nil {
		t.Fatalf("Run error: %v", err)
	}
	if seeder.calls != 1 {
		t.Errorf("seed attempts = %d, want 1", seeder.calls)
	}
	if len(seeder.seeded) != 0 {
		t.Errorf("seeded = %v, want empty", seeder.seeded)
	}
}
