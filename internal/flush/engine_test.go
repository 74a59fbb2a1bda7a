// FXC - Transaction Ledger and Balance Aggregation Service
// Copyright 2026 Denis Selimovic (denis-selimovic)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/denis-selimovic/fxc

package flush

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

// fakeDeltas mimics the counter store semantics in memory: pending and
// totals hashes, snapshot reads, and apply-with-exact-decrement. Errors
// are scripted per operation.
type fakeDeltas struct {
	mu       sync.Mutex
	pending  map[string]int64
	totals   map[string]int64
	readErr  error
	applyErr error
	applies  int
}

func newFakeDeltas() *fakeDeltas {
	return &fakeDeltas{
		pending: map[string]int64{},
		totals:  map[string]int64{},
	}
}

func (f *fakeDeltas) add(key string, delta int64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pending[key] += delta
}

func (f *fakeDeltas) PendingDeltas(context.Context) (map[string]int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.readErr != nil {
		err := f.readErr
		f.readErr = nil
		return nil, err
	}
	snap := make(map[string]int64, len(f.pending))
	for k, v := range f.pending {
		if v != 0 {
			snap[k] = v
		}
	}
	return snap, nil
}

func (f *fakeDeltas) ApplyDeltas(_ context.Context, deltas map[string]int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.applyErr != nil {
		err := f.applyErr
		f.applyErr = nil
		return err
	}
	f.applies++
	for k, v := range deltas {
		f.totals[k] += v
		f.pending[k] -= v
		if f.pending[k] == 0 {
			delete(f.pending, k)
		}
	}
	return nil
}

func (f *fakeDeltas) snapshot() (pending, totals map[string]int64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	pending = make(map[string]int64, len(f.pending))
	for k, v := range f.pending {
		pending[k] = v
	}
	totals = make(map[string]int64, len(f.totals))
	for k, v := range f.totals {
		totals[k] = v
	}
	return pending, totals
}

func TestFlush_MovesPendingToTotals(t *testing.T) {
	t.Parallel()

	store := newFakeDeltas()
	store.add("1_acme", 30)
	store.add("2_globex", -15)

	if err := New(store, DefaultConfig()).Flush(context.Background()); err != nil {
		t.Fatalf("Flush error: %v", err)
	}

	pending, totals := store.snapshot()
	if len(pending) != 0 {
		t.Errorf("pending after flush = %v, want empty", pending)
	}
	if totals["1_acme"] != 30 || totals["2_globex"] != -15 {
		t.Errorf("totals = %v, want {1_acme:30 2_globex:-15}", totals)
	}
}

func TestFlush_EmptyIsNoOp(t *testing.T) {
	t.Parallel()

	store := newFakeDeltas()
	if err := New(store, DefaultConfig()).Flush(context.Background()); err != nil {
		t.Fatalf("Flush error: %v", err)
	}
	if store.applies != 0 {
		t.Error("empty snapshot must not issue an apply")
	}
}

// An increment landing between snapshot and apply survives the flush:
// pending + totals always conserves the sum of ingested values.
func TestFlush_ConcurrentIncrementConserved(t *testing.T) {
	t.Parallel()

	store := newFakeDeltas()
	store.add("1_acme", 30)

	engine := New(store, DefaultConfig())

	// Snapshot manually, race an increment in, then apply the stale
	// snapshot the way a cycle would.
	snap, err := store.PendingDeltas(context.Background())
	if err != nil {
		t.Fatalf("PendingDeltas: %v", err)
	}
	store.add("1_acme", 7)
	if err := store.ApplyDeltas(context.Background(), snap); err != nil {
		t.Fatalf("ApplyDeltas: %v", err)
	}

	pending, totals := store.snapshot()
	if totals["1_acme"] != 30 {
		t.Errorf("totals[1_acme] = %d, want 30", totals["1_acme"])
	}
	if pending["1_acme"] != 7 {
		t.Errorf("pending[1_acme] = %d, want the racing increment 7", pending["1_acme"])
	}

	// The next cycle folds the leftover in.
	if err := engine.Flush(context.Background()); err != nil {
		t.Fatalf("Flush error: %v", err)
	}
	pending, totals = store.snapshot()
	if totals["1_acme"] != 37 || len(pending) != 0 {
		t.Errorf("after second flush: totals=%v pending=%v, want totals[1_acme]=37 and empty pending", totals, pending)
	}
}

// A failed cycle leaves the pending hash untouched; the next cycle
// flushes the accumulated deltas.
func TestFlush_FailureThenRecovery(t *testing.T) {
	t.Parallel()

	store := newFakeDeltas()
	store.add("1_acme", 30)
	store.applyErr = errors.New("pipeline exec failed")

	engine := New(store, DefaultConfig())

	if err := engine.Flush(context.Background()); err == nil {
		t.Fatal("expected first flush to fail")
	}

	pending, totals := store.snapshot()
	if pending["1_acme"] != 30 || len(totals) != 0 {
		t.Errorf("failed flush must change nothing: pending=%v totals=%v", pending, totals)
	}

	store.add("1_acme", 5)
	if err := engine.Flush(context.Background()); err != nil {
		t.Fatalf("recovery flush error: %v", err)
	}
	pending, totals = store.snapshot()
	if totals["1_acme"] != 35 || len(pending) != 0 {
		t.Errorf("after recovery: totals=%v pending=%v, want totals[1_acme]=35 and empty pending", totals, pending)
	}
}

func TestFlush_SnapshotError(t *testing.T) {
	t.Parallel()

	store := newFakeDeltas()
	store.readErr = errors.New("connection refused")

	if err := New(store, DefaultConfig()).Flush(context.Background()); err == nil {
		t.Fatal("expected snapshot failure to surface")
	}
	if store.applies != 0 {
		t.Error("failed snapshot must not issue an apply")
	}
}

func TestUntilNextBoundary(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		now      time.Time
		interval time.Duration
		want     time.Duration
	}{
		{
			name:     "mid minute",
			now:      time.Date(2026, 3, 1, 10, 4, 30, 0, time.UTC),
			interval: time.Minute,
			want:     30 * time.Second,
		},
		{
			name:     "on the boundary",
			now:      time.Date(2026, 3, 1, 10, 4, 0, 0, time.UTC),
			interval: time.Minute,
			want:     time.Minute,
		},
		{
			name:     "just before boundary",
			now:      time.Date(2026, 3, 1, 10, 4, 59, int(900*time.Millisecond), time.UTC),
			interval: time.Minute,
			want:     100 * time.Millisecond,
		},
		{
			name:     "five minute interval",
			now:      time.Date(2026, 3, 1, 10, 7, 0, 0, time.UTC),
			interval: 5 * time.Minute,
			want:     3 * time.Minute,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := untilNextBoundary(tt.now, tt.interval); got != tt.want {
				t.Errorf("untilNextBoundary(%v, %v) = %v, want %v", tt.now, tt.interval, got, tt.want)
			}
		})
	}
}

func TestRun_StopsOnCancel(t *testing.T) {
	t.Parallel()

	engine := New(newFakeDeltas(), Config{Interval: time.Hour, Timeout: time.Second})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- engine.Run(ctx) }()

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

func TestRun_FlushesOnBoundary(t *testing.T) {
	t.Parallel()

	store := newFakeDeltas()
	store.add("1_acme", 30)

	engine := New(store, Config{Interval: 50 * time.Millisecond, Timeout: time.Second})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = engine.Run(ctx) }()

	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if _, totals := store.snapshot(); totals["1_acme"] == 30 {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("flush never fired")
}
