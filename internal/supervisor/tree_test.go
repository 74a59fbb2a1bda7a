// FXC - Transaction Ledger and Balance Aggregation Service
// Copyright 2026 Denis Selimovic (denis-selimovic)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/denis-selimovic/fxc

package supervisor

import (
	"context"
	"log/slog"
	"testing"
	"time"
)

type noopService struct {
	started chan struct{}
	once    bool
}

func (s *noopService) Serve(ctx context.Context) error {
	if !s.once {
		s.once = true
		close(s.started)
	}
	<-ctx.Done()
	return ctx.Err()
}

func TestNewTree_AppliesDefaults(t *testing.T) {
	t.Parallel()

	tree := NewTree(slog.Default(), TreeConfig{})

	if tree.config.FailureThreshold != 5.0 {
		t.Errorf("FailureThreshold = %v, want 5.0", tree.config.FailureThreshold)
	}
	if tree.config.FailureDecay != 30.0 {
		t.Errorf("FailureDecay = %v, want 30.0", tree.config.FailureDecay)
	}
	if tree.config.FailureBackoff != 15*time.Second {
		t.Errorf("FailureBackoff = %v, want 15s", tree.config.FailureBackoff)
	}
	if tree.config.ShutdownTimeout != 10*time.Second {
		t.Errorf("ShutdownTimeout = %v, want 10s", tree.config.ShutdownTimeout)
	}
}

func TestTree_RunsServicesAndStops(t *testing.T) {
	t.Parallel()

	tree := NewTree(slog.Default(), DefaultTreeConfig())

	ingest := &noopService{started: make(chan struct{})}
	flush := &noopService{started: make(chan struct{})}
	ops := &noopService{started: make(chan struct{})}
	tree.AddIngestService(ingest)
	tree.AddFlushService(flush)
	tree.AddOpsService(ops)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := tree.ServeBackground(ctx)

	for _, svc := range []*noopService{ingest, flush, ops} {
		select {
		case <-svc.started:
		case <-time.After(5 * time.Second):
			t.Fatal("service never started")
		}
	}

	cancel()
	select {
	case <-errCh:
	case <-time.After(5 * time.Second):
		t.Fatal("tree did not stop after cancel")
	}
}
