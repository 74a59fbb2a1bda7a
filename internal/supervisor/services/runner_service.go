// FXC - Transaction Ledger and Balance Aggregation Service
// Copyright 2026 Denis Selimovic (denis-selimovic)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/denis-selimovic/fxc

// Package services adapts the service components to suture's Serve
// pattern so the supervision tree can own their lifecycles.
package services

import (
	"context"
	"errors"
	"fmt"
)

// Runner is the blocking-loop contract shared by the delivery consumer
// and the flush engine: Run blocks until the context is canceled and
// returns the reason it stopped.
type Runner interface {
	Run(ctx context.Context) error
}

// RunnerService wraps a Runner as a supervised service. A context
// cancellation is a clean stop; any other return is a crash that suture
// restarts with backoff.
type RunnerService struct {
	runner Runner
	name   string
}

// NewRunnerService wraps runner under the given service name. The name
// shows up in suture lifecycle events.
func NewRunnerService(name string, runner Runner) *RunnerService {
	return &RunnerService{runner: runner, name: name}
}

// Serve implements suture.Service.
func (s *RunnerService) Serve(ctx context.Context) error {
	err := s.runner.Run(ctx)
	if err == nil || errors.Is(err, context.Canceled) {
		return nil
	}
	return fmt.Errorf("%s stopped: %w", s.name, err)
}

// String implements fmt.Stringer for suture event logs.
func (s *RunnerService) String() string {
	return s.name
}
