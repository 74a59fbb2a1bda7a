// FXC - Transaction Ledger and Balance Aggregation Service
// Copyright 2026 Denis Selimovic (denis-selimovic)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/denis-selimovic/fxc

package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/nats-io/nats.go/jetstream"
)

// StreamConfig holds JetStream stream settings for the ingest and
// dead-letter subjects.
type StreamConfig struct {
	Name     string
	Subjects []string
	MaxAge   time.Duration
	Replicas int
}

// DefaultStreamConfig returns the stream settings for the given stream
// name, covering all transaction subjects.
func DefaultStreamConfig(name string) StreamConfig {
	return StreamConfig{
		Name:     name,
		Subjects: []string{"transactions.>"},
		MaxAge:   7 * 24 * time.Hour,
		Replicas: 1,
	}
}

// JetStreamContext is the subset of jetstream.JetStream used by
// StreamInitializer. Narrowed for testing with mocks.
type JetStreamContext interface {
	Stream(ctx context.Context, name string) (jetstream.Stream, error)
	CreateStream(ctx context.Context, cfg jetstream.StreamConfig) (jetstream.Stream, error)
	UpdateStream(ctx context.Context, cfg jetstream.StreamConfig) (jetstream.Stream, error)
}

// StreamInitializer provisions the durable stream before publishers and
// subscribers start. Idempotent: an existing stream is updated in place.
type StreamInitializer struct {
	js     JetStreamContext
	config StreamConfig
}

// NewStreamInitializer creates an initializer for the given stream.
func NewStreamInitializer(js JetStreamContext, cfg StreamConfig) (*StreamInitializer, error) {
	if js == nil {
		return nil, fmt.Errorf("jetstream context required")
	}
	if cfg.Name == "" || len(cfg.Subjects) == 0 {
		return nil, fmt.Errorf("stream name and subjects required")
	}
	return &StreamInitializer{js: js, config: cfg}, nil
}

// EnsureStream creates or updates the stream with file storage and
// limits-based retention.
func (s *StreamInitializer) EnsureStream(ctx context.Context) (jetstream.Stream, error) {
	streamCfg := jetstream.StreamConfig{
		Name:      s.config.Name,
		Subjects:  s.config.Subjects,
		Retention: jetstream.LimitsPolicy,
		MaxAge:    s.config.MaxAge,
		Replicas:  s.config.Replicas,
		Storage:   jetstream.FileStorage,
		Discard:   jetstream.DiscardOld,
	}

	_, err := s.js.Stream(ctx, s.config.Name)
	if err == nil {
		stream, err := s.js.UpdateStream(ctx, streamCfg)
		if err != nil {
			return nil, fmt.Errorf("update stream %s: %w", s.config.Name, err)
		}
		return stream, nil
	}

	if errors.Is(err, jetstream.ErrStreamNotFound) {
		stream, err := s.js.CreateStream(ctx, streamCfg)
		if err != nil {
			return nil, fmt.Errorf("create stream %s: %w", s.config.Name, err)
		}
		return stream, nil
	}

	return nil, fmt.Errorf("check stream %s: %w", s.config.Name, err)
}
