// FXC - Transaction Ledger and Balance Aggregation Service
// Copyright 2026 Denis Selimovic (denis-selimovic)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/denis-selimovic/fxc

package config

import (
	"strings"
	"testing"
	"time"
)

func TestDefaultConfig(t *testing.T) {
	t.Parallel()

	cfg := defaultConfig()

	if cfg.Pipeline.MaxRetries != 5 {
		t.Errorf("Pipeline.MaxRetries = %d, want 5", cfg.Pipeline.MaxRetries)
	}
	if cfg.Redis.PendingHashKey != "pending_deltas" {
		t.Errorf("Redis.PendingHashKey = %q, want pending_deltas", cfg.Redis.PendingHashKey)
	}
	if cfg.Bootstrap.Attempts != 10 {
		t.Errorf("Bootstrap.Attempts = %d, want 10", cfg.Bootstrap.Attempts)
	}
	if cfg.Bootstrap.Delay != 2*time.Second {
		t.Errorf("Bootstrap.Delay = %v, want 2s", cfg.Bootstrap.Delay)
	}
	if !cfg.Pipeline.Enabled || !cfg.Flush.Enabled {
		t.Error("pipeline and flush should be enabled by default")
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config should validate: %v", err)
	}
}

func TestLoad_EnvOverride(t *testing.T) {
	t.Setenv("PIPELINE_MAX_RETRIES", "3")
	t.Setenv("REDIS_ADDR", "localhost:6380")
	t.Setenv("NATS_INGEST_TOPIC", "transactions.test")
	t.Setenv("LOG_LEVEL", "debug")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	if cfg.Pipeline.MaxRetries != 3 {
		t.Errorf("Pipeline.MaxRetries = %d, want 3", cfg.Pipeline.MaxRetries)
	}
	if cfg.Redis.Addr != "localhost:6380" {
		t.Errorf("Redis.Addr = %q, want localhost:6380", cfg.Redis.Addr)
	}
	if cfg.NATS.IngestTopic != "transactions.test" {
		t.Errorf("NATS.IngestTopic = %q, want transactions.test", cfg.NATS.IngestTopic)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("Logging.Level = %q, want debug", cfg.Logging.Level)
	}
}

func TestLoad_UnmappedEnvIgnored(t *testing.T) {
	t.Setenv("POSTGRES_SOMETHING_ELSE", "junk")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.Postgres.DSN == "junk" {
		t.Error("unmapped env var leaked into configuration")
	}
}

func TestValidate_Failures(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:    "empty postgres dsn",
			mutate:  func(c *Config) { c.Postgres.DSN = "" },
			wantErr: "POSTGRES_DSN",
		},
		{
			name:    "empty redis addr",
			mutate:  func(c *Config) { c.Redis.Addr = "" },
			wantErr: "REDIS_ADDR",
		},
		{
			name:    "empty pending hash",
			mutate:  func(c *Config) { c.Redis.PendingHashKey = "" },
			wantErr: "REDIS_PENDING_HASH",
		},
		{
			name:    "negative max retries",
			mutate:  func(c *Config) { c.Pipeline.MaxRetries = -1 },
			wantErr: "PIPELINE_MAX_RETRIES",
		},
		{
			name: "same ingest and dead-letter topic",
			mutate: func(c *Config) {
				c.NATS.IngestTopic = "x"
				c.NATS.DeadLetterTopic = "x"
			},
			wantErr: "must differ",
		},
		{
			name:    "zero bootstrap attempts",
			mutate:  func(c *Config) { c.Bootstrap.Attempts = 0 },
			wantErr: "BOOTSTRAP_ATTEMPTS",
		},
		{
			name:    "bad port",
			mutate:  func(c *Config) { c.Server.Port = 0 },
			wantErr: "HTTP_PORT",
		},
		{
			name:    "bad log level",
			mutate:  func(c *Config) { c.Logging.Level = "verbose" },
			wantErr: "LOG_LEVEL",
		},
		{
			name:    "bad log format",
			mutate:  func(c *Config) { c.Logging.Format = "xml" },
			wantErr: "LOG_FORMAT",
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			cfg := defaultConfig()
			tt.mutate(cfg)

			err := cfg.Validate()
			if err == nil {
				t.Fatal("Validate() should fail")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error %q does not mention %q", err, tt.wantErr)
			}
		})
	}
}

func TestValidate_DisabledSectionsSkipped(t *testing.T) {
	t.Parallel()

	cfg := defaultConfig()
	cfg.Server.Enabled = false
	cfg.Server.Port = 0
	cfg.Bootstrap.Enabled = false
	cfg.Bootstrap.Attempts = 0

	if err := cfg.Validate(); err != nil {
		t.Errorf("disabled sections should not be validated: %v", err)
	}
}
