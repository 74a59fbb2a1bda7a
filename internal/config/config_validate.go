// FXC - Transaction Ledger and Balance Aggregation Service
// Copyright 2026 Denis Selimovic (denis-selimovic)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/denis-selimovic/fxc

package config

import (
	"fmt"
	"strings"
)

// Validate checks that required configuration is present and valid.
func (c *Config) Validate() error {
	if err := c.validatePostgres(); err != nil {
		return err
	}
	if err := c.validateRedis(); err != nil {
		return err
	}
	if err := c.validateNATS(); err != nil {
		return err
	}
	if err := c.validatePipeline(); err != nil {
		return err
	}
	if err := c.validateBootstrap(); err != nil {
		return err
	}
	if err := c.validateServer(); err != nil {
		return err
	}
	return c.validateLogging()
}

func (c *Config) validatePostgres() error {
	if c.Postgres.DSN == "" {
		return fmt.Errorf("POSTGRES_DSN is required")
	}
	if c.Postgres.MaxOpenConns < 1 {
		return fmt.Errorf("POSTGRES_MAX_OPEN_CONNS must be at least 1, got %d", c.Postgres.MaxOpenConns)
	}
	if c.Postgres.MaxIdleConns < 0 {
		return fmt.Errorf("POSTGRES_MAX_IDLE_CONNS must not be negative, got %d", c.Postgres.MaxIdleConns)
	}
	return nil
}

func (c *Config) validateRedis() error {
	if c.Redis.Addr == "" {
		return fmt.Errorf("REDIS_ADDR is required")
	}
	if c.Redis.PendingHashKey == "" {
		return fmt.Errorf("REDIS_PENDING_HASH must not be empty")
	}
	return nil
}

func (c *Config) validateNATS() error {
	if c.NATS.URL == "" {
		return fmt.Errorf("NATS_URL is required")
	}
	if c.NATS.StreamName == "" {
		return fmt.Errorf("NATS_STREAM must not be empty")
	}
	if c.NATS.IngestTopic == "" || c.NATS.DeadLetterTopic == "" {
		return fmt.Errorf("NATS ingest and dead-letter topics must not be empty")
	}
	if c.NATS.IngestTopic == c.NATS.DeadLetterTopic {
		return fmt.Errorf("NATS_INGEST_TOPIC and NATS_DEAD_LETTER_TOPIC must differ")
	}
	if c.NATS.Embedded && c.NATS.StoreDir == "" {
		return fmt.Errorf("NATS_STORE_DIR is required when NATS_EMBEDDED=true")
	}
	return nil
}

func (c *Config) validatePipeline() error {
	if c.Pipeline.MaxRetries < 0 {
		return fmt.Errorf("PIPELINE_MAX_RETRIES must not be negative, got %d", c.Pipeline.MaxRetries)
	}
	return nil
}

func (c *Config) validateBootstrap() error {
	if !c.Bootstrap.Enabled {
		return nil
	}
	if c.Bootstrap.Attempts < 1 {
		return fmt.Errorf("BOOTSTRAP_ATTEMPTS must be at least 1, got %d", c.Bootstrap.Attempts)
	}
	if c.Bootstrap.Delay < 0 {
		return fmt.Errorf("BOOTSTRAP_DELAY must not be negative")
	}
	return nil
}

func (c *Config) validateServer() error {
	if !c.Server.Enabled {
		return nil
	}
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("HTTP_PORT must be between 1 and 65535, got %d", c.Server.Port)
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch strings.ToLower(c.Logging.Level) {
	case "trace", "debug", "info", "warn", "warning", "error", "disabled", "":
	default:
		return fmt.Errorf("LOG_LEVEL %q is not a valid level", c.Logging.Level)
	}
	switch strings.ToLower(c.Logging.Format) {
	case "json", "console", "":
		return nil
	default:
		return fmt.Errorf("LOG_FORMAT %q must be json or console", c.Logging.Format)
	}
}
