// FXC - Transaction Ledger and Balance Aggregation Service
// Copyright 2026 Denis Selimovic (denis-selimovic)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/denis-selimovic/fxc

package config

import (
	"fmt"
	"os"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// DefaultConfigPaths lists the paths where config files are searched in
// order of priority. The first file found wins.
var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
	"/etc/fxc/config.yaml",
	"/etc/fxc/config.yml",
}

// ConfigPathEnvVar is the environment variable that overrides the config
// file path.
const ConfigPathEnvVar = "CONFIG_PATH"

// Load loads configuration using Koanf v2 with layered sources:
// defaults, then an optional YAML config file, then environment variables.
func Load() (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("load defaults: %w", err)
	}

	if configPath := findConfigFile(); configPath != "" {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("load config file %s: %w", configPath, err)
		}
	}

	// Environment variables have the highest priority.
	// POSTGRES_DSN -> postgres.dsn, NATS_INGEST_TOPIC -> nats.ingest_topic
	if err := k.Load(env.Provider("", ".", envTransformFunc), nil); err != nil {
		return nil, fmt.Errorf("load environment variables: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("unmarshal configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// findConfigFile searches for a config file in the default paths.
// Returns the first file found, or empty string if none exists.
func findConfigFile() string {
	if envPath := os.Getenv(ConfigPathEnvVar); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
	}
	for _, path := range DefaultConfigPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

// envMappings maps environment variable names to koanf config paths.
// Only listed variables are honored: an explicit allowlist prevents
// unrelated environment noise from leaking into the configuration.
var envMappings = map[string]string{
	"POSTGRES_DSN":               "postgres.dsn",
	"POSTGRES_MAX_OPEN_CONNS":    "postgres.max_open_conns",
	"POSTGRES_MAX_IDLE_CONNS":    "postgres.max_idle_conns",
	"POSTGRES_CONN_MAX_LIFETIME": "postgres.conn_max_lifetime",

	"REDIS_ADDR":         "redis.addr",
	"REDIS_PASSWORD":     "redis.password",
	"REDIS_DB":           "redis.db",
	"REDIS_PENDING_HASH": "redis.pending_hash_key",

	"NATS_URL":               "nats.url",
	"NATS_EMBEDDED":          "nats.embedded",
	"NATS_STORE_DIR":         "nats.store_dir",
	"NATS_STREAM":            "nats.stream_name",
	"NATS_INGEST_TOPIC":      "nats.ingest_topic",
	"NATS_DEAD_LETTER_TOPIC": "nats.dead_letter_topic",
	"NATS_DURABLE_NAME":      "nats.durable_name",
	"NATS_QUEUE_GROUP":       "nats.queue_group",
	"NATS_ACK_WAIT":          "nats.ack_wait",
	"NATS_MAX_RECONNECTS":    "nats.max_reconnects",
	"NATS_RECONNECT_WAIT":    "nats.reconnect_wait",
	"NATS_CLOSE_TIMEOUT":     "nats.close_timeout",

	"PIPELINE_ENABLED":     "pipeline.enabled",
	"PIPELINE_MAX_RETRIES": "pipeline.max_retries",

	"FLUSH_ENABLED": "flush.enabled",

	"BOOTSTRAP_ENABLED":  "bootstrap.enabled",
	"BOOTSTRAP_ATTEMPTS": "bootstrap.attempts",
	"BOOTSTRAP_DELAY":    "bootstrap.delay",

	"SERVER_ENABLED": "server.enabled",
	"HTTP_HOST":      "server.host",
	"HTTP_PORT":      "server.port",
	"HTTP_TIMEOUT":   "server.timeout",

	"LOG_LEVEL":  "logging.level",
	"LOG_FORMAT": "logging.format",
	"LOG_CALLER": "logging.caller",
}

// envTransformFunc transforms environment variable names to koanf config
// paths. Unmapped variables are dropped.
func envTransformFunc(key string) string {
	return envMappings[key]
}
