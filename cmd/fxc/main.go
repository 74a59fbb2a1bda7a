// FXC - Transaction Ledger and Balance Aggregation Service
// Copyright 2026 Denis Selimovic (denis-selimovic)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/denis-selimovic/fxc

// Command fxc runs the transaction ingestion service: it consumes
// transaction events from JetStream, records them durably in the ledger,
// accumulates per-provider balance deltas, and periodically folds those
// deltas into running totals. Startup order matters: counters are seeded
// from the ledger before the first event is consumed.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	natsgo "github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/denis-selimovic/fxc/internal/api"
	"github.com/denis-selimovic/fxc/internal/bootstrap"
	"github.com/denis-selimovic/fxc/internal/config"
	"github.com/denis-selimovic/fxc/internal/counter"
	"github.com/denis-selimovic/fxc/internal/flush"
	"github.com/denis-selimovic/fxc/internal/ledger"
	"github.com/denis-selimovic/fxc/internal/logging"
	"github.com/denis-selimovic/fxc/internal/pipeline"
	"github.com/denis-selimovic/fxc/internal/supervisor"
	"github.com/denis-selimovic/fxc/internal/supervisor/services"
)

const startupTimeout = 60 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.Fatal().Err(err).Msg("load configuration")
	}

	logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Caller: cfg.Logging.Caller,
	})
	logger := logging.With().Str("component", "main").Logger()
	logger.Info().Msg("starting fxc")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	startupCtx, cancelStartup := context.WithTimeout(ctx, startupTimeout)
	defer cancelStartup()

	// Optional embedded broker for single-node deployments.
	natsURL := cfg.NATS.URL
	if cfg.NATS.Embedded {
		embedded, err := pipeline.NewEmbeddedServer(pipeline.DefaultServerConfig(cfg.NATS.StoreDir))
		if err != nil {
			logger.Fatal().Err(err).Msg("start embedded NATS server")
		}
		defer embedded.Shutdown(context.Background()) //nolint:errcheck
		natsURL = embedded.ClientURL()
		logger.Info().Str("url", natsURL).Msg("embedded NATS server ready")
	}

	if err := ensureStream(startupCtx, natsURL, cfg.NATS.StreamName); err != nil {
		logger.Fatal().Err(err).Msg("provision JetStream stream")
	}

	ledgerStore, err := ledger.Open(startupCtx, ledger.Config{
		DSN:             cfg.Postgres.DSN,
		MaxOpenConns:    cfg.Postgres.MaxOpenConns,
		MaxIdleConns:    cfg.Postgres.MaxIdleConns,
		ConnMaxLifetime: cfg.Postgres.ConnMaxLifetime,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("connect to ledger database")
	}
	defer ledgerStore.Close() //nolint:errcheck

	if err := ledgerStore.EnsureSchema(startupCtx); err != nil {
		logger.Fatal().Err(err).Msg("ensure ledger schema")
	}

	counterStore, err := counter.Open(startupCtx, counter.Config{
		Addr:           cfg.Redis.Addr,
		Password:       cfg.Redis.Password,
		DB:             cfg.Redis.DB,
		PendingHashKey: cfg.Redis.PendingHashKey,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("connect to counter store")
	}
	defer counterStore.Close() //nolint:errcheck

	// Counters must reflect the ledger before ingest starts; a process
	// that cannot reconcile must not consume.
	if cfg.Bootstrap.Enabled {
		reconciler := bootstrap.New(ledgerStore, counterStore, bootstrap.Config{
			Attempts: cfg.Bootstrap.Attempts,
			Delay:    cfg.Bootstrap.Delay,
		})
		if err := reconciler.Run(startupCtx); err != nil {
			logger.Fatal().Err(err).Msg("bootstrap reconciliation")
		}
	}

	tree := supervisor.NewTree(logging.NewSlogLogger(), supervisor.DefaultTreeConfig())
	wmLogger := logging.NewWatermillAdapter()

	if cfg.Pipeline.Enabled {
		subCfg := pipeline.DefaultSubscriberConfig(natsURL)
		subCfg.StreamName = cfg.NATS.StreamName
		subCfg.DurableName = cfg.NATS.DurableName
		subCfg.QueueGroup = cfg.NATS.QueueGroup
		if cfg.NATS.AckWait > 0 {
			subCfg.AckWait = cfg.NATS.AckWait
		}
		subscriber, err := pipeline.NewSubscriber(subCfg, wmLogger)
		if err != nil {
			logger.Fatal().Err(err).Msg("create subscriber")
		}
		defer subscriber.Close() //nolint:errcheck

		publisher, err := pipeline.NewPublisher(pipeline.DefaultPublisherConfig(natsURL), wmLogger)
		if err != nil {
			logger.Fatal().Err(err).Msg("create publisher")
		}
		defer publisher.Close() //nolint:errcheck
		publisher.SetCircuitBreaker(pipeline.NewPublisherBreaker(wmLogger))

		processor := pipeline.NewProcessor(ledgerStore, counterStore, cfg.Pipeline.MaxRetries)
		consumer := pipeline.NewConsumer(subscriber, publisher, processor, pipeline.ConsumerConfig{
			IngestTopic:     cfg.NATS.IngestTopic,
			DeadLetterTopic: cfg.NATS.DeadLetterTopic,
		})
		tree.AddIngestService(services.NewRunnerService("consumer", consumer))
	}

	if cfg.Flush.Enabled {
		engine := flush.New(counterStore, flush.DefaultConfig())
		tree.AddFlushService(services.NewRunnerService("flush", engine))
	}

	if cfg.Server.Enabled {
		handler := api.NewHandler(ledgerStore, counterStore)
		srv := api.NewServer(api.Config{
			Host:         cfg.Server.Host,
			Port:         cfg.Server.Port,
			ReadTimeout:  cfg.Server.Timeout,
			WriteTimeout: cfg.Server.Timeout,
		}, handler)
		tree.AddOpsService(services.NewHTTPServerService(srv, 10*time.Second))
	}

	logger.Info().Msg("fxc running")
	if err := tree.Serve(ctx); err != nil && ctx.Err() == nil {
		logger.Error().Err(err).Msg("supervision tree terminated")
		os.Exit(1)
	}
	logger.Info().Msg("fxc stopped")
}

// ensureStream provisions the durable stream on a short-lived connection
// so publishers and subscribers never race stream creation.
func ensureStream(ctx context.Context, url, streamName string) error {
	nc, err := natsgo.Connect(url,
		natsgo.RetryOnFailedConnect(true),
		natsgo.MaxReconnects(10),
		natsgo.ReconnectWait(2*time.Second),
	)
	if err != nil {
		return err
	}
	defer nc.Close()

	js, err := jetstream.New(nc)
	if err != nil {
		return err
	}

	init, err := pipeline.NewStreamInitializer(js, pipeline.DefaultStreamConfig(streamName))
	if err != nil {
		return err
	}
	_, err = init.EnsureStream(ctx)
	return err
}
