// FXC - Transaction Ledger and Balance Aggregation Service
// Copyright 2026 Denis Selimovic (denis-selimovic)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/denis-selimovic/fxc

// Package metrics defines Prometheus instrumentation for FXC.
//
// Covered surfaces:
//   - ingestion pipeline (deliveries, outcomes, retries, dead letters)
//   - aggregation flush engine (cycles, failures, migrated keys/amounts)
//   - bootstrap reconciliation
//   - store round trips
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Pipeline metrics

	EventsReceived = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "fxc_pipeline_events_received_total",
			Help: "Total deliveries received from the ingest queue, including redeliveries",
		},
	)

	EventOutcomes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fxc_pipeline_event_outcomes_total",
			Help: "Terminal decision per delivery",
		},
		[]string{"outcome"}, // "ack", "requeue", "dead_letter"
	)

	LedgerInserts = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "fxc_pipeline_ledger_inserts_total",
			Help: "Ledger entries durably inserted",
		},
	)

	LedgerInsertsSkipped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "fxc_pipeline_ledger_inserts_skipped_total",
			Help: "Ledger inserts skipped because a prior attempt already confirmed the write",
		},
	)

	UnknownProviderEvents = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "fxc_pipeline_unknown_provider_total",
			Help: "Events dropped because no provider row matched the event id",
		},
	)

	AckFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "fxc_pipeline_ack_failures_total",
			Help: "Acknowledgments that could not be delivered to the transport; possible counter double-count, reconcile against the ledger",
		},
	)

	RequeueFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "fxc_pipeline_requeue_failures_total",
			Help: "Retry re-enqueue publishes that failed; the delivery is nacked for transport redelivery instead",
		},
	)

	ProcessDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "fxc_pipeline_process_duration_seconds",
			Help:    "Duration of a single delivery's processing",
			Buckets: prometheus.DefBuckets,
		},
	)

	// Flush engine metrics

	FlushCycles = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fxc_flush_cycles_total",
			Help: "Flush cycles by result",
		},
		[]string{"result"}, // "ok", "error", "empty"
	)

	FlushedKeys = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "fxc_flush_keys_total",
			Help: "Pending-delta keys migrated into running totals",
		},
	)

	FlushDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "fxc_flush_duration_seconds",
			Help:    "Duration of one flush cycle",
			Buckets: prometheus.DefBuckets,
		},
	)

	// Bootstrap metrics

	BootstrapAttempts = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "fxc_bootstrap_attempts_total",
			Help: "Bootstrap reconciliation attempts, including retries",
		},
	)

	BootstrapSeededKeys = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "fxc_bootstrap_seeded_keys",
			Help: "Running-total keys seeded by the last successful bootstrap",
		},
	)

	// Store metrics

	StoreErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fxc_store_errors_total",
			Help: "Errors per backing store",
		},
		[]string{"store"}, // "ledger", "counter"
	)
)

// RecordOutcome increments the outcome counter for a terminal decision.
func RecordOutcome(outcome string) {
	EventOutcomes.WithLabelValues(outcome).Inc()
}

// ObserveProcessDuration records the wall time of a single delivery.
func ObserveProcessDuration(start time.Time) {
	ProcessDuration.Observe(time.Since(start).Seconds())
}

// RecordFlush records one flush cycle with its result and key count.
func RecordFlush(result string, keys int, start time.Time) {
	FlushCycles.WithLabelValues(result).Inc()
	if keys > 0 {
		FlushedKeys.Add(float64(keys))
	}
	FlushDuration.Observe(time.Since(start).Seconds())
}
