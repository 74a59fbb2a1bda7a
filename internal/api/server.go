// FXC - Transaction Ledger and Balance Aggregation Service
// Copyright 2026 Denis Selimovic (denis-selimovic)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/denis-selimovic/fxc

// Package api exposes the operational HTTP surface: health checks over
// the backing stores and Prometheus metrics.
package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/goccy/go-json"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Pinger is a connectivity probe over a backing store.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Config holds the ops server settings.
type Config struct {
	Host string
	Port int

	// ReadTimeout and WriteTimeout bound request handling.
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// DefaultConfig returns the production ops server settings.
func DefaultConfig() Config {
	return Config{
		Port:         8080,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}
}

// HealthStatus is the health endpoint response body.
type HealthStatus struct {
	Status           string  `json:"status"`
	LedgerConnected  bool    `json:"ledger_connected"`
	CounterConnected bool    `json:"counter_connected"`
	Uptime           float64 `json:"uptime_seconds"`
}

// Handler serves the ops endpoints.
type Handler struct {
	ledger    Pinger
	counters  Pinger
	startTime time.Time
}

// NewHandler creates the ops handler over the two store probes.
func NewHandler(ledger, counters Pinger) *Handler {
	return &Handler{
		ledger:    ledger,
		counters:  counters,
		startTime: time.Now(),
	}
}

// Router builds the chi router for the ops surface.
func (h *Handler) Router() chi.Router {
	r := chi.NewRouter()
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)

	r.Get("/healthz", h.Health)
	r.Handle("/metrics", promhttp.Handler())
	return r
}

// Health reports connectivity of both backing stores. Degraded when
// either probe fails; the process keeps running since the pipeline has
// its own retry protocol.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	ledgerOK := h.ledger != nil && h.ledger.Ping(r.Context()) == nil
	counterOK := h.counters != nil && h.counters.Ping(r.Context()) == nil

	status := "healthy"
	code := http.StatusOK
	if !ledgerOK || !counterOK {
		status = "degraded"
		code = http.StatusServiceUnavailable
	}

	respondJSON(w, code, HealthStatus{
		Status:           status,
		LedgerConnected:  ledgerOK,
		CounterConnected: counterOK,
		Uptime:           time.Since(h.startTime).Seconds(),
	})
}

// NewServer builds the http.Server for the ops surface.
func NewServer(cfg Config, handler *Handler) *http.Server {
	return &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler:      handler.Router(),
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}
}

func respondJSON(w http.ResponseWriter, code int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(body)
}
