// FXC - Transaction Ledger and Balance Aggregation Service
// Copyright 2026 Denis Selimovic (denis-selimovic)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/denis-selimovic/fxc

package logging

import (
	"github.com/ThreeDotsLabs/watermill"
	"github.com/rs/zerolog"
)

// WatermillAdapter implements watermill.LoggerAdapter using zerolog,
// so Watermill publishers and subscribers log through the global logger.
type WatermillAdapter struct {
	logger zerolog.Logger
}

// NewWatermillAdapter creates an adapter around the global zerolog logger.
func NewWatermillAdapter() *WatermillAdapter {
	return &WatermillAdapter{logger: With().Str("component", "watermill").Logger()}
}

// NewWatermillAdapterWithLogger creates an adapter around a specific logger.
//
//nolint:gocritic // zerolog.Logger is designed to be passed by value
func NewWatermillAdapterWithLogger(logger zerolog.Logger) *WatermillAdapter {
	return &WatermillAdapter{logger: logger}
}

// Error logs an error message.
func (a *WatermillAdapter) Error(msg string, err error, fields watermill.LogFields) {
	addLogFields(a.logger.Error().Err(err), fields).Msg(msg)
}

// Info logs an info message.
func (a *WatermillAdapter) Info(msg string, fields watermill.LogFields) {
	addLogFields(a.logger.Info(), fields).Msg(msg)
}

// Debug logs a debug message.
func (a *WatermillAdapter) Debug(msg string, fields watermill.LogFields) {
	addLogFields(a.logger.Debug(), fields).Msg(msg)
}

// Trace logs a trace message.
func (a *WatermillAdapter) Trace(msg string, fields watermill.LogFields) {
	addLogFields(a.logger.Trace(), fields).Msg(msg)
}

// With returns an adapter that always logs the given fields.
func (a *WatermillAdapter) With(fields watermill.LogFields) watermill.LoggerAdapter {
	ctx := a.logger.With()
	for k, v := range fields {
		ctx = ctx.Interface(k, v)
	}
	return &WatermillAdapter{logger: ctx.Logger()}
}

func addLogFields(event *zerolog.Event, fields watermill.LogFields) *zerolog.Event {
	for k, v := range fields {
		event = event.Interface(k, v)
	}
	return event
}
