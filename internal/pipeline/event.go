// FXC - Transaction Ledger and Balance Aggregation Service
// Copyright 2026 Denis Selimovic (denis-selimovic)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/denis-selimovic/fxc

package pipeline

import (
	"fmt"

	"github.com/goccy/go-json"
)

// Event is one incoming transaction: a signed amount attributed to a
// provider. The provider name is never trusted from the payload; it is
// resolved from the ledger on every delivery.
type Event struct {
	ID    int64 `json:"id"`
	Value int64 `json:"value"`
}

// DecodeEvent parses an event payload. A malformed payload is a per-event
// failure handled by the retry protocol, never a consumer crash.
func DecodeEvent(data []byte) (Event, error) {
	var ev Event
	if err := json.Unmarshal(data, &ev); err != nil {
		return Event{}, fmt.Errorf("decode event payload: %w", err)
	}
	return ev, nil
}

// EncodeEvent serializes an event payload.
func EncodeEvent(ev Event) ([]byte, error) {
	data, err := json.Marshal(ev)
	if err != nil {
		return nil, fmt.Errorf("encode event payload: %w", err)
	}
	return data, nil
}
