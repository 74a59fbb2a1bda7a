// FXC - Transaction Ledger and Balance Aggregation Service
// Copyright 2026 Denis Selimovic (denis-selimovic)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/denis-selimovic/fxc

package pipeline

import (
	"strconv"

	"github.com/ThreeDotsLabs/watermill/message"
)

// Metadata keys forming the delivery envelope wire contract. Absent keys
// decode to zero values, so a message published by any producer without
// envelope metadata is a valid fresh delivery.
const (
	// MetaRetryCount counts explicit re-enqueues of this event.
	MetaRetryCount = "x-retry-count"

	// MetaLedgerConfirmed records that the ledger insert committed on a
	// prior attempt and must be skipped on this one.
	MetaLedgerConfirmed = "x-ledger-confirmed"

	// MetaError carries the final failure reason on dead-lettered messages.
	MetaError = "x-error"

	// MetaDeadLetteredAt carries the dead-letter timestamp (RFC 3339).
	MetaDeadLetteredAt = "x-dead-lettered-at"
)

// Envelope is the per-event retry state carried in message metadata. It is
// the idempotency token: a redelivered copy of an event skips a ledger
// insert it already performed while still retrying the counter step.
type Envelope struct {
	RetryCount      int
	LedgerConfirmed bool
}

// EnvelopeFromMetadata decodes the envelope from message metadata.
// Missing or malformed values fall back to the zero value for the field,
// treating the message as a fresh delivery for that aspect.
func EnvelopeFromMetadata(md message.Metadata) Envelope {
	var env Envelope
	if v := md.Get(MetaRetryCount); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			env.RetryCount = n
		}
	}
	if v := md.Get(MetaLedgerConfirmed); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			env.LedgerConfirmed = b
		}
	}
	return env
}

// ApplyTo encodes the envelope into message metadata, overwriting any
// previous envelope keys.
func (e Envelope) ApplyTo(md message.Metadata) {
	md.Set(MetaRetryCount, strconv.Itoa(e.RetryCount))
	md.Set(MetaLedgerConfirmed, strconv.FormatBool(e.LedgerConfirmed))
}
