// FXC - Transaction Ledger and Balance Aggregation Service
// Copyright 2026 Denis Selimovic (denis-selimovic)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/denis-selimovic/fxc

// Package pipeline implements the idempotent event ingestion protocol on
// Watermill and NATS JetStream.
//
// # Delivery protocol
//
// Each delivery carries the event body plus a delivery envelope in message
// metadata: a retry count and a flag recording whether the ledger write
// already committed on a prior attempt. The envelope travels in metadata
// (not application data) because it must survive re-enqueue by the
// transport itself; it is part of the wire contract.
//
// Per delivery:
//
//  1. Resolve the provider name for the event id from the ledger; if no
//     provider matches, acknowledge and drop (terminal no-op).
//  2. Unless the envelope confirms a prior ledger write, append a ledger
//     entry in the same database transaction as the lookup. This is the
//     idempotency guard against duplicate ledger inserts on redelivery.
//  3. Increment the pending counter delta for the provider's composite
//     key. This step is in a different store and may fail independently.
//  4. Success: acknowledge. This is the only path that removes the
//     message from the queue.
//  5. Failure anywhere: if retries remain, acknowledge the current
//     delivery and re-enqueue a copy carrying {retryCount+1, ledger
//     confirmation as of the failure point}; otherwise publish to the
//     dead-letter topic for manual inspection.
//
// Retry is explicit re-enqueue rather than transport-native redelivery
// because redelivered broker copies cannot carry the evolving idempotency
// state. The ledger-confirmed flag is set only after the database
// transaction commits, never optimistically, so an event can never be
// retried into a double ledger insert.
//
// The consumer is deliberately sequential: one subscription, one message
// at a time, preserving ordering within the queue. Cross-provider
// parallelism is not provided by a single instance.
package pipeline
