// FXC - Transaction Ledger and Balance Aggregation Service
// Copyright 2026 Denis Selimovic (denis-selimovic)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/denis-selimovic/fxc

package counter

import "strconv"

// Key derives the composite counter key for a provider: "<id>_<name>".
// It binds the numeric id to the human-readable provider name for
// downstream consumers, and must always be recomputed from a ledger
// lookup rather than trusted from an event payload.
func Key(providerID int64, name string) string {
	return strconv.FormatInt(providerID, 10) + "_" + name
}
