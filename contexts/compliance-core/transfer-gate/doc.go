// Package transfergate implements the Meridian transfer admission gate.
//
// The module owns the partitioned ownership ledger and wraps every balance
// mutation (mint, burn, transfer, forced transfer) in a compliance admission
// check against the claims registry. Denials are surfaced as decisions, not
// errors, and admitted mutations are supply-consistent and evented.
package transfergate
