// Package distributionengine owns payout cycles: immutable ledger snapshots,
// cycle funding, and the batched proportional distribution of funded cash to
// snapshot holders. It reads holder balances through a read-only port on the
// transfer gate and never mutates ledger state.
package distributionengine
