package entities

import (
	"time"

	registryentities "meridian/contexts/compliance-core/claims-registry/domain/entities"

	"github.com/shopspring/decimal"
)

// Partition is re-exported from the claims registry so gate callers do not
// need two imports for one concept.
type Partition = registryentities.Partition

const (
	PartitionRegD = registryentities.PartitionRegD
	PartitionRegS = registryentities.PartitionRegS
)

func ParsePartition(raw string) (Partition, bool) {
	return registryentities.ParsePartition(raw)
}

func Partitions() []Partition {
	return registryentities.Partitions()
}

type TransferKind string

const (
	TransferKindMint   TransferKind = "mint"
	TransferKindBurn   TransferKind = "burn"
	TransferKindMove   TransferKind = "transfer"
	TransferKindForced TransferKind = "forced_transfer"
)

// Holding is one (wallet, partition) balance denominated in smallest
// indivisible token units. Balances are integer-valued decimals and never
// negative.
type Holding struct {
	Wallet    string
	Partition Partition
	Balance   decimal.Decimal
}

// HolderBalance is a wallet's aggregate balance across partitions, the shape
// consumed by payout snapshots.
type HolderBalance struct {
	Wallet  string
	Balance decimal.Decimal
}

// TransferReceipt is the persisted audit record for an admitted mutation.
// Forced transfers keep their own kind so remediation actions stay separately
// traceable.
type TransferReceipt struct {
	TransferID string
	Kind       TransferKind
	From       string
	To         string
	Partition  Partition
	Amount     decimal.Decimal
	CallerID   string
	OccurredAt time.Time
}

// TransferOutcome is what gate commands hand back: either an admitted receipt
// or the structured denial decision. Exactly one of the two is meaningful.
type TransferOutcome struct {
	Admitted bool
	Decision registryentities.Decision
	Receipt  TransferReceipt
}
