package entities

import (
	"strings"
	"time"

	gateentities "meridian/contexts/compliance-core/transfer-gate/domain/entities"

	"github.com/shopspring/decimal"
)

// HolderBalance is re-exported from the transfer gate; the snapshot stores
// exactly what the gate's holder view produced.
type HolderBalance = gateentities.HolderBalance

type CycleState string

const (
	// StateSnapshotted is the initial state of a cycle: snapshot taken, no
	// funding received yet.
	StateSnapshotted CycleState = "SNAPSHOTTED"
	StateFunding     CycleState = "FUNDING"
	StateDistributed CycleState = "DISTRIBUTED"
)

type Mode string

const (
	// ModeFull rejects distribution while the cycle is underfunded.
	ModeFull Mode = "FULL"
	// ModeProRata scales every holder's share down to what was funded.
	ModeProRata Mode = "PRO_RATA"
)

func ParseMode(raw string) (Mode, bool) {
	switch Mode(strings.ToUpper(strings.TrimSpace(raw))) {
	case ModeFull:
		return ModeFull, true
	case ModeProRata:
		return ModeProRata, true
	default:
		return "", false
	}
}

// Snapshot is an immutable capture of ledger state. Once persisted its data
// never changes; it is the sole input to the cycle's distribution.
type Snapshot struct {
	SnapshotID  string
	Sequence    uint64
	TotalSupply decimal.Decimal
	TakenAt     time.Time
	Holders     []HolderBalance
}

// Cycle tracks one snapshot through funding and distribution. Cursor is the
// index of the next holder to process, persisted with every committed batch
// so an interrupted distribution resumes without double-paying.
type Cycle struct {
	SnapshotID     string
	Sequence       uint64
	State          CycleState
	Mode           Mode
	RequiredAmount decimal.Decimal
	FundedAmount   decimal.Decimal
	Cursor         int
	TotalPaid      decimal.Decimal
	Residual       decimal.Decimal
	CreatedAt      time.Time
	UpdatedAt      time.Time
	DistributedAt  time.Time
}

func (c Cycle) Finished() bool {
	return c.State == StateDistributed
}

type PayoutStatus string

const (
	PayoutStatusPaid    PayoutStatus = "paid"
	PayoutStatusSkipped PayoutStatus = "skipped"
)

// PayoutRecord is one holder's outcome within a cycle, keyed by
// (snapshot, wallet). Zero-balance holders are recorded as skipped so the
// cycle's holder list is fully accounted for.
type PayoutRecord struct {
	SnapshotID string
	Wallet     string
	Amount     decimal.Decimal
	Status     PayoutStatus
	RecordedAt time.Time
}

// DistributionResult is what Distribute reports. AlreadyDistributed marks the
// idempotent re-invocation path: no new payouts were produced.
type DistributionResult struct {
	SnapshotID         string
	Mode               Mode
	TotalPaid          decimal.Decimal
	Residual           decimal.Decimal
	HolderCount        int
	AlreadyDistributed bool
}
