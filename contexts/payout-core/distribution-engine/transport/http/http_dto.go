package http

import (
	"time"

	"meridian/contexts/payout-core/distribution-engine/domain/entities"
)

type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type TakeSnapshotRequest struct {
	// RequiredAmount overrides the rate-derived funding target when set.
	RequiredAmount string `json:"required_amount,omitempty"`
}

type FundRequest struct {
	Amount string `json:"amount"`
}

type SetModeRequest struct {
	Mode string `json:"mode"`
}

type CycleResponse struct {
	SnapshotID     string `json:"snapshot_id"`
	Sequence       uint64 `json:"sequence"`
	State          string `json:"state"`
	Mode           string `json:"mode"`
	RequiredAmount string `json:"required_amount"`
	FundedAmount   string `json:"funded_amount"`
	TotalPaid      string `json:"total_paid"`
	Residual       string `json:"residual"`
	TotalSupply    string `json:"total_supply,omitempty"`
	HolderCount    int    `json:"holder_count,omitempty"`
	TakenAt        string `json:"taken_at,omitempty"`
	DistributedAt  string `json:"distributed_at,omitempty"`
}

type DistributeResponse struct {
	SnapshotID         string         `json:"snapshot_id"`
	Mode               string         `json:"mode"`
	TotalPaid          string         `json:"total_paid"`
	Residual           string         `json:"residual"`
	HolderCount        int            `json:"holder_count"`
	AlreadyDistributed bool           `json:"already_distributed"`
	Payouts            []PayoutRecord `json:"payouts,omitempty"`
}

type RequiredAmountResponse struct {
	SnapshotID     string `json:"snapshot_id"`
	RequiredAmount string `json:"required_amount"`
}

type PayoutRecord struct {
	Wallet string `json:"wallet"`
	Amount string `json:"amount"`
	Status string `json:"status"`
}

func CycleResponseFromEntities(cycle entities.Cycle, snapshot entities.Snapshot) CycleResponse {
	response := CycleResponse{
		SnapshotID:     cycle.SnapshotID,
		Sequence:       cycle.Sequence,
		State:          string(cycle.State),
		Mode:           string(cycle.Mode),
		RequiredAmount: cycle.RequiredAmount.String(),
		FundedAmount:   cycle.FundedAmount.String(),
		TotalPaid:      cycle.TotalPaid.String(),
		Residual:       cycle.Residual.String(),
	}
	if snapshot.SnapshotID != "" {
		response.TotalSupply = snapshot.TotalSupply.String()
		response.HolderCount = len(snapshot.Holders)
		response.TakenAt = snapshot.TakenAt.UTC().Format(time.RFC3339)
	}
	if !cycle.DistributedAt.IsZero() {
		response.DistributedAt = cycle.DistributedAt.UTC().Format(time.RFC3339)
	}
	return response
}
