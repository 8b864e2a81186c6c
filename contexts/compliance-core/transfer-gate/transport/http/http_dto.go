package http

import (
	"meridian/contexts/compliance-core/transfer-gate/domain/entities"

	registryhttp "meridian/contexts/compliance-core/claims-registry/transport/http"
)

type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type MintRequest struct {
	To        string `json:"to"`
	Partition string `json:"partition"`
	Amount    string `json:"amount"`
}

type BurnRequest struct {
	From      string `json:"from"`
	Partition string `json:"partition"`
	Amount    string `json:"amount"`
}

type TransferRequest struct {
	From      string `json:"from"`
	To        string `json:"to"`
	Partition string `json:"partition"`
	Amount    string `json:"amount"`
}

type TransferResponse struct {
	Admitted   bool   `json:"admitted"`
	ReasonCode string `json:"reason_code"`
	Message    string `json:"message,omitempty"`
	TransferID string `json:"transfer_id,omitempty"`
	Kind       string `json:"kind,omitempty"`
	OccurredAt string `json:"occurred_at,omitempty"`
}

type BalanceResponse struct {
	Wallet   string            `json:"wallet"`
	Balances map[string]string `json:"balances"`
}

type SupplyResponse struct {
	Partition string `json:"partition"`
	Supply    string `json:"supply"`
}

func TransferResponseFromOutcome(outcome entities.TransferOutcome) TransferResponse {
	response := TransferResponse{
		Admitted:   outcome.Admitted,
		ReasonCode: registryhttp.ReasonCode(outcome.Decision),
		Message:    registryhttp.ReasonMessage(outcome.Decision),
	}
	if outcome.Admitted {
		response.TransferID = outcome.Receipt.TransferID
		response.Kind = string(outcome.Receipt.Kind)
		response.OccurredAt = outcome.Receipt.OccurredAt.UTC().Format("2006-01-02T15:04:05Z07:00")
	}
	return response
}
