package httpserver

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	registryerrors "meridian/contexts/compliance-core/claims-registry/domain/errors"
	gateerrors "meridian/contexts/compliance-core/transfer-gate/domain/errors"
	gatehttp "meridian/contexts/compliance-core/transfer-gate/transport/http"
)

func (s *Server) handleMint(w http.ResponseWriter, r *http.Request) {
	controllerID := resolveControllerID(r)
	if controllerID == "" {
		writeGateError(w, http.StatusUnauthorized, "missing_controller", "X-Controller-Id header is required")
		return
	}

	var req gatehttp.MintRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeGateError(w, http.StatusBadRequest, "invalid_json", "request body must be valid JSON")
		return
	}

	resp, _, err := s.gate.Handler.MintHandler(r.Context(), controllerID, r.Header.Get("Idempotency-Key"), req)
	if err != nil {
		writeGateDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleBurn(w http.ResponseWriter, r *http.Request) {
	controllerID := resolveControllerID(r)
	if controllerID == "" {
		writeGateError(w, http.StatusUnauthorized, "missing_controller", "X-Controller-Id header is required")
		return
	}

	var req gatehttp.BurnRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeGateError(w, http.StatusBadRequest, "invalid_json", "request body must be valid JSON")
		return
	}

	resp, _, err := s.gate.Handler.BurnHandler(r.Context(), controllerID, r.Header.Get("Idempotency-Key"), req)
	if err != nil {
		writeGateDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleTransfer(w http.ResponseWriter, r *http.Request) {
	var req gatehttp.TransferRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeGateError(w, http.StatusBadRequest, "invalid_json", "request body must be valid JSON")
		return
	}

	resp, _, err := s.gate.Handler.TransferHandler(r.Context(), r.Header.Get("Idempotency-Key"), req)
	if err != nil {
		writeGateDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleForcedTransfer(w http.ResponseWriter, r *http.Request) {
	controllerID := resolveControllerID(r)
	if controllerID == "" {
		writeGateError(w, http.StatusUnauthorized, "missing_controller", "X-Controller-Id header is required")
		return
	}

	var req gatehttp.TransferRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeGateError(w, http.StatusBadRequest, "invalid_json", "request body must be valid JSON")
		return
	}

	resp, _, err := s.gate.Handler.ForcedTransferHandler(r.Context(), controllerID, r.Header.Get("Idempotency-Key"), req)
	if err != nil {
		writeGateDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleBalances(w http.ResponseWriter, r *http.Request) {
	resp, err := s.gate.Handler.BalancesHandler(r.Context(), r.PathValue("wallet"))
	if err != nil {
		writeGateDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleSupply(w http.ResponseWriter, r *http.Request) {
	resp, err := s.gate.Handler.SupplyHandler(r.Context(), r.PathValue("partition"))
	if err != nil {
		writeGateDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func writeGateDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, gateerrors.ErrUnauthorizedCaller),
		errors.Is(err, registryerrors.ErrUnauthorizedCaller):
		writeGateError(w, http.StatusForbidden, "unauthorized_caller", err.Error())
	case errors.Is(err, gateerrors.ErrInsufficientBalance):
		writeGateError(w, http.StatusConflict, "insufficient_balance", err.Error())
	case errors.Is(err, gateerrors.ErrIdempotencyConflict):
		writeGateError(w, http.StatusConflict, "idempotency_conflict", err.Error())
	case errors.Is(err, gateerrors.ErrIdempotencyKeyMissing):
		writeGateError(w, http.StatusBadRequest, "idempotency_key_required", err.Error())
	case errors.Is(err, gateerrors.ErrInvalidAmount),
		errors.Is(err, gateerrors.ErrInvalidPartition),
		errors.Is(err, gateerrors.ErrZeroWalletAddress):
		writeGateError(w, http.StatusBadRequest, "invalid_request", err.Error())
	default:
		writeGateError(w, http.StatusInternalServerError, "internal_error", "internal server error")
	}
}

func writeGateError(w http.ResponseWriter, status int, code string, message string) {
	writeJSON(w, status, gatehttp.ErrorResponse{
		Code:    code,
		Message: message,
	})
}

func resolveControllerID(r *http.Request) string {
	return strings.TrimSpace(r.Header.Get("X-Controller-Id"))
}
