package httpserver

import (
	"encoding/json"
	"errors"
	"net/http"

	payouterrors "meridian/contexts/payout-core/distribution-engine/domain/errors"
	payouthttp "meridian/contexts/payout-core/distribution-engine/transport/http"
)

func (s *Server) handleTakeSnapshot(w http.ResponseWriter, r *http.Request) {
	req := payouthttp.TakeSnapshotRequest{}
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writePayoutError(w, http.StatusBadRequest, "invalid_json", "request body must be valid JSON")
			return
		}
	}

	resp, err := s.payouts.Handler.TakeSnapshotHandler(r.Context(), req)
	if err != nil {
		writePayoutDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleFund(w http.ResponseWriter, r *http.Request) {
	var req payouthttp.FundRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writePayoutError(w, http.StatusBadRequest, "invalid_json", "request body must be valid JSON")
		return
	}

	resp, err := s.payouts.Handler.FundHandler(r.Context(), r.PathValue("snapshot_id"), req)
	if err != nil {
		writePayoutDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleSetMode(w http.ResponseWriter, r *http.Request) {
	var req payouthttp.SetModeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writePayoutError(w, http.StatusBadRequest, "invalid_json", "request body must be valid JSON")
		return
	}

	resp, err := s.payouts.Handler.SetModeHandler(r.Context(), r.PathValue("snapshot_id"), req)
	if err != nil {
		writePayoutDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleDistribute(w http.ResponseWriter, r *http.Request) {
	resp, err := s.payouts.Handler.DistributeHandler(r.Context(), r.PathValue("snapshot_id"))
	if err != nil {
		writePayoutDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleRequiredAmount(w http.ResponseWriter, r *http.Request) {
	resp, err := s.payouts.Handler.RequiredAmountHandler(r.Context(), r.PathValue("snapshot_id"))
	if err != nil {
		writePayoutDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleCycleStatus(w http.ResponseWriter, r *http.Request) {
	resp, err := s.payouts.Handler.CycleStatusHandler(r.Context(), r.PathValue("snapshot_id"))
	if err != nil {
		writePayoutDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func writePayoutDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, payouterrors.ErrUnknownSnapshot):
		writePayoutError(w, http.StatusNotFound, "snapshot_not_found", err.Error())
	case errors.Is(err, payouterrors.ErrCycleInProgress):
		writePayoutError(w, http.StatusConflict, "cycle_in_progress", err.Error())
	case errors.Is(err, payouterrors.ErrCycleDistributed):
		writePayoutError(w, http.StatusConflict, "cycle_distributed", err.Error())
	case errors.Is(err, payouterrors.ErrCycleUnderfunded):
		writePayoutError(w, http.StatusConflict, "cycle_underfunded", err.Error())
	case errors.Is(err, payouterrors.ErrInvalidAmount),
		errors.Is(err, payouterrors.ErrInvalidMode),
		errors.Is(err, payouterrors.ErrEmptySnapshot):
		writePayoutError(w, http.StatusBadRequest, "invalid_request", err.Error())
	default:
		writePayoutError(w, http.StatusInternalServerError, "internal_error", "internal server error")
	}
}

func writePayoutError(w http.ResponseWriter, status int, code string, message string) {
	writeJSON(w, status, payouthttp.ErrorResponse{
		Code:    code,
		Message: message,
	})
}
