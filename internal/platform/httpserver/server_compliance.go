package httpserver

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	registryerrors "meridian/contexts/compliance-core/claims-registry/domain/errors"
	registryhttp "meridian/contexts/compliance-core/claims-registry/transport/http"
)

func (s *Server) handleSetClaims(w http.ResponseWriter, r *http.Request) {
	oracleID := resolveOracleID(r)
	if oracleID == "" {
		writeRegistryError(w, http.StatusUnauthorized, "missing_oracle", "X-Oracle-Id header is required")
		return
	}

	var req registryhttp.SetClaimsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeRegistryError(w, http.StatusBadRequest, "invalid_json", "request body must be valid JSON")
		return
	}

	resp, err := s.registry.Handler.SetClaimsHandler(r.Context(), oracleID, r.PathValue("wallet"), req)
	if err != nil {
		writeRegistryDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleRevoke(w http.ResponseWriter, r *http.Request) {
	oracleID := resolveOracleID(r)
	if oracleID == "" {
		writeRegistryError(w, http.StatusUnauthorized, "missing_oracle", "X-Oracle-Id header is required")
		return
	}

	resp, err := s.registry.Handler.RevokeHandler(r.Context(), oracleID, r.PathValue("wallet"))
	if err != nil {
		writeRegistryDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleWhitelist(w http.ResponseWriter, r *http.Request) {
	oracleID := resolveOracleID(r)
	if oracleID == "" {
		writeRegistryError(w, http.StatusUnauthorized, "missing_oracle", "X-Oracle-Id header is required")
		return
	}

	resp, err := s.registry.Handler.WhitelistHandler(r.Context(), oracleID, r.PathValue("wallet"))
	if err != nil {
		writeRegistryDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleWalletStatus(w http.ResponseWriter, r *http.Request) {
	resp, err := s.registry.Handler.WalletStatusHandler(r.Context(), r.PathValue("wallet"))
	if err != nil {
		writeRegistryDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handlePreflight(w http.ResponseWriter, r *http.Request) {
	var req registryhttp.PreflightRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeRegistryError(w, http.StatusBadRequest, "invalid_json", "request body must be valid JSON")
		return
	}

	resp, err := s.registry.Handler.PreflightHandler(r.Context(), req)
	if err != nil {
		writeRegistryDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func writeRegistryDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, registryerrors.ErrUnauthorizedCaller):
		writeRegistryError(w, http.StatusForbidden, "unauthorized_caller", err.Error())
	case errors.Is(err, registryerrors.ErrWalletNotFound):
		writeRegistryError(w, http.StatusNotFound, "wallet_not_found", err.Error())
	case errors.Is(err, registryerrors.ErrClaimsRequired):
		writeRegistryError(w, http.StatusConflict, "claims_required", err.Error())
	case errors.Is(err, registryerrors.ErrZeroWalletAddress),
		errors.Is(err, registryerrors.ErrMissingCountryCode),
		errors.Is(err, registryerrors.ErrInvalidCountryCode),
		errors.Is(err, registryerrors.ErrLockupInPast),
		errors.Is(err, registryerrors.ErrExpiryInPast),
		errors.Is(err, registryerrors.ErrInvalidPartition):
		writeRegistryError(w, http.StatusBadRequest, "invalid_request", err.Error())
	default:
		writeRegistryError(w, http.StatusInternalServerError, "internal_error", "internal server error")
	}
}

func writeRegistryError(w http.ResponseWriter, status int, code string, message string) {
	writeJSON(w, status, registryhttp.ErrorResponse{
		Code:    code,
		Message: message,
	})
}

func resolveOracleID(r *http.Request) string {
	return strings.TrimSpace(r.Header.Get("X-Oracle-Id"))
}
