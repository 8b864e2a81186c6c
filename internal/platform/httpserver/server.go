package httpserver

import (
	"encoding/json"
	"log/slog"
	"net/http"

	claimsregistry "meridian/contexts/compliance-core/claims-registry"
	transfergate "meridian/contexts/compliance-core/transfer-gate"
	distributionengine "meridian/contexts/payout-core/distribution-engine"

	httpSwagger "github.com/swaggo/http-swagger"
	_ "meridian/internal/platform/httpserver/docs"
)

type Server struct {
	mux      *http.ServeMux
	logger   *slog.Logger
	addr     string
	registry claimsregistry.Module
	gate     transfergate.Module
	payouts  distributionengine.Module
}

func New(
	registry claimsregistry.Module,
	gate transfergate.Module,
	payouts distributionengine.Module,
	logger *slog.Logger,
	addr string,
) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	if addr == "" {
		addr = ":8080"
	}

	s := &Server{
		mux:      http.NewServeMux(),
		logger:   logger,
		addr:     addr,
		registry: registry,
		gate:     gate,
		payouts:  payouts,
	}
	s.registerRoutes()
	return s
}

func (s *Server) Start() error {
	s.logger.Info("http server starting",
		"event", "http_server_starting",
		"module", "internal/platform/httpserver",
		"layer", "platform",
		"addr", s.addr,
	)
	return http.ListenAndServe(s.addr, s.mux)
}

func (s *Server) registerRoutes() {
	s.mux.Handle("/swagger/", httpSwagger.Handler(
		httpSwagger.URL("/swagger/doc.json"),
	))

	s.mux.HandleFunc("POST /api/compliance/v1/wallets/{wallet}/claims", s.handleSetClaims)
	s.mux.HandleFunc("POST /api/compliance/v1/wallets/{wallet}/revoke", s.handleRevoke)
	s.mux.HandleFunc("POST /api/compliance/v1/wallets/{wallet}/whitelist", s.handleWhitelist)
	s.mux.HandleFunc("GET /api/compliance/v1/wallets/{wallet}/status", s.handleWalletStatus)
	s.mux.HandleFunc("POST /api/compliance/v1/transfers/preflight", s.handlePreflight)

	s.mux.HandleFunc("POST /api/token/v1/mint", s.handleMint)
	s.mux.HandleFunc("POST /api/token/v1/burn", s.handleBurn)
	s.mux.HandleFunc("POST /api/token/v1/transfer", s.handleTransfer)
	s.mux.HandleFunc("POST /api/token/v1/transfers/forced", s.handleForcedTransfer)
	s.mux.HandleFunc("GET /api/token/v1/wallets/{wallet}/balances", s.handleBalances)
	s.mux.HandleFunc("GET /api/token/v1/partitions/{partition}/supply", s.handleSupply)

	s.mux.HandleFunc("POST /api/payouts/v1/snapshots", s.handleTakeSnapshot)
	s.mux.HandleFunc("POST /api/payouts/v1/snapshots/{snapshot_id}/fund", s.handleFund)
	s.mux.HandleFunc("POST /api/payouts/v1/snapshots/{snapshot_id}/mode", s.handleSetMode)
	s.mux.HandleFunc("POST /api/payouts/v1/snapshots/{snapshot_id}/distribute", s.handleDistribute)
	s.mux.HandleFunc("GET /api/payouts/v1/snapshots/{snapshot_id}", s.handleCycleStatus)
	s.mux.HandleFunc("GET /api/payouts/v1/snapshots/{snapshot_id}/required", s.handleRequiredAmount)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
