package bootstrap

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	claimsregistry "meridian/contexts/compliance-core/claims-registry"
	registrypostgres "meridian/contexts/compliance-core/claims-registry/adapters/postgres"
	registryqueries "meridian/contexts/compliance-core/claims-registry/application/queries"
	registryworkers "meridian/contexts/compliance-core/claims-registry/application/workers"
	registryports "meridian/contexts/compliance-core/claims-registry/ports"
	transfergate "meridian/contexts/compliance-core/transfer-gate"
	gatepostgres "meridian/contexts/compliance-core/transfer-gate/adapters/postgres"
	gateworkers "meridian/contexts/compliance-core/transfer-gate/application/workers"
	distributionengine "meridian/contexts/payout-core/distribution-engine"
	payoutpostgres "meridian/contexts/payout-core/distribution-engine/adapters/postgres"
	payoutworkers "meridian/contexts/payout-core/distribution-engine/application/workers"
	"meridian/internal/platform/config"
	"meridian/internal/platform/db"
	"meridian/internal/platform/httpserver"
	"meridian/internal/platform/messaging"
)

// Package bootstrap is the composition root.
// Keep construction/wiring here so module code stays framework-agnostic.

type APIApp struct {
	server   *httpserver.Server
	postgres *db.Postgres
	logger   *slog.Logger
}

type WorkerApp struct {
	postgres           *db.Postgres
	claimsRelay        registryworkers.OutboxRelay
	ledgerRelay        gateworkers.OutboxRelay
	payoutRelay        payoutworkers.OutboxRelay
	expiryAuditor      *registryworkers.ClaimsExpiryAuditor
	distributionRunner payoutworkers.DistributionRunner
	enableExpiry       bool
	enableRunner       bool
	enableRelay        bool
	pollInterval       time.Duration
	logger             *slog.Logger
}

type wiring struct {
	registry claimsregistry.Module
	gate     transfergate.Module
	payouts  distributionengine.Module

	registryRepo *registrypostgres.Repository
	gateRepo     *gatepostgres.Repository
	payoutRepo   *payoutpostgres.Repository
}

func buildModules(cfg config.Config, pg *db.Postgres, logger *slog.Logger) wiring {
	authority := registryports.Authority{
		OracleID:     cfg.OracleID,
		ControllerID: cfg.ControllerID,
	}
	// One guard across registry and gate: admission checks run against a
	// claims view no concurrent revoke can be mutating.
	guard := &sync.RWMutex{}

	registryRepo := registrypostgres.NewRepository(pg.DB, logger)
	registryModule := claimsregistry.NewModule(claimsregistry.Dependencies{
		Repository: registryRepo,
		Outbox:     registryRepo,
		Clock:      registrypostgres.SystemClock{},
		IDGen:      registrypostgres.UUIDGenerator{},
		Authority:  authority,
		Guard:      guard,
		Logger:     logger,
	})
	compliance := registryqueries.UseCase{
		Repository: registryRepo,
		Clock:      registrypostgres.SystemClock{},
	}

	gateRepo := gatepostgres.NewRepository(pg.DB, logger)
	gateModule := transfergate.NewModule(transfergate.Dependencies{
		Ledger:         gateRepo,
		Compliance:     compliance,
		Idempotency:    gateRepo,
		Outbox:         gateRepo,
		Clock:          gatepostgres.SystemClock{},
		IDGen:          gatepostgres.UUIDGenerator{},
		Authority:      authority,
		IdempotencyTTL: 7 * 24 * time.Hour,
		Guard:          guard,
		Logger:         logger,
	})

	payoutRepo := payoutpostgres.NewRepository(pg.DB, logger)
	payoutModule := distributionengine.NewModule(distributionengine.Dependencies{
		Repository: payoutRepo,
		Holders:    gateModule.Queries,
		Outbox:     payoutRepo,
		Clock:      payoutpostgres.SystemClock{},
		IDGen:      payoutpostgres.UUIDGenerator{},
		PayoutRate: cfg.PayoutRate,
		BatchSize:  cfg.DistributionBatchSize,
		Guard:      &sync.Mutex{},
		Logger:     logger,
	})

	return wiring{
		registry:     registryModule,
		gate:         gateModule,
		payouts:      payoutModule,
		registryRepo: registryRepo,
		gateRepo:     gateRepo,
		payoutRepo:   payoutRepo,
	}
}

func BuildAPI() (*APIApp, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	logger := slog.Default().With("service", cfg.ServiceName, "process", "api")
	if strings.TrimSpace(cfg.PostgresDSN) == "" {
		return nil, errors.New("POSTGRES_DSN is required")
	}

	pg, err := db.Connect(cfg.PostgresDSN, poolFromConfig(cfg))
	if err != nil {
		return nil, err
	}

	w := buildModules(cfg, pg, logger)
	server := httpserver.New(w.registry, w.gate, w.payouts, logger, normalizeAddr(cfg.HTTPPort))
	return &APIApp{
		server:   server,
		postgres: pg,
		logger:   logger,
	}, nil
}

func BuildWorker() (*WorkerApp, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	logger := slog.Default().With("service", cfg.ServiceName, "process", "worker")
	if strings.TrimSpace(cfg.PostgresDSN) == "" {
		return nil, errors.New("POSTGRES_DSN is required")
	}

	pg, err := db.Connect(cfg.PostgresDSN, poolFromConfig(cfg))
	if err != nil {
		return nil, err
	}

	kafka, err := messaging.NewKafka(cfg.KafkaBrokers, logger)
	if err != nil {
		return nil, err
	}

	w := buildModules(cfg, pg, logger)
	return &WorkerApp{
		postgres: pg,
		claimsRelay: registryworkers.OutboxRelay{
			Outbox:    w.registryRepo,
			Publisher: kafka,
			Clock:     registrypostgres.SystemClock{},
			BatchSize: cfg.OutboxBatchSize,
			Logger:    logger,
		},
		ledgerRelay: gateworkers.OutboxRelay{
			Outbox:    w.gateRepo,
			Publisher: kafka,
			Clock:     gatepostgres.SystemClock{},
			BatchSize: cfg.OutboxBatchSize,
			Logger:    logger,
		},
		payoutRelay: payoutworkers.OutboxRelay{
			Outbox:    w.payoutRepo,
			Publisher: kafka,
			Clock:     payoutpostgres.SystemClock{},
			BatchSize: cfg.OutboxBatchSize,
			Logger:    logger,
		},
		expiryAuditor: &registryworkers.ClaimsExpiryAuditor{
			Repository: w.registryRepo,
			Outbox:     w.registryRepo,
			Clock:      registrypostgres.SystemClock{},
			IDGen:      registrypostgres.UUIDGenerator{},
			BatchSize:  cfg.OutboxBatchSize,
			Logger:     logger,
		},
		distributionRunner: w.payouts.Runner,
		enableExpiry:       cfg.EnableExpiryAuditor,
		enableRunner:       cfg.EnableDistributionRunner,
		enableRelay:        cfg.EnableOutboxRelay,
		pollInterval:       2 * time.Second,
		logger:             logger,
	}, nil
}

func (a *APIApp) Run(_ context.Context) error {
	if a.logger != nil {
		a.logger.Info("api app started",
			"event", "bootstrap_api_started",
			"module", "internal/app/bootstrap",
			"layer", "platform",
		)
	}
	return a.server.Start()
}

func (a *APIApp) Close() error {
	if a.postgres != nil {
		return a.postgres.Close()
	}
	return nil
}

func (w *WorkerApp) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()

	w.logger.Info("worker app started",
		"event", "bootstrap_worker_started",
		"module", "internal/app/bootstrap",
		"layer", "platform",
		"poll_interval", w.pollInterval.String(),
	)

	for {
		if w.enableExpiry {
			if err := w.expiryAuditor.RunOnce(ctx); err != nil {
				return err
			}
		}
		if w.enableRunner {
			if err := w.distributionRunner.RunOnce(ctx); err != nil {
				return err
			}
		}
		if w.enableRelay {
			if err := w.claimsRelay.RunOnce(ctx); err != nil {
				return err
			}
			if err := w.ledgerRelay.RunOnce(ctx); err != nil {
				return err
			}
			if err := w.payoutRelay.RunOnce(ctx); err != nil {
				return err
			}
		}
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

func (w *WorkerApp) Close() error {
	if w.postgres != nil {
		return w.postgres.Close()
	}
	return nil
}

func poolFromConfig(cfg config.Config) db.Pool {
	return db.Pool{
		MaxOpenConns:    cfg.DBMaxOpenConns,
		MaxIdleConns:    cfg.DBMaxIdleConns,
		ConnMaxLifetime: cfg.DBConnMaxLifetime,
	}
}

func normalizeAddr(port string) string {
	value := strings.TrimSpace(port)
	if value == "" {
		return ":8080"
	}
	if strings.HasPrefix(value, ":") {
		return value
	}
	return ":" + value
}
