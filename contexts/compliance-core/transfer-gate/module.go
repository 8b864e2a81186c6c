package transfergate

import (
	"log/slog"
	"sync"
	"time"

	httpadapter "meridian/contexts/compliance-core/transfer-gate/adapters/http"
	"meridian/contexts/compliance-core/transfer-gate/adapters/memory"
	"meridian/contexts/compliance-core/transfer-gate/application/commands"
	"meridian/contexts/compliance-core/transfer-gate/application/queries"
	"meridian/contexts/compliance-core/transfer-gate/ports"
)

type Module struct {
	Handler httpadapter.Handler
	Queries queries.UseCase
	Store   *memory.Store
}

type Dependencies struct {
	Ledger         ports.LedgerRepository
	Compliance     ports.ComplianceChecker
	Idempotency    ports.IdempotencyStore
	Outbox         ports.OutboxWriter
	Clock          ports.Clock
	IDGen          ports.IDGenerator
	Authority      ports.Authority
	IdempotencyTTL time.Duration
	Guard          *sync.RWMutex
	Logger         *slog.Logger
}

func NewModule(deps Dependencies) Module {
	commandUseCase := commands.UseCase{
		Ledger:         deps.Ledger,
		Compliance:     deps.Compliance,
		Idempotency:    deps.Idempotency,
		Outbox:         deps.Outbox,
		Clock:          deps.Clock,
		IDGen:          deps.IDGen,
		Authority:      deps.Authority,
		IdempotencyTTL: deps.IdempotencyTTL,
		Guard:          deps.Guard,
		Logger:         deps.Logger,
	}
	queryUseCase := queries.UseCase{
		Ledger: deps.Ledger,
	}
	return Module{
		Handler: httpadapter.Handler{
			Commands: commandUseCase,
			Queries:  queryUseCase,
			Logger:   deps.Logger,
		},
		Queries: queryUseCase,
	}
}

// NewInMemoryModule wires the gate against the in-memory ledger. The guard
// must be the same mutex handed to the claims-registry module so admission
// checks and claims mutations serialize against each other.
func NewInMemoryModule(
	compliance ports.ComplianceChecker,
	authority ports.Authority,
	guard *sync.RWMutex,
	logger *slog.Logger,
) Module {
	store := memory.NewStore()
	if guard == nil {
		guard = &sync.RWMutex{}
	}
	module := NewModule(Dependencies{
		Ledger:      store,
		Compliance:  compliance,
		Idempotency: store,
		Outbox:      store,
		Clock:       store,
		IDGen:       store,
		Authority:   authority,
		Guard:       guard,
		Logger:      logger,
	})
	module.Store = store
	return module
}
