package distributionengine

import (
	"log/slog"
	"sync"

	httpadapter "meridian/contexts/payout-core/distribution-engine/adapters/http"
	"meridian/contexts/payout-core/distribution-engine/adapters/memory"
	"meridian/contexts/payout-core/distribution-engine/application/commands"
	"meridian/contexts/payout-core/distribution-engine/application/queries"
	"meridian/contexts/payout-core/distribution-engine/application/workers"
	"meridian/contexts/payout-core/distribution-engine/ports"

	"github.com/shopspring/decimal"
)

type Module struct {
	Handler httpadapter.Handler
	Runner  workers.DistributionRunner
	Store   *memory.Store
}

type Dependencies struct {
	Repository ports.Repository
	Holders    ports.HolderSource
	Outbox     ports.OutboxWriter
	Clock      ports.Clock
	IDGen      ports.IDGenerator
	PayoutRate decimal.Decimal
	BatchSize  int
	Guard      *sync.Mutex
	Logger     *slog.Logger
}

func NewModule(deps Dependencies) Module {
	commandUseCase := commands.UseCase{
		Repository: deps.Repository,
		Holders:    deps.Holders,
		Outbox:     deps.Outbox,
		Clock:      deps.Clock,
		IDGen:      deps.IDGen,
		PayoutRate: deps.PayoutRate,
		BatchSize:  deps.BatchSize,
		Guard:      deps.Guard,
		Logger:     deps.Logger,
	}
	queryUseCase := queries.UseCase{
		Repository: deps.Repository,
	}
	return Module{
		Handler: httpadapter.Handler{
			Commands: commandUseCase,
			Queries:  queryUseCase,
			Logger:   deps.Logger,
		},
		Runner: workers.DistributionRunner{
			Commands:   commandUseCase,
			Repository: deps.Repository,
			Logger:     deps.Logger,
		},
	}
}

func NewInMemoryModule(holders ports.HolderSource, payoutRate decimal.Decimal, logger *slog.Logger) Module {
	store := memory.NewStore()
	module := NewModule(Dependencies{
		Repository: store,
		Holders:    holders,
		Outbox:     store,
		Clock:      store,
		IDGen:      store,
		PayoutRate: payoutRate,
		Guard:      &sync.Mutex{},
		Logger:     logger,
	})
	module.Store = store
	return module
}
