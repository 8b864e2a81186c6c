package claimsregistry

import (
	"log/slog"
	"sync"

	httpadapter "meridian/contexts/compliance-core/claims-registry/adapters/http"
	"meridian/contexts/compliance-core/claims-registry/adapters/memory"
	"meridian/contexts/compliance-core/claims-registry/application/commands"
	"meridian/contexts/compliance-core/claims-registry/application/queries"
	"meridian/contexts/compliance-core/claims-registry/domain/entities"
	"meridian/contexts/compliance-core/claims-registry/ports"
)

type Module struct {
	Handler httpadapter.Handler
	Store   *memory.Store
}

type Dependencies struct {
	Repository ports.Repository
	Outbox     ports.OutboxWriter
	Clock      ports.Clock
	IDGen      ports.IDGenerator
	Authority  ports.Authority
	Guard      *sync.RWMutex
	Logger     *slog.Logger
}

func NewModule(deps Dependencies) Module {
	commandUseCase := commands.UseCase{
		Repository: deps.Repository,
		Outbox:     deps.Outbox,
		Clock:      deps.Clock,
		IDGen:      deps.IDGen,
		Authority:  deps.Authority,
		Guard:      deps.Guard,
		Logger:     deps.Logger,
	}
	queryUseCase := queries.UseCase{
		Repository: deps.Repository,
		Clock:      deps.Clock,
	}
	return Module{
		Handler: httpadapter.Handler{
			Commands: commandUseCase,
			Queries:  queryUseCase,
			Logger:   deps.Logger,
		},
	}
}

func NewInMemoryModule(seed []entities.ClaimsRecord, authority ports.Authority, guard *sync.RWMutex, logger *slog.Logger) Module {
	store := memory.NewStore(seed)
	if guard == nil {
		guard = &sync.RWMutex{}
	}
	module := NewModule(Dependencies{
		Repository: store,
		Outbox:     store,
		Clock:      store,
		IDGen:      store,
		Authority:  authority,
		Guard:      guard,
		Logger:     logger,
	})
	module.Store = store
	return module
}
