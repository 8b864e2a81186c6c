package workers

import (
	"context"
	"errors"
	"testing"

	"meridian/contexts/payout-core/distribution-engine/adapters/memory"
	"meridian/contexts/payout-core/distribution-engine/application/commands"
	"meridian/contexts/payout-core/distribution-engine/domain/entities"

	"github.com/shopspring/decimal"
)

type staticHolders struct {
	supply  decimal.Decimal
	holders []entities.HolderBalance
}

func (s staticHolders) SnapshotView(_ context.Context) (decimal.Decimal, []entities.HolderBalance, error) {
	return s.supply, s.holders, nil
}

type haltingRepository struct {
	*memory.Store
	failOnCommit int
	commits      int
}

func (r *haltingRepository) CommitBatch(ctx context.Context, cycle entities.Cycle, records []entities.PayoutRecord) error {
	r.commits++
	if r.failOnCommit > 0 && r.commits == r.failOnCommit {
		return errors.New("storage unavailable")
	}
	return r.Store.CommitBatch(ctx, cycle, records)
}

func newRunnerFixture(t *testing.T) (commands.UseCase, *haltingRepository, *memory.Store) {
	t.Helper()
	store := memory.NewStore()
	repo := &haltingRepository{Store: store}
	rate, err := decimal.NewFromString("0.06")
	if err != nil {
		t.Fatalf("bad rate: %v", err)
	}
	uc := commands.UseCase{
		Repository: repo,
		Holders: staticHolders{
			supply: decimal.NewFromInt(1_000_000),
			holders: []entities.HolderBalance{
				{Wallet: "wallet-a", Balance: decimal.NewFromInt(600_000)},
				{Wallet: "wallet-b", Balance: decimal.NewFromInt(300_000)},
				{Wallet: "wallet-c", Balance: decimal.NewFromInt(100_000)},
			},
		},
		Outbox:     store,
		Clock:      store,
		IDGen:      store,
		PayoutRate: rate,
		BatchSize:  1,
	}
	return uc, repo, store
}

func TestDistributionRunnerResumesPartialCycle(t *testing.T) {
	uc, repo, store := newRunnerFixture(t)
	ctx := context.Background()

	_, snapshot, err := uc.TakeSnapshot(ctx, commands.TakeSnapshotCommand{})
	if err != nil {
		t.Fatalf("snapshot failed: %v", err)
	}
	if _, err := uc.Fund(ctx, commands.FundCommand{SnapshotID: snapshot.SnapshotID, Amount: decimal.NewFromInt(60_000)}); err != nil {
		t.Fatalf("fund failed: %v", err)
	}

	repo.failOnCommit = 2
	if _, err := uc.Distribute(ctx, commands.DistributeCommand{SnapshotID: snapshot.SnapshotID}); err == nil {
		t.Fatalf("expected distribute to surface the batch commit failure")
	}
	repo.failOnCommit = 0

	runner := DistributionRunner{Commands: uc, Repository: store}
	if err := runner.RunOnce(ctx); err != nil {
		t.Fatalf("runner failed: %v", err)
	}

	cycle, err := store.GetCycle(ctx, snapshot.SnapshotID)
	if err != nil {
		t.Fatalf("cycle read failed: %v", err)
	}
	if cycle.State != entities.StateDistributed {
		t.Fatalf("expected DISTRIBUTED after resume, got %s", cycle.State)
	}
	if !cycle.TotalPaid.Equal(decimal.NewFromInt(60_000)) || !cycle.Residual.IsZero() {
		t.Fatalf("expected paid 60000 residual 0, got paid %s residual %s", cycle.TotalPaid, cycle.Residual)
	}
	records, _ := store.PayoutRecords(ctx, snapshot.SnapshotID)
	if len(records) != 3 {
		t.Fatalf("resume must not double-pay, got %d records", len(records))
	}
}

func TestDistributionRunnerLeavesUnstartedCycleAlone(t *testing.T) {
	uc, _, store := newRunnerFixture(t)
	ctx := context.Background()

	_, snapshot, err := uc.TakeSnapshot(ctx, commands.TakeSnapshotCommand{})
	if err != nil {
		t.Fatalf("snapshot failed: %v", err)
	}
	if _, err := uc.Fund(ctx, commands.FundCommand{SnapshotID: snapshot.SnapshotID, Amount: decimal.NewFromInt(60_000)}); err != nil {
		t.Fatalf("fund failed: %v", err)
	}

	runner := DistributionRunner{Commands: uc, Repository: store}
	if err := runner.RunOnce(ctx); err != nil {
		t.Fatalf("runner failed: %v", err)
	}

	cycle, err := store.GetCycle(ctx, snapshot.SnapshotID)
	if err != nil {
		t.Fatalf("cycle read failed: %v", err)
	}
	if cycle.State != entities.StateFunding || cycle.Cursor != 0 {
		t.Fatalf("runner must not start an operator-owned distribution: %+v", cycle)
	}
	if records, _ := store.PayoutRecords(ctx, snapshot.SnapshotID); len(records) != 0 {
		t.Fatalf("runner must write nothing for an unstarted cycle, got %d records", len(records))
	}
}

func TestDistributionRunnerNoopWithoutCycles(t *testing.T) {
	_, _, store := newRunnerFixture(t)
	runner := DistributionRunner{Commands: commands.UseCase{Repository: store}, Repository: store}
	if err := runner.RunOnce(context.Background()); err != nil {
		t.Fatalf("runner over empty store failed: %v", err)
	}
}
