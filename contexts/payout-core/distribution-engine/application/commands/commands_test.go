package commands

import (
	"context"
	"errors"
	"testing"

	"meridian/contexts/payout-core/distribution-engine/adapters/memory"
	"meridian/contexts/payout-core/distribution-engine/domain/entities"
	domainerrors "meridian/contexts/payout-core/distribution-engine/domain/errors"

	"github.com/shopspring/decimal"
)

type staticHolders struct {
	supply  decimal.Decimal
	holders []entities.HolderBalance
}

func (s staticHolders) SnapshotView(_ context.Context) (decimal.Decimal, []entities.HolderBalance, error) {
	return s.supply, s.holders, nil
}

func threeHolderSource() staticHolders {
	return staticHolders{
		supply: decimal.NewFromInt(1_000_000),
		holders: []entities.HolderBalance{
			{Wallet: "wallet-a", Balance: decimal.NewFromInt(600_000)},
			{Wallet: "wallet-b", Balance: decimal.NewFromInt(300_000)},
			{Wallet: "wallet-c", Balance: decimal.NewFromInt(100_000)},
		},
	}
}

func newPayoutUseCase(t *testing.T, holders staticHolders) (UseCase, *memory.Store) {
	t.Helper()
	store := memory.NewStore()
	rate, err := decimal.NewFromString("0.06")
	if err != nil {
		t.Fatalf("bad rate: %v", err)
	}
	return UseCase{
		Repository: store,
		Holders:    holders,
		Outbox:     store,
		Clock:      store,
		IDGen:      store,
		PayoutRate: rate,
	}, store
}

func fundAmount(value int64) decimal.Decimal {
	return decimal.NewFromInt(value)
}

func TestTakeSnapshotOpensCycle(t *testing.T) {
	uc, store := newPayoutUseCase(t, threeHolderSource())
	ctx := context.Background()

	cycle, snapshot, err := uc.TakeSnapshot(ctx, TakeSnapshotCommand{})
	if err != nil {
		t.Fatalf("snapshot failed: %v", err)
	}
	if snapshot.SnapshotID != "snap-1" {
		t.Fatalf("expected snap-1, got %s", snapshot.SnapshotID)
	}
	if len(snapshot.Holders) != 3 {
		t.Fatalf("expected 3 holders, got %d", len(snapshot.Holders))
	}
	if cycle.State != entities.StateSnapshotted {
		t.Fatalf("expected SNAPSHOTTED, got %s", cycle.State)
	}
	if cycle.Mode != entities.ModeFull {
		t.Fatalf("new cycles default to FULL, got %s", cycle.Mode)
	}
	if !cycle.RequiredAmount.Equal(fundAmount(60_000)) {
		t.Fatalf("expected required 60000 at 6%%, got %s", cycle.RequiredAmount)
	}

	events := store.Events()
	if len(events) != 1 || events[0].EventType != "payout.snapshot_taken" {
		t.Fatalf("expected one payout.snapshot_taken event, got %+v", events)
	}
}

func TestTakeSnapshotRejectedWhileCycleUnfinished(t *testing.T) {
	uc, _ := newPayoutUseCase(t, threeHolderSource())
	ctx := context.Background()

	if _, _, err := uc.TakeSnapshot(ctx, TakeSnapshotCommand{}); err != nil {
		t.Fatalf("snapshot failed: %v", err)
	}
	_, _, err := uc.TakeSnapshot(ctx, TakeSnapshotCommand{})
	if !errors.Is(err, domainerrors.ErrCycleInProgress) {
		t.Fatalf("expected ErrCycleInProgress, got %v", err)
	}
}

func TestTakeSnapshotRequiredOverride(t *testing.T) {
	uc, _ := newPayoutUseCase(t, threeHolderSource())
	ctx := context.Background()

	override := fundAmount(45_000)
	cycle, _, err := uc.TakeSnapshot(ctx, TakeSnapshotCommand{RequiredOverride: &override})
	if err != nil {
		t.Fatalf("snapshot failed: %v", err)
	}
	if !cycle.RequiredAmount.Equal(override) {
		t.Fatalf("override not applied, got %s", cycle.RequiredAmount)
	}
}

func TestTakeSnapshotRejectsBadOverride(t *testing.T) {
	uc, _ := newPayoutUseCase(t, threeHolderSource())

	bad, _ := decimal.NewFromString("100.5")
	_, _, err := uc.TakeSnapshot(context.Background(), TakeSnapshotCommand{RequiredOverride: &bad})
	if !errors.Is(err, domainerrors.ErrInvalidAmount) {
		t.Fatalf("expected ErrInvalidAmount, got %v", err)
	}
}

func TestFundAccumulates(t *testing.T) {
	uc, store := newPayoutUseCase(t, threeHolderSource())
	ctx := context.Background()

	_, snapshot, err := uc.TakeSnapshot(ctx, TakeSnapshotCommand{})
	if err != nil {
		t.Fatalf("snapshot failed: %v", err)
	}

	if _, err := uc.Fund(ctx, FundCommand{SnapshotID: snapshot.SnapshotID, Amount: fundAmount(20_000)}); err != nil {
		t.Fatalf("fund failed: %v", err)
	}
	cycle, err := uc.Fund(ctx, FundCommand{SnapshotID: snapshot.SnapshotID, Amount: fundAmount(10_000)})
	if err != nil {
		t.Fatalf("fund failed: %v", err)
	}
	if !cycle.FundedAmount.Equal(fundAmount(30_000)) {
		t.Fatalf("expected funded 30000, got %s", cycle.FundedAmount)
	}
	if cycle.State != entities.StateFunding {
		t.Fatalf("expected FUNDING, got %s", cycle.State)
	}

	var funded int
	for _, event := range store.Events() {
		if event.EventType == "payout.cycle_funded" {
			funded++
		}
	}
	if funded != 2 {
		t.Fatalf("expected two payout.cycle_funded events, got %d", funded)
	}
}

func TestFundValidation(t *testing.T) {
	uc, _ := newPayoutUseCase(t, threeHolderSource())
	ctx := context.Background()

	_, snapshot, err := uc.TakeSnapshot(ctx, TakeSnapshotCommand{})
	if err != nil {
		t.Fatalf("snapshot failed: %v", err)
	}

	fractional, _ := decimal.NewFromString("10.5")
	for _, bad := range []decimal.Decimal{decimal.Zero, fundAmount(-100), fractional} {
		_, err := uc.Fund(ctx, FundCommand{SnapshotID: snapshot.SnapshotID, Amount: bad})
		if !errors.Is(err, domainerrors.ErrInvalidAmount) {
			t.Fatalf("amount %s: expected ErrInvalidAmount, got %v", bad, err)
		}
	}

	_, err = uc.Fund(ctx, FundCommand{SnapshotID: "snap-99", Amount: fundAmount(100)})
	if !errors.Is(err, domainerrors.ErrUnknownSnapshot) {
		t.Fatalf("expected ErrUnknownSnapshot, got %v", err)
	}
}

func TestSetModeRejectsUnknownMode(t *testing.T) {
	uc, _ := newPayoutUseCase(t, threeHolderSource())
	ctx := context.Background()

	_, snapshot, err := uc.TakeSnapshot(ctx, TakeSnapshotCommand{})
	if err != nil {
		t.Fatalf("snapshot failed: %v", err)
	}
	_, err = uc.SetMode(ctx, SetModeCommand{SnapshotID: snapshot.SnapshotID, Mode: entities.Mode("HALF")})
	if !errors.Is(err, domainerrors.ErrInvalidMode) {
		t.Fatalf("expected ErrInvalidMode, got %v", err)
	}
}

func TestDistributeFullMode(t *testing.T) {
	uc, store := newPayoutUseCase(t, threeHolderSource())
	ctx := context.Background()

	_, snapshot, err := uc.TakeSnapshot(ctx, TakeSnapshotCommand{})
	if err != nil {
		t.Fatalf("snapshot failed: %v", err)
	}
	if _, err := uc.Fund(ctx, FundCommand{SnapshotID: snapshot.SnapshotID, Amount: fundAmount(60_000)}); err != nil {
		t.Fatalf("fund failed: %v", err)
	}

	result, err := uc.Distribute(ctx, DistributeCommand{SnapshotID: snapshot.SnapshotID})
	if err != nil {
		t.Fatalf("distribute failed: %v", err)
	}
	if result.AlreadyDistributed {
		t.Fatalf("first distribution must not report already-distributed")
	}
	if !result.TotalPaid.Equal(fundAmount(60_000)) || !result.Residual.IsZero() {
		t.Fatalf("expected paid 60000 residual 0, got paid %s residual %s", result.TotalPaid, result.Residual)
	}

	records, err := store.PayoutRecords(ctx, snapshot.SnapshotID)
	if err != nil {
		t.Fatalf("records read failed: %v", err)
	}
	expected := map[string]int64{"wallet-a": 36_000, "wallet-b": 18_000, "wallet-c": 6_000}
	if len(records) != len(expected) {
		t.Fatalf("expected %d records, got %d", len(expected), len(records))
	}
	for _, record := range records {
		if !record.Amount.Equal(fundAmount(expected[record.Wallet])) {
			t.Fatalf("%s: expected %d, got %s", record.Wallet, expected[record.Wallet], record.Amount)
		}
		if record.Status != entities.PayoutStatusPaid {
			t.Fatalf("%s: expected paid status", record.Wallet)
		}
	}

	cycle, err := store.GetCycle(ctx, snapshot.SnapshotID)
	if err != nil {
		t.Fatalf("cycle read failed: %v", err)
	}
	if cycle.State != entities.StateDistributed {
		t.Fatalf("expected DISTRIBUTED, got %s", cycle.State)
	}
	if !cycle.TotalPaid.Add(cycle.Residual).Equal(cycle.FundedAmount) {
		t.Fatalf("paid %s + residual %s must equal funded %s", cycle.TotalPaid, cycle.Residual, cycle.FundedAmount)
	}
}

func TestDistributeFullModeUnderfunded(t *testing.T) {
	uc, store := newPayoutUseCase(t, threeHolderSource())
	ctx := context.Background()

	_, snapshot, err := uc.TakeSnapshot(ctx, TakeSnapshotCommand{})
	if err != nil {
		t.Fatalf("snapshot failed: %v", err)
	}
	if _, err := uc.Fund(ctx, FundCommand{SnapshotID: snapshot.SnapshotID, Amount: fundAmount(59_999)}); err != nil {
		t.Fatalf("fund failed: %v", err)
	}

	_, err = uc.Distribute(ctx, DistributeCommand{SnapshotID: snapshot.SnapshotID})
	if !errors.Is(err, domainerrors.ErrCycleUnderfunded) {
		t.Fatalf("expected ErrCycleUnderfunded, got %v", err)
	}

	cycle, err := store.GetCycle(ctx, snapshot.SnapshotID)
	if err != nil {
		t.Fatalf("cycle read failed: %v", err)
	}
	if cycle.State != entities.StateFunding || cycle.Cursor != 0 || !cycle.TotalPaid.IsZero() {
		t.Fatalf("underfunded distribute must leave the cycle untouched: %+v", cycle)
	}
	records, _ := store.PayoutRecords(ctx, snapshot.SnapshotID)
	if len(records) != 0 {
		t.Fatalf("underfunded distribute must write no records")
	}
}

func TestDistributeProRataMode(t *testing.T) {
	uc, store := newPayoutUseCase(t, threeHolderSource())
	ctx := context.Background()

	_, snapshot, err := uc.TakeSnapshot(ctx, TakeSnapshotCommand{})
	if err != nil {
		t.Fatalf("snapshot failed: %v", err)
	}
	if _, err := uc.Fund(ctx, FundCommand{SnapshotID: snapshot.SnapshotID, Amount: fundAmount(30_000)}); err != nil {
		t.Fatalf("fund failed: %v", err)
	}
	if _, err := uc.SetMode(ctx, SetModeCommand{SnapshotID: snapshot.SnapshotID, Mode: entities.ModeProRata}); err != nil {
		t.Fatalf("set mode failed: %v", err)
	}

	result, err := uc.Distribute(ctx, DistributeCommand{SnapshotID: snapshot.SnapshotID})
	if err != nil {
		t.Fatalf("distribute failed: %v", err)
	}
	if !result.TotalPaid.Equal(fundAmount(30_000)) || !result.Residual.IsZero() {
		t.Fatalf("expected paid 30000 residual 0, got paid %s residual %s", result.TotalPaid, result.Residual)
	}

	records, _ := store.PayoutRecords(ctx, snapshot.SnapshotID)
	expected := map[string]int64{"wallet-a": 18_000, "wallet-b": 9_000, "wallet-c": 3_000}
	for _, record := range records {
		if !record.Amount.Equal(fundAmount(expected[record.Wallet])) {
			t.Fatalf("%s: expected %d, got %s", record.Wallet, expected[record.Wallet], record.Amount)
		}
	}
}

func TestDistributeProRataOverfundingBecomesResidual(t *testing.T) {
	uc, _ := newPayoutUseCase(t, threeHolderSource())
	ctx := context.Background()

	_, snapshot, err := uc.TakeSnapshot(ctx, TakeSnapshotCommand{})
	if err != nil {
		t.Fatalf("snapshot failed: %v", err)
	}
	if _, err := uc.Fund(ctx, FundCommand{SnapshotID: snapshot.SnapshotID, Amount: fundAmount(75_000)}); err != nil {
		t.Fatalf("fund failed: %v", err)
	}
	if _, err := uc.SetMode(ctx, SetModeCommand{SnapshotID: snapshot.SnapshotID, Mode: entities.ModeProRata}); err != nil {
		t.Fatalf("set mode failed: %v", err)
	}

	result, err := uc.Distribute(ctx, DistributeCommand{SnapshotID: snapshot.SnapshotID})
	if err != nil {
		t.Fatalf("distribute failed: %v", err)
	}
	if !result.TotalPaid.Equal(fundAmount(60_000)) {
		t.Fatalf("pool caps at required, got paid %s", result.TotalPaid)
	}
	if !result.Residual.Equal(fundAmount(15_000)) {
		t.Fatalf("expected residual 15000, got %s", result.Residual)
	}
}

func TestDistributeTwiceReportsAlreadyDistributed(t *testing.T) {
	uc, store := newPayoutUseCase(t, threeHolderSource())
	ctx := context.Background()

	_, snapshot, err := uc.TakeSnapshot(ctx, TakeSnapshotCommand{})
	if err != nil {
		t.Fatalf("snapshot failed: %v", err)
	}
	if _, err := uc.Fund(ctx, FundCommand{SnapshotID: snapshot.SnapshotID, Amount: fundAmount(60_000)}); err != nil {
		t.Fatalf("fund failed: %v", err)
	}
	first, err := uc.Distribute(ctx, DistributeCommand{SnapshotID: snapshot.SnapshotID})
	if err != nil {
		t.Fatalf("distribute failed: %v", err)
	}

	second, err := uc.Distribute(ctx, DistributeCommand{SnapshotID: snapshot.SnapshotID})
	if err != nil {
		t.Fatalf("repeat distribute must not error: %v", err)
	}
	if !second.AlreadyDistributed {
		t.Fatalf("repeat distribute must report already-distributed")
	}
	if !second.TotalPaid.Equal(first.TotalPaid) || !second.Residual.Equal(first.Residual) {
		t.Fatalf("repeat distribute must return the original totals")
	}

	records, _ := store.PayoutRecords(ctx, snapshot.SnapshotID)
	if len(records) != 3 {
		t.Fatalf("repeat distribute must not write extra records, got %d", len(records))
	}
	var distributedEvents int
	for _, event := range store.Events() {
		if event.EventType == "payout.cycle_distributed" {
			distributedEvents++
		}
	}
	if distributedEvents != 1 {
		t.Fatalf("repeat distribute must not re-emit, got %d events", distributedEvents)
	}
}

func TestFundAndSetModeRejectedAfterDistribution(t *testing.T) {
	uc, _ := newPayoutUseCase(t, threeHolderSource())
	ctx := context.Background()

	_, snapshot, err := uc.TakeSnapshot(ctx, TakeSnapshotCommand{})
	if err != nil {
		t.Fatalf("snapshot failed: %v", err)
	}
	if _, err := uc.Fund(ctx, FundCommand{SnapshotID: snapshot.SnapshotID, Amount: fundAmount(60_000)}); err != nil {
		t.Fatalf("fund failed: %v", err)
	}
	if _, err := uc.Distribute(ctx, DistributeCommand{SnapshotID: snapshot.SnapshotID}); err != nil {
		t.Fatalf("distribute failed: %v", err)
	}

	if _, err := uc.Fund(ctx, FundCommand{SnapshotID: snapshot.SnapshotID, Amount: fundAmount(100)}); !errors.Is(err, domainerrors.ErrCycleDistributed) {
		t.Fatalf("expected ErrCycleDistributed on fund, got %v", err)
	}
	if _, err := uc.SetMode(ctx, SetModeCommand{SnapshotID: snapshot.SnapshotID, Mode: entities.ModeProRata}); !errors.Is(err, domainerrors.ErrCycleDistributed) {
		t.Fatalf("expected ErrCycleDistributed on set mode, got %v", err)
	}
}

func TestDistributeProcessesInBatches(t *testing.T) {
	holders := make([]entities.HolderBalance, 0, 7)
	supply := decimal.Zero
	for i := 0; i < 7; i++ {
		balance := decimal.NewFromInt(int64(100 * (i + 1)))
		holders = append(holders, entities.HolderBalance{
			Wallet:  string(rune('a' + i)),
			Balance: balance,
		})
		supply = supply.Add(balance)
	}
	uc, store := newPayoutUseCase(t, staticHolders{supply: supply, holders: holders})
	uc.BatchSize = 2
	ctx := context.Background()

	_, snapshot, err := uc.TakeSnapshot(ctx, TakeSnapshotCommand{})
	if err != nil {
		t.Fatalf("snapshot failed: %v", err)
	}
	cycle, err := uc.Fund(ctx, FundCommand{SnapshotID: snapshot.SnapshotID, Amount: fundAmount(1_000)})
	if err != nil {
		t.Fatalf("fund failed: %v", err)
	}
	if _, err := uc.SetMode(ctx, SetModeCommand{SnapshotID: snapshot.SnapshotID, Mode: entities.ModeProRata}); err != nil {
		t.Fatalf("set mode failed: %v", err)
	}

	result, err := uc.Distribute(ctx, DistributeCommand{SnapshotID: snapshot.SnapshotID})
	if err != nil {
		t.Fatalf("distribute failed: %v", err)
	}
	if result.HolderCount != 7 {
		t.Fatalf("expected 7 holders, got %d", result.HolderCount)
	}

	records, _ := store.PayoutRecords(ctx, snapshot.SnapshotID)
	if len(records) != 7 {
		t.Fatalf("every holder gets a record, got %d", len(records))
	}
	if !result.TotalPaid.Add(result.Residual).Equal(cycle.FundedAmount) {
		t.Fatalf("paid %s + residual %s must equal funded %s", result.TotalPaid, result.Residual, cycle.FundedAmount)
	}
}

type unreliableRepository struct {
	*memory.Store
	failOnCommit int
	commits      int
}

func (r *unreliableRepository) CommitBatch(ctx context.Context, cycle entities.Cycle, records []entities.PayoutRecord) error {
	r.commits++
	if r.failOnCommit > 0 && r.commits == r.failOnCommit {
		return errors.New("storage unavailable")
	}
	return r.Store.CommitBatch(ctx, cycle, records)
}

func TestDistributeResumesAfterBatchFailure(t *testing.T) {
	store := memory.NewStore()
	repo := &unreliableRepository{Store: store, failOnCommit: 2}
	rate, err := decimal.NewFromString("0.06")
	if err != nil {
		t.Fatalf("bad rate: %v", err)
	}
	uc := UseCase{
		Repository: repo,
		Holders:    threeHolderSource(),
		Outbox:     store,
		Clock:      store,
		IDGen:      store,
		PayoutRate: rate,
		BatchSize:  1,
	}
	ctx := context.Background()

	_, snapshot, err := uc.TakeSnapshot(ctx, TakeSnapshotCommand{})
	if err != nil {
		t.Fatalf("snapshot failed: %v", err)
	}
	if _, err := uc.Fund(ctx, FundCommand{SnapshotID: snapshot.SnapshotID, Amount: fundAmount(60_000)}); err != nil {
		t.Fatalf("fund failed: %v", err)
	}

	if _, err := uc.Distribute(ctx, DistributeCommand{SnapshotID: snapshot.SnapshotID}); err == nil {
		t.Fatalf("expected distribute to surface the batch commit failure")
	}
	cycle, err := store.GetCycle(ctx, snapshot.SnapshotID)
	if err != nil {
		t.Fatalf("cycle read failed: %v", err)
	}
	if cycle.Cursor != 1 || !cycle.TotalPaid.Equal(fundAmount(36_000)) {
		t.Fatalf("expected cursor 1 with 36000 paid after first batch, got cursor %d paid %s", cycle.Cursor, cycle.TotalPaid)
	}
	if cycle.Finished() {
		t.Fatalf("partially committed cycle must stay unfinished")
	}
	partial, _ := store.PayoutRecords(ctx, snapshot.SnapshotID)
	if len(partial) != 1 || partial[0].Wallet != "wallet-a" {
		t.Fatalf("expected only the first batch committed, got %+v", partial)
	}

	repo.failOnCommit = 0
	result, err := uc.Distribute(ctx, DistributeCommand{SnapshotID: snapshot.SnapshotID})
	if err != nil {
		t.Fatalf("resumed distribute failed: %v", err)
	}
	if result.AlreadyDistributed {
		t.Fatalf("resume must finish the run, not replay a finished one")
	}
	if !result.TotalPaid.Equal(fundAmount(60_000)) || !result.Residual.IsZero() {
		t.Fatalf("expected paid 60000 residual 0 after resume, got paid %s residual %s", result.TotalPaid, result.Residual)
	}

	records, _ := store.PayoutRecords(ctx, snapshot.SnapshotID)
	expected := map[string]int64{"wallet-a": 36_000, "wallet-b": 18_000, "wallet-c": 6_000}
	if len(records) != len(expected) {
		t.Fatalf("resume must not double-pay: expected %d records, got %d", len(expected), len(records))
	}
	for _, record := range records {
		if !record.Amount.Equal(fundAmount(expected[record.Wallet])) {
			t.Fatalf("%s: expected %d, got %s", record.Wallet, expected[record.Wallet], record.Amount)
		}
	}
	final, err := store.GetCycle(ctx, snapshot.SnapshotID)
	if err != nil {
		t.Fatalf("cycle read failed: %v", err)
	}
	if final.State != entities.StateDistributed {
		t.Fatalf("expected DISTRIBUTED, got %s", final.State)
	}
	if !final.TotalPaid.Add(final.Residual).Equal(final.FundedAmount) {
		t.Fatalf("paid %s + residual %s must equal funded %s", final.TotalPaid, final.Residual, final.FundedAmount)
	}
}

func TestTakeSnapshotRejectsEmptyLedger(t *testing.T) {
	uc, store := newPayoutUseCase(t, staticHolders{supply: decimal.Zero})
	ctx := context.Background()

	_, _, err := uc.TakeSnapshot(ctx, TakeSnapshotCommand{RequiredOverride: ptr(fundAmount(1_000))})
	if !errors.Is(err, domainerrors.ErrEmptySnapshot) {
		t.Fatalf("expected ErrEmptySnapshot, got %v", err)
	}
	if events := store.Events(); len(events) != 0 {
		t.Fatalf("rejected snapshot must write nothing, got %d events", len(events))
	}

	// The rejection must not wedge the distributor: once the ledger carries
	// supply, the next snapshot opens normally.
	uc.Holders = threeHolderSource()
	cycle, snapshot, err := uc.TakeSnapshot(ctx, TakeSnapshotCommand{})
	if err != nil {
		t.Fatalf("snapshot over populated ledger failed: %v", err)
	}
	if snapshot.SnapshotID != "snap-1" || cycle.State != entities.StateSnapshotted {
		t.Fatalf("expected fresh snap-1 cycle, got %s in %s", snapshot.SnapshotID, cycle.State)
	}
}

func ptr(d decimal.Decimal) *decimal.Decimal {
	return &d
}
