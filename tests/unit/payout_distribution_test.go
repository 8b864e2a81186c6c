package unit

import (
	"context"
	"errors"
	"sync"
	"testing"

	claimsregistry "meridian/contexts/compliance-core/claims-registry"
	registryqueries "meridian/contexts/compliance-core/claims-registry/application/queries"
	registryports "meridian/contexts/compliance-core/claims-registry/ports"
	registryhttp "meridian/contexts/compliance-core/claims-registry/transport/http"
	transfergate "meridian/contexts/compliance-core/transfer-gate"
	gatehttp "meridian/contexts/compliance-core/transfer-gate/transport/http"
	distributionengine "meridian/contexts/payout-core/distribution-engine"
	payouterrors "meridian/contexts/payout-core/distribution-engine/domain/errors"
	payouthttp "meridian/contexts/payout-core/distribution-engine/transport/http"

	"github.com/shopspring/decimal"
)

func newPayoutStack(t *testing.T) (claimsregistry.Module, transfergate.Module, distributionengine.Module) {
	t.Helper()
	authority := registryports.Authority{OracleID: oracleID, ControllerID: controllerID}
	guard := &sync.RWMutex{}
	registry := claimsregistry.NewInMemoryModule(nil, authority, guard, nil)
	compliance := registryqueries.UseCase{
		Repository: registry.Store,
		Clock:      registry.Store,
	}
	gate := transfergate.NewInMemoryModule(compliance, authority, guard, nil)
	rate, err := decimal.NewFromString("0.06")
	if err != nil {
		t.Fatalf("bad rate: %v", err)
	}
	payouts := distributionengine.NewInMemoryModule(gate.Queries, rate, nil)
	return registry, gate, payouts
}

func mintHolder(t *testing.T, registry claimsregistry.Module, gate transfergate.Module, wallet string, amount string) {
	t.Helper()
	ctx := context.Background()
	if _, err := registry.Handler.SetClaimsHandler(ctx, oracleID, wallet, registryhttp.SetClaimsRequest{
		CountryCode: "DE",
		Accredited:  true,
	}); err != nil {
		t.Fatalf("set claims for %s failed: %v", wallet, err)
	}
	minted, _, err := gate.Handler.MintHandler(ctx, controllerID, "idem-mint-"+wallet, gatehttp.MintRequest{
		To:        wallet,
		Partition: "REG_S",
		Amount:    amount,
	})
	if err != nil {
		t.Fatalf("mint for %s failed: %v", wallet, err)
	}
	if !minted.Admitted {
		t.Fatalf("mint for %s denied: %s", wallet, minted.ReasonCode)
	}
}

func seedThreeHolders(t *testing.T, registry claimsregistry.Module, gate transfergate.Module) {
	t.Helper()
	mintHolder(t, registry, gate, "wallet-a", "600000")
	mintHolder(t, registry, gate, "wallet-b", "300000")
	mintHolder(t, registry, gate, "wallet-c", "100000")
}

func TestFullDistributionFlow(t *testing.T) {
	registry, gate, payouts := newPayoutStack(t)
	seedThreeHolders(t, registry, gate)
	ctx := context.Background()

	cycle, err := payouts.Handler.TakeSnapshotHandler(ctx, payouthttp.TakeSnapshotRequest{})
	if err != nil {
		t.Fatalf("snapshot failed: %v", err)
	}
	if cycle.TotalSupply != "1000000" {
		t.Fatalf("expected snapshot supply 1000000, got %s", cycle.TotalSupply)
	}
	if cycle.RequiredAmount != "60000" {
		t.Fatalf("expected required 60000 at the 6%% rate, got %s", cycle.RequiredAmount)
	}

	if _, err := payouts.Handler.FundHandler(ctx, cycle.SnapshotID, payouthttp.FundRequest{Amount: "60000"}); err != nil {
		t.Fatalf("fund failed: %v", err)
	}
	result, err := payouts.Handler.DistributeHandler(ctx, cycle.SnapshotID)
	if err != nil {
		t.Fatalf("distribute failed: %v", err)
	}
	if result.TotalPaid != "60000" || result.Residual != "0" {
		t.Fatalf("expected paid 60000 residual 0, got paid %s residual %s", result.TotalPaid, result.Residual)
	}

	expected := map[string]string{"wallet-a": "36000", "wallet-b": "18000", "wallet-c": "6000"}
	if len(result.Payouts) != len(expected) {
		t.Fatalf("expected %d payouts, got %d", len(expected), len(result.Payouts))
	}
	for _, payout := range result.Payouts {
		if payout.Amount != expected[payout.Wallet] {
			t.Fatalf("%s: expected %s, got %s", payout.Wallet, expected[payout.Wallet], payout.Amount)
		}
	}

	status, err := payouts.Handler.CycleStatusHandler(ctx, cycle.SnapshotID)
	if err != nil {
		t.Fatalf("cycle status failed: %v", err)
	}
	if status.State != "DISTRIBUTED" {
		t.Fatalf("expected DISTRIBUTED, got %s", status.State)
	}
}

func TestProRataDistributionFlow(t *testing.T) {
	registry, gate, payouts := newPayoutStack(t)
	seedThreeHolders(t, registry, gate)
	ctx := context.Background()

	cycle, err := payouts.Handler.TakeSnapshotHandler(ctx, payouthttp.TakeSnapshotRequest{})
	if err != nil {
		t.Fatalf("snapshot failed: %v", err)
	}
	if _, err := payouts.Handler.FundHandler(ctx, cycle.SnapshotID, payouthttp.FundRequest{Amount: "30000"}); err != nil {
		t.Fatalf("fund failed: %v", err)
	}

	// Half-funded FULL refuses to pay.
	if _, err := payouts.Handler.DistributeHandler(ctx, cycle.SnapshotID); !errors.Is(err, payouterrors.ErrCycleUnderfunded) {
		t.Fatalf("expected ErrCycleUnderfunded in FULL mode, got %v", err)
	}

	if _, err := payouts.Handler.SetModeHandler(ctx, cycle.SnapshotID, payouthttp.SetModeRequest{Mode: "PRO_RATA"}); err != nil {
		t.Fatalf("set mode failed: %v", err)
	}
	result, err := payouts.Handler.DistributeHandler(ctx, cycle.SnapshotID)
	if err != nil {
		t.Fatalf("distribute failed: %v", err)
	}
	if result.TotalPaid != "30000" || result.Residual != "0" {
		t.Fatalf("expected paid 30000 residual 0, got paid %s residual %s", result.TotalPaid, result.Residual)
	}

	expected := map[string]string{"wallet-a": "18000", "wallet-b": "9000", "wallet-c": "3000"}
	for _, payout := range result.Payouts {
		if payout.Amount != expected[payout.Wallet] {
			t.Fatalf("%s: expected %s, got %s", payout.Wallet, expected[payout.Wallet], payout.Amount)
		}
	}
}

func TestDistributionSurvivesRepeatCalls(t *testing.T) {
	registry, gate, payouts := newPayoutStack(t)
	seedThreeHolders(t, registry, gate)
	ctx := context.Background()

	cycle, err := payouts.Handler.TakeSnapshotHandler(ctx, payouthttp.TakeSnapshotRequest{})
	if err != nil {
		t.Fatalf("snapshot failed: %v", err)
	}
	if _, err := payouts.Handler.FundHandler(ctx, cycle.SnapshotID, payouthttp.FundRequest{Amount: "60000"}); err != nil {
		t.Fatalf("fund failed: %v", err)
	}
	first, err := payouts.Handler.DistributeHandler(ctx, cycle.SnapshotID)
	if err != nil {
		t.Fatalf("distribute failed: %v", err)
	}
	second, err := payouts.Handler.DistributeHandler(ctx, cycle.SnapshotID)
	if err != nil {
		t.Fatalf("repeat distribute must not error: %v", err)
	}
	if !second.AlreadyDistributed {
		t.Fatalf("repeat distribute must report already-distributed")
	}
	if second.TotalPaid != first.TotalPaid {
		t.Fatalf("repeat distribute changed totals: %s then %s", first.TotalPaid, second.TotalPaid)
	}
}

func TestSnapshotIsolatedFromLaterTransfers(t *testing.T) {
	registry, gate, payouts := newPayoutStack(t)
	seedThreeHolders(t, registry, gate)
	ctx := context.Background()

	cycle, err := payouts.Handler.TakeSnapshotHandler(ctx, payouthttp.TakeSnapshotRequest{})
	if err != nil {
		t.Fatalf("snapshot failed: %v", err)
	}

	// Transfers after the snapshot must not move payouts.
	moved, _, err := gate.Handler.TransferHandler(ctx, "idem-xfer-1", gatehttp.TransferRequest{
		From: "wallet-a", To: "wallet-c", Partition: "REG_S", Amount: "600000",
	})
	if err != nil || !moved.Admitted {
		t.Fatalf("post-snapshot transfer failed: admitted=%v err=%v", moved.Admitted, err)
	}

	if _, err := payouts.Handler.FundHandler(ctx, cycle.SnapshotID, payouthttp.FundRequest{Amount: "60000"}); err != nil {
		t.Fatalf("fund failed: %v", err)
	}
	result, err := payouts.Handler.DistributeHandler(ctx, cycle.SnapshotID)
	if err != nil {
		t.Fatalf("distribute failed: %v", err)
	}
	expected := map[string]string{"wallet-a": "36000", "wallet-b": "18000", "wallet-c": "6000"}
	for _, payout := range result.Payouts {
		if payout.Amount != expected[payout.Wallet] {
			t.Fatalf("snapshot balances must drive payouts: %s expected %s, got %s", payout.Wallet, expected[payout.Wallet], payout.Amount)
		}
	}
}

func TestSecondSnapshotWaitsForFirstCycle(t *testing.T) {
	registry, gate, payouts := newPayoutStack(t)
	seedThreeHolders(t, registry, gate)
	ctx := context.Background()

	cycle, err := payouts.Handler.TakeSnapshotHandler(ctx, payouthttp.TakeSnapshotRequest{})
	if err != nil {
		t.Fatalf("snapshot failed: %v", err)
	}
	if _, err := payouts.Handler.TakeSnapshotHandler(ctx, payouthttp.TakeSnapshotRequest{}); !errors.Is(err, payouterrors.ErrCycleInProgress) {
		t.Fatalf("expected ErrCycleInProgress, got %v", err)
	}

	if _, err := payouts.Handler.FundHandler(ctx, cycle.SnapshotID, payouthttp.FundRequest{Amount: "60000"}); err != nil {
		t.Fatalf("fund failed: %v", err)
	}
	if _, err := payouts.Handler.DistributeHandler(ctx, cycle.SnapshotID); err != nil {
		t.Fatalf("distribute failed: %v", err)
	}

	next, err := payouts.Handler.TakeSnapshotHandler(ctx, payouthttp.TakeSnapshotRequest{})
	if err != nil {
		t.Fatalf("snapshot after distribution failed: %v", err)
	}
	if next.SnapshotID != "snap-2" {
		t.Fatalf("expected snap-2, got %s", next.SnapshotID)
	}
}
