package commands

import (
	"context"
	"errors"
	"testing"
	"time"

	registrymemory "meridian/contexts/compliance-core/claims-registry/adapters/memory"
	registryqueries "meridian/contexts/compliance-core/claims-registry/application/queries"
	registryentities "meridian/contexts/compliance-core/claims-registry/domain/entities"
	registryports "meridian/contexts/compliance-core/claims-registry/ports"
	"meridian/contexts/compliance-core/transfer-gate/adapters/memory"
	"meridian/contexts/compliance-core/transfer-gate/domain/entities"
	domainerrors "meridian/contexts/compliance-core/transfer-gate/domain/errors"

	"github.com/shopspring/decimal"
)

const testController = "controller-1"

type fixedClock struct {
	now time.Time
}

func (c fixedClock) Now() time.Time {
	return c.now
}

var gateNow = time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)

func compliantSeed(wallet string) registryentities.ClaimsRecord {
	return registryentities.ClaimsRecord{
		Wallet: wallet,
		Claims: registryentities.Claims{
			CountryCode: "DE",
			Accredited:  true,
		},
		Whitelisted: true,
	}
}

func newGateUseCase(t *testing.T, seed []registryentities.ClaimsRecord) (UseCase, *memory.Store) {
	t.Helper()
	registryStore := registrymemory.NewStore(seed)
	clock := fixedClock{now: gateNow}
	compliance := registryqueries.UseCase{
		Repository: registryStore,
		Clock:      clock,
	}
	store := memory.NewStore()
	return UseCase{
		Ledger:      store,
		Compliance:  compliance,
		Idempotency: store,
		Outbox:      store,
		Clock:       clock,
		IDGen:       store,
		Authority: registryports.Authority{
			OracleID:     "oracle-1",
			ControllerID: testController,
		},
	}, store
}

func amount(value int64) decimal.Decimal {
	return decimal.NewFromInt(value)
}

func assertLedgerInvariant(t *testing.T, store *memory.Store, partition entities.Partition) {
	t.Helper()
	ctx := context.Background()
	supply, err := store.PartitionSupply(ctx, partition)
	if err != nil {
		t.Fatalf("supply read failed: %v", err)
	}
	holdings, err := store.ListHoldings(ctx)
	if err != nil {
		t.Fatalf("holdings read failed: %v", err)
	}
	sum := decimal.Zero
	for _, holding := range holdings {
		if holding.Partition == partition {
			sum = sum.Add(holding.Balance)
		}
	}
	if !sum.Equal(supply) {
		t.Fatalf("ledger invariant broken: balances sum %s, supply %s", sum, supply)
	}
}

func TestMintToCompliantWalletSucceeds(t *testing.T) {
	uc, store := newGateUseCase(t, []registryentities.ClaimsRecord{compliantSeed("wallet-a")})
	ctx := context.Background()

	outcome, replayed, err := uc.Mint(ctx, MintCommand{
		CallerID:       testController,
		IdempotencyKey: "mint-1",
		To:             "wallet-a",
		Partition:      entities.PartitionRegD,
		Amount:         amount(100),
	})
	if err != nil {
		t.Fatalf("mint failed: %v", err)
	}
	if replayed {
		t.Fatalf("first call must not be a replay")
	}
	if !outcome.Admitted {
		t.Fatalf("mint denied: %v", outcome.Decision.Reason.Kind)
	}

	balance, err := store.GetBalance(ctx, "wallet-a", entities.PartitionRegD)
	if err != nil {
		t.Fatalf("balance read failed: %v", err)
	}
	if !balance.Equal(amount(100)) {
		t.Fatalf("expected balance 100, got %s", balance)
	}
	assertLedgerInvariant(t, store, entities.PartitionRegD)

	events := store.Events()
	if len(events) != 1 || events[0].EventType != "token.minted" {
		t.Fatalf("expected one token.minted event, got %+v", events)
	}
}

func TestMintToUnknownWalletDeniedWithoutMutation(t *testing.T) {
	uc, store := newGateUseCase(t, []registryentities.ClaimsRecord{compliantSeed("wallet-a")})
	ctx := context.Background()

	outcome, _, err := uc.Mint(ctx, MintCommand{
		CallerID:       testController,
		IdempotencyKey: "mint-b",
		To:             "wallet-b",
		Partition:      entities.PartitionRegD,
		Amount:         amount(100),
	})
	if err != nil {
		t.Fatalf("denial must not be an error: %v", err)
	}
	if outcome.Admitted {
		t.Fatalf("mint to wallet without claims must be denied")
	}
	if outcome.Decision.Reason.Kind != registryentities.ReasonWalletNotWhitelisted {
		t.Fatalf("unexpected reason %v", outcome.Decision.Reason.Kind)
	}

	supply, err := store.PartitionSupply(ctx, entities.PartitionRegD)
	if err != nil {
		t.Fatalf("supply read failed: %v", err)
	}
	if !supply.IsZero() {
		t.Fatalf("denied mint must not change supply, got %s", supply)
	}
	if len(store.Receipts()) != 0 {
		t.Fatalf("denied mint must not produce a receipt")
	}
	if len(store.Events()) != 0 {
		t.Fatalf("denied mint must not emit events")
	}
}

func TestMintRequiresControllerAuthority(t *testing.T) {
	uc, _ := newGateUseCase(t, []registryentities.ClaimsRecord{compliantSeed("wallet-a")})

	_, _, err := uc.Mint(context.Background(), MintCommand{
		CallerID:       "oracle-1",
		IdempotencyKey: "mint-1",
		To:             "wallet-a",
		Partition:      entities.PartitionRegD,
		Amount:         amount(100),
	})
	if !errors.Is(err, domainerrors.ErrUnauthorizedCaller) {
		t.Fatalf("expected ErrUnauthorizedCaller, got %v", err)
	}
}

func TestExecuteValidation(t *testing.T) {
	uc, _ := newGateUseCase(t, []registryentities.ClaimsRecord{compliantSeed("wallet-a")})
	ctx := context.Background()

	_, _, err := uc.Mint(ctx, MintCommand{
		CallerID:  testController,
		To:        "wallet-a",
		Partition: entities.PartitionRegD,
		Amount:    amount(100),
	})
	if !errors.Is(err, domainerrors.ErrIdempotencyKeyMissing) {
		t.Fatalf("expected ErrIdempotencyKeyMissing, got %v", err)
	}

	_, _, err = uc.Mint(ctx, MintCommand{
		CallerID:       testController,
		IdempotencyKey: "mint-1",
		To:             "wallet-a",
		Partition:      entities.Partition("REG_X"),
		Amount:         amount(100),
	})
	if !errors.Is(err, domainerrors.ErrInvalidPartition) {
		t.Fatalf("expected ErrInvalidPartition, got %v", err)
	}

	fractional, _ := decimal.NewFromString("1.5")
	for _, bad := range []decimal.Decimal{decimal.Zero, amount(-5), fractional} {
		_, _, err = uc.Mint(ctx, MintCommand{
			CallerID:       testController,
			IdempotencyKey: "mint-1",
			To:             "wallet-a",
			Partition:      entities.PartitionRegD,
			Amount:         bad,
		})
		if !errors.Is(err, domainerrors.ErrInvalidAmount) {
			t.Fatalf("amount %s: expected ErrInvalidAmount, got %v", bad, err)
		}
	}
}

func TestTransferMovesBalanceWithinPartition(t *testing.T) {
	uc, store := newGateUseCase(t, []registryentities.ClaimsRecord{
		compliantSeed("wallet-a"),
		compliantSeed("wallet-b"),
	})
	ctx := context.Background()

	if _, _, err := uc.Mint(ctx, MintCommand{
		CallerID:       testController,
		IdempotencyKey: "mint-1",
		To:             "wallet-a",
		Partition:      entities.PartitionRegS,
		Amount:         amount(100),
	}); err != nil {
		t.Fatalf("mint failed: %v", err)
	}

	outcome, _, err := uc.Transfer(ctx, TransferCommand{
		IdempotencyKey: "xfer-1",
		From:           "wallet-a",
		To:             "wallet-b",
		Partition:      entities.PartitionRegS,
		Amount:         amount(40),
	})
	if err != nil {
		t.Fatalf("transfer failed: %v", err)
	}
	if !outcome.Admitted {
		t.Fatalf("transfer denied: %v", outcome.Decision.Reason.Kind)
	}

	fromBalance, _ := store.GetBalance(ctx, "wallet-a", entities.PartitionRegS)
	toBalance, _ := store.GetBalance(ctx, "wallet-b", entities.PartitionRegS)
	if !fromBalance.Equal(amount(60)) || !toBalance.Equal(amount(40)) {
		t.Fatalf("unexpected balances after transfer: from=%s to=%s", fromBalance, toBalance)
	}
	assertLedgerInvariant(t, store, entities.PartitionRegS)
}

func TestTransferInsufficientBalance(t *testing.T) {
	uc, _ := newGateUseCase(t, []registryentities.ClaimsRecord{
		compliantSeed("wallet-a"),
		compliantSeed("wallet-b"),
	})

	_, _, err := uc.Transfer(context.Background(), TransferCommand{
		IdempotencyKey: "xfer-1",
		From:           "wallet-a",
		To:             "wallet-b",
		Partition:      entities.PartitionRegD,
		Amount:         amount(10),
	})
	if !errors.Is(err, domainerrors.ErrInsufficientBalance) {
		t.Fatalf("expected ErrInsufficientBalance, got %v", err)
	}
}

func TestTransferDeniedDuringLockup(t *testing.T) {
	locked := compliantSeed("wallet-a")
	locked.Claims.LockupUntil = gateNow.Add(24 * time.Hour)
	uc, store := newGateUseCase(t, []registryentities.ClaimsRecord{
		locked,
		compliantSeed("wallet-b"),
	})
	ctx := context.Background()

	if _, _, err := uc.Mint(ctx, MintCommand{
		CallerID:       testController,
		IdempotencyKey: "mint-1",
		To:             "wallet-a",
		Partition:      entities.PartitionRegD,
		Amount:         amount(100),
	}); err != nil {
		t.Fatalf("mint failed: %v", err)
	}

	outcome, _, err := uc.Transfer(ctx, TransferCommand{
		IdempotencyKey: "xfer-1",
		From:           "wallet-a",
		To:             "wallet-b",
		Partition:      entities.PartitionRegD,
		Amount:         amount(10),
	})
	if err != nil {
		t.Fatalf("denial must not be an error: %v", err)
	}
	if outcome.Admitted {
		t.Fatalf("transfer during lockup must be denied")
	}
	if outcome.Decision.Reason.Kind != registryentities.ReasonLockupActive {
		t.Fatalf("unexpected reason %v", outcome.Decision.Reason.Kind)
	}

	balance, _ := store.GetBalance(ctx, "wallet-a", entities.PartitionRegD)
	if !balance.Equal(amount(100)) {
		t.Fatalf("denied transfer must not move balance, got %s", balance)
	}
}

func TestForcedTransferBypassesSourceLockup(t *testing.T) {
	locked := compliantSeed("wallet-a")
	locked.Claims.LockupUntil = gateNow.Add(24 * time.Hour)
	uc, store := newGateUseCase(t, []registryentities.ClaimsRecord{
		locked,
		compliantSeed("wallet-b"),
	})
	ctx := context.Background()

	if _, _, err := uc.Mint(ctx, MintCommand{
		CallerID:       testController,
		IdempotencyKey: "mint-1",
		To:             "wallet-a",
		Partition:      entities.PartitionRegD,
		Amount:         amount(100),
	}); err != nil {
		t.Fatalf("mint failed: %v", err)
	}

	outcome, _, err := uc.ForcedTransfer(ctx, ForcedTransferCommand{
		CallerID:       testController,
		IdempotencyKey: "forced-1",
		From:           "wallet-a",
		To:             "wallet-b",
		Partition:      entities.PartitionRegD,
		Amount:         amount(100),
	})
	if err != nil {
		t.Fatalf("forced transfer failed: %v", err)
	}
	if !outcome.Admitted {
		t.Fatalf("forced transfer must bypass source lockup: %v", outcome.Decision.Reason.Kind)
	}
	if outcome.Receipt.Kind != entities.TransferKindForced {
		t.Fatalf("forced transfer receipt must carry its own kind, got %v", outcome.Receipt.Kind)
	}

	var forcedEvents int
	for _, event := range store.Events() {
		if event.EventType == "token.transfer_forced" {
			forcedEvents++
		}
	}
	if forcedEvents != 1 {
		t.Fatalf("expected one token.transfer_forced event, got %d", forcedEvents)
	}
}

func TestForcedTransferStillChecksDestination(t *testing.T) {
	uc, _ := newGateUseCase(t, []registryentities.ClaimsRecord{compliantSeed("wallet-a")})
	ctx := context.Background()

	if _, _, err := uc.Mint(ctx, MintCommand{
		CallerID:       testController,
		IdempotencyKey: "mint-1",
		To:             "wallet-a",
		Partition:      entities.PartitionRegD,
		Amount:         amount(100),
	}); err != nil {
		t.Fatalf("mint failed: %v", err)
	}

	outcome, _, err := uc.ForcedTransfer(ctx, ForcedTransferCommand{
		CallerID:       testController,
		IdempotencyKey: "forced-1",
		From:           "wallet-a",
		To:             "wallet-unknown",
		Partition:      entities.PartitionRegD,
		Amount:         amount(10),
	})
	if err != nil {
		t.Fatalf("denial must not be an error: %v", err)
	}
	if outcome.Admitted {
		t.Fatalf("forced transfer to non-compliant destination must be denied")
	}
}

func TestBurnReducesSupply(t *testing.T) {
	uc, store := newGateUseCase(t, []registryentities.ClaimsRecord{compliantSeed("wallet-a")})
	ctx := context.Background()

	if _, _, err := uc.Mint(ctx, MintCommand{
		CallerID:       testController,
		IdempotencyKey: "mint-1",
		To:             "wallet-a",
		Partition:      entities.PartitionRegD,
		Amount:         amount(100),
	}); err != nil {
		t.Fatalf("mint failed: %v", err)
	}

	outcome, _, err := uc.Burn(ctx, BurnCommand{
		CallerID:       testController,
		IdempotencyKey: "burn-1",
		From:           "wallet-a",
		Partition:      entities.PartitionRegD,
		Amount:         amount(30),
	})
	if err != nil {
		t.Fatalf("burn failed: %v", err)
	}
	if !outcome.Admitted {
		t.Fatalf("burn denied: %v", outcome.Decision.Reason.Kind)
	}

	supply, _ := store.PartitionSupply(ctx, entities.PartitionRegD)
	if !supply.Equal(amount(70)) {
		t.Fatalf("expected supply 70 after burn, got %s", supply)
	}
	assertLedgerInvariant(t, store, entities.PartitionRegD)
}

func TestIdempotencyReplayReturnsSameOutcome(t *testing.T) {
	uc, store := newGateUseCase(t, []registryentities.ClaimsRecord{compliantSeed("wallet-a")})
	ctx := context.Background()

	cmd := MintCommand{
		CallerID:       testController,
		IdempotencyKey: "mint-1",
		To:             "wallet-a",
		Partition:      entities.PartitionRegD,
		Amount:         amount(100),
	}
	first, replayed, err := uc.Mint(ctx, cmd)
	if err != nil || replayed {
		t.Fatalf("first mint failed: %v replayed=%v", err, replayed)
	}
	second, replayed, err := uc.Mint(ctx, cmd)
	if err != nil {
		t.Fatalf("replayed mint failed: %v", err)
	}
	if !replayed {
		t.Fatalf("duplicate idempotency key must replay")
	}
	if first.Receipt.TransferID != second.Receipt.TransferID {
		t.Fatalf("replay must return the original receipt")
	}

	supply, _ := store.PartitionSupply(ctx, entities.PartitionRegD)
	if !supply.Equal(amount(100)) {
		t.Fatalf("replay must not mint twice, supply %s", supply)
	}
	if len(store.Receipts()) != 1 {
		t.Fatalf("replay must not produce a second receipt")
	}
}

func TestIdempotencyKeyReuseWithDifferentPayloadConflicts(t *testing.T) {
	uc, _ := newGateUseCase(t, []registryentities.ClaimsRecord{compliantSeed("wallet-a")})
	ctx := context.Background()

	if _, _, err := uc.Mint(ctx, MintCommand{
		CallerID:       testController,
		IdempotencyKey: "mint-1",
		To:             "wallet-a",
		Partition:      entities.PartitionRegD,
		Amount:         amount(100),
	}); err != nil {
		t.Fatalf("mint failed: %v", err)
	}

	_, _, err := uc.Mint(ctx, MintCommand{
		CallerID:       testController,
		IdempotencyKey: "mint-1",
		To:             "wallet-a",
		Partition:      entities.PartitionRegD,
		Amount:         amount(200),
	})
	if !errors.Is(err, domainerrors.ErrIdempotencyConflict) {
		t.Fatalf("expected ErrIdempotencyConflict, got %v", err)
	}
}

func TestDeniedOutcomeIsReplayedToo(t *testing.T) {
	uc, store := newGateUseCase(t, nil)
	ctx := context.Background()

	cmd := MintCommand{
		CallerID:       testController,
		IdempotencyKey: "mint-denied",
		To:             "wallet-unknown",
		Partition:      entities.PartitionRegD,
		Amount:         amount(100),
	}
	first, _, err := uc.Mint(ctx, cmd)
	if err != nil {
		t.Fatalf("first call failed: %v", err)
	}
	second, replayed, err := uc.Mint(ctx, cmd)
	if err != nil {
		t.Fatalf("second call failed: %v", err)
	}
	if !replayed {
		t.Fatalf("stored denial must replay")
	}
	if first.Admitted || second.Admitted {
		t.Fatalf("denial must stay a denial")
	}
	if second.Decision.Reason.Kind != registryentities.ReasonWalletNotWhitelisted {
		t.Fatalf("replayed denial lost its reason: %v", second.Decision.Reason.Kind)
	}
	if len(store.Receipts()) != 0 {
		t.Fatalf("denials never mutate the ledger")
	}
}
