package services

import (
	"testing"

	"meridian/contexts/payout-core/distribution-engine/domain/entities"

	"github.com/shopspring/decimal"
)

func holders(balances map[string]int64, order ...string) []entities.HolderBalance {
	out := make([]entities.HolderBalance, 0, len(order))
	for _, wallet := range order {
		out = append(out, entities.HolderBalance{
			Wallet:  wallet,
			Balance: decimal.NewFromInt(balances[wallet]),
		})
	}
	return out
}

func TestRequiredAmountRoundsBankersStyle(t *testing.T) {
	rate, _ := decimal.NewFromString("0.06")
	required := RequiredAmount(decimal.NewFromInt(1_000_000), rate)
	if !required.Equal(decimal.NewFromInt(60_000)) {
		t.Fatalf("expected 60000, got %s", required)
	}

	// 25 × 0.06 = 1.5, which banker's rounding takes to the even 2.
	halfRate := RequiredAmount(decimal.NewFromInt(25), rate)
	if !halfRate.Equal(decimal.NewFromInt(2)) {
		t.Fatalf("expected banker's rounding to 2, got %s", halfRate)
	}
	// 75 × 0.06 = 4.5 rounds down to the even 4.
	halfRate = RequiredAmount(decimal.NewFromInt(75), rate)
	if !halfRate.Equal(decimal.NewFromInt(4)) {
		t.Fatalf("expected banker's rounding to 4, got %s", halfRate)
	}
}

func TestPayoutPool(t *testing.T) {
	required := decimal.NewFromInt(60_000)

	if pool := PayoutPool(entities.ModeFull, required, decimal.NewFromInt(60_000)); !pool.Equal(required) {
		t.Fatalf("FULL pays required, got %s", pool)
	}
	if pool := PayoutPool(entities.ModeProRata, required, decimal.NewFromInt(30_000)); !pool.Equal(decimal.NewFromInt(30_000)) {
		t.Fatalf("underfunded PRO_RATA pays funded, got %s", pool)
	}
	if pool := PayoutPool(entities.ModeProRata, required, decimal.NewFromInt(90_000)); !pool.Equal(required) {
		t.Fatalf("overfunded PRO_RATA caps at required, got %s", pool)
	}
}

func TestAllocateThreeHoldersFullPool(t *testing.T) {
	set := holders(map[string]int64{"alpha": 600_000, "bravo": 300_000, "charlie": 100_000},
		"alpha", "bravo", "charlie")
	supply := decimal.NewFromInt(1_000_000)

	allocations := Allocate(set, supply, decimal.NewFromInt(60_000))
	expected := []int64{36_000, 18_000, 6_000}
	total := decimal.Zero
	for idx, allocation := range allocations {
		if !allocation.Amount.Equal(decimal.NewFromInt(expected[idx])) {
			t.Fatalf("%s: expected %d, got %s", allocation.Wallet, expected[idx], allocation.Amount)
		}
		if allocation.Status != entities.PayoutStatusPaid {
			t.Fatalf("%s: expected paid status", allocation.Wallet)
		}
		total = total.Add(allocation.Amount)
	}
	if !total.Equal(decimal.NewFromInt(60_000)) {
		t.Fatalf("expected zero residual, paid %s", total)
	}
}

func TestAllocateThreeHoldersProRataPool(t *testing.T) {
	set := holders(map[string]int64{"alpha": 600_000, "bravo": 300_000, "charlie": 100_000},
		"alpha", "bravo", "charlie")
	supply := decimal.NewFromInt(1_000_000)

	allocations := Allocate(set, supply, decimal.NewFromInt(30_000))
	expected := []int64{18_000, 9_000, 3_000}
	for idx, allocation := range allocations {
		if !allocation.Amount.Equal(decimal.NewFromInt(expected[idx])) {
			t.Fatalf("%s: expected %d, got %s", allocation.Wallet, expected[idx], allocation.Amount)
		}
	}
}

func TestAllocateNeverExceedsPool(t *testing.T) {
	// 3-way split of 100 rounds each share to 33; awkward balances force
	// rounding in both directions.
	set := holders(map[string]int64{"alpha": 1, "bravo": 1, "charlie": 1}, "alpha", "bravo", "charlie")
	supply := decimal.NewFromInt(3)
	pool := decimal.NewFromInt(100)

	allocations := Allocate(set, supply, pool)
	total := decimal.Zero
	for _, allocation := range allocations {
		total = total.Add(allocation.Amount)
	}
	if total.GreaterThan(pool) {
		t.Fatalf("allocations exceed pool: %s > %s", total, pool)
	}
	residual := pool.Sub(total)
	if residual.IsNegative() {
		t.Fatalf("negative residual %s", residual)
	}
}

func TestAllocateClampsLastShareToRemainder(t *testing.T) {
	// Two holders at 50/50 of a pool of 3: each share rounds half-to-even,
	// 1.5 → 2, so the second share is clamped to the single remaining unit.
	set := holders(map[string]int64{"alpha": 1, "bravo": 1}, "alpha", "bravo")
	allocations := Allocate(set, decimal.NewFromInt(2), decimal.NewFromInt(3))

	if !allocations[0].Amount.Equal(decimal.NewFromInt(2)) {
		t.Fatalf("first share: expected 2, got %s", allocations[0].Amount)
	}
	if !allocations[1].Amount.Equal(decimal.NewFromInt(1)) {
		t.Fatalf("second share must be clamped to 1, got %s", allocations[1].Amount)
	}
}

func TestAllocateSkipsZeroBalances(t *testing.T) {
	set := []entities.HolderBalance{
		{Wallet: "alpha", Balance: decimal.NewFromInt(100)},
		{Wallet: "bravo", Balance: decimal.Zero},
	}
	allocations := Allocate(set, decimal.NewFromInt(100), decimal.NewFromInt(10))

	if allocations[1].Status != entities.PayoutStatusSkipped {
		t.Fatalf("zero-balance holder must be skipped")
	}
	if !allocations[1].Amount.IsZero() {
		t.Fatalf("skipped holder must get a zero amount, got %s", allocations[1].Amount)
	}
	if !allocations[0].Amount.Equal(decimal.NewFromInt(10)) {
		t.Fatalf("expected 10, got %s", allocations[0].Amount)
	}
}

func TestAllocateIsDeterministicInHolderOrder(t *testing.T) {
	set := holders(map[string]int64{"alpha": 7, "bravo": 11, "charlie": 13}, "alpha", "bravo", "charlie")
	supply := decimal.NewFromInt(31)
	pool := decimal.NewFromInt(997)

	first := Allocate(set, supply, pool)
	second := Allocate(set, supply, pool)
	for idx := range first {
		if !first[idx].Amount.Equal(second[idx].Amount) {
			t.Fatalf("allocation for %s differs between runs", first[idx].Wallet)
		}
	}
}
