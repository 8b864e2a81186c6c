package services

import (
	"meridian/contexts/payout-core/distribution-engine/domain/entities"

	"github.com/shopspring/decimal"
)

// RequiredAmount is the deterministic funding target for a snapshot:
// rate × total supply, banker's-rounded to whole currency units.
func RequiredAmount(totalSupply decimal.Decimal, rate decimal.Decimal) decimal.Decimal {
	return totalSupply.Mul(rate).RoundBank(0)
}

// Allocation is one holder's computed share of the payout pool.
type Allocation struct {
	Wallet string
	Amount decimal.Decimal
	Status entities.PayoutStatus
}

// PayoutPool resolves how much of the funded amount a distribution pays out.
// FULL pays the full required amount and expects funded >= required (the
// caller enforces that); PRO_RATA pays whatever was funded, capped at
// required so overfunding becomes residual rather than over-payment.
func PayoutPool(mode entities.Mode, required decimal.Decimal, funded decimal.Decimal) decimal.Decimal {
	if mode == entities.ModeProRata && funded.LessThan(required) {
		return funded
	}
	return required
}

// Allocate computes every holder's proportional share of pool:
// balance × pool / totalSupply, banker's-rounded to whole currency units.
// Each share is clamped to the pool's running remainder so the summed
// payouts can never exceed pool regardless of rounding direction; what is
// left over is the cycle's residual. Zero-balance holders come back as
// skipped with a zero amount. The result is deterministic in holder order,
// which is what makes interrupted distributions safely resumable.
func Allocate(holders []entities.HolderBalance, totalSupply decimal.Decimal, pool decimal.Decimal) []Allocation {
	allocations := make([]Allocation, 0, len(holders))
	running := decimal.Zero
	for _, holder := range holders {
		if !holder.Balance.IsPositive() {
			allocations = append(allocations, Allocation{
				Wallet: holder.Wallet,
				Amount: decimal.Zero,
				Status: entities.PayoutStatusSkipped,
			})
			continue
		}
		share := holder.Balance.Mul(pool).Div(totalSupply).RoundBank(0)
		remaining := pool.Sub(running)
		if share.GreaterThan(remaining) {
			share = remaining
		}
		running = running.Add(share)
		allocations = append(allocations, Allocation{
			Wallet: holder.Wallet,
			Amount: share,
			Status: entities.PayoutStatusPaid,
		})
	}
	return allocations
}
