package queries

import (
	"context"
	"sort"
	"strings"

	registryentities "meridian/contexts/compliance-core/claims-registry/domain/entities"
	"meridian/contexts/compliance-core/transfer-gate/domain/entities"
	domainerrors "meridian/contexts/compliance-core/transfer-gate/domain/errors"
	"meridian/contexts/compliance-core/transfer-gate/ports"

	"github.com/shopspring/decimal"
)

type UseCase struct {
	Ledger ports.LedgerRepository
}

// WalletBalances returns the wallet's balance in every partition, including
// zero balances, in canonical partition order.
func (uc UseCase) WalletBalances(ctx context.Context, wallet string) ([]entities.Holding, error) {
	trimmed := strings.TrimSpace(wallet)
	if trimmed == "" {
		return nil, domainerrors.ErrZeroWalletAddress
	}
	holdings := make([]entities.Holding, 0, len(registryentities.Partitions()))
	for _, partition := range registryentities.Partitions() {
		balance, err := uc.Ledger.GetBalance(ctx, trimmed, partition)
		if err != nil {
			return nil, err
		}
		holdings = append(holdings, entities.Holding{
			Wallet:    trimmed,
			Partition: partition,
			Balance:   balance,
		})
	}
	return holdings, nil
}

func (uc UseCase) PartitionSupply(ctx context.Context, partition entities.Partition) (decimal.Decimal, error) {
	if _, ok := registryentities.ParsePartition(string(partition)); !ok {
		return decimal.Zero, domainerrors.ErrInvalidPartition
	}
	return uc.Ledger.PartitionSupply(ctx, partition)
}

// SnapshotView aggregates holder balances across partitions in one consistent
// read. This is the sole ledger surface the payout distributor consumes.
func (uc UseCase) SnapshotView(ctx context.Context) (decimal.Decimal, []entities.HolderBalance, error) {
	holdings, err := uc.Ledger.ListHoldings(ctx)
	if err != nil {
		return decimal.Zero, nil, err
	}
	totals := make(map[string]decimal.Decimal)
	for _, holding := range holdings {
		totals[holding.Wallet] = totals[holding.Wallet].Add(holding.Balance)
	}
	holders := make([]entities.HolderBalance, 0, len(totals))
	supply := decimal.Zero
	for wallet, balance := range totals {
		holders = append(holders, entities.HolderBalance{Wallet: wallet, Balance: balance})
		supply = supply.Add(balance)
	}
	sort.Slice(holders, func(i, j int) bool {
		return holders[i].Wallet < holders[j].Wallet
	})
	return supply, holders, nil
}
