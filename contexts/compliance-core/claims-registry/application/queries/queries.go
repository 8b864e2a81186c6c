package queries

import (
	"context"
	"errors"
	"strings"
	"time"

	"meridian/contexts/compliance-core/claims-registry/domain/entities"
	domainerrors "meridian/contexts/compliance-core/claims-registry/domain/errors"
	"meridian/contexts/compliance-core/claims-registry/domain/services"
	"meridian/contexts/compliance-core/claims-registry/ports"

	"github.com/shopspring/decimal"
)

type UseCase struct {
	Repository ports.Repository
	Clock      ports.Clock
}

// WalletStatus returns the stored record plus the derived compliance verdict.
func (uc UseCase) WalletStatus(ctx context.Context, wallet string) (entities.ClaimsRecord, bool, error) {
	record, err := uc.resolve(ctx, wallet)
	if err != nil {
		return entities.ClaimsRecord{}, false, err
	}
	return record, services.IsCompliant(record, uc.now()), nil
}

func (uc UseCase) IsWalletCompliant(ctx context.Context, wallet string) (bool, error) {
	record, err := uc.resolve(ctx, wallet)
	if err != nil {
		return false, err
	}
	return services.IsCompliant(record, uc.now()), nil
}

// IsTransferAllowed is the transfer admission preflight. It is a pure read:
// it never mutates state and never fails on a denial, so callers can branch
// on the structured reason.
func (uc UseCase) IsTransferAllowed(
	ctx context.Context,
	from string,
	to string,
	partition entities.Partition,
	amount decimal.Decimal,
) (entities.Decision, error) {
	fromRecord, err := uc.resolve(ctx, from)
	if err != nil {
		return entities.Decision{}, err
	}
	toRecord, err := uc.resolve(ctx, to)
	if err != nil {
		return entities.Decision{}, err
	}
	return services.EvaluateTransfer(fromRecord, toRecord, partition, amount, uc.now()), nil
}

// IsForcedTransferAllowed checks the destination-only rules that still apply
// to controller-forced remediation transfers.
func (uc UseCase) IsForcedTransferAllowed(
	ctx context.Context,
	to string,
	partition entities.Partition,
	amount decimal.Decimal,
) (entities.Decision, error) {
	toRecord, err := uc.resolve(ctx, to)
	if err != nil {
		return entities.Decision{}, err
	}
	return services.EvaluateForcedTransfer(toRecord, partition, amount, uc.now()), nil
}

// resolve loads the registry record, mapping an unknown wallet to a zero
// record so the policy treats it as claim-less rather than erroring.
func (uc UseCase) resolve(ctx context.Context, wallet string) (entities.ClaimsRecord, error) {
	trimmed := strings.TrimSpace(wallet)
	if entities.IsZeroWallet(trimmed) {
		return entities.ClaimsRecord{}, nil
	}
	record, err := uc.Repository.GetRecord(ctx, trimmed)
	if err != nil {
		if errors.Is(err, domainerrors.ErrWalletNotFound) {
			return entities.ClaimsRecord{Wallet: trimmed}, nil
		}
		return entities.ClaimsRecord{}, err
	}
	return record, nil
}

func (uc UseCase) now() time.Time {
	if uc.Clock == nil {
		return time.Now().UTC()
	}
	return uc.Clock.Now().UTC()
}
