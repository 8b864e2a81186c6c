package workers

import (
	"context"
	"log/slog"

	application "meridian/contexts/payout-core/distribution-engine/application"
	"meridian/contexts/payout-core/distribution-engine/application/commands"
	"meridian/contexts/payout-core/distribution-engine/ports"
)

// DistributionRunner resumes payout cycles whose distribution started but
// did not finish, driving remaining batches through the same idempotent
// command path an operator call would use.
type DistributionRunner struct {
	Commands   commands.UseCase
	Repository ports.Repository
	Logger     *slog.Logger
}

// RunOnce finds the unfinished cycle, and if a distribution run left a
// partial cursor behind, resumes it to completion. Cycles that have not
// started distributing are left for an explicit operator call.
func (r DistributionRunner) RunOnce(ctx context.Context) error {
	logger := application.ResolveLogger(r.Logger)

	cycle, exists, err := r.Repository.UnfinishedCycle(ctx)
	if err != nil {
		logger.Error("distribution runner cycle lookup failed",
			"event", "distribution_runner_lookup_failed",
			"module", "payout-core/distribution-engine",
			"layer", "worker",
			"error", err.Error(),
		)
		return err
	}
	if !exists || cycle.Cursor == 0 {
		logger.Debug("distribution runner found nothing to resume",
			"event", "distribution_runner_noop",
			"module", "payout-core/distribution-engine",
			"layer", "worker",
		)
		return nil
	}

	logger.Info("distribution runner resuming cycle",
		"event", "distribution_runner_resuming",
		"module", "payout-core/distribution-engine",
		"layer", "worker",
		"snapshot_id", cycle.SnapshotID,
		"cursor", cycle.Cursor,
	)
	result, err := r.Commands.Distribute(ctx, commands.DistributeCommand{SnapshotID: cycle.SnapshotID})
	if err != nil {
		logger.Error("distribution runner resume failed",
			"event", "distribution_runner_resume_failed",
			"module", "payout-core/distribution-engine",
			"layer", "worker",
			"snapshot_id", cycle.SnapshotID,
			"error", err.Error(),
		)
		return err
	}
	logger.Info("distribution runner completed cycle",
		"event", "distribution_runner_completed",
		"module", "payout-core/distribution-engine",
		"layer", "worker",
		"snapshot_id", result.SnapshotID,
		"total_paid", result.TotalPaid.String(),
		"residual", result.Residual.String(),
	)
	return nil
}
