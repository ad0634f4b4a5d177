package background

import (
	"context"
	"log/slog"
)

// MaintenanceJobName is the lock and log name of the daily sweep
const MaintenanceJobName = "daily-maintenance"

// SubscriptionSweeper demotes users whose premium plan ran out
type SubscriptionSweeper interface {
	DemoteExpired(ctx context.Context) int64
}

// RecycleSweeper purges recycled records past their retention
type RecycleSweeper interface {
	SweepExpired(ctx context.Context) int64
}

// MaintenanceJob is the daily sweep: subscriptions first, then the recycle bin
type MaintenanceJob struct {
	subscriptions SubscriptionSweeper
	records       RecycleSweeper
	logger        *slog.Logger
}

// NewMaintenanceJob creates a new MaintenanceJob
func NewMaintenanceJob(subscriptions SubscriptionSweeper, records RecycleSweeper, logger *slog.Logger) *MaintenanceJob {
	return &MaintenanceJob{subscriptions: subscriptions, records: records, logger: logger}
}

// Run performs both sweeps. A cancelled context skips the recycle sweep.
func (j *MaintenanceJob) Run(ctx context.Context) {
	demoted := j.subscriptions.DemoteExpired(ctx)

	if ctx.Err() != nil {
		j.logger.Warn("maintenance cancelled before recycle sweep", slog.Any("error", ctx.Err()))
		return
	}

	purged := j.records.SweepExpired(ctx)
	j.logger.Info("maintenance completed",
		slog.Int64("users_demoted", demoted),
		slog.Int64("records_purged", purged))
}
