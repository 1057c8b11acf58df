package pipeline

import (
	"context"

	"ritualsync/internal/external/backend"
	"ritualsync/internal/fieldmap"
	"ritualsync/internal/localstore"
	"ritualsync/internal/logging"
	"ritualsync/internal/notifications"
	"ritualsync/internal/ritual"
	"ritualsync/internal/syncengine"
)

// SyncRequest selects a sync pass.
type SyncRequest struct {
	Direction syncengine.Direction
	DryRun    bool
}

// Sync runs one sync pass under the run lock.
func (r *Runner) Sync(ctx context.Context, req SyncRequest) (syncengine.Report, error) {
	ctx, release, err := r.begin(ctx)
	if err != nil {
		return syncengine.Report{}, err
	}
	defer release()

	report, err := r.sync(ctx, req)
	if err != nil {
		r.notifyFailure(ctx, "sync "+string(req.Direction), err)
		return report, err
	}
	return report, nil
}

func (r *Runner) sync(ctx context.Context, req SyncRequest) (syncengine.Report, error) {
	handle, err := backend.Open(r.cfg, r.logger)
	if err != nil {
		return syncengine.Report{}, err
	}
	defer handle.Close()

	engine := syncengine.New(
		localstore.New(r.cfg.Paths.LocalStore, r.logger),
		handle,
		fieldmap.Default(r.logger),
		syncengine.Options{
			PublishStatus: ritual.Status(r.cfg.Sync.PublishStatus),
			BatchSize:     r.cfg.External.BatchSize,
			DryRun:        req.DryRun,
		},
		r.logger,
	)
	started := r.now()
	logging.WithContext(ctx, r.logger).Info("sync starting",
		logging.String("direction", string(req.Direction)),
		logging.String("backend", handle.Name),
		logging.String("location", handle.Location),
		logging.Bool("dry_run", req.DryRun),
	)
	report, err := engine.Sync(ctx, req.Direction)
	if err != nil {
		return report, err
	}
	if !req.DryRun {
		summary := notifications.SyncSummary{
			Direction:     string(report.Direction),
			Created:       report.Created,
			Updated:       report.Updated,
			Skipped:       report.Skipped,
			FailedBatches: report.FailedBatches,
			Duration:      r.now().Sub(started),
		}
		if nerr := r.notifier.NotifySyncCompleted(ctx, summary); nerr != nil {
			r.notificationFailed(ctx, nerr)
		}
	}
	return report, nil
}
