package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// Task names as they appear under scheduler.tasks in the configuration.
const (
	TaskMediaCleanup   = "media_cleanup"
	TaskSQLMaintenance = "sql_maintenance"
)

const taskTimeout = 5 * time.Minute

// TaskFunc is one scheduled task. It should respect ctx for cancellation.
type TaskFunc func(ctx context.Context) error

// MaintenanceStore is the media store surface the tasks need.
// *media.Store implements it.
type MaintenanceStore interface {
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int, error)
	RunSQLMaintenance(ctx context.Context) error
}

// TaskDeps contains the dependencies of the scheduled tasks.
type TaskDeps struct {
	Logger    *slog.Logger
	Store     MaintenanceStore
	Retention time.Duration
	// Now defaults to time.Now.
	Now func() time.Time
}

// RegisterAllTasks returns every task keyed by its configuration name.
func RegisterAllTasks(deps TaskDeps) map[string]TaskFunc {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	return map[string]TaskFunc{
		TaskMediaCleanup:   newMediaCleanupTask(deps),
		TaskSQLMaintenance: newSQLMaintenanceTask(deps),
	}
}

// newMediaCleanupTask deletes artifacts older than the retention window.
func newMediaCleanupTask(deps TaskDeps) TaskFunc {
	log := deps.Logger.With("task", TaskMediaCleanup)

	return func(ctx context.Context) error {
		if deps.Retention <= 0 {
			log.DebugContext(ctx, "Media retention disabled, nothing to clean")
			return nil
		}
		ctx, cancel := context.WithTimeout(ctx, taskTimeout)
		defer cancel()

		cutoff := deps.Now().Add(-deps.Retention)
		n, err := deps.Store.DeleteOlderThan(ctx, cutoff)
		if err != nil {
			return fmt.Errorf("media cleanup failed: %w", err)
		}
		log.InfoContext(ctx, "Media cleanup completed", "removed", n, "cutoff", cutoff)
		return nil
	}
}

func newSQLMaintenanceTask(deps TaskDeps) TaskFunc {
	log := deps.Logger.With("task", TaskSQLMaintenance)

	return func(ctx context.Context) error {
		ctx, cancel := context.WithTimeout(ctx, taskTimeout)
		defer cancel()

		startTime := time.Now()
		if err := deps.Store.RunSQLMaintenance(ctx); err != nil {
			log.ErrorContext(ctx, "SQL maintenance task failed", "error", err, "duration", time.Since(startTime))
			return fmt.Errorf("sql maintenance failed: %w", err)
		}
		log.InfoContext(ctx, "SQL maintenance completed", "duration", time.Since(startTime))
		return nil
	}
}
