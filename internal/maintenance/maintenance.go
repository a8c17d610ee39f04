// Package maintenance runs the periodic pruning job that keeps the
// local store from accumulating expired conflict windows.
package maintenance

import (
	"context"
	"fmt"
	"time"

	"github.com/adhocore/gronx"

	"leadsync/pkg/config"
	"leadsync/pkg/logger"
	"leadsync/pkg/store"
)

// Start launches the scheduler if enabled. Returns a cancel func.
func Start(ctx context.Context, cfg *config.Config) (context.CancelFunc, error) {
	m := cfg.Maintenance
	if !m.Enabled {
		logger.Info("maintenance_disabled")
		return func() {}, nil
	}

	cronExpr := m.Cron
	if cronExpr == "" {
		cronExpr = "0 2 * * *"
	}
	if !gronx.IsValid(cronExpr) {
		logger.Error("maintenance_invalid_cron", "cron", m.Cron)
		return nil, fmt.Errorf("invalid maintenance cron expression: %s", m.Cron)
	}

	logger.Info("maintenance_enabled", "cron", cronExpr, "retention", m.DeletionRetention)
	ctx2, cancel := context.WithCancel(ctx)
	go runScheduler(ctx2, cfg, cronExpr)
	return cancel, nil
}

// RunOnce prunes expired name-edit windows and deletion windows past
// their retention. Exposed for on-demand runs.
func RunOnce(cfg *config.Config) error {
	now := time.Now()

	nameWindow := time.Duration(cfg.Sync.NameEditWindowSeconds) * time.Second
	nPruned, err := store.PruneNameEdits(now.Add(-nameWindow).UnixMilli())
	if err != nil {
		return fmt.Errorf("prune name edits: %w", err)
	}

	retention := 168 * time.Hour
	if d, err := time.ParseDuration(cfg.Maintenance.DeletionRetention); err == nil && d > 0 {
		retention = d
	}
	cutoff := now.Add(-retention).UnixMilli()

	// read marks for long-deleted chats go with their window
	wins, err := store.DeletedWindow()
	if err != nil {
		return fmt.Errorf("list deletions: %w", err)
	}
	for id, ts := range wins {
		if ts < cutoff {
			if err := store.DeleteRead(id); err != nil {
				logger.Warn("read_mark_prune_failed", "chat", id, "error", err)
			}
		}
	}

	dPruned, err := store.PruneDeleted(cutoff)
	if err != nil {
		return fmt.Errorf("prune deletions: %w", err)
	}

	logger.Info("maintenance_run_done", "name_windows", nPruned, "deletions", dPruned)
	return nil
}

// runScheduler sleeps until the next cron tick and runs the prune job.
func runScheduler(ctx context.Context, cfg *config.Config, cronExpr string) {
	for {
		select {
		case <-ctx.Done():
			logger.Info("maintenance_scheduler_stopping")
			return
		default:
		}

		now := time.Now().UTC()
		next, err := gronx.NextTickAfter(cronExpr, now, false)
		if err != nil {
			logger.Error("maintenance_nexttick_failed", "cron", cronExpr, "error", err)
			select {
			case <-time.After(30 * time.Second):
			case <-ctx.Done():
				return
			}
			continue
		}

		wait := time.Until(next)
		if wait <= 0 {
			wait = time.Second
		}
		select {
		case <-time.After(wait):
			if err := RunOnce(cfg); err != nil {
				logger.Error("maintenance_run_error", "error", err)
			}
		case <-ctx.Done():
			logger.Info("maintenance_scheduler_stopping")
			return
		}
	}
}
