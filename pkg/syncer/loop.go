package syncer

import (
	"context"
	"time"

	"leadsync/pkg/logger"
)

// Run polls on the configured fixed interval until ctx is canceled.
// There is no backoff on failure and no queuing of missed ticks: a tick
// arriving while a refresh is in flight is simply dropped by the
// re-entrancy guard in Refresh.
func (s *Syncer) Run(ctx context.Context) {
	ticker := time.NewTicker(s.opts.PollInterval)
	defer ticker.Stop()
	logger.Info("sync_loop_started", "interval", s.opts.PollInterval.String())
	for {
		select {
		case <-ctx.Done():
			logger.Info("sync_loop_stopped")
			return
		case <-ticker.C:
			_ = s.Refresh(ctx)
		}
	}
}
