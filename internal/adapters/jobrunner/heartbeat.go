package jobrunner

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/innovites/cableaudit/internal/core"
)

// startHeartbeat extends the lease every HeartbeatInterval until ctx ends.
// When the store reports the lease gone, lost is set and the run is cancelled.
func (r *Runner) startHeartbeat(
	ctx context.Context,
	cancelRun context.CancelFunc,
	id, owner string,
	logger *slog.Logger,
) *atomic.Bool {
	lost := &atomic.Bool{}
	interval := r.lease.HeartbeatInterval()

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}

			ok, err := r.jobs.Heartbeat(ctx, core.HeartbeatParams{
				ID:    id,
				Owner: owner,
				Lease: r.lease.Lease(),
			})
			if err != nil {
				if ctx.Err() == nil {
					logger.WarnContext(ctx, "heartbeat failed", "error", err)
				}
				continue
			}
			if !ok {
				lost.Store(true)
				cancelRun()
				return
			}
		}
	}()

	return lost
}
