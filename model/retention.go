package model

import (
	"context"
	"time"

	gmw "github.com/Laisky/gin-middlewares/v6"
	"github.com/Laisky/zap"
)

const jobRetentionSweepInterval = time.Hour

// StartJobRetentionCleaner purges finished jobs older than retention until ctx
// is canceled. A non-positive retention disables the worker.
func StartJobRetentionCleaner(ctx context.Context, store *JobStore, retention time.Duration) {
	if store == nil || retention <= 0 {
		return
	}

	lg := gmw.GetLogger(ctx)
	sweep := func() {
		deleted, err := store.PurgeFinishedJobs(ctx, time.Now().Add(-retention))
		if err != nil {
			lg.Warn("failed to purge finished jobs", zap.Error(err))
			return
		}
		if deleted > 0 {
			lg.Info("purged finished jobs", zap.Int64("deleted", deleted), zap.Duration("retention", retention))
		}
	}

	go func() {
		sweep()

		ticker := time.NewTicker(jobRetentionSweepInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				sweep()
			}
		}
	}()
}
