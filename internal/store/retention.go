package store

import (
	"context"
	"time"

	"go.uber.org/zap"
)

const sweepInterval = 1 * time.Hour

// RunRetention starts the hourly retention sweep in the background and
// returns immediately. The sweep itself is a dry run until cleanup is
// implemented.
func RunRetention(ctx context.Context, st MessageStore, days int) {
	if !st.Enabled() {
		return
	}
	tk := time.NewTicker(sweepInterval)
	go func() {
		defer tk.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-tk.C:
				if err := st.CleanupOldMessages(ctx, days); err != nil {
					zap.L().Warn("store.cleanup_failed", zap.Error(err))
				}
			}
		}
	}()
}
