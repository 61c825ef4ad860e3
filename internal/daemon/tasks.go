package daemon

import (
	"context"
	"log/slog"
	"time"

	"teamgate/internal/service"
)

const loginAttemptRetention = 7 * 24 * time.Hour

// SweepTask runs the reconciliation scheduling loop under supervision.
func SweepTask(sweeper *service.SweepService) DaemonFunc {
	return func(ctx context.Context, name string) error {
		return sweeper.Run(ctx)
	}
}

// LoginAttemptPruneTask periodically drops old rows from the login attempt
// ledger so the brute force counters stay cheap to query.
func LoginAttemptPruneTask(auth *service.AuthService, logger *slog.Logger) DaemonFunc {
	return func(ctx context.Context, name string) error {
		ticker := time.NewTicker(1 * time.Hour)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return nil
			case <-ticker.C:
				pruned, err := auth.PruneOld(ctx, loginAttemptRetention)
				if err != nil {
					logger.Error("Failed to prune login attempts", "error", err)
					// continue, but log for audit
					continue
				}
				if pruned > 0 {
					logger.Info("Pruned old login attempts", "count", pruned)
				}
			}
		}
	}
}
