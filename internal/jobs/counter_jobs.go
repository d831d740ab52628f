package jobs

import (
	"context"
	"time"

	"minibank-core/internal/logger"
)

const jobTimeout = 2 * time.Minute

// ReconcileStaffLoad recomputes the in-memory pending counts from the store,
// correcting any drift from crashes or other instances.
func (jr *JobRunner) ReconcileStaffLoad() {
	jr.runWithRecovery("ReconcileStaffLoad", func() {
		ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
		defer cancel()

		if err := jr.counterDeposits.ReconcileLoad(ctx); err != nil {
			logger.Error("Failed to reconcile staff load", "error", err)
		}
	})
}

// ExpireStaleCounterDeposits cancels counter deposits left PENDING past the TTL
func (jr *JobRunner) ExpireStaleCounterDeposits() {
	jr.runWithRecovery("ExpireStaleCounterDeposits", func() {
		ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
		defer cancel()

		ttl := jr.config.PendingTTL()
		count, err := jr.counterDeposits.ExpireStale(ctx, ttl)
		if err != nil {
			logger.Error("Failed to expire stale counter deposits", "error", err, "expired", count)
			return
		}
		logger.Info("Expired stale counter deposits", "count", count, "ttl", ttl.String())
	})
}
