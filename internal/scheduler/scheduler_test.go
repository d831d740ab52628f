package scheduler

import (
	"testing"

	"minibank-core/internal/config"
	"minibank-core/internal/jobs"

	"github.com/stretchr/testify/assert"
)

func TestNewScheduler(t *testing.T) {
	t.Run("RegistersBothJobs", func(t *testing.T) {
		cfg := &config.Config{}
		cfg.Scheduler.ReconcileStaffLoad = "0 */5 * * * *"
		cfg.Scheduler.ExpireStaleCounterDeposits = "0 0 1 * * *"

		s := NewScheduler(jobs.NewJobRunner(nil, cfg))
		assert.Equal(t, 2, s.EntryCount())

		s.Start()
		s.Stop()
	})

	t.Run("InvalidSpecIsSkipped", func(t *testing.T) {
		cfg := &config.Config{}
		cfg.Scheduler.ReconcileStaffLoad = "not a cron spec"
		cfg.Scheduler.ExpireStaleCounterDeposits = "0 0 1 * * *"

		s := NewScheduler(jobs.NewJobRunner(nil, cfg))
		assert.Equal(t, 1, s.EntryCount())
	})
}
