package scheduler

import (
	"time"

	"minibank-core/internal/jobs"
	"minibank-core/internal/logger"

	"github.com/robfig/cron/v3"
)

// Scheduler manages cron job scheduling
type Scheduler struct {
	cron *cron.Cron
	jobs *jobs.JobRunner
}

// NewScheduler creates a new scheduler with the provided job runner
func NewScheduler(jobRunner *jobs.JobRunner) *Scheduler {
	// Create cron with UTC timezone and seconds precision
	c := cron.New(
		cron.WithLocation(time.UTC),
		cron.WithSeconds(),
	)

	s := &Scheduler{
		cron: c,
		jobs: jobRunner,
	}

	s.registerJobs()
	return s
}

func (s *Scheduler) registerJobs() {
	cfg := s.jobs.Config().Scheduler

	if _, err := s.cron.AddFunc(cfg.ReconcileStaffLoad, s.jobs.ReconcileStaffLoad); err != nil {
		logger.Error("Failed to register ReconcileStaffLoad job", "error", err)
	}

	if _, err := s.cron.AddFunc(cfg.ExpireStaleCounterDeposits, s.jobs.ExpireStaleCounterDeposits); err != nil {
		logger.Error("Failed to register ExpireStaleCounterDeposits job", "error", err)
	}

	logger.Info("Cron jobs registered", "count", len(s.cron.Entries()))
}

// Start begins the cron scheduler
func (s *Scheduler) Start() {
	logger.Info("Starting cron scheduler...")
	s.cron.Start()
	logger.Info("Cron scheduler started successfully")
}

// Stop gracefully stops the cron scheduler, waiting for running jobs
func (s *Scheduler) Stop() {
	logger.Info("Stopping cron scheduler...")
	ctx := s.cron.Stop()
	<-ctx.Done()
	logger.Info("Cron scheduler stopped")
}

// EntryCount returns the number of registered jobs
func (s *Scheduler) EntryCount() int {
	return len(s.cron.Entries())
}
