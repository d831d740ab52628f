package jobs

import (
	"minibank-core/internal/config"
	"minibank-core/internal/logger"
	"minibank-core/internal/service"
)

// JobRunner coordinates all scheduled jobs
type JobRunner struct {
	counterDeposits service.CounterDepositService
	config          *config.Config
}

// NewJobRunner creates a new job runner with all dependencies
func NewJobRunner(counterDeposits service.CounterDepositService, cfg *config.Config) *JobRunner {
	return &JobRunner{
		counterDeposits: counterDeposits,
		config:          cfg,
	}
}

// Config returns the configuration the jobs were built with
func (jr *JobRunner) Config() *config.Config {
	return jr.config
}

// runWithRecovery wraps job execution with panic recovery
func (jr *JobRunner) runWithRecovery(jobName string, jobFunc func()) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("Job panicked", "job", jobName, "panic", r)
		}
	}()

	logger.Info("Starting job", "job", jobName)
	jobFunc()
	logger.Info("Job completed", "job", jobName)
}
