package main

import (
	"database/sql"
	"flag"
	"fmt"
	"log"
	"os"

	_ "github.com/lib/pq"

	"minibank-core/internal/config"
	"minibank-core/internal/events"
	"minibank-core/internal/jobs"
	"minibank-core/internal/ledgerclient"
	"minibank-core/internal/logger"
	"minibank-core/internal/repository/postgres"
	"minibank-core/internal/service"
)

// cronjob runs a maintenance job once against the orchestrator database, for
// operators and external schedulers. Staff load reconciliation only makes
// sense inside the orchestrator process and is not offered here.
func main() {
	// Parse command-line flags
	configPath := flag.String("config", "config/orchestrator.dev.yaml", "Path to configuration file")
	runOnce := flag.String("run-once", "expire-stale-counter-deposits", "Job to run once and exit")
	flag.Parse()

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if cfg.Store.Driver != "postgres" {
		log.Fatalf("cronjob needs the postgres store, got %q", cfg.Store.Driver)
	}

	// Initialize logger
	logger.Initialize(cfg.Log.Level, cfg.Log.Format)
	logger.Info("Starting MiniBank Cronjob Runner...", "log_level", cfg.Log.Level)

	// Initialize Database
	logger.Info("Connecting to database...", "host", cfg.Database.Host, "port", cfg.Database.Port)
	db, err := sql.Open("postgres", cfg.GetDatabaseConnectionString())
	if err != nil {
		logger.Error("Failed to connect to database", "error", err)
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	// Test database connection
	if err := db.Ping(); err != nil {
		logger.Error("Failed to ping database", "error", err)
		log.Fatalf("Failed to ping database: %v", err)
	}
	logger.Info("Database connection established")

	store := postgres.NewStore(db)
	sink, err := events.NewFromConfig(cfg.Events)
	if err != nil {
		log.Fatalf("Failed to start event sink: %v", err)
	}
	defer sink.Close()

	counterDeposits := service.NewCounterDepositService(
		ledgerclient.New(cfg.LedgerClient),
		store.TransactionRepository,
		store.CounterRepository,
		service.NewStaffLoad(),
		sink,
	)
	jobRunner := jobs.NewJobRunner(counterDeposits, cfg)

	logger.Info("Running job once", "job", *runOnce)
	if !runJobOnce(jobRunner, *runOnce) {
		os.Exit(1)
	}
	logger.Info("Job execution completed", "job", *runOnce)
}

// runJobOnce runs a specific job once and reports whether the name was known
func runJobOnce(jobRunner *jobs.JobRunner, jobName string) bool {
	switch jobName {
	case "expire-stale-counter-deposits":
		jobRunner.ExpireStaleCounterDeposits()
	default:
		logger.Error("Unknown job name", "job", jobName)
		fmt.Printf("Available jobs:\n")
		fmt.Printf("  - expire-stale-counter-deposits\n")
		return false
	}
	return true
}
