package main

import (
	"context"
	"database/sql"
	"errors"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	httpapi "minibank-core/internal/api/http"
	"minibank-core/internal/config"
	"minibank-core/internal/events"
	"minibank-core/internal/jobs"
	"minibank-core/internal/ledgerclient"
	"minibank-core/internal/logger"
	"minibank-core/internal/repository"
	"minibank-core/internal/repository/memory"
	"minibank-core/internal/repository/postgres"
	"minibank-core/internal/scheduler"
	"minibank-core/internal/service"

	"github.com/gorilla/mux"
	_ "github.com/lib/pq"
)

func main() {
	// Parse command-line flags
	configPath := flag.String("config", "config/orchestrator.dev.yaml", "Path to configuration file")
	flag.Parse()

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if err := cfg.ValidateOrchestrator(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	// Initialize logger
	logger.Initialize(cfg.Log.Level, cfg.Log.Format)
	logger.Info("Starting MiniBank Orchestrator...", "log_level", cfg.Log.Level, "log_format", cfg.Log.Format)
	logger.Info("Ledger client configuration", "base_url", cfg.LedgerClient.BaseURL, "timeout", cfg.LedgerTimeout().String())

	// Initialize Repositories
	var (
		transactions repository.TransactionRepository
		counters     repository.CounterRepository
	)
	if cfg.Store.Driver == "memory" {
		transactions = memory.NewTransactionStore()
		counters = memory.NewCounterStore()
	} else {
		logger.Info("Connecting to database...", "host", cfg.Database.Host, "port", cfg.Database.Port, "database", cfg.Database.Database)
		db, err := sql.Open("postgres", cfg.GetDatabaseConnectionString())
		if err != nil {
			log.Fatalf("Failed to connect to database: %v", err)
		}
		defer db.Close()

		if err := db.Ping(); err != nil {
			logger.Error("Failed to ping database", "error", err)
			log.Fatalf("Failed to ping database: %v", err)
		}
		logger.Info("Database connection established")
		store := postgres.NewStore(db)
		transactions, counters = store.TransactionRepository, store.CounterRepository
	}

	// Initialize event sink
	sink, err := events.NewFromConfig(cfg.Events)
	if err != nil {
		log.Fatalf("Failed to start event sink: %v", err)
	}
	defer sink.Close()

	// Initialize Services
	ledger := ledgerclient.New(cfg.LedgerClient)
	staffLoad := service.NewStaffLoad()
	if err := staffLoad.Seed(context.Background(), transactions); err != nil {
		log.Fatalf("Failed to seed staff load: %v", err)
	}

	transactionService := service.NewTransactionService(ledger, transactions, sink)
	counterDepositService := service.NewCounterDepositService(ledger, transactions, counters, staffLoad, sink)

	// The scheduler runs in-process so reconciliation updates the live staff load.
	cronScheduler := scheduler.NewScheduler(jobs.NewJobRunner(counterDepositService, cfg))
	cronScheduler.Start()

	router := mux.NewRouter()
	httpapi.RegisterOrchestratorRoutes(router, transactionService, counterDepositService)

	srv := &http.Server{
		Addr:         cfg.GetServerAddress(),
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeoutSeconds) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeoutSeconds) * time.Second,
	}

	go func() {
		logger.Info("Orchestrator HTTP server listening", "address", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("HTTP server error", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logger.Info("Shutting down orchestrator...")
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("Graceful shutdown failed", "error", err)
	}
	cronScheduler.Stop()
	logger.Info("Orchestrator stopped")
}
