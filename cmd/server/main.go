/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the lease payment engine server. Handles
  configuration, dependency injection, and graceful shutdown.

STARTUP SEQUENCE:
  1. Load configuration (optional YAML file + environment)
  2. Configure structured logging
  3. Initialize SQLite store
  4. Wire the engine (coordinator, sweeper, migrator, accrual, payout)
  5. Start the nightly scheduler
  6. Start server with graceful shutdown

COMMAND-LINE FLAGS:
  -config  Optional YAML config path; defaults apply without it

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop the job scheduler
  2. Stop accepting new connections
  3. Wait for active requests to complete (30s timeout)
  4. Close database connection
  5. Exit

EXAMPLES:
  # Run with defaults (data/lease.db, port 8080)
  ./server

  # Run with a config file
  ./server -config=./config.yaml

SEE ALSO:
  - api/server.go: Router configuration
  - api/handlers.go: HTTP handlers
  - store/sqlite/sqlite.go: Database implementation
*/
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/warp/lease-engine/api"
	"github.com/warp/lease-engine/approval"
	"github.com/warp/lease-engine/config"
	"github.com/warp/lease-engine/directory"
	"github.com/warp/lease-engine/payout"
	"github.com/warp/lease-engine/penalty"
	"github.com/warp/lease-engine/store/sqlite"
	"github.com/warp/lease-engine/sweep"
)

func main() {
	configPath := flag.String("config", "", "Optional YAML config path")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	log := newLogger(cfg.Logger)

	store, err := sqlite.New(cfg.Database.Path)
	if err != nil {
		log.WithError(err).Fatal("failed to initialize database")
	}
	defer store.Close()

	settings, err := seedSettings(cfg.Rules)
	if err != nil {
		log.WithError(err).Fatal("invalid business rules")
	}
	settingsProvider := directory.NewStaticSettings(settings)
	roles := directory.StaticRoles{"admin": directory.RoleSystemAdmin}
	expenses := &directory.StaticExpenses{}

	coordinator := &approval.Coordinator{
		Schedules: store,
		Requests:  store,
		Settings:  settingsProvider,
		Log:       log,
	}
	calculator := &payout.Calculator{
		Schedules: store,
		Expenses:  expenses,
		Records:   store.PayoutRecords(),
		Log:       log,
	}
	sweeper := &sweep.Sweeper{Store: store, Settings: settingsProvider, Log: log}
	migrator := &sweep.Migrator{Store: store, Settings: settingsProvider, Log: log}
	penalties := &penalty.Engine{Store: store, Settings: settingsProvider, Log: log}

	handler := &api.Handler{
		Schedules:   store,
		Requests:    store,
		Coordinator: coordinator,
		Calculator:  calculator,
		Sweeper:     sweeper,
		Migrator:    migrator,
		Penalties:   penalties,
		Settings:    settingsProvider,
		Roles:       roles,
		Log:         log,
	}

	scheduler := api.NewJobScheduler(sweeper, penalties, log)
	scheduler.CronSpec = cfg.Scheduler.CronSpec
	scheduler.Enabled = cfg.Scheduler.Enabled
	if err := scheduler.Start(); err != nil {
		log.WithError(err).Fatal("failed to start scheduler")
	}

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      api.NewRouter(handler),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.WithField("addr", server.Addr).Info("server starting")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.WithError(err).Fatal("server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down server")
	scheduler.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		log.WithError(err).Fatal("server forced to shutdown")
	}
	log.Info("server stopped")
}

func newLogger(cfg config.LoggerConfig) *logrus.Logger {
	log := logrus.New()
	if cfg.Format == "json" {
		log.SetFormatter(&logrus.JSONFormatter{})
	}
	if level, err := logrus.ParseLevel(cfg.Level); err == nil {
		log.SetLevel(level)
	}
	return log
}

// seedSettings converts the configured business rules into the initial
// organization settings.
func seedSettings(rules config.RulesConfig) (directory.Settings, error) {
	fee, err := decimal.NewFromString(rules.LateFeeAmount)
	if err != nil {
		return directory.Settings{}, fmt.Errorf("late_fee_amount: %w", err)
	}
	surcharge, err := decimal.NewFromString(rules.ChildSurcharge)
	if err != nil {
		return directory.Settings{}, fmt.Errorf("child_surcharge: %w", err)
	}
	return directory.Settings{
		DueDatePolicy:      rules.DueDatePolicy,
		LateFeeAmount:      fee,
		LateFeeStartDay:    rules.LateFeeStartDay,
		GracePeriodDays:    rules.GracePeriodDays,
		ChildSurcharge:     surcharge,
		MaxPastPaymentDays: rules.MaxPastPaymentDays,
	}, nil
}
