package main

import (
	"context"
	"net/http"
	"os"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/rxera/rxledger-backend/api/routes"
	"github.com/rxera/rxledger-backend/internal/dashboard"
	"github.com/rxera/rxledger-backend/internal/inventory"
	"github.com/rxera/rxledger-backend/internal/ledger"
	"github.com/rxera/rxledger-backend/internal/notifier"
	"github.com/rxera/rxledger-backend/internal/patients"
	"github.com/rxera/rxledger-backend/internal/prescriptions"
	"github.com/rxera/rxledger-backend/internal/sequencer"
	"github.com/rxera/rxledger-backend/internal/translog"
	"github.com/rxera/rxledger-backend/pkg/config"
	"github.com/rxera/rxledger-backend/pkg/db"
	"github.com/rxera/rxledger-backend/pkg/logger"
	"github.com/rxera/rxledger-backend/pkg/metrics"
	"github.com/rxera/rxledger-backend/pkg/migrate"
	"github.com/rxera/rxledger-backend/pkg/redis"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(context.Background(), cfg.DB, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient); err != nil {
		logg.Error(context.Background(), "failed to run dev migrations", err)
		os.Exit(1)
	}

	redisClient, err := redis.New(context.Background(), cfg.Redis, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	ledgerMetrics := metrics.NewLedgerMetrics(registry)

	broker := notifier.NewBroker(cfg.Notifier.SubscriberBuffer, logg)
	defer broker.Close()

	sequencerService, err := sequencer.NewService(dbClient.DB())
	if err != nil {
		logg.Error(context.Background(), "failed to create sequencer service", err)
		os.Exit(1)
	}

	ledgerService, err := ledger.NewService(ledger.ServiceParams{
		Store:          ledger.NewGormStore(dbClient.DB()),
		Events:         broker,
		Metrics:        ledgerMetrics,
		Logger:         logg,
		CommitAttempts: cfg.Ledger.CommitAttempts,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create ledger service", err)
		os.Exit(1)
	}

	translogService, err := translog.NewService(translog.NewRepo(dbClient.DB()))
	if err != nil {
		logg.Error(context.Background(), "failed to create transaction log service", err)
		os.Exit(1)
	}

	inventoryService, err := inventory.NewService(inventory.NewRepository(dbClient.DB()), dbClient, sequencerService, broker)
	if err != nil {
		logg.Error(context.Background(), "failed to create inventory service", err)
		os.Exit(1)
	}

	patientRepo := patients.NewRepository(dbClient.DB())
	patientService, err := patients.NewService(patientRepo, sequencerService, broker)
	if err != nil {
		logg.Error(context.Background(), "failed to create patient service", err)
		os.Exit(1)
	}

	prescriptionService, err := prescriptions.NewService(prescriptions.ServiceParams{
		Repo:     prescriptions.NewRepository(dbClient.DB()),
		DBClient: dbClient,
		Ledger:   ledgerService,
		Codes:    sequencerService,
		Patients: patientRepo,
		Events:   broker,
		Logger:   logg,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create prescription service", err)
		os.Exit(1)
	}

	dashboardService, err := dashboard.NewService(dbClient.DB())
	if err != nil {
		logg.Error(context.Background(), "failed to create dashboard service", err)
		os.Exit(1)
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env":  cfg.App.Env,
		"addr": addr,
	})
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr: addr,
		Handler: routes.NewRouter(
			cfg,
			logg,
			dbClient,
			redisClient,
			registry,
			broker,
			inventoryService,
			ledgerService,
			translogService,
			prescriptionService,
			patientService,
			dashboardService,
		),
	}

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logg.Error(ctx, "api server stopped unexpectedly", err)
		os.Exit(1)
	}
}
