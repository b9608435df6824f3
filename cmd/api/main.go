package main

import (
	"context"
	"net/http"
	"os"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/andresvelez/shortreel-backend/api/routes"
	"github.com/andresvelez/shortreel-backend/internal/audit"
	"github.com/andresvelez/shortreel-backend/internal/ingest"
	"github.com/andresvelez/shortreel-backend/internal/processing"
	"github.com/andresvelez/shortreel-backend/internal/publishing"
	"github.com/andresvelez/shortreel-backend/internal/scoring"
	"github.com/andresvelez/shortreel-backend/internal/sysconfig"
	"github.com/andresvelez/shortreel-backend/pkg/config"
	"github.com/andresvelez/shortreel-backend/pkg/db"
	"github.com/andresvelez/shortreel-backend/pkg/enums"
	"github.com/andresvelez/shortreel-backend/pkg/logger"
	"github.com/andresvelez/shortreel-backend/pkg/metrics"
	"github.com/andresvelez/shortreel-backend/pkg/migrate"
	"github.com/andresvelez/shortreel-backend/pkg/redis"
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

	promRegistry := prometheus.NewRegistry()
	pipelineMetrics := metrics.NewPipelineMetrics(promRegistry)

	configService, err := sysconfig.NewService(sysconfig.NewRepository(dbClient.DB()), cfg.Pipeline, cfg.Publishing)
	if err != nil {
		logg.Error(context.Background(), "failed to create config service", err)
		os.Exit(1)
	}

	auditService, err := audit.NewService(audit.NewRepository(dbClient.DB()), logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create audit service", err)
		os.Exit(1)
	}

	selectorService, err := scoring.NewService(scoring.NewRepository(dbClient.DB()), configService, scoring.DefaultPolicy())
	if err != nil {
		logg.Error(context.Background(), "failed to create scoring service", err)
		os.Exit(1)
	}

	ingestService, err := ingest.NewService(ingest.NewRepository(dbClient.DB()), configService, auditService, scoring.DefaultPolicy(), logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create ingest service", err)
		os.Exit(1)
	}

	// Transition-only machine: the API requeues and inspects stories but
	// never renders, so the media dependencies stay nil.
	machineService, err := processing.NewService(
		processing.NewRepository(dbClient.DB()),
		auditService,
		nil,
		nil,
		nil,
		nil,
		logg,
		pipelineMetrics,
		cfg.Pipeline.LeaseTimeout,
		cfg.Captions.WordsPerLine,
	)
	if err != nil {
		logg.Error(context.Background(), "failed to create processing service", err)
		os.Exit(1)
	}

	platforms := make([]enums.Platform, 0, len(cfg.Publishing.Platforms))
	for _, raw := range cfg.Publishing.Platforms {
		platform, err := enums.ParsePlatform(raw)
		if err != nil {
			logg.Error(context.Background(), "invalid platform in config", err)
			os.Exit(1)
		}
		platforms = append(platforms, platform)
	}

	publisherService, err := publishing.NewService(
		publishing.NewRepository(dbClient.DB()),
		auditService,
		nil,
		nil,
		platforms,
		publishing.Window{
			StartHour:     cfg.Publishing.StartHour,
			EndHour:       cfg.Publishing.EndHour,
			IntervalHours: cfg.Publishing.IntervalHours,
		},
		cfg.Pipeline.MaxUploadAttempts,
		cfg.Pipeline.LeaseTimeout,
		logg,
		pipelineMetrics,
	)
	if err != nil {
		logg.Error(context.Background(), "failed to create publishing service", err)
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
			promRegistry,
			ingestService,
			selectorService,
			machineService,
			publisherService,
			configService,
			auditService,
		),
	}

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logg.Error(ctx, "api server stopped unexpectedly", err)
		os.Exit(1)
	}
}
