package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/andresvelez/shortreel-backend/internal/audit"
	"github.com/andresvelez/shortreel-backend/internal/captions"
	"github.com/andresvelez/shortreel-backend/internal/cron"
	"github.com/andresvelez/shortreel-backend/internal/media"
	"github.com/andresvelez/shortreel-backend/internal/processing"
	"github.com/andresvelez/shortreel-backend/internal/publishing"
	"github.com/andresvelez/shortreel-backend/internal/scoring"
	"github.com/andresvelez/shortreel-backend/internal/sysconfig"
	"github.com/andresvelez/shortreel-backend/internal/uplink"
	"github.com/andresvelez/shortreel-backend/pkg/config"
	"github.com/andresvelez/shortreel-backend/pkg/db"
	"github.com/andresvelez/shortreel-backend/pkg/enums"
	"github.com/andresvelez/shortreel-backend/pkg/logger"
	"github.com/andresvelez/shortreel-backend/pkg/metrics"
	"github.com/andresvelez/shortreel-backend/pkg/migrate"
	"github.com/andresvelez/shortreel-backend/pkg/redis"
)

const lockKeyFormat = "sr:worker:lock:%s"

func main() {
	logg := logger.New(logger.Options{ServiceName: "worker"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "worker",
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

	pipelineMetrics := metrics.NewPipelineMetrics(prometheus.DefaultRegisterer)

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

	engine, err := captions.NewEngine(
		captions.Params{
			Canvas: captions.Canvas{
				Width:  int(cfg.Captions.CanvasWidth),
				Height: int(cfg.Captions.CanvasHeight),
			},
			WordSpacing:    int(cfg.Captions.WordSpacing),
			LineSpacing:    int(cfg.Captions.LineSpacing),
			TopOffset:      int(cfg.Captions.TopOffset),
			LineHeight:     int(cfg.Captions.FontSize),
			HighlightCount: cfg.Captions.HighlightCount,
		},
		captions.FixedWidthMeasurer{CharWidth: int(cfg.Captions.FontSize) / 2},
		captions.SeededHighlight{Seed: cfg.Captions.HighlightSeed},
	)
	if err != nil {
		logg.Error(context.Background(), "failed to create caption engine", err)
		os.Exit(1)
	}

	narrator, err := media.NewCLINarrator(cfg.Media, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create narrator", err)
		os.Exit(1)
	}

	renderer, err := media.NewFFmpegRenderer(cfg.Media, cfg.Captions, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create renderer", err)
		os.Exit(1)
	}

	machineService, err := processing.NewService(
		processing.NewRepository(dbClient.DB()),
		auditService,
		engine,
		narrator,
		media.NewFileLibrary(cfg.Media),
		renderer,
		logg,
		pipelineMetrics,
		cfg.Pipeline.LeaseTimeout,
		cfg.Captions.WordsPerLine,
	)
	if err != nil {
		logg.Error(context.Background(), "failed to create processing service", err)
		os.Exit(1)
	}

	platforms, uploaders, fetchers, err := buildRelays(cfg.Publishing)
	if err != nil {
		logg.Error(context.Background(), "failed to create platform relays", err)
		os.Exit(1)
	}

	publisherService, err := publishing.NewService(
		publishing.NewRepository(dbClient.DB()),
		auditService,
		uploaders,
		fetchers,
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

	registry, err := buildRegistry(cfg, logg, selectorService, machineService, publisherService, auditService)
	if err != nil {
		logg.Error(context.Background(), "failed to build job registry", err)
		os.Exit(1)
	}

	lock, err := cron.NewRedisLock(redisClient, lockKey(cfg.App.Env), 0)
	if err != nil {
		logg.Error(context.Background(), "failed to create worker lock", err)
		os.Exit(1)
	}

	service, err := cron.NewService(cron.ServiceParams{
		Logger:   logg,
		Registry: registry,
		Lock:     lock,
		Metrics:  pipelineMetrics,
		Interval: cfg.Pipeline.PollInterval,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create worker service", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{"env": cfg.App.Env})
	logg.Info(ctx, "starting pipeline worker")

	if err := service.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(ctx, "pipeline worker stopped unexpectedly", err)
		os.Exit(1)
	}

	logg.Info(ctx, "pipeline worker shutting down gracefully")
}

func buildRelays(cfg config.PublishingConfig) ([]enums.Platform, map[enums.Platform]publishing.Uploader, map[enums.Platform]publishing.MetricsFetcher, error) {
	type relay struct {
		endpoint string
		apiKey   string
	}
	relays := map[enums.Platform]relay{
		enums.PlatformYouTube: {endpoint: cfg.YouTubeEndpoint, apiKey: cfg.YouTubeAPIKey},
		enums.PlatformTikTok:  {endpoint: cfg.TikTokEndpoint, apiKey: cfg.TikTokAPIKey},
	}

	platforms := make([]enums.Platform, 0, len(cfg.Platforms))
	uploaders := make(map[enums.Platform]publishing.Uploader)
	fetchers := make(map[enums.Platform]publishing.MetricsFetcher)

	for _, raw := range cfg.Platforms {
		platform, err := enums.ParsePlatform(raw)
		if err != nil {
			return nil, nil, nil, err
		}
		platforms = append(platforms, platform)

		target := relays[platform]
		if target.endpoint == "" {
			continue
		}
		client, err := uplink.NewRelayClient(target.endpoint, uplink.WithAPIKey(target.apiKey))
		if err != nil {
			return nil, nil, nil, err
		}
		uploaders[platform] = client
		fetchers[platform] = client
	}

	return platforms, uploaders, fetchers, nil
}

func buildRegistry(
	cfg *config.Config,
	logg *logger.Logger,
	selector scoring.Service,
	machine processing.Service,
	publisher publishing.Service,
	auditor audit.Service,
) (*cron.Registry, error) {
	processingJob, err := cron.NewProcessingJob(cron.ProcessingJobParams{
		Logger:    logg,
		Selector:  selector,
		Machine:   machine,
		BatchSize: cfg.Pipeline.SelectionBatch,
	})
	if err != nil {
		return nil, err
	}

	reaperJob, err := cron.NewLeaseReaperJob(cron.LeaseReaperJobParams{
		Logger:  logg,
		Machine: machine,
	})
	if err != nil {
		return nil, err
	}

	scheduleJob, err := cron.NewScheduleJob(cron.ScheduleJobParams{
		Logger:    logg,
		Publisher: publisher,
	})
	if err != nil {
		return nil, err
	}

	dispatchJob, err := cron.NewDispatchJob(cron.DispatchJobParams{
		Logger:    logg,
		Publisher: publisher,
	})
	if err != nil {
		return nil, err
	}

	engagementJob, err := cron.NewEngagementJob(cron.EngagementJobParams{
		Logger:    logg,
		Publisher: publisher,
	})
	if err != nil {
		return nil, err
	}

	retentionJob, err := cron.NewRetentionJob(cron.RetentionJobParams{
		Logger:    logg,
		Auditor:   auditor,
		Machine:   machine,
		Retention: cfg.Pipeline.RetentionDays,
	})
	if err != nil {
		return nil, err
	}

	return cron.NewRegistry(
		reaperJob,
		processingJob,
		scheduleJob,
		dispatchJob,
		engagementJob,
		retentionJob,
	), nil
}

func lockKey(env string) string {
	if env == "" {
		env = "local"
	}
	return fmt.Sprintf(lockKeyFormat, env)
}
