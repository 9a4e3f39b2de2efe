package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"github.com/printforge/printforge/config"
	"github.com/printforge/printforge/internal/adapters/printservice"
	"github.com/printforge/printforge/internal/core"
	"github.com/printforge/printforge/internal/data"
	"github.com/printforge/printforge/internal/observability/statsd"
	"github.com/printforge/printforge/internal/service"
)

// ServiceContainer holds all application services.
type ServiceContainer struct {
	Synchronizer *service.Synchronizer
	Reaper       *service.ReaperService
	Preparation  *service.PreparationService
	Submission   *service.SubmissionService
	Converters   *service.ConverterChain
	Metrics      *statsd.Client
}

// ServiceDeps groups dependencies for service initialization.
type ServiceDeps struct {
	Config      *config.AppConfig
	DB          *pgxpool.Pool
	RedisClient redis.UniversalClient
	Blobs       core.BlobRepository
	Logger      *slog.Logger
}

// NewServices wires repositories, adapters and services together.
func NewServices(deps *ServiceDeps) (*ServiceContainer, error) {
	if deps == nil || deps.Config == nil {
		return nil, errors.New("service deps and config are required")
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	cfg := deps.Config

	metrics, err := NewMetrics(cfg.Observability, logger)
	if err != nil {
		// Metrics are best-effort; the service runs without a sink.
		logger.Error("initialise statsd client failed", "error", err)
		metrics = nil
	}

	jobRepo := data.NewJobRepo(deps.DB)
	var cacheRepo core.CacheRepository
	if deps.RedisClient != nil {
		cacheRepo = data.NewRedisCacheRepo(deps.RedisClient)
	}

	printClient, err := printservice.NewClient(printservice.Config{
		BaseURL:      cfg.PrintService.BaseURL,
		Timeout:      cfg.PrintService.Timeout,
		MaxAttempts:  cfg.PrintService.MaxAttempts,
		RetryBackoff: cfg.PrintService.RetryBackoff,
		Logger:       logger,
	})
	if err != nil {
		return nil, fmt.Errorf("build print service client: %w", err)
	}

	webhooks := service.NewWebhookDispatcher(service.WebhookDispatcherOptions{
		Jobs:    jobRepo,
		Secret:  cfg.Webhook.Secret,
		Timeout: cfg.Webhook.Timeout,
		Logger:  logger,
		Metrics: metrics,
	})

	synchronizer, err := service.NewSynchronizer(service.SynchronizerOptions{
		Jobs:         jobRepo,
		PrintService: printClient,
		Webhooks:     webhooks,
		Config:       cfg.Sync,
		Logger:       logger,
		Metrics:      metrics,
	})
	if err != nil {
		return nil, fmt.Errorf("build synchronizer: %w", err)
	}

	preparation, err := service.NewPreparationService(service.PreparationOptions{
		Jobs:        jobRepo,
		Blobs:       deps.Blobs,
		Cache:       cacheRepo,
		EstimateTTL: cfg.Cache.EstimateTTL,
		Logger:      logger,
		Metrics:     metrics,
	})
	if err != nil {
		return nil, fmt.Errorf("build preparation service: %w", err)
	}

	submission, err := service.NewSubmissionService(service.SubmissionOptions{
		Jobs:         jobRepo,
		Preparation:  preparation,
		PrintService: printClient,
		Tracker:      synchronizer,
		Logger:       logger,
	})
	if err != nil {
		return nil, fmt.Errorf("build submission service: %w", err)
	}

	reaper, err := service.NewReaperService(service.ReaperOptions{
		Repo:    jobRepo,
		Blobs:   deps.Blobs,
		Config:  cfg.Reaper,
		Logger:  logger,
		Metrics: metrics,
	})
	if err != nil {
		return nil, fmt.Errorf("build reaper service: %w", err)
	}

	var converters *service.ConverterChain
	backends, err := service.ParseConverterBackends(cfg.Converters.Backends, cfg.Converters.Timeout)
	if err != nil {
		return nil, fmt.Errorf("parse converter backends: %w", err)
	}
	if len(backends) > 0 {
		converters = service.NewConverterChain(backends, logger)
	}

	return &ServiceContainer{
		Synchronizer: synchronizer,
		Reaper:       reaper,
		Preparation:  preparation,
		Submission:   submission,
		Converters:   converters,
		Metrics:      metrics,
	}, nil
}

// ServiceOrchestrationConfig contains configuration for service orchestration.
type ServiceOrchestrationConfig struct {
	Config   *config.AppConfig
	Services *ServiceContainer
	Logger   *slog.Logger
}

// RunServicesWithShutdown starts all enabled services and blocks until a
// termination signal or a service failure, then shuts everything down.
func RunServicesWithShutdown(cfg *ServiceOrchestrationConfig) error {
	if cfg == nil || cfg.Config == nil || cfg.Services == nil {
		return errors.New("service orchestration config is required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	enabled, err := cfg.Config.GetEnabledServices()
	if err != nil {
		return fmt.Errorf("determine enabled services: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	group, groupCtx := errgroup.WithContext(ctx)

	if enabled[config.ServiceModeSync] {
		sync := cfg.Services.Synchronizer
		if err := sync.Start(groupCtx); err != nil {
			return fmt.Errorf("start synchronizer: %w", err)
		}
		logger.InfoContext(ctx, "synchronizer started")
		group.Go(func() error {
			<-groupCtx.Done()
			sync.Stop()
			return nil
		})
	}

	if enabled[config.ServiceModeReaper] {
		reaper := cfg.Services.Reaper
		logger.InfoContext(ctx, "reaper started")
		group.Go(func() error {
			return reaper.Run(groupCtx)
		})
	}

	err = group.Wait()

	if cfg.Services.Metrics != nil {
		if cerr := cfg.Services.Metrics.Close(); cerr != nil {
			logger.Error("close statsd client failed", "error", cerr)
		}
	}

	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	logger.Info("shutdown complete")
	return nil
}
