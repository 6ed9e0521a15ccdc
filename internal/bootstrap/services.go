package bootstrap

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"github.com/innovites/cableaudit/config"
	"github.com/innovites/cableaudit/internal/data"
	httpx "github.com/innovites/cableaudit/internal/http"
	"github.com/innovites/cableaudit/internal/pipeline"
	"github.com/innovites/cableaudit/internal/service"
)

// ServiceContainer holds all application services.
type ServiceContainer struct {
	Jobs          *service.JobService
	References    *ReferenceStore
	Pipeline      *pipeline.Orchestrator // nil unless the engine is enabled
	Observability ObservabilityContainer
	Readiness     map[string]httpx.ReadinessCheck
}

// ServiceDeps groups dependencies for service initialization.
type ServiceDeps struct {
	Config      *config.AppConfig
	DB          *sql.DB
	RedisClient redis.UniversalClient // Optional: reference lookup cache
	Logger      *slog.Logger
}

// NewServices wires repositories, observability and the validation pipeline.
func NewServices(deps *ServiceDeps) (ServiceContainer, error) {
	if deps == nil || deps.Config == nil || deps.DB == nil {
		return ServiceContainer{}, errors.New("config and database are required")
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	cfg := deps.Config

	observability := buildObservability(logger, cfg.Observability)

	jobs, err := service.NewJobService(service.JobServiceOptions{
		Repo:            data.NewJobRepo(deps.DB, data.RepoConfig{Logger: logger}),
		MaxAttempts:     cfg.Engine.MaxAttempts,
		Logger:          logger,
		FailureNotifier: observability.FailureNotifier,
	})
	if err != nil {
		return ServiceContainer{}, fmt.Errorf("create job service: %w", err)
	}

	refs, err := NewReferenceStore(deps.DB, deps.RedisClient, cfg.Reference, logger)
	if err != nil {
		return ServiceContainer{}, err
	}

	container := ServiceContainer{
		Jobs:          jobs,
		References:    refs,
		Observability: observability,
		Readiness: map[string]httpx.ReadinessCheck{
			"postgres": deps.DB.PingContext,
		},
	}
	if deps.RedisClient != nil {
		container.Readiness["redis"] = data.NewRedisCacheRepo(deps.RedisClient).Health
	}

	if cfg.Runs(config.ServiceModeEngine) {
		orch, err := BuildPipeline(PipelineOptions{
			Config:     cfg.Pipeline,
			References: refs.Reader,
			Metrics:    observability.MetricsSink,
			Logger:     logger,
		})
		if err != nil {
			return ServiceContainer{}, err
		}
		container.Pipeline = orch
	}

	return container, nil
}

// ServiceOrchestrationConfig contains configuration for service orchestration.
type ServiceOrchestrationConfig struct {
	Config   *config.AppConfig
	Services ServiceContainer
	DB       *sql.DB
	Version  string
	Logger   *slog.Logger
}

// backgroundService describes a startable background component.
type backgroundService struct {
	mode  config.ServiceMode
	name  string
	start func(context.Context) error
}

func buildBackgroundServices(cfg *ServiceOrchestrationConfig, logger *slog.Logger) []backgroundService {
	obs := cfg.Services.Observability
	return []backgroundService{
		{
			mode: config.ServiceModeEngine,
			name: "job engine",
			start: func(ctx context.Context) error {
				if cfg.Services.Pipeline == nil {
					return errors.New("engine enabled without a pipeline")
				}
				return RunEngine(ctx, EngineConfig{
					Jobs:     cfg.Services.Jobs,
					Pipeline: cfg.Services.Pipeline,
					Config:   cfg.Config.Engine,
					Logger:   logger,
					Metrics:  obs.MetricsSink,
				})
			},
		},
		{
			mode: config.ServiceModeReaper,
			name: "reaper",
			start: func(ctx context.Context) error {
				return RunReaper(ctx, ReaperConfig{
					DB:      cfg.DB,
					Logger:  logger,
					Config:  cfg.Config.Reaper,
					Metrics: obs.MetricsSink,
				})
			},
		},
	}
}

// RunServicesWithShutdown starts all enabled services and blocks until SIGINT/SIGTERM
// or the first service failure.
func RunServicesWithShutdown(cfg *ServiceOrchestrationConfig) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	return RunServices(ctx, cfg)
}

// RunServices runs every enabled service until ctx is cancelled or one of them fails.
// In-flight jobs are allowed to finish before it returns.
func RunServices(ctx context.Context, cfg *ServiceOrchestrationConfig) error {
	if cfg == nil {
		return errors.New("service orchestration config is required")
	}
	if cfg.Config == nil {
		return errors.New("service orchestration config missing AppConfig")
	}
	if cfg.Services.Jobs == nil {
		return errors.New("service orchestration config missing job service")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	enabled, err := cfg.Config.EnabledServices()
	if err != nil {
		return fmt.Errorf("determine enabled services: %w", err)
	}

	g, gctx := errgroup.WithContext(ctx)

	if enabled.Has(config.ServiceModeHTTP) {
		if err := startHTTP(gctx, g, cfg, logger); err != nil {
			return err
		}
	}

	for _, svc := range buildBackgroundServices(cfg, logger) {
		if !enabled.Has(svc.mode) {
			continue
		}
		g.Go(func() error {
			logger.InfoContext(gctx, "background service started", "service", svc.name, "mode", svc.mode)
			if err := svc.start(gctx); err != nil {
				return fmt.Errorf("%s failed: %w", svc.name, err)
			}
			logger.InfoContext(gctx, svc.name+" stopped")
			return nil
		})
	}

	err = g.Wait()
	cfg.Services.Jobs.StopNotifications()
	if closeErr := cfg.Services.Observability.Close(); closeErr != nil {
		logger.Warn("close metrics client", "error", closeErr)
	}
	if err != nil {
		logger.Error("service error", "error", err)
		return err
	}
	logger.Info("all services stopped")
	return nil
}
