package bootstrap

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/innovites/cableaudit/config"
	"github.com/innovites/cableaudit/internal/adapters/jobrunner"
	"github.com/innovites/cableaudit/internal/adapters/reaper"
	"github.com/innovites/cableaudit/internal/observability/statsd"
	"github.com/innovites/cableaudit/internal/service"
)

// EngineConfig contains configuration for the job execution engine.
type EngineConfig struct {
	Jobs     *service.JobService
	Pipeline jobrunner.Pipeline
	Config   config.EngineConfig
	Logger   *slog.Logger
	Metrics  statsd.Sink
}

// RunEngine starts the job execution engine and blocks until ctx is cancelled.
func RunEngine(ctx context.Context, cfg EngineConfig) error {
	runner, err := jobrunner.NewRunner(jobrunner.RunnerOptions{
		Jobs:     cfg.Jobs,
		Pipeline: cfg.Pipeline,
		Config:   cfg.Config,
		Logger:   cfg.Logger,
		Metrics:  cfg.Metrics,
	})
	if err != nil {
		return fmt.Errorf("create job engine: %w", err)
	}

	if runErr := runner.Run(ctx); runErr != nil {
		return fmt.Errorf("run job engine: %w", runErr)
	}
	return nil
}

// ReaperConfig contains configuration for reaper.
type ReaperConfig struct {
	DB      *sql.DB
	Logger  *slog.Logger
	Config  config.ReaperConfig
	Metrics statsd.Sink
}

// NewReaperRunner builds the reaper adapter shared by the service and the admin CLI.
func NewReaperRunner(cfg ReaperConfig) (*reaper.Runner, error) {
	runner, err := reaper.NewRunner(reaper.RunnerOptions{
		DB:      cfg.DB,
		Config:  cfg.Config,
		Logger:  cfg.Logger,
		Metrics: cfg.Metrics,
	})
	if err != nil {
		return nil, fmt.Errorf("create reaper runner: %w", err)
	}
	return runner, nil
}

// RunReaper starts the reaper service.
func RunReaper(ctx context.Context, cfg ReaperConfig) error {
	runner, err := NewReaperRunner(cfg)
	if err != nil {
		return err
	}
	return runner.Run(ctx)
}
