// Package reaper runs the design validation retention sweeps as a long-lived service or a
// one-shot admin command.
package reaper

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"

	"github.com/innovites/cableaudit/config"
	"github.com/innovites/cableaudit/internal/core"
	"github.com/innovites/cableaudit/internal/data"
	"github.com/innovites/cableaudit/internal/observability/statsd"
	"github.com/innovites/cableaudit/internal/service"
)

// RunnerOptions configures a Runner. Either DB or Repo must be set; Repo wins.
type RunnerOptions struct {
	DB      *sql.DB
	Repo    core.ReaperRepository
	Config  config.ReaperConfig
	Logger  *slog.Logger
	Metrics statsd.Sink
}

// Runner owns a ReaperService bound to the job store.
type Runner struct {
	svc    *service.ReaperService
	logger *slog.Logger
}

// NewRunner sanitizes the reaper config and wires the service.
func NewRunner(opts RunnerOptions) (*Runner, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	repo := opts.Repo
	if repo == nil {
		if opts.DB == nil {
			return nil, errors.New("reaper runner needs a database or a repository")
		}
		repo = data.NewJobRepo(opts.DB, data.RepoConfig{Logger: logger})
	}

	cfg := opts.Config
	cfg.Sanitize()

	svc, err := service.MustNewReaperService(service.ReaperServiceOptions{
		Repo:    repo,
		Config:  cfg,
		Logger:  logger,
		Metrics: opts.Metrics,
	})
	if err != nil {
		return nil, err
	}
	return &Runner{svc: svc, logger: logger.With("component", "reaper_runner")}, nil
}

// Run blocks until ctx is done.
func (r *Runner) Run(ctx context.Context) error {
	r.logger.InfoContext(ctx, "starting reaper runner")
	return r.svc.Run(ctx)
}

// RunOnce performs a single cleanup pass.
func (r *Runner) RunOnce(ctx context.Context) (service.CleanupResult, error) {
	return r.svc.RunOnce(ctx)
}
