package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"time"

	"github.com/innovites/cableaudit/config"
	"github.com/innovites/cableaudit/internal/core"
	"github.com/innovites/cableaudit/internal/domain/model"
	"github.com/innovites/cableaudit/internal/observability/metrics"
	"github.com/innovites/cableaudit/internal/observability/statsd"
)

// ReaperServiceOptions groups dependencies for ReaperService.
type ReaperServiceOptions struct {
	Repo    core.ReaperRepository // Required
	Config  config.ReaperConfig
	Logger  *slog.Logger // Optional
	Metrics statsd.Sink  // Optional
}

// ReaperService keeps the design_validations table bounded: it fails PENDING jobs nobody
// finished within PendingMaxAge and deletes terminal jobs past their retention.
type ReaperService struct {
	repo    core.ReaperRepository
	config  config.ReaperConfig
	logger  *slog.Logger
	metrics statsd.Sink
}

// CleanupResult reports how many jobs one cleanup pass touched.
type CleanupResult struct {
	FailedPending    int64
	DeletedSucceeded int64
	DeletedFailed    int64
}

// Total is the number of rows changed by the pass.
func (r CleanupResult) Total() int64 {
	return r.FailedPending + r.DeletedSucceeded + r.DeletedFailed
}

// sweep is one batched cleanup operation. run is called until it reports zero rows.
type sweep struct {
	operation string
	label     string
	maxAge    time.Duration
	run       func(ctx context.Context) (int64, error)
	into      *int64
}

// NewReaperService validates opts.
func NewReaperService(opts ReaperServiceOptions) (*ReaperService, error) {
	if opts.Repo == nil {
		return nil, errors.New("ReaperRepository is required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &ReaperService{
		repo:    opts.Repo,
		config:  opts.Config,
		logger:  logger.With("component", "reaper_service"),
		metrics: opts.Metrics,
	}, nil
}

// MustNewReaperService wraps construction errors with the service name.
func MustNewReaperService(opts ReaperServiceOptions) (*ReaperService, error) {
	svc, err := NewReaperService(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to create ReaperService: %w", err)
	}
	return svc, nil
}

// Run sweeps once after a short random delay, then on every interval until ctx ends.
// Sweep errors are logged and the loop keeps going. Cancellation returns nil; a deadline
// returns ctx.Err().
func (s *ReaperService) Run(ctx context.Context) error {
	s.logger.InfoContext(ctx, "starting reaper service",
		"interval", s.config.Interval,
		"pending_max_age", s.config.PendingMaxAge,
		"succeeded_max_age", s.config.SucceededMaxAge,
		"failed_max_age", s.config.FailedMaxAge,
	)

	// Up to 10% of the interval so replicas started together do not sweep in lockstep.
	if spread := int64(s.config.Interval / 10); spread > 0 {
		select {
		case <-time.After(time.Duration(rand.Int64N(spread))):
		case <-ctx.Done():
		}
	}

	ticker := time.NewTicker(s.config.Interval)
	defer ticker.Stop()

	for {
		if ctx.Err() == nil {
			if _, err := s.RunOnce(ctx); err != nil {
				s.logSweepError(ctx, err)
			}
		}

		select {
		case <-ctx.Done():
			s.logger.InfoContext(ctx, "reaper service stopping", "reason", ctx.Err())
			if errors.Is(ctx.Err(), context.Canceled) {
				return nil
			}
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// RunOnce performs a single cleanup pass. Every sweep runs even when an earlier one fails;
// the errors are joined. When every failure was a context cancellation the result is
// context.Canceled.
func (s *ReaperService) RunOnce(ctx context.Context) (CleanupResult, error) {
	start := time.Now()
	var result CleanupResult

	var errs []error
	onlyCanceled := true
	for _, sw := range s.sweeps(&result) {
		count, err := s.drain(ctx, sw)
		*sw.into = count
		s.emitSweep(sw.operation, count, err)
		if err == nil {
			if count > 0 {
				s.logger.InfoContext(ctx, sw.label, "count", count, "max_age", sw.maxAge)
			}
			continue
		}
		errs = append(errs, fmt.Errorf("%s: %w", sw.label, err))
		onlyCanceled = onlyCanceled && isContextCancellation(err)
	}

	joined := errors.Join(errs...)
	s.emitPass(result, joined, time.Since(start))

	switch {
	case joined == nil:
		return result, nil
	case onlyCanceled:
		return result, context.Canceled
	default:
		return result, fmt.Errorf("cleanup failed: %w", joined)
	}
}

func (s *ReaperService) sweeps(result *CleanupResult) []sweep {
	deleteStatus := func(status model.JobStatus, maxAge time.Duration) func(context.Context) (int64, error) {
		return func(ctx context.Context) (int64, error) {
			return s.repo.DeleteOldJobs(ctx, core.DeleteOldJobsParams{
				Status:    status,
				MaxAge:    maxAge,
				BatchSize: s.config.BatchSize,
			})
		}
	}

	return []sweep{
		{
			operation: "fail_pending",
			label:     "fail stale pending jobs",
			maxAge:    s.config.PendingMaxAge,
			run: func(ctx context.Context) (int64, error) {
				return s.repo.FailStalePendingJobs(ctx, s.config.PendingMaxAge, s.config.BatchSize)
			},
			into: &result.FailedPending,
		},
		{
			operation: "delete_succeeded",
			label:     "delete old successful jobs",
			maxAge:    s.config.SucceededMaxAge,
			run:       deleteStatus(model.JobStatusSuccess, s.config.SucceededMaxAge),
			into:      &result.DeletedSucceeded,
		},
		{
			operation: "delete_failed",
			label:     "delete old failed jobs",
			maxAge:    s.config.FailedMaxAge,
			run:       deleteStatus(model.JobStatusFailed, s.config.FailedMaxAge),
			into:      &result.DeletedFailed,
		},
	}
}

// drain repeats sw.run until a batch touches no rows.
func (s *ReaperService) drain(ctx context.Context, sw sweep) (int64, error) {
	var total int64
	for {
		n, err := sw.run(ctx)
		if err != nil {
			return total, err
		}
		total += n
		if n == 0 {
			return total, nil
		}
		if err := ctx.Err(); err != nil {
			return total, err
		}
	}
}

func (s *ReaperService) emitSweep(operation string, count int64, err error) {
	if s.metrics == nil {
		return
	}
	if isContextCancellation(err) {
		err = nil
	}
	tags := metrics.OutcomeTags(count, err)
	tags["operation"] = operation
	s.metrics.Count("reaper.cleanup_operation", 1, tags)
	if err == nil && count > 0 {
		s.metrics.Count("reaper.jobs_processed", count, metrics.CloneTags(tags))
	}
}

func (s *ReaperService) emitPass(result CleanupResult, err error, elapsed time.Duration) {
	if s.metrics == nil {
		return
	}
	if isContextCancellation(err) {
		err = nil
	}
	tags := metrics.OutcomeTags(result.Total(), err)
	s.metrics.Count("reaper.cleanup", 1, tags)
	s.metrics.Timing("reaper.cleanup_duration", elapsed, metrics.CloneTags(tags))
	if err == nil {
		s.metrics.Gauge("reaper.last_success_epoch", float64(time.Now().Unix()), nil)
	}
}

func (s *ReaperService) logSweepError(ctx context.Context, err error) {
	if isContextCancellation(err) {
		s.logger.DebugContext(ctx, "cleanup cancelled by context", "error", err)
		return
	}
	s.logger.ErrorContext(ctx, "cleanup failed", "error", err)
}

func isContextCancellation(err error) bool {
	return err != nil && (errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded))
}
