// Package jobrunner is the job execution engine: a bounded worker pool that
// leases validation jobs and runs them through the pipeline.
package jobrunner

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/innovites/cableaudit/config"
	"github.com/innovites/cableaudit/internal/core"
	domainjob "github.com/innovites/cableaudit/internal/domain/job"
	"github.com/innovites/cableaudit/internal/domain/model"
	obserrors "github.com/innovites/cableaudit/internal/observability/errors"
	"github.com/innovites/cableaudit/internal/observability/metrics"
	"github.com/innovites/cableaudit/internal/observability/statsd"
	"github.com/innovites/cableaudit/internal/pipeline"
	"github.com/innovites/cableaudit/internal/service"
)

// finalWriteTimeout bounds the Complete/Fail write issued after a run.
const finalWriteTimeout = 10 * time.Second

// Pipeline runs one submission to an audit report.
type Pipeline interface {
	Name() string
	Run(ctx context.Context, mode model.InputMode, raw json.RawMessage) (*model.AuditReport, error)
}

// RunnerOptions configures the job runner adapter.
type RunnerOptions struct {
	Jobs     *service.JobService // Required: job store facade
	Pipeline Pipeline            // Required: validation pipeline
	Config   config.EngineConfig // Workers, attempts, backoff, lease, poll interval
	Logger   *slog.Logger        // Optional: structured logger
	Metrics  statsd.Sink         // Optional: metrics sink
	Now      func() time.Time    // Optional: clock override for tests
}

// Runner pulls jobs and executes them with the configured pipeline.
type Runner struct {
	jobs         *service.JobService
	run          Pipeline
	lease        *domainjob.LeasePolicy
	retry        domainjob.RetryPolicy
	maxAttempts  int
	workers      int
	pollInterval time.Duration
	logger       *slog.Logger
	metrics      statsd.Sink
	now          func() time.Time
}

// NewRunner validates the engine configuration and constructs a Runner.
func NewRunner(opts RunnerOptions) (*Runner, error) {
	if opts.Jobs == nil {
		return nil, errors.New("job service is required")
	}
	if opts.Pipeline == nil {
		return nil, errors.New("pipeline is required")
	}

	cfg := opts.Config
	cfg.Sanitize()

	lease, err := domainjob.NewLeasePolicy(cfg.LeaseDuration)
	if err != nil {
		return nil, fmt.Errorf("create lease policy: %w", err)
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	now := opts.Now
	if now == nil {
		now = time.Now
	}

	return &Runner{
		jobs:  opts.Jobs,
		run:   opts.Pipeline,
		lease: lease,
		retry: domainjob.RetryPolicy{
			Kind: domainjob.BackoffKind(cfg.Backoff),
			Base: cfg.BackoffBase,
			Max:  cfg.BackoffMax,
		},
		maxAttempts:  cfg.MaxAttempts,
		workers:      cfg.Workers,
		pollInterval: cfg.PollInterval,
		logger:       logger.With("component", "engine"),
		metrics:      opts.Metrics,
		now:          now,
	}, nil
}

// Run starts worker goroutines and processes jobs until the context is cancelled.
// Workers finish the job in hand before returning.
func (r *Runner) Run(ctx context.Context) error {
	r.logger.InfoContext(ctx, "starting job engine",
		"pipeline", r.run.Name(),
		"workers", r.workers,
		"lease", r.lease.Lease(),
		"max_attempts", r.maxAttempts,
		"backoff", r.retry.Kind,
	)

	unsub, ch := r.jobs.Subscribe()
	defer unsub()

	var wg sync.WaitGroup
	for i := range r.workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			r.workerLoop(ctx, i, ch)
		}()
	}
	wg.Wait()

	r.logger.InfoContext(ctx, "job engine stopped")
	if errors.Is(ctx.Err(), context.Canceled) {
		return nil
	}
	return ctx.Err()
}

func (r *Runner) workerLoop(ctx context.Context, worker int, notify <-chan struct{}) {
	logger := r.logger.With("worker", worker)
	for ctx.Err() == nil {
		job, err := r.jobs.ReserveNext(ctx, r.lease.Lease())
		switch {
		case err == nil:
			r.processJob(ctx, job)
		case errors.Is(err, model.ErrNoJobsAvailable):
			r.waitForWork(ctx, notify)
		case ctx.Err() != nil:
			return
		default:
			logger.ErrorContext(ctx, "reserve next job failed", "error", err)
			r.waitForWork(ctx, nil)
		}
	}
}

// waitForWork blocks until a notification, the poll interval, or shutdown.
func (r *Runner) waitForWork(ctx context.Context, notify <-chan struct{}) {
	timer := time.NewTimer(r.pollInterval)
	defer timer.Stop()

	select {
	case <-ctx.Done():
	case <-notify:
	case <-timer.C:
	}
}

// processJob runs one attempt and records its outcome.
func (r *Runner) processJob(ctx context.Context, job *model.Job) {
	start := r.now()
	logger := r.logger.With("job_id", job.ID, "attempt", job.AttemptCount+1)

	if job.LeaseOwner == nil || *job.LeaseOwner == "" {
		logger.ErrorContext(ctx, "reserved job has no lease owner")
		return
	}
	owner := *job.LeaseOwner

	runCtx, cancelRun := context.WithCancel(ctx)
	lost := r.startHeartbeat(runCtx, cancelRun, job.ID, owner, logger)

	report, runErr := r.run.Run(runCtx, job.InputMode, job.RawInput)
	cancelRun()

	if lost.Load() {
		logger.WarnContext(ctx, "lease lost during run; result discarded")
		r.emit(job, metrics.TransitionAbandoned, metrics.ResultNoop, start, nil)
		return
	}
	if ctx.Err() != nil {
		// Shutdown mid-run: the lease expires and the job is delivered again.
		logger.InfoContext(ctx, "shutdown during run; leaving job for redelivery")
		r.emit(job, metrics.TransitionAbandoned, metrics.ResultNoop, start, nil)
		return
	}

	writeCtx, cancelWrite := context.WithTimeout(context.WithoutCancel(ctx), finalWriteTimeout)
	defer cancelWrite()

	if runErr != nil {
		r.recordFailure(writeCtx, job, owner, runErr, start, logger)
		return
	}
	r.recordSuccess(writeCtx, job, owner, report, start, logger)
}

func (r *Runner) recordSuccess(
	ctx context.Context,
	job *model.Job,
	owner string,
	report *model.AuditReport,
	start time.Time,
	logger *slog.Logger,
) {
	result, err := json.Marshal(report)
	if err != nil {
		encErr := pipeline.NewStageError(pipeline.StageAudit, pipeline.KindAudit, fmt.Errorf("encode report: %w", err))
		r.recordFailure(ctx, job, owner, encErr, start, logger)
		return
	}

	completed, err := r.jobs.Complete(ctx, core.CompleteJobParams{
		ID:       job.ID,
		Owner:    owner,
		Result:   result,
		Pipeline: r.run.Name(),
	})
	switch {
	case err != nil:
		logger.ErrorContext(ctx, "complete job error", "error", err)
		r.emit(job, metrics.TransitionCompleted, metrics.ResultError, start, err)
	case !completed:
		logger.WarnContext(ctx, "job no longer owned; completion skipped")
		r.emit(job, metrics.TransitionCompleted, metrics.ResultNoop, start, nil)
	default:
		logger.InfoContext(ctx, "validation job succeeded",
			"confidence", report.Confidence,
			"out_of_scope", report.IsOutOfScope,
		)
		r.emit(job, metrics.TransitionCompleted, metrics.ResultSuccess, start, nil)
	}
}

func (r *Runner) recordFailure(
	ctx context.Context,
	job *model.Job,
	owner string,
	runErr error,
	start time.Time,
	logger *slog.Logger,
) {
	attempt := job.AttemptCount + 1
	terminal := pipeline.IsTerminal(runErr)

	details := service.JobFailureDetails{
		InputMode:   job.InputMode,
		ErrorClass:  obserrors.Classify(runErr),
		MaxAttempts: job.MaxAttempts,
		OccurredAt:  r.now(),
		Metadata:    map[string]string{"pipeline": r.run.Name()},
	}
	if se, ok := pipeline.AsStageError(runErr); ok {
		details.Stage = string(se.Stage)
		details.ErrorKind = string(se.Kind)
	}

	outcome, err := r.jobs.Fail(ctx, core.FailJobParams{
		ID:       job.ID,
		Owner:    owner,
		ErrMsg:   runErr.Error(),
		Terminal: terminal,
		RetryAt:  r.retry.NextAttemptAt(r.now(), attempt),
	}, details)
	if err != nil {
		logger.ErrorContext(ctx, "fail job error", "error", err, "original_error", runErr)
		r.emit(job, metrics.TransitionFailed, metrics.ResultError, start, err)
		return
	}
	if !outcome.Applied {
		logger.WarnContext(ctx, "job no longer owned; failure not recorded", "error", runErr)
		r.emit(job, metrics.TransitionFailed, metrics.ResultNoop, start, nil)
		return
	}

	if outcome.Status == model.JobStatusFailed {
		logger.WarnContext(ctx, "validation job failed",
			"error", runErr,
			"terminal", terminal,
			"attempt_count", outcome.AttemptCount,
		)
		r.emit(job, metrics.TransitionFailed, metrics.ResultError, start, runErr)
		return
	}

	logger.InfoContext(ctx, "validation attempt failed; retry scheduled",
		"error", runErr,
		"attempt_count", outcome.AttemptCount,
		"retry_in", r.retry.Delay(attempt),
	)
	r.emit(job, metrics.TransitionRetried, metrics.ResultError, start, runErr)
}

func (r *Runner) emit(job *model.Job, transition, result string, start time.Time, err error) {
	metrics.EmitJobLifecycle(r.metrics, metrics.JobMetric{
		InputMode:  string(job.InputMode),
		Transition: transition,
		Result:     result,
		Duration:   r.now().Sub(start),
		Err:        err,
	})
}
