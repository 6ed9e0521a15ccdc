package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/innovites/cableaudit/internal/core"
	"github.com/innovites/cableaudit/internal/data"
	domainjob "github.com/innovites/cableaudit/internal/domain/job"
	"github.com/innovites/cableaudit/internal/domain/model"
	apperrors "github.com/innovites/cableaudit/internal/errors"
	"github.com/innovites/cableaudit/internal/observability/notify"
	"github.com/innovites/cableaudit/internal/pipeline"
	"github.com/innovites/cableaudit/internal/service/failurenotifier"
	"github.com/innovites/cableaudit/internal/validation"
)

// JobServiceOptions groups dependencies for JobService.
type JobServiceOptions struct {
	Repo            core.JobRepository        // Required: job repository
	MaxAttempts     int                       // Optional: attempts per new job (default model.DefaultMaxAttempts)
	Logger          *slog.Logger              // Optional: structured logger
	FailureNotifier *failurenotifier.Service  // Optional: terminal failure fan-out
	Notifier        domainjob.Notifier        // Optional: custom job availability notifier
	NotifierOptions domainjob.NotifierOptions // Optional: configure default notifier behaviour
}

// JobService is the job store facade shared by the submission API and the engine.
//
// This service manages:
// - Submission checks and job creation.
// - Status reads.
// - Reservation, heartbeats and the two terminal writes for the engine.
// - Wakeup subscriptions backed by LISTEN/NOTIFY.
type JobService struct {
	repo            core.JobRepository
	maxAttempts     int
	notifier        domainjob.Notifier
	logger          *slog.Logger
	failureNotifier *failurenotifier.Service
}

// NewJobService constructs a new JobService.
func NewJobService(opts JobServiceOptions) (*JobService, error) {
	if opts.Repo == nil {
		return nil, errors.New("JobRepository is required")
	}

	maxAttempts := opts.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = model.DefaultMaxAttempts
	}

	notifier := opts.Notifier
	if notifier == nil {
		options := opts.NotifierOptions
		if options.Waiter == nil {
			options.Waiter = opts.Repo
		}
		var err error
		notifier, err = domainjob.NewNotifier(options)
		if err != nil {
			return nil, fmt.Errorf("create job notifier: %w", err)
		}
	}

	var logger *slog.Logger
	if opts.Logger != nil {
		logger = opts.Logger.With("component", "job_service")
		logger.Debug("JobService initialized", "max_attempts", maxAttempts)
	}

	return &JobService{
		repo:            opts.Repo,
		maxAttempts:     maxAttempts,
		notifier:        notifier,
		logger:          logger,
		failureNotifier: opts.FailureNotifier,
	}, nil
}

// MustNewJobService constructs a new JobService and panics on error.
// Use this when you're certain the options are valid (e.g., in main.go).
func MustNewJobService(opts JobServiceOptions) *JobService {
	svc, err := NewJobService(opts)
	if err != nil {
		//nolint:forbidigo // Must constructor fails fast when dependencies are invalid during startup
		panic(fmt.Sprintf("failed to create JobService: %v", err))
	}
	return svc
}

// Submit checks the envelope and persists a PENDING job.
// Caller errors come back as validation AppErrors and never create a job.
func (s *JobService) Submit(ctx context.Context, req *model.SubmitRequest) (*model.SubmitResponse, error) {
	if err := checkSubmission(req); err != nil {
		return nil, err
	}

	job, err := s.repo.Create(ctx, &model.CreateJobRequest{
		InputMode:   req.InputMode,
		RawInput:    req.Data,
		MaxAttempts: s.maxAttempts,
	})
	if err != nil {
		return nil, fmt.Errorf("create job: %w", apperrors.MapDBError(err))
	}

	if s.logger != nil {
		s.logger.InfoContext(ctx, "validation job submitted",
			"id", job.ID,
			"input_mode", job.InputMode,
			"max_attempts", job.MaxAttempts,
		)
	}

	return &model.SubmitResponse{JobID: job.ID, JobStatus: job.Status}, nil
}

func checkSubmission(req *model.SubmitRequest) error {
	if req == nil {
		return apperrors.Validation("request body is required")
	}
	if isNullJSON(req.Data) {
		req.Data = nil
	}
	if err := validation.Struct(req); err != nil {
		return validationError(err)
	}

	trimmed := bytes.TrimSpace(req.Data)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return apperrors.ValidationField("data", "must be a JSON object")
	}

	if req.InputMode == model.InputModeFreeText {
		if _, err := pipeline.DecodeFreeText(req.Data); err != nil {
			return validationError(err)
		}
	}
	return nil
}

// validationError turns constraint failures into a 400-class AppError.
func validationError(err error) error {
	var verrs validation.Errors
	if errors.As(err, &verrs) {
		details := make(map[string]string, len(verrs))
		for field, msg := range verrs.Details() {
			details[dataPath(field)] = msg
		}
		return apperrors.ValidationDetails("invalid submission", details)
	}
	return apperrors.Wrap(err, apperrors.ErrCodeValidation, "invalid submission")
}

// dataPath qualifies fields of the nested data object.
func dataPath(field string) string {
	switch field {
	case "input_mode", "data":
		return field
	default:
		return "data." + field
	}
}

func isNullJSON(raw json.RawMessage) bool {
	return bytes.Equal(bytes.TrimSpace(raw), []byte("null"))
}

// Get returns the read-path view of a job.
func (s *JobService) Get(ctx context.Context, id string) (*model.JobStatusResponse, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, apperrors.ValidationField("id", "must be a UUID")
	}

	job, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, data.ErrJobNotFound) {
			return nil, apperrors.NotFoundf("validation job %s not found", id)
		}
		return nil, fmt.Errorf("get job %s: %w", id, apperrors.MapDBError(err))
	}

	resp := model.NewJobStatusResponse(job)
	return &resp, nil
}

// Stats returns job counts per status.
func (s *JobService) Stats(ctx context.Context) (*model.JobStats, error) {
	stats, err := s.repo.Stats(ctx)
	if err != nil {
		return nil, fmt.Errorf("job stats: %w", err)
	}
	return stats, nil
}

// List returns job summaries newest first.
func (s *JobService) List(ctx context.Context, opts model.JobListOptions) ([]model.JobSummary, error) {
	details := make(map[string]string)
	if opts.Status != nil && !opts.Status.Valid() {
		details["status"] = "must be one of PENDING, SUCCESS, FAILED"
	}
	if opts.InputMode != nil && !opts.InputMode.Valid() {
		details["input_mode"] = "must be one of free_text, structured"
	}
	if opts.Limit < 0 || opts.Limit > model.MaxJobListLimit {
		details["limit"] = fmt.Sprintf("must be between 1 and %d", model.MaxJobListLimit)
	}
	if opts.Offset < 0 {
		details["offset"] = "must not be negative"
	}
	if len(details) > 0 {
		return nil, apperrors.ValidationDetails("invalid list parameters", details)
	}

	jobs, err := s.repo.List(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", apperrors.MapDBError(err))
	}
	out := make([]model.JobSummary, 0, len(jobs))
	for _, j := range jobs {
		out = append(out, model.NewJobSummary(j))
	}
	return out, nil
}

// ReserveNext leases the next due job. It returns model.ErrNoJobsAvailable when the queue is idle.
func (s *JobService) ReserveNext(ctx context.Context, lease time.Duration) (*model.Job, error) {
	job, err := s.repo.ReserveNext(ctx, lease)
	if err != nil {
		if errors.Is(err, model.ErrNoJobsAvailable) {
			return nil, err
		}
		return nil, fmt.Errorf("reserve next job: %w", err)
	}

	if s.logger != nil {
		s.logger.DebugContext(ctx, "job reserved",
			"id", job.ID,
			"attempt", job.AttemptCount+1,
			"lease", lease,
		)
	}
	return job, nil
}

// Subscribe creates a subscription for job availability notifications.
// Returns an unsubscribe function and a channel that receives notifications.
func (s *JobService) Subscribe() (func(), <-chan struct{}) {
	if s.notifier == nil {
		ch := make(chan struct{})
		close(ch)
		return func() {}, ch
	}
	return s.notifier.Subscribe()
}

// StopNotifications releases the store listener and closes every subscription.
func (s *JobService) StopNotifications() {
	if s.notifier != nil {
		s.notifier.StopAll()
	}
}

// Heartbeat extends the lease on a job to indicate it's still being processed.
func (s *JobService) Heartbeat(ctx context.Context, params core.HeartbeatParams) (bool, error) {
	updated, err := s.repo.Heartbeat(ctx, params)
	if err != nil {
		return false, fmt.Errorf("heartbeat job %s: %w", params.ID, err)
	}

	if s.logger != nil && updated {
		s.logger.DebugContext(ctx, "job heartbeat updated", "id", params.ID, "lease", params.Lease)
	}
	return updated, nil
}

// Complete records the audit report and marks the job SUCCESS.
// It returns false when the caller no longer owns the job.
func (s *JobService) Complete(ctx context.Context, params core.CompleteJobParams) (bool, error) {
	completed, err := s.repo.Complete(ctx, params)
	if err != nil {
		return false, fmt.Errorf("complete job %s: %w", params.ID, err)
	}

	if s.logger != nil && completed {
		s.logger.DebugContext(ctx, "job completed", "id", params.ID, "pipeline", params.Pipeline)
	}
	return completed, nil
}

// JobFailureDetails captures optional context for failure notifications.
type JobFailureDetails struct {
	InputMode   model.InputMode
	Stage       string
	ErrorKind   string
	ErrorClass  string
	MaxAttempts int
	Metadata    map[string]string
	OccurredAt  time.Time
}

// Fail records one failed attempt. When the attempt leaves the job FAILED the
// failure notifier is told.
func (s *JobService) Fail(
	ctx context.Context,
	params core.FailJobParams,
	details JobFailureDetails,
) (*core.FailOutcome, error) {
	if params.ErrMsg == "" {
		return nil, errors.New("error message required")
	}

	outcome, err := s.repo.Fail(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("fail job %s: %w", params.ID, err)
	}

	if s.logger != nil && outcome.Applied {
		s.logger.DebugContext(ctx, "job attempt failed",
			"id", params.ID,
			"status", outcome.Status,
			"attempt_count", outcome.AttemptCount,
			"terminal", params.Terminal,
			"error", params.ErrMsg,
		)
	}

	if outcome.Applied && outcome.Status == model.JobStatusFailed && s.failureNotifier.Enabled() {
		s.failureNotifier.NotifyJobFailure(ctx, buildJobFailurePayload(params, outcome, details))
	}

	return outcome, nil
}

func buildJobFailurePayload(
	params core.FailJobParams,
	outcome *core.FailOutcome,
	details JobFailureDetails,
) notify.JobFailurePayload {
	payload := notify.JobFailurePayload{
		JobID:        params.ID,
		InputMode:    string(details.InputMode),
		Stage:        details.Stage,
		ErrorKind:    details.ErrorKind,
		AttemptCount: outcome.AttemptCount,
		MaxAttempts:  details.MaxAttempts,
		Error:        params.ErrMsg,
		ErrorClass:   details.ErrorClass,
		Severity:     notify.SeverityCritical,
		OccurredAt:   details.OccurredAt,
		Metadata:     copyMetadata(details.Metadata),
	}
	return payload.Normalized(time.Now())
}

func copyMetadata(src map[string]string) map[string]string {
	if len(src) == 0 {
		return nil
	}
	out := make(map[string]string, len(src))
	for k, v := range src {
		if k == "" {
			continue
		}
		out[k] = v
	}
	return out
}
