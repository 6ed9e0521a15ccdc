package core

import (
	"context"
	"encoding/json"
	"time"

	"github.com/innovites/cableaudit/internal/domain/model"
)

// This file contains repository interface definitions (ports in hexagonal architecture).
// These interfaces define the contracts between the service layer and data layer.
// Service implementations should depend on these interfaces, not concrete implementations.

// JobRepository defines the interface for validation job data operations.
type JobRepository interface {
	Create(ctx context.Context, req *model.CreateJobRequest) (*model.Job, error)
	GetByID(ctx context.Context, id string) (*model.Job, error)
	// ReserveNext leases the next due PENDING job to a fresh owner. Status stays PENDING.
	ReserveNext(ctx context.Context, lease time.Duration) (*model.Job, error)
	WaitForNotification(ctx context.Context) error
	Heartbeat(ctx context.Context, params HeartbeatParams) (bool, error)
	Complete(ctx context.Context, params CompleteJobParams) (bool, error)
	Fail(ctx context.Context, params FailJobParams) (*FailOutcome, error)
	Stats(ctx context.Context) (*model.JobStats, error)
	List(ctx context.Context, opts model.JobListOptions) ([]*model.Job, error)
}

// HeartbeatParams extends the lease held by Owner.
type HeartbeatParams struct {
	ID    string
	Owner string
	Lease time.Duration
}

// CompleteJobParams is the single atomic success write.
type CompleteJobParams struct {
	ID       string
	Owner    string
	Result   json.RawMessage
	Pipeline string
}

// FailJobParams records one failed attempt.
// Terminal failures skip the remaining attempts; otherwise RetryAt schedules the next one.
type FailJobParams struct {
	ID       string
	Owner    string
	ErrMsg   string
	Terminal bool
	RetryAt  time.Time
}

// FailOutcome reports the state a failed attempt left the job in.
// Applied is false when the caller no longer owned the job.
type FailOutcome struct {
	Applied      bool
	Status       model.JobStatus
	AttemptCount int
}

// DeleteOldJobsParams groups parameters for ReaperRepository.DeleteOldJobs.
type DeleteOldJobsParams struct {
	Status    model.JobStatus
	MaxAge    time.Duration
	BatchSize int
}

// ReaperRepository defines the cleanup operations used by the reaper.
type ReaperRepository interface {
	FailStalePendingJobs(ctx context.Context, maxAge time.Duration, batchSize int) (int64, error)
	DeleteOldJobs(ctx context.Context, params DeleteOldJobsParams) (int64, error)
}

// ReferenceRepository is the read side of the reference dataset plus its seeding.
// Lookups return model.ErrReferenceNotFound when no row matches.
type ReferenceRepository interface {
	ReferenceReader
	Replace(ctx context.Context, dataset *model.ReferenceDataset) error
	Count(ctx context.Context) (int, error)
}

// ReferenceReader is what the validator stage needs from the reference dataset.
type ReferenceReader interface {
	GetConductor(ctx context.Context, csa float64) (*model.ConductorSpec, error)
	GetInsulation(ctx context.Context, csa float64) (*model.InsulationSpec, error)
}
