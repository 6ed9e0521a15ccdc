// Package model defines the core data types shared by the validation pipeline and the job engine.
package model

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// InputMode selects how a submission's data is turned into a DesignRecord.
//
//nolint:recvcheck // UnmarshalText needs pointer receiver, Valid needs value receiver
type InputMode string

// JobStatus represents the current status of a validation job.
type JobStatus string

const (
	// InputModeFreeText passes data.description through the field extractor.
	InputModeFreeText InputMode = "free_text"
	// InputModeStructured treats data as a pre-shaped DesignRecord.
	InputModeStructured InputMode = "structured"

	// JobStatusPending indicates a job is waiting for (or undergoing) an attempt.
	JobStatusPending JobStatus = "PENDING"
	// JobStatusSuccess indicates the pipeline produced an audit report.
	JobStatusSuccess JobStatus = "SUCCESS"
	// JobStatusFailed indicates the job exhausted its attempts or hit a terminal error.
	JobStatusFailed JobStatus = "FAILED"
)

// DefaultMaxAttempts is the total number of tries per job (1 initial + 3 retries).
const DefaultMaxAttempts = 4

// ErrNoJobsAvailable is returned when no jobs are available for reservation.
var ErrNoJobsAvailable = errors.New("no jobs available")

// UnmarshalText implements encoding.TextUnmarshaler so modes can be parsed from flags and env.
func (m *InputMode) UnmarshalText(text []byte) error {
	v := InputMode(strings.ToLower(strings.TrimSpace(string(text))))
	if v.Valid() {
		*m = v
		return nil
	}
	return fmt.Errorf("invalid InputMode: %q", v)
}

// Valid returns true if the InputMode is valid.
func (m InputMode) Valid() bool {
	return m == InputModeFreeText || m == InputModeStructured
}

// Valid returns true if the JobStatus is valid.
func (s JobStatus) Valid() bool {
	return s == JobStatusPending || s == JobStatusSuccess || s == JobStatusFailed
}

// Terminal reports whether no further transition is possible.
func (s JobStatus) Terminal() bool {
	return s == JobStatusSuccess || s == JobStatusFailed
}

// Job is the durable lifecycle record of one validation submission.
//
// Result and Error are mutually exclusive and both nil while the job is PENDING.
// LeaseOwner and LeaseExpiresAt mark an in-flight attempt without changing Status.
type Job struct {
	ID               string          `json:"id"                           db:"id"`
	InputMode        InputMode       `json:"input_mode"                   db:"input_mode"`
	Status           JobStatus       `json:"status"                       db:"status"`
	RawInput         json.RawMessage `json:"raw_input"                    db:"raw_input"`
	Result           json.RawMessage `json:"result,omitempty"             db:"result"`
	Error            *string         `json:"error,omitempty"              db:"error"`
	AttemptCount     int             `json:"attempt_count"                db:"attempt_count"`
	MaxAttempts      int             `json:"max_attempts"                 db:"max_attempts"`
	LastAttemptError *string         `json:"last_attempt_error,omitempty" db:"last_attempt_error"`
	Pipeline         *string         `json:"pipeline,omitempty"           db:"pipeline"`
	ScheduledAt      time.Time       `json:"scheduled_at"                 db:"scheduled_at"`
	LeaseOwner       *string         `json:"lease_owner,omitempty"        db:"lease_owner"`
	LeaseExpiresAt   *time.Time      `json:"lease_expires_at,omitempty"   db:"lease_expires_at"`
	CreatedAt        time.Time       `json:"created_at"                   db:"created_at"`
	UpdatedAt        time.Time       `json:"updated_at"                   db:"updated_at"`
	CompletedAt      *time.Time      `json:"completed_at,omitempty"       db:"completed_at"`
}

// SubmitRequest is the caller-facing submission envelope.
type SubmitRequest struct {
	InputMode InputMode       `json:"input_mode" validate:"required,oneof=free_text structured"`
	Data      json.RawMessage `json:"data"       validate:"required"`
}

// FreeTextData is the shape of data for free_text submissions.
type FreeTextData struct {
	Description string `json:"description" validate:"required,max=20000"`
}

// CreateJobRequest is what the job store needs to persist a new job.
type CreateJobRequest struct {
	InputMode   InputMode
	RawInput    json.RawMessage
	MaxAttempts int
}

// Validate validates the CreateJobRequest fields.
func (r *CreateJobRequest) Validate() error {
	if !r.InputMode.Valid() {
		return errors.New("invalid input mode")
	}
	if len(r.RawInput) == 0 {
		return errors.New("raw input is required")
	}
	if r.MaxAttempts < 1 {
		return errors.New("max attempts must be >= 1")
	}
	return nil
}

// JobStatusResponse is the read-path view of a job.
type JobStatusResponse struct {
	JobID        string          `json:"job_id"`
	JobStatus    JobStatus       `json:"job_status"`
	Result       json.RawMessage `json:"result"`
	Error        *string         `json:"error"`
	AttemptCount int             `json:"attempt_count"`
	CreatedAt    time.Time       `json:"created_at"`
	CompletedAt  *time.Time      `json:"completed_at,omitempty"`
}

// NewJobStatusResponse projects a Job onto its read-path view.
func NewJobStatusResponse(j *Job) JobStatusResponse {
	resp := JobStatusResponse{
		JobID:        j.ID,
		JobStatus:    j.Status,
		Error:        j.Error,
		AttemptCount: j.AttemptCount,
		CreatedAt:    j.CreatedAt,
		CompletedAt:  j.CompletedAt,
	}
	if len(j.Result) > 0 {
		resp.Result = j.Result
	} else {
		resp.Result = json.RawMessage("null")
	}
	return resp
}

// SubmitResponse is returned as soon as a job is persisted.
type SubmitResponse struct {
	JobID     string    `json:"job_id"`
	JobStatus JobStatus `json:"job_status"`
}

// JobStats represents counts of jobs per status.
type JobStats struct {
	Pending int `json:"pending"`
	Success int `json:"success"`
	Failed  int `json:"failed"`
}

// Job list paging bounds.
const (
	DefaultJobListLimit = 50
	MaxJobListLimit     = 500
)

// JobListOptions filters and pages a job listing. Nil filters match everything.
type JobListOptions struct {
	Status    *JobStatus
	InputMode *InputMode
	Limit     int
	Offset    int
}

// JobSummary is the listing view of a job; it omits the raw input and the report body.
type JobSummary struct {
	JobID        string     `json:"job_id"`
	InputMode    InputMode  `json:"input_mode"`
	JobStatus    JobStatus  `json:"job_status"`
	Error        *string    `json:"error"`
	AttemptCount int        `json:"attempt_count"`
	Pipeline     *string    `json:"pipeline"`
	CreatedAt    time.Time  `json:"created_at"`
	CompletedAt  *time.Time `json:"completed_at,omitempty"`
}

// NewJobSummary projects a Job onto its listing view.
func NewJobSummary(j *Job) JobSummary {
	return JobSummary{
		JobID:        j.ID,
		InputMode:    j.InputMode,
		JobStatus:    j.Status,
		Error:        j.Error,
		AttemptCount: j.AttemptCount,
		Pipeline:     j.Pipeline,
		CreatedAt:    j.CreatedAt,
		CompletedAt:  j.CompletedAt,
	}
}
