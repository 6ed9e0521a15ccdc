package data

import (
	"database/sql"
	"errors"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/innovites/cableaudit/internal/domain/model"
)

// ErrJobNotFound is returned for unknown or malformed job ids.
var ErrJobNotFound = errors.New("job not found")

// notifyChannel is signalled with the job id on every insert.
const notifyChannel = "design_validation_added"

// RepoConfig carries the optional collaborators of JobRepo.
type RepoConfig struct {
	Logger       *slog.Logger
	TimeProvider TimeProvider
}

// JobRepo is the Postgres store behind the job engine, the HTTP API and the reaper. Every
// timestamp it writes comes from its TimeProvider so tests can pin the clock.
type JobRepo struct {
	db     *sqlx.DB
	clock  TimeProvider
	logger *slog.Logger
}

func NewJobRepo(db *sql.DB, cfg RepoConfig) *JobRepo {
	r := &JobRepo{
		db:     sqlx.NewDb(db, "pgx"),
		clock:  cfg.TimeProvider,
		logger: cfg.Logger,
	}
	if r.clock == nil {
		r.clock = RealTimeProvider{}
	}
	if r.logger == nil {
		r.logger = slog.Default()
	}
	r.logger = r.logger.With("component", "job_repo")
	return r
}

func (r *JobRepo) now() time.Time { return r.clock.Now().UTC() }

// jobColumns is the select list matching jobRow.
const jobColumns = `id, input_mode, status, raw_input, result, error, attempt_count, max_attempts,
	last_attempt_error, pipeline, scheduled_at, lease_owner, lease_expires_at, created_at,
	updated_at, completed_at`

// jobRow mirrors one design_validations row, nullable columns included.
type jobRow struct {
	ID               string          `db:"id"`
	InputMode        model.InputMode `db:"input_mode"`
	Status           model.JobStatus `db:"status"`
	RawInput         []byte          `db:"raw_input"`
	Result           []byte          `db:"result"`
	Error            sql.NullString  `db:"error"`
	AttemptCount     int             `db:"attempt_count"`
	MaxAttempts      int             `db:"max_attempts"`
	LastAttemptError sql.NullString  `db:"last_attempt_error"`
	Pipeline         sql.NullString  `db:"pipeline"`
	ScheduledAt      time.Time       `db:"scheduled_at"`
	LeaseOwner       sql.NullString  `db:"lease_owner"`
	LeaseExpiresAt   sql.NullTime    `db:"lease_expires_at"`
	CreatedAt        time.Time       `db:"created_at"`
	UpdatedAt        time.Time       `db:"updated_at"`
	CompletedAt      sql.NullTime    `db:"completed_at"`
}

// toModel copies the row into a Job with every timestamp in UTC. Byte slices are copied
// because drivers may reuse their buffers.
func (row *jobRow) toModel() *model.Job {
	return &model.Job{
		ID:               row.ID,
		InputMode:        row.InputMode,
		Status:           row.Status,
		RawInput:         copyBytes(row.RawInput),
		Result:           copyBytes(row.Result),
		Error:            nullString(row.Error),
		AttemptCount:     row.AttemptCount,
		MaxAttempts:      row.MaxAttempts,
		LastAttemptError: nullString(row.LastAttemptError),
		Pipeline:         nullString(row.Pipeline),
		ScheduledAt:      row.ScheduledAt.UTC(),
		LeaseOwner:       nullString(row.LeaseOwner),
		LeaseExpiresAt:   nullTime(row.LeaseExpiresAt),
		CreatedAt:        row.CreatedAt.UTC(),
		UpdatedAt:        row.UpdatedAt.UTC(),
		CompletedAt:      nullTime(row.CompletedAt),
	}
}

func copyBytes(b []byte) []byte {
	if len(b) == 0 {
		return nil
	}
	return append([]byte(nil), b...)
}

func nullString(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	return &ns.String
}

func nullTime(nt sql.NullTime) *time.Time {
	if !nt.Valid {
		return nil
	}
	t := nt.Time.UTC()
	return &t
}
