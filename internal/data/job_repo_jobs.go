package data

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/stdlib"

	"github.com/innovites/cableaudit/internal/core"
	"github.com/innovites/cableaudit/internal/data/pgxutil"
	"github.com/innovites/cableaudit/internal/domain/model"
)

const insertJobSQL = `
	INSERT INTO design_validations (id, input_mode, raw_input, status, max_attempts, scheduled_at, created_at, updated_at)
	VALUES ($1, $2, $3, 'PENDING', $4, $5, $5, $5)
	RETURNING ` + jobColumns

// reserveNextSQL leases the oldest due job. A job whose lease expired is due again; the
// status stays PENDING throughout.
const reserveNextSQL = `
	UPDATE design_validations
	SET lease_owner = $2, lease_expires_at = $3, updated_at = $1
	WHERE id = (
		SELECT id FROM design_validations
		WHERE status = 'PENDING'
		  AND scheduled_at <= $1
		  AND (lease_expires_at IS NULL OR lease_expires_at <= $1)
		ORDER BY scheduled_at, created_at
		LIMIT 1
		FOR UPDATE SKIP LOCKED
	)
	RETURNING ` + jobColumns

// failJobSQL counts the attempt and either reschedules the job or, once the failure is
// terminal ($4) or attempts are used up, moves it to FAILED.
const failJobSQL = `
	WITH next AS (
		SELECT id, ($4 OR attempt_count + 1 >= max_attempts) AS final
		FROM design_validations
		WHERE id = $1 AND lease_owner = $2 AND status = 'PENDING'
		FOR UPDATE
	)
	UPDATE design_validations d
	SET attempt_count = d.attempt_count + 1,
	    last_attempt_error = $3,
	    status = CASE WHEN next.final THEN 'FAILED' ELSE 'PENDING' END,
	    error = CASE WHEN next.final THEN $3 END,
	    completed_at = CASE WHEN next.final THEN $6::timestamptz END,
	    scheduled_at = CASE WHEN next.final THEN d.scheduled_at ELSE $5::timestamptz END,
	    lease_owner = NULL,
	    lease_expires_at = NULL,
	    updated_at = $6
	FROM next
	WHERE d.id = next.id
	RETURNING d.status, d.attempt_count`

// Create inserts a PENDING job and, in the same transaction, notifies listening workers.
func (r *JobRepo) Create(ctx context.Context, req *model.CreateJobRequest) (*model.Job, error) {
	if req == nil {
		return nil, errors.New("create job request is required")
	}
	if err := req.Validate(); err != nil {
		return nil, err
	}

	var job *model.Job
	err := pgxutil.InPgxTx(ctx, r.db.DB, pgx.TxOptions{}, func(tx pgx.Tx) error {
		rows, err := tx.Query(ctx, insertJobSQL,
			uuid.NewString(), req.InputMode, string(req.RawInput), req.MaxAttempts, r.now())
		if err != nil {
			return fmt.Errorf("insert job: %w", err)
		}
		row, err := pgx.CollectExactlyOneRow(rows, pgx.RowToStructByName[jobRow])
		if err != nil {
			return fmt.Errorf("insert job: %w", err)
		}
		if _, err := tx.Exec(ctx, `SELECT pg_notify($1::text, $2::text)`, notifyChannel, row.ID); err != nil {
			return fmt.Errorf("notify %s: %w", notifyChannel, err)
		}
		job = row.toModel()
		return nil
	})
	if err != nil {
		return nil, err
	}
	return job, nil
}

// ReserveNext leases the next due job to a fresh owner id. An empty queue yields
// model.ErrNoJobsAvailable.
func (r *JobRepo) ReserveNext(ctx context.Context, lease time.Duration) (*model.Job, error) {
	if lease <= 0 {
		return nil, errors.New("lease must be positive")
	}

	now := r.now()
	var row jobRow
	err := r.db.GetContext(ctx, &row, reserveNextSQL, now, uuid.NewString(), now.Add(lease))
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return nil, model.ErrNoJobsAvailable
	case err != nil:
		return nil, fmt.Errorf("reserve job: %w", err)
	}
	return row.toModel(), nil
}

// Heartbeat pushes the lease out by params.Lease. It reports false once the caller has lost
// the lease or the job has left PENDING.
func (r *JobRepo) Heartbeat(ctx context.Context, params core.HeartbeatParams) (bool, error) {
	if params.Lease <= 0 {
		return false, errors.New("lease must be positive")
	}
	now := r.now()
	return r.execOwned(ctx, "heartbeat", `
		UPDATE design_validations
		SET lease_expires_at = $3, updated_at = $4
		WHERE id = $1 AND lease_owner = $2 AND status = 'PENDING'`,
		params.ID, params.Owner, now.Add(params.Lease), now)
}

// Complete stores the result and marks the job SUCCESS. Like Heartbeat it only applies while
// the caller still owns the lease.
func (r *JobRepo) Complete(ctx context.Context, params core.CompleteJobParams) (bool, error) {
	if len(params.Result) == 0 {
		return false, errors.New("result is required")
	}
	return r.execOwned(ctx, "complete", `
		UPDATE design_validations
		SET status = 'SUCCESS',
		    result = $3::jsonb,
		    error = NULL,
		    pipeline = NULLIF($4, ''),
		    lease_owner = NULL,
		    lease_expires_at = NULL,
		    completed_at = $5,
		    updated_at = $5
		WHERE id = $1 AND lease_owner = $2 AND status = 'PENDING'`,
		params.ID, params.Owner, string(params.Result), params.Pipeline, r.now())
}

func (r *JobRepo) execOwned(ctx context.Context, op, query string, args ...any) (bool, error) {
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return false, fmt.Errorf("%s job: %w", op, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("%s rows affected: %w", op, err)
	}
	return n > 0, nil
}

// Fail records one failed attempt. Outcome.Applied is false when the caller no longer owns
// the job; nothing changes in that case.
func (r *JobRepo) Fail(ctx context.Context, params core.FailJobParams) (*core.FailOutcome, error) {
	now := r.now()
	retryAt := params.RetryAt.UTC()
	if retryAt.Before(now) {
		retryAt = now
	}

	out := &core.FailOutcome{}
	err := r.db.QueryRowxContext(ctx, failJobSQL,
		params.ID, params.Owner, params.ErrMsg, params.Terminal, retryAt, now,
	).Scan(&out.Status, &out.AttemptCount)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return out, nil
	case err != nil:
		return nil, fmt.Errorf("fail job: %w", err)
	}
	out.Applied = true
	return out, nil
}

// Stats counts jobs per status.
func (r *JobRepo) Stats(ctx context.Context) (*model.JobStats, error) {
	var s model.JobStats
	err := r.db.QueryRowContext(ctx, `
		SELECT count(*) FILTER (WHERE status = 'PENDING'),
		       count(*) FILTER (WHERE status = 'SUCCESS'),
		       count(*) FILTER (WHERE status = 'FAILED')
		FROM design_validations`).Scan(&s.Pending, &s.Success, &s.Failed)
	if err != nil {
		return nil, fmt.Errorf("job stats: %w", err)
	}
	return &s, nil
}

// GetByID loads one job. Ids that are not UUIDs are reported as not found without a query.
func (r *JobRepo) GetByID(ctx context.Context, id string) (*model.Job, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, ErrJobNotFound
	}

	var row jobRow
	err := r.db.GetContext(ctx, &row, `SELECT `+jobColumns+` FROM design_validations WHERE id = $1`, id)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return nil, ErrJobNotFound
	case err != nil:
		return nil, fmt.Errorf("get job %s: %w", id, err)
	}
	return row.toModel(), nil
}

// WaitForNotification LISTENs on a dedicated connection until a job is inserted or ctx
// ends.
func (r *JobRepo) WaitForNotification(ctx context.Context) error {
	conn, err := r.db.Conn(ctx)
	if err != nil {
		return fmt.Errorf("listen conn: %w", err)
	}
	defer func() {
		if cerr := conn.Close(); cerr != nil {
			r.logger.DebugContext(ctx, "close listen conn", "error", cerr)
		}
	}()

	channel := pgx.Identifier{notifyChannel}.Sanitize()
	if _, err := conn.ExecContext(ctx, "LISTEN "+channel); err != nil {
		return fmt.Errorf("listen %s: %w", notifyChannel, err)
	}
	// The connection returns to the pool, so drop the subscription even after ctx ended.
	defer func() {
		if _, err := conn.ExecContext(context.WithoutCancel(ctx), "UNLISTEN "+channel); err != nil {
			r.logger.DebugContext(ctx, "unlisten", "error", err)
		}
	}()

	return conn.Raw(func(driverConn any) error {
		std, ok := driverConn.(*stdlib.Conn)
		if !ok {
			return fmt.Errorf("listen needs a pgx connection, got %T", driverConn)
		}
		_, err := std.Conn().WaitForNotification(ctx)
		return err
	})
}
