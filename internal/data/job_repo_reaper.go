package data

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/innovites/cableaudit/internal/core"
	"github.com/innovites/cableaudit/internal/data/pgxutil"
)

// reaperLockClass is the first key of pg_try_advisory_xact_lock(class, op); each cleanup
// operation takes its own second key so replicas never run the same sweep concurrently.
const reaperLockClass = 8130

const (
	lockFailPending int32 = iota + 1
	lockDeleteOld
)

// staleJobError is stored on jobs the reaper gives up on.
const staleJobError = "job exceeded maximum pending age"

const failStalePendingSQL = `
	UPDATE design_validations
	SET status = 'FAILED',
	    error = $3,
	    last_attempt_error = COALESCE(last_attempt_error, $3),
	    lease_owner = NULL,
	    lease_expires_at = NULL,
	    completed_at = $1,
	    updated_at = $1
	WHERE id IN (
		SELECT id FROM design_validations
		WHERE status = 'PENDING'
		  AND created_at < $2
		  AND (lease_expires_at IS NULL OR lease_expires_at <= $1)
		ORDER BY created_at
		LIMIT $4
		FOR UPDATE SKIP LOCKED
	)`

const deleteOldJobsSQL = `
	DELETE FROM design_validations
	WHERE id IN (
		SELECT id FROM design_validations
		WHERE status = $1 AND COALESCE(completed_at, updated_at) < $2
		ORDER BY COALESCE(completed_at, updated_at)
		LIMIT $3
	)`

// FailStalePendingJobs fails up to batchSize PENDING jobs older than maxAge. Jobs under a
// live lease are left to their worker. It returns 0 when another replica holds the lock.
func (r *JobRepo) FailStalePendingJobs(ctx context.Context, maxAge time.Duration, batchSize int) (int64, error) {
	if err := checkSweepBounds(maxAge, batchSize); err != nil {
		return 0, err
	}
	now := r.now()
	return r.lockedSweep(ctx, lockFailPending, "fail stale pending jobs",
		failStalePendingSQL, now, now.Add(-maxAge), staleJobError, batchSize)
}

// DeleteOldJobs deletes up to BatchSize jobs in a terminal status that finished more than
// MaxAge ago.
func (r *JobRepo) DeleteOldJobs(ctx context.Context, params core.DeleteOldJobsParams) (int64, error) {
	if !params.Status.Terminal() {
		return 0, fmt.Errorf("invalid job status for deletion: %s", params.Status)
	}
	if err := checkSweepBounds(params.MaxAge, params.BatchSize); err != nil {
		return 0, err
	}
	return r.lockedSweep(ctx, lockDeleteOld, "delete old jobs",
		deleteOldJobsSQL, params.Status, r.now().Add(-params.MaxAge), params.BatchSize)
}

func checkSweepBounds(maxAge time.Duration, batchSize int) error {
	switch {
	case maxAge <= 0:
		return errors.New("max age must be greater than zero")
	case batchSize <= 0:
		return errors.New("batch size must be greater than zero")
	}
	return nil
}

// lockedSweep runs query inside a transaction holding the reaper lock for op and reports
// the rows it touched.
func (r *JobRepo) lockedSweep(ctx context.Context, op int32, label, query string, args ...any) (int64, error) {
	var n int64
	err := pgxutil.InTx(ctx, r.db, nil, func(tx *sql.Tx) error {
		var locked bool
		if err := tx.QueryRowContext(ctx, `SELECT pg_try_advisory_xact_lock($1, $2)`, reaperLockClass, op).Scan(&locked); err != nil {
			return fmt.Errorf("acquire advisory lock: %w", err)
		}
		if !locked {
			return nil
		}
		res, err := tx.ExecContext(ctx, query, args...)
		if err != nil {
			return fmt.Errorf("%s: %w", label, err)
		}
		if n, err = res.RowsAffected(); err != nil {
			return fmt.Errorf("%s rows affected: %w", label, err)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return n, nil
}
