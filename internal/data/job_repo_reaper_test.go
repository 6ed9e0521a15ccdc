package data

import (
	"context"
	"database/sql"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/innovites/cableaudit/internal/core"
	"github.com/innovites/cableaudit/internal/domain/model"
	"github.com/innovites/cableaudit/internal/testutil"
)

func TestJobRepo_FailStalePendingJobs(t *testing.T) {
	testutil.SkipIfNoTestDB(t)

	t.Run("fails stale pending jobs", func(t *testing.T) {
		testutil.WithAutoDB(t, func(db *sql.DB) {
			repo, clock := newFixedClockRepo(db, baseTime().Add(-2*time.Hour))
			ctx := context.Background()

			oldJob, err := repo.Create(ctx, testutil.StructuredJobRequest(50))
			require.NoError(t, err)

			clock.Advance(2 * time.Hour)
			recentJob, err := repo.Create(ctx, testutil.StructuredJobRequest(95))
			require.NoError(t, err)

			count, err := repo.FailStalePendingJobs(ctx, time.Hour, 1000)
			require.NoError(t, err)
			assert.Equal(t, int64(1), count)

			oldAfter, err := repo.GetByID(ctx, oldJob.ID)
			require.NoError(t, err)
			assert.Equal(t, model.JobStatusFailed, oldAfter.Status)
			require.NotNil(t, oldAfter.Error)
			assert.Equal(t, staleJobError, *oldAfter.Error)
			assert.NotNil(t, oldAfter.CompletedAt)

			recentAfter, err := repo.GetByID(ctx, recentJob.ID)
			require.NoError(t, err)
			assert.Equal(t, model.JobStatusPending, recentAfter.Status)
		})
	})

	t.Run("leased jobs are left to their worker", func(t *testing.T) {
		testutil.WithAutoDB(t, func(db *sql.DB) {
			repo, clock := newFixedClockRepo(db, baseTime().Add(-2*time.Hour))
			ctx := context.Background()

			_, err := repo.Create(ctx, testutil.StructuredJobRequest(50))
			require.NoError(t, err)
			clock.Advance(2 * time.Hour)
			_, err = repo.ReserveNext(ctx, time.Minute)
			require.NoError(t, err)

			count, err := repo.FailStalePendingJobs(ctx, time.Hour, 1000)
			require.NoError(t, err)
			assert.Zero(t, count)
		})
	})

	t.Run("respects batch size", func(t *testing.T) {
		testutil.WithAutoDB(t, func(db *sql.DB) {
			repo, clock := newFixedClockRepo(db, baseTime().Add(-2*time.Hour))
			ctx := context.Background()

			for range 3 {
				_, err := repo.Create(ctx, testutil.StructuredJobRequest(50))
				require.NoError(t, err)
			}
			clock.Advance(2 * time.Hour)

			count, err := repo.FailStalePendingJobs(ctx, time.Hour, 2)
			require.NoError(t, err)
			assert.Equal(t, int64(2), count)

			stats, err := repo.Stats(ctx)
			require.NoError(t, err)
			assert.Equal(t, &model.JobStats{Pending: 1, Failed: 2}, stats)
		})
	})

	t.Run("invalid arguments", func(t *testing.T) {
		repo := NewJobRepo(nil, RepoConfig{})
		_, err := repo.FailStalePendingJobs(context.Background(), 0, 10)
		require.Error(t, err)
		_, err = repo.FailStalePendingJobs(context.Background(), time.Hour, 0)
		require.Error(t, err)
	})
}

func TestJobRepo_DeleteOldJobs(t *testing.T) {
	testutil.SkipIfNoTestDB(t)

	t.Run("deletes old terminal jobs of the given status", func(t *testing.T) {
		testutil.WithAutoDB(t, func(db *sql.DB) {
			repo, clock := newFixedClockRepo(db, baseTime().Add(-48*time.Hour))
			ctx := context.Background()

			for range 2 {
				_, err := repo.Create(ctx, testutil.StructuredJobRequest(50))
				require.NoError(t, err)
			}
			done, err := repo.ReserveNext(ctx, time.Minute)
			require.NoError(t, err)
			_, err = repo.Complete(ctx, core.CompleteJobParams{ID: done.ID, Owner: *done.LeaseOwner, Result: json.RawMessage(`{}`)})
			require.NoError(t, err)
			failed, err := repo.ReserveNext(ctx, time.Minute)
			require.NoError(t, err)
			_, err = repo.Fail(ctx, core.FailJobParams{ID: failed.ID, Owner: *failed.LeaseOwner, ErrMsg: "x", Terminal: true})
			require.NoError(t, err)

			clock.Advance(48 * time.Hour)
			recent, err := repo.Create(ctx, testutil.StructuredJobRequest(95))
			require.NoError(t, err)
			recentLeased, err := repo.ReserveNext(ctx, time.Minute)
			require.NoError(t, err)
			require.Equal(t, recent.ID, recentLeased.ID)
			_, err = repo.Complete(ctx, core.CompleteJobParams{ID: recent.ID, Owner: *recentLeased.LeaseOwner, Result: json.RawMessage(`{}`)})
			require.NoError(t, err)

			count, err := repo.DeleteOldJobs(ctx, core.DeleteOldJobsParams{
				Status: model.JobStatusSuccess, MaxAge: 24 * time.Hour, BatchSize: 100,
			})
			require.NoError(t, err)
			assert.Equal(t, int64(1), count)

			_, err = repo.GetByID(ctx, done.ID)
			require.ErrorIs(t, err, ErrJobNotFound)
			_, err = repo.GetByID(ctx, recent.ID)
			require.NoError(t, err)
			_, err = repo.GetByID(ctx, failed.ID)
			require.NoError(t, err, "FAILED jobs are governed by their own retention")
		})
	})

	t.Run("invalid arguments", func(t *testing.T) {
		repo := NewJobRepo(nil, RepoConfig{})
		ctx := context.Background()

		tests := []struct {
			name   string
			params core.DeleteOldJobsParams
		}{
			{name: "pending status", params: core.DeleteOldJobsParams{Status: model.JobStatusPending, MaxAge: time.Hour, BatchSize: 1}},
			{name: "zero max age", params: core.DeleteOldJobsParams{Status: model.JobStatusFailed, BatchSize: 1}},
			{name: "zero batch", params: core.DeleteOldJobsParams{Status: model.JobStatusFailed, MaxAge: time.Hour}},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				_, err := repo.DeleteOldJobs(ctx, tt.params)
				require.Error(t, err)
			})
		}
	})
}
