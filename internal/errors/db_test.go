package errors

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
)

func TestMapDBError(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		wantCode  ErrorCode
		wantField string
	}{
		{name: "deadline", err: context.DeadlineExceeded, wantCode: ErrCodeTimeout},
		{name: "canceled", err: fmt.Errorf("query: %w", context.Canceled), wantCode: ErrCodeCanceled},
		{name: "pgx no rows", err: pgx.ErrNoRows, wantCode: ErrCodeNotFound},
		{name: "sql no rows wrapped", err: fmt.Errorf("get job: %w", sql.ErrNoRows), wantCode: ErrCodeNotFound},
		{
			name:      "unique violation column from detail",
			err:       &pgconn.PgError{Code: pgerrcode.UniqueViolation, Detail: "Key (csa_mm2)=(50) already exists."},
			wantCode:  ErrCodeConflict,
			wantField: "csa_mm2",
		},
		{name: "check violation", err: &pgconn.PgError{Code: pgerrcode.CheckViolation}, wantCode: ErrCodeValidation},
		{
			name:      "not null keeps column",
			err:       &pgconn.PgError{Code: pgerrcode.NotNullViolation, ColumnName: "raw_input"},
			wantCode:  ErrCodeValidation,
			wantField: "raw_input",
		},
		{name: "deadlock", err: &pgconn.PgError{Code: pgerrcode.DeadlockDetected}, wantCode: ErrCodeUnavailable},
		{name: "connection class", err: &pgconn.PgError{Code: pgerrcode.ConnectionFailure}, wantCode: ErrCodeUnavailable},
		{name: "operator intervention", err: &pgconn.PgError{Code: pgerrcode.AdminShutdown}, wantCode: ErrCodeUnavailable},
		{name: "too many connections", err: &pgconn.PgError{Code: pgerrcode.TooManyConnections}, wantCode: ErrCodeUnavailable},
		{name: "syntax error", err: &pgconn.PgError{Code: pgerrcode.SyntaxError}, wantCode: ErrCodeInternal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := MapDBError(tt.err)
			assert.Equal(t, tt.wantCode, GetCode(got))
			assert.Equal(t, tt.wantField, GetField(got))
			assert.ErrorIs(t, got, tt.err)
		})
	}
}

func TestMapDBError_PassThrough(t *testing.T) {
	assert.NoError(t, MapDBError(nil))

	orig := errors.New("something else")
	got := MapDBError(orig)
	assert.Same(t, orig, got)
	assert.Empty(t, GetCode(got))
}
