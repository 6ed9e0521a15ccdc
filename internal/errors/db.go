package errors

import (
	"context"
	"database/sql"
	"errors"
	"regexp"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// keyColumn pulls the column out of a unique violation detail: `Key (csa_mm2)=(50) already exists.`
var keyColumn = regexp.MustCompile(`Key \(([^)]+)\)=`)

type pgMapping struct {
	code    ErrorCode
	message string
}

// sqlStates lists the SQLSTATEs with a specific mapping. Everything else from the server is
// internal unless its class marks the database as temporarily unusable.
var sqlStates = map[string]pgMapping{
	pgerrcode.UniqueViolation:      {ErrCodeConflict, "A matching record already exists."},
	pgerrcode.CheckViolation:       {ErrCodeValidation, "Value rejected by a database constraint."},
	pgerrcode.NotNullViolation:     {ErrCodeValidation, "A required value is missing."},
	pgerrcode.ForeignKeyViolation:  {ErrCodeValidation, "Referenced record does not exist."},
	pgerrcode.SerializationFailure: {ErrCodeUnavailable, "Database is busy, try again."},
	pgerrcode.DeadlockDetected:     {ErrCodeUnavailable, "Database is busy, try again."},
	pgerrcode.LockNotAvailable:     {ErrCodeUnavailable, "Database is busy, try again."},
}

// MapDBError turns driver and context errors into AppErrors so the HTTP layer can pick a
// status. Errors it does not recognise come back unchanged.
func MapDBError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, context.DeadlineExceeded):
		return Wrap(err, ErrCodeTimeout, "Database request timed out.")
	case errors.Is(err, context.Canceled):
		return Wrap(err, ErrCodeCanceled, "Request was canceled.")
	case errors.Is(err, pgx.ErrNoRows), errors.Is(err, sql.ErrNoRows):
		return Wrap(err, ErrCodeNotFound, "Resource not found.")
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return fromPgError(pgErr)
	}
	var connErr *pgconn.ConnectError
	if errors.As(err, &connErr) {
		return Wrap(err, ErrCodeUnavailable, "Database is unavailable.")
	}
	return err
}

func fromPgError(pgErr *pgconn.PgError) *AppError {
	m, ok := sqlStates[pgErr.Code]
	if !ok {
		m = pgMapping{ErrCodeInternal, "Database error."}
		if pgerrcode.IsConnectionException(pgErr.Code) ||
			pgerrcode.IsOperatorIntervention(pgErr.Code) ||
			pgerrcode.IsInsufficientResources(pgErr.Code) {
			m = pgMapping{ErrCodeUnavailable, "Database is unavailable."}
		}
	}

	appErr := Wrap(pgErr, m.code, m.message)
	appErr.Field = pgErr.ColumnName
	if appErr.Field == "" && pgErr.Code == pgerrcode.UniqueViolation {
		if match := keyColumn.FindStringSubmatch(pgErr.Detail); match != nil {
			appErr.Field = match[1]
		}
	}
	return appErr
}
