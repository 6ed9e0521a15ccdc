// Package errors maps failures onto the low-cardinality error_class tag used by metrics and
// failure notifications.
package errors

import (
	"context"
	goerrors "errors"
	"net"
	"reflect"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/innovites/cableaudit/internal/pipeline"
)

// Classify returns an error_class value for err.
//
// Pipeline failures classify as "<stage>_<kind>" (for example "extract_transient"), deadline
// and cancellation map to "timeout" and "canceled", Postgres errors to "postgres_<sqlstate
// class>", and network errors to "network". Anything else falls back to the innermost concrete
// type name in snake case.
func Classify(err error) string {
	if err == nil {
		return ""
	}

	if se, ok := pipeline.AsStageError(err); ok {
		if inner := classifyCause(se.Err); inner == "timeout" {
			return string(se.Stage) + "_timeout"
		}
		return string(se.Stage) + "_" + string(se.Kind)
	}
	if class := classifyCause(err); class != "" {
		return class
	}
	return typeName(err)
}

func classifyCause(err error) string {
	if err == nil {
		return ""
	}
	if goerrors.Is(err, context.DeadlineExceeded) {
		return "timeout"
	}
	if goerrors.Is(err, context.Canceled) {
		return "canceled"
	}
	var pgErr *pgconn.PgError
	if goerrors.As(err, &pgErr) && len(pgErr.Code) >= 2 {
		return "postgres_" + pgErr.Code[:2]
	}
	var netErr net.Error
	if goerrors.As(err, &netErr) {
		if netErr.Timeout() {
			return "timeout"
		}
		return "network"
	}
	return ""
}

func typeName(err error) string {
	for {
		unwrapped := goerrors.Unwrap(err)
		if unwrapped == nil {
			break
		}
		err = unwrapped
	}

	t := reflect.TypeOf(err)
	for t != nil && t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t == nil {
		return "unknown"
	}

	name := strings.ToLower(strings.ReplaceAll(t.String(), "*", ""))
	name = strings.ReplaceAll(name, ".", "_")
	if name == "" {
		return "unknown"
	}
	return name
}
