package pipeline

import (
	"errors"
	"fmt"
)

// Stage names a pipeline step in errors, logs and metrics.
type Stage string

const (
	StageDecode   Stage = "decode"
	StageExtract  Stage = "extract"
	StageValidate Stage = "validate"
	StageAudit    Stage = "audit"
)

// Kind classifies a stage failure for the retry decision.
type Kind string

const (
	// KindMalformedInput is a submission that can never succeed. Terminal.
	KindMalformedInput Kind = "malformed_input"
	// KindExtraction is an extractor that ran but produced unusable output.
	KindExtraction Kind = "extraction"
	// KindAudit is an auditor that ran but produced a non-conforming report.
	KindAudit Kind = "audit"
	// KindTransient covers timeouts, network and store failures.
	KindTransient Kind = "transient"
)

// StageError is the error returned by a failed pipeline run.
type StageError struct {
	Stage Stage
	Kind  Kind
	Err   error
}

func (e *StageError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s failed", e.Stage)
	}
	return fmt.Sprintf("%s failed: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

// Retryable reports whether another attempt could succeed.
func (e *StageError) Retryable() bool {
	return e.Kind != KindMalformedInput
}

// NewStageError tags err with its stage and kind.
func NewStageError(stage Stage, kind Kind, err error) *StageError {
	return &StageError{Stage: stage, Kind: kind, Err: err}
}

// AsStageError extracts a *StageError from err's chain.
func AsStageError(err error) (*StageError, bool) {
	var se *StageError
	if errors.As(err, &se) {
		return se, true
	}
	return nil, false
}

// IsTerminal reports whether err must not be retried.
// Errors that are not StageErrors are treated as transient.
func IsTerminal(err error) bool {
	se, ok := AsStageError(err)
	return ok && !se.Retryable()
}

// tag wraps err unless a stage implementation already classified it.
func tag(stage Stage, kind Kind, err error) error {
	if se, ok := AsStageError(err); ok {
		if se.Stage == "" {
			se.Stage = stage
		}
		return se
	}
	return NewStageError(stage, kind, err)
}
