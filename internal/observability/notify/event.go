// Package notify carries the failure alert payload and the contract webhook sinks implement.
package notify

import (
	"context"
	"strings"
	"time"
)

// SeverityCritical is used when a payload names no severity.
const SeverityCritical = "critical"

// JobFailurePayload describes a validation job that ended FAILED.
type JobFailurePayload struct {
	JobID        string
	InputMode    string
	Stage        string // pipeline stage that raised the final error
	ErrorKind    string
	AttemptCount int
	MaxAttempts  int
	Error        string
	ErrorClass   string
	Severity     string
	OccurredAt   time.Time
	Metadata     map[string]string
}

// Normalized fills the defaults every sink relies on: a lower-case severity (critical when
// blank), OccurredAt in UTC (now when zero) and nil rather than empty Metadata.
func (p JobFailurePayload) Normalized(now time.Time) JobFailurePayload {
	p.Severity = strings.ToLower(strings.TrimSpace(p.Severity))
	if p.Severity == "" {
		p.Severity = SeverityCritical
	}
	if p.OccurredAt.IsZero() {
		p.OccurredAt = now
	}
	p.OccurredAt = p.OccurredAt.UTC()
	if len(p.Metadata) == 0 {
		p.Metadata = nil
	}
	return p
}

// Sink delivers one failure alert.
type Sink interface {
	SendJobFailure(ctx context.Context, payload JobFailurePayload) error
}

// SinkFunc lets a plain function act as a Sink. A nil SinkFunc accepts everything.
type SinkFunc func(ctx context.Context, payload JobFailurePayload) error

func (f SinkFunc) SendJobFailure(ctx context.Context, payload JobFailurePayload) error {
	if f == nil {
		return nil
	}
	return f(ctx, payload)
}
