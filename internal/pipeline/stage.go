// Package pipeline turns one validation submission into an audit report.
//
// A run is four stages executed strictly in sequence: field extraction (or a schema
// check for structured input), reference validation, evidence formatting and audit.
// Each stage sits behind its own interface so variants can be chosen when the
// Orchestrator is built.
package pipeline

import (
	"context"

	"github.com/innovites/cableaudit/internal/domain/model"
)

// Extractor turns free text into a DesignRecord.
// An input that is not a cable design yields an empty record, not an error.
type Extractor interface {
	Name() string
	Extract(ctx context.Context, description string) (model.DesignRecord, error)
}

// Validator checks a DesignRecord against the reference dataset.
// The returned error is reserved for reference store failures.
type Validator interface {
	Validate(ctx context.Context, rec model.DesignRecord) ([]model.FieldVerdict, error)
}

// Formatter renders verdicts as the evidence document handed to the auditor.
type Formatter interface {
	Format(verdicts []model.FieldVerdict) model.EvidenceDocument
}

// Auditor produces the final report from the evidence and the validated record.
type Auditor interface {
	Name() string
	Audit(ctx context.Context, evidence model.EvidenceDocument, rec model.DesignRecord) (model.AuditReport, error)
}
