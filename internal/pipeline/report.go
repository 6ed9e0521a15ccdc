package pipeline

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/innovites/cableaudit/internal/domain/model"
)

// CheckReport rejects reports that do not have the required shape.
func CheckReport(r model.AuditReport) error {
	if math.IsNaN(r.Confidence) || r.Confidence < 0 || r.Confidence > 1 {
		return fmt.Errorf("confidence %v outside [0,1]", r.Confidence)
	}
	if r.IsOutOfScope && (r.OutOfScopeExplanation == nil || strings.TrimSpace(*r.OutOfScopeExplanation) == "") {
		return errors.New("out-of-scope report has no explanation")
	}
	for i, v := range r.Verdicts {
		if strings.TrimSpace(v.Field) == "" {
			return fmt.Errorf("verdict %d has no field name", i)
		}
		if !v.Status.Valid() {
			return fmt.Errorf("verdict %d (%s) has invalid status %q", i, v.Field, v.Status)
		}
	}
	return nil
}

// Reconcile makes the reference dataset authoritative on the fields it decided.
//
// Validator verdicts with PASS or FAIL replace any auditor verdict for the same field
// and are appended when the auditor omitted them. WARN fields stay with the auditor.
// The report's fields are always the validated record.
func Reconcile(report model.AuditReport, rec model.DesignRecord, validated []model.FieldVerdict) model.AuditReport {
	report.Fields = rec
	if report.IsOutOfScope {
		return report
	}

	authoritative := make(map[string]model.FieldVerdict, len(validated))
	for _, v := range validated {
		if v.Status == model.VerdictPass || v.Status == model.VerdictFail {
			authoritative[v.Field] = v
		}
	}
	if len(authoritative) == 0 {
		return report
	}

	used := make(map[string]bool, len(authoritative))
	merged := make([]model.FieldVerdict, 0, len(report.Verdicts)+len(authoritative))
	for _, v := range report.Verdicts {
		ref, ok := authoritative[v.Field]
		if !ok {
			merged = append(merged, v)
			continue
		}
		if used[v.Field] {
			continue
		}
		used[v.Field] = true
		merged = append(merged, ref)
	}
	for _, v := range validated {
		if _, ok := authoritative[v.Field]; ok && !used[v.Field] {
			used[v.Field] = true
			merged = append(merged, v)
		}
	}
	report.Verdicts = merged
	return report
}

// OutOfScopeReport is returned for inputs from which nothing could be extracted.
func OutOfScopeReport(explanation string) model.AuditReport {
	return model.AuditReport{
		IsOutOfScope:          true,
		OutOfScopeExplanation: model.Ptr(explanation),
		Verdicts:              []model.FieldVerdict{},
		Confidence:            0,
	}
}

// ExplanationNothingExtracted is the out-of-scope explanation used when the record is empty.
const ExplanationNothingExtracted = "No cable design parameters were found in the input; " +
	"it does not describe a cable design that can be validated."
