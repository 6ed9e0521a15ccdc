package pipeline

import (
	"context"
	"math"

	"github.com/innovites/cableaudit/internal/domain/model"
)

// Confidence bands: complete data, minor gaps, critical data missing.
const (
	confidenceCompleteMax = 0.99
	confidenceCompleteMin = 0.95
	confidenceMinorMax    = 0.90
	confidenceMinorMin    = 0.70
	confidenceCriticalMax = 0.65
	confidenceCriticalMin = 0.30

	penaltyWarn = 0.01
	penaltyFail = 0.02
)

// ReferenceAuditor is an offline auditor that adopts the evidence verdicts
// and scores confidence from data completeness.
type ReferenceAuditor struct{}

// NewReferenceAuditor returns the deterministic auditor.
func NewReferenceAuditor() *ReferenceAuditor {
	return &ReferenceAuditor{}
}

// Name implements Auditor.
func (*ReferenceAuditor) Name() string { return "reference" }

// Audit implements Auditor.
func (*ReferenceAuditor) Audit(ctx context.Context, evidence model.EvidenceDocument, rec model.DesignRecord) (model.AuditReport, error) {
	if err := ctx.Err(); err != nil {
		return model.AuditReport{}, err
	}
	if rec.IsEmpty() {
		return OutOfScopeReport(ExplanationNothingExtracted), nil
	}

	verdicts := ParseEvidence(evidence)
	return model.AuditReport{
		Fields:     rec,
		Verdicts:   verdicts,
		Confidence: Confidence(rec, verdicts),
	}, nil
}

// Confidence scores a report. Missing csa, conductor material or insulation thickness
// puts it in the critical band; other gaps in the minor band. WARN and FAIL verdicts
// lower the score within its band.
func Confidence(rec model.DesignRecord, verdicts []model.FieldVerdict) float64 {
	critical := countTrue(rec.CSA == nil, rec.ConductorMaterial == nil, rec.InsulationThickness == nil)
	minor := countTrue(rec.Standard == nil, rec.Voltage == nil, rec.ConductorClass == nil, rec.InsulationMaterial == nil)

	var base, floor, ceil float64
	switch {
	case critical > 0:
		base = confidenceCriticalMax - 0.1*float64(critical-1)
		floor, ceil = confidenceCriticalMin, confidenceCriticalMax
	case minor > 0:
		base = confidenceMinorMax - 0.05*float64(minor-1)
		floor, ceil = confidenceMinorMin, confidenceMinorMax
	default:
		base = confidenceCompleteMax
		floor, ceil = confidenceCompleteMin, confidenceCompleteMax
	}

	for _, v := range verdicts {
		switch v.Status {
		case model.VerdictWarn:
			base -= penaltyWarn
		case model.VerdictFail:
			base -= penaltyFail
		}
	}

	base = math.Max(floor, math.Min(ceil, base))
	return math.Round(base*100) / 100
}

func countTrue(missing ...bool) int {
	n := 0
	for _, m := range missing {
		if m {
			n++
		}
	}
	return n
}
