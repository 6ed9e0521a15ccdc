package pipeline

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/innovites/cableaudit/internal/domain/model"
)

func TestReferenceAuditor_EmptyRecordIsOutOfScope(t *testing.T) {
	report, err := NewReferenceAuditor().Audit(context.Background(), EvidenceFormatter{}.Format(nil), model.DesignRecord{})
	require.NoError(t, err)

	assert.True(t, report.IsOutOfScope)
	require.NotNil(t, report.OutOfScopeExplanation)
	assert.NotEmpty(t, *report.OutOfScopeExplanation)
	assert.Empty(t, report.Verdicts)
	assert.NoError(t, CheckReport(report))
}

func TestReferenceAuditor_AdoptsEvidence(t *testing.T) {
	verdicts := []model.FieldVerdict{
		{Field: "csa", Status: model.VerdictPass, Expected: model.Ptr("50 mm²"), Comment: "ok"},
		{Field: "insulation_thickness", Status: model.VerdictFail, Comment: "thin"},
	}
	rec := model.DesignRecord{CSA: model.Ptr(50.0)}

	report, err := NewReferenceAuditor().Audit(context.Background(), EvidenceFormatter{}.Format(verdicts), rec)
	require.NoError(t, err)

	assert.False(t, report.IsOutOfScope)
	assert.Equal(t, verdicts, report.Verdicts)
	assert.Equal(t, rec, report.Fields)
	assert.NoError(t, CheckReport(report))
}

func TestConfidence(t *testing.T) {
	complete := model.DesignRecord{
		Standard:            model.Ptr("IS 1554-1"),
		Voltage:             model.Ptr("0.6/1 kV"),
		ConductorMaterial:   model.Ptr("Cu"),
		ConductorClass:      model.Ptr("Class 2"),
		CSA:                 model.Ptr(50.0),
		InsulationMaterial:  model.Ptr("PVC"),
		InsulationThickness: model.Ptr(1.4),
	}
	threeWarns := []model.FieldVerdict{
		{Field: "standard", Status: model.VerdictWarn},
		{Field: "voltage", Status: model.VerdictWarn},
		{Field: "insulation_material", Status: model.VerdictWarn},
	}

	minorGap := complete
	minorGap.Voltage = nil

	criticalGap := complete
	criticalGap.InsulationThickness = nil

	tests := []struct {
		name     string
		rec      model.DesignRecord
		verdicts []model.FieldVerdict
		min, max float64
	}{
		{name: "complete", rec: complete, verdicts: threeWarns, min: 0.95, max: 0.99},
		{name: "minor gap", rec: minorGap, verdicts: threeWarns, min: 0.70, max: 0.90},
		{name: "critical gap", rec: criticalGap, verdicts: threeWarns, min: 0.30, max: 0.69},
		{
			name: "many failures stay in band",
			rec:  minorGap,
			verdicts: []model.FieldVerdict{
				{Status: model.VerdictFail}, {Status: model.VerdictFail}, {Status: model.VerdictFail},
				{Status: model.VerdictFail}, {Status: model.VerdictFail}, {Status: model.VerdictFail},
				{Status: model.VerdictFail}, {Status: model.VerdictFail}, {Status: model.VerdictFail},
				{Status: model.VerdictFail}, {Status: model.VerdictFail}, {Status: model.VerdictFail},
			},
			min: 0.70, max: 0.70,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Confidence(tt.rec, tt.verdicts)
			assert.GreaterOrEqual(t, got, tt.min)
			assert.LessOrEqual(t, got, tt.max)
		})
	}
}
