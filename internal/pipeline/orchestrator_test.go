package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/innovites/cableaudit/internal/domain/model"
)

type stubExtractor struct {
	rec   model.DesignRecord
	err   error
	block bool
}

func (s *stubExtractor) Name() string { return "stub" }

func (s *stubExtractor) Extract(ctx context.Context, _ string) (model.DesignRecord, error) {
	if s.block {
		<-ctx.Done()
		return model.DesignRecord{}, ctx.Err()
	}
	return s.rec, s.err
}

type stubAuditor struct {
	report model.AuditReport
	err    error
	calls  int
}

func (s *stubAuditor) Name() string { return "stub" }

func (s *stubAuditor) Audit(context.Context, model.EvidenceDocument, model.DesignRecord) (model.AuditReport, error) {
	s.calls++
	return s.report, s.err
}

type recordingObserver struct {
	mu     sync.Mutex
	stages []Stage
}

func (r *recordingObserver) ObserveStage(stage Stage, _ time.Duration, _ error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stages = append(r.stages, stage)
}

func newTestOrchestrator(t *testing.T, opts Options) *Orchestrator {
	t.Helper()
	if opts.Extractor == nil {
		opts.Extractor = NewPatternExtractor()
	}
	if opts.Validator == nil {
		opts.Validator = NewReferenceValidator(defaultIndex(t))
	}
	if opts.Auditor == nil {
		opts.Auditor = NewReferenceAuditor()
	}
	o, err := New(opts)
	require.NoError(t, err)
	return o
}

func requireStageError(t *testing.T, err error, stage Stage, kind Kind) *StageError {
	t.Helper()
	require.Error(t, err)
	se, ok := AsStageError(err)
	require.True(t, ok, "expected *StageError, got %T: %v", err, err)
	assert.Equal(t, stage, se.Stage)
	assert.Equal(t, kind, se.Kind)
	return se
}

func TestNew_RequiresStages(t *testing.T) {
	_, err := New(Options{})
	require.Error(t, err)

	o, err := New(Options{
		Extractor: NewPatternExtractor(),
		Validator: NewReferenceValidator(defaultIndex(t)),
		Auditor:   NewReferenceAuditor(),
	})
	require.NoError(t, err)
	assert.Equal(t, "pattern+reference", o.Name())
}

func TestOrchestrator_StructuredThinInsulationFails(t *testing.T) {
	obs := &recordingObserver{}
	o := newTestOrchestrator(t, Options{Observer: obs})

	raw := json.RawMessage(`{"csa": 50, "conductor_material": "Cu", "insulation_thickness": 1.0}`)
	report, err := o.Run(context.Background(), model.InputModeStructured, raw)
	require.NoError(t, err)

	assert.False(t, report.IsOutOfScope)
	assert.Equal(t, model.Ptr(50.0), report.Fields.CSA)

	thickness := verdictFor(t, report.Verdicts, model.FieldInsulationThickness)
	assert.Equal(t, model.VerdictFail, thickness.Status)
	assert.Equal(t, model.VerdictPass, verdictFor(t, report.Verdicts, model.FieldCSA).Status)
	assert.Equal(t, model.VerdictPass, verdictFor(t, report.Verdicts, model.FieldConductorMaterial).Status)
	assert.GreaterOrEqual(t, report.Confidence, 0.0)
	assert.LessOrEqual(t, report.Confidence, 1.0)

	assert.Equal(t, []Stage{StageValidate, StageAudit}, obs.stages)
}

func TestOrchestrator_FreeTextOutOfScope(t *testing.T) {
	descriptions := []string{
		"unrelated cooking recipe",
		"unrelated cooking recipe: pasta al dente with 2 mm slices of garlic",
		"a chocolate cake recipe by Al",
	}
	o := newTestOrchestrator(t, Options{})

	for _, desc := range descriptions {
		t.Run(desc, func(t *testing.T) {
			raw, err := json.Marshal(map[string]string{"description": desc})
			require.NoError(t, err)

			report, err := o.Run(context.Background(), model.InputModeFreeText, raw)
			require.NoError(t, err)

			assert.True(t, report.IsOutOfScope)
			require.NotNil(t, report.OutOfScopeExplanation)
			assert.NotEmpty(t, *report.OutOfScopeExplanation)
			assert.Empty(t, report.Verdicts)
		})
	}
}

func TestOrchestrator_FreeTextExtractsAndValidates(t *testing.T) {
	o := newTestOrchestrator(t, Options{})

	raw := json.RawMessage(`{"description": "0.6/1 kV copper class 2, 95 mm², PVC insulation 1.6 mm"}`)
	report, err := o.Run(context.Background(), model.InputModeFreeText, raw)
	require.NoError(t, err)

	assert.False(t, report.IsOutOfScope)
	assert.Equal(t, model.VerdictPass, verdictFor(t, report.Verdicts, model.FieldInsulationThickness).Status)
	assert.Equal(t, model.VerdictPass, verdictFor(t, report.Verdicts, model.FieldConductorClass).Status)
}

func TestOrchestrator_MalformedStructuredInputIsTerminal(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{name: "negative csa", raw: `{"csa": -1}`},
		{name: "unknown material", raw: `{"conductor_material": "Fe"}`},
		{name: "wrong type", raw: `{"csa": "fifty"}`},
		{name: "unknown field", raw: `{"colour": "red"}`},
		{name: "not an object", raw: `[1,2]`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			auditor := &stubAuditor{}
			o := newTestOrchestrator(t, Options{Auditor: auditor})

			_, err := o.Run(context.Background(), model.InputModeStructured, json.RawMessage(tt.raw))
			se := requireStageError(t, err, StageDecode, KindMalformedInput)
			assert.False(t, se.Retryable())
			assert.True(t, IsTerminal(err))
			assert.Zero(t, auditor.calls)
		})
	}
}

func TestOrchestrator_ExtractorFailures(t *testing.T) {
	t.Run("extractor error is retryable extraction", func(t *testing.T) {
		o := newTestOrchestrator(t, Options{Extractor: &stubExtractor{err: errors.New("bad json")}})
		_, err := o.Run(context.Background(), model.InputModeFreeText, json.RawMessage(`{"description":"x"}`))
		se := requireStageError(t, err, StageExtract, KindExtraction)
		assert.True(t, se.Retryable())
	})

	t.Run("invalid extracted record is extraction error", func(t *testing.T) {
		o := newTestOrchestrator(t, Options{Extractor: &stubExtractor{rec: model.DesignRecord{CSA: model.Ptr(-4.0)}}})
		_, err := o.Run(context.Background(), model.InputModeFreeText, json.RawMessage(`{"description":"x"}`))
		requireStageError(t, err, StageExtract, KindExtraction)
	})

	t.Run("timeout is transient", func(t *testing.T) {
		o := newTestOrchestrator(t, Options{
			Extractor:      &stubExtractor{block: true},
			ExtractTimeout: 10 * time.Millisecond,
		})
		_, err := o.Run(context.Background(), model.InputModeFreeText, json.RawMessage(`{"description":"x"}`))
		se := requireStageError(t, err, StageExtract, KindTransient)
		assert.ErrorIs(t, se, context.DeadlineExceeded)
	})

	t.Run("empty description is malformed", func(t *testing.T) {
		o := newTestOrchestrator(t, Options{})
		_, err := o.Run(context.Background(), model.InputModeFreeText, json.RawMessage(`{"description":"   "}`))
		requireStageError(t, err, StageDecode, KindMalformedInput)
	})
}

func TestOrchestrator_ValidatorStoreErrorIsTransient(t *testing.T) {
	o := newTestOrchestrator(t, Options{Validator: NewReferenceValidator(failingReader{err: errors.New("db down")})})

	_, err := o.Run(context.Background(), model.InputModeStructured, json.RawMessage(`{"csa": 50}`))
	requireStageError(t, err, StageValidate, KindTransient)
}

func TestOrchestrator_AuditFailures(t *testing.T) {
	t.Run("auditor error", func(t *testing.T) {
		o := newTestOrchestrator(t, Options{Auditor: &stubAuditor{err: errors.New("upstream 500")}})
		_, err := o.Run(context.Background(), model.InputModeStructured, json.RawMessage(`{"csa": 50}`))
		requireStageError(t, err, StageAudit, KindAudit)
	})

	t.Run("non-conforming report is never repaired", func(t *testing.T) {
		o := newTestOrchestrator(t, Options{Auditor: &stubAuditor{report: model.AuditReport{Confidence: 7}}})
		_, err := o.Run(context.Background(), model.InputModeStructured, json.RawMessage(`{"csa": 50}`))
		requireStageError(t, err, StageAudit, KindAudit)
	})

	t.Run("classified auditor error keeps its kind", func(t *testing.T) {
		auditErr := NewStageError("", KindTransient, errors.New("rate limited"))
		o := newTestOrchestrator(t, Options{Auditor: &stubAuditor{err: auditErr}})
		_, err := o.Run(context.Background(), model.InputModeStructured, json.RawMessage(`{"csa": 50}`))
		requireStageError(t, err, StageAudit, KindTransient)
	})
}

func TestOrchestrator_ReferenceOverridesAuditor(t *testing.T) {
	auditor := &stubAuditor{report: model.AuditReport{
		Confidence: 0.8,
		Verdicts: []model.FieldVerdict{
			{Field: model.FieldInsulationThickness, Status: model.VerdictPass, Comment: "looks fine"},
			{Field: model.FieldVoltage, Status: model.VerdictPass, Comment: "0.6/1 kV is standard"},
		},
	}}
	o := newTestOrchestrator(t, Options{Auditor: auditor})

	rec := `{"csa": 50, "conductor_material": "Cu", "insulation_thickness": 1.0, "voltage": "0.6/1 kV"}`
	report, err := o.Run(context.Background(), model.InputModeStructured, json.RawMessage(rec))
	require.NoError(t, err)

	assert.Equal(t, model.VerdictFail, verdictFor(t, report.Verdicts, model.FieldInsulationThickness).Status)
	assert.Equal(t, model.VerdictPass, verdictFor(t, report.Verdicts, model.FieldVoltage).Status)
	assert.Equal(t, model.VerdictPass, verdictFor(t, report.Verdicts, model.FieldCSA).Status)
	assert.Equal(t, model.Ptr("0.6/1 kV"), report.Fields.Voltage)
}

func TestOrchestrator_UnknownMode(t *testing.T) {
	o := newTestOrchestrator(t, Options{})
	_, err := o.Run(context.Background(), model.InputMode("xml"), json.RawMessage(`{}`))
	requireStageError(t, err, StageDecode, KindMalformedInput)
}
