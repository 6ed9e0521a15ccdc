package pipeline

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/innovites/cableaudit/internal/data/referencedata"
	"github.com/innovites/cableaudit/internal/domain/model"
)

func defaultIndex(t *testing.T) *referencedata.Index {
	t.Helper()
	ds, err := referencedata.Default()
	require.NoError(t, err)
	return referencedata.NewIndex(ds)
}

type failingReader struct{ err error }

func (f failingReader) GetConductor(context.Context, float64) (*model.ConductorSpec, error) {
	return nil, f.err
}

func (f failingReader) GetInsulation(context.Context, float64) (*model.InsulationSpec, error) {
	return nil, f.err
}

func verdictFor(t *testing.T, verdicts []model.FieldVerdict, field string) model.FieldVerdict {
	t.Helper()
	for _, v := range verdicts {
		if v.Field == field {
			return v
		}
	}
	t.Fatalf("no verdict for %s in %+v", field, verdicts)
	return model.FieldVerdict{}
}

func TestReferenceValidator_UnknownOrMissingCSA(t *testing.T) {
	v := NewReferenceValidator(defaultIndex(t))

	tests := []struct {
		name string
		rec  model.DesignRecord
	}{
		{name: "csa missing", rec: model.DesignRecord{ConductorMaterial: model.Ptr("Cu")}},
		{name: "csa not a standard size", rec: model.DesignRecord{CSA: model.Ptr(42.0), ConductorMaterial: model.Ptr("Cu")}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			verdicts, err := v.Validate(context.Background(), tt.rec)
			require.NoError(t, err)
			require.Len(t, verdicts, 1)
			assert.Equal(t, model.FieldCSA, verdicts[0].Field)
			assert.Equal(t, model.VerdictFail, verdicts[0].Status)
			require.NotNil(t, verdicts[0].Expected)
			assert.Equal(t, "Standard IS 8130 size", *verdicts[0].Expected)
		})
	}
}

func TestReferenceValidator_FieldOrder(t *testing.T) {
	v := NewReferenceValidator(defaultIndex(t))

	verdicts, err := v.Validate(context.Background(), model.DesignRecord{CSA: model.Ptr(50.0)})
	require.NoError(t, err)

	fields := make([]string, 0, len(verdicts))
	for _, fv := range verdicts {
		fields = append(fields, fv.Field)
	}
	assert.Equal(t, []string{
		model.FieldCSA,
		model.FieldConductorMaterial,
		model.FieldConductorClass,
		model.FieldInsulationThickness,
		model.FieldStandard,
		model.FieldVoltage,
		model.FieldInsulationMaterial,
	}, fields)
}

func TestReferenceValidator_Verdicts(t *testing.T) {
	v := NewReferenceValidator(defaultIndex(t))

	tests := []struct {
		name         string
		rec          model.DesignRecord
		field        string
		wantStatus   model.VerdictStatus
		wantExpected string
	}{
		{
			name:         "csa pass",
			rec:          model.DesignRecord{CSA: model.Ptr(50.0)},
			field:        model.FieldCSA,
			wantStatus:   model.VerdictPass,
			wantExpected: "50 mm²",
		},
		{
			name:         "copper resistance",
			rec:          model.DesignRecord{CSA: model.Ptr(50.0), ConductorMaterial: model.Ptr("Cu")},
			field:        model.FieldConductorMaterial,
			wantStatus:   model.VerdictPass,
			wantExpected: "Max R 0.387 Ω/km",
		},
		{
			name:         "aluminium with entry",
			rec:          model.DesignRecord{CSA: model.Ptr(50.0), ConductorMaterial: model.Ptr("Al")},
			field:        model.FieldConductorMaterial,
			wantStatus:   model.VerdictPass,
			wantExpected: "Max R 0.641 Ω/km",
		},
		{
			name:         "aluminium without entry",
			rec:          model.DesignRecord{CSA: model.Ptr(6.0), ConductorMaterial: model.Ptr("Al")},
			field:        model.FieldConductorMaterial,
			wantStatus:   model.VerdictFail,
			wantExpected: "Copper only at 6 mm²",
		},
		{
			name:       "material missing",
			rec:        model.DesignRecord{CSA: model.Ptr(50.0)},
			field:      model.FieldConductorMaterial,
			wantStatus: model.VerdictWarn,
		},
		{
			name:         "class 2 copper",
			rec:          model.DesignRecord{CSA: model.Ptr(120.0), ConductorClass: model.Ptr("Class 2")},
			field:        model.FieldConductorClass,
			wantStatus:   model.VerdictPass,
			wantExpected: "Min 37 wires",
		},
		{
			name: "class 2 aluminium uses aluminium wire count",
			rec: model.DesignRecord{
				CSA: model.Ptr(70.0), ConductorMaterial: model.Ptr("Al"), ConductorClass: model.Ptr("class  2"),
			},
			field:        model.FieldConductorClass,
			wantStatus:   model.VerdictPass,
			wantExpected: "Min 19 wires",
		},
		{
			name:       "class 5 needs external audit",
			rec:        model.DesignRecord{CSA: model.Ptr(50.0), ConductorClass: model.Ptr("Class 5")},
			field:      model.FieldConductorClass,
			wantStatus: model.VerdictWarn,
		},
		{
			name:         "thickness at nominal",
			rec:          model.DesignRecord{CSA: model.Ptr(50.0), InsulationThickness: model.Ptr(1.4)},
			field:        model.FieldInsulationThickness,
			wantStatus:   model.VerdictPass,
			wantExpected: "Nominal 1.4 mm, minimum 1.16 mm (IEC 60502-1 Table 5)",
		},
		{
			name:         "thickness within tolerance",
			rec:          model.DesignRecord{CSA: model.Ptr(50.0), InsulationThickness: model.Ptr(1.2)},
			field:        model.FieldInsulationThickness,
			wantStatus:   model.VerdictWarn,
			wantExpected: "Nominal 1.4 mm, minimum 1.16 mm (IEC 60502-1 Table 5)",
		},
		{
			name:         "thickness below minimum",
			rec:          model.DesignRecord{CSA: model.Ptr(50.0), InsulationThickness: model.Ptr(1.0)},
			field:        model.FieldInsulationThickness,
			wantStatus:   model.VerdictFail,
			wantExpected: "Nominal 1.4 mm, minimum 1.16 mm (IEC 60502-1 Table 5)",
		},
		{
			name:         "thickness exactly at minimum",
			rec:          model.DesignRecord{CSA: model.Ptr(25.0), InsulationThickness: model.Ptr(0.98)},
			field:        model.FieldInsulationThickness,
			wantStatus:   model.VerdictWarn,
			wantExpected: "Nominal 1.2 mm, minimum 0.98 mm (IEC 60502-1 Table 5)",
		},
		{
			name: "thickness for other insulation material",
			rec: model.DesignRecord{
				CSA: model.Ptr(50.0), InsulationMaterial: model.Ptr("XLPE"), InsulationThickness: model.Ptr(1.0),
			},
			field:      model.FieldInsulationThickness,
			wantStatus: model.VerdictWarn,
		},
		{
			name:       "no insulation rule for size",
			rec:        model.DesignRecord{CSA: model.Ptr(0.5), InsulationThickness: model.Ptr(0.6)},
			field:      model.FieldInsulationThickness,
			wantStatus: model.VerdictWarn,
		},
		{
			name:       "standard always external",
			rec:        model.DesignRecord{CSA: model.Ptr(50.0), Standard: model.Ptr("IS 1554-1")},
			field:      model.FieldStandard,
			wantStatus: model.VerdictWarn,
		},
		{
			name:       "voltage always external",
			rec:        model.DesignRecord{CSA: model.Ptr(50.0), Voltage: model.Ptr("0.6/1 kV")},
			field:      model.FieldVoltage,
			wantStatus: model.VerdictWarn,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			verdicts, err := v.Validate(context.Background(), tt.rec)
			require.NoError(t, err)

			got := verdictFor(t, verdicts, tt.field)
			assert.Equal(t, tt.wantStatus, got.Status, got.Comment)
			if tt.wantExpected == "" {
				if tt.wantStatus == model.VerdictWarn && got.Expected != nil {
					assert.NotEmpty(t, *got.Expected)
				}
				return
			}
			require.NotNil(t, got.Expected)
			assert.Equal(t, tt.wantExpected, *got.Expected)
		})
	}
}

func TestReferenceValidator_Deterministic(t *testing.T) {
	v := NewReferenceValidator(defaultIndex(t))
	rec := model.DesignRecord{
		CSA:                 model.Ptr(95.0),
		ConductorMaterial:   model.Ptr("Cu"),
		ConductorClass:      model.Ptr("Class 2"),
		InsulationMaterial:  model.Ptr("PVC"),
		InsulationThickness: model.Ptr(1.6),
	}

	first, err := v.Validate(context.Background(), rec)
	require.NoError(t, err)
	second, err := v.Validate(context.Background(), rec)
	require.NoError(t, err)

	assert.Equal(t, EvidenceFormatter{}.Format(first), EvidenceFormatter{}.Format(second))
}

func TestReferenceValidator_StoreError(t *testing.T) {
	storeErr := errors.New("connection refused")
	v := NewReferenceValidator(failingReader{err: storeErr})

	_, err := v.Validate(context.Background(), model.DesignRecord{CSA: model.Ptr(50.0)})
	require.Error(t, err)
	assert.ErrorIs(t, err, storeErr)
}
