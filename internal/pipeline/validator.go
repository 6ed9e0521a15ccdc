package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/innovites/cableaudit/internal/core"
	"github.com/innovites/cableaudit/internal/domain/model"
)

// thicknessEpsilon absorbs float noise when comparing against table limits.
const thicknessEpsilon = 1e-9

const (
	expectedStandardSize = "Standard IS 8130 size"
	commentExternalAudit = "Not covered by the reference dataset; requires external audit"
)

// ReferenceValidator checks a record against the conductor and insulation tables.
// The verdict order is fixed: csa, conductor_material, conductor_class,
// insulation_thickness, standard, voltage, insulation_material.
type ReferenceValidator struct {
	refs core.ReferenceReader
}

// NewReferenceValidator creates a validator reading from refs.
func NewReferenceValidator(refs core.ReferenceReader) *ReferenceValidator {
	return &ReferenceValidator{refs: refs}
}

// Validate implements Validator.
func (v *ReferenceValidator) Validate(ctx context.Context, rec model.DesignRecord) ([]model.FieldVerdict, error) {
	if rec.CSA == nil {
		return []model.FieldVerdict{{
			Field:    model.FieldCSA,
			Status:   model.VerdictFail,
			Expected: model.Ptr(expectedStandardSize),
			Comment:  "Conductor cross-sectional area not provided",
		}}, nil
	}
	csa := *rec.CSA

	cond, err := v.refs.GetConductor(ctx, csa)
	if errors.Is(err, model.ErrReferenceNotFound) {
		return []model.FieldVerdict{{
			Field:    model.FieldCSA,
			Status:   model.VerdictFail,
			Expected: model.Ptr(expectedStandardSize),
			Comment:  fmt.Sprintf("%s mm² is not a standard size in IS 8130", model.FormatNumber(csa)),
		}}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("lookup conductor %s mm²: %w", model.FormatNumber(csa), err)
	}

	ins, err := v.refs.GetInsulation(ctx, csa)
	if errors.Is(err, model.ErrReferenceNotFound) {
		ins = nil
	} else if err != nil {
		return nil, fmt.Errorf("lookup insulation %s mm²: %w", model.FormatNumber(csa), err)
	}

	verdicts := make([]model.FieldVerdict, 0, 7)
	verdicts = append(verdicts,
		model.FieldVerdict{
			Field:    model.FieldCSA,
			Status:   model.VerdictPass,
			Expected: model.Ptr(model.FormatNumber(csa) + " mm²"),
			Comment:  "Standard size found in IS 8130",
		},
		materialVerdict(rec, cond),
		classVerdict(rec, cond),
		thicknessVerdict(rec, ins),
		externalAudit(model.FieldStandard),
		externalAudit(model.FieldVoltage),
		externalAudit(model.FieldInsulationMaterial),
	)
	return verdicts, nil
}

func materialVerdict(rec model.DesignRecord, cond *model.ConductorSpec) model.FieldVerdict {
	fv := model.FieldVerdict{Field: model.FieldConductorMaterial}
	if rec.ConductorMaterial == nil {
		fv.Status = model.VerdictWarn
		fv.Comment = "Conductor material not provided"
		return fv
	}

	switch *rec.ConductorMaterial {
	case model.MaterialCopper:
		if cond.MaxResistanceCuPlain == nil {
			fv.Status = model.VerdictWarn
			fv.Comment = "No copper resistance limit listed for this size"
			return fv
		}
		fv.Status = model.VerdictPass
		fv.Expected = model.Ptr(resistanceExpectation(*cond.MaxResistanceCuPlain))
		fv.Comment = "Copper conductor; plain annealed resistance limit applies"
	case model.MaterialAluminium:
		if cond.MaxResistanceAl == nil {
			fv.Status = model.VerdictFail
			fv.Expected = model.Ptr("Copper only at " + model.FormatNumber(cond.CSA) + " mm²")
			fv.Comment = "IS 8130 lists no aluminium conductor of this size"
			return fv
		}
		fv.Status = model.VerdictPass
		fv.Expected = model.Ptr(resistanceExpectation(*cond.MaxResistanceAl))
		fv.Comment = "Aluminium conductor; aluminium resistance limit applies"
	default:
		fv.Status = model.VerdictWarn
		fv.Comment = "Unrecognised conductor material " + *rec.ConductorMaterial
	}
	return fv
}

func classVerdict(rec model.DesignRecord, cond *model.ConductorSpec) model.FieldVerdict {
	fv := model.FieldVerdict{Field: model.FieldConductorClass, Status: model.VerdictWarn}
	if rec.ConductorClass == nil {
		fv.Comment = "Conductor class not provided; requires external audit"
		return fv
	}
	if !isClass2(*rec.ConductorClass) {
		fv.Comment = "Only class 2 stranded conductors are tabulated; requires external audit"
		return fv
	}

	wires := cond.MinWiresCuCircular
	if rec.ConductorMaterial != nil && *rec.ConductorMaterial == model.MaterialAluminium {
		wires = cond.MinWiresAlCircular
	}
	if wires == nil {
		fv.Comment = "No minimum wire count listed for this construction"
		return fv
	}
	fv.Status = model.VerdictPass
	fv.Expected = model.Ptr(fmt.Sprintf("Min %d wires", *wires))
	fv.Comment = "Class 2 stranded conductor"
	return fv
}

func thicknessVerdict(rec model.DesignRecord, ins *model.InsulationSpec) model.FieldVerdict {
	fv := model.FieldVerdict{Field: model.FieldInsulationThickness, Status: model.VerdictWarn}
	if ins == nil {
		fv.Comment = commentExternalAudit
		return fv
	}
	if rec.InsulationMaterial != nil && !strings.EqualFold(strings.TrimSpace(*rec.InsulationMaterial), ins.Material) {
		fv.Comment = fmt.Sprintf("Thickness table covers %s only; requires external audit", ins.Material)
		return fv
	}

	fv.Expected = model.Ptr(fmt.Sprintf("Nominal %s mm, minimum %s mm (%s)",
		model.FormatNumber(ins.Nominal), model.FormatNumber(ins.Minimum), ins.Reference))
	if rec.InsulationThickness == nil {
		fv.Comment = "Insulation thickness not provided"
		return fv
	}

	t := *rec.InsulationThickness
	switch {
	case t+thicknessEpsilon >= ins.Nominal:
		fv.Status = model.VerdictPass
		fv.Comment = fmt.Sprintf("%s mm meets the nominal thickness", model.FormatNumber(t))
	case t+thicknessEpsilon >= ins.Minimum:
		fv.Comment = fmt.Sprintf("%s mm is below nominal but within the minimum tolerance", model.FormatNumber(t))
	default:
		fv.Status = model.VerdictFail
		fv.Comment = fmt.Sprintf("%s mm is below the minimum thickness", model.FormatNumber(t))
	}
	return fv
}

func externalAudit(field string) model.FieldVerdict {
	return model.FieldVerdict{
		Field:   field,
		Status:  model.VerdictWarn,
		Comment: commentExternalAudit,
	}
}

func resistanceExpectation(ohmPerKm float64) string {
	return "Max R " + model.FormatNumber(ohmPerKm) + " Ω/km"
}

func isClass2(class string) bool {
	normalized := strings.ToLower(strings.Join(strings.Fields(class), " "))
	return normalized == "class 2" || normalized == "2"
}
