package model

import (
	"strconv"
)

// VerdictStatus is the outcome of checking one field.
type VerdictStatus string

const (
	VerdictPass VerdictStatus = "PASS"
	VerdictWarn VerdictStatus = "WARN"
	VerdictFail VerdictStatus = "FAIL"
)

// Valid returns true if the VerdictStatus is valid.
func (s VerdictStatus) Valid() bool {
	return s == VerdictPass || s == VerdictWarn || s == VerdictFail
}

// Conductor materials accepted in a DesignRecord.
const (
	MaterialCopper    = "Cu"
	MaterialAluminium = "Al"
)

// Field names as they appear in verdicts and on the wire.
const (
	FieldStandard            = "standard"
	FieldVoltage             = "voltage"
	FieldConductorMaterial   = "conductor_material"
	FieldConductorClass      = "conductor_class"
	FieldCSA                 = "csa"
	FieldInsulationMaterial  = "insulation_material"
	FieldInsulationThickness = "insulation_thickness"
)

// DesignRecord holds the normalized fields of a cable design.
// Every field is optional; units are implied (csa in mm², thickness in mm).
type DesignRecord struct {
	Standard            *string  `json:"standard"             validate:"omitempty,max=100"`
	Voltage             *string  `json:"voltage"              validate:"omitempty,max=50"`
	ConductorMaterial   *string  `json:"conductor_material"   validate:"omitempty,oneof=Cu Al"`
	ConductorClass      *string  `json:"conductor_class"      validate:"omitempty,max=50"`
	CSA                 *float64 `json:"csa"                  validate:"omitempty,gt=0"`
	InsulationMaterial  *string  `json:"insulation_material"  validate:"omitempty,max=50"`
	InsulationThickness *float64 `json:"insulation_thickness" validate:"omitempty,gt=0"`
}

// IsEmpty reports whether no field was populated.
func (r DesignRecord) IsEmpty() bool {
	return r.Standard == nil && r.Voltage == nil && r.ConductorMaterial == nil &&
		r.ConductorClass == nil && r.CSA == nil && r.InsulationMaterial == nil &&
		r.InsulationThickness == nil
}

// FieldVerdict is one field's judgment.
type FieldVerdict struct {
	Field    string        `json:"field"`
	Status   VerdictStatus `json:"status"`
	Expected *string       `json:"expected"`
	Comment  string        `json:"comment"`
}

// EvidenceDocument is the formatted verdict list handed to the auditor.
type EvidenceDocument string

// AuditReport is the terminal artifact of a successful job.
type AuditReport struct {
	IsOutOfScope          bool           `json:"is_out_of_scope"`
	OutOfScopeExplanation *string        `json:"out_of_scope_explanation"`
	Fields                DesignRecord   `json:"fields"`
	Verdicts              []FieldVerdict `json:"verdicts"`
	Confidence            float64        `json:"confidence"`
}

// Ptr returns a pointer to v.
func Ptr[T any](v T) *T {
	return &v
}

// FormatNumber renders a measurement without trailing zeros.
func FormatNumber(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
