package model

import "errors"

// ErrReferenceNotFound is returned when the reference dataset has no row for a key.
var ErrReferenceNotFound = errors.New("reference entry not found")

// ConductorSpec is one row of the conductor reference table (IS 8130 Table 2, class 2 stranded).
// Nil limits mean the table defines no value for that construction.
type ConductorSpec struct {
	CSA                   float64  `json:"csa_mm2"                          db:"csa_mm2"                  yaml:"csa_mm2"`
	MinWiresCuCircular    *int     `json:"min_wires_cu_circular,omitempty"    db:"min_wires_cu_circular"    yaml:"min_wires_cu_circular"`
	MinWiresCuCompacted   *int     `json:"min_wires_cu_compacted,omitempty"   db:"min_wires_cu_compacted"   yaml:"min_wires_cu_compacted"`
	MaxResistanceCuPlain  *float64 `json:"max_resistance_cu_plain,omitempty"  db:"max_resistance_cu_plain"  yaml:"max_resistance_cu_plain"`
	MaxResistanceCuTinned *float64 `json:"max_resistance_cu_tinned,omitempty" db:"max_resistance_cu_tinned" yaml:"max_resistance_cu_tinned"`
	MinWiresAlCircular    *int     `json:"min_wires_al_circular,omitempty"    db:"min_wires_al_circular"    yaml:"min_wires_al_circular"`
	MinWiresAlCompacted   *int     `json:"min_wires_al_compacted,omitempty"   db:"min_wires_al_compacted"   yaml:"min_wires_al_compacted"`
	MaxResistanceAl       *float64 `json:"max_resistance_al,omitempty"        db:"max_resistance_al"        yaml:"max_resistance_al"`
	Note                  *string  `json:"note,omitempty"                     db:"note"                     yaml:"note"`
}

// InsulationSpec is the insulation thickness rule for one conductor size.
type InsulationSpec struct {
	CSA       float64 `json:"csa_mm2"      db:"csa_mm2"      yaml:"csa_mm2"`
	Material  string  `json:"material"     db:"material"     yaml:"material"`
	Nominal   float64 `json:"nominal_mm"   db:"nominal_mm"   yaml:"nominal_mm"`
	Minimum   float64 `json:"minimum_mm"   db:"minimum_mm"   yaml:"minimum_mm"`
	Reference string  `json:"reference"    db:"reference"    yaml:"reference"`
}

// ReferenceDataset is the full seedable reference content.
type ReferenceDataset struct {
	Conductors []ConductorSpec  `yaml:"conductors"`
	Insulation []InsulationSpec `yaml:"insulation"`
}

// Validate checks a dataset before it is written.
func (d *ReferenceDataset) Validate() error {
	if len(d.Conductors) == 0 {
		return errors.New("reference dataset has no conductor rows")
	}
	seen := make(map[float64]bool, len(d.Conductors))
	for _, c := range d.Conductors {
		if c.CSA <= 0 {
			return errors.New("conductor csa must be positive")
		}
		if seen[c.CSA] {
			return errors.New("duplicate conductor csa " + FormatNumber(c.CSA))
		}
		seen[c.CSA] = true
	}
	for _, ins := range d.Insulation {
		if ins.CSA <= 0 || ins.Nominal <= 0 || ins.Minimum <= 0 {
			return errors.New("insulation rule values must be positive")
		}
		if ins.Minimum > ins.Nominal {
			return errors.New("insulation minimum exceeds nominal for csa " + FormatNumber(ins.CSA))
		}
	}
	return nil
}
