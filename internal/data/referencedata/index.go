package referencedata

import (
	"context"

	"github.com/innovites/cableaudit/internal/domain/model"
)

// Index serves lookups from an in-memory dataset.
// It backs the validator when no database is configured and in tests.
type Index struct {
	conductors map[float64]model.ConductorSpec
	insulation map[float64]model.InsulationSpec
}

// NewIndex builds an Index over ds.
func NewIndex(ds *model.ReferenceDataset) *Index {
	idx := &Index{
		conductors: make(map[float64]model.ConductorSpec, len(ds.Conductors)),
		insulation: make(map[float64]model.InsulationSpec, len(ds.Insulation)),
	}
	for _, c := range ds.Conductors {
		idx.conductors[c.CSA] = c
	}
	for _, ins := range ds.Insulation {
		idx.insulation[ins.CSA] = ins
	}
	return idx
}

// GetConductor returns a copy of the conductor row for csa.
func (i *Index) GetConductor(ctx context.Context, csa float64) (*model.ConductorSpec, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	c, ok := i.conductors[csa]
	if !ok {
		return nil, model.ErrReferenceNotFound
	}
	return &c, nil
}

// GetInsulation returns a copy of the insulation rule for csa.
func (i *Index) GetInsulation(ctx context.Context, csa float64) (*model.InsulationSpec, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	ins, ok := i.insulation[csa]
	if !ok {
		return nil, model.ErrReferenceNotFound
	}
	return &ins, nil
}
