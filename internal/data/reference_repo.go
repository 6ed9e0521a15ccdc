package data

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/innovites/cableaudit/internal/domain/model"
)

// ReferenceRepo reads and seeds the conductor and insulation reference tables.
type ReferenceRepo struct {
	db *sqlx.DB
}

// NewReferenceRepo wraps an existing pgx-backed *sql.DB for struct scanning.
func NewReferenceRepo(db *sql.DB) *ReferenceRepo {
	return &ReferenceRepo{db: sqlx.NewDb(db, "pgx")}
}

const conductorColumns = `
  csa_mm2,
  min_wires_cu_circular,
  min_wires_cu_compacted,
  max_resistance_cu_plain,
  max_resistance_cu_tinned,
  min_wires_al_circular,
  min_wires_al_compacted,
  max_resistance_al,
  note
`

// GetConductor returns the conductor row for an exact cross-sectional area.
func (r *ReferenceRepo) GetConductor(ctx context.Context, csa float64) (*model.ConductorSpec, error) {
	var spec model.ConductorSpec
	err := r.db.GetContext(ctx, &spec, `SELECT `+conductorColumns+` FROM conductor_specs WHERE csa_mm2 = $1`, csa)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, model.ErrReferenceNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get conductor spec: %w", err)
	}
	return &spec, nil
}

// GetInsulation returns the insulation thickness rule for an exact cross-sectional area.
func (r *ReferenceRepo) GetInsulation(ctx context.Context, csa float64) (*model.InsulationSpec, error) {
	var spec model.InsulationSpec
	err := r.db.GetContext(ctx, &spec, `
		SELECT csa_mm2, material, nominal_mm, minimum_mm, reference
		FROM insulation_specs
		WHERE csa_mm2 = $1
	`, csa)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, model.ErrReferenceNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get insulation spec: %w", err)
	}
	return &spec, nil
}

// ListConductors returns every conductor row ordered by size.
func (r *ReferenceRepo) ListConductors(ctx context.Context) ([]model.ConductorSpec, error) {
	var specs []model.ConductorSpec
	if err := r.db.SelectContext(ctx, &specs, `SELECT `+conductorColumns+` FROM conductor_specs ORDER BY csa_mm2`); err != nil {
		return nil, fmt.Errorf("list conductor specs: %w", err)
	}
	return specs, nil
}

// Count returns the number of conductor rows.
func (r *ReferenceRepo) Count(ctx context.Context) (int, error) {
	var n int
	if err := r.db.GetContext(ctx, &n, `SELECT count(*) FROM conductor_specs`); err != nil {
		return 0, fmt.Errorf("count conductor specs: %w", err)
	}
	return n, nil
}

// Replace swaps the whole reference dataset in one transaction.
func (r *ReferenceRepo) Replace(ctx context.Context, dataset *model.ReferenceDataset) (err error) {
	if dataset == nil {
		return errors.New("reference dataset is required")
	}
	if err = dataset.Validate(); err != nil {
		return err
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		if rerr := tx.Rollback(); rerr != nil && !errors.Is(rerr, sql.ErrTxDone) {
			err = errors.Join(err, fmt.Errorf("rollback: %w", rerr))
		}
	}()

	if _, err = tx.ExecContext(ctx, `DELETE FROM insulation_specs`); err != nil {
		return fmt.Errorf("clear insulation specs: %w", err)
	}
	if _, err = tx.ExecContext(ctx, `DELETE FROM conductor_specs`); err != nil {
		return fmt.Errorf("clear conductor specs: %w", err)
	}

	if _, err = tx.NamedExecContext(ctx, `
		INSERT INTO conductor_specs (`+conductorColumns+`)
		VALUES (
		  :csa_mm2,
		  :min_wires_cu_circular,
		  :min_wires_cu_compacted,
		  :max_resistance_cu_plain,
		  :max_resistance_cu_tinned,
		  :min_wires_al_circular,
		  :min_wires_al_compacted,
		  :max_resistance_al,
		  :note
		)
	`, dataset.Conductors); err != nil {
		return fmt.Errorf("insert conductor specs: %w", err)
	}

	if len(dataset.Insulation) > 0 {
		if _, err = tx.NamedExecContext(ctx, `
			INSERT INTO insulation_specs (csa_mm2, material, nominal_mm, minimum_mm, reference)
			VALUES (:csa_mm2, :material, :nominal_mm, :minimum_mm, :reference)
		`, dataset.Insulation); err != nil {
			return fmt.Errorf("insert insulation specs: %w", err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}
