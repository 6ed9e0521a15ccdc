package data

import (
	"context"
	"fmt"

	"github.com/innovites/cableaudit/internal/domain/model"
)

// jobFilterQueryBuilder appends positional equality filters to a base query.
type jobFilterQueryBuilder struct {
	query  string
	args   []any
	argIdx int
}

func (b *jobFilterQueryBuilder) addFilter(column string, value any) {
	b.query += fmt.Sprintf(" AND %s = $%d", column, b.argIdx)
	b.args = append(b.args, value)
	b.argIdx++
}

func (b *jobFilterQueryBuilder) page(limit, offset int) {
	b.query += fmt.Sprintf(" ORDER BY created_at DESC, id DESC LIMIT $%d OFFSET $%d", b.argIdx, b.argIdx+1)
	b.args = append(b.args, limit, offset)
	b.argIdx += 2
}

// buildJobListQuery constructs the SQL query and args for a filtered job listing.
func buildJobListQuery(opts model.JobListOptions) (string, []any) {
	builder := &jobFilterQueryBuilder{
		query:  `SELECT ` + jobColumns + ` FROM design_validations WHERE 1=1`,
		argIdx: 1,
	}
	if opts.Status != nil {
		builder.addFilter("status", string(*opts.Status))
	}
	if opts.InputMode != nil {
		builder.addFilter("input_mode", string(*opts.InputMode))
	}

	limit := opts.Limit
	if limit <= 0 {
		limit = model.DefaultJobListLimit
	}
	limit = min(limit, model.MaxJobListLimit)
	builder.page(limit, max(opts.Offset, 0))
	return builder.query, builder.args
}

// List returns jobs newest first, optionally filtered by status and input mode.
func (r *JobRepo) List(ctx context.Context, opts model.JobListOptions) ([]*model.Job, error) {
	query, args := buildJobListQuery(opts)

	var rows []jobRow
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	jobs := make([]*model.Job, len(rows))
	for i := range rows {
		jobs[i] = rows[i].toModel()
	}
	return jobs, nil
}
