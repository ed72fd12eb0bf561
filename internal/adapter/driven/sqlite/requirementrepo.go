package sqlite

import (
	"context"
	"fmt"

	"github.com/ericfisherdev/mirror/internal/domain/model"
	"github.com/ericfisherdev/mirror/internal/domain/port/driven"
)

// Compile-time interface satisfaction checks.
var (
	_ driven.RequirementStore        = (*RequirementRepo)(nil)
	_ driven.RequirementCatalogStore = (*CatalogRepo)(nil)
)

// RequirementRepo is the SQLite implementation of the RequirementStore port interface.
type RequirementRepo struct {
	db *DB
}

// NewRequirementRepo creates a new RequirementRepo backed by the given DB.
func NewRequirementRepo(db *DB) *RequirementRepo {
	return &RequirementRepo{db: db}
}

// UpsertAll writes requirement verdicts keyed on (run, requirement_id).
func (r *RequirementRepo) UpsertAll(ctx context.Context, runID int64, verdicts []model.RequirementVerdict) error {
	const query = `
		INSERT INTO run_requirements (run_id, requirement_id, status)
		VALUES (?, ?, ?)
		ON CONFLICT(run_id, requirement_id) DO UPDATE SET status = excluded.status
	`

	tx, err := r.db.Writer.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, v := range verdicts {
		if _, err := tx.ExecContext(ctx, query, runID, v.RequirementID, string(v.Result)); err != nil {
			return fmt.Errorf("upsert requirement %q: %w", v.RequirementID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit requirements: %w", err)
	}
	return nil
}

// ListByRun returns the requirement verdicts of a run ordered by requirement_id.
func (r *RequirementRepo) ListByRun(ctx context.Context, runID int64) ([]model.RunRequirement, error) {
	const query = `
		SELECT run_id, requirement_id, status
		FROM run_requirements
		WHERE run_id = ?
		ORDER BY requirement_id
	`

	rows, err := r.db.Reader.QueryContext(ctx, query, runID)
	if err != nil {
		return nil, fmt.Errorf("query run requirements: %w", err)
	}
	defer rows.Close()

	var result []model.RunRequirement
	for rows.Next() {
		var (
			rr     model.RunRequirement
			status string
		)
		if err := rows.Scan(&rr.RunID, &rr.RequirementID, &status); err != nil {
			return nil, fmt.Errorf("scan run requirement: %w", err)
		}
		rr.Status = model.RequirementStatus(status)
		result = append(result, rr)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate run requirements: %w", err)
	}

	return result, nil
}

// CatalogRepo is the SQLite implementation of the RequirementCatalogStore port interface.
type CatalogRepo struct {
	db *DB
}

// NewCatalogRepo creates a new CatalogRepo backed by the given DB.
func NewCatalogRepo(db *DB) *CatalogRepo {
	return &CatalogRepo{db: db}
}

// UpsertAll writes requirement specs keyed on (project, requirement_id).
func (r *CatalogRepo) UpsertAll(ctx context.Context, projectID int64, specs []model.RequirementSpec) error {
	const query = `
		INSERT INTO requirements (project_id, requirement_id, module, interface, risk_weight)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(project_id, requirement_id) DO UPDATE SET
			module = excluded.module,
			interface = excluded.interface,
			risk_weight = excluded.risk_weight
	`

	tx, err := r.db.Writer.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, s := range specs {
		if _, err := tx.ExecContext(ctx, query, projectID, s.RequirementID, s.Module, s.Interface, s.RiskWeight); err != nil {
			return fmt.Errorf("upsert requirement spec %q: %w", s.RequirementID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit requirement specs: %w", err)
	}
	return nil
}

// ListByProject returns the catalog of a project ordered by module, interface, and id.
func (r *CatalogRepo) ListByProject(ctx context.Context, projectSlug string) ([]model.RequirementSpec, error) {
	const query = `
		SELECT q.requirement_id, q.module, q.interface, q.risk_weight
		FROM requirements q
		JOIN projects p ON p.id = q.project_id
		WHERE p.slug = ?
		ORDER BY q.module, q.interface, q.requirement_id
	`

	rows, err := r.db.Reader.QueryContext(ctx, query, projectSlug)
	if err != nil {
		return nil, fmt.Errorf("query requirements: %w", err)
	}
	defer rows.Close()

	var specs []model.RequirementSpec
	for rows.Next() {
		var s model.RequirementSpec
		if err := rows.Scan(&s.RequirementID, &s.Module, &s.Interface, &s.RiskWeight); err != nil {
			return nil, fmt.Errorf("scan requirement: %w", err)
		}
		specs = append(specs, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate requirements: %w", err)
	}

	return specs, nil
}
