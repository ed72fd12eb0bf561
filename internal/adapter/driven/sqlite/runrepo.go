package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/ericfisherdev/mirror/internal/domain/model"
	"github.com/ericfisherdev/mirror/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.RunStore = (*RunRepo)(nil)

// RunRepo is the SQLite implementation of the RunStore port interface.
// CI metadata, manifest, and coverage are stored as JSON TEXT columns.
type RunRepo struct {
	db *DB
}

// NewRunRepo creates a new RunRepo backed by the given DB.
func NewRunRepo(db *DB) *RunRepo {
	return &RunRepo{db: db}
}

const runColumns = `
	r.id, r.run_id, p.slug, r.commit_sha, r.branch, r.created_at, r.ci, r.manifest,
	r.coverage, r.decisions_count, r.pass_rate, r.passed, r.total, r.status, r.payload_digest
`

// Upsert inserts the run or overwrites every mutable field of the existing run
// with the same run_id. A run whose stored payload digest equals the new one is
// left untouched, reported as UpsertUnchanged, and returned as stored.
func (r *RunRepo) Upsert(ctx context.Context, projectID int64, run model.Run) (model.Run, model.UpsertOutcome, error) {
	ciJSON, err := json.Marshal(run.CI)
	if err != nil {
		return model.Run{}, "", fmt.Errorf("marshal ci: %w", err)
	}
	coverageJSON, err := json.Marshal(run.Coverage)
	if err != nil {
		return model.Run{}, "", fmt.Errorf("marshal coverage: %w", err)
	}
	var manifest any
	if len(run.Manifest) > 0 {
		manifest = string(run.Manifest)
	}

	tx, err := r.db.Writer.BeginTx(ctx, nil)
	if err != nil {
		return model.Run{}, "", fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	outcome := model.UpsertCreated
	var (
		existingID     int64
		existingDigest string
	)
	err = tx.QueryRowContext(ctx, `SELECT id, payload_digest FROM runs WHERE run_id = ?`, run.RunID).
		Scan(&existingID, &existingDigest)
	switch {
	case errors.Is(err, sql.ErrNoRows):
	case err != nil:
		return model.Run{}, "", fmt.Errorf("lookup run %q: %w", run.RunID, err)
	case run.PayloadDigest != "" && existingDigest == run.PayloadDigest:
		stored, err := scanRun(tx.QueryRowContext(ctx, `SELECT `+runColumns+`
			FROM runs r
			JOIN projects p ON p.id = r.project_id
			WHERE r.id = ?
		`, existingID))
		if err != nil {
			return model.Run{}, "", fmt.Errorf("load run %q: %w", run.RunID, err)
		}
		return stored, model.UpsertUnchanged, nil
	default:
		outcome = model.UpsertUpdated
	}

	const query = `
		INSERT INTO runs (
			run_id, project_id, commit_sha, branch, created_at, ci, manifest, coverage,
			decisions_count, pass_rate, passed, total, status, payload_digest
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(run_id) DO UPDATE SET
			project_id = excluded.project_id,
			commit_sha = excluded.commit_sha,
			branch = excluded.branch,
			created_at = excluded.created_at,
			ci = excluded.ci,
			manifest = excluded.manifest,
			coverage = excluded.coverage,
			decisions_count = excluded.decisions_count,
			pass_rate = excluded.pass_rate,
			passed = excluded.passed,
			total = excluded.total,
			status = excluded.status,
			payload_digest = excluded.payload_digest
		RETURNING id
	`

	err = tx.QueryRowContext(ctx, query,
		run.RunID, projectID, run.Commit, run.Branch, formatTime(run.CreatedAt),
		string(ciJSON), manifest, string(coverageJSON), run.DecisionsCount,
		nullableFloat(run.PassRate), nullableInt(run.Passed), nullableInt(run.Total), nullableString(run.Status),
		run.PayloadDigest,
	).Scan(&run.ID)
	if err != nil {
		return model.Run{}, "", fmt.Errorf("upsert run %q: %w", run.RunID, err)
	}

	if err := tx.Commit(); err != nil {
		return model.Run{}, "", fmt.Errorf("commit run %q: %w", run.RunID, err)
	}

	return run, outcome, nil
}

// GetByRunID returns the run with the given run_id or driven.ErrRunNotFound.
func (r *RunRepo) GetByRunID(ctx context.Context, runID string) (model.Run, error) {
	query := `SELECT ` + runColumns + `
		FROM runs r
		JOIN projects p ON p.id = r.project_id
		WHERE r.run_id = ?
	`

	run, err := scanRun(r.db.Reader.QueryRowContext(ctx, query, runID))
	if errors.Is(err, sql.ErrNoRows) {
		return model.Run{}, driven.ErrRunNotFound
	}
	if err != nil {
		return model.Run{}, fmt.Errorf("get run %q: %w", runID, err)
	}
	return run, nil
}

// List returns one page of runs matching filter, newest first. Runs with equal
// created_at keep insertion order.
func (r *RunRepo) List(ctx context.Context, filter model.RunFilter, page model.PageRequest) (model.RunPage, error) {
	var (
		conds []string
		args  []any
	)
	if filter.Project != "" {
		conds = append(conds, "p.slug = ?")
		args = append(args, filter.Project)
	}
	if filter.Branch != "" {
		conds = append(conds, "r.branch = ?")
		args = append(args, filter.Branch)
	}
	if !filter.From.IsZero() {
		conds = append(conds, "r.created_at >= ?")
		args = append(args, formatTime(filter.From))
	}
	if !filter.To.IsZero() {
		conds = append(conds, "r.created_at <= ?")
		args = append(args, formatTime(filter.To))
	}

	where := ""
	if len(conds) > 0 {
		where = "WHERE " + strings.Join(conds, " AND ")
	}

	var total int
	countQuery := `SELECT COUNT(*) FROM runs r JOIN projects p ON p.id = r.project_id ` + where
	if err := r.db.Reader.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return model.RunPage{}, fmt.Errorf("count runs: %w", err)
	}

	listQuery := `SELECT ` + runColumns + `
		FROM runs r
		JOIN projects p ON p.id = r.project_id
		` + where + `
		ORDER BY r.created_at DESC, r.id ASC
		LIMIT ? OFFSET ?
	`
	rows, err := r.db.Reader.QueryContext(ctx, listQuery, append(args, page.PageSize, page.Offset())...)
	if err != nil {
		return model.RunPage{}, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	runs := []model.Run{}
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return model.RunPage{}, fmt.Errorf("scan run: %w", err)
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return model.RunPage{}, fmt.Errorf("iterate runs: %w", err)
	}

	return model.RunPage{
		Runs:     runs,
		Page:     page.Page,
		PageSize: page.PageSize,
		Total:    total,
	}, nil
}

// scanner abstracts *sql.Row and *sql.Rows for shared scan logic.
type scanner interface {
	Scan(dest ...any) error
}

func scanRun(s scanner) (model.Run, error) {
	var (
		run                        model.Run
		createdAt, ciJSON, covJSON string
		manifest, status           sql.NullString
		passRate                   sql.NullFloat64
		passed, total              sql.NullInt64
	)

	err := s.Scan(
		&run.ID, &run.RunID, &run.Project, &run.Commit, &run.Branch, &createdAt, &ciJSON, &manifest,
		&covJSON, &run.DecisionsCount, &passRate, &passed, &total, &status, &run.PayloadDigest,
	)
	if err != nil {
		return model.Run{}, err
	}

	if run.CreatedAt, err = parseTime(createdAt); err != nil {
		return model.Run{}, fmt.Errorf("parse created_at %q: %w", createdAt, err)
	}
	if err := json.Unmarshal([]byte(ciJSON), &run.CI); err != nil {
		return model.Run{}, fmt.Errorf("unmarshal ci: %w", err)
	}
	if err := json.Unmarshal([]byte(covJSON), &run.Coverage); err != nil {
		return model.Run{}, fmt.Errorf("unmarshal coverage: %w", err)
	}
	if manifest.Valid {
		run.Manifest = json.RawMessage(manifest.String)
	}
	if passRate.Valid {
		v := passRate.Float64
		run.PassRate = &v
	}
	if passed.Valid {
		v := int(passed.Int64)
		run.Passed = &v
	}
	if total.Valid {
		v := int(total.Int64)
		run.Total = &v
	}
	if status.Valid {
		v := status.String
		run.Status = &v
	}

	return run, nil
}

func nullableFloat(v *float64) any {
	if v == nil {
		return nil
	}
	return *v
}

func nullableInt(v *int) any {
	if v == nil {
		return nil
	}
	return *v
}

func nullableString(v *string) any {
	if v == nil {
		return nil
	}
	return *v
}
