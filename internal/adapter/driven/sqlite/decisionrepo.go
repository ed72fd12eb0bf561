package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/ericfisherdev/mirror/internal/domain/model"
	"github.com/ericfisherdev/mirror/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.DecisionStore = (*DecisionRepo)(nil)

// DecisionRepo is the SQLite implementation of the DecisionStore port interface.
// Satisfies and evidence are serialized as JSON arrays in TEXT columns.
type DecisionRepo struct {
	db *DB
}

// NewDecisionRepo creates a new DecisionRepo backed by the given DB.
func NewDecisionRepo(db *DB) *DecisionRepo {
	return &DecisionRepo{db: db}
}

// UpsertAll writes all decisions of a run in one transaction. Duplicate
// oracles collapse to the last decision written.
func (r *DecisionRepo) UpsertAll(ctx context.Context, runID int64, decisions []model.Decision) error {
	const query = `
		INSERT INTO decisions (run_id, oracle, result, satisfies, evidence, message)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(run_id, oracle) DO UPDATE SET
			result = excluded.result,
			satisfies = excluded.satisfies,
			evidence = excluded.evidence,
			message = excluded.message
	`

	tx, err := r.db.Writer.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, d := range decisions {
		satisfies, err := marshalStrings(d.Satisfies)
		if err != nil {
			return fmt.Errorf("marshal satisfies for oracle %q: %w", d.Oracle, err)
		}
		evidence, err := marshalStrings(d.Evidence)
		if err != nil {
			return fmt.Errorf("marshal evidence for oracle %q: %w", d.Oracle, err)
		}

		var message any
		if d.Message != "" {
			message = d.Message
		}

		if _, err := tx.ExecContext(ctx, query, runID, d.Oracle, string(d.Result), satisfies, evidence, message); err != nil {
			return fmt.Errorf("upsert decision %q: %w", d.Oracle, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit decisions: %w", err)
	}
	return nil
}

// ListByRunID returns the decisions of a run ordered by insertion.
func (r *DecisionRepo) ListByRunID(ctx context.Context, runID string) ([]model.Decision, error) {
	const query = `
		SELECT d.oracle, d.result, d.satisfies, d.evidence, d.message
		FROM decisions d
		JOIN runs r ON r.id = d.run_id
		WHERE r.run_id = ?
		ORDER BY d.id
	`

	rows, err := r.db.Reader.QueryContext(ctx, query, runID)
	if err != nil {
		return nil, fmt.Errorf("query decisions: %w", err)
	}
	defer rows.Close()

	decisions := []model.Decision{}
	for rows.Next() {
		var (
			d                   model.Decision
			result              string
			satisfies, evidence string
			message             sql.NullString
		)
		if err := rows.Scan(&d.Oracle, &result, &satisfies, &evidence, &message); err != nil {
			return nil, fmt.Errorf("scan decision: %w", err)
		}
		d.Result = model.DecisionResult(result)
		if err := json.Unmarshal([]byte(satisfies), &d.Satisfies); err != nil {
			return nil, fmt.Errorf("unmarshal satisfies: %w", err)
		}
		if err := json.Unmarshal([]byte(evidence), &d.Evidence); err != nil {
			return nil, fmt.Errorf("unmarshal evidence: %w", err)
		}
		d.Message = message.String
		decisions = append(decisions, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate decisions: %w", err)
	}

	return decisions, nil
}

// ResultsByRunIDs returns the decision results of each requested run in
// insertion order. Runs without decisions are absent from the map.
func (r *DecisionRepo) ResultsByRunIDs(ctx context.Context, runIDs []string) (map[string][]string, error) {
	results := make(map[string][]string, len(runIDs))
	if len(runIDs) == 0 {
		return results, nil
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(runIDs)), ",")
	query := `
		SELECT r.run_id, d.result
		FROM decisions d
		JOIN runs r ON r.id = d.run_id
		WHERE r.run_id IN (` + placeholders + `)
		ORDER BY d.id
	`

	args := make([]any, 0, len(runIDs))
	for _, id := range runIDs {
		args = append(args, id)
	}

	rows, err := r.db.Reader.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query decision results: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var runID, result string
		if err := rows.Scan(&runID, &result); err != nil {
			return nil, fmt.Errorf("scan decision result: %w", err)
		}
		results[runID] = append(results[runID], result)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate decision results: %w", err)
	}

	return results, nil
}

func marshalStrings(values []string) (string, error) {
	if values == nil {
		values = []string{}
	}
	data, err := json.Marshal(values)
	if err != nil {
		return "", err
	}
	return string(data), nil
}
