package driven

import (
	"context"

	"github.com/ericfisherdev/mirror/internal/domain/model"
)

// DecisionStore defines the driven port for oracle decision persistence.
type DecisionStore interface {
	// UpsertAll writes every decision keyed on (run, oracle). A later decision for
	// the same oracle overwrites the earlier one.
	UpsertAll(ctx context.Context, runID int64, decisions []model.Decision) error
	// ListByRunID returns the decisions of a run in insertion order, or an empty
	// slice when the run has none or does not exist.
	ListByRunID(ctx context.Context, runID string) ([]model.Decision, error)
	// ResultsByRunIDs returns the raw decision results keyed by run_id.
	ResultsByRunIDs(ctx context.Context, runIDs []string) (map[string][]string, error)
}
