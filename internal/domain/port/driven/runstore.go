package driven

import (
	"context"
	"errors"

	"github.com/ericfisherdev/mirror/internal/domain/model"
)

// ErrRunNotFound indicates no run exists with the requested run_id.
var ErrRunNotFound = errors.New("run not found")

// RunStore defines the driven port for run persistence.
type RunStore interface {
	// Upsert inserts the run or overwrites the mutable fields of the run with the
	// same RunID. The returned run carries the stored internal ID.
	Upsert(ctx context.Context, projectID int64, run model.Run) (model.Run, model.UpsertOutcome, error)
	// GetByRunID returns ErrRunNotFound when the run does not exist.
	GetByRunID(ctx context.Context, runID string) (model.Run, error)
	// List returns one page of runs ordered by created_at descending, ties in
	// insertion order. The page request must already be normalized.
	List(ctx context.Context, filter model.RunFilter, page model.PageRequest) (model.RunPage, error)
}
