package driven

import (
	"context"

	"github.com/ericfisherdev/mirror/internal/domain/model"
)

// RequirementStore defines the driven port for per-run requirement verdicts.
type RequirementStore interface {
	// UpsertAll writes every verdict keyed on (run, requirement_id).
	UpsertAll(ctx context.Context, runID int64, verdicts []model.RequirementVerdict) error
	ListByRun(ctx context.Context, runID int64) ([]model.RunRequirement, error)
}

// RequirementCatalogStore defines the driven port for a project's tracked
// requirements and their module, interface, and risk weight.
type RequirementCatalogStore interface {
	UpsertAll(ctx context.Context, projectID int64, specs []model.RequirementSpec) error
	ListByProject(ctx context.Context, projectSlug string) ([]model.RequirementSpec, error)
}
