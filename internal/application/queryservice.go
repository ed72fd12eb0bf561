package application

import (
	"context"
	"fmt"

	"github.com/ericfisherdev/mirror/internal/domain/model"
	"github.com/ericfisherdev/mirror/internal/domain/port/driven"
)

// RunListing is one page of runs with their derived verdicts.
type RunListing struct {
	Items    []model.RunSummary
	Page     int
	PageSize int
	Total    int
}

// QueryService serves read-only views of stored runs. Verdicts are derived at
// read time from the stored raw fields.
type QueryService struct {
	runs         driven.RunStore
	decisions    driven.DecisionStore
	requirements driven.RequirementStore
	catalog      driven.RequirementCatalogStore
	gate         *CoverageGate
}

// NewQueryService creates a QueryService with the required dependencies.
func NewQueryService(
	runs driven.RunStore,
	decisions driven.DecisionStore,
	requirements driven.RequirementStore,
	catalog driven.RequirementCatalogStore,
	gate *CoverageGate,
) *QueryService {
	return &QueryService{
		runs:         runs,
		decisions:    decisions,
		requirements: requirements,
		catalog:      catalog,
		gate:         gate,
	}
}

// Gate returns the coverage gate used to derive verdicts.
func (s *QueryService) Gate() *CoverageGate {
	return s.gate
}

// ListRuns returns one page of runs. Out-of-range page parameters are clamped.
func (s *QueryService) ListRuns(ctx context.Context, filter model.RunFilter, page model.PageRequest) (RunListing, error) {
	page = page.Normalize()

	result, err := s.runs.List(ctx, filter, page)
	if err != nil {
		return RunListing{}, fmt.Errorf("list runs: %w", err)
	}

	runIDs := make([]string, 0, len(result.Runs))
	for _, r := range result.Runs {
		runIDs = append(runIDs, r.RunID)
	}
	results, err := s.decisions.ResultsByRunIDs(ctx, runIDs)
	if err != nil {
		return RunListing{}, fmt.Errorf("load decision results: %w", err)
	}

	items := make([]model.RunSummary, 0, len(result.Runs))
	for _, r := range result.Runs {
		items = append(items, model.RunSummary{Run: r, Verdict: s.gate.Verdict(r, results[r.RunID])})
	}

	return RunListing{
		Items:    items,
		Page:     page.Page,
		PageSize: page.PageSize,
		Total:    result.Total,
	}, nil
}

// GetRun returns a single run with its verdicts, or driven.ErrRunNotFound.
func (s *QueryService) GetRun(ctx context.Context, runID string) (model.RunSummary, error) {
	run, err := s.runs.GetByRunID(ctx, runID)
	if err != nil {
		return model.RunSummary{}, err
	}

	results, err := s.decisions.ResultsByRunIDs(ctx, []string{runID})
	if err != nil {
		return model.RunSummary{}, fmt.Errorf("load decision results: %w", err)
	}

	return model.RunSummary{Run: run, Verdict: s.gate.Verdict(run, results[runID])}, nil
}

// ListDecisions returns a run's decisions. Unknown runs yield an empty slice,
// not an error.
func (s *QueryService) ListDecisions(ctx context.Context, runID string) ([]model.Decision, error) {
	decisions, err := s.decisions.ListByRunID(ctx, runID)
	if err != nil {
		return nil, fmt.Errorf("list decisions for run %q: %w", runID, err)
	}
	if decisions == nil {
		decisions = []model.Decision{}
	}
	return decisions, nil
}

// ModuleCoverage computes the per-module coverage rollup of a run, or returns
// driven.ErrRunNotFound.
func (s *QueryService) ModuleCoverage(ctx context.Context, runID string) ([]model.ModuleCoverage, error) {
	run, err := s.runs.GetByRunID(ctx, runID)
	if err != nil {
		return nil, err
	}

	verdicts, err := s.requirements.ListByRun(ctx, run.ID)
	if err != nil {
		return nil, fmt.Errorf("list requirement verdicts for run %q: %w", runID, err)
	}

	decisions, err := s.decisions.ListByRunID(ctx, runID)
	if err != nil {
		return nil, fmt.Errorf("list decisions for run %q: %w", runID, err)
	}

	catalog, err := s.catalog.ListByProject(ctx, run.Project)
	if err != nil {
		return nil, fmt.Errorf("list requirement catalog for %q: %w", run.Project, err)
	}

	tracked := TrackedRequirements(catalog, verdicts, decisions)
	return AggregateModuleCoverage(tracked, CoveredRequirements(verdicts, decisions)), nil
}
