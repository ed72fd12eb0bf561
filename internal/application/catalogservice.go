package application

import (
	"context"
	"fmt"

	"github.com/ericfisherdev/mirror/internal/domain/model"
	"github.com/ericfisherdev/mirror/internal/domain/port/driven"
)

// CatalogService manages the requirement catalog of each project.
type CatalogService struct {
	projects driven.ProjectStore
	catalog  driven.RequirementCatalogStore
}

// NewCatalogService creates a CatalogService.
func NewCatalogService(projects driven.ProjectStore, catalog driven.RequirementCatalogStore) *CatalogService {
	return &CatalogService{projects: projects, catalog: catalog}
}

// Import upserts requirement specs for a project, creating the project on
// first use. Specs are keyed on (project, requirement_id).
func (s *CatalogService) Import(ctx context.Context, projectSlug string, specs []model.RequirementSpec) error {
	if projectSlug == "" {
		return invalid("project", "project is required")
	}
	for i, spec := range specs {
		if spec.RequirementID == "" {
			return invalid(fmt.Sprintf("[%d].id", i), "requirement [%d] has empty id", i)
		}
		if spec.RiskWeight < 0 {
			return invalid(fmt.Sprintf("[%d].risk_weight", i), "requirement %s has negative risk_weight %v", spec.RequirementID, spec.RiskWeight)
		}
	}

	project, err := s.projects.Ensure(ctx, projectSlug)
	if err != nil {
		return fmt.Errorf("resolve project %q: %w", projectSlug, err)
	}

	if err := s.catalog.UpsertAll(ctx, project.ID, specs); err != nil {
		return fmt.Errorf("upsert requirement catalog for %q: %w", projectSlug, err)
	}
	return nil
}

// List returns the catalog of a project, empty when the project is unknown.
func (s *CatalogService) List(ctx context.Context, projectSlug string) ([]model.RequirementSpec, error) {
	specs, err := s.catalog.ListByProject(ctx, projectSlug)
	if err != nil {
		return nil, fmt.Errorf("list requirement catalog for %q: %w", projectSlug, err)
	}
	if specs == nil {
		specs = []model.RequirementSpec{}
	}
	return specs, nil
}
