package httphandler_test

import (
	"context"
	"sort"
	"sync"

	"github.com/ericfisherdev/mirror/internal/domain/model"
	"github.com/ericfisherdev/mirror/internal/domain/port/driven"
)

// --- Mock implementations ---

// memStore is an in-memory implementation of every driven store port.
type memStore struct {
	mu sync.Mutex

	projects     map[string]int64
	runs         map[string]model.Run
	decisions    map[int64][]model.Decision
	requirements map[int64][]model.RunRequirement
	catalog      map[int64][]model.RequirementSpec
	nextID       int64

	runErr      error
	decisionErr error
}

func newMemStore() *memStore {
	return &memStore{
		projects:     make(map[string]int64),
		runs:         make(map[string]model.Run),
		decisions:    make(map[int64][]model.Decision),
		requirements: make(map[int64][]model.RunRequirement),
		catalog:      make(map[int64][]model.RequirementSpec),
	}
}

func (m *memStore) Ensure(_ context.Context, slug string) (model.Project, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	id, ok := m.projects[slug]
	if !ok {
		m.nextID++
		id = m.nextID
		m.projects[slug] = id
	}
	return model.Project{ID: id, Slug: slug}, nil
}

func (m *memStore) Upsert(_ context.Context, _ int64, run model.Run) (model.Run, model.UpsertOutcome, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.runErr != nil {
		return model.Run{}, "", m.runErr
	}
	existing, ok := m.runs[run.RunID]
	if !ok {
		m.nextID++
		run.ID = m.nextID
		m.runs[run.RunID] = run
		return run, model.UpsertCreated, nil
	}
	run.ID = existing.ID
	if run.PayloadDigest == existing.PayloadDigest {
		return existing, model.UpsertUnchanged, nil
	}
	m.runs[run.RunID] = run
	return run, model.UpsertUpdated, nil
}

func (m *memStore) GetByRunID(_ context.Context, runID string) (model.Run, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	run, ok := m.runs[runID]
	if !ok {
		return model.Run{}, driven.ErrRunNotFound
	}
	return run, nil
}

func (m *memStore) List(_ context.Context, filter model.RunFilter, page model.PageRequest) (model.RunPage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.runErr != nil {
		return model.RunPage{}, m.runErr
	}
	runs := []model.Run{}
	for _, r := range m.runs {
		if filter.Project != "" && r.Project != filter.Project {
			continue
		}
		if filter.Branch != "" && r.Branch != filter.Branch {
			continue
		}
		runs = append(runs, r)
	}
	sort.Slice(runs, func(i, j int) bool {
		if !runs[i].CreatedAt.Equal(runs[j].CreatedAt) {
			return runs[i].CreatedAt.After(runs[j].CreatedAt)
		}
		return runs[i].ID < runs[j].ID
	})

	total := len(runs)
	start := min(page.Offset(), total)
	end := min(start+page.PageSize, total)
	return model.RunPage{Runs: runs[start:end], Page: page.Page, PageSize: page.PageSize, Total: total}, nil
}

func (m *memStore) internalID(runID string) (int64, bool) {
	run, ok := m.runs[runID]
	return run.ID, ok
}

// decisionStore adapts memStore to the DecisionStore port, whose UpsertAll
// signature collides with the requirement store's.
type decisionStore struct{ *memStore }

func (d decisionStore) UpsertAll(_ context.Context, runID int64, decisions []model.Decision) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.decisionErr != nil {
		return d.decisionErr
	}
	for _, dec := range decisions {
		replaced := false
		for i, existing := range d.decisions[runID] {
			if existing.Oracle == dec.Oracle {
				d.decisions[runID][i] = dec
				replaced = true
			}
		}
		if !replaced {
			d.decisions[runID] = append(d.decisions[runID], dec)
		}
	}
	return nil
}

func (d decisionStore) ListByRunID(_ context.Context, runID string) ([]model.Decision, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	id, ok := d.internalID(runID)
	if !ok {
		return []model.Decision{}, nil
	}
	return append([]model.Decision{}, d.decisions[id]...), nil
}

func (d decisionStore) ResultsByRunIDs(_ context.Context, runIDs []string) (map[string][]string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	out := make(map[string][]string)
	for _, runID := range runIDs {
		id, ok := d.internalID(runID)
		if !ok {
			continue
		}
		for _, dec := range d.decisions[id] {
			out[runID] = append(out[runID], string(dec.Result))
		}
	}
	return out, nil
}

type requirementStore struct{ *memStore }

func (rs requirementStore) UpsertAll(_ context.Context, runID int64, verdicts []model.RequirementVerdict) error {
	rs.mu.Lock()
	defer rs.mu.Unlock()

	for _, v := range verdicts {
		rs.requirements[runID] = append(rs.requirements[runID], model.RunRequirement{
			RunID: runID, RequirementID: v.RequirementID, Status: v.Result,
		})
	}
	return nil
}

func (rs requirementStore) ListByRun(_ context.Context, runID int64) ([]model.RunRequirement, error) {
	rs.mu.Lock()
	defer rs.mu.Unlock()

	return rs.requirements[runID], nil
}

type catalogStore struct{ *memStore }

func (c catalogStore) UpsertAll(_ context.Context, projectID int64, specs []model.RequirementSpec) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.catalog[projectID] = append(c.catalog[projectID], specs...)
	return nil
}

func (c catalogStore) ListByProject(_ context.Context, slug string) ([]model.RequirementSpec, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	id, ok := c.projects[slug]
	if !ok {
		return nil, nil
	}
	return c.catalog[id], nil
}
