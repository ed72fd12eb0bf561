package application_test

import (
	"context"
	"errors"
	"sync"

	"github.com/ericfisherdev/mirror/internal/domain/model"
	"github.com/ericfisherdev/mirror/internal/domain/port/driven"
)

// --- Mock implementations ---

type mockProjectStore struct {
	ensured []string
	err     error
}

func (m *mockProjectStore) Ensure(_ context.Context, slug string) (model.Project, error) {
	if m.err != nil {
		return model.Project{}, m.err
	}
	m.ensured = append(m.ensured, slug)
	return model.Project{ID: 7, Slug: slug}, nil
}

// mockRunStore keeps runs in memory keyed on run_id and mirrors the digest
// based replay detection of the real store.
type mockRunStore struct {
	mu        sync.Mutex
	runs      map[string]model.Run
	order     []string
	upsertErr error
	listErr   error
	nextID    int64

	// onUpsert observes every written run, including its assigned ID.
	onUpsert func(model.Run)
}

func newMockRunStore() *mockRunStore {
	return &mockRunStore{runs: make(map[string]model.Run)}
}

func (m *mockRunStore) Upsert(_ context.Context, _ int64, run model.Run) (model.Run, model.UpsertOutcome, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.upsertErr != nil {
		return model.Run{}, "", m.upsertErr
	}
	existing, ok := m.runs[run.RunID]
	if !ok {
		m.nextID++
		run.ID = m.nextID
		m.runs[run.RunID] = run
		m.order = append(m.order, run.RunID)
		m.notify(run)
		return run, model.UpsertCreated, nil
	}
	run.ID = existing.ID
	if run.PayloadDigest != "" && run.PayloadDigest == existing.PayloadDigest {
		return existing, model.UpsertUnchanged, nil
	}
	m.runs[run.RunID] = run
	m.notify(run)
	return run, model.UpsertUpdated, nil
}

func (m *mockRunStore) notify(run model.Run) {
	if m.onUpsert != nil {
		m.onUpsert(run)
	}
}

func (m *mockRunStore) GetByRunID(_ context.Context, runID string) (model.Run, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	run, ok := m.runs[runID]
	if !ok {
		return model.Run{}, driven.ErrRunNotFound
	}
	return run, nil
}

func (m *mockRunStore) List(_ context.Context, _ model.RunFilter, page model.PageRequest) (model.RunPage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.listErr != nil {
		return model.RunPage{}, m.listErr
	}
	runs := []model.Run{}
	for i := len(m.order) - 1; i >= 0; i-- {
		runs = append(runs, m.runs[m.order[i]])
	}
	total := len(runs)
	start := min(page.Offset(), total)
	end := min(start+page.PageSize, total)
	return model.RunPage{Runs: runs[start:end], Page: page.Page, PageSize: page.PageSize, Total: total}, nil
}

type mockDecisionStore struct {
	mu         sync.Mutex
	byRun      map[int64][]model.Decision
	runIDs     map[string]int64
	upsertErr  error
	resultsErr error
}

func newMockDecisionStore() *mockDecisionStore {
	return &mockDecisionStore{byRun: make(map[int64][]model.Decision), runIDs: make(map[string]int64)}
}

// link associates a public run_id with the internal run ID used by UpsertAll.
func (m *mockDecisionStore) link(runID string, id int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.runIDs[runID] = id
}

func (m *mockDecisionStore) UpsertAll(_ context.Context, runID int64, decisions []model.Decision) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.upsertErr != nil {
		return m.upsertErr
	}
	for _, d := range decisions {
		replaced := false
		for i, existing := range m.byRun[runID] {
			if existing.Oracle == d.Oracle {
				m.byRun[runID][i] = d
				replaced = true
			}
		}
		if !replaced {
			m.byRun[runID] = append(m.byRun[runID], d)
		}
	}
	return nil
}

func (m *mockDecisionStore) ListByRunID(_ context.Context, runID string) ([]model.Decision, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	id, ok := m.runIDs[runID]
	if !ok {
		return nil, nil
	}
	return m.byRun[id], nil
}

func (m *mockDecisionStore) ResultsByRunIDs(_ context.Context, runIDs []string) (map[string][]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.resultsErr != nil {
		return nil, m.resultsErr
	}
	out := make(map[string][]string)
	for _, runID := range runIDs {
		id, ok := m.runIDs[runID]
		if !ok {
			continue
		}
		for _, d := range m.byRun[id] {
			out[runID] = append(out[runID], string(d.Result))
		}
	}
	return out, nil
}

type mockRequirementStore struct {
	verdicts  map[int64][]model.RunRequirement
	upsertErr error
	calls     int
}

func newMockRequirementStore() *mockRequirementStore {
	return &mockRequirementStore{verdicts: make(map[int64][]model.RunRequirement)}
}

func (m *mockRequirementStore) UpsertAll(_ context.Context, runID int64, verdicts []model.RequirementVerdict) error {
	m.calls++
	if m.upsertErr != nil {
		return m.upsertErr
	}
	for _, v := range verdicts {
		m.verdicts[runID] = append(m.verdicts[runID], model.RunRequirement{
			RunID:         runID,
			RequirementID: v.RequirementID,
			Status:        v.Result,
		})
	}
	return nil
}

func (m *mockRequirementStore) ListByRun(_ context.Context, runID int64) ([]model.RunRequirement, error) {
	return m.verdicts[runID], nil
}

type mockCatalogStore struct {
	specs     map[string][]model.RequirementSpec
	upserted  map[int64][]model.RequirementSpec
	upsertErr error
}

func newMockCatalogStore() *mockCatalogStore {
	return &mockCatalogStore{
		specs:    make(map[string][]model.RequirementSpec),
		upserted: make(map[int64][]model.RequirementSpec),
	}
}

func (m *mockCatalogStore) UpsertAll(_ context.Context, projectID int64, specs []model.RequirementSpec) error {
	if m.upsertErr != nil {
		return m.upsertErr
	}
	m.upserted[projectID] = append(m.upserted[projectID], specs...)
	return nil
}

func (m *mockCatalogStore) ListByProject(_ context.Context, slug string) ([]model.RequirementSpec, error) {
	return m.specs[slug], nil
}

type publishCall struct {
	Repo   string
	Commit string
	Status driven.CommitStatus
}

type mockPublisher struct {
	calls []publishCall
	err   error
}

func (m *mockPublisher) PublishCommitStatus(_ context.Context, repo, commit string, status driven.CommitStatus) error {
	m.calls = append(m.calls, publishCall{Repo: repo, Commit: commit, Status: status})
	return m.err
}

var errStorage = errors.New("storage unavailable")

func f64(v float64) *float64 { return &v }
