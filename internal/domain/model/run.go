package model

import (
	"encoding/json"
	"time"
)

// Project groups runs under a unique slug such as "acme/app".
type Project struct {
	ID        int64
	Slug      string
	CreatedAt time.Time
}

// CI describes the CI provider, workflow, and run URL that produced a run.
type CI struct {
	Provider string `json:"provider,omitempty"`
	Workflow string `json:"workflow,omitempty"`
	RunURL   string `json:"run_url,omitempty"`
}

// IsZero reports whether no CI metadata was supplied.
func (c CI) IsZero() bool {
	return c.Provider == "" && c.Workflow == "" && c.RunURL == ""
}

// RunMeta is the producer-supplied identity and provenance of a run.
type RunMeta struct {
	RunID     string
	Project   string
	Commit    string
	Branch    string
	CreatedAt time.Time
	CI        CI

	// Optional test-status signals. Nil means the producer did not send them.
	PassRate *float64
	Passed   *int
	Total    *int
	Status   *string
}

// Run is a stored CI test execution.
type Run struct {
	ID int64
	RunMeta
	Manifest       json.RawMessage
	Coverage       Coverage
	DecisionsCount int
	PayloadDigest  string
}

// Submission is one logical run submission as received from a producer.
type Submission struct {
	Run       RunMeta
	Manifest  json.RawMessage
	Coverage  *Coverage
	Decisions []Decision
}

// UpsertOutcome reports how a run upsert changed the stored state.
type UpsertOutcome string

const (
	UpsertCreated   UpsertOutcome = "created"
	UpsertUpdated   UpsertOutcome = "updated"
	UpsertUnchanged UpsertOutcome = "unchanged"
)

// IngestResult is returned after a submission has been persisted.
type IngestResult struct {
	RunID        string
	DashboardURL string
	Outcome      UpsertOutcome
}
