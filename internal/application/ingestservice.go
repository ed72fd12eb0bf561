package application

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/ericfisherdev/mirror/internal/domain/model"
	"github.com/ericfisherdev/mirror/internal/domain/port/driven"
)

// Commit status contexts reported to the code host.
const (
	StatusContextTests        = "mirror/tests"
	StatusContextCoverageGate = "mirror/coverage-gate"
)

// IngestService persists run submissions exactly once per run_id. Replays and
// corrected resubmissions overwrite stored rows in place; nothing in this
// service serializes concurrent submissions of the same run_id beyond the
// per-row upserts of the stores.
type IngestService struct {
	projects         driven.ProjectStore
	runs             driven.RunStore
	requirements     driven.RequirementStore
	decisions        driven.DecisionStore
	publisher        driven.CommitStatusPublisher
	gate             *CoverageGate
	dashboardBaseURL string
	logger           *slog.Logger
}

// NewIngestService creates an IngestService. publisher may be nil, in which
// case no commit statuses are published.
func NewIngestService(
	projects driven.ProjectStore,
	runs driven.RunStore,
	requirements driven.RequirementStore,
	decisions driven.DecisionStore,
	publisher driven.CommitStatusPublisher,
	gate *CoverageGate,
	dashboardBaseURL string,
	logger *slog.Logger,
) *IngestService {
	if logger == nil {
		logger = slog.Default()
	}
	return &IngestService{
		projects:         projects,
		runs:             runs,
		requirements:     requirements,
		decisions:        decisions,
		publisher:        publisher,
		gate:             gate,
		dashboardBaseURL: strings.TrimSuffix(dashboardBaseURL, "/"),
		logger:           logger,
	}
}

// Submit validates and stores a submission. Steps run sequentially because
// each depends on the identity resolved by the previous one:
//
//  1. resolve the project by slug
//  2. upsert the run on run_id
//  3. upsert requirement verdicts (best effort, failures are logged)
//  4. upsert decisions on (run, oracle) (failures abort the submission)
//
// idempotencyKey is advisory and only logged.
func (s *IngestService) Submit(ctx context.Context, sub model.Submission, idempotencyKey string) (model.IngestResult, error) {
	if err := ValidateSubmission(sub); err != nil {
		return model.IngestResult{}, err
	}

	s.logger.Info("run submission received",
		"run_id", sub.Run.RunID,
		"project", sub.Run.Project,
		"decisions", len(sub.Decisions),
		"idempotency_key", idempotencyKey,
	)

	project, err := s.projects.Ensure(ctx, sub.Run.Project)
	if err != nil {
		return model.IngestResult{}, fmt.Errorf("resolve project %q: %w", sub.Run.Project, err)
	}

	digest, err := SubmissionDigest(sub)
	if err != nil {
		return model.IngestResult{}, fmt.Errorf("digest submission: %w", err)
	}

	run := model.Run{
		RunMeta:        sub.Run,
		Manifest:       sub.Manifest,
		DecisionsCount: len(sub.Decisions),
		PayloadDigest:  digest,
	}
	if sub.Coverage != nil {
		run.Coverage = *sub.Coverage
	}
	if run.CreatedAt.IsZero() {
		run.CreatedAt = time.Now().UTC()
	}

	stored, outcome, err := s.runs.Upsert(ctx, project.ID, run)
	if err != nil {
		return model.IngestResult{}, fmt.Errorf("upsert run %q: %w", sub.Run.RunID, err)
	}
	s.logger.Info("run upserted", "run_id", stored.RunID, "outcome", outcome)

	if sub.Coverage != nil && len(sub.Coverage.ByRequirement) > 0 {
		if err := s.requirements.UpsertAll(ctx, stored.ID, sub.Coverage.ByRequirement); err != nil {
			s.logger.Warn("requirement verdict upsert failed, continuing",
				"run_id", stored.RunID,
				"count", len(sub.Coverage.ByRequirement),
				"error", err,
			)
		}
	}

	if len(sub.Decisions) > 0 {
		if err := s.decisions.UpsertAll(ctx, stored.ID, sub.Decisions); err != nil {
			return model.IngestResult{}, fmt.Errorf("upsert decisions for run %q: %w", stored.RunID, err)
		}
	}

	s.publishStatuses(ctx, stored)

	return model.IngestResult{
		RunID:        stored.RunID,
		DashboardURL: s.DashboardURL(stored.RunID),
		Outcome:      outcome,
	}, nil
}

// DashboardURL returns the dashboard reference for a run.
func (s *IngestService) DashboardURL(runID string) string {
	return s.dashboardBaseURL + "/runs/" + url.PathEscape(runID)
}

// publishStatuses reports both verdicts to the code host, derived from the
// stored decisions so they agree with what the read API reports. Failures
// never affect the submission.
func (s *IngestService) publishStatuses(ctx context.Context, run model.Run) {
	if s.publisher == nil || run.Commit == "" {
		return
	}
	owner, repo, ok := strings.Cut(run.Project, "/")
	if !ok || owner == "" || repo == "" || strings.Contains(repo, "/") {
		return
	}

	verdict := s.gate.Verdict(run, s.storedDecisionResults(ctx, run.RunID))
	target := s.DashboardURL(run.RunID)
	if !strings.HasPrefix(target, "http") {
		// Code hosts reject relative target URLs.
		target = ""
	}

	statuses := []driven.CommitStatus{
		{
			Context:     StatusContextTests,
			State:       commitState(verdict.Tests.Passed),
			Description: fmt.Sprintf("tests %s (%s)", passedWord(verdict.Tests.Passed), verdict.Tests.Source),
			TargetURL:   target,
		},
		{
			Context:     StatusContextCoverageGate,
			State:       commitState(verdict.Gate.OK),
			Description: fmt.Sprintf("req %s / tmp %s", FormatPercent(verdict.Gate.Requirement), FormatPercent(verdict.Gate.Temporal)),
			TargetURL:   target,
		},
	}

	for _, st := range statuses {
		if err := s.publisher.PublishCommitStatus(ctx, run.Project, run.Commit, st); err != nil {
			s.logger.Warn("commit status publish failed",
				"run_id", run.RunID,
				"context", st.Context,
				"error", err,
			)
		}
	}
}

func (s *IngestService) storedDecisionResults(ctx context.Context, runID string) []string {
	results, err := s.decisions.ResultsByRunIDs(ctx, []string{runID})
	if err != nil {
		s.logger.Warn("load stored decision results failed, publishing without them",
			"run_id", runID,
			"error", err,
		)
		return nil
	}
	return results[runID]
}

func commitState(ok bool) driven.CommitState {
	if ok {
		return driven.CommitStateSuccess
	}
	return driven.CommitStateFailure
}

func passedWord(ok bool) string {
	if ok {
		return "passed"
	}
	return "failed"
}

// digestDoc is the canonical form hashed to detect pure replays.
type digestDoc struct {
	Run       digestRun        `json:"run"`
	Manifest  json.RawMessage  `json:"manifest,omitempty"`
	Coverage  *model.Coverage  `json:"coverage,omitempty"`
	Decisions []digestDecision `json:"decisions"`
}

type digestRun struct {
	RunID     string   `json:"run_id"`
	Project   string   `json:"project"`
	Commit    string   `json:"commit"`
	Branch    string   `json:"branch"`
	CreatedAt string   `json:"created_at"`
	CI        model.CI `json:"ci"`
	PassRate  *float64 `json:"pass_rate,omitempty"`
	Passed    *int     `json:"passed,omitempty"`
	Total     *int     `json:"total,omitempty"`
	Status    *string  `json:"status,omitempty"`
}

type digestDecision struct {
	Oracle    string   `json:"oracle"`
	Result    string   `json:"result"`
	Satisfies []string `json:"satisfies"`
	Evidence  []string `json:"evidence"`
	Message   string   `json:"message"`
}

// SubmissionDigest returns a hex SHA-256 over the canonical form of a
// submission. Manifest whitespace does not affect the digest. A submission
// without created_at hashes the zero time, so replays still match.
func SubmissionDigest(sub model.Submission) (string, error) {
	doc := digestDoc{
		Run: digestRun{
			RunID:    sub.Run.RunID,
			Project:  sub.Run.Project,
			Commit:   sub.Run.Commit,
			Branch:   sub.Run.Branch,
			CI:       sub.Run.CI,
			PassRate: sub.Run.PassRate,
			Passed:   sub.Run.Passed,
			Total:    sub.Run.Total,
			Status:   sub.Run.Status,
		},
		Coverage:  sub.Coverage,
		Decisions: make([]digestDecision, 0, len(sub.Decisions)),
	}
	if !sub.Run.CreatedAt.IsZero() {
		doc.Run.CreatedAt = sub.Run.CreatedAt.UTC().Format(time.RFC3339Nano)
	}
	if len(sub.Manifest) > 0 {
		var buf bytes.Buffer
		if err := json.Compact(&buf, sub.Manifest); err != nil {
			return "", fmt.Errorf("compact manifest: %w", err)
		}
		doc.Manifest = buf.Bytes()
	}
	for _, d := range sub.Decisions {
		doc.Decisions = append(doc.Decisions, digestDecision{
			Oracle:    d.Oracle,
			Result:    string(d.Result),
			Satisfies: d.Satisfies,
			Evidence:  d.Evidence,
			Message:   d.Message,
		})
	}

	data, err := json.Marshal(doc)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}
