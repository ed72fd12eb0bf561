package httphandler

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/ericfisherdev/mirror/internal/application"
	"github.com/ericfisherdev/mirror/internal/domain/model"
)

// writeJSON marshals v to JSON and writes it to the response with the given
// status code. If marshaling fails, a 500 error is written instead.
func writeJSON(w http.ResponseWriter, status int, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":"internal server error"}`))
		return
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write(data)
}

// writeError writes a JSON error response with the given status code and message.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message})
}

// errorResponse is the standard error response body.
type errorResponse struct {
	Error string `json:"error"`
}

// SubmitRunResponse is returned after a run submission is stored.
type SubmitRunResponse struct {
	RunID        string `json:"run_id"`
	DashboardURL string `json:"dashboard_url"`
	Outcome      string `json:"outcome"`
}

// CIResponse is the JSON representation of a run's CI provenance.
type CIResponse struct {
	Provider string `json:"provider,omitempty"`
	Workflow string `json:"workflow,omitempty"`
	RunURL   string `json:"run_url,omitempty"`
}

// RunMetaResponse is the JSON representation of a run's metadata.
type RunMetaResponse struct {
	RunID     string      `json:"run_id"`
	Project   string      `json:"project"`
	Commit    string      `json:"commit"`
	Branch    string      `json:"branch"`
	CreatedAt string      `json:"created_at"`
	CI        *CIResponse `json:"ci,omitempty"`
	PassRate  *float64    `json:"pass_rate,omitempty"`
	Passed    *int        `json:"passed,omitempty"`
	Total     *int        `json:"total,omitempty"`
	Status    *string     `json:"status,omitempty"`
}

// CoverageResponse carries the coverage ratios of a run. Unreported ratios are omitted.
type CoverageResponse struct {
	Requirement *float64 `json:"requirement,omitempty"`
	Temporal    *float64 `json:"temporal,omitempty"`
	Interface   *float64 `json:"interface,omitempty"`
	Risk        *float64 `json:"risk,omitempty"`
}

// VerdictResponse carries both independent verdicts of a run.
type VerdictResponse struct {
	TestsPassed          bool    `json:"tests_passed"`
	TestsSource          string  `json:"tests_source"`
	GateOK               bool    `json:"gate_ok"`
	RequirementThreshold float64 `json:"requirement_threshold"`
	TemporalThreshold    float64 `json:"temporal_threshold"`
}

// RunListItem is one row of the run listing: the run metadata with its
// coverage and verdict.
type RunListItem struct {
	RunMetaResponse
	Coverage       CoverageResponse `json:"coverage"`
	DecisionsCount int              `json:"decisions_count"`
	Verdict        VerdictResponse  `json:"verdict"`
}

// RunListResponse is one page of the run listing.
type RunListResponse struct {
	Items    []RunListItem `json:"items"`
	Page     int           `json:"page"`
	PageSize int           `json:"pageSize"`
	Total    int           `json:"total"`
}

// ManifestSummaryResponse reports the known fields of a run manifest.
type ManifestSummaryResponse struct {
	Schema    string `json:"schema"`
	Events    int    `json:"events"`
	Artifacts int    `json:"artifacts"`
	Evaluator string `json:"evaluator,omitempty"`
	Plugin    string `json:"plugin,omitempty"`
}

// RunDetailResponse is the JSON representation of a single run.
type RunDetailResponse struct {
	Run             RunMetaResponse         `json:"run"`
	Manifest        json.RawMessage         `json:"manifest"`
	Coverage        CoverageResponse        `json:"coverage"`
	DecisionsCount  int                     `json:"decisions_count"`
	Verdict         VerdictResponse         `json:"verdict"`
	ManifestSummary ManifestSummaryResponse `json:"manifest_summary"`
}

// EvidenceResponse is one evidence entry with a flag for link rendering.
type EvidenceResponse struct {
	Text  string `json:"text"`
	IsURL bool   `json:"is_url"`
}

// DecisionResponse is the JSON representation of one oracle decision.
type DecisionResponse struct {
	Oracle        string             `json:"oracle"`
	Result        string             `json:"result"`
	Satisfies     []string           `json:"satisfies"`
	Evidence      []string           `json:"evidence"`
	EvidenceItems []EvidenceResponse `json:"evidence_items"`
	Message       *string            `json:"message"`
	MessageHTML   string             `json:"message_html,omitempty"`
}

// ModuleCoverageResponse is one (module, interface) coverage rollup row.
type ModuleCoverageResponse struct {
	Module          string  `json:"module"`
	Interface       string  `json:"interface"`
	TotalReqs       int     `json:"total_reqs"`
	CoveredReqs     int     `json:"covered_reqs"`
	CoveredWeight   float64 `json:"covered_weight"`
	TotalWeight     float64 `json:"total_weight"`
	Coverage        float64 `json:"coverage"`
	RiskWeighted    float64 `json:"risk_weighted"`
	CoveragePct     string  `json:"coverage_pct"`
	RiskWeightedPct string  `json:"risk_weighted_pct"`
}

// RequirementSpecResponse is one requirement catalog entry.
type RequirementSpecResponse struct {
	ID         string  `json:"id"`
	Module     string  `json:"module"`
	Interface  string  `json:"interface"`
	RiskWeight float64 `json:"risk_weight"`
}

// ImportRequirementsResponse reports the result of a catalog import.
type ImportRequirementsResponse struct {
	Project  string `json:"project"`
	Imported int    `json:"imported"`
}

// HealthResponse is the JSON representation of the health check endpoint.
type HealthResponse struct {
	Status string `json:"status"`
	Time   string `json:"time"`
}

func toRunMetaResponse(run model.Run) RunMetaResponse {
	resp := RunMetaResponse{
		RunID:     run.RunID,
		Project:   run.Project,
		Commit:    run.Commit,
		Branch:    run.Branch,
		CreatedAt: run.CreatedAt.UTC().Format(time.RFC3339Nano),
		PassRate:  run.PassRate,
		Passed:    run.Passed,
		Total:     run.Total,
		Status:    run.Status,
	}
	if !run.CI.IsZero() {
		resp.CI = &CIResponse{
			Provider: run.CI.Provider,
			Workflow: run.CI.Workflow,
			RunURL:   run.CI.RunURL,
		}
	}
	return resp
}

func toCoverageResponse(c model.Coverage) CoverageResponse {
	return CoverageResponse{
		Requirement: c.Requirement,
		Temporal:    c.Temporal,
		Interface:   c.Interface,
		Risk:        c.Risk,
	}
}

func toVerdictResponse(v model.RunVerdict) VerdictResponse {
	return VerdictResponse{
		TestsPassed:          v.Tests.Passed,
		TestsSource:          string(v.Tests.Source),
		GateOK:               v.Gate.OK,
		RequirementThreshold: v.Gate.Thresholds.Requirement,
		TemporalThreshold:    v.Gate.Thresholds.Temporal,
	}
}

func toRunListItem(s model.RunSummary) RunListItem {
	return RunListItem{
		RunMetaResponse: toRunMetaResponse(s.Run),
		Coverage:        toCoverageResponse(s.Run.Coverage),
		DecisionsCount:  s.Run.DecisionsCount,
		Verdict:         toVerdictResponse(s.Verdict),
	}
}

func toRunDetailResponse(s model.RunSummary) RunDetailResponse {
	manifest := s.Run.Manifest
	if len(manifest) == 0 {
		manifest = json.RawMessage("null")
	}
	summary := model.SummarizeManifest(s.Run.Manifest)

	return RunDetailResponse{
		Run:            toRunMetaResponse(s.Run),
		Manifest:       manifest,
		Coverage:       toCoverageResponse(s.Run.Coverage),
		DecisionsCount: s.Run.DecisionsCount,
		Verdict:        toVerdictResponse(s.Verdict),
		ManifestSummary: ManifestSummaryResponse{
			Schema:    summary.Schema,
			Events:    summary.Events,
			Artifacts: summary.Artifacts,
			Evaluator: summary.Evaluator,
			Plugin:    summary.Plugin,
		},
	}
}

func toDecisionResponse(d model.Decision) DecisionResponse {
	satisfies := d.Satisfies
	if satisfies == nil {
		satisfies = []string{}
	}
	evidence := d.Evidence
	if evidence == nil {
		evidence = []string{}
	}

	items := make([]EvidenceResponse, 0, len(evidence))
	for _, e := range evidence {
		items = append(items, EvidenceResponse{Text: e, IsURL: IsURL(e)})
	}

	resp := DecisionResponse{
		Oracle:        d.Oracle,
		Result:        string(d.Result),
		Satisfies:     satisfies,
		Evidence:      evidence,
		EvidenceItems: items,
	}
	if d.Message != "" {
		msg := d.Message
		resp.Message = &msg
		resp.MessageHTML = RenderMarkdown(d.Message)
	}
	return resp
}

func toModuleCoverageResponse(m model.ModuleCoverage) ModuleCoverageResponse {
	return ModuleCoverageResponse{
		Module:          m.Module,
		Interface:       m.Interface,
		TotalReqs:       m.TotalReqs,
		CoveredReqs:     m.CoveredReqs,
		CoveredWeight:   m.CoveredWeight,
		TotalWeight:     m.TotalWeight,
		Coverage:        m.Coverage,
		RiskWeighted:    m.RiskWeighted,
		CoveragePct:     application.FormatPercent(m.Coverage),
		RiskWeightedPct: application.FormatPercent(m.RiskWeighted),
	}
}

func toRequirementSpecResponse(s model.RequirementSpec) RequirementSpecResponse {
	return RequirementSpecResponse{
		ID:         s.RequirementID,
		Module:     s.Module,
		Interface:  s.Interface,
		RiskWeight: s.RiskWeight,
	}
}
