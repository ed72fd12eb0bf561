package httphandler

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/ericfisherdev/mirror/internal/application"
	"github.com/ericfisherdev/mirror/internal/domain/model"
)

// SubmitRunRequest is the JSON body of the run submission endpoint.
// Coverage values are decoded by key so that numeric strings and nulls are
// handled the same way as numbers.
type SubmitRunRequest struct {
	Run       RunMetaRequest             `json:"run"`
	Manifest  json.RawMessage            `json:"manifest"`
	Coverage  map[string]json.RawMessage `json:"coverage"`
	Decisions []DecisionRequest          `json:"decisions"`
}

// RunMetaRequest is the producer-supplied run metadata.
type RunMetaRequest struct {
	RunID     string     `json:"run_id"`
	Project   string     `json:"project"`
	Commit    string     `json:"commit"`
	Branch    string     `json:"branch"`
	CreatedAt string     `json:"created_at"`
	CI        *CIRequest `json:"ci"`
	PassRate  *float64   `json:"pass_rate"`
	Passed    *int       `json:"passed"`
	Total     *int       `json:"total"`
	Status    *string    `json:"status"`
}

// CIRequest is the optional CI provenance of a run.
type CIRequest struct {
	Provider string `json:"provider"`
	Workflow string `json:"workflow"`
	RunURL   string `json:"run_url"`
	URL      string `json:"url"`
}

// DecisionRequest is one oracle decision. Status is accepted as a synonym
// for Result.
type DecisionRequest struct {
	Oracle    string   `json:"oracle"`
	Result    string   `json:"result"`
	Status    string   `json:"status"`
	Satisfies []string `json:"satisfies"`
	Evidence  []string `json:"evidence"`
	Message   string   `json:"message"`
}

// RequirementVerdictRequest is one entry of coverage.by_requirement. Both the
// short (id, result) and long (requirement_id, verdict) field names are accepted.
type RequirementVerdictRequest struct {
	ID            string `json:"id"`
	RequirementID string `json:"requirement_id"`
	Result        string `json:"result"`
	Verdict       string `json:"verdict"`
	Status        string `json:"status"`
}

// RequirementSpecRequest is one entry of a requirement catalog import.
type RequirementSpecRequest struct {
	ID         string   `json:"id"`
	Module     string   `json:"module"`
	Interface  string   `json:"interface"`
	RiskWeight *float64 `json:"risk_weight"`
}

// createdAtLayouts are the accepted run.created_at formats, most specific first.
var createdAtLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	time.DateOnly,
}

// toSubmission converts the request body to a domain submission. Only
// decoding problems are reported here; range checks happen in the
// application layer.
func (req SubmitRunRequest) toSubmission() (model.Submission, error) {
	sub := model.Submission{
		Run: model.RunMeta{
			RunID:    strings.TrimSpace(req.Run.RunID),
			Project:  strings.TrimSpace(req.Run.Project),
			Commit:   req.Run.Commit,
			Branch:   req.Run.Branch,
			PassRate: req.Run.PassRate,
			Passed:   req.Run.Passed,
			Total:    req.Run.Total,
			Status:   req.Run.Status,
		},
	}

	if req.Run.CreatedAt != "" {
		t, err := parseCreatedAt(req.Run.CreatedAt)
		if err != nil {
			return model.Submission{}, err
		}
		sub.Run.CreatedAt = t
	}

	if req.Run.CI != nil {
		sub.Run.CI = model.CI{
			Provider: req.Run.CI.Provider,
			Workflow: req.Run.CI.Workflow,
			RunURL:   req.Run.CI.RunURL,
		}
		if sub.Run.CI.RunURL == "" {
			sub.Run.CI.RunURL = req.Run.CI.URL
		}
	}

	manifest := bytes.TrimSpace(req.Manifest)
	if len(manifest) > 0 && !bytes.Equal(manifest, []byte("null")) {
		sub.Manifest = json.RawMessage(manifest)
	}

	if req.Coverage != nil {
		cov, err := decodeCoverage(req.Coverage)
		if err != nil {
			return model.Submission{}, err
		}
		sub.Coverage = &cov
	}

	if len(req.Decisions) > 0 {
		sub.Decisions = make([]model.Decision, 0, len(req.Decisions))
		for _, d := range req.Decisions {
			result := d.Result
			if result == "" {
				result = d.Status
			}
			sub.Decisions = append(sub.Decisions, model.Decision{
				Oracle:    strings.TrimSpace(d.Oracle),
				Result:    model.DecisionResult(result),
				Satisfies: d.Satisfies,
				Evidence:  d.Evidence,
				Message:   d.Message,
			})
		}
	}

	return sub, nil
}

func parseCreatedAt(s string) (time.Time, error) {
	for _, layout := range createdAtLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, &application.ValidationError{
		Field:   "run.created_at",
		Message: fmt.Sprintf("invalid payload: run.created_at %q is not an RFC 3339 timestamp", s),
	}
}

func decodeCoverage(raw map[string]json.RawMessage) (model.Coverage, error) {
	var cov model.Coverage

	targets := map[string]**float64{
		model.RatioRequirement: &cov.Requirement,
		model.RatioTemporal:    &cov.Temporal,
		model.RatioInterface:   &cov.Interface,
		model.RatioRisk:        &cov.Risk,
	}
	for _, key := range model.RatioKeys {
		v, err := application.ParseRatio(key, raw[key])
		if err != nil {
			return model.Coverage{}, err
		}
		*targets[key] = v
	}

	if byReq, ok := raw["by_requirement"]; ok && !bytes.Equal(bytes.TrimSpace(byReq), []byte("null")) {
		var entries []RequirementVerdictRequest
		if err := json.Unmarshal(byReq, &entries); err != nil {
			return model.Coverage{}, &application.ValidationError{
				Field:   "coverage.by_requirement",
				Message: "invalid payload: coverage.by_requirement must be a list of {id, result}",
			}
		}
		for _, e := range entries {
			id := e.ID
			if id == "" {
				id = e.RequirementID
			}
			if id == "" {
				continue
			}
			cov.ByRequirement = append(cov.ByRequirement, model.RequirementVerdict{
				RequirementID: id,
				Result:        normalizeRequirementStatus(firstNonEmpty(e.Result, e.Verdict, e.Status)),
			})
		}
	}

	return cov, nil
}

// normalizeRequirementStatus maps a free-form verdict onto the stored
// requirement statuses. Unrecognized values become unknown.
func normalizeRequirementStatus(s string) model.RequirementStatus {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "pass", "passed", "ok", "covered":
		return model.RequirementPass
	case "fail", "failed", "error":
		return model.RequirementFail
	case "skip", "skipped":
		return model.RequirementSkip
	default:
		return model.RequirementUnknown
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func (req RequirementSpecRequest) toSpec() model.RequirementSpec {
	weight := 1.0
	if req.RiskWeight != nil {
		weight = *req.RiskWeight
	}
	return model.RequirementSpec{
		RequirementID: strings.TrimSpace(req.ID),
		Module:        req.Module,
		Interface:     req.Interface,
		RiskWeight:    weight,
	}
}
