// Package client is a typed Go client for the run ingestion REST API.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Client is a minimal HTTP API client.
type Client struct {
	BaseURL     string
	BearerToken string
	HTTPClient  *http.Client
	Timeout     time.Duration

	// NewIdempotencyKey generates the Idempotency-Key header of each
	// submission. Defaults to a random UUID.
	NewIdempotencyKey func() string
}

// New creates a client with sane defaults.
func New(baseURL string) *Client {
	return &Client{
		BaseURL: baseURL,
		Timeout: 30 * time.Second,
	}
}

// APIError wraps non-2xx responses.
type APIError struct {
	StatusCode int
	Message    string
	Body       string
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("api error: status=%d: %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("api error: status=%d body=%s", e.StatusCode, e.Body)
}

// IsNotFound reports whether err is a 404 API error.
func IsNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound
}

// SubmitResult is the response to a run submission.
type SubmitResult struct {
	RunID        string `json:"run_id"`
	DashboardURL string `json:"dashboard_url"`
	Outcome      string `json:"outcome"`

	// IdempotencyKey is the key sent with the request.
	IdempotencyKey string `json:"-"`
	// Replayed is true when the server recognized a pure replay (HTTP 200).
	Replayed bool `json:"-"`
}

// CI is the CI provenance of a run.
type CI struct {
	Provider string `json:"provider,omitempty"`
	Workflow string `json:"workflow,omitempty"`
	RunURL   string `json:"run_url,omitempty"`
}

// Coverage carries the coverage ratios of a run.
type Coverage struct {
	Requirement *float64 `json:"requirement,omitempty"`
	Temporal    *float64 `json:"temporal,omitempty"`
	Interface   *float64 `json:"interface,omitempty"`
	Risk        *float64 `json:"risk,omitempty"`
}

// Verdict carries the derived test status and coverage gate of a run.
type Verdict struct {
	TestsPassed          bool    `json:"tests_passed"`
	TestsSource          string  `json:"tests_source"`
	GateOK               bool    `json:"gate_ok"`
	RequirementThreshold float64 `json:"requirement_threshold"`
	TemporalThreshold    float64 `json:"temporal_threshold"`
}

// RunMeta is the metadata of a stored run.
type RunMeta struct {
	RunID     string   `json:"run_id"`
	Project   string   `json:"project"`
	Commit    string   `json:"commit"`
	Branch    string   `json:"branch"`
	CreatedAt string   `json:"created_at"`
	CI        *CI      `json:"ci,omitempty"`
	PassRate  *float64 `json:"pass_rate,omitempty"`
	Passed    *int     `json:"passed,omitempty"`
	Total     *int     `json:"total,omitempty"`
	Status    *string  `json:"status,omitempty"`
}

// RunItem is one row of a run listing.
type RunItem struct {
	RunMeta
	Coverage       Coverage `json:"coverage"`
	DecisionsCount int      `json:"decisions_count"`
	Verdict        Verdict  `json:"verdict"`
}

// RunPage is one page of a run listing.
type RunPage struct {
	Items    []RunItem `json:"items"`
	Page     int       `json:"page"`
	PageSize int       `json:"pageSize"`
	Total    int       `json:"total"`
}

// ManifestSummary reports the known fields of a run manifest.
type ManifestSummary struct {
	Schema    string `json:"schema"`
	Events    int    `json:"events"`
	Artifacts int    `json:"artifacts"`
	Evaluator string `json:"evaluator,omitempty"`
	Plugin    string `json:"plugin,omitempty"`
}

// RunDetail is a single stored run.
type RunDetail struct {
	Run             RunMeta         `json:"run"`
	Manifest        json.RawMessage `json:"manifest"`
	Coverage        Coverage        `json:"coverage"`
	DecisionsCount  int             `json:"decisions_count"`
	Verdict         Verdict         `json:"verdict"`
	ManifestSummary ManifestSummary `json:"manifest_summary"`
}

// Decision is one oracle decision of a run.
type Decision struct {
	Oracle    string   `json:"oracle"`
	Result    string   `json:"result"`
	Satisfies []string `json:"satisfies"`
	Evidence  []string `json:"evidence"`
	Message   *string  `json:"message"`
}

// ModuleCoverage is one (module, interface) coverage rollup row.
type ModuleCoverage struct {
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

// RequirementSpec is one requirement catalog entry.
type RequirementSpec struct {
	ID         string   `json:"id" yaml:"id"`
	Module     string   `json:"module" yaml:"module"`
	Interface  string   `json:"interface" yaml:"interface"`
	RiskWeight *float64 `json:"risk_weight,omitempty" yaml:"risk_weight,omitempty"`
}

// ListOptions filters and pages a run listing. Zero values are omitted.
type ListOptions struct {
	Project  string
	Branch   string
	From     string
	To       string
	Page     int
	PageSize int
}

func (o ListOptions) query() url.Values {
	q := url.Values{}
	set := func(k, v string) {
		if v != "" {
			q.Set(k, v)
		}
	}
	set("project", o.Project)
	set("branch", o.Branch)
	set("from", o.From)
	set("to", o.To)
	if o.Page > 0 {
		q.Set("page", strconv.Itoa(o.Page))
	}
	if o.PageSize > 0 {
		q.Set("pageSize", strconv.Itoa(o.PageSize))
	}
	return q
}

// SubmitRun posts a run submission. payload is marshaled as JSON unless it
// is already a json.RawMessage.
func (c *Client) SubmitRun(ctx context.Context, payload any) (SubmitResult, error) {
	key := c.idempotencyKey()

	var resp SubmitResult
	status, err := c.do(ctx, http.MethodPost, "api/v1/runs", payload, &resp, "Idempotency-Key", key)
	if err != nil {
		return SubmitResult{}, err
	}
	resp.IdempotencyKey = key
	resp.Replayed = status == http.StatusOK
	return resp, nil
}

// ListRuns returns one page of runs.
func (c *Client) ListRuns(ctx context.Context, opts ListOptions) (RunPage, error) {
	endpoint := "api/v1/runs"
	if q := opts.query().Encode(); q != "" {
		endpoint += "?" + q
	}
	var resp RunPage
	_, err := c.do(ctx, http.MethodGet, endpoint, nil, &resp)
	return resp, err
}

// GetRun fetches a run by run_id.
func (c *Client) GetRun(ctx context.Context, runID string) (RunDetail, error) {
	var resp RunDetail
	_, err := c.do(ctx, http.MethodGet, "api/v1/runs/"+url.PathEscape(runID), nil, &resp)
	return resp, err
}

// ListDecisions returns the decisions of a run.
func (c *Client) ListDecisions(ctx context.Context, runID string) ([]Decision, error) {
	var resp []Decision
	_, err := c.do(ctx, http.MethodGet, "api/v1/runs/"+url.PathEscape(runID)+"/decisions", nil, &resp)
	return resp, err
}

// ModuleCoverage returns the module coverage rollup of a run.
func (c *Client) ModuleCoverage(ctx context.Context, runID string) ([]ModuleCoverage, error) {
	var resp []ModuleCoverage
	_, err := c.do(ctx, http.MethodGet, "api/v1/runs/"+url.PathEscape(runID)+"/modules", nil, &resp)
	return resp, err
}

// ImportRequirements upserts the requirement catalog of a project and
// returns the number of entries imported.
func (c *Client) ImportRequirements(ctx context.Context, project string, specs []RequirementSpec) (int, error) {
	var resp struct {
		Imported int `json:"imported"`
	}
	endpoint := "api/v1/requirements?project=" + url.QueryEscape(project)
	_, err := c.do(ctx, http.MethodPut, endpoint, specs, &resp)
	return resp.Imported, err
}

// ListRequirements returns the requirement catalog of a project.
func (c *Client) ListRequirements(ctx context.Context, project string) ([]RequirementSpec, error) {
	var resp []RequirementSpec
	endpoint := "api/v1/requirements?project=" + url.QueryEscape(project)
	_, err := c.do(ctx, http.MethodGet, endpoint, nil, &resp)
	return resp, err
}

// Health checks that the server is up.
func (c *Client) Health(ctx context.Context) error {
	_, err := c.do(ctx, http.MethodGet, "api/v1/health", nil, nil)
	return err
}

func (c *Client) idempotencyKey() string {
	if c.NewIdempotencyKey != nil {
		return c.NewIdempotencyKey()
	}
	return uuid.NewString()
}

func (c *Client) do(ctx context.Context, method, endpoint string, body any, out any, headers ...string) (int, error) {
	if c.HTTPClient == nil {
		c.HTTPClient = &http.Client{Timeout: c.Timeout}
	}
	target := c.base() + "/" + strings.TrimLeft(endpoint, "/")

	var buf bytes.Buffer
	switch b := body.(type) {
	case nil:
	case json.RawMessage:
		buf.Write(b)
	default:
		if err := json.NewEncoder(&buf).Encode(b); err != nil {
			return 0, err
		}
	}

	req, err := http.NewRequestWithContext(ctx, method, target, &buf)
	if err != nil {
		return 0, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if c.BearerToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.BearerToken)
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		b, _ := io.ReadAll(resp.Body)
		apiErr := &APIError{StatusCode: resp.StatusCode, Body: string(b)}
		var e struct {
			Error string `json:"error"`
		}
		if json.Unmarshal(b, &e) == nil {
			apiErr.Message = e.Error
		}
		return resp.StatusCode, apiErr
	}
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return resp.StatusCode, fmt.Errorf("decode %s %s response: %w", method, endpoint, err)
		}
	}
	return resp.StatusCode, nil
}

func (c *Client) base() string {
	return strings.TrimRight(c.BaseURL, "/")
}
