package client_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ericfisherdev/mirror/internal/client"
)

func newTestClient(t *testing.T, handler http.Handler) *client.Client {
	t.Helper()

	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	c := client.New(server.URL + "/")
	c.HTTPClient = server.Client()
	c.BearerToken = "tok"
	return c
}

func TestSubmitRun(t *testing.T) {
	var (
		gotKey  string
		gotAuth string
		gotBody string
		calls   int
	)

	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/v1/runs", func(w http.ResponseWriter, r *http.Request) {
		calls++
		gotKey = r.Header.Get("Idempotency-Key")
		gotAuth = r.Header.Get("Authorization")
		b, _ := io.ReadAll(r.Body)
		gotBody = string(b)

		status := http.StatusCreated
		outcome := "created"
		if calls > 1 {
			status, outcome = http.StatusOK, "unchanged"
		}
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(map[string]string{
			"run_id": "R1", "dashboard_url": "/runs/R1", "outcome": outcome,
		})
	})

	c := newTestClient(t, mux)
	c.NewIdempotencyKey = func() string { return "fixed-key" }

	payload := json.RawMessage(`{"run":{"run_id":"R1","project":"acme/app"}}`)
	res, err := c.SubmitRun(context.Background(), payload)
	require.NoError(t, err)

	assert.Equal(t, "R1", res.RunID)
	assert.Equal(t, "/runs/R1", res.DashboardURL)
	assert.Equal(t, "fixed-key", res.IdempotencyKey)
	assert.False(t, res.Replayed)
	assert.Equal(t, "fixed-key", gotKey)
	assert.Equal(t, "Bearer tok", gotAuth)
	assert.JSONEq(t, string(payload), gotBody)

	res, err = c.SubmitRun(context.Background(), payload)
	require.NoError(t, err)
	assert.True(t, res.Replayed)
	assert.Equal(t, "unchanged", res.Outcome)
}

func TestSubmitRun_DefaultKeyIsUUID(t *testing.T) {
	var gotKey string
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/v1/runs", func(w http.ResponseWriter, r *http.Request) {
		gotKey = r.Header.Get("Idempotency-Key")
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"run_id":"R1"}`))
	})

	c := newTestClient(t, mux)
	res, err := c.SubmitRun(context.Background(), map[string]any{"run": map[string]string{"run_id": "R1"}})
	require.NoError(t, err)
	assert.Len(t, gotKey, 36)
	assert.Equal(t, gotKey, res.IdempotencyKey)
}

func TestAPIError(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/v1/runs/{id}", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error":"run not found"}`))
	})
	mux.HandleFunc("POST /api/v1/runs", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":"invalid payload: run.run_id is required"}`))
	})

	c := newTestClient(t, mux)

	_, err := c.GetRun(context.Background(), "missing")
	require.Error(t, err)
	assert.True(t, client.IsNotFound(err))
	assert.Contains(t, err.Error(), "run not found")

	_, err = c.SubmitRun(context.Background(), json.RawMessage(`{}`))
	var apiErr *client.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusBadRequest, apiErr.StatusCode)
	assert.Equal(t, "invalid payload: run.run_id is required", apiErr.Message)
	assert.False(t, client.IsNotFound(err))
}

func TestListRuns_EncodesQuery(t *testing.T) {
	var gotQuery string
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/v1/runs", func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.RawQuery
		_, _ = w.Write([]byte(`{"items":[{"run_id":"R1","project":"acme/app","coverage":{"requirement":0.9},"verdict":{"tests_passed":true}}],"page":2,"pageSize":5,"total":6}`))
	})

	c := newTestClient(t, mux)
	page, err := c.ListRuns(context.Background(), client.ListOptions{Project: "acme/app", Branch: "main", Page: 2, PageSize: 5})
	require.NoError(t, err)

	assert.Equal(t, "branch=main&page=2&pageSize=5&project=acme%2Fapp", gotQuery)
	assert.Equal(t, 6, page.Total)
	require.Len(t, page.Items, 1)
	assert.Equal(t, "R1", page.Items[0].RunID)
	assert.InDelta(t, 0.9, *page.Items[0].Coverage.Requirement, 1e-9)
	assert.True(t, page.Items[0].Verdict.TestsPassed)
}

func TestRunSubresources(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/v1/runs/{id}/decisions", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "R1", r.PathValue("id"))
		_, _ = w.Write([]byte(`[{"oracle":"o1","result":"pass","satisfies":[],"evidence":[],"message":null}]`))
	})
	mux.HandleFunc("GET /api/v1/runs/{id}/modules", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`[{"module":"auth","interface":"http","total_reqs":2,"covered_reqs":1,"coverage_pct":"50%"}]`))
	})
	mux.HandleFunc("PUT /api/v1/requirements", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "acme/app", r.URL.Query().Get("project"))
		var specs []client.RequirementSpec
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&specs))
		_ = json.NewEncoder(w).Encode(map[string]any{"project": "acme/app", "imported": len(specs)})
	})
	mux.HandleFunc("GET /api/v1/health", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	c := newTestClient(t, mux)
	ctx := context.Background()

	decisions, err := c.ListDecisions(ctx, "R1")
	require.NoError(t, err)
	require.Len(t, decisions, 1)
	assert.Nil(t, decisions[0].Message)

	rows, err := c.ModuleCoverage(ctx, "R1")
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "50%", rows[0].CoveragePct)

	n, err := c.ImportRequirements(ctx, "acme/app", []client.RequirementSpec{{ID: "REQ-1"}, {ID: "REQ-2"}})
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	require.NoError(t, c.Health(ctx))
}
