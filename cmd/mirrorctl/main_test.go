package main

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeServer struct {
	mu        sync.Mutex
	submitted []map[string]any
	keys      []string
	imported  []map[string]any
	project   string
}

func (f *fakeServer) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/v1/runs", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		f.mu.Lock()
		f.submitted = append(f.submitted, body)
		f.keys = append(f.keys, r.Header.Get("Idempotency-Key"))
		f.mu.Unlock()

		runID, _ := body["run"].(map[string]any)["run_id"].(string)
		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(map[string]string{
			"run_id": runID, "dashboard_url": "/runs/" + runID, "outcome": "created",
		})
	})
	mux.HandleFunc("GET /api/v1/runs", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"items":[{"run_id":"4242-1","project":"acme/app","branch":"main","commit":"abc123def456","created_at":"2025-03-14T09:26:53Z","coverage":{"requirement":0.9,"temporal":0.4},"decisions_count":1,"verdict":{"tests_passed":true,"gate_ok":true}}],"page":1,"pageSize":20,"total":1}`))
	})
	mux.HandleFunc("GET /api/v1/runs/{id}/modules", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`[{"module":"auth","interface":"http","total_reqs":2,"covered_reqs":1,"coverage_pct":"50%","risk_weighted_pct":"75%"}]`))
	})
	mux.HandleFunc("GET /api/v1/runs/{id}", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error":"run not found"}`))
	})
	mux.HandleFunc("PUT /api/v1/requirements", func(w http.ResponseWriter, r *http.Request) {
		var specs []map[string]any
		_ = json.NewDecoder(r.Body).Decode(&specs)
		f.mu.Lock()
		f.imported = specs
		f.project = r.URL.Query().Get("project")
		f.mu.Unlock()
		_ = json.NewEncoder(w).Encode(map[string]any{"project": f.project, "imported": len(specs)})
	})
	return mux
}

func setup(t *testing.T) (*fakeServer, string) {
	t.Helper()
	f := &fakeServer{}
	srv := httptest.NewServer(f.handler())
	t.Cleanup(srv.Close)
	return f, srv.URL
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(append(args, "--no-color"))
	err := root.Execute()
	return out.String(), err
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestSubmit_JSONAndYAML(t *testing.T) {
	f, url := setup(t)
	dir := t.TempDir()
	jsonFile := writeFile(t, dir, "a.json", `{"run":{"run_id":"R1","project":"acme/app"}}`)
	yamlFile := writeFile(t, dir, "b.yaml", "run:\n  run_id: R2\n  project: acme/app\n")

	out, err := run(t, "submit", jsonFile, yamlFile, "--server", url, "--parallel", "2", "--json")
	require.NoError(t, err)

	var results []map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &results))
	require.Len(t, results, 2)
	assert.Equal(t, "R1", results[0]["run_id"])
	assert.Equal(t, "R2", results[1]["run_id"])
	assert.Equal(t, "created", results[1]["outcome"])

	require.Len(t, f.keys, 2)
	assert.NotEqual(t, f.keys[0], f.keys[1])
	assert.Len(t, f.keys[0], 36)
}

func TestSubmit_Errors(t *testing.T) {
	_, url := setup(t)
	dir := t.TempDir()
	good := writeFile(t, dir, "a.json", `{"run":{"run_id":"R1","project":"acme/app"}}`)

	_, err := run(t, "submit", good, "--server", url, "--parallel", "0")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--parallel")

	_, err = run(t, "submit", filepath.Join(dir, "missing.json"), "--server", url)
	require.Error(t, err)

	_, err = run(t, "submit", "--server", url)
	require.Error(t, err)
}

func TestRunsList_Table(t *testing.T) {
	_, url := setup(t)

	out, err := run(t, "runs", "list", "--server", url, "--project", "acme/app")
	require.NoError(t, err)
	assert.Contains(t, out, "4242-1")
	assert.Contains(t, out, "abc123d")
	assert.NotContains(t, out, "abc123def456")
	assert.Contains(t, out, "90%")
	assert.Contains(t, out, "✓")
}

func TestRunsModules_Table(t *testing.T) {
	_, url := setup(t)

	out, err := run(t, "runs", "modules", "R1", "--server", url)
	require.NoError(t, err)
	assert.Contains(t, out, "auth")
	assert.Contains(t, out, "1/2")
	assert.Contains(t, out, "75%")
}

func TestRunsShow_NotFound(t *testing.T) {
	_, url := setup(t)

	_, err := run(t, "runs", "show", "missing", "--server", url)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "run not found")
}

func TestRequirementsImport(t *testing.T) {
	f, url := setup(t)
	file := writeFile(t, t.TempDir(), "reqs.yaml",
		"- id: REQ-1\n  module: auth\n  interface: http\n  risk_weight: 3\n- id: REQ-2\n  module: auth\n  interface: cli\n")

	out, err := run(t, "requirements", "import", file, "--project", "acme/app", "--server", url)
	require.NoError(t, err)
	assert.Contains(t, out, "imported 2 requirements into acme/app")

	assert.Equal(t, "acme/app", f.project)
	require.Len(t, f.imported, 2)
	assert.Equal(t, "REQ-1", f.imported[0]["id"])
	assert.InDelta(t, 3.0, f.imported[0]["risk_weight"], 1e-9)
	assert.NotContains(t, f.imported[1], "risk_weight")
}

func TestRequirementsImport_Errors(t *testing.T) {
	_, url := setup(t)
	dir := t.TempDir()
	file := writeFile(t, dir, "reqs.yaml", "- id: REQ-1\n")

	_, err := run(t, "requirements", "import", file, "--server", url)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--project required")

	noID := writeFile(t, dir, "noid.yaml", "- module: auth\n")
	_, err = run(t, "requirements", "import", noID, "--project", "acme/app", "--server", url)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "entry 0 has no id")
}

func TestPayloadBuild_Submit(t *testing.T) {
	f, url := setup(t)
	dir := t.TempDir()
	writeFile(t, dir, "coverage.json", `{"requirement":0.9,"temporal":0.4}`)
	writeFile(t, dir, "decisions.json", `[{"oracle":"o1","result":"pass"}]`)

	t.Setenv("CI_PROVIDER", "local")
	t.Setenv("RUN_ID", "local-run")
	t.Setenv("PROJECT", "acme/app")

	outFile := filepath.Join(dir, "payload.json")
	out, err := run(t, "payload", "build", "--dir", dir, "--out", outFile, "--submit", "--server", url)
	require.NoError(t, err)
	assert.Contains(t, out, "run local-run (created)")

	require.Len(t, f.submitted, 1)
	assert.Equal(t, "acme/app", f.submitted[0]["run"].(map[string]any)["project"])

	written, err := os.ReadFile(outFile)
	require.NoError(t, err)
	var doc map[string]any
	require.NoError(t, json.Unmarshal(written, &doc))
	assert.Equal(t, "local-run", doc["run"].(map[string]any)["run_id"])
}

func TestPayloadBuild_Stdout(t *testing.T) {
	t.Setenv("CI_PROVIDER", "local")
	t.Setenv("RUN_ID", "local-run")

	out, err := run(t, "payload", "build", "--dir", t.TempDir())
	require.NoError(t, err)

	var doc map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &doc))
	assert.Equal(t, "local-run", doc["run"].(map[string]any)["run_id"])
	assert.Equal(t, "mirror.run-manifest.v1", doc["manifest"].(map[string]any)["schema"])
}

func TestMintToken(t *testing.T) {
	now := time.Now().Truncate(time.Second)

	signed, err := mintToken("s3cret", "ci-bot", time.Hour, now)
	require.NoError(t, err)

	claims := &jwt.RegisteredClaims{}
	_, err = jwt.ParseWithClaims(signed, claims, func(*jwt.Token) (any, error) { return []byte("s3cret"), nil })
	require.NoError(t, err)
	assert.Equal(t, "ci-bot", claims.Subject)
	assert.Equal(t, now.Add(time.Hour).Unix(), claims.ExpiresAt.Unix())

	signed, err = mintToken("s3cret", "ci-bot", 0, now)
	require.NoError(t, err)
	claims = &jwt.RegisteredClaims{}
	_, err = jwt.ParseWithClaims(signed, claims, func(*jwt.Token) (any, error) { return []byte("s3cret"), nil })
	require.NoError(t, err)
	assert.Nil(t, claims.ExpiresAt)

	for _, tc := range []struct{ secret, subject string }{{"", "ci-bot"}, {"s3cret", ""}} {
		_, err := mintToken(tc.secret, tc.subject, time.Hour, now)
		assert.Error(t, err)
	}
	_, err = mintToken("s3cret", "ci-bot", -time.Minute, now)
	assert.Error(t, err)
}

func TestTokenCommand_ReadsSecretFromEnv(t *testing.T) {
	t.Setenv("MIRRORCTL_JWT_SECRET", "env-secret")

	out, err := run(t, "token", "--subject", "deployer")
	require.NoError(t, err)

	claims := &jwt.RegisteredClaims{}
	_, err = jwt.ParseWithClaims(string(bytes.TrimSpace([]byte(out))), claims,
		func(*jwt.Token) (any, error) { return []byte("env-secret"), nil })
	require.NoError(t, err)
	assert.Equal(t, "deployer", claims.Subject)
}
