// Package payload assembles run submissions from a local report directory
// and CI environment variables, and loads submission files from disk.
package payload

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/ericfisherdev/mirror/internal/domain/model"
)

// DefaultDir is the report directory written by the test plugin.
const DefaultDir = ".mirror/report"

const (
	manifestFile  = "run-manifest.json"
	coverageFile  = "coverage.json"
	decisionsFile = "decisions.json"
	artifactsDir  = "artifacts"

	providerGitHubActions = "github_actions"
)

// Payload is a run submission ready to be posted to the ingestion API.
type Payload struct {
	Run       Run              `json:"run"`
	Manifest  map[string]any   `json:"manifest"`
	Coverage  map[string]any   `json:"coverage"`
	Decisions []map[string]any `json:"decisions"`
}

// Run is the run metadata block of a payload.
type Run struct {
	RunID     string `json:"run_id"`
	Project   string `json:"project"`
	Commit    string `json:"commit"`
	Branch    string `json:"branch"`
	CreatedAt string `json:"created_at"`
	CI        CI     `json:"ci"`
}

// CI is the CI provenance block of a run.
type CI struct {
	Provider string `json:"provider"`
	Workflow string `json:"workflow"`
	RunURL   string `json:"run_url,omitempty"`
}

// Artifact is a hashed file under the report's artifacts directory.
type Artifact struct {
	Path   string `json:"path"`
	SHA256 string `json:"sha256"`
}

// Builder assembles payloads. The zero value reads the process environment
// and the wall clock.
type Builder struct {
	Getenv func(string) string
	Now    func() time.Time
}

// Build reads the report directory and CI metadata into a payload. Missing
// report files fall back to an empty manifest, zero coverage and no
// decisions.
func (b Builder) Build(dir string) (*Payload, error) {
	manifest, err := loadManifest(dir)
	if err != nil {
		return nil, err
	}
	coverage, err := loadCoverage(dir)
	if err != nil {
		return nil, err
	}
	decisions, err := loadDecisions(dir)
	if err != nil {
		return nil, err
	}

	artifacts, err := HashArtifacts(dir)
	if err != nil {
		return nil, err
	}
	if len(artifacts) > 0 {
		manifest["artifacts"] = artifacts
	}

	if len(decisions) > 0 {
		counts, ok := manifest["counts"].(map[string]any)
		if !ok {
			counts = map[string]any{}
			manifest["counts"] = counts
		}
		if eventCount(counts["events"]) == 0 {
			counts["events"] = len(decisions)
		}
	}

	return &Payload{
		Run:       b.RunMetadata(),
		Manifest:  manifest,
		Coverage:  coverage,
		Decisions: decisions,
	}, nil
}

// RunMetadata derives the run block from CI environment variables.
// CI_PROVIDER selects the variable set and defaults to github_actions.
func (b Builder) RunMetadata() Run {
	getenv := b.getenv()
	now := b.now().UTC()

	env := func(key, fallback string) string {
		if v := getenv(key); v != "" {
			return v
		}
		return fallback
	}

	provider := env("CI_PROVIDER", providerGitHubActions)
	if provider == providerGitHubActions {
		runID := env("GITHUB_RUN_ID", "local")
		repo := env("GITHUB_REPOSITORY", "local/project")
		server := strings.TrimRight(env("GITHUB_SERVER_URL", "https://github.com"), "/")
		return Run{
			RunID:     runID + "-" + env("GITHUB_RUN_ATTEMPT", "1"),
			Project:   repo,
			Commit:    env("GITHUB_SHA", "unknown"),
			Branch:    env("GITHUB_REF_NAME", "main"),
			CreatedAt: now.Format(time.RFC3339),
			CI: CI{
				Provider: provider,
				Workflow: env("GITHUB_WORKFLOW", "Tests"),
				RunURL:   fmt.Sprintf("%s/%s/actions/runs/%s", server, repo, runID),
			},
		}
	}

	return Run{
		RunID:     env("RUN_ID", "local-"+now.Format("20060102150405")),
		Project:   env("PROJECT", "local/project"),
		Commit:    env("COMMIT", "HEAD"),
		Branch:    env("BRANCH", "main"),
		CreatedAt: now.Format(time.RFC3339),
		CI: CI{
			Provider: provider,
			Workflow: env("WORKFLOW", "Tests"),
		},
	}
}

func (b Builder) getenv() func(string) string {
	if b.Getenv != nil {
		return b.Getenv
	}
	return os.Getenv
}

func (b Builder) now() time.Time {
	if b.Now != nil {
		return b.Now()
	}
	return time.Now()
}

// HashArtifacts returns the SHA-256 of every regular file under
// dir/artifacts, with paths relative to dir in slash form. A missing
// artifacts directory yields no artifacts.
func HashArtifacts(dir string) ([]Artifact, error) {
	root := filepath.Join(dir, artifactsDir)
	if _, err := os.Stat(root); errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}

	var artifacts []Artifact
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.Type().IsRegular() {
			return nil
		}
		sum, err := hashFile(path)
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return err
		}
		artifacts = append(artifacts, Artifact{Path: filepath.ToSlash(rel), SHA256: sum})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("hash artifacts: %w", err)
	}
	return artifacts, nil
}

func hashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", fmt.Errorf("hash %s: %w", path, err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

func loadManifest(dir string) (map[string]any, error) {
	manifest := map[string]any{}
	found, err := readJSON(filepath.Join(dir, manifestFile), &manifest)
	if err != nil {
		return nil, err
	}
	if !found || manifest == nil {
		return map[string]any{
			"schema":    model.ManifestSchemaV1,
			"counts":    map[string]any{"events": 0},
			"artifacts": []any{},
			"tooling":   map[string]any{},
		}, nil
	}
	return manifest, nil
}

func loadCoverage(dir string) (map[string]any, error) {
	coverage := map[string]any{}
	found, err := readJSON(filepath.Join(dir, coverageFile), &coverage)
	if err != nil {
		return nil, err
	}
	if !found || coverage == nil {
		coverage = map[string]any{}
		for _, key := range model.RatioKeys {
			coverage[key] = 0.0
		}
	}
	return coverage, nil
}

func loadDecisions(dir string) ([]map[string]any, error) {
	var decisions []map[string]any
	if _, err := readJSON(filepath.Join(dir, decisionsFile), &decisions); err != nil {
		return nil, err
	}
	if decisions == nil {
		decisions = []map[string]any{}
	}
	return decisions, nil
}

func readJSON(path string, v any) (bool, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("read %s: %w", path, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return false, fmt.Errorf("parse %s: %w", path, err)
	}
	return true, nil
}

func eventCount(v any) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case int:
		return float64(n)
	default:
		return 0
	}
}
