package sqlite

import (
	"context"
	"fmt"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/ericfisherdev/mirror/internal/domain/model"
)

// setupTestDB opens a shared-cache in-memory database named after the test,
// so both pools see the same data and parallel tests stay isolated. WAL does
// not apply to in-memory databases.
func setupTestDB(t *testing.T) *DB {
	t.Helper()
	ctx := context.Background()

	source := fmt.Sprintf(
		"file:%s?mode=memory&cache=shared&_pragma=busy_timeout(5000)&_pragma=foreign_keys(ON)",
		url.PathEscape(t.Name()),
	)

	writer, err := openPool(ctx, source, "writer", 1)
	require.NoError(t, err)
	reader, err := openPool(ctx, source, "reader", maxReaders)
	if err != nil {
		_ = writer.Close()
		t.Fatal(err)
	}

	db := &DB{Writer: writer, Reader: reader, path: source}
	t.Cleanup(func() { _ = db.Close() })

	_, err = RunMigrations(db.Writer)
	require.NoError(t, err)
	return db
}

func ptr[T any](v T) *T { return &v }

// makeRun builds a run with coverage and a fixed creation time.
func makeRun(runID string, createdAt time.Time) model.Run {
	return model.Run{
		RunMeta: model.RunMeta{
			RunID:     runID,
			Project:   "acme/app",
			Commit:    "abc123",
			Branch:    "main",
			CreatedAt: createdAt,
			CI:        model.CI{Provider: "github_actions", Workflow: "Tests"},
		},
		Manifest: []byte(`{"schema":"mirror.run-manifest.v1","counts":{"events":10}}`),
		Coverage: model.Coverage{
			Requirement: ptr(0.9),
			Temporal:    ptr(0.4),
			Interface:   ptr(0.8),
			Risk:        ptr(0.85),
		},
		DecisionsCount: 1,
		PayloadDigest:  "digest-" + runID,
	}
}

// addTestRun inserts a project and run and returns the stored run.
func addTestRun(t *testing.T, db *DB, run model.Run) model.Run {
	t.Helper()
	ctx := context.Background()

	project, err := NewProjectRepo(db).Ensure(ctx, run.Project)
	if err != nil {
		t.Fatalf("ensure project: %v", err)
	}
	stored, _, err := NewRunRepo(db).Upsert(ctx, project.ID, run)
	if err != nil {
		t.Fatalf("upsert run: %v", err)
	}
	return stored
}
