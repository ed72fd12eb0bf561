package sqlite

import (
	"context"
	"fmt"
	"time"

	"github.com/ericfisherdev/mirror/internal/domain/model"
	"github.com/ericfisherdev/mirror/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.ProjectStore = (*ProjectRepo)(nil)

// ProjectRepo is the SQLite implementation of the ProjectStore port interface.
type ProjectRepo struct {
	db *DB
}

// NewProjectRepo creates a new ProjectRepo backed by the given DB.
func NewProjectRepo(db *DB) *ProjectRepo {
	return &ProjectRepo{db: db}
}

// Ensure inserts the project or returns the existing row with the same slug.
// The no-op DO UPDATE makes RETURNING yield the existing row on conflict.
func (r *ProjectRepo) Ensure(ctx context.Context, slug string) (model.Project, error) {
	const query = `
		INSERT INTO projects (slug, created_at) VALUES (?, ?)
		ON CONFLICT(slug) DO UPDATE SET slug = excluded.slug
		RETURNING id, slug, created_at
	`

	var (
		p         model.Project
		createdAt string
	)
	err := r.db.Writer.QueryRowContext(ctx, query, slug, formatTime(time.Now())).Scan(&p.ID, &p.Slug, &createdAt)
	if err != nil {
		return model.Project{}, fmt.Errorf("ensure project %q: %w", slug, err)
	}

	p.CreatedAt, err = parseTime(createdAt)
	if err != nil {
		return model.Project{}, fmt.Errorf("parse project created_at %q: %w", createdAt, err)
	}
	return p, nil
}
