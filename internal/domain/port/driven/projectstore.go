package driven

import (
	"context"

	"github.com/ericfisherdev/mirror/internal/domain/model"
)

// ProjectStore defines the driven port for project persistence.
type ProjectStore interface {
	// Ensure inserts the project if its slug is new and returns the stored
	// project either way. It never fails on a slug conflict.
	Ensure(ctx context.Context, slug string) (model.Project, error)
}
