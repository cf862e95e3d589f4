// ABOUTME: DefinitionStore interface for workflow definition persistence
// ABOUTME: Shared sentinel errors and the definition summary type

package store

import (
	"context"
	"errors"
	"time"

	"github.com/2389/coven-wizard/internal/workflow"
)

// ErrNotFound is returned when a requested workflow does not exist
var ErrNotFound = errors.New("not found")

// Summary describes a stored workflow without its steps.
type Summary struct {
	ID          string
	Title       string
	Description string
	StepCount   int
	UpdatedAt   time.Time
}

// DefinitionStore holds the workflow definitions users can start.
type DefinitionStore interface {
	// SaveDefinition validates and upserts a definition.
	SaveDefinition(ctx context.Context, def *workflow.Definition) error
	GetDefinition(ctx context.Context, id string) (*workflow.Definition, error)
	// ListDefinitions returns summaries ordered by title, then id.
	ListDefinitions(ctx context.Context) ([]Summary, error)
	DeleteDefinition(ctx context.Context, id string) error
	Close() error
}

func summarize(def *workflow.Definition, updatedAt time.Time) Summary {
	return Summary{
		ID:          def.ID,
		Title:       def.Title,
		Description: def.Description,
		StepCount:   len(def.Steps),
		UpdatedAt:   updatedAt,
	}
}
