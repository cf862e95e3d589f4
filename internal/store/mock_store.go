// ABOUTME: Mock DefinitionStore implementation for testing
// ABOUTME: Allows tests to run without SQLite

package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/2389/coven-wizard/internal/workflow"
)

type mockEntry struct {
	def       *workflow.Definition
	updatedAt time.Time
}

// MockStore is an in-memory DefinitionStore implementation for testing.
type MockStore struct {
	mu          sync.RWMutex
	definitions map[string]mockEntry // keyed by workflow ID
}

// NewMockStore creates a new MockStore.
func NewMockStore() *MockStore {
	return &MockStore{
		definitions: make(map[string]mockEntry),
	}
}

// SaveDefinition stores a copy of def.
func (m *MockStore) SaveDefinition(ctx context.Context, def *workflow.Definition) error {
	if def == nil {
		return fmt.Errorf("%w: nil definition", workflow.ErrInvalidDefinition)
	}
	if err := def.Validate(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.definitions[def.ID] = mockEntry{def: def.Clone(), updatedAt: time.Now().UTC()}
	return nil
}

// GetDefinition retrieves a copy of a definition by ID.
func (m *MockStore) GetDefinition(ctx context.Context, id string) (*workflow.Definition, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	e, ok := m.definitions[id]
	if !ok {
		return nil, ErrNotFound
	}
	return e.def.Clone(), nil
}

// ListDefinitions returns summaries ordered by title, then id.
func (m *MockStore) ListDefinitions(ctx context.Context) ([]Summary, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]Summary, 0, len(m.definitions))
	for _, e := range m.definitions {
		out = append(out, summarize(e.def, e.updatedAt))
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Title != out[j].Title {
			return out[i].Title < out[j].Title
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

// DeleteDefinition removes a definition.
func (m *MockStore) DeleteDefinition(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.definitions[id]; !ok {
		return ErrNotFound
	}
	delete(m.definitions, id)
	return nil
}

// Close is a no-op.
func (m *MockStore) Close() error { return nil }

var _ DefinitionStore = (*MockStore)(nil)
