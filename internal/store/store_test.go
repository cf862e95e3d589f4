// ABOUTME: Contract tests run against every DefinitionStore implementation
// ABOUTME: Covers upsert, lookup, ordering, deletion and validation on save

package store

import (
	"context"
	"errors"
	"testing"

	"github.com/2389/coven-wizard/internal/workflow"
)

func testDefinition(id, title string) *workflow.Definition {
	return &workflow.Definition{
		ID:    id,
		Title: title,
		Steps: []workflow.Step{
			{ID: "contact", Title: "Contact", Fields: []workflow.Field{
				{ID: "email", Type: workflow.FieldText, Label: "Email", Required: true},
				{ID: "plan", Type: workflow.FieldSelect, Label: "Plan", Options: []string{"free", "pro"}},
			}},
		},
	}
}

// runStoreContract exercises the DefinitionStore behaviour shared by all implementations.
func runStoreContract(t *testing.T, newStore func(t *testing.T) DefinitionStore) {
	t.Run("save and get", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		def := testDefinition("onboarding", "Onboarding")
		if err := s.SaveDefinition(ctx, def); err != nil {
			t.Fatalf("SaveDefinition failed: %v", err)
		}

		got, err := s.GetDefinition(ctx, "onboarding")
		if err != nil {
			t.Fatalf("GetDefinition failed: %v", err)
		}
		if got.Title != "Onboarding" {
			t.Errorf("Title mismatch: got %q, want %q", got.Title, "Onboarding")
		}
		if len(got.Steps) != 1 || len(got.Steps[0].Fields) != 2 {
			t.Fatalf("steps not round-tripped: %+v", got.Steps)
		}
		if got.Steps[0].Fields[1].Options[1] != "pro" {
			t.Errorf("options not round-tripped: %+v", got.Steps[0].Fields[1])
		}
	})

	t.Run("save replaces", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		if err := s.SaveDefinition(ctx, testDefinition("w", "First")); err != nil {
			t.Fatalf("SaveDefinition failed: %v", err)
		}
		if err := s.SaveDefinition(ctx, testDefinition("w", "Second")); err != nil {
			t.Fatalf("SaveDefinition failed: %v", err)
		}

		got, err := s.GetDefinition(ctx, "w")
		if err != nil {
			t.Fatalf("GetDefinition failed: %v", err)
		}
		if got.Title != "Second" {
			t.Errorf("Title mismatch: got %q, want %q", got.Title, "Second")
		}

		list, err := s.ListDefinitions(ctx)
		if err != nil {
			t.Fatalf("ListDefinitions failed: %v", err)
		}
		if len(list) != 1 {
			t.Errorf("expected 1 definition, got %d", len(list))
		}
	})

	t.Run("get missing", func(t *testing.T) {
		s := newStore(t)
		_, err := s.GetDefinition(context.Background(), "nope")
		if !errors.Is(err, ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("list ordered by title", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		for _, d := range []*workflow.Definition{
			testDefinition("c", "Zebra"),
			testDefinition("b", "Apple"),
			testDefinition("a", "Apple"),
		} {
			if err := s.SaveDefinition(ctx, d); err != nil {
				t.Fatalf("SaveDefinition failed: %v", err)
			}
		}

		list, err := s.ListDefinitions(ctx)
		if err != nil {
			t.Fatalf("ListDefinitions failed: %v", err)
		}
		var ids []string
		for _, sum := range list {
			ids = append(ids, sum.ID)
		}
		want := []string{"a", "b", "c"}
		if len(ids) != len(want) {
			t.Fatalf("got ids %v, want %v", ids, want)
		}
		for i := range want {
			if ids[i] != want[i] {
				t.Errorf("ids[%d] = %q, want %q", i, ids[i], want[i])
			}
		}
		if list[0].StepCount != 1 {
			t.Errorf("StepCount = %d, want 1", list[0].StepCount)
		}
		if list[0].UpdatedAt.IsZero() {
			t.Error("UpdatedAt not set")
		}
	})

	t.Run("list empty", func(t *testing.T) {
		s := newStore(t)
		list, err := s.ListDefinitions(context.Background())
		if err != nil {
			t.Fatalf("ListDefinitions failed: %v", err)
		}
		if len(list) != 0 {
			t.Errorf("expected empty list, got %d", len(list))
		}
	})

	t.Run("delete", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		if err := s.SaveDefinition(ctx, testDefinition("gone", "Gone")); err != nil {
			t.Fatalf("SaveDefinition failed: %v", err)
		}
		if err := s.DeleteDefinition(ctx, "gone"); err != nil {
			t.Fatalf("DeleteDefinition failed: %v", err)
		}
		if _, err := s.GetDefinition(ctx, "gone"); !errors.Is(err, ErrNotFound) {
			t.Errorf("expected ErrNotFound after delete, got %v", err)
		}
		if err := s.DeleteDefinition(ctx, "gone"); !errors.Is(err, ErrNotFound) {
			t.Errorf("expected ErrNotFound on second delete, got %v", err)
		}
	})

	t.Run("save rejects invalid", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		err := s.SaveDefinition(ctx, &workflow.Definition{ID: "empty"})
		if !errors.Is(err, workflow.ErrInvalidDefinition) {
			t.Errorf("expected ErrInvalidDefinition, got %v", err)
		}
		if err := s.SaveDefinition(ctx, nil); !errors.Is(err, workflow.ErrInvalidDefinition) {
			t.Errorf("expected ErrInvalidDefinition for nil, got %v", err)
		}
		if _, err := s.GetDefinition(ctx, "empty"); !errors.Is(err, ErrNotFound) {
			t.Errorf("invalid definition was stored: %v", err)
		}
	})
}

func TestMockStore(t *testing.T) {
	runStoreContract(t, func(t *testing.T) DefinitionStore {
		return NewMockStore()
	})
}

func TestSQLiteStore(t *testing.T) {
	runStoreContract(t, func(t *testing.T) DefinitionStore {
		s := newTestStore(t)
		t.Cleanup(func() { s.Close() })
		return s
	})
}

func TestMockStore_ReturnsCopies(t *testing.T) {
	s := NewMockStore()
	ctx := context.Background()

	def := testDefinition("w", "Original")
	if err := s.SaveDefinition(ctx, def); err != nil {
		t.Fatalf("SaveDefinition failed: %v", err)
	}
	def.Title = "mutated after save"

	got, _ := s.GetDefinition(ctx, "w")
	got.Steps[0].Title = "mutated after get"

	again, _ := s.GetDefinition(ctx, "w")
	if again.Title != "Original" || again.Steps[0].Title != "Contact" {
		t.Errorf("store shares memory with callers: %+v", again)
	}
}
