// ABOUTME: SQLite implementation of DefinitionStore using modernc.org/sqlite
// ABOUTME: Stores workflow definitions as JSON with automatic schema creation

package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/2389/coven-wizard/internal/workflow"
)

// SQLiteStore implements DefinitionStore using SQLite
type SQLiteStore struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewSQLiteStore creates a new SQLite store at the given path.
// The schema is automatically created if it doesn't exist.
// Parent directories are created if needed.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	logger := slog.Default().With("component", "store")

	if path != ":memory:" {
		dir := filepath.Dir(path)
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("creating database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	// Each :memory: connection is its own database.
	if path == ":memory:" {
		db.SetMaxOpenConns(1)
	}

	// Enable WAL mode for better concurrent performance
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling WAL mode: %w", err)
	}

	s := &SQLiteStore{
		db:     db,
		logger: logger,
	}

	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	logger.Info("SQLite store initialized", "path", path)
	return s, nil
}

// createSchema creates the database tables if they don't exist
func (s *SQLiteStore) createSchema() error {
	schema := `
		CREATE TABLE IF NOT EXISTS workflow_definitions (
			id         TEXT PRIMARY KEY,
			title      TEXT NOT NULL,
			body       TEXT NOT NULL,
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_workflow_definitions_title
			ON workflow_definitions(title, id);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	s.logger.Info("closing SQLite store")
	return s.db.Close()
}

// SaveDefinition inserts or replaces a workflow definition.
func (s *SQLiteStore) SaveDefinition(ctx context.Context, def *workflow.Definition) error {
	if def == nil {
		return fmt.Errorf("%w: nil definition", workflow.ErrInvalidDefinition)
	}
	if err := def.Validate(); err != nil {
		return err
	}

	body, err := json.Marshal(def)
	if err != nil {
		return fmt.Errorf("encoding definition: %w", err)
	}

	now := time.Now().UTC().Format(time.RFC3339Nano)
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO workflow_definitions (id, title, body, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			title = excluded.title,
			body = excluded.body,
			updated_at = excluded.updated_at
	`, def.ID, def.Title, string(body), now, now)
	if err != nil {
		return fmt.Errorf("saving definition %s: %w", def.ID, err)
	}

	s.logger.Debug("saved definition", "workflow_id", def.ID, "steps", len(def.Steps))
	return nil
}

// GetDefinition retrieves a workflow definition by id.
func (s *SQLiteStore) GetDefinition(ctx context.Context, id string) (*workflow.Definition, error) {
	var body string
	err := s.db.QueryRowContext(ctx, `
		SELECT body FROM workflow_definitions WHERE id = ?
	`, id).Scan(&body)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying definition %s: %w", id, err)
	}

	var def workflow.Definition
	if err := json.Unmarshal([]byte(body), &def); err != nil {
		return nil, fmt.Errorf("decoding definition %s: %w", id, err)
	}
	return &def, nil
}

// ListDefinitions returns a summary of every stored workflow.
func (s *SQLiteStore) ListDefinitions(ctx context.Context) ([]Summary, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT body, updated_at FROM workflow_definitions ORDER BY title, id
	`)
	if err != nil {
		return nil, fmt.Errorf("listing definitions: %w", err)
	}
	defer rows.Close()

	var out []Summary
	for rows.Next() {
		var body, updatedAt string
		if err := rows.Scan(&body, &updatedAt); err != nil {
			return nil, fmt.Errorf("scanning definition row: %w", err)
		}
		var def workflow.Definition
		if err := json.Unmarshal([]byte(body), &def); err != nil {
			return nil, fmt.Errorf("decoding definition: %w", err)
		}
		ts, _ := time.Parse(time.RFC3339Nano, updatedAt)
		out = append(out, summarize(&def, ts))
	}
	return out, rows.Err()
}

// DeleteDefinition removes a workflow definition.
func (s *SQLiteStore) DeleteDefinition(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, `
		DELETE FROM workflow_definitions WHERE id = ?
	`, id)
	if err != nil {
		return fmt.Errorf("deleting definition %s: %w", id, err)
	}
	n, _ := result.RowsAffected()
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

var _ DefinitionStore = (*SQLiteStore)(nil)
