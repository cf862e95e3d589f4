// Package store persists workflow definitions using SQLite.
//
// # Architecture
//
// DefinitionStore is the backing store of the step definition supplier. It
// holds the workflows a user can start; it never holds engine state, which
// lives only as long as the chat view that owns it.
//
//   - SQLiteStore: modernc.org/sqlite, no cgo
//   - MockStore: in-memory, for tests
//
// # SQLite Configuration
//
// The store uses SQLite with WAL mode for concurrent reads:
//
//	PRAGMA journal_mode=WAL;
//
// Definitions are stored as JSON in a single table keyed by workflow id.
// Saving an existing id replaces it.
//
// # Error Handling
//
//   - ErrNotFound: the workflow id is unknown
//   - workflow.ErrInvalidDefinition: the definition failed validation on save
//
// All methods accept context.Context for cancellation support.
//
// # Testing
//
// Use NewMockStore() for unit tests. Use NewSQLiteStore(":memory:") for
// integration tests with real SQLite.
package store
