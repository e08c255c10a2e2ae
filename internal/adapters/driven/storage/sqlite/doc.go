// Package sqlite provides the SQLite-backed vector index and run history.
//
// This adapter uses modernc.org/sqlite, a pure Go SQLite implementation that requires
// no CGO, enabling easy cross-compilation. It implements two store interfaces
// through a single database connection:
//
//   - VectorIndex: Passage and embedding persistence with cosine search
//   - RunStore: Ingestion run history
//
// # Schema
//
// The database schema is managed through versioned migrations stored in the
// migrations/ directory. Each migration is a pair of .up.sql and .down.sql files.
//
// # Data Location
//
// The database is stored at <store dir>/index.db.
//
// # Durability
//
// The database runs in WAL mode with synchronous=FULL, so every committed
// insert survives a crash. Writes are serialised by the store.
package sqlite
