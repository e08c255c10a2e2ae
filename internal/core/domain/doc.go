// Package domain defines the core entities of the indexing pipeline.
//
// This package is part of the hexagonal architecture's innermost layer.
// It has NO external dependencies and defines the fundamental types:
//
//   - Document, Unit: A loaded source document and its pages
//   - Passage: A bounded chunk of unit text produced by the chunker
//   - IndexEntry: The durable record of a passage and its embedding
//   - IngestReport, IngestState: The outcome and states of an ingestion run
//   - IngestSettings: The explicit configuration of a run
//
// # Architectural Position
//
// Domain is at the centre of the hexagon. It may only import
// the Go standard library. All other packages depend on domain,
// never the reverse.
//
// # Import Rules
//
//   - Can Import: Standard library only
//   - Cannot Import: Any internal/ package, any external dependency
package domain
