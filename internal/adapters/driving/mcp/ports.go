package mcp

import (
	"github.com/custodia-labs/docindex/internal/core/ports/driving"
)

// Ports aggregates all driving port interfaces required by the MCP server.
// This provides a single injection point for dependency injection.
type Ports struct {
	// Index provides read access to the vector index.
	Index driving.IndexService

	// Ingest runs ingestion. Optional; without it the ingest_document
	// tool is not registered.
	Ingest driving.IngestService
}

// Validate ensures all required ports are set.
func (p *Ports) Validate() error {
	if p.Index == nil {
		return ErrMissingIndexService
	}
	return nil
}
