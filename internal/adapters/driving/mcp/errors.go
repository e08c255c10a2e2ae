// Package mcp provides an MCP (Model Context Protocol) server adapter for docindex.
// It lets AI assistants ingest documents and inspect the local vector index.
package mcp

import "errors"

// ErrMissingIndexService is returned when the index service is not provided.
var ErrMissingIndexService = errors.New("mcp: index service is required")
