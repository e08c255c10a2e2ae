// Package file provides the TOML-backed configuration store.
//
// The file lives at ~/.docindex/config.toml unless another directory is
// given. Keys are addressed with dot notation ("ingest.chunk_size") and
// written back as nested tables:
//
//	[ingest]
//	chunk_size = 1000
//
//	[embedding]
//	provider = "gemini"
package file
