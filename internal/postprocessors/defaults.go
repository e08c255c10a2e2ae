package postprocessors

import (
	"github.com/custodia-labs/docindex/internal/core/domain"
	"github.com/custodia-labs/docindex/internal/core/ports/driven"
	"github.com/custodia-labs/docindex/internal/postprocessors/chunker"
)

// RegisterDefaults registers all built-in processors with the registry.
// Call this during application initialisation to enable standard processors.
func RegisterDefaults(r *Registry) {
	r.Register("chunker", buildChunker)
}

// NewDefaultPipeline builds the standard pipeline for the given settings.
func NewDefaultPipeline(settings domain.IngestSettings) (*Pipeline, error) {
	r := NewRegistry()
	RegisterDefaults(r)

	proc, err := r.Build("chunker", ChunkerConfig(settings))
	if err != nil {
		return nil, err
	}
	return NewPipeline(proc), nil
}

// ChunkerConfig converts ingestion settings into chunker config.
func ChunkerConfig(settings domain.IngestSettings) map[string]any {
	return map[string]any{
		"chunk_size": settings.ChunkSize,
		"overlap":    settings.ChunkOverlap,
		"separators": settings.Separators,
	}
}

// buildChunker creates a chunker processor from generic config.
// Supported config keys:
//   - chunk_size (int): Maximum characters per passage (default: 1000)
//   - overlap (int): Overlapping characters between passages (default: 100)
//   - separators ([]string): Split boundaries, coarsest first
func buildChunker(cfg map[string]any) (driven.PostProcessor, error) {
	var opts []chunker.Option

	if size, ok := getIntFromConfig(cfg, "chunk_size"); ok {
		opts = append(opts, chunker.WithChunkSize(size))
	}
	if overlap, ok := getIntFromConfig(cfg, "overlap"); ok {
		opts = append(opts, chunker.WithOverlap(overlap))
	}
	if seps := getStringsFromConfig(cfg, "separators"); len(seps) > 0 {
		opts = append(opts, chunker.WithSeparators(seps))
	}

	return chunker.New(opts...)
}

// getIntFromConfig safely extracts an int from generic config map.
// Handles int, int64, and float64 types that may come from TOML/JSON parsing.
func getIntFromConfig(cfg map[string]any, key string) (int, bool) {
	val, ok := cfg[key]
	if !ok {
		return 0, false
	}

	switch v := val.(type) {
	case int:
		return v, true
	case int64:
		return int(v), true
	case float64:
		return int(v), true
	default:
		return 0, false
	}
}

// getStringsFromConfig extracts a string slice, accepting []string or
// the []any produced by TOML/JSON decoding.
func getStringsFromConfig(cfg map[string]any, key string) []string {
	switch v := cfg[key].(type) {
	case []string:
		return v
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			s, ok := item.(string)
			if !ok {
				return nil
			}
			out = append(out, s)
		}
		return out
	default:
		return nil
	}
}
