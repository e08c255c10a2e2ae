package mcp

import (
	"context"
	"errors"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/custodia-labs/docindex/internal/core/domain"
)

// IngestInput is the input schema for the ingest_document tool.
type IngestInput struct {
	Path string `json:"path" jsonschema:"path of the document to ingest"`
}

// IngestOutput is the output schema for the ingest_document tool.
type IngestOutput struct {
	RunID       string `json:"run_id"`
	SourceID    string `json:"source_id"`
	State       string `json:"state"`
	FailedStage string `json:"failed_stage,omitempty"`
	Error       string `json:"error,omitempty"`
	Units       int    `json:"units"`
	Passages    int    `json:"passages"`
	Oversized   int    `json:"oversized,omitempty"`
	Persisted   int    `json:"persisted"`
	IndexTotal  int    `json:"index_total"`
	DurationMS  int64  `json:"duration_ms"`
}

// IndexInfoInput is the (empty) input schema for the index_info tool.
type IndexInfoInput struct{}

// IndexInfoOutput is the output schema for the index_info tool.
type IndexInfoOutput struct {
	Path       string `json:"path"`
	Count      int    `json:"count"`
	Dimensions int    `json:"dimensions"`
	Model      string `json:"model,omitempty"`
}

// GetPassageInput is the input schema for the get_passage tool.
type GetPassageInput struct {
	ID string `json:"id" jsonschema:"passage id returned by ingestion"`
}

// GetPassageOutput is the output schema for the get_passage tool.
type GetPassageOutput struct {
	ID            string `json:"id"`
	SourceID      string `json:"source_id"`
	Position      int    `json:"position"`
	SequenceIndex int    `json:"sequence_index"`
	Text          string `json:"text"`
	OverlapLen    int    `json:"overlap_len"`
	Oversized     bool   `json:"oversized,omitempty"`
	Dimensions    int    `json:"dimensions"`
	CreatedAt     string `json:"created_at"`
}

// registerTools registers all tool handlers with the MCP server.
func (s *Server) registerTools() {
	if s.ports.Ingest != nil {
		mcp.AddTool(s.server, &mcp.Tool{
			Name:        "ingest_document",
			Description: "Load, chunk, embed and index a document, then verify the stored count",
		}, s.handleIngest)
	}

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "index_info",
		Description: "Describe the vector index: location, entry count, dimension and model",
	}, s.handleIndexInfo)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "get_passage",
		Description: "Fetch an indexed passage by id",
	}, s.handleGetPassage)
}

// handleIngest handles the ingest_document tool invocation.
// A failed run is reported in the output, not as a protocol error.
func (s *Server) handleIngest(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input IngestInput,
) (*mcp.CallToolResult, IngestOutput, error) {
	if input.Path == "" {
		return nil, IngestOutput{}, errors.New("path is required")
	}

	report, err := s.ports.Ingest.Ingest(ctx, input.Path)
	if report == nil {
		return nil, IngestOutput{}, err
	}

	output := IngestOutput{
		RunID:      report.RunID,
		SourceID:   report.SourceID,
		State:      report.State.String(),
		Units:      report.Units,
		Passages:   report.Passages,
		Oversized:  report.Oversized,
		Persisted:  report.Persisted,
		IndexTotal: report.IndexTotal,
		DurationMS: report.Duration().Milliseconds(),
	}
	if err != nil {
		output.FailedStage = report.FailedStage.String()
		output.Error = err.Error()
		return &mcp.CallToolResult{IsError: true}, output, nil
	}
	return nil, output, nil
}

// handleIndexInfo handles the index_info tool invocation.
func (s *Server) handleIndexInfo(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	_ IndexInfoInput,
) (*mcp.CallToolResult, IndexInfoOutput, error) {
	info, err := s.ports.Index.Info(ctx)
	if err != nil {
		return nil, IndexInfoOutput{}, err
	}

	return nil, IndexInfoOutput{
		Path:       info.Path,
		Count:      info.Count,
		Dimensions: info.Dimensions,
		Model:      info.Model,
	}, nil
}

// handleGetPassage handles the get_passage tool invocation.
func (s *Server) handleGetPassage(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input GetPassageInput,
) (*mcp.CallToolResult, GetPassageOutput, error) {
	entry, err := s.ports.Index.Get(ctx, input.ID)
	if err != nil {
		return nil, GetPassageOutput{}, err
	}

	return nil, passageOutput(entry), nil
}

func passageOutput(e *domain.IndexEntry) GetPassageOutput {
	return GetPassageOutput{
		ID:            e.PassageID,
		SourceID:      e.Metadata.SourceID,
		Position:      e.Metadata.Position,
		SequenceIndex: e.SequenceIndex,
		Text:          e.Text,
		OverlapLen:    e.OverlapLen,
		Oversized:     e.Oversized,
		Dimensions:    len(e.Embedding),
		CreatedAt:     e.CreatedAt.UTC().Format(time.RFC3339Nano),
	}
}
