package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/custodia-labs/docindex/internal/core/domain"
)

const (
	// uriScheme is the custom URI scheme for docindex resources.
	uriScheme = "docindex://"

	// recentRuns is how many runs the runs resource lists.
	recentRuns = 20
)

// registerResources registers all resource handlers with the MCP server.
func (s *Server) registerResources() {
	s.server.AddResource(&mcp.Resource{
		URI:         uriScheme + "runs",
		Name:        "runs",
		Description: "Recent ingestion runs, newest first",
		MIMEType:    "application/json",
	}, s.handleRunsResource)

	s.server.AddResourceTemplate(&mcp.ResourceTemplate{
		URITemplate: uriScheme + "passages/{passageId}",
		Name:        "passage-text",
		Description: "Text of an indexed passage",
		MIMEType:    "text/plain",
	}, s.handlePassageResource)
}

// handleRunsResource returns the recent ingestion history.
func (s *Server) handleRunsResource(
	ctx context.Context,
	req *mcp.ReadResourceRequest,
) (*mcp.ReadResourceResult, error) {
	runs, err := s.ports.Index.Recent(ctx, recentRuns)
	if err != nil {
		return nil, fmt.Errorf("listing runs: %w", err)
	}

	type runInfo struct {
		ID        string `json:"id"`
		Path      string `json:"path"`
		State     string `json:"state"`
		Passages  int    `json:"passages"`
		Persisted int    `json:"persisted"`
		Error     string `json:"error,omitempty"`
		StartedAt string `json:"started_at"`
	}

	infos := make([]runInfo, len(runs))
	for i := range runs {
		infos[i] = runInfo{
			ID:        runs[i].ID,
			Path:      runs[i].Path,
			State:     runs[i].State.String(),
			Passages:  runs[i].Passages,
			Persisted: runs[i].Persisted,
			Error:     runs[i].Error,
			StartedAt: runs[i].StartedAt.UTC().Format(time.RFC3339),
		}
	}

	data, err := json.MarshalIndent(infos, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshalling runs: %w", err)
	}

	return &mcp.ReadResourceResult{
		Contents: []*mcp.ResourceContents{{
			URI:      req.Params.URI,
			MIMEType: "application/json",
			Text:     string(data),
		}},
	}, nil
}

// handlePassageResource returns the text of a passage.
func (s *Server) handlePassageResource(
	ctx context.Context,
	req *mcp.ReadResourceRequest,
) (*mcp.ReadResourceResult, error) {
	id := extractPassageID(req.Params.URI)
	if id == "" {
		return nil, mcp.ResourceNotFoundError(req.Params.URI)
	}

	entry, err := s.ports.Index.Get(ctx, id)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, mcp.ResourceNotFoundError(req.Params.URI)
	}
	if err != nil {
		return nil, fmt.Errorf("getting passage: %w", err)
	}

	return &mcp.ReadResourceResult{
		Contents: []*mcp.ResourceContents{{
			URI:      req.Params.URI,
			MIMEType: "text/plain",
			Text:     entry.Text,
		}},
	}, nil
}

// extractPassageID extracts the id from a URI like docindex://passages/{passageId}.
func extractPassageID(uri string) string {
	const prefix = uriScheme + "passages/"

	if !strings.HasPrefix(uri, prefix) {
		return ""
	}

	return strings.TrimPrefix(uri, prefix)
}
