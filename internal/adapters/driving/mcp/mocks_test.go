package mcp

import (
	"context"

	"github.com/custodia-labs/docindex/internal/core/domain"
)

// mockIndexService is a mock implementation of driving.IndexService.
type mockIndexService struct {
	info    *domain.IndexInfo
	entries map[string]*domain.IndexEntry
	runs    []domain.IngestRun
	err     error
}

func (m *mockIndexService) Info(_ context.Context) (*domain.IndexInfo, error) {
	return m.info, m.err
}

func (m *mockIndexService) Get(_ context.Context, id string) (*domain.IndexEntry, error) {
	if m.err != nil {
		return nil, m.err
	}
	e, ok := m.entries[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return e, nil
}

func (m *mockIndexService) Recent(_ context.Context, _ int) ([]domain.IngestRun, error) {
	return m.runs, m.err
}

// mockIngestService is a mock implementation of driving.IngestService.
type mockIngestService struct {
	report *domain.IngestReport
	err    error
	paths  []string
}

func (m *mockIngestService) Ingest(_ context.Context, path string) (*domain.IngestReport, error) {
	m.paths = append(m.paths, path)
	return m.report, m.err
}

func (m *mockIngestService) Status() domain.IngestProgress {
	return domain.IngestProgress{State: domain.IngestIdle}
}

func (m *mockIngestService) OnProgress(func(domain.IngestProgress)) {}
