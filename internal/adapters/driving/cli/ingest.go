package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/docindex/internal/core/domain"
)

// ingestFlags maps each ingest flag to the config key it overrides.
var ingestFlags = []struct {
	name  string
	key   string
	usage string
}{
	{"store", "ingest.store_path", "vector store directory, or :memory:"},
	{"chunk-size", "ingest.chunk_size", "maximum passage length in characters"},
	{"chunk-overlap", "ingest.chunk_overlap", "characters shared by consecutive passages"},
	{"provider", "embedding.provider", "embedding provider: gemini, openai or ollama"},
	{"model", "embedding.model", "embedding model"},
	{"batch-size", "ingest.batch_size", "passages per embedding call"},
	{"concurrency", "ingest.concurrency", "embedding calls in flight"},
	{"timeout", "ingest.timeout", "timeout per embedding call, e.g. 30s"},
	{"retries", "ingest.retries", "retries per failed embedding batch"},
	{"policy", "ingest.duplicate_policy", "re-ingest policy: replace or append"},
}

var ingestJSON bool

var ingestCmd = &cobra.Command{
	Use:   "ingest [path]",
	Short: "Ingest a document into the vector index",
	Long: `Loads the document, splits it into overlapping passages, embeds every
passage and persists the vectors. The run succeeds only when the index
reports exactly as many entries for the document as passages were produced.

Flags override the config file and the environment for this run only.
Without a path the configured ingest.source_path is used.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runIngest,
}

func init() {
	for _, f := range ingestFlags {
		ingestCmd.Flags().String(f.name, "", f.usage)
	}
	ingestCmd.Flags().BoolVar(&ingestJSON, "json", false, "output the report as JSON")
	rootCmd.AddCommand(ingestCmd)
}

// ingestOverrides collects the flags set on the command line.
func ingestOverrides(cmd *cobra.Command) (map[string]string, error) {
	overrides := make(map[string]string)
	for _, f := range ingestFlags {
		if !cmd.Flags().Changed(f.name) {
			continue
		}
		v, err := cmd.Flags().GetString(f.name)
		if err != nil {
			return nil, fmt.Errorf("reading --%s: %w", f.name, err)
		}
		overrides[f.key] = v
	}
	return overrides, nil
}

func runIngest(cmd *cobra.Command, args []string) error {
	if settingsService == nil || openIngest == nil {
		return errNotConfigured
	}

	overrides, err := ingestOverrides(cmd)
	if err != nil {
		return err
	}
	settings, err := settingsService.Resolve(overrides)
	if err != nil {
		return failed(cmd, domain.IngestIdle, err)
	}

	path := settings.SourcePath
	if len(args) == 1 {
		path = args[0]
	}
	if path == "" {
		return fmt.Errorf("%w: no document path given", domain.ErrConfig)
	}

	session, err := openIngest(cmd.Context(), *settings)
	if err != nil {
		return failed(cmd, domain.FailedStage(err), err)
	}
	defer session.Close()

	if !ingestJSON {
		printer := &progressPrinter{out: cmd.OutOrStdout(), path: path}
		session.Ingest().OnProgress(printer.update)
	}

	report, err := session.Ingest().Ingest(cmd.Context(), path)
	if ingestJSON && report != nil {
		if jerr := outputReportJSON(cmd, report); jerr != nil {
			return jerr
		}
	}
	if err != nil {
		return failed(cmd, domain.FailedStage(err), err)
	}

	if !ingestJSON {
		outputReport(cmd, report, settings.StorePath)
	}
	return nil
}

// failed prints the failing stage and cause to stderr and returns err
// marked as reported.
func failed(cmd *cobra.Command, stage domain.IngestState, err error) error {
	cause := err
	var se *domain.StageError
	if errors.As(err, &se) {
		cause = se.Err
	}
	fmt.Fprintf(cmd.ErrOrStderr(), "Ingestion failed during %s: %v\n", stage, cause)
	return &reportedError{err: err}
}

func outputReport(cmd *cobra.Command, r *domain.IngestReport, store string) {
	cmd.Println()
	cmd.Printf("Verified %s\n", r.SourceID)
	cmd.Printf("  Units:     %d\n", r.Units)
	if r.Oversized > 0 {
		cmd.Printf("  Passages:  %d (%d oversized)\n", r.Passages, r.Oversized)
	} else {
		cmd.Printf("  Passages:  %d\n", r.Passages)
	}
	cmd.Printf("  Persisted: %d\n", r.Persisted)
	cmd.Printf("  Index:     %d entries in %s\n", r.IndexTotal, store)
	cmd.Printf("  Duration:  %s\n", r.Duration().Round(time.Millisecond))
}

// reportJSON is the JSON form of an ingestion report.
type reportJSON struct {
	RunID       string `json:"run_id"`
	SourceID    string `json:"source_id"`
	State       string `json:"state"`
	FailedStage string `json:"failed_stage,omitempty"`
	Error       string `json:"error,omitempty"`
	Units       int    `json:"units"`
	Passages    int    `json:"passages"`
	Oversized   int    `json:"oversized"`
	Expected    int    `json:"expected"`
	Persisted   int    `json:"persisted"`
	IndexTotal  int    `json:"index_total"`
	DurationMS  int64  `json:"duration_ms"`
}

func outputReportJSON(cmd *cobra.Command, r *domain.IngestReport) error {
	out := reportJSON{
		RunID:      r.RunID,
		SourceID:   r.SourceID,
		State:      r.State.String(),
		Units:      r.Units,
		Passages:   r.Passages,
		Oversized:  r.Oversized,
		Expected:   r.Expected,
		Persisted:  r.Persisted,
		IndexTotal: r.IndexTotal,
		DurationMS: r.Duration().Milliseconds(),
	}
	if r.Err != nil {
		out.FailedStage = r.FailedStage.String()
		out.Error = r.Err.Error()
	}

	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal report: %w", err)
	}
	cmd.Println(string(data))
	return nil
}

// progressPrinter writes one line per stage and per embedded batch.
// Updates may arrive from embedding workers concurrently.
type progressPrinter struct {
	mu       sync.Mutex
	out      io.Writer
	path     string
	state    domain.IngestState
	embedded int
}

func (p *progressPrinter) update(pr domain.IngestProgress) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if pr.State != p.state {
		p.state = pr.State
		switch pr.State {
		case domain.IngestLoading:
			fmt.Fprintf(p.out, "Loading %s\n", p.path)
		case domain.IngestChunking:
			fmt.Fprintf(p.out, "Chunking %d units\n", pr.Units)
		case domain.IngestEmbedding:
			fmt.Fprintf(p.out, "Embedding %d passages\n", pr.Passages)
		case domain.IngestPersisting:
			fmt.Fprintf(p.out, "Persisting %d passages\n", pr.Passages)
		}
		return
	}

	if pr.State == domain.IngestEmbedding && pr.Embedded > p.embedded {
		p.embedded = pr.Embedded
		fmt.Fprintf(p.out, "  embedded %d/%d\n", pr.Embedded, pr.Passages)
	}
}
