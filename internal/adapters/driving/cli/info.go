package cli

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/docindex/internal/core/domain"
)

var (
	infoStore string
	infoRuns  int
	infoJSON  bool
)

var infoCmd = &cobra.Command{
	Use:   "info",
	Short: "Show vector index statistics",
	Long: `Shows the store location, entry count, embedding dimension and model,
followed by the most recent ingestion runs.`,
	Args: cobra.NoArgs,
	RunE: runInfo,
}

func init() {
	infoCmd.Flags().StringVar(&infoStore, "store", "", "vector store directory (default from config)")
	infoCmd.Flags().IntVarP(&infoRuns, "runs", "n", 5, "number of recent runs to show")
	infoCmd.Flags().BoolVar(&infoJSON, "json", false, "output as JSON")
	rootCmd.AddCommand(infoCmd)
}

func runInfo(cmd *cobra.Command, _ []string) error {
	if openIndex == nil {
		return errNotConfigured
	}

	store := infoStore
	if store == "" {
		settings, err := currentSettings()
		if err != nil {
			return fmt.Errorf("failed to get settings: %w", err)
		}
		store = settings.StorePath
	}

	session, err := openIndex(cmd.Context(), store)
	if err != nil {
		return err
	}
	defer session.Close()

	info, err := session.Index().Info(cmd.Context())
	if err != nil {
		return fmt.Errorf("reading index info: %w", err)
	}
	runs, err := session.Index().Recent(cmd.Context(), infoRuns)
	if err != nil {
		return fmt.Errorf("reading run history: %w", err)
	}

	if infoJSON {
		return outputInfoJSON(cmd, info, runs)
	}

	cmd.Println("Vector Index")
	cmd.Println("============")
	cmd.Printf("  Path:       %s\n", info.Path)
	cmd.Printf("  Entries:    %d\n", info.Count)
	if info.Count == 0 {
		cmd.Println("  Dimensions: (empty index)")
	} else {
		cmd.Printf("  Dimensions: %d\n", info.Dimensions)
		cmd.Printf("  Model:      %s\n", info.Model)
	}

	if len(runs) == 0 {
		return nil
	}
	cmd.Println()
	cmd.Println("Recent runs:")
	for i := range runs {
		r := &runs[i]
		cmd.Printf("  %s  %-9s %4d/%-4d %s\n",
			r.StartedAt.Local().Format(time.DateTime), r.State, r.Persisted, r.Passages, r.Path)
		if r.Error != "" {
			cmd.Printf("      %s\n", r.Error)
		}
	}
	return nil
}

func outputInfoJSON(cmd *cobra.Command, info *domain.IndexInfo, runs []domain.IngestRun) error {
	type runView struct {
		ID        string    `json:"id"`
		Path      string    `json:"path"`
		State     string    `json:"state"`
		Passages  int       `json:"passages"`
		Persisted int       `json:"persisted"`
		Error     string    `json:"error,omitempty"`
		StartedAt time.Time `json:"started_at"`
	}
	out := struct {
		Path       string    `json:"path"`
		Count      int       `json:"count"`
		Dimensions int       `json:"dimensions"`
		Model      string    `json:"model,omitempty"`
		Runs       []runView `json:"runs"`
	}{
		Path:       info.Path,
		Count:      info.Count,
		Dimensions: info.Dimensions,
		Model:      info.Model,
		Runs:       make([]runView, len(runs)),
	}
	for i := range runs {
		out.Runs[i] = runView{
			ID:        runs[i].ID,
			Path:      runs[i].Path,
			State:     runs[i].State.String(),
			Passages:  runs[i].Passages,
			Persisted: runs[i].Persisted,
			Error:     runs[i].Error,
			StartedAt: runs[i].StartedAt,
		}
	}

	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal info: %w", err)
	}
	cmd.Println(string(data))
	return nil
}
