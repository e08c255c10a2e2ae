// Package cli provides the docindex command-line interface.
package cli

import (
	"context"
	"errors"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/docindex/internal/core/domain"
	"github.com/custodia-labs/docindex/internal/core/ports/driving"
	"github.com/custodia-labs/docindex/internal/logger"
)

// version is set at build time with -ldflags "-X ...cli.version=...".
var version = "dev"

// IngestOpener opens a store with the full ingestion stack for settings.
type IngestOpener func(ctx context.Context, settings domain.IngestSettings) (driving.StoreSession, error)

// IndexOpener opens a store for reading.
type IndexOpener func(ctx context.Context, storePath string) (driving.StoreSession, error)

// Dependencies are the services the commands run against.
type Dependencies struct {
	Settings   driving.SettingsService
	ConfigPath string
	OpenIngest IngestOpener
	OpenIndex  IndexOpener
}

var (
	verbose bool

	settingsService driving.SettingsService
	configPath      string
	openIngest      IngestOpener
	openIndex       IndexOpener
)

var errNotConfigured = errors.New("services not configured")

// reportedError wraps an error whose cause a command already printed.
type reportedError struct {
	err error
}

func (e *reportedError) Error() string { return e.err.Error() }

func (e *reportedError) Unwrap() error { return e.err }

// Reported returns true if err was already printed to stderr by a command.
func Reported(err error) bool {
	var r *reportedError
	return errors.As(err, &r)
}

var rootCmd = &cobra.Command{
	Use:   "docindex",
	Short: "Ingest documents into a local vector index",
	Long: `docindex loads a document, splits it into overlapping passages,
embeds every passage and stores the vectors in a local index.
Each run is verified by comparing the stored count with the passage count.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(_ *cobra.Command, _ []string) {
		logger.SetVerbose(verbose)
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "log pipeline details to stderr")
}

// Configure injects the services used by all commands.
func Configure(deps Dependencies) {
	settingsService = deps.Settings
	configPath = deps.ConfigPath
	openIngest = deps.OpenIngest
	openIndex = deps.OpenIndex
}

// Execute runs the root command with ctx.
func Execute(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}

// currentSettings resolves settings from the config file and environment.
func currentSettings() (*domain.IngestSettings, error) {
	if settingsService == nil {
		return nil, errNotConfigured
	}
	settings, err := settingsService.Get()
	if err != nil {
		return nil, err
	}
	return settings, nil
}
