package cli

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/docindex/internal/core/domain"
	"github.com/custodia-labs/docindex/internal/loaders/pdf"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration",
	Long: `View and change the settings stored in the config file.

Values from the environment (GOOGLE_API_KEY, OPENAI_API_KEY, OLLAMA_HOST,
DOCINDEX_STORE) override the file; ingest flags override both.`,
	RunE: runConfigGet,
}

var configGetCmd = &cobra.Command{
	Use:   "get [key]",
	Short: "Show one or all settings",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runConfigGet,
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Change a setting",
	Long: `Validates and stores a setting in the config file.

Separators are a comma-separated list with Go escapes, for example:
  docindex config set ingest.separators '\n\n,\n,. , ,'`,
	Args: cobra.ExactArgs(2),
	RunE: runConfigSet,
}

var configPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Print the config file path",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, _ []string) {
		cmd.Println(configPath)
	},
}

var configCheckCmd = &cobra.Command{
	Use:   "check",
	Short: "Validate settings and ping the embedding provider",
	Long: `Validates the resolved settings, pings the embedding provider and
warns when pdftotext is missing.`,
	Args: cobra.NoArgs,
	RunE: runConfigCheck,
}

func init() {
	configCmd.AddCommand(configGetCmd)
	configCmd.AddCommand(configSetCmd)
	configCmd.AddCommand(configPathCmd)
	configCmd.AddCommand(configCheckCmd)
	rootCmd.AddCommand(configCmd)
}

func runConfigGet(cmd *cobra.Command, args []string) error {
	settings, err := currentSettings()
	if err != nil {
		return fmt.Errorf("failed to get settings: %w", err)
	}

	if len(args) == 1 {
		value, ok := settingValue(settings, args[0])
		if !ok {
			return fmt.Errorf("%w: unknown setting %q", domain.ErrConfig, args[0])
		}
		cmd.Println(value)
		return nil
	}

	for _, key := range settingsService.Keys() {
		value, _ := settingValue(settings, key)
		cmd.Printf("%-26s %s\n", key, value)
	}
	return nil
}

func runConfigSet(cmd *cobra.Command, args []string) error {
	if settingsService == nil {
		return errNotConfigured
	}
	if err := settingsService.Set(args[0], args[1]); err != nil {
		return err
	}

	settings, err := currentSettings()
	if err != nil {
		return err
	}
	value, _ := settingValue(settings, args[0])
	cmd.Printf("%s = %s\n", args[0], value)
	return nil
}

func runConfigCheck(cmd *cobra.Command, _ []string) error {
	settings, err := currentSettings()
	if err != nil {
		return fmt.Errorf("failed to get settings: %w", err)
	}
	if err := settings.Validate(); err != nil {
		return err
	}
	if !settings.Embedding.IsConfigured() {
		return fmt.Errorf("%w: %s is not configured", domain.ErrConfig, settings.Embedding.Provider)
	}

	cmd.Printf("Pinging %s (%s)...\n", settings.Embedding.Provider.Description(), settings.Embedding.Model)
	if err := settingsService.ValidateEmbeddingConfig(); err != nil {
		return errors.Join(errors.New("embedding provider check failed"), err)
	}
	cmd.Println("Configuration is valid.")

	if err := pdf.CheckAvailable(); err != nil {
		cmd.PrintErrln()
		cmd.PrintErrln("Warning: PDF documents cannot be loaded.")
		cmd.PrintErrln(pdf.InstallInstructions())
	}
	return nil
}

// settingValue renders the resolved value of a config key.
func settingValue(s *domain.IngestSettings, key string) (string, bool) {
	switch key {
	case "ingest.source_path":
		return orUnset(s.SourcePath), true
	case "ingest.store_path":
		return s.StorePath, true
	case "ingest.chunk_size":
		return strconv.Itoa(s.ChunkSize), true
	case "ingest.chunk_overlap":
		return strconv.Itoa(s.ChunkOverlap), true
	case "ingest.separators":
		return formatSeparators(s.Separators), true
	case "ingest.batch_size":
		return strconv.Itoa(s.BatchSize), true
	case "ingest.concurrency":
		return strconv.Itoa(s.Concurrency), true
	case "ingest.timeout":
		return s.Timeout.String(), true
	case "ingest.retries":
		return strconv.Itoa(s.Retries), true
	case "ingest.retry_backoff":
		return s.RetryBackoff.String(), true
	case "ingest.rate_limit":
		if s.RateLimit == 0 {
			return "0 (unlimited)", true
		}
		return strconv.FormatFloat(s.RateLimit, 'g', -1, 64), true
	case "ingest.duplicate_policy":
		return string(s.DuplicatePolicy), true
	case "embedding.provider":
		return s.Embedding.Provider.String(), true
	case "embedding.model":
		return s.Embedding.Model, true
	case "embedding.base_url":
		return orUnset(s.Embedding.BaseURL), true
	case "embedding.api_key":
		if s.Embedding.APIKey == "" {
			return "(not set)", true
		}
		return maskAPIKey(s.Embedding.APIKey), true
	case "embedding.dimensions":
		if s.Embedding.Dimensions == 0 {
			return fmt.Sprintf("%d (model default)", s.Embedding.ResolvedDimensions()), true
		}
		return strconv.Itoa(s.Embedding.Dimensions), true
	default:
		return "", false
	}
}

// formatSeparators renders separators in the form config set accepts.
func formatSeparators(seps []string) string {
	quoted := make([]string, len(seps))
	for i, sep := range seps {
		q := strconv.Quote(sep)
		quoted[i] = q[1 : len(q)-1]
	}
	return strings.Join(quoted, ",")
}

func orUnset(v string) string {
	if v == "" {
		return "(not set)"
	}
	return v
}

// maskAPIKey masks an API key for display.
func maskAPIKey(key string) string {
	if len(key) <= 8 {
		return "****"
	}
	return key[:4] + "..." + key[len(key)-4:]
}
