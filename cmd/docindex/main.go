// Command docindex ingests documents into a local vector index.
package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/custodia-labs/docindex/internal/adapters/driving/cli"
	"github.com/custodia-labs/docindex/internal/app"
)

func main() {
	if err := run(); err != nil {
		if !cli.Reported(err) {
			fmt.Fprintln(os.Stderr, "Error:", err)
		}
		os.Exit(1)
	}
}

func run() error {
	// API keys may live in a .env next to the documents.
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("loading .env: %w", err)
	}

	rt, err := app.New(os.Getenv("DOCINDEX_CONFIG_DIR"))
	if err != nil {
		return err
	}

	cli.Configure(cli.Dependencies{
		Settings:   rt.Settings,
		ConfigPath: rt.Config.Path(),
		OpenIngest: rt.OpenIngest,
		OpenIndex:  rt.OpenIndex,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return cli.Execute(ctx)
}
