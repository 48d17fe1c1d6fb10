// Command ingest loads documents from disk and runs the ingestion pipeline
// without the HTTP API.
package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/nikhilbhutani/docrag/internal/app"
	"github.com/nikhilbhutani/docrag/internal/config"
)

var (
	verbose bool
	svc     *app.App
)

var rootCmd = &cobra.Command{
	Use:           "ingest",
	Short:         "Ingest documents into the knowledge base",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		level := slog.LevelInfo
		if verbose {
			level = slog.LevelDebug
		}
		slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

		cfg, err := config.Load()
		if err != nil {
			return err
		}
		svc, err = app.New(cmd.Context(), cfg)
		return err
	},
	PersistentPostRun: func(*cobra.Command, []string) {
		if svc != nil {
			svc.Close()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")
}

func main() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		slog.Error("ingest failed", "error", err)
		os.Exit(1)
	}
}
