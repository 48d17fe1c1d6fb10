package main

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

var (
	runLimit int
	runAll   bool
	runJSON  bool
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Process documents waiting in the ingest queue",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		limit := runLimit
		if limit <= 0 {
			limit = svc.Config.Ingest.BatchLimit
		}
		if runAll {
			return drain(cmd.Context(), cmd, limit)
		}

		res, err := svc.Runner.Run(cmd.Context(), limit)
		if err != nil {
			return err
		}
		if runJSON {
			data, err := json.MarshalIndent(res, "", "  ")
			if err != nil {
				return fmt.Errorf("failed to marshal result: %w", err)
			}
			cmd.Println(string(data))
			return nil
		}
		cmd.Printf("Processed %d: %d succeeded, %d failed, %d skipped\n",
			res.Processed, res.Successful, res.Failed, res.Skipped)
		for _, r := range res.Results {
			if r.Error != "" {
				cmd.Printf("  %s %s: %s\n", r.DocumentID, r.Filename, r.Error)
			}
		}
		return nil
	},
}

func init() {
	runCmd.Flags().IntVarP(&runLimit, "limit", "n", 0, "documents per batch (default from INGEST_BATCH_LIMIT)")
	runCmd.Flags().BoolVar(&runAll, "all", false, "keep running batches until the queue is empty")
	runCmd.Flags().BoolVar(&runJSON, "json", false, "output the batch result as JSON")
	rootCmd.AddCommand(runCmd)
}

// drain runs batches until one finds no work or makes no progress.
func drain(ctx context.Context, cmd *cobra.Command, limit int) error {
	var total, ok, failed int
	for {
		res, err := svc.Runner.Run(ctx, limit)
		if err != nil {
			return err
		}
		total += res.Processed
		ok += res.Successful
		failed += res.Failed
		if res.Processed == 0 || (res.Successful == 0 && res.Failed == 0) {
			break
		}
		cmd.Printf("Batch done: %d succeeded, %d failed\n", res.Successful, res.Failed)
	}
	cmd.Printf("Done: %d documents, %d succeeded, %d failed\n", total, ok, failed)
	return nil
}
