package main

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/nikhilbhutani/docrag/internal/rag"
)

var (
	searchLimit     int
	searchThreshold float64
	searchJSON      bool
)

var searchCmd = &cobra.Command{
	Use:   "search [query]",
	Short: "Retrieve the chunks most relevant to a query",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runSearch,
}

func init() {
	searchCmd.Flags().IntVarP(&searchLimit, "limit", "n", 0, "maximum number of results")
	searchCmd.Flags().Float64Var(&searchThreshold, "threshold", -1, "minimum similarity (default from RAG_SIMILARITY_THRESHOLD)")
	searchCmd.Flags().BoolVar(&searchJSON, "json", false, "output results as JSON")
	rootCmd.AddCommand(searchCmd)
}

func runSearch(cmd *cobra.Command, args []string) error {
	opts := rag.RetrieveOptions{Limit: searchLimit}
	if searchThreshold >= 0 {
		opts.Threshold = &searchThreshold
	}

	results, err := svc.Retriever.Retrieve(cmd.Context(), strings.Join(args, " "), opts)
	if err != nil {
		return fmt.Errorf("search failed: %w", err)
	}

	if searchJSON {
		data, err := json.MarshalIndent(results, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal results: %w", err)
		}
		cmd.Println(string(data))
		return nil
	}

	if len(results) == 0 {
		cmd.Println("No results found.")
		return nil
	}
	for i, r := range results {
		score := "-"
		if r.Score != nil {
			score = fmt.Sprintf("%.3f", *r.Score)
		}
		cmd.Printf("[%d] %s #%d (%s, %s)\n", i+1, r.Metadata.Filename, r.ChunkIndex, r.Source, score)
		cmd.Printf("    %s\n\n", snippet(r.Content, 200))
	}
	return nil
}

func snippet(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
