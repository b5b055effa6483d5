package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/meridian-labs/ctxd/internal/core/domain"
)

var (
	searchLimit        int
	searchTypes        []string
	searchFileTypes    []string
	searchTags         []string
	searchFrom         string
	searchTo           string
	searchMinRelevance float64
	searchSort         string
	searchJSON         bool
)

var searchCmd = &cobra.Command{
	Use:   "search [query]",
	Short: "Search stored contexts",
	Long: `Searches stored contexts by similarity and applies structured
filters on top: file type, tags, creation-date range and a minimum
relevance score.`,
	Args: cobra.ExactArgs(1),
	RunE: runSearch,
}

func init() {
	searchCmd.Flags().IntVarP(&searchLimit, "limit", "n", 10, "maximum number of results")
	searchCmd.Flags().StringSliceVar(&searchTypes, "type", nil, "restrict to context types")
	searchCmd.Flags().StringSliceVar(&searchFileTypes, "file-type", nil, "restrict to file extensions (e.g. py, xlsx)")
	searchCmd.Flags().StringSliceVar(&searchTags, "tag", nil, "keep results carrying at least one of these tags")
	searchCmd.Flags().StringVar(&searchFrom, "from", "", "earliest creation date (YYYY-MM-DD)")
	searchCmd.Flags().StringVar(&searchTo, "to", "", "latest creation date (YYYY-MM-DD)")
	searchCmd.Flags().Float64Var(&searchMinRelevance, "min-relevance", 0, "minimum relevance score (0-1)")
	searchCmd.Flags().StringVar(&searchSort, "sort", "relevance", "sort order: relevance, date or importance")
	searchCmd.Flags().BoolVar(&searchJSON, "json", false, "output results as JSON")
	rootCmd.AddCommand(searchCmd)
}

func runSearch(cmd *cobra.Command, args []string) error {
	query := args[0]

	if searchService == nil {
		return errors.New("search service not configured")
	}

	opts := domain.SearchOptions{
		TopK:         searchLimit,
		ContextTypes: searchTypes,
		FileTypes:    searchFileTypes,
		Tags:         searchTags,
		MinRelevance: searchMinRelevance,
		SortBy:       domain.SortPolicy(searchSort),
	}

	var err error
	if opts.DateFrom, err = parseDateFlag(searchFrom); err != nil {
		return err
	}
	if opts.DateTo, err = parseDateFlag(searchTo); err != nil {
		return err
	}

	results, err := searchService.Search(cmd.Context(), query, opts)
	if err != nil {
		return fmt.Errorf("search failed: %w", err)
	}

	if searchJSON {
		return outputResultsJSON(cmd, results)
	}
	return outputResultsTable(cmd, results)
}

func parseDateFlag(value string) (*time.Time, error) {
	if value == "" {
		return nil, nil
	}
	t, err := time.Parse("2006-01-02", value)
	if err != nil {
		return nil, fmt.Errorf("invalid date %q (want YYYY-MM-DD)", value)
	}
	return &t, nil
}

func outputResultsJSON(cmd *cobra.Command, results []domain.SearchResult) error {
	data, err := json.MarshalIndent(results, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal results: %w", err)
	}
	cmd.Println(string(data))
	return nil
}

func outputResultsTable(cmd *cobra.Command, results []domain.SearchResult) error {
	if len(results) == 0 {
		cmd.Println("No results found.")
		return nil
	}

	cmd.Println("Results:")
	cmd.Println()
	for i := range results {
		title, _ := results[i].Metadata["title"].(string)
		if title == "" {
			title = results[i].ID
		}

		cmd.Printf("  [%d] %s (%.2f)\n", i+1, title, results[i].RelevanceScore)
		if summary, _ := results[i].Metadata["summary"].(string); summary != "" {
			cmd.Printf("      %s\n", summary)
		}
		if tags := metadataTags(results[i].Metadata); len(tags) > 0 {
			cmd.Printf("      Tags: %v\n", tags)
		}
		cmd.Println()
	}

	return nil
}

// metadataTags reads the stored tag list, which may round-trip through
// JSON as []any.
func metadataTags(md map[string]any) []string {
	switch v := md["tags"].(type) {
	case []string:
		return v
	case []any:
		tags := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok {
				tags = append(tags, s)
			}
		}
		return tags
	default:
		return nil
	}
}
