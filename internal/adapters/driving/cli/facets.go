package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/meridian-labs/ctxd/internal/core/domain"
)

var (
	facetsTypes []string
	facetsJSON  bool
)

var facetsCmd = &cobra.Command{
	Use:   "facets [query]",
	Short: "Show facet counts over stored contexts",
	Long: `Aggregates file-type, context-type, tag and creation-date counts
over stored contexts, optionally scoped by a query.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runFacets,
}

func init() {
	facetsCmd.Flags().StringSliceVar(&facetsTypes, "type", nil, "restrict to context types")
	facetsCmd.Flags().BoolVar(&facetsJSON, "json", false, "output facets as JSON")
	rootCmd.AddCommand(facetsCmd)
}

func runFacets(cmd *cobra.Command, args []string) error {
	if searchService == nil {
		return errors.New("search service not configured")
	}

	query := ""
	if len(args) == 1 {
		query = args[0]
	}

	facets, err := searchService.GetFacets(cmd.Context(), query, facetsTypes)
	if err != nil {
		return fmt.Errorf("facet aggregation failed: %w", err)
	}

	if facetsJSON {
		data, err := json.MarshalIndent(facets, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal facets: %w", err)
		}
		cmd.Println(string(data))
		return nil
	}

	outputFacets(cmd, facets)
	return nil
}

func outputFacets(cmd *cobra.Command, facets *domain.Facets) {
	cmd.Println("File types:")
	printCountMap(cmd, facets.FileTypes)
	cmd.Println()

	cmd.Println("Context types:")
	printCountMap(cmd, facets.ContextTypes)
	cmd.Println()

	cmd.Println("Top tags:")
	if len(facets.Tags) == 0 {
		cmd.Println("  (none)")
	}
	for _, tag := range facets.Tags {
		cmd.Printf("  %-20s %d\n", tag.Name, tag.Count)
	}
	cmd.Println()

	cmd.Println("Created:")
	cmd.Printf("  %-20s %d\n", "last day", facets.DateRanges.LastDay)
	cmd.Printf("  %-20s %d\n", "last week", facets.DateRanges.LastWeek)
	cmd.Printf("  %-20s %d\n", "last month", facets.DateRanges.LastMonth)
	cmd.Printf("  %-20s %d\n", "older", facets.DateRanges.Older)
}

func printCountMap(cmd *cobra.Command, counts map[string]int) {
	if len(counts) == 0 {
		cmd.Println("  (none)")
		return
	}

	names := make([]string, 0, len(counts))
	for name := range counts {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		cmd.Printf("  %-20s %d\n", name, counts[name])
	}
}
