package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
)

var (
	recentDays  int
	recentLimit int
	recentTypes []string
	recentJSON  bool
)

var recentCmd = &cobra.Command{
	Use:   "recent",
	Short: "List recently ingested contexts",
	Long:  `Lists contexts created within the last N days, newest first.`,
	Args:  cobra.NoArgs,
	RunE:  runRecent,
}

func init() {
	recentCmd.Flags().IntVar(&recentDays, "days", 7, "look back this many days")
	recentCmd.Flags().IntVarP(&recentLimit, "limit", "n", 20, "maximum number of results")
	recentCmd.Flags().StringSliceVar(&recentTypes, "type", nil, "restrict to context types")
	recentCmd.Flags().BoolVar(&recentJSON, "json", false, "output results as JSON")
	rootCmd.AddCommand(recentCmd)
}

func runRecent(cmd *cobra.Command, _ []string) error {
	if searchService == nil {
		return errors.New("search service not configured")
	}

	results, err := searchService.SearchRecent(cmd.Context(), recentDays, recentLimit, recentTypes)
	if err != nil {
		return fmt.Errorf("recent lookup failed: %w", err)
	}

	if recentJSON {
		return outputResultsJSON(cmd, results)
	}
	return outputResultsTable(cmd, results)
}
