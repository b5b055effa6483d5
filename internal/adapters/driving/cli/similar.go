package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
)

var (
	similarLimit int
	similarJSON  bool
)

var similarCmd = &cobra.Command{
	Use:   "similar [context-id]",
	Short: "Find contexts similar to a stored one",
	Args:  cobra.ExactArgs(1),
	RunE:  runSimilar,
}

func init() {
	similarCmd.Flags().IntVarP(&similarLimit, "limit", "n", 10, "maximum number of results")
	similarCmd.Flags().BoolVar(&similarJSON, "json", false, "output results as JSON")
	rootCmd.AddCommand(similarCmd)
}

func runSimilar(cmd *cobra.Command, args []string) error {
	if searchService == nil {
		return errors.New("search service not configured")
	}

	results, err := searchService.SearchSimilar(cmd.Context(), args[0], similarLimit)
	if err != nil {
		return fmt.Errorf("similarity lookup failed: %w", err)
	}

	if similarJSON {
		return outputResultsJSON(cmd, results)
	}
	return outputResultsTable(cmd, results)
}
