package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
)

var (
	tagsMatchAll bool
	tagsLimit    int
	tagsJSON     bool
)

var tagsCmd = &cobra.Command{
	Use:   "tags [tag...]",
	Short: "Search stored contexts by tags",
	Long: `Finds contexts matching the given tags. By default a result needs
any one of the tags; with --all it must carry every tag.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runTags,
}

func init() {
	tagsCmd.Flags().BoolVar(&tagsMatchAll, "all", false, "require every tag to match")
	tagsCmd.Flags().IntVarP(&tagsLimit, "limit", "n", 10, "maximum number of results")
	tagsCmd.Flags().BoolVar(&tagsJSON, "json", false, "output results as JSON")
	rootCmd.AddCommand(tagsCmd)
}

func runTags(cmd *cobra.Command, args []string) error {
	if searchService == nil {
		return errors.New("search service not configured")
	}

	results, err := searchService.SearchByTags(cmd.Context(), args, tagsLimit, tagsMatchAll)
	if err != nil {
		return fmt.Errorf("tag search failed: %w", err)
	}

	if tagsJSON {
		return outputResultsJSON(cmd, results)
	}
	return outputResultsTable(cmd, results)
}
