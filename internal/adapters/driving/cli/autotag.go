package cli

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
)

var autotagCmd = &cobra.Command{
	Use:   "autotag [file]",
	Short: "Generate tags for a file without storing it",
	Long: `Derives tags from the file path and, when an LLM provider is
configured, from the file content. Nothing is stored; this previews
what ingestion would attach.`,
	Args: cobra.ExactArgs(1),
	RunE: runAutotag,
}

func init() {
	rootCmd.AddCommand(autotagCmd)
}

func runAutotag(cmd *cobra.Command, args []string) error {
	path := args[0]

	if taggingService == nil {
		return errors.New("tagging service not configured")
	}

	content, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}

	cmd.Printf("Path tags: %s\n", strings.Join(taggingService.TagsFromPath(path), ", "))

	tags := taggingService.GenerateTags(cmd.Context(), string(content), filepath.Base(path))
	if tags.IsEmpty() {
		cmd.Println("Content tags: (none - no LLM provider configured or tagging failed)")
		return nil
	}

	printTagKind(cmd, "Topics", tags.Topics)
	printTagKind(cmd, "Keywords", tags.Keywords)
	printTagKind(cmd, "Entities", tags.Entities)
	printTagKind(cmd, "Categories", tags.Categories)
	return nil
}

func printTagKind(cmd *cobra.Command, label string, tags []string) {
	if len(tags) == 0 {
		return
	}
	cmd.Printf("%s: %s\n", label, strings.Join(tags, ", "))
}
