package cli

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	ingestRecursive bool
	ingestWatch     bool
)

var ingestCmd = &cobra.Command{
	Use:   "ingest [path]",
	Short: "Process a file or directory into searchable contexts",
	Long: `Runs the given file through the format-aware processing pipeline and
stores the resulting contexts. When given a directory, processes every
supported file in it; with --watch, keeps watching for new files until
interrupted.`,
	Args: cobra.ExactArgs(1),
	RunE: runIngest,
}

func init() {
	ingestCmd.Flags().BoolVarP(&ingestRecursive, "recursive", "r", false, "descend into subdirectories")
	ingestCmd.Flags().BoolVarP(&ingestWatch, "watch", "w", false, "watch the directory and ingest new files")
	rootCmd.AddCommand(ingestCmd)
}

func runIngest(cmd *cobra.Command, args []string) error {
	path := args[0]

	if ingestService == nil {
		return errors.New("ingestion service not configured")
	}

	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("stat %s: %w", path, err)
	}

	ctx := cmd.Context()

	if !info.IsDir() {
		contexts, err := ingestService.IngestFile(ctx, path)
		if err != nil {
			return fmt.Errorf("ingest failed: %w", err)
		}
		cmd.Printf("Ingested %s: %d context(s)\n", path, len(contexts))
		return nil
	}

	if ingestWatch {
		cmd.Printf("Watching %s (Ctrl-C to stop)\n", path)
		return ingestService.Watch(ctx, path)
	}

	n, err := ingestService.IngestDirectory(ctx, path, ingestRecursive)
	if err != nil {
		return fmt.Errorf("ingest failed: %w", err)
	}
	cmd.Printf("Ingested %s: %d context(s) stored\n", path, n)
	return nil
}
