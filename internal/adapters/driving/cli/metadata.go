package cli

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/spf13/cobra"
)

var metadataCmd = &cobra.Command{
	Use:   "metadata [path]",
	Short: "Extract file metadata",
	Long: `Extracts descriptive metadata for a file: filesystem fields always,
plus format-specific fields (PDF, Word, Excel, image, code) on a
best-effort basis.`,
	Args: cobra.ExactArgs(1),
	RunE: runMetadata,
}

func init() {
	rootCmd.AddCommand(metadataCmd)
}

func runMetadata(cmd *cobra.Command, args []string) error {
	if metadataExtractor == nil {
		return errors.New("metadata extractor not configured")
	}

	record, err := metadataExtractor.Extract(args[0])
	if err != nil {
		return fmt.Errorf("metadata extraction failed: %w", err)
	}

	data, err := json.MarshalIndent(record, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal metadata: %w", err)
	}
	cmd.Println(string(data))
	return nil
}
