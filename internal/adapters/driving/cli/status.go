package cli

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show storage and pipeline status",
	Args:  cobra.NoArgs,
	RunE:  runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, _ []string) error {
	if contextStorage == nil || configStore == nil {
		return errors.New("services not configured")
	}

	backend := configStore.GetString("storage.backend")
	if backend == "" {
		backend = "sqlite"
	}

	count, err := contextStorage.Count(cmd.Context())
	if err != nil {
		return fmt.Errorf("count contexts: %w", err)
	}

	cmd.Printf("Storage backend: %s\n", backend)
	cmd.Printf("Stored contexts: %d\n", count)

	if provider := configStore.GetString("llm.provider"); provider != "" {
		cmd.Printf("LLM provider:    %s\n", provider)
	} else {
		cmd.Println("LLM provider:    (none - tagging uses path tags only)")
	}

	if processorRegistry != nil {
		exts := processorRegistry.SupportedExtensions()
		sort.Strings(exts)
		cmd.Printf("Supported files: %s\n", strings.Join(exts, " "))
	}
	return nil
}
