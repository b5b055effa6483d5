// Package cli implements the ctxd command-line interface.
package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	configfile "github.com/meridian-labs/ctxd/internal/adapters/driven/config/file"
	"github.com/meridian-labs/ctxd/internal/adapters/driven/llm/ollama"
	"github.com/meridian-labs/ctxd/internal/adapters/driven/llm/openai"
	"github.com/meridian-labs/ctxd/internal/adapters/driven/storage/memory"
	"github.com/meridian-labs/ctxd/internal/adapters/driven/storage/sqlite"
	"github.com/meridian-labs/ctxd/internal/core/ports/driven"
	"github.com/meridian-labs/ctxd/internal/core/ports/driving"
	"github.com/meridian-labs/ctxd/internal/core/services"
	"github.com/meridian-labs/ctxd/internal/logger"
	"github.com/meridian-labs/ctxd/internal/metadata"
	"github.com/meridian-labs/ctxd/internal/processors"
	"github.com/meridian-labs/ctxd/internal/processors/code"
	"github.com/meridian-labs/ctxd/internal/processors/spreadsheet"
	"github.com/meridian-labs/ctxd/internal/processors/structured"
)

// version is set at build time via -ldflags.
var version = "dev"

// Services wired by initServices and used by the commands.
var (
	configStore       driven.ConfigStore
	contextStorage    driven.ContextStorage
	processorRegistry driven.ProcessorRegistry
	metadataExtractor driven.MetadataExtractor
	ingestService     driving.Ingestor
	searchService     driving.Searcher
	taggingService    driving.Tagger
)

var verbose bool

var rootCmd = &cobra.Command{
	Use:   "ctxd",
	Short: "Ingest local files into searchable context",
	Long: `ctxd processes code, spreadsheets and structured data files into
chunked, tagged contexts and serves filtered search over them.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		logger.SetVerbose(verbose)
		if cmd.Name() == "version" {
			return nil
		}
		return initServices()
	},
	PersistentPostRunE: func(_ *cobra.Command, _ []string) error {
		if contextStorage != nil {
			return contextStorage.Close()
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
}

// Execute runs the root command. Interrupt cancels the command context,
// which stops long-running commands such as ingest --watch.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// initServices builds the adapter stack and core services from the
// persisted configuration. Already-wired services (including test
// doubles) are left in place.
func initServices() error {
	if searchService != nil {
		return nil
	}

	var err error
	configStore, err = configfile.NewConfigStore("")
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	contextStorage, err = openStorage()
	if err != nil {
		return fmt.Errorf("open storage: %w", err)
	}

	processorRegistry = processors.NewRegistry(
		newCodeProcessor(),
		newSpreadsheetProcessor(),
		newStructuredProcessor(),
	)

	metadataExtractor = metadata.NewExtractor()
	taggingService = newTaggingService()

	searchService, err = services.NewSearchService(contextStorage)
	if err != nil {
		return err
	}

	ingestService, err = services.NewIngestionService(processorRegistry, contextStorage,
		services.WithMetadataExtractor(metadataExtractor),
		services.WithTagger(taggingService),
	)
	return err
}

func openStorage() (driven.ContextStorage, error) {
	switch backend := configStore.GetString("storage.backend"); backend {
	case "memory":
		return memory.NewStore(), nil
	case "", "sqlite":
		return sqlite.NewStore(configStore.GetString("storage.data_dir"))
	default:
		return nil, fmt.Errorf("unknown storage backend %q", backend)
	}
}

// openLLM builds the configured LLM service, or returns nil when tagging
// is not configured. A nil service degrades tag generation to path-derived
// tags only.
func openLLM() driven.LLMService {
	switch provider := configStore.GetString("llm.provider"); provider {
	case "openai":
		apiKey := configStore.GetString("llm.api_key")
		if apiKey == "" {
			apiKey = os.Getenv("OPENAI_API_KEY")
		}
		svc, err := openai.NewLLMService(openai.Config{
			APIKey:  apiKey,
			BaseURL: configStore.GetString("llm.base_url"),
			Model:   configStore.GetString("llm.model"),
		})
		if err != nil {
			logger.Warn("LLM tagging disabled: %v", err)
			return nil
		}
		return svc
	case "ollama":
		return ollama.NewLLMService(ollama.Config{
			BaseURL: configStore.GetString("llm.base_url"),
			Model:   configStore.GetString("llm.model"),
		})
	case "":
		return nil
	default:
		logger.Warn("unknown LLM provider %q, tagging disabled", provider)
		return nil
	}
}

func newCodeProcessor() *code.Processor {
	var opts []code.Option
	if n := configStore.GetInt("code.max_lines_per_chunk"); n > 0 {
		opts = append(opts, code.WithMaxLinesPerChunk(n))
	}
	return code.New(opts...)
}

func newSpreadsheetProcessor() *spreadsheet.Processor {
	var opts []spreadsheet.Option
	if n := configStore.GetInt("spreadsheet.max_rows_per_chunk"); n > 0 {
		opts = append(opts, spreadsheet.WithMaxRowsPerChunk(n))
	}
	return spreadsheet.New(opts...)
}

func newStructuredProcessor() *structured.Processor {
	var opts []structured.Option
	if n := configStore.GetInt("structured.max_depth"); n > 0 {
		opts = append(opts, structured.WithMaxDepth(n))
	}
	if n := configStore.GetInt("structured.max_array_items_per_chunk"); n > 0 {
		opts = append(opts, structured.WithMaxArrayItemsPerChunk(n))
	}
	return structured.New(opts...)
}

func newTaggingService() *services.TaggingService {
	var opts []services.TaggingOption
	if n := configStore.GetInt("tagging.max_content_length"); n > 0 {
		opts = append(opts, services.WithMaxContentLength(n))
	}
	return services.NewTaggingService(openLLM(), opts...)
}
