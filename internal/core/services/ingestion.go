package services

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"
	"github.com/google/uuid"

	"github.com/meridian-labs/ctxd/internal/core/domain"
	"github.com/meridian-labs/ctxd/internal/core/ports/driven"
	"github.com/meridian-labs/ctxd/internal/core/ports/driving"
	"github.com/meridian-labs/ctxd/internal/logger"
)

// Ensure IngestionService implements the interface.
var _ driving.Ingestor = (*IngestionService)(nil)

// IngestionService runs files through the processor registry, enriches
// the results with extracted metadata and auto-generated tags, and hands
// them to storage.
type IngestionService struct {
	registry  driven.ProcessorRegistry
	storage   driven.ContextStorage
	extractor driven.MetadataExtractor
	tagger    driving.Tagger
}

// IngestionOption configures the ingestion service.
type IngestionOption func(*IngestionService)

// WithMetadataExtractor enables metadata enrichment during ingestion.
func WithMetadataExtractor(e driven.MetadataExtractor) IngestionOption {
	return func(s *IngestionService) { s.extractor = e }
}

// WithTagger enables tag enrichment during ingestion.
func WithTagger(t driving.Tagger) IngestionOption {
	return func(s *IngestionService) { s.tagger = t }
}

// NewIngestionService creates an ingestion service. registry and storage
// are required; metadata extraction and tagging are optional enrichments.
func NewIngestionService(registry driven.ProcessorRegistry, storage driven.ContextStorage, opts ...IngestionOption) (*IngestionService, error) {
	if registry == nil {
		return nil, fmt.Errorf("ingestion service: %w", domain.ErrInvalidInput)
	}
	if storage == nil {
		return nil, domain.ErrStorageUnavailable
	}

	s := &IngestionService{registry: registry, storage: storage}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// IngestFile processes one file and stores the resulting contexts.
// An unsupported extension returns domain.ErrUnsupportedType. A processor
// failure yields an empty slice and no error, matching the processors'
// isolation contract.
func (s *IngestionService) IngestFile(ctx context.Context, path string) ([]domain.ProcessedContext, error) {
	logger.Section("Ingest " + path)

	raw := &domain.RawContextProperties{
		ObjectID:      uuid.NewString(),
		Source:        domain.SourceLocalFile,
		ContentFormat: domain.FormatFile,
		ContentPath:   path,
	}

	contexts, ok := s.registry.Dispatch(ctx, raw)
	if !ok {
		return nil, fmt.Errorf("%s: %w", path, domain.ErrUnsupportedType)
	}

	fileMetadata := s.extractFileMetadata(path)

	for i := range contexts {
		s.enrich(ctx, &contexts[i], fileMetadata)
		if err := s.storage.SaveContext(ctx, &contexts[i]); err != nil {
			return nil, fmt.Errorf("storing context %s: %w", contexts[i].ID, err)
		}
	}

	logger.Info("Ingested %s: %d contexts", path, len(contexts))
	return contexts, nil
}

// IngestDirectory processes every supported file under dir. Per-file
// failures are logged and skipped; the count of stored contexts is
// returned.
func (s *IngestionService) IngestDirectory(ctx context.Context, dir string, recursive bool) (int, error) {
	supported := extensionSet(s.registry.SupportedExtensions())
	stored := 0

	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if !recursive && path != dir {
				return filepath.SkipDir
			}
			return nil
		}
		if _, ok := supported[strings.ToLower(filepath.Ext(path))]; !ok {
			return nil
		}

		contexts, err := s.IngestFile(ctx, path)
		if err != nil {
			logger.Warn("Skipping %s: %v", path, err)
			return nil
		}
		stored += len(contexts)
		return ctx.Err()
	})
	if err != nil {
		return stored, fmt.Errorf("walking %s: %w", dir, err)
	}

	return stored, nil
}

// Watch ingests supported files as they are created or written under dir
// until the context is cancelled. New subdirectories are watched as they
// appear.
func (s *IngestionService) Watch(ctx context.Context, dir string) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating watcher: %w", err)
	}
	defer watcher.Close()

	if err := addWatchTree(watcher, dir); err != nil {
		return err
	}

	supported := extensionSet(s.registry.SupportedExtensions())
	logger.Info("Watching %s", dir)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case event, open := <-watcher.Events:
			if !open {
				return nil
			}
			if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) {
				continue
			}

			info, err := os.Stat(event.Name)
			if err != nil {
				continue
			}
			if info.IsDir() {
				if event.Has(fsnotify.Create) {
					if err := addWatchTree(watcher, event.Name); err != nil {
						logger.Warn("Watching %s: %v", event.Name, err)
					}
				}
				continue
			}

			if _, ok := supported[strings.ToLower(filepath.Ext(event.Name))]; !ok {
				continue
			}
			if _, err := s.IngestFile(ctx, event.Name); err != nil {
				logger.Warn("Ingesting %s: %v", event.Name, err)
			}

		case err, open := <-watcher.Errors:
			if !open {
				return nil
			}
			logger.Warn("Watcher: %v", err)
		}
	}
}

// extractFileMetadata runs the metadata extractor, degrading to nil when
// the extractor is absent or fails.
func (s *IngestionService) extractFileMetadata(path string) map[string]any {
	if s.extractor == nil {
		return nil
	}
	metadata, err := s.extractor.Extract(path)
	if err != nil {
		logger.Warn("Extracting metadata for %s: %v", path, err)
		return nil
	}
	return metadata
}

// enrich folds extracted file metadata and auto-generated tags into a
// processed context. Processor-written metadata keys win over extracted
// ones.
func (s *IngestionService) enrich(ctx context.Context, pc *domain.ProcessedContext, fileMetadata map[string]any) {
	if pc.Properties.AdditionalMetadata == nil {
		pc.Properties.AdditionalMetadata = map[string]any{}
	}
	for k, v := range fileMetadata {
		if _, exists := pc.Properties.AdditionalMetadata[k]; !exists {
			pc.Properties.AdditionalMetadata[k] = v
		}
	}

	// The search filters and facets read these two keys.
	if _, ok := pc.Properties.AdditionalMetadata["file_extension"]; !ok {
		pc.Properties.AdditionalMetadata["file_extension"] = strings.ToLower(filepath.Ext(pc.Properties.ContentPath))
	}
	if _, ok := pc.Properties.AdditionalMetadata["created_time"]; !ok {
		pc.Properties.AdditionalMetadata["created_time"] = pc.Properties.CreateTime.Format("2006-01-02T15:04:05")
	}

	if s.tagger == nil {
		return
	}

	tags := pc.Properties.Tags
	tags = append(tags, s.tagger.TagsFromPath(pc.Properties.ContentPath)...)

	content := firstChunkText(pc)
	if content != "" {
		set := s.tagger.GenerateTags(ctx, content, pc.Properties.Title)
		tags = append(tags, set.Topics...)
		tags = append(tags, set.Keywords...)
		tags = append(tags, set.Entities...)
		tags = append(tags, set.Categories...)
	}

	pc.Properties.Tags = domain.NormaliseTags(tags, 0)
}

func firstChunkText(pc *domain.ProcessedContext) string {
	if len(pc.Chunks) > 0 {
		return pc.Chunks[0].Text
	}
	return pc.Properties.Summary
}

func extensionSet(exts []string) map[string]struct{} {
	set := make(map[string]struct{}, len(exts))
	for _, ext := range exts {
		set[strings.ToLower(ext)] = struct{}{}
	}
	return set
}

// addWatchTree registers dir and every subdirectory with the watcher.
func addWatchTree(watcher *fsnotify.Watcher, dir string) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if err := watcher.Add(path); err != nil {
				return fmt.Errorf("watching %s: %w", path, err)
			}
		}
		return nil
	})
}
