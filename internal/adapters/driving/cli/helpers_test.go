package cli

import (
	"context"
	"errors"

	"github.com/meridian-labs/ctxd/internal/adapters/driven/storage/memory"
	"github.com/meridian-labs/ctxd/internal/core/domain"
	"github.com/meridian-labs/ctxd/internal/core/services"
	"github.com/meridian-labs/ctxd/internal/metadata"
	"github.com/meridian-labs/ctxd/internal/processors"
	"github.com/meridian-labs/ctxd/internal/processors/code"
	"github.com/meridian-labs/ctxd/internal/processors/structured"
)

// setupTestServices swaps the package-level services for test doubles and
// returns a cleanup restoring the originals.
func setupTestServices() func() {
	oldConfig := configStore
	oldStorage := contextStorage
	oldRegistry := processorRegistry
	oldSearch := searchService
	oldIngest := ingestService
	oldExtractor := metadataExtractor
	oldTagging := taggingService

	configStore = &fakeConfigStore{data: make(map[string]any)}
	contextStorage = memory.NewStore()
	processorRegistry = processors.NewRegistry(code.New(), structured.New())
	searchService = &fakeSearcher{}
	ingestService = &fakeIngestor{}
	metadataExtractor = metadata.NewExtractor()
	taggingService = services.NewTaggingService(nil)

	return func() {
		configStore = oldConfig
		contextStorage = oldStorage
		processorRegistry = oldRegistry
		searchService = oldSearch
		ingestService = oldIngest
		metadataExtractor = oldExtractor
		taggingService = oldTagging
	}
}

func sampleResults() []domain.SearchResult {
	return []domain.SearchResult{
		{
			ID:             "ctx-1",
			Distance:       0.1,
			RelevanceScore: 0.9,
			Importance:     70,
			Metadata: map[string]any{
				"title":   "Quarterly Report",
				"summary": "Excel sheet 'Sales' with 40 rows and 6 columns",
				"tags":    []string{"finance", "excel"},
			},
		},
		{
			ID:             "ctx-2",
			Distance:       0.5,
			RelevanceScore: 0.5,
			Importance:     50,
			Metadata:       map[string]any{},
		},
	}
}

type fakeSearcher struct {
	err error
}

func (f *fakeSearcher) Search(_ context.Context, _ string, _ domain.SearchOptions) ([]domain.SearchResult, error) {
	if f.err != nil {
		return nil, f.err
	}
	return sampleResults(), nil
}

func (f *fakeSearcher) SearchByTags(_ context.Context, _ []string, _ int, _ bool) ([]domain.SearchResult, error) {
	if f.err != nil {
		return nil, f.err
	}
	return sampleResults(), nil
}

func (f *fakeSearcher) SearchRecent(_ context.Context, _, _ int, _ []string) ([]domain.SearchResult, error) {
	if f.err != nil {
		return nil, f.err
	}
	return sampleResults(), nil
}

func (f *fakeSearcher) SearchSimilar(_ context.Context, _ string, _ int) ([]domain.SearchResult, error) {
	if f.err != nil {
		return nil, f.err
	}
	return sampleResults()[1:], nil
}

func (f *fakeSearcher) GetFacets(_ context.Context, _ string, _ []string) (*domain.Facets, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &domain.Facets{
		FileTypes:    map[string]int{"xlsx": 1, "py": 2},
		ContextTypes: map[string]int{"semantic_context": 3},
		Tags:         []domain.FacetCount{{Name: "finance", Count: 2}},
		DateRanges:   domain.DateBuckets{LastWeek: 3},
	}, nil
}

type fakeIngestor struct{}

func (f *fakeIngestor) IngestFile(_ context.Context, path string) ([]domain.ProcessedContext, error) {
	if path == "" {
		return nil, errors.New("empty path")
	}
	return []domain.ProcessedContext{{ID: "ctx-1"}}, nil
}

func (f *fakeIngestor) IngestDirectory(_ context.Context, _ string, _ bool) (int, error) {
	return 3, nil
}

func (f *fakeIngestor) Watch(_ context.Context, _ string) error {
	return nil
}

type fakeConfigStore struct {
	data map[string]any
}

func (f *fakeConfigStore) Get(key string) (any, bool) {
	val, ok := f.data[key]
	return val, ok
}

func (f *fakeConfigStore) GetString(key string) string {
	s, _ := f.data[key].(string)
	return s
}

func (f *fakeConfigStore) GetInt(key string) int {
	n, _ := f.data[key].(int)
	return n
}

func (f *fakeConfigStore) GetBool(key string) bool {
	b, _ := f.data[key].(bool)
	return b
}

func (f *fakeConfigStore) Set(key string, value any) error {
	f.data[key] = value
	return nil
}

func (f *fakeConfigStore) Save() error { return nil }
func (f *fakeConfigStore) Load() error { return nil }
