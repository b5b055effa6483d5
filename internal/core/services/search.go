package services

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/meridian-labs/ctxd/internal/core/domain"
	"github.com/meridian-labs/ctxd/internal/core/ports/driven"
	"github.com/meridian-labs/ctxd/internal/core/ports/driving"
	"github.com/meridian-labs/ctxd/internal/logger"
)

// Ensure SearchService implements the interface.
var _ driving.Searcher = (*SearchService)(nil)

const (
	// DefaultTopK is the result cap when the caller does not set one.
	DefaultTopK = 10

	// defaultImportance is assumed for records without a stored value.
	defaultImportance = 50

	// facetSampleSize is how many candidates facet aggregation inspects.
	facetSampleSize = 100

	// maxFacetTags caps the tag facet list.
	maxFacetTags = 20

	// maxTagsPerResult caps each result's contribution to the tag facet.
	maxTagsPerResult = 5
)

// timeLayouts are tried in order when parsing stored timestamps.
var timeLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02",
}

// SearchService composes storage similarity search with in-process
// filtering, scoring, sorting and facet aggregation.
type SearchService struct {
	storage driven.ContextStorage
}

// NewSearchService creates a search service backed by storage.
func NewSearchService(storage driven.ContextStorage) (*SearchService, error) {
	if storage == nil {
		return nil, domain.ErrStorageUnavailable
	}
	return &SearchService{storage: storage}, nil
}

// Search performs an enhanced search: the storage layer is over-fetched
// at twice the requested size, then relevance, file-type, tag and date
// predicates run in-process before sorting and truncation.
func (s *SearchService) Search(ctx context.Context, query string, opts domain.SearchOptions) ([]domain.SearchResult, error) {
	topK := opts.TopK
	if topK <= 0 {
		topK = DefaultTopK
	}

	logger.Debug("Search: query=%q topK=%d sort=%s", query, topK, opts.SortBy)

	hits, err := s.storage.SearchContext(ctx, query, topK*2, opts.ContextTypes)
	if err != nil {
		return nil, fmt.Errorf("searching storage: %w", err)
	}

	results := make([]domain.SearchResult, 0, len(hits))
	for _, hit := range hits {
		relevance := 1.0 - hit.Distance
		if relevance < opts.MinRelevance {
			continue
		}
		if !matchesFileType(hit.Metadata, opts.FileTypes) {
			continue
		}
		if !matchesAnyTag(hit.Metadata, opts.Tags) {
			continue
		}
		if !matchesDateRange(hit.Metadata, opts.DateFrom, opts.DateTo) {
			continue
		}

		results = append(results, domain.SearchResult{
			ID:             hit.ID,
			Distance:       hit.Distance,
			RelevanceScore: relevance,
			Importance:     getInt(hit.Metadata, "importance", defaultImportance),
			Metadata:       hit.Metadata,
		})
	}

	sortResults(results, opts.SortBy)

	if len(results) > topK {
		results = results[:topK]
	}
	return results, nil
}

// SearchByTags searches using the tags themselves as the query text.
// With matchAll the tag predicate is withheld from the first pass and a
// stricter superset check runs on the ranked results instead.
func (s *SearchService) SearchByTags(ctx context.Context, tags []string, topK int, matchAll bool) ([]domain.SearchResult, error) {
	if topK <= 0 {
		topK = DefaultTopK
	}

	query := strings.Join(tags, " ")
	opts := domain.SearchOptions{TopK: topK}
	if !matchAll {
		opts.Tags = tags
	}

	results, err := s.Search(ctx, query, opts)
	if err != nil {
		return nil, err
	}

	if matchAll {
		filtered := results[:0]
		for _, r := range results {
			if hasAllTags(r.Metadata, tags) {
				filtered = append(filtered, r)
			}
		}
		results = filtered
		if len(results) > topK {
			results = results[:topK]
		}
	}

	return results, nil
}

// SearchRecent returns content created within the last days days, newest
// first, using an empty query so text similarity plays no part.
func (s *SearchService) SearchRecent(ctx context.Context, days, topK int, contextTypes []string) ([]domain.SearchResult, error) {
	if days <= 0 {
		days = 7
	}
	if topK <= 0 {
		topK = 20
	}

	from := time.Now().AddDate(0, 0, -days)
	return s.Search(ctx, "", domain.SearchOptions{
		TopK:         topK,
		ContextTypes: contextTypes,
		DateFrom:     &from,
		SortBy:       domain.SortByDate,
	})
}

// SearchSimilar finds content similar to a stored context using its
// summary (or title) as the query, excluding the context itself.
func (s *SearchService) SearchSimilar(ctx context.Context, contextID string, topK int) ([]domain.SearchResult, error) {
	if topK <= 0 {
		topK = DefaultTopK
	}

	pc, err := s.storage.GetContextByID(ctx, contextID)
	if err != nil {
		return nil, fmt.Errorf("resolving context %s: %w", contextID, err)
	}

	query := pc.Properties.Summary
	if query == "" {
		query = pc.Properties.Title
	}
	if query == "" {
		return nil, nil
	}

	results, err := s.Search(ctx, query, domain.SearchOptions{TopK: topK + 1})
	if err != nil {
		return nil, err
	}

	filtered := results[:0]
	for _, r := range results {
		if r.ID != contextID {
			filtered = append(filtered, r)
		}
	}
	if len(filtered) > topK {
		filtered = filtered[:topK]
	}
	return filtered, nil
}

// GetFacets aggregates file-type, context-type, tag and date-bucket
// counts over a sample of up to 100 candidates. With a query the sample
// is a ranked search; without one it is an unranked storage sample.
func (s *SearchService) GetFacets(ctx context.Context, query string, contextTypes []string) (*domain.Facets, error) {
	var sample []map[string]any

	if query != "" {
		results, err := s.Search(ctx, query, domain.SearchOptions{
			TopK:         facetSampleSize,
			ContextTypes: contextTypes,
		})
		if err != nil {
			return nil, err
		}
		for _, r := range results {
			sample = append(sample, r.Metadata)
		}
	} else {
		hits, err := s.storage.SearchContext(ctx, "", facetSampleSize, nil)
		if err != nil {
			return nil, fmt.Errorf("sampling storage: %w", err)
		}
		for _, h := range hits {
			sample = append(sample, h.Metadata)
		}
	}

	facets := &domain.Facets{
		FileTypes:    map[string]int{},
		ContextTypes: map[string]int{},
	}
	tagCounts := map[string]int{}
	now := time.Now()

	for _, metadata := range sample {
		ext := strings.TrimPrefix(getString(metadata, "file_extension", "unknown"), ".")
		facets.FileTypes[ext]++

		facets.ContextTypes[getString(metadata, "context_type", "unknown")]++

		for i, tag := range getStrings(metadata, "tags") {
			if i == maxTagsPerResult {
				break
			}
			tagCounts[tag]++
		}

		if created, ok := parseTime(getString(metadata, "created_time", "")); ok {
			switch daysAgo := int(now.Sub(created).Hours() / 24); {
			case daysAgo < 1:
				facets.DateRanges.LastDay++
			case daysAgo < 7:
				facets.DateRanges.LastWeek++
			case daysAgo < 30:
				facets.DateRanges.LastMonth++
			default:
				facets.DateRanges.Older++
			}
		}
	}

	facets.Tags = topTags(tagCounts, maxFacetTags)
	return facets, nil
}

// sortResults orders results by the requested policy, descending.
func sortResults(results []domain.SearchResult, policy domain.SortPolicy) {
	switch policy {
	case domain.SortByDate:
		sort.SliceStable(results, func(i, j int) bool {
			return getString(results[i].Metadata, "created_time", "") >
				getString(results[j].Metadata, "created_time", "")
		})
	case domain.SortByImportance:
		sort.SliceStable(results, func(i, j int) bool {
			return results[i].Importance > results[j].Importance
		})
	default:
		sort.SliceStable(results, func(i, j int) bool {
			return results[i].RelevanceScore > results[j].RelevanceScore
		})
	}
}

// topTags sorts tag counts descending (ties by name) and caps the list.
func topTags(counts map[string]int, limit int) []domain.FacetCount {
	tags := make([]domain.FacetCount, 0, len(counts))
	for name, count := range counts {
		tags = append(tags, domain.FacetCount{Name: name, Count: count})
	}
	sort.Slice(tags, func(i, j int) bool {
		if tags[i].Count != tags[j].Count {
			return tags[i].Count > tags[j].Count
		}
		return tags[i].Name < tags[j].Name
	})
	if len(tags) > limit {
		tags = tags[:limit]
	}
	return tags
}

func matchesFileType(metadata map[string]any, fileTypes []string) bool {
	if len(fileTypes) == 0 {
		return true
	}
	ext := strings.TrimPrefix(getString(metadata, "file_extension", ""), ".")
	for _, ft := range fileTypes {
		if ext == strings.TrimPrefix(ft, ".") {
			return true
		}
	}
	return false
}

func matchesAnyTag(metadata map[string]any, tags []string) bool {
	if len(tags) == 0 {
		return true
	}
	stored := getStrings(metadata, "tags")
	for _, want := range tags {
		for _, have := range stored {
			if want == have {
				return true
			}
		}
	}
	return false
}

// matchesDateRange bounds the stored creation time. Records with a
// missing or unparseable timestamp pass the filter.
func matchesDateRange(metadata map[string]any, from, to *time.Time) bool {
	if from == nil && to == nil {
		return true
	}
	created, ok := parseTime(getString(metadata, "created_time", ""))
	if !ok {
		return true
	}
	if from != nil && created.Before(*from) {
		return false
	}
	if to != nil && created.After(*to) {
		return false
	}
	return true
}

func hasAllTags(metadata map[string]any, tags []string) bool {
	stored := getStrings(metadata, "tags")
	for _, want := range tags {
		found := false
		for _, have := range stored {
			if want == have {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

func parseTime(value string) (time.Time, bool) {
	if value == "" {
		return time.Time{}, false
	}
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

func getString(metadata map[string]any, key, fallback string) string {
	if v, ok := metadata[key].(string); ok {
		return v
	}
	return fallback
}

func getStrings(metadata map[string]any, key string) []string {
	switch v := metadata[key].(type) {
	case []string:
		return v
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}

func getInt(metadata map[string]any, key string, fallback int) int {
	switch v := metadata[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	default:
		return fallback
	}
}
