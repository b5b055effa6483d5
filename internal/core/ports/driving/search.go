package driving

import (
	"context"

	"github.com/meridian-labs/ctxd/internal/core/domain"
)

// Searcher composes vector similarity with structured filters, scoring,
// sorting and facet aggregation.
type Searcher interface {
	// Search performs an enhanced search with the given filters.
	Search(ctx context.Context, query string, opts domain.SearchOptions) ([]domain.SearchResult, error)

	// SearchByTags searches by tags only. With matchAll, every returned
	// result's stored tag set is a superset of tags.
	SearchByTags(ctx context.Context, tags []string, topK int, matchAll bool) ([]domain.SearchResult, error)

	// SearchRecent returns content created within the last days days,
	// newest first, regardless of text.
	SearchRecent(ctx context.Context, days, topK int, contextTypes []string) ([]domain.SearchResult, error)

	// SearchSimilar finds content similar to a stored context, excluding
	// the context itself.
	SearchSimilar(ctx context.Context, contextID string, topK int) ([]domain.SearchResult, error)

	// GetFacets aggregates facet counts, optionally scoped by a query.
	GetFacets(ctx context.Context, query string, contextTypes []string) (*domain.Facets, error)
}
