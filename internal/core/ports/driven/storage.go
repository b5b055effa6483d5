package driven

import (
	"context"

	"github.com/meridian-labs/ctxd/internal/core/domain"
)

// ContextHit is one candidate returned by the storage capability's vector
// search.
type ContextHit struct {
	// ID identifies the stored processed context.
	ID string

	// Distance is the vector-similarity distance (relevance is 1 - Distance).
	Distance float64

	// Metadata is the stored metadata record. The enhanced search service
	// reads file_extension, tags, created_time, importance, context_type,
	// title and summary from it.
	Metadata map[string]any
}

// ContextStorage is the narrow contract this core consumes from the
// persistence engines. Filtering beyond context types, scoring and sorting
// all happen in-process on the caller's side.
type ContextStorage interface {
	// SearchContext performs a similarity search pre-filtered by context
	// types (the only predicate the storage layer understands natively).
	// An empty query is valid and returns an unranked sample.
	SearchContext(ctx context.Context, query string, topK int, contextTypes []string) ([]ContextHit, error)

	// GetContextByID resolves a stored context. Returns domain.ErrNotFound
	// when absent.
	GetContextByID(ctx context.Context, id string) (*domain.ProcessedContext, error)

	// SaveContext stores or replaces a processed context.
	SaveContext(ctx context.Context, pc *domain.ProcessedContext) error

	// DeleteContext removes a stored context.
	DeleteContext(ctx context.Context, id string) error

	// Count returns the number of stored contexts.
	Count(ctx context.Context) (int, error)

	// Close releases resources.
	Close() error
}
