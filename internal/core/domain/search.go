package domain

import "time"

// SortPolicy selects how search results are ordered.
type SortPolicy string

const (
	// SortByRelevance orders by descending relevance score.
	SortByRelevance SortPolicy = "relevance"

	// SortByDate orders by descending raw creation-time string.
	SortByDate SortPolicy = "date"

	// SortByImportance orders by descending stored importance.
	SortByImportance SortPolicy = "importance"
)

// SearchOptions configures an enhanced search.
type SearchOptions struct {
	// TopK is the maximum number of results (default 10).
	TopK int

	// ContextTypes restricts results to these context types. This is the
	// only predicate the storage capability applies natively.
	ContextTypes []string

	// FileTypes restricts results by stored file extension (no leading dot).
	FileTypes []string

	// Tags keeps results carrying at least one of these tags.
	Tags []string

	// DateFrom and DateTo bound the stored creation timestamp. Records with
	// a missing or unparseable timestamp pass the date filter.
	DateFrom *time.Time
	DateTo   *time.Time

	// MinRelevance drops candidates whose relevance score (1 - distance)
	// falls below it.
	MinRelevance float64

	// SortBy selects the ordering policy (default SortByRelevance).
	SortBy SortPolicy
}

// SearchResult is a single enhanced-search hit.
type SearchResult struct {
	// ID identifies the matched processed context.
	ID string

	// Distance is the raw vector-similarity distance from storage.
	Distance float64

	// RelevanceScore is 1 - Distance.
	RelevanceScore float64

	// Importance is the stored importance (default 50 when absent).
	Importance int

	// Metadata is the stored metadata record for the context.
	Metadata map[string]any
}

// FacetCount is one aggregated facet entry.
type FacetCount struct {
	Name  string
	Count int
}

// DateBuckets is the four-bucket creation-date histogram, computed relative
// to the facet call's wall-clock time.
type DateBuckets struct {
	LastDay   int
	LastWeek  int
	LastMonth int
	Older     int
}

// Facets aggregates counts used to drive filtered-search UIs.
type Facets struct {
	// FileTypes counts results per file extension.
	FileTypes map[string]int

	// ContextTypes counts results per context type.
	ContextTypes map[string]int

	// Tags counts results per tag, sorted by descending count, capped at 20.
	// At most the first five tags of each result contribute.
	Tags []FacetCount

	// DateRanges is the creation-date histogram. Unparseable timestamps
	// contribute to no bucket.
	DateRanges DateBuckets
}
