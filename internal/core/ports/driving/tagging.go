package driving

import (
	"context"

	"github.com/meridian-labs/ctxd/internal/core/domain"
)

// Tagger derives topics, keywords, entities and categories from content.
type Tagger interface {
	// GenerateTags asks the generation capability to tag the content.
	// It never fails: any error degrades to an empty TagSet.
	GenerateTags(ctx context.Context, content, title string) domain.TagSet

	// TagsFromPath derives cheap tags from a file path without any LLM
	// involvement.
	TagsFromPath(path string) []string
}
