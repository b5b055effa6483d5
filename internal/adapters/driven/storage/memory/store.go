// Package memory provides an in-memory context store. It is the default
// backend for ad-hoc use and tests; contexts are lost on exit.
//
// Similarity is approximated by query-token overlap against the stored
// text (title, summary, tags, chunk bodies), with distance reported as
// one minus the overlap score so downstream relevance scoring behaves
// like a vector backend.
package memory

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/meridian-labs/ctxd/internal/core/domain"
	"github.com/meridian-labs/ctxd/internal/core/ports/driven"
)

// Ensure Store implements the interface.
var _ driven.ContextStorage = (*Store)(nil)

// Store is a thread-safe in-memory context store.
type Store struct {
	mu       sync.RWMutex
	contexts map[string]*domain.ProcessedContext
}

// NewStore creates an empty in-memory store.
func NewStore() *Store {
	return &Store{contexts: make(map[string]*domain.ProcessedContext)}
}

// SearchContext scores every stored context against the query and
// returns the topK closest. An empty query returns an unranked sample
// with maximal distance.
func (s *Store) SearchContext(_ context.Context, query string, topK int, contextTypes []string) ([]driven.ContextHit, error) {
	if topK <= 0 {
		return nil, nil
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	tokens := tokenize(query)
	hits := make([]driven.ContextHit, 0, len(s.contexts))

	for _, pc := range s.contexts {
		if !matchesContextType(pc, contextTypes) {
			continue
		}
		hits = append(hits, driven.ContextHit{
			ID:       pc.ID,
			Distance: 1.0 - overlapScore(tokens, searchableText(pc)),
			Metadata: hitMetadata(pc),
		})
	}

	sort.Slice(hits, func(i, j int) bool {
		if hits[i].Distance != hits[j].Distance {
			return hits[i].Distance < hits[j].Distance
		}
		return hits[i].ID < hits[j].ID
	})

	if len(hits) > topK {
		hits = hits[:topK]
	}
	return hits, nil
}

// GetContextByID resolves a stored context.
func (s *Store) GetContextByID(_ context.Context, id string) (*domain.ProcessedContext, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	pc, ok := s.contexts[id]
	if !ok {
		return nil, fmt.Errorf("context %s: %w", id, domain.ErrNotFound)
	}
	return pc, nil
}

// SaveContext stores or replaces a processed context.
func (s *Store) SaveContext(_ context.Context, pc *domain.ProcessedContext) error {
	if pc == nil || pc.ID == "" {
		return fmt.Errorf("saving context: %w", domain.ErrInvalidInput)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.contexts[pc.ID] = pc
	return nil
}

// DeleteContext removes a stored context.
func (s *Store) DeleteContext(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.contexts[id]; !ok {
		return fmt.Errorf("context %s: %w", id, domain.ErrNotFound)
	}
	delete(s.contexts, id)
	return nil
}

// Count returns the number of stored contexts.
func (s *Store) Count(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.contexts), nil
}

// Close is a no-op for the in-memory store.
func (s *Store) Close() error {
	return nil
}

func matchesContextType(pc *domain.ProcessedContext, contextTypes []string) bool {
	if len(contextTypes) == 0 {
		return true
	}
	for _, ct := range contextTypes {
		if string(pc.Properties.ContextType) == ct {
			return true
		}
	}
	return false
}

// searchableText concatenates the fields similarity scoring looks at.
func searchableText(pc *domain.ProcessedContext) string {
	var b strings.Builder
	b.WriteString(pc.Properties.Title)
	b.WriteString(" ")
	b.WriteString(pc.Properties.Summary)
	for _, tag := range pc.Properties.Tags {
		b.WriteString(" ")
		b.WriteString(tag)
	}
	for _, chunk := range pc.Chunks {
		b.WriteString(" ")
		b.WriteString(chunk.Text)
	}
	return strings.ToLower(b.String())
}

// overlapScore is the fraction of query tokens present in the text.
func overlapScore(tokens []string, text string) float64 {
	if len(tokens) == 0 {
		return 0
	}
	matched := 0
	for _, token := range tokens {
		if strings.Contains(text, token) {
			matched++
		}
	}
	return float64(matched) / float64(len(tokens))
}

func tokenize(query string) []string {
	return strings.Fields(strings.ToLower(query))
}

// hitMetadata builds the metadata record the search service filters on.
func hitMetadata(pc *domain.ProcessedContext) map[string]any {
	metadata := map[string]any{
		"context_type": string(pc.Properties.ContextType),
		"title":        pc.Properties.Title,
		"summary":      pc.Properties.Summary,
		"tags":         pc.Properties.Tags,
		"importance":   pc.ExtractedData.Importance,
	}

	extra := pc.Properties.AdditionalMetadata
	if ext, ok := extra["file_extension"].(string); ok {
		metadata["file_extension"] = ext
	} else if pc.Properties.ContentPath != "" {
		metadata["file_extension"] = strings.ToLower(filepath.Ext(pc.Properties.ContentPath))
	}

	if created, ok := extra["created_time"].(string); ok {
		metadata["created_time"] = created
	} else if !pc.Properties.CreateTime.IsZero() {
		metadata["created_time"] = pc.Properties.CreateTime.Format(time.RFC3339)
	}

	return metadata
}
