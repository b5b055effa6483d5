package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meridian-labs/ctxd/internal/core/domain"
)

func sampleContext(id, title, summary string, tags []string) *domain.ProcessedContext {
	return &domain.ProcessedContext{
		ID: id,
		Properties: domain.ContextProperties{
			ContextType: domain.TypeSemanticContext,
			Title:       title,
			Summary:     summary,
			Tags:        tags,
			ContentPath: "/data/" + id + ".txt",
			CreateTime:  time.Now(),
		},
		Chunks:        []domain.Chunk{{Text: summary, Index: 0}},
		ExtractedData: domain.ExtractedData{Importance: 60},
	}
}

func TestSaveAndGet(t *testing.T) {
	s := NewStore()
	ctx := context.Background()

	pc := sampleContext("a", "Alpha", "first document", nil)
	require.NoError(t, s.SaveContext(ctx, pc))

	got, err := s.GetContextByID(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, "Alpha", got.Properties.Title)

	n, err := s.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestGetMissing(t *testing.T) {
	s := NewStore()
	_, err := s.GetContextByID(context.Background(), "nope")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestSaveInvalid(t *testing.T) {
	s := NewStore()
	assert.ErrorIs(t, s.SaveContext(context.Background(), nil), domain.ErrInvalidInput)
	assert.ErrorIs(t, s.SaveContext(context.Background(), &domain.ProcessedContext{}), domain.ErrInvalidInput)
}

func TestDelete(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	require.NoError(t, s.SaveContext(ctx, sampleContext("a", "Alpha", "doc", nil)))

	require.NoError(t, s.DeleteContext(ctx, "a"))
	assert.ErrorIs(t, s.DeleteContext(ctx, "a"), domain.ErrNotFound)
}

func TestSearchContextRanksByOverlap(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	require.NoError(t, s.SaveContext(ctx, sampleContext("full", "Go CLI", "a command line tool written in go", nil)))
	require.NoError(t, s.SaveContext(ctx, sampleContext("partial", "Parser", "a go library", nil)))
	require.NoError(t, s.SaveContext(ctx, sampleContext("none", "Recipes", "cooking with fire", nil)))

	hits, err := s.SearchContext(ctx, "go tool", 10, nil)
	require.NoError(t, err)
	require.Len(t, hits, 3)

	assert.Equal(t, "full", hits[0].ID)
	assert.InDelta(t, 0.0, hits[0].Distance, 1e-9)
	assert.Equal(t, "partial", hits[1].ID)
	assert.InDelta(t, 0.5, hits[1].Distance, 1e-9)
	assert.Equal(t, "none", hits[2].ID)
	assert.InDelta(t, 1.0, hits[2].Distance, 1e-9)
}

func TestSearchContextEmptyQuerySamples(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	require.NoError(t, s.SaveContext(ctx, sampleContext("a", "Alpha", "doc", nil)))
	require.NoError(t, s.SaveContext(ctx, sampleContext("b", "Beta", "doc", nil)))

	hits, err := s.SearchContext(ctx, "", 10, nil)
	require.NoError(t, err)
	assert.Len(t, hits, 2)
	for _, h := range hits {
		assert.Equal(t, 1.0, h.Distance)
	}
}

func TestSearchContextTypeFilter(t *testing.T) {
	s := NewStore()
	ctx := context.Background()

	pc := sampleContext("a", "Alpha", "doc", nil)
	require.NoError(t, s.SaveContext(ctx, pc))

	hits, err := s.SearchContext(ctx, "doc", 10, []string{"semantic_context"})
	require.NoError(t, err)
	assert.Len(t, hits, 1)

	hits, err = s.SearchContext(ctx, "doc", 10, []string{"other_type"})
	require.NoError(t, err)
	assert.Empty(t, hits)
}

func TestSearchContextTopK(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	for _, id := range []string{"a", "b", "c", "d"} {
		require.NoError(t, s.SaveContext(ctx, sampleContext(id, id, "doc", nil)))
	}

	hits, err := s.SearchContext(ctx, "doc", 2, nil)
	require.NoError(t, err)
	assert.Len(t, hits, 2)
}

func TestHitMetadata(t *testing.T) {
	s := NewStore()
	ctx := context.Background()

	pc := sampleContext("a", "Alpha", "doc", []string{"x", "y"})
	pc.Properties.AdditionalMetadata = map[string]any{
		"file_extension": ".md",
		"created_time":   "2026-08-01T10:00:00",
	}
	require.NoError(t, s.SaveContext(ctx, pc))

	hits, err := s.SearchContext(ctx, "doc", 1, nil)
	require.NoError(t, err)
	require.Len(t, hits, 1)

	md := hits[0].Metadata
	assert.Equal(t, "semantic_context", md["context_type"])
	assert.Equal(t, "Alpha", md["title"])
	assert.Equal(t, []string{"x", "y"}, md["tags"])
	assert.Equal(t, ".md", md["file_extension"])
	assert.Equal(t, "2026-08-01T10:00:00", md["created_time"])
	assert.Equal(t, 60, md["importance"])
}

func TestHitMetadataFallbacks(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	require.NoError(t, s.SaveContext(ctx, sampleContext("a", "Alpha", "doc", nil)))

	hits, err := s.SearchContext(ctx, "doc", 1, nil)
	require.NoError(t, err)
	require.Len(t, hits, 1)

	md := hits[0].Metadata
	assert.Equal(t, ".txt", md["file_extension"])
	assert.NotEmpty(t, md["created_time"])
}
