package sqlite

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meridian-labs/ctxd/internal/core/domain"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := NewStore(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func sampleContext(id, title, summary string, tags []string) *domain.ProcessedContext {
	now := time.Now().UTC().Truncate(time.Second)
	return &domain.ProcessedContext{
		ID: id,
		Properties: domain.ContextProperties{
			ContextType:   domain.TypeSemanticContext,
			Source:        domain.SourceLocalFile,
			CreateTime:    now,
			UpdateTime:    now,
			ContentPath:   "/data/" + id + ".md",
			ContentFormat: domain.FormatText,
			Title:         title,
			Summary:       summary,
			Tags:          tags,
			AdditionalMetadata: map[string]any{
				"file_extension": ".md",
				"created_time":   now.Format(time.RFC3339),
			},
		},
		Chunks: []domain.Chunk{
			{Text: summary, Index: 0, Keywords: []string{"k"}},
			{Text: "second chunk", Index: 1},
		},
		ExtractedData: domain.ExtractedData{
			Title:       title,
			Summary:     summary,
			ContextType: domain.TypeSemanticContext,
			Confidence:  90,
			Importance:  70,
		},
	}
}

func TestSaveAndGetRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	pc := sampleContext("a", "Alpha", "first document about indexing", []string{"x"})
	require.NoError(t, s.SaveContext(ctx, pc))

	got, err := s.GetContextByID(ctx, "a")
	require.NoError(t, err)

	assert.Equal(t, "Alpha", got.Properties.Title)
	assert.Equal(t, domain.TypeSemanticContext, got.Properties.ContextType)
	assert.Equal(t, []string{"x"}, got.Properties.Tags)
	assert.Equal(t, ".md", got.Properties.AdditionalMetadata["file_extension"])
	assert.Equal(t, 70, got.ExtractedData.Importance)

	require.Len(t, got.Chunks, 2)
	assert.Equal(t, 0, got.Chunks[0].Index)
	assert.Equal(t, []string{"k"}, got.Chunks[0].Keywords)
	assert.Equal(t, "second chunk", got.Chunks[1].Text)
}

func TestSaveReplacesChunks(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	pc := sampleContext("a", "Alpha", "doc", nil)
	require.NoError(t, s.SaveContext(ctx, pc))

	pc.Chunks = []domain.Chunk{{Text: "only one now", Index: 0}}
	require.NoError(t, s.SaveContext(ctx, pc))

	got, err := s.GetContextByID(ctx, "a")
	require.NoError(t, err)
	require.Len(t, got.Chunks, 1)
	assert.Equal(t, "only one now", got.Chunks[0].Text)
}

func TestGetMissing(t *testing.T) {
	s := newTestStore(t)
	_, err := s.GetContextByID(context.Background(), "nope")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestDeleteCascades(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.SaveContext(ctx, sampleContext("a", "Alpha", "doc", nil)))
	require.NoError(t, s.DeleteContext(ctx, "a"))

	_, err := s.GetContextByID(ctx, "a")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	assert.ErrorIs(t, s.DeleteContext(ctx, "a"), domain.ErrNotFound)
}

func TestCount(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	n, err := s.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	require.NoError(t, s.SaveContext(ctx, sampleContext("a", "Alpha", "doc", nil)))
	require.NoError(t, s.SaveContext(ctx, sampleContext("b", "Beta", "doc", nil)))

	n, err = s.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestSearchContextRanksByOverlap(t *testing.T) {
	s := newTestStore(t)
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
}

func TestSearchContextMatchesChunkText(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	pc := sampleContext("a", "Alpha", "nothing relevant", nil)
	pc.Chunks = []domain.Chunk{{Text: "the word zanzibar appears here", Index: 0}}
	require.NoError(t, s.SaveContext(ctx, pc))

	hits, err := s.SearchContext(ctx, "zanzibar", 10, nil)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.InDelta(t, 0.0, hits[0].Distance, 1e-9)
}

func TestSearchContextTypeFilter(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.SaveContext(ctx, sampleContext("a", "Alpha", "doc", nil)))

	hits, err := s.SearchContext(ctx, "doc", 10, []string{"semantic_context"})
	require.NoError(t, err)
	assert.Len(t, hits, 1)

	hits, err = s.SearchContext(ctx, "doc", 10, []string{"other"})
	require.NoError(t, err)
	assert.Empty(t, hits)
}

func TestSearchContextMetadata(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.SaveContext(ctx, sampleContext("a", "Alpha", "doc", []string{"x", "y"})))

	hits, err := s.SearchContext(ctx, "doc", 1, nil)
	require.NoError(t, err)
	require.Len(t, hits, 1)

	md := hits[0].Metadata
	assert.Equal(t, "semantic_context", md["context_type"])
	assert.Equal(t, "Alpha", md["title"])
	assert.Equal(t, []string{"x", "y"}, md["tags"])
	assert.Equal(t, ".md", md["file_extension"])
	assert.NotEmpty(t, md["created_time"])
	assert.Equal(t, 70, md["importance"])
}

func TestPersistenceAcrossReopen(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	s, err := NewStore(dir)
	require.NoError(t, err)
	require.NoError(t, s.SaveContext(ctx, sampleContext("a", "Alpha", "doc", nil)))
	require.NoError(t, s.Close())

	s2, err := NewStore(dir)
	require.NoError(t, err)
	defer s2.Close()

	got, err := s2.GetContextByID(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, "Alpha", got.Properties.Title)
}
