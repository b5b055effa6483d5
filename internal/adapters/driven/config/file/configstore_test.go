package file

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *ConfigStore {
	t.Helper()
	s, err := NewConfigStore(t.TempDir())
	require.NoError(t, err)
	return s
}

func TestSetAndGet(t *testing.T) {
	s := newTestStore(t)

	require.NoError(t, s.Set("storage.backend", "sqlite"))
	require.NoError(t, s.Set("code.max_lines_per_chunk", 100))
	require.NoError(t, s.Set("tagging.enabled", true))
	require.NoError(t, s.Set("search.min_relevance", 0.3))

	assert.Equal(t, "sqlite", s.GetString("storage.backend"))
	assert.Equal(t, 100, s.GetInt("code.max_lines_per_chunk"))
	assert.True(t, s.GetBool("tagging.enabled"))
	assert.Equal(t, 0.3, s.GetFloat("search.min_relevance"))
}

func TestGetMissingKeys(t *testing.T) {
	s := newTestStore(t)

	_, ok := s.Get("nope")
	assert.False(t, ok)
	assert.Empty(t, s.GetString("nope"))
	assert.Zero(t, s.GetInt("nope"))
	assert.False(t, s.GetBool("nope"))
	assert.Zero(t, s.GetFloat("nope"))
}

func TestGetWrongType(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.Set("key", "a string"))

	assert.Zero(t, s.GetInt("key"))
	assert.False(t, s.GetBool("key"))
	assert.Zero(t, s.GetFloat("key"))
}

func TestPersistsAcrossReload(t *testing.T) {
	dir := t.TempDir()

	s, err := NewConfigStore(dir)
	require.NoError(t, err)
	require.NoError(t, s.Set("llm.provider", "ollama"))
	require.NoError(t, s.Set("llm.model", "llama3.2"))

	s2, err := NewConfigStore(dir)
	require.NoError(t, err)

	assert.Equal(t, "ollama", s2.GetString("llm.provider"))
	assert.Equal(t, "llama3.2", s2.GetString("llm.model"))
}

func TestSavesNestedTables(t *testing.T) {
	dir := t.TempDir()

	s, err := NewConfigStore(dir)
	require.NoError(t, err)
	require.NoError(t, s.Set("storage.backend", "sqlite"))
	require.NoError(t, s.Set("storage.data_dir", "/tmp/ctxd"))

	raw, err := os.ReadFile(filepath.Join(dir, "config.toml"))
	require.NoError(t, err)
	assert.Contains(t, string(raw), "[storage]")
	assert.NotContains(t, string(raw), `"storage.backend"`)
}

func TestLoadMissingFileStartsEmpty(t *testing.T) {
	s := newTestStore(t)
	_, ok := s.Get("anything")
	assert.False(t, ok)
}

func TestLoadMalformedFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.toml"), []byte("not = [valid"), 0600))

	_, err := NewConfigStore(dir)
	assert.Error(t, err)
}
