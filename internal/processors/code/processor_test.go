package code

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meridian-labs/ctxd/internal/core/domain"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func rawFor(path string) *domain.RawContextProperties {
	return &domain.RawContextProperties{
		ObjectID:    "obj-1",
		Source:      domain.SourceLocalFile,
		ContentPath: path,
	}
}

const pythonSample = `import os
from collections import OrderedDict

def load(path):
    return open(path).read()

def parse(data):
    return data.splitlines()

class Store:
    def save(self, item):
        pass

def main():
    pass
`

func TestProcessPythonElements(t *testing.T) {
	path := writeFile(t, "tool.py", pythonSample)
	p := New()

	results := p.Process(context.Background(), rawFor(path))
	require.Len(t, results, 1)

	pc := results[0]
	assert.Equal(t, "obj-1", pc.ID)
	assert.Equal(t, domain.TypeSemanticContext, pc.Properties.ContextType)
	assert.Equal(t, "tool.py", pc.ExtractedData.Title)
	assert.Equal(t, 90, pc.ExtractedData.Confidence)
	assert.Equal(t, 80, pc.ExtractedData.Importance)

	// Overview + one chunk per def/class, indexed densely from zero.
	require.Len(t, pc.Chunks, 6)
	for i, ch := range pc.Chunks {
		assert.Equal(t, i, ch.Index)
	}

	assert.True(t, strings.HasPrefix(pc.Chunks[0].Text, "Code File: tool.py\nLanguage: python\n"))
	assert.Contains(t, pc.Chunks[1].Text, "Function: load")
	assert.Contains(t, pc.Chunks[1].Text, "Lines ")
	assert.Contains(t, pc.Chunks[3].Text, "Class: Store")

	// The nested method is its own element, so the class chunk ends where
	// it begins.
	assert.Contains(t, pc.Chunks[4].Text, "Function: save")
	assert.NotContains(t, pc.Chunks[3].Text, "def save")
}

func TestProcessPythonMetadata(t *testing.T) {
	path := writeFile(t, "tool.py", pythonSample)
	p := New()

	results := p.Process(context.Background(), rawFor(path))
	require.Len(t, results, 1)

	md := results[0].Properties.AdditionalMetadata
	assert.Equal(t, "tool.py", md["file_name"])
	assert.Equal(t, "python", md["language"])
	assert.Equal(t, 2, md["num_imports"])

	// The nested "def save" counts as a function: line-anchored patterns
	// do not understand scope.
	assert.Equal(t, 4, md["num_functions"])
	assert.Equal(t, 1, md["num_classes"])
	assert.Equal(t, []string{"load", "parse", "save", "main"}, md["functions"])
	assert.Equal(t, []string{"Store"}, md["classes"])
	assert.Equal(t, "code_processor", md["processor"])

	summary := results[0].ExtractedData.Summary
	assert.Contains(t, summary, "Python code with")
	assert.Contains(t, summary, "4 functions")
	assert.Contains(t, summary, "1 classes")
}

func TestProcessGoStructs(t *testing.T) {
	src := `package store

import "sync"

type Item struct {
	Name string
}

func NewItem(name string) *Item {
	return &Item{Name: name}
}

func (i *Item) Reset() {
	i.Name = ""
}
`
	path := writeFile(t, "store.go", src)
	p := New()

	results := p.Process(context.Background(), rawFor(path))
	require.Len(t, results, 1)

	pc := results[0]
	assert.Contains(t, pc.Chunks[1].Text, "Struct: Item")
	assert.Contains(t, pc.Chunks[2].Text, "Function: NewItem")
	// Method receiver syntax still resolves to the method name.
	assert.Contains(t, pc.Chunks[3].Text, "Function: Reset")

	md := pc.Properties.AdditionalMetadata
	assert.Equal(t, 2, md["num_functions"])
	_, hasClasses := md["num_classes"]
	assert.False(t, hasClasses)
}

func TestProcessUnknownLanguageFallsBackToWindows(t *testing.T) {
	lines := make([]string, 0, 250)
	for i := 0; i < 250; i++ {
		lines = append(lines, "line content")
	}
	path := writeFile(t, "query.rs", strings.Join(lines, "\n"))

	p := New(WithMaxLinesPerChunk(100))
	results := p.Process(context.Background(), rawFor(path))
	require.Len(t, results, 1)

	pc := results[0]
	// Overview + ceil(250/100) windows.
	require.Len(t, pc.Chunks, 4)
	assert.True(t, strings.HasPrefix(pc.Chunks[1].Text, "Lines 1-100\n\n"))
	assert.True(t, strings.HasPrefix(pc.Chunks[2].Text, "Lines 101-200\n\n"))
	assert.True(t, strings.HasPrefix(pc.Chunks[3].Text, "Lines 201-250\n\n"))
	assert.Contains(t, pc.Chunks[1].Keywords, "lines_1_100")
	assert.Equal(t, "rust", pc.Properties.AdditionalMetadata["language"])
}

func TestProcessPatternLanguageWithoutElementsUsesWindows(t *testing.T) {
	path := writeFile(t, "notes.py", "# just comments\n# nothing else\n")
	p := New()

	results := p.Process(context.Background(), rawFor(path))
	require.Len(t, results, 1)

	pc := results[0]
	require.Len(t, pc.Chunks, 2)
	assert.True(t, strings.HasPrefix(pc.Chunks[1].Text, "Lines 1-"))
}

func TestProcessUnreadableFileYieldsNothing(t *testing.T) {
	p := New()
	raw := rawFor(filepath.Join(t.TempDir(), "missing.py"))
	assert.Empty(t, p.Process(context.Background(), raw))
}

func TestCanProcess(t *testing.T) {
	p := New()

	path := writeFile(t, "a.py", "def f():\n    pass\n")
	assert.True(t, p.CanProcess(rawFor(path)))

	other := writeFile(t, "a.txt", "plain")
	assert.False(t, p.CanProcess(rawFor(other)))

	assert.False(t, p.CanProcess(nil))
	assert.False(t, p.CanProcess(&domain.RawContextProperties{
		Source:      domain.SourceUpload,
		ContentPath: path,
	}))
}

func TestKeywordsAndEntities(t *testing.T) {
	path := writeFile(t, "tool.py", pythonSample)
	p := New()

	results := p.Process(context.Background(), rawFor(path))
	require.Len(t, results, 1)

	ed := results[0].ExtractedData
	assert.Contains(t, ed.Keywords, "tool.py")
	assert.Contains(t, ed.Keywords, "python")
	assert.Contains(t, ed.Keywords, "code")
	assert.Contains(t, ed.Keywords, "load")
	assert.Contains(t, ed.Entities, "Store")
	assert.LessOrEqual(t, len(ed.Entities), 20)
}
