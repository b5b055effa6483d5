// Package code provides the source-code processor with syntax-aware
// chunking.
//
// Language is inferred from the file extension alone. For languages with a
// registered pattern set, line-anchored regexes locate function, class and
// struct definitions; everything else falls back to fixed-size line
// windows. The regex heuristic is inherently approximate (multi-line
// signatures, decorators and nested scopes will misparse) - the fallback
// keeps results predictable when it misses.
package code

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/meridian-labs/ctxd/internal/core/domain"
	"github.com/meridian-labs/ctxd/internal/core/ports/driven"
	"github.com/meridian-labs/ctxd/internal/logger"
	"github.com/meridian-labs/ctxd/internal/processors"
)

// Ensure Processor implements the interface.
var _ driven.Processor = (*Processor)(nil)

// DefaultMaxLinesPerChunk is the window size for line-based fallback
// chunking.
const DefaultMaxLinesPerChunk = 100

// overviewLines is how many leading lines the overview chunk quotes.
const overviewLines = 20

// patternSet holds the per-language syntax element patterns.
// A nil pattern means the language has no such element.
type patternSet struct {
	function *regexp.Regexp
	class    *regexp.Regexp
	strct    *regexp.Regexp
	imprt    *regexp.Regexp
}

// languagePatterns registers the pattern sets for languages with
// syntax-aware chunking. Languages absent here are still accepted and
// chunked by line windows.
var languagePatterns = map[string]patternSet{
	"python": {
		function: regexp.MustCompile(`^\s*def\s+(\w+)`),
		class:    regexp.MustCompile(`^\s*class\s+(\w+)`),
		imprt:    regexp.MustCompile(`^\s*(?:from\s+[\w.]+\s+)?import\s+(.+)`),
	},
	"javascript": {
		function: regexp.MustCompile(`^\s*(?:function\s+(\w+)|const\s+(\w+)\s*=\s*(?:async\s+)?\()`),
		class:    regexp.MustCompile(`^\s*class\s+(\w+)`),
		imprt:    regexp.MustCompile(`^\s*import\s+(.+)`),
	},
	"java": {
		function: regexp.MustCompile(`^\s*(?:public|private|protected)?\s+(?:static\s+)?[\w<>]+\s+(\w+)\s*\(`),
		class:    regexp.MustCompile(`^\s*(?:public\s+)?class\s+(\w+)`),
		imprt:    regexp.MustCompile(`^\s*import\s+(.+);`),
	},
	"go": {
		function: regexp.MustCompile(`^\s*func\s+(?:\(\w+\s+\*?\w+\)\s+)?(\w+)`),
		strct:    regexp.MustCompile(`^\s*type\s+(\w+)\s+struct`),
		imprt:    regexp.MustCompile(`^\s*import\s+(.+)`),
	},
}

// extensionToLanguage maps file extensions to languages. Extensions mapping
// to a language without a pattern set are chunked by line windows.
var extensionToLanguage = map[string]string{
	".py":    "python",
	".js":    "javascript",
	".jsx":   "javascript",
	".ts":    "javascript",
	".tsx":   "javascript",
	".java":  "java",
	".go":    "go",
	".c":     "c",
	".cpp":   "cpp",
	".h":     "c",
	".hpp":   "cpp",
	".cs":    "csharp",
	".rb":    "ruby",
	".php":   "php",
	".swift": "swift",
	".kt":    "kotlin",
	".rs":    "rust",
}

// supportedExtensions is the fixed, queryable extension set.
var supportedExtensions = []string{
	".py", ".js", ".jsx", ".ts", ".tsx", ".java", ".go",
	".c", ".cpp", ".h", ".hpp", ".cs", ".rb", ".php",
	".swift", ".kt", ".rs",
}

// element is one located syntax element.
type element struct {
	typ  string // "function", "class" or "struct"
	name string
	line int // zero-based
}

// Processor chunks source code files.
type Processor struct {
	maxLinesPerChunk int
}

// Option configures the code processor.
type Option func(*Processor)

// WithMaxLinesPerChunk sets the fallback line-window size.
func WithMaxLinesPerChunk(n int) Option {
	return func(p *Processor) {
		if n > 0 {
			p.maxLinesPerChunk = n
		}
	}
}

// New creates a code processor.
func New(opts ...Option) *Processor {
	p := &Processor{maxLinesPerChunk: DefaultMaxLinesPerChunk}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Name returns the processor name.
func (p *Processor) Name() string {
	return "code_processor"
}

// SupportedExtensions returns the extensions this processor handles.
func (p *Processor) SupportedExtensions() []string {
	return supportedExtensions
}

// CanProcess reports whether this processor accepts the raw context.
func (p *Processor) CanProcess(raw *domain.RawContextProperties) bool {
	return processors.Accepts(raw, supportedExtensions)
}

// Process parses the code file and segments it into one processed context.
// Any failure yields an empty result.
func (p *Processor) Process(_ context.Context, raw *domain.RawContextProperties) []domain.ProcessedContext {
	path := raw.ContentPath
	logger.Info("Processing code file: %s", path)

	data, err := os.ReadFile(path)
	if err != nil {
		logger.Warn("Reading code file %s: %v", path, err)
		return nil
	}

	fileName := filepath.Base(path)
	language := detectLanguage(path)
	lines := strings.Split(string(data), "\n")

	metadata, elements := scan(lines, language)
	metadata["file_name"] = fileName
	metadata["file_path"] = path
	metadata["language"] = language
	metadata["total_lines"] = len(lines)

	chunks := p.buildChunks(lines, elements, language, fileName)
	if len(chunks) == 0 {
		return nil
	}

	pc := buildContext(raw, chunks, metadata, language, fileName, p.Name())
	logger.Info("Successfully processed %s", path)
	return []domain.ProcessedContext{pc}
}

// detectLanguage infers the language from the file extension.
func detectLanguage(path string) string {
	ext := strings.ToLower(filepath.Ext(path))
	if lang, ok := extensionToLanguage[ext]; ok {
		return lang
	}
	return "unknown"
}

// scan walks the lines once, collecting per-language metadata lists and
// every syntax element in line order.
func scan(lines []string, language string) (map[string]any, []element) {
	metadata := map[string]any{}

	nonEmpty := 0
	for _, line := range lines {
		if strings.TrimSpace(line) != "" {
			nonEmpty++
		}
	}
	metadata["non_empty_lines"] = nonEmpty

	ps, ok := languagePatterns[language]
	if !ok {
		return metadata, nil
	}

	var functions, classes, imports []string
	var elements []element

	for i, line := range lines {
		if ps.function != nil {
			if name, ok := matchName(ps.function, line); ok {
				functions = append(functions, name)
				elements = append(elements, element{typ: "function", name: name, line: i})
				continue
			}
		}
		if ps.class != nil {
			if name, ok := matchName(ps.class, line); ok {
				classes = append(classes, name)
				elements = append(elements, element{typ: "class", name: name, line: i})
				continue
			}
		}
		if ps.strct != nil {
			if name, ok := matchName(ps.strct, line); ok {
				elements = append(elements, element{typ: "struct", name: name, line: i})
				continue
			}
		}
		if ps.imprt != nil {
			if _, ok := matchName(ps.imprt, line); ok {
				imports = append(imports, strings.TrimSpace(line))
			}
		}
	}

	metadata["functions"] = functions
	metadata["num_functions"] = len(functions)
	if ps.class != nil {
		metadata["classes"] = classes
		metadata["num_classes"] = len(classes)
	}
	if len(imports) > 20 {
		metadata["imports"] = imports[:20]
	} else {
		metadata["imports"] = imports
	}
	metadata["num_imports"] = len(imports)

	return metadata, elements
}

// matchName applies a line-anchored pattern and returns the first
// non-empty capture group.
func matchName(re *regexp.Regexp, line string) (string, bool) {
	m := re.FindStringSubmatch(line)
	if m == nil {
		return "", false
	}
	for _, group := range m[1:] {
		if group != "" {
			return group, true
		}
	}
	return "unknown", true
}

// buildChunks emits the overview chunk followed by either element chunks
// or line-window fallback chunks. Indices are dense from zero.
func (p *Processor) buildChunks(lines []string, elements []element, language, fileName string) []domain.Chunk {
	var b strings.Builder
	fmt.Fprintf(&b, "Code File: %s\n", fileName)
	fmt.Fprintf(&b, "Language: %s\n", language)
	fmt.Fprintf(&b, "Total Lines: %d\n", len(lines))

	preview := overviewLines
	if len(lines) < preview {
		preview = len(lines)
	}
	fmt.Fprintf(&b, "\nFirst %d lines:\n", preview)
	b.WriteString(strings.Join(lines[:preview], "\n"))

	chunks := []domain.Chunk{{
		Text:     b.String(),
		Index:    0,
		Keywords: []string{fileName, language, "code", "overview"},
	}}

	if len(elements) > 0 {
		chunks = append(chunks, elementChunks(lines, elements, language, fileName, len(chunks))...)
	} else {
		chunks = append(chunks, p.lineWindowChunks(lines, fileName, len(chunks))...)
	}

	return chunks
}

// elementChunks emits one chunk per located element, spanning from its
// definition line to the next element (or EOF for the last one).
func elementChunks(lines []string, elements []element, language, fileName string, startIdx int) []domain.Chunk {
	chunks := make([]domain.Chunk, 0, len(elements))

	for i, el := range elements {
		start := el.line
		end := len(lines)
		if i+1 < len(elements) {
			end = elements[i+1].line
		}

		var b strings.Builder
		fmt.Fprintf(&b, "%s: %s\n", capitalise(el.typ), el.name)
		fmt.Fprintf(&b, "Lines %d-%d\n\n", start+1, end)
		b.WriteString(strings.Join(lines[start:end], "\n"))

		chunks = append(chunks, domain.Chunk{
			Text:     b.String(),
			Index:    startIdx + i,
			Keywords: []string{fileName, language, el.typ, el.name},
			Entities: []string{el.name},
		})
	}

	return chunks
}

// lineWindowChunks emits sequential fixed-size line windows.
func (p *Processor) lineWindowChunks(lines []string, fileName string, startIdx int) []domain.Chunk {
	var chunks []domain.Chunk

	for i := 0; i < len(lines); i += p.maxLinesPerChunk {
		end := i + p.maxLinesPerChunk
		if end > len(lines) {
			end = len(lines)
		}

		var b strings.Builder
		fmt.Fprintf(&b, "Lines %d-%d\n\n", i+1, end)
		b.WriteString(strings.Join(lines[i:end], "\n"))

		chunks = append(chunks, domain.Chunk{
			Text:     b.String(),
			Index:    startIdx + len(chunks),
			Keywords: []string{fileName, fmt.Sprintf("lines_%d_%d", i+1, end)},
		})
	}

	return chunks
}

// buildContext assembles the ProcessedContext from chunks and metadata.
func buildContext(
	raw *domain.RawContextProperties,
	chunks []domain.Chunk,
	metadata map[string]any,
	language, fileName, processorName string,
) domain.ProcessedContext {
	summary := fmt.Sprintf("%s code with %d lines", capitalise(language), metadata["total_lines"])
	if n, ok := metadata["num_functions"]; ok {
		summary += fmt.Sprintf(", %d functions", n)
	}
	if n, ok := metadata["num_classes"]; ok {
		summary += fmt.Sprintf(", %d classes", n)
	}

	functions, _ := metadata["functions"].([]string)
	classes, _ := metadata["classes"].([]string)

	keywords := []string{fileName, language, "code"}
	keywords = append(keywords, head(functions, 10)...)
	keywords = append(keywords, head(classes, 10)...)
	keywords = domain.NormaliseTags(keywords, 0)

	entities := domain.NormaliseTags(append(append([]string{}, functions...), classes...), 20)

	metadata["processor"] = processorName
	now := time.Now()

	return domain.ProcessedContext{
		ID: raw.ObjectID,
		Properties: domain.ContextProperties{
			ContextType:        domain.TypeSemanticContext,
			Source:             raw.Source,
			CreateTime:         now,
			UpdateTime:         now,
			ContentPath:        raw.ContentPath,
			ContentFormat:      domain.FormatText,
			Title:              fileName,
			Summary:            summary,
			Tags:               keywords,
			AdditionalMetadata: metadata,
		},
		Chunks: chunks,
		ExtractedData: domain.ExtractedData{
			Title:       fileName,
			Summary:     summary,
			Keywords:    keywords,
			Entities:    entities,
			ContextType: domain.TypeSemanticContext,
			Confidence:  domain.ClampScore(90),
			Importance:  domain.ClampScore(80),
		},
	}
}

func capitalise(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

func head(values []string, n int) []string {
	if len(values) > n {
		return values[:n]
	}
	return values
}
