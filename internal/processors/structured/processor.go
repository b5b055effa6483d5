// Package structured provides the processor for JSON, YAML and JSONL
// files. Documents are chunked by structure: an overview, one chunk per
// top-level key (nested values rendered as indented JSON) and batched
// chunks for arrays, with a recursive schema recorded in metadata.
package structured

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/meridian-labs/ctxd/internal/core/domain"
	"github.com/meridian-labs/ctxd/internal/core/ports/driven"
	"github.com/meridian-labs/ctxd/internal/logger"
	"github.com/meridian-labs/ctxd/internal/processors"
)

// Ensure Processor implements the interface.
var _ driven.Processor = (*Processor)(nil)

const (
	// DefaultMaxDepth bounds schema recursion.
	DefaultMaxDepth = 10

	// DefaultMaxArrayItemsPerChunk is the array batch size.
	DefaultMaxArrayItemsPerChunk = 50

	previewLimit = 500
	contentLimit = 2000
)

var supportedExtensions = []string{".json", ".yaml", ".yml", ".jsonl"}

// Processor chunks structured-data files.
type Processor struct {
	maxDepth              int
	maxArrayItemsPerChunk int
}

// Option configures the structured-data processor.
type Option func(*Processor)

// WithMaxDepth sets the schema recursion bound.
func WithMaxDepth(n int) Option {
	return func(p *Processor) {
		if n > 0 {
			p.maxDepth = n
		}
	}
}

// WithMaxArrayItemsPerChunk sets the array batch size.
func WithMaxArrayItemsPerChunk(n int) Option {
	return func(p *Processor) {
		if n > 0 {
			p.maxArrayItemsPerChunk = n
		}
	}
}

// New creates a structured-data processor.
func New(opts ...Option) *Processor {
	p := &Processor{
		maxDepth:              DefaultMaxDepth,
		maxArrayItemsPerChunk: DefaultMaxArrayItemsPerChunk,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Name returns the processor name.
func (p *Processor) Name() string {
	return "structured_data_processor"
}

// SupportedExtensions returns the extensions this processor handles.
func (p *Processor) SupportedExtensions() []string {
	return supportedExtensions
}

// CanProcess reports whether this processor accepts the raw context.
func (p *Processor) CanProcess(raw *domain.RawContextProperties) bool {
	return processors.Accepts(raw, supportedExtensions)
}

// Process parses the document into one processed context. Any failure,
// including a syntax error in the file, yields an empty result.
func (p *Processor) Process(_ context.Context, raw *domain.RawContextProperties) []domain.ProcessedContext {
	path := raw.ContentPath
	logger.Info("Processing structured data file: %s", path)

	data, err := loadFile(path)
	if err != nil {
		logger.Warn("Loading %s: %v", path, err)
		return nil
	}

	fileName := filepath.Base(path)
	metadata := p.extractMetadata(data, path)
	chunks := p.buildChunks(data, fileName)
	if len(chunks) == 0 {
		return nil
	}

	pc := p.buildContext(raw, chunks, metadata)
	logger.Info("Successfully processed %s", path)
	return []domain.ProcessedContext{pc}
}

// loadFile parses the document by extension. JSON numbers decode as
// json.Number so integers keep their literal form.
func loadFile(path string) (any, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".jsonl":
		var items []any
		scanner := bufio.NewScanner(strings.NewReader(string(raw)))
		scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
		for scanner.Scan() {
			line := strings.TrimSpace(scanner.Text())
			if line == "" {
				continue
			}
			item, err := decodeJSON([]byte(line))
			if err != nil {
				return nil, fmt.Errorf("parsing jsonl line: %w", err)
			}
			items = append(items, item)
		}
		if err := scanner.Err(); err != nil {
			return nil, err
		}
		return items, nil

	case ".yaml", ".yml":
		var data any
		if err := yaml.Unmarshal(raw, &data); err != nil {
			return nil, fmt.Errorf("parsing yaml: %w", err)
		}
		return normaliseYAML(data), nil

	default:
		return decodeJSON(raw)
	}
}

func decodeJSON(raw []byte) (any, error) {
	dec := json.NewDecoder(strings.NewReader(string(raw)))
	dec.UseNumber()
	var data any
	if err := dec.Decode(&data); err != nil {
		return nil, fmt.Errorf("parsing json: %w", err)
	}
	return data, nil
}

// normaliseYAML rewrites map[any]any nodes (non-string YAML keys) into
// string-keyed maps so the tree is JSON-marshalable.
func normaliseYAML(data any) any {
	switch v := data.(type) {
	case map[string]any:
		out := make(map[string]any, len(v))
		for key, val := range v {
			out[key] = normaliseYAML(val)
		}
		return out
	case map[any]any:
		out := make(map[string]any, len(v))
		for key, val := range v {
			out[fmt.Sprint(key)] = normaliseYAML(val)
		}
		return out
	case []any:
		out := make([]any, len(v))
		for i, val := range v {
			out[i] = normaliseYAML(val)
		}
		return out
	default:
		return v
	}
}

// typeName names a decoded value the way the metadata record expects.
func typeName(v any) string {
	switch val := v.(type) {
	case map[string]any:
		return "dict"
	case []any:
		return "list"
	case string:
		return "str"
	case bool:
		return "bool"
	case json.Number:
		if strings.ContainsAny(val.String(), ".eE") {
			return "float"
		}
		return "int"
	case int, int64:
		return "int"
	case float32, float64:
		return "float"
	case nil:
		return "NoneType"
	default:
		return fmt.Sprintf("%T", v)
	}
}

// sortedKeys returns map keys in deterministic order.
func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func (p *Processor) extractMetadata(data any, path string) map[string]any {
	metadata := map[string]any{
		"file_name": filepath.Base(path),
		"file_path": path,
		"file_type": strings.ToLower(filepath.Ext(path)),
		"data_type": typeName(data),
	}

	switch v := data.(type) {
	case map[string]any:
		metadata["top_level_keys"] = sortedKeys(v)
		metadata["num_keys"] = len(v)
	case []any:
		metadata["num_items"] = len(v)
		if len(v) > 0 {
			if first, ok := v[0].(map[string]any); ok {
				metadata["item_keys"] = sortedKeys(first)
			}
		}
	}

	metadata["schema"] = p.extractSchema(data, 0)
	return metadata
}

// extractSchema derives a recursive type descriptor, using the first
// array item as representative and cutting off past maxDepth.
func (p *Processor) extractSchema(data any, depth int) map[string]any {
	if depth > p.maxDepth {
		return map[string]any{"type": "max_depth_exceeded"}
	}

	switch v := data.(type) {
	case map[string]any:
		props := make(map[string]any, len(v))
		for _, key := range sortedKeys(v) {
			props[key] = p.extractSchema(v[key], depth+1)
		}
		return map[string]any{"type": "object", "properties": props}
	case []any:
		if len(v) == 0 {
			return map[string]any{"type": "array", "items": map[string]any{}}
		}
		return map[string]any{
			"type":   "array",
			"length": len(v),
			"items":  p.extractSchema(v[0], depth+1),
		}
	default:
		return map[string]any{"type": typeName(data)}
	}
}

// buildChunks emits the overview chunk followed by per-key or array-batch
// chunks. Indices are dense from zero.
func (p *Processor) buildChunks(data any, fileName string) []domain.Chunk {
	var b strings.Builder
	fmt.Fprintf(&b, "File: %s\n", fileName)
	fmt.Fprintf(&b, "Type: %s\n", typeName(data))

	switch v := data.(type) {
	case map[string]any:
		keys := sortedKeys(v)
		shown := keys
		if len(shown) > 10 {
			shown = shown[:10]
		}
		fmt.Fprintf(&b, "Top-level keys: %s\n", strings.Join(shown, ", "))
		if len(keys) > 10 {
			fmt.Fprintf(&b, "... and %d more keys\n", len(keys)-10)
		}
	case []any:
		fmt.Fprintf(&b, "Array with %d items\n", len(v))
	}

	fmt.Fprintf(&b, "\nPreview:\n%s\n", renderJSON(data, previewLimit))

	chunks := []domain.Chunk{{
		Text:     b.String(),
		Index:    0,
		Keywords: []string{fileName, "overview", "structure"},
	}}

	switch v := data.(type) {
	case map[string]any:
		chunks = append(chunks, p.chunkDict(v, "", fileName, len(chunks))...)
	case []any:
		chunks = append(chunks, p.chunkList(v, "", fileName, len(chunks))...)
	}

	return chunks
}

// chunkDict emits one chunk per key in sorted order.
func (p *Processor) chunkDict(data map[string]any, path, fileName string, startIdx int) []domain.Chunk {
	chunks := make([]domain.Chunk, 0, len(data))

	for _, key := range sortedKeys(data) {
		value := data[key]
		currentPath := key
		if path != "" {
			currentPath = path + "." + key
		}

		var b strings.Builder
		fmt.Fprintf(&b, "Path: %s\n", currentPath)

		var keywords []string
		switch value.(type) {
		case map[string]any, []any:
			fmt.Fprintf(&b, "Type: %s\n", typeName(value))
			fmt.Fprintf(&b, "Content:\n%s\n", renderJSON(value, contentLimit))
			keywords = []string{fileName, key, currentPath, typeName(value)}
		default:
			fmt.Fprintf(&b, "Value: %v\n", value)
			keywords = []string{fileName, key, currentPath}
		}

		chunks = append(chunks, domain.Chunk{
			Text:     b.String(),
			Index:    startIdx + len(chunks),
			Keywords: keywords,
		})
	}

	return chunks
}

// chunkList emits array items in fixed-size batches.
func (p *Processor) chunkList(data []any, path, fileName string, startIdx int) []domain.Chunk {
	var chunks []domain.Chunk

	for i := 0; i < len(data); i += p.maxArrayItemsPerChunk {
		end := i + p.maxArrayItemsPerChunk
		if end > len(data) {
			end = len(data)
		}
		batch := data[i:end]

		var b strings.Builder
		fmt.Fprintf(&b, "Path: %s\n", path)
		fmt.Fprintf(&b, "Array items [%d:%d]\n", i, end)
		fmt.Fprintf(&b, "Content:\n%s\n", renderJSON(batch, contentLimit))

		chunks = append(chunks, domain.Chunk{
			Text:     b.String(),
			Index:    startIdx + len(chunks),
			Keywords: []string{fileName, path, "array", fmt.Sprintf("items_%d_%d", i, end)},
		})
	}

	return chunks
}

// renderJSON pretty-prints a value, truncating past limit bytes.
func renderJSON(data any, limit int) string {
	out, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Sprintf("%v", data)
	}
	s := string(out)
	if len(s) > limit {
		s = s[:limit] + "\n... (truncated)"
	}
	return s
}

func (p *Processor) buildContext(
	raw *domain.RawContextProperties,
	chunks []domain.Chunk,
	metadata map[string]any,
) domain.ProcessedContext {
	fileName, _ := metadata["file_name"].(string)
	dataType, _ := metadata["data_type"].(string)

	var summary string
	switch dataType {
	case "dict":
		summary = fmt.Sprintf("Structured data with %d top-level keys", metadata["num_keys"])
	case "list":
		summary = fmt.Sprintf("Array with %d items", metadata["num_items"])
	default:
		summary = fmt.Sprintf("Structured data of type %s", dataType)
	}

	fileType, _ := metadata["file_type"].(string)
	keywords := []string{fileName, strings.TrimPrefix(fileType, "."), dataType}
	if keys, ok := metadata["top_level_keys"].([]string); ok {
		if len(keys) > 10 {
			keys = keys[:10]
		}
		keywords = append(keywords, keys...)
	}
	keywords = domain.NormaliseTags(keywords, 0)

	metadata["processor"] = p.Name()
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
			ContextType: domain.TypeSemanticContext,
			Confidence:  domain.ClampScore(95),
			Importance:  domain.ClampScore(75),
		},
	}
}
