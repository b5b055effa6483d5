// Package domain contains the core business entities of ctxd.
// These types have no external dependencies and represent the
// ubiquitous language of the ingestion and retrieval pipeline.
package domain

import (
	"strings"
	"time"
)

// ContextSource identifies where a raw context came from.
type ContextSource string

const (
	// SourceLocalFile marks contexts ingested from the local filesystem.
	SourceLocalFile ContextSource = "local_file"

	// SourceUpload marks contexts pushed in by a client.
	SourceUpload ContextSource = "upload"

	// SourceCloud marks contexts fetched from a remote connector.
	SourceCloud ContextSource = "cloud"
)

// ContentFormat describes the payload shape of a raw context.
type ContentFormat string

const (
	FormatText  ContentFormat = "text"
	FormatImage ContentFormat = "image"
	FormatFile  ContentFormat = "file"
)

// ContextType classifies a processed context.
type ContextType string

// TypeSemanticContext is the classification produced by the format
// processors for ingested documents.
const TypeSemanticContext ContextType = "semantic_context"

// RawContextProperties is the unprocessed input handed to the processor
// registry.
type RawContextProperties struct {
	// ObjectID identifies the raw object; processors derive context IDs
	// from it.
	ObjectID string

	// Source says where the content came from.
	Source ContextSource

	// ContentFormat says what kind of payload this is.
	ContentFormat ContentFormat

	// RawData holds inline content, when present.
	RawData []byte

	// ContentPath points at the on-disk file, when present.
	ContentPath string

	// Metadata carries connector-supplied key/value pairs.
	Metadata map[string]string
}

// Chunk is one retrievable segment of a processed context.
type Chunk struct {
	// Text is the chunk body.
	Text string

	// Index is the chunk's position, dense from zero within its context.
	Index int

	// Keywords are retrieval hints attached to this chunk.
	Keywords []string

	// Entities are named things mentioned in this chunk.
	Entities []string
}

// ExtractedData is the understanding a processor derived from a file.
type ExtractedData struct {
	Title       string
	Summary     string
	Keywords    []string
	Entities    []string
	ContextType ContextType

	// Confidence and Importance are 0-100 scores.
	Confidence int
	Importance int
}

// ContextProperties is the stored descriptive record of a processed
// context.
type ContextProperties struct {
	ContextType   ContextType
	Source        ContextSource
	CreateTime    time.Time
	UpdateTime    time.Time
	ContentPath   string
	ContentFormat ContentFormat
	Title         string
	Summary       string

	// Tags are cleaned, deduplicated labels attached to the context.
	Tags []string

	// AdditionalMetadata holds processor- and extractor-specific fields.
	AdditionalMetadata map[string]any
}

// ProcessedContext is the unit the pipeline produces, stores and
// retrieves.
type ProcessedContext struct {
	ID            string
	Properties    ContextProperties
	Chunks        []Chunk
	ExtractedData ExtractedData
}

// TagSet groups auto-generated tags by kind.
type TagSet struct {
	Topics     []string
	Keywords   []string
	Entities   []string
	Categories []string
}

// IsEmpty reports whether the set holds no tags at all.
func (t TagSet) IsEmpty() bool {
	return len(t.Topics) == 0 && len(t.Keywords) == 0 &&
		len(t.Entities) == 0 && len(t.Categories) == 0
}

// ClampScore bounds a confidence or importance value to [0, 100].
func ClampScore(n int) int {
	if n < 0 {
		return 0
	}
	if n > 100 {
		return 100
	}
	return n
}

// maxTagLength is the exclusive upper bound on a single tag's length.
const maxTagLength = 100

// NormaliseTags cleans a tag list: whitespace is trimmed, empty and
// over-long tags are dropped, duplicates are removed case-insensitively
// keeping the first spelling, and the result is capped at limit entries
// (limit <= 0 means no cap). The operation is idempotent.
func NormaliseTags(tags []string, limit int) []string {
	seen := make(map[string]struct{}, len(tags))
	cleaned := make([]string, 0, len(tags))

	for _, tag := range tags {
		tag = strings.TrimSpace(tag)
		if tag == "" || len(tag) >= maxTagLength {
			continue
		}
		key := strings.ToLower(tag)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		cleaned = append(cleaned, tag)
		if limit > 0 && len(cleaned) == limit {
			break
		}
	}

	return cleaned
}
