package driven

import (
	"context"

	"github.com/meridian-labs/ctxd/internal/core/domain"
)

// Processor maps one raw file to zero or more processed contexts.
//
// Process never fails across the boundary: a processor isolates its own
// errors, logs the cause and returns an empty slice, so one malformed file
// cannot abort a batch ingestion. A non-empty result contains contexts with
// at least one chunk each, indexed densely from zero.
type Processor interface {
	// Name returns the processor name recorded in additional metadata.
	Name() string

	// SupportedExtensions returns the file extensions (with leading dot,
	// lower case) this processor handles.
	SupportedExtensions() []string

	// CanProcess reports whether this processor accepts the raw context.
	// It checks the source kind, that a content path is set and exists,
	// and that the path's suffix is supported.
	CanProcess(raw *domain.RawContextProperties) bool

	// Process parses the file and segments it into processed contexts.
	Process(ctx context.Context, raw *domain.RawContextProperties) []domain.ProcessedContext
}

// ProcessorRegistry routes a raw context to the first matching processor.
// Registration order is fixed, most-specific-first; the first processor
// whose CanProcess returns true handles the file exclusively.
type ProcessorRegistry interface {
	// Dispatch routes the raw context. The boolean reports whether any
	// processor accepted it.
	Dispatch(ctx context.Context, raw *domain.RawContextProperties) ([]domain.ProcessedContext, bool)

	// Register appends a processor to the dispatch order.
	Register(p Processor)

	// SupportedExtensions returns the union of all registered processors'
	// extensions.
	SupportedExtensions() []string
}
