package processors

import (
	"context"

	"github.com/meridian-labs/ctxd/internal/core/domain"
	"github.com/meridian-labs/ctxd/internal/core/ports/driven"
	"github.com/meridian-labs/ctxd/internal/logger"
)

// Ensure Registry implements the interface.
var _ driven.ProcessorRegistry = (*Registry)(nil)

// Registry dispatches raw contexts to format processors.
// Processors are tried in registration order, most-specific-first; the
// first whose CanProcess returns true handles the file exclusively.
type Registry struct {
	processors []driven.Processor
}

// NewRegistry creates a registry with the given processors, in dispatch
// order.
func NewRegistry(procs ...driven.Processor) *Registry {
	return &Registry{processors: procs}
}

// Register appends a processor to the dispatch order.
func (r *Registry) Register(p driven.Processor) {
	r.processors = append(r.processors, p)
}

// Dispatch routes the raw context to the first matching processor.
// The boolean reports whether any processor accepted it.
func (r *Registry) Dispatch(ctx context.Context, raw *domain.RawContextProperties) ([]domain.ProcessedContext, bool) {
	if raw == nil {
		return nil, false
	}

	for _, p := range r.processors {
		if !p.CanProcess(raw) {
			continue
		}
		logger.Debug("Dispatch: %s handles %s", p.Name(), raw.ContentPath)
		return p.Process(ctx, raw), true
	}

	logger.Debug("Dispatch: no processor for %s", raw.ContentPath)
	return nil, false
}

// SupportedExtensions returns the union of all registered processors'
// extensions, de-duplicated, in registration order.
func (r *Registry) SupportedExtensions() []string {
	seen := make(map[string]struct{})
	var exts []string
	for _, p := range r.processors {
		for _, ext := range p.SupportedExtensions() {
			if _, ok := seen[ext]; ok {
				continue
			}
			seen[ext] = struct{}{}
			exts = append(exts, ext)
		}
	}
	return exts
}
