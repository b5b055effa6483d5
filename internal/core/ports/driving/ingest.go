package driving

import (
	"context"

	"github.com/meridian-labs/ctxd/internal/core/domain"
)

// Ingestor runs files through the processing pipeline and hands the
// resulting contexts to storage.
type Ingestor interface {
	// IngestFile processes one file. An unsupported extension returns
	// domain.ErrUnsupportedType; a processor-level failure returns an empty
	// slice and no error.
	IngestFile(ctx context.Context, path string) ([]domain.ProcessedContext, error)

	// IngestDirectory processes every supported file under dir. Returns the
	// number of stored contexts. Per-file failures are logged and skipped.
	IngestDirectory(ctx context.Context, dir string, recursive bool) (int, error)

	// Watch ingests supported files as they appear under dir until the
	// context is cancelled.
	Watch(ctx context.Context, dir string) error
}
