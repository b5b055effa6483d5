package processors

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/meridian-labs/ctxd/internal/core/domain"
)

// Accepts implements the shared CanProcess policy: the raw context must be
// a local file with a content path whose file exists and whose suffix is in
// exts.
func Accepts(raw *domain.RawContextProperties, exts []string) bool {
	if raw == nil {
		return false
	}
	if raw.Source != domain.SourceLocalFile {
		return false
	}
	if raw.ContentPath == "" {
		return false
	}

	info, err := os.Stat(raw.ContentPath)
	if err != nil || info.IsDir() {
		return false
	}

	suffix := strings.ToLower(filepath.Ext(raw.ContentPath))
	for _, ext := range exts {
		if suffix == ext {
			return true
		}
	}
	return false
}
