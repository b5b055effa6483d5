package driven

// MetadataExtractor produces per-file descriptive metadata.
// Extraction is two-tier: universal filesystem fields always, plus
// format-specific fields on a best-effort basis.
type MetadataExtractor interface {
	// Extract returns the metadata record for the file at path.
	// Format-specific failures degrade the record by omission; only a
	// missing or unreadable file is an error.
	Extract(path string) (map[string]any, error)
}
