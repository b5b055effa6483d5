// Package processors provides the format-aware file processors and the
// dispatch registry that binds them together.
//
// Each processor parses one file family's structure and segments it into
// chunks with a uniform output shape. Processors isolate their own
// failures: a malformed file yields an empty result and a log line, never
// an error across the boundary.
package processors
