package domain

import "errors"

// Domain errors represent business logic failures.
// These are distinct from infrastructure errors.
var (
	// ErrNotFound indicates a requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrInvalidInput indicates malformed or invalid input.
	ErrInvalidInput = errors.New("invalid input")

	// ErrUnsupportedType indicates no processor accepts the file.
	ErrUnsupportedType = errors.New("unsupported type")

	// ErrStorageUnavailable indicates the storage capability is not
	// configured. Ingestion and search are disabled without it.
	ErrStorageUnavailable = errors.New("storage capability unavailable")

	// ErrLLMUnavailable indicates the generation capability is not
	// configured. Auto-tagging degrades to empty tag sets without it.
	ErrLLMUnavailable = errors.New("LLM service unavailable")
)
