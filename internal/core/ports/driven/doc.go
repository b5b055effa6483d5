// Package driven defines the interfaces that core calls OUT to
// infrastructure.
//
// These are the "driven" or "secondary" ports in hexagonal architecture.
// Core services depend on these interfaces, and adapters implement them.
//
// # Required Interfaces
//
//   - Processor: parses one file family into processed contexts
//   - ProcessorRegistry: routes a raw context to the first matching processor
//   - ContextStorage: the storage capability's query/write contract
//   - MetadataExtractor: per-file descriptive metadata
//   - ConfigStore: application configuration
//
// # Optional Interfaces
//
// These can be nil - the application degrades gracefully:
//
//   - LLMService: the generation capability. Without it, auto-tagging
//     returns empty tag sets.
//
// # Import Rules
//
//   - Can Import: domain package only
//   - Cannot Import: Any adapter or processor package
package driven
