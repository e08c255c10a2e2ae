// Package driven defines the interfaces that core calls OUT to infrastructure.
//
// These are the "driven" or "secondary" ports in hexagonal architecture.
// Core services depend on these interfaces, and infrastructure adapters
// implement them.
//
// # Required Interfaces
//
//   - DocumentLoader: Yields the text units of a document
//   - PostProcessor / PostProcessorPipeline: Turns a document into passages
//   - EmbeddingProvider: Generates vector embeddings for passage batches
//   - VectorIndex: Durable passage + embedding persistence
//   - ConfigStore: Application configuration
//   - AIConfigValidator: Pings an embedding provider configuration
//
// # Optional Interfaces
//
// These can be nil - the application degrades gracefully:
//
//   - RunStore: Ingestion run history. Without it, runs are not recorded.
//
// # Import Rules
//
//   - Can Import: domain package only
//   - Cannot Import: Any adapter, loader, or postprocessor package
package driven
