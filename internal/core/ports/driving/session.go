package driving

// StoreSession is an open vector store with the services bound to it.
// Callers must Close it to release the store and its lock.
type StoreSession interface {
	// Ingest returns the ingestion service, or nil for a read-only session.
	Ingest() IngestService

	// Index returns read access to the store.
	Index() IndexService

	// Close releases the store, the embedding provider and any lock.
	Close() error
}
