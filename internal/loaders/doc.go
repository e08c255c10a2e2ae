// Package loaders provides DocumentLoader implementations for the document
// formats docindex can ingest, plus a Registry that selects a loader by
// file extension.
//
// Every loader yields units lazily. Paged formats yield one unit per page,
// others yield a single unit for the whole document.
package loaders
