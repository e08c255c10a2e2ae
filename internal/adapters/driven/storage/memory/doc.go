// Package memory provides in-memory implementations of the driven ports.
//
// The stores are safe for concurrent use and lose their contents when the
// process exits. They back the --store :memory: mode and service tests.
package memory
