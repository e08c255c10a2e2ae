// Package services implements the driving ports.
//
// Services:
//   - IngestOrchestrator: the load, chunk, embed, persist and verify pipeline
//   - IndexService: read access to the vector index and run history
//   - SettingsService: settings resolved from defaults, config file and environment
//
// Services depend only on driven ports; adapters are injected by the caller.
package services
