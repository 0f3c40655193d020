// Package interfaces defines the storage contract shared by the gateway and
// its backends, separating interface definitions from implementations.
//
// # Storage Interfaces
//
// StorageBackend: the capability set both backends implement (upload file,
// upload record, fetch file, fetch record) plus availability and naming used
// for readiness probes and logs.
//
// # Types
//
//   - Address: opaque content identifier returned by uploads
//   - Record: raw JSON value stored as a unit
//   - FileBlob: raw bytes with a MIME type hint
//   - BackendKind: closed set of backend identifiers accepted in configuration
//
// # Errors
//
// Backends report failures with the sentinel errors declared here, wrapped
// with fmt.Errorf and %w. The gateway matches them with errors.Is and never
// forwards them to callers.
package interfaces
