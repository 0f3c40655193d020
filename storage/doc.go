// Package storage provides the content-addressed backends behind the gateway
// and the selector that binds exactly one of them at startup.
//
// # Backends
//
// KuboBackend talks to a remote IPFS (Kubo) node through its RPC API:
//
//   - Uploads use "add" with CIDv1 and optional pinning
//   - Fetches use "cat" and honour the caller's context
//   - Addresses that do not decode as a CID are reported as not found
//
// EmbeddedBackend runs an in-process node:
//
//   - Blocks are kept in pebble, on disk or in memory
//   - Addresses are CIDv1 over sha2-256 (raw codec for files, json for records)
//   - Blocks are verified against their CID on every read
//   - Optional zstd compression of stored blocks
//
// # Selection
//
// Select parses the configured identifier ("kubo" or "embedded") and
// constructs only that backend. Unknown identifiers fail with
// interfaces.ErrUnknownBackend before anything else happens.
//
//	backend, err := storage.Select(storage.Config{
//	    Backend:  "embedded",
//	    Embedded: storage.EmbeddedConfig{Dir: "/var/lib/cas-gateway"},
//	}, logger)
//	if err != nil {
//	    log.Fatalf("Failed to select storage backend: %v", err)
//	}
//
//	addr, err := backend.UploadRecord(ctx, interfaces.Record(`{"name":"example"}`))
//
// # Caching
//
// WrapWithCache puts a go-datastore read-through cache in front of any
// backend. Because addressed content never changes, entries are never
// invalidated.
package storage
