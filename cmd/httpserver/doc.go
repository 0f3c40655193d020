// Package main (cmd/httpserver) runs the content-addressed storage gateway.
//
// The storage backend is chosen once at startup from --storage-backend
// (env STORAGE_BACKEND, or the legacy IPFS_CLIENT):
//
//   - kubo: a remote IPFS node reached through its RPC API (--kubo-api-addr)
//   - embedded: an in-process block store, in memory or under --embedded-dir
//
// An unrecognized backend fails startup before the listener opens. Settings
// may also come from a YAML file given with --config; flags override it.
//
// Example usage:
//
//	httpserver --storage-backend kubo --kubo-api-addr 127.0.0.1:5001
//	STORAGE_BACKEND=embedded httpserver --embedded-dir /var/lib/cas-gateway
//
// The API listens on --listen-addr and Prometheus metrics are served on
// --metrics-addr. SIGINT and SIGTERM trigger a graceful shutdown.
package main
