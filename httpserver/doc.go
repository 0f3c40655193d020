/*
Package httpserver serves the content-addressed storage gateway over HTTP.

Handler maps the routes described in package api onto a Gateway, which is
implemented by *gateway.Service. Server wires the handler into a chi router
together with request logging, Prometheus request metrics, health endpoints
and an optional pprof mount, and runs the metrics listener next to the API
listener.

# Health endpoints

  - /livez: the process is running
  - /readyz: the server is not draining and the storage backend is reachable
  - /drain, /undrain: toggle readiness ahead of a shutdown

# Errors

Gateway errors are returned as {"error":{"kind":...,"message":...}}:

  - ValidationError: 400 Bad Request
  - UploadFailed, FetchFailed: 502 Bad Gateway
  - anything else: 500 Internal Server Error

The message is the gateway's fixed summary for the kind. Backend error text
is only ever written to the log.
*/
package httpserver
