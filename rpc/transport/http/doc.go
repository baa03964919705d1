// Package http implements the HTTP transport between cache clients and cache servers.
//
// Routes of the server:
//
//	POST /{shardId}   serialized request in, serialized response out
//	GET  /metrics     Prometheus text format (VictoriaMetrics/metrics)
//	GET  /health      liveness probe
//
// The client selects endpoints round-robin and retries failed requests on the next
// endpoint with exponential backoff. Endpoints without scheme get "http://".
//
// The client transport is safe for concurrent use.
package http
