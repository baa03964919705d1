// Package server implements the cache server that backs the shared (L2) cache tier.
//
// A server hosts any number of shards. Each shard is either
//
//   - lstore: an in-memory maple engine on this node, or
//   - dstore: a raft group replicated with dragonboat across ClusterMembers.
//
// Requests arrive through a transport (rpc/transport/http or rpc/transport/tcp),
// are decoded with the configured serializer and dispatched to the IStore adapter
// of the addressed shard. Store errors travel back inside the response message.
//
// Metrics:
//
//	uorm_cache_server_requests_total{op="..."}
//	uorm_cache_server_errors_total{op="..."}
//
// are exported in the default VictoriaMetrics set (served by the http transport at /metrics).
package server
