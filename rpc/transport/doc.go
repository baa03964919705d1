// Package transport defines the interfaces between the cache client/server and the
// network. A transport moves opaque byte slices tagged with a shard id; serialization
// is done by the rpc/serializer package.
//
// Implementations:
//
//   - rpc/transport/http: request per POST /{shardId}, also serves /metrics and /health
//   - rpc/transport/tcp: framed, multiplexed connections built on rpc/transport/base
package transport
