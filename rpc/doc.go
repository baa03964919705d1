// Package rpc contains the network layer between applications and cache servers.
//
// Subpackages:
//
//   - common: the Message protocol and the client and server configuration.
//   - transport: pluggable transports (HTTP and framed TCP).
//   - serializer: Message encodings (JSON, GOB, CBOR).
//   - client: store.IStore implementation talking to a remote shard.
//   - server: the cache server hosting local and raft replicated shards.
package rpc
