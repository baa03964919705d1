// Package store defines IStore, the contract of a single cache tier, together with
// the error type shared by all tiers.
//
// Key Components:
//
//   - IStore Interface: Set, SetE (with ttl), Get, Has, Delete and GetDBInfo on opaque
//     byte values. Delete of a missing key is a no-op that reports deleted=false.
//
//   - Error System: *Error carries a RetCode and a message, so callers (and the RPC
//     layer, which transports the code) can tell unsupported operations from internal
//     failures.
//
//   - DBFactory: Creates the db.KVDB engine a store runs on.
//
// Implementations:
//
//   - lstore: process-local, used as L1 and as a plain cache server shard.
//   - dstore: replicated through dragonboat (raft), used as a fault tolerant cache
//     server shard.
//   - rpc/client: a network client of a cache server shard, used as L2.
package store
