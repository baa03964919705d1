// Package db defines the engine interface underneath the cache tiers of this module.
//
// The package focuses on:
//   - A small KVDB interface for opaque cached values (Set, SetE, Get, Has, Delete)
//   - Feature discovery through capability flags
//   - Snapshot persistence (Save, Load), used by raft replicated stores
//   - Metadata reporting through DatabaseInfo
//
// Note on time:
//   - Every write carries a write index. It is a logical clock used only to drop
//     stale writes, it has nothing to do with expiry.
//   - Deadlines passed to SetE are absolute wall clock timestamps in unix
//     nanoseconds. Engines must never return an entry past its deadline from Get
//     or Has, regardless of their garbage collection state.
//
// Related Packages:
//
// The engines/maple package provides the sharded in-memory implementation.
//
// The testing package provides RunKVDBTests, a conformance suite any KVDB
// implementation can run from its own tests.
package db
