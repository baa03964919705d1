// Package maple implements the in-memory engine behind every cache tier of this
// module. It satisfies db.KVDB.
//
// Key Components:
//
//   - mapleImpl: The engine. Keys are spread over a fixed number of shards using a
//     seeded FNV-1a hash. Each shard is a concurrent map (xsync.MapOf), so reads and
//     writes on different keys never contend on a lock.
//
//   - Entry: A cached value with its write index and an optional deadline. Deadlines
//     are absolute wall clock timestamps (unix nanoseconds). Replicated stores compute
//     the deadline once on the proposing node, so every replica stores the same value.
//
//   - Garbage collection: A single goroutine sweeps all shards in a fixed interval and
//     removes entries past their deadline. Get and Has check the deadline themselves,
//     so an entry is never visible after its deadline even if the sweep has not run.
//
//   - Persistence: Save writes a fuzzy snapshot of all live entries in a small binary
//     format (see Save). Load decodes into fresh shards and swaps them in atomically,
//     a broken snapshot leaves the engine untouched.
//
// Stale write detection: a write with a lower write index than the stored entry is
// ignored. Local stores use a counter, raft stores the log index.
//
// Usage:
//
//	engine := maple.NewMapleDB(nil)
//	defer engine.Close()
//	engine.SetE("users.alice", payload, 1, time.Now().Add(time.Minute).UnixNano())
package maple
