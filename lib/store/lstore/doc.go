// Package lstore implements a process-local store.IStore on top of any db.KVDB.
//
// It is the L1 tier of the two-tier document cache and the non-replicated shard
// type of a cache server. Data lives in memory only.
//
// Write indices come from an atomic counter, so concurrent writes never reuse an
// index. Operations the engine does not support return a *store.Error with code
// RetCUnsupportedOperation instead of failing silently.
//
// Usage Example:
//
//	l1 := lstore.NewLocalStore(func() db.KVDB { return maple.NewMapleDB(nil) })
//	_ = l1.SetE("users.alice", payload, 5*time.Minute)
//	value, ok, err := l1.Get("users.alice")
package lstore
