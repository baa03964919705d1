// Package dstore implements store.IStore on top of the dragonboat raft library.
// A cache server can host dstore shards to replicate its L2 cache entries across
// nodes, so losing one node does not cold-start the shared cache.
//
// Architecture:
//
//   - Store Client (storeImpl): serializes writes into internal.Command values and
//     proposes them with SyncPropose. Reads are sent as internal.Query values with
//     SyncRead (linearizable) or StaleRead (GetDBInfo only).
//
//   - State Machine (CacheStateMachine): a dragonboat IConcurrentStateMachine holding
//     the db.KVDB engine. The raft log index is passed as the write index.
//
// Deadlines:
//
//	SetE converts the ttl into an absolute wall clock deadline before proposing, so
//	every replica stores the same deadline regardless of when it applies the entry.
//
// Delete results:
//
//	A delete command always succeeds. The result data is a single byte, 1 if a live
//	entry was removed and 0 otherwise, which the client surfaces as deleted=true/false.
//
// Error Handling and Retries:
//
//	dragonboat.ErrSystemBusy is retried up to five times with a short pause. Every
//	other failure is returned as a *store.Error.
//
// Usage:
//
//	nh, err := dragonboat.NewNodeHost(nodeHostConfig)
//	if err != nil { ... }
//
//	err = nh.StartConcurrentReplica(members, false,
//	    dstore.CreateStateMachineFactory(func() db.KVDB { return maple.NewMapleDB(nil) }),
//	    shardConfig)
//	if err != nil { ... }
//
//	l2shard := dstore.NewDistributedStore(nh, shardID, 5*time.Second)
package dstore
