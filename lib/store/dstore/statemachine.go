package dstore

import (
	"fmt"
	"io"
	"time"

	"github.com/ValentinKolb/uorm/lib/db"
	"github.com/ValentinKolb/uorm/lib/store"
	"github.com/ValentinKolb/uorm/lib/store/dstore/internal"
	sm "github.com/lni/dragonboat/v4/statemachine"
)

// result data of a successful delete command
const (
	resultMissing byte = 0
	resultDeleted byte = 1
)

// --------------------------------------------------------------------------
// State Machine Implementation
// --------------------------------------------------------------------------

// CacheStateMachine applies cache commands to a db.KVDB on every replica.
type CacheStateMachine struct {
	replicaID uint64
	shardID   uint64
	database  db.KVDB
}

// CreateStateMachineFactory returns the factory passed to NodeHost.StartConcurrentReplica.
func CreateStateMachineFactory(dbFactory store.DBFactory) func(shardID uint64, replicaID uint64) sm.IConcurrentStateMachine {
	return func(shardID uint64, replicaID uint64) sm.IConcurrentStateMachine {
		return &CacheStateMachine{
			replicaID: replicaID,
			shardID:   shardID,
			database:  dbFactory(),
		}
	}
}

// Lookup handles read-only queries.
func (fsm *CacheStateMachine) Lookup(itf interface{}) (interface{}, error) {
	q, ok := itf.(internal.Query)
	if !ok {
		return nil, store.NewError(store.RetCInternalError, fmt.Sprintf("invalid Query type: %T", itf))
	}

	switch q.Type {
	case internal.QueryTGet:
		if !fsm.database.SupportsFeature(db.FeatureGet) {
			return nil, store.NewError(store.RetCUnsupportedOperation, "Get operation is not supported")
		}
		val, ok := fsm.database.Get(q.Key)
		return internal.QueryResult{Value: val, Ok: ok}, nil
	case internal.QueryTHas:
		if !fsm.database.SupportsFeature(db.FeatureHas) {
			return nil, store.NewError(store.RetCUnsupportedOperation, "Has operation is not supported")
		}
		return fsm.database.Has(q.Key), nil
	case internal.QueryTGetDBInfo:
		return fsm.database.GetInfo(), nil
	default:
		return nil, store.NewError(store.RetCInvalidOperation, fmt.Sprintf("unknown Query operation: %d", q.Type))
	}
}

// Update applies a batch of committed commands. The raft log index is the write index.
func (fsm *CacheStateMachine) Update(entries []sm.Entry) ([]sm.Entry, error) {
	if len(entries) == 0 {
		return entries, nil
	}

	start := time.Now()

	for idx, e := range entries {
		entries[idx].Result = fsm.apply(e)
	}

	if elapsed := time.Since(start); elapsed > time.Millisecond {
		log.Infof("state machine update of %d entries took %.2fms", len(entries), float64(elapsed)/float64(time.Millisecond))
	}
	return entries, nil
}

func (fsm *CacheStateMachine) apply(e sm.Entry) sm.Result {
	if len(e.Cmd) == 0 {
		return sm.Result{Value: uint64(store.RetCInvalidOperation), Data: []byte("empty command ignored")}
	}

	cmd := internal.Command{}
	if err := cmd.Deserialize(e.Cmd); err != nil {
		return sm.Result{Value: uint64(store.RetCInternalError), Data: []byte(fmt.Sprintf("failed to deserialize command: %v", err))}
	}

	feat, err := cmd.Type.ToDBFeature()
	if err != nil {
		return sm.Result{Value: uint64(store.RetCInvalidOperation), Data: []byte(fmt.Sprintf("unknown Command operation: %s", cmd.Type))}
	}
	if !fsm.database.SupportsFeature(feat) {
		return sm.Result{Value: uint64(store.RetCUnsupportedOperation), Data: []byte(fmt.Sprintf("%s operation is not supported", cmd.Type))}
	}

	switch cmd.Type {
	case internal.CommandTSet:
		fsm.database.Set(cmd.Key, cmd.Value, e.Index)
	case internal.CommandTSetE:
		fsm.database.SetE(cmd.Key, cmd.Value, e.Index, cmd.DeleteAt)
	case internal.CommandTDelete:
		if fsm.database.Delete(cmd.Key, e.Index) {
			return sm.Result{Value: uint64(store.RetCSuccess), Data: []byte{resultDeleted}}
		}
		return sm.Result{Value: uint64(store.RetCSuccess), Data: []byte{resultMissing}}
	}
	return sm.Result{Value: uint64(store.RetCSuccess)}
}

// PrepareSnapshot is not used, snapshots are fuzzy.
func (fsm *CacheStateMachine) PrepareSnapshot() (interface{}, error) {
	return nil, nil
}

// SaveSnapshot writes a fuzzy engine snapshot.
func (fsm *CacheStateMachine) SaveSnapshot(_ interface{}, writer io.Writer, _ sm.ISnapshotFileCollection, _ <-chan struct{}) error {
	if !fsm.database.SupportsFeature(db.FeatureSave) {
		return fmt.Errorf("the used KVDB implementation does not support Save() operations")
	}
	return fsm.database.Save(writer)
}

// RecoverFromSnapshot restores the engine from a snapshot.
func (fsm *CacheStateMachine) RecoverFromSnapshot(r io.Reader, _ []sm.SnapshotFile, _ <-chan struct{}) error {
	if !fsm.database.SupportsFeature(db.FeatureLoad) {
		return fmt.Errorf("the used KVDB implementation does not support Load() operations")
	}
	return fsm.database.Load(r)
}

// Close releases the engine.
func (fsm *CacheStateMachine) Close() error {
	return fsm.database.Close()
}
