package lstore

import (
	"sync/atomic"
	"time"

	"github.com/ValentinKolb/uorm/lib/db"
	"github.com/ValentinKolb/uorm/lib/store"
)

type storeImpl struct {
	db    db.KVDB
	index atomic.Uint64
}

// NewLocalStore creates a new process-local store. It is used as the L1 cache tier
// and as a non-replicated shard of a cache server.
func NewLocalStore(factory store.DBFactory) store.IStore {
	return &storeImpl{
		db: factory(),
	}
}

// incAndGetIndex returns a fresh write index.
//
// Thread-safety: This method is thread-safe since it uses atomic operations.
func (s *storeImpl) incAndGetIndex() uint64 {
	return s.index.Add(1)
}

// --------------------------------------------------------------------------
// Interface Methods (docu see store/interface.go)
// --------------------------------------------------------------------------

func (s *storeImpl) Set(key string, value []byte) error {
	if !s.db.SupportsFeature(db.FeatureSet) {
		return store.NewError(store.RetCUnsupportedOperation, "Set operation is not supported")
	}
	s.db.Set(key, value, s.incAndGetIndex())
	return nil
}

func (s *storeImpl) SetE(key string, value []byte, ttl time.Duration) error {
	if ttl <= 0 {
		return s.Set(key, value)
	}
	if !s.db.SupportsFeature(db.FeatureSetE) {
		return store.NewError(store.RetCUnsupportedOperation, "SetE operation is not supported")
	}
	s.db.SetE(key, value, s.incAndGetIndex(), store.Deadline(ttl))
	return nil
}

func (s *storeImpl) Delete(key string) (bool, error) {
	if !s.db.SupportsFeature(db.FeatureDelete) {
		return false, store.NewError(store.RetCUnsupportedOperation, "Delete operation is not supported")
	}
	return s.db.Delete(key, s.incAndGetIndex()), nil
}

func (s *storeImpl) Get(key string) ([]byte, bool, error) {
	if !s.db.SupportsFeature(db.FeatureGet) {
		return nil, false, store.NewError(store.RetCUnsupportedOperation, "Get operation is not supported")
	}
	val, ok := s.db.Get(key)
	return val, ok, nil
}

func (s *storeImpl) Has(key string) (bool, error) {
	if !s.db.SupportsFeature(db.FeatureHas) {
		return false, store.NewError(store.RetCUnsupportedOperation, "Has operation is not supported")
	}
	return s.db.Has(key), nil
}

func (s *storeImpl) GetDBInfo() (db.DatabaseInfo, error) {
	return s.db.GetInfo(), nil
}
