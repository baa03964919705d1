package dstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ValentinKolb/uorm/lib/db"
	"github.com/ValentinKolb/uorm/lib/store"
	"github.com/ValentinKolb/uorm/lib/store/dstore/internal"
	"github.com/lni/dragonboat/v4"
	"github.com/lni/dragonboat/v4/client"
	"github.com/lni/dragonboat/v4/logger"
)

var (
	retries = 5
	log     = logger.GetLogger("store")
)

// storeImpl sends commands and queries to one raft shard through a NodeHost.
type storeImpl struct {
	nh      *dragonboat.NodeHost
	shardID uint64
	cs      *client.Session
	timeout time.Duration
}

// NewDistributedStore creates a store whose writes are replicated through raft.
// Reads are linearizable (SyncRead) except GetDBInfo.
func NewDistributedStore(nh *dragonboat.NodeHost, shardID uint64, timeout time.Duration) store.IStore {
	return &storeImpl{
		nh:      nh,
		shardID: shardID,
		cs:      nh.GetNoOPSession(shardID),
		timeout: timeout,
	}
}

// --------------------------------------------------------------------------
// Internal write and read operations (used by interface methods)
// --------------------------------------------------------------------------

// write proposes a Command and waits until it is applied. It returns the
// result data of the state machine on success.
func (s *storeImpl) write(cmd internal.Command) ([]byte, error) {
	for i := 0; i < retries; i++ {
		ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
		res, err := s.nh.SyncPropose(ctx, s.cs, cmd.Serialize())
		cancel()

		if errors.Is(err, dragonboat.ErrSystemBusy) {
			log.Infof("SyncPropose: System busy, retrying (%d/%d)...", i+1, retries)
			time.Sleep(s.timeout / 10)
			continue
		}
		if err != nil {
			return nil, store.NewError(store.RetCInternalError, err.Error())
		}
		if res.Value != uint64(store.RetCSuccess) {
			return nil, store.NewError(store.RetCode(res.Value), string(res.Data))
		}
		return res.Data, nil
	}
	return nil, store.NewError(store.RetCInternalError, "timeout")
}

// read queries the state machine and casts the response into R.
// StaleRead is used if stale is set, SyncRead otherwise.
func read[R any](s *storeImpl, q internal.Query, stale bool) (R, error) {
	var zero R
	for i := 0; i < retries; i++ {
		var res interface{}
		var err error

		if stale {
			res, err = s.nh.StaleRead(s.shardID, q)
		} else {
			ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
			res, err = s.nh.SyncRead(ctx, s.shardID, q)
			cancel()
		}

		if errors.Is(err, dragonboat.ErrSystemBusy) {
			log.Infof("SyncRead: System busy, retrying (%d/%d)...", i+1, retries)
			time.Sleep(s.timeout / 10)
			continue
		}
		if err != nil {
			var storeErr *store.Error
			if errors.As(err, &storeErr) {
				return zero, storeErr
			}
			return zero, store.NewError(store.RetCInternalError, err.Error())
		}

		casted, ok := res.(R)
		if !ok {
			return zero, store.NewError(store.RetCInternalError,
				fmt.Sprintf("unexpected type: received %T, expected %T", res, zero))
		}
		return casted, nil
	}
	return zero, store.NewError(store.RetCInternalError, "timeout")
}

// --------------------------------------------------------------------------
// Interface Methods (docs see store/interface.go)
// --------------------------------------------------------------------------

func (s *storeImpl) Set(key string, value []byte) error {
	_, err := s.write(internal.Command{
		Type:  internal.CommandTSet,
		Key:   key,
		Value: value,
	})
	return err
}

func (s *storeImpl) SetE(key string, value []byte, ttl time.Duration) error {
	if ttl <= 0 {
		return s.Set(key, value)
	}
	_, err := s.write(internal.Command{
		Type:     internal.CommandTSetE,
		Key:      key,
		Value:    value,
		DeleteAt: store.Deadline(ttl),
	})
	return err
}

func (s *storeImpl) Delete(key string) (bool, error) {
	data, err := s.write(internal.Command{
		Type: internal.CommandTDelete,
		Key:  key,
	})
	if err != nil {
		return false, err
	}
	return len(data) == 1 && data[0] == resultDeleted, nil
}

func (s *storeImpl) Get(key string) ([]byte, bool, error) {
	res, err := read[internal.QueryResult](s, internal.Query{
		Type: internal.QueryTGet,
		Key:  key,
	}, false)
	if err != nil {
		return nil, false, err
	}
	return res.Value, res.Ok, nil
}

func (s *storeImpl) Has(key string) (bool, error) {
	return read[bool](s, internal.Query{
		Type: internal.QueryTHas,
		Key:  key,
	}, false)
}

func (s *storeImpl) GetDBInfo() (db.DatabaseInfo, error) {
	return read[db.DatabaseInfo](s, internal.Query{Type: internal.QueryTGetDBInfo}, true)
}
