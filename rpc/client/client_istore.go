package client

import (
	"time"

	"github.com/ValentinKolb/uorm/lib/db"
	"github.com/ValentinKolb/uorm/lib/store"
	"github.com/ValentinKolb/uorm/rpc/common"
	"github.com/ValentinKolb/uorm/rpc/serializer"
	"github.com/ValentinKolb/uorm/rpc/transport"
	"github.com/goccy/go-json"
	"github.com/pkg/errors"
)

// NewRPCStore connects the transport and returns an IStore backed by one shard
// of a cache server. It is used as the shared (L2) cache tier.
func NewRPCStore(
	shardId uint64,
	config common.ClientConfig,
	transport transport.IRPCClientTransport,
	serializer serializer.IRPCSerializer,
) (store.IStore, error) {
	if err := transport.Connect(config); err != nil {
		return nil, err
	}

	Logger.Debugf("connected rpc store for shard %d%s", shardId, config.String())

	return &rpcStore{
		rpcClientAdapter{
			shardId:    shardId,
			config:     config,
			transport:  transport,
			serializer: serializer,
		},
	}, nil
}

type rpcStore struct {
	rpcClientAdapter
}

// --------------------------------------------------------------------------
// Interface Methods (docu see store/interface.go)
// --------------------------------------------------------------------------

func (i *rpcStore) Set(key string, value []byte) error {
	_, err := i.invoke(common.NewSetRequest(key, value))
	return err
}

func (i *rpcStore) SetE(key string, value []byte, ttl time.Duration) error {
	if ttl <= 0 {
		return i.Set(key, value)
	}
	// the wire carries milliseconds, never round a positive ttl down to "no ttl"
	ttl = max(ttl, time.Millisecond)
	_, err := i.invoke(common.NewSetERequest(key, value, ttl))
	return err
}

func (i *rpcStore) Delete(key string) (bool, error) {
	resp, err := i.invoke(common.NewDeleteRequest(key))
	if err != nil {
		return false, err
	}
	return resp.Ok, nil
}

func (i *rpcStore) Get(key string) ([]byte, bool, error) {
	resp, err := i.invoke(common.NewGetRequest(key))
	if err != nil {
		return nil, false, err
	}
	return resp.Value, resp.Ok, nil
}

func (i *rpcStore) Has(key string) (bool, error) {
	resp, err := i.invoke(common.NewHasRequest(key))
	if err != nil {
		return false, err
	}
	return resp.Ok, nil
}

func (i *rpcStore) GetDBInfo() (db.DatabaseInfo, error) {
	resp, err := i.invoke(common.NewInfoRequest())
	if err != nil {
		return db.DatabaseInfo{}, err
	}
	var info db.DatabaseInfo
	if err := json.Unmarshal(resp.Value, &info); err != nil {
		return db.DatabaseInfo{}, errors.Wrap(err, "decode db info")
	}
	return info, nil
}
