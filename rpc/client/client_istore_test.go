package client_test

import (
	"bytes"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/ValentinKolb/uorm/lib/db"
	"github.com/ValentinKolb/uorm/lib/store"
	"github.com/ValentinKolb/uorm/rpc/client"
	"github.com/ValentinKolb/uorm/rpc/common"
	"github.com/ValentinKolb/uorm/rpc/serializer"
	"github.com/ValentinKolb/uorm/rpc/server"
	"github.com/ValentinKolb/uorm/rpc/transport"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// loopback connects a client and a server in the same process
type loopback struct {
	mu      sync.RWMutex
	handler transport.ServerHandleFunc
	ready   chan struct{}
	stop    chan struct{}
	once    sync.Once
}

func newLoopback() *loopback {
	return &loopback{ready: make(chan struct{}), stop: make(chan struct{})}
}

func (l *loopback) RegisterHandler(handler transport.ServerHandleFunc) {
	l.mu.Lock()
	l.handler = handler
	l.mu.Unlock()
}

func (l *loopback) Listen(common.ServerConfig) error {
	close(l.ready)
	<-l.stop
	return nil
}

func (l *loopback) Close() error {
	l.once.Do(func() { close(l.stop) })
	return nil
}

func (l *loopback) Connect(common.ClientConfig) error {
	select {
	case <-l.ready:
		return nil
	case <-time.After(2 * time.Second):
		return fmt.Errorf("server not ready")
	}
}

func (l *loopback) Send(shardId uint64, req []byte) ([]byte, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.handler(shardId, bytes.Clone(req)), nil
}

func startServer(t *testing.T, ser serializer.IRPCSerializer) *loopback {
	t.Helper()
	lb := newLoopback()
	s := server.NewRPCServer(common.ServerConfig{
		Shards: []common.ServerShard{{ShardID: 1, Type: common.ShardTypeLocalIStore}},
	}, lb, ser)

	done := make(chan error, 1)
	go func() { done <- s.Serve() }()
	t.Cleanup(func() {
		require.NoError(t, s.Close())
		require.NoError(t, <-done)
	})
	return lb
}

func TestRPCStore(t *testing.T) {
	for _, name := range []string{"json", "gob", "cbor"} {
		t.Run(name, func(t *testing.T) {
			ser, err := serializer.ByName(name)
			require.NoError(t, err)

			lb := startServer(t, ser)
			s, err := client.NewRPCStore(1, common.ClientConfig{TimeoutSecond: 1}, lb, ser)
			require.NoError(t, err)

			require.NoError(t, s.Set("users.42", []byte("doc")))

			val, ok, err := s.Get("users.42")
			require.NoError(t, err)
			assert.True(t, ok)
			assert.Equal(t, []byte("doc"), val)

			ok, err = s.Has("users.42")
			require.NoError(t, err)
			assert.True(t, ok)

			deleted, err := s.Delete("users.42")
			require.NoError(t, err)
			assert.True(t, deleted)

			deleted, err = s.Delete("users.42")
			require.NoError(t, err)
			assert.False(t, deleted)

			_, ok, err = s.Get("users.42")
			require.NoError(t, err)
			assert.False(t, ok)

			require.NoError(t, s.SetE("ttl", []byte("v"), 30*time.Millisecond))
			assert.Eventually(t, func() bool {
				ok, err := s.Has("ttl")
				return err == nil && !ok
			}, time.Second, 10*time.Millisecond)

			info, err := s.GetDBInfo()
			require.NoError(t, err)
			assert.Equal(t, db.ImplMaple, info.DbType)
		})
	}
}

func TestRPCStoreUnknownShard(t *testing.T) {
	ser := serializer.NewCBORSerializer()
	lb := startServer(t, ser)

	s, err := client.NewRPCStore(7, common.ClientConfig{}, lb, ser)
	require.NoError(t, err)

	_, _, err = s.Get("k")
	var storeErr *store.Error
	require.ErrorAs(t, err, &storeErr)
	assert.Equal(t, store.RetCInvalidOperation, storeErr.Code)
}
