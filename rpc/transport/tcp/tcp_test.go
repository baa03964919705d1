package tcp

import (
	"bytes"
	"fmt"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/ValentinKolb/uorm/rpc/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type addrProvider interface {
	Addr() net.Addr
}

// startEchoServer starts a server that prefixes the payload with the shard id
func startEchoServer(t *testing.T) (string, func()) {
	t.Helper()

	server := NewTCPServerTransport(0, 4)
	server.RegisterHandler(func(shardId uint64, req []byte) []byte {
		return append([]byte(fmt.Sprintf("%d:", shardId)), req...)
	})

	done := make(chan error, 1)
	go func() {
		done <- server.Listen(common.ServerConfig{
			TimeoutSecond: 5,
			Transport:     common.TransportConfig{Endpoint: "127.0.0.1:0", TCPNoDelay: true, TCPLingerSec: -1},
		})
	}()

	var addr net.Addr
	require.Eventually(t, func() bool {
		addr = server.(addrProvider).Addr()
		return addr != nil
	}, 2*time.Second, 10*time.Millisecond)

	return addr.String(), func() {
		require.NoError(t, server.Close())
		require.NoError(t, <-done)
	}
}

func TestRoundTrip(t *testing.T) {
	endpoint, stop := startEchoServer(t)
	defer stop()

	client := NewTCPClientTransport()
	require.NoError(t, client.Connect(common.ClientConfig{
		TimeoutSecond: 5,
		Transport: common.TransportConfig{
			Endpoints:              []string{endpoint},
			RetryCount:             2,
			ConnectionsPerEndpoint: 2,
			TCPNoDelay:             true,
			TCPLingerSec:           -1,
		},
	}))
	defer client.Close()

	resp, err := client.Send(7, []byte("hello"))
	require.NoError(t, err)
	assert.Equal(t, []byte("7:hello"), resp)

	resp, err = client.Send(1, nil)
	require.NoError(t, err)
	assert.Equal(t, []byte("1:"), resp)

	large := bytes.Repeat([]byte("x"), 1<<20)
	resp, err = client.Send(2, large)
	require.NoError(t, err)
	assert.Equal(t, len(large)+2, len(resp))
}

func TestConcurrentRequests(t *testing.T) {
	endpoint, stop := startEchoServer(t)
	defer stop()

	client := NewTCPClientTransport()
	require.NoError(t, client.Connect(common.ClientConfig{
		TimeoutSecond: 5,
		Transport:     common.TransportConfig{Endpoints: []string{endpoint}, RetryCount: 1, TCPLingerSec: -1},
	}))
	defer client.Close()

	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			payload := []byte(fmt.Sprintf("req-%d", i))
			resp, err := client.Send(uint64(i), payload)
			if assert.NoError(t, err) {
				assert.Equal(t, fmt.Sprintf("%d:req-%d", i, i), string(resp))
			}
		}(i)
	}
	wg.Wait()
}

func TestConnectWithoutEndpoints(t *testing.T) {
	client := NewTCPClientTransport()
	assert.Error(t, client.Connect(common.ClientConfig{}))
}

func TestConnectToClosedPort(t *testing.T) {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	endpoint := listener.Addr().String()
	require.NoError(t, listener.Close())

	client := NewTCPClientTransport()
	assert.Error(t, client.Connect(common.ClientConfig{
		Transport: common.TransportConfig{Endpoints: []string{endpoint}, TCPLingerSec: -1},
	}))
}
