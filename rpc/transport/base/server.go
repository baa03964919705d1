package base

import (
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ValentinKolb/uorm/rpc/common"
	"github.com/ValentinKolb/uorm/rpc/transport"
	"github.com/puzpuzpuz/xsync/v3"
)

// -----------------------------------------------------------
// Interface Definitions for dependency injection
// -----------------------------------------------------------

// IServerConnector defines the interface for transport-specific server operations
type IServerConnector interface {
	// Listen creates a listener and returns it
	Listen(config common.ServerConfig) (net.Listener, error)

	// GetName returns the name of the transport type (e.g. "tcp")
	GetName() string

	// UpgradeConnection applies protocol-specific settings to an accepted connection
	UpgradeConnection(conn net.Conn, config common.ServerConfig) error
}

// -----------------------------------------------------------
// Helper Types
// -----------------------------------------------------------

// serverTransport implements the core server transport functionality
type serverTransport struct {
	connector         IServerConnector
	handler           transport.ServerHandleFunc
	config            common.ServerConfig
	listener          net.Listener
	listenerMu        sync.Mutex
	closed            atomic.Bool
	conns             *xsync.MapOf[net.Conn, struct{}]
	bufferPool        *sync.Pool
	bufferSize        int
	maxWorkersPerConn int
}

// -----------------------------------------------------------
// Transport Factory Method
// -----------------------------------------------------------

// NewBaseServerTransport creates a new base server transport with per-connection worker pool
func NewBaseServerTransport(connector IServerConnector, bufferSize int, maxWorkersPerConn int) transport.IRPCServerTransport {
	// minimum one worker per connection
	maxWorkersPerConn = max(maxWorkersPerConn, 1)

	return &serverTransport{
		connector:         connector,
		bufferSize:        bufferSize,
		maxWorkersPerConn: maxWorkersPerConn,
		conns:             xsync.NewMapOf[net.Conn, struct{}](),
		bufferPool: &sync.Pool{
			New: func() interface{} {
				return make([]byte, bufferSize)
			},
		},
	}
}

// --------------------------------------------------------------------------
// Interface Methods (docu see transport.IRPCServerTransport)
// --------------------------------------------------------------------------

func (t *serverTransport) RegisterHandler(handler transport.ServerHandleFunc) {
	t.handler = handler
}

func (t *serverTransport) Listen(config common.ServerConfig) error {
	if t.handler == nil {
		return fmt.Errorf("no handler registered")
	}
	t.config = config

	listener, err := t.connector.Listen(config)
	if err != nil {
		return fmt.Errorf("failed to create listener: %v", err)
	}

	t.listenerMu.Lock()
	t.listener = listener
	t.listenerMu.Unlock()

	if t.closed.Load() {
		_ = listener.Close()
		return nil
	}

	Logger.Infof("Starting %s server on %s with %d workers per connection",
		t.connector.GetName(), listener.Addr(), t.maxWorkersPerConn)

	for {
		conn, err := listener.Accept()
		if err != nil {
			if t.closed.Load() || errors.Is(err, net.ErrClosed) {
				return nil
			}
			Logger.Errorf("Accept error: %v", err)
			continue
		}

		if err := t.connector.UpgradeConnection(conn, config); err != nil {
			Logger.Warningf("Failed to upgrade connection from %s: %v", conn.RemoteAddr(), err)
		}

		go t.handleConnection(conn)
	}
}

func (t *serverTransport) Close() error {
	t.closed.Store(true)

	t.listenerMu.Lock()
	var err error
	if t.listener != nil {
		err = t.listener.Close()
	}
	t.listenerMu.Unlock()

	t.conns.Range(func(conn net.Conn, _ struct{}) bool {
		_ = conn.Close()
		return true
	})
	return err
}

// Addr returns the address the server listens on (nil before Listen)
func (t *serverTransport) Addr() net.Addr {
	t.listenerMu.Lock()
	defer t.listenerMu.Unlock()
	if t.listener == nil {
		return nil
	}
	return t.listener.Addr()
}

// --------------------------------------------------------------------------
// Helper Methods
// --------------------------------------------------------------------------

// handleConnection handles incoming requests for one connection
func (t *serverTransport) handleConnection(conn net.Conn) {
	t.conns.Store(conn, struct{}{})
	defer func() {
		t.conns.Delete(conn)
		_ = conn.Close()
	}()

	timeout := time.Duration(t.config.TimeoutSecond) * time.Second

	// The buffered channel acts as a counting semaphore
	workerSemaphore := make(chan struct{}, t.maxWorkersPerConn)
	var wg sync.WaitGroup
	var connMutex sync.Mutex

	handleResponse := func(shardID, requestID uint64, data []byte) {
		start := time.Now()
		resp := t.handler(shardID, data)
		Logger.Debugf("Processed request for shard %d with requestID %d took %s", shardID, requestID, time.Since(start))

		connMutex.Lock()
		defer connMutex.Unlock()

		if timeout > 0 {
			if err := conn.SetWriteDeadline(time.Now().Add(timeout)); err != nil {
				Logger.Errorf("Failed to set write deadline: %v", err)
				return
			}
		}

		if err := writeFrame(conn, shardID, requestID, resp); err != nil {
			Logger.Errorf("Failed to write response: %v", err)
		}
	}

	handleRequest := func() error {
		buf := t.bufferPool.Get().([]byte)

		shardID, requestID, data, err := readFrame(conn, buf)
		if err != nil {
			t.bufferPool.Put(buf)
			return err
		}

		// blocks if maxWorkersPerConn is reached
		workerSemaphore <- struct{}{}
		wg.Add(1)

		go func() {
			defer func() {
				t.bufferPool.Put(buf)
				<-workerSemaphore
				wg.Done()
			}()
			handleResponse(shardID, requestID, data)
		}()

		return nil
	}

	for {
		err := handleRequest()
		if err == io.EOF {
			Logger.Debugf("Connection closed by client %s", conn.RemoteAddr())
			break
		}
		if err != nil {
			if !t.closed.Load() {
				Logger.Errorf("Error handling request: %v", err)
			}
			break
		}
	}

	// Wait for all workers to finish before closing the connection
	wg.Wait()
}
