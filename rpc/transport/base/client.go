package base

import (
	"fmt"
	"math/rand"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ValentinKolb/uorm/rpc/common"
	"github.com/ValentinKolb/uorm/rpc/transport"
	"github.com/lni/dragonboat/v4/logger"
	"github.com/puzpuzpuz/xsync/v3"
)

var Logger = logger.GetLogger("transport/rpc")

// -----------------------------------------------------------
// Interface Definitions for dependency injection
// -----------------------------------------------------------

// IClientConnector defines the interface for transport-specific connection operations
type IClientConnector interface {
	// Connect establishes a single connection to the endpoint
	Connect(endpoint string) (net.Conn, error)

	// GetName returns the name of the transport type (e.g. "tcp")
	GetName() string

	// UpgradeConnection applies protocol-specific settings to an established connection
	UpgradeConnection(conn net.Conn, config common.ClientConfig) error
}

// -----------------------------------------------------------
// Helper Types
// -----------------------------------------------------------

// responseResult contains the result of a request
type responseResult struct {
	data []byte
	err  error
}

// clientConnection represents a single net connection
type clientConnection struct {
	conn         net.Conn
	endpoint     string
	stopCh       chan struct{} // Close signal for the reader goroutine
	requestChans *xsync.MapOf[uint64, chan responseResult]
	connMu       sync.Mutex // Protects the connection itself
	writeMu      sync.Mutex // Serializes frame writes
	parent       *clientTransport
}

// clientTransport implements the core client transport functionality
// independent of the specific transport medium
type clientTransport struct {
	connector     IClientConnector
	config        common.ClientConfig
	connections   []*clientConnection
	connectionsMu sync.RWMutex
	nextConnIndex atomic.Uint64 // Round Robin counter
	nextRequestID atomic.Uint64 // unique request IDs
	stopping      atomic.Bool
}

// -----------------------------------------------------------
// Transport Factory Method
// -----------------------------------------------------------

// NewBaseClientTransport creates a new base client transport with the specified connector
func NewBaseClientTransport(connector IClientConnector) transport.IRPCClientTransport {
	return &clientTransport{
		connector: connector,
	}
}

// --------------------------------------------------------------------------
// Interface Methods (docu see transport.IRPCClientTransport)
// --------------------------------------------------------------------------

func (t *clientTransport) Connect(config common.ClientConfig) error {
	if len(config.Transport.Endpoints) == 0 {
		return fmt.Errorf("no endpoints provided")
	}

	// Close all existing connections
	t.closeConnections()

	t.config = config
	t.stopping.Store(false)

	connectionsPerEP := max(1, config.Transport.ConnectionsPerEndpoint)
	connections := make([]*clientConnection, 0, len(config.Transport.Endpoints)*connectionsPerEP)

	for _, endpoint := range config.Transport.Endpoints {
		for i := 0; i < connectionsPerEP; i++ {
			clientConn := &clientConnection{
				endpoint:     endpoint,
				stopCh:       make(chan struct{}),
				requestChans: xsync.NewMapOf[uint64, chan responseResult](),
				parent:       t,
			}

			if err := clientConn.reconnect(); err != nil {
				Logger.Warningf("Failed to connect to %s (connection %d/%d): %v", endpoint, i+1, connectionsPerEP, err)
				continue
			}

			connections = append(connections, clientConn)
			Logger.Debugf("Connected to %s (connection %d/%d)", endpoint, i+1, connectionsPerEP)

			go clientConn.readResponses()
		}
	}

	if len(connections) == 0 {
		return fmt.Errorf("failed to connect to any endpoint")
	}

	t.connectionsMu.Lock()
	t.connections = connections
	t.connectionsMu.Unlock()

	Logger.Infof("Connected %d out of %d connections to %d endpoints using %s transport",
		len(connections), len(config.Transport.Endpoints)*connectionsPerEP, len(config.Transport.Endpoints), t.connector.GetName())

	return nil
}

func (t *clientTransport) Send(shardId uint64, req []byte) (resp []byte, err error) {
	requestID := t.nextRequestID.Add(1)
	timeout := time.Duration(t.config.TimeoutSecond) * time.Second

	send := func(connection *clientConnection) ([]byte, error) {
		conn := connection.current()
		if conn == nil {
			return nil, fmt.Errorf("connection to %s is closed", connection.endpoint)
		}

		respCh := make(chan responseResult, 1)
		connection.requestChans.Store(requestID, respCh)
		defer connection.requestChans.Delete(requestID)

		connection.writeMu.Lock()
		if timeout > 0 {
			_ = conn.SetWriteDeadline(time.Now().Add(timeout))
		}
		err := writeFrame(conn, shardId, requestID, req)
		connection.writeMu.Unlock()
		if err != nil {
			return nil, err
		}

		var timeoutCh <-chan time.Time
		if timeout > 0 {
			timer := time.NewTimer(timeout)
			defer timer.Stop()
			timeoutCh = timer.C
		}

		select {
		case result := <-respCh:
			return result.data, result.err
		case <-timeoutCh:
			return nil, fmt.Errorf("request timed out after %s", timeout)
		}
	}

	// We always try at least once
	maxAttempts := max(1, t.config.Transport.RetryCount)
	backoffMs := 50

	var lastErr error
	for i := 0; i < maxAttempts; i++ {
		connection := t.getNextConnection()
		if connection == nil {
			return nil, fmt.Errorf("no active connections available")
		}

		data, err := send(connection)
		if err == nil {
			return data, nil
		}

		lastErr = err
		Logger.Debugf("Request attempt %d/%d failed: %v", i+1, maxAttempts, err)

		if i < maxAttempts-1 {
			// Exponential backoff with a small random jitter (+-10%)
			jitter := float64(backoffMs) * (0.9 + 0.2*rand.Float64())
			time.Sleep(time.Duration(jitter) * time.Millisecond)
			backoffMs *= 2
		}
	}

	return nil, fmt.Errorf("failed to send request after %d attempts: %v", maxAttempts, lastErr)
}

func (t *clientTransport) Close() error {
	t.stopping.Store(true)
	t.closeConnections()
	return nil
}

// --------------------------------------------------------------------------
// Helper Methods
// --------------------------------------------------------------------------

// getNextConnection selects the next connection via Round Robin
func (t *clientTransport) getNextConnection() *clientConnection {
	t.connectionsMu.RLock()
	defer t.connectionsMu.RUnlock()

	switch len(t.connections) {
	case 0:
		return nil
	case 1:
		return t.connections[0]
	default:
		return t.connections[t.nextConnIndex.Add(1)%uint64(len(t.connections))]
	}
}

// closeConnections closes all active connections
func (t *clientTransport) closeConnections() {
	t.connectionsMu.Lock()
	defer t.connectionsMu.Unlock()

	for _, c := range t.connections {
		close(c.stopCh)
		c.connMu.Lock()
		if c.conn != nil {
			_ = c.conn.Close()
			c.conn = nil
		}
		c.connMu.Unlock()
	}
	t.connections = nil
}

// current returns the underlying connection (nil if closed)
func (c *clientConnection) current() net.Conn {
	c.connMu.Lock()
	defer c.connMu.Unlock()
	return c.conn
}

func (c *clientConnection) stopped() bool {
	select {
	case <-c.stopCh:
		return true
	default:
		return c.parent.stopping.Load()
	}
}

// failPending hands err to every request still waiting on this connection
func (c *clientConnection) failPending(err error) {
	c.requestChans.Range(func(id uint64, ch chan responseResult) bool {
		select {
		case ch <- responseResult{nil, err}:
		default:
		}
		return true
	})
}

// readResponses reads responses in a loop and distributes them to waiting requests.
// The connection is idle most of the time, so no read deadline is set here;
// request timeouts are enforced in Send.
func (c *clientConnection) readResponses() {
	for {
		if c.stopped() {
			return
		}

		conn := c.current()
		if conn == nil {
			if !c.reconnectWithBackoff() {
				return
			}
			continue
		}

		shardID, requestID, data, err := readFrame(conn, nil)
		if err != nil {
			if c.stopped() {
				return
			}
			Logger.Warningf("Connection to %s failed: %v", c.endpoint, err)
			c.failPending(fmt.Errorf("error reading response: %v", err))
			if !c.reconnectWithBackoff() {
				return
			}
			continue
		}

		if respCh, found := c.requestChans.Load(requestID); found {
			respCh <- responseResult{data, nil}
		} else {
			Logger.Warningf("Received response for unknown request ID %d with shard ID %d", requestID, shardID)
		}
	}
}

// reconnectWithBackoff retries reconnect until it succeeds or the connection is stopped
func (c *clientConnection) reconnectWithBackoff() bool {
	backoff := 50 * time.Millisecond
	for !c.stopped() {
		err := c.reconnect()
		if err == nil {
			Logger.Infof("Reconnected to %s", c.endpoint)
			return true
		}
		Logger.Errorf("Failed to reconnect to %s: %v", c.endpoint, err)

		select {
		case <-c.stopCh:
			return false
		case <-time.After(backoff):
		}
		backoff = min(2*backoff, 5*time.Second)
	}
	return false
}

// reconnect establishes or restores a connection to the endpoint
func (c *clientConnection) reconnect() error {
	c.connMu.Lock()
	defer c.connMu.Unlock()

	if c.conn != nil {
		_ = c.conn.Close()
		c.conn = nil
	}

	conn, err := c.parent.connector.Connect(c.endpoint)
	if err != nil {
		return fmt.Errorf("failed to connect to %s: %v", c.endpoint, err)
	}

	if err := c.parent.connector.UpgradeConnection(conn, c.parent.config); err != nil {
		_ = conn.Close()
		return fmt.Errorf("failed to upgrade connection to %s: %v", c.endpoint, err)
	}

	c.conn = conn
	return nil
}
