package transport

import (
	"github.com/ValentinKolb/uorm/rpc/common"
)

// --------------------------------------------------------------------------
// Server Transport
// --------------------------------------------------------------------------

// ServerHandleFunc is called by a server transport for every received request.
// It takes the shardId and the serialized request and returns the serialized response.
type ServerHandleFunc func(shardId uint64, req []byte) (resp []byte)

// IRPCServerTransport is the interface for the server side of the transport layer
type IRPCServerTransport interface {
	// RegisterHandler registers the handler that is called for every request.
	// The transport is responsible for passing the shardId along.
	RegisterHandler(handler ServerHandleFunc)
	// Listen starts the transport and blocks until Close is called or the listener fails.
	// After Close, Listen returns nil.
	Listen(config common.ServerConfig) error
	// Close stops the listener. Open connections are closed as well.
	Close() error
}

// --------------------------------------------------------------------------
// Client Transport
// --------------------------------------------------------------------------

// IRPCClientTransport is the interface for the client side of the transport layer
type IRPCClientTransport interface {
	// Connect initializes the transport with the given configuration
	Connect(config common.ClientConfig) error
	// Send sends a request to the server and returns the response
	Send(shardId uint64, req []byte) (resp []byte, err error)
	// Close closes the transport connection
	Close() error
}
