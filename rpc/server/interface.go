package server

import (
	"github.com/ValentinKolb/uorm/lib/store"
	"github.com/ValentinKolb/uorm/rpc/common"
)

// IRPCServer is a cache server serving one or more shards
type IRPCServer interface {
	// Serve creates the shards and blocks while the transport is listening
	Serve() error
	// Close stops the transport and releases all shards
	Close() error
}

// IRPCServerAdapter translates request messages into calls on a shard.
// Errors are reported inside the response message, never as Go errors.
type IRPCServerAdapter interface {
	Handle(req *common.Message, store store.IStore) (resp *common.Message)
}
