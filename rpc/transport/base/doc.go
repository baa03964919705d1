// Package base implements the protocol independent part of the stream transports
// used between a cache client and a cache server. Protocol specific code (dialing,
// listening, socket options) is injected through IClientConnector and IServerConnector.
//
// Frames:
//
//	[8 byte shardId][8 byte requestID][4 byte length][payload]
//
// The client multiplexes requests over a small pool of connections and correlates
// responses by requestID, so responses may arrive out of order. Requests are retried
// with exponential backoff on another connection of the pool. A broken connection fails
// all its pending requests and is re-established in the background.
//
// The server reads frames sequentially and processes them with a bounded number of
// workers per connection. Read buffers are taken from a sync.Pool.
//
// Thread Safety:
//
//	All methods of the returned transports are safe for concurrent use.
package base
