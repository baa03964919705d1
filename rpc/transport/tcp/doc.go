// Package tcp provides the TCP connectors for the framed transport in rpc/transport/base.
//
// Both sides apply the socket options of common.TransportConfig (TCP_NODELAY,
// keep-alive, linger, socket buffer sizes) to every connection.
//
// The default server read buffer is 512 KB with 16 workers per connection.
package tcp
