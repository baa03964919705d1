// Package client provides the client side of the cache server protocol.
//
// NewRPCStore returns a store.IStore whose operations are executed on one shard
// of a cache server. This is the shared (L2) tier used by lib/cache:
//
//	l2, err := client.NewRPCStore(
//		1,
//		common.ClientConfig{TimeoutSecond: 5, Transport: common.TransportConfig{Endpoints: []string{"localhost:8080"}}},
//		http.NewHttpClientTransport(),
//		serializer.NewCBORSerializer(),
//	)
//
// Errors raised by the store on the server are returned as *store.Error with the
// original return code. Transport and serialization errors are wrapped.
package client
