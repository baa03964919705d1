// Package common holds the types shared by the cache client and the cache server:
// the Message protocol and the client and server configuration.
//
// Key Components:
//
//   - Message: a single flat structure for requests and responses. Errors raised by
//     a store on the server travel as message plus store.RetCode and are turned back
//     into a *store.Error on the client (see AsError).
//
//   - ServerConfig: shards, raft parameters (dstore shards only), transport settings.
//     ToNodeHostConfig and ToDragonboatConfig derive the dragonboat configuration.
//
//   - ClientConfig: endpoints, timeouts and retries of an L2 cache client.
package common
