// Package cmd implements the uorm command-line interface.
//
// The package is organized into several subpackages:
//
//   - serve: starts a cache server hosting local (lstore) or RAFT replicated (dstore) shards
//   - cache: raw get, set, del and has on one shard of a cache server
//   - docs: documents in MongoDB read through the two-tier cache
//   - util: shared utilities for command-line processing and configuration (internal use)
//
// Every flag can also be set as environment variable UORM_<FLAG> (e.g. UORM_LOG_LEVEL=debug),
// .env and .env.local are loaded on startup.
//
// See uorm -help for a list of all commands.
package cmd
