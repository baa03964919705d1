// Package logging wires go.uber.org/zap into the logger facade of dragonboat.
//
// All packages of this module obtain their logger with
//
//	var Logger = logger.GetLogger("cache")
//
// from github.com/lni/dragonboat/v4/logger. Calling Init once at startup swaps the
// backing implementation of every logger (including the ones created by dragonboat
// itself) to a console encoded zap logger and applies the requested level.
//
// Known logger names: uorm, cache, driver, store, rpc, transport/rpc and the
// dragonboat internals (raft, raftdb, rsm, transport, dragonboat, grpc, util, logdb).
package logging
