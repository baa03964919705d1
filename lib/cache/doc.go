// Package cache implements the two-tier document cache.
//
// A Manager combines a process-local tier (L1, lstore over maple) and a shared tier
// (L2, usually an rpc/client store talking to `uorm serve`). The protocol is encoded
// once here and knows nothing about documents:
//
//   - Fetch: L1 hit, else L2 hit (promoted to L1), else one loader call per key
//     (singleflight) whose result is written to L2 and then L1.
//   - Invalidate/Delete: L2 first, then L1. Missing keys are not an error.
//
// Every Manager owns a VictoriaMetrics set with hit, miss, load and delete counters.
package cache
