// Package internal holds the raft log format of the dstore package.
//
// Command Format:
//
//   - 1 byte: Command type (Set, SetE, Delete)
//   - 8 bytes: DeleteAt (int64 unix nanoseconds, big endian, 0 = no deadline)
//   - 4 bytes: Key length (uint32, big endian)
//   - N bytes: Key data
//   - M bytes: Value data (absent for Delete)
//
// Queries are executed locally on the state machine and are never serialized.
package internal
