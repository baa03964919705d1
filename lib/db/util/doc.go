// Package util provides small helpers shared by the db.KVDB engines:
// seed generation and the FNV-1a based shard selection.
package util
