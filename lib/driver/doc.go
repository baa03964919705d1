// Package driver defines the database contract consumed by lib/uorm.
//
// A Driver operates on named collections of bson.M rows. Two implementations exist:
//
//   - memdriver: in-process, BSON round-tripping, supports a small query subset
//   - mongodriver: MongoDB via go.mongodb.org/mongo-driver/v2
//
// A Router adds shards: one meta Driver plus one Driver per shard id.
package driver
