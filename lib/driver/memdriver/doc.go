// Package memdriver is an in-memory driver.Driver.
//
// It understands the query operators $eq $ne $gt $gte $lt $lte $in $nin $exists
// $and $or, the update operators $set $unset $inc and the pipeline stages
// $match $skip $limit $count. Everything else fails with driver.ErrUnsupported.
// Only top level fields are addressed, dotted paths are not resolved.
//
// Rows are kept in insertion order and copied through BSON on every access.
package memdriver
