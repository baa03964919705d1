// Package mongodriver implements driver.Driver on top of go.mongodb.org/mongo-driver/v2.
//
// Every operation is recorded in a rcrowley/go-metrics timer ("driver.<op>") of the
// driver's registry and logged at debug level with its duration. Errors are wrapped
// with the operation and collection; mongo.ErrNoDocuments is mapped to a nil row.
package mongodriver
