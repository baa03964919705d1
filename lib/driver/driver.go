package driver

import (
	"context"
	"errors"
	"sort"

	"go.mongodb.org/mongo-driver/v2/bson"
)

var (
	// ErrUnknownShard is returned by a Router for an empty or unknown shard id
	ErrUnknownShard = errors.New("unknown shard")
	// ErrUnsupported is returned for query, update or pipeline operators a driver does not implement
	ErrUnsupported = errors.New("unsupported operator")
)

// Cursor iterates over the rows of a query. It mirrors the subset of *mongo.Cursor
// used by uorm.
type Cursor interface {
	// Next advances to the next row, false at the end or on error
	Next(ctx context.Context) bool
	// Decode decodes the current row into val
	Decode(val any) error
	// Err returns the last error of the cursor
	Err() error
	// Close releases the cursor
	Close(ctx context.Context) error
}

// FindOptions controls a Find. Zero values mean "not set".
type FindOptions struct {
	Sort       bson.D
	Skip       int64
	Limit      int64
	Projection bson.M
}

// Driver is the database of one logical collection space (the meta database or one shard).
// Every method takes the collection name. Rows are plain bson.M documents keyed by "_id".
type Driver interface {
	// Find returns a cursor over all rows matching query
	Find(ctx context.Context, collection string, query bson.M, opts *FindOptions) (Cursor, error)
	// FindOne returns the first row matching query, nil if there is none
	FindOne(ctx context.Context, collection string, query bson.M) (bson.M, error)
	// Count returns the number of rows matching query
	Count(ctx context.Context, collection string, query bson.M) (int64, error)
	// Aggregate runs a pipeline on the collection
	Aggregate(ctx context.Context, collection string, pipeline []bson.M) (Cursor, error)
	// Save inserts doc or replaces the row with the same "_id"
	Save(ctx context.Context, collection string, doc bson.M) error
	// Delete removes the row with the given id, a missing row is not an error
	Delete(ctx context.Context, collection string, id any) error
	// DeleteMany removes all rows matching query
	DeleteMany(ctx context.Context, collection string, query bson.M) (int64, error)
	// UpdateMany applies update to all rows matching query
	UpdateMany(ctx context.Context, collection string, query bson.M, update bson.M) (int64, error)
	// FindAndUpdate atomically applies update to the first row matching query and
	// returns the row after the update, nil if nothing matched
	FindAndUpdate(ctx context.Context, collection string, query bson.M, update bson.M) (bson.M, error)
	// Close releases the connection
	Close(ctx context.Context) error
}

// Router gives access to the meta database and the shards of a sharded deployment
type Router interface {
	// Meta returns the driver of the non-sharded database
	Meta() Driver
	// Shard returns the driver of a shard or ErrUnknownShard
	Shard(id string) (Driver, error)
	// Shards returns the ids of all shards
	Shards() []string
	// Close closes the meta driver and all shard drivers
	Close(ctx context.Context) error
}

// StaticRouter is a Router over a fixed set of drivers
type StaticRouter struct {
	MetaDriver Driver
	ShardMap   map[string]Driver
}

func (r *StaticRouter) Meta() Driver {
	return r.MetaDriver
}

func (r *StaticRouter) Shard(id string) (Driver, error) {
	if id == "" {
		return nil, ErrUnknownShard
	}
	d, ok := r.ShardMap[id]
	if !ok {
		return nil, ErrUnknownShard
	}
	return d, nil
}

func (r *StaticRouter) Shards() []string {
	ids := make([]string, 0, len(r.ShardMap))
	for id := range r.ShardMap {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func (r *StaticRouter) Close(ctx context.Context) error {
	var errs []error
	if r.MetaDriver != nil {
		errs = append(errs, r.MetaDriver.Close(ctx))
	}
	for _, d := range r.ShardMap {
		errs = append(errs, d.Close(ctx))
	}
	return errors.Join(errs...)
}
