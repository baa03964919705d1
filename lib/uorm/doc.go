/*
Package uorm maps documents of a database to records with a cache-aware life cycle.

A Model is built from a Schema (collection, fields, key field, cache key fields, hooks).
Bound to a driver.Driver and an optional cache.Manager it becomes a Collection:

	users := uorm.NewCollection(userModel, db, manager)
	u, _ := users.New(bson.M{"name": "alice"})
	_ = u.Save(ctx)
	u, _ = users.CacheGet(ctx, "alice")

Saving writes to the database first and then deletes the cache keys of the record
from L2 and L1. The keys are computed from the values the record had when it was
loaded or last saved.

# Submodels

An abstract model is the root of a family of submodels that share one collection and
are told apart by the "submodel" discriminator:

	base, _ := uorm.NewAbstractModel(schema)
	car, _ := base.Submodel("car", uorm.Field{Name: "wheels", Default: 4})

Queries through a concrete submodel only see its own rows, queries through the root
see all of them. Loaded rows are dispatched to the model registered for their
discriminator.

# Shards

ShardedCollection does the same over the shards of a driver.Router. Every operation
takes the shard id first and cache keys carry the shard.

Bulk operations (Collection.Bulk) skip hooks, validation and invalidation.
*/
package uorm
