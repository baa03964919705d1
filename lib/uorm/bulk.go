package uorm

import (
	"context"
	"strings"

	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/v2/bson"
)

// Bulk is the fast path for mass writes. It applies the submodel isolation of its
// collection but runs no hooks, no validation and no cache invalidation.
type Bulk struct {
	coll *Collection
}

// DestroyAll deletes every row visible to the collection
func (b *Bulk) DestroyAll(ctx context.Context) (int64, error) {
	return b.DestroyMany(ctx, bson.M{})
}

// DestroyMany deletes the rows matching query
func (b *Bulk) DestroyMany(ctx context.Context, query bson.M) (int64, error) {
	n, err := b.coll.db.DeleteMany(ctx, b.coll.Name(), b.coll.preprocess(query))
	if err != nil {
		return 0, errors.Wrapf(err, "destroy many in %s", b.coll.Name())
	}
	Logger.Debugf("destroyed %d rows in %s", n, b.coll.Name())
	return n, nil
}

// UpdateMany applies update to the rows matching query. A document without update
// operators is treated as {"$set": update}.
func (b *Bulk) UpdateMany(ctx context.Context, query bson.M, update bson.M) (int64, error) {
	if !hasOperators(update) {
		update = bson.M{"$set": update}
	}
	n, err := b.coll.db.UpdateMany(ctx, b.coll.Name(), b.coll.preprocess(query), update)
	if err != nil {
		return 0, errors.Wrapf(err, "update many in %s", b.coll.Name())
	}
	Logger.Debugf("updated %d rows in %s", n, b.coll.Name())
	return n, nil
}

func hasOperators(update bson.M) bool {
	for k := range update {
		if strings.HasPrefix(k, "$") {
			return true
		}
	}
	return false
}
