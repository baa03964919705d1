package uorm

import (
	"context"
	"time"

	"github.com/ValentinKolb/uorm/lib/cache"
	"github.com/ValentinKolb/uorm/lib/driver"
	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/v2/bson"
)

// Collection binds a model to a database and an optional two-tier cache.
// It is safe for concurrent use, the records it returns are not.
type Collection struct {
	model     *Model
	db        driver.Driver
	cache     *cache.Manager
	keyPrefix string
	shard     string
}

// NewCollection creates a collection. cache may be nil, CacheGet then behaves like Get.
func NewCollection(model *Model, db driver.Driver, cache *cache.Manager) *Collection {
	return newCollection(model, db, cache, "")
}

func newCollection(model *Model, db driver.Driver, cache *cache.Manager, shard string) *Collection {
	prefix := model.schema.Collection
	if shard != "" {
		prefix += "@" + shard
	}
	return &Collection{
		model:     model,
		db:        db,
		cache:     cache,
		keyPrefix: prefix,
		shard:     shard,
	}
}

// view returns the collection of another model of the same family on the same
// database, cache and shard
func (c *Collection) view(m *Model) *Collection {
	if m == c.model {
		return c
	}
	v := *c
	v.model = m
	return &v
}

// Of returns the collection of the submodel sub. sub must belong to the family of
// the collection's model.
func (c *Collection) Of(sub *Model) (*Collection, error) {
	if sub == nil || c.model.root == nil || sub.root != c.model.root {
		return nil, integrityError("%s: %v is not part of this submodel family", c.model, sub)
	}
	return c.view(sub), nil
}

// Model returns the model of the collection
func (c *Collection) Model() *Model { return c.model }

// Name returns the name of the physical collection
func (c *Collection) Name() string { return c.model.schema.Collection }

// Shard returns the shard id, empty for unsharded collections
func (c *Collection) Shard() string { return c.shard }

// Driver returns the database of the collection
func (c *Collection) Driver() driver.Driver { return c.db }

// CacheKey returns the cache key of a key field value, "<collection>.<value>" or
// "<collection>@<shard>.<value>" for sharded collections
func (c *Collection) CacheKey(v any) string {
	return c.keyPrefix + "." + KeyString(v)
}

// --------------------------------------------------------------------------
// Queries
// --------------------------------------------------------------------------

// New creates an unsaved record with the defaults applied
func (c *Collection) New(attrs bson.M) (*Record, error) {
	return newRecord(c, attrs, true)
}

// Find returns a lazy cursor over the records matching query. Nothing is queried
// until the cursor is iterated.
func (c *Collection) Find(query bson.M) *Cursor {
	return &Cursor{coll: c, query: query}
}

// FindOne returns the first record matching query, nil if there is none
func (c *Collection) FindOne(ctx context.Context, query bson.M) (*Record, error) {
	row, err := c.db.FindOne(ctx, c.Name(), c.preprocess(query))
	if err != nil {
		return nil, errors.Wrapf(err, "find one in %s", c.Name())
	}
	if row == nil {
		return nil, nil
	}
	return c.decode(row)
}

// FindProjected returns the raw rows matching query reduced to projection
func (c *Collection) FindProjected(ctx context.Context, query bson.M, projection bson.M) ([]bson.M, error) {
	cur, err := c.db.Find(ctx, c.Name(), c.preprocess(query), &driver.FindOptions{Projection: projection})
	if err != nil {
		return nil, errors.Wrapf(err, "find projected in %s", c.Name())
	}
	return drain(ctx, cur)
}

// Count returns the number of rows matching query
func (c *Collection) Count(ctx context.Context, query bson.M) (int64, error) {
	n, err := c.db.Count(ctx, c.Name(), c.preprocess(query))
	return n, errors.Wrapf(err, "count in %s", c.Name())
}

// Aggregate runs pipeline on the rows matching query
func (c *Collection) Aggregate(ctx context.Context, pipeline []bson.M, query bson.M) ([]bson.M, error) {
	stages := make([]bson.M, 0, len(pipeline)+1)
	stages = append(stages, bson.M{"$match": c.preprocess(query)})
	stages = append(stages, pipeline...)

	cur, err := c.db.Aggregate(ctx, c.Name(), stages)
	if err != nil {
		return nil, errors.Wrapf(err, "aggregate %s", c.Name())
	}
	return drain(ctx, cur)
}

// Get resolves expr to a record. Canonical ObjectIDs (or their hex form) are looked up
// by _id, everything else by the key field of the schema. A nil expr matches nothing.
func (c *Collection) Get(ctx context.Context, expr any, opts ...Option) (*Record, error) {
	o := collectOptions(opts)
	if expr == nil {
		return c.notFound(expr, o)
	}
	rec, err := c.FindOne(ctx, c.keyQuery(expr))
	if err != nil || rec != nil {
		return rec, err
	}
	return c.notFound(expr, o)
}

// CacheGet is Get through the cache. A miss loads the row once, writes it to L2 and
// then to L1. The cache key is shared by the whole submodel family, when it holds a
// sibling's row the lookup is answered by Get instead.
func (c *Collection) CacheGet(ctx context.Context, expr any, opts ...Option) (*Record, error) {
	if c.cache == nil {
		return c.Get(ctx, expr, opts...)
	}
	o := collectOptions(opts)
	if expr == nil {
		return c.notFound(expr, o)
	}

	start := time.Now()
	key := c.CacheKey(ResolveID(expr))
	data, found, err := c.cache.Fetch(key, func() ([]byte, bool, error) {
		// unfiltered, so every view of the family caches the same row under the key
		row, err := c.db.FindOne(ctx, c.Name(), c.keyQuery(expr))
		if err != nil || row == nil {
			return nil, false, errors.Wrapf(err, "load %s", key)
		}
		data, err := bson.Marshal(row)
		return data, err == nil, err
	})
	if err != nil {
		return nil, err
	}
	if !found {
		return c.notFound(expr, o)
	}

	var row bson.M
	if err := bson.Unmarshal(data, &row); err != nil {
		return nil, errors.Wrapf(err, "decode cached %s", key)
	}
	if c.model.isConcrete() {
		if name, _ := row[submodelField].(string); name != c.model.submodel {
			Logger.Debugf("cached %s belongs to submodel %q, not %q, querying", key, name, c.model.submodel)
			return c.Get(ctx, expr, opts...)
		}
	}
	rec, err := c.decode(row)
	if err != nil {
		return nil, err
	}
	Logger.Debugf("cache get %s took %s", key, time.Since(start))
	return rec, nil
}

// Bulk returns the fast path for mass deletes and updates
func (c *Collection) Bulk() *Bulk {
	return &Bulk{coll: c}
}

// --------------------------------------------------------------------------
// Helper
// --------------------------------------------------------------------------

func (c *Collection) keyQuery(expr any) bson.M {
	if id, ok := ResolveID(expr).(bson.ObjectID); ok {
		return bson.M{idField: id}
	}
	return bson.M{c.model.schema.KeyField: expr}
}

func (c *Collection) notFound(expr any, o options) (*Record, error) {
	if !o.raise {
		return nil, nil
	}
	if o.raiseErr != nil {
		return nil, o.raiseErr
	}
	return nil, &NotFound{Collection: c.Name(), Expr: expr}
}

func drain(ctx context.Context, cur driver.Cursor) ([]bson.M, error) {
	defer cur.Close(ctx)

	var rows []bson.M
	for cur.Next(ctx) {
		var row bson.M
		if err := cur.Decode(&row); err != nil {
			return nil, errors.Wrap(err, "decode row")
		}
		rows = append(rows, row)
	}
	return rows, errors.Wrap(cur.Err(), "iterate rows")
}
