package uorm

import (
	"context"

	"github.com/ValentinKolb/uorm/lib/cache"
	"github.com/ValentinKolb/uorm/lib/driver"
	"github.com/pkg/errors"
	"github.com/puzpuzpuz/xsync/v3"
	"go.mongodb.org/mongo-driver/v2/bson"
)

// ShardedCollection is a model spread over the shards of a router. Every operation
// takes the shard id first. All shards share the model and its registry, cache keys
// are prefixed with "<collection>@<shard>".
type ShardedCollection struct {
	model  *Model
	router driver.Router
	cache  *cache.Manager
	views  *xsync.MapOf[string, *Collection]
}

// NewShardedCollection creates a sharded collection. cache may be nil.
func NewShardedCollection(model *Model, router driver.Router, cache *cache.Manager) *ShardedCollection {
	return &ShardedCollection{
		model:  model,
		router: router,
		cache:  cache,
		views:  xsync.NewMapOf[string, *Collection](),
	}
}

// Shard returns the collection of one shard, driver.ErrUnknownShard if the router
// does not know it
func (s *ShardedCollection) Shard(id string) (*Collection, error) {
	if c, ok := s.views.Load(id); ok {
		return c, nil
	}
	db, err := s.router.Shard(id)
	if err != nil {
		return nil, errors.Wrapf(err, "%s shard %q", s.model, id)
	}
	c, _ := s.views.LoadOrStore(id, newCollection(s.model, db, s.cache, id))
	return c, nil
}

// Shards returns the ids known to the router
func (s *ShardedCollection) Shards() []string {
	return s.router.Shards()
}

// Model returns the model of the collection
func (s *ShardedCollection) Model() *Model { return s.model }

// Of returns the sharded collection of a submodel of the same family
func (s *ShardedCollection) Of(sub *Model) (*ShardedCollection, error) {
	if sub == nil || s.model.root == nil || sub.root != s.model.root {
		return nil, integrityError("%s: %v is not part of this submodel family", s.model, sub)
	}
	return NewShardedCollection(sub, s.router, s.cache), nil
}

// --------------------------------------------------------------------------
// Shard-first operations (docu see collection.go)
// --------------------------------------------------------------------------

func (s *ShardedCollection) New(shard string, attrs bson.M) (*Record, error) {
	c, err := s.Shard(shard)
	if err != nil {
		return nil, err
	}
	return c.New(attrs)
}

func (s *ShardedCollection) Find(shard string, query bson.M) (*Cursor, error) {
	c, err := s.Shard(shard)
	if err != nil {
		return nil, err
	}
	return c.Find(query), nil
}

func (s *ShardedCollection) FindOne(ctx context.Context, shard string, query bson.M) (*Record, error) {
	c, err := s.Shard(shard)
	if err != nil {
		return nil, err
	}
	return c.FindOne(ctx, query)
}

func (s *ShardedCollection) FindProjected(ctx context.Context, shard string, query, projection bson.M) ([]bson.M, error) {
	c, err := s.Shard(shard)
	if err != nil {
		return nil, err
	}
	return c.FindProjected(ctx, query, projection)
}

func (s *ShardedCollection) Count(ctx context.Context, shard string, query bson.M) (int64, error) {
	c, err := s.Shard(shard)
	if err != nil {
		return 0, err
	}
	return c.Count(ctx, query)
}

func (s *ShardedCollection) Aggregate(ctx context.Context, shard string, pipeline []bson.M, query bson.M) ([]bson.M, error) {
	c, err := s.Shard(shard)
	if err != nil {
		return nil, err
	}
	return c.Aggregate(ctx, pipeline, query)
}

func (s *ShardedCollection) Get(ctx context.Context, shard string, expr any, opts ...Option) (*Record, error) {
	c, err := s.Shard(shard)
	if err != nil {
		return nil, err
	}
	return c.Get(ctx, expr, opts...)
}

func (s *ShardedCollection) CacheGet(ctx context.Context, shard string, expr any, opts ...Option) (*Record, error) {
	c, err := s.Shard(shard)
	if err != nil {
		return nil, err
	}
	return c.CacheGet(ctx, expr, opts...)
}

func (s *ShardedCollection) Bulk(shard string) (*Bulk, error) {
	c, err := s.Shard(shard)
	if err != nil {
		return nil, err
	}
	return c.Bulk(), nil
}
