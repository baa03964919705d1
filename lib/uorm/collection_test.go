package uorm

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/ValentinKolb/uorm/lib/driver/memdriver"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/v2/bson"
)

func TestGetExpressions(t *testing.T) {
	f := newUserFixture(t)
	ctx := context.Background()
	f.create(t, bson.M{"name": "alice"})

	rec, err := f.users.Get(ctx, nil)
	require.NoError(t, err)
	assert.Nil(t, rec)

	rec, err = f.users.Get(ctx, "nobody")
	require.NoError(t, err)
	assert.Nil(t, rec)

	_, err = f.users.Get(ctx, "nobody", RaiseIfNone(nil))
	var nf *NotFound
	require.ErrorAs(t, err, &nf)
	assert.Equal(t, "nobody", nf.Expr)

	_, err = f.users.Get(ctx, nil, RaiseIfNone(nil))
	assert.ErrorIs(t, err, ErrNotFound)

	custom := errors.New("no such user")
	_, err = f.users.Get(ctx, bson.NewObjectID(), RaiseIfNone(custom))
	assert.Same(t, custom, err)

	_, err = f.users.CacheGet(ctx, "nobody", RaiseIfNone(custom))
	assert.Same(t, custom, err)
}

func TestSubmodelIsolation(t *testing.T) {
	f := newVehicleFixture(t)
	ctx := context.Background()

	f.create(t, f.cars, "alice")
	f.create(t, f.cars, "bob")
	bike := f.create(t, f.bikes, "carol")

	cars, err := f.cars.Find(bson.M{}).All(ctx)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"alice", "bob"}, owners(t, cars))
	for _, c := range cars {
		assert.Same(t, f.car, c.Model())
	}

	// a caller supplied discriminator cannot escape the view
	cars, err = f.cars.Find(bson.M{"submodel": "bike"}).All(ctx)
	require.NoError(t, err)
	assert.Len(t, cars, 2)

	all, err := f.all.Find(bson.M{}).All(ctx)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"alice", "bob", "carol"}, owners(t, all))
	for _, r := range all {
		assert.Equal(t, r.Submodel(), r.Model().SubmodelName())
	}

	got, err := f.cars.Get(ctx, bike.ID())
	require.NoError(t, err)
	assert.Nil(t, got, "siblings are invisible")

	got, err = f.all.Get(ctx, bike.ID())
	require.NoError(t, err)
	assert.Same(t, f.bike, got.Model())

	one, err := f.bikes.FindOne(ctx, bson.M{"owner": "alice"})
	require.NoError(t, err)
	assert.Nil(t, one)

	n, err := f.cars.Count(ctx, bson.M{})
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)

	t.Run("bulk", func(t *testing.T) {
		updated, err := f.bikes.Bulk().UpdateMany(ctx, bson.M{}, bson.M{"color": "red"})
		require.NoError(t, err)
		assert.EqualValues(t, 1, updated)

		deleted, err := f.cars.Bulk().DestroyAll(ctx)
		require.NoError(t, err)
		assert.EqualValues(t, 2, deleted)

		rest, err := f.all.Find(bson.M{}).All(ctx)
		require.NoError(t, err)
		require.Len(t, rest, 1)
		assert.Equal(t, "red", rest[0].Get("color"))

		deleted, err = f.all.Bulk().DestroyMany(ctx, bson.M{"owner": "carol"})
		require.NoError(t, err)
		assert.EqualValues(t, 1, deleted)
	})
}

func TestOfRejectsForeignModels(t *testing.T) {
	f := newVehicleFixture(t)
	other, err := NewAbstractModel(Schema{Collection: "other"})
	require.NoError(t, err)
	foreign, err := other.Submodel("x")
	require.NoError(t, err)

	_, err = f.all.Of(foreign)
	assert.ErrorIs(t, err, ErrIntegrity)
	_, err = f.all.Of(nil)
	assert.ErrorIs(t, err, ErrIntegrity)

	plain, err := NewModel(Schema{Collection: "plain"})
	require.NoError(t, err)
	_, err = NewCollection(plain, f.db, nil).Of(plain)
	assert.ErrorIs(t, err, ErrIntegrity)
}

func TestCursor(t *testing.T) {
	f := newUserFixture(t)
	ctx := context.Background()
	for i := 0; i < 5; i++ {
		f.create(t, bson.M{"name": fmt.Sprintf("user-%d", i), "role": []string{"user", "admin"}[i%2]})
	}

	cur := f.users.Find(bson.M{"role": "user"}).Sort(bson.D{{Key: "name", Value: -1}})
	first, err := cur.All(ctx)
	require.NoError(t, err)
	second, err := cur.All(ctx)
	require.NoError(t, err)
	require.Len(t, first, 3)
	assert.Equal(t, "user-4", first[0].GetString("name"))
	assert.Equal(t, len(first), len(second), "cursors are restartable")

	page, err := cur.Skip(1).Limit(1).All(ctx)
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, "user-2", page[0].GetString("name"))

	top, err := cur.First(ctx)
	require.NoError(t, err)
	assert.Equal(t, "user-4", top.GetString("name"))

	none, err := f.users.Find(bson.M{"role": "root"}).First(ctx)
	require.NoError(t, err)
	assert.Nil(t, none)

	n, err := cur.Limit(1).Count(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 3, n)

	var seen []string
	require.NoError(t, cur.Each(ctx, func(r *Record) error {
		seen = append(seen, r.GetString("name"))
		return nil
	}))
	assert.Equal(t, []string{"user-4", "user-2", "user-0"}, seen)

	stop := errors.New("stop")
	assert.ErrorIs(t, cur.Each(ctx, func(*Record) error { return stop }), stop)

	_, err = f.users.Find(bson.M{"name": bson.M{"$regex": "x"}}).All(ctx)
	assert.Error(t, err, "unsupported operators surface as errors")
}

func TestProjectionAndAggregate(t *testing.T) {
	f := newVehicleFixture(t)
	ctx := context.Background()
	f.create(t, f.cars, "alice")
	f.create(t, f.cars, "bob")
	f.create(t, f.bikes, "alice")

	rows, err := f.cars.FindProjected(ctx, bson.M{"owner": "alice"}, bson.M{"owner": 1, "_id": 0})
	require.NoError(t, err)
	assert.Equal(t, []bson.M{{"owner": "alice"}}, rows)

	counted, err := f.cars.Aggregate(ctx, []bson.M{{"$count": "n"}}, bson.M{})
	require.NoError(t, err)
	require.Len(t, counted, 1)
	assert.EqualValues(t, 2, counted[0]["n"])

	counted, err = f.all.Aggregate(ctx, []bson.M{{"$count": "n"}}, bson.M{"owner": "alice"})
	require.NoError(t, err)
	require.Len(t, counted, 1)
	assert.EqualValues(t, 2, counted[0]["n"])
}

// --------------------------------------------------------------------------
// Cache protocol
// --------------------------------------------------------------------------

func TestCacheGetTiers(t *testing.T) {
	f := newUserFixture(t)
	ctx := context.Background()
	rec := f.create(t, bson.M{"name": "alice", "password": "secret"})
	key := "users.alice"

	got, err := f.users.CacheGet(ctx, "alice")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.True(t, rec.Equal(got), "restricted fields survive the cache")
	assert.EqualValues(t, 1, f.db.findOne.Load())

	for name, tier := range map[string]interface {
		Has(string) (bool, error)
	}{"l1": f.cache.Local(), "l2": f.cache.Shared()} {
		ok, err := tier.Has(key)
		require.NoError(t, err)
		assert.True(t, ok, "%s populated", name)
	}

	// L1 hit
	_, err = f.users.CacheGet(ctx, "alice")
	require.NoError(t, err)
	assert.EqualValues(t, 1, f.db.findOne.Load())

	// L2 hit is promoted to L1
	_, err = f.cache.Local().Delete(key)
	require.NoError(t, err)
	_, err = f.users.CacheGet(ctx, "alice")
	require.NoError(t, err)
	assert.EqualValues(t, 1, f.db.findOne.Load())
	ok, err := f.cache.Local().Has(key)
	require.NoError(t, err)
	assert.True(t, ok)

	// a bulk delete does not invalidate, the cached copy is still served
	_, err = f.users.Bulk().DestroyAll(ctx)
	require.NoError(t, err)
	cached, err := f.users.CacheGet(ctx, "alice")
	require.NoError(t, err)
	assert.NotNil(t, cached)

	// misses are not cached
	for i := 0; i < 2; i++ {
		missing, err := f.users.CacheGet(ctx, "nobody")
		require.NoError(t, err)
		assert.Nil(t, missing)
	}
	assert.EqualValues(t, 3, f.db.findOne.Load())
}

func TestCacheGetNeverStaleAfterSave(t *testing.T) {
	f := newUserFixture(t)
	ctx := context.Background()
	rec := f.create(t, bson.M{"name": "alice", "email": "old@example.com"})

	for _, expr := range []any{"alice", rec.ID()} {
		got, err := f.users.CacheGet(ctx, expr)
		require.NoError(t, err)
		assert.Equal(t, "old@example.com", got.Get("email"))
	}

	require.NoError(t, rec.Update(ctx, bson.M{"email": "new@example.com"}))
	for _, expr := range []any{"alice", rec.ID()} {
		got, err := f.users.CacheGet(ctx, expr)
		require.NoError(t, err)
		assert.Equal(t, "new@example.com", got.Get("email"), "cache get %v", expr)
	}

	t.Run("key field change invalidates the old key", func(t *testing.T) {
		require.NoError(t, rec.Set("name", "alicia"))
		assert.Contains(t, rec.CacheKeys(), "users.alice")
		require.NoError(t, rec.Save(ctx))
		assert.Contains(t, rec.CacheKeys(), "users.alicia")

		got, err := f.users.CacheGet(ctx, "alice")
		require.NoError(t, err)
		assert.Nil(t, got)
	})

	t.Run("no invalidate keeps the stale entry", func(t *testing.T) {
		_, err := f.users.CacheGet(ctx, rec.ID())
		require.NoError(t, err)
		require.NoError(t, rec.Update(ctx, bson.M{"email": "skipped@example.com"}, NoInvalidate()))

		got, err := f.users.CacheGet(ctx, rec.ID())
		require.NoError(t, err)
		assert.Equal(t, "new@example.com", got.Get("email"))

		require.NoError(t, rec.Invalidate())
		got, err = f.users.CacheGet(ctx, rec.ID())
		require.NoError(t, err)
		assert.Equal(t, "skipped@example.com", got.Get("email"))
	})

	t.Run("db update and destroy invalidate", func(t *testing.T) {
		_, err := f.users.CacheGet(ctx, rec.ID())
		require.NoError(t, err)
		ok, err := rec.DBUpdate(ctx, bson.M{"$set": bson.M{"role": "admin"}})
		require.NoError(t, err)
		require.True(t, ok)
		got, err := f.users.CacheGet(ctx, rec.ID())
		require.NoError(t, err)
		assert.Equal(t, "admin", got.Get("role"))

		require.NoError(t, rec.Destroy(ctx))
		got, err = f.users.CacheGet(ctx, rec.ID())
		require.NoError(t, err)
		assert.Nil(t, got)
	})
}

func TestInvalidateIsIdempotent(t *testing.T) {
	f := newUserFixture(t)
	ctx := context.Background()
	rec := f.create(t, bson.M{"name": "alice"})

	keys := rec.CacheKeys()
	require.Len(t, keys, 2)
	assert.Equal(t, "users."+KeyString(rec.ID()), keys[0])
	assert.Equal(t, "users.alice", keys[1])

	require.NoError(t, rec.Save(ctx))
	require.NoError(t, rec.Save(ctx))
	assert.Equal(t, keys, rec.CacheKeys())
	require.NoError(t, rec.Invalidate())

	for _, key := range keys {
		deleted, err := f.cache.Delete(key)
		require.NoError(t, err)
		assert.False(t, deleted)
	}

	fresh, err := f.users.New(bson.M{"name": "bob"})
	require.NoError(t, err)
	assert.Equal(t, []string{"users.bob"}, fresh.CacheKeys(), "unassigned ids produce no key")
}

func TestCacheGetSiblingRows(t *testing.T) {
	f := newVehicleFixture(t)
	ctx := context.Background()
	car := f.create(t, f.cars, "alice")

	// populate the shared key through the root view
	got, err := f.all.CacheGet(ctx, car.ID())
	require.NoError(t, err)
	assert.Same(t, f.car, got.Model())

	got, err = f.bikes.CacheGet(ctx, car.ID())
	require.NoError(t, err)
	assert.Nil(t, got)

	_, err = f.bikes.CacheGet(ctx, car.ID(), RaiseIfNone(nil))
	assert.ErrorIs(t, err, ErrNotFound)

	got, err = f.cars.CacheGet(ctx, car.ID().(bson.ObjectID).Hex())
	require.NoError(t, err)
	assert.True(t, car.Equal(got))
}

func TestCacheGetSharedKeyAcrossSiblings(t *testing.T) {
	ctx := context.Background()
	base, err := NewAbstractModel(Schema{Collection: "vehicles", KeyField: "owner", Fields: []Field{{Name: "owner"}}})
	require.NoError(t, err)
	car, err := base.Submodel("car")
	require.NoError(t, err)
	bike, err := base.Submodel("bike")
	require.NoError(t, err)

	all := NewCollection(base, memdriver.New(), newTestManager())
	cars, err := all.Of(car)
	require.NoError(t, err)
	bikes, err := all.Of(bike)
	require.NoError(t, err)

	for _, c := range []*Collection{bikes, cars} {
		rec, err := c.New(bson.M{"owner": "ann"})
		require.NoError(t, err)
		require.NoError(t, rec.Save(ctx))
	}

	for _, c := range []*Collection{cars, bikes, cars, bikes} {
		want, err := c.Get(ctx, "ann")
		require.NoError(t, err)
		require.NotNil(t, want)

		got, err := c.CacheGet(ctx, "ann")
		require.NoError(t, err)
		require.NotNil(t, got, "%s cache get", c.Model())
		assert.Same(t, c.Model(), got.Model())
		assert.True(t, want.Equal(got))
	}
}

func TestCacheGetCoalescesMisses(t *testing.T) {
	f := newUserFixture(t)
	ctx := context.Background()
	f.create(t, bson.M{"name": "alice"})

	held, release := f.db.hold()
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			rec, err := f.users.CacheGet(ctx, "alice")
			assert.NoError(t, err)
			assert.NotNil(t, rec)
		}()
	}
	<-held
	time.Sleep(50 * time.Millisecond)
	release()
	wg.Wait()

	assert.EqualValues(t, 1, f.db.findOne.Load())
	_, err := f.users.CacheGet(ctx, "alice")
	require.NoError(t, err)
	assert.EqualValues(t, 1, f.db.findOne.Load())
}

func TestCacheGetLoadRacingSave(t *testing.T) {
	f := newUserFixture(t)
	ctx := context.Background()
	rec := f.create(t, bson.M{"name": "alice", "email": "old@example.com"})

	// the first reader loads the old row and is held before caching it
	held, release := f.db.hold()
	early := make(chan *Record)
	go func() {
		got, err := f.users.CacheGet(ctx, "alice")
		assert.NoError(t, err)
		early <- got
	}()
	<-held

	require.NoError(t, rec.Update(ctx, bson.M{"email": "new@example.com"}))

	got, err := f.users.CacheGet(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, "new@example.com", got.Get("email"))

	release()
	assert.Equal(t, "old@example.com", (<-early).Get("email"))

	for i := 0; i < 2; i++ {
		got, err = f.users.CacheGet(ctx, "alice")
		require.NoError(t, err)
		assert.Equal(t, "new@example.com", got.Get("email"))
	}
	assert.EqualValues(t, 2, f.db.findOne.Load())
}

func TestCacheGetWithoutCache(t *testing.T) {
	f := newUserFixture(t)
	ctx := context.Background()
	f.create(t, bson.M{"name": "alice"})

	plain := NewCollection(f.users.Model(), f.db, nil)
	got, err := plain.CacheGet(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, "alice", got.GetString("name"))
	assert.NoError(t, got.Invalidate())
}
