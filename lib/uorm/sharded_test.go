package uorm

import (
	"context"
	"testing"

	"github.com/ValentinKolb/uorm/lib/driver"
	"github.com/ValentinKolb/uorm/lib/driver/memdriver"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/v2/bson"
)

func newShardedVehicles(t *testing.T) (*vehicleFixture, *ShardedCollection) {
	t.Helper()
	f := newVehicleFixture(t)
	router := memdriver.NewRouter("eu", "us")
	t.Cleanup(func() { _ = router.Close(context.Background()) })
	return f, NewShardedCollection(f.base, router, f.cache)
}

func TestShardedCollection(t *testing.T) {
	f, all := newShardedVehicles(t)
	ctx := context.Background()

	cars, err := all.Of(f.car)
	require.NoError(t, err)
	bikes, err := all.Of(f.bike)
	require.NoError(t, err)
	assert.Equal(t, []string{"eu", "us"}, all.Shards())

	id := bson.NewObjectID()
	eu, err := cars.New("eu", bson.M{"_id": id, "owner": "alice"})
	require.NoError(t, err)
	require.NoError(t, eu.Save(ctx))
	us, err := bikes.New("us", bson.M{"_id": id, "owner": "bob"})
	require.NoError(t, err)
	require.NoError(t, us.Save(ctx))

	assert.Equal(t, "eu", eu.Shard())
	assert.Equal(t, "us", us.Shard())
	assert.Contains(t, eu.CacheKeys(), "vehicles@eu."+id.Hex())
	assert.Contains(t, us.CacheKeys(), "vehicles@us."+id.Hex())

	t.Run("same id on different shards", func(t *testing.T) {
		got, err := all.CacheGet(ctx, "eu", id)
		require.NoError(t, err)
		assert.Equal(t, "alice", got.GetString("owner"))
		assert.Same(t, f.car, got.Model())

		got, err = all.CacheGet(ctx, "us", id)
		require.NoError(t, err)
		assert.Equal(t, "bob", got.GetString("owner"))
		assert.Same(t, f.bike, got.Model())
		assert.Equal(t, "us", got.Shard())
	})

	t.Run("isolation per shard", func(t *testing.T) {
		got, err := cars.Get(ctx, "us", id)
		require.NoError(t, err)
		assert.Nil(t, got)

		got, err = cars.CacheGet(ctx, "us", id)
		require.NoError(t, err)
		assert.Nil(t, got)

		cur, err := all.Find("eu", bson.M{})
		require.NoError(t, err)
		records, err := cur.All(ctx)
		require.NoError(t, err)
		assert.Equal(t, []string{"alice"}, owners(t, records))

		n, err := bikes.Count(ctx, "eu", bson.M{})
		require.NoError(t, err)
		assert.Zero(t, n)
	})

	t.Run("invalidation stays on the shard", func(t *testing.T) {
		require.NoError(t, eu.Update(ctx, bson.M{"owner": "alicia"}))

		got, err := all.CacheGet(ctx, "eu", id)
		require.NoError(t, err)
		assert.Equal(t, "alicia", got.GetString("owner"))

		ok, err := f.cache.Local().Has("vehicles@us." + id.Hex())
		require.NoError(t, err)
		assert.True(t, ok, "the other shard keeps its entry")
	})

	t.Run("remaining operations", func(t *testing.T) {
		one, err := all.FindOne(ctx, "us", bson.M{"owner": "bob"})
		require.NoError(t, err)
		require.NotNil(t, one)

		rows, err := all.FindProjected(ctx, "eu", bson.M{}, bson.M{"owner": 1})
		require.NoError(t, err)
		assert.Equal(t, []bson.M{{"_id": id, "owner": "alicia"}}, rows)

		counted, err := all.Aggregate(ctx, "us", []bson.M{{"$count": "n"}}, bson.M{})
		require.NoError(t, err)
		require.Len(t, counted, 1)
		assert.EqualValues(t, 1, counted[0]["n"])

		bulk, err := bikes.Bulk("us")
		require.NoError(t, err)
		n, err := bulk.DestroyAll(ctx)
		require.NoError(t, err)
		assert.EqualValues(t, 1, n)

		n, err = all.Count(ctx, "eu", bson.M{})
		require.NoError(t, err)
		assert.EqualValues(t, 1, n)
	})
}

func TestShardedUnknownShard(t *testing.T) {
	_, all := newShardedVehicles(t)
	ctx := context.Background()

	_, err := all.Shard("")
	assert.ErrorIs(t, err, driver.ErrUnknownShard)

	_, err = all.Get(ctx, "asia", bson.NewObjectID())
	assert.ErrorIs(t, err, driver.ErrUnknownShard)
	_, err = all.CacheGet(ctx, "asia", bson.NewObjectID())
	assert.ErrorIs(t, err, driver.ErrUnknownShard)
	_, err = all.Find("asia", bson.M{})
	assert.ErrorIs(t, err, driver.ErrUnknownShard)
	_, err = all.Bulk("asia")
	assert.ErrorIs(t, err, driver.ErrUnknownShard)
	_, err = all.New("asia", bson.M{})
	assert.ErrorIs(t, err, driver.ErrUnknownShard)
}

func TestShardedViewsAreShared(t *testing.T) {
	f, all := newShardedVehicles(t)

	a, err := all.Shard("eu")
	require.NoError(t, err)
	b, err := all.Shard("eu")
	require.NoError(t, err)
	assert.Same(t, a, b)
	assert.Same(t, f.base.Registry(), a.Model().Registry())

	_, err = all.Of(nil)
	assert.ErrorIs(t, err, ErrIntegrity)
}
