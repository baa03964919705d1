package uorm

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/v2/bson"
)

func TestResolveID(t *testing.T) {
	id := bson.NewObjectID()

	assert.Equal(t, id, ResolveID(id.Hex()))
	assert.Equal(t, id, ResolveID(id))
	assert.Nil(t, ResolveID(nil))
	assert.Equal(t, "alice", ResolveID("alice"))
	assert.Equal(t, 5, ResolveID(5))

	upper := "507F1F77BCF86CD799439011"
	assert.Equal(t, upper, ResolveID(upper), "only the canonical lowercase form is an id")
}

func TestKeyString(t *testing.T) {
	id := bson.NewObjectID()

	tests := []struct {
		value any
		want  string
	}{
		{"alice", "alice"},
		{"5", "5"},
		{"#5", "##5"},
		{5, "#5"},
		{int32(5), "#5"},
		{int64(-5), "#-5"},
		{uint8(5), "#5"},
		{5.0, "#5"},
		{2.5, "#2.5"},
		{true, "#bool:true"},
		{id, id.Hex()},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, KeyString(tt.value), "%T(%v)", tt.value, tt.value)
	}
}

func TestCacheKeysKeepValueTypesApart(t *testing.T) {
	f := newUserFixture(t)
	ctx := context.Background()
	number := f.create(t, bson.M{"name": 5, "email": "number@example.com"})
	text := f.create(t, bson.M{"name": "5", "email": "text@example.com"})

	assert.Contains(t, number.CacheKeys(), "users.#5")
	assert.Contains(t, text.CacheKeys(), "users.5")

	for i := 0; i < 2; i++ {
		got, err := f.users.CacheGet(ctx, 5)
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, "number@example.com", got.Get("email"))

		got, err = f.users.CacheGet(ctx, "5")
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, "text@example.com", got.Get("email"))
	}

	// a record loaded from the database decodes 5 as int32 and still drops the key
	loaded, err := f.users.Get(ctx, int64(5))
	require.NoError(t, err)
	require.NoError(t, loaded.Update(ctx, bson.M{"email": "changed@example.com"}))
	got, err := f.users.CacheGet(ctx, 5.0)
	require.NoError(t, err)
	assert.Equal(t, "changed@example.com", got.Get("email"))
}
