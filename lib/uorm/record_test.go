package uorm

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/v2/bson"
)

func TestDefaultsAppliedOnce(t *testing.T) {
	calls := 0
	model, err := NewModel(Schema{
		Collection: "counters",
		Fields: []Field{
			{Name: "static", Default: "s"},
			{Name: "dynamic", DefaultFunc: func() any { calls++; return bson.A{calls} }},
			{Name: "plain"},
		},
	})
	require.NoError(t, err)
	c := NewCollection(model, nil, nil)

	rec, err := c.New(bson.M{})
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
	assert.Equal(t, "s", rec.Get("static"))
	assert.Equal(t, bson.A{1}, rec.Get("dynamic"))
	assert.Nil(t, rec.Get("plain"))

	other, err := c.New(bson.M{})
	require.NoError(t, err)
	assert.Equal(t, 2, calls)
	assert.Equal(t, bson.A{2}, other.Get("dynamic"), "factory defaults must not be shared")

	_, err = c.New(bson.M{"dynamic": bson.A{}})
	require.NoError(t, err)
	assert.Equal(t, 2, calls, "explicit values skip the default factory")
}

func TestSaveAndRoundTrip(t *testing.T) {
	f := newUserFixture(t)
	ctx := context.Background()

	rec := f.create(t, bson.M{"name": "alice", "email": "alice@example.com", "password": "secret"})
	assert.False(t, rec.IsNew())
	id, ok := rec.ID().(bson.ObjectID)
	require.True(t, ok, "save assigns an ObjectID")

	for _, expr := range []any{id, id.Hex(), "alice"} {
		got, err := f.users.Get(ctx, expr)
		require.NoError(t, err)
		require.NotNil(t, got, "get %v", expr)
		assert.True(t, rec.Equal(got), "get %v: %v != %v", expr, rec.ToDoc(true), got.ToDoc(true))
		assert.False(t, got.IsNew())
	}

	t.Run("explicit id", func(t *testing.T) {
		own := bson.NewObjectID()
		rec := f.create(t, bson.M{"_id": own.Hex(), "name": "bob"})
		assert.Equal(t, own, rec.ID())
	})

	t.Run("required field", func(t *testing.T) {
		rec, err := f.users.New(bson.M{"email": "anon@example.com"})
		require.NoError(t, err)
		err = rec.Save(ctx)
		var ve *ValidationError
		require.ErrorAs(t, err, &ve)
		assert.Equal(t, "name", ve.Field)
		assert.True(t, rec.IsNew())
	})
}

func TestRecordAccessors(t *testing.T) {
	f := newUserFixture(t)
	rec, err := f.users.New(bson.M{"name": "alice", "password": "secret"})
	require.NoError(t, err)

	assert.Equal(t, "users(new)", rec.String())
	assert.NotContains(t, rec.ToDoc(false), "password")
	assert.Equal(t, "secret", rec.ToDoc(true)["password"])

	assert.ErrorIs(t, rec.Set("nickname", "al"), ErrValidation)
	require.NoError(t, rec.Set("email", "alice@example.com"))
	assert.Equal(t, "alice@example.com", rec.GetString("email"))
	assert.Equal(t, "", rec.GetString("tags"), "non-string values read as empty")

	id := bson.NewObjectID()
	require.NoError(t, rec.Set("_id", id.Hex()))
	assert.Equal(t, id, rec.ID())
	assert.ErrorIs(t, rec.Set("_id", bson.NewObjectID()), ErrIntegrity, "_id is immutable once assigned")
	assert.Equal(t, id, rec.ID())
	assert.Equal(t, "users("+id.Hex()+")", rec.String())

	assert.Equal(t, "", rec.Shard())
}

func TestRejectedFieldSurvivesUpdate(t *testing.T) {
	f := newUserFixture(t)
	ctx := context.Background()

	rec := f.create(t, bson.M{"name": "alice"})
	require.NoError(t, rec.Update(ctx, bson.M{
		"created_by": "mallory",
		"email":      "alice@example.com",
		"_id":        bson.NewObjectID(),
		"submodel":   "x",
		"unknown":    1,
	}))

	got, err := f.users.Get(ctx, rec.ID())
	require.NoError(t, err)
	assert.Equal(t, "system", got.Get("created_by"))
	assert.Equal(t, "alice@example.com", got.Get("email"))
	assert.Equal(t, rec.ID(), got.ID())
	assert.NotContains(t, got.ToDoc(true), "unknown")

	// direct assignment + save is the way to change a rejected field
	require.NoError(t, rec.Set("created_by", "admin"))
	require.NoError(t, rec.Save(ctx))
	require.NoError(t, got.Reload(ctx))
	assert.Equal(t, "admin", got.Get("created_by"))
}

func TestDBUpdate(t *testing.T) {
	f := newUserFixture(t)
	ctx := context.Background()

	t.Run("save required", func(t *testing.T) {
		rec, err := f.users.New(bson.M{"name": "new"})
		require.NoError(t, err)
		ok, err := rec.DBUpdate(ctx, bson.M{"$set": bson.M{"role": "admin"}})
		assert.False(t, ok)
		assert.ErrorIs(t, err, ErrObjectSaveRequired)
	})

	rec := f.create(t, bson.M{"name": "alice"})

	t.Run("when no longer matches", func(t *testing.T) {
		before := rec.ToDoc(true)
		ok, err := rec.DBUpdate(ctx, bson.M{"$set": bson.M{"role": "admin"}}, When(bson.M{"role": "guest"}))
		require.NoError(t, err)
		assert.False(t, ok)
		assert.Equal(t, before, rec.ToDoc(true))

		got, err := f.users.Get(ctx, rec.ID())
		require.NoError(t, err)
		assert.Equal(t, "user", got.Get("role"))
	})

	t.Run("applies and reloads", func(t *testing.T) {
		ok, err := rec.DBUpdate(ctx, bson.M{"$set": bson.M{"role": "admin"}, "$inc": bson.M{"logins": 1}}, When(bson.M{"role": "user"}))
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, "admin", rec.Get("role"))
		assert.EqualValues(t, 1, rec.Get("logins"))
	})

	t.Run("no reload", func(t *testing.T) {
		ok, err := rec.DBUpdate(ctx, bson.M{"$set": bson.M{"email": "a@example.com"}}, NoReload())
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Nil(t, rec.Get("email"))
		require.NoError(t, rec.Reload(ctx))
		assert.Equal(t, "a@example.com", rec.Get("email"))
	})

	t.Run("when cannot override the id", func(t *testing.T) {
		other := f.create(t, bson.M{"name": "bob"})
		ok, err := rec.DBUpdate(ctx, bson.M{"$set": bson.M{"role": "owner"}}, When(bson.M{"_id": other.ID()}))
		require.NoError(t, err)
		assert.True(t, ok)
		require.NoError(t, other.Reload(ctx))
		assert.Equal(t, "user", other.Get("role"))
	})
}

func TestReloadAndDestroy(t *testing.T) {
	f := newUserFixture(t)
	ctx := context.Background()

	fresh, err := f.users.New(bson.M{"name": "new"})
	require.NoError(t, err)
	assert.ErrorIs(t, fresh.Reload(ctx), ErrObjectSaveRequired)
	assert.ErrorIs(t, fresh.Destroy(ctx), ErrObjectSaveRequired)

	rec := f.create(t, bson.M{"name": "alice"})
	require.NoError(t, rec.Destroy(ctx))

	err = rec.Reload(ctx)
	var md *ModelDestroyed
	require.ErrorAs(t, err, &md)
	assert.Equal(t, rec.ID(), md.ID)

	got, err := f.users.Get(ctx, "alice")
	require.NoError(t, err)
	assert.Nil(t, got)

	// destroying twice is harmless
	require.NoError(t, rec.Destroy(ctx))
}

func TestHooks(t *testing.T) {
	var calls []string
	boom := errors.New("rejected by hook")

	schema := Schema{
		Collection: "audited",
		Fields:     []Field{{Name: "state"}},
		Hooks: Hooks{
			BeforeSave: func(_ context.Context, r *Record) error {
				calls = append(calls, "before-save")
				if r.Get("state") == "invalid" {
					return boom
				}
				return nil
			},
			AfterSave:    func(context.Context, *Record) error { calls = append(calls, "after-save"); return nil },
			BeforeDelete: func(context.Context, *Record) error { calls = append(calls, "before-delete"); return nil },
			AfterDelete:  func(context.Context, *Record) error { calls = append(calls, "after-delete"); return nil },
		},
	}
	model, err := NewModel(schema)
	require.NoError(t, err)
	f := newUserFixture(t)
	c := NewCollection(model, f.db, f.cache)
	ctx := context.Background()

	rec, err := c.New(bson.M{"state": "ok"})
	require.NoError(t, err)
	require.NoError(t, rec.Save(ctx))
	require.NoError(t, rec.Destroy(ctx))
	assert.Equal(t, []string{"before-save", "after-save", "before-delete", "after-delete"}, calls)

	calls = nil
	bad, err := c.New(bson.M{"state": "invalid"})
	require.NoError(t, err)
	assert.ErrorIs(t, bad.Save(ctx), boom)
	assert.True(t, bad.IsNew())

	require.NoError(t, bad.Save(ctx, SkipCallback()))
	assert.Equal(t, []string{"before-save"}, calls)

	calls = nil
	_, err = c.Bulk().UpdateMany(ctx, bson.M{}, bson.M{"state": "bulk"})
	require.NoError(t, err)
	_, err = c.Bulk().DestroyAll(ctx)
	require.NoError(t, err)
	assert.Empty(t, calls, "bulk operations never run hooks")
}

func TestEqual(t *testing.T) {
	f := newUserFixture(t)
	a, err := f.users.New(bson.M{"_id": 1, "name": "alice", "tags": bson.A{"x", bson.M{"k": int64(1)}}})
	require.NoError(t, err)
	b, err := f.users.New(bson.M{"_id": int32(1), "name": "alice", "tags": []any{"x", bson.D{{Key: "k", Value: int64(1)}}}})
	require.NoError(t, err)

	assert.True(t, a.Equal(b))
	require.NoError(t, b.Set("email", "x"))
	assert.False(t, a.Equal(b))
	assert.False(t, a.Equal(nil))
	assert.True(t, (*Record)(nil).Equal(nil))
}
