package uorm

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/ValentinKolb/uorm/lib/cache"
	"github.com/ValentinKolb/uorm/lib/db"
	"github.com/ValentinKolb/uorm/lib/db/engines/maple"
	"github.com/ValentinKolb/uorm/lib/driver"
	"github.com/ValentinKolb/uorm/lib/driver/memdriver"
	"github.com/ValentinKolb/uorm/lib/store"
	"github.com/ValentinKolb/uorm/lib/store/lstore"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/v2/bson"
)

// --------------------------------------------------------------------------
// Fixtures
// --------------------------------------------------------------------------

func newTier() store.IStore {
	return lstore.NewLocalStore(func() db.KVDB {
		return maple.NewMapleDB(&maple.DBOptions{NumShards: 2, GCInterval: -1})
	})
}

func newTestManager() *cache.Manager {
	return cache.NewManager(newTier(), newTier(), cache.WithName("uorm-test"))
}

// gatedDriver counts the FindOne round trips to the wrapped driver and can hold
// one of them after it read its row
type gatedDriver struct {
	driver.Driver
	findOne atomic.Int64

	mu      sync.Mutex
	held    chan struct{}
	release chan struct{}
}

// hold arms the gate for the next FindOne. held is closed once that call read its
// row, it returns after release is called.
func (d *gatedDriver) hold() (held <-chan struct{}, release func()) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.held, d.release = make(chan struct{}), make(chan struct{})
	gate := d.release
	return d.held, func() { close(gate) }
}

func (d *gatedDriver) FindOne(ctx context.Context, coll string, query bson.M) (bson.M, error) {
	d.findOne.Add(1)
	row, err := d.Driver.FindOne(ctx, coll, query)

	d.mu.Lock()
	held, release := d.held, d.release
	d.held, d.release = nil, nil
	d.mu.Unlock()
	if held != nil {
		close(held)
		<-release
	}
	return row, err
}

func userSchema() Schema {
	return Schema{
		Collection: "users",
		KeyField:   "name",
		Fields: []Field{
			{Name: "name", Required: true},
			{Name: "email"},
			{Name: "role", Default: "user"},
			{Name: "tags", DefaultFunc: func() any { return bson.A{} }},
			{Name: "password", Restricted: true},
			{Name: "created_by", Rejected: true, Default: "system"},
		},
	}
}

type userFixture struct {
	db    *gatedDriver
	cache *cache.Manager
	users *Collection
}

func newUserFixture(t *testing.T) *userFixture {
	t.Helper()
	model, err := NewModel(userSchema())
	require.NoError(t, err)

	f := &userFixture{db: &gatedDriver{Driver: memdriver.New()}, cache: newTestManager()}
	f.users = NewCollection(model, f.db, f.cache)
	return f
}

func (f *userFixture) create(t *testing.T, attrs bson.M) *Record {
	t.Helper()
	rec, err := f.users.New(attrs)
	require.NoError(t, err)
	require.NoError(t, rec.Save(context.Background()))
	return rec
}

// vehicles is a submodel family with two registered siblings
type vehicleFixture struct {
	db    driver.Driver
	cache *cache.Manager
	base  *Model
	car   *Model
	bike  *Model

	all   *Collection
	cars  *Collection
	bikes *Collection
}

func newVehicleFixture(t *testing.T) *vehicleFixture {
	t.Helper()
	base, err := NewAbstractModel(Schema{
		Collection: "vehicles",
		Fields:     []Field{{Name: "owner"}, {Name: "color", Default: "black"}},
	})
	require.NoError(t, err)
	car, err := base.Submodel("car", Field{Name: "wheels", Default: 4})
	require.NoError(t, err)
	bike, err := base.Submodel("bike", Field{Name: "gears", Default: 21})
	require.NoError(t, err)

	f := &vehicleFixture{db: memdriver.New(), cache: newTestManager(), base: base, car: car, bike: bike}
	f.all = NewCollection(base, f.db, f.cache)
	f.cars, err = f.all.Of(car)
	require.NoError(t, err)
	f.bikes, err = f.all.Of(bike)
	require.NoError(t, err)
	return f
}

func (f *vehicleFixture) create(t *testing.T, c *Collection, owner string) *Record {
	t.Helper()
	rec, err := c.New(bson.M{"owner": owner})
	require.NoError(t, err)
	require.NoError(t, rec.Save(context.Background()))
	return rec
}

func owners(t *testing.T, records []*Record) []string {
	t.Helper()
	out := make([]string, 0, len(records))
	for _, r := range records {
		out = append(out, r.GetString("owner"))
	}
	return out
}
