package mongodriver

import (
	"context"
	"time"

	"github.com/ValentinKolb/uorm/lib/driver"
	"github.com/lni/dragonboat/v4/logger"
	"github.com/pkg/errors"
	gometrics "github.com/rcrowley/go-metrics"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
	"go.mongodb.org/mongo-driver/v2/mongo/readpref"
)

var Logger = logger.GetLogger("driver")

// IMongoDriver is a driver.Driver backed by one MongoDB database
type IMongoDriver interface {
	driver.Driver
	// Ping checks the connection to the primary
	Ping(ctx context.Context) error
	// Metrics returns the registry holding one timer per driver operation
	Metrics() gometrics.Registry
}

type mongoDriver struct {
	client   *mongo.Client
	db       *mongo.Database
	name     string
	registry gometrics.Registry
}

// Connect connects to MongoDB and pings the primary
func Connect(ctx context.Context, config Config) (IMongoDriver, error) {
	if err := config.validate(); err != nil {
		return nil, err
	}

	opts := options.Client().ApplyURI(config.URI)
	if config.TimeoutSecond > 0 {
		opts.SetTimeout(time.Duration(config.TimeoutSecond) * time.Second)
	}

	client, err := mongo.Connect(opts)
	if err != nil {
		return nil, errors.Wrap(err, "connect to mongodb")
	}

	d := &mongoDriver{
		client:   client,
		db:       client.Database(config.Database),
		name:     config.Database,
		registry: gometrics.NewRegistry(),
	}

	if err := d.Ping(ctx); err != nil {
		_ = client.Disconnect(ctx)
		return nil, err
	}

	Logger.Infof("connected to mongodb database %s", config.Database)
	return d, nil
}

// --------------------------------------------------------------------------
// Interface Methods (docu see driver.Driver)
// --------------------------------------------------------------------------

func (d *mongoDriver) Ping(ctx context.Context) error {
	defer d.timed("ping", "")()
	return errors.Wrap(d.client.Ping(ctx, readpref.Primary()), "ping mongodb")
}

func (d *mongoDriver) Metrics() gometrics.Registry {
	return d.registry
}

func (d *mongoDriver) Find(ctx context.Context, coll string, query bson.M, opts *driver.FindOptions) (driver.Cursor, error) {
	defer d.timed("find", coll)()

	findOpts := options.Find()
	if opts != nil {
		if len(opts.Sort) > 0 {
			findOpts.SetSort(opts.Sort)
		}
		if opts.Skip > 0 {
			findOpts.SetSkip(opts.Skip)
		}
		if opts.Limit > 0 {
			findOpts.SetLimit(opts.Limit)
		}
		if len(opts.Projection) > 0 {
			findOpts.SetProjection(opts.Projection)
		}
	}

	cursor, err := d.db.Collection(coll).Find(ctx, nonNil(query), findOpts)
	if err != nil {
		return nil, errors.Wrapf(err, "find in %s", coll)
	}
	return cursor, nil
}

func (d *mongoDriver) FindOne(ctx context.Context, coll string, query bson.M) (bson.M, error) {
	defer d.timed("find_one", coll)()

	var row bson.M
	err := d.db.Collection(coll).FindOne(ctx, nonNil(query)).Decode(&row)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrapf(err, "find one in %s", coll)
	}
	return row, nil
}

func (d *mongoDriver) Count(ctx context.Context, coll string, query bson.M) (int64, error) {
	defer d.timed("count", coll)()

	n, err := d.db.Collection(coll).CountDocuments(ctx, nonNil(query))
	return n, errors.Wrapf(err, "count in %s", coll)
}

func (d *mongoDriver) Aggregate(ctx context.Context, coll string, pipeline []bson.M) (driver.Cursor, error) {
	defer d.timed("aggregate", coll)()

	cursor, err := d.db.Collection(coll).Aggregate(ctx, pipeline)
	if err != nil {
		return nil, errors.Wrapf(err, "aggregate in %s", coll)
	}
	return cursor, nil
}

func (d *mongoDriver) Save(ctx context.Context, coll string, doc bson.M) error {
	defer d.timed("save", coll)()

	id, ok := doc["_id"]
	if !ok || id == nil {
		return errors.Errorf("cannot save a document without _id in %s", coll)
	}
	_, err := d.db.Collection(coll).ReplaceOne(ctx, bson.M{"_id": id}, doc, options.Replace().SetUpsert(true))
	return errors.Wrapf(err, "save %v in %s", id, coll)
}

func (d *mongoDriver) Delete(ctx context.Context, coll string, id any) error {
	defer d.timed("delete", coll)()

	_, err := d.db.Collection(coll).DeleteOne(ctx, bson.M{"_id": id})
	return errors.Wrapf(err, "delete %v in %s", id, coll)
}

func (d *mongoDriver) DeleteMany(ctx context.Context, coll string, query bson.M) (int64, error) {
	defer d.timed("delete_many", coll)()

	res, err := d.db.Collection(coll).DeleteMany(ctx, nonNil(query))
	if err != nil {
		return 0, errors.Wrapf(err, "delete many in %s", coll)
	}
	return res.DeletedCount, nil
}

func (d *mongoDriver) UpdateMany(ctx context.Context, coll string, query bson.M, update bson.M) (int64, error) {
	defer d.timed("update_many", coll)()

	res, err := d.db.Collection(coll).UpdateMany(ctx, nonNil(query), update)
	if err != nil {
		return 0, errors.Wrapf(err, "update many in %s", coll)
	}
	return res.MatchedCount, nil
}

func (d *mongoDriver) FindAndUpdate(ctx context.Context, coll string, query bson.M, update bson.M) (bson.M, error) {
	defer d.timed("find_and_update", coll)()

	var row bson.M
	err := d.db.Collection(coll).
		FindOneAndUpdate(ctx, nonNil(query), update, options.FindOneAndUpdate().SetReturnDocument(options.After)).
		Decode(&row)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrapf(err, "find and update in %s", coll)
	}
	return row, nil
}

func (d *mongoDriver) Close(ctx context.Context) error {
	return errors.Wrapf(d.client.Disconnect(ctx), "disconnect from %s", d.name)
}

// --------------------------------------------------------------------------
// Helper Methods
// --------------------------------------------------------------------------

// timed starts a timer for op and returns the function that stops it
func (d *mongoDriver) timed(op, coll string) func() {
	start := time.Now()
	return func() {
		gometrics.GetOrRegisterTimer("driver."+op, d.registry).UpdateSince(start)
		Logger.Debugf("[%s] %s %s took %s", d.name, op, coll, time.Since(start))
	}
}

func nonNil(query bson.M) bson.M {
	if query == nil {
		return bson.M{}
	}
	return query
}
