package uorm

import (
	"context"
	"fmt"
	"maps"
	"reflect"
	"time"

	"github.com/lni/dragonboat/v4/logger"
	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/v2/bson"
)

var Logger = logger.GetLogger("uorm")

// Record is one document of a model. It is not safe for concurrent use.
type Record struct {
	model   *Model
	coll    *Collection
	values  bson.M
	initial bson.M // snapshot used to compute the cache keys to invalidate
	isNew   bool
}

// newRecord applies the construction contract. New records get the model's own
// discriminator, loaded rows must already carry a matching one.
func newRecord(coll *Collection, attrs bson.M, isNew bool) (*Record, error) {
	r := &Record{
		model:  coll.model,
		coll:   coll,
		values: make(bson.M, len(coll.model.schema.Fields)+2),
		isNew:  isNew,
	}

	var err error
	if isNew {
		err = r.initNew(attrs)
	} else {
		err = r.initLoaded(attrs)
	}
	if err != nil {
		return nil, err
	}

	for i := range r.model.schema.Fields {
		f := &r.model.schema.Fields[i]
		if _, ok := r.values[f.Name]; !ok {
			r.values[f.Name] = f.defaultValue()
		}
	}

	r.snapshot()
	return r, nil
}

func (r *Record) initNew(attrs bson.M) error {
	m := r.model
	if m.State() == StateAbstract {
		return integrityError("%s: abstract models cannot create records", m)
	}
	if m.family {
		if got, ok := attrs[submodelField]; ok {
			return &WrongSubmodel{Collection: m.schema.Collection, Expected: m.submodel, Got: got}
		}
	}

	for k, v := range attrs {
		switch {
		case k == idField:
			if v != nil {
				r.values[idField] = ResolveID(v)
			}
		case m.declares(k):
			r.values[k] = v
		default:
			return &ValidationError{Collection: m.schema.Collection, Field: k, Msg: "unknown field"}
		}
	}

	if m.family {
		r.values[submodelField] = m.submodel
	}
	return nil
}

func (r *Record) initLoaded(row bson.M) error {
	m := r.model
	if m.family {
		got, ok := row[submodelField]
		if !ok || got == nil {
			return &MissingSubmodel{Collection: m.schema.Collection, ID: row[idField]}
		}
		if name, _ := got.(string); m.isConcrete() && name != m.submodel {
			return &WrongSubmodel{Collection: m.schema.Collection, Expected: m.submodel, Got: got}
		}
	}
	maps.Copy(r.values, row)
	return nil
}

func (r *Record) snapshot() {
	r.initial = maps.Clone(r.values)
}

// load replaces the values with a row fetched from the database
func (r *Record) load(row bson.M) error {
	fresh, err := newRecord(r.coll, row, false)
	if err != nil {
		return err
	}
	r.values, r.initial = fresh.values, fresh.initial
	return nil
}

// --------------------------------------------------------------------------
// Accessors
// --------------------------------------------------------------------------

// ID returns the identifier, nil for new records that have none yet
func (r *Record) ID() any { return r.values[idField] }

// Get returns the value of a field, nil if it is not set
func (r *Record) Get(name string) any { return r.values[name] }

// GetString returns the value of a field if it is a string
func (r *Record) GetString(name string) string {
	s, _ := r.values[name].(string)
	return s
}

// Set assigns a field. The id can be assigned once, the discriminator never changes
// and undeclared fields are rejected.
func (r *Record) Set(name string, value any) error {
	m := r.model
	switch {
	case name == idField:
		if r.values[idField] != nil {
			return integrityError("%s: _id cannot be reassigned", r)
		}
		r.values[idField] = ResolveID(value)
	case name == submodelField && m.family:
		if got, _ := value.(string); got != r.Submodel() {
			return &WrongSubmodel{Collection: m.schema.Collection, Expected: r.Submodel(), Got: value}
		}
	case m.declares(name):
		r.values[name] = value
	default:
		return &ValidationError{Collection: m.schema.Collection, Field: name, Msg: "unknown field"}
	}
	return nil
}

// IsNew reports whether the record has never been saved
func (r *Record) IsNew() bool { return r.isNew }

// Model returns the model the record was constructed with
func (r *Record) Model() *Model { return r.model }

// Submodel returns the discriminator, empty for standalone models
func (r *Record) Submodel() string { return r.GetString(submodelField) }

// Shard returns the shard the record lives on, empty for unsharded collections
func (r *Record) Shard() string { return r.coll.shard }

// ToDoc returns a copy of the values. Restricted fields are only included if asked for.
func (r *Record) ToDoc(includeRestricted bool) bson.M {
	doc := make(bson.M, len(r.values))
	for k, v := range r.values {
		if !includeRestricted {
			if f, ok := r.model.schema.field(k); ok && f.Restricted {
				continue
			}
		}
		doc[k] = v
	}
	return doc
}

// Equal compares the persisted representation of two records field by field
func (r *Record) Equal(other *Record) bool {
	if r == nil || other == nil {
		return r == other
	}
	a, err := normalizeDoc(r.ToDoc(true))
	if err != nil {
		return false
	}
	b, err := normalizeDoc(other.ToDoc(true))
	if err != nil {
		return false
	}
	return reflect.DeepEqual(a, b)
}

func (r *Record) String() string {
	if id := r.ID(); id != nil {
		return fmt.Sprintf("%s(%s)", r.model, KeyString(id))
	}
	return fmt.Sprintf("%s(new)", r.model)
}

// Validate checks the discriminator and the required fields
func (r *Record) Validate() error {
	m := r.model
	if m.family {
		got, ok := r.values[submodelField]
		if !ok || got == nil {
			return &MissingSubmodel{Collection: m.schema.Collection, ID: r.ID()}
		}
		if name, _ := got.(string); m.isConcrete() && name != m.submodel {
			return &WrongSubmodel{Collection: m.schema.Collection, Expected: m.submodel, Got: got}
		}
	}
	for _, f := range m.schema.Fields {
		if f.Required && r.values[f.Name] == nil {
			return &ValidationError{Collection: m.schema.Collection, Field: f.Name, Msg: "required"}
		}
	}
	return nil
}

// CacheKeys returns the cache keys of the record, computed from the values of the
// last snapshot. Fields without value produce no key.
func (r *Record) CacheKeys() []string {
	keys := make([]string, 0, len(r.model.schema.CacheKeyFields))
	for _, name := range r.model.schema.CacheKeyFields {
		if v := r.initial[name]; v != nil {
			keys = append(keys, r.coll.CacheKey(v))
		}
	}
	return keys
}

// --------------------------------------------------------------------------
// Lifecycle
// --------------------------------------------------------------------------

// Save persists the record. New records without id get a fresh ObjectID. The cache
// is invalidated after the write completed.
func (r *Record) Save(ctx context.Context, opts ...Option) error {
	o := collectOptions(opts)
	hooks := r.model.schema.Hooks

	if !o.skipCallback && hooks.BeforeSave != nil {
		if err := hooks.BeforeSave(ctx, r); err != nil {
			return err
		}
	}
	if err := r.Validate(); err != nil {
		return err
	}
	if r.values[idField] == nil {
		r.values[idField] = bson.NewObjectID()
	}

	start := time.Now()
	if err := r.coll.db.Save(ctx, r.coll.Name(), r.ToDoc(true)); err != nil {
		return errors.Wrapf(err, "save %s", r)
	}
	Logger.Debugf("saved %s took %s", r, time.Since(start))
	r.isNew = false

	if !o.noInvalidate {
		if err := r.Invalidate(); err != nil {
			return err
		}
	}
	r.snapshot()

	if !o.skipCallback && hooks.AfterSave != nil {
		return hooks.AfterSave(ctx, r)
	}
	return nil
}

// Update merges the declared fields of data into the record and saves it.
// Rejected fields, the id and the discriminator are skipped silently.
func (r *Record) Update(ctx context.Context, data bson.M, opts ...Option) error {
	for k, v := range data {
		f, ok := r.model.schema.field(k)
		if !ok || f.Rejected {
			continue
		}
		r.values[k] = v
	}
	return r.Save(ctx, opts...)
}

// DBUpdate applies update atomically in the database. ok is false if the row no longer
// matches the When conditions, the record is left untouched in that case.
func (r *Record) DBUpdate(ctx context.Context, update bson.M, opts ...Option) (ok bool, err error) {
	if err := saveRequired(r, "db_update"); err != nil {
		return false, err
	}
	o := collectOptions(opts)

	query := make(bson.M, len(o.when)+1)
	maps.Copy(query, o.when)
	query[idField] = r.ID()

	row, err := r.coll.db.FindAndUpdate(ctx, r.coll.Name(), r.coll.preprocess(query), update)
	if err != nil {
		return false, errors.Wrapf(err, "db update %s", r)
	}
	if row == nil {
		Logger.Debugf("db update of %s matched nothing", r)
		return false, nil
	}

	if !o.noInvalidate {
		if err := r.Invalidate(); err != nil {
			return true, err
		}
	}
	if !o.noReload {
		if err := r.load(row); err != nil {
			return true, err
		}
	}
	return true, nil
}

// Reload replaces the values with the persisted state
func (r *Record) Reload(ctx context.Context) error {
	if err := saveRequired(r, "reload"); err != nil {
		return err
	}
	row, err := r.coll.db.FindOne(ctx, r.coll.Name(), r.coll.preprocess(bson.M{idField: r.ID()}))
	if err != nil {
		return errors.Wrapf(err, "reload %s", r)
	}
	if row == nil {
		return &ModelDestroyed{Collection: r.model.schema.Collection, ID: r.ID()}
	}
	return r.load(row)
}

// Destroy deletes the row and invalidates the cache
func (r *Record) Destroy(ctx context.Context, opts ...Option) error {
	if err := saveRequired(r, "destroy"); err != nil {
		return err
	}
	o := collectOptions(opts)
	hooks := r.model.schema.Hooks

	if !o.skipCallback && hooks.BeforeDelete != nil {
		if err := hooks.BeforeDelete(ctx, r); err != nil {
			return err
		}
	}
	if err := r.coll.db.Delete(ctx, r.coll.Name(), r.ID()); err != nil {
		return errors.Wrapf(err, "destroy %s", r)
	}
	Logger.Debugf("destroyed %s", r)

	if !o.noInvalidate {
		if err := r.Invalidate(); err != nil {
			return err
		}
	}
	if !o.skipCallback && hooks.AfterDelete != nil {
		return hooks.AfterDelete(ctx, r)
	}
	return nil
}

// Invalidate deletes the cache keys of the record from both tiers
func (r *Record) Invalidate() error {
	if r.coll.cache == nil {
		return nil
	}
	for _, key := range r.CacheKeys() {
		deleted, err := r.coll.cache.Delete(key)
		if err != nil {
			return errors.Wrapf(err, "invalidate %s", r)
		}
		Logger.Debugf("invalidated %s (deleted=%v)", key, deleted)
	}
	return nil
}

// --------------------------------------------------------------------------
// Helper
// --------------------------------------------------------------------------

// normalizeDoc round trips doc through BSON so that equal documents compare equal
// with reflect.DeepEqual regardless of the Go types they were built from
func normalizeDoc(doc bson.M) (bson.M, error) {
	data, err := bson.Marshal(doc)
	if err != nil {
		return nil, err
	}
	var out bson.M
	if err := bson.Unmarshal(data, &out); err != nil {
		return nil, err
	}
	return normalizeValue(out).(bson.M), nil
}

func normalizeValue(v any) any {
	switch val := v.(type) {
	case bson.D:
		m := make(bson.M, len(val))
		for _, e := range val {
			m[e.Key] = normalizeValue(e.Value)
		}
		return m
	case bson.M:
		m := make(bson.M, len(val))
		for k, e := range val {
			m[k] = normalizeValue(e)
		}
		return m
	case bson.A:
		a := make(bson.A, len(val))
		for i, e := range val {
			a[i] = normalizeValue(e)
		}
		return a
	default:
		return v
	}
}
