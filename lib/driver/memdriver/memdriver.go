package memdriver

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/ValentinKolb/uorm/lib/driver"
	"github.com/lni/dragonboat/v4/logger"
	"go.mongodb.org/mongo-driver/v2/bson"
)

var Logger = logger.GetLogger("driver")

// collection keeps rows in insertion order
type collection struct {
	order []string
	rows  map[string]bson.M
}

type memDriver struct {
	mu          sync.RWMutex
	collections map[string]*collection
	closed      bool
}

// New creates an empty in-memory driver. Rows are copied through BSON on every
// read and write, so callers never share maps with the driver.
func New() driver.Driver {
	return &memDriver{collections: make(map[string]*collection)}
}

// NewRouter creates a router with an in-memory meta driver and one in-memory driver per shard id
func NewRouter(shardIDs ...string) driver.Router {
	shards := make(map[string]driver.Driver, len(shardIDs))
	for _, id := range shardIDs {
		shards[id] = New()
	}
	return &driver.StaticRouter{MetaDriver: New(), ShardMap: shards}
}

// --------------------------------------------------------------------------
// Interface Methods (docu see driver.Driver)
// --------------------------------------------------------------------------

func (d *memDriver) Find(ctx context.Context, coll string, query bson.M, opts *driver.FindOptions) (driver.Cursor, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	rows, err := d.filter(coll, query)
	if err != nil {
		return nil, err
	}

	if opts != nil {
		if len(opts.Sort) > 0 {
			sortRows(rows, opts.Sort)
		}
		rows = window(rows, opts.Skip, opts.Limit)
		if len(opts.Projection) > 0 {
			for i, row := range rows {
				if rows[i], err = project(row, opts.Projection); err != nil {
					return nil, err
				}
			}
		}
	}

	return newCursor(rows)
}

func (d *memDriver) FindOne(ctx context.Context, coll string, query bson.M) (bson.M, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	rows, err := d.filter(coll, query)
	if err != nil || len(rows) == 0 {
		return nil, err
	}
	return clone(rows[0])
}

func (d *memDriver) Count(ctx context.Context, coll string, query bson.M) (int64, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	rows, err := d.filter(coll, query)
	return int64(len(rows)), err
}

func (d *memDriver) Aggregate(ctx context.Context, coll string, pipeline []bson.M) (driver.Cursor, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	rows, err := d.filter(coll, nil)
	if err != nil {
		return nil, err
	}

	for _, stage := range pipeline {
		if len(stage) != 1 {
			return nil, fmt.Errorf("pipeline stage must have exactly one operator, got %d", len(stage))
		}
		for op, arg := range stage {
			switch op {
			case "$match":
				query, ok := operatorArg(arg)
				if !ok {
					return nil, fmt.Errorf("$match needs a document, got %T", arg)
				}
				var kept []bson.M
				for _, row := range rows {
					ok, err := matches(row, query)
					if err != nil {
						return nil, err
					}
					if ok {
						kept = append(kept, row)
					}
				}
				rows = kept
			case "$skip", "$limit":
				n, ok := toFloat(arg)
				if !ok || n < 0 {
					return nil, fmt.Errorf("%s needs a non-negative number", op)
				}
				if op == "$skip" {
					rows = window(rows, int64(n), 0)
				} else {
					rows = window(rows, 0, int64(n))
				}
			case "$count":
				field, ok := arg.(string)
				if !ok || field == "" {
					return nil, fmt.Errorf("$count needs a field name")
				}
				rows = []bson.M{{field: int64(len(rows))}}
			default:
				return nil, fmt.Errorf("%w: %s", driver.ErrUnsupported, op)
			}
		}
	}

	return newCursor(rows)
}

func (d *memDriver) Save(ctx context.Context, coll string, doc bson.M) error {
	id, ok := doc["_id"]
	if !ok || id == nil {
		return fmt.Errorf("cannot save a document without _id")
	}

	row, err := clone(doc)
	if err != nil {
		return err
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return errClosed
	}

	c := d.collection(coll, true)
	key := idKey(row["_id"])
	if _, exists := c.rows[key]; !exists {
		c.order = append(c.order, key)
	}
	c.rows[key] = row
	return nil
}

func (d *memDriver) Delete(ctx context.Context, coll string, id any) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return errClosed
	}

	if c := d.collection(coll, false); c != nil {
		c.remove(idKey(id))
	}
	return nil
}

func (d *memDriver) DeleteMany(ctx context.Context, coll string, query bson.M) (int64, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	keys, err := d.matchingKeys(coll, query, false)
	if err != nil {
		return 0, err
	}
	c := d.collection(coll, false)
	for _, key := range keys {
		c.remove(key)
	}
	return int64(len(keys)), nil
}

func (d *memDriver) UpdateMany(ctx context.Context, coll string, query bson.M, update bson.M) (int64, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	keys, err := d.matchingKeys(coll, query, false)
	if err != nil {
		return 0, err
	}
	c := d.collection(coll, false)
	for _, key := range keys {
		updated, err := applyUpdate(c.rows[key], update)
		if err != nil {
			return 0, err
		}
		c.rows[key] = updated
	}
	return int64(len(keys)), nil
}

func (d *memDriver) FindAndUpdate(ctx context.Context, coll string, query bson.M, update bson.M) (bson.M, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	keys, err := d.matchingKeys(coll, query, true)
	if err != nil || len(keys) == 0 {
		return nil, err
	}

	c := d.collection(coll, false)
	updated, err := applyUpdate(c.rows[keys[0]], update)
	if err != nil {
		return nil, err
	}
	c.rows[keys[0]] = updated
	return clone(updated)
}

func (d *memDriver) Close(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.closed = true
	Logger.Debugf("memdriver closed (%d collections)", len(d.collections))
	return nil
}

// --------------------------------------------------------------------------
// Helper Methods
// --------------------------------------------------------------------------

var errClosed = fmt.Errorf("memdriver: driver is closed")

func (d *memDriver) collection(name string, create bool) *collection {
	c, ok := d.collections[name]
	if !ok && create {
		c = &collection{rows: make(map[string]bson.M)}
		d.collections[name] = c
	}
	return c
}

func (c *collection) remove(key string) {
	if _, ok := c.rows[key]; !ok {
		return
	}
	delete(c.rows, key)
	for i, k := range c.order {
		if k == key {
			c.order = append(c.order[:i], c.order[i+1:]...)
			break
		}
	}
}

// filter returns the matching rows in insertion order. The rows are shared with
// the store and must be copied before they leave the driver.
func (d *memDriver) filter(coll string, query bson.M) ([]bson.M, error) {
	keys, err := d.matchingKeys(coll, query, false)
	if err != nil {
		return nil, err
	}
	c := d.collection(coll, false)
	rows := make([]bson.M, len(keys))
	for i, key := range keys {
		rows[i] = c.rows[key]
	}
	return rows, nil
}

func (d *memDriver) matchingKeys(coll string, query bson.M, first bool) ([]string, error) {
	if d.closed {
		return nil, errClosed
	}
	c := d.collection(coll, false)
	if c == nil {
		return nil, nil
	}

	var keys []string
	for _, key := range c.order {
		ok, err := matches(c.rows[key], query)
		if err != nil {
			return nil, err
		}
		if ok {
			keys = append(keys, key)
			if first {
				break
			}
		}
	}
	return keys, nil
}

// idKey maps an _id value to the key of the row map
func idKey(id any) string {
	switch v := id.(type) {
	case bson.ObjectID:
		return "oid:" + v.Hex()
	case string:
		return "str:" + v
	}
	if f, ok := toFloat(id); ok {
		return fmt.Sprintf("num:%v", f)
	}
	return fmt.Sprintf("%T:%v", id, id)
}

// clone copies a document through BSON
func clone(doc bson.M) (bson.M, error) {
	data, err := bson.Marshal(doc)
	if err != nil {
		return nil, err
	}
	var out bson.M
	if err := bson.Unmarshal(data, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func operatorArg(arg any) (bson.M, bool) {
	switch a := arg.(type) {
	case bson.M:
		return a, true
	case map[string]any:
		return a, true
	case bson.D:
		m := make(bson.M, len(a))
		for _, e := range a {
			m[e.Key] = e.Value
		}
		return m, true
	}
	return nil, false
}

func applyUpdate(row bson.M, update bson.M) (bson.M, error) {
	if len(update) == 0 {
		return nil, fmt.Errorf("update document is empty")
	}

	out := make(bson.M, len(row))
	for k, v := range row {
		out[k] = v
	}

	for op, arg := range update {
		fields, ok := operatorArg(arg)
		if !ok {
			return nil, fmt.Errorf("%s needs a document, got %T", op, arg)
		}
		for field, value := range fields {
			if field == "_id" {
				return nil, fmt.Errorf("the field _id is immutable")
			}
			if strings.Contains(field, ".") {
				return nil, fmt.Errorf("%w: nested field %s", driver.ErrUnsupported, field)
			}
			switch op {
			case "$set":
				out[field] = value
			case "$unset":
				delete(out, field)
			case "$inc":
				sum, err := increment(out[field], value)
				if err != nil {
					return nil, fmt.Errorf("$inc on %s: %w", field, err)
				}
				out[field] = sum
			default:
				return nil, fmt.Errorf("%w: %s", driver.ErrUnsupported, op)
			}
		}
	}
	return clone(out)
}

func increment(current, delta any) (any, error) {
	if current == nil {
		current = int64(0)
	}
	a, okA := toFloat(current)
	b, okB := toFloat(delta)
	if !okA || !okB {
		return nil, fmt.Errorf("non-numeric operand")
	}
	if isInt(current) && isInt(delta) {
		return int64(a) + int64(b), nil
	}
	return a + b, nil
}

func isInt(v any) bool {
	switch v.(type) {
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		return true
	}
	return false
}

func sortRows(rows []bson.M, spec bson.D) {
	sort.SliceStable(rows, func(i, j int) bool {
		for _, e := range spec {
			dir := 1
			if f, ok := toFloat(e.Value); ok && f < 0 {
				dir = -1
			}
			a, aok := rows[i][e.Key]
			b, bok := rows[j][e.Key]
			switch {
			case !aok && !bok:
				continue
			case !aok:
				return dir > 0
			case !bok:
				return dir < 0
			}
			if c, ok := compare(a, b); ok && c != 0 {
				return c*dir < 0
			}
		}
		return false
	})
}

func window(rows []bson.M, skip, limit int64) []bson.M {
	if skip > 0 {
		if skip >= int64(len(rows)) {
			return nil
		}
		rows = rows[skip:]
	}
	if limit > 0 && limit < int64(len(rows)) {
		rows = rows[:limit]
	}
	return rows
}

// project applies an inclusion or exclusion projection
func project(row bson.M, projection bson.M) (bson.M, error) {
	include := -1
	for field, v := range projection {
		if field == "_id" {
			continue
		}
		f, ok := toFloat(v)
		if !ok {
			if b, isBool := v.(bool); isBool {
				ok = true
				if b {
					f = 1
				}
			}
		}
		if !ok {
			return nil, fmt.Errorf("%w: projection value for %s", driver.ErrUnsupported, field)
		}
		mode := 0
		if f != 0 {
			mode = 1
		}
		if include >= 0 && include != mode {
			return nil, fmt.Errorf("cannot mix inclusion and exclusion in a projection")
		}
		include = mode
	}

	keepID := true
	if v, ok := projection["_id"]; ok {
		if f, isNum := toFloat(v); isNum && f == 0 {
			keepID = false
		} else if b, isBool := v.(bool); isBool && !b {
			keepID = false
		}
	}

	out := bson.M{}
	if include == 1 {
		for field := range projection {
			if v, ok := row[field]; ok && field != "_id" {
				out[field] = v
			}
		}
	} else {
		for field, v := range row {
			if _, excluded := projection[field]; !excluded || field == "_id" {
				out[field] = v
			}
		}
	}
	if keepID {
		if id, ok := row["_id"]; ok {
			out["_id"] = id
		}
	} else {
		delete(out, "_id")
	}
	return out, nil
}

// --------------------------------------------------------------------------
// Cursor
// --------------------------------------------------------------------------

type memCursor struct {
	rows [][]byte
	pos  int
	err  error
}

// newCursor snapshots rows as BSON so the cursor is independent of later writes
func newCursor(rows []bson.M) (driver.Cursor, error) {
	c := &memCursor{rows: make([][]byte, len(rows)), pos: -1}
	for i, row := range rows {
		data, err := bson.Marshal(row)
		if err != nil {
			return nil, err
		}
		c.rows[i] = data
	}
	return c, nil
}

func (c *memCursor) Next(ctx context.Context) bool {
	if c.err != nil {
		return false
	}
	if err := ctx.Err(); err != nil {
		c.err = err
		return false
	}
	if c.pos+1 >= len(c.rows) {
		c.pos = len(c.rows)
		return false
	}
	c.pos++
	return true
}

func (c *memCursor) Decode(val any) error {
	if c.pos < 0 || c.pos >= len(c.rows) {
		return fmt.Errorf("cursor is not positioned on a row")
	}
	return bson.Unmarshal(c.rows[c.pos], val)
}

func (c *memCursor) Err() error {
	return c.err
}

func (c *memCursor) Close(ctx context.Context) error {
	c.rows = nil
	return nil
}
