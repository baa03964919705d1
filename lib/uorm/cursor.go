package uorm

import (
	"context"
	"iter"

	"github.com/ValentinKolb/uorm/lib/driver"
	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/v2/bson"
)

// Cursor is a lazy, restartable query. Every iteration runs the query again.
// The modifiers return a new cursor and leave the receiver unchanged.
type Cursor struct {
	coll  *Collection
	query bson.M
	opts  driver.FindOptions
}

// Sort orders the records, e.g. bson.D{{Key: "name", Value: 1}}
func (c *Cursor) Sort(sort bson.D) *Cursor {
	cp := *c
	cp.opts.Sort = sort
	return &cp
}

// Skip skips the first n records
func (c *Cursor) Skip(n int64) *Cursor {
	cp := *c
	cp.opts.Skip = n
	return &cp
}

// Limit returns at most n records
func (c *Cursor) Limit(n int64) *Cursor {
	cp := *c
	cp.opts.Limit = n
	return &cp
}

// Iter runs the query and yields the decoded records. Iteration stops after the
// first error.
func (c *Cursor) Iter(ctx context.Context) iter.Seq2[*Record, error] {
	return func(yield func(*Record, error) bool) {
		opts := c.opts
		cur, err := c.coll.db.Find(ctx, c.coll.Name(), c.coll.preprocess(c.query), &opts)
		if err != nil {
			yield(nil, errors.Wrapf(err, "find in %s", c.coll.Name()))
			return
		}
		defer cur.Close(ctx)

		for cur.Next(ctx) {
			var row bson.M
			if err := cur.Decode(&row); err != nil {
				yield(nil, errors.Wrap(err, "decode row"))
				return
			}
			rec, err := c.coll.decode(row)
			if !yield(rec, err) || err != nil {
				return
			}
		}
		if err := cur.Err(); err != nil {
			yield(nil, errors.Wrapf(err, "iterate %s", c.coll.Name()))
		}
	}
}

// All returns all records
func (c *Cursor) All(ctx context.Context) ([]*Record, error) {
	var records []*Record
	for rec, err := range c.Iter(ctx) {
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, nil
}

// Each calls fn for every record and stops at the first error
func (c *Cursor) Each(ctx context.Context, fn func(*Record) error) error {
	for rec, err := range c.Iter(ctx) {
		if err != nil {
			return err
		}
		if err := fn(rec); err != nil {
			return err
		}
	}
	return nil
}

// First returns the first record, nil if there is none
func (c *Cursor) First(ctx context.Context) (*Record, error) {
	for rec, err := range c.Limit(1).Iter(ctx) {
		return rec, err
	}
	return nil, nil
}

// Count returns the number of matching rows. Skip and Limit are ignored.
func (c *Cursor) Count(ctx context.Context) (int64, error) {
	return c.coll.Count(ctx, c.query)
}
