package uorm

import "go.mongodb.org/mongo-driver/v2/bson"

// Option tunes a single record or collection operation. Options that do not apply
// to an operation are ignored.
type Option func(*options)

type options struct {
	skipCallback bool
	noInvalidate bool
	noReload     bool
	when         bson.M
	raise        bool
	raiseErr     error
}

func collectOptions(opts []Option) options {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// SkipCallback disables the schema hooks of Save, Update and Destroy
func SkipCallback() Option {
	return func(o *options) { o.skipCallback = true }
}

// NoInvalidate keeps the cache entries of the record after a write
func NoInvalidate() Option {
	return func(o *options) { o.noInvalidate = true }
}

// NoReload keeps the in-memory values after a successful DBUpdate
func NoReload() Option {
	return func(o *options) { o.noReload = true }
}

// When adds conditions to the query of DBUpdate. The update only applies if the
// persisted row still matches them.
func When(query bson.M) Option {
	return func(o *options) { o.when = query }
}

// RaiseIfNone makes Get and CacheGet return err when nothing matches.
// A nil err selects *NotFound.
func RaiseIfNone(err error) Option {
	return func(o *options) {
		o.raise = true
		o.raiseErr = err
	}
}
