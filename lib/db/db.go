package db

import "io"

// --------------------------------------------------------------------------
// Helper Types
// --------------------------------------------------------------------------

type Implementation string

const (
	ImplMaple Implementation = "maple"
)

// Feature represents engine features as bit flags
type Feature uint64

const (
	FeatureSet            Feature = 1 << iota // Support for Set operations
	FeatureSetE                               // Support for SetE operations (entries with a deadline)
	FeatureGet                                // Support for Get operations
	FeatureDelete                             // Support for Delete operations
	FeatureHas                                // Support for Has operations
	FeatureSave                               // Support for Save operations
	FeatureLoad                               // Support for Load operations
	FeatureGarbageCollect                     // Support for background removal of expired entries
)

func (f Feature) String() string {
	switch f {
	case FeatureSet:
		return "Set"
	case FeatureSetE:
		return "SetE"
	case FeatureGet:
		return "Get"
	case FeatureDelete:
		return "Delete"
	case FeatureHas:
		return "Has"
	case FeatureSave:
		return "Save"
	case FeatureLoad:
		return "Load"
	case FeatureGarbageCollect:
		return "GarbageCollect"
	default:
		return "Unknown"
	}
}

// AllFeatures lists every single feature flag, in declaration order.
var AllFeatures = []Feature{
	FeatureSet, FeatureSetE, FeatureGet, FeatureDelete,
	FeatureHas, FeatureSave, FeatureLoad, FeatureGarbageCollect,
}

type DatabaseInfo struct {
	Entries           int            `json:"entries"`
	SizeBytes         int            `json:"size_bytes"`
	DbType            Implementation `json:"db_type"`
	SupportedFeatures []Feature      `json:"supported_features"`
	Metadata          interface{}    `json:"metadata"`
}

// --------------------------------------------------------------------------
// Database Interface
// --------------------------------------------------------------------------

// KVDB is the engine underneath a cache tier. Values are opaque byte slices
// (serialized documents), keys are cache keys.
//
// Every write carries a writeIndex. A write whose index is lower than the index
// of the entry currently stored for that key is ignored, which keeps replicated
// engines convergent when entries are applied out of order.
type KVDB interface {

	// --------------------------------------------------------------------------
	// Write Operations
	// --------------------------------------------------------------------------

	// Set inserts or updates an entry without deadline.
	Set(key string, value []byte, writeIndex uint64)

	// SetE inserts or updates an entry that disappears at deleteAt
	// (unix nanoseconds, wall clock). A deleteAt of 0 means no deadline.
	// The deadline is absolute so that all replicas agree on it.
	SetE(key string, value []byte, writeIndex uint64, deleteAt int64)

	// Delete removes an entry. The return value reports whether a live entry
	// was removed; deleting a missing key is not an error.
	Delete(key string, writeIndex uint64) (deleted bool)

	// --------------------------------------------------------------------------
	// Query Operations
	// --------------------------------------------------------------------------

	// Get retrieves the value for an exact key. Entries past their deadline are
	// reported as missing even if the garbage collector has not yet removed them.
	Get(key string) (value []byte, loaded bool)

	// Has checks whether a live entry exists for the key.
	Has(key string) (loaded bool)

	// --------------------------------------------------------------------------
	// Persistence Operations
	// --------------------------------------------------------------------------

	// Save writes all live entries to w.
	Save(w io.Writer) (err error)

	// Load replaces the engine content with the entries read from r.
	Load(r io.Reader) (err error)

	// --------------------------------------------------------------------------
	// Feature Support
	// --------------------------------------------------------------------------

	// SupportsFeature checks if the implementation supports all given features.
	// Multiple features can be checked at once using bitwise OR (|).
	SupportsFeature(feature Feature) (ok bool)

	// GetInfo returns information about the database.
	GetInfo() (info DatabaseInfo)

	// --------------------------------------------------------------------------
	// Write Index Operations
	// --------------------------------------------------------------------------

	// SetWriteIdx raises the current index; lower values are ignored.
	SetWriteIdx(index uint64)

	// WriteIdx returns the highest write index seen so far.
	WriteIdx() (index uint64)

	// Close stops background work and releases all entries.
	Close() (err error)
}
