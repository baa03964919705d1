package internal

import (
	"fmt"

	"github.com/puzpuzpuz/xsync/v3"
)

// --------------------------------------------------------------------------
// Entry Type (cache value with metadata)
// --------------------------------------------------------------------------

// Entry stores a cached value with metadata
type Entry struct {
	Value    []byte // Serialized value
	DeleteAt int64  // Deadline in unix nanoseconds, 0 = none
	Index    uint64 // Write index of the last update
}

// Expired reports whether the entry is past its deadline at the given wall clock time.
func (e Entry) Expired(now int64) bool {
	return e.DeleteAt != 0 && now >= e.DeleteAt
}

func (e Entry) String() string {
	return fmt.Sprintf("Entry{len(Value): %d, DeleteAt: %d, Index: %d}", len(e.Value), e.DeleteAt, e.Index)
}

// --------------------------------------------------------------------------
// Shard Type (partition of the key space)
// --------------------------------------------------------------------------

// Shard holds a subset of the keys of one maple instance.
type Shard struct {
	Data *xsync.MapOf[string, Entry]
}

// NewShard creates an empty shard
func NewShard() *Shard {
	return &Shard{
		Data: xsync.NewMapOf[string, Entry](),
	}
}

// Sweep removes all entries past their deadline and returns the number removed.
// Entries are re-checked inside Compute so a concurrent refresh is never dropped.
func (s *Shard) Sweep(now int64) int {
	removed := 0
	s.Data.Range(func(key string, e Entry) bool {
		if !e.Expired(now) {
			return true
		}
		s.Data.Compute(key, func(old Entry, loaded bool) (Entry, bool) {
			if loaded && old.Expired(now) {
				removed++
				return old, true
			}
			return old, !loaded
		})
		return true
	})
	return removed
}
