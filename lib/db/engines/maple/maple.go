package maple

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ValentinKolb/uorm/lib/db"
	"github.com/ValentinKolb/uorm/lib/db/engines/maple/internal"
	"github.com/ValentinKolb/uorm/lib/db/util"
)

// --------------------------------------------------------------------------
// Constants
// --------------------------------------------------------------------------

const (
	magicNum          = "MAPLEDB\x00" // File format identifier
	mapleVersion      = 4             // Format version (4 = string keys, wall clock deadlines)
	defaultGCInterval = time.Second   // Default interval between GC runs
)

// --------------------------------------------------------------------------
// Core Maple database structure
// --------------------------------------------------------------------------

// mapleImpl is a sharded in-memory engine with wall clock deadlines
type mapleImpl struct {
	seed      uint64
	shards    []*internal.Shard
	currIndex atomic.Uint64

	// loadMu blocks all operations while Load swaps the shard content
	loadMu sync.RWMutex

	// garbage collection
	gcInterval time.Duration
	gcStop     chan struct{}
	gcDone     chan struct{}
	closeOnce  sync.Once

	// now is replaceable in tests
	now func() int64
}

// DBOptions configures the mapleImpl behavior during initialization
type DBOptions struct {
	NumShards  int           // Number of shards (0 = number of CPUs)
	GCInterval time.Duration // Time between GC runs (0 = default, <0 = disabled)
}

// DefaultOptions returns the default mapleImpl options
func DefaultOptions() *DBOptions {
	return &DBOptions{
		NumShards:  runtime.NumCPU(),
		GCInterval: defaultGCInterval,
	}
}

// --------------------------------------------------------------------------
// Initialization and Setup
// --------------------------------------------------------------------------

// NewMapleDB creates a new MapleDB instance with the specified options (optional)
func NewMapleDB(opts *DBOptions) db.KVDB {
	if opts == nil {
		opts = DefaultOptions()
	}
	numShards := opts.NumShards
	if numShards <= 0 {
		numShards = runtime.NumCPU()
	}
	gcInterval := opts.GCInterval
	if gcInterval == 0 {
		gcInterval = defaultGCInterval
	}

	shards := make([]*internal.Shard, numShards)
	for i := range shards {
		shards[i] = internal.NewShard()
	}

	newDB := &mapleImpl{
		seed:       util.GenerateSeed(),
		shards:     shards,
		gcInterval: gcInterval,
		gcStop:     make(chan struct{}),
		gcDone:     make(chan struct{}),
		now:        func() int64 { return time.Now().UnixNano() },
	}

	if gcInterval > 0 {
		go newDB.garbageCollector()
	} else {
		close(newDB.gcDone)
	}

	return newDB
}

func (maple *mapleImpl) shardFor(key string) *internal.Shard {
	return maple.shards[util.ShardIndex(key, maple.seed, len(maple.shards))]
}

// --------------------------------------------------------------------------
// Core KVDB Interface Methods - Write Operations
// --------------------------------------------------------------------------

// Set inserts or updates an entry without deadline.
//
// Thread-safety: This method is thread-safe and can be called concurrently.
func (maple *mapleImpl) Set(key string, value []byte, writeIdx uint64) {
	maple.SetE(key, value, writeIdx, 0)
}

// SetE inserts or updates an entry that vanishes at deleteAt.
// Stale writes (writeIndex lower than the stored entry index) are ignored.
//
// Thread-safety: This method is thread-safe and can be called concurrently.
func (maple *mapleImpl) SetE(key string, value []byte, writeIndex uint64, deleteAt int64) {
	maple.loadMu.RLock()
	defer maple.loadMu.RUnlock()

	maple.SetWriteIdx(writeIndex)

	// values are owned by the engine
	stored := make([]byte, len(value))
	copy(stored, value)

	maple.shardFor(key).Data.Compute(key, func(old internal.Entry, loaded bool) (internal.Entry, bool) {
		if loaded && writeIndex < old.Index {
			return old, false
		}
		return internal.Entry{Value: stored, DeleteAt: deleteAt, Index: writeIndex}, false
	})
}

// Delete removes the entry for key and reports whether a live entry was removed.
//
// Thread-safety: This method is thread-safe and can be called concurrently.
func (maple *mapleImpl) Delete(key string, writeIndex uint64) bool {
	maple.loadMu.RLock()
	defer maple.loadMu.RUnlock()

	maple.SetWriteIdx(writeIndex)

	now := maple.now()
	deleted := false
	maple.shardFor(key).Data.Compute(key, func(old internal.Entry, loaded bool) (internal.Entry, bool) {
		if !loaded {
			return old, true
		}
		if writeIndex < old.Index {
			return old, false
		}
		deleted = !old.Expired(now)
		return old, true
	})
	return deleted
}

// --------------------------------------------------------------------------
// Core KVDB Interface Methods - Read Operations
// --------------------------------------------------------------------------

// Get returns a copy of the value stored for key.
//
// Thread-safety: This method is thread-safe and can be called concurrently.
func (maple *mapleImpl) Get(key string) ([]byte, bool) {
	maple.loadMu.RLock()
	defer maple.loadMu.RUnlock()

	entry, ok := maple.shardFor(key).Data.Load(key)
	if !ok || entry.Expired(maple.now()) {
		return nil, false
	}
	value := make([]byte, len(entry.Value))
	copy(value, entry.Value)
	return value, true
}

// Has reports whether a live entry exists for key.
//
// Thread-safety: This method is thread-safe and can be called concurrently.
func (maple *mapleImpl) Has(key string) bool {
	maple.loadMu.RLock()
	defer maple.loadMu.RUnlock()

	entry, ok := maple.shardFor(key).Data.Load(key)
	return ok && !entry.Expired(maple.now())
}

// --------------------------------------------------------------------------
// Garbage Collection
// --------------------------------------------------------------------------

// garbageCollector periodically sweeps all shards for expired entries.
// Reads never return expired entries, so the sweep only reclaims memory.
func (maple *mapleImpl) garbageCollector() {
	defer close(maple.gcDone)

	ticker := time.NewTicker(maple.gcInterval)
	defer ticker.Stop()

	for {
		select {
		case <-maple.gcStop:
			return
		case <-ticker.C:
			maple.collect()
		}
	}
}

// collect runs one sweep over all shards and returns the number of removed entries
func (maple *mapleImpl) collect() int {
	maple.loadMu.RLock()
	defer maple.loadMu.RUnlock()

	now := maple.now()
	removed := 0
	for _, shard := range maple.shards {
		removed += shard.Sweep(now)
	}
	return removed
}

// --------------------------------------------------------------------------
// Persistence Operations
// --------------------------------------------------------------------------

// Save writes all live entries to w.
//
// Format: magic | version u8 | write index u64 | count u64 |
// count * (keyLen u32 | key | deleteAt i64 | index u64 | valueLen u32 | value)
//
// Thread-safety: Writes may continue during Save; the snapshot is fuzzy.
func (maple *mapleImpl) Save(w io.Writer) error {
	type entryToSave struct {
		key   string
		entry internal.Entry
	}

	maple.loadMu.RLock()
	now := maple.now()
	var entries []entryToSave
	for _, shard := range maple.shards {
		shard.Data.Range(func(key string, entry internal.Entry) bool {
			if !entry.Expired(now) {
				entries = append(entries, entryToSave{key, entry})
			}
			return true
		})
	}
	writeIdx := maple.currIndex.Load()
	maple.loadMu.RUnlock()

	bw := bufio.NewWriterSize(w, 1024*1024)

	if _, err := bw.WriteString(magicNum); err != nil {
		return err
	}
	if err := binary.Write(bw, binary.LittleEndian, uint8(mapleVersion)); err != nil {
		return err
	}
	if err := binary.Write(bw, binary.LittleEndian, writeIdx); err != nil {
		return err
	}
	if err := binary.Write(bw, binary.LittleEndian, uint64(len(entries))); err != nil {
		return err
	}

	for _, item := range entries {
		if err := binary.Write(bw, binary.LittleEndian, uint32(len(item.key))); err != nil {
			return err
		}
		if _, err := bw.WriteString(item.key); err != nil {
			return err
		}
		if err := binary.Write(bw, binary.LittleEndian, item.entry.DeleteAt); err != nil {
			return err
		}
		if err := binary.Write(bw, binary.LittleEndian, item.entry.Index); err != nil {
			return err
		}
		if err := binary.Write(bw, binary.LittleEndian, uint32(len(item.entry.Value))); err != nil {
			return err
		}
		if _, err := bw.Write(item.entry.Value); err != nil {
			return err
		}
	}

	return bw.Flush()
}

// Load replaces the content of the engine with the snapshot read from r.
//
// Thread-safety: Load blocks all other operations until it returns.
func (maple *mapleImpl) Load(r io.Reader) error {
	br := bufio.NewReaderSize(r, 1024*1024)

	magicBytes := make([]byte, len(magicNum))
	if _, err := io.ReadFull(br, magicBytes); err != nil {
		return err
	}
	if string(magicBytes) != magicNum {
		return fmt.Errorf("invalid file format: magic number mismatch")
	}

	var version uint8
	if err := binary.Read(br, binary.LittleEndian, &version); err != nil {
		return err
	}
	if version != mapleVersion {
		return fmt.Errorf("unsupported version: %d (expected %d)", version, mapleVersion)
	}

	var writeIdx, count uint64
	if err := binary.Read(br, binary.LittleEndian, &writeIdx); err != nil {
		return err
	}
	if err := binary.Read(br, binary.LittleEndian, &count); err != nil {
		return err
	}

	// decode into fresh shards first so a broken snapshot leaves the engine untouched
	shards := make([]*internal.Shard, len(maple.shards))
	for i := range shards {
		shards[i] = internal.NewShard()
	}

	for i := uint64(0); i < count; i++ {
		var keyLen uint32
		if err := binary.Read(br, binary.LittleEndian, &keyLen); err != nil {
			return err
		}
		key := make([]byte, keyLen)
		if _, err := io.ReadFull(br, key); err != nil {
			return err
		}

		var entry internal.Entry
		if err := binary.Read(br, binary.LittleEndian, &entry.DeleteAt); err != nil {
			return err
		}
		if err := binary.Read(br, binary.LittleEndian, &entry.Index); err != nil {
			return err
		}

		var valueLen uint32
		if err := binary.Read(br, binary.LittleEndian, &valueLen); err != nil {
			return err
		}
		entry.Value = make([]byte, valueLen)
		if _, err := io.ReadFull(br, entry.Value); err != nil {
			return err
		}

		k := string(key)
		shards[util.ShardIndex(k, maple.seed, len(shards))].Data.Store(k, entry)
	}

	maple.loadMu.Lock()
	maple.shards = shards
	maple.currIndex.Store(writeIdx)
	maple.loadMu.Unlock()
	return nil
}

// --------------------------------------------------------------------------
// Metadata
// --------------------------------------------------------------------------

// GetInfo returns entry count, an estimated size and per-shard counts.
func (maple *mapleImpl) GetInfo() db.DatabaseInfo {
	maple.loadMu.RLock()
	defer maple.loadMu.RUnlock()

	entries, size := 0, 0
	perShard := make([]int, len(maple.shards))
	for i, shard := range maple.shards {
		shard.Data.Range(func(key string, entry internal.Entry) bool {
			entries++
			perShard[i]++
			size += len(key) + len(entry.Value) + 16
			return true
		})
	}

	var features []db.Feature
	for _, f := range db.AllFeatures {
		if maple.SupportsFeature(f) {
			features = append(features, f)
		}
	}

	return db.DatabaseInfo{
		Entries:           entries,
		SizeBytes:         size,
		DbType:            db.ImplMaple,
		SupportedFeatures: features,
		Metadata: map[string]interface{}{
			"shards":            len(maple.shards),
			"entries_per_shard": perShard,
			"gc_interval":       maple.gcInterval.String(),
			"write_index":       maple.currIndex.Load(),
		},
	}
}

// SupportsFeature returns true for every feature, maple implements the whole interface.
func (maple *mapleImpl) SupportsFeature(feature db.Feature) bool {
	const supported = db.FeatureSet | db.FeatureSetE | db.FeatureGet | db.FeatureDelete |
		db.FeatureHas | db.FeatureSave | db.FeatureLoad | db.FeatureGarbageCollect
	return feature&supported == feature
}

// Close stops the garbage collector and drops all entries.
func (maple *mapleImpl) Close() error {
	maple.closeOnce.Do(func() {
		close(maple.gcStop)
		<-maple.gcDone

		maple.loadMu.Lock()
		for _, shard := range maple.shards {
			shard.Data.Clear()
		}
		maple.loadMu.Unlock()
	})
	return nil
}

// --------------------------------------------------------------------------
// Write Index
// --------------------------------------------------------------------------

// SetWriteIdx raises the current index, lower values are ignored.
func (maple *mapleImpl) SetWriteIdx(newIdx uint64) {
	for {
		curr := maple.currIndex.Load()
		if newIdx <= curr || maple.currIndex.CompareAndSwap(curr, newIdx) {
			return
		}
	}
}

func (maple *mapleImpl) WriteIdx() uint64 {
	return maple.currIndex.Load()
}
