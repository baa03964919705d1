package cache

import (
	"fmt"
	"io"
	"time"

	"github.com/ValentinKolb/uorm/lib/store"
	"github.com/VictoriaMetrics/metrics"
	"github.com/lni/dragonboat/v4/logger"
	"github.com/pkg/errors"
	"github.com/puzpuzpuz/xsync/v3"
	"golang.org/x/sync/singleflight"
)

var Logger = logger.GetLogger("cache")

// Loader fetches a value from the source of truth on a cache miss.
// found=false means the source has no value; nothing is cached in that case.
type Loader func() (value []byte, found bool, err error)

// Option configures a Manager
type Option func(*Manager)

// WithTTL lets entries written by the manager expire after ttl (0 = never).
func WithTTL(ttl time.Duration) Option {
	return func(m *Manager) {
		m.ttl = ttl
	}
}

// WithName sets the name used in log lines and as metrics label.
func WithName(name string) Option {
	return func(m *Manager) {
		m.name = name
	}
}

// Manager composes a local (L1) and a shared (L2) cache tier.
// Either tier may be nil, a Manager with no tiers always calls the loader.
//
// Read path: L1, then L2 (a hit is promoted to L1), then the loader. Values returned
// by the loader are written to L2 before L1. Invalidation deletes from L2 before L1.
//
// A load that overlaps an invalidation of its key still answers the callers waiting
// on it, but its value is never left in a tier, and callers arriving after the
// invalidation start a fresh load.
type Manager struct {
	name   string
	local  store.IStore
	shared store.IStore
	ttl    time.Duration
	group  singleflight.Group
	fences *xsync.MapOf[string, fence]

	set                        *metrics.Set
	l1Hits, l2Hits, misses     *metrics.Counter
	loads, deletes, errorCount *metrics.Counter
	loadDuration               *metrics.Histogram
}

// fence tracks the loads in flight for one key. stamp is bumped by every
// invalidation of the key while at least one load is running.
type fence struct {
	stamp   uint64
	flights int
}

// NewManager creates a Manager over the given tiers
func NewManager(local, shared store.IStore, opts ...Option) *Manager {
	m := &Manager{
		name:   "default",
		local:  local,
		shared: shared,
		fences: xsync.NewMapOf[string, fence](),
		set:    metrics.NewSet(),
	}
	for _, opt := range opts {
		opt(m)
	}

	counter := func(name, labels string) *metrics.Counter {
		return m.set.NewCounter(fmt.Sprintf(`%s{cache=%q%s}`, name, m.name, labels))
	}
	m.l1Hits = counter("uorm_cache_requests_total", `,result="l1_hit"`)
	m.l2Hits = counter("uorm_cache_requests_total", `,result="l2_hit"`)
	m.misses = counter("uorm_cache_requests_total", `,result="miss"`)
	m.loads = counter("uorm_cache_loads_total", "")
	m.deletes = counter("uorm_cache_deletes_total", "")
	m.errorCount = counter("uorm_cache_errors_total", "")
	m.loadDuration = m.set.NewHistogram(fmt.Sprintf(`uorm_cache_load_duration_seconds{cache=%q}`, m.name))

	return m
}

// Local returns the L1 tier (may be nil)
func (m *Manager) Local() store.IStore { return m.local }

// Shared returns the L2 tier (may be nil)
func (m *Manager) Shared() store.IStore { return m.shared }

// Fetch returns the value for key, consulting L1, L2 and finally the loader.
// Concurrent misses on the same key share one loader call.
func (m *Manager) Fetch(key string, loader Loader) ([]byte, bool, error) {
	start := time.Now()

	if m.local != nil {
		val, ok, err := m.local.Get(key)
		if err != nil {
			m.errorCount.Inc()
			return nil, false, errors.Wrapf(err, "l1 get %s", key)
		}
		if ok {
			m.l1Hits.Inc()
			Logger.Debugf("[%s] l1 hit %s took %s", m.name, key, time.Since(start))
			return val, true, nil
		}
	}

	if m.shared != nil {
		stamp := m.beginLoad(key)
		val, ok, err := m.shared.Get(key)
		if err != nil {
			m.endLoad(key)
			m.errorCount.Inc()
			return nil, false, errors.Wrapf(err, "l2 get %s", key)
		}
		if ok {
			m.l2Hits.Inc()
			if _, err := m.writeThrough(key, stamp, val, m.local); err != nil {
				return nil, false, errors.Wrap(err, "promote")
			}
			Logger.Debugf("[%s] l2 hit %s took %s", m.name, key, time.Since(start))
			return val, true, nil
		}
		m.endLoad(key)
	}

	m.misses.Inc()

	type result struct {
		value []byte
		found bool
	}
	v, err, shared := m.group.Do(key, func() (interface{}, error) {
		stamp := m.beginLoad(key)
		loadStart := time.Now()
		val, found, err := loader()
		m.loads.Inc()
		m.loadDuration.UpdateDuration(loadStart)
		if err != nil || !found {
			m.endLoad(key)
			return result{}, err
		}

		cached, err := m.writeThrough(key, stamp, val, m.shared, m.local)
		if err != nil {
			return nil, err
		}
		if !cached {
			Logger.Debugf("[%s] %s invalidated during load, not caching", m.name, key)
		}
		return result{value: val, found: true}, nil
	})
	if err != nil {
		return nil, false, err
	}

	res := v.(result)
	Logger.Debugf("[%s] miss %s (found=%v, shared=%v) took %s", m.name, key, res.found, shared, time.Since(start))
	return res.value, res.found, nil
}

// Set writes value to both tiers, L2 first.
func (m *Manager) Set(key string, value []byte) error {
	if err := m.put(m.shared, key, value); err != nil {
		return errors.Wrapf(err, "l2 set %s", key)
	}
	if err := m.put(m.local, key, value); err != nil {
		return errors.Wrapf(err, "l1 set %s", key)
	}
	return nil
}

// Delete removes key from both tiers, L2 first. deleted reports whether any
// tier held the key. Deleting a missing key is not an error.
// Loads of key that are in flight are fenced off and will not populate the tiers.
func (m *Manager) Delete(key string) (deleted bool, err error) {
	start := time.Now()

	m.fences.Compute(key, func(old fence, loaded bool) (fence, bool) {
		if !loaded {
			return old, true
		}
		old.stamp++
		return old, false
	})
	m.group.Forget(key)

	var l1, l2 bool
	if m.shared != nil {
		if l2, err = m.shared.Delete(key); err != nil {
			m.errorCount.Inc()
			return false, errors.Wrapf(err, "l2 delete %s", key)
		}
	}
	if m.local != nil {
		if l1, err = m.local.Delete(key); err != nil {
			m.errorCount.Inc()
			return l2, errors.Wrapf(err, "l1 delete %s", key)
		}
	}

	m.deletes.Inc()
	Logger.Debugf("[%s] delete %s (l2=%v, l1=%v) took %s", m.name, key, l2, l1, time.Since(start))
	return l1 || l2, nil
}

// Invalidate deletes all keys from both tiers and stops at the first failure.
func (m *Manager) Invalidate(keys ...string) error {
	for _, key := range keys {
		if _, err := m.Delete(key); err != nil {
			return err
		}
	}
	return nil
}

// WritePrometheus writes the metrics of this manager in Prometheus text format.
func (m *Manager) WritePrometheus(w io.Writer) {
	m.set.WritePrometheus(w)
}

// --------------------------------------------------------------------------
// Load fencing
// --------------------------------------------------------------------------

// beginLoad registers a load of key and returns the stamp it started with
func (m *Manager) beginLoad(key string) uint64 {
	f, _ := m.fences.Compute(key, func(old fence, _ bool) (fence, bool) {
		old.flights++
		return old, false
	})
	return f.stamp
}

// endLoad unregisters a load that caches nothing
func (m *Manager) endLoad(key string) {
	m.fences.Compute(key, func(old fence, loaded bool) (fence, bool) {
		old.flights--
		return old, !loaded || old.flights <= 0
	})
}

// writeThrough unregisters a load and writes its value to the given tiers in order,
// unless key was invalidated since beginLoad. The writes run under the fence of key,
// so an invalidation either precedes them and suppresses them, or follows and
// deletes them.
func (m *Manager) writeThrough(key string, stamp uint64, val []byte, tiers ...store.IStore) (cached bool, err error) {
	m.fences.Compute(key, func(old fence, loaded bool) (fence, bool) {
		old.flights--
		drop := !loaded || old.flights <= 0
		if !loaded || old.stamp != stamp {
			return old, drop
		}
		for _, tier := range tiers {
			if err = m.put(tier, key, val); err != nil {
				err = errors.Wrapf(err, "%s set %s", m.tierName(tier), key)
				return old, drop
			}
		}
		cached = true
		return old, drop
	})
	return cached, err
}

func (m *Manager) tierName(tier store.IStore) string {
	if tier == m.shared {
		return "l2"
	}
	return "l1"
}

func (m *Manager) put(tier store.IStore, key string, value []byte) error {
	if tier == nil {
		return nil
	}
	if err := tier.SetE(key, value, m.ttl); err != nil {
		m.errorCount.Inc()
		return err
	}
	return nil
}
