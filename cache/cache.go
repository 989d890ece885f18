// Package cache holds built formulas keyed by their text.
package cache

import (
	"flag"
	"slices"
	"sync"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/puzpuzpuz/xsync/v3"
	"go.uber.org/atomic"
	"golang.org/x/sync/singleflight"
)

const (
	DefaultMaxSize       = 500
	DefaultReductionSize = 50
)

var (
	errMaxSize       = errors.New("max size must be positive")
	errReductionSize = errors.New("reduction size must be between 1 and max size")
)

// Config is the config for a formula cache.
type Config struct {
	MaxSize       int `yaml:"max_size" toml:"max_size"`
	ReductionSize int `yaml:"reduction_size" toml:"reduction_size"`
}

// RegisterFlags registers flags.
func (cfg *Config) RegisterFlags(f *flag.FlagSet) {
	cfg.RegisterFlagsWithPrefix(f, "cache.")
}

// RegisterFlagsWithPrefix registers flags with the given prefix.
func (cfg *Config) RegisterFlagsWithPrefix(f *flag.FlagSet, prefix string) {
	f.IntVar(&cfg.MaxSize, prefix+"max-size", DefaultMaxSize, "Maximum number of built formulas to keep.")
	f.IntVar(&cfg.ReductionSize, prefix+"reduction-size", DefaultReductionSize, "Number of least recently used formulas to evict when the cache is full.")
}

func (cfg *Config) Validate() error {
	if cfg.MaxSize <= 0 {
		return errMaxSize
	}
	if cfg.ReductionSize <= 0 || cfg.ReductionSize > cfg.MaxSize {
		return errReductionSize
	}
	return nil
}

type metrics struct {
	requests  prometheus.Counter
	hits      prometheus.Counter
	evictions prometheus.Counter
	entries   prometheus.Gauge
}

func newMetrics(reg prometheus.Registerer) *metrics {
	return &metrics{
		requests: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Name: "formula_cache_requests_total",
			Help: "Total number of formulas looked up in the cache.",
		}),
		hits: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Name: "formula_cache_hits_total",
			Help: "Total number of formulas found already built in the cache.",
		}),
		evictions: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Name: "formula_cache_evictions_total",
			Help: "Total number of formulas evicted from the cache.",
		}),
		entries: promauto.With(reg).NewGauge(prometheus.GaugeOpts{
			Name: "formula_cache_entries",
			Help: "Number of formulas currently in the cache.",
		}),
	}
}

type entry[V any] struct {
	val V
	// used is the access clock reading at the last lookup.
	used atomic.Int64
}

// Cache is a bounded map from keys to built values. Each key is built at
// most once at a time: concurrent callers for the same missing key wait for
// a single build and all receive its result. When the cache is full, an
// insert first evicts the least recently used entries.
//
// A Cache is safe for concurrent use.
type Cache[V any] struct {
	cfg     Config
	entries *xsync.MapOf[string, *entry[V]]
	clock   atomic.Int64
	// mu serializes inserts so that eviction and the size bound agree.
	mu      sync.Mutex
	builds  singleflight.Group
	metrics *metrics
}

// New creates a cache. reg may be nil to skip registering metrics.
func New[V any](cfg Config, reg prometheus.Registerer) (*Cache[V], error) {
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid formula cache config")
	}
	return &Cache[V]{
		cfg:     cfg,
		entries: xsync.NewMapOf[string, *entry[V]](),
		metrics: newMetrics(reg),
	}, nil
}

// GetOrBuild returns the value for key, calling build to create it if it is
// not cached. Errors from build are returned to every caller waiting on the
// same build and are not cached.
func (c *Cache[V]) GetOrBuild(key string, build func() (V, error)) (V, error) {
	c.metrics.requests.Inc()
	if v, ok := c.get(key); ok {
		c.metrics.hits.Inc()
		return v, nil
	}
	r, err, _ := c.builds.Do(key, func() (any, error) {
		// A build that finished between the lookup above and this flight
		// already stored the value.
		if v, ok := c.get(key); ok {
			return v, nil
		}
		v, err := build()
		if err != nil {
			return nil, err
		}
		c.insert(key, v)
		return v, nil
	})
	if err != nil {
		var zero V
		return zero, err
	}
	return r.(V), nil
}

// Get returns the cached value for key without building it.
func (c *Cache[V]) Get(key string) (V, bool) {
	return c.get(key)
}

func (c *Cache[V]) get(key string) (V, bool) {
	e, ok := c.entries.Load(key)
	if !ok {
		var zero V
		return zero, false
	}
	e.used.Store(c.clock.Inc())
	return e.val, true
}

func (c *Cache[V]) insert(key string, v V) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.entries.Load(key); !ok && c.entries.Size() >= c.cfg.MaxSize {
		c.evict()
	}
	e := &entry[V]{val: v}
	e.used.Store(c.clock.Inc())
	c.entries.Store(key, e)
	c.metrics.entries.Set(float64(c.entries.Size()))
}

// evict removes the least recently used entries, at least ReductionSize of
// them and enough to leave room for one more. c.mu must be held.
func (c *Cache[V]) evict() {
	type stamp struct {
		key  string
		used int64
	}
	all := make([]stamp, 0, c.entries.Size())
	c.entries.Range(func(k string, e *entry[V]) bool {
		all = append(all, stamp{k, e.used.Load()})
		return true
	})
	slices.SortFunc(all, func(a, b stamp) int {
		switch {
		case a.used < b.used:
			return -1
		case a.used > b.used:
			return 1
		}
		return 0
	})
	n := max(c.cfg.ReductionSize, len(all)-c.cfg.MaxSize+1)
	n = min(n, len(all))
	for _, s := range all[:n] {
		c.entries.Delete(s.key)
	}
	c.metrics.evictions.Add(float64(n))
}

// Len returns the number of cached values.
func (c *Cache[V]) Len() int {
	return c.entries.Size()
}

// Capacity returns the maximum number of cached values.
func (c *Cache[V]) Capacity() int {
	return c.cfg.MaxSize
}

// Invalidate removes key from the cache.
func (c *Cache[V]) Invalidate(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries.Delete(key)
	c.metrics.entries.Set(float64(c.entries.Size()))
}

// Clear removes everything from the cache.
func (c *Cache[V]) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries.Clear()
	c.metrics.entries.Set(0)
}
