// Package cache holds bounded in-memory caches for analysis results.
package cache

import (
	"sync"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/hurttlocker/docfill/internal/extract"
)

// Defaults for the analysis cache.
const (
	DefaultCapacity   = 100
	DefaultStatsEvery = 10
)

// Stats counts cache traffic since creation.
type Stats struct {
	Hits      int64 `json:"hits"`
	Misses    int64 `json:"misses"`
	Puts      int64 `json:"puts"`
	Evictions int64 `json:"evictions"`
	Size      int   `json:"size"`
}

// StatsSink receives a stats snapshot every StatsEvery operations. It is
// called without the cache lock held.
type StatsSink func(Stats)

// Options configures a FIFO cache.
type Options struct {
	Capacity int           // max entries; <= 0 means DefaultCapacity
	TTL      time.Duration // 0 means entries never expire
	// StatsEvery is the number of Get/Put operations between sink calls.
	StatsEvery int
	Sink       StatsSink
}

// FIFO is a capacity-bounded cache that evicts the oldest insertion first.
// Entries live in a go-cache store, which handles expiry. A single mutex
// covers every read-modify-write so insertion order and the store agree.
type FIFO[V any] struct {
	mu       sync.Mutex
	store    *gocache.Cache
	queue    []string
	queued   map[string]bool
	capacity int

	stats      Stats
	ops        int
	statsEvery int
	sink       StatsSink
}

// AnalysisCache caches analysis results by content key. It satisfies
// extract.Cache.
type AnalysisCache = FIFO[extract.AnalysisResult]

var _ extract.Cache = (*AnalysisCache)(nil)

// New creates a FIFO cache.
func New[V any](opts Options) *FIFO[V] {
	if opts.Capacity <= 0 {
		opts.Capacity = DefaultCapacity
	}
	if opts.StatsEvery <= 0 {
		opts.StatsEvery = DefaultStatsEvery
	}
	ttl := gocache.NoExpiration
	cleanup := time.Duration(0)
	if opts.TTL > 0 {
		ttl = opts.TTL
		cleanup = opts.TTL
	}
	return &FIFO[V]{
		store:      gocache.New(ttl, cleanup),
		queued:     make(map[string]bool),
		capacity:   opts.Capacity,
		statsEvery: opts.StatsEvery,
		sink:       opts.Sink,
	}
}

// NewAnalysisCache creates a cache for extract.Analyzer.
func NewAnalysisCache(opts Options) *AnalysisCache {
	return New[extract.AnalysisResult](opts)
}

// Get returns the value stored under key.
func (c *FIFO[V]) Get(key string) (V, bool) {
	c.mu.Lock()
	var out V
	x, found := c.store.Get(key)
	if found {
		out = x.(V)
		c.stats.Hits++
	} else {
		c.stats.Misses++
	}
	snap, flush := c.tick()
	c.mu.Unlock()

	c.flush(snap, flush)
	return out, found
}

// Put stores value under key. Re-putting a live key updates it in place
// without changing its eviction order.
func (c *FIFO[V]) Put(key string, value V) {
	c.mu.Lock()
	if c.queued[key] {
		if _, live := c.store.Get(key); !live {
			c.dequeue(key)
		}
	}
	if !c.queued[key] {
		c.queue = append(c.queue, key)
		c.queued[key] = true
	}
	c.store.Set(key, value, gocache.DefaultExpiration)
	c.stats.Puts++

	for len(c.queue) > c.capacity {
		oldest := c.queue[0]
		c.queue = c.queue[1:]
		delete(c.queued, oldest)
		if _, live := c.store.Get(oldest); live {
			c.stats.Evictions++
		}
		c.store.Delete(oldest)
	}
	snap, flush := c.tick()
	c.mu.Unlock()

	c.flush(snap, flush)
}

// Len returns the number of live entries.
func (c *FIFO[V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.store.ItemCount()
}

// Stats returns a snapshot of the counters.
func (c *FIFO[V]) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshot()
}

// Clear drops every entry. Counters are kept.
func (c *FIFO[V]) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.store.Flush()
	c.queue = nil
	c.queued = make(map[string]bool)
}

func (c *FIFO[V]) dequeue(key string) {
	for i, k := range c.queue {
		if k == key {
			c.queue = append(c.queue[:i], c.queue[i+1:]...)
			break
		}
	}
	delete(c.queued, key)
}

func (c *FIFO[V]) snapshot() Stats {
	s := c.stats
	s.Size = c.store.ItemCount()
	return s
}

// tick counts one operation. Caller holds mu.
func (c *FIFO[V]) tick() (Stats, bool) {
	c.ops++
	if c.sink == nil || c.ops%c.statsEvery != 0 {
		return Stats{}, false
	}
	return c.snapshot(), true
}

func (c *FIFO[V]) flush(s Stats, ok bool) {
	if ok {
		c.sink(s)
	}
}
