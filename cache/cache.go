// Package cache is the local session cache: recently restored or saved
// credential snapshots and configuration records, each entry aging out on a
// TTL so the remote store stays authoritative.
package cache

import (
	"container/list"
	"context"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type entry struct {
	key      string
	value    interface{}
	storedAt time.Time
	ttl      time.Duration
}

type Cache struct {
	items      map[string]*list.Element
	evictList  *list.List
	mutex      sync.RWMutex
	capacity   int
	ttl        time.Duration
	ctx        context.Context
	cancel     context.CancelFunc
	sweepevery time.Duration
	now        func() time.Time
	name       string
	metrics    *metrics
}

var (
	hits = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "session_cache_hits_total",
		Help: "Total number of session cache hits",
	}, []string{"cache"})
	misses = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "session_cache_misses_total",
		Help: "Total number of session cache misses",
	}, []string{"cache"})
	size = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "session_cache_size",
		Help: "Current number of entries per cache",
	}, []string{"cache"})
)

type metrics struct {
	hits   prometheus.Counter
	misses prometheus.Counter
	size   prometheus.Gauge
}

var cacheMetrics = struct {
	mu sync.Mutex
	m  map[string]*metrics
}{m: make(map[string]*metrics)}

func metricsFor(name string) *metrics {
	cacheMetrics.mu.Lock()
	defer cacheMetrics.mu.Unlock()
	if m, ok := cacheMetrics.m[name]; ok {
		return m
	}
	m := &metrics{
		hits:   hits.WithLabelValues(name),
		misses: misses.WithLabelValues(name),
		size:   size.WithLabelValues(name),
	}
	cacheMetrics.m[name] = m
	return m
}

// New creates a cache holding at most capacity entries, each expiring ttl
// after it was stored. name labels the prometheus series.
func New(name string, capacity int, ttl time.Duration) *Cache {
	ctx, cancel := context.WithCancel(context.Background())
	c := &Cache{
		items:      make(map[string]*list.Element),
		evictList:  list.New(),
		capacity:   capacity,
		ttl:        ttl,
		ctx:        ctx,
		cancel:     cancel,
		sweepevery: time.Minute,
		now:        time.Now,
		name:       name,
		metrics:    metricsFor(name),
	}
	go c.startSweep()
	return c
}

// Get returns the cached value for key. Entries older than the cache TTL
// count as misses and are evicted on the spot.
func (c *Cache) Get(key string) (interface{}, bool) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	element, exists := c.items[key]
	if !exists {
		c.metrics.misses.Inc()
		return nil, false
	}
	e := element.Value.(*entry)
	if c.expired(e, c.now()) {
		c.evictElement(element)
		c.metrics.misses.Inc()
		return nil, false
	}
	c.evictList.MoveToFront(element)
	c.metrics.hits.Inc()
	return e.value, true
}

// Put stores value under key with the cache-wide TTL.
func (c *Cache) Put(key string, value interface{}) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	if element, exists := c.items[key]; exists {
		c.evictList.MoveToFront(element)
		e := element.Value.(*entry)
		e.value = value
		e.storedAt = c.now()
		return
	}

	element := c.evictList.PushFront(&entry{
		key:      key,
		value:    value,
		storedAt: c.now(),
		ttl:      c.ttl,
	})
	c.items[key] = element
	c.metrics.size.Inc()

	if c.evictList.Len() > c.capacity {
		if back := c.evictList.Back(); back != nil {
			c.evictElement(back)
		}
	}
}

// Invalidate drops key immediately.
func (c *Cache) Invalidate(key string) {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	if element, exists := c.items[key]; exists {
		c.evictElement(element)
	}
}

// InvalidateExpired removes every entry older than its TTL as of now.
func (c *Cache) InvalidateExpired(now time.Time) {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	for _, element := range c.items {
		if c.expired(element.Value.(*entry), now) {
			c.evictElement(element)
		}
	}
}

func (c *Cache) Clear() {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	c.items = make(map[string]*list.Element)
	c.evictList.Init()
	c.metrics.size.Set(0)
}

func (c *Cache) Size() int {
	c.mutex.RLock()
	defer c.mutex.RUnlock()
	return c.evictList.Len()
}

// Stop ends the background sweep goroutine.
func (c *Cache) Stop() {
	c.cancel()
}

func (c *Cache) expired(e *entry, now time.Time) bool {
	return e.ttl > 0 && now.Sub(e.storedAt) > e.ttl
}

func (c *Cache) evictElement(element *list.Element) {
	c.evictList.Remove(element)
	e := element.Value.(*entry)
	delete(c.items, e.key)
	c.metrics.size.Dec()
}

func (c *Cache) startSweep() {
	ticker := time.NewTicker(c.sweepevery)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.InvalidateExpired(c.now())
		case <-c.ctx.Done():
			return
		}
	}
}
