package storage

import (
	"sync"

	cachev1 "github.com/omalloc/courier/api/defined/v1/cache"
	"github.com/omalloc/courier/api/defined/v1/cache/object"
	"github.com/omalloc/courier/conf"
	"github.com/omalloc/courier/contrib/log"
)

var _ cachev1.Cache = (*memCache)(nil)

// entry is a resident (or orphaned) cache object. It is intrusive in the
// recency list; most-recently-used sits next to the head sentinel.
//
// Invariants, all guarded by memCache.mu:
//   - a live entry is in the map and the list exactly once
//   - readers counts open pinned views; a pinned entry is never reclaimed
//   - orphaned entries are in neither map nor list and are invisible to
//     lookups; the last release drops their payload
type entry struct {
	fp   object.Fingerprint
	body []byte

	readers  int
	orphaned bool

	prev, next *entry

	c *memCache
}

// Bytes implements cache.Object.
func (e *entry) Bytes() []byte {
	return e.body
}

// Size implements cache.Object.
func (e *entry) Size() int64 {
	return int64(len(e.body))
}

// Release implements cache.Object.
func (e *entry) Release() {
	c := e.c
	c.mu.Lock()
	defer c.mu.Unlock()

	e.readers--
	if e.orphaned && e.readers == 0 {
		// evicted while being read; reclaim now that the last reader left
		e.body = nil
		_metricCacheOrphanReclaims.Inc()
	}
}

// memCache is the in-memory object cache: map for lookup, intrusive
// doubly-linked recency list with sentinels, byte-budgeted eviction from
// the tail. One mutex guards all bookkeeping; payload consumption happens
// outside the lock against pinned entries.
type memCache struct {
	mu  sync.Mutex
	log *log.Helper

	entries    map[object.Fingerprint]*entry
	head, tail *entry // sentinels

	used      int64
	maxBytes  int64
	maxObject int64
}

// New builds the cache from config.
func New(c *conf.Cache) cachev1.Cache {
	head := &entry{}
	tail := &entry{}
	head.next = tail
	tail.prev = head

	return &memCache{
		log:       log.NewHelper("component", "storage"),
		entries:   make(map[object.Fingerprint]*entry),
		head:      head,
		tail:      tail,
		maxBytes:  c.MaxCacheBytes,
		maxObject: c.MaxObjectBytes,
	}
}

// Lookup implements cache.Cache.
func (m *memCache) Lookup(fp object.Fingerprint) (cachev1.Object, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.entries[fp]
	if !ok {
		_metricCacheLookups.WithLabelValues("miss").Inc()
		return nil, false
	}

	e.readers++
	m.unlink(e)
	m.pushFront(e)

	_metricCacheLookups.WithLabelValues("hit").Inc()
	return e, true
}

// Store implements cache.Cache.
func (m *memCache) Store(fp object.Fingerprint, body []byte) bool {
	size := int64(len(body))
	if size > m.maxObject {
		_metricCacheStores.WithLabelValues("too_large").Inc()
		return false
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	// first writer wins; a concurrent miss already published this one
	if _, ok := m.entries[fp]; ok {
		_metricCacheStores.WithLabelValues("duplicate").Inc()
		return true
	}

	// make room from the least-recently-used end
	for m.used+size > m.maxBytes && m.tail.prev != m.head {
		m.evict(m.tail.prev)
		_metricCacheEvictions.Inc()
	}
	if m.used+size > m.maxBytes {
		// budget smaller than the object; nothing left to evict
		m.log.Debugf("refusing %d byte object, budget is %d", size, m.maxBytes)
		_metricCacheStores.WithLabelValues("over_budget").Inc()
		return false
	}

	owned := make([]byte, size)
	copy(owned, body)

	e := &entry{fp: fp, body: owned, c: m}
	m.entries[fp] = e
	m.pushFront(e)
	m.used += size

	_metricCacheStores.WithLabelValues("stored").Inc()
	_metricCacheUsedBytes.Set(float64(m.used))
	_metricCacheObjects.Set(float64(len(m.entries)))
	return true
}

// Remove implements cache.Cache.
func (m *memCache) Remove(fp object.Fingerprint) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.entries[fp]
	if !ok {
		return false
	}
	m.evict(e)
	return true
}

// Used implements cache.Cache.
func (m *memCache) Used() int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.used
}

// Objects implements cache.Cache.
func (m *memCache) Objects() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}

// Close implements cache.Cache.
func (m *memCache) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for m.tail.prev != m.head {
		m.evict(m.tail.prev)
	}
	return nil
}

// evict unlinks e from map and list and deducts its size. A pinned entry
// stays alive as an orphan until its last reader releases it. Callers hold
// the mutex.
func (m *memCache) evict(e *entry) {
	m.unlink(e)
	delete(m.entries, e.fp)
	m.used -= int64(len(e.body))

	if e.readers > 0 {
		e.orphaned = true
	} else {
		e.body = nil
	}

	_metricCacheUsedBytes.Set(float64(m.used))
	_metricCacheObjects.Set(float64(len(m.entries)))
}

func (m *memCache) unlink(e *entry) {
	e.prev.next = e.next
	e.next.prev = e.prev
	e.prev, e.next = nil, nil
}

func (m *memCache) pushFront(e *entry) {
	e.prev = m.head
	e.next = m.head.next
	m.head.next.prev = e
	m.head.next = e
}
