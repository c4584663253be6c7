// Package manager implements the property cache (C4): a byte-budgeted LRU
// keyed by (owner_role, graph_identity, property_name), and the
// PropertyManager that exposes it to the memory supervisor as a Manager.
package manager

import (
	"container/list"
	"sync"

	"github.com/KatanaGraph/katana-sub004/internal/memsup"
	"github.com/KatanaGraph/katana-sub004/pkg/perrors"
)

// CacheKey identifies a cached property column. GraphIdentity distinguishes
// columns belonging to different graph instances that happen to share a
// property name (e.g. two loaded snapshots of the same dataset).
type CacheKey struct {
	Role          string
	GraphIdentity string
	PropertyName  string
}

// entry is the value stored in the LRU's backing list; size is tracked
// alongside the value so Reclaim/Evict can adjust the byte budget without
// re-measuring the payload.
type entry struct {
	key   CacheKey
	value any
	bytes int64
}

// PropertyCache is a mutex-protected, byte-budgeted LRU. It is built on
// container/list (doubly linked list) plus a key map for O(1) lookup,
// generalizing the teacher's hand-rolled collections.Queue/Stack shape with
// random access — no pack library offers a byte-budgeted LRU keyed on this
// exact 3-tuple (see DESIGN.md).
type PropertyCache struct {
	mu       sync.Mutex
	capacity int64
	used     int64
	ll       *list.List // front = most recently used
	index    map[CacheKey]*list.Element
}

// NewPropertyCache creates a cache with the given byte budget.
func NewPropertyCache(capacityBytes int64) *PropertyCache {
	return &PropertyCache{
		capacity: capacityBytes,
		ll:       list.New(),
		index:    make(map[CacheKey]*list.Element),
	}
}

// Size returns the number of entries currently cached.
func (c *PropertyCache) Size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ll.Len()
}

// UsedBytes returns the total bytes currently accounted for by cached entries.
func (c *PropertyCache) UsedBytes() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.used
}

// Insert adds or replaces an entry, evicting least-recently-used entries
// first if the insert would exceed the byte budget. Returns an error only
// if bytes alone exceeds the total capacity (the entry could never fit).
func (c *PropertyCache) Insert(key CacheKey, value any, bytes int64) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if bytes > c.capacity {
		return perrors.Wrap(perrors.CodeInvalidArgument, "entry larger than cache capacity", nil)
	}
	if el, ok := c.index[key]; ok {
		old := el.Value.(*entry)
		c.used -= old.bytes
		c.ll.Remove(el)
		delete(c.index, key)
	}
	for c.used+bytes > c.capacity && c.ll.Len() > 0 {
		c.evictOldestLocked()
	}
	el := c.ll.PushFront(&entry{key: key, value: value, bytes: bytes})
	c.index[key] = el
	c.used += bytes
	return nil
}

// GetAndEvict looks up key, promoting it to most-recently-used on a hit and
// removing the stale LRU position — matching the original's fetch-bumps-
// recency semantics. It does NOT remove the entry from the cache (the name
// refers to evicting the *old* list position, not the value).
func (c *PropertyCache) GetAndEvict(key CacheKey) (any, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	el, ok := c.index[key]
	if !ok {
		return nil, false
	}
	c.ll.MoveToFront(el)
	return el.Value.(*entry).value, true
}

// Evict removes key from the cache outright, returning the bytes freed.
func (c *PropertyCache) Evict(key CacheKey) int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	el, ok := c.index[key]
	if !ok {
		return 0
	}
	e := el.Value.(*entry)
	c.ll.Remove(el)
	delete(c.index, key)
	c.used -= e.bytes
	return e.bytes
}

// Take removes key from the cache outright and returns its value and size,
// for a caller that is about to reclassify those bytes from standby back to
// active (PropertyManager.AddProperty) rather than simply discarding them.
func (c *PropertyCache) Take(key CacheKey) (any, int64, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	el, ok := c.index[key]
	if !ok {
		return nil, 0, false
	}
	e := el.Value.(*entry)
	c.ll.Remove(el)
	delete(c.index, key)
	c.used -= e.bytes
	return e.value, e.bytes, true
}

// Clear empties the cache, returning the total bytes freed.
func (c *PropertyCache) Clear() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	freed := c.used
	c.ll.Init()
	c.index = make(map[CacheKey]*list.Element)
	c.used = 0
	return freed
}

// Reclaim evicts least-recently-used entries until at least n bytes have
// been freed or the cache is empty, whichever comes first. Returns the
// bytes actually freed.
func (c *PropertyCache) Reclaim(n int64) int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	var freed int64
	for freed < n && c.ll.Len() > 0 {
		freed += c.evictOldestLocked()
	}
	return freed
}

func (c *PropertyCache) evictOldestLocked() int64 {
	el := c.ll.Back()
	if el == nil {
		return 0
	}
	e := el.Value.(*entry)
	c.ll.Remove(el)
	delete(c.index, e.key)
	c.used -= e.bytes
	return e.bytes
}

// PropertyManager wraps a PropertyCache so it can be registered with
// internal/memsup.Supervisor as a Manager, and mediates every transition a
// property column makes between the active (in-use, not reclaimable) and
// standby (cached, reclaimable) memory classes the supervisor tracks.
// Callers must never touch Cache() directly for these transitions — doing
// so would let active bytes land straight in the LRU, the class confusion
// this type exists to prevent.
type PropertyManager struct {
	name  string
	cache *PropertyCache
	sup   *memsup.Supervisor
}

// NewPropertyManager wraps cache under the given manager name (used as the
// supervisor registry key and in log/trace output), charging its
// active/standby traffic against sup.
func NewPropertyManager(name string, cache *PropertyCache, sup *memsup.Supervisor) *PropertyManager {
	return &PropertyManager{name: name, cache: cache, sup: sup}
}

// Name implements memsup.Manager.
func (m *PropertyManager) Name() string { return m.name }

// FreeStandby implements memsup.Manager by reclaiming from the wrapped
// cache. When goal alone would already clear the whole cache, Clear is used
// directly rather than evicting one LRU entry at a time.
func (m *PropertyManager) FreeStandby(goal int64) int64 {
	if goal >= m.cache.UsedBytes() {
		return m.cache.Clear()
	}
	return m.cache.Reclaim(goal)
}

// Cache returns the underlying PropertyCache for read-only inspection
// (Size, UsedBytes). Inserts and evictions must go through OnPropertyLoaded/
// AddProperty/UnloadProperty so the supervisor's counters stay in sync.
func (m *PropertyManager) Cache() *PropertyCache { return m.cache }

// OnPropertyLoaded accounts for bytes bytes newly read off storage as
// active memory. Call this once per freshly materialized column, before it
// is ever inserted into the cache.
func (m *PropertyManager) OnPropertyLoaded(bytes int64) error {
	return m.sup.BorrowActive(m.name, bytes)
}

// AddProperty looks up key among the cached (standby) columns and, on a
// hit, reclassifies its bytes back to active before handing the value to
// the caller — a cache hit means the column is about to be read again, so
// it is no longer reclaimable. Returns ok=false on a miss; the caller must
// fall back to loading the column and calling OnPropertyLoaded.
func (m *PropertyManager) AddProperty(key CacheKey) (any, bool) {
	value, bytes, ok := m.cache.Take(key)
	if !ok {
		return nil, false
	}
	if _, err := m.sup.StandbyToActive(m.name, bytes); err != nil {
		return nil, false
	}
	return value, true
}

// DiscardProperty releases bytes bytes of active memory without caching
// anything, for a caller dropping a column outright rather than making it
// available for reuse (e.g. a relabel invalidating every cached key).
func (m *PropertyManager) DiscardProperty(bytes int64) error {
	return m.sup.ReturnActive(m.name, bytes)
}

// UnloadProperty reclassifies bytes bytes of the active column value keyed
// by key back to standby and, if the supervisor accepts the move, inserts
// it into the cache so it can be evicted later under pressure. If the
// supervisor refuses the move — memory pressure remains high even after
// reclassifying — the claim is released outright instead of caching an
// entry there was no room to keep.
func (m *PropertyManager) UnloadProperty(key CacheKey, value any, bytes int64) error {
	moved, err := m.sup.ActiveToStandby(m.name, bytes)
	if err != nil {
		return err
	}
	if moved == 0 {
		return m.sup.ReturnStandby(m.name, bytes)
	}
	if err := m.cache.Insert(key, value, moved); err != nil {
		return m.sup.ReturnStandby(m.name, moved)
	}
	return nil
}
