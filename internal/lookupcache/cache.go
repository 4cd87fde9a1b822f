// ABOUTME: Thread-safe TTL cache of article metadata returned by lookups
// ABOUTME: Size-bounded with oldest-first eviction, persisted as a snapshot in a KV store

package lookupcache

import (
	"container/list"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/2389/folio-gateway/internal/progress"
	"github.com/2389/folio-gateway/internal/store"
)

// SnapshotKey is the KV key holding a saved cache.
const SnapshotKey = "folio_lookup_cache_v1"

type cacheEntry struct {
	meta    *progress.ArticleMeta // nil when the id is unknown or hidden
	stored  time.Time
	element *list.Element
}

// Cache holds article metadata by entity id for a bounded time. Absent ids
// are cached too, so a hidden article is not looked up on every listing.
// Uses a doubly-linked list in insertion order for O(1) eviction.
type Cache struct {
	mu      sync.Mutex
	entries map[progress.EntityID]*cacheEntry
	order   *list.List // oldest at front
	ttl     time.Duration
	maxSize int
	now     func() time.Time
	dirty   bool
}

// New creates an empty cache with the given TTL and maximum size. Expired
// entries are ignored by Get and dropped when the cache is saved.
func New(ttl time.Duration, maxSize int) *Cache {
	return newCache(ttl, maxSize, time.Now)
}

// Load creates a cache from the snapshot saved in kv. Entries that expired
// since the snapshot was taken are skipped. On error the returned cache is
// empty and still usable.
func Load(kv store.KV, ttl time.Duration, maxSize int) (*Cache, error) {
	c := New(ttl, maxSize)
	return c, c.restore(kv)
}

func newCache(ttl time.Duration, maxSize int, now func() time.Time) *Cache {
	if maxSize < 1 {
		maxSize = 1
	}
	return &Cache{
		entries: make(map[progress.EntityID]*cacheEntry),
		order:   list.New(),
		ttl:     ttl,
		maxSize: maxSize,
		now:     now,
	}
}

// Get splits ids into cached metadata and the ids that still need a lookup.
// Ids cached as absent appear in neither.
func (c *Cache) Get(ids []progress.EntityID) (map[progress.EntityID]progress.ArticleMeta, []progress.EntityID) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	hits := make(map[progress.EntityID]progress.ArticleMeta)
	var missing []progress.EntityID
	for _, id := range ids {
		entry, ok := c.entries[id]
		if !ok || now.Sub(entry.stored) >= c.ttl {
			missing = append(missing, id)
			continue
		}
		if entry.meta != nil {
			hits[id] = *entry.meta
		}
	}
	return hits, missing
}

// Put stores the lookup result for requested. Requested ids missing from
// found are cached as absent.
func (c *Cache) Put(requested []progress.EntityID, found map[progress.EntityID]progress.ArticleMeta) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, id := range requested {
		var meta *progress.ArticleMeta
		if m, ok := found[id]; ok {
			meta = &m
		}
		c.storeLocked(id, meta)
	}
	c.dirty = true
}

// Invalidate drops id from the cache.
func (c *Cache) Invalidate(id progress.EntityID) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if entry, ok := c.entries[id]; ok {
		c.order.Remove(entry.element)
		delete(c.entries, id)
		c.dirty = true
	}
}

// Len returns the number of cached ids, including expired ones not yet
// pruned.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// storeLocked must be called with mu held.
func (c *Cache) storeLocked(id progress.EntityID, meta *progress.ArticleMeta) {
	now := c.now()

	if entry, ok := c.entries[id]; ok {
		entry.meta = meta
		entry.stored = now
		c.order.MoveToBack(entry.element)
		return
	}

	if len(c.entries) >= c.maxSize {
		c.evictOldest()
	}

	elem := c.order.PushBack(id)
	c.entries[id] = &cacheEntry{meta: meta, stored: now, element: elem}
}

func (c *Cache) evictOldest() {
	front := c.order.Front()
	if front == nil {
		return
	}
	id, _ := front.Value.(progress.EntityID)
	c.order.Remove(front)
	delete(c.entries, id)
}

// pruneLocked drops expired entries. It must be called with mu held.
func (c *Cache) pruneLocked() {
	now := c.now()
	for id, entry := range c.entries {
		if now.Sub(entry.stored) >= c.ttl {
			c.order.Remove(entry.element)
			delete(c.entries, id)
			c.dirty = true
		}
	}
}

type snapshotEntry struct {
	ID     progress.EntityID     `json:"id"`
	Meta   *progress.ArticleMeta `json:"meta,omitempty"`
	Stored time.Time             `json:"stored"`
}

// Save writes the unexpired entries to kv, oldest first. It does nothing
// when the cache has not changed since it was loaded or last saved.
func (c *Cache) Save(kv store.KV) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.pruneLocked()
	if !c.dirty {
		return nil
	}

	snap := make([]snapshotEntry, 0, len(c.entries))
	for e := c.order.Front(); e != nil; e = e.Next() {
		id, _ := e.Value.(progress.EntityID)
		entry := c.entries[id]
		snap = append(snap, snapshotEntry{ID: id, Meta: entry.meta, Stored: entry.stored})
	}
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("encoding lookup cache: %w", err)
	}
	if err := kv.SetItem(SnapshotKey, string(data)); err != nil {
		return fmt.Errorf("saving lookup cache: %w", err)
	}
	c.dirty = false
	return nil
}

func (c *Cache) restore(kv store.KV) error {
	raw, ok, err := kv.GetItem(SnapshotKey)
	if err != nil {
		return fmt.Errorf("reading lookup cache: %w", err)
	}
	if !ok {
		return nil
	}
	var snap []snapshotEntry
	if err := json.Unmarshal([]byte(raw), &snap); err != nil {
		return fmt.Errorf("decoding lookup cache: %w", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	for _, se := range snap {
		if now.Sub(se.Stored) >= c.ttl {
			continue
		}
		if old, ok := c.entries[se.ID]; ok {
			c.order.Remove(old.element)
			delete(c.entries, se.ID)
		}
		if len(c.entries) >= c.maxSize {
			c.evictOldest()
		}
		elem := c.order.PushBack(se.ID)
		c.entries[se.ID] = &cacheEntry{meta: se.Meta, stored: se.Stored, element: elem}
	}
	return nil
}
