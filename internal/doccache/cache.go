package doccache

import (
	"container/list"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"docpipe/internal/model"
)

// ErrNotFound is returned when a document id is unknown or its entry has
// expired.
var ErrNotFound = errors.New("doccache: document not found")

// Entry is the caller-visible snapshot of a cached document. Formats is a
// shallow copy taken under the cache lock, so callers can inspect it without
// racing concurrent merges. Handle stays shared by reference; the cache never
// interprets it.
type Entry struct {
	ID           string
	SourceName   string
	Handle       any
	Formats      map[string]string
	CreatedAt    time.Time
	LastAccessed time.Time
	TTL          time.Duration
}

// record is the stored form of an entry, paired with its recency-list node.
type record struct {
	id           string
	sourceName   string
	handle       any
	formats      map[string]string
	createdAt    time.Time
	lastAccessed time.Time
	ttl          time.Duration
	elem         *list.Element
}

// Cache is a bounded TTL+LRU cache of parsed-document handles and their
// memoized renderings. A single mutex guards all state; every public call is
// one critical section, so a read and its recency update are atomic. Expiry
// is age-based (createdAt + ttl) and detected lazily.
//
// The recency list keeps the least-recently-used record at the front, so
// eviction and touch are O(1). Records inserted together and never touched
// evict in insertion order.
type Cache struct {
	maxSize    int
	defaultTTL time.Duration

	mu      sync.Mutex
	records map[string]*record
	order   *list.List // front = LRU, back = MRU; element values are *record

	now   func() time.Time
	newID func() string
}

// New constructs a cache holding at most maxSize entries with the given
// default per-entry TTL.
func New(maxSize int, defaultTTL time.Duration) *Cache {
	return &Cache{
		maxSize:    maxSize,
		defaultTTL: defaultTTL,
		records:    make(map[string]*record),
		order:      list.New(),
		now:        time.Now,
		newID:      uuid.NewString,
	}
}

// Put inserts or overwrites a cached document and marks it most recently
// used. An empty id generates one. A non-positive ttl uses the default.
// Before inserting, expired entries are swept; if the cache is full and the
// id is new, the least-recently-used entry is evicted.
func (c *Cache) Put(id, sourceName string, handle any, formats map[string]string, ttl time.Duration) string {
	if id == "" {
		id = c.newID()
	}
	if ttl <= 0 {
		ttl = c.defaultTTL
	}
	if formats == nil {
		formats = make(map[string]string)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.sweepLocked()

	if _, exists := c.records[id]; !exists && len(c.records) >= c.maxSize {
		c.evictLRULocked()
	}

	now := c.now()
	if old, exists := c.records[id]; exists {
		c.order.Remove(old.elem)
	}
	rec := &record{
		id:           id,
		sourceName:   sourceName,
		handle:       handle,
		formats:      formats,
		createdAt:    now,
		lastAccessed: now,
		ttl:          ttl,
	}
	rec.elem = c.order.PushBack(rec)
	c.records[id] = rec

	return id
}

// Get returns a snapshot of the document, updating its last-accessed time
// and moving it to the most-recently-used position. The read and the recency
// update happen atomically. An expired entry is deleted as a side effect.
func (c *Cache) Get(id string) (*Entry, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	rec, err := c.touchLocked(id)
	if err != nil {
		return nil, err
	}
	return rec.snapshot(), nil
}

// UpdateFormats merges newFormats into the entry's format map, overwriting
// existing keys. Returns false if the id is absent or expired.
//
// Like the lookup it is built on, this refreshes the entry's recency. A pure
// metadata write arguably should not count as "use", but renderings are only
// merged when a caller is actively exporting, so the refresh matches reality.
func (c *Cache) UpdateFormats(id string, newFormats map[string]string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	rec, err := c.touchLocked(id)
	if err != nil {
		return false
	}
	for k, v := range newFormats {
		rec.formats[k] = v
	}
	return true
}

// Delete removes an entry. Returns false if the id was not present.
func (c *Cache) Delete(id string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	rec, ok := c.records[id]
	if !ok {
		return false
	}
	c.removeLocked(rec)
	return true
}

// Clear drops every entry.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.records = make(map[string]*record)
	c.order.Init()
}

// CleanupExpired removes every expired entry. Idempotent.
func (c *Cache) CleanupExpired() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sweepLocked()
}

// Len reports the current number of entries, including not-yet-swept expired
// ones.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.records)
}

// Stats sweeps expired entries and reports the cache state, ordered from
// least to most recently used.
func (c *Cache) Stats() model.DocumentCacheStats {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.sweepLocked()

	stats := model.DocumentCacheStats{
		Size:       len(c.records),
		MaxSize:    c.maxSize,
		TTLSeconds: int64(c.defaultTTL / time.Second),
		Documents:  make([]model.CachedDocumentSummary, 0, len(c.records)),
	}
	now := c.now()
	for e := c.order.Front(); e != nil; e = e.Next() {
		rec := e.Value.(*record)
		expiresAt := rec.createdAt.Add(rec.ttl)
		remaining := int64(expiresAt.Sub(now) / time.Second)
		if remaining < 0 {
			remaining = 0
		}
		formats := make([]string, 0, len(rec.formats))
		for f := range rec.formats {
			formats = append(formats, f)
		}
		stats.Documents = append(stats.Documents, model.CachedDocumentSummary{
			ID:               rec.id,
			SourceName:       rec.sourceName,
			Formats:          formats,
			CreatedAt:        rec.createdAt,
			ExpiresAt:        expiresAt,
			RemainingSeconds: remaining,
		})
	}
	return stats
}

// touchLocked resolves a live record, updating recency. Expired records are
// removed as a side effect.
func (c *Cache) touchLocked(id string) (*record, error) {
	rec, ok := c.records[id]
	if !ok {
		return nil, ErrNotFound
	}
	if c.expiredLocked(rec) {
		c.removeLocked(rec)
		return nil, ErrNotFound
	}
	rec.lastAccessed = c.now()
	c.order.MoveToBack(rec.elem)
	return rec, nil
}

func (c *Cache) expiredLocked(rec *record) bool {
	return c.now().Sub(rec.createdAt) > rec.ttl
}

func (c *Cache) removeLocked(rec *record) {
	delete(c.records, rec.id)
	c.order.Remove(rec.elem)
}

func (c *Cache) evictLRULocked() {
	if front := c.order.Front(); front != nil {
		c.removeLocked(front.Value.(*record))
	}
}

func (c *Cache) sweepLocked() {
	for e := c.order.Front(); e != nil; {
		next := e.Next()
		rec := e.Value.(*record)
		if c.expiredLocked(rec) {
			c.removeLocked(rec)
		}
		e = next
	}
}

func (r *record) snapshot() *Entry {
	formats := make(map[string]string, len(r.formats))
	for k, v := range r.formats {
		formats[k] = v
	}
	return &Entry{
		ID:           r.id,
		SourceName:   r.sourceName,
		Handle:       r.handle,
		Formats:      formats,
		CreatedAt:    r.createdAt,
		LastAccessed: r.lastAccessed,
		TTL:          r.ttl,
	}
}
