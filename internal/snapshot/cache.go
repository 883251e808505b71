// Package snapshot owns the memoized result of an extraction pass: the tree,
// its serialized response body, the whole-surface structural fingerprint, and
// the most recent screen capture.
package snapshot

import (
	"sync"
	"time"

	"github.com/devicepilot/agent/internal/element"
)

// DefaultTTL is the short validity window for a cached snapshot.
const DefaultTTL = time.Second

// Entry is one cached snapshot. Owned exclusively by the cache once stored.
type Entry struct {
	Tree *element.Tree
	// Body is the serialized command-response payload, reusable verbatim on
	// a cache hit so two calls inside the window return byte-identical data.
	Body []byte
	// Signature is the structural fingerprint of the whole surface.
	Signature uint64
	// Image is the held screen-capture buffer, if any. Released before the
	// entry is replaced.
	Image      []byte
	CapturedAt time.Time
}

// Cache memoizes the most recent snapshot with a short validity window.
// Mutation signals invalidate it early; a hit skips extraction and bulk
// retransmission entirely.
type Cache struct {
	mu    sync.Mutex
	entry *Entry
	ttl   time.Duration
	now   func() time.Time

	hits   uint64
	misses uint64
}

// NewCache creates a cache with the given validity window. ttl <= 0 uses
// DefaultTTL.
func NewCache(ttl time.Duration) *Cache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Cache{ttl: ttl, now: time.Now}
}

// Put stores a fresh snapshot, releasing the previous entry's image buffer
// before replacement so at most one capture is held.
func (c *Cache) Put(e *Entry) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.entry != nil {
		c.entry.Image = nil
	}
	if e.CapturedAt.IsZero() {
		e.CapturedAt = c.now()
	}
	c.entry = e
}

// Get returns the cached snapshot if it is still inside the validity window.
func (c *Cache) Get() (*Entry, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.entry == nil || c.now().Sub(c.entry.CapturedAt) > c.ttl {
		c.misses++
		return nil, false
	}
	c.hits++
	return c.entry, true
}

// Peek returns the cached snapshot regardless of age, for diagnostics.
func (c *Cache) Peek() *Entry {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.entry
}

// Signature returns the fingerprint of the cached snapshot, or zero.
func (c *Cache) Signature() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.entry == nil {
		return 0
	}
	return c.entry.Signature
}

// Invalidate drops the cached snapshot, releasing any held image buffer.
// Called on mutation signals so a stale surface is never served.
func (c *Cache) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.entry != nil {
		c.entry.Image = nil
		c.entry = nil
	}
}

// Stats returns hit and miss counts.
func (c *Cache) Stats() (hits, misses uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.hits, c.misses
}
