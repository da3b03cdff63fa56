// Package cache provides the bounded in-memory cache fronting external
// catalog lookups. Entries carry individual TTLs so success, not-found and
// error outcomes can expire on different schedules, and eviction is LRU
// when capacity is reached.
package cache

import (
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/kdimtricp/cineman/internal/metrics"
)

type entry struct {
	key        string
	value      any
	prev       *entry
	next       *entry
	insertedAt time.Time
	ttl        time.Duration
	hits       int64
}

// Stats is a point-in-time snapshot of cache counters.
type Stats struct {
	TotalRequests int64   `json:"total_requests"`
	Hits          int64   `json:"hits"`
	Misses        int64   `json:"misses"`
	Evictions     int64   `json:"evictions"`
	CurrentSize   int     `json:"current_size"`
	MaxSize       int     `json:"max_size"`
	HitRatio      float64 `json:"hit_ratio"`
	Enabled       bool    `json:"enabled"`
}

// MovieCache is a concurrent-safe LRU cache with per-entry TTL. The
// doubly-linked list keeps head.next as most recently used and tail.prev as
// least recently used, giving O(1) get, set and eviction.
type MovieCache struct {
	mu      sync.Mutex
	enabled bool
	maxSize int
	items   map[string]*entry
	head    *entry
	tail    *entry
	now     func() time.Time

	totalRequests int64
	hits          int64
	misses        int64
	evictions     int64
}

func New(maxSize int, enabled bool) *MovieCache {
	return NewWithClock(maxSize, enabled, time.Now)
}

// NewWithClock injects the time source; tests use it to exercise TTL expiry
// without sleeping.
func NewWithClock(maxSize int, enabled bool, now func() time.Time) *MovieCache {
	if maxSize <= 0 {
		maxSize = 1000
	}

	c := &MovieCache{
		enabled: enabled,
		maxSize: maxSize,
		items:   make(map[string]*entry, maxSize),
		head:    &entry{},
		tail:    &entry{},
		now:     now,
	}
	c.head.next = c.tail
	c.tail.prev = c.head
	return c
}

// Get returns the stored value when present and not expired. Expired entries
// are removed lazily and count as both a miss and an eviction.
func (c *MovieCache) Get(key string) (any, bool) {
	if !c.enabled {
		return nil, false
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.totalRequests++

	e, ok := c.items[key]
	if !ok {
		c.misses++
		metrics.CacheEvents.WithLabelValues("miss").Inc()
		return nil, false
	}

	if c.now().Sub(e.insertedAt) > e.ttl {
		c.remove(e)
		c.misses++
		c.evictions++
		metrics.CacheEvents.WithLabelValues("miss").Inc()
		metrics.CacheEvents.WithLabelValues("eviction").Inc()
		return nil, false
	}

	c.moveToFront(e)
	e.hits++
	c.hits++
	metrics.CacheEvents.WithLabelValues("hit").Inc()
	return e.value, true
}

// Set inserts or overwrites the entry for key. At capacity the least
// recently used entry is evicted first.
func (c *MovieCache) Set(key string, value any, ttl time.Duration) {
	if !c.enabled {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if e, ok := c.items[key]; ok {
		e.value = value
		e.insertedAt = c.now()
		e.ttl = ttl
		c.moveToFront(e)
		return
	}

	if len(c.items) >= c.maxSize {
		lru := c.tail.prev
		if lru != c.head {
			c.remove(lru)
			c.evictions++
			metrics.CacheEvents.WithLabelValues("eviction").Inc()
		}
	}

	e := &entry{
		key:        key,
		value:      value,
		insertedAt: c.now(),
		ttl:        ttl,
	}
	c.items[key] = e
	c.pushFront(e)
}

// Evict removes a single entry. Returns true when the key was present.
func (c *MovieCache) Evict(key string) bool {
	if !c.enabled {
		return false
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.items[key]
	if !ok {
		return false
	}
	c.remove(e)
	c.evictions++
	return true
}

// Clear drops all entries and returns how many were removed. Counters are
// preserved.
func (c *MovieCache) Clear() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	n := len(c.items)
	c.items = make(map[string]*entry, c.maxSize)
	c.head.next = c.tail
	c.tail.prev = c.head
	return n
}

func (c *MovieCache) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := Stats{
		TotalRequests: c.totalRequests,
		Hits:          c.hits,
		Misses:        c.misses,
		Evictions:     c.evictions,
		CurrentSize:   len(c.items),
		MaxSize:       c.maxSize,
		Enabled:       c.enabled,
	}
	if s.TotalRequests > 0 {
		s.HitRatio = float64(s.Hits) / float64(s.TotalRequests)
	}
	return s
}

func (c *MovieCache) remove(e *entry) {
	e.prev.next = e.next
	e.next.prev = e.prev
	delete(c.items, e.key)
}

func (c *MovieCache) pushFront(e *entry) {
	e.next = c.head.next
	e.prev = c.head
	c.head.next.prev = e
	c.head.next = e
}

func (c *MovieCache) moveToFront(e *entry) {
	e.prev.next = e.next
	e.next.prev = e.prev
	c.pushFront(e)
}

var (
	keyPunctRe   = regexp.MustCompile(`[^\w\s'-]`)
	keyArticleRe = regexp.MustCompile(`^(a|an|the)\s+`)
	keyYearRe    = regexp.MustCompile(`\b(19|20)\d{2}\b`)
)

// Key builds a normalized cache key from a source name, title and optional
// year. Titles are lowercased, stripped of punctuation other than hyphens
// and apostrophes, whitespace-collapsed and relieved of a leading article,
// so "The Matrix", "matrix" and "MATRIX" share a slot.
func Key(source, title, year string) string {
	normalized := strings.ToLower(title)
	normalized = keyPunctRe.ReplaceAllString(normalized, "")
	normalized = strings.Join(strings.Fields(normalized), " ")
	normalized = keyArticleRe.ReplaceAllString(normalized, "")

	parts := []string{source, normalized}
	if y := keyYearRe.FindString(year); y != "" {
		parts = append(parts, y)
	}
	return strings.Join(parts, ":")
}
