// Package cache keeps completed query results keyed by database id and
// canonical query hash, so repeated dashboard refreshes skip execution.
// Entries expire by TTL and the least recently used entry is evicted
// when the cache is full. Failed and interrupted results are never
// cached.
package cache

import (
	"fmt"
	"sync"
	"time"

	"github.com/satishbabariya/quarry/query/executor"
)

// Stats are cumulative cache counters.
type Stats struct {
	Hits      int64
	Misses    int64
	Size      int
	MaxSize   int
	Evictions int64
}

// ResultCache is an LRU cache of completed results with per-entry TTL.
// Safe for concurrent use.
type ResultCache struct {
	mu         sync.Mutex
	entries    map[string]*node
	maxSize    int
	defaultTTL time.Duration
	head, tail *node
	stats      Stats
}

type node struct {
	key        string
	databaseID int64
	result     *executor.Result
	expiresAt  time.Time
	prev, next *node
}

// New builds a result cache holding at most maxSize entries; entries
// stored without an explicit TTL expire after defaultTTL.
func New(maxSize int, defaultTTL time.Duration) *ResultCache {
	if maxSize <= 0 {
		maxSize = 256
	}
	return &ResultCache{
		entries:    make(map[string]*node),
		maxSize:    maxSize,
		defaultTTL: defaultTTL,
		stats:      Stats{MaxSize: maxSize},
	}
}

// Key derives the cache key for one query on one database.
func Key(databaseID int64, queryHash string) string {
	return fmt.Sprintf("%d:%s", databaseID, queryHash)
}

// Get returns the cached result for a query, or false on a miss or an
// expired entry.
func (c *ResultCache) Get(databaseID int64, queryHash string) (*executor.Result, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	n, ok := c.entries[Key(databaseID, queryHash)]
	if !ok {
		c.stats.Misses++
		return nil, false
	}
	if !n.expiresAt.IsZero() && time.Now().After(n.expiresAt) {
		c.remove(n)
		c.stats.Misses++
		return nil, false
	}
	c.moveToFront(n)
	c.stats.Hits++
	return n.result, true
}

// Put stores a completed result. Non-completed results are ignored so a
// transient failure can never shadow a later success.
func (c *ResultCache) Put(databaseID int64, queryHash string, res *executor.Result, ttl time.Duration) {
	if res == nil || res.Status != executor.StatusCompleted {
		return
	}
	if ttl == 0 {
		ttl = c.defaultTTL
	}
	var expiresAt time.Time
	if ttl > 0 {
		expiresAt = time.Now().Add(ttl)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	key := Key(databaseID, queryHash)
	if n, ok := c.entries[key]; ok {
		n.result = res
		n.expiresAt = expiresAt
		c.moveToFront(n)
		return
	}
	if len(c.entries) >= c.maxSize {
		c.evictOldest()
	}
	n := &node{key: key, databaseID: databaseID, result: res, expiresAt: expiresAt}
	c.addToFront(n)
	c.entries[key] = n
	c.stats.Size = len(c.entries)
}

// InvalidateDatabase drops every cached result for one database, called
// when its schema or data is known to have changed.
func (c *ResultCache) InvalidateDatabase(databaseID int64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var stale []*node
	for _, n := range c.entries {
		if n.databaseID == databaseID {
			stale = append(stale, n)
		}
	}
	for _, n := range stale {
		c.remove(n)
	}
}

// Clear drops every entry and resets the counters.
func (c *ResultCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]*node)
	c.head, c.tail = nil, nil
	c.stats = Stats{MaxSize: c.maxSize}
}

// Stats returns a snapshot of the counters.
func (c *ResultCache) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	s := c.stats
	s.Size = len(c.entries)
	return s
}

func (c *ResultCache) remove(n *node) {
	c.unlink(n)
	delete(c.entries, n.key)
	c.stats.Size = len(c.entries)
}

func (c *ResultCache) evictOldest() {
	if c.tail == nil {
		return
	}
	c.remove(c.tail)
	c.stats.Evictions++
}

func (c *ResultCache) moveToFront(n *node) {
	if c.head == n {
		return
	}
	c.unlink(n)
	c.addToFront(n)
}

func (c *ResultCache) addToFront(n *node) {
	n.prev = nil
	n.next = c.head
	if c.head != nil {
		c.head.prev = n
	}
	c.head = n
	if c.tail == nil {
		c.tail = n
	}
}

func (c *ResultCache) unlink(n *node) {
	if n.prev != nil {
		n.prev.next = n.next
	} else {
		c.head = n.next
	}
	if n.next != nil {
		n.next.prev = n.prev
	} else {
		c.tail = n.prev
	}
	n.prev, n.next = nil, nil
}
