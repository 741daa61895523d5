package mountvfs

import (
	"strings"
	"sync"
)

// Cache holds previously loaded file contents keyed by canonical VFS path,
// bounded by a total byte budget with least-recently-used eviction.
type Cache struct {
	mu       sync.Mutex
	entries  map[string]*cacheEntry
	lruHead  *cacheEntry // most recently used
	lruTail  *cacheEntry // least recently used
	maxBytes int64
	bytes    int64
	enabled  bool

	// seq advances on every invalidation. A load starts with the current
	// seq as its token; its put is dropped when the key was invalidated
	// after the token was taken.
	seq       uint64
	pending   map[uint64]int    // tokens of loads in flight
	keyInval  map[string]uint64 // key -> seq of its last invalidation
	treeInval []prefixInval
	clearSeq  uint64

	hits      uint64
	misses    uint64
	evictions uint64
}

// prefixInval records an invalidateTree call
type prefixInval struct {
	prefix string
	seq    uint64
}

// cacheEntry stores one cached file
type cacheEntry struct {
	key  string
	data []byte
	prev *cacheEntry
	next *cacheEntry
}

// newCache creates a cache with the given byte budget; zero disables it
func newCache(maxBytes int64) *Cache {
	return &Cache{
		entries:  make(map[string]*cacheEntry),
		pending:  make(map[uint64]int),
		keyInval: make(map[string]uint64),
		maxBytes: maxBytes,
		enabled:  maxBytes > 0,
	}
}

// get returns the cached contents of key and marks it recently used
func (c *Cache) get(key string) ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[key]
	if !ok {
		c.misses++
		return nil, false
	}
	c.hits++
	c.moveToHead(entry)
	return entry.data, true
}

// begin starts a load and returns the token its put or abort must present
func (c *Cache) begin() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pending[c.seq]++
	return c.seq
}

// abort ends a load that will not put anything
func (c *Cache) abort(token uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.finishLocked(token)
}

// put ends the load started with token and stores data under key, unless
// key was invalidated since or data alone exceeds the budget. It returns
// the evicted keys.
func (c *Cache) put(key string, data []byte, token uint64) []string {
	c.mu.Lock()
	defer c.mu.Unlock()

	stale := c.staleLocked(key, token)
	c.finishLocked(token)
	if stale || !c.enabled || int64(len(data)) > c.maxBytes {
		return nil
	}
	if old, ok := c.entries[key]; ok {
		c.removeEntry(old)
	}
	entry := &cacheEntry{key: key, data: data}
	c.entries[key] = entry
	c.bytes += int64(len(data))
	c.moveToHead(entry)

	var evicted []string
	for c.bytes > c.maxBytes && c.lruTail != nil && c.lruTail != entry {
		victim := c.lruTail
		c.removeEntry(victim)
		c.evictions++
		evicted = append(evicted, victim.key)
	}
	return evicted
}

// staleLocked reports whether key was invalidated after token was taken.
// The caller holds c.mu.
func (c *Cache) staleLocked(key string, token uint64) bool {
	if c.clearSeq > token {
		return true
	}
	if seq, ok := c.keyInval[key]; ok && seq > token {
		return true
	}
	for _, inv := range c.treeInval {
		if inv.seq > token && strings.HasPrefix(key, inv.prefix) {
			return true
		}
	}
	return false
}

// finishLocked retires token and forgets invalidations no pending load
// can observe any more. The caller holds c.mu.
func (c *Cache) finishLocked(token uint64) {
	if c.pending[token]--; c.pending[token] <= 0 {
		delete(c.pending, token)
	}
	if len(c.pending) == 0 {
		if len(c.keyInval) > 0 {
			c.keyInval = make(map[string]uint64)
		}
		c.treeInval = nil
		return
	}
	oldest := c.seq
	for t := range c.pending {
		if t < oldest {
			oldest = t
		}
	}
	for key, seq := range c.keyInval {
		if seq <= oldest {
			delete(c.keyInval, key)
		}
	}
	kept := c.treeInval[:0]
	for _, inv := range c.treeInval {
		if inv.seq > oldest {
			kept = append(kept, inv)
		}
	}
	c.treeInval = kept
}

// invalidate removes key from the cache
func (c *Cache) invalidate(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.seq++
	if len(c.pending) > 0 {
		c.keyInval[key] = c.seq
	}
	if entry, ok := c.entries[key]; ok {
		c.removeEntry(entry)
	}
}

// invalidateTree removes all entries under a directory key prefix
func (c *Cache) invalidateTree(prefix string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.seq++
	if len(c.pending) > 0 {
		c.treeInval = append(c.treeInval, prefixInval{prefix: prefix, seq: c.seq})
	}
	for key, entry := range c.entries {
		if strings.HasPrefix(key, prefix) {
			c.removeEntry(entry)
		}
	}
}

// clear removes all entries
func (c *Cache) clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.seq++
	c.clearSeq = c.seq
	c.entries = make(map[string]*cacheEntry)
	c.lruHead = nil
	c.lruTail = nil
	c.bytes = 0
}

// removeEntry unlinks entry; the caller holds c.mu
func (c *Cache) removeEntry(entry *cacheEntry) {
	c.unlink(entry)
	delete(c.entries, entry.key)
	c.bytes -= int64(len(entry.data))
}

func (c *Cache) unlink(entry *cacheEntry) {
	if entry.prev != nil {
		entry.prev.next = entry.next
	} else if c.lruHead == entry {
		c.lruHead = entry.next
	}
	if entry.next != nil {
		entry.next.prev = entry.prev
	} else if c.lruTail == entry {
		c.lruTail = entry.prev
	}
	entry.prev = nil
	entry.next = nil
}

// moveToHead marks entry as most recently used; the caller holds c.mu
func (c *Cache) moveToHead(entry *cacheEntry) {
	if c.lruHead == entry {
		return
	}
	c.unlink(entry)
	entry.next = c.lruHead
	if c.lruHead != nil {
		c.lruHead.prev = entry
	}
	c.lruHead = entry
	if c.lruTail == nil {
		c.lruTail = entry
	}
}

// Stats returns cache statistics
func (c *Cache) Stats() CacheStats {
	c.mu.Lock()
	defer c.mu.Unlock()

	return CacheStats{
		Enabled:   c.enabled,
		Entries:   len(c.entries),
		Bytes:     c.bytes,
		MaxBytes:  c.maxBytes,
		Hits:      c.hits,
		Misses:    c.misses,
		Evictions: c.evictions,
	}
}

// CacheStats contains cache statistics
type CacheStats struct {
	Enabled   bool
	Entries   int
	Bytes     int64
	MaxBytes  int64
	Hits      uint64
	Misses    uint64
	Evictions uint64
}
