package contentfilter

import (
	"strconv"
	"sync"
	"unicode/utf16"

	cache "github.com/go-pkgz/expirable-cache/v3"
)

// default cache bounds
const (
	DefaultCacheLimit = 500 // soft capacity, eviction runs when exceeded
	DefaultCacheEvict = 400 // number of oldest entries evicted in one sweep
	cacheKeyPrefixLen = 100 // UTF-16 code units of the text used in the cache key
)

// cache modes, part of the key
const (
	modeFull  = "full"
	modeQuick = "quick"
)

// cachedResult holds a verdict of either mode
type cachedResult struct {
	full  Verdict
	quick QuickVerdict
}

// resultCache is a bounded cache of check results with insertion-order batch eviction, thread-safe.
// Entries never expire by time, the underlying cache keeps keys oldest first.
type resultCache struct {
	limit int
	evict int
	store cache.Cache[string, cachedResult]
	lock  sync.Mutex
}

func newResultCache(limit, evict int) *resultCache {
	if limit <= 0 {
		limit = DefaultCacheLimit
	}
	if evict <= 0 || evict > limit {
		evict = min(DefaultCacheEvict, limit)
	}
	return &resultCache{limit: limit, evict: evict, store: cache.NewCache[string, cachedResult]()}
}

func (c *resultCache) get(key string) (cachedResult, bool) {
	c.lock.Lock()
	defer c.lock.Unlock()
	return c.store.Get(key)
}

// put adds the result and runs the eviction sweep if the cache grew above its limit
func (c *resultCache) put(key string, res cachedResult) {
	c.lock.Lock()
	defer c.lock.Unlock()
	c.store.Set(key, res, 0)
	if c.store.Len() <= c.limit {
		return
	}
	keys := c.store.Keys() // oldest first
	for _, k := range keys[:min(c.evict, len(keys))] {
		c.store.Invalidate(k)
	}
}

func (c *resultCache) purge() {
	c.lock.Lock()
	defer c.lock.Unlock()
	c.store.Purge()
}

func (c *resultCache) stats() (size int, hits int, misses int) {
	c.lock.Lock()
	defer c.lock.Unlock()
	st := c.store.Stat()
	return c.store.Len(), st.Hits, st.Misses
}

// cacheKey makes a key from the mode, the first 100 code units of the text and its length in code units.
// Texts sharing both the prefix and the length share the key. A surrogate pair cut by the prefix
// leaves U+FFFD in the key.
func cacheKey(mode, text string) string {
	units := utf16.Encode([]rune(text))
	prefix := text
	if len(units) > cacheKeyPrefixLen {
		prefix = string(utf16.Decode(units[:cacheKeyPrefixLen]))
	}
	return mode + "_" + prefix + "_" + strconv.Itoa(len(units))
}
