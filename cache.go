package blade

import (
	"sync"
	"time"

	"github.com/alphadose/haxmap"
)

// ContentCache stores rendered output for named blocks with TTL expiry
// and tag-based bulk invalidation. It backs the @cache directive and is
// usable on its own. A zero or negative TTL means "cache forever".
//
// Reads are lock-free; the tag index is guarded by a mutex.
type ContentCache struct {
	entries *haxmap.Map[string, *contentEntry]
	mu      sync.Mutex
	tags    map[string]map[string]struct{}
	now     func() time.Time
}

type contentEntry struct {
	value     string
	expiresAt time.Time // zero: never expires
	tags      []string
}

// NewContentCache creates an empty content cache.
func NewContentCache() *ContentCache {
	return &ContentCache{
		entries: haxmap.New[string, *contentEntry](),
		tags:    map[string]map[string]struct{}{},
		now:     time.Now,
	}
}

// Get returns the cached value for key if present and unexpired.
func (c *ContentCache) Get(key string) (string, bool) {
	entry, ok := c.entries.Get(key)
	if !ok {
		return "", false
	}
	if !entry.expiresAt.IsZero() && c.now().After(entry.expiresAt) {
		c.Forget(key)
		return "", false
	}
	return entry.value, true
}

// Put stores value under key with the given TTL and optional tags.
func (c *ContentCache) Put(key, value string, ttl time.Duration, tags ...string) {
	entry := &contentEntry{value: value, tags: tags}
	if ttl > 0 {
		entry.expiresAt = c.now().Add(ttl)
	}
	c.entries.Set(key, entry)
	if len(tags) > 0 {
		c.mu.Lock()
		for _, t := range tags {
			if c.tags[t] == nil {
				c.tags[t] = map[string]struct{}{}
			}
			c.tags[t][key] = struct{}{}
		}
		c.mu.Unlock()
	}
}

// Remember returns the cached value for key, invoking producer on a
// miss and storing its result. Producer errors propagate unchanged and
// nothing is cached for them.
func (c *ContentCache) Remember(key string, ttl time.Duration, producer func() (string, error), tags ...string) (string, error) {
	if v, ok := c.Get(key); ok {
		return v, nil
	}
	v, err := producer()
	if err != nil {
		return "", err
	}
	c.Put(key, v, ttl, tags...)
	return v, nil
}

// RememberForever is Remember with no expiry.
func (c *ContentCache) RememberForever(key string, producer func() (string, error), tags ...string) (string, error) {
	return c.Remember(key, 0, producer, tags...)
}

// Forget drops a single key.
func (c *ContentCache) Forget(key string) {
	entry, ok := c.entries.Get(key)
	c.entries.Del(key)
	if !ok || len(entry.tags) == 0 {
		return
	}
	c.mu.Lock()
	for _, t := range entry.tags {
		delete(c.tags[t], key)
	}
	c.mu.Unlock()
}

// FlushTag drops every key stored under tag without needing to know the
// individual keys.
func (c *ContentCache) FlushTag(tag string) {
	c.mu.Lock()
	keys := make([]string, 0, len(c.tags[tag]))
	for k := range c.tags[tag] {
		keys = append(keys, k)
	}
	delete(c.tags, tag)
	c.mu.Unlock()
	for _, k := range keys {
		c.entries.Del(k)
	}
}

// Flush drops everything.
func (c *ContentCache) Flush() {
	c.entries.ForEach(func(k string, _ *contentEntry) bool {
		c.entries.Del(k)
		return true
	})
	c.mu.Lock()
	c.tags = map[string]map[string]struct{}{}
	c.mu.Unlock()
}

// Len reports the number of live entries, including not-yet-collected
// expired ones.
func (c *ContentCache) Len() int { return int(c.entries.Len()) }
