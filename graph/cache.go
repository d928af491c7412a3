package graph

import (
	"strconv"
	"sync"
	"time"

	"github.com/bytedance/sonic"
	"github.com/cespare/xxhash/v2"
	"golang.org/x/sync/singleflight"
)

type cacheKey struct {
	node        string
	fingerprint uint64
}

func (k cacheKey) String() string {
	return k.node + "#" + strconv.FormatUint(k.fingerprint, 16)
}

// cacheEntry owns a serialized NodeOutput; every hit decodes a fresh value.
type cacheEntry struct {
	data    []byte
	created time.Time
}

// nodeCache maps (node, state fingerprint) to node outputs. Concurrent misses
// for the same key run the node once.
type nodeCache struct {
	mu      sync.RWMutex
	entries map[cacheKey]cacheEntry
	group   singleflight.Group
	now     func() time.Time
}

func newNodeCache() *nodeCache {
	return &nodeCache{
		entries: make(map[cacheKey]cacheEntry),
		now:     time.Now,
	}
}

func (c *nodeCache) get(key cacheKey, ttl time.Duration) ([]byte, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.entries[key]
	if !ok || c.now().Sub(e.created) >= ttl {
		return nil, false
	}
	return e.data, true
}

func (c *nodeCache) put(key cacheKey, data []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = cacheEntry{data: data, created: c.now()}
}

func (c *nodeCache) clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	clear(c.entries)
}

func (c *nodeCache) len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// fingerprint hashes the canonical encoding of v. sonic.ConfigStd sorts map
// keys, so equal states hash equally.
func fingerprint(v any) (uint64, error) {
	data, err := sonic.ConfigStd.Marshal(v)
	if err != nil {
		return 0, err
	}
	return xxhash.Sum64(data), nil
}
