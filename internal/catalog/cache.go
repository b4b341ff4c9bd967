package catalog

import (
	"sync"
	"time"

	orderedmap "github.com/wk8/go-ordered-map/v2"

	"github.com/soyeahso/agentclick/internal/domain"
)

type cacheEntry struct {
	agent   *domain.Agent
	path    string
	modTime time.Time
	size    int64
}

func (e cacheEntry) fresh(modTime time.Time, size int64) bool {
	return e.modTime.Equal(modTime) && e.size == size
}

// metadataCache is a bounded id -> parsed metadata cache. Eviction drops
// the oldest inserted entry; reads and refreshes do not change order.
type metadataCache struct {
	mu    sync.Mutex
	max   int
	items *orderedmap.OrderedMap[string, cacheEntry]
}

func newMetadataCache(max int) *metadataCache {
	if max <= 0 {
		max = 1000
	}
	return &metadataCache{max: max, items: orderedmap.New[string, cacheEntry]()}
}

func (c *metadataCache) get(id string) (cacheEntry, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.items.Get(id)
}

func (c *metadataCache) put(id string, e cacheEntry) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items.Set(id, e)
	for c.items.Len() > c.max {
		oldest := c.items.Oldest()
		c.items.Delete(oldest.Key)
	}
}

func (c *metadataCache) remove(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items.Delete(id)
}

func (c *metadataCache) len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.items.Len()
}

// keys returns cached ids oldest first.
func (c *metadataCache) keys() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, 0, c.items.Len())
	for p := c.items.Oldest(); p != nil; p = p.Next() {
		out = append(out, p.Key)
	}
	return out
}
