package embargo

import (
	"sync"
)

// ShipCache caches whether a build has shipped, keyed by build id
//
// One cache lives for one classification run; it is safe for concurrent use.
type ShipCache struct {
	mu      sync.RWMutex
	shipped map[int]bool
}

// NewShipCache creates an empty cache
func NewShipCache() *ShipCache {
	return &ShipCache{shipped: make(map[int]bool)}
}

// Get returns the cached status and whether it was present
func (c *ShipCache) Get(buildID int) (shipped, ok bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	shipped, ok = c.shipped[buildID]
	return shipped, ok
}

// Set records the status of a build
func (c *ShipCache) Set(buildID int, shipped bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.shipped[buildID] = shipped
}

// Len returns the number of cached builds
func (c *ShipCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.shipped)
}

// Missing returns the ids not yet cached, deduplicated, in first-seen order
func (c *ShipCache) Missing(buildIDs []int) []int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	seen := make(map[int]struct{}, len(buildIDs))
	var missing []int
	for _, id := range buildIDs {
		if _, ok := c.shipped[id]; ok {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		missing = append(missing, id)
	}
	return missing
}
