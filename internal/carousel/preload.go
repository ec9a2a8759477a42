package carousel

import "sync"

// PreloadCache remembers which artwork paths were already requested.
type PreloadCache struct {
	mu    sync.Mutex
	paths map[string]struct{}
}

func NewPreloadCache() *PreloadCache {
	return &PreloadCache{paths: make(map[string]struct{})}
}

// Mark records path and reports whether it was new. Empty paths are never new.
func (c *PreloadCache) Mark(path string) bool {
	if path == "" {
		return false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.paths[path]; ok {
		return false
	}
	c.paths[path] = struct{}{}
	return true
}
