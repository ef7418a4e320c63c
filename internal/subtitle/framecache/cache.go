// Package framecache holds decoded subtitle bitmaps keyed by their raw payload.
package framecache

import (
	"image"
	"sync"
)

// Cache is unbounded; entries live until Clear.
type Cache struct {
	mu     sync.RWMutex
	frames map[string]image.Image
}

func New() *Cache {
	return &Cache{frames: make(map[string]image.Image)}
}

func (c *Cache) Get(payload string) (image.Image, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	frame, ok := c.frames[payload]
	return frame, ok
}

func (c *Cache) Put(payload string, frame image.Image) {
	if frame == nil {
		return
	}
	c.mu.Lock()
	c.frames[payload] = frame
	c.mu.Unlock()
}

func (c *Cache) Has(payload string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.frames[payload]
	return ok
}

func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.frames)
}

func (c *Cache) Clear() {
	c.mu.Lock()
	c.frames = make(map[string]image.Image)
	c.mu.Unlock()
}
