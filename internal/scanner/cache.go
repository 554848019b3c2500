package scanner

import (
	"container/list"
	"sync"
	"time"
)

// contentCache is a small fixed-capacity LRU keyed by absolute path. No
// third-party LRU implementation appears anywhere in the retrieved example
// pack, so this is hand-rolled on container/list per DESIGN.md; it carries
// the file's mtime alongside its content so a stale entry (the file changed
// on disk since it was cached) is detected and treated as a miss.
type contentCache struct {
	mu       sync.Mutex
	capacity int
	ll       *list.List
	items    map[string]*list.Element
}

type cacheEntry struct {
	path    string
	content string
	mtime   time.Time
}

func newContentCache(capacity int) *contentCache {
	return &contentCache{
		capacity: capacity,
		ll:       list.New(),
		items:    make(map[string]*list.Element),
	}
}

func (c *contentCache) get(path string, mtime time.Time) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.items[path]
	if !ok {
		return "", false
	}
	entry := el.Value.(*cacheEntry)
	if !entry.mtime.Equal(mtime) {
		c.ll.Remove(el)
		delete(c.items, path)
		return "", false
	}

	c.ll.MoveToFront(el)
	return entry.content, true
}

func (c *contentCache) put(path, content string, mtime time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if el, ok := c.items[path]; ok {
		el.Value.(*cacheEntry).content = content
		el.Value.(*cacheEntry).mtime = mtime
		c.ll.MoveToFront(el)
		return
	}

	el := c.ll.PushFront(&cacheEntry{path: path, content: content, mtime: mtime})
	c.items[path] = el

	for c.ll.Len() > c.capacity {
		oldest := c.ll.Back()
		if oldest == nil {
			break
		}
		c.ll.Remove(oldest)
		delete(c.items, oldest.Value.(*cacheEntry).path)
	}
}
