package source

import (
	"container/list"
	"os"
	"sync"
)

// fileStamp identifies one version of a stored file. The zero stamp means the
// store cannot tell versions apart, and entries then live until invalidated.
type fileStamp struct {
	size    int64
	modTime int64
}

func stampOf(info os.FileInfo) fileStamp {
	return fileStamp{size: info.Size(), modTime: info.ModTime().UnixNano()}
}

// countCache remembers page counts per storage key. An entry only answers for
// the file version it was counted from; the least recently used entry goes
// first when the cache is full.
type countCache struct {
	capacity int
	entries  map[string]*list.Element
	order    *list.List
	mu       sync.Mutex
}

type countEntry struct {
	key   string
	pages int
	stamp fileStamp
}

func newCountCache(capacity int) *countCache {
	if capacity < 1 {
		capacity = 1
	}
	return &countCache{
		capacity: capacity,
		entries:  make(map[string]*list.Element),
		order:    list.New(),
	}
}

// Get returns the count for key when it was recorded for the same stamp. A
// stale entry is dropped.
func (c *countCache) Get(key string, stamp fileStamp) (int, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	elem, ok := c.entries[key]
	if !ok {
		return 0, false
	}
	e := elem.Value.(*countEntry)
	if e.stamp != stamp {
		c.removeLocked(elem)
		return 0, false
	}
	c.order.MoveToFront(elem)
	return e.pages, true
}

// Set records a page count. Unreadable files (pages <= 0) are never cached so
// a later repair or rewrite is picked up.
func (c *countCache) Set(key string, pages int, stamp fileStamp) {
	if pages <= 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, ok := c.entries[key]; ok {
		e := elem.Value.(*countEntry)
		e.pages, e.stamp = pages, stamp
		c.order.MoveToFront(elem)
		return
	}
	c.entries[key] = c.order.PushFront(&countEntry{key: key, pages: pages, stamp: stamp})
	for c.order.Len() > c.capacity {
		c.removeLocked(c.order.Back())
	}
}

func (c *countCache) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if elem, ok := c.entries[key]; ok {
		c.removeLocked(elem)
	}
}

func (c *countCache) removeLocked(elem *list.Element) {
	c.order.Remove(elem)
	delete(c.entries, elem.Value.(*countEntry).key)
}

func (c *countCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}
