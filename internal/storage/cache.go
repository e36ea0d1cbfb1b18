package storage

import (
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/altafino/attachment-store/internal/attachment"
)

// Cache holds resolved attachment records by id. The file handler only uses
// it while holding its write lock, so implementations need not be safe for
// concurrent use on their own.
type Cache interface {
	// Get returns the cached record and true, or nil and false on a miss
	Get(id string) (attachment.Attachment, bool)

	Add(id string, a attachment.Attachment)

	Remove(id string)

	Len() int
}

const (
	CacheUnbounded = "unbounded"
	CacheLRU       = "lru"
)

// NewCache builds a cache by kind. An empty kind selects the unbounded cache.
func NewCache(kind string, size int) (Cache, error) {
	switch kind {
	case "", CacheUnbounded:
		return NewUnboundedCache(), nil
	case CacheLRU:
		return NewLRUCache(size)
	default:
		return nil, fmt.Errorf("unsupported cache type: %s", kind)
	}
}

// unboundedCache never evicts.
type unboundedCache struct {
	items map[string]attachment.Attachment
}

// NewUnboundedCache returns a cache that keeps every record it is given.
func NewUnboundedCache() Cache {
	return &unboundedCache{items: make(map[string]attachment.Attachment)}
}

func (c *unboundedCache) Get(id string) (attachment.Attachment, bool) {
	a, ok := c.items[id]
	return a, ok
}

func (c *unboundedCache) Add(id string, a attachment.Attachment) { c.items[id] = a }

func (c *unboundedCache) Remove(id string) { delete(c.items, id) }

func (c *unboundedCache) Len() int { return len(c.items) }

// lruCache evicts the least recently resolved record once size is reached.
type lruCache struct {
	items *lru.Cache[string, attachment.Attachment]
}

// NewLRUCache returns a cache bounded to size records.
func NewLRUCache(size int) (Cache, error) {
	items, err := lru.New[string, attachment.Attachment](size)
	if err != nil {
		return nil, fmt.Errorf("create lru cache of size %d: %w", size, err)
	}
	return &lruCache{items: items}, nil
}

func (c *lruCache) Get(id string) (attachment.Attachment, bool) { return c.items.Get(id) }

func (c *lruCache) Add(id string, a attachment.Attachment) { c.items.Add(id, a) }

func (c *lruCache) Remove(id string) { c.items.Remove(id) }

func (c *lruCache) Len() int { return c.items.Len() }
