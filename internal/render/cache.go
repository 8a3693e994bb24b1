package render

import (
	"bytes"
	"fmt"
	"io"
	"sync"

	"github.com/couchcryptid/noise-map-service/internal/domain"
)

// DefaultCacheEntries keeps the current snapshot and a few stragglers.
const DefaultCacheEntries = 4

// Encoder renders samples to an encoded image.
type Encoder interface {
	Encode(w io.Writer, samples []domain.Sample) error
}

// CachedHeatmap wraps an Encoder with an in-memory LRU of encoded images
// keyed by snapshot source and sequence number. Every request between two
// feed ticks shares one render.
type CachedHeatmap struct {
	inner Encoder
	cache *lruCache
}

// NewCachedHeatmap creates a cache decorator around an encoder.
func NewCachedHeatmap(inner Encoder, maxEntries int) *CachedHeatmap {
	return &CachedHeatmap{
		inner: inner,
		cache: newLRUCache(max(maxEntries, 1)),
	}
}

// EncodeSnapshot writes the encoded image of snap, rendering it on a miss.
func (c *CachedHeatmap) EncodeSnapshot(w io.Writer, snap domain.Snapshot) error {
	key := fmt.Sprintf("%s:%d", snap.Source, snap.Seq)
	data, ok := c.cache.get(key)
	if !ok {
		var buf bytes.Buffer
		if err := c.inner.Encode(&buf, snap.Samples); err != nil {
			return err
		}
		data = buf.Bytes()
		c.cache.put(key, data)
	}
	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("write image: %w", err)
	}
	return nil
}

// lruCache is a simple thread-safe LRU cache of encoded images.
type lruCache struct {
	maxEntries int
	mu         sync.Mutex
	entries    map[string]*entry
	head       *entry // most recently used
	tail       *entry // least recently used
}

type entry struct {
	key   string
	value []byte
	prev  *entry
	next  *entry
}

func newLRUCache(maxEntries int) *lruCache {
	return &lruCache{
		maxEntries: maxEntries,
		entries:    make(map[string]*entry),
	}
}

func (c *lruCache) get(key string) ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	c.moveToFront(e)
	return e.value, true
}

func (c *lruCache) put(key string, value []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if e, ok := c.entries[key]; ok {
		e.value = value
		c.moveToFront(e)
		return
	}

	e := &entry{key: key, value: value}
	c.entries[key] = e
	c.addToFront(e)

	if len(c.entries) > c.maxEntries {
		c.evictTail()
	}
}

func (c *lruCache) moveToFront(e *entry) {
	if e == c.head {
		return
	}
	c.remove(e)
	c.addToFront(e)
}

func (c *lruCache) addToFront(e *entry) {
	e.next = c.head
	e.prev = nil
	if c.head != nil {
		c.head.prev = e
	}
	c.head = e
	if c.tail == nil {
		c.tail = e
	}
}

func (c *lruCache) remove(e *entry) {
	if e.prev != nil {
		e.prev.next = e.next
	} else {
		c.head = e.next
	}
	if e.next != nil {
		e.next.prev = e.prev
	} else {
		c.tail = e.prev
	}
}

func (c *lruCache) evictTail() {
	if c.tail == nil {
		return
	}
	delete(c.entries, c.tail.key)
	c.remove(c.tail)
}
