package engine

import (
	"fmt"

	"github.com/suffix-labs/hns-signer/pkg/hns"
)

type cacheKind uint8

const (
	cacheEmpty cacheKind = iota
	cacheTail            // unconsumed bytes of the stream
	cacheReply           // reply held until the user confirms
)

// Cache is the fixed-capacity buffer carried between messages. It holds
// either the unconsumed tail of the stream or a reply awaiting
// confirmation, never both.
type Cache struct {
	buf  []byte
	n    int
	kind cacheKind
}

// NewCache returns a cache holding at most size bytes.
func NewCache(size int) *Cache {
	return &Cache{buf: make([]byte, size)}
}

// Len returns the number of cached bytes.
func (c *Cache) Len() int {
	return c.n
}

// Cap returns the capacity.
func (c *Cache) Cap() int {
	return len(c.buf)
}

func (c *Cache) store(kind cacheKind, b []byte) error {
	if len(b) > len(c.buf) {
		c.Reset()
		return hns.NewError(hns.ErrProtocol, hns.CodeCacheOverflow,
			fmt.Sprintf("%d bytes exceed the %d-byte cache", len(b), len(c.buf)))
	}
	c.n = copy(c.buf, b)
	c.kind = kind
	if c.n == 0 {
		c.kind = cacheEmpty
	}
	return nil
}

// StoreTail keeps the unconsumed bytes of the stream for the next message.
func (c *Cache) StoreTail(b []byte) error {
	return c.store(cacheTail, b)
}

// Join returns the cached tail followed by chunk and empties the cache.
// Without a cached tail chunk is returned as is.
func (c *Cache) Join(chunk []byte) []byte {
	if c.kind != cacheTail || c.n == 0 {
		return chunk
	}
	joined := make([]byte, 0, c.n+len(chunk))
	joined = append(joined, c.buf[:c.n]...)
	joined = append(joined, chunk...)
	c.Reset()
	return joined
}

// StoreReply holds a reply until the user confirms.
func (c *Cache) StoreReply(b []byte) error {
	return c.store(cacheReply, b)
}

// TakeReply returns the held reply and empties the cache.
func (c *Cache) TakeReply() ([]byte, bool) {
	if c.kind != cacheReply {
		return nil, false
	}
	reply := append([]byte(nil), c.buf[:c.n]...)
	c.Reset()
	return reply, true
}

// Reset empties the cache and clears its contents.
func (c *Cache) Reset() {
	for i := range c.buf[:c.n] {
		c.buf[i] = 0
	}
	c.n = 0
	c.kind = cacheEmpty
}
