// Package metacache provides a TTL-based cache of blob metadata and
// directory listings, so repeated Getattr/Readdir callbacks for the same
// key don't round-trip to the backing store on every call (§4.3).
package metacache

import (
	"strings"
	"sync"
	"time"

	"github.com/tidwall/btree"

	"github.com/andybochmann/blob-mounter/blobstore"
)

// Cache is the interface both the in-process btree-backed implementation
// and metacache/redis satisfy, so the adapter can be configured with
// either without caring which.
type Cache interface {
	GetItem(key string) (blobstore.BlobItemInfo, bool)
	SetItem(key string, info blobstore.BlobItemInfo)
	InvalidateItem(key string)

	GetListing(prefix string) ([]blobstore.BlobItemInfo, bool)
	SetListing(prefix string, items []blobstore.BlobItemInfo)

	// InvalidatePrefix drops every cached item whose key starts with the
	// given key, and every listing whose prefix is a prefix of, or
	// prefixed by, the given key - the adapter calls this
	// on every mutation (upload/delete/move) so a stale listing never
	// survives one of its entries changing.
	InvalidatePrefix(prefix string)

	Clear()
}

type itemEntry struct {
	info    blobstore.BlobItemInfo
	expires time.Time
}

type listingEntry struct {
	items   []blobstore.BlobItemInfo
	expires time.Time
}

// TTLCache is the default in-process Cache implementation. Items and
// listings are kept in ordered btree.Maps (not for the ordering itself,
// which InvalidatePrefix doesn't currently exploit, but because it is the
// map type already in use elsewhere for this kind of key-to-value state).
type TTLCache struct {
	mu  sync.Mutex
	ttl time.Duration

	items    *btree.Map[string, itemEntry]
	listings *btree.Map[string, listingEntry]
}

// New creates a TTLCache where every entry is considered fresh for ttl
// after it is set. ttl <= 0 disables caching: every Get reports a miss.
func New(ttl time.Duration) *TTLCache {
	return &TTLCache{
		ttl:      ttl,
		items:    btree.NewMap[string, itemEntry](0),
		listings: btree.NewMap[string, listingEntry](0),
	}
}

func (c *TTLCache) GetItem(key string) (blobstore.BlobItemInfo, bool) {
	if c.ttl <= 0 {
		return blobstore.BlobItemInfo{}, false
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.items.Get(key)
	if !ok || time.Now().After(entry.expires) {
		return blobstore.BlobItemInfo{}, false
	}
	return entry.info, true
}

func (c *TTLCache) SetItem(key string, info blobstore.BlobItemInfo) {
	if c.ttl <= 0 {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.items.Set(key, itemEntry{info: info, expires: time.Now().Add(c.ttl)})
}

func (c *TTLCache) InvalidateItem(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.items.Delete(key)
}

func (c *TTLCache) GetListing(prefix string) ([]blobstore.BlobItemInfo, bool) {
	if c.ttl <= 0 {
		return nil, false
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.listings.Get(prefix)
	if !ok || time.Now().After(entry.expires) {
		return nil, false
	}
	return entry.items, true
}

func (c *TTLCache) SetListing(prefix string, items []blobstore.BlobItemInfo) {
	if c.ttl <= 0 {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.listings.Set(prefix, listingEntry{items: items, expires: time.Now().Add(c.ttl)})
}

// isPrefixRelated reports whether a and b are the same string, or one is a
// prefix of the other.
func isPrefixRelated(a, b string) bool {
	if len(a) <= len(b) {
		return b[:len(a)] == a
	}
	return a[:len(b)] == b
}

func (c *TTLCache) InvalidatePrefix(prefix string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var staleItems []string
	c.items.Scan(func(key string, _ itemEntry) bool {
		if strings.HasPrefix(key, prefix) {
			staleItems = append(staleItems, key)
		}
		return true
	})
	for _, key := range staleItems {
		c.items.Delete(key)
	}

	var staleListings []string
	c.listings.Scan(func(key string, _ listingEntry) bool {
		if isPrefixRelated(key, prefix) {
			staleListings = append(staleListings, key)
		}
		return true
	})
	for _, key := range staleListings {
		c.listings.Delete(key)
	}
}

func (c *TTLCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.items.Clear()
	c.listings.Clear()
}
