package metacache

import (
	"github.com/andybochmann/blob-mounter/blobstore"
	"github.com/andybochmann/blob-mounter/metrics"
)

// Instrumented wraps a Cache so every GetItem/GetListing observes the
// metrics package's CacheHitsTotal/CacheMissesTotal counters, labeled by
// whether the lookup was for a single item or a listing.
type Instrumented struct {
	inner Cache
}

// NewInstrumented wraps inner so every lookup it serves is observed.
func NewInstrumented(inner Cache) Cache {
	return &Instrumented{inner: inner}
}

func observe(kind string, hit bool) {
	if hit {
		metrics.CacheHitsTotal.WithLabelValues(kind).Inc()
	} else {
		metrics.CacheMissesTotal.WithLabelValues(kind).Inc()
	}
}

func (c *Instrumented) GetItem(key string) (blobstore.BlobItemInfo, bool) {
	info, ok := c.inner.GetItem(key)
	observe("item", ok)
	return info, ok
}

func (c *Instrumented) SetItem(key string, info blobstore.BlobItemInfo) { c.inner.SetItem(key, info) }

func (c *Instrumented) InvalidateItem(key string) { c.inner.InvalidateItem(key) }

func (c *Instrumented) GetListing(prefix string) ([]blobstore.BlobItemInfo, bool) {
	items, ok := c.inner.GetListing(prefix)
	observe("listing", ok)
	return items, ok
}

func (c *Instrumented) SetListing(prefix string, items []blobstore.BlobItemInfo) {
	c.inner.SetListing(prefix, items)
}

func (c *Instrumented) InvalidatePrefix(prefix string) { c.inner.InvalidatePrefix(prefix) }

func (c *Instrumented) Clear() { c.inner.Clear() }
