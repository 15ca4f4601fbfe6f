// Package redis implements metacache.Cache against a shared Redis
// instance, for mounts where multiple adapter processes need to observe
// each other's cache invalidations instead of each holding an isolated
// in-process cache.
package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/andybochmann/blob-mounter/blobstore"
)

// Store is a metacache.Cache backed by Redis. TTL is enforced natively by
// Redis key expiry rather than tracked client-side, so invalidation (Del)
// is immediately visible to every process sharing the instance.
type Store struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// New dials addr and returns a Store. keyPrefix namespaces this mount's
// keys within a shared Redis instance (e.g. multiple mounts against the
// same Redis). ttl <= 0 disables caching: every Get reports a miss.
func New(addr, password string, db int, keyPrefix string, ttl time.Duration) (*Store, error) {
	if keyPrefix == "" {
		keyPrefix = "blobmount:"
	}

	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := client.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("metacache/redis: connecting: %w", err)
	}

	return &Store{client: client, prefix: keyPrefix, ttl: ttl}, nil
}

func (s *Store) itemKey(key string) string    { return s.prefix + "item:" + key }
func (s *Store) listingKey(key string) string { return s.prefix + "listing:" + key }

func (s *Store) GetItem(key string) (blobstore.BlobItemInfo, bool) {
	if s.ttl <= 0 {
		return blobstore.BlobItemInfo{}, false
	}

	ctx := context.Background()
	raw, err := s.client.Get(ctx, s.itemKey(key)).Result()
	if err != nil {
		return blobstore.BlobItemInfo{}, false
	}

	var info blobstore.BlobItemInfo
	if err := json.Unmarshal([]byte(raw), &info); err != nil {
		return blobstore.BlobItemInfo{}, false
	}
	return info, true
}

func (s *Store) SetItem(key string, info blobstore.BlobItemInfo) {
	if s.ttl <= 0 {
		return
	}

	raw, err := json.Marshal(info)
	if err != nil {
		return
	}

	ctx := context.Background()
	s.client.Set(ctx, s.itemKey(key), raw, s.ttl)
}

func (s *Store) InvalidateItem(key string) {
	ctx := context.Background()
	s.client.Del(ctx, s.itemKey(key))
}

func (s *Store) GetListing(prefix string) ([]blobstore.BlobItemInfo, bool) {
	if s.ttl <= 0 {
		return nil, false
	}

	ctx := context.Background()
	raw, err := s.client.Get(ctx, s.listingKey(prefix)).Result()
	if err != nil {
		return nil, false
	}

	var items []blobstore.BlobItemInfo
	if err := json.Unmarshal([]byte(raw), &items); err != nil {
		return nil, false
	}
	return items, true
}

func (s *Store) SetListing(prefix string, items []blobstore.BlobItemInfo) {
	if s.ttl <= 0 {
		return
	}

	raw, err := json.Marshal(items)
	if err != nil {
		return
	}

	ctx := context.Background()
	s.client.Set(ctx, s.listingKey(prefix), raw, s.ttl)
}

// InvalidatePrefix scans this mount's namespace and deletes every stale
// item or listing key: an item is stale when its decoded blob key starts
// with prefix, a listing is stale when its decoded prefix is a prefix of,
// or prefixed by, prefix. A Redis SCAN cursor walk rather than a single
// KEYS call, so invalidation on a large cache doesn't block other clients.
func (s *Store) InvalidatePrefix(prefix string) {
	ctx := context.Background()

	var toDelete []string
	iter := s.client.Scan(ctx, 0, s.prefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		full := iter.Val()
		key, isListing, ok := s.stripNamespace(full)
		if !ok {
			continue
		}
		stale := strings.HasPrefix(key, prefix)
		if isListing {
			stale = isPrefixRelated(key, prefix)
		}
		if stale {
			toDelete = append(toDelete, full)
		}
	}

	if len(toDelete) > 0 {
		s.client.Del(ctx, toDelete...)
	}
}

// stripNamespace strips this store's key prefix and item:/listing: marker,
// reporting the decoded blob key and whether it came from the listing
// namespace.
func (s *Store) stripNamespace(full string) (key string, isListing bool, ok bool) {
	if itemNS := s.prefix + "item:"; len(full) > len(itemNS) && full[:len(itemNS)] == itemNS {
		return full[len(itemNS):], false, true
	}
	if listingNS := s.prefix + "listing:"; len(full) >= len(listingNS) && full[:len(listingNS)] == listingNS {
		return full[len(listingNS):], true, true
	}
	return "", false, false
}

func isPrefixRelated(a, b string) bool {
	if len(a) <= len(b) {
		return b[:len(a)] == a
	}
	return a[:len(b)] == b
}

func (s *Store) Clear() {
	ctx := context.Background()

	var toDelete []string
	iter := s.client.Scan(ctx, 0, s.prefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		toDelete = append(toDelete, iter.Val())
	}
	if len(toDelete) > 0 {
		s.client.Del(ctx, toDelete...)
	}
}
