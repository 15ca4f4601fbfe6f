// Package postgres implements metacache.Cache against a shared Postgres
// table, for deployments that already run Postgres for other state and
// would rather not stand up Redis just for this cache. Grounded on the
// teacher's pgx-based metadata backend (mount/backend/postgres), adapted
// from a full metadata store to a TTL cache of the same BlobItemInfo
// shape the other Cache implementations use.
package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/andybochmann/blob-mounter/blobstore"
)

// Store is a metacache.Cache backed by two Postgres tables (one for
// single-item entries, one for listings), both with an expires_at column
// an expired row never satisfies a lookup for.
type Store struct {
	pool *pgxpool.Pool
	ttl  time.Duration
}

// New connects to dsn and returns a Store, creating its tables if they do
// not already exist. ttl <= 0 disables caching: every Get reports a miss.
func New(ctx context.Context, dsn string, ttl time.Duration) (*Store, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("metacache/postgres: connecting: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("metacache/postgres: pinging: %w", err)
	}

	s := &Store{pool: pool, ttl: ttl}
	if err := s.migrate(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) migrate(ctx context.Context) error {
	conn, err := s.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("metacache/postgres: acquiring connection: %w", err)
	}
	defer conn.Release()

	_, err = conn.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS blobmount_cache_items (
			key TEXT PRIMARY KEY,
			info JSONB NOT NULL,
			expires_at TIMESTAMPTZ NOT NULL
		);
		CREATE TABLE IF NOT EXISTS blobmount_cache_listings (
			prefix TEXT PRIMARY KEY,
			items JSONB NOT NULL,
			expires_at TIMESTAMPTZ NOT NULL
		);
	`)
	if err != nil {
		return fmt.Errorf("metacache/postgres: migrating schema: %w", err)
	}
	return nil
}

func (s *Store) Close() {
	s.pool.Close()
}

func (s *Store) GetItem(key string) (blobstore.BlobItemInfo, bool) {
	if s.ttl <= 0 {
		return blobstore.BlobItemInfo{}, false
	}

	ctx := context.Background()
	var raw []byte
	err := s.pool.QueryRow(ctx, `
		SELECT info FROM blobmount_cache_items WHERE key = $1 AND expires_at > now()
	`, key).Scan(&raw)
	if err != nil {
		return blobstore.BlobItemInfo{}, false
	}

	var info blobstore.BlobItemInfo
	if err := json.Unmarshal(raw, &info); err != nil {
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
	s.pool.Exec(ctx, `
		INSERT INTO blobmount_cache_items (key, info, expires_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (key) DO UPDATE SET info = $2, expires_at = $3
	`, key, raw, time.Now().Add(s.ttl))
}

func (s *Store) InvalidateItem(key string) {
	ctx := context.Background()
	s.pool.Exec(ctx, `DELETE FROM blobmount_cache_items WHERE key = $1`, key)
}

func (s *Store) GetListing(prefix string) ([]blobstore.BlobItemInfo, bool) {
	if s.ttl <= 0 {
		return nil, false
	}

	ctx := context.Background()
	var raw []byte
	err := s.pool.QueryRow(ctx, `
		SELECT items FROM blobmount_cache_listings WHERE prefix = $1 AND expires_at > now()
	`, prefix).Scan(&raw)
	if err != nil {
		return nil, false
	}

	var items []blobstore.BlobItemInfo
	if err := json.Unmarshal(raw, &items); err != nil {
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
	s.pool.Exec(ctx, `
		INSERT INTO blobmount_cache_listings (prefix, items, expires_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (prefix) DO UPDATE SET items = $2, expires_at = $3
	`, prefix, raw, time.Now().Add(s.ttl))
}

// InvalidatePrefix deletes every item whose key starts with prefix, and
// every listing whose prefix is a prefix of, or prefixed by, prefix. The
// listing side can't be expressed as a single LIKE pattern both
// directions at once, so it's done as two statements in a transaction.
func (s *Store) InvalidatePrefix(prefix string) {
	ctx := context.Background()

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return
	}
	defer tx.Rollback(ctx)

	tx.Exec(ctx, `DELETE FROM blobmount_cache_items WHERE key LIKE $1`, likeEscape(prefix)+"%")

	// descendants of prefix
	tx.Exec(ctx, `DELETE FROM blobmount_cache_listings WHERE prefix LIKE $1`, likeEscape(prefix)+"%")
	// ancestors of prefix: rows whose prefix is itself a prefix of the given key
	rows, err := tx.Query(ctx, `SELECT prefix FROM blobmount_cache_listings`)
	if err == nil {
		var ancestors []string
		for rows.Next() {
			var p string
			if err := rows.Scan(&p); err == nil && strings.HasPrefix(prefix, p) {
				ancestors = append(ancestors, p)
			}
		}
		rows.Close()
		for _, p := range ancestors {
			tx.Exec(ctx, `DELETE FROM blobmount_cache_listings WHERE prefix = $1`, p)
		}
	}

	tx.Commit(ctx)
}

func likeEscape(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `%`, `\%`)
	s = strings.ReplaceAll(s, `_`, `\_`)
	return s
}

func (s *Store) Clear() {
	ctx := context.Background()
	s.pool.Exec(ctx, `TRUNCATE blobmount_cache_items, blobmount_cache_listings`)
}
