// Package storage is the durable local cache behind the store client's local
// mode. It keeps the last value fetched for every key and records writes made
// while the remote store was unreachable so they can be pushed later.
package storage

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/Tiliavir/kv-time-tracker/internal/kv"
)

//go:embed schema.sql
var schema string

// Cache is a sqlite-backed implementation of kv.Cache.
type Cache struct {
	db  *sql.DB
	now func() time.Time
}

var _ kv.Cache = (*Cache)(nil)

// Open opens (creating if needed) the cache database at path.
func Open(path string) (*Cache, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("storage error creating directories: %w", err)
	}
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open cache database: %w", err)
	}
	// A single connection keeps writes serialized within the process.
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("init cache schema: %w", err)
	}
	return &Cache{db: db, now: time.Now}, nil
}

// Close closes the database connection.
func (c *Cache) Close() error {
	return c.db.Close()
}

// Load returns the cached row for key. found is false when the key was never cached.
func (c *Cache) Load(ctx context.Context, key string) (kv.CacheEntry, bool, error) {
	entry := kv.CacheEntry{Key: key}
	var deleted, synced int
	err := c.db.QueryRowContext(ctx,
		"SELECT value, deleted, synced FROM kv_cache WHERE key = ?",
		key,
	).Scan(&entry.Value, &deleted, &synced)
	if errors.Is(err, sql.ErrNoRows) {
		return kv.CacheEntry{}, false, nil
	}
	if err != nil {
		return kv.CacheEntry{}, false, fmt.Errorf("load cached %s: %w", key, err)
	}
	entry.Deleted = deleted != 0
	entry.Synced = synced != 0
	return entry, true, nil
}

// Store records value for key. synced reports whether the remote store already
// holds the same value.
func (c *Cache) Store(ctx context.Context, key string, value []byte, synced bool) error {
	_, err := c.db.ExecContext(ctx,
		`INSERT INTO kv_cache (key, value, deleted, synced, updated_at) VALUES (?, ?, 0, ?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value, deleted = 0,
		   synced = excluded.synced, updated_at = excluded.updated_at`,
		key, value, boolToInt(synced), c.now().Unix(),
	)
	if err != nil {
		return fmt.Errorf("store cached %s: %w", key, err)
	}
	return nil
}

// Remove forgets key. An unsynced removal leaves a tombstone so the delete can
// be replayed against the remote store.
func (c *Cache) Remove(ctx context.Context, key string, synced bool) error {
	var err error
	if synced {
		_, err = c.db.ExecContext(ctx, "DELETE FROM kv_cache WHERE key = ?", key)
	} else {
		_, err = c.db.ExecContext(ctx,
			`INSERT INTO kv_cache (key, value, deleted, synced, updated_at) VALUES (?, NULL, 1, 0, ?)
			 ON CONFLICT(key) DO UPDATE SET value = NULL, deleted = 1, synced = 0,
			   updated_at = excluded.updated_at`,
			key, c.now().Unix(),
		)
	}
	if err != nil {
		return fmt.Errorf("remove cached %s: %w", key, err)
	}
	return nil
}

// Keys lists every cached key that is not a tombstone, sorted.
func (c *Cache) Keys(ctx context.Context) ([]string, error) {
	rows, err := c.db.QueryContext(ctx, "SELECT key FROM kv_cache WHERE deleted = 0 ORDER BY key")
	if err != nil {
		return nil, fmt.Errorf("list cached keys: %w", err)
	}
	defer rows.Close()

	keys := []string{}
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return nil, fmt.Errorf("scan cached key: %w", err)
		}
		keys = append(keys, key)
	}
	return keys, rows.Err()
}

// Pending returns every write not yet pushed to the remote store, oldest first.
func (c *Cache) Pending(ctx context.Context) ([]kv.CacheEntry, error) {
	rows, err := c.db.QueryContext(ctx,
		"SELECT key, value, deleted FROM kv_cache WHERE synced = 0 ORDER BY updated_at, key",
	)
	if err != nil {
		return nil, fmt.Errorf("list pending writes: %w", err)
	}
	defer rows.Close()

	var pending []kv.CacheEntry
	for rows.Next() {
		var e kv.CacheEntry
		var deleted int
		if err := rows.Scan(&e.Key, &e.Value, &deleted); err != nil {
			return nil, fmt.Errorf("scan pending write: %w", err)
		}
		e.Deleted = deleted != 0
		pending = append(pending, e)
	}
	return pending, rows.Err()
}

// MarkSynced flags key as matching the remote store. Tombstones are dropped.
func (c *Cache) MarkSynced(ctx context.Context, key string) error {
	if _, err := c.db.ExecContext(ctx, "DELETE FROM kv_cache WHERE key = ? AND deleted = 1", key); err != nil {
		return fmt.Errorf("clear tombstone %s: %w", key, err)
	}
	if _, err := c.db.ExecContext(ctx, "UPDATE kv_cache SET synced = 1 WHERE key = ?", key); err != nil {
		return fmt.Errorf("mark synced %s: %w", key, err)
	}
	return nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
