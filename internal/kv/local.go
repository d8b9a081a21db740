package kv

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"
)

// degrade switches the client into local mode. Only the first cause is kept.
func (c *Client) degrade(cause error) {
	if c.degraded != nil {
		return
	}
	c.degraded = cause
	c.logger.Warn("store authentication failed, using local cache; run 'timetracker sync' once credentials work",
		"error", cause,
	)
}

// warnPending reminds the user of local-mode writes the store has not seen.
func (c *Client) warnPending(ctx context.Context) {
	pending, err := c.cache.Pending(ctx)
	if err != nil {
		c.logger.Debug("could not inspect pending writes", "error", err)
		return
	}
	if len(pending) > 0 {
		c.logger.Warn("local changes not yet pushed to the store; run 'timetracker sync'",
			"pending", len(pending),
		)
	}
}

// refreshCache records a value read from the store. Keys with pending local
// writes are left alone so Sync can still push them. A nil value forgets key.
func (c *Client) refreshCache(ctx context.Context, key string, value json.RawMessage) {
	entry, found, err := c.cache.Load(ctx, key)
	if err != nil {
		c.logger.Debug("could not read local cache", "key", key, "error", err)
		return
	}
	if found && !entry.Synced {
		return
	}
	if value == nil {
		err = c.cache.Remove(ctx, key, true)
	} else {
		err = c.cache.Store(ctx, key, value, true)
	}
	if err != nil {
		c.logger.Warn("could not update local cache", "key", key, "error", err)
	}
}

// hasPending reports whether key holds a local write the store has not seen.
// Such keys are served from and written to the cache until Sync pushes them,
// so online calls never overwrite or hide them.
func (c *Client) hasPending(ctx context.Context, key string) (bool, error) {
	entry, found, err := c.cache.Load(ctx, key)
	if err != nil {
		return false, fmt.Errorf("checking local cache for %s: %w", key, err)
	}
	return found && !entry.Synced, nil
}

// mergePending overlays pending local writes on a key list from the store.
func (c *Client) mergePending(ctx context.Context, keys []string) ([]string, error) {
	pending, err := c.cache.Pending(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing pending writes: %w", err)
	}
	for _, entry := range pending {
		i := slices.Index(keys, entry.Key)
		switch {
		case entry.Deleted && i >= 0:
			keys = slices.Delete(keys, i, i+1)
		case !entry.Deleted && i < 0:
			keys = append(keys, entry.Key)
		}
	}
	slices.Sort(keys)
	return keys, nil
}

func (c *Client) localGet(ctx context.Context, key string) (json.RawMessage, error) {
	entry, found, err := c.cache.Load(ctx, key)
	if err != nil {
		return nil, err
	}
	if !found || entry.Deleted {
		return nil, fmt.Errorf("%s: %w", key, ErrKeyNotFound)
	}
	return json.RawMessage(entry.Value), nil
}

func (c *Client) localPut(ctx context.Context, key string, value json.RawMessage) error {
	c.logger.Warn("write kept locally, run 'timetracker sync' to push it", "key", key)
	return c.cache.Store(ctx, key, value, false)
}

func (c *Client) localDelete(ctx context.Context, key string) error {
	entry, found, err := c.cache.Load(ctx, key)
	if err != nil {
		return err
	}
	if !found || entry.Deleted {
		return fmt.Errorf("%s: %w", key, ErrKeyNotFound)
	}
	c.logger.Warn("delete kept locally, run 'timetracker sync' to push it", "key", key)
	return c.cache.Remove(ctx, key, false)
}
