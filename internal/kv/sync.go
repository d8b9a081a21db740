package kv

import (
	"context"
	"errors"
	"fmt"
)

// SyncResult holds counters for a sync operation.
type SyncResult struct {
	Pushed  int
	Deleted int
	Errors  int
}

// Sync pushes writes made in local mode to the store, oldest first. The local
// copy wins over whatever the store holds. Failed keys stay pending and are
// counted in Errors; the first failure is returned alongside the counters.
func (c *Client) Sync(ctx context.Context) (SyncResult, error) {
	var result SyncResult

	if err := c.Authenticate(ctx); err != nil {
		return result, err
	}
	pending, err := c.cache.Pending(ctx)
	if err != nil {
		return result, err
	}

	var firstErr error
	for _, entry := range pending {
		if entry.Deleted {
			err = c.deleteRemote(ctx, entry.Key)
			if errors.Is(err, ErrKeyNotFound) {
				err = nil
			}
		} else {
			err = c.putRemote(ctx, entry.Key, entry.Value)
		}
		if err == nil {
			err = c.cache.MarkSynced(ctx, entry.Key)
		}
		if err != nil {
			c.logger.Warn("sync failed", "key", entry.Key, "error", err)
			result.Errors++
			if firstErr == nil {
				firstErr = fmt.Errorf("syncing %s: %w", entry.Key, err)
			}
			if errors.Is(err, ErrDegradedAuth) {
				break
			}
			continue
		}
		if entry.Deleted {
			result.Deleted++
		} else {
			result.Pushed++
		}
		c.logger.Debug("synced", "key", entry.Key, "deleted", entry.Deleted)
	}
	return result, firstErr
}
