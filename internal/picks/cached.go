package picks

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/abhishekslab/growwbot/internal/store"
)

// CachedProvider serves snapshots from the store and falls back to inner,
// persisting what inner returns.
type CachedProvider struct {
	inner    Provider
	store    store.SnapshotStore
	useCache bool
	logger   zerolog.Logger
}

// NewCachedProvider wraps inner. With useCache false every call recomputes
// and overwrites the stored snapshot.
func NewCachedProvider(inner Provider, st store.SnapshotStore, useCache bool, logger zerolog.Logger) *CachedProvider {
	return &CachedProvider{
		inner:    inner,
		store:    st,
		useCache: useCache,
		logger:   logger.With().Str("component", "picks_cache").Logger(),
	}
}

// Candidates implements Provider.
func (c *CachedProvider) Candidates(ctx context.Context, date string) (*Snapshot, error) {
	if c.useCache {
		data, ok, err := c.store.GetSnapshot(ctx, date)
		if err != nil {
			return nil, err
		}
		if ok {
			var snap Snapshot
			if err := json.Unmarshal(data, &snap); err == nil {
				c.logger.Debug().Str("date", date).Msg("using cached daily picks snapshot")
				return &snap, nil
			}
			c.logger.Warn().Str("date", date).Msg("unreadable snapshot, recomputing")
		}
	}

	snap, err := c.inner.Candidates(ctx, date)
	if err != nil {
		return nil, err
	}
	if snap == nil {
		return nil, nil
	}

	data, err := json.Marshal(snap)
	if err != nil {
		return nil, fmt.Errorf("failed to encode snapshot: %w", err)
	}
	if err := c.store.SaveSnapshot(ctx, date, data); err != nil {
		return nil, err
	}
	return snap, nil
}

// Clear deletes every stored snapshot.
func (c *CachedProvider) Clear(ctx context.Context) (int64, error) {
	return c.store.ClearSnapshots(ctx)
}
