package station

import (
	"context"
	"sync"
)

// DwellCache holds dwell seconds per station. Reads vastly outnumber writes:
// the solver consults it for every segment, while writes only happen through
// the rank upsert endpoint.
type DwellCache struct {
	mu    sync.RWMutex
	dwell map[string]DwellRank
}

// NewDwellCache seeds the cache with persisted rank rows.
func NewDwellCache(ranks []DwellRank) *DwellCache {
	c := &DwellCache{dwell: make(map[string]DwellRank, len(ranks))}
	for _, r := range ranks {
		c.dwell[r.StationId] = r
	}
	return c
}

// DwellSeconds returns the dwell seconds for a station, defaulting to the
// rank-B dwell for unranked stations.
func (c *DwellCache) DwellSeconds(stationId string) int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if r, ok := c.dwell[stationId]; ok {
		return r.DwellSeconds
	}
	return DefaultDwellSeconds
}

// Rank returns the stored rank row for a station.
func (c *DwellCache) Rank(stationId string) (DwellRank, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	r, ok := c.dwell[stationId]
	return r, ok
}

func (c *DwellCache) put(rank DwellRank) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.dwell[rank.StationId] = rank
}

// RankWriter persists a dwell rank and then refreshes the cache, so readers
// observe the new value once the store has committed.
type RankWriter struct {
	store *Store
	cache *DwellCache
}

// NewRankWriter ties a Store to the cache it keeps current.
func NewRankWriter(store *Store, cache *DwellCache) *RankWriter {
	return &RankWriter{store: store, cache: cache}
}

// Upsert validates, persists and caches one dwell rank.
func (w *RankWriter) Upsert(ctx context.Context, rank DwellRank) error {
	if err := ValidateRank(rank.Rank, rank.DwellSeconds); err != nil {
		return err
	}
	if err := w.store.UpsertRank(ctx, rank); err != nil {
		return err
	}
	w.cache.put(rank)
	return nil
}
