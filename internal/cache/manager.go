package cache

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/pwelter/hindcast/internal/core"
)

// TTLTable maps bar intervals to cache lifetimes. Finer intervals go stale
// sooner.
type TTLTable map[core.Interval]time.Duration

// DefaultTTL returns the standard lifetime table.
func DefaultTTL() TTLTable {
	return TTLTable{
		core.Interval1m:  5 * time.Minute,
		core.Interval5m:  15 * time.Minute,
		core.Interval15m: 30 * time.Minute,
		core.Interval1h:  time.Hour,
		core.Interval1d:  12 * time.Hour,
	}
}

// FetchFunc produces a fresh series for a key on cache miss.
type FetchFunc func(ctx context.Context, key Key) (*core.ValidatedSeries, error)

// Manager fronts a Store with TTL expiry and in-flight request collapsing.
// Concurrent calls for the same key share a single upstream fetch.
type Manager struct {
	store  Store
	ttl    TTLTable
	logger *zap.Logger
	group  singleflight.Group
	now    func() time.Time

	hits   prometheus.Counter
	misses prometheus.Counter
}

// NewManager creates a cache manager over the given store.
func NewManager(store Store, ttl TTLTable, logger *zap.Logger) *Manager {
	if ttl == nil {
		ttl = DefaultTTL()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{
		store:  store,
		ttl:    ttl,
		logger: logger,
		now:    time.Now,
	}
}

// Instrument attaches hit and miss counters. Optional.
func (m *Manager) Instrument(hits, misses prometheus.Counter) {
	m.hits = hits
	m.misses = misses
}

// GetOrFetch returns the cached series for key if it is still fresh,
// otherwise calls fetch and replaces the entry. A TTL of zero for the key's
// interval disables caching entirely.
func (m *Manager) GetOrFetch(ctx context.Context, key Key, fetch FetchFunc) (*core.ValidatedSeries, error) {
	ttl := m.ttl[key.Interval]
	if ttl <= 0 {
		m.logger.Debug("cache disabled for interval", zap.String("key", key.String()))
		return fetch(ctx, key)
	}

	if entry, err := m.store.Get(key); err == nil {
		if m.now().Sub(entry.FetchedAt) < ttl {
			m.logger.Debug("cache hit", zap.String("key", key.String()))
			if m.hits != nil {
				m.hits.Inc()
			}
			return entry.Series, nil
		}
		m.logger.Debug("cache stale", zap.String("key", key.String()),
			zap.Time("fetched_at", entry.FetchedAt))
	}
	if m.misses != nil {
		m.misses.Inc()
	}

	v, err, _ := m.group.Do(key.String(), func() (interface{}, error) {
		// A racing caller may have filled the cache while we waited.
		if entry, err := m.store.Get(key); err == nil && m.now().Sub(entry.FetchedAt) < ttl {
			return entry.Series, nil
		}
		series, err := fetch(ctx, key)
		if err != nil {
			return nil, err
		}
		if err := m.store.Put(key, Entry{Series: series, FetchedAt: m.now()}); err != nil {
			// A write failure degrades to uncached operation.
			m.logger.Warn("cache write failed", zap.String("key", key.String()), zap.Error(err))
		}
		return series, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*core.ValidatedSeries), nil
}

// Invalidate drops the cached entry for key.
func (m *Manager) Invalidate(key Key) error {
	return m.store.Delete(key)
}
