// Package cache holds the process-wide snapshot of raw upstream reference
// points behind a TTL and a single-flight refresh.
package cache

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"golang.org/x/sync/singleflight"

	"github.com/couchcryptid/hazard-reference-service/internal/domain"
	"github.com/couchcryptid/hazard-reference-service/internal/observability"
)

// ErrNoSnapshot is returned when a refresh fails and no earlier snapshot
// exists to fall back on.
var ErrNoSnapshot = errors.New("no reference point snapshot available")

// PointFetcher sweeps the upstream source. Implementations are best-effort
// and only error on context cancellation.
type PointFetcher interface {
	FetchAll(ctx context.Context) ([]domain.ReferencePoint, error)
}

// SourceCache owns the raw point snapshot and its fetch timestamp. The
// snapshot is replaced wholesale on refresh; readers never observe a partial
// update. Concurrent callers during an in-flight refresh share that single
// fetch instead of starting their own.
type SourceCache struct {
	fetcher PointFetcher
	ttl     time.Duration
	clock   clockwork.Clock
	logger  *slog.Logger
	metrics *observability.Metrics

	group singleflight.Group

	mu        sync.RWMutex
	snapshot  []domain.ReferencePoint
	fetchedAt time.Time
}

// NewSourceCache creates an empty cache over the fetcher. The first Get
// always triggers a fetch.
func NewSourceCache(fetcher PointFetcher, ttl time.Duration, clock clockwork.Clock, logger *slog.Logger, metrics *observability.Metrics) *SourceCache {
	return &SourceCache{
		fetcher: fetcher,
		ttl:     ttl,
		clock:   clock,
		logger:  logger,
		metrics: metrics,
	}
}

// Get returns the current snapshot, refreshing it through the fetcher when
// the TTL has lapsed. A failed refresh falls back to the previous snapshot
// if one exists; otherwise the failure propagates.
func (c *SourceCache) Get(ctx context.Context) ([]domain.ReferencePoint, error) {
	if snap, ok := c.fresh(); ok {
		c.metrics.SnapshotHits.Inc()
		return snap, nil
	}

	v, err, shared := c.group.Do("snapshot", func() (any, error) {
		// A caller that queued behind the refresh may find the snapshot
		// already replaced.
		if snap, ok := c.fresh(); ok {
			return snap, nil
		}
		return c.refresh(ctx)
	})
	if err != nil {
		return nil, err
	}
	if shared {
		c.logger.Debug("snapshot refresh shared across concurrent callers")
	}
	return v.([]domain.ReferencePoint), nil
}

// fresh returns the snapshot when it exists and is inside the TTL.
func (c *SourceCache) fresh() ([]domain.ReferencePoint, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.snapshot == nil || c.clock.Since(c.fetchedAt) >= c.ttl {
		return nil, false
	}
	return c.snapshot, true
}

// refresh runs one fetch sweep and atomically replaces the snapshot on
// success. An errored or empty sweep is unusable: the previous snapshot is
// served stale if present, else the failure surfaces.
func (c *SourceCache) refresh(ctx context.Context) ([]domain.ReferencePoint, error) {
	points, err := c.fetcher.FetchAll(ctx)
	if err != nil || len(points) == 0 {
		c.mu.RLock()
		prev := c.snapshot
		c.mu.RUnlock()

		if len(prev) > 0 {
			c.metrics.SnapshotStaleUsed.Inc()
			c.logger.Warn("snapshot refresh failed, serving stale snapshot",
				"points", len(prev), "error", err)
			return prev, nil
		}
		if err == nil {
			err = ErrNoSnapshot
		}
		return nil, err
	}

	c.mu.Lock()
	c.snapshot = points
	c.fetchedAt = c.clock.Now()
	c.mu.Unlock()

	c.metrics.SnapshotRefreshes.Inc()
	c.metrics.SnapshotPointCount.Set(float64(len(points)))
	c.logger.Info("snapshot refreshed", "points", len(points))
	return points, nil
}
