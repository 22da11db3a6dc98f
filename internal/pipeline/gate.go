// Package pipeline orchestrates the fetch-derive-persist refresh chain
// behind a per-partition freshness gate.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/couchcryptid/hazard-reference-service/internal/domain"
	"github.com/couchcryptid/hazard-reference-service/internal/observability"
)

// SnapshotSource yields the raw point snapshot, refreshing it as needed.
type SnapshotSource interface {
	Get(ctx context.Context) ([]domain.ReferencePoint, error)
}

// Deriver turns a snapshot into one partition's record set.
type Deriver interface {
	Derive(points []domain.ReferencePoint, key domain.PartitionKey) []domain.DomainRecord
}

// Store is the persistence surface the gate drives.
type Store interface {
	ReplacePartition(ctx context.Context, key domain.PartitionKey, records []domain.DomainRecord) error
	Read(ctx context.Context, key domain.PartitionKey) ([]domain.DomainRecord, error)
	Metadata(ctx context.Context, key domain.PartitionKey) (*domain.PartitionMetadata, error)
	Ping(ctx context.Context) error
}

// Notifier announces completed partition refreshes. Notification failures
// never fail a refresh.
type Notifier interface {
	PartitionRefreshed(ctx context.Context, key domain.PartitionKey, recordCount int, refreshedAt time.Time) error
}

// Gate decides per partition whether stored records are current or a
// refresh must run. Refreshes for the same partition are mutually
// exclusive, so concurrent callers trigger at most one upstream-touching
// chain; different partitions refresh independently.
type Gate struct {
	source   SnapshotSource
	deriver  Deriver
	store    Store
	notifier Notifier // optional
	freshFor time.Duration
	clock    clockwork.Clock
	logger   *slog.Logger
	metrics  *observability.Metrics

	mu    sync.Mutex
	locks map[domain.PartitionKey]*sync.Mutex
}

// New creates a Gate. notifier may be nil.
func New(source SnapshotSource, deriver Deriver, store Store, notifier Notifier, freshFor time.Duration, clock clockwork.Clock, logger *slog.Logger, metrics *observability.Metrics) *Gate {
	return &Gate{
		source:   source,
		deriver:  deriver,
		store:    store,
		notifier: notifier,
		freshFor: freshFor,
		clock:    clock,
		logger:   logger,
		metrics:  metrics,
		locks:    make(map[domain.PartitionKey]*sync.Mutex),
	}
}

// IsFresh reports whether the partition has metadata newer than the
// freshness window. A partition with no metadata row is never fresh.
func (g *Gate) IsFresh(ctx context.Context, key domain.PartitionKey) (bool, error) {
	md, err := g.store.Metadata(ctx, key)
	if err != nil {
		return false, err
	}
	if md == nil {
		return false, nil
	}
	return g.clock.Since(md.LastRefreshed) < g.freshFor, nil
}

// EnsureFresh is a no-op when the partition is fresh. Otherwise it runs the
// full chain: snapshot get (which may hit the upstream), derivation for this
// partition, and a transactional record replace.
func (g *Gate) EnsureFresh(ctx context.Context, key domain.PartitionKey) error {
	lock := g.partitionLock(key)
	lock.Lock()
	defer lock.Unlock()

	fresh, err := g.IsFresh(ctx, key)
	if err != nil {
		return fmt.Errorf("check freshness of %s: %w", key, err)
	}
	if fresh {
		g.metrics.PartitionFreshHits.Inc()
		return nil
	}

	start := g.clock.Now()
	points, err := g.source.Get(ctx)
	if err != nil {
		return fmt.Errorf("refresh %s: %w", key, err)
	}

	records := g.deriver.Derive(points, key)
	if err := g.store.ReplacePartition(ctx, key, records); err != nil {
		return fmt.Errorf("replace partition %s: %w", key, err)
	}

	g.metrics.PartitionRefreshes.WithLabelValues(string(key)).Inc()
	g.metrics.PartitionRecords.WithLabelValues(string(key)).Set(float64(len(records)))
	g.metrics.RefreshDuration.Observe(g.clock.Since(start).Seconds())
	g.logger.Info("partition refreshed",
		"partition", key, "points", len(points), "records", len(records))

	if g.notifier != nil {
		if err := g.notifier.PartitionRefreshed(ctx, key, len(records), g.clock.Now()); err != nil {
			g.logger.Warn("refresh notification failed", "partition", key, "error", err)
		}
	}
	return nil
}

// Read returns the partition's current records without refreshing.
func (g *Gate) Read(ctx context.Context, key domain.PartitionKey) ([]domain.DomainRecord, error) {
	return g.store.Read(ctx, key)
}

// CheckReadiness returns nil once the store is reachable.
func (g *Gate) CheckReadiness(ctx context.Context) error {
	return g.store.Ping(ctx)
}

func (g *Gate) partitionLock(key domain.PartitionKey) *sync.Mutex {
	g.mu.Lock()
	defer g.mu.Unlock()
	lock, ok := g.locks[key]
	if !ok {
		lock = &sync.Mutex{}
		g.locks[key] = lock
	}
	return lock
}
