package sqlite

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/hazard-reference-service/internal/domain"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func openTestStore(t *testing.T) (*Store, *clockwork.FakeClock) {
	t.Helper()
	clk := clockwork.NewFakeClockAt(time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC))
	store, err := Open(filepath.Join(t.TempDir(), "test.db"), clk, discardLogger())
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store, clk
}

func testRecord(id string, severity domain.Severity, key domain.PartitionKey, ts time.Time) domain.DomainRecord {
	return domain.DomainRecord{
		ID:           id,
		Timestamp:    ts,
		Longitude:    -120.5,
		Latitude:     46.2,
		Severity:     severity,
		AreaAffected: 12.5,
		Source:       "Test Site",
		PartitionKey: key,
	}
}

func TestOpen_RequiresPath(t *testing.T) {
	_, err := Open("  ", clockwork.NewFakeClock(), discardLogger())
	require.Error(t, err)
}

func TestOpen_MigrationsAreIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")
	clk := clockwork.NewFakeClock()

	first, err := Open(path, clk, discardLogger())
	require.NoError(t, err)
	require.NoError(t, first.Close())

	second, err := Open(path, clk, discardLogger())
	require.NoError(t, err)
	assert.NoError(t, second.Close())
}

func TestReplacePartition_RoundTrip(t *testing.T) {
	store, clk := openTestStore(t)
	ctx := context.Background()
	ts := clk.Now().Add(-10 * time.Minute)

	records := []domain.DomainRecord{
		testRecord("hour-d", domain.SeverityUnknown, domain.PartitionHour, ts),
		testRecord("hour-c", domain.SeverityMinor, domain.PartitionHour, ts),
		testRecord("hour-b", domain.SeverityMajor, domain.PartitionHour, ts),
		testRecord("hour-a", domain.SeverityMajor, domain.PartitionHour, ts),
		testRecord("hour-e", domain.SeverityModerate, domain.PartitionHour, ts),
	}
	require.NoError(t, store.ReplacePartition(ctx, domain.PartitionHour, records))

	got, err := store.Read(ctx, domain.PartitionHour)
	require.NoError(t, err)
	require.Len(t, got, 5)

	// Severity descending, ids ascending within a severity.
	ids := make([]string, len(got))
	for i, rec := range got {
		ids[i] = rec.ID
	}
	assert.Equal(t, []string{"hour-a", "hour-b", "hour-e", "hour-c", "hour-d"}, ids)

	assert.Equal(t, domain.SeverityMajor, got[0].Severity)
	assert.Equal(t, ts, got[0].Timestamp)
	assert.Equal(t, -120.5, got[0].Longitude)
	assert.Equal(t, 46.2, got[0].Latitude)
	assert.Equal(t, 12.5, got[0].AreaAffected)
	assert.Equal(t, "Test Site", got[0].Source)
	assert.Equal(t, domain.PartitionHour, got[0].PartitionKey)
}

func TestReplacePartition_ReplacesWholesale(t *testing.T) {
	store, clk := openTestStore(t)
	ctx := context.Background()
	ts := clk.Now()

	first := []domain.DomainRecord{
		testRecord("hour-1", domain.SeverityMajor, domain.PartitionHour, ts),
		testRecord("hour-2", domain.SeverityMajor, domain.PartitionHour, ts),
	}
	require.NoError(t, store.ReplacePartition(ctx, domain.PartitionHour, first))

	second := []domain.DomainRecord{
		testRecord("hour-3", domain.SeverityMinor, domain.PartitionHour, ts),
	}
	require.NoError(t, store.ReplacePartition(ctx, domain.PartitionHour, second))

	got, err := store.Read(ctx, domain.PartitionHour)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "hour-3", got[0].ID)

	md, err := store.Metadata(ctx, domain.PartitionHour)
	require.NoError(t, err)
	require.NotNil(t, md)
	assert.Equal(t, 1, md.RecordCount)
}

func TestReplacePartition_EmptySetClearsMetadata(t *testing.T) {
	store, clk := openTestStore(t)
	ctx := context.Background()

	records := []domain.DomainRecord{
		testRecord("day-1", domain.SeverityMajor, domain.PartitionDay, clk.Now()),
	}
	require.NoError(t, store.ReplacePartition(ctx, domain.PartitionDay, records))

	md, err := store.Metadata(ctx, domain.PartitionDay)
	require.NoError(t, err)
	require.NotNil(t, md)

	require.NoError(t, store.ReplacePartition(ctx, domain.PartitionDay, nil))

	md, err = store.Metadata(ctx, domain.PartitionDay)
	require.NoError(t, err)
	assert.Nil(t, md, "an empty replace must leave the partition looking never-refreshed")

	got, err := store.Read(ctx, domain.PartitionDay)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestMetadata_TracksClockAndCount(t *testing.T) {
	store, clk := openTestStore(t)
	ctx := context.Background()

	records := []domain.DomainRecord{
		testRecord("week-1", domain.SeverityMajor, domain.PartitionWeek, clk.Now()),
		testRecord("week-2", domain.SeverityMinor, domain.PartitionWeek, clk.Now()),
	}
	require.NoError(t, store.ReplacePartition(ctx, domain.PartitionWeek, records))

	md, err := store.Metadata(ctx, domain.PartitionWeek)
	require.NoError(t, err)
	require.NotNil(t, md)
	assert.Equal(t, domain.PartitionWeek, md.PartitionKey)
	assert.Equal(t, clk.Now().UTC(), md.LastRefreshed)
	assert.Equal(t, 2, md.RecordCount)
}

func TestMetadata_NilWhenNeverRefreshed(t *testing.T) {
	store, _ := openTestStore(t)

	md, err := store.Metadata(context.Background(), domain.PartitionMonth)
	require.NoError(t, err)
	assert.Nil(t, md)
}

func TestPartitionsAreIsolated(t *testing.T) {
	store, clk := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.ReplacePartition(ctx, domain.PartitionHour, []domain.DomainRecord{
		testRecord("hour-1", domain.SeverityMajor, domain.PartitionHour, clk.Now()),
	}))
	require.NoError(t, store.ReplacePartition(ctx, domain.PartitionDay, []domain.DomainRecord{
		testRecord("day-1", domain.SeverityMajor, domain.PartitionDay, clk.Now()),
	}))

	hour, err := store.Read(ctx, domain.PartitionHour)
	require.NoError(t, err)
	require.Len(t, hour, 1)
	assert.Equal(t, "hour-1", hour[0].ID)

	require.NoError(t, store.ReplacePartition(ctx, domain.PartitionDay, nil))

	hour, err = store.Read(ctx, domain.PartitionHour)
	require.NoError(t, err)
	assert.Len(t, hour, 1, "clearing one partition must not touch another")
}

func TestPing(t *testing.T) {
	store, _ := openTestStore(t)
	assert.NoError(t, store.Ping(context.Background()))
}

func TestReplacePartition_ConcurrentWriters(t *testing.T) {
	store, clk := openTestStore(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	errs := make(chan error, len(domain.PartitionKeys))
	for _, key := range domain.PartitionKeys {
		wg.Add(1)
		go func(key domain.PartitionKey) {
			defer wg.Done()
			records := make([]domain.DomainRecord, 20)
			for i := range records {
				records[i] = testRecord(fmt.Sprintf("%s-%02d", key, i), domain.SeverityMajor, key, clk.Now())
			}
			errs <- store.ReplacePartition(ctx, key, records)
		}(key)
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		require.NoError(t, err, "overlapping writers must queue, not fail busy")
	}

	for _, key := range domain.PartitionKeys {
		records, err := store.Read(ctx, key)
		require.NoError(t, err)
		assert.Len(t, records, 20)

		md, err := store.Metadata(ctx, key)
		require.NoError(t, err)
		require.NotNil(t, md)
		assert.Equal(t, 20, md.RecordCount)
	}
}
