// Package sqlite provides the SQLite-backed partition store.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/jonboulle/clockwork"
	_ "modernc.org/sqlite" // registers the "sqlite" database/sql driver

	"github.com/couchcryptid/hazard-reference-service/internal/domain"
	"github.com/couchcryptid/hazard-reference-service/internal/storage/sqlite/migrations"
)

// Store persists derived domain records and partition metadata in SQLite.
type Store struct {
	sqlDB  *sql.DB
	clock  clockwork.Clock
	logger *slog.Logger
}

func toMillis(value time.Time) int64 {
	return value.UTC().UnixMilli()
}

func fromMillis(value int64) time.Time {
	return time.UnixMilli(value).UTC()
}

// Open opens the SQLite store at path and applies embedded migrations.
func Open(path string, clock clockwork.Clock, logger *slog.Logger) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}
	dsn := filepath.Clean(path) + "?_pragma=journal_mode(WAL)&_pragma=foreign_keys(ON)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if err := applyMigrations(sqlDB, migrations.FS); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return &Store{sqlDB: sqlDB, clock: clock, logger: logger}, nil
}

// Close closes the SQLite handle.
func (s *Store) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

// Ping reports whether the store is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.sqlDB.PingContext(ctx)
}

// ReplacePartition atomically swaps the partition's record set: existing
// records are deleted, the new set is inserted, and the metadata row is
// upserted, all in one transaction. An empty set instead clears the metadata
// row so the partition reads as never refreshed.
func (s *Store) ReplacePartition(ctx context.Context, key domain.PartitionKey, records []domain.DomainRecord) error {
	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin replace transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM domain_records WHERE partition_key = ?`, string(key)); err != nil {
		return fmt.Errorf("clear partition %s: %w", key, err)
	}

	if len(records) == 0 {
		if _, err := tx.ExecContext(ctx,
			`DELETE FROM partition_metadata WHERE partition_key = ?`, string(key)); err != nil {
			return fmt.Errorf("clear metadata %s: %w", key, err)
		}
		return tx.Commit()
	}

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO domain_records
		(id, partition_key, ts, longitude, latitude, severity, area_affected, source)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare record insert: %w", err)
	}
	defer stmt.Close()

	for _, rec := range records {
		if _, err := stmt.ExecContext(ctx,
			rec.ID,
			string(rec.PartitionKey),
			toMillis(rec.Timestamp),
			rec.Longitude,
			rec.Latitude,
			string(rec.Severity),
			rec.AreaAffected,
			rec.Source,
		); err != nil {
			return fmt.Errorf("insert record %s: %w", rec.ID, err)
		}
	}

	if _, err := tx.ExecContext(ctx, `INSERT INTO partition_metadata
		(partition_key, last_refreshed, record_count)
		VALUES (?, ?, ?)
		ON CONFLICT(partition_key) DO UPDATE SET
			last_refreshed = excluded.last_refreshed,
			record_count = excluded.record_count`,
		string(key), toMillis(s.clock.Now()), len(records)); err != nil {
		return fmt.Errorf("upsert metadata %s: %w", key, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit replace %s: %w", key, err)
	}
	return nil
}

// Read returns the partition's records ordered by severity descending
// (major first), ties broken by id.
func (s *Store) Read(ctx context.Context, key domain.PartitionKey) ([]domain.DomainRecord, error) {
	rows, err := s.sqlDB.QueryContext(ctx, `SELECT id, ts, longitude, latitude, severity, area_affected, source
		FROM domain_records
		WHERE partition_key = ?
		ORDER BY CASE severity
			WHEN 'major' THEN 0
			WHEN 'moderate' THEN 1
			WHEN 'minor' THEN 2
			ELSE 3
		END, id`, string(key))
	if err != nil {
		return nil, fmt.Errorf("query partition %s: %w", key, err)
	}
	defer rows.Close()

	var records []domain.DomainRecord
	for rows.Next() {
		var (
			rec      domain.DomainRecord
			ts       int64
			severity string
		)
		if err := rows.Scan(&rec.ID, &ts, &rec.Longitude, &rec.Latitude, &severity, &rec.AreaAffected, &rec.Source); err != nil {
			return nil, fmt.Errorf("scan record: %w", err)
		}
		rec.Timestamp = fromMillis(ts)
		rec.Severity = domain.Severity(severity)
		rec.PartitionKey = key
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate partition %s: %w", key, err)
	}
	return records, nil
}

// Metadata returns the partition's metadata row, or nil when the partition
// has never been refreshed (or was last refreshed empty).
func (s *Store) Metadata(ctx context.Context, key domain.PartitionKey) (*domain.PartitionMetadata, error) {
	row := s.sqlDB.QueryRowContext(ctx,
		`SELECT last_refreshed, record_count FROM partition_metadata WHERE partition_key = ?`,
		string(key))

	var (
		refreshed int64
		count     int
	)
	if err := row.Scan(&refreshed, &count); errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	} else if err != nil {
		return nil, fmt.Errorf("query metadata %s: %w", key, err)
	}

	return &domain.PartitionMetadata{
		PartitionKey:  key,
		LastRefreshed: fromMillis(refreshed),
		RecordCount:   count,
	}, nil
}
