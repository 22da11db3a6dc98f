// Package domain models hazard reference data and its derivation into
// time-windowed records.
//
// # Data Source
//
// Reference points come from an upstream hazard-monitoring collection
// endpoint. The endpoint is paginated by a numeric "skip" offset and serves
// pages of raw point objects: an id, WGS-84 coordinates (either top-level
// longitude/latitude fields or a nested GeoJSON-style geometry), an activity
// flag marking sites with a current hazard, two optional risk metrics, and a
// site name. The upstream is unreliable and rate-limited; the fetch layer in
// internal/adapter/hazardapi owns retries, backoff, and circuit breaking.
//
// # Severity
//
// Derived records carry a four-level severity (major, moderate, minor,
// unknown). Active sites map to major. Inactive sites with both risk metrics
// reported are eligible as minor backfill when too few active sites exist.
// Moderate and unknown are reserved for sources that report intermediate or
// missing classifications; the current upstream never produces them, but the
// store orders by the full scale.
//
// # Synthesized Timestamps
//
// The upstream does not expose per-point event times, so derivation stamps
// each record with a time drawn uniformly from the requested partition
// window [now-window, now]. A record's timestamp places it inside the window
// but does not reflect a true upstream event time. Two partitions derived
// from the same snapshot can therefore both contain the same underlying
// point with different timestamps.
//
// # ID Generation
//
// Record IDs are deterministic SHA-256 hashes of point id and partition key.
// Re-deriving the same snapshot for the same partition produces the same
// IDs, which keeps replace-on-refresh idempotent and diff-friendly. See
// [RecordID].
package domain
