package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"
)

// Severity classifies a derived record. Major sorts before moderate, which
// sorts before minor, which sorts before unknown.
type Severity string

const (
	SeverityMajor    Severity = "major"
	SeverityModerate Severity = "moderate"
	SeverityMinor    Severity = "minor"
	SeverityUnknown  Severity = "unknown"
)

// Rank returns the sort position of a severity, lower is more severe.
// Unrecognized values rank with unknown.
func (s Severity) Rank() int {
	switch s {
	case SeverityMajor:
		return 0
	case SeverityModerate:
		return 1
	case SeverityMinor:
		return 2
	default:
		return 3
	}
}

// DomainRecord is the persisted unit served to consumers. Its timestamp is
// synthesized inside the partition window at derivation time.
type DomainRecord struct {
	ID           string       `json:"id"`
	Timestamp    time.Time    `json:"timestamp"`
	Longitude    float64      `json:"longitude"`
	Latitude     float64      `json:"latitude"`
	Severity     Severity     `json:"severity"`
	AreaAffected float64      `json:"area_affected"`
	Source       string       `json:"source"`
	PartitionKey PartitionKey `json:"partition_key"`
}

// PartitionMetadata tracks a partition's last refresh. A row exists iff the
// partition currently holds a non-empty record set.
type PartitionMetadata struct {
	PartitionKey  PartitionKey
	LastRefreshed time.Time
	RecordCount   int
}

// RecordID produces a deterministic record ID from the source point ID and
// the partition key. Re-deriving the same point for the same partition
// always yields the same ID.
func RecordID(pointID string, key PartitionKey) string {
	input := fmt.Sprintf("%s|%s", pointID, key)
	hash := sha256.Sum256([]byte(input))
	return string(key) + "-" + hex.EncodeToString(hash[:8])
}
