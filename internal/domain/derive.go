package domain

import (
	"log/slog"
	"math/rand/v2"
	"time"

	"github.com/jonboulle/clockwork"
)

const (
	// maxDerivedRecords bounds a partition's record set; downstream rendering
	// and storage size off this cap.
	maxDerivedRecords = 50

	// backfillThreshold is the minimum number of active (major) sites below
	// which inactive at-risk sites are pulled in as minor records.
	backfillThreshold = 10

	defaultSource    = "hazard-reference"
	majorAreaDefault = 25.0
	minorAreaDefault = 10.0
)

// Deriver turns a raw point snapshot into the record set for one partition.
// It owns no state; every call derives from scratch.
type Deriver struct {
	clock  clockwork.Clock
	logger *slog.Logger
}

// NewDeriver creates a Deriver with the given time source.
func NewDeriver(clock clockwork.Clock, logger *slog.Logger) *Deriver {
	return &Deriver{clock: clock, logger: logger}
}

// Derive selects and classifies points for the partition:
//
//  1. Active points become major records.
//  2. If fewer than 10 majors exist, inactive points reporting both risk
//     metrics backfill as minor records.
//  3. The combined output is capped at 50 records.
//
// Points missing geometry are dropped before selection, so the thresholds
// apply to the filtered set. Each record gets a timestamp drawn uniformly
// from [now-window, now] and a deterministic ID.
func (d *Deriver) Derive(points []ReferencePoint, key PartitionKey) []DomainRecord {
	usable := make([]ReferencePoint, 0, len(points))
	dropped := 0
	for _, p := range points {
		if !p.HasGeometry {
			dropped++
			continue
		}
		usable = append(usable, p)
	}
	if dropped > 0 {
		d.logger.Warn("dropped reference points missing geometry",
			"dropped", dropped, "partition", key)
	}

	type selection struct {
		point    ReferencePoint
		severity Severity
	}

	selected := make([]selection, 0, maxDerivedRecords)
	for _, p := range usable {
		if !p.IsActive {
			continue
		}
		selected = append(selected, selection{p, SeverityMajor})
		if len(selected) == maxDerivedRecords {
			break
		}
	}

	if len(selected) < backfillThreshold {
		for _, p := range usable {
			if len(selected) == maxDerivedRecords {
				break
			}
			if p.IsActive || p.RiskMetricA == nil || p.RiskMetricB == nil {
				continue
			}
			selected = append(selected, selection{p, SeverityMinor})
		}
	}

	now := d.clock.Now()
	window := key.Window()
	records := make([]DomainRecord, 0, len(selected))
	for _, sel := range selected {
		records = append(records, DomainRecord{
			ID:           RecordID(sel.point.ID, key),
			Timestamp:    now.Add(-randomWindowOffset(window)),
			Longitude:    sel.point.Longitude,
			Latitude:     sel.point.Latitude,
			Severity:     sel.severity,
			AreaAffected: areaAffected(sel.point, sel.severity),
			Source:       sourceName(sel.point),
			PartitionKey: key,
		})
	}
	return records
}

// randomWindowOffset draws a uniform offset in [0, window].
func randomWindowOffset(window time.Duration) time.Duration {
	if window <= 0 {
		return 0
	}
	return time.Duration(rand.Int64N(window.Milliseconds()+1)) * time.Millisecond
}

// areaAffected uses risk metric A as the affected-area estimate when the
// upstream reports one, otherwise a fixed per-severity default.
func areaAffected(p ReferencePoint, s Severity) float64 {
	if p.RiskMetricA != nil {
		return *p.RiskMetricA
	}
	if s == SeverityMajor {
		return majorAreaDefault
	}
	return minorAreaDefault
}

func sourceName(p ReferencePoint) string {
	if p.SiteName != "" {
		return p.SiteName
	}
	return defaultSource
}
