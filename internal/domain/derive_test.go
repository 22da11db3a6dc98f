package domain

import (
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func floatPtr(v float64) *float64 { return &v }

func activePoint(id string) ReferencePoint {
	return ReferencePoint{
		ID:          id,
		Longitude:   -120.5,
		Latitude:    46.2,
		HasGeometry: true,
		IsActive:    true,
		SiteName:    "Site " + id,
	}
}

func atRiskPoint(id string) ReferencePoint {
	return ReferencePoint{
		ID:          id,
		Longitude:   -121.1,
		Latitude:    45.9,
		HasGeometry: true,
		RiskMetricA: floatPtr(3.5),
		RiskMetricB: floatPtr(1.2),
		SiteName:    "Site " + id,
	}
}

func newTestDeriver(t *testing.T) (*Deriver, clockwork.Clock) {
	t.Helper()
	clock := clockwork.NewFakeClockAt(time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC))
	return NewDeriver(clock, discardLogger()), clock
}

func TestDerive_ActivePointsBecomeMajor(t *testing.T) {
	d, clock := newTestDeriver(t)
	points := []ReferencePoint{activePoint("1"), activePoint("2")}

	records := d.Derive(points, PartitionHour)
	require.Len(t, records, 2)

	now := clock.Now()
	for _, rec := range records {
		assert.Equal(t, SeverityMajor, rec.Severity)
		assert.Equal(t, PartitionHour, rec.PartitionKey)
		assert.False(t, rec.Timestamp.After(now), "timestamp must not be in the future")
		assert.False(t, rec.Timestamp.Before(now.Add(-time.Hour)), "timestamp must be inside the hour window")
	}
}

func TestDerive_BackfillAndCap(t *testing.T) {
	d, _ := newTestDeriver(t)

	points := make([]ReferencePoint, 0, 63)
	for i := 0; i < 3; i++ {
		points = append(points, activePoint(fmt.Sprintf("active-%d", i)))
	}
	for i := 0; i < 60; i++ {
		points = append(points, atRiskPoint(fmt.Sprintf("risk-%d", i)))
	}

	records := d.Derive(points, PartitionDay)
	require.Len(t, records, 50)

	majors, minors := 0, 0
	for _, rec := range records {
		switch rec.Severity {
		case SeverityMajor:
			majors++
		case SeverityMinor:
			minors++
		}
	}
	assert.Equal(t, 3, majors)
	assert.Equal(t, 47, minors)
}

func TestDerive_NoBackfillWhenEnoughMajors(t *testing.T) {
	d, _ := newTestDeriver(t)

	points := make([]ReferencePoint, 0, 15)
	for i := 0; i < 10; i++ {
		points = append(points, activePoint(fmt.Sprintf("active-%d", i)))
	}
	for i := 0; i < 5; i++ {
		points = append(points, atRiskPoint(fmt.Sprintf("risk-%d", i)))
	}

	records := d.Derive(points, PartitionWeek)
	require.Len(t, records, 10)
	for _, rec := range records {
		assert.Equal(t, SeverityMajor, rec.Severity)
	}
}

func TestDerive_MajorsCappedAtFifty(t *testing.T) {
	d, _ := newTestDeriver(t)

	points := make([]ReferencePoint, 0, 80)
	for i := 0; i < 80; i++ {
		points = append(points, activePoint(fmt.Sprintf("active-%d", i)))
	}

	records := d.Derive(points, PartitionMonth)
	assert.Len(t, records, 50)
}

func TestDerive_DropsPointsMissingGeometry(t *testing.T) {
	d, _ := newTestDeriver(t)

	noGeo := activePoint("no-geo")
	noGeo.HasGeometry = false

	records := d.Derive([]ReferencePoint{noGeo, activePoint("ok")}, PartitionHour)
	require.Len(t, records, 1)
	assert.Equal(t, RecordID("ok", PartitionHour), records[0].ID)
}

func TestDerive_ThresholdsApplyToFilteredSet(t *testing.T) {
	d, _ := newTestDeriver(t)

	// 10 active points, but 5 of them lack geometry. After filtering only
	// 5 majors remain, which is below the backfill threshold.
	points := make([]ReferencePoint, 0, 12)
	for i := 0; i < 10; i++ {
		p := activePoint(fmt.Sprintf("active-%d", i))
		if i%2 == 0 {
			p.HasGeometry = false
		}
		points = append(points, p)
	}
	points = append(points, atRiskPoint("risk-0"), atRiskPoint("risk-1"))

	records := d.Derive(points, PartitionHour)
	require.Len(t, records, 7)

	minors := 0
	for _, rec := range records {
		if rec.Severity == SeverityMinor {
			minors++
		}
	}
	assert.Equal(t, 2, minors)
}

func TestDerive_BackfillRequiresBothRiskMetrics(t *testing.T) {
	d, _ := newTestDeriver(t)

	onlyA := atRiskPoint("only-a")
	onlyA.RiskMetricB = nil
	onlyB := atRiskPoint("only-b")
	onlyB.RiskMetricA = nil

	records := d.Derive([]ReferencePoint{activePoint("1"), onlyA, onlyB, atRiskPoint("both")}, PartitionHour)
	require.Len(t, records, 2)
	assert.Equal(t, SeverityMajor, records[0].Severity)
	assert.Equal(t, SeverityMinor, records[1].Severity)
	assert.Equal(t, RecordID("both", PartitionHour), records[1].ID)
}

func TestDerive_RecordFields(t *testing.T) {
	d, _ := newTestDeriver(t)

	p := activePoint("42")
	p.RiskMetricA = floatPtr(7.25)

	records := d.Derive([]ReferencePoint{p}, PartitionHour)
	require.Len(t, records, 1)

	rec := records[0]
	assert.Equal(t, p.Longitude, rec.Longitude)
	assert.Equal(t, p.Latitude, rec.Latitude)
	assert.Equal(t, 7.25, rec.AreaAffected, "risk metric A drives area when present")
	assert.Equal(t, "Site 42", rec.Source)
}

func TestDerive_AreaDefaultsBySeverity(t *testing.T) {
	d, _ := newTestDeriver(t)

	major := activePoint("m")
	major.SiteName = ""

	records := d.Derive([]ReferencePoint{major}, PartitionHour)
	require.Len(t, records, 1)
	assert.Equal(t, majorAreaDefault, records[0].AreaAffected)
	assert.Equal(t, defaultSource, records[0].Source)
}

func TestDerive_EmptyInput(t *testing.T) {
	d, _ := newTestDeriver(t)
	assert.Empty(t, d.Derive(nil, PartitionHour))
}
