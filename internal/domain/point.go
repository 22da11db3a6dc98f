package domain

// ReferencePoint is a raw upstream hazard-monitoring record. It exists only
// between fetch and derivation and is never persisted.
type ReferencePoint struct {
	ID          string
	Longitude   float64
	Latitude    float64
	HasGeometry bool
	IsActive    bool
	RiskMetricA *float64
	RiskMetricB *float64
	SiteName    string
}
