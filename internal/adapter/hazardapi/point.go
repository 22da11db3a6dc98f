package hazardapi

import (
	"encoding/json"
	"strings"

	"github.com/couchcryptid/hazard-reference-service/internal/domain"
)

// rawPoint is the defensive decode target for one upstream point. Field
// shapes vary between upstream deployments: ids arrive as strings or
// numbers, and geometry appears either as top-level longitude/latitude or as
// a nested GeoJSON-style coordinates pair.
type rawPoint struct {
	ID          json.RawMessage `json:"id"`
	Longitude   *float64        `json:"longitude"`
	Latitude    *float64        `json:"latitude"`
	Geometry    *rawGeometry    `json:"geometry"`
	IsActive    *bool           `json:"isActive"`
	RiskMetricA *float64        `json:"riskMetricA"`
	RiskMetricB *float64        `json:"riskMetricB"`
	SiteName    string          `json:"siteName"`
}

type rawGeometry struct {
	Coordinates []float64 `json:"coordinates"` // [lon, lat]
}

func (p rawPoint) toDomain() domain.ReferencePoint {
	rp := domain.ReferencePoint{
		ID:          p.pointID(),
		RiskMetricA: p.RiskMetricA,
		RiskMetricB: p.RiskMetricB,
		SiteName:    strings.TrimSpace(p.SiteName),
	}
	if p.IsActive != nil {
		rp.IsActive = *p.IsActive
	}
	switch {
	case p.Longitude != nil && p.Latitude != nil:
		rp.Longitude, rp.Latitude, rp.HasGeometry = *p.Longitude, *p.Latitude, true
	case p.Geometry != nil && len(p.Geometry.Coordinates) == 2:
		rp.Longitude, rp.Latitude, rp.HasGeometry = p.Geometry.Coordinates[0], p.Geometry.Coordinates[1], true
	}
	return rp
}

// pointID normalizes string and numeric ids to their text form.
func (p rawPoint) pointID() string {
	return strings.Trim(strings.TrimSpace(string(p.ID)), `"`)
}
