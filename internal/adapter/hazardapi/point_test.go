package hazardapi

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decodePoint(t *testing.T, data string) rawPoint {
	t.Helper()
	var p rawPoint
	require.NoError(t, json.Unmarshal([]byte(data), &p))
	return p
}

func TestRawPoint_TopLevelGeometry(t *testing.T) {
	p := decodePoint(t, `{"id":"vn-001","longitude":-121.5,"latitude":46.8,"isActive":true,"riskMetricA":2.5,"riskMetricB":0.8,"siteName":"North Ridge"}`)
	rp := p.toDomain()

	assert.Equal(t, "vn-001", rp.ID)
	assert.True(t, rp.HasGeometry)
	assert.Equal(t, -121.5, rp.Longitude)
	assert.Equal(t, 46.8, rp.Latitude)
	assert.True(t, rp.IsActive)
	require.NotNil(t, rp.RiskMetricA)
	assert.Equal(t, 2.5, *rp.RiskMetricA)
	require.NotNil(t, rp.RiskMetricB)
	assert.Equal(t, 0.8, *rp.RiskMetricB)
	assert.Equal(t, "North Ridge", rp.SiteName)
}

func TestRawPoint_NestedGeometry(t *testing.T) {
	p := decodePoint(t, `{"id":7,"geometry":{"coordinates":[-120.2,45.1]},"isActive":false}`)
	rp := p.toDomain()

	assert.Equal(t, "7", rp.ID, "numeric ids normalize to text")
	assert.True(t, rp.HasGeometry)
	assert.Equal(t, -120.2, rp.Longitude)
	assert.Equal(t, 45.1, rp.Latitude)
	assert.False(t, rp.IsActive)
	assert.Nil(t, rp.RiskMetricA)
}

func TestRawPoint_MissingGeometry(t *testing.T) {
	for _, data := range []string{
		`{"id":"x","isActive":true}`,
		`{"id":"x","longitude":-120.0,"isActive":true}`,
		`{"id":"x","geometry":{"coordinates":[-120.0]},"isActive":true}`,
		`{"id":"x","geometry":{},"isActive":true}`,
	} {
		rp := decodePoint(t, data).toDomain()
		assert.False(t, rp.HasGeometry, "payload: %s", data)
	}
}

func TestRawPoint_DefaultsWhenFieldsAbsent(t *testing.T) {
	rp := decodePoint(t, `{}`).toDomain()

	assert.Empty(t, rp.ID)
	assert.False(t, rp.IsActive)
	assert.False(t, rp.HasGeometry)
	assert.Nil(t, rp.RiskMetricA)
	assert.Nil(t, rp.RiskMetricB)
	assert.Empty(t, rp.SiteName)
}

func TestRawPoint_TrimsSiteName(t *testing.T) {
	rp := decodePoint(t, `{"id":"x","siteName":"  Crater Flats  "}`).toDomain()
	assert.Equal(t, "Crater Flats", rp.SiteName)
}
