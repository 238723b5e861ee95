package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDataTypeID(t *testing.T) {
	id := DataTypeID("barberfish", "randonneur")
	assert.Equal(t, "TYPE_EXT::barberfish::randonneur", id)

	ext, typ, ok := ParseDataTypeID(id)
	require.True(t, ok)
	assert.Equal(t, "barberfish", ext)
	assert.Equal(t, "randonneur", typ)
}

func TestParseDataTypeID(t *testing.T) {
	tests := []struct {
		in       string
		ext, typ string
		ok       bool
	}{
		{"sample::power-hr", "sample", "power-hr", true},
		{"TYPE_EXT::a::b", "a", "b", true},
		{TypeHeartRate, "", "", false},
		{"TYPE_EXT::a", "", "", false},
		{"TYPE_EXT::a::b::c", "", "", false},
		{"::b", "", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			ext, typ, ok := ParseDataTypeID(tt.in)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.ext, ext)
			assert.Equal(t, tt.typ, typ)
			assert.Equal(t, tt.ok, IsExtensionType(tt.in))
		})
	}
}

func TestCatalogLoads(t *testing.T) {
	c, err := LoadCatalog()
	require.NoError(t, err)
	require.NotEmpty(t, c.Types)

	for _, id := range []string{TypeSpeed, TypeHeartRate, TypePower, TypeCadence, TypeDistance, TypeRideTime} {
		_, ok := c.Lookup(id)
		assert.True(t, ok, id)
	}
}

func TestCatalogEntries(t *testing.T) {
	hr, ok := LookupDataType(TypeHeartRate)
	require.True(t, ok)
	assert.Equal(t, "HR", hr.Label)
	assert.Equal(t, FieldHeartRate, hr.Field)
	assert.Equal(t, FormatInteger, hr.Format)
	assert.True(t, hr.HasZones())
	assert.Equal(t, TypeHeartRate, hr.SmoothedID("3s"))

	pwr, ok := LookupDataType(TypePower)
	require.True(t, ok)
	assert.Equal(t, FieldPowerZone, pwr.ZoneField)
	assert.Equal(t, TypeSmoothed30sPower, pwr.SmoothedID("30s"))
	assert.Equal(t, []string{"3s", "5s", "10s", "30s"}, pwr.Windows())

	spd, ok := LookupDataType(TypeSpeed)
	require.True(t, ok)
	assert.Equal(t, TypeSpeed, spd.SmoothedID("30s"))
	assert.False(t, spd.HasZones())
}

func TestLabel(t *testing.T) {
	assert.Equal(t, "ELEV+", Label(TypeElevationGain))
	assert.Equal(t, "AVG HR", Label(TypeAverageHR))
	assert.Equal(t, "TYPE_R", Label(TypeRadar))
	assert.Equal(t, "AB", Label("ab"))
}

func TestParseCatalogRejectsDuplicates(t *testing.T) {
	_, err := ParseCatalog([]byte("types:\n  - {id: A, field: F}\n  - {id: A, field: F}\n"))
	assert.Error(t, err)

	_, err = ParseCatalog([]byte("types:\n  - {id: A}\n"))
	assert.Error(t, err)
}
