package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jpweytjens/karoo-ext/pkg/wire"
)

func TestDeviceEventsRoundTrip(t *testing.T) {
	maker := "Hammerhead"
	events := []DeviceEvent{
		OnConnectionStatus{Status: ConnectionConnected},
		OnDataPoint{DataPoint: DataPoint{DataTypeID: TypeHeartRate, Values: map[string]float64{FieldHeartRate: 120}, SourceID: "hr-1"}},
		OnBatteryStatus{Status: BatteryLow},
		OnManufacturerInfo{Info: ManufacturerInfo{Manufacturer: &maker}},
	}
	for _, in := range events {
		b, err := wire.Encode(in)
		require.NoError(t, err)

		out, err := wire.Decode[DeviceEvent](b)
		require.NoError(t, err)
		assert.Equal(t, in, out)
	}
}

func TestDeviceIsUntagged(t *testing.T) {
	d := Device{Extension: "sample", UID: "hr-1", DataTypes: []string{DataTypeID("sample", "hr")}, DisplayName: "Static HR 1"}
	b, err := wire.Encode(d)
	require.NoError(t, err)
	assert.NotContains(t, b[wire.KeyValue], `"type"`)

	out, err := wire.Decode[Device](b)
	require.NoError(t, err)
	assert.Equal(t, d, out)
}

func TestViewEventsRoundTrip(t *testing.T) {
	format := TypeSpeed
	events := []ViewEvent{
		UpdateGraphicConfig{ShowHeader: false},
		UpdateGraphicConfig{ShowHeader: true, FormatDataTypeID: &format},
		UpdateNumericConfig{FormatDataTypeID: TypePower},
	}
	for _, in := range events {
		b, err := wire.Encode(in)
		require.NoError(t, err)

		out, err := wire.Decode[ViewEvent](b)
		require.NoError(t, err)
		assert.Equal(t, in, out)
	}
}

func TestUpdateGraphicConfigShowHeaderDefault(t *testing.T) {
	b := wire.Bundle{wire.KeyValue: `{"type":"io.hammerhead.karooext.models.UpdateGraphicConfig"}`}
	ev, err := wire.Decode[ViewEvent](b)
	require.NoError(t, err)
	assert.Equal(t, UpdateGraphicConfig{ShowHeader: true}, ev)
}

func TestViewConfigPairs(t *testing.T) {
	b := wire.Bundle{wire.KeyValue: `{"gridSize":{"first":60,"second":15},"viewSize":{"first":480,"second":200},"textSize":42}`}
	cfg, err := wire.Decode[ViewConfig](b)
	require.NoError(t, err)
	assert.Equal(t, ViewConfig{GridSize: Size{60, 15}, ViewSize: Size{480, 200}, TextSize: 42}, cfg)
}

func TestParseHardwareType(t *testing.T) {
	assert.Equal(t, HardwareK2, ParseHardwareType("K2"))
	assert.Equal(t, HardwareKaroo, ParseHardwareType("KAROO"))
	assert.Equal(t, HardwareUnknown, ParseHardwareType("k3"))
}
