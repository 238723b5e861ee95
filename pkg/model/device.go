package model

import "github.com/jpweytjens/karoo-ext/pkg/wire"

// Device is a sensor found by an extension scan.
type Device struct {
	Extension   string   `json:"extension"`
	UID         string   `json:"uid"`
	DataTypes   []string `json:"dataTypes"`
	DisplayName string   `json:"displayName"`
}

// DeviceEvent is emitted by a connected device.
type DeviceEvent interface {
	wire.Variant
	isDeviceEvent()
}

// ConnectionStatus is the link state of a device.
type ConnectionStatus string

const (
	ConnectionSearching    ConnectionStatus = "SEARCHING"
	ConnectionConnected    ConnectionStatus = "CONNECTED"
	ConnectionDisconnected ConnectionStatus = "DISCONNECTED"
	ConnectionDisabled     ConnectionStatus = "DISABLED"
)

// BatteryStatus is a coarse battery level.
type BatteryStatus string

const (
	BatteryNew      BatteryStatus = "NEW"
	BatteryGood     BatteryStatus = "GOOD"
	BatteryOK       BatteryStatus = "OK"
	BatteryLow      BatteryStatus = "LOW"
	BatteryCritical BatteryStatus = "CRITICAL"
	BatteryInvalid  BatteryStatus = "INVALID"
)

// ManufacturerInfo describes device hardware. All fields are optional.
type ManufacturerInfo struct {
	Manufacturer *string `json:"manufacturer,omitempty"`
	SerialNumber *string `json:"serialNumber,omitempty"`
	ModelNumber  *string `json:"modelNumber,omitempty"`
}

// OnConnectionStatus reports a link state change.
type OnConnectionStatus struct {
	Status ConnectionStatus `json:"status"`
}

// OnDataPoint carries a sample from the device.
type OnDataPoint struct {
	DataPoint DataPoint `json:"dataPoint"`
}

// OnBatteryStatus reports the battery level.
type OnBatteryStatus struct {
	Status BatteryStatus `json:"status"`
}

// OnManufacturerInfo reports device hardware details.
type OnManufacturerInfo struct {
	Info ManufacturerInfo `json:"info"`
}

func (OnConnectionStatus) VariantTag() string { return tagPrefix + "OnConnectionStatus" }
func (OnDataPoint) VariantTag() string        { return tagPrefix + "OnDataPoint" }
func (OnBatteryStatus) VariantTag() string    { return tagPrefix + "OnBatteryStatus" }
func (OnManufacturerInfo) VariantTag() string { return tagPrefix + "OnManufacturerInfo" }

func (OnConnectionStatus) isDeviceEvent() {}
func (OnDataPoint) isDeviceEvent()        {}
func (OnBatteryStatus) isDeviceEvent()    {}
func (OnManufacturerInfo) isDeviceEvent() {}
