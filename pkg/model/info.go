package model

// HardwareType identifies the host device generation.
type HardwareType string

const (
	HardwareK2      HardwareType = "K2"
	HardwareKaroo   HardwareType = "KAROO"
	HardwareUnknown HardwareType = "UNKNOWN"
)

// ParseHardwareType maps a name to a HardwareType, HardwareUnknown if it
// is not recognised.
func ParseHardwareType(s string) HardwareType {
	switch HardwareType(s) {
	case HardwareK2, HardwareKaroo:
		return HardwareType(s)
	default:
		return HardwareUnknown
	}
}

// KarooInfo describes the host device.
type KarooInfo struct {
	Serial       string       `json:"serial"`
	HardwareType HardwareType `json:"hardwareType"`
}
