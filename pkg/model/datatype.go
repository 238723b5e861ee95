package model

import "strings"

// Built-in data type ids.
const (
	TypeHeartRate     = "TYPE_HEART_RATE_ID"
	TypeAverageHR     = "TYPE_AVERAGE_HR_ID"
	TypeMaxHR         = "TYPE_MAX_HR_ID"
	TypePower         = "TYPE_POWER_ID"
	TypeAveragePower  = "TYPE_AVERAGE_POWER_ID"
	TypeMaxPower      = "TYPE_MAX_POWER_ID"
	TypeCadence       = "TYPE_CADENCE_ID"
	TypeRawCadence    = "TYPE_CAD_CADENCE_ID"
	TypeAverageCad    = "TYPE_AVERAGE_CADENCE_ID"
	TypeMaxCadence    = "TYPE_MAX_CADENCE_ID"
	TypeSpeed         = "TYPE_SPEED_ID"
	TypeRawSpeed      = "TYPE_SPD_SPEED_ID"
	TypeAverageSpeed  = "TYPE_AVERAGE_SPEED_ID"
	TypeMaxSpeed      = "TYPE_MAX_SPEED_ID"
	TypeDistance      = "TYPE_DISTANCE_ID"
	TypeRideTime      = "TYPE_RIDE_TIME_ID"
	TypeElapsedTime   = "TYPE_ELAPSED_TIME_ID"
	TypeTemperature   = "TYPE_TEMPERATURE_ID"
	TypeElevationGain = "TYPE_ELEVATION_GAIN_ID"

	TypeSmoothed3sSpeed    = "TYPE_SMOOTHED_3S_AVERAGE_SPEED_ID"
	TypeSmoothed5sSpeed    = "TYPE_SMOOTHED_5S_AVERAGE_SPEED_ID"
	TypeSmoothed10sSpeed   = "TYPE_SMOOTHED_10S_AVERAGE_SPEED_ID"
	TypeSmoothed3sPower    = "TYPE_SMOOTHED_3S_AVERAGE_POWER_ID"
	TypeSmoothed5sPower    = "TYPE_SMOOTHED_5S_AVERAGE_POWER_ID"
	TypeSmoothed10sPower   = "TYPE_SMOOTHED_10S_AVERAGE_POWER_ID"
	TypeSmoothed30sPower   = "TYPE_SMOOTHED_30S_AVERAGE_POWER_ID"
	TypeSmoothed3sCadence  = "TYPE_SMOOTHED_3S_AVERAGE_CADENCE_ID"
	TypeSmoothed5sCadence  = "TYPE_SMOOTHED_5S_AVERAGE_CADENCE_ID"
	TypeSmoothed10sCadence = "TYPE_SMOOTHED_10S_AVERAGE_CADENCE_ID"

	TypeRadar             = "TYPE_RADAR_ID"
	TypeTirePressureFront = "TYPE_TIRE_PRESSURE_FRONT_ID"
	TypeTirePressureRear  = "TYPE_TIRE_PRESSURE_REAR_ID"
	TypeShiftingBattery   = "TYPE_SHIFTING_BATTERY_ID"
	TypeShiftingFrontGear = "TYPE_SHIFTING_FRONT_GEAR_ID"
	TypeShiftingRearGear  = "TYPE_SHIFTING_REAR_GEAR_ID"
)

// Field ids within a DataPoint.
const (
	FieldSingle        = "FIELD_SINGLE_ID"
	FieldHeartRate     = "FIELD_HEART_RATE_ID"
	FieldAverageHR     = "FIELD_AVG_HR_ID"
	FieldMaxHR         = "FIELD_MAX_HR_ID"
	FieldHRZone        = "FIELD_HR_ZONE_ID"
	FieldPower         = "FIELD_POWER_ID"
	FieldAveragePower  = "FIELD_AVERAGE_POWER_ID"
	FieldMaxPower      = "FIELD_MAX_POWER_ID"
	FieldPowerZone     = "FIELD_POWER_ZONE_ID"
	FieldCadence       = "FIELD_CADENCE_ID"
	FieldAverageCad    = "FIELD_AVERAGE_CADENCE_ID"
	FieldMaxCadence    = "FIELD_MAX_CADENCE_ID"
	FieldSpeed         = "FIELD_SPEED_ID"
	FieldAverageSpeed  = "FIELD_AVERAGE_SPEED_ID"
	FieldMaxSpeed      = "FIELD_MAX_SPEED_ID"
	FieldDistance      = "FIELD_DISTANCE_ID"
	FieldRideTime      = "FIELD_RIDE_TIME_ID"
	FieldElapsedTime   = "FIELD_ELAPSED_TIME_ID"
	FieldTemperature   = "FIELD_TEMPERATURE_ID"
	FieldElevationGain = "FIELD_ELEVATION_GAIN_ID"

	FieldRadarThreatLevel  = "FIELD_RADAR_THREAT_LEVEL_ID"
	FieldRadarTarget1Range = "FIELD_RADAR_TARGET_1_RANGE_ID"
	FieldRadarTarget2Range = "FIELD_RADAR_TARGET_2_RANGE_ID"
	FieldRadarTarget3Range = "FIELD_RADAR_TARGET_3_RANGE_ID"
	FieldRadarTarget4Range = "FIELD_RADAR_TARGET_4_RANGE_ID"
	FieldTirePressure      = "FIELD_TIRE_PRESSURE_ID"

	FieldShiftingBatteryStatus   = "FIELD_SHIFTING_BATTERY_STATUS_ID"
	FieldShiftingBatteryStatusFD = "FIELD_SHIFTING_BATTERY_STATUS_FRONT_DERAILLEUR_ID"
	FieldShiftingBatteryStatusRD = "FIELD_SHIFTING_BATTERY_STATUS_REAR_DERAILLEUR_ID"
	FieldFrontGear               = "FIELD_SHIFTING_FRONT_GEAR_ID"
	FieldFrontGearTeeth          = "FIELD_SHIFTING_FRONT_GEAR_TEETH_ID"
	FieldFrontGearMax            = "FIELD_SHIFTING_FRONT_GEAR_MAX_ID"
	FieldRearGear                = "FIELD_SHIFTING_REAR_GEAR_ID"
	FieldRearGearTeeth           = "FIELD_SHIFTING_REAR_GEAR_TEETH_ID"
	FieldRearGearMax             = "FIELD_SHIFTING_REAR_GEAR_MAX_ID"
)

const (
	extPrefix   = "TYPE_EXT"
	idSeparator = "::"
	extIDPrefix = extPrefix + idSeparator
)

// DataTypeID returns the full id of an extension data type,
// "TYPE_EXT::<extension>::<typeID>".
func DataTypeID(extension, typeID string) string {
	return extIDPrefix + extension + idSeparator + typeID
}

// ParseDataTypeID splits a full extension data type id. The short form
// "<extension>::<typeID>" is accepted too.
func ParseDataTypeID(id string) (extension, typeID string, ok bool) {
	if !strings.Contains(id, idSeparator) {
		return "", "", false
	}
	parts := strings.Split(strings.TrimPrefix(id, extIDPrefix), idSeparator)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", false
	}
	return parts[0], parts[1], true
}

// IsExtensionType reports whether id names an extension data type.
func IsExtensionType(id string) bool {
	_, _, ok := ParseDataTypeID(id)
	return ok
}
