// Package model defines the payloads exchanged with the Karoo host.
//
// # Sealed Families
//
// Every type that crosses the boundary belongs to a closed family:
//
//	Event        RideState, Lap, OnStreamState, UserProfile
//	EventParams  RideStateParams, LapParams, UserProfileParams, StartStreaming
//	StreamState  Searching, Idle, NotAvailable, Streaming
//	Effect       PlayBeepPattern, PerformHardwareAction, TurnScreenOn/Off,
//	             MarkLap, SystemNotification, InRideAlert, ...
//	DeviceEvent  OnConnectionStatus, OnDataPoint, OnBatteryStatus,
//	             OnManufacturerInfo
//	ViewEvent    UpdateGraphicConfig, UpdateNumericConfig
//
// Families are Go interfaces with an unexported marker method, so only
// this package can add members. Each member implements wire.Variant and is
// registered with the wire variant registry at init, which lets
// wire.Decode pick the concrete type from the "type" tag:
//
//	state, err := wire.Decode[model.RideState](bundle)
//	switch s := state.(type) {
//	case model.RideStatePaused:
//	    fmt.Println("paused, auto:", s.Auto)
//	}
//
// Tags use the host's fully qualified names, for example
// "io.hammerhead.karooext.models.RideState.Paused".
//
// # Data Types
//
// Host data type and field identifiers are string constants. An embedded
// catalog (catalog.yaml) adds display labels, primary fields, value formats
// and smoothing variants for the built-in data types.
package model
