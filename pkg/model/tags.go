package model

import "github.com/jpweytjens/karoo-ext/pkg/wire"

// tagPrefix is the namespace shared by all host model tags.
const tagPrefix = "io.hammerhead.karooext.models."

func init() {
	// Events
	wire.RegisterVariant[RideStateIdle]()
	wire.RegisterVariant[RideStateRecording]()
	wire.RegisterVariant[RideStatePaused]()
	wire.RegisterVariant[Lap]()
	wire.RegisterVariant[OnStreamState]()
	wire.RegisterVariant[UserProfile]()

	// Params
	wire.RegisterVariant[RideStateParams]()
	wire.RegisterVariant[LapParams]()
	wire.RegisterVariant[UserProfileParams]()
	wire.RegisterVariant[StartStreaming]()

	// Stream states
	wire.RegisterVariant[StreamSearching]()
	wire.RegisterVariant[StreamIdle]()
	wire.RegisterVariant[StreamNotAvailable]()
	wire.RegisterVariant[StreamStreaming]()

	// Effects
	wire.RegisterVariant[PlayBeepPattern]()
	wire.RegisterVariant[TopLeftPress]()
	wire.RegisterVariant[TopRightPress]()
	wire.RegisterVariant[BottomLeftPress]()
	wire.RegisterVariant[BottomRightPress]()
	wire.RegisterVariant[ControlCenterComboPress]()
	wire.RegisterVariant[DrawerActionComboPress]()
	wire.RegisterVariant[TurnScreenOff]()
	wire.RegisterVariant[TurnScreenOn]()
	wire.RegisterVariant[MarkLap]()
	wire.RegisterVariant[SystemNotification]()
	wire.RegisterVariant[InRideAlert]()
	wire.RegisterVariant[ApplyLauncherBackground]()
	wire.RegisterVariant[RequestAnt]()
	wire.RegisterVariant[ReleaseAnt]()

	// Device events
	wire.RegisterVariant[OnConnectionStatus]()
	wire.RegisterVariant[OnDataPoint]()
	wire.RegisterVariant[OnBatteryStatus]()
	wire.RegisterVariant[OnManufacturerInfo]()

	// View events
	wire.RegisterVariant[UpdateGraphicConfig]()
	wire.RegisterVariant[UpdateNumericConfig]()
}
