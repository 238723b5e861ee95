package wire

// Method identifies a call on the host ABI.
type Method uint8

// Methods served by the host (system controller).
const (
	// MethodHello opens a session; Args carry the caller package and
	// handshake protocol.
	MethodHello Method = 1

	// MethodLibVersion returns the peer's library version in Reply.Text.
	MethodLibVersion Method = 2

	// MethodInfo returns the host's KarooInfo as a bundle.
	MethodInfo Method = 3

	// MethodDispatchEffect delivers an effect bundle (one-way).
	MethodDispatchEffect Method = 4

	// MethodAddEventConsumer starts event delivery for Target (one-way).
	MethodAddEventConsumer Method = 5

	// MethodRemoveEventConsumer stops event delivery for Target (one-way).
	MethodRemoveEventConsumer Method = 6
)

// Methods served by an extension.
const (
	MethodStartScan        Method = 20
	MethodStopScan         Method = 21
	MethodConnectDevice    Method = 22
	MethodDisconnectDevice Method = 23
	MethodStartStream      Method = 24
	MethodStopStream       Method = 25
	MethodStartView        Method = 26
	MethodStopView         Method = 27
)

// String returns the method name.
func (m Method) String() string {
	switch m {
	case MethodHello:
		return "Hello"
	case MethodLibVersion:
		return "LibVersion"
	case MethodInfo:
		return "Info"
	case MethodDispatchEffect:
		return "DispatchEffect"
	case MethodAddEventConsumer:
		return "AddEventConsumer"
	case MethodRemoveEventConsumer:
		return "RemoveEventConsumer"
	case MethodStartScan:
		return "StartScan"
	case MethodStopScan:
		return "StopScan"
	case MethodConnectDevice:
		return "ConnectDevice"
	case MethodDisconnectDevice:
		return "DisconnectDevice"
	case MethodStartStream:
		return "StartStream"
	case MethodStopStream:
		return "StopStream"
	case MethodStartView:
		return "StartView"
	case MethodStopView:
		return "StopView"
	default:
		return "Unknown"
	}
}

// IsValid returns true if the method is known.
func (m Method) IsValid() bool {
	return (m >= MethodHello && m <= MethodRemoveEventConsumer) ||
		(m >= MethodStartScan && m <= MethodStopView)
}
