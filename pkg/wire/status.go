package wire

// Status represents a reply status code.
type Status uint8

const (
	// StatusOK indicates the call completed successfully.
	StatusOK Status = 0

	// StatusUnknownMethod indicates the peer does not serve the method.
	StatusUnknownMethod Status = 1

	// StatusInvalidArgs indicates missing or malformed arguments.
	StatusInvalidArgs Status = 2

	// StatusUnsupported indicates the peer understood but cannot perform
	// the call (e.g. an effect kind the hardware lacks).
	StatusUnsupported Status = 3

	// StatusNotConnected indicates the peer's own upstream is unavailable.
	StatusNotConnected Status = 4

	// StatusInternal indicates a failure inside the peer.
	StatusInternal Status = 5
)

// String returns the status name.
func (s Status) String() string {
	switch s {
	case StatusOK:
		return "OK"
	case StatusUnknownMethod:
		return "UNKNOWN_METHOD"
	case StatusInvalidArgs:
		return "INVALID_ARGS"
	case StatusUnsupported:
		return "UNSUPPORTED"
	case StatusNotConnected:
		return "NOT_CONNECTED"
	case StatusInternal:
		return "INTERNAL"
	default:
		return "UNKNOWN"
	}
}

// IsSuccess returns true if the status indicates success.
func (s Status) IsSuccess() bool {
	return s == StatusOK
}
