package model

import (
	"errors"
	"reflect"

	"github.com/jpweytjens/karoo-ext/pkg/wire"
)

// Event is a value the host delivers to a consumer.
type Event interface {
	wire.Variant
	isEvent()
}

// EventParams selects what a consumer wants to receive.
type EventParams interface {
	wire.Variant
	isEventParams()
}

// ErrNoDefaultParams is returned for event types that need explicit params.
var ErrNoDefaultParams = errors.New("event type has no default params")

// RideState is the recording state of the current ride. A consumer receives
// the current state on registration and every change after that.
type RideState interface {
	Event
	isRideState()
}

// RideStateIdle means recording has not started or has finished.
type RideStateIdle struct{}

// RideStateRecording means the ride is actively recording.
type RideStateRecording struct{}

// RideStatePaused means the ride is paused; Auto is set when auto-pause
// triggered it.
type RideStatePaused struct {
	Auto bool `json:"auto"`
}

func (RideStateIdle) VariantTag() string      { return tagPrefix + "RideState.Idle" }
func (RideStateRecording) VariantTag() string { return tagPrefix + "RideState.Recording" }
func (RideStatePaused) VariantTag() string    { return tagPrefix + "RideState.Paused" }

func (RideStateIdle) isEvent()      {}
func (RideStateRecording) isEvent() {}
func (RideStatePaused) isEvent()    {}

func (RideStateIdle) isRideState()      {}
func (RideStateRecording) isRideState() {}
func (RideStatePaused) isRideState()    {}

// Lap is delivered on every lap change of the current ride.
type Lap struct {
	Number     int    `json:"number"`
	DurationMs int64  `json:"durationMs"`
	Trigger    string `json:"trigger"`
}

func (Lap) VariantTag() string { return tagPrefix + "Lap" }
func (Lap) isEvent()           {}

// OnStreamState carries the state of a data type stream requested with
// StartStreaming.
type OnStreamState struct {
	State StreamState `json:"state"`
}

func (OnStreamState) VariantTag() string { return tagPrefix + "OnStreamState" }
func (OnStreamState) isEvent()           {}

// UnitType is a unit system preference.
type UnitType string

const (
	UnitMetric   UnitType = "METRIC"
	UnitImperial UnitType = "IMPERIAL"
)

// PreferredUnit holds the rider's unit preferences per quantity.
type PreferredUnit struct {
	Distance    UnitType `json:"distance"`
	Elevation   UnitType `json:"elevation"`
	Temperature UnitType `json:"temperature"`
	Weight      UnitType `json:"weight"`
}

// Zone is an inclusive training zone range.
type Zone struct {
	Min int `json:"min"`
	Max int `json:"max"`
}

// UserProfile is the rider profile configured on the host.
type UserProfile struct {
	Weight         float64       `json:"weight"`
	PreferredUnit  PreferredUnit `json:"preferredUnit"`
	MaxHR          int           `json:"maxHr"`
	RestingHR      int           `json:"restingHr"`
	HeartRateZones []Zone        `json:"heartRateZones"`
	FTP            int           `json:"ftp"`
	PowerZones     []Zone        `json:"powerZones"`
}

func (UserProfile) VariantTag() string { return tagPrefix + "UserProfile" }
func (UserProfile) isEvent()           {}

// MetersPerUnit returns the length of one distance unit (km or mi) in
// meters for the profile's distance preference.
func (p UserProfile) MetersPerUnit() float64 {
	if p.PreferredUnit.Distance == UnitImperial {
		return 1609.344
	}
	return 1000
}

// RideStateParams requests RideState events.
type RideStateParams struct{}

// LapParams requests Lap events.
type LapParams struct{}

// UserProfileParams requests UserProfile events.
type UserProfileParams struct{}

// StartStreaming requests OnStreamState events for one data type.
type StartStreaming struct {
	DataTypeID string `json:"dataTypeId"`
}

func (RideStateParams) VariantTag() string   { return tagPrefix + "RideState.Params" }
func (LapParams) VariantTag() string         { return tagPrefix + "Lap.Params" }
func (UserProfileParams) VariantTag() string { return tagPrefix + "UserProfile.Params" }
func (StartStreaming) VariantTag() string    { return tagPrefix + "OnStreamState.StartStreaming" }

func (RideStateParams) isEventParams()   {}
func (LapParams) isEventParams()         {}
func (UserProfileParams) isEventParams() {}
func (StartStreaming) isEventParams()    {}

var (
	rideStateType   = reflect.TypeFor[RideState]()
	lapType         = reflect.TypeFor[Lap]()
	userProfileType = reflect.TypeFor[UserProfile]()
)

// DefaultParams returns the params for event types that need no
// configuration. OnStreamState always needs StartStreaming.
func DefaultParams[T Event]() (EventParams, error) {
	t := reflect.TypeFor[T]()
	switch {
	case t.Implements(rideStateType):
		return RideStateParams{}, nil
	case t == lapType:
		return LapParams{}, nil
	case t == userProfileType:
		return UserProfileParams{}, nil
	default:
		return nil, ErrNoDefaultParams
	}
}
