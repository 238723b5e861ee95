package model

import (
	"sort"

	"github.com/jpweytjens/karoo-ext/pkg/wire"
)

// Effect is a one-shot instruction dispatched to the host.
type Effect interface {
	wire.Variant
	isEffect()
}

// Tone is one step of a beep pattern. A nil Frequency is silence.
type Tone struct {
	Frequency  *int `json:"frequency,omitempty"`
	DurationMs int  `json:"durationMs"`
}

// Beep returns an audible tone.
func Beep(frequency, durationMs int) Tone {
	return Tone{Frequency: &frequency, DurationMs: durationMs}
}

// Rest returns a silent tone.
func Rest(durationMs int) Tone {
	return Tone{DurationMs: durationMs}
}

// PlayBeepPattern plays tones on the internal beeper.
type PlayBeepPattern struct {
	Tones []Tone `json:"tones"`
}

func (PlayBeepPattern) VariantTag() string { return tagPrefix + "PlayBeepPattern" }
func (PlayBeepPattern) isEffect()          {}

// HardwareAction simulates a physical button action.
type HardwareAction interface {
	Effect
	isHardwareAction()
}

type (
	// TopLeftPress is the page left button (A).
	TopLeftPress struct{}
	// TopRightPress is the page right button (B).
	TopRightPress struct{}
	// BottomLeftPress is the back button (C).
	BottomLeftPress struct{}
	// BottomRightPress is the accept button (D).
	BottomRightPress struct{}
	// ControlCenterComboPress is top left and top right together.
	ControlCenterComboPress struct{}
	// DrawerActionComboPress is bottom left and bottom right together.
	DrawerActionComboPress struct{}
)

const hwPrefix = tagPrefix + "PerformHardwareAction."

func (TopLeftPress) VariantTag() string            { return hwPrefix + "TopLeftPress" }
func (TopRightPress) VariantTag() string           { return hwPrefix + "TopRightPress" }
func (BottomLeftPress) VariantTag() string         { return hwPrefix + "BottomLeftPress" }
func (BottomRightPress) VariantTag() string        { return hwPrefix + "BottomRightPress" }
func (ControlCenterComboPress) VariantTag() string { return hwPrefix + "ControlCenterComboPress" }
func (DrawerActionComboPress) VariantTag() string  { return hwPrefix + "DrawerActionComboPress" }

func (TopLeftPress) isEffect()            {}
func (TopRightPress) isEffect()           {}
func (BottomLeftPress) isEffect()         {}
func (BottomRightPress) isEffect()        {}
func (ControlCenterComboPress) isEffect() {}
func (DrawerActionComboPress) isEffect()  {}

func (TopLeftPress) isHardwareAction()            {}
func (TopRightPress) isHardwareAction()           {}
func (BottomLeftPress) isHardwareAction()         {}
func (BottomRightPress) isHardwareAction()        {}
func (ControlCenterComboPress) isHardwareAction() {}
func (DrawerActionComboPress) isHardwareAction()  {}

// TurnScreenOff turns the screen off.
type TurnScreenOff struct{}

// TurnScreenOn turns the screen on.
type TurnScreenOn struct{}

// MarkLap starts a new lap.
type MarkLap struct{}

func (TurnScreenOff) VariantTag() string { return tagPrefix + "TurnScreenOff" }
func (TurnScreenOn) VariantTag() string  { return tagPrefix + "TurnScreenOn" }
func (MarkLap) VariantTag() string       { return tagPrefix + "MarkLap" }

func (TurnScreenOff) isEffect() {}
func (TurnScreenOn) isEffect()  {}
func (MarkLap) isEffect()       {}

// NotificationStyle controls how a system notification is presented.
type NotificationStyle string

const (
	StyleEvent NotificationStyle = "EVENT"
	StyleSetup NotificationStyle = "SETUP"
	StyleError NotificationStyle = "ERROR"
)

// SystemNotification posts a notification to the host's notification list.
type SystemNotification struct {
	ID           string             `json:"id"`
	Message      string             `json:"message"`
	Header       *string            `json:"header,omitempty"`
	Style        *NotificationStyle `json:"style,omitempty"`
	Action       *string            `json:"action,omitempty"`
	ActionIntent *string            `json:"actionIntent,omitempty"`
}

func (SystemNotification) VariantTag() string { return tagPrefix + "SystemNotification" }
func (SystemNotification) isEffect()          {}

// InRideAlert shows a transient alert over the ride screens.
type InRideAlert struct {
	ID              string  `json:"id"`
	Icon            string  `json:"icon"`
	Title           string  `json:"title"`
	Detail          *string `json:"detail,omitempty"`
	AutoDismissMs   *int64  `json:"autoDismissMs,omitempty"`
	BackgroundColor string  `json:"backgroundColor"`
	TextColor       string  `json:"textColor"`
}

func (InRideAlert) VariantTag() string { return tagPrefix + "InRideAlert" }
func (InRideAlert) isEffect()          {}

// ApplyLauncherBackground sets the launcher background image. A nil URL
// restores the default.
type ApplyLauncherBackground struct {
	URL *string `json:"url,omitempty"`
}

func (ApplyLauncherBackground) VariantTag() string { return tagPrefix + "ApplyLauncherBackground" }
func (ApplyLauncherBackground) isEffect()          {}

// AntResource names an ANT+ channel resource.
type AntResource string

// RequestAnt asks the host to release an ANT+ resource to the extension.
type RequestAnt struct {
	Resource AntResource `json:"resource"`
}

// ReleaseAnt hands an ANT+ resource back to the host.
type ReleaseAnt struct {
	Resource AntResource `json:"resource"`
}

func (RequestAnt) VariantTag() string { return tagPrefix + "RequestAnt" }
func (ReleaseAnt) VariantTag() string { return tagPrefix + "ReleaseAnt" }
func (RequestAnt) isEffect()          {}
func (ReleaseAnt) isEffect()          {}

// effectKeys maps stable short names to effects that take no arguments.
var effectKeys = map[string]func() Effect{
	"TopLeftPress":            func() Effect { return TopLeftPress{} },
	"TopRightPress":           func() Effect { return TopRightPress{} },
	"BottomLeftPress":         func() Effect { return BottomLeftPress{} },
	"BottomRightPress":        func() Effect { return BottomRightPress{} },
	"ControlCenterComboPress": func() Effect { return ControlCenterComboPress{} },
	"DrawerActionComboPress":  func() Effect { return DrawerActionComboPress{} },
	"TurnScreenOff":           func() Effect { return TurnScreenOff{} },
	"TurnScreenOn":            func() Effect { return TurnScreenOn{} },
	"MarkLap":                 func() Effect { return MarkLap{} },
}

// EffectByKey returns the argument-free effect registered under key.
func EffectByKey(key string) (Effect, bool) {
	ctor, ok := effectKeys[key]
	if !ok {
		return nil, false
	}
	return ctor(), true
}

// EffectKeys returns the keys accepted by EffectByKey, sorted.
func EffectKeys() []string {
	keys := make([]string, 0, len(effectKeys))
	for k := range effectKeys {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
