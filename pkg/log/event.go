package log

import (
	"time"

	"github.com/jpweytjens/karoo-ext/pkg/wire"
)

// Event is one protocol trace record.
// CBOR encoding uses integer keys; exactly one payload pointer is set.
type Event struct {
	Timestamp    time.Time `cbor:"1,keyasint"`
	ConnectionID string    `cbor:"2,keyasint"`
	Direction    Direction `cbor:"3,keyasint"`
	Layer        Layer     `cbor:"4,keyasint"`
	Category     Category  `cbor:"5,keyasint"`

	// Side is the local end of the link.
	Side Side `cbor:"6,keyasint,omitempty"`

	// RemoteAddr is the peer socket address.
	RemoteAddr string `cbor:"7,keyasint,omitempty"`

	// Package is the extension package bound over this link, once known.
	Package string `cbor:"8,keyasint,omitempty"`

	Frame       *FrameEvent       `cbor:"10,keyasint,omitempty"`
	Message     *MessageEvent     `cbor:"11,keyasint,omitempty"`
	StateChange *StateChangeEvent `cbor:"12,keyasint,omitempty"`
	ControlMsg  *ControlMsgEvent  `cbor:"13,keyasint,omitempty"`
	Error       *ErrorEventData   `cbor:"14,keyasint,omitempty"`
}

// Target returns the consumer, emitter or handler id the event refers to,
// or "".
func (e Event) Target() string {
	switch {
	case e.Message != nil && e.Message.Target != "":
		return e.Message.Target
	case e.Message != nil:
		return e.Message.HandlerID
	case e.StateChange != nil:
		return e.StateChange.ID
	}
	return ""
}

// Direction indicates message flow.
type Direction uint8

const (
	DirectionIn  Direction = 0
	DirectionOut Direction = 1
)

// String returns the direction name.
func (d Direction) String() string {
	switch d {
	case DirectionIn:
		return "IN"
	case DirectionOut:
		return "OUT"
	default:
		return "UNKNOWN"
	}
}

// Layer is where an event was captured.
type Layer uint8

const (
	// LayerTransport sees length-prefixed frames.
	LayerTransport Layer = 0
	// LayerWire sees decoded calls, replies and callbacks.
	LayerWire Layer = 1
	// LayerBridge sees binding state, consumers, emitters and effects.
	LayerBridge Layer = 2
)

// String returns the layer name.
func (l Layer) String() string {
	switch l {
	case LayerTransport:
		return "TRANSPORT"
	case LayerWire:
		return "WIRE"
	case LayerBridge:
		return "BRIDGE"
	default:
		return "UNKNOWN"
	}
}

// Category classifies the event.
type Category uint8

const (
	CategoryMessage Category = 0
	CategoryControl Category = 1
	CategoryState   Category = 2
	CategoryError   Category = 3
)

// String returns the category name.
func (c Category) String() string {
	switch c {
	case CategoryMessage:
		return "MESSAGE"
	case CategoryControl:
		return "CONTROL"
	case CategoryState:
		return "STATE"
	case CategoryError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// Side is the local end of a link.
type Side uint8

const (
	// SideExtension is the extension process (system client, extension service).
	SideExtension Side = 0
	// SideHost is the host process (system controller, extension driver).
	SideHost Side = 1
)

// String returns the side name.
func (s Side) String() string {
	switch s {
	case SideExtension:
		return "EXTENSION"
	case SideHost:
		return "HOST"
	default:
		return "UNKNOWN"
	}
}

// FrameEvent captures raw frame bytes.
type FrameEvent struct {
	// Size includes the length prefix.
	Size      int    `cbor:"1,keyasint"`
	Data      []byte `cbor:"2,keyasint,omitempty"`
	Truncated bool   `cbor:"3,keyasint,omitempty"`
}

// MessageEvent captures a decoded RPC message or a bridge-level dispatch.
type MessageEvent struct {
	Kind      wire.MessageKind `cbor:"1,keyasint"`
	MessageID uint32           `cbor:"2,keyasint,omitempty"`

	// Calls only.
	Method *wire.Method `cbor:"3,keyasint,omitempty"`
	Target string       `cbor:"4,keyasint,omitempty"`

	// Replies only.
	Status *wire.Status `cbor:"5,keyasint,omitempty"`

	// Callbacks only.
	HandlerID string             `cbor:"6,keyasint,omitempty"`
	Callback  *wire.CallbackKind `cbor:"7,keyasint,omitempty"`

	// Tag is the variant tag of the bundle value, when it has one.
	Tag string `cbor:"8,keyasint,omitempty"`

	// Latency is the round trip of a two-way call, set on its reply.
	Latency *time.Duration `cbor:"9,keyasint,omitempty"`
}

// Label returns a short description such as "AddEventConsumer" or
// "onNext".
func (m *MessageEvent) Label() string {
	switch {
	case m.Method != nil:
		return m.Method.String()
	case m.Callback != nil:
		return m.Callback.String()
	case m.Status != nil:
		return m.Status.String()
	}
	return m.Kind.String()
}

// StateChangeEvent captures a lifecycle transition.
type StateChangeEvent struct {
	Entity   StateEntity `cbor:"1,keyasint"`
	OldState string      `cbor:"2,keyasint,omitempty"`
	NewState string      `cbor:"3,keyasint"`
	Reason   string      `cbor:"4,keyasint,omitempty"`

	// ID names the consumer or emitter for per-entity transitions.
	ID string `cbor:"5,keyasint,omitempty"`
}

// StateEntity is what changed state.
type StateEntity uint8

const (
	// StateEntityConnection is the socket link.
	StateEntityConnection StateEntity = 0
	// StateEntityBinding is the connection manager state machine.
	StateEntityBinding StateEntity = 1
	// StateEntityConsumer is a registration (attached, detached, removed).
	StateEntityConsumer StateEntity = 2
	// StateEntityEmitter is an extension emitter (started, stopped).
	StateEntityEmitter StateEntity = 3
)

// String returns the state entity name.
func (s StateEntity) String() string {
	switch s {
	case StateEntityConnection:
		return "CONNECTION"
	case StateEntityBinding:
		return "BINDING"
	case StateEntityConsumer:
		return "CONSUMER"
	case StateEntityEmitter:
		return "EMITTER"
	default:
		return "UNKNOWN"
	}
}

// ControlMsgEvent captures ping, pong and close.
type ControlMsgEvent struct {
	Type     ControlMsgType `cbor:"1,keyasint"`
	Sequence uint32         `cbor:"2,keyasint,omitempty"`
}

// ControlMsgType is the type of control message.
type ControlMsgType uint8

const (
	ControlMsgPing  ControlMsgType = 0
	ControlMsgPong  ControlMsgType = 1
	ControlMsgClose ControlMsgType = 2
)

// String returns the control message type name.
func (c ControlMsgType) String() string {
	switch c {
	case ControlMsgPing:
		return "PING"
	case ControlMsgPong:
		return "PONG"
	case ControlMsgClose:
		return "CLOSE"
	default:
		return "UNKNOWN"
	}
}

// ErrorEventData captures an error at any layer.
type ErrorEventData struct {
	Layer   Layer  `cbor:"1,keyasint"`
	Message string `cbor:"2,keyasint"`

	// Code is the wire status, if the error has one.
	Code *int `cbor:"3,keyasint,omitempty"`

	// Context describes the operation that failed.
	Context string `cbor:"4,keyasint,omitempty"`
}
