package wire

import (
	"fmt"
)

// MessageKind distinguishes the frames carried by the transport.
// It is always encoded under key 1.
type MessageKind uint8

const (
	KindCall     MessageKind = 1
	KindReply    MessageKind = 2
	KindCallback MessageKind = 3
	KindControl  MessageKind = 4
)

// String returns the message kind name.
func (k MessageKind) String() string {
	switch k {
	case KindCall:
		return "CALL"
	case KindReply:
		return "REPLY"
	case KindCallback:
		return "CALLBACK"
	case KindControl:
		return "CONTROL"
	default:
		return "UNKNOWN"
	}
}

// OneWayMessageID marks a call that expects no reply.
const OneWayMessageID uint32 = 0

// Call invokes a method on the peer.
//
// CBOR encoding:
//
//	{
//	  1: kind,       // 1
//	  2: messageId,  // uint32, 0 = one-way
//	  3: method,     // uint8
//	  4: target,     // consumer/emitter id, doubles as the handler id
//	  5: args,       // [text]
//	  6: bundle      // {text: text}
//	}
type Call struct {
	Kind      MessageKind `cbor:"1,keyasint"`
	MessageID uint32      `cbor:"2,keyasint,omitempty"`
	Method    Method      `cbor:"3,keyasint"`
	Target    string      `cbor:"4,keyasint,omitempty"`
	Args      []string    `cbor:"5,keyasint,omitempty"`
	Bundle    Bundle      `cbor:"6,keyasint,omitempty"`
}

// IsOneWay returns true if the caller does not wait for a reply.
func (c *Call) IsOneWay() bool {
	return c.MessageID == OneWayMessageID
}

// Arg returns the i-th argument or "" if absent.
func (c *Call) Arg(i int) string {
	if i < 0 || i >= len(c.Args) {
		return ""
	}
	return c.Args[i]
}

// Validate checks if the call is well formed.
func (c *Call) Validate() error {
	if !c.Method.IsValid() {
		return fmt.Errorf("invalid method: %d", c.Method)
	}
	return nil
}

// Reply answers a two-way Call.
//
// CBOR encoding:
//
//	{
//	  1: kind,       // 2
//	  2: messageId,  // matches the call
//	  3: status,     // uint8
//	  4: text,       // scalar result or error message
//	  5: bundle      // structured result
//	}
type Reply struct {
	Kind      MessageKind `cbor:"1,keyasint"`
	MessageID uint32      `cbor:"2,keyasint"`
	Status    Status      `cbor:"3,keyasint"`
	Text      string      `cbor:"4,keyasint,omitempty"`
	Bundle    Bundle      `cbor:"5,keyasint,omitempty"`
}

// CallbackKind identifies a handler notification.
type CallbackKind uint8

const (
	CallbackNext     CallbackKind = 1
	CallbackError    CallbackKind = 2
	CallbackComplete CallbackKind = 3
)

// String returns the callback kind name.
func (k CallbackKind) String() string {
	switch k {
	case CallbackNext:
		return "onNext"
	case CallbackError:
		return "onError"
	case CallbackComplete:
		return "onComplete"
	default:
		return "unknown"
	}
}

// Callback delivers a handler notification for a subscription or emitter.
//
// CBOR encoding:
//
//	{
//	  1: kind,       // 3
//	  2: handlerId,  // the Target of the call that installed the handler
//	  3: callback,   // 1=onNext 2=onError 3=onComplete
//	  4: bundle,     // onNext payload
//	  5: message     // onError message
//	}
type Callback struct {
	Kind      MessageKind  `cbor:"1,keyasint"`
	HandlerID string       `cbor:"2,keyasint"`
	Callback  CallbackKind `cbor:"3,keyasint"`
	Bundle    Bundle       `cbor:"4,keyasint,omitempty"`
	Message   string       `cbor:"5,keyasint,omitempty"`
}

// ControlType represents the type of control message.
type ControlType uint8

const (
	// ControlPing is sent to check connection liveness.
	ControlPing ControlType = 1

	// ControlPong is the response to a ping.
	ControlPong ControlType = 2

	// ControlClose initiates graceful connection close.
	ControlClose ControlType = 3
)

// String returns the control message type name.
func (t ControlType) String() string {
	switch t {
	case ControlPing:
		return "ping"
	case ControlPong:
		return "pong"
	case ControlClose:
		return "close"
	default:
		return "unknown"
	}
}

// ControlMessage represents a transport-level control message.
type ControlMessage struct {
	Kind     MessageKind `cbor:"1,keyasint"`
	Type     ControlType `cbor:"2,keyasint"`
	Sequence uint32      `cbor:"3,keyasint,omitempty"`
}
