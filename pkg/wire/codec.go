package wire

import (
	"fmt"
	"io"

	"github.com/fxamacker/cbor/v2"
)

// encMode is the CBOR encoder mode for frames.
// Configured for deterministic encoding with integer keys.
var encMode cbor.EncMode

// decMode is the CBOR decoder mode for frames.
var decMode cbor.DecMode

func init() {
	var err error

	encOpts := cbor.EncOptions{
		Sort:          cbor.SortCanonical,
		IndefLength:   cbor.IndefLengthForbidden,
		NilContainers: cbor.NilContainerAsNull,
		Time:          cbor.TimeUnix,
	}
	encMode, err = encOpts.EncMode()
	if err != nil {
		panic(fmt.Sprintf("failed to create CBOR encoder mode: %v", err))
	}

	// Lenient for forward compatibility
	decOpts := cbor.DecOptions{
		DupMapKey:         cbor.DupMapKeyQuiet,
		IndefLength:       cbor.IndefLengthAllowed,
		ExtraReturnErrors: cbor.ExtraDecErrorNone,
	}
	decMode, err = decOpts.DecMode()
	if err != nil {
		panic(fmt.Sprintf("failed to create CBOR decoder mode: %v", err))
	}
}

// Marshal encodes a value to CBOR bytes.
func Marshal(v any) ([]byte, error) {
	return encMode.Marshal(v)
}

// Unmarshal decodes CBOR bytes into a value.
func Unmarshal(data []byte, v any) error {
	return decMode.Unmarshal(data, v)
}

// NewEncoder creates a new CBOR encoder that writes to w.
func NewEncoder(w io.Writer) *cbor.Encoder {
	return encMode.NewEncoder(w)
}

// NewDecoder creates a new CBOR decoder that reads from r.
func NewDecoder(r io.Reader) *cbor.Decoder {
	return decMode.NewDecoder(r)
}

// PeekKind returns the kind of an encoded message without decoding the rest.
func PeekKind(data []byte) (MessageKind, error) {
	var peek struct {
		Kind MessageKind `cbor:"1,keyasint"`
	}
	if err := Unmarshal(data, &peek); err != nil {
		return 0, fmt.Errorf("failed to peek message: %w", err)
	}
	if peek.Kind < KindCall || peek.Kind > KindControl {
		return 0, fmt.Errorf("unknown message kind: %d", peek.Kind)
	}
	return peek.Kind, nil
}

// EncodeCall encodes a call message to CBOR bytes.
func EncodeCall(c *Call) ([]byte, error) {
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("invalid call: %w", err)
	}
	c.Kind = KindCall
	return Marshal(c)
}

// DecodeCall decodes CBOR bytes into a call message.
func DecodeCall(data []byte) (*Call, error) {
	var c Call
	if err := Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("failed to decode call: %w", err)
	}
	if c.Kind != KindCall {
		return nil, fmt.Errorf("not a call message: kind=%s", c.Kind)
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("invalid call: %w", err)
	}
	return &c, nil
}

// EncodeReply encodes a reply message to CBOR bytes.
func EncodeReply(r *Reply) ([]byte, error) {
	r.Kind = KindReply
	return Marshal(r)
}

// DecodeReply decodes CBOR bytes into a reply message.
func DecodeReply(data []byte) (*Reply, error) {
	var r Reply
	if err := Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("failed to decode reply: %w", err)
	}
	if r.Kind != KindReply {
		return nil, fmt.Errorf("not a reply message: kind=%s", r.Kind)
	}
	return &r, nil
}

// EncodeCallback encodes a callback message to CBOR bytes.
func EncodeCallback(cb *Callback) ([]byte, error) {
	if cb.HandlerID == "" {
		return nil, fmt.Errorf("callback without handler id")
	}
	cb.Kind = KindCallback
	return Marshal(cb)
}

// DecodeCallback decodes CBOR bytes into a callback message.
func DecodeCallback(data []byte) (*Callback, error) {
	var cb Callback
	if err := Unmarshal(data, &cb); err != nil {
		return nil, fmt.Errorf("failed to decode callback: %w", err)
	}
	if cb.Kind != KindCallback {
		return nil, fmt.Errorf("not a callback message: kind=%s", cb.Kind)
	}
	return &cb, nil
}

// EncodeControlMessage encodes a control message (ping/pong/close) to CBOR bytes.
func EncodeControlMessage(msg *ControlMessage) ([]byte, error) {
	msg.Kind = KindControl
	return Marshal(msg)
}

// DecodeControlMessage decodes CBOR bytes into a control message.
func DecodeControlMessage(data []byte) (*ControlMessage, error) {
	var msg ControlMessage
	if err := Unmarshal(data, &msg); err != nil {
		return nil, fmt.Errorf("failed to decode control message: %w", err)
	}
	if msg.Kind != KindControl {
		return nil, fmt.Errorf("not a control message: kind=%s", msg.Kind)
	}
	return &msg, nil
}
