package wire

import (
	"reflect"
	"testing"
)

func TestCallRoundTrip(t *testing.T) {
	in := &Call{
		MessageID: 7,
		Method:    MethodStartStream,
		Target:    "emitter-1",
		Args:      []string{"TYPE_EXT::sample::power-hr"},
		Bundle:    Bundle{KeyValue: `{"x":1}`},
	}

	data, err := EncodeCall(in)
	if err != nil {
		t.Fatalf("EncodeCall failed: %v", err)
	}

	kind, err := PeekKind(data)
	if err != nil {
		t.Fatalf("PeekKind failed: %v", err)
	}
	if kind != KindCall {
		t.Errorf("PeekKind = %s, want CALL", kind)
	}

	out, err := DecodeCall(data)
	if err != nil {
		t.Fatalf("DecodeCall failed: %v", err)
	}
	if !reflect.DeepEqual(in, out) {
		t.Errorf("round trip mismatch:\n got %+v\nwant %+v", out, in)
	}
	if out.Arg(0) != "TYPE_EXT::sample::power-hr" || out.Arg(1) != "" {
		t.Errorf("Arg accessors returned %q, %q", out.Arg(0), out.Arg(1))
	}
}

func TestOneWayCall(t *testing.T) {
	c := &Call{Method: MethodDispatchEffect}
	if !c.IsOneWay() {
		t.Error("call with messageId 0 should be one-way")
	}
}

func TestEncodeCallRejectsInvalidMethod(t *testing.T) {
	if _, err := EncodeCall(&Call{MessageID: 1, Method: 99}); err == nil {
		t.Error("expected error for invalid method")
	}
}

func TestReplyRoundTrip(t *testing.T) {
	in := &Reply{MessageID: 3, Status: StatusOK, Text: "1.0.0"}
	data, err := EncodeReply(in)
	if err != nil {
		t.Fatalf("EncodeReply failed: %v", err)
	}
	out, err := DecodeReply(data)
	if err != nil {
		t.Fatalf("DecodeReply failed: %v", err)
	}
	if !reflect.DeepEqual(in, out) {
		t.Errorf("round trip mismatch: got %+v want %+v", out, in)
	}
}

func TestDecodeWrongKind(t *testing.T) {
	data, err := EncodeReply(&Reply{MessageID: 1})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := DecodeCall(data); err == nil {
		t.Error("DecodeCall accepted a reply")
	}
	if _, err := DecodeCallback(data); err == nil {
		t.Error("DecodeCallback accepted a reply")
	}
}

func TestCallbackRoundTrip(t *testing.T) {
	in := &Callback{HandlerID: "c-1", Callback: CallbackError, Message: "boom"}
	data, err := EncodeCallback(in)
	if err != nil {
		t.Fatalf("EncodeCallback failed: %v", err)
	}
	out, err := DecodeCallback(data)
	if err != nil {
		t.Fatalf("DecodeCallback failed: %v", err)
	}
	if !reflect.DeepEqual(in, out) {
		t.Errorf("round trip mismatch: got %+v want %+v", out, in)
	}

	if _, err := EncodeCallback(&Callback{Callback: CallbackNext}); err == nil {
		t.Error("expected error for callback without handler id")
	}
}

func TestControlRoundTrip(t *testing.T) {
	for _, typ := range []ControlType{ControlPing, ControlPong, ControlClose} {
		t.Run(typ.String(), func(t *testing.T) {
			data, err := EncodeControlMessage(&ControlMessage{Type: typ, Sequence: 42})
			if err != nil {
				t.Fatal(err)
			}
			kind, err := PeekKind(data)
			if err != nil || kind != KindControl {
				t.Fatalf("PeekKind = %v, %v", kind, err)
			}
			msg, err := DecodeControlMessage(data)
			if err != nil {
				t.Fatal(err)
			}
			if msg.Type != typ || msg.Sequence != 42 {
				t.Errorf("got %+v", msg)
			}
		})
	}
}

func TestPeekKindRejectsGarbage(t *testing.T) {
	data, _ := Marshal(map[int]int{1: 9})
	if _, err := PeekKind(data); err == nil {
		t.Error("expected error for unknown kind")
	}
	if _, err := PeekKind([]byte{0xff}); err == nil {
		t.Error("expected error for invalid CBOR")
	}
}

func TestMethodString(t *testing.T) {
	for m := Method(0); m < 40; m++ {
		if m.IsValid() && m.String() == "Unknown" {
			t.Errorf("valid method %d has no name", m)
		}
		if !m.IsValid() && m.String() != "Unknown" {
			t.Errorf("invalid method %d named %q", m, m.String())
		}
	}
}
