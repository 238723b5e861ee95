package log

import (
	"time"

	"github.com/jpweytjens/karoo-ext/pkg/wire"
)

// Tracer stamps events with the identity of one link and forwards them to
// a Logger. The zero value and a nil Logger discard everything.
type Tracer struct {
	Logger       Logger
	ConnectionID string
	Side         Side
	RemoteAddr   string
	Package      string
}

// Enabled reports whether events are recorded.
func (t Tracer) Enabled() bool {
	return t.Logger != nil
}

// Emit fills in the link fields and logs the event.
func (t Tracer) Emit(e Event) {
	if t.Logger == nil {
		return
	}
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now()
	}
	if e.ConnectionID == "" {
		e.ConnectionID = t.ConnectionID
	}
	e.Side = t.Side
	if e.RemoteAddr == "" {
		e.RemoteAddr = t.RemoteAddr
	}
	if e.Package == "" {
		e.Package = t.Package
	}
	t.Logger.Log(e)
}

// State records a lifecycle transition of entity. id names the consumer or
// emitter and may be empty.
func (t Tracer) State(entity StateEntity, id, oldState, newState, reason string) {
	t.Emit(Event{
		Layer:    LayerBridge,
		Category: CategoryState,
		StateChange: &StateChangeEvent{
			Entity:   entity,
			ID:       id,
			OldState: oldState,
			NewState: newState,
			Reason:   reason,
		},
	})
}

// Connection records a link transition at the transport layer.
func (t Tracer) Connection(oldState, newState, reason string) {
	t.Emit(Event{
		Layer:    LayerTransport,
		Category: CategoryState,
		StateChange: &StateChangeEvent{
			Entity:   StateEntityConnection,
			OldState: oldState,
			NewState: newState,
			Reason:   reason,
		},
	})
}

// Control records a ping, pong or close.
func (t Tracer) Control(dir Direction, typ ControlMsgType, seq uint32) {
	t.Emit(Event{
		Direction:  dir,
		Layer:      LayerTransport,
		Category:   CategoryControl,
		ControlMsg: &ControlMsgEvent{Type: typ, Sequence: seq},
	})
}

// Message records a decoded message.
func (t Tracer) Message(dir Direction, layer Layer, msg *MessageEvent) {
	t.Emit(Event{
		Direction: dir,
		Layer:     layer,
		Category:  CategoryMessage,
		Message:   msg,
	})
}

// Error records a failure. Nil errors are ignored.
func (t Tracer) Error(layer Layer, context string, err error) {
	if err == nil {
		return
	}
	t.Emit(Event{
		Layer:    layer,
		Category: CategoryError,
		Error: &ErrorEventData{
			Layer:   layer,
			Message: err.Error(),
			Context: context,
		},
	})
}

// CallEvent describes a call.
func CallEvent(c *wire.Call) *MessageEvent {
	m := c.Method
	return &MessageEvent{
		Kind:      wire.KindCall,
		MessageID: c.MessageID,
		Method:    &m,
		Target:    c.Target,
		Tag:       c.Bundle.Tag(),
	}
}

// ReplyEvent describes a reply. latency may be zero when unknown.
func ReplyEvent(r *wire.Reply, latency time.Duration) *MessageEvent {
	s := r.Status
	ev := &MessageEvent{
		Kind:      wire.KindReply,
		MessageID: r.MessageID,
		Status:    &s,
		Tag:       r.Bundle.Tag(),
	}
	if latency > 0 {
		ev.Latency = &latency
	}
	return ev
}

// CallbackEvent describes a handler callback.
func CallbackEvent(cb *wire.Callback) *MessageEvent {
	k := cb.Callback
	return &MessageEvent{
		Kind:      wire.KindCallback,
		HandlerID: cb.HandlerID,
		Callback:  &k,
		Tag:       cb.Bundle.Tag(),
	}
}
