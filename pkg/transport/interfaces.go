package transport

import (
	"context"

	"github.com/jpweytjens/karoo-ext/pkg/wire"
)

// Endpoint is the RPC surface the binder layer needs from a link.
type Endpoint interface {
	Call(ctx context.Context, call *wire.Call) (*wire.Reply, error)
	Notify(call *wire.Call) error
	SendCallback(cb *wire.Callback) error

	Handle(m wire.Method, fn HandlerFunc)
	OnCallback(handlerID string, fn CallbackFunc)
	RemoveCallback(handlerID string)

	Done() <-chan struct{}
	Close() error
}

// FrameReadWriter reads and writes length-prefixed frames.
type FrameReadWriter interface {
	ReadFrame() ([]byte, error)
	WriteFrame(data []byte) error
}

var (
	_ Endpoint        = (*Peer)(nil)
	_ FrameReadWriter = (*Framer)(nil)
)
