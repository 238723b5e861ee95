package extension

import (
	"context"
	"log/slog"
	"sync"

	"github.com/jpweytjens/karoo-ext/pkg/binder"
	"github.com/jpweytjens/karoo-ext/pkg/model"
	"github.com/jpweytjens/karoo-ext/pkg/wire"
)

// Emitter sends values of T to the host. It is safe for concurrent use.
// Nothing is sent after the emitter is cancelled or completed.
type Emitter[T any] struct {
	id     string
	h      binder.Handler
	logger *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc

	mu sync.Mutex
}

func newEmitter[T any](parent context.Context, id string, h binder.Handler, logger *slog.Logger) *Emitter[T] {
	ctx, cancel := context.WithCancel(parent)
	return &Emitter[T]{id: id, h: h, logger: logger, ctx: ctx, cancel: cancel}
}

// NewEmitter returns an emitter that forwards to h. The Service creates
// emitters for host requests; this is for tests and local pipelines.
func NewEmitter[T any](ctx context.Context, h binder.Handler) *Emitter[T] {
	return newEmitter[T](ctx, "", h, slog.Default())
}

// ID returns the host's id for the emitter.
func (e *Emitter[T]) ID() string { return e.id }

// Context is cancelled when the host stops the emitter or it completes.
func (e *Emitter[T]) Context() context.Context { return e.ctx }

// OnNext sends v.
func (e *Emitter[T]) OnNext(v T) {
	b, err := wire.Encode(v)
	if err != nil {
		e.logger.Warn("emitter value not encoded", "emitter", e.id, "error", err)
		return
	}
	e.send(func() { e.h.OnNext(b) })
}

// OnError reports err to the host. The emitter stays open.
func (e *Emitter[T]) OnError(err error) {
	e.send(func() { e.h.OnError(err.Error()) })
}

// OnComplete ends the stream and cancels the emitter.
func (e *Emitter[T]) OnComplete() {
	e.send(func() { e.h.OnComplete() })
	e.cancel()
}

// Cancel stops the emitter without telling the host.
func (e *Emitter[T]) Cancel() {
	e.cancel()
}

func (e *Emitter[T]) send(fn func()) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.ctx.Err() != nil {
		return
	}
	fn()
}

// ViewEmitter is the emitter of a graphical data type. Besides view events
// it sends rendered views.
type ViewEmitter struct {
	*Emitter[model.ViewEvent]
}

// UpdateView sends v to the host under the view key.
func (e *ViewEmitter) UpdateView(v View) {
	data, err := wire.EncodeJSON(v)
	if err != nil {
		e.logger.Warn("view not encoded", "emitter", e.id, "error", err)
		return
	}
	e.send(func() { e.h.OnNext(wire.Bundle{wire.KeyView: string(data)}) })
}

// canceller is any emitter held by the Service.
type canceller interface {
	Cancel()
}

var (
	_ canceller = (*Emitter[model.StreamState])(nil)
	_ canceller = (*ViewEmitter)(nil)
)
