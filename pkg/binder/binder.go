package binder

import (
	"github.com/jpweytjens/karoo-ext/pkg/model"
	"github.com/jpweytjens/karoo-ext/pkg/wire"
)

// SystemController is the host surface an extension binds to.
type SystemController interface {
	// LibVersion returns the host's SDK library version.
	LibVersion() (string, error)

	// Info describes the device the host runs on.
	Info() (model.KarooInfo, error)

	// DispatchEffect delivers a one-shot effect.
	DispatchEffect(b wire.Bundle) error

	// AddEventConsumer installs h under id. Events for params arrive via
	// h.OnNext until the consumer is removed.
	AddEventConsumer(id string, params wire.Bundle, h Handler) error

	// RemoveEventConsumer uninstalls the consumer registered under id.
	RemoveEventConsumer(id string) error
}

// Handler receives a stream of bundles.
type Handler interface {
	OnNext(b wire.Bundle)
	OnError(msg string)
	OnComplete()
}

// ExtensionService is the surface an extension exposes to the host. Every
// Start has a matching Stop keyed by the same id.
type ExtensionService interface {
	LibVersion() string

	StartScan(id string, h Handler)
	StopScan(id string)

	ConnectDevice(id, uid string, h Handler)
	DisconnectDevice(id string)

	StartStream(id, typeID string, h Handler)
	StopStream(id string)

	StartView(id, typeID string, config wire.Bundle, h Handler)
	StopView(id string)
}

// HandlerFuncs adapts plain functions to Handler. Nil fields are skipped.
type HandlerFuncs struct {
	Next     func(b wire.Bundle)
	Error    func(msg string)
	Complete func()
}

func (f HandlerFuncs) OnNext(b wire.Bundle) {
	if f.Next != nil {
		f.Next(b)
	}
}

func (f HandlerFuncs) OnError(msg string) {
	if f.Error != nil {
		f.Error(msg)
	}
}

func (f HandlerFuncs) OnComplete() {
	if f.Complete != nil {
		f.Complete()
	}
}

// deliver routes an inbound callback to h.
func deliver(h Handler, cb *wire.Callback) {
	switch cb.Callback {
	case wire.CallbackNext:
		h.OnNext(cb.Bundle)
	case wire.CallbackError:
		h.OnError(cb.Message)
	case wire.CallbackComplete:
		h.OnComplete()
	}
}

var _ Handler = HandlerFuncs{}
