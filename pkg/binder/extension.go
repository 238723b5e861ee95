package binder

import (
	"context"
	"log/slog"

	"github.com/jpweytjens/karoo-ext/pkg/transport"
	"github.com/jpweytjens/karoo-ext/pkg/wire"
)

// ExtensionProxy is an ExtensionService backed by a link to an extension.
// Start calls are one-way; a start that cannot be sent is reported to the
// handler through OnError.
type ExtensionProxy struct {
	ep     transport.Endpoint
	logger *slog.Logger
}

// NewExtensionProxy returns a service that drives the extension over ep.
// A nil logger uses slog.Default().
func NewExtensionProxy(ep transport.Endpoint, logger *slog.Logger) *ExtensionProxy {
	if logger == nil {
		logger = slog.Default()
	}
	return &ExtensionProxy{ep: ep, logger: logger}
}

// LibVersion returns the extension's library version, or "" if the call
// fails.
func (p *ExtensionProxy) LibVersion() string {
	r, err := p.ep.Call(context.Background(), &wire.Call{Method: wire.MethodLibVersion})
	if err != nil {
		p.logger.Warn("extension lib version", "error", err)
		return ""
	}
	return r.Text
}

func (p *ExtensionProxy) StartScan(id string, h Handler) {
	p.start(&wire.Call{Method: wire.MethodStartScan, Target: id}, h)
}

func (p *ExtensionProxy) StopScan(id string) {
	p.stop(wire.MethodStopScan, id)
}

func (p *ExtensionProxy) ConnectDevice(id, uid string, h Handler) {
	p.start(&wire.Call{Method: wire.MethodConnectDevice, Target: id, Args: []string{uid}}, h)
}

func (p *ExtensionProxy) DisconnectDevice(id string) {
	p.stop(wire.MethodDisconnectDevice, id)
}

func (p *ExtensionProxy) StartStream(id, typeID string, h Handler) {
	p.start(&wire.Call{Method: wire.MethodStartStream, Target: id, Args: []string{typeID}}, h)
}

func (p *ExtensionProxy) StopStream(id string) {
	p.stop(wire.MethodStopStream, id)
}

func (p *ExtensionProxy) StartView(id, typeID string, config wire.Bundle, h Handler) {
	p.start(&wire.Call{Method: wire.MethodStartView, Target: id, Args: []string{typeID}, Bundle: config}, h)
}

func (p *ExtensionProxy) StopView(id string) {
	p.stop(wire.MethodStopView, id)
}

func (p *ExtensionProxy) start(c *wire.Call, h Handler) {
	id := c.Target
	p.ep.OnCallback(id, func(cb *wire.Callback) {
		if cb.Callback == wire.CallbackComplete {
			p.ep.RemoveCallback(id)
		}
		deliver(h, cb)
	})
	if err := p.ep.Notify(c); err != nil {
		p.ep.RemoveCallback(id)
		p.logger.Warn("start not sent", "method", c.Method, "id", id, "error", err)
		h.OnError(err.Error())
	}
}

func (p *ExtensionProxy) stop(m wire.Method, id string) {
	p.ep.RemoveCallback(id)
	if err := p.ep.Notify(&wire.Call{Method: m, Target: id}); err != nil {
		p.logger.Debug("stop not sent", "method", m, "id", id, "error", err)
	}
}

// ServeExtension exposes svc on p. Install it before p starts. Everything the
// remote side started is stopped when the link goes down.
func ServeExtension(p *transport.Peer, svc ExtensionService) {
	logger := p.Logger()
	active := newTracked()

	p.Handle(wire.MethodLibVersion, func(context.Context, *wire.Call) (*wire.Reply, error) {
		return &wire.Reply{Text: svc.LibVersion()}, nil
	})

	starter := func(m wire.Method, stop func(id string), start func(c *wire.Call, h Handler)) {
		p.Handle(m, func(_ context.Context, c *wire.Call) (*wire.Reply, error) {
			if c.Target == "" {
				return nil, transport.Errorf(wire.StatusInvalidArgs, "%v", ErrMissingID)
			}
			id := c.Target
			active.add(id, func() { stop(id) })
			start(c, &remoteHandler{ep: p, id: id, logger: logger})
			return nil, nil
		})
	}
	stopper := func(m wire.Method, stop func(id string)) {
		p.Handle(m, func(_ context.Context, c *wire.Call) (*wire.Reply, error) {
			if active.remove(c.Target) {
				stop(c.Target)
			}
			return nil, nil
		})
	}

	starter(wire.MethodStartScan, svc.StopScan, func(c *wire.Call, h Handler) {
		svc.StartScan(c.Target, h)
	})
	stopper(wire.MethodStopScan, svc.StopScan)

	starter(wire.MethodConnectDevice, svc.DisconnectDevice, func(c *wire.Call, h Handler) {
		svc.ConnectDevice(c.Target, c.Arg(0), h)
	})
	stopper(wire.MethodDisconnectDevice, svc.DisconnectDevice)

	starter(wire.MethodStartStream, svc.StopStream, func(c *wire.Call, h Handler) {
		svc.StartStream(c.Target, c.Arg(0), h)
	})
	stopper(wire.MethodStopStream, svc.StopStream)

	starter(wire.MethodStartView, svc.StopView, func(c *wire.Call, h Handler) {
		svc.StartView(c.Target, c.Arg(0), c.Bundle, h)
	})
	stopper(wire.MethodStopView, svc.StopView)

	go func() {
		<-p.Done()
		for _, stop := range active.drain() {
			stop()
		}
	}()
}

var _ ExtensionService = (*ExtensionProxy)(nil)
