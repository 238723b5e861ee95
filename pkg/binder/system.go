package binder

import (
	"context"
	"errors"
	"fmt"

	"github.com/jpweytjens/karoo-ext/pkg/model"
	"github.com/jpweytjens/karoo-ext/pkg/transport"
	"github.com/jpweytjens/karoo-ext/pkg/version"
	"github.com/jpweytjens/karoo-ext/pkg/wire"
)

// ErrMissingID is returned for consumer calls without a target id.
var ErrMissingID = errors.New("missing consumer id")

// SystemProxy is a SystemController backed by a link to the host.
type SystemProxy struct {
	ep transport.Endpoint
}

// NewSystemProxy returns a controller that calls the host over ep.
func NewSystemProxy(ep transport.Endpoint) *SystemProxy {
	return &SystemProxy{ep: ep}
}

// LibVersion asks the host for its library version.
func (p *SystemProxy) LibVersion() (string, error) {
	r, err := p.ep.Call(context.Background(), &wire.Call{Method: wire.MethodLibVersion})
	if err != nil {
		return "", err
	}
	return r.Text, nil
}

// Info asks the host for its device description.
func (p *SystemProxy) Info() (model.KarooInfo, error) {
	r, err := p.ep.Call(context.Background(), &wire.Call{Method: wire.MethodInfo})
	if err != nil {
		return model.KarooInfo{}, err
	}
	return wire.Decode[model.KarooInfo](r.Bundle)
}

// DispatchEffect sends the effect without waiting for the host.
func (p *SystemProxy) DispatchEffect(b wire.Bundle) error {
	return p.ep.Notify(&wire.Call{Method: wire.MethodDispatchEffect, Bundle: b})
}

// AddEventConsumer routes callbacks for id to h, then registers the consumer
// with the host.
func (p *SystemProxy) AddEventConsumer(id string, params wire.Bundle, h Handler) error {
	if id == "" {
		return ErrMissingID
	}
	p.ep.OnCallback(id, func(cb *wire.Callback) {
		if cb.Callback == wire.CallbackComplete {
			p.ep.RemoveCallback(id)
		}
		deliver(h, cb)
	})

	_, err := p.ep.Call(context.Background(), &wire.Call{
		Method: wire.MethodAddEventConsumer,
		Target: id,
		Bundle: params,
	})
	if err != nil {
		p.ep.RemoveCallback(id)
		return err
	}
	return nil
}

// RemoveEventConsumer stops routing callbacks for id and tells the host.
func (p *SystemProxy) RemoveEventConsumer(id string) error {
	p.ep.RemoveCallback(id)
	_, err := p.ep.Call(context.Background(), &wire.Call{
		Method: wire.MethodRemoveEventConsumer,
		Target: id,
	})
	return err
}

// Hello introduces the extension package to the host and returns the
// host's library version.
func Hello(ctx context.Context, ep transport.Endpoint, pkg string) (string, error) {
	r, err := ep.Call(ctx, &wire.Call{
		Method: wire.MethodHello,
		Args:   []string{version.Lib},
		Bundle: wire.Bundle{wire.KeyPackage: pkg},
	})
	if err != nil {
		return "", fmt.Errorf("hello: %w", err)
	}
	return r.Text, nil
}

// ServeSystem exposes sys on p. Install it before p starts. Consumers the
// remote side added are removed from sys when the link goes down.
func ServeSystem(p *transport.Peer, sys SystemController) {
	logger := p.Logger()
	consumers := newTracked()

	p.Handle(wire.MethodHello, func(_ context.Context, c *wire.Call) (*wire.Reply, error) {
		pkg := c.Bundle[wire.KeyPackage]
		p.SetPackage(pkg)
		if err := version.CheckCompatible(c.Arg(0)); err != nil {
			logger.Warn("extension library version", "package", pkg, "error", err)
		}
		logger.Info("extension connected", "package", pkg, "lib", c.Arg(0))
		return &wire.Reply{Text: version.Lib}, nil
	})

	p.Handle(wire.MethodLibVersion, func(context.Context, *wire.Call) (*wire.Reply, error) {
		v, err := sys.LibVersion()
		if err != nil {
			return nil, err
		}
		return &wire.Reply{Text: v}, nil
	})

	p.Handle(wire.MethodInfo, func(context.Context, *wire.Call) (*wire.Reply, error) {
		info, err := sys.Info()
		if err != nil {
			return nil, err
		}
		b, err := wire.Encode(info)
		if err != nil {
			return nil, transport.Errorf(wire.StatusInternal, "encode info: %v", err)
		}
		return &wire.Reply{Bundle: b}, nil
	})

	p.Handle(wire.MethodDispatchEffect, func(_ context.Context, c *wire.Call) (*wire.Reply, error) {
		return nil, sys.DispatchEffect(c.Bundle)
	})

	p.Handle(wire.MethodAddEventConsumer, func(_ context.Context, c *wire.Call) (*wire.Reply, error) {
		id := c.Target
		if id == "" {
			return nil, transport.Errorf(wire.StatusInvalidArgs, "%v", ErrMissingID)
		}
		h := &remoteHandler{ep: p, id: id, logger: logger}
		if err := sys.AddEventConsumer(id, c.Bundle, h); err != nil {
			return nil, err
		}
		consumers.add(id, func() { _ = sys.RemoveEventConsumer(id) })
		return nil, nil
	})

	p.Handle(wire.MethodRemoveEventConsumer, func(_ context.Context, c *wire.Call) (*wire.Reply, error) {
		if c.Target == "" {
			return nil, transport.Errorf(wire.StatusInvalidArgs, "%v", ErrMissingID)
		}
		consumers.remove(c.Target)
		return nil, sys.RemoveEventConsumer(c.Target)
	})

	go func() {
		<-p.Done()
		stops := consumers.drain()
		if len(stops) > 0 {
			logger.Debug("removing consumers of closed link", "package", p.Package(), "count", len(stops))
		}
		for _, stop := range stops {
			stop()
		}
	}()
}

var _ SystemController = (*SystemProxy)(nil)
