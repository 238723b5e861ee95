package binder

import (
	"context"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jpweytjens/karoo-ext/pkg/model"
	"github.com/jpweytjens/karoo-ext/pkg/transport"
	"github.com/jpweytjens/karoo-ext/pkg/version"
	"github.com/jpweytjens/karoo-ext/pkg/wire"
)

const waitTimeout = 2 * time.Second

func testConfig() transport.Config {
	cfg := transport.DefaultConfig()
	cfg.DisableKeepAlive = true
	cfg.CallTimeout = 2 * time.Second
	return cfg
}

// link returns a client peer connected to a server peer; serve installs the
// server's handlers before it starts.
func link(t *testing.T, serve func(*transport.Peer)) (client, server *transport.Peer) {
	t.Helper()
	ca, cb := net.Pipe()
	client = transport.NewPeer(ca, testConfig())
	server = transport.NewPeer(cb, testConfig())
	serve(server)
	client.Start()
	server.Start()
	t.Cleanup(func() {
		client.Abort()
		server.Abort()
	})
	return client, server
}

// fakeSystem is an in-memory SystemController.
type fakeSystem struct {
	mu        sync.Mutex
	info      model.KarooInfo
	addErr    error
	effects   []wire.Bundle
	consumers map[string]Handler
	params    map[string]wire.Bundle
	changed   chan struct{}
}

func newFakeSystem() *fakeSystem {
	return &fakeSystem{
		info:      model.KarooInfo{Serial: "K2-0042", HardwareType: model.HardwareK2},
		consumers: make(map[string]Handler),
		params:    make(map[string]wire.Bundle),
		changed:   make(chan struct{}, 64),
	}
}

func (s *fakeSystem) LibVersion() (string, error) { return "1.2.0", nil }

func (s *fakeSystem) Info() (model.KarooInfo, error) { return s.info, nil }

func (s *fakeSystem) DispatchEffect(b wire.Bundle) error {
	s.mu.Lock()
	s.effects = append(s.effects, b)
	s.mu.Unlock()
	s.changed <- struct{}{}
	return nil
}

func (s *fakeSystem) AddEventConsumer(id string, params wire.Bundle, h Handler) error {
	if s.addErr != nil {
		return s.addErr
	}
	s.mu.Lock()
	s.consumers[id] = h
	s.params[id] = params
	s.mu.Unlock()
	s.changed <- struct{}{}
	return nil
}

func (s *fakeSystem) RemoveEventConsumer(id string) error {
	s.mu.Lock()
	delete(s.consumers, id)
	s.mu.Unlock()
	s.changed <- struct{}{}
	return nil
}

func (s *fakeSystem) consumer(id string) (Handler, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	h, ok := s.consumers[id]
	return h, ok
}

func (s *fakeSystem) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.consumers)
}

func (s *fakeSystem) waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.After(waitTimeout)
	for !cond() {
		select {
		case <-s.changed:
		case <-deadline:
			t.Fatal("condition not reached")
		}
	}
}

// recordingHandler collects callbacks.
type recordingHandler struct {
	next     chan wire.Bundle
	errs     chan string
	complete chan struct{}
}

func newRecordingHandler() *recordingHandler {
	return &recordingHandler{
		next:     make(chan wire.Bundle, 16),
		errs:     make(chan string, 16),
		complete: make(chan struct{}, 1),
	}
}

func (h *recordingHandler) OnNext(b wire.Bundle) { h.next <- b }
func (h *recordingHandler) OnError(msg string)   { h.errs <- msg }
func (h *recordingHandler) OnComplete()          { h.complete <- struct{}{} }

func receive[T any](t *testing.T, ch <-chan T) T {
	t.Helper()
	select {
	case v := <-ch:
		return v
	case <-time.After(waitTimeout):
		t.Fatal("nothing received")
		var zero T
		return zero
	}
}

func TestSystemProxyQueries(t *testing.T) {
	sys := newFakeSystem()
	client, _ := link(t, func(p *transport.Peer) { ServeSystem(p, sys) })
	proxy := NewSystemProxy(client)

	v, err := proxy.LibVersion()
	require.NoError(t, err)
	assert.Equal(t, "1.2.0", v)

	info, err := proxy.Info()
	require.NoError(t, err)
	assert.Equal(t, sys.info, info)
}

func TestSystemProxyDispatchEffect(t *testing.T) {
	sys := newFakeSystem()
	client, _ := link(t, func(p *transport.Peer) { ServeSystem(p, sys) })
	proxy := NewSystemProxy(client)

	b, err := wire.Encode(model.Effect(model.MarkLap{}))
	require.NoError(t, err)
	require.NoError(t, proxy.DispatchEffect(b))

	sys.waitFor(t, func() bool {
		sys.mu.Lock()
		defer sys.mu.Unlock()
		return len(sys.effects) == 1
	})
	assert.Equal(t, model.MarkLap{}.VariantTag(), sys.effects[0].Tag())
}

func TestSystemProxyConsumer(t *testing.T) {
	sys := newFakeSystem()
	client, _ := link(t, func(p *transport.Peer) { ServeSystem(p, sys) })
	proxy := NewSystemProxy(client)

	params, err := wire.Encode(model.EventParams(model.RideStateParams{}))
	require.NoError(t, err)

	h := newRecordingHandler()
	require.NoError(t, proxy.AddEventConsumer("c1", params, h))

	remote, ok := sys.consumer("c1")
	require.True(t, ok)
	assert.Equal(t, params, sys.params["c1"])

	event, err := wire.Encode(model.Event(model.RideStatePaused{Auto: true}))
	require.NoError(t, err)
	remote.OnNext(event)
	remote.OnError("sensor gone")

	assert.Equal(t, event, receive(t, h.next))
	assert.Equal(t, "sensor gone", receive(t, h.errs))

	require.NoError(t, proxy.RemoveEventConsumer("c1"))
	_, ok = sys.consumer("c1")
	assert.False(t, ok)

	// Late callbacks for a removed consumer are dropped.
	remote.OnNext(event)
	select {
	case <-h.next:
		t.Fatal("callback delivered after removal")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestSystemProxyConsumerComplete(t *testing.T) {
	sys := newFakeSystem()
	client, _ := link(t, func(p *transport.Peer) { ServeSystem(p, sys) })
	proxy := NewSystemProxy(client)

	h := newRecordingHandler()
	require.NoError(t, proxy.AddEventConsumer("c1", nil, h))

	remote, _ := sys.consumer("c1")
	remote.OnComplete()
	receive(t, h.complete)
}

func TestSystemProxyAddErrors(t *testing.T) {
	t.Run("MissingID", func(t *testing.T) {
		sys := newFakeSystem()
		client, _ := link(t, func(p *transport.Peer) { ServeSystem(p, sys) })

		err := NewSystemProxy(client).AddEventConsumer("", nil, newRecordingHandler())
		assert.ErrorIs(t, err, ErrMissingID)
	})

	t.Run("Rejected", func(t *testing.T) {
		sys := newFakeSystem()
		sys.addErr = transport.ErrUnsupported
		client, _ := link(t, func(p *transport.Peer) { ServeSystem(p, sys) })

		err := NewSystemProxy(client).AddEventConsumer("c1", nil, newRecordingHandler())
		assert.ErrorIs(t, err, transport.ErrUnsupported)
	})

	t.Run("LinkDown", func(t *testing.T) {
		sys := newFakeSystem()
		client, server := link(t, func(p *transport.Peer) { ServeSystem(p, sys) })
		server.Abort()
		<-client.Done()

		err := NewSystemProxy(client).AddEventConsumer("c1", nil, newRecordingHandler())
		assert.ErrorIs(t, err, transport.ErrPeerClosed)
	})
}

func TestHello(t *testing.T) {
	sys := newFakeSystem()
	client, server := link(t, func(p *transport.Peer) { ServeSystem(p, sys) })

	v, err := Hello(context.Background(), client, "com.example.ext")
	require.NoError(t, err)
	assert.Equal(t, version.Lib, v)
	assert.Equal(t, "com.example.ext", server.Package())
}

func TestServeSystemRemovesConsumersOnLinkLoss(t *testing.T) {
	sys := newFakeSystem()
	client, _ := link(t, func(p *transport.Peer) { ServeSystem(p, sys) })
	proxy := NewSystemProxy(client)

	require.NoError(t, proxy.AddEventConsumer("c1", nil, newRecordingHandler()))
	require.NoError(t, proxy.AddEventConsumer("c2", nil, newRecordingHandler()))
	require.NoError(t, proxy.RemoveEventConsumer("c2"))
	require.Equal(t, 1, sys.count())

	client.Abort()
	sys.waitFor(t, func() bool { return sys.count() == 0 })
}

func TestHandlerFuncs(t *testing.T) {
	var got []string
	h := HandlerFuncs{
		Next:  func(b wire.Bundle) { got = append(got, "next:"+b[wire.KeyValue]) },
		Error: func(msg string) { got = append(got, "error:"+msg) },
	}
	h.OnNext(wire.Bundle{wire.KeyValue: "1"})
	h.OnError("x")
	h.OnComplete()
	HandlerFuncs{}.OnNext(nil)

	assert.Equal(t, []string{"next:1", "error:x"}, got)
}
