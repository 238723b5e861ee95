package binder

import (
	"log/slog"
	"sync"

	"github.com/jpweytjens/karoo-ext/pkg/transport"
	"github.com/jpweytjens/karoo-ext/pkg/wire"
)

// remoteHandler forwards handler calls to the other side of the link.
type remoteHandler struct {
	ep     transport.Endpoint
	id     string
	logger *slog.Logger
}

func (h *remoteHandler) OnNext(b wire.Bundle) {
	h.send(&wire.Callback{HandlerID: h.id, Callback: wire.CallbackNext, Bundle: b})
}

func (h *remoteHandler) OnError(msg string) {
	h.send(&wire.Callback{HandlerID: h.id, Callback: wire.CallbackError, Message: msg})
}

func (h *remoteHandler) OnComplete() {
	h.send(&wire.Callback{HandlerID: h.id, Callback: wire.CallbackComplete})
}

func (h *remoteHandler) send(cb *wire.Callback) {
	if err := h.ep.SendCallback(cb); err != nil {
		h.logger.Debug("callback not delivered", "handler", h.id, "callback", cb.Callback, "error", err)
	}
}

// tracked records the ids a stub installed so they can be torn down when the
// link dies.
type tracked struct {
	mu  sync.Mutex
	ids map[string]func()
}

func newTracked() *tracked {
	return &tracked{ids: make(map[string]func())}
}

func (t *tracked) add(id string, stop func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.ids[id] = stop
}

func (t *tracked) remove(id string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, ok := t.ids[id]
	delete(t.ids, id)
	return ok
}

func (t *tracked) drain() []func() {
	t.mu.Lock()
	defer t.mu.Unlock()
	stops := make([]func(), 0, len(t.ids))
	for id, stop := range t.ids {
		stops = append(stops, stop)
		delete(t.ids, id)
	}
	return stops
}

var _ Handler = (*remoteHandler)(nil)
