package karoo

import (
	"sync"

	"github.com/google/uuid"

	"github.com/jpweytjens/karoo-ext/pkg/binder"
	"github.com/jpweytjens/karoo-ext/pkg/log"
)

// Listener is a registry entry.
//
// Register is called with the live controller each time the host connects.
// Unregister is called with nil when the host goes away, and with the
// controller it was registered with when the registration is removed while
// attached. Calls for one listener never overlap. Both may add or remove
// consumers, including their own registration.
type Listener interface {
	ID() string
	Register(sc binder.SystemController)
	Unregister(sc binder.SystemController)
}

// ListenerFuncs adapts plain functions to Listener. Nil fields are skipped.
type ListenerFuncs struct {
	Key          string
	OnRegister   func(sc binder.SystemController)
	OnUnregister func(sc binder.SystemController)
}

func (l ListenerFuncs) ID() string { return l.Key }

func (l ListenerFuncs) Register(sc binder.SystemController) {
	if l.OnRegister != nil {
		l.OnRegister(sc)
	}
}

func (l ListenerFuncs) Unregister(sc binder.SystemController) {
	if l.OnUnregister != nil {
		l.OnUnregister(sc)
	}
}

// registration tracks one listener's attachment. Callbacks run without mu
// held; the goroutine that sets busy runs them until the registration
// matches the system state, so other callers only record what changed.
type registration struct {
	listener Listener

	mu       sync.Mutex
	busy     bool
	removed  bool
	attached bool
	handle   binder.SystemController
	epoch    uint64
}

func (r *registration) markRemoved() {
	r.mu.Lock()
	r.removed = true
	r.mu.Unlock()
}

// NewID returns a fresh consumer id.
func NewID() string {
	return uuid.NewString()
}

// AddConsumer registers l and returns its id. The first consumer binds the
// host; if the host is already connected l is attached before AddConsumer
// returns. A consumer with the same id is replaced.
func (s *System) AddConsumer(l Listener) string {
	id := l.ID()
	reg := &registration{listener: l}

	s.demandMu.Lock()
	s.mu.Lock()
	old := s.consumers[id]
	s.consumers[id] = reg
	s.mu.Unlock()

	if old != nil {
		old.markRemoved()
	}
	if !s.bound {
		s.bound = true
		if err := s.mgr.Bind(); err != nil {
			s.logger.Warn("bind failed", "error", err)
		}
	}
	s.demandMu.Unlock()

	if old != nil {
		s.settle(old)
	}
	s.tracer.State(log.StateEntityConsumer, id, "", "ADDED", "")
	s.settle(reg)
	return id
}

// RemoveConsumer unregisters the consumer with id. Removing the last
// consumer releases the bind. Unknown ids are ignored.
func (s *System) RemoveConsumer(id string) {
	s.demandMu.Lock()
	s.mu.Lock()
	reg, ok := s.consumers[id]
	if ok {
		delete(s.consumers, id)
	}
	s.mu.Unlock()
	if ok {
		reg.markRemoved()
	}
	s.demandMu.Unlock()

	if !ok {
		return
	}
	s.settle(reg)
	s.tracer.State(log.StateEntityConsumer, id, "", "REMOVED", "")
	s.release()
}

// release unbinds once the registry is empty.
func (s *System) release() {
	s.demandMu.Lock()
	defer s.demandMu.Unlock()

	s.mu.Lock()
	empty := len(s.consumers) == 0
	s.mu.Unlock()
	if !empty || !s.bound {
		return
	}
	s.bound = false
	s.mgr.Unbind()

	// The manager reports the release asynchronously; consumers added
	// before that must not attach to the released controller.
	s.mu.Lock()
	s.handle = nil
	s.epoch++
	s.mu.Unlock()
}

// Consumers returns the number of registered consumers.
func (s *System) Consumers() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.consumers)
}

// settle brings reg in line with the live controller. A registration
// attached under an older epoch is unregistered with nil first; a removed
// one is unregistered from the controller it was attached to. If another
// goroutine is already settling reg, that goroutine picks up the change.
func (s *System) settle(reg *registration) {
	id := reg.listener.ID()

	reg.mu.Lock()
	if reg.busy {
		reg.mu.Unlock()
		return
	}
	reg.busy = true

	for {
		s.mu.Lock()
		h, epoch := s.handle, s.epoch
		s.mu.Unlock()

		switch {
		case reg.attached && reg.removed:
			sc := reg.handle
			reg.attached, reg.handle = false, nil
			reg.mu.Unlock()

			s.tracer.State(log.StateEntityConsumer, id, "ATTACHED", "DETACHED", "removed")
			s.safely(id, "unregister", func() { reg.listener.Unregister(sc) })

		case reg.attached && reg.epoch != epoch:
			reg.attached, reg.handle = false, nil
			reg.mu.Unlock()

			s.tracer.State(log.StateEntityConsumer, id, "ATTACHED", "DETACHED", "host disconnected")
			s.safely(id, "unregister", func() { reg.listener.Unregister(nil) })

		case !reg.attached && !reg.removed && h != nil:
			reg.attached, reg.handle, reg.epoch = true, h, epoch
			reg.mu.Unlock()

			s.tracer.State(log.StateEntityConsumer, id, "DETACHED", "ATTACHED", "")
			s.safely(id, "register", func() { reg.listener.Register(h) })

		default:
			reg.busy = false
			reg.mu.Unlock()
			return
		}
		reg.mu.Lock()
	}
}

// safely runs a listener callback, isolating its panics.
func (s *System) safely(id, op string, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("consumer callback panic", "consumer", id, "op", op, "panic", r)
		}
	}()
	fn()
}

// RegisterConnectionListener calls fn with true on every connect and false
// on every disconnect, until the returned id is removed. Registering a
// listener binds the host like any other consumer. fn may remove its own
// id; it is not called with false for that removal.
func (s *System) RegisterConnectionListener(fn func(connected bool)) string {
	return s.AddConsumer(ListenerFuncs{
		Key:          NewID(),
		OnRegister:   func(binder.SystemController) { fn(true) },
		OnUnregister: func(sc binder.SystemController) {
			if sc == nil {
				fn(false)
			}
		},
	})
}

// Connect is RegisterConnectionListener.
func (s *System) Connect(fn func(connected bool)) string {
	return s.RegisterConnectionListener(fn)
}

var _ Listener = ListenerFuncs{}
