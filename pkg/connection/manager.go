package connection

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/jpweytjens/karoo-ext/pkg/log"
)

// Manager errors.
var (
	ErrManagerClosed = errors.New("connection manager closed")
	ErrBindTimeout   = errors.New("bind timeout")
)

// State is the binding state.
type State uint8

const (
	// StateUnbound means no binding is wanted.
	StateUnbound State = iota

	// StateBinding means a bind request is outstanding.
	StateBinding

	// StateConnected means a handle is available.
	StateConnected

	// StateDisconnected means the binding was lost or failed and a rebind
	// is scheduled.
	StateDisconnected
)

// String returns a human-readable state name.
func (s State) String() string {
	switch s {
	case StateUnbound:
		return "UNBOUND"
	case StateBinding:
		return "BINDING"
	case StateConnected:
		return "CONNECTED"
	case StateDisconnected:
		return "DISCONNECTED"
	default:
		return "UNKNOWN"
	}
}

// ServiceConnection receives the outcome of one bind request.
type ServiceConnection[H any] interface {
	OnServiceConnected(h H)
	OnServiceDisconnected()
}

// Binder performs the platform bind.
//
// Bind starts a bind and may return before it completes; the result is
// reported through conn, possibly from another goroutine. A returned error
// counts as an immediate disconnect. ctx is cancelled when the manager
// abandons the attempt. Unbind releases whatever Bind acquired for conn.
type Binder[H any] interface {
	Bind(ctx context.Context, conn ServiceConnection[H]) error
	Unbind(conn ServiceConnection[H])
}

// Config configures a Manager.
type Config struct {
	// Name identifies the binding in logs and traces.
	Name string

	// Policy spaces rebind attempts. Nil selects FixedDelay(DefaultRebindDelay).
	Policy RebindPolicy

	// BindTimeout abandons a bind that has not connected in time and
	// schedules a rebind. Zero waits forever.
	BindTimeout time.Duration

	// Logger receives operational logs. Nil uses slog.Default().
	Logger *slog.Logger

	// Trace receives binding state changes.
	Trace log.Tracer
}

// DefaultConfig returns the default manager configuration.
func DefaultConfig() Config {
	return Config{
		Policy: FixedDelay(DefaultRebindDelay),
	}
}

// attempt is the ServiceConnection handed to the binder for one bind.
// Callbacks from an attempt that is no longer current are ignored.
type attempt[H any] struct {
	m      *Manager[H]
	gen    uint64
	ctx    context.Context
	cancel context.CancelFunc
}

func (a *attempt[H]) OnServiceConnected(h H) { a.m.connected(a, h) }
func (a *attempt[H]) OnServiceDisconnected() { a.m.lost(a, nil) }

// Manager owns one binding and rebinds it while it is wanted.
type Manager[H any] struct {
	binder Binder[H]
	config Config
	logger *slog.Logger
	notify *notifier

	ctx    context.Context
	cancel context.CancelFunc

	mu        sync.Mutex
	state     State
	wanted    bool
	closed    bool
	handle    H
	hasHandle bool
	current   *attempt[H]
	gen       uint64
	timer     *time.Timer

	onStateChange  func(old, new State)
	onConnected    func(h H)
	onDisconnected func()
}

// NewManager returns an unbound manager.
func NewManager[H any](binder Binder[H], config Config) *Manager[H] {
	if config.Policy == nil {
		config.Policy = FixedDelay(DefaultRebindDelay)
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if config.Name != "" {
		logger = logger.With("binding", config.Name)
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Manager[H]{
		binder: binder,
		config: config,
		logger: logger,
		notify: newNotifier(),
		ctx:    ctx,
		cancel: cancel,
	}
}

// OnStateChange sets a listener for state transitions.
func (m *Manager[H]) OnStateChange(fn func(old, new State)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onStateChange = fn
}

// OnConnected sets a listener for new handles.
func (m *Manager[H]) OnConnected(fn func(h H)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onConnected = fn
}

// OnDisconnected sets a listener for lost or released handles.
func (m *Manager[H]) OnDisconnected(fn func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onDisconnected = fn
}

// State returns the current state.
func (m *Manager[H]) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// IsConnected reports whether a handle is available.
func (m *Manager[H]) IsConnected() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state == StateConnected
}

// Handle returns the live handle.
func (m *Manager[H]) Handle() (H, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.handle, m.hasHandle
}

// Bind requests the binding. It never blocks and is a no-op while a bind
// is outstanding, connected or scheduled.
func (m *Manager[H]) Bind() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrManagerClosed
	}
	m.wanted = true
	if m.state == StateUnbound {
		m.startLocked("bind requested")
	}
	return nil
}

// Unbind releases the binding. A connected handle is reported through
// OnDisconnected; no rebind follows. It is safe to call when unbound.
func (m *Manager[H]) Unbind() {
	m.mu.Lock()
	m.wanted = false
	att := m.releaseLocked("unbind requested")
	m.mu.Unlock()

	if att != nil {
		att.cancel()
		m.binder.Unbind(att)
	}
}

// Close unbinds and stops the manager. Listener calls already posted still
// run.
func (m *Manager[H]) Close() {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	m.closed = true
	m.wanted = false
	att := m.releaseLocked("closed")
	m.mu.Unlock()

	if att != nil {
		att.cancel()
		m.binder.Unbind(att)
	}
	m.cancel()
	m.notify.close()
}

// releaseLocked moves to Unbound and returns the attempt to unbind.
func (m *Manager[H]) releaseLocked(reason string) *attempt[H] {
	m.stopTimerLocked()

	att := m.current
	m.current = nil
	if m.state == StateConnected {
		m.clearHandleLocked()
	}
	m.setStateLocked(StateUnbound, reason)
	return att
}

func (m *Manager[H]) startLocked(reason string) {
	m.gen++
	ctx, cancel := context.WithCancel(m.ctx)
	att := &attempt[H]{m: m, gen: m.gen, ctx: ctx, cancel: cancel}
	m.current = att
	m.setStateLocked(StateBinding, reason)

	if m.config.BindTimeout > 0 {
		m.stopTimerLocked()
		m.timer = time.AfterFunc(m.config.BindTimeout, func() { m.timedOut(att) })
	}

	go func() {
		if err := m.binder.Bind(ctx, att); err != nil {
			m.lost(att, err)
		}
	}()
}

func (m *Manager[H]) connected(att *attempt[H], h H) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if att != m.current || m.state != StateBinding {
		m.logger.Debug("ignoring stale connect", "attempt", att.gen)
		return
	}

	m.stopTimerLocked()
	m.handle = h
	m.hasHandle = true
	m.config.Policy.Reset()
	m.setStateLocked(StateConnected, "")

	m.logger.Info("service connected")
	if fn := m.onConnected; fn != nil {
		m.post("OnConnected", func() { fn(h) })
	}
}

// lost handles a failed bind (err != nil) or a dropped connection.
func (m *Manager[H]) lost(att *attempt[H], err error) {
	m.mu.Lock()

	if att != m.current {
		m.mu.Unlock()
		if err != nil && !errors.Is(err, context.Canceled) {
			m.logger.Debug("stale bind failed", "attempt", att.gen, "error", err)
		}
		return
	}

	reason := "service disconnected"
	if err != nil {
		reason = fmt.Sprintf("bind failed: %v", err)
		m.logger.Warn("bind failed", "error", err)
	} else {
		m.logger.Info("service disconnected")
	}

	m.current = nil
	if m.state == StateConnected {
		m.clearHandleLocked()
	}
	m.scheduleLocked(reason)
	m.mu.Unlock()

	att.cancel()
	if err == nil {
		m.binder.Unbind(att)
	}
}

func (m *Manager[H]) timedOut(att *attempt[H]) {
	m.mu.Lock()
	if att != m.current || m.state != StateBinding {
		m.mu.Unlock()
		return
	}
	m.logger.Warn("bind timed out", "timeout", m.config.BindTimeout)
	m.current = nil
	m.scheduleLocked(ErrBindTimeout.Error())
	m.mu.Unlock()

	att.cancel()
	m.binder.Unbind(att)
}

// scheduleLocked enters Disconnected and arms the rebind timer.
func (m *Manager[H]) scheduleLocked(reason string) {
	m.stopTimerLocked()
	m.setStateLocked(StateDisconnected, reason)

	delay := m.config.Policy.Next()
	gen := m.gen
	m.logger.Info("rebind scheduled", "delay", delay)
	m.timer = time.AfterFunc(delay, func() { m.rebind(gen) })
}

func (m *Manager[H]) rebind(gen uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed || !m.wanted || m.gen != gen || m.state != StateDisconnected {
		return
	}
	m.startLocked("rebind")
}

func (m *Manager[H]) clearHandleLocked() {
	var zero H
	m.handle = zero
	m.hasHandle = false
	if fn := m.onDisconnected; fn != nil {
		m.post("OnDisconnected", fn)
	}
}

func (m *Manager[H]) stopTimerLocked() {
	if m.timer != nil {
		m.timer.Stop()
		m.timer = nil
	}
}

func (m *Manager[H]) setStateLocked(s State, reason string) {
	old := m.state
	if old == s {
		return
	}
	m.state = s
	m.config.Trace.State(log.StateEntityBinding, m.config.Name, old.String(), s.String(), reason)
	m.logger.Debug("binding state", "from", old, "to", s, "reason", reason)

	if fn := m.onStateChange; fn != nil {
		m.post("OnStateChange", func() { fn(old, s) })
	}
}

// post queues a listener call and isolates its panics.
func (m *Manager[H]) post(name string, fn func()) {
	m.notify.post(func() {
		defer func() {
			if r := recover(); r != nil {
				m.logger.Error("listener panic", "listener", name, "panic", r)
			}
		}()
		fn()
	})
}
