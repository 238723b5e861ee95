package connection

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

const waitTimeout = 2 * time.Second

// fakeBinder records bind requests. Connections are completed by the test
// through the ServiceConnection it receives.
type fakeBinder struct {
	bound   chan ServiceConnection[string]
	failed  chan struct{}
	bindErr atomic.Pointer[error]

	mu      sync.Mutex
	unbinds []ServiceConnection[string]
}

func newFakeBinder() *fakeBinder {
	return &fakeBinder{
		bound:  make(chan ServiceConnection[string], 32),
		failed: make(chan struct{}, 64),
	}
}

func (b *fakeBinder) Bind(_ context.Context, conn ServiceConnection[string]) error {
	if err := b.bindErr.Load(); err != nil {
		select {
		case b.failed <- struct{}{}:
		default:
		}
		return *err
	}
	b.bound <- conn
	return nil
}

func (b *fakeBinder) Unbind(conn ServiceConnection[string]) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.unbinds = append(b.unbinds, conn)
}

func (b *fakeBinder) failWith(err error) { b.bindErr.Store(&err) }

func (b *fakeBinder) unbindCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.unbinds)
}

func (b *fakeBinder) next(t *testing.T) ServiceConnection[string] {
	t.Helper()
	select {
	case c := <-b.bound:
		return c
	case <-time.After(waitTimeout):
		t.Fatal("no bind request")
		return nil
	}
}

func (b *fakeBinder) none(t *testing.T, within time.Duration) {
	t.Helper()
	select {
	case <-b.bound:
		t.Fatal("unexpected bind request")
	case <-time.After(within):
	}
}

// recorder collects listener calls in order.
type recorder struct {
	events chan string
}

func record[H any](m *Manager[H], format func(H) string) *recorder {
	r := &recorder{events: make(chan string, 64)}
	m.OnConnected(func(h H) { r.events <- "connected:" + format(h) })
	m.OnDisconnected(func() { r.events <- "disconnected" })
	return r
}

func (r *recorder) expect(t *testing.T, want string) {
	t.Helper()
	select {
	case got := <-r.events:
		if got != want {
			t.Fatalf("event = %q, want %q", got, want)
		}
	case <-time.After(waitTimeout):
		t.Fatalf("no event, want %q", want)
	}
}

func (r *recorder) quiet(t *testing.T, within time.Duration) {
	t.Helper()
	select {
	case got := <-r.events:
		t.Fatalf("unexpected event %q", got)
	case <-time.After(within):
	}
}

func newTestManager(t *testing.T, b Binder[string], delay time.Duration) *Manager[string] {
	t.Helper()
	m := NewManager[string](b, Config{Name: "test", Policy: FixedDelay(delay)})
	t.Cleanup(m.Close)
	return m
}

func self(s string) string { return s }

func TestManagerConnect(t *testing.T) {
	b := newFakeBinder()
	m := newTestManager(t, b, time.Hour)
	r := record(m, self)

	if m.State() != StateUnbound {
		t.Fatalf("initial state = %v", m.State())
	}
	if err := m.Bind(); err != nil {
		t.Fatalf("Bind: %v", err)
	}

	conn := b.next(t)
	if m.State() != StateBinding {
		t.Errorf("state = %v, want BINDING", m.State())
	}
	if _, ok := m.Handle(); ok {
		t.Error("handle available while binding")
	}

	conn.OnServiceConnected("h1")
	r.expect(t, "connected:h1")

	if !m.IsConnected() {
		t.Error("IsConnected() = false")
	}
	if h, ok := m.Handle(); !ok || h != "h1" {
		t.Errorf("Handle() = %q, %v", h, ok)
	}
}

func TestManagerBindIdempotent(t *testing.T) {
	b := newFakeBinder()
	m := newTestManager(t, b, time.Hour)

	_ = m.Bind()
	_ = m.Bind()
	conn := b.next(t)
	b.none(t, 50*time.Millisecond)

	conn.OnServiceConnected("h1")
	_ = m.Bind()
	b.none(t, 50*time.Millisecond)
}

func TestManagerUnbindWhenUnbound(t *testing.T) {
	b := newFakeBinder()
	m := newTestManager(t, b, time.Hour)
	r := record(m, self)

	m.Unbind()
	m.Unbind()

	if m.State() != StateUnbound {
		t.Errorf("state = %v", m.State())
	}
	if n := b.unbindCount(); n != 0 {
		t.Errorf("binder unbinds = %d, want 0", n)
	}
	r.quiet(t, 50*time.Millisecond)
}

func TestManagerRebindAfterLoss(t *testing.T) {
	b := newFakeBinder()
	m := newTestManager(t, b, 20*time.Millisecond)
	r := record(m, self)

	_ = m.Bind()
	first := b.next(t)
	first.OnServiceConnected("h1")
	r.expect(t, "connected:h1")

	first.OnServiceDisconnected()
	r.expect(t, "disconnected")
	if _, ok := m.Handle(); ok {
		t.Error("handle kept after loss")
	}

	second := b.next(t)
	if second == first {
		t.Fatal("rebind reused the lost connection")
	}
	second.OnServiceConnected("h2")
	r.expect(t, "connected:h2")

	// The lost connection reporting again changes nothing.
	first.OnServiceDisconnected()
	r.quiet(t, 50*time.Millisecond)
	if h, _ := m.Handle(); h != "h2" {
		t.Errorf("Handle() = %q, want h2", h)
	}
}

func TestManagerUnbindFromConnected(t *testing.T) {
	b := newFakeBinder()
	m := newTestManager(t, b, 10*time.Millisecond)
	r := record(m, self)

	_ = m.Bind()
	conn := b.next(t)
	conn.OnServiceConnected("h1")
	r.expect(t, "connected:h1")

	m.Unbind()
	r.expect(t, "disconnected")

	if m.State() != StateUnbound {
		t.Errorf("state = %v, want UNBOUND", m.State())
	}
	if n := b.unbindCount(); n != 1 {
		t.Errorf("binder unbinds = %d, want 1", n)
	}

	// The binder's own disconnect after unbind is ignored and nothing
	// rebinds.
	conn.OnServiceDisconnected()
	b.none(t, 60*time.Millisecond)
	r.quiet(t, 10*time.Millisecond)
}

func TestManagerBindErrorRebinds(t *testing.T) {
	b := newFakeBinder()
	b.failWith(errors.New("host not installed"))
	m := newTestManager(t, b, 10*time.Millisecond)

	var states []State
	var mu sync.Mutex
	m.OnStateChange(func(_, s State) {
		mu.Lock()
		states = append(states, s)
		mu.Unlock()
	})

	_ = m.Bind()
	for i := 0; i < 3; i++ {
		select {
		case <-b.failed:
		case <-time.After(waitTimeout):
			t.Fatalf("bind attempt %d not retried", i+1)
		}
	}

	b.bindErr.Store(nil)
	b.next(t).OnServiceConnected("h1")
	if !m.IsConnected() {
		t.Fatal("not connected")
	}
	if n := b.unbindCount(); n != 0 {
		t.Errorf("failed binds were unbound %d times", n)
	}

	time.Sleep(20 * time.Millisecond)
	mu.Lock()
	defer mu.Unlock()
	if len(states) < 7 || states[0] != StateBinding || states[1] != StateDisconnected {
		t.Errorf("states = %v", states)
	}
}

func TestManagerStaleConnectIgnored(t *testing.T) {
	b := newFakeBinder()
	m := newTestManager(t, b, time.Hour)
	r := record(m, self)

	_ = m.Bind()
	old := b.next(t)
	m.Unbind()
	_ = m.Bind()
	current := b.next(t)

	old.OnServiceConnected("old")
	if m.State() != StateBinding {
		t.Fatalf("state = %v after stale connect", m.State())
	}

	current.OnServiceConnected("new")
	r.expect(t, "connected:new")
	if h, _ := m.Handle(); h != "new" {
		t.Errorf("Handle() = %q, want new", h)
	}
}

func TestManagerBindTimeout(t *testing.T) {
	b := newFakeBinder()
	m := NewManager[string](b, Config{
		Policy:      FixedDelay(10 * time.Millisecond),
		BindTimeout: 20 * time.Millisecond,
	})
	defer m.Close()

	_ = m.Bind()
	first := b.next(t)
	second := b.next(t)

	first.OnServiceConnected("late")
	if m.IsConnected() {
		t.Fatal("late connect from an abandoned bind was accepted")
	}
	second.OnServiceConnected("h2")
	if h, ok := m.Handle(); !ok || h != "h2" {
		t.Errorf("Handle() = %q, %v", h, ok)
	}
	if n := b.unbindCount(); n < 1 {
		t.Errorf("abandoned bind was not unbound")
	}
}

type countingPolicy struct {
	next, reset atomic.Int32
}

func (p *countingPolicy) Next() time.Duration { p.next.Add(1); return 5 * time.Millisecond }
func (p *countingPolicy) Reset()              { p.reset.Add(1) }

func TestManagerPolicyReset(t *testing.T) {
	b := newFakeBinder()
	p := &countingPolicy{}
	m := NewManager[string](b, Config{Policy: p})
	defer m.Close()

	_ = m.Bind()
	b.next(t).OnServiceDisconnected()
	b.next(t).OnServiceConnected("h")

	if p.next.Load() != 1 {
		t.Errorf("Next() calls = %d, want 1", p.next.Load())
	}
	if p.reset.Load() != 1 {
		t.Errorf("Reset() calls = %d, want 1", p.reset.Load())
	}
}

func TestManagerListenerPanicIsolated(t *testing.T) {
	b := newFakeBinder()
	m := newTestManager(t, b, time.Hour)

	m.OnConnected(func(string) { panic("listener bug") })
	disconnected := make(chan struct{})
	m.OnDisconnected(func() { close(disconnected) })

	_ = m.Bind()
	conn := b.next(t)
	conn.OnServiceConnected("h1")
	conn.OnServiceDisconnected()

	select {
	case <-disconnected:
	case <-time.After(waitTimeout):
		t.Fatal("listener after a panicking one did not run")
	}
}

func TestManagerListenerMayUnbind(t *testing.T) {
	b := newFakeBinder()
	m := newTestManager(t, b, time.Hour)

	done := make(chan struct{})
	m.OnConnected(func(string) { m.Unbind() })
	m.OnDisconnected(func() { close(done) })

	_ = m.Bind()
	b.next(t).OnServiceConnected("h1")

	select {
	case <-done:
	case <-time.After(waitTimeout):
		t.Fatal("unbind from a listener did not complete")
	}
	if m.State() != StateUnbound {
		t.Errorf("state = %v", m.State())
	}
}

func TestManagerClose(t *testing.T) {
	b := newFakeBinder()
	m := NewManager[string](b, DefaultConfig())

	_ = m.Bind()
	b.next(t).OnServiceConnected("h1")
	m.Close()
	m.Close()

	if m.State() != StateUnbound {
		t.Errorf("state = %v", m.State())
	}
	if err := m.Bind(); !errors.Is(err, ErrManagerClosed) {
		t.Errorf("Bind after Close = %v, want ErrManagerClosed", err)
	}
	if n := b.unbindCount(); n != 1 {
		t.Errorf("binder unbinds = %d, want 1", n)
	}
}

func TestStateString(t *testing.T) {
	tests := []struct {
		state State
		want  string
	}{
		{StateUnbound, "UNBOUND"},
		{StateBinding, "BINDING"},
		{StateConnected, "CONNECTED"},
		{StateDisconnected, "DISCONNECTED"},
		{State(99), "UNKNOWN"},
	}
	for _, tt := range tests {
		if got := tt.state.String(); got != tt.want {
			t.Errorf("State(%d).String() = %q, want %q", tt.state, got, tt.want)
		}
	}
}
