package transport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/jpweytjens/karoo-ext/pkg/log"
	"github.com/jpweytjens/karoo-ext/pkg/wire"
)

const (
	// DefaultCallTimeout applies to calls whose context has no deadline.
	DefaultCallTimeout = 10 * time.Second

	// DefaultWriteTimeout bounds a single frame write.
	DefaultWriteTimeout = 5 * time.Second
)

// HandlerFunc serves an inbound call. A nil reply means OK with no payload.
// Returned errors become the reply status (see Errorf); for one-way calls
// they are only logged.
type HandlerFunc func(ctx context.Context, call *wire.Call) (*wire.Reply, error)

// CallbackFunc receives an inbound handler callback.
type CallbackFunc func(cb *wire.Callback)

// Config configures a Peer.
type Config struct {
	// MaxMessageSize bounds a frame payload (default 64 KiB).
	MaxMessageSize uint32

	KeepAlive        KeepAliveConfig
	DisableKeepAlive bool

	// CallTimeout applies when the call context has no deadline.
	// Negative disables it.
	CallTimeout time.Duration

	WriteTimeout time.Duration

	// Side is recorded on trace events.
	Side log.Side

	// Trace receives protocol events. Nil disables tracing.
	Trace log.Logger

	// Logger receives operational logs. Nil uses slog.Default().
	Logger *slog.Logger
}

// DefaultConfig returns the default peer configuration.
func DefaultConfig() Config {
	return Config{
		MaxMessageSize: DefaultMaxMessageSize,
		KeepAlive:      DefaultKeepAliveConfig(),
		CallTimeout:    DefaultCallTimeout,
		WriteTimeout:   DefaultWriteTimeout,
	}
}

type pendingCall struct {
	ch   chan *wire.Reply
	sent time.Time
}

// Peer is one end of an RPC link over a stream connection. Both ends can
// call, notify and send callbacks.
//
// Inbound calls and callbacks run on a per-peer serial queue, never on the
// read loop, so a handler may itself make calls on the same peer.
type Peer struct {
	id     string
	conn   net.Conn
	framer *Framer
	config Config
	logger *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	queue  *serialQueue
	ka     *KeepAlive
	nextID atomic.Uint32

	mu        sync.Mutex
	tracer    log.Tracer
	pending   map[uint32]*pendingCall
	handlers  map[wire.Method]HandlerFunc
	callbacks map[string]CallbackFunc
	started   bool
	err       error

	done      chan struct{}
	closeOnce sync.Once
}

// NewPeer wraps conn. Register handlers, then call Start.
func NewPeer(conn net.Conn, config Config) *Peer {
	d := DefaultConfig()
	if config.MaxMessageSize == 0 {
		config.MaxMessageSize = d.MaxMessageSize
	}
	if config.CallTimeout == 0 {
		config.CallTimeout = d.CallTimeout
	}
	if config.WriteTimeout == 0 {
		config.WriteTimeout = d.WriteTimeout
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}

	id := uuid.New().String()
	ctx, cancel := context.WithCancel(context.Background())

	p := &Peer{
		id:        id,
		conn:      conn,
		framer:    NewFramer(conn, config.MaxMessageSize),
		config:    config,
		logger:    logger.With("peer", id),
		ctx:       ctx,
		cancel:    cancel,
		queue:     newSerialQueue(),
		pending:   make(map[uint32]*pendingCall),
		handlers:  make(map[wire.Method]HandlerFunc),
		callbacks: make(map[string]CallbackFunc),
		done:      make(chan struct{}),
	}
	if config.Trace != nil {
		p.tracer = log.Tracer{
			Logger:       config.Trace,
			ConnectionID: id,
			Side:         config.Side,
			RemoteAddr:   addrString(conn.RemoteAddr()),
		}
		p.framer.SetTracer(p.tracer)
	}
	return p
}

func addrString(a net.Addr) string {
	if a == nil {
		return ""
	}
	return a.String()
}

// ID returns the connection id used in traces.
func (p *Peer) ID() string { return p.id }

// Logger returns the peer's operational logger.
func (p *Peer) Logger() *slog.Logger { return p.logger }

// RemoteAddr returns the remote socket address.
func (p *Peer) RemoteAddr() net.Addr { return p.conn.RemoteAddr() }

// SetPackage records the extension package bound over this link on later
// trace events.
func (p *Peer) SetPackage(pkg string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.tracer.Package = pkg
}

// Package returns the package set with SetPackage.
func (p *Peer) Package() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.tracer.Package
}

// Tracer returns the trace stamp for this link.
func (p *Peer) Tracer() log.Tracer {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.tracer
}

// Context is cancelled when the peer shuts down.
func (p *Peer) Context() context.Context { return p.ctx }

// Handle installs the handler for inbound calls of method m.
func (p *Peer) Handle(m wire.Method, fn HandlerFunc) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.handlers[m] = fn
}

// OnCallback routes callbacks for handlerID to fn.
func (p *Peer) OnCallback(handlerID string, fn CallbackFunc) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.callbacks[handlerID] = fn
}

// RemoveCallback stops routing callbacks for handlerID. Callbacks already
// queued for it are dropped.
func (p *Peer) RemoveCallback(handlerID string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.callbacks, handlerID)
}

// Start begins reading. It is a no-op after the first call.
func (p *Peer) Start() {
	p.mu.Lock()
	if p.started {
		p.mu.Unlock()
		return
	}
	p.started = true
	p.mu.Unlock()

	p.Tracer().Connection("", "CONNECTED", "")

	go p.queue.run(p.done)
	go p.readLoop()

	if !p.config.DisableKeepAlive {
		p.ka = NewKeepAlive(p.config.KeepAlive,
			func(seq uint32) error { return p.sendControl(wire.ControlPing, seq) },
			func() {
				p.logger.Warn("keep-alive timeout", "remote", addrString(p.conn.RemoteAddr()))
				p.shutdown(fmt.Errorf("%w: %w", ErrPeerClosed, ErrKeepAliveTimeout))
			},
		)
		p.ka.Start(p.ctx)
	}
}

// KeepAliveStats returns probe statistics when keep-alive is enabled.
func (p *Peer) KeepAliveStats() (KeepAliveStats, bool) {
	if p.ka == nil {
		return KeepAliveStats{}, false
	}
	return p.ka.Stats(), true
}

// Done is closed when the link is gone.
func (p *Peer) Done() <-chan struct{} { return p.done }

// Err returns why the link went down, or nil while it is up.
func (p *Peer) Err() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.err
}

// Call sends a two-way call and waits for its reply. Non-OK replies are
// returned together with a *StatusError.
func (p *Peer) Call(ctx context.Context, call *wire.Call) (*wire.Reply, error) {
	if p.config.CallTimeout > 0 {
		if _, ok := ctx.Deadline(); !ok {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, p.config.CallTimeout)
			defer cancel()
		}
	}

	c := *call
	c.MessageID = p.newMessageID()
	pc := &pendingCall{ch: make(chan *wire.Reply, 1), sent: time.Now()}

	p.mu.Lock()
	if p.err != nil {
		err := p.err
		p.mu.Unlock()
		return nil, err
	}
	p.pending[c.MessageID] = pc
	p.mu.Unlock()

	defer func() {
		p.mu.Lock()
		delete(p.pending, c.MessageID)
		p.mu.Unlock()
	}()

	if err := p.send(&c); err != nil {
		return nil, err
	}

	select {
	case r := <-pc.ch:
		if !r.Status.IsSuccess() {
			return r, &StatusError{Status: r.Status, Text: r.Text}
		}
		return r, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-p.done:
		return nil, p.Err()
	}
}

// Notify sends a one-way call.
func (p *Peer) Notify(call *wire.Call) error {
	c := *call
	c.MessageID = wire.OneWayMessageID
	return p.send(&c)
}

// SendCallback delivers a handler callback to the remote side.
func (p *Peer) SendCallback(cb *wire.Callback) error {
	data, err := wire.EncodeCallback(cb)
	if err != nil {
		return err
	}
	if err := p.write(data); err != nil {
		return err
	}
	p.Tracer().Message(log.DirectionOut, log.LayerWire, log.CallbackEvent(cb))
	return nil
}

// Close tells the remote side and shuts the link down.
func (p *Peer) Close() error {
	_ = p.sendControl(wire.ControlClose, 0)
	p.shutdown(ErrPeerClosed)
	return nil
}

// Abort drops the link without a close handshake, as a crash would.
func (p *Peer) Abort() {
	p.shutdown(fmt.Errorf("%w: aborted", ErrPeerClosed))
}

func (p *Peer) newMessageID() uint32 {
	for {
		if id := p.nextID.Add(1); id != wire.OneWayMessageID {
			return id
		}
	}
}

func (p *Peer) send(c *wire.Call) error {
	data, err := wire.EncodeCall(c)
	if err != nil {
		return err
	}
	if err := p.write(data); err != nil {
		return err
	}
	p.Tracer().Message(log.DirectionOut, log.LayerWire, log.CallEvent(c))
	return nil
}

func (p *Peer) sendReply(r *wire.Reply) {
	data, err := wire.EncodeReply(r)
	if err == nil {
		err = p.write(data)
	}
	if err != nil {
		p.logger.Debug("reply not sent", "msg_id", r.MessageID, "error", err)
		return
	}
	p.Tracer().Message(log.DirectionOut, log.LayerWire, log.ReplyEvent(r, 0))
}

func (p *Peer) sendControl(t wire.ControlType, seq uint32) error {
	data, err := wire.EncodeControlMessage(&wire.ControlMessage{Type: t, Sequence: seq})
	if err != nil {
		return err
	}
	if err := p.write(data); err != nil {
		return err
	}
	p.Tracer().Control(log.DirectionOut, controlMsgType(t), seq)
	return nil
}

func (p *Peer) write(data []byte) error {
	select {
	case <-p.done:
		return p.Err()
	default:
	}
	if p.config.WriteTimeout > 0 {
		_ = p.conn.SetWriteDeadline(time.Now().Add(p.config.WriteTimeout))
	}
	if err := p.framer.WriteFrame(data); err != nil {
		if errors.Is(err, ErrMessageTooLarge) {
			return err
		}
		p.shutdown(fmt.Errorf("%w: %w", ErrPeerClosed, err))
		return p.Err()
	}
	return nil
}

func (p *Peer) readLoop() {
	for {
		data, err := p.framer.ReadFrame()
		if err != nil {
			if errors.Is(err, io.EOF) {
				p.shutdown(ErrPeerClosed)
			} else {
				p.shutdown(fmt.Errorf("%w: %w", ErrPeerClosed, err))
			}
			return
		}

		kind, err := wire.PeekKind(data)
		if err != nil {
			p.Tracer().Error(log.LayerWire, "peek", err)
			p.logger.Warn("dropping undecodable frame", "error", err)
			continue
		}

		switch kind {
		case wire.KindControl:
			p.handleControl(data)
		case wire.KindReply:
			p.handleReply(data)
		case wire.KindCall:
			p.handleCall(data)
		case wire.KindCallback:
			p.handleCallback(data)
		}
	}
}

func (p *Peer) handleControl(data []byte) {
	msg, err := wire.DecodeControlMessage(data)
	if err != nil {
		p.Tracer().Error(log.LayerWire, "control", err)
		return
	}
	p.Tracer().Control(log.DirectionIn, controlMsgType(msg.Type), msg.Sequence)

	switch msg.Type {
	case wire.ControlPing:
		_ = p.sendControl(wire.ControlPong, msg.Sequence)
	case wire.ControlPong:
		if p.ka != nil {
			p.ka.PongReceived(msg.Sequence)
		}
	case wire.ControlClose:
		p.shutdown(ErrPeerClosed)
	}
}

func (p *Peer) handleReply(data []byte) {
	r, err := wire.DecodeReply(data)
	if err != nil {
		p.Tracer().Error(log.LayerWire, "reply", err)
		return
	}

	p.mu.Lock()
	pc, ok := p.pending[r.MessageID]
	p.mu.Unlock()

	var latency time.Duration
	if ok {
		latency = time.Since(pc.sent)
	}
	p.Tracer().Message(log.DirectionIn, log.LayerWire, log.ReplyEvent(r, latency))

	if !ok {
		p.logger.Debug("reply for unknown call", "msg_id", r.MessageID)
		return
	}
	select {
	case pc.ch <- r:
	default:
	}
}

func (p *Peer) handleCall(data []byte) {
	c, err := wire.DecodeCall(data)
	if err != nil {
		p.Tracer().Error(log.LayerWire, "call", err)
		p.logger.Warn("dropping malformed call", "error", err)
		return
	}
	p.Tracer().Message(log.DirectionIn, log.LayerWire, log.CallEvent(c))
	p.queue.push(func() { p.dispatch(c) })
}

func (p *Peer) dispatch(c *wire.Call) {
	p.mu.Lock()
	fn := p.handlers[c.Method]
	p.mu.Unlock()

	var (
		reply *wire.Reply
		err   error
	)
	if fn == nil {
		err = Errorf(wire.StatusUnknownMethod, "%s", c.Method)
	} else {
		reply, err = p.invoke(fn, c)
	}

	if c.IsOneWay() {
		if err != nil {
			p.logger.Warn("one-way call failed", "method", c.Method, "target", c.Target, "error", err)
			p.Tracer().Error(log.LayerWire, c.Method.String(), err)
		}
		return
	}

	if err != nil {
		text := err.Error()
		var se *StatusError
		if errors.As(err, &se) {
			text = se.Text
		}
		reply = &wire.Reply{Status: statusOf(err), Text: text}
	} else if reply == nil {
		reply = &wire.Reply{}
	}
	reply.MessageID = c.MessageID
	p.sendReply(reply)
}

func (p *Peer) invoke(fn HandlerFunc, c *wire.Call) (reply *wire.Reply, err error) {
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("handler panic", "method", c.Method, "panic", r)
			reply, err = nil, Errorf(wire.StatusInternal, "handler panic: %v", r)
		}
	}()
	return fn(p.ctx, c)
}

func (p *Peer) handleCallback(data []byte) {
	cb, err := wire.DecodeCallback(data)
	if err != nil {
		p.Tracer().Error(log.LayerWire, "callback", err)
		return
	}
	p.Tracer().Message(log.DirectionIn, log.LayerWire, log.CallbackEvent(cb))

	p.queue.push(func() {
		p.mu.Lock()
		fn := p.callbacks[cb.HandlerID]
		p.mu.Unlock()
		if fn == nil {
			p.logger.Debug("callback for unknown handler", "handler", cb.HandlerID, "callback", cb.Callback)
			return
		}
		defer func() {
			if r := recover(); r != nil {
				p.logger.Error("callback panic", "handler", cb.HandlerID, "panic", r)
			}
		}()
		fn(cb)
	})
}

func (p *Peer) shutdown(reason error) {
	p.closeOnce.Do(func() {
		p.mu.Lock()
		p.err = reason
		p.mu.Unlock()

		close(p.done)
		p.cancel()
		if p.ka != nil {
			p.ka.Stop()
		}
		_ = p.conn.Close()

		p.Tracer().Connection("CONNECTED", "DISCONNECTED", reason.Error())
		p.logger.Debug("peer closed", "reason", reason)
	})
}

func controlMsgType(t wire.ControlType) log.ControlMsgType {
	switch t {
	case wire.ControlPong:
		return log.ControlMsgPong
	case wire.ControlClose:
		return log.ControlMsgClose
	default:
		return log.ControlMsgPing
	}
}
