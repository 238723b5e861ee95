package karoo

import (
	"log/slog"
	"sync"
	"time"

	"github.com/jpweytjens/karoo-ext/pkg/binder"
	"github.com/jpweytjens/karoo-ext/pkg/connection"
	"github.com/jpweytjens/karoo-ext/pkg/log"
	"github.com/jpweytjens/karoo-ext/pkg/model"
	"github.com/jpweytjens/karoo-ext/pkg/version"
	"github.com/jpweytjens/karoo-ext/pkg/wire"
)

// Config configures a System.
type Config struct {
	// Package identifies the extension in logs and traces.
	Package string

	// Policy spaces rebind attempts. Nil selects the fixed two second delay.
	Policy connection.RebindPolicy

	// BindTimeout abandons a bind that does not connect in time. Zero waits
	// forever.
	BindTimeout time.Duration

	// Logger receives operational logs. Nil uses slog.Default().
	Logger *slog.Logger

	// Trace receives binding and consumer events. Nil disables tracing.
	Trace log.Logger
}

// DefaultConfig returns the default system configuration.
func DefaultConfig() Config {
	return Config{
		Policy: connection.FixedDelay(connection.DefaultRebindDelay),
	}
}

// System is the consumer registry and the host connection behind it.
type System struct {
	config Config
	logger *slog.Logger
	tracer log.Tracer
	mgr    *connection.Manager[binder.SystemController]

	// demandMu orders bind and unbind with consumer insertions and
	// removals. bound is guarded by it.
	demandMu sync.Mutex
	bound    bool

	mu         sync.Mutex
	consumers  map[string]*registration
	handle     binder.SystemController
	epoch      uint64
	libVersion string
	info       *model.KarooInfo
}

// New returns a System that binds through b. Nothing is bound until the
// first consumer is added.
func New(b connection.Binder[binder.SystemController], config Config) *System {
	if config.Policy == nil {
		config.Policy = connection.FixedDelay(connection.DefaultRebindDelay)
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if config.Package != "" {
		logger = logger.With("package", config.Package)
	}
	tracer := log.Tracer{Logger: config.Trace, Side: log.SideExtension, Package: config.Package}

	s := &System{
		config:    config,
		logger:    logger,
		tracer:    tracer,
		consumers: make(map[string]*registration),
	}
	s.mgr = connection.NewManager(b, connection.Config{
		Name:        "system",
		Policy:      config.Policy,
		BindTimeout: config.BindTimeout,
		Logger:      logger,
		Trace:       tracer,
	})
	s.mgr.OnConnected(s.onConnected)
	s.mgr.OnDisconnected(s.onDisconnected)
	return s
}

// Connected reports whether the host is bound.
func (s *System) Connected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.handle != nil
}

// State returns the binding state.
func (s *System) State() connection.State {
	return s.mgr.State()
}

// LibVersion returns the host library version reported on the last connect,
// or "" before the first connect.
func (s *System) LibVersion() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.libVersion
}

// Info returns the host device description from the last connect.
func (s *System) Info() (model.KarooInfo, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.info == nil {
		return model.KarooInfo{}, false
	}
	return *s.info, true
}

// HardwareType returns the host hardware, or HardwareUnknown before the
// first connect.
func (s *System) HardwareType() model.HardwareType {
	if info, ok := s.Info(); ok {
		return info.HardwareType
	}
	return model.HardwareUnknown
}

// Dispatch sends effect to the host. It returns false when the host is not
// bound or the effect could not be delivered.
func (s *System) Dispatch(effect model.Effect) bool {
	s.mu.Lock()
	h := s.handle
	s.mu.Unlock()
	if h == nil {
		s.logger.Debug("effect dropped, not connected", "effect", effect.VariantTag())
		return false
	}

	b, err := wire.Encode(effect)
	if err != nil {
		s.logger.Warn("effect not encoded", "effect", effect.VariantTag(), "error", err)
		return false
	}
	if err := h.DispatchEffect(b); err != nil {
		s.logger.Warn("effect not dispatched", "effect", effect.VariantTag(), "error", err)
		s.tracer.Error(log.LayerBridge, "dispatch", err)
		return false
	}
	return true
}

// Disconnect removes every consumer, which releases the bind.
func (s *System) Disconnect() {
	s.mu.Lock()
	ids := make([]string, 0, len(s.consumers))
	for id := range s.consumers {
		ids = append(ids, id)
	}
	s.mu.Unlock()

	for _, id := range ids {
		s.RemoveConsumer(id)
	}
}

// Close disconnects and stops the connection manager. The System cannot be
// used afterwards.
func (s *System) Close() {
	s.Disconnect()
	s.mgr.Close()
}

func (s *System) onConnected(h binder.SystemController) {
	lib, err := h.LibVersion()
	if err != nil {
		s.logger.Warn("host library version unavailable", "error", err)
	} else if err := version.CheckCompatible(lib); err != nil {
		s.logger.Warn("host library version", "error", err)
	}
	info, err := h.Info()
	if err != nil {
		s.logger.Warn("host info unavailable", "error", err)
	}

	s.mu.Lock()
	s.handle = h
	s.epoch++
	if lib != "" {
		s.libVersion = lib
	}
	if err == nil {
		s.info = &info
	}
	regs := s.snapshotLocked()
	s.mu.Unlock()

	s.logger.Info("connected to host", "lib", lib, "hardware", string(info.HardwareType), "consumers", len(regs))
	for _, reg := range regs {
		s.settle(reg)
	}
}

func (s *System) onDisconnected() {
	s.mu.Lock()
	s.handle = nil
	s.epoch++
	regs := s.snapshotLocked()
	s.mu.Unlock()

	s.logger.Info("disconnected from host", "consumers", len(regs))
	for _, reg := range regs {
		s.settle(reg)
	}
}

func (s *System) snapshotLocked() []*registration {
	regs := make([]*registration, 0, len(s.consumers))
	for _, reg := range s.consumers {
		regs = append(regs, reg)
	}
	return regs
}
