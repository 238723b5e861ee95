package extension

import (
	"context"
	"log/slog"
	"sync"

	"github.com/jpweytjens/karoo-ext/pkg/binder"
	"github.com/jpweytjens/karoo-ext/pkg/log"
	"github.com/jpweytjens/karoo-ext/pkg/model"
	"github.com/jpweytjens/karoo-ext/pkg/version"
	"github.com/jpweytjens/karoo-ext/pkg/wire"
)

// ServiceConfig configures a Service.
type ServiceConfig struct {
	// ID is the extension id, matching the manifest.
	ID string

	// Version is the extension's own version.
	Version string

	Types   []DataType
	Scanner DeviceScanner

	// Logger receives operational logs. Nil uses slog.Default().
	Logger *slog.Logger

	// Trace receives emitter lifecycle events. Nil disables tracing.
	Trace log.Logger
}

// Service serves host requests for an extension. It implements
// binder.ExtensionService.
type Service struct {
	config ServiceConfig
	logger *slog.Logger
	tracer log.Tracer

	ctx    context.Context
	cancel context.CancelFunc

	mu       sync.Mutex
	emitters map[string]canceller
}

// NewService returns a service for config.
func NewService(config ServiceConfig) *Service {
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Service{
		config:   config,
		logger:   logger.With("extension", config.ID),
		tracer:   log.Tracer{Logger: config.Trace, Side: log.SideExtension, Package: config.ID},
		ctx:      ctx,
		cancel:   cancel,
		emitters: make(map[string]canceller),
	}
}

// ID returns the extension id.
func (s *Service) ID() string { return s.config.ID }

// Version returns the extension version.
func (s *Service) Version() string { return s.config.Version }

// Types returns the data types the service provides.
func (s *Service) Types() []DataType { return s.config.Types }

// ScansDevices reports whether the service has a device scanner.
func (s *Service) ScansDevices() bool { return s.config.Scanner != nil }

// Active returns the number of running emitters.
func (s *Service) Active() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.emitters)
}

// LibVersion returns the SDK library version.
func (s *Service) LibVersion() string { return version.Lib }

func (s *Service) StartScan(id string, h binder.Handler) {
	if s.config.Scanner == nil {
		s.logger.Debug("scan requested without scanner", "id", id)
		return
	}
	e := newEmitter[model.Device](s.ctx, id, h, s.logger)
	s.track(id, "scan", e)
	s.config.Scanner.StartScan(e)
}

func (s *Service) StopScan(id string) { s.stop(id) }

func (s *Service) ConnectDevice(id, uid string, h binder.Handler) {
	if s.config.Scanner == nil {
		s.logger.Debug("device connect without scanner", "id", id, "uid", uid)
		return
	}
	e := newEmitter[model.DeviceEvent](s.ctx, id, h, s.logger)
	s.track(id, "device "+uid, e)
	s.config.Scanner.ConnectDevice(uid, e)
}

func (s *Service) DisconnectDevice(id string) { s.stop(id) }

func (s *Service) StartStream(id, typeID string, h binder.Handler) {
	dt, ok := s.lookup(typeID)
	if !ok {
		s.logger.Warn("stream requested for unknown data type", "id", id, "type", typeID)
		return
	}
	e := newEmitter[model.StreamState](s.ctx, id, h, s.logger)
	s.track(id, "stream "+typeID, e)
	dt.StartStream(e)
}

func (s *Service) StopStream(id string) { s.stop(id) }

func (s *Service) StartView(id, typeID string, config wire.Bundle, h binder.Handler) {
	cfg, err := wire.Decode[model.ViewConfig](config)
	if err != nil {
		s.logger.Warn("view config not decoded", "id", id, "type", typeID, "error", err)
		return
	}
	dt, ok := s.lookup(typeID)
	if !ok {
		s.logger.Warn("view requested for unknown data type", "id", id, "type", typeID)
		return
	}
	e := &ViewEmitter{newEmitter[model.ViewEvent](s.ctx, id, h, s.logger)}
	s.track(id, "view "+typeID, e)
	dt.StartView(cfg, e)
}

func (s *Service) StopView(id string) { s.stop(id) }

// Close cancels every emitter.
func (s *Service) Close() {
	s.cancel()
	s.mu.Lock()
	clear(s.emitters)
	s.mu.Unlock()
}

func (s *Service) lookup(typeID string) (DataType, bool) {
	for _, dt := range s.config.Types {
		if dt.TypeID() == typeID {
			return dt, true
		}
	}
	return nil, false
}

func (s *Service) track(id, what string, e canceller) {
	s.mu.Lock()
	old := s.emitters[id]
	s.emitters[id] = e
	s.mu.Unlock()

	if old != nil {
		old.Cancel()
	}
	s.logger.Debug("emitter started", "id", id, "what", what)
	s.tracer.State(log.StateEntityEmitter, id, "", "STARTED", what)
}

func (s *Service) stop(id string) {
	s.mu.Lock()
	e, ok := s.emitters[id]
	delete(s.emitters, id)
	s.mu.Unlock()

	if !ok {
		return
	}
	e.Cancel()
	s.logger.Debug("emitter stopped", "id", id)
	s.tracer.State(log.StateEntityEmitter, id, "STARTED", "STOPPED", "")
}

var _ binder.ExtensionService = (*Service)(nil)
