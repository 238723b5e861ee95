package hostsim

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/jpweytjens/karoo-ext/pkg/binder"
	"github.com/jpweytjens/karoo-ext/pkg/extension"
	"github.com/jpweytjens/karoo-ext/pkg/log"
	"github.com/jpweytjens/karoo-ext/pkg/model"
	"github.com/jpweytjens/karoo-ext/pkg/transport"
	"github.com/jpweytjens/karoo-ext/pkg/wire"
)

// ErrUnknownEmitter is returned when stopping an id the driver did not
// start.
var ErrUnknownEmitter = errors.New("unknown emitter")

// DriverConfig configures an ExtensionDriver.
type DriverConfig struct {
	// Extension is the id of the driven extension, used to build the
	// host-wide data type ids its streams are published under.
	Extension string

	// Network is "tcp" (default) or "unix".
	Network string

	// Address of the extension process.
	Address string

	// Peer configures the link.
	Peer transport.Config

	// OnView is called with every view a started view renders.
	OnView func(typeID string, v extension.View)

	// OnDevice is called for every device a scan finds.
	OnDevice func(d model.Device)

	// Logger receives operational logs. Nil uses slog.Default().
	Logger *slog.Logger
}

type emitterKind uint8

const (
	kindStream emitterKind = iota
	kindView
	kindScan
	kindDevice
)

func (k emitterKind) String() string {
	switch k {
	case kindStream:
		return "STREAM"
	case kindView:
		return "VIEW"
	case kindScan:
		return "SCAN"
	case kindDevice:
		return "DEVICE"
	default:
		return "UNKNOWN"
	}
}

// Started describes an emitter the driver started.
type Started struct {
	ID     string
	Kind   string
	TypeID string
}

type started struct {
	kind   emitterKind
	typeID string
}

// ExtensionDriver drives an extension process on behalf of a Host.
type ExtensionDriver struct {
	config DriverConfig
	host   *Host
	peer   *transport.Peer
	proxy  *binder.ExtensionProxy
	logger *slog.Logger

	mu     sync.Mutex
	active map[string]started
	views  map[string]extension.View
}

// DialExtension connects to the extension at config.Address.
func DialExtension(ctx context.Context, host *Host, config DriverConfig) (*ExtensionDriver, error) {
	if config.Network == "" {
		config.Network = "tcp"
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("extension", config.Extension)
	config.Peer.Side = log.SideHost
	if config.Peer.Logger == nil {
		config.Peer.Logger = logger
	}

	peer, err := transport.Dial(ctx, config.Network, config.Address, config.Peer)
	if err != nil {
		return nil, err
	}
	peer.SetPackage(config.Extension)

	d := &ExtensionDriver{
		config: config,
		host:   host,
		peer:   peer,
		proxy:  binder.NewExtensionProxy(peer, logger),
		logger: logger,
		active: make(map[string]started),
		views:  make(map[string]extension.View),
	}
	logger.Info("extension linked", "address", config.Address, "lib", d.proxy.LibVersion())
	return d, nil
}

// Done is closed when the link to the extension is gone.
func (d *ExtensionDriver) Done() <-chan struct{} { return d.peer.Done() }

// LibVersion asks the extension for its library version.
func (d *ExtensionDriver) LibVersion() string { return d.proxy.LibVersion() }

// StartStream starts a data type of the extension and publishes its states
// on the host under the host-wide id.
func (d *ExtensionDriver) StartStream(typeID string) string {
	id := uuid.NewString()
	dataTypeID := model.DataTypeID(d.config.Extension, typeID)
	d.track(id, started{kind: kindStream, typeID: typeID})

	d.proxy.StartStream(id, typeID, binder.HandlerFuncs{
		Next: func(b wire.Bundle) {
			s, err := wire.Decode[model.StreamState](b)
			if err != nil {
				d.logger.Warn("stream state not decoded", "type", typeID, "error", err)
				return
			}
			if d.host != nil {
				d.host.PublishStream(dataTypeID, s)
			}
		},
		Error:    func(msg string) { d.logger.Warn("stream error", "type", typeID, "error", msg) },
		Complete: func() { d.untrack(id) },
	})
	return id
}

// StartView starts rendering a graphical data type of the extension.
func (d *ExtensionDriver) StartView(typeID string, config model.ViewConfig) (string, error) {
	b, err := wire.Encode(config)
	if err != nil {
		return "", err
	}
	id := uuid.NewString()
	d.track(id, started{kind: kindView, typeID: typeID})

	d.proxy.StartView(id, typeID, b, binder.HandlerFuncs{
		Next: func(b wire.Bundle) {
			if v, ok := extension.DecodeView(b); ok {
				d.mu.Lock()
				d.views[id] = v
				d.mu.Unlock()
				if d.config.OnView != nil {
					d.config.OnView(typeID, v)
				}
				return
			}
			ev, err := wire.Decode[model.ViewEvent](b)
			if err != nil {
				d.logger.Warn("view event not decoded", "type", typeID, "error", err)
				return
			}
			d.logger.Debug("view event", "type", typeID, "event", ev.VariantTag())
		},
		Error:    func(msg string) { d.logger.Warn("view error", "type", typeID, "error", msg) },
		Complete: func() { d.untrack(id) },
	})
	return id, nil
}

// View returns the last view rendered by a started view.
func (d *ExtensionDriver) View(id string) (extension.View, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	v, ok := d.views[id]
	return v, ok
}

// StartScan asks the extension for devices.
func (d *ExtensionDriver) StartScan() string {
	id := uuid.NewString()
	d.track(id, started{kind: kindScan})

	d.proxy.StartScan(id, binder.HandlerFuncs{
		Next: func(b wire.Bundle) {
			dev, err := wire.Decode[model.Device](b)
			if err != nil {
				d.logger.Warn("device not decoded", "error", err)
				return
			}
			d.logger.Info("device found", "uid", dev.UID, "name", dev.DisplayName)
			if d.config.OnDevice != nil {
				d.config.OnDevice(dev)
			}
		},
		Complete: func() { d.untrack(id) },
	})
	return id
}

// ConnectDevice connects a scanned device and publishes its data points
// on the host under their data type ids.
func (d *ExtensionDriver) ConnectDevice(uid string) string {
	id := uuid.NewString()
	d.track(id, started{kind: kindDevice, typeID: uid})

	d.proxy.ConnectDevice(id, uid, binder.HandlerFuncs{
		Next: func(b wire.Bundle) {
			ev, err := wire.Decode[model.DeviceEvent](b)
			if err != nil {
				d.logger.Warn("device event not decoded", "uid", uid, "error", err)
				return
			}
			switch ev := ev.(type) {
			case model.OnDataPoint:
				if d.host != nil {
					d.host.PublishStream(ev.DataPoint.DataTypeID, model.StreamStreaming{DataPoint: ev.DataPoint})
				}
			case model.OnConnectionStatus:
				d.logger.Info("device status", "uid", uid, "status", ev.Status)
			default:
				d.logger.Debug("device event", "uid", uid, "event", ev.VariantTag())
			}
		},
		Error:    func(msg string) { d.logger.Warn("device error", "uid", uid, "error", msg) },
		Complete: func() { d.untrack(id) },
	})
	return id
}

// Stop stops an emitter started by the driver.
func (d *ExtensionDriver) Stop(id string) error {
	d.mu.Lock()
	s, ok := d.active[id]
	delete(d.active, id)
	delete(d.views, id)
	d.mu.Unlock()

	if !ok {
		return ErrUnknownEmitter
	}
	switch s.kind {
	case kindStream:
		d.proxy.StopStream(id)
	case kindView:
		d.proxy.StopView(id)
	case kindScan:
		d.proxy.StopScan(id)
	case kindDevice:
		d.proxy.DisconnectDevice(id)
	}
	return nil
}

// Active lists the running emitters.
func (d *ExtensionDriver) Active() []Started {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]Started, 0, len(d.active))
	for id, s := range d.active {
		out = append(out, Started{ID: id, Kind: s.kind.String(), TypeID: s.typeID})
	}
	return out
}

// Close stops every emitter and closes the link.
func (d *ExtensionDriver) Close() error {
	d.mu.Lock()
	ids := make([]string, 0, len(d.active))
	for id := range d.active {
		ids = append(ids, id)
	}
	d.mu.Unlock()

	for _, id := range ids {
		_ = d.Stop(id)
	}
	return d.peer.Close()
}

func (d *ExtensionDriver) track(id string, s started) {
	d.mu.Lock()
	d.active[id] = s
	d.mu.Unlock()
	d.logger.Debug("emitter started", "id", id, "kind", s.kind, "type", s.typeID)
}

func (d *ExtensionDriver) untrack(id string) {
	d.mu.Lock()
	delete(d.active, id)
	d.mu.Unlock()
}
