package sampleext

import (
	"context"
	_ "embed"
	"fmt"
	"log/slog"
	"time"

	"github.com/jpweytjens/karoo-ext/pkg/extension"
	"github.com/jpweytjens/karoo-ext/pkg/karoo"
	"github.com/jpweytjens/karoo-ext/pkg/log"
	"github.com/jpweytjens/karoo-ext/pkg/model"
)

// Extension identity, matching extension_info.yaml.
const (
	ID      = "sample"
	Version = "1.0"
)

//go:embed extension_info.yaml
var manifestYAML []byte

// Manifest returns the embedded extension manifest.
func Manifest() (*extension.Manifest, error) {
	return extension.ParseManifest(manifestYAML)
}

// Config configures the sample extension.
type Config struct {
	// ScanDelay is the wait before the first device is found.
	ScanDelay time.Duration

	// ScanInterval spaces the devices found by a scan.
	ScanInterval time.Duration

	// SampleInterval spaces the data points of a connected device.
	SampleInterval time.Duration

	// Logger receives operational logs. Nil uses slog.Default().
	Logger *slog.Logger

	// Trace receives emitter lifecycle events. Nil disables tracing.
	Trace log.Logger
}

// DefaultConfig returns the timings of the reference sample.
func DefaultConfig() Config {
	return Config{
		ScanDelay:      time.Second,
		ScanInterval:   5 * time.Second,
		SampleInterval: time.Second,
	}
}

// Extension is the sample extension.
type Extension struct {
	sys    *karoo.System
	config Config
	logger *slog.Logger
	types  []extension.DataType
}

// New returns the sample extension reading host data through sys.
func New(sys *karoo.System, config Config) *Extension {
	def := DefaultConfig()
	if config.ScanDelay <= 0 {
		config.ScanDelay = def.ScanDelay
	}
	if config.ScanInterval <= 0 {
		config.ScanInterval = def.ScanInterval
	}
	if config.SampleInterval <= 0 {
		config.SampleInterval = def.SampleInterval
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("extension", ID)

	return &Extension{
		sys:    sys,
		config: config,
		logger: logger,
		types:  []extension.DataType{NewPowerHR(sys, logger)},
	}
}

// Service returns the host-facing service of the extension.
func (x *Extension) Service() *extension.Service {
	return extension.NewService(extension.ServiceConfig{
		ID:      ID,
		Version: Version,
		Types:   x.types,
		Scanner: x,
		Logger:  x.config.Logger,
		Trace:   x.config.Trace,
	})
}

// StartScan finds a new static heart rate source every scan interval.
func (x *Extension) StartScan(e *extension.Emitter[model.Device]) {
	go func() {
		ctx := e.Context()
		wait := x.config.ScanDelay
		for n := 0; ; n++ {
			select {
			case <-ctx.Done():
				return
			case <-time.After(wait):
			}
			e.OnNext(NewStaticHRSource(ID, 100+n*10).Device())
			wait = x.config.ScanInterval
		}
	}()
}

// ConnectDevice connects a device found by StartScan. Unknown uids are
// reported through the emitter.
func (x *Extension) ConnectDevice(uid string, e *extension.Emitter[model.DeviceEvent]) {
	src, ok := StaticHRSourceFromUID(ID, uid)
	if !ok {
		x.logger.Warn("unknown device", "uid", uid)
		e.OnError(fmt.Errorf("unknown device %q", uid))
		return
	}
	go src.Connect(e, x.config.SampleInterval)
}

// Beep plays the demo pattern for the host hardware. It returns false when
// the hardware has no pattern or the host is not connected.
func (x *Extension) Beep() bool {
	pattern, ok := BeepPattern(x.sys.HardwareType())
	if !ok {
		return false
	}
	dispatched := x.sys.Dispatch(pattern)
	x.logger.Debug("beeps dispatched", "dispatched", dispatched)
	return dispatched
}

// Run announces the extension on every connect and marks distance
// milestones until ctx is done.
func (x *Extension) Run(ctx context.Context) error {
	id := x.sys.RegisterConnectionListener(func(connected bool) {
		if !connected {
			return
		}
		x.sys.Dispatch(model.SystemNotification{
			ID:           "sample-started",
			Message:      "Sample extension started",
			Action:       ptr("See it"),
			ActionIntent: ptr("io.hammerhead.sampleext.MAIN"),
		})
	})
	defer x.sys.RemoveConsumer(id)

	return RunDistanceMarkers(ctx, x.sys, x.logger)
}

func ptr[T any](v T) *T { return &v }

var _ extension.DeviceScanner = (*Extension)(nil)
