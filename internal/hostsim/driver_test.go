package hostsim

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jpweytjens/karoo-ext/pkg/extension"
	"github.com/jpweytjens/karoo-ext/pkg/model"
)

// fixedType streams one value and renders one view.
type fixedType struct {
	extension.BaseDataType
	value float64
}

func (f fixedType) StartStream(e *extension.Emitter[model.StreamState]) {
	e.OnNext(model.Streaming(f.DataTypeID(), f.value))
}

func (f fixedType) StartView(_ model.ViewConfig, e *extension.ViewEmitter) {
	e.OnNext(model.UpdateGraphicConfig{ShowHeader: false})
	e.UpdateView(extension.View{Cells: []extension.Cell{{Label: "FIX", Text: "42"}}})
}

type oneDevice struct{}

func (oneDevice) StartScan(e *extension.Emitter[model.Device]) {
	e.OnNext(model.Device{Extension: "drv", UID: "hr-1", DataTypes: []string{model.TypeHeartRate}, DisplayName: "HR 1"})
}

func (oneDevice) ConnectDevice(uid string, e *extension.Emitter[model.DeviceEvent]) {
	e.OnNext(model.OnConnectionStatus{Status: model.ConnectionConnected})
	e.OnNext(model.OnDataPoint{DataPoint: model.DataPoint{
		DataTypeID: model.TypeHeartRate,
		Values:     map[string]float64{model.FieldHeartRate: 128},
		SourceID:   uid,
	}})
}

func startExtension(t *testing.T) string {
	t.Helper()
	svc := extension.NewService(extension.ServiceConfig{
		ID:      "drv",
		Version: "1.0",
		Types:   []extension.DataType{fixedType{extension.NewBaseDataType("drv", "fixed"), 7}},
		Scanner: oneDevice{},
	})

	ready := make(chan net.Addr, 1)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- extension.Serve(ctx, svc, extension.ServeConfig{
			Address: "127.0.0.1:0",
			Peer:    testConfig(),
			Ready:   func(a net.Addr) { ready <- a },
		})
	}()
	t.Cleanup(func() {
		cancel()
		assert.NoError(t, receive(t, done))
	})
	return receive(t, ready).String()
}

func TestExtensionDriver(t *testing.T) {
	addr := startExtension(t)
	h := New(DefaultConfig())

	views := make(chan extension.View, 4)
	devices := make(chan model.Device, 4)
	d, err := DialExtension(context.Background(), h, DriverConfig{
		Extension: "drv",
		Address:   addr,
		Peer:      testConfig(),
		OnView:    func(_ string, v extension.View) { views <- v },
		OnDevice:  func(dev model.Device) { devices <- dev },
	})
	require.NoError(t, err)
	defer d.Close()

	assert.NotEmpty(t, d.LibVersion())

	t.Run("Stream", func(t *testing.T) {
		id := d.StartStream("fixed")
		dataTypeID := model.DataTypeID("drv", "fixed")
		require.Eventually(t, func() bool {
			s, ok := h.StreamState(dataTypeID)
			_, streaming := s.(model.StreamStreaming)
			return ok && streaming
		}, waitTimeout, 10*time.Millisecond)
		require.NoError(t, d.Stop(id))
	})

	t.Run("View", func(t *testing.T) {
		id, err := d.StartView("fixed", model.ViewConfig{TextSize: 24})
		require.NoError(t, err)
		v := receive(t, views)
		assert.Equal(t, "FIX 42", v.Text())

		last, ok := d.View(id)
		require.True(t, ok)
		assert.Equal(t, v, last)
		require.NoError(t, d.Stop(id))
	})

	t.Run("Devices", func(t *testing.T) {
		scan := d.StartScan()
		dev := receive(t, devices)
		assert.Equal(t, "hr-1", dev.UID)
		require.NoError(t, d.Stop(scan))

		d.ConnectDevice(dev.UID)
		require.Eventually(t, func() bool {
			s, ok := h.StreamState(model.TypeHeartRate)
			if !ok {
				return false
			}
			p, streaming := s.(model.StreamStreaming)
			return streaming && p.DataPoint.Values[model.FieldHeartRate] == 128
		}, waitTimeout, 10*time.Millisecond)
		assert.Len(t, d.Active(), 1)
	})

	t.Run("StopUnknown", func(t *testing.T) {
		assert.ErrorIs(t, d.Stop("nope"), ErrUnknownEmitter)
	})
}
