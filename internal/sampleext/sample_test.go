package sampleext

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jpweytjens/karoo-ext/internal/hostsim"
	"github.com/jpweytjens/karoo-ext/pkg/binder"
	"github.com/jpweytjens/karoo-ext/pkg/connection"
	"github.com/jpweytjens/karoo-ext/pkg/extension"
	"github.com/jpweytjens/karoo-ext/pkg/karoo"
	"github.com/jpweytjens/karoo-ext/pkg/model"
	"github.com/jpweytjens/karoo-ext/pkg/transport"
	"github.com/jpweytjens/karoo-ext/pkg/wire"
)

const waitTimeout = 2 * time.Second

func TestPowerHRValue(t *testing.T) {
	id := model.DataTypeID(ID, "power-hr")
	tests := []struct {
		name      string
		hr, power model.StreamState
		want      model.StreamState
	}{
		{"Both", model.Streaming(model.TypeHeartRate, 150), model.Streaming(model.TypePower, 200), model.Streaming(id, 300)},
		{"NoHR", model.StreamSearching{}, model.Streaming(model.TypePower, 200), model.StreamNotAvailable{}},
		{"NoPower", model.Streaming(model.TypeHeartRate, 150), model.StreamIdle{}, model.StreamNotAvailable{}},
		{"NoValue", model.StreamStreaming{DataPoint: model.DataPoint{Values: map[string]float64{"a": 1, "b": 2}}}, model.Streaming(model.TypePower, 200), model.StreamNotAvailable{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, PowerHRValue(id, tt.hr, tt.power))
		})
	}
}

func TestStaticHRSource(t *testing.T) {
	src := NewStaticHRSource(ID, 120)
	assert.Equal(t, "sample-hr-120", src.UID())
	assert.Equal(t, []string{model.TypeHeartRate}, src.Device().DataTypes)

	parsed, ok := StaticHRSourceFromUID(ID, src.UID())
	require.True(t, ok)
	assert.Equal(t, src, parsed)

	for _, uid := range []string{"", "sample-hr-", "sample-hr-x", "other-hr-100", "sample-hr--5"} {
		t.Run(uid, func(t *testing.T) {
			_, ok := StaticHRSourceFromUID(ID, uid)
			assert.False(t, ok)
		})
	}
}

func TestDistanceMarker(t *testing.T) {
	metric := model.UserProfile{PreferredUnit: model.PreferredUnit{Distance: model.UnitMetric}}
	imperial := model.UserProfile{PreferredUnit: model.PreferredUnit{Distance: model.UnitImperial}}

	t.Run("Metric", func(t *testing.T) {
		m := NewDistanceMarker(metric)
		var got []int
		for _, d := range []float64{500, 999, 1000, 1500, 2100, 2200, 3000} {
			if unit, ok := m.Observe(d); ok {
				got = append(got, unit)
			}
		}
		assert.Equal(t, []int{1, 2, 3}, got)
	})

	t.Run("BaselineIsNotAMarker", func(t *testing.T) {
		m := NewDistanceMarker(metric)
		_, ok := m.Observe(5000)
		assert.False(t, ok)
	})

	t.Run("Imperial", func(t *testing.T) {
		m := NewDistanceMarker(imperial)
		m.Observe(0)
		_, ok := m.Observe(1500)
		assert.False(t, ok)
		unit, ok := m.Observe(1700)
		assert.True(t, ok)
		assert.Equal(t, 1, unit)
		assert.Equal(t, "1 mi ridden", *MarkerAlert(unit, imperial).Detail)
	})
}

func TestBeepPattern(t *testing.T) {
	k2, ok := BeepPattern(model.HardwareK2)
	require.True(t, ok)
	assert.Len(t, k2.Tones, 7)
	assert.Nil(t, k2.Tones[1].Frequency)

	karooPattern, ok := BeepPattern(model.HardwareKaroo)
	require.True(t, ok)
	assert.Len(t, karooPattern.Tones, 19)
	assert.Equal(t, 277, karooPattern.Tones[0].DurationMs)

	_, ok = BeepPattern(model.HardwareUnknown)
	assert.False(t, ok)
}

func TestManifest(t *testing.T) {
	m, err := Manifest()
	require.NoError(t, err)
	assert.Equal(t, ID, m.ID)

	x := New(idleSystem(t), DefaultConfig())
	assert.NoError(t, m.Check(x.Service()))
}

// idleSystem is never bound; it serves code paths that need no host.
func idleSystem(t *testing.T) *karoo.System {
	t.Helper()
	sys := karoo.New(nil, karoo.DefaultConfig())
	t.Cleanup(sys.Close)
	return sys
}

func receive[T any](t *testing.T, ch <-chan T) T {
	t.Helper()
	select {
	case v := <-ch:
		return v
	case <-time.After(waitTimeout):
		t.Fatal("nothing received")
		var zero T
		return zero
	}
}

func testPeer() transport.Config {
	cfg := transport.DefaultConfig()
	cfg.DisableKeepAlive = true
	cfg.CallTimeout = 2 * time.Second
	return cfg
}

// startHost serves h and returns a System bound to it.
func startHost(t *testing.T, h *hostsim.Host) *karoo.System {
	t.Helper()
	ln, err := transport.Listen("tcp", "127.0.0.1:0", testPeer())
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	go func() { _ = h.Serve(ctx, ln) }()

	cfg := karoo.DefaultConfig()
	cfg.Package = "io.hammerhead.sampleext"
	cfg.Policy = connection.FixedDelay(20 * time.Millisecond)
	sys := karoo.New(binder.NewSocketBinder(binder.SocketConfig{
		Address: ln.Addr().String(),
		Package: cfg.Package,
		Peer:    testPeer(),
	}), cfg)

	t.Cleanup(func() {
		sys.Close()
		cancel()
	})
	return sys
}

func hasTopic(h *hostsim.Host, topic string) bool {
	for _, c := range h.Consumers() {
		if c.Topic == topic {
			return true
		}
	}
	return false
}

func sink() (binder.Handler, <-chan wire.Bundle) {
	ch := make(chan wire.Bundle, 64)
	return binder.HandlerFuncs{Next: func(b wire.Bundle) { ch <- b }}, ch
}

func TestRunMarksDistance(t *testing.T) {
	h := hostsim.New(hostsim.DefaultConfig())
	sys := startHost(t, h)
	x := New(sys, DefaultConfig())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- x.Run(ctx) }()

	h.PublishValue(model.TypeDistance, 500)
	require.Eventually(t, func() bool {
		return hasTopic(h, "stream:"+model.TypeDistance)
	}, waitTimeout, 10*time.Millisecond)
	h.PublishValue(model.TypeDistance, 1200)

	require.Eventually(t, func() bool { return len(h.Effects()) >= 3 }, waitTimeout, 10*time.Millisecond)
	effects := h.Effects()
	assert.IsType(t, model.SystemNotification{}, effects[0])
	alert, ok := effects[1].(model.InRideAlert)
	require.True(t, ok)
	assert.Equal(t, "1 km ridden", *alert.Detail)
	assert.Equal(t, model.MarkLap{}, effects[2])

	assert.True(t, x.Beep())

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(waitTimeout):
		t.Fatal("Run did not return")
	}
}

func TestPowerHRStream(t *testing.T) {
	h := hostsim.New(hostsim.DefaultConfig())
	sys := startHost(t, h)
	handler, out := sink()

	e := extension.NewEmitter[model.StreamState](context.Background(), handler)
	defer e.Cancel()
	NewPowerHR(sys, nil).StartStream(e)

	require.Eventually(t, func() bool {
		return hasTopic(h, "stream:"+model.TypeHeartRate) && hasTopic(h, "stream:"+model.TypePower)
	}, waitTimeout, 10*time.Millisecond)
	h.PublishValue(model.TypeHeartRate, 150)
	h.PublishValue(model.TypePower, 200)

	deadline := time.After(waitTimeout)
	for {
		select {
		case b := <-out:
			s, err := wire.Decode[model.StreamState](b)
			require.NoError(t, err)
			if st, ok := s.(model.StreamStreaming); ok {
				v, _ := st.DataPoint.SingleValue()
				assert.Equal(t, 300.0, v)
				return
			}
			assert.Equal(t, model.StreamNotAvailable{}, s)
		case <-deadline:
			t.Fatal("no power-hr value")
		}
	}
}

func TestScanAndConnect(t *testing.T) {
	x := New(idleSystem(t), Config{
		ScanDelay:      5 * time.Millisecond,
		ScanInterval:   5 * time.Millisecond,
		SampleInterval: 5 * time.Millisecond,
	})

	handler, out := sink()
	scan := extension.NewEmitter[model.Device](context.Background(), handler)
	x.StartScan(scan)

	var uids []string
	for len(uids) < 2 {
		dev, err := wire.Decode[model.Device](receive(t, out))
		require.NoError(t, err)
		uids = append(uids, dev.UID)
	}
	scan.Cancel()
	assert.Equal(t, []string{"sample-hr-100", "sample-hr-110"}, uids)

	devHandler, events := sink()
	dev := extension.NewEmitter[model.DeviceEvent](context.Background(), devHandler)
	defer dev.Cancel()
	x.ConnectDevice(uids[1], dev)

	first, err := wire.Decode[model.DeviceEvent](receive(t, events))
	require.NoError(t, err)
	assert.Equal(t, model.OnConnectionStatus{Status: model.ConnectionConnected}, first)

	ev, err := wire.Decode[model.DeviceEvent](receive(t, events))
	require.NoError(t, err)
	dp, ok := ev.(model.OnDataPoint)
	require.True(t, ok)
	assert.Equal(t, 110.0, dp.DataPoint.Values[model.FieldHeartRate])

	t.Run("Unknown", func(t *testing.T) {
		var errs []string
		e := extension.NewEmitter[model.DeviceEvent](context.Background(), binder.HandlerFuncs{
			Error: func(msg string) { errs = append(errs, msg) },
		})
		x.ConnectDevice("bogus", e)
		assert.Len(t, errs, 1)
	})
}
