package extension

import (
	"context"
	"errors"
	"net"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jpweytjens/karoo-ext/pkg/binder"
	"github.com/jpweytjens/karoo-ext/pkg/model"
	"github.com/jpweytjens/karoo-ext/pkg/transport"
	"github.com/jpweytjens/karoo-ext/pkg/wire"
)

const waitTimeout = 2 * time.Second

// sink records what an emitter sends.
type sink struct {
	mu       sync.Mutex
	next     []wire.Bundle
	errs     []string
	complete int
	got      chan struct{}
}

func newSink() *sink { return &sink{got: make(chan struct{}, 64)} }

func (s *sink) OnNext(b wire.Bundle) {
	s.mu.Lock()
	s.next = append(s.next, b)
	s.mu.Unlock()
	s.got <- struct{}{}
}

func (s *sink) OnError(msg string) {
	s.mu.Lock()
	s.errs = append(s.errs, msg)
	s.mu.Unlock()
	s.got <- struct{}{}
}

func (s *sink) OnComplete() {
	s.mu.Lock()
	s.complete++
	s.mu.Unlock()
	s.got <- struct{}{}
}

func (s *sink) wait(t *testing.T) {
	t.Helper()
	select {
	case <-s.got:
	case <-time.After(waitTimeout):
		t.Fatal("nothing sent")
	}
}

func (s *sink) bundles() []wire.Bundle {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]wire.Bundle(nil), s.next...)
}

func TestEmitter(t *testing.T) {
	out := newSink()
	e := NewEmitter[model.StreamState](context.Background(), out)

	e.OnNext(model.StreamSearching{})
	e.OnNext(model.Streaming(model.TypePower, 250))
	e.OnError(errors.New("sensor dropout"))
	e.OnComplete()

	require.Len(t, out.next, 2)
	assert.Equal(t, model.StreamSearching{}.VariantTag(), out.next[0].Tag())
	state, err := wire.Decode[model.StreamState](out.next[1])
	require.NoError(t, err)
	assert.Equal(t, model.Streaming(model.TypePower, 250), state)
	assert.Equal(t, []string{"sensor dropout"}, out.errs)
	assert.Equal(t, 1, out.complete)

	// Completed emitters are cancelled and send nothing more.
	assert.Error(t, e.Context().Err())
	e.OnNext(model.StreamIdle{})
	e.OnComplete()
	assert.Len(t, out.next, 2)
	assert.Equal(t, 1, out.complete)
}

func TestEmitterCancel(t *testing.T) {
	out := newSink()
	e := NewEmitter[model.StreamState](context.Background(), out)
	e.Cancel()
	e.OnNext(model.StreamIdle{})
	e.OnError(errors.New("x"))
	assert.Empty(t, out.next)
	assert.Empty(t, out.errs)
	assert.Equal(t, 0, out.complete)
}

func TestViewEmitter(t *testing.T) {
	out := newSink()
	e := &ViewEmitter{NewEmitter[model.ViewEvent](context.Background(), out)}

	e.OnNext(model.UpdateGraphicConfig{ShowHeader: false})
	e.UpdateView(View{
		Background: ColorBlack,
		Cells:      []Cell{{Label: "SPD", Text: "27.3", Color: ColorWhite}, {Text: "142"}},
	})

	require.Len(t, out.next, 2)
	ev, err := wire.Decode[model.ViewEvent](out.next[0])
	require.NoError(t, err)
	assert.Equal(t, model.UpdateGraphicConfig{ShowHeader: false}, ev)

	v, ok := DecodeView(out.next[1])
	require.True(t, ok)
	assert.Equal(t, "SPD 27.3 | 142", v.Text())
	assert.Equal(t, ColorBlack, v.Background)

	_, ok = DecodeView(out.next[0])
	assert.False(t, ok)
}

// testType records starts and emits one value per stream.
type testType struct {
	BaseDataType
	streams chan *Emitter[model.StreamState]
	views   chan model.ViewConfig
}

func newTestType(id string) *testType {
	return &testType{
		BaseDataType: NewBaseDataType("test", id),
		streams:      make(chan *Emitter[model.StreamState], 4),
		views:        make(chan model.ViewConfig, 4),
	}
}

func (d *testType) StartStream(e *Emitter[model.StreamState]) {
	e.OnNext(model.Streaming(d.DataTypeID(), 1))
	d.streams <- e
}

func (d *testType) StartView(config model.ViewConfig, e *ViewEmitter) {
	e.UpdateView(View{Cells: []Cell{{Text: "ok"}}})
	d.views <- config
}

type testScanner struct {
	connected chan string
}

func (s *testScanner) StartScan(e *Emitter[model.Device]) {
	e.OnNext(model.Device{UID: "hr-1", DisplayName: "Static HR"})
}

func (s *testScanner) ConnectDevice(uid string, e *Emitter[model.DeviceEvent]) {
	s.connected <- uid
	e.OnNext(model.OnConnectionStatus{Status: model.ConnectionConnected})
}

func TestServiceStreams(t *testing.T) {
	dt := newTestType("power")
	svc := NewService(ServiceConfig{ID: "test", Version: "0.1", Types: []DataType{dt}})
	defer svc.Close()

	out := newSink()
	svc.StartStream("s1", "power", out)
	e := <-dt.streams
	assert.Equal(t, "s1", e.ID())
	assert.Equal(t, 1, svc.Active())
	require.Len(t, out.bundles(), 1)

	svc.StopStream("s1")
	assert.Error(t, e.Context().Err())
	assert.Equal(t, 0, svc.Active())

	svc.StopStream("s1")
	svc.StartStream("s2", "unknown", out)
	assert.Equal(t, 0, svc.Active())
}

func TestServiceRestartSameID(t *testing.T) {
	dt := newTestType("power")
	svc := NewService(ServiceConfig{ID: "test", Types: []DataType{dt}})
	defer svc.Close()

	svc.StartStream("s1", "power", newSink())
	first := <-dt.streams
	svc.StartStream("s1", "power", newSink())
	second := <-dt.streams

	assert.Error(t, first.Context().Err())
	assert.NoError(t, second.Context().Err())
	assert.Equal(t, 1, svc.Active())
}

func TestServiceViews(t *testing.T) {
	dt := newTestType("triple")
	svc := NewService(ServiceConfig{ID: "test", Types: []DataType{dt}})
	defer svc.Close()

	cfg := model.ViewConfig{GridSize: model.Size{First: 60, Second: 15}, TextSize: 32}
	b, err := wire.Encode(cfg)
	require.NoError(t, err)

	out := newSink()
	svc.StartView("v1", "triple", b, out)
	assert.Equal(t, cfg, <-dt.views)
	_, ok := DecodeView(out.bundles()[0])
	assert.True(t, ok)

	svc.StartView("v2", "triple", wire.Bundle{}, out)
	assert.Equal(t, 1, svc.Active())
	svc.StopView("v1")
	assert.Equal(t, 0, svc.Active())
}

func TestServiceDevices(t *testing.T) {
	scanner := &testScanner{connected: make(chan string, 1)}
	svc := NewService(ServiceConfig{ID: "test", Scanner: scanner})
	defer svc.Close()
	assert.True(t, svc.ScansDevices())

	scan := newSink()
	svc.StartScan("scan", scan)
	dev, err := wire.Decode[model.Device](scan.bundles()[0])
	require.NoError(t, err)
	assert.Equal(t, "hr-1", dev.UID)

	conn := newSink()
	svc.ConnectDevice("d1", dev.UID, conn)
	assert.Equal(t, "hr-1", <-scanner.connected)
	ev, err := wire.Decode[model.DeviceEvent](conn.bundles()[0])
	require.NoError(t, err)
	assert.Equal(t, model.OnConnectionStatus{Status: model.ConnectionConnected}, ev)

	svc.StopScan("scan")
	svc.DisconnectDevice("d1")
	assert.Equal(t, 0, svc.Active())

	noScanner := NewService(ServiceConfig{ID: "plain"})
	noScanner.StartScan("scan", newSink())
	assert.Equal(t, 0, noScanner.Active())
}

func TestServiceClose(t *testing.T) {
	dt := newTestType("power")
	svc := NewService(ServiceConfig{ID: "test", Types: []DataType{dt}})
	svc.StartStream("s1", "power", newSink())
	e := <-dt.streams

	svc.Close()
	assert.Error(t, e.Context().Err())
	assert.Equal(t, 0, svc.Active())
}

const manifestYAML = `
id: test
displayName: Test Extension
version: 0.1.0
scansDevices: false
dataTypes:
  - typeId: power
    displayName: Power
    description: Power in watts
  - typeId: triple
    displayName: Triple
    graphical: true
`

func TestManifest(t *testing.T) {
	m, err := ParseManifest([]byte(manifestYAML))
	require.NoError(t, err)
	assert.Equal(t, "test", m.ID)
	assert.Equal(t, []string{"power", "triple"}, m.TypeIDs())
	assert.True(t, m.DataTypes[1].Graphical)

	svc := NewService(ServiceConfig{ID: "test", Types: []DataType{newTestType("power"), newTestType("triple")}})
	assert.NoError(t, m.Check(svc))

	partial := NewService(ServiceConfig{ID: "test", Types: []DataType{newTestType("power"), newTestType("extra")}})
	err = m.Check(partial)
	assert.ErrorIs(t, err, ErrInvalidManifest)
	assert.Contains(t, err.Error(), `"triple" not implemented`)
	assert.Contains(t, err.Error(), `"extra" not declared`)
}

func TestManifestInvalid(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{"MissingID", "displayName: x\n"},
		{"MissingTypeID", "id: x\ndataTypes:\n  - displayName: y\n"},
		{"DuplicateTypeID", "id: x\ndataTypes:\n  - typeId: a\n  - typeId: a\n"},
		{"Malformed", "id: [\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseManifest([]byte(tt.doc))
			assert.ErrorIs(t, err, ErrInvalidManifest)
		})
	}
}

func TestLoadManifest(t *testing.T) {
	path := filepath.Join(t.TempDir(), "extension_info.yaml")
	require.NoError(t, os.WriteFile(path, []byte(manifestYAML), 0o600))

	m, err := LoadManifest(path)
	require.NoError(t, err)
	assert.Equal(t, "Test Extension", m.DisplayName)

	_, err = LoadManifest(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestServe(t *testing.T) {
	dt := newTestType("power")
	svc := NewService(ServiceConfig{ID: "test", Types: []DataType{dt}})

	ready := make(chan net.Addr, 1)
	ctx, cancel := context.WithCancel(context.Background())
	served := make(chan error, 1)
	go func() {
		cfg := DefaultServeConfig()
		cfg.Address = "127.0.0.1:0"
		cfg.Peer.DisableKeepAlive = true
		cfg.Ready = func(a net.Addr) { ready <- a }
		served <- Serve(ctx, svc, cfg)
	}()

	var addr net.Addr
	select {
	case addr = <-ready:
	case <-time.After(waitTimeout):
		t.Fatal("extension did not start")
	}

	cfg := transport.DefaultConfig()
	cfg.DisableKeepAlive = true
	host, err := transport.Dial(context.Background(), "tcp", addr.String(), cfg)
	require.NoError(t, err)
	defer host.Abort()

	proxy := binder.NewExtensionProxy(host, nil)
	assert.NotEmpty(t, proxy.LibVersion())

	out := newSink()
	proxy.StartStream("s1", "power", out)
	out.wait(t)
	state, err := wire.Decode[model.StreamState](out.bundles()[0])
	require.NoError(t, err)
	assert.Equal(t, model.Streaming("TYPE_EXT::test::power", 1), state)

	// A host that goes away stops what it started.
	e := <-dt.streams
	host.Abort()
	select {
	case <-e.Context().Done():
	case <-time.After(waitTimeout):
		t.Fatal("stream not stopped after host left")
	}

	cancel()
	select {
	case err := <-served:
		assert.NoError(t, err)
	case <-time.After(waitTimeout):
		t.Fatal("Serve did not return")
	}
}
