package hostsim

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/jpweytjens/karoo-ext/pkg/binder"
	"github.com/jpweytjens/karoo-ext/pkg/log"
	"github.com/jpweytjens/karoo-ext/pkg/model"
	"github.com/jpweytjens/karoo-ext/pkg/transport"
	"github.com/jpweytjens/karoo-ext/pkg/version"
	"github.com/jpweytjens/karoo-ext/pkg/wire"
)

// ErrUnknownParams is returned for consumers with params the host does not
// recognise.
var ErrUnknownParams = errors.New("unknown event params")

// Config configures a Host.
type Config struct {
	Info model.KarooInfo

	// Profile is the rider profile published to UserProfile consumers.
	Profile model.UserProfile

	// OnEffect is called for every dispatched effect.
	OnEffect func(model.Effect)

	// Logger receives operational logs. Nil uses slog.Default().
	Logger *slog.Logger

	// Trace receives consumer lifecycle events. Nil disables tracing.
	Trace log.Logger
}

// DefaultConfig returns a K2 host with a metric rider profile.
func DefaultConfig() Config {
	return Config{
		Info: model.KarooInfo{Serial: "SIM-0001", HardwareType: model.HardwareK2},
		Profile: model.UserProfile{
			Weight: 70,
			PreferredUnit: model.PreferredUnit{
				Distance:    model.UnitMetric,
				Elevation:   model.UnitMetric,
				Temperature: model.UnitMetric,
				Weight:      model.UnitMetric,
			},
			MaxHR:     190,
			RestingHR: 50,
			HeartRateZones: []model.Zone{
				{Min: 0, Max: 113}, {Min: 114, Max: 141}, {Min: 142, Max: 155},
				{Min: 156, Max: 170}, {Min: 171, Max: 190},
			},
			FTP: 250,
			PowerZones: []model.Zone{
				{Min: 0, Max: 137}, {Min: 138, Max: 187}, {Min: 188, Max: 225},
				{Min: 226, Max: 262}, {Min: 263, Max: 300}, {Min: 301, Max: 375},
				{Min: 376, Max: 2000},
			},
		},
	}
}

// topic groups consumers that receive the same events.
type topic struct {
	kind       string
	dataTypeID string
}

func (t topic) String() string {
	if t.dataTypeID != "" {
		return t.kind + ":" + t.dataTypeID
	}
	return t.kind
}

const (
	topicRideState   = "ride-state"
	topicLap         = "lap"
	topicUserProfile = "user-profile"
	topicStream      = "stream"
)

func topicOf(p model.EventParams) (topic, bool) {
	switch p := p.(type) {
	case model.RideStateParams:
		return topic{kind: topicRideState}, true
	case model.LapParams:
		return topic{kind: topicLap}, true
	case model.UserProfileParams:
		return topic{kind: topicUserProfile}, true
	case model.StartStreaming:
		return topic{kind: topicStream, dataTypeID: p.DataTypeID}, true
	default:
		return topic{}, false
	}
}

type consumer struct {
	id    string
	topic topic
	h     binder.Handler
}

// ConsumerInfo describes an installed consumer.
type ConsumerInfo struct {
	ID    string
	Topic string
}

// Host is an in-memory SystemController.
type Host struct {
	config Config
	logger *slog.Logger
	tracer log.Tracer

	mu        sync.Mutex
	info      model.KarooInfo
	profile   model.UserProfile
	rideState model.RideState
	streams   map[string]model.StreamState
	consumers map[string]*consumer
	byTopic   map[topic]map[string]*consumer
	effects   []model.Effect
	listeners []*transport.Listener
}

// New returns a host for config.
func New(config Config) *Host {
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Host{
		config:    config,
		logger:    logger,
		tracer:    log.Tracer{Logger: config.Trace, Side: log.SideHost},
		info:      config.Info,
		profile:   config.Profile,
		rideState: model.RideStateIdle{},
		streams:   make(map[string]model.StreamState),
		consumers: make(map[string]*consumer),
		byTopic:   make(map[topic]map[string]*consumer),
	}
}

// LibVersion returns the SDK library version.
func (h *Host) LibVersion() (string, error) {
	return version.Lib, nil
}

// Info returns the simulated device description.
func (h *Host) Info() (model.KarooInfo, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.info, nil
}

// SetInfo replaces the device description.
func (h *Host) SetInfo(info model.KarooInfo) {
	h.mu.Lock()
	h.info = info
	h.mu.Unlock()
}

// DispatchEffect records the effect.
func (h *Host) DispatchEffect(b wire.Bundle) error {
	effect, err := wire.Decode[model.Effect](b)
	if err != nil {
		h.logger.Warn("effect not decoded", "tag", b.Tag(), "error", err)
		return transport.Errorf(wire.StatusInvalidArgs, "decode effect: %v", err)
	}

	h.mu.Lock()
	h.effects = append(h.effects, effect)
	h.mu.Unlock()

	h.logger.Info("effect dispatched", "effect", effect.VariantTag())
	if h.config.OnEffect != nil {
		h.config.OnEffect(effect)
	}
	return nil
}

// Effects returns the dispatched effects in order.
func (h *Host) Effects() []model.Effect {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]model.Effect(nil), h.effects...)
}

// AddEventConsumer installs a consumer and primes it with the current value
// of its topic. A consumer with the same id is replaced.
func (h *Host) AddEventConsumer(id string, params wire.Bundle, handler binder.Handler) error {
	if id == "" {
		return binder.ErrMissingID
	}
	p, err := wire.Decode[model.EventParams](params)
	if err != nil {
		return transport.Errorf(wire.StatusInvalidArgs, "decode params: %v", err)
	}
	t, ok := topicOf(p)
	if !ok {
		return transport.Errorf(wire.StatusUnsupported, "%v: %s", ErrUnknownParams, p.VariantTag())
	}

	c := &consumer{id: id, topic: t, h: handler}
	h.mu.Lock()
	h.removeLocked(id)
	h.consumers[id] = c
	if h.byTopic[t] == nil {
		h.byTopic[t] = make(map[string]*consumer)
	}
	h.byTopic[t][id] = c
	prime := h.primeLocked(t)
	h.mu.Unlock()

	h.logger.Debug("consumer added", "id", id, "topic", t.String())
	h.tracer.State(log.StateEntityConsumer, id, "", "ADDED", t.String())
	if prime != nil {
		h.send(c, prime)
	}
	return nil
}

// RemoveEventConsumer uninstalls a consumer. Unknown ids are ignored.
func (h *Host) RemoveEventConsumer(id string) error {
	h.mu.Lock()
	c := h.removeLocked(id)
	h.mu.Unlock()

	if c != nil {
		h.logger.Debug("consumer removed", "id", id, "topic", c.topic.String())
		h.tracer.State(log.StateEntityConsumer, id, "ADDED", "REMOVED", c.topic.String())
	}
	return nil
}

func (h *Host) removeLocked(id string) *consumer {
	c, ok := h.consumers[id]
	if !ok {
		return nil
	}
	delete(h.consumers, id)
	delete(h.byTopic[c.topic], id)
	if len(h.byTopic[c.topic]) == 0 {
		delete(h.byTopic, c.topic)
	}
	return c
}

// primeLocked returns the event a new consumer of t starts with.
func (h *Host) primeLocked(t topic) model.Event {
	switch t.kind {
	case topicRideState:
		return h.rideState
	case topicUserProfile:
		return h.profile
	case topicStream:
		if s, ok := h.streams[t.dataTypeID]; ok {
			return model.OnStreamState{State: s}
		}
		return model.OnStreamState{State: model.StreamSearching{}}
	default:
		return nil
	}
}

// Consumers lists the installed consumers sorted by id.
func (h *Host) Consumers() []ConsumerInfo {
	h.mu.Lock()
	out := make([]ConsumerInfo, 0, len(h.consumers))
	for _, c := range h.consumers {
		out = append(out, ConsumerInfo{ID: c.id, Topic: c.topic.String()})
	}
	h.mu.Unlock()

	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// PublishRideState sets the ride state and sends it to RideState consumers.
func (h *Host) PublishRideState(s model.RideState) {
	h.mu.Lock()
	h.rideState = s
	h.mu.Unlock()
	h.publish(topic{kind: topicRideState}, s)
}

// PublishLap sends a lap to Lap consumers.
func (h *Host) PublishLap(l model.Lap) {
	h.publish(topic{kind: topicLap}, l)
}

// PublishUserProfile replaces the rider profile and sends it to UserProfile
// consumers.
func (h *Host) PublishUserProfile(p model.UserProfile) {
	h.mu.Lock()
	h.profile = p
	h.mu.Unlock()
	h.publish(topic{kind: topicUserProfile}, p)
}

// PublishStream sets the state of a data type stream and sends it to its
// consumers.
func (h *Host) PublishStream(dataTypeID string, s model.StreamState) {
	h.mu.Lock()
	h.streams[dataTypeID] = s
	h.mu.Unlock()
	h.publish(topic{kind: topicStream, dataTypeID: dataTypeID}, model.OnStreamState{State: s})
}

// PublishValue streams a single value for a data type.
func (h *Host) PublishValue(dataTypeID string, value float64) {
	h.PublishStream(dataTypeID, model.Streaming(dataTypeID, value))
}

// PublishValues streams a data point with several fields.
func (h *Host) PublishValues(dataTypeID string, values map[string]float64) {
	h.PublishStream(dataTypeID, model.StreamStreaming{DataPoint: model.DataPoint{
		DataTypeID: dataTypeID,
		Values:     values,
	}})
}

// StreamState returns the last published state of a data type.
func (h *Host) StreamState(dataTypeID string) (model.StreamState, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	s, ok := h.streams[dataTypeID]
	return s, ok
}

func (h *Host) publish(t topic, ev model.Event) {
	b, err := wire.Encode(ev)
	if err != nil {
		h.logger.Warn("event not encoded", "topic", t.String(), "error", err)
		return
	}

	h.mu.Lock()
	targets := make([]*consumer, 0, len(h.byTopic[t]))
	for _, c := range h.byTopic[t] {
		targets = append(targets, c)
	}
	h.mu.Unlock()

	for _, c := range targets {
		c.h.OnNext(b)
	}
}

func (h *Host) send(c *consumer, ev model.Event) {
	b, err := wire.Encode(ev)
	if err != nil {
		h.logger.Warn("event not encoded", "topic", c.topic.String(), "error", err)
		return
	}
	c.h.OnNext(b)
}

// Serve accepts extension links on ln until ctx is done.
func (h *Host) Serve(ctx context.Context, ln *transport.Listener) error {
	h.mu.Lock()
	h.listeners = append(h.listeners, ln)
	h.mu.Unlock()

	err := ln.Serve(ctx, func(p *transport.Peer) {
		binder.ServeSystem(p, h)
	})
	if errors.Is(err, transport.ErrListenerClosed) && ctx.Err() != nil {
		return nil
	}
	if err != nil {
		return fmt.Errorf("serve: %w", err)
	}
	return nil
}

// Drop kills every extension link, as if the host process died. Consumers
// of the dropped links are removed when their links close.
func (h *Host) Drop() int {
	h.mu.Lock()
	listeners := append([]*transport.Listener(nil), h.listeners...)
	h.mu.Unlock()

	n := 0
	for _, ln := range listeners {
		for _, p := range ln.Peers() {
			p.Abort()
			n++
		}
	}
	if n > 0 {
		h.logger.Info("links dropped", "count", n)
	}
	return n
}

// Links returns the packages of the connected extensions.
func (h *Host) Links() []string {
	h.mu.Lock()
	listeners := append([]*transport.Listener(nil), h.listeners...)
	h.mu.Unlock()

	var out []string
	for _, ln := range listeners {
		for _, p := range ln.Peers() {
			out = append(out, p.Package())
		}
	}
	sort.Strings(out)
	return out
}

var _ binder.SystemController = (*Host)(nil)
