package karoo

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/jpweytjens/karoo-ext/pkg/binder"
	"github.com/jpweytjens/karoo-ext/pkg/model"
	"github.com/jpweytjens/karoo-ext/pkg/wire"
)

// ErrMissingParams is returned when a consumer is added without params.
var ErrMissingParams = errors.New("missing event params")

// ConsumerOption configures a typed consumer.
type ConsumerOption func(*consumerOptions)

type consumerOptions struct {
	id         string
	onError    func(msg string)
	onComplete func()
}

// WithOnError receives host errors and events that fail to decode. Without
// it, both are logged and dropped.
func WithOnError(fn func(msg string)) ConsumerOption {
	return func(o *consumerOptions) { o.onError = fn }
}

// WithOnComplete is called when the host ends the event stream.
func WithOnComplete(fn func()) ConsumerOption {
	return func(o *consumerOptions) { o.onComplete = fn }
}

// WithID registers the consumer under id instead of a generated one.
func WithID(id string) ConsumerOption {
	return func(o *consumerOptions) { o.id = id }
}

// AddEventConsumer registers a consumer of T events selected by params and
// returns its id.
func AddEventConsumer[T model.Event](s *System, params model.EventParams, onEvent func(T), opts ...ConsumerOption) (string, error) {
	o := consumerOptions{}
	for _, opt := range opts {
		opt(&o)
	}
	if o.id == "" {
		o.id = NewID()
	}

	if params == nil {
		return "", ErrMissingParams
	}
	b, err := wire.Encode(params)
	if err != nil {
		return "", fmt.Errorf("encode params: %w", err)
	}

	c := &eventConsumer[T]{
		id:      o.id,
		params:  b,
		onEvent: onEvent,
		opts:    o,
		logger:  s.logger.With("consumer", o.id),
	}
	return s.AddConsumer(c), nil
}

// AddDefaultConsumer is AddEventConsumer with the default params of T.
func AddDefaultConsumer[T model.Event](s *System, onEvent func(T), opts ...ConsumerOption) (string, error) {
	params, err := model.DefaultParams[T]()
	if err != nil {
		return "", err
	}
	return AddEventConsumer(s, params, onEvent, opts...)
}

// eventConsumer attaches a host event consumer and decodes what it receives.
type eventConsumer[T model.Event] struct {
	id      string
	params  wire.Bundle
	onEvent func(T)
	opts    consumerOptions
	logger  *slog.Logger

	mu      sync.Mutex
	current *attachment[T]
}

func (c *eventConsumer[T]) ID() string { return c.id }

// Register hands the host a fresh attachment, so callbacks meant for an
// earlier one are dropped.
func (c *eventConsumer[T]) Register(sc binder.SystemController) {
	a := &attachment[T]{consumer: c}
	c.mu.Lock()
	prev := c.current
	c.current = a
	c.mu.Unlock()
	if prev != nil {
		prev.closed.Store(true)
	}

	if err := sc.AddEventConsumer(c.id, c.params, a); err != nil {
		c.logger.Warn("consumer not registered with host", "error", err)
	}
}

func (c *eventConsumer[T]) Unregister(sc binder.SystemController) {
	c.mu.Lock()
	a := c.current
	c.current = nil
	c.mu.Unlock()
	if a != nil {
		a.closed.Store(true)
	}

	if sc == nil {
		return
	}
	if err := sc.RemoveEventConsumer(c.id); err != nil {
		c.logger.Debug("consumer not removed from host", "error", err)
	}
}

// attachment is the handler the host holds for one Register call. Once
// closed it ignores the host.
type attachment[T model.Event] struct {
	consumer *eventConsumer[T]
	closed   atomic.Bool
}

func (a *attachment[T]) OnNext(b wire.Bundle) {
	if !a.closed.Load() {
		a.consumer.OnNext(b)
	}
}

func (a *attachment[T]) OnError(msg string) {
	if !a.closed.Load() {
		a.consumer.OnError(msg)
	}
}

func (a *attachment[T]) OnComplete() {
	if !a.closed.Load() {
		a.consumer.OnComplete()
	}
}

func (c *eventConsumer[T]) OnNext(b wire.Bundle) {
	ev, err := wire.Decode[T](b)
	if err != nil {
		c.OnError(err.Error())
		return
	}
	c.call("onEvent", func() { c.onEvent(ev) })
}

func (c *eventConsumer[T]) OnError(msg string) {
	if c.opts.onError == nil {
		c.logger.Warn("consumer error dropped", "error", msg)
		return
	}
	c.call("onError", func() { c.opts.onError(msg) })
}

func (c *eventConsumer[T]) OnComplete() {
	if c.opts.onComplete != nil {
		c.call("onComplete", c.opts.onComplete)
	}
}

func (c *eventConsumer[T]) call(name string, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			c.logger.Error("consumer callback panic", "callback", name, "panic", r)
		}
	}()
	fn()
}

var (
	_ Listener       = (*eventConsumer[model.Lap])(nil)
	_ binder.Handler = (*eventConsumer[model.Lap])(nil)
	_ binder.Handler = (*attachment[model.Lap])(nil)
)
