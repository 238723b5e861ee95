package karoo

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/jpweytjens/karoo-ext/pkg/model"
)

// DefaultSubscriptionBuffer is the channel capacity used by StreamData.
const DefaultSubscriptionBuffer = 16

// ErrStreamError wraps errors reported by the host for a subscription.
var ErrStreamError = errors.New("stream error")

// Subscription delivers the events of one consumer on a channel. When the
// channel is full the oldest event is dropped. The channel is closed after
// Cancel, after the subscription context ends, or when the host completes
// the stream.
type Subscription[T model.Event] struct {
	s    *System
	id   string
	ch   chan T
	stop func() bool

	mu     sync.Mutex
	closed bool
	err    error
}

// Subscribe registers a consumer for params and returns its subscription.
// The consumer is removed when ctx is done or Cancel is called.
func Subscribe[T model.Event](ctx context.Context, s *System, params model.EventParams, buffer int) (*Subscription[T], error) {
	if buffer < 1 {
		buffer = 1
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	sub := &Subscription[T]{s: s, id: NewID(), ch: make(chan T, buffer)}
	_, err := AddEventConsumer(s, params, sub.push,
		WithID(sub.id),
		WithOnError(sub.fail),
		WithOnComplete(sub.complete),
	)
	if err != nil {
		return nil, err
	}

	stop := context.AfterFunc(ctx, sub.Cancel)
	sub.mu.Lock()
	sub.stop = stop
	sub.mu.Unlock()
	return sub, nil
}

// StreamData subscribes to the stream of one data type.
func StreamData(ctx context.Context, s *System, dataTypeID string) (*Subscription[model.OnStreamState], error) {
	return Subscribe[model.OnStreamState](ctx, s, model.StartStreaming{DataTypeID: dataTypeID}, DefaultSubscriptionBuffer)
}

// ID returns the consumer id.
func (sub *Subscription[T]) ID() string { return sub.id }

// C returns the event channel.
func (sub *Subscription[T]) C() <-chan T { return sub.ch }

// Err returns the last error reported for the subscription.
func (sub *Subscription[T]) Err() error {
	sub.mu.Lock()
	defer sub.mu.Unlock()
	return sub.err
}

// Cancel removes the consumer and closes the channel. It is safe to call
// more than once.
func (sub *Subscription[T]) Cancel() {
	if sub.close() {
		sub.s.RemoveConsumer(sub.id)
	}
}

// complete runs inside a consumer callback, so the removal it triggers
// must not wait for that callback.
func (sub *Subscription[T]) complete() {
	if sub.close() {
		go sub.s.RemoveConsumer(sub.id)
	}
}

func (sub *Subscription[T]) close() bool {
	sub.mu.Lock()
	if sub.closed {
		sub.mu.Unlock()
		return false
	}
	sub.closed = true
	close(sub.ch)
	stop := sub.stop
	sub.mu.Unlock()

	if stop != nil {
		stop()
	}
	return true
}

func (sub *Subscription[T]) push(ev T) {
	sub.mu.Lock()
	defer sub.mu.Unlock()
	if sub.closed {
		return
	}
	select {
	case sub.ch <- ev:
		return
	default:
	}
	select {
	case <-sub.ch:
	default:
	}
	select {
	case sub.ch <- ev:
	default:
	}
}

func (sub *Subscription[T]) fail(msg string) {
	sub.mu.Lock()
	defer sub.mu.Unlock()
	sub.err = fmt.Errorf("%w: %s", ErrStreamError, msg)
}
