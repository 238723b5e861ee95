package connection

import (
	"math/rand"
	"sync"
	"time"
)

// DefaultRebindDelay is the pause between bind attempts under the default
// policy.
const DefaultRebindDelay = 2 * time.Second

// RebindPolicy decides how long to wait before the next bind attempt.
type RebindPolicy interface {
	// Next returns the delay before the next attempt and advances.
	Next() time.Duration

	// Reset is called after a successful bind.
	Reset()
}

// FixedDelay waits the same time before every attempt.
type FixedDelay time.Duration

// Next returns d.
func (d FixedDelay) Next() time.Duration { return time.Duration(d) }

// Reset is a no-op.
func (FixedDelay) Reset() {}

// Backoff defaults.
const (
	InitialBackoff    = 1 * time.Second
	MaxBackoff        = 60 * time.Second
	BackoffMultiplier = 2.0
	JitterFactor      = 0.25
)

// BackoffConfig allows customizing backoff parameters.
type BackoffConfig struct {
	Initial    time.Duration
	Max        time.Duration
	Multiplier float64
	Jitter     float64
}

// Backoff calculates exponential delays with jitter.
type Backoff struct {
	mu sync.Mutex

	initial    time.Duration
	max        time.Duration
	multiplier float64
	jitter     float64

	current  time.Duration
	attempts int
	rng      *rand.Rand
}

// NewBackoff returns a backoff with default settings.
func NewBackoff() *Backoff {
	return NewBackoffWithConfig(BackoffConfig{Jitter: JitterFactor})
}

// NewBackoffWithConfig returns a backoff with custom settings. Zero fields
// take the defaults, except Jitter where zero disables jitter.
func NewBackoffWithConfig(cfg BackoffConfig) *Backoff {
	if cfg.Initial <= 0 {
		cfg.Initial = InitialBackoff
	}
	if cfg.Max <= 0 {
		cfg.Max = MaxBackoff
	}
	if cfg.Multiplier <= 1 {
		cfg.Multiplier = BackoffMultiplier
	}
	if cfg.Jitter < 0 {
		cfg.Jitter = 0
	}

	return &Backoff{
		initial:    cfg.Initial,
		max:        cfg.Max,
		multiplier: cfg.Multiplier,
		jitter:     cfg.Jitter,
		current:    cfg.Initial,
		rng:        rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Next returns the next delay (with jitter) and advances the backoff.
func (b *Backoff) Next() time.Duration {
	b.mu.Lock()
	defer b.mu.Unlock()

	delay := b.addJitter(b.current)

	b.attempts++
	next := time.Duration(float64(b.current) * b.multiplier)
	if next > b.max {
		next = b.max
	}
	b.current = next

	return delay
}

// Reset returns to the initial delay.
func (b *Backoff) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.current = b.initial
	b.attempts = 0
}

// Attempts returns the number of delays handed out since the last reset.
func (b *Backoff) Attempts() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.attempts
}

// Current returns the base delay of the next attempt, without jitter.
func (b *Backoff) Current() time.Duration {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.current
}

func (b *Backoff) addJitter(d time.Duration) time.Duration {
	if b.jitter <= 0 {
		return d
	}
	return d + time.Duration(float64(d)*b.jitter*b.rng.Float64())
}

var (
	_ RebindPolicy = FixedDelay(0)
	_ RebindPolicy = (*Backoff)(nil)
)
