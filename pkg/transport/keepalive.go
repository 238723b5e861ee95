package transport

import (
	"context"
	"sync"
	"time"
)

// Keep-alive defaults. The link is local, so failures are detected faster
// than on a network transport.
const (
	DefaultPingInterval   = 10 * time.Second
	DefaultPongTimeout    = 3 * time.Second
	DefaultMaxMissedPongs = 3
)

// KeepAliveConfig configures liveness probing.
type KeepAliveConfig struct {
	PingInterval   time.Duration
	PongTimeout    time.Duration
	MaxMissedPongs int
}

// DefaultKeepAliveConfig returns the default keep-alive configuration.
func DefaultKeepAliveConfig() KeepAliveConfig {
	return KeepAliveConfig{
		PingInterval:   DefaultPingInterval,
		PongTimeout:    DefaultPongTimeout,
		MaxMissedPongs: DefaultMaxMissedPongs,
	}
}

// DetectionDelay is the longest a dead peer can go unnoticed.
func (c KeepAliveConfig) DetectionDelay() time.Duration {
	return c.PingInterval*time.Duration(c.MaxMissedPongs) + c.PongTimeout
}

func (c KeepAliveConfig) withDefaults() KeepAliveConfig {
	d := DefaultKeepAliveConfig()
	if c.PingInterval <= 0 {
		c.PingInterval = d.PingInterval
	}
	if c.PongTimeout <= 0 {
		c.PongTimeout = d.PongTimeout
	}
	if c.MaxMissedPongs <= 0 {
		c.MaxMissedPongs = d.MaxMissedPongs
	}
	return c
}

// KeepAliveStats is a snapshot of probe state.
type KeepAliveStats struct {
	LastPingTime time.Time
	LastPongTime time.Time
	LastLatency  time.Duration
	MissedPongs  int
	Sequence     uint32
}

// KeepAlive pings on an interval and calls onTimeout once after
// MaxMissedPongs consecutive pings go unanswered.
type KeepAlive struct {
	config    KeepAliveConfig
	sendPing  func(seq uint32) error
	onTimeout func()

	mu      sync.Mutex
	stats   KeepAliveStats
	pending bool
	running bool
	stopCh  chan struct{}
	pongCh  chan uint32
}

// NewKeepAlive returns a stopped KeepAlive.
func NewKeepAlive(config KeepAliveConfig, sendPing func(seq uint32) error, onTimeout func()) *KeepAlive {
	return &KeepAlive{
		config:    config.withDefaults(),
		sendPing:  sendPing,
		onTimeout: onTimeout,
		pongCh:    make(chan uint32, 1),
	}
}

// Start runs the probe loop until Stop or ctx is done.
func (ka *KeepAlive) Start(ctx context.Context) {
	ka.mu.Lock()
	defer ka.mu.Unlock()
	if ka.running {
		return
	}
	ka.running = true
	ka.stopCh = make(chan struct{})
	go ka.loop(ctx, ka.stopCh)
}

// Stop ends the probe loop. It is safe to call more than once.
func (ka *KeepAlive) Stop() {
	ka.mu.Lock()
	defer ka.mu.Unlock()
	if !ka.running {
		return
	}
	ka.running = false
	close(ka.stopCh)
}

// IsRunning reports whether the loop is active.
func (ka *KeepAlive) IsRunning() bool {
	ka.mu.Lock()
	defer ka.mu.Unlock()
	return ka.running
}

// PongReceived feeds a pong into the loop.
func (ka *KeepAlive) PongReceived(seq uint32) {
	select {
	case ka.pongCh <- seq:
	default:
	}
}

// Stats returns a snapshot of probe state.
func (ka *KeepAlive) Stats() KeepAliveStats {
	ka.mu.Lock()
	defer ka.mu.Unlock()
	return ka.stats
}

func (ka *KeepAlive) loop(ctx context.Context, stop <-chan struct{}) {
	ticker := time.NewTicker(ka.config.PingInterval)
	defer ticker.Stop()

	ka.ping()
	for {
		select {
		case <-ctx.Done():
			return
		case <-stop:
			return
		case seq := <-ka.pongCh:
			ka.pong(seq)
		case <-ticker.C:
			if ka.expired() {
				if ka.onTimeout != nil {
					ka.onTimeout()
				}
				return
			}
			ka.ping()
		}
	}
}

func (ka *KeepAlive) ping() {
	ka.mu.Lock()
	ka.stats.Sequence++
	seq := ka.stats.Sequence
	ka.stats.LastPingTime = time.Now()
	ka.pending = true
	ka.mu.Unlock()

	// A failed send surfaces as a missed pong.
	_ = ka.sendPing(seq)
}

func (ka *KeepAlive) pong(seq uint32) {
	ka.mu.Lock()
	defer ka.mu.Unlock()

	now := time.Now()
	ka.stats.LastPongTime = now
	if ka.pending && seq == ka.stats.Sequence {
		ka.pending = false
		ka.stats.MissedPongs = 0
		ka.stats.LastLatency = now.Sub(ka.stats.LastPingTime)
	}
}

// expired records a miss for an unanswered ping and reports whether the
// peer should be considered dead.
func (ka *KeepAlive) expired() bool {
	ka.mu.Lock()
	defer ka.mu.Unlock()

	if ka.pending && time.Since(ka.stats.LastPingTime) >= ka.config.PongTimeout {
		ka.pending = false
		ka.stats.MissedPongs++
	}
	return ka.stats.MissedPongs >= ka.config.MaxMissedPongs
}
