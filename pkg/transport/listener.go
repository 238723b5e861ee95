package transport

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"sync"
	"sync/atomic"
)

// ErrListenerClosed is returned by Serve after Close.
var ErrListenerClosed = errors.New("listener closed")

// Listener accepts links and turns each into a started Peer.
type Listener struct {
	config Config
	ln     net.Listener

	closed atomic.Bool

	mu    sync.Mutex
	peers map[*Peer]struct{}
}

// Listen opens a listener. For "unix" a stale socket file at address is
// removed first.
func Listen(network, address string, config Config) (*Listener, error) {
	if network == "unix" {
		if err := os.Remove(address); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("failed to remove stale socket: %w", err)
		}
	}
	ln, err := net.Listen(network, address)
	if err != nil {
		return nil, fmt.Errorf("failed to listen: %w", err)
	}
	return &Listener{
		config: config,
		ln:     ln,
		peers:  make(map[*Peer]struct{}),
	}, nil
}

// Addr returns the listen address.
func (l *Listener) Addr() net.Addr {
	return l.ln.Addr()
}

// Serve accepts until ctx is done or Close is called. onPeer runs before
// the peer starts reading, so it can install handlers without racing
// inbound traffic.
func (l *Listener) Serve(ctx context.Context, onPeer func(*Peer)) error {
	stop := context.AfterFunc(ctx, func() { _ = l.Close() })
	defer stop()

	for {
		conn, err := l.ln.Accept()
		if err != nil {
			if l.closed.Load() {
				return ErrListenerClosed
			}
			var ne net.Error
			if errors.As(err, &ne) && ne.Timeout() {
				continue
			}
			return fmt.Errorf("accept: %w", err)
		}

		p := NewPeer(conn, l.config)
		l.track(p)
		if onPeer != nil {
			onPeer(p)
		}
		p.Start()
	}
}

// Peers returns the links that are currently up.
func (l *Listener) Peers() []*Peer {
	l.mu.Lock()
	defer l.mu.Unlock()

	out := make([]*Peer, 0, len(l.peers))
	for p := range l.peers {
		out = append(out, p)
	}
	return out
}

// Close stops accepting and closes every live peer.
func (l *Listener) Close() error {
	if l.closed.Swap(true) {
		return nil
	}
	err := l.ln.Close()

	for _, p := range l.Peers() {
		_ = p.Close()
	}
	return err
}

func (l *Listener) track(p *Peer) {
	l.mu.Lock()
	l.peers[p] = struct{}{}
	l.mu.Unlock()

	go func() {
		<-p.Done()
		l.mu.Lock()
		delete(l.peers, p)
		l.mu.Unlock()
	}()
}
