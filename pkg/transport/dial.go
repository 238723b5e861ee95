package transport

import (
	"context"
	"fmt"
	"net"
)

// Dial connects to address and returns a started peer. Handlers that must
// see the first inbound traffic should be installed with DialFunc instead.
func Dial(ctx context.Context, network, address string, config Config) (*Peer, error) {
	return DialFunc(ctx, network, address, config, nil)
}

// DialFunc is Dial with a hook that runs before the peer starts reading.
func DialFunc(ctx context.Context, network, address string, config Config, setup func(*Peer)) (*Peer, error) {
	var d net.Dialer
	conn, err := d.DialContext(ctx, network, address)
	if err != nil {
		return nil, fmt.Errorf("failed to dial %s: %w", address, err)
	}

	p := NewPeer(conn, config)
	if setup != nil {
		setup(p)
	}
	p.Start()
	return p, nil
}
