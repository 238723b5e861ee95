package binder

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/jpweytjens/karoo-ext/pkg/connection"
	"github.com/jpweytjens/karoo-ext/pkg/discovery"
	"github.com/jpweytjens/karoo-ext/pkg/log"
	"github.com/jpweytjens/karoo-ext/pkg/transport"
	"github.com/jpweytjens/karoo-ext/pkg/version"
)

// ErrNoHost is returned when no host address is configured and no browser
// is available to find one.
var ErrNoHost = errors.New("no host address")

// SocketConfig configures a SocketBinder.
type SocketConfig struct {
	// Network is "tcp" (default) or "unix".
	Network string

	// Address of the host. Empty resolves the host through Browser.
	Address string

	// Package identifies the extension to the host.
	Package string

	// Browser finds the host when Address is empty.
	Browser discovery.Browser

	// Peer configures each link.
	Peer transport.Config

	// Logger receives operational logs. Nil uses slog.Default().
	Logger *slog.Logger
}

// SocketBinder binds to a host over a stream socket. Each bind dials a new
// link, so a rebind after the host died reaches the restarted host.
type SocketBinder struct {
	config SocketConfig
	logger *slog.Logger

	mu    sync.Mutex
	peers map[connection.ServiceConnection[SystemController]]*transport.Peer
}

// NewSocketBinder returns a binder for config.
func NewSocketBinder(config SocketConfig) *SocketBinder {
	if config.Network == "" {
		config.Network = "tcp"
	}
	config.Peer.Side = log.SideExtension
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if config.Peer.Logger == nil {
		config.Peer.Logger = logger
	}
	return &SocketBinder{
		config: config,
		logger: logger,
		peers:  make(map[connection.ServiceConnection[SystemController]]*transport.Peer),
	}
}

// Bind dials the host, introduces the package and reports the controller to
// conn. When the link later dies conn is told, unless it was unbound first.
func (b *SocketBinder) Bind(ctx context.Context, conn connection.ServiceConnection[SystemController]) error {
	addr, err := b.resolve(ctx)
	if err != nil {
		return err
	}

	peer, err := transport.Dial(ctx, b.config.Network, addr, b.config.Peer)
	if err != nil {
		return err
	}
	peer.SetPackage(b.config.Package)

	hostVersion, err := Hello(ctx, peer, b.config.Package)
	if err != nil {
		peer.Abort()
		return err
	}
	if err := version.CheckCompatible(hostVersion); err != nil {
		b.logger.Warn("host library version", "address", addr, "error", err)
	}

	b.mu.Lock()
	if err := ctx.Err(); err != nil {
		b.mu.Unlock()
		_ = peer.Close()
		return err
	}
	b.peers[conn] = peer
	b.mu.Unlock()

	go b.watch(conn, peer)

	b.logger.Info("bound to host", "address", addr, "host_lib", hostVersion)
	conn.OnServiceConnected(NewSystemProxy(peer))
	return nil
}

// Unbind closes the link created for conn.
func (b *SocketBinder) Unbind(conn connection.ServiceConnection[SystemController]) {
	b.mu.Lock()
	peer := b.peers[conn]
	delete(b.peers, conn)
	b.mu.Unlock()

	if peer != nil {
		_ = peer.Close()
	}
}

func (b *SocketBinder) watch(conn connection.ServiceConnection[SystemController], peer *transport.Peer) {
	<-peer.Done()

	b.mu.Lock()
	current := b.peers[conn] == peer
	if current {
		delete(b.peers, conn)
	}
	b.mu.Unlock()

	if current {
		b.logger.Info("host link lost", "error", peer.Err())
		conn.OnServiceDisconnected()
	}
}

func (b *SocketBinder) resolve(ctx context.Context) (string, error) {
	if b.config.Address != "" {
		return b.config.Address, nil
	}
	if b.config.Browser == nil {
		return "", ErrNoHost
	}
	svc, err := b.config.Browser.FindSystem(ctx)
	if err != nil {
		return "", fmt.Errorf("find host: %w", err)
	}
	b.logger.Debug("host found", "instance", svc.InstanceName, "serial", svc.Serial)
	return svc.Address(), nil
}

var _ connection.Binder[SystemController] = (*SocketBinder)(nil)
