package extension

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"

	"github.com/jpweytjens/karoo-ext/pkg/binder"
	"github.com/jpweytjens/karoo-ext/pkg/discovery"
	"github.com/jpweytjens/karoo-ext/pkg/log"
	"github.com/jpweytjens/karoo-ext/pkg/transport"
)

// ServeConfig configures Serve.
type ServeConfig struct {
	// Network is "tcp" (default) or "unix".
	Network string

	// Address to listen on.
	Address string

	// Advertiser announces the extension. Nil disables advertising.
	Advertiser discovery.Advertiser

	// Peer configures each host link.
	Peer transport.Config

	// Ready is called with the listen address once the listener is up.
	Ready func(addr net.Addr)

	// Logger receives operational logs. Nil uses slog.Default().
	Logger *slog.Logger
}

// DefaultServeConfig listens on the default extension port.
func DefaultServeConfig() ServeConfig {
	return ServeConfig{
		Network: "tcp",
		Address: fmt.Sprintf(":%d", discovery.DefaultExtensionPort),
		Peer:    transport.DefaultConfig(),
	}
}

// Serve accepts host links for svc until ctx is done. Every emitter is
// cancelled when Serve returns.
func Serve(ctx context.Context, svc *Service, config ServeConfig) error {
	if config.Network == "" {
		config.Network = "tcp"
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}
	config.Peer.Side = log.SideExtension
	if config.Peer.Logger == nil {
		config.Peer.Logger = logger
	}

	ln, err := transport.Listen(config.Network, config.Address, config.Peer)
	if err != nil {
		return err
	}
	defer svc.Close()
	defer ln.Close()

	addr := ln.Addr()
	logger.Info("extension listening", "extension", svc.ID(), "address", addr.String())
	if config.Ready != nil {
		config.Ready(addr)
	}

	if config.Advertiser != nil {
		info := &discovery.ExtensionInfo{
			ID:           svc.ID(),
			Version:      svc.Version(),
			ScansDevices: svc.ScansDevices(),
		}
		for _, dt := range svc.Types() {
			info.DataTypes = append(info.DataTypes, dt.TypeID())
		}
		if tcp, ok := addr.(*net.TCPAddr); ok {
			info.Port = uint16(tcp.Port)
		}
		if err := config.Advertiser.AdvertiseExtension(ctx, info); err != nil {
			logger.Warn("extension not advertised", "error", err)
		} else {
			defer func() { _ = config.Advertiser.StopExtension(svc.ID()) }()
		}
	}

	err = ln.Serve(ctx, func(p *transport.Peer) {
		logger.Info("host connected", "remote", p.RemoteAddr().String())
		binder.ServeExtension(p, svc)
	})
	if errors.Is(err, transport.ErrListenerClosed) && ctx.Err() != nil {
		return nil
	}
	return err
}
