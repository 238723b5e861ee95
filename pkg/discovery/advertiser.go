package discovery

import (
	"context"
	"time"
)

// Advertiser publishes karoo endpoints.
type Advertiser interface {
	// AdvertiseSystem starts advertising a host. A previous system
	// advertisement is replaced.
	AdvertiseSystem(ctx context.Context, info *SystemInfo) error

	// StopSystem stops advertising the host.
	StopSystem() error

	// AdvertiseExtension starts advertising an extension. Several extensions
	// can be advertised at once, keyed by id.
	AdvertiseExtension(ctx context.Context, info *ExtensionInfo) error

	// UpdateExtension replaces the TXT records of an advertised extension.
	UpdateExtension(info *ExtensionInfo) error

	// StopExtension stops advertising one extension.
	StopExtension(id string) error

	// StopAll stops all advertisements.
	StopAll()
}

// AdvertiserConfig configures advertiser behavior.
type AdvertiserConfig struct {
	// Interface specifies which network interface to use.
	// Empty string means all interfaces.
	Interface string

	// TTL is the DNS record TTL.
	// Default: 120 seconds.
	TTL time.Duration
}

// DefaultAdvertiserConfig returns the default advertiser configuration.
func DefaultAdvertiserConfig() AdvertiserConfig {
	return AdvertiserConfig{
		TTL: 120 * time.Second,
	}
}
