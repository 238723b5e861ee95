package discovery

import (
	"context"
	"time"
)

// Browser finds karoo endpoints.
type Browser interface {
	// BrowseSystems streams hosts as they appear. The channel is closed when
	// ctx is done.
	BrowseSystems(ctx context.Context) (<-chan *SystemService, error)

	// BrowseExtensions streams extension processes as they appear.
	BrowseExtensions(ctx context.Context) (<-chan *ExtensionService, error)

	// FindSystem returns the first host found, or ErrNotFound after the
	// browse timeout.
	FindSystem(ctx context.Context) (*SystemService, error)

	// FindExtension returns the extension with the given id.
	FindExtension(ctx context.Context, id string) (*ExtensionService, error)

	// Stop cancels all active browsing.
	Stop()
}

// BrowserConfig configures browser behavior.
type BrowserConfig struct {
	// BrowseTimeout bounds FindSystem and FindExtension.
	// Default: 10 seconds.
	BrowseTimeout time.Duration

	// Interface specifies which network interface to use.
	// Empty string means all interfaces.
	Interface string
}

// DefaultBrowserConfig returns the default browser configuration.
func DefaultBrowserConfig() BrowserConfig {
	return BrowserConfig{
		BrowseTimeout: BrowseTimeout,
	}
}

// ServiceEntry is a resolved DNS-SD instance before TXT decoding.
type ServiceEntry struct {
	Instance  string
	Service   string
	Domain    string
	Host      string
	Port      uint16
	Text      []string
	Addresses []string
}

func (e *ServiceEntry) endpoint() Endpoint {
	return Endpoint{
		InstanceName: e.Instance,
		Host:         e.Host,
		Port:         e.Port,
		Addresses:    append([]string(nil), e.Addresses...),
	}
}

// ToSystemService decodes a host entry.
func (e *ServiceEntry) ToSystemService() (*SystemService, error) {
	info, err := DecodeSystemTXT(StringsToTXTRecords(e.Text))
	if err != nil {
		return nil, err
	}
	return &SystemService{
		Endpoint:   e.endpoint(),
		Serial:     info.Serial,
		Hardware:   info.Hardware,
		LibVersion: info.LibVersion,
	}, nil
}

// ToExtensionService decodes an extension entry.
func (e *ServiceEntry) ToExtensionService() (*ExtensionService, error) {
	info, err := DecodeExtensionTXT(StringsToTXTRecords(e.Text))
	if err != nil {
		return nil, err
	}
	return &ExtensionService{
		Endpoint:     e.endpoint(),
		ID:           info.ID,
		Version:      info.Version,
		DataTypes:    info.DataTypes,
		ScansDevices: info.ScansDevices,
	}, nil
}
