package discovery

import (
	"context"
	"fmt"
	"net"
	"sync"

	"github.com/enbility/zeroconf/v3"
)

// MDNSAdvertiser implements Advertiser using zeroconf.
type MDNSAdvertiser struct {
	config AdvertiserConfig

	mu         sync.Mutex
	system     *zeroconf.Server
	extensions map[string]*zeroconf.Server // keyed by extension id
}

// NewMDNSAdvertiser creates a new mDNS advertiser.
func NewMDNSAdvertiser(config AdvertiserConfig) *MDNSAdvertiser {
	return &MDNSAdvertiser{
		config:     config,
		extensions: make(map[string]*zeroconf.Server),
	}
}

// interfaces returns nil to use all interfaces.
func (a *MDNSAdvertiser) interfaces() []net.Interface {
	if a.config.Interface == "" {
		return nil
	}
	iface, err := net.InterfaceByName(a.config.Interface)
	if err != nil {
		return nil
	}
	return []net.Interface{*iface}
}

func (a *MDNSAdvertiser) register(instance, service string, port int, txt TXTRecordMap) (*zeroconf.Server, error) {
	if err := ValidateInstanceName(instance); err != nil {
		return nil, err
	}
	if err := ValidateTXT(txt); err != nil {
		return nil, err
	}

	var opts []zeroconf.ServerOption
	if a.config.TTL > 0 {
		opts = append(opts, zeroconf.TTL(uint32(a.config.TTL.Seconds())))
	}
	return zeroconf.Register(instance, service, Domain, port, TXTRecordsToStrings(txt), a.interfaces(), opts...)
}

// AdvertiseSystem starts advertising a host.
func (a *MDNSAdvertiser) AdvertiseSystem(ctx context.Context, info *SystemInfo) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.system != nil {
		a.system.Shutdown()
		a.system = nil
	}

	port := int(info.Port)
	if port == 0 {
		port = DefaultSystemPort
	}
	server, err := a.register(info.InstanceName(), ServiceTypeSystem, port, EncodeSystemTXT(info))
	if err != nil {
		return fmt.Errorf("failed to register system service: %w", err)
	}
	a.system = server
	return nil
}

// StopSystem stops advertising the host.
func (a *MDNSAdvertiser) StopSystem() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.system != nil {
		a.system.Shutdown()
		a.system = nil
	}
	return nil
}

// AdvertiseExtension starts advertising an extension.
func (a *MDNSAdvertiser) AdvertiseExtension(ctx context.Context, info *ExtensionInfo) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if server, exists := a.extensions[info.ID]; exists {
		server.Shutdown()
		delete(a.extensions, info.ID)
	}

	port := int(info.Port)
	if port == 0 {
		port = DefaultExtensionPort
	}
	server, err := a.register(info.InstanceName(), ServiceTypeExtension, port, EncodeExtensionTXT(info))
	if err != nil {
		return fmt.Errorf("failed to register extension service: %w", err)
	}
	a.extensions[info.ID] = server
	return nil
}

// UpdateExtension replaces the TXT records of an advertised extension.
func (a *MDNSAdvertiser) UpdateExtension(info *ExtensionInfo) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	server, exists := a.extensions[info.ID]
	if !exists {
		return ErrNotFound
	}
	txt := EncodeExtensionTXT(info)
	if err := ValidateTXT(txt); err != nil {
		return err
	}
	server.SetText(TXTRecordsToStrings(txt))
	return nil
}

// StopExtension stops advertising one extension.
func (a *MDNSAdvertiser) StopExtension(id string) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	server, exists := a.extensions[id]
	if !exists {
		return ErrNotFound
	}
	server.Shutdown()
	delete(a.extensions, id)
	return nil
}

// StopAll stops all advertisements.
func (a *MDNSAdvertiser) StopAll() {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.system != nil {
		a.system.Shutdown()
		a.system = nil
	}
	for id, server := range a.extensions {
		server.Shutdown()
		delete(a.extensions, id)
	}
}

// MDNSBrowser implements Browser using zeroconf.
type MDNSBrowser struct {
	config BrowserConfig

	mu      sync.Mutex
	cancels []context.CancelFunc
}

// NewMDNSBrowser creates a new mDNS browser.
func NewMDNSBrowser(config BrowserConfig) *MDNSBrowser {
	if config.BrowseTimeout <= 0 {
		config.BrowseTimeout = BrowseTimeout
	}
	return &MDNSBrowser{config: config}
}

// BrowseSystems streams hosts aggregated by instance name.
func (b *MDNSBrowser) BrowseSystems(ctx context.Context) (<-chan *SystemService, error) {
	ctx = b.track(ctx)
	added, removed := b.browse(ctx, ServiceTypeSystem)
	return aggregate(ctx, added, removed, (*ServiceEntry).ToSystemService), nil
}

// BrowseExtensions streams extension processes aggregated by instance name.
func (b *MDNSBrowser) BrowseExtensions(ctx context.Context) (<-chan *ExtensionService, error) {
	ctx = b.track(ctx)
	added, removed := b.browse(ctx, ServiceTypeExtension)
	return aggregate(ctx, added, removed, (*ServiceEntry).ToExtensionService), nil
}

// FindSystem returns the first host found.
func (b *MDNSBrowser) FindSystem(ctx context.Context) (*SystemService, error) {
	ctx, cancel := context.WithTimeout(ctx, b.config.BrowseTimeout)
	defer cancel()

	ch, err := b.BrowseSystems(ctx)
	if err != nil {
		return nil, err
	}
	return first(ctx, ch, func(*SystemService) bool { return true })
}

// FindExtension returns the extension advertising id.
func (b *MDNSBrowser) FindExtension(ctx context.Context, id string) (*ExtensionService, error) {
	ctx, cancel := context.WithTimeout(ctx, b.config.BrowseTimeout)
	defer cancel()

	ch, err := b.BrowseExtensions(ctx)
	if err != nil {
		return nil, err
	}
	return first(ctx, ch, func(s *ExtensionService) bool { return s.ID == id })
}

// Stop cancels all active browsing.
func (b *MDNSBrowser) Stop() {
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, cancel := range b.cancels {
		cancel()
	}
	b.cancels = nil
}

func (b *MDNSBrowser) track(ctx context.Context) context.Context {
	ctx, cancel := context.WithCancel(ctx)
	b.mu.Lock()
	b.cancels = append(b.cancels, cancel)
	b.mu.Unlock()
	return ctx
}

func (b *MDNSBrowser) options() []zeroconf.ClientOption {
	var opts []zeroconf.ClientOption
	if b.config.Interface != "" {
		if iface, err := net.InterfaceByName(b.config.Interface); err == nil {
			opts = append(opts, zeroconf.SelectIfaces([]net.Interface{*iface}))
		}
	}
	return opts
}

// browse runs a zeroconf browse and converts its entries.
func (b *MDNSBrowser) browse(ctx context.Context, service string) (<-chan *ServiceEntry, <-chan *ServiceEntry) {
	zadded := make(chan *zeroconf.ServiceEntry)
	zremoved := make(chan *zeroconf.ServiceEntry)
	added := make(chan *ServiceEntry)
	removed := make(chan *ServiceEntry)

	go func() {
		_ = zeroconf.Browse(ctx, service, Domain, zadded, zremoved, b.options()...)
	}()

	go func() {
		defer close(added)
		defer close(removed)
		for {
			var (
				e   *zeroconf.ServiceEntry
				ok  bool
				out chan *ServiceEntry
			)
			select {
			case e, ok = <-zadded:
				out = added
			case e, ok = <-zremoved:
				out = removed
			case <-ctx.Done():
				return
			}
			if !ok {
				return
			}
			select {
			case out <- fromZeroconf(e, service):
			case <-ctx.Done():
				return
			}
		}
	}()
	return added, removed
}

func fromZeroconf(e *zeroconf.ServiceEntry, service string) *ServiceEntry {
	addrs := make([]string, 0, len(e.AddrIPv4)+len(e.AddrIPv6))
	for _, ip := range e.AddrIPv4 {
		addrs = append(addrs, ip.String())
	}
	for _, ip := range e.AddrIPv6 {
		addrs = append(addrs, ip.String())
	}
	return &ServiceEntry{
		Instance:  e.Instance,
		Service:   service,
		Domain:    Domain,
		Host:      e.HostName,
		Port:      uint16(e.Port),
		Text:      e.Text,
		Addresses: addrs,
	}
}

type service interface {
	endpoint() *Endpoint
}

// aggregate merges entries by instance name. A service is emitted once,
// when first seen; later entries for other interfaces only add addresses.
// It is forgotten when its last address is removed.
func aggregate[S service](ctx context.Context, added, removed <-chan *ServiceEntry, convert func(*ServiceEntry) (S, error)) <-chan S {
	out := make(chan S)

	go func() {
		defer close(out)
		services := make(map[string]S)

		for {
			select {
			case entry, ok := <-added:
				if !ok {
					return
				}
				svc, err := convert(entry)
				if err != nil {
					continue
				}
				if existing, found := services[entry.Instance]; found {
					ep := existing.endpoint()
					ep.Addresses = mergeAddresses(ep.Addresses, entry.Addresses)
					continue
				}
				services[entry.Instance] = svc
				select {
				case out <- svc:
				case <-ctx.Done():
					return
				}

			case entry, ok := <-removed:
				if !ok {
					removed = nil
					continue
				}
				if existing, found := services[entry.Instance]; found {
					ep := existing.endpoint()
					ep.Addresses = removeAddresses(ep.Addresses, entry.Addresses)
					if len(ep.Addresses) == 0 {
						delete(services, entry.Instance)
					}
				}

			case <-ctx.Done():
				return
			}
		}
	}()
	return out
}

func first[S any](ctx context.Context, ch <-chan S, match func(S) bool) (S, error) {
	var zero S
	for {
		select {
		case svc, ok := <-ch:
			if !ok {
				return zero, ErrNotFound
			}
			if match(svc) {
				return svc, nil
			}
		case <-ctx.Done():
			return zero, ErrNotFound
		}
	}
}

// mergeAddresses adds new addresses to existing, avoiding duplicates.
func mergeAddresses(existing, added []string) []string {
	seen := make(map[string]bool, len(existing))
	for _, addr := range existing {
		seen[addr] = true
	}
	for _, addr := range added {
		if !seen[addr] {
			existing = append(existing, addr)
			seen[addr] = true
		}
	}
	return existing
}

// removeAddresses drops gone from addresses.
func removeAddresses(addresses, gone []string) []string {
	drop := make(map[string]bool, len(gone))
	for _, addr := range gone {
		drop[addr] = true
	}
	result := make([]string, 0, len(addresses))
	for _, addr := range addresses {
		if !drop[addr] {
			result = append(result, addr)
		}
	}
	return result
}

var (
	_ Advertiser = (*MDNSAdvertiser)(nil)
	_ Browser    = (*MDNSBrowser)(nil)
)
