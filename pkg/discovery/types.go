package discovery

import (
	"errors"
	"net"
	"strconv"
	"time"

	"github.com/jpweytjens/karoo-ext/pkg/model"
)

// Service type constants for mDNS.
const (
	// ServiceTypeSystem is advertised by a host.
	ServiceTypeSystem = "_karoo-system._tcp"

	// ServiceTypeExtension is advertised by an extension process.
	ServiceTypeExtension = "_karoo-ext._tcp"

	// Domain is the mDNS domain.
	Domain = "local"

	DefaultSystemPort    = 7311
	DefaultExtensionPort = 7312
)

// TXT record keys.
const (
	// System
	TXTKeySerial   = "serial"
	TXTKeyHardware = "hw"
	TXTKeyLib      = "lib"

	// Extension
	TXTKeyID      = "id"
	TXTKeyVersion = "ver"
	TXTKeyTypes   = "types"
	TXTKeyScan    = "scan"
)

const (
	// BrowseTimeout is the default timeout for FindSystem and FindExtension.
	BrowseTimeout = 10 * time.Second

	// MaxInstanceNameLen is the DNS label limit.
	MaxInstanceNameLen = 63

	// MaxTXTRecordSize is the maximum total TXT record size.
	MaxTXTRecordSize = 400

	// SystemInstancePrefix prefixes the host serial in system instance names.
	SystemInstancePrefix = "Karoo-"
)

// Discovery errors.
var (
	ErrInvalidTXTRecord    = errors.New("invalid TXT record format")
	ErrMissingRequired     = errors.New("missing required field")
	ErrInstanceNameTooLong = errors.New("instance name exceeds 63 characters")
	ErrTXTTooLarge         = errors.New("TXT records exceed 400 bytes")
	ErrNotFound            = errors.New("service not found")
)

// SystemInfo is what a host advertises.
type SystemInfo struct {
	Serial     string
	Hardware   model.HardwareType
	LibVersion string

	// Port is the listen port; zero selects DefaultSystemPort.
	Port uint16
}

// InstanceName returns "Karoo-<serial>".
func (i *SystemInfo) InstanceName() string {
	return truncate(SystemInstancePrefix + i.Serial)
}

// ExtensionInfo is what an extension process advertises.
type ExtensionInfo struct {
	ID           string
	Version      string
	DataTypes    []string
	ScansDevices bool

	// Port is the listen port; zero selects DefaultExtensionPort.
	Port uint16
}

// InstanceName returns the extension id.
func (i *ExtensionInfo) InstanceName() string {
	return truncate(i.ID)
}

// Endpoint is where a discovered service can be reached.
type Endpoint struct {
	InstanceName string
	Host         string
	Port         uint16
	Addresses    []string
}

// Address returns host:port for dialling, preferring the first resolved
// address over the host name.
func (e *Endpoint) Address() string {
	host := e.Host
	if len(e.Addresses) > 0 {
		host = e.Addresses[0]
	}
	return net.JoinHostPort(host, strconv.Itoa(int(e.Port)))
}

func (e *Endpoint) endpoint() *Endpoint { return e }

// SystemService is a discovered host.
type SystemService struct {
	Endpoint
	Serial     string
	Hardware   model.HardwareType
	LibVersion string
}

// ExtensionService is a discovered extension process.
type ExtensionService struct {
	Endpoint
	ID           string
	Version      string
	DataTypes    []string
	ScansDevices bool
}

func truncate(name string) string {
	if len(name) > MaxInstanceNameLen {
		return name[:MaxInstanceNameLen]
	}
	return name
}
