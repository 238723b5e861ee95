// Package version provides SDK library version parsing, comparison, and
// handshake protocol helpers.
package version

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Lib is the SDK library version reported by LibVersion on both sides of
// the bridge.
const Lib = "1.0.0"

// ErrIncompatible is returned when a peer reports a different major version.
var ErrIncompatible = errors.New("incompatible library version")

// Version represents a parsed "major.minor[.patch]" library version.
type Version struct {
	Major uint16
	Minor uint16
	Patch uint16
}

// Parse parses a "major.minor" or "major.minor.patch" version string.
func Parse(s string) (Version, error) {
	parts := strings.Split(s, ".")
	if len(parts) < 2 || len(parts) > 3 {
		return Version{}, fmt.Errorf("invalid version %q: expected major.minor[.patch]", s)
	}

	var nums [3]uint16
	names := [3]string{"major", "minor", "patch"}
	for i, p := range parts {
		n, err := strconv.ParseUint(p, 10, 16)
		if err != nil || p == "" {
			return Version{}, fmt.Errorf("invalid version %q: bad %s component", s, names[i])
		}
		nums[i] = uint16(n)
	}

	return Version{Major: nums[0], Minor: nums[1], Patch: nums[2]}, nil
}

// String returns the version as "major.minor.patch".
func (v Version) String() string {
	return fmt.Sprintf("%d.%d.%d", v.Major, v.Minor, v.Patch)
}

// Compatible returns true if the other version has the same major version.
func (v Version) Compatible(other Version) bool {
	return v.Major == other.Major
}

// Current returns the parsed Lib version.
func Current() Version {
	v, err := Parse(Lib)
	if err != nil {
		panic(fmt.Sprintf("invalid library version constant: %v", err))
	}
	return v
}

// CheckCompatible parses a version reported by a peer and checks it against
// Lib. Unparseable versions are reported as incompatible.
func CheckCompatible(remote string) error {
	v, err := Parse(remote)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrIncompatible, err)
	}
	if !Current().Compatible(v) {
		return fmt.Errorf("%w: local %s, remote %s", ErrIncompatible, Lib, v)
	}
	return nil
}

// Protocol returns the handshake protocol string for a major version:
// "karoo-ext/N".
func Protocol(major uint16) string {
	return fmt.Sprintf("karoo-ext/%d", major)
}

// MajorFromProtocol extracts the major version from a handshake protocol
// string.
func MajorFromProtocol(proto string) (uint16, error) {
	suffix, ok := strings.CutPrefix(proto, "karoo-ext/")
	if !ok {
		return 0, fmt.Errorf("not a karoo-ext protocol: %q", proto)
	}
	if suffix == "" {
		return 0, fmt.Errorf("empty major version in protocol: %q", proto)
	}

	major, err := strconv.ParseUint(suffix, 10, 16)
	if err != nil {
		return 0, fmt.Errorf("invalid major version in protocol %q: %w", proto, err)
	}

	return uint16(major), nil
}

// SupportedProtocols returns the handshake protocol strings for all
// supported major versions.
func SupportedProtocols() []string {
	return []string{Protocol(Current().Major)}
}
