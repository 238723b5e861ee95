// Package discovery advertises and finds karoo endpoints with mDNS/DNS-SD.
//
// Two service types are used:
//
// # System (_karoo-system._tcp)
//
// A host advertises the socket extensions bind to. Instance name format:
// Karoo-<serial>. TXT records: serial, hw (K2, KAROO), lib (SDK version).
//
// # Extension (_karoo-ext._tcp)
//
// An extension process advertises the socket the host drives it through.
// Instance name is the extension id. TXT records: id, ver, types (comma
// separated data type ids), scan (1 when the extension scans for devices).
package discovery
