// Package transport carries wire messages between the host and an
// extension process.
//
// # Stack
//
//	┌────────────────────────────────┐
//	│  Call / Reply / Callback       │
//	├────────────────────────────────┤
//	│   Length-Prefix Framing (4B)   │
//	├────────────────────────────────┤
//	│     TCP or Unix socket         │
//	└────────────────────────────────┘
//
// A Peer is symmetric: either end can call, notify and deliver callbacks.
// Replies are matched to calls by message id; message id 0 marks a one-way
// call. Inbound calls and callbacks are handled on one serial queue per
// peer, so they run in arrival order and never stall the read loop.
//
// # Keep-Alive
//
// Each peer pings its remote every 10 seconds. Three missed pongs (3 second
// timeout each) force-close the link, which surfaces as Done on both ends.
// KeepAliveConfig.DetectionDelay gives the worst case.
package transport
