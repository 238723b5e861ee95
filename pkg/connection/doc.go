// Package connection owns the single service binding between an extension
// and its host.
//
// A Manager drives one binding through four states:
//
//	Unbound ──Bind──▶ Binding ──connected──▶ Connected
//	   ▲                 │ ▲                     │
//	   │            fail │ │ rebind delay        │ lost
//	   │                 ▼ │                     ▼
//	   └────Unbind─── Disconnected ◀─────────────┘
//
// Unbind from any state returns to Unbound without a rebind. While the
// binding is wanted, every failure or loss schedules another attempt after
// the RebindPolicy delay, indefinitely.
//
// # Rebind Policy
//
// The default policy waits a fixed 2 seconds between attempts. Backoff is
// an opt-in exponential policy:
//
//	delay = min(initial * 2^attempt, max) + random(0, delay * 0.25)
//
// It resets after every successful bind.
//
// # Listeners
//
// OnConnected, OnDisconnected and OnStateChange listeners run on one
// notifier goroutine, in transition order, never under the manager lock.
// They may call back into the Manager.
package connection
