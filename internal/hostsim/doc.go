// Package hostsim simulates the host side of the extension link.
//
// Host implements binder.SystemController with an in-memory consumer
// table. Ride state, laps, user profile and data streams are published to
// matching consumers, and a new consumer is primed with the current value
// of its topic. Effects dispatched by extensions are recorded.
//
// ExtensionDriver plays the other host role: it dials an extension process,
// starts its streams, views and scans, and feeds the results back into a
// Host so that other consumers see extension data types like built-in ones.
package hostsim
