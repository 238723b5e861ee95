// Package binder defines the host ABI and carries it across a transport
// link.
//
// The host exposes a SystemController to extensions; an extension exposes
// an ExtensionService to the host. Each side talks to the other through a
// proxy that turns method calls into wire.Call frames, and serves its own
// surface with a stub installed on the peer:
//
//	extension                              host
//	SystemProxy  ───── Call/Notify ─────►  ServeSystem  → SystemController
//	Handler      ◄──── Callback ─────────  remote handler
//
//	host                                   extension
//	ExtensionProxy ─── Notify ──────────►  ServeExtension → ExtensionService
//	Handler        ◄── Callback ─────────  remote handler
//
// Handlers never cross the link. The caller picks an id (consumer id,
// emitter id), the proxy routes callbacks carrying that id to the local
// Handler, and the stub hands the service a Handler that sends them.
//
// SocketBinder connects a connection.Manager to a host over a socket.
package binder
