// Package karoo is the extension-side entry point to the host.
//
// A System keeps a registry of consumers and a connection.Manager that owns
// the bind to the host. The bind is held exactly while at least one consumer
// is registered: the first AddConsumer binds, the last RemoveConsumer
// unbinds.
//
// Registrations survive reconnects. When the host connects every
// registration is attached (Listener.Register with the live controller);
// when it goes away every attached registration is detached
// (Listener.Unregister with nil) and re-attached after the rebind. A
// registration is never attached twice to the same controller and never to
// a controller that is gone. Listener callbacks run without registry
// locks held, so they may add and remove consumers, their own included.
//
// Typed consumers decode host bundles into model events:
//
//	id, err := karoo.AddDefaultConsumer(sys, func(s model.RideState) {
//	    fmt.Println("ride state", s)
//	})
//
// Subscribe wraps the same mechanism in a channel whose lifetime follows a
// context.
package karoo
