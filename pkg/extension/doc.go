// Package extension is the runtime for the extension side of the host ABI.
//
// An extension is a Service built from DataType implementations and an
// optional DeviceScanner. The host starts streams, views, scans and device
// connections by id; the Service creates an Emitter for each and keeps it
// until the host stops it or the link goes away:
//
//	svc := extension.NewService(extension.ServiceConfig{
//	    ID:      "barberfish",
//	    Version: "1.0.0",
//	    Types:   []extension.DataType{randonneur, triple},
//	})
//	err := extension.Serve(ctx, svc, extension.DefaultServeConfig())
//
// Emitters carry a context that ends when the host stops them. Work started
// for an emitter should watch Emitter.Context and stop with it.
package extension
