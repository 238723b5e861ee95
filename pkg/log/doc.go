// Package log records protocol traces of the extension bridge.
//
// Traces are separate from operational logging (slog). They capture every
// frame, decoded call and callback, binding transition and consumer
// attach/detach as typed Events so a session can be replayed and analysed
// with karoo-log.
//
//	trace := log.NewMultiLogger(
//	    log.NewSlogAdapter(slog.Default()),
//	    fileLogger, // log.NewFileLogger("session.klog")
//	)
//
// Events carry a layer:
//   - TRANSPORT: frames (FrameEvent) and control messages (ControlMsgEvent)
//   - WIRE: calls, replies and callbacks (MessageEvent)
//   - BRIDGE: binding and consumer state (StateChangeEvent), effect dispatch
//
// Trace files are a concatenation of CBOR-encoded events with the .klog
// extension.
package log
