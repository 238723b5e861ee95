package log

// Logger receives trace events. Implementations must be safe for
// concurrent use and must not block for long.
type Logger interface {
	Log(event Event)
}

// NoopLogger discards all events.
type NoopLogger struct{}

// Log discards the event.
func (NoopLogger) Log(Event) {}

var _ Logger = NoopLogger{}
