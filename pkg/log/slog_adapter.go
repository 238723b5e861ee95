package log

import (
	"context"
	"log/slog"
)

// SlogAdapter renders trace events as Debug records on an slog.Logger.
type SlogAdapter struct {
	logger *slog.Logger
}

// NewSlogAdapter returns an adapter writing to logger.
func NewSlogAdapter(logger *slog.Logger) *SlogAdapter {
	return &SlogAdapter{logger: logger}
}

// Log writes the event at Debug level.
func (a *SlogAdapter) Log(event Event) {
	ctx := context.Background()
	if !a.logger.Enabled(ctx, slog.LevelDebug) {
		return
	}

	attrs := []slog.Attr{
		slog.String("conn_id", event.ConnectionID),
		slog.String("side", event.Side.String()),
		slog.String("direction", event.Direction.String()),
		slog.String("layer", event.Layer.String()),
		slog.String("category", event.Category.String()),
	}
	if event.Package != "" {
		attrs = append(attrs, slog.String("package", event.Package))
	}

	switch {
	case event.Frame != nil:
		attrs = append(attrs,
			slog.Int("frame_size", event.Frame.Size),
			slog.Bool("truncated", event.Frame.Truncated),
		)
	case event.Message != nil:
		m := event.Message
		attrs = append(attrs,
			slog.String("kind", m.Kind.String()),
			slog.String("op", m.Label()),
		)
		if m.MessageID != 0 {
			attrs = append(attrs, slog.Uint64("msg_id", uint64(m.MessageID)))
		}
		if target := event.Target(); target != "" {
			attrs = append(attrs, slog.String("target", target))
		}
		if m.Tag != "" {
			attrs = append(attrs, slog.String("tag", m.Tag))
		}
		if m.Latency != nil {
			attrs = append(attrs, slog.Duration("latency", *m.Latency))
		}
	case event.StateChange != nil:
		s := event.StateChange
		attrs = append(attrs,
			slog.String("entity", s.Entity.String()),
			slog.String("old_state", s.OldState),
			slog.String("new_state", s.NewState),
		)
		if s.ID != "" {
			attrs = append(attrs, slog.String("id", s.ID))
		}
		if s.Reason != "" {
			attrs = append(attrs, slog.String("reason", s.Reason))
		}
	case event.ControlMsg != nil:
		attrs = append(attrs,
			slog.String("ctrl_type", event.ControlMsg.Type.String()),
			slog.Uint64("seq", uint64(event.ControlMsg.Sequence)),
		)
	case event.Error != nil:
		attrs = append(attrs,
			slog.String("error_layer", event.Error.Layer.String()),
			slog.String("error_msg", event.Error.Message),
			slog.String("error_context", event.Error.Context),
		)
		if event.Error.Code != nil {
			attrs = append(attrs, slog.Int("error_code", *event.Error.Code))
		}
	}

	a.logger.LogAttrs(ctx, slog.LevelDebug, "trace", attrs...)
}

var _ Logger = (*SlogAdapter)(nil)
