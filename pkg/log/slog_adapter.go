package log

import (
	"context"
	"log/slog"
)

// SlogAdapter writes protocol events to an slog.Logger.
// Useful for development when you want to see protocol events in console.
type SlogAdapter struct {
	logger *slog.Logger
}

// NewSlogAdapter creates a new SlogAdapter that writes to the given slog.Logger.
func NewSlogAdapter(logger *slog.Logger) *SlogAdapter {
	return &SlogAdapter{logger: logger}
}

// Log writes the event to the slog logger. Access decisions are logged
// at Info level, errors at Warn, everything else at Debug.
func (a *SlogAdapter) Log(event Event) {
	attrs := []slog.Attr{
		slog.String("conn_id", event.ConnectionID),
		slog.String("direction", event.Direction.String()),
		slog.String("layer", event.Layer.String()),
		slog.String("category", event.Category.String()),
	}

	if event.DeviceID != "" {
		attrs = append(attrs, slog.String("device_id", event.DeviceID))
	}
	if event.RemoteAddr != "" {
		attrs = append(attrs, slog.String("remote_addr", event.RemoteAddr))
	}

	level := slog.LevelDebug

	switch {
	case event.Frame != nil:
		attrs = append(attrs,
			slog.Int("frame_size", event.Frame.Size),
			slog.Bool("truncated", event.Frame.Truncated),
		)
		if event.Frame.Discarded > 0 {
			attrs = append(attrs, slog.Int("discarded", event.Frame.Discarded))
		}
	case event.Message != nil:
		attrs = append(attrs,
			slog.String("command", event.Message.Command),
			slog.Int("fields", event.Message.FieldCount),
		)
	case event.Decision != nil:
		level = slog.LevelInfo
		attrs = append(attrs,
			slog.Bool("granted", event.Decision.Granted),
			slog.String("display", event.Decision.Display),
			slog.String("strategy", event.Decision.Strategy),
		)
		if event.Decision.Card != "" {
			attrs = append(attrs, slog.String("card", event.Decision.Card))
		}
		if event.Decision.Direction != "" {
			attrs = append(attrs, slog.String("passage", event.Decision.Direction))
		}
		if event.Decision.Reader != "" {
			attrs = append(attrs, slog.String("reader", event.Decision.Reader))
		}
	case event.StateChange != nil:
		attrs = append(attrs,
			slog.String("entity", event.StateChange.Entity),
			slog.String("old_state", event.StateChange.OldState),
			slog.String("new_state", event.StateChange.NewState),
		)
		if event.StateChange.Reason != "" {
			attrs = append(attrs, slog.String("reason", event.StateChange.Reason))
		}
	case event.Error != nil:
		level = slog.LevelWarn
		attrs = append(attrs,
			slog.String("error_layer", event.Error.Layer.String()),
			slog.String("error_msg", event.Error.Message),
		)
		if event.Error.Context != "" {
			attrs = append(attrs, slog.String("error_context", event.Error.Context))
		}
	}

	a.logger.LogAttrs(context.Background(), level, "protocol", attrs...)
}

// Compile-time interface satisfaction check.
var _ Logger = (*SlogAdapter)(nil)
