package log

import (
	"context"
	"log/slog"
)

// SlogAdapter writes events to an slog.Logger at Debug level.
type SlogAdapter struct {
	logger *slog.Logger
}

// NewSlogAdapter creates a SlogAdapter writing to logger.
func NewSlogAdapter(logger *slog.Logger) *SlogAdapter {
	return &SlogAdapter{logger: logger}
}

// Log writes the event.
func (a *SlogAdapter) Log(event Event) {
	attrs := []slog.Attr{
		slog.String("output_id", event.OutputID),
		slog.String("source", event.Source.String()),
		slog.String("category", event.Category.String()),
	}
	if event.OutputType != "" {
		attrs = append(attrs, slog.String("output_type", event.OutputType))
	}

	switch {
	case event.Command != nil:
		attrs = append(attrs,
			slog.String("action", event.Command.Action),
			slog.String("result", event.Command.Result.String()),
		)
		if event.Command.Qualifier != "" && event.Command.Qualifier != "none" {
			attrs = append(attrs,
				slog.String("qualifier", event.Command.Qualifier),
				slog.Float64("amount", event.Command.Amount),
			)
		}
		if event.Command.DriverTime > 0 {
			attrs = append(attrs, slog.Duration("driver_time", event.Command.DriverTime))
		}
		if event.Command.QueueTime > 0 {
			attrs = append(attrs, slog.Duration("queue_time", event.Command.QueueTime))
		}
	case event.StateChange != nil:
		attrs = append(attrs,
			slog.String("old_state", event.StateChange.OldState),
			slog.String("new_state", event.StateChange.NewState),
		)
		if event.StateChange.Reason != "" {
			attrs = append(attrs, slog.String("reason", event.StateChange.Reason))
		}
	case event.Error != nil:
		attrs = append(attrs,
			slog.String("error_msg", event.Error.Message),
			slog.String("error_context", event.Error.Context),
		)
		if event.Error.Timeout {
			attrs = append(attrs, slog.Bool("timeout", true))
		}
	}

	a.logger.LogAttrs(context.Background(), slog.LevelDebug, "output event", attrs...)
}

var _ Logger = (*SlogAdapter)(nil)
