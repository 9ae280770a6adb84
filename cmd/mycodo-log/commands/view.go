package commands

import (
	"fmt"
	"io"

	"github.com/mycodo-go/mycodo-go/pkg/log"
)

// RunView prints the events matching opts in human-readable form.
func RunView(path string, opts FilterOptions, w io.Writer) error {
	filter, err := opts.Build()
	if err != nil {
		return err
	}
	return each(path, filter, func(e log.Event) error {
		formatEvent(w, e)
		return nil
	})
}

// formatEvent writes one event as a header line plus indented details.
func formatEvent(w io.Writer, event log.Event) {
	ts := event.Timestamp.UTC().Format("2006-01-02T15:04:05.000000Z")
	fmt.Fprintf(w, "%s [%s] %-7s %-7s %s\n",
		ts, shortenID(event.OutputID), event.Source, event.Category, typeLabel(event))

	switch {
	case event.Command != nil:
		formatCommandDetails(w, event.Command)
	case event.StateChange != nil:
		formatStateChangeDetails(w, event.StateChange)
	case event.Error != nil:
		formatErrorDetails(w, event.Error)
	}

	fmt.Fprintln(w)
}

func typeLabel(event log.Event) string {
	switch {
	case event.Command != nil:
		return event.Command.Action + " " + event.Command.Result.String()
	case event.StateChange != nil:
		return "State"
	case event.Error != nil:
		return "Error"
	default:
		return "Unknown"
	}
}

// shortenID returns the first 8 characters of an output ID.
func shortenID(id string) string {
	if len(id) >= 8 {
		return id[:8]
	}
	return id
}

func formatCommandDetails(w io.Writer, cmd *log.CommandEvent) {
	if cmd.Qualifier != "" && cmd.Qualifier != "none" {
		fmt.Fprintf(w, "  Qualifier: %s %g\n", cmd.Qualifier, cmd.Amount)
	}
	if cmd.QueueTime > 0 {
		fmt.Fprintf(w, "  Queued: %s\n", formatDuration(cmd.QueueTime))
	}
	if cmd.DriverTime > 0 {
		fmt.Fprintf(w, "  Driver: %s\n", formatDuration(cmd.DriverTime))
	}
}

func formatStateChangeDetails(w io.Writer, sc *log.StateChangeEvent) {
	if sc.OldState != "" {
		fmt.Fprintf(w, "  %s -> %s\n", sc.OldState, sc.NewState)
	} else {
		fmt.Fprintf(w, "  -> %s\n", sc.NewState)
	}
	if sc.Reason != "" {
		fmt.Fprintf(w, "  Reason: %s\n", sc.Reason)
	}
}

func formatErrorDetails(w io.Writer, err *log.ErrorEventData) {
	fmt.Fprintf(w, "  Message: %s\n", err.Message)
	if err.Context != "" {
		fmt.Fprintf(w, "  Context: %s\n", err.Context)
	}
	if err.Timeout {
		fmt.Fprintln(w, "  Timeout: yes")
	}
}
