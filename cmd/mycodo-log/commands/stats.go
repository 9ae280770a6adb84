package commands

import (
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/mycodo-go/mycodo-go/pkg/log"
)

// Stats holds aggregate statistics about a log file.
type Stats struct {
	TotalEvents      int
	EventsByCategory map[log.Category]int
	EventsBySource   map[log.Source]int
	Results          map[log.Result]int
	Outputs          map[string]*OutputStats
	TimeRange        struct {
		Start time.Time
		End   time.Time
	}
}

// OutputStats holds statistics for a single output.
type OutputStats struct {
	Type       string
	FirstSeen  time.Time
	LastSeen   time.Time
	Commands   int
	Failures   int
	Timeouts   int
	DriverTime time.Duration
	DriverRuns int
	LastState  string
}

// AvgDriverTime returns the mean duration of the output's driver calls.
func (o *OutputStats) AvgDriverTime() time.Duration {
	if o.DriverRuns == 0 {
		return 0
	}
	return o.DriverTime / time.Duration(o.DriverRuns)
}

// RunStats analyzes the events matching opts and prints statistics.
func RunStats(path string, opts FilterOptions, w io.Writer) error {
	filter, err := opts.Build()
	if err != nil {
		return err
	}

	stats := &Stats{
		EventsByCategory: make(map[log.Category]int),
		EventsBySource:   make(map[log.Source]int),
		Results:          make(map[log.Result]int),
		Outputs:          make(map[string]*OutputStats),
	}
	if err := each(path, filter, stats.add); err != nil {
		return err
	}

	printStats(w, stats)
	return nil
}

func (s *Stats) add(event log.Event) error {
	s.TotalEvents++
	s.EventsByCategory[event.Category]++

	if s.TimeRange.Start.IsZero() || event.Timestamp.Before(s.TimeRange.Start) {
		s.TimeRange.Start = event.Timestamp
	}
	if event.Timestamp.After(s.TimeRange.End) {
		s.TimeRange.End = event.Timestamp
	}

	out, ok := s.Outputs[event.OutputID]
	if !ok {
		out = &OutputStats{FirstSeen: event.Timestamp, LastSeen: event.Timestamp}
		s.Outputs[event.OutputID] = out
	}
	if event.Timestamp.After(out.LastSeen) {
		out.LastSeen = event.Timestamp
	}
	if out.Type == "" {
		out.Type = event.OutputType
	}

	switch {
	case event.Command != nil:
		s.EventsBySource[event.Source]++
		s.Results[event.Command.Result]++
		out.Commands++
		if event.Command.Result == log.ResultFailed {
			out.Failures++
		}
		if event.Command.DriverTime > 0 {
			out.DriverTime += event.Command.DriverTime
			out.DriverRuns++
		}
	case event.StateChange != nil:
		out.LastState = event.StateChange.NewState
	case event.Error != nil:
		if event.Error.Timeout {
			out.Timeouts++
		}
	}
	return nil
}

func printStats(w io.Writer, stats *Stats) {
	fmt.Fprintln(w, "=== Output Event Log Statistics ===")
	fmt.Fprintln(w)

	if stats.TotalEvents > 0 {
		fmt.Fprintf(w, "Time Range: %s to %s\n",
			stats.TimeRange.Start.Format(time.RFC3339),
			stats.TimeRange.End.Format(time.RFC3339))
		fmt.Fprintf(w, "Duration:   %s\n", stats.TimeRange.End.Sub(stats.TimeRange.Start).Round(time.Second))
		fmt.Fprintln(w)
	}

	fmt.Fprintf(w, "Total Events: %d\n", stats.TotalEvents)
	fmt.Fprintln(w)

	fmt.Fprintln(w, "Events by Category:")
	for _, cat := range []log.Category{log.CategoryCommand, log.CategoryState, log.CategoryError} {
		if count := stats.EventsByCategory[cat]; count > 0 {
			fmt.Fprintf(w, "  %-12s %d\n", cat.String()+":", count)
		}
	}
	fmt.Fprintln(w)

	fmt.Fprintln(w, "Commands by Source:")
	for _, src := range []log.Source{log.SourceAPI, log.SourceTimer, log.SourceConsole, log.SourceSystem} {
		if count := stats.EventsBySource[src]; count > 0 {
			fmt.Fprintf(w, "  %-12s %d\n", src.String()+":", count)
		}
	}
	fmt.Fprintln(w)

	fmt.Fprintln(w, "Commands by Result:")
	for _, r := range []log.Result{log.ResultAck, log.ResultRejected, log.ResultFailed, log.ResultSuperseded} {
		if count := stats.Results[r]; count > 0 {
			fmt.Fprintf(w, "  %-12s %d\n", r.String()+":", count)
		}
	}
	fmt.Fprintln(w)

	fmt.Fprintf(w, "Outputs: %d\n", len(stats.Outputs))
	if len(stats.Outputs) == 0 {
		return
	}

	ids := make([]string, 0, len(stats.Outputs))
	for id := range stats.Outputs {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		return stats.Outputs[ids[i]].FirstSeen.Before(stats.Outputs[ids[j]].FirstSeen)
	})

	fmt.Fprintln(w)
	for _, id := range ids {
		o := stats.Outputs[id]
		fmt.Fprintf(w, "  [%s] %s: %d commands", shortenID(id), o.Type, o.Commands)
		if o.Failures > 0 {
			fmt.Fprintf(w, ", %d failed", o.Failures)
		}
		if o.Timeouts > 0 {
			fmt.Fprintf(w, " (%d timeouts)", o.Timeouts)
		}
		fmt.Fprintln(w)
		if o.DriverRuns > 0 {
			fmt.Fprintf(w, "           Avg driver time: %s\n", formatDuration(o.AvgDriverTime()))
		}
		if o.LastState != "" {
			fmt.Fprintf(w, "           Last state: %s\n", o.LastState)
		}
	}
}

// formatDuration formats a duration for display.
func formatDuration(d time.Duration) string {
	if d < time.Millisecond {
		return fmt.Sprintf("%.3fus", float64(d.Nanoseconds())/1000)
	}
	if d < time.Second {
		return fmt.Sprintf("%.3fms", float64(d.Microseconds())/1000)
	}
	return fmt.Sprintf("%.3fs", d.Seconds())
}
