// Package commands implements the mycodo-log CLI commands.
package commands

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/mycodo-go/mycodo-go/pkg/log"
)

// FilterOptions are the selection flags shared by every command.
type FilterOptions struct {
	OutputID   string
	OutputType string
	Source     string
	Category   string
	TimeStart  string
	TimeEnd    string
}

// Build converts the flag values into a log.Filter.
func (o FilterOptions) Build() (log.Filter, error) {
	filter := log.Filter{
		OutputID:   o.OutputID,
		OutputType: o.OutputType,
	}

	if o.Source != "" {
		s, err := parseSource(o.Source)
		if err != nil {
			return log.Filter{}, err
		}
		filter.Source = &s
	}

	if o.Category != "" {
		c, err := parseCategory(o.Category)
		if err != nil {
			return log.Filter{}, err
		}
		filter.Category = &c
	}

	if o.TimeStart != "" {
		t, err := time.Parse(time.RFC3339, o.TimeStart)
		if err != nil {
			return log.Filter{}, fmt.Errorf("invalid time-start format: %w", err)
		}
		filter.TimeStart = &t
	}

	if o.TimeEnd != "" {
		t, err := time.Parse(time.RFC3339, o.TimeEnd)
		if err != nil {
			return log.Filter{}, fmt.Errorf("invalid time-end format: %w", err)
		}
		filter.TimeEnd = &t
	}

	return filter, nil
}

// parseSource parses a source string (case-insensitive).
func parseSource(s string) (log.Source, error) {
	switch strings.ToLower(s) {
	case "api":
		return log.SourceAPI, nil
	case "timer":
		return log.SourceTimer, nil
	case "console":
		return log.SourceConsole, nil
	case "system":
		return log.SourceSystem, nil
	default:
		return 0, fmt.Errorf("invalid source: %s (must be api, timer, console, or system)", s)
	}
}

// parseCategory parses a category string (case-insensitive).
func parseCategory(s string) (log.Category, error) {
	switch strings.ToLower(s) {
	case "command":
		return log.CategoryCommand, nil
	case "state":
		return log.CategoryState, nil
	case "error":
		return log.CategoryError, nil
	default:
		return 0, fmt.Errorf("invalid category: %s (must be command, state, or error)", s)
	}
}

// each calls fn for every event of path matching filter.
func each(path string, filter log.Filter, fn func(log.Event) error) error {
	reader, err := log.NewFilteredReader(path, filter)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}
	defer reader.Close()

	for {
		event, err := reader.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("failed to read event: %w", err)
		}
		if err := fn(event); err != nil {
			return err
		}
	}
}

// RunFilter writes the events matching opts to output, a new log file.
func RunFilter(path string, opts FilterOptions, output string, w io.Writer) error {
	filter, err := opts.Build()
	if err != nil {
		return err
	}

	logger, err := log.NewFileLogger(output)
	if err != nil {
		return fmt.Errorf("failed to create output logger: %w", err)
	}
	defer logger.Close()

	count := 0
	err = each(path, filter, func(e log.Event) error {
		logger.Log(e)
		count++
		return nil
	})
	if err != nil {
		return err
	}
	if n := logger.Dropped(); n > 0 {
		return fmt.Errorf("failed to write %d events to %s", n, output)
	}

	fmt.Fprintf(w, "Filtered %d events to %s\n", count, output)
	return nil
}
