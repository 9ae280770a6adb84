// Command mycodo-log views and analyzes output event logs.
//
// Event logs are written by mycodo-output when it is started with -events
// or with event_log set in its configuration.
//
// Usage:
//
//	mycodo-log <command> [flags] <file.olog>
//
// Commands:
//
//	view     View log file in human-readable format
//	export   Export log file to JSON lines or CSV
//	filter   Filter log file and write to new file
//	stats    Show per-output statistics
//
// Examples:
//
//	# View all events
//	mycodo-log view outputs.olog
//
//	# View the automatic offs of one output
//	mycodo-log view -output 5c1f0a3e-... -source timer outputs.olog
//
//	# Export state changes to CSV
//	mycodo-log export -format csv -category state -o states.csv outputs.olog
//
//	# Show statistics for the last day
//	mycodo-log stats -time-start 2026-03-14T00:00:00Z outputs.olog
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/mycodo-go/mycodo-go/cmd/mycodo-log/commands"
)

const usage = `mycodo-log - Output Event Log Analyzer

Usage:
  mycodo-log <command> [flags] <file.olog>

Commands:
  view     View log file in human-readable format
  export   Export log file to JSON lines or CSV
  filter   Filter log file and write to new file
  stats    Show per-output statistics

Use "mycodo-log <command> -help" for more information about a command.
`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(1)
	}

	cmd := os.Args[1]
	args := os.Args[2:]

	var err error
	switch cmd {
	case "view":
		err = runView(args)
	case "export":
		err = runExport(args)
	case "filter":
		err = runFilter(args)
	case "stats":
		err = runStats(args)
	case "-h", "-help", "--help", "help":
		fmt.Print(usage)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", cmd)
		fmt.Fprint(os.Stderr, usage)
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// newFlagSet creates a flag set with the shared selection flags bound to opts.
func newFlagSet(name, synopsis string, opts *commands.FilterOptions) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ExitOnError)
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "mycodo-log %s - %s\n\nUsage:\n  mycodo-log %s [flags] <file.olog>\n\nFlags:\n",
			name, synopsis, name)
		fs.PrintDefaults()
	}
	fs.StringVar(&opts.OutputID, "output", "", "Filter by output unique ID")
	fs.StringVar(&opts.OutputType, "type", "", "Filter by output type")
	fs.StringVar(&opts.Source, "source", "", "Filter by source (api, timer, console, system)")
	fs.StringVar(&opts.Category, "category", "", "Filter by category (command, state, error)")
	fs.StringVar(&opts.TimeStart, "time-start", "", "Filter by start time (RFC3339)")
	fs.StringVar(&opts.TimeEnd, "time-end", "", "Filter by end time (RFC3339)")
	return fs
}

// logPath parses args and returns the single positional log file.
func logPath(fs *flag.FlagSet, args []string) string {
	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}
	if fs.NArg() < 1 {
		fmt.Fprintln(os.Stderr, "Error: log file path required")
		fs.Usage()
		os.Exit(1)
	}
	return fs.Arg(0)
}

func runView(args []string) error {
	var opts commands.FilterOptions
	fs := newFlagSet("view", "View log file in human-readable format", &opts)
	path := logPath(fs, args)
	return commands.RunView(path, opts, os.Stdout)
}

func runExport(args []string) error {
	var opts commands.FilterOptions
	fs := newFlagSet("export", "Export log file to JSON lines or CSV", &opts)
	format := fs.String("format", "jsonl", "Output format (jsonl, csv)")
	output := fs.String("o", "", "Output file (default: stdout)")
	path := logPath(fs, args)
	return commands.RunExport(path, opts, *format, *output)
}

func runFilter(args []string) error {
	var opts commands.FilterOptions
	fs := newFlagSet("filter", "Filter log file and write to new file", &opts)
	output := fs.String("o", "", "Output file (required)")
	path := logPath(fs, args)
	if *output == "" {
		fmt.Fprintln(os.Stderr, "Error: output file (-o) required")
		fs.Usage()
		os.Exit(1)
	}
	return commands.RunFilter(path, opts, *output, os.Stdout)
}

func runStats(args []string) error {
	var opts commands.FilterOptions
	fs := newFlagSet("stats", "Show per-output statistics", &opts)
	path := logPath(fs, args)
	return commands.RunStats(path, opts, os.Stdout)
}
