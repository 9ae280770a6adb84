// Package log provides structured event capture for output control.
//
// Every command the dispatcher executes, every resulting state change and
// every driver error is recorded as an Event. This is separate from
// operational logging (slog): the event log is a complete machine-readable
// audit trail of what was asked of each output and what the hardware did.
//
// # Basic Usage
//
//	// For development: log to console via slog
//	cfg.EventLogger = log.NewSlogAdapter(slog.Default())
//
//	// For production: write to binary file
//	cfg.EventLogger, _ = log.NewFileLogger("/var/lib/mycodo/outputs.olog")
//
//	// Both
//	cfg.EventLogger = log.NewMultiLogger(adapter, fileLogger)
//
// # File Format
//
// Log files are a stream of CBOR-encoded events with integer keys, using
// the .olog extension. The mycodo-log CLI views and summarizes them.
package log
