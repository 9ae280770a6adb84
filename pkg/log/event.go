package log

import (
	"time"
)

// Event is one entry of the output event log.
// CBOR encoding uses integer keys for compactness.
type Event struct {
	// Timestamp when the event occurred (nanosecond precision).
	Timestamp time.Time `cbor:"1,keyasint"`

	// OutputID is the unique ID of the output concerned.
	OutputID string `cbor:"2,keyasint"`

	// OutputType is the output's type, for filtering without the registry.
	OutputType string `cbor:"3,keyasint,omitempty"`

	// Source is what issued the command.
	Source Source `cbor:"4,keyasint"`

	// Category classifies the event type.
	Category Category `cbor:"5,keyasint"`

	// Type-specific payload (one of these will be set).
	Command     *CommandEvent     `cbor:"10,keyasint,omitempty"`
	StateChange *StateChangeEvent `cbor:"11,keyasint,omitempty"`
	Error       *ErrorEventData   `cbor:"12,keyasint,omitempty"`
}

// Source identifies who issued a command.
type Source uint8

const (
	// SourceAPI is the HTTP API.
	SourceAPI Source = 0
	// SourceTimer is an automatic off after a timed activation.
	SourceTimer Source = 1
	// SourceConsole is the interactive console.
	SourceConsole Source = 2
	// SourceSystem is the daemon itself (power cycling, shutdown).
	SourceSystem Source = 3
)

// String returns the source name.
func (s Source) String() string {
	switch s {
	case SourceAPI:
		return "API"
	case SourceTimer:
		return "TIMER"
	case SourceConsole:
		return "CONSOLE"
	case SourceSystem:
		return "SYSTEM"
	default:
		return "UNKNOWN"
	}
}

// Category classifies the event type.
type Category uint8

const (
	// CategoryCommand indicates an executed or rejected command.
	CategoryCommand Category = 0
	// CategoryState indicates a state change.
	CategoryState Category = 1
	// CategoryError indicates a driver error.
	CategoryError Category = 2
)

// String returns the category name.
func (c Category) String() string {
	switch c {
	case CategoryCommand:
		return "COMMAND"
	case CategoryState:
		return "STATE"
	case CategoryError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// Result is the outcome of a command.
type Result uint8

const (
	// ResultAck means the command was applied.
	ResultAck Result = 0
	// ResultRejected means validation failed; no driver call was made.
	ResultRejected Result = 1
	// ResultFailed means the driver call failed or timed out.
	ResultFailed Result = 2
	// ResultSuperseded means a timer fired after a newer command; nothing ran.
	ResultSuperseded Result = 3
)

// String returns the result name.
func (r Result) String() string {
	switch r {
	case ResultAck:
		return "ACK"
	case ResultRejected:
		return "REJECTED"
	case ResultFailed:
		return "FAILED"
	case ResultSuperseded:
		return "SUPERSEDED"
	default:
		return "UNKNOWN"
	}
}

// CommandEvent captures one command execution.
type CommandEvent struct {
	// Action is "on" or "off".
	Action string `cbor:"1,keyasint"`

	// Qualifier is the qualifier kind ("none", "duration", "duty_cycle", "volume").
	Qualifier string `cbor:"2,keyasint,omitempty"`

	// Amount is the qualifier value.
	Amount float64 `cbor:"3,keyasint,omitempty"`

	// Result of the command.
	Result Result `cbor:"4,keyasint"`

	// DriverTime is how long the driver call took. Zero if none was made.
	// Stored as nanoseconds.
	DriverTime time.Duration `cbor:"5,keyasint,omitempty"`

	// QueueTime is how long the command waited for the output's lock.
	QueueTime time.Duration `cbor:"6,keyasint,omitempty"`
}

// StateChangeEvent captures an output status transition.
type StateChangeEvent struct {
	// OldState is the previous status (may be empty).
	OldState string `cbor:"1,keyasint,omitempty"`

	// NewState is the new status.
	NewState string `cbor:"2,keyasint"`

	// Reason for the change (if available).
	Reason string `cbor:"3,keyasint,omitempty"`
}

// ErrorEventData captures a driver error.
type ErrorEventData struct {
	// Message is the error message.
	Message string `cbor:"1,keyasint"`

	// Context describes what operation was being performed.
	Context string `cbor:"2,keyasint,omitempty"`

	// Timeout is set when the driver call exceeded its deadline.
	Timeout bool `cbor:"3,keyasint,omitempty"`
}
