package output

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Action is the requested switch direction.
type Action uint8

const (
	// ActionOn activates the output.
	ActionOn Action = iota + 1

	// ActionOff deactivates the output.
	ActionOff
)

// String returns the action token used in command identifiers.
func (a Action) String() string {
	switch a {
	case ActionOn:
		return "on"
	case ActionOff:
		return "off"
	default:
		return "unknown"
	}
}

// QualifierKind identifies the kind of amount attached to a command.
type QualifierKind uint8

const (
	// QualifierNone is an unqualified on or off.
	QualifierNone QualifierKind = iota

	// QualifierDuration turns on for a number of seconds (0 = indefinitely).
	QualifierDuration

	// QualifierDutyCycle sets a duty cycle percent (0-100).
	QualifierDutyCycle

	// QualifierVolume dispenses a volume in ml (> 0).
	QualifierVolume
)

// String returns the qualifier kind name.
func (k QualifierKind) String() string {
	switch k {
	case QualifierNone:
		return "none"
	case QualifierDuration:
		return "duration"
	case QualifierDutyCycle:
		return "duty_cycle"
	case QualifierVolume:
		return "volume"
	default:
		return "unknown"
	}
}

// MarshalText encodes the kind as its name.
func (k QualifierKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// Qualifier is the optional amount attached to a command.
type Qualifier struct {
	Kind  QualifierKind
	Value float64
}

// None returns the empty qualifier.
func None() Qualifier { return Qualifier{} }

// DurationSeconds returns a duration qualifier.
func DurationSeconds(sec float64) Qualifier {
	return Qualifier{Kind: QualifierDuration, Value: sec}
}

// DutyCyclePercent returns a duty cycle qualifier.
func DutyCyclePercent(pct float64) Qualifier {
	return Qualifier{Kind: QualifierDutyCycle, Value: pct}
}

// VolumeMl returns a volume qualifier.
func VolumeMl(ml float64) Qualifier {
	return Qualifier{Kind: QualifierVolume, Value: ml}
}

// String formats the qualifier for logs.
func (q Qualifier) String() string {
	switch q.Kind {
	case QualifierNone:
		return "none"
	case QualifierDuration:
		return fmt.Sprintf("%gs", q.Value)
	case QualifierDutyCycle:
		return fmt.Sprintf("%g%%", q.Value)
	case QualifierVolume:
		return fmt.Sprintf("%gml", q.Value)
	default:
		return "unknown"
	}
}

// validRange checks the qualifier value independently of the output type.
func (q Qualifier) validRange() error {
	if math.IsNaN(q.Value) || math.IsInf(q.Value, 0) {
		return fmt.Errorf("%w: %s is not a finite number", ErrInvalidQualifier, q.Kind)
	}
	switch q.Kind {
	case QualifierNone:
		return nil
	case QualifierDuration:
		if q.Value < 0 {
			return fmt.Errorf("%w: duration %g must be >= 0", ErrInvalidQualifier, q.Value)
		}
	case QualifierDutyCycle:
		if q.Value < 0 || q.Value > 100 {
			return fmt.Errorf("%w: duty cycle %g must be 0-100", ErrInvalidQualifier, q.Value)
		}
	case QualifierVolume:
		if q.Value <= 0 {
			return fmt.Errorf("%w: volume %g must be > 0", ErrInvalidQualifier, q.Value)
		}
	default:
		return fmt.Errorf("%w: unknown qualifier kind %d", ErrInvalidQualifier, q.Kind)
	}
	return nil
}

// Command is an intent to switch an output.
type Command struct {
	OutputID  string
	Action    Action
	Qualifier Qualifier
}

// String formats the command as an identifier.
func (c Command) String() string {
	return fmt.Sprintf("%s/%s/%s", c.OutputID, c.Action, c.Qualifier)
}

// Validate checks that the command is legal for outputs of type t.
// It never touches a driver.
func (c Command) Validate(t Type) error {
	if c.Action != ActionOn && c.Action != ActionOff {
		return fmt.Errorf("%w: unknown action %d", ErrInvalidQualifier, c.Action)
	}
	if err := c.Qualifier.validRange(); err != nil {
		return err
	}
	if !t.Supports(c.Action, c.Qualifier.Kind) {
		return fmt.Errorf("%w: %s with %s not supported by %s outputs",
			ErrInvalidQualifier, c.Action, c.Qualifier.Kind, t)
	}
	return nil
}

// Amount kind tokens used in command identifiers.
const (
	AmountSeconds = "sec"
	AmountPWM     = "pwm"
	AmountVolume  = "vol"
)

// SplitCommandID returns the unique ID and the remaining segments of a
// command identifier.
func SplitCommandID(id string) (string, []string) {
	parts := strings.Split(strings.Trim(id, "/"), "/")
	return parts[0], parts[1:]
}

// ParseCommandID parses {unique_id}/{on|off}/{sec|pwm|vol}/{amount} for an
// output of type t. The kind and amount segments are optional; an empty
// amount is an unqualified command. For pump outputs the sec slot carries
// the dispense volume, matching how the control panel submits pump commands.
func ParseCommandID(id string, t Type) (Command, error) {
	uid, rest := SplitCommandID(id)
	if uid == "" || len(rest) == 0 || len(rest) > 3 {
		return Command{}, fmt.Errorf("%w: malformed command identifier %q", ErrInvalidQualifier, id)
	}

	cmd := Command{OutputID: uid}
	switch strings.ToLower(rest[0]) {
	case "on":
		cmd.Action = ActionOn
	case "off":
		cmd.Action = ActionOff
	default:
		return Command{}, fmt.Errorf("%w: unknown action %q", ErrInvalidQualifier, rest[0])
	}

	var kind, amount string
	if len(rest) > 1 {
		kind = strings.ToLower(rest[1])
	}
	if len(rest) > 2 {
		amount = strings.TrimSpace(rest[2])
	}
	if amount == "" {
		return cmd, nil
	}

	value, err := strconv.ParseFloat(amount, 64)
	if err != nil {
		return Command{}, fmt.Errorf("%w: amount %q is not a number", ErrInvalidQualifier, amount)
	}

	switch kind {
	case AmountSeconds:
		if t.Family() == FamilyPump {
			cmd.Qualifier = VolumeMl(value)
		} else {
			cmd.Qualifier = DurationSeconds(value)
		}
	case AmountPWM:
		cmd.Qualifier = DutyCyclePercent(value)
	case AmountVolume:
		cmd.Qualifier = VolumeMl(value)
	default:
		return Command{}, fmt.Errorf("%w: unknown amount kind %q", ErrInvalidQualifier, kind)
	}
	return cmd, nil
}
