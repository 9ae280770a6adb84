package output

import (
	"strconv"
	"time"
)

// StatusKind is the observed condition of an output.
type StatusKind uint8

const (
	// StatusUnreachable is the zero value: never reached or last call failed.
	StatusUnreachable StatusKind = iota
	StatusOff
	StatusOn
	StatusOnTimed
	StatusOnDutyCycle
)

// String returns the status name.
func (k StatusKind) String() string {
	switch k {
	case StatusUnreachable:
		return "UNREACHABLE"
	case StatusOff:
		return "OFF"
	case StatusOn:
		return "ON"
	case StatusOnTimed:
		return "ON_TIMED"
	case StatusOnDutyCycle:
		return "ON_DUTY_CYCLE"
	default:
		return "UNKNOWN"
	}
}

// Status is an observed output status.
//
// For StatusOnTimed, Until is the deadline of the automatic off and
// Seconds the duration requested. For StatusOnDutyCycle, Percent is the
// applied duty cycle.
type Status struct {
	Kind    StatusKind
	Seconds float64
	Until   time.Time
	Percent float64
}

// Unreachable returns the unreachable status.
func Unreachable() Status { return Status{Kind: StatusUnreachable} }

// Off returns the off status.
func Off() Status { return Status{Kind: StatusOff} }

// On returns the indefinite on status.
func On() Status { return Status{Kind: StatusOn} }

// OnTimed returns a timed-on status that ends at now+sec.
func OnTimed(sec float64, now time.Time) Status {
	return Status{
		Kind:    StatusOnTimed,
		Seconds: sec,
		Until:   now.Add(time.Duration(sec * float64(time.Second))),
	}
}

// OnDutyCycle returns a PWM status.
func OnDutyCycle(pct float64) Status {
	return Status{Kind: StatusOnDutyCycle, Percent: pct}
}

// Remaining returns the seconds left of a timed-on status at now.
func (s Status) Remaining(now time.Time) float64 {
	if s.Kind != StatusOnTimed {
		return 0
	}
	d := s.Until.Sub(now)
	if d < 0 {
		return 0
	}
	return d.Seconds()
}

// IsOn reports whether the status is any of the on variants.
func (s Status) IsOn() bool {
	return s.Kind == StatusOn || s.Kind == StatusOnTimed || s.Kind == StatusOnDutyCycle
}

// Token returns the poll token for the status: "off", "on", a numeric
// percent string for PWM, or "" when unreachable.
func (s Status) Token() string {
	switch s.Kind {
	case StatusOff:
		return "off"
	case StatusOn, StatusOnTimed:
		return "on"
	case StatusOnDutyCycle:
		return strconv.FormatFloat(s.Percent, 'f', -1, 64)
	default:
		return ""
	}
}

// String formats the status for logs.
func (s Status) String() string {
	switch s.Kind {
	case StatusOnTimed:
		return s.Kind.String() + "(" + strconv.FormatFloat(s.Seconds, 'f', -1, 64) + "s)"
	case StatusOnDutyCycle:
		return s.Kind.String() + "(" + strconv.FormatFloat(s.Percent, 'f', -1, 64) + "%)"
	default:
		return s.Kind.String()
	}
}
