// Package output defines the data model shared by the output control
// subsystem: configured outputs, their types and capabilities, the commands
// that can be issued against them, and the observed status of each output.
//
// # Output Types
//
// Every output has an immutable Type. The type selects a Family (on/off,
// PWM, pump) and the family fixes which command qualifiers are legal:
//
//	Family   On qualifiers                Off qualifiers
//	OnOff    none, duration seconds       none
//	PWM      none (100%), duty cycle      none
//	Pump     none (run), volume ml        none
//
// A command whose qualifier is not legal for the target type is rejected
// with ErrInvalidQualifier. Qualifiers are never coerced.
//
// # Command Identifiers
//
// Commands submitted over the wire use the identifier grammar
//
//	{unique_id}/{on|off}/{sec|pwm|vol}/{amount}
//
// where the amount is optional. ParseCommandID turns an identifier into a
// Command for a known output type.
package output
