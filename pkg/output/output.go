package output

import "strings"

// Type identifies the kind of output. It determines which driver performs
// the physical action and which command qualifiers are legal.
type Type string

const (
	// TypeWired is a GPIO pin switched high/low.
	TypeWired Type = "wired"

	// TypeWirelessRF is a 315/433 MHz RF-switched outlet.
	TypeWirelessRF Type = "wireless_rf"

	// TypeCommand runs a shell command to switch on or off.
	TypeCommand Type = "command"

	// TypeScripted runs a script with an on/off argument.
	TypeScripted Type = "scripted"

	// TypePWM is a hardware or software PWM pin.
	TypePWM Type = "pwm"

	// TypeCommandPWM runs a shell command with the duty cycle substituted.
	TypeCommandPWM Type = "command_pwm"

	// TypeScriptedPWM runs a script with the duty cycle as argument.
	TypeScriptedPWM Type = "scripted_pwm"

	// TypePeristalticPump is a GPIO-switched pump dispensing by run time.
	TypePeristalticPump Type = "peristaltic_pump"

	// TypeMQTT publishes on/off payloads to an MQTT topic.
	TypeMQTT Type = "mqtt"

	// TypeAtlasPump is a serial dispensing pump that meters volume itself.
	TypeAtlasPump Type = "atlas_pump"
)

// Family groups output types that accept the same command qualifiers.
type Family uint8

const (
	// FamilyOnOff outputs are switched on or off, optionally for a duration.
	FamilyOnOff Family = iota + 1

	// FamilyPWM outputs are driven at a duty cycle.
	FamilyPWM

	// FamilyPump outputs dispense a volume.
	FamilyPump
)

// String returns the family name.
func (f Family) String() string {
	switch f {
	case FamilyOnOff:
		return "ON_OFF"
	case FamilyPWM:
		return "PWM"
	case FamilyPump:
		return "PUMP"
	default:
		return "UNKNOWN"
	}
}

// MarshalText encodes the family as its lower-case name.
func (f Family) MarshalText() ([]byte, error) {
	return []byte(strings.ToLower(f.String())), nil
}

// Settings holds driver-specific options for an output. Fields that do not
// apply to the output's type are ignored by its driver.
type Settings struct {
	// OnCommand is the shell command run to switch a command output on.
	OnCommand string `json:"on_command,omitempty" yaml:"on_command,omitempty"`

	// OffCommand is the shell command run to switch a command output off.
	OffCommand string `json:"off_command,omitempty" yaml:"off_command,omitempty"`

	// PWMCommand is the shell command for PWM command outputs.
	// The token ((duty_cycle)) is replaced by the duty cycle percent.
	PWMCommand string `json:"pwm_command,omitempty" yaml:"pwm_command,omitempty"`

	// Script is the executable path used by scripted outputs.
	Script string `json:"script,omitempty" yaml:"script,omitempty"`

	// Topic is the MQTT topic for mqtt and RF-bridged outputs.
	Topic string `json:"topic,omitempty" yaml:"topic,omitempty"`

	// FlowRateMlMin is the pump calibration in ml per minute.
	FlowRateMlMin float64 `json:"flow_rate_ml_min,omitempty" yaml:"flow_rate_ml_min,omitempty"`

	// PWMInvert inverts the duty cycle written to the driver.
	PWMInvert bool `json:"pwm_invert,omitempty" yaml:"pwm_invert,omitempty"`

	// BaudRate is the serial speed for serial pumps.
	BaudRate int `json:"baud_rate,omitempty" yaml:"baud_rate,omitempty"`
}

// Output is a configured controllable device.
type Output struct {
	// ID is a stable sequence number used for display only.
	ID int64 `json:"id"`

	// UniqueID is the immutable primary key.
	UniqueID string `json:"unique_id"`

	// Type is immutable after creation.
	Type Type `json:"output_type"`

	Name      string  `json:"name"`
	Pin       string  `json:"pin,omitempty"`
	Interface string  `json:"interface,omitempty"`
	Amperage  float64 `json:"amperage"`

	// SortOrder is the position in the display order (0-based, dense).
	SortOrder int `json:"sort_order"`

	Settings Settings `json:"settings"`
}

// Attributes is the mutable subset of an Output. Nil fields are left
// unchanged by an update.
type Attributes struct {
	Name      *string   `json:"name,omitempty"`
	Pin       *string   `json:"pin,omitempty"`
	Interface *string   `json:"interface,omitempty"`
	Amperage  *float64  `json:"amperage,omitempty"`
	Settings  *Settings `json:"settings,omitempty"`
}

// Apply returns a copy of o with the non-nil attributes applied.
func (a Attributes) Apply(o Output) Output {
	if a.Name != nil {
		o.Name = *a.Name
	}
	if a.Pin != nil {
		o.Pin = *a.Pin
	}
	if a.Interface != nil {
		o.Interface = *a.Interface
	}
	if a.Amperage != nil {
		o.Amperage = *a.Amperage
	}
	if a.Settings != nil {
		o.Settings = *a.Settings
	}
	return o
}
