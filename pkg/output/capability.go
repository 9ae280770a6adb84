package output

import "sort"

// Capability describes what an output type supports.
type Capability struct {
	Type        Type   `json:"type" yaml:"type"`
	Family      Family `json:"family" yaml:"-"`
	DisplayName string `json:"display_name" yaml:"display_name"`

	// Unit is the unit of the type's amount ("s", "%" or "ml").
	Unit string `json:"unit" yaml:"unit"`

	// Qualifiers lists the qualifier kinds legal with an On command.
	// Off commands only accept QualifierNone.
	Qualifiers []QualifierKind `json:"qualifiers" yaml:"qualifiers"`

	// DefaultInterface is the interface assigned to new outputs.
	DefaultInterface string `json:"default_interface,omitempty" yaml:"default_interface,omitempty"`

	// Defaults are the settings assigned to new outputs.
	Defaults Settings `json:"-" yaml:"-"`
}

// capabilities is the static capability table keyed by output type.
var capabilities = map[Type]Capability{
	TypeWired:           {Type: TypeWired, DisplayName: "On/Off: GPIO", DefaultInterface: "GPIO"},
	TypeWirelessRF:      {Type: TypeWirelessRF, DisplayName: "On/Off: 315/433 MHz RF", DefaultInterface: "RF"},
	TypeCommand:         {Type: TypeCommand, DisplayName: "On/Off: Shell Command", DefaultInterface: "SHELL"},
	TypeScripted:        {Type: TypeScripted, DisplayName: "On/Off: Script", DefaultInterface: "SHELL"},
	TypeMQTT:            {Type: TypeMQTT, DisplayName: "On/Off: MQTT Publish", DefaultInterface: "MQTT"},
	TypePWM:             {Type: TypePWM, DisplayName: "PWM: GPIO", DefaultInterface: "GPIO"},
	TypeCommandPWM:      {Type: TypeCommandPWM, DisplayName: "PWM: Shell Command", DefaultInterface: "SHELL"},
	TypeScriptedPWM:     {Type: TypeScriptedPWM, DisplayName: "PWM: Script", DefaultInterface: "SHELL"},
	TypePeristalticPump: {Type: TypePeristalticPump, DisplayName: "Pump: Peristaltic (GPIO)", DefaultInterface: "GPIO",
		Defaults: Settings{FlowRateMlMin: 10}},
	TypeAtlasPump: {Type: TypeAtlasPump, DisplayName: "Pump: Atlas Scientific EZO-PMP", DefaultInterface: "UART",
		Defaults: Settings{FlowRateMlMin: 105, BaudRate: 9600}},
}

func init() {
	for t, c := range capabilities {
		c.Family = familyOf(t)
		switch c.Family {
		case FamilyOnOff:
			c.Unit = "s"
			c.Qualifiers = []QualifierKind{QualifierNone, QualifierDuration}
		case FamilyPWM:
			c.Unit = "%"
			c.Qualifiers = []QualifierKind{QualifierNone, QualifierDutyCycle}
		case FamilyPump:
			c.Unit = "ml"
			c.Qualifiers = []QualifierKind{QualifierNone, QualifierVolume}
		default:
			panic("output: type " + string(t) + " has no family")
		}
		capabilities[t] = c
	}
}

// familyOf maps every known type to its family.
func familyOf(t Type) Family {
	switch t {
	case TypeWired, TypeWirelessRF, TypeCommand, TypeScripted, TypeMQTT:
		return FamilyOnOff
	case TypePWM, TypeCommandPWM, TypeScriptedPWM:
		return FamilyPWM
	case TypePeristalticPump, TypeAtlasPump:
		return FamilyPump
	default:
		return 0
	}
}

// LookupCapability returns the capability for t.
func LookupCapability(t Type) (Capability, bool) {
	c, ok := capabilities[t]
	return c, ok
}

// Family returns the type's family, or 0 for unknown types.
func (t Type) Family() Family {
	return familyOf(t)
}

// Valid reports whether t is a known output type.
func (t Type) Valid() bool {
	_, ok := capabilities[t]
	return ok
}

// Capabilities returns the capability table sorted by type name.
func Capabilities() []Capability {
	result := make([]Capability, 0, len(capabilities))
	for _, c := range capabilities {
		result = append(result, c)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].Type < result[j].Type
	})
	return result
}

// Supports reports whether the qualifier kind is legal for the action on
// outputs of type t.
func (t Type) Supports(action Action, kind QualifierKind) bool {
	if action == ActionOff {
		return kind == QualifierNone
	}
	c, ok := capabilities[t]
	if !ok {
		return false
	}
	for _, q := range c.Qualifiers {
		if q == kind {
			return true
		}
	}
	return false
}
