package output

import (
	"errors"
	"testing"
	"time"
)

func TestCommandValidate(t *testing.T) {
	tests := []struct {
		name    string
		typ     Type
		cmd     Command
		wantErr bool
	}{
		{"WiredPlainOn", TypeWired, Command{Action: ActionOn}, false},
		{"WiredTimedOn", TypeWired, Command{Action: ActionOn, Qualifier: DurationSeconds(3)}, false},
		{"WiredZeroDuration", TypeWired, Command{Action: ActionOn, Qualifier: DurationSeconds(0)}, false},
		{"WiredNegativeDuration", TypeWired, Command{Action: ActionOn, Qualifier: DurationSeconds(-1)}, true},
		{"WiredDutyCycle", TypeWired, Command{Action: ActionOn, Qualifier: DutyCyclePercent(50)}, true},
		{"WiredVolume", TypeWired, Command{Action: ActionOn, Qualifier: VolumeMl(5)}, true},
		{"PWMDutyCycle", TypePWM, Command{Action: ActionOn, Qualifier: DutyCyclePercent(75)}, false},
		{"PWMDutyCycleTooHigh", TypePWM, Command{Action: ActionOn, Qualifier: DutyCyclePercent(100.5)}, true},
		{"PWMDuration", TypeCommandPWM, Command{Action: ActionOn, Qualifier: DurationSeconds(5)}, true},
		{"PumpVolume", TypePeristalticPump, Command{Action: ActionOn, Qualifier: VolumeMl(10)}, false},
		{"PumpZeroVolume", TypePeristalticPump, Command{Action: ActionOn, Qualifier: VolumeMl(0)}, true},
		{"PumpDuration", TypeAtlasPump, Command{Action: ActionOn, Qualifier: DurationSeconds(5)}, true},
		{"OffPlain", TypePWM, Command{Action: ActionOff}, false},
		{"OffWithDuration", TypeWired, Command{Action: ActionOff, Qualifier: DurationSeconds(5)}, true},
		{"UnknownType", Type("laser"), Command{Action: ActionOn}, true},
		{"NoAction", TypeWired, Command{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cmd.Validate(tt.typ)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrInvalidQualifier) {
				t.Errorf("Validate() error = %v, want ErrInvalidQualifier", err)
			}
		})
	}
}

func TestParseCommandID(t *testing.T) {
	tests := []struct {
		name    string
		id      string
		typ     Type
		want    Command
		wantErr bool
	}{
		{
			name: "PlainOn",
			id:   "abc/on",
			typ:  TypeWired,
			want: Command{OutputID: "abc", Action: ActionOn},
		},
		{
			name: "EmptyAmount",
			id:   "abc/off/sec/",
			typ:  TypeWired,
			want: Command{OutputID: "abc", Action: ActionOff},
		},
		{
			name: "Seconds",
			id:   "abc/on/sec/30",
			typ:  TypeWired,
			want: Command{OutputID: "abc", Action: ActionOn, Qualifier: DurationSeconds(30)},
		},
		{
			name: "DutyCycle",
			id:   "abc/on/pwm/42.5",
			typ:  TypePWM,
			want: Command{OutputID: "abc", Action: ActionOn, Qualifier: DutyCyclePercent(42.5)},
		},
		{
			name: "PumpSecondsSlotIsVolume",
			id:   "abc/on/sec/12",
			typ:  TypePeristalticPump,
			want: Command{OutputID: "abc", Action: ActionOn, Qualifier: VolumeMl(12)},
		},
		{
			name: "ExplicitVolume",
			id:   "/abc/on/vol/3/",
			typ:  TypeAtlasPump,
			want: Command{OutputID: "abc", Action: ActionOn, Qualifier: VolumeMl(3)},
		},
		{name: "BadAction", id: "abc/toggle", typ: TypeWired, wantErr: true},
		{name: "BadKind", id: "abc/on/min/3", typ: TypeWired, wantErr: true},
		{name: "BadAmount", id: "abc/on/sec/ten", typ: TypeWired, wantErr: true},
		{name: "MissingAction", id: "abc", typ: TypeWired, wantErr: true},
		{name: "TooManySegments", id: "abc/on/sec/1/2", typ: TypeWired, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseCommandID(tt.id, tt.typ)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseCommandID() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			if got != tt.want {
				t.Errorf("ParseCommandID() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestCapabilityTableIsExhaustive(t *testing.T) {
	for _, c := range Capabilities() {
		if c.Family == 0 {
			t.Errorf("type %s has no family", c.Type)
		}
		if len(c.Qualifiers) != 2 {
			t.Errorf("type %s qualifiers = %v, want 2", c.Type, c.Qualifiers)
		}
		if !c.Type.Supports(ActionOn, QualifierNone) {
			t.Errorf("type %s must accept an unqualified on", c.Type)
		}
	}

	if Type("laser").Valid() {
		t.Error("unknown type reported valid")
	}
}

func TestStatusToken(t *testing.T) {
	now := time.Now()

	tests := []struct {
		status Status
		want   string
	}{
		{Off(), "off"},
		{On(), "on"},
		{OnTimed(5, now), "on"},
		{OnDutyCycle(30), "30"},
		{OnDutyCycle(12.5), "12.5"},
		{Unreachable(), ""},
	}

	for _, tt := range tests {
		if got := tt.status.Token(); got != tt.want {
			t.Errorf("%s.Token() = %q, want %q", tt.status, got, tt.want)
		}
	}
}

func TestStatusRemaining(t *testing.T) {
	now := time.Now()
	s := OnTimed(10, now)

	if got := s.Remaining(now.Add(4 * time.Second)); got < 5.99 || got > 6.01 {
		t.Errorf("Remaining() = %v, want ~6", got)
	}
	if got := s.Remaining(now.Add(11 * time.Second)); got != 0 {
		t.Errorf("Remaining() after deadline = %v, want 0", got)
	}
	if got := On().Remaining(now); got != 0 {
		t.Errorf("Remaining() for plain on = %v, want 0", got)
	}
}
