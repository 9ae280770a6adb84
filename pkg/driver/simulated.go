package driver

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/mycodo-go/mycodo-go/pkg/output"
)

// PinState is the level of a simulated pin.
type PinState struct {
	On        bool
	DutyCycle float64

	// Dispensed is the total volume requested from a simulated pump.
	Dispensed float64
}

// Simulated drives outputs in memory. It stands in for GPIO, PWM and RF
// hardware on hosts without it, and records every call for inspection.
type Simulated struct {
	mu     sync.Mutex
	pins   map[string]PinState
	fail   map[string]error
	calls  int
	logger *slog.Logger
}

// NewSimulated creates a simulated driver. logger may be nil.
func NewSimulated(logger *slog.Logger) *Simulated {
	return &Simulated{
		pins:   make(map[string]PinState),
		fail:   make(map[string]error),
		logger: logger,
	}
}

// Activate implements Driver.
func (s *Simulated) Activate(ctx context.Context, o output.Output, a Activation) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.calls++
	if err := s.fail[o.UniqueID]; err != nil {
		return err
	}

	p := s.pins[o.UniqueID]
	p.On = true
	p.DutyCycle = a.DutyCycle
	if o.Settings.PWMInvert && o.Type.Family() == output.FamilyPWM {
		p.DutyCycle = 100 - a.DutyCycle
	}
	p.Dispensed += a.VolumeMl
	s.pins[o.UniqueID] = p

	s.debugLog("simulated activate", "unique_id", o.UniqueID, "pin", o.Pin, "duty_cycle", p.DutyCycle)
	return nil
}

// Deactivate implements Driver.
func (s *Simulated) Deactivate(ctx context.Context, o output.Output) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.calls++
	if err := s.fail[o.UniqueID]; err != nil {
		return err
	}

	p := s.pins[o.UniqueID]
	p.On = false
	p.DutyCycle = 0
	s.pins[o.UniqueID] = p

	s.debugLog("simulated deactivate", "unique_id", o.UniqueID, "pin", o.Pin)
	return nil
}

// Pin returns the simulated level of an output.
func (s *Simulated) Pin(uniqueID string) PinState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pins[uniqueID]
}

// Calls returns the number of driver calls made.
func (s *Simulated) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

// Disconnect makes every call for the output fail until Reconnect.
func (s *Simulated) Disconnect(uniqueID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fail[uniqueID] = fmt.Errorf("simulated output %s disconnected", uniqueID)
}

// Reconnect clears a Disconnect.
func (s *Simulated) Reconnect(uniqueID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.fail, uniqueID)
}

func (s *Simulated) debugLog(msg string, args ...any) {
	if s.logger != nil {
		s.logger.Debug(msg, args...)
	}
}
