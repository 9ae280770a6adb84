// Package driver defines the device driver adapter contract and the
// concrete drivers that perform physical output actions.
//
// A Driver is a black box to the dispatcher: it may block on device I/O,
// shell execution or network round trips, and it must honor ctx.
package driver

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/mycodo-go/mycodo-go/pkg/output"
)

// ErrNoDriver is returned by Set.Get for types without a driver.
var ErrNoDriver = errors.New("no driver for output type")

// Activation carries the qualifier-derived parameters of an activation.
type Activation struct {
	// DutyCycle is the percent for PWM outputs. Zero for other families.
	DutyCycle float64

	// VolumeMl is the requested volume for pump outputs. Drivers that can
	// meter volume themselves dispense it; others ignore it and are
	// switched off by the dispatcher after Duration.
	VolumeMl float64

	// Duration is the requested on time, or zero for indefinitely.
	Duration time.Duration
}

// Driver performs the physical action for an output.
type Driver interface {
	// Activate switches the output on.
	Activate(ctx context.Context, o output.Output, a Activation) error

	// Deactivate switches the output off.
	Deactivate(ctx context.Context, o output.Output) error
}

// Set maps output types to drivers.
type Set struct {
	mu      sync.RWMutex
	drivers map[output.Type]Driver
}

// NewSet creates an empty driver set.
func NewSet() *Set {
	return &Set{drivers: make(map[output.Type]Driver)}
}

// Register installs d for the given types, replacing earlier registrations.
func (s *Set) Register(d Driver, types ...output.Type) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, t := range types {
		s.drivers[t] = d
	}
}

// Get returns the driver for t.
func (s *Set) Get(t output.Type) (Driver, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	d, ok := s.drivers[t]
	if !ok {
		return nil, ErrNoDriver
	}
	return d, nil
}

// Has reports whether t has a driver.
func (s *Set) Has(t output.Type) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.drivers[t]
	return ok
}

// Types returns the types with a driver, sorted.
func (s *Set) Types() []output.Type {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]output.Type, 0, len(s.drivers))
	for t := range s.drivers {
		result = append(result, t)
	}
	sort.Slice(result, func(i, j int) bool { return result[i] < result[j] })
	return result
}
