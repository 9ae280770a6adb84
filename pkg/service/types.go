package service

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/mycodo-go/mycodo-go/pkg/dispatch"
	"github.com/mycodo-go/mycodo-go/pkg/log"
	"github.com/mycodo-go/mycodo-go/pkg/metrics"
)

// Service errors.
var (
	ErrNotStarted     = errors.New("service not started")
	ErrAlreadyStarted = errors.New("service already started")
	ErrInvalidConfig  = errors.New("invalid configuration")
)

// ServiceState represents the service state.
type ServiceState uint8

const (
	// StateIdle - service created but not started.
	StateIdle ServiceState = iota

	// StateRunning - outputs loaded, commands accepted.
	StateRunning

	// StateStopped - timers cancelled, commands rejected.
	StateStopped
)

// String returns the state name.
func (s ServiceState) String() string {
	switch s {
	case StateIdle:
		return "IDLE"
	case StateRunning:
		return "RUNNING"
	case StateStopped:
		return "STOPPED"
	default:
		return "UNKNOWN"
	}
}

// Config configures an OutputService.
type Config struct {
	// DriverTimeout bounds each driver call.
	DriverTimeout time.Duration

	// MaxPowerCycle bounds the off period of PowerCycle.
	MaxPowerCycle time.Duration

	// Logger is the optional logger for debug output.
	Logger *slog.Logger

	// EventLogger receives output events. Nil disables event capture.
	EventLogger log.Logger

	// Metrics is optional.
	Metrics *metrics.Metrics
}

// DefaultConfig returns the default service configuration.
func DefaultConfig() Config {
	return Config{
		DriverTimeout: dispatch.DefaultDriverTimeout,
		MaxPowerCycle: 5 * time.Minute,
	}
}

// Validate checks the configuration.
func (c Config) Validate() error {
	if c.DriverTimeout <= 0 {
		return fmt.Errorf("%w: driver timeout must be positive", ErrInvalidConfig)
	}
	if c.MaxPowerCycle <= 0 {
		return fmt.Errorf("%w: max power cycle must be positive", ErrInvalidConfig)
	}
	return nil
}
