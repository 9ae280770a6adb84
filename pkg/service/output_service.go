package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/mycodo-go/mycodo-go/pkg/dispatch"
	"github.com/mycodo-go/mycodo-go/pkg/driver"
	"github.com/mycodo-go/mycodo-go/pkg/duration"
	"github.com/mycodo-go/mycodo-go/pkg/log"
	"github.com/mycodo-go/mycodo-go/pkg/output"
	"github.com/mycodo-go/mycodo-go/pkg/registry"
	"github.com/mycodo-go/mycodo-go/pkg/state"
)

// OutputService is the output control subsystem.
type OutputService struct {
	config Config

	registry   *registry.Registry
	drivers    *driver.Set
	state      *state.Aggregator
	timers     *duration.Manager
	dispatcher *dispatch.Dispatcher

	mu       sync.RWMutex
	svcState ServiceState
}

// New creates a service over store and drivers. Call Start to load outputs.
func New(store registry.Store, drivers *driver.Set, cfg Config) (*OutputService, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	s := &OutputService{
		config:  cfg,
		drivers: drivers,
		state:   state.NewAggregator(),
		timers:  duration.NewManager(),
	}
	s.registry = registry.New(store, registry.Config{
		Supported: drivers.Has,
		Logger:    cfg.Logger,
	})
	s.dispatcher = dispatch.New(s.registry, drivers, s.state, s.timers, dispatch.Config{
		DriverTimeout: cfg.DriverTimeout,
		Logger:        cfg.Logger,
		EventLogger:   cfg.EventLogger,
		Metrics:       cfg.Metrics,
	})

	// Hooks run under the registry lock and must not wait on an output's
	// execution lock; Forget never does.
	s.registry.OnAdd(func(o output.Output) {
		s.state.Register(o.UniqueID)
	})
	s.registry.OnDelete(func(o output.Output) {
		s.state.Remove(o.UniqueID)
		s.dispatcher.Forget(o.UniqueID)
	})

	cfg.Metrics.RegisterStatusGauge(s.state.Counts)

	// Unavailable until Start has loaded the registry.
	s.state.SetAvailable(false)
	return s, nil
}

// Start loads the registry and begins accepting commands.
func (s *OutputService) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.svcState == StateRunning {
		return ErrAlreadyStarted
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := s.registry.Load(); err != nil {
		return err
	}

	s.state.SetAvailable(true)
	s.svcState = StateRunning
	s.debugLog("output service started", "outputs", s.registry.Count(), "drivers", s.drivers.Types())
	return nil
}

// Stop switches off every output with a timed run in progress, cancels the
// remaining timers and marks the state source unavailable. Other outputs are
// left at their current level.
func (s *OutputService) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.svcState != StateRunning {
		return ErrNotStarted
	}
	s.svcState = StateStopped

	// Nothing would switch a timed run off after shutdown.
	ctx := log.WithSource(context.Background(), log.SourceSystem)
	for _, id := range s.timers.Pending() {
		cmd := output.Command{OutputID: id, Action: output.ActionOff}
		if _, err := s.dispatcher.Execute(ctx, cmd); err != nil && s.config.Logger != nil {
			s.config.Logger.Warn("switch off timed output on stop", "unique_id", id, "error", err)
		}
	}

	s.timers.CancelAll()
	s.state.SetAvailable(false)
	s.debugLog("output service stopped")
	return nil
}

// State returns the service state.
func (s *OutputService) State() ServiceState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.svcState
}

// SetAvailable marks the state source up or down without stopping the
// service, for example while the store is being restored.
func (s *OutputService) SetAvailable(available bool) {
	s.state.SetAvailable(available)
}

// Reload re-reads the store after an external configuration change.
func (s *OutputService) Reload() error {
	if err := s.running(); err != nil {
		return err
	}
	return s.registry.Load()
}

func (s *OutputService) running() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.svcState != StateRunning {
		return ErrNotStarted
	}
	return nil
}

// Execute runs a command.
func (s *OutputService) Execute(ctx context.Context, cmd output.Command) (dispatch.Ack, error) {
	if err := s.running(); err != nil {
		return dispatch.Ack{}, err
	}
	return s.dispatcher.Execute(ctx, cmd)
}

// ExecuteID parses a command identifier such as "uid/on/sec/30" against
// the output's type and runs it.
func (s *OutputService) ExecuteID(ctx context.Context, id string) (dispatch.Ack, error) {
	if err := s.running(); err != nil {
		return dispatch.Ack{}, err
	}
	uid, _ := output.SplitCommandID(id)
	o, err := s.registry.Get(uid)
	if err != nil {
		return dispatch.Ack{}, err
	}
	cmd, err := output.ParseCommandID(id, o.Type)
	if err != nil {
		return dispatch.Ack{}, err
	}
	return s.Execute(ctx, cmd)
}

// PowerCycle switches an output off, waits offFor, and switches it back on
// indefinitely. It is used to reset sensors powered through an output.
// If ctx ends during the wait the output is left off.
func (s *OutputService) PowerCycle(ctx context.Context, uniqueID string, offFor time.Duration) error {
	if offFor < 0 || offFor > s.config.MaxPowerCycle {
		return fmt.Errorf("%w: power cycle off period %s out of range", output.ErrInvalidQualifier, offFor)
	}
	ctx = log.WithSource(ctx, log.SourceSystem)

	if _, err := s.Execute(ctx, output.Command{OutputID: uniqueID, Action: output.ActionOff}); err != nil {
		return fmt.Errorf("power cycle off: %w", err)
	}

	t := time.NewTimer(offFor)
	defer t.Stop()
	select {
	case <-t.C:
	case <-ctx.Done():
		return ctx.Err()
	}

	if _, err := s.Execute(ctx, output.Command{
		OutputID:  uniqueID,
		Action:    output.ActionOn,
		Qualifier: output.DurationSeconds(0),
	}); err != nil {
		return fmt.Errorf("power cycle on: %w", err)
	}
	return nil
}

// OutputState returns the cached state of one output.
func (s *OutputService) OutputState(uniqueID string) (state.Entry, error) {
	e, ok := s.state.Get(uniqueID)
	if !ok {
		return state.Entry{}, fmt.Errorf("%w: %s", output.ErrNotFound, uniqueID)
	}
	return e, nil
}

// Snapshot returns the state of every output without touching a driver.
func (s *OutputService) Snapshot() (map[string]state.Entry, error) {
	return s.state.Snapshot()
}

// Tokens returns the poll tokens of every reachable output.
func (s *OutputService) Tokens() (map[string]string, error) {
	return s.state.Tokens()
}

// List returns outputs in display order.
func (s *OutputService) List() []output.Output {
	return s.registry.List()
}

// Get returns one output.
func (s *OutputService) Get(uniqueID string) (output.Output, error) {
	return s.registry.Get(uniqueID)
}

// Add creates quantity outputs of type t.
func (s *OutputService) Add(t output.Type, quantity int) ([]output.Output, error) {
	return s.registry.Add(t, quantity)
}

// Update changes an output's mutable attributes.
func (s *OutputService) Update(uniqueID string, attrs output.Attributes) (output.Output, error) {
	return s.registry.Update(uniqueID, attrs)
}

// Delete removes an output, its state and any pending timer.
func (s *OutputService) Delete(uniqueID string) error {
	return s.registry.Delete(uniqueID)
}

// Reorder moves an output one position.
func (s *OutputService) Reorder(uniqueID string, dir registry.Direction) error {
	return s.registry.Reorder(uniqueID, dir)
}

// ReorderAll sets the complete display order.
func (s *OutputService) ReorderAll(ids []string) error {
	return s.registry.ReorderAll(ids)
}

// Capabilities returns the capability table for types with a driver.
func (s *OutputService) Capabilities() []output.Capability {
	var result []output.Capability
	for _, c := range output.Capabilities() {
		if s.drivers.Has(c.Type) {
			result = append(result, c)
		}
	}
	return result
}

// TimerRemaining returns the time left on an output's timed-on, or false.
func (s *OutputService) TimerRemaining(uniqueID string) (time.Duration, bool) {
	t := s.timers.GetTimer(uniqueID)
	if t == nil {
		return 0, false
	}
	return t.RemainingTime(), true
}

func (s *OutputService) debugLog(msg string, args ...any) {
	if s.config.Logger != nil {
		s.config.Logger.Debug(msg, args...)
	}
}

