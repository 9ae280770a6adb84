// Package dispatch executes output commands.
//
// The Dispatcher validates a command against the output's type, serializes
// it behind every earlier command for the same output, calls the driver and
// records the resulting state. Commands for different outputs never wait on
// each other.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/mycodo-go/mycodo-go/pkg/driver"
	"github.com/mycodo-go/mycodo-go/pkg/duration"
	"github.com/mycodo-go/mycodo-go/pkg/log"
	"github.com/mycodo-go/mycodo-go/pkg/metrics"
	"github.com/mycodo-go/mycodo-go/pkg/output"
	"github.com/mycodo-go/mycodo-go/pkg/state"
)

// DefaultDriverTimeout bounds a single driver call.
const DefaultDriverTimeout = 30 * time.Second

// Registry resolves outputs by unique ID.
type Registry interface {
	Get(uniqueID string) (output.Output, error)
}

// Drivers resolves the driver for an output type.
type Drivers interface {
	Get(t output.Type) (driver.Driver, error)
}

// Config configures a Dispatcher.
type Config struct {
	// DriverTimeout bounds each driver call. A call that exceeds it is a
	// driver failure.
	DriverTimeout time.Duration

	// Logger is the optional logger for debug output.
	Logger *slog.Logger

	// EventLogger receives command, state and error events. Nil disables.
	EventLogger log.Logger

	// Metrics is optional.
	Metrics *metrics.Metrics
}

// DefaultConfig returns the default dispatcher configuration.
func DefaultConfig() Config {
	return Config{DriverTimeout: DefaultDriverTimeout}
}

// Ack is a successful command result.
type Ack struct {
	OutputID string        `json:"unique_id"`
	Status   output.Status `json:"-"`
}

// Dispatcher executes commands.
type Dispatcher struct {
	registry Registry
	drivers  Drivers
	state    *state.Aggregator
	timers   *duration.Manager
	config   Config

	mu    sync.Mutex
	locks map[string]*outputLock

	now func() time.Time
}

// New creates a dispatcher and installs its handler on timers.
func New(reg Registry, drivers Drivers, st *state.Aggregator, timers *duration.Manager, cfg Config) *Dispatcher {
	if cfg.DriverTimeout <= 0 {
		cfg.DriverTimeout = DefaultDriverTimeout
	}
	if cfg.EventLogger == nil {
		cfg.EventLogger = log.NoopLogger{}
	}

	d := &Dispatcher{
		registry: reg,
		drivers:  drivers,
		state:    st,
		timers:   timers,
		config:   cfg,
		locks:    make(map[string]*outputLock),
		now:      time.Now,
	}
	timers.OnExpiry(d.expire)
	return d
}

// Execute runs a command and returns once the driver call has completed.
//
// A command for an output that is busy waits behind earlier commands in
// submission order. Once its driver call has started it runs to completion
// (or the driver timeout); cancelling ctx does not abort it.
func (d *Dispatcher) Execute(ctx context.Context, cmd output.Command) (Ack, error) {
	o, err := d.registry.Get(cmd.OutputID)
	if err != nil {
		return Ack{}, err
	}

	src := log.SourceFrom(ctx)
	if err := cmd.Validate(o.Type); err != nil {
		d.emitCommand(o, src, cmd, log.ResultRejected, 0, 0)
		return Ack{}, err
	}

	queued := d.now()
	l := d.lockFor(cmd.OutputID)
	l.acquire()
	defer l.release()
	wait := d.now().Sub(queued)
	d.config.Metrics.ObserveQueueWait(wait)

	// The output may have been deleted or reconfigured while queued.
	o, err = d.registry.Get(cmd.OutputID)
	if err != nil {
		if errors.Is(err, output.ErrNotFound) {
			d.dropLock(cmd.OutputID, l)
		}
		return Ack{}, err
	}

	ctx = context.WithoutCancel(ctx)
	if cmd.Action == output.ActionOff {
		l.epoch++
		d.cancelTimer(o.UniqueID)
		return d.deactivate(ctx, o, cmd, src, wait)
	}

	// Rejections leave any running timer and the epoch untouched.
	act, next, err := d.plan(o, cmd.Qualifier)
	if err != nil {
		d.emitCommand(o, src, cmd, log.ResultRejected, 0, wait)
		return Ack{}, err
	}

	l.epoch++
	d.cancelTimer(o.UniqueID)
	return d.activate(ctx, o, cmd, src, act, next, l.epoch, wait)
}

func (d *Dispatcher) cancelTimer(outputID string) {
	if err := d.timers.CancelTimer(outputID); err == nil {
		d.debugLog("timer cancelled", "unique_id", outputID)
	}
}

// activate switches o on. Caller must hold o's lock; epoch is the lock's
// epoch for this command.
func (d *Dispatcher) activate(ctx context.Context, o output.Output, cmd output.Command, src log.Source, act driver.Activation, next output.Status, epoch uint64, wait time.Duration) (Ack, error) {
	drv, err := d.drivers.Get(o.Type)
	if err != nil {
		return Ack{}, d.fail(o, src, cmd, "activate", err, 0, wait)
	}

	dctx, cancel := context.WithTimeout(ctx, d.config.DriverTimeout)
	defer cancel()

	start := d.now()
	err = drv.Activate(dctx, o, act)
	took := d.now().Sub(start)
	if err != nil {
		return Ack{}, d.fail(o, src, cmd, "activate", err, took, wait)
	}

	if next.Kind == output.StatusOnTimed {
		next = output.OnTimed(next.Seconds, d.now())
	}
	prev, ok := d.state.Record(o.UniqueID, next)
	d.emitCommand(o, src, cmd, log.ResultAck, took, wait)
	if !ok {
		// Deleted during the driver call; nothing left to time.
		return Ack{OutputID: o.UniqueID, Status: next}, nil
	}
	d.emitState(o, src, prev, next, "")

	if next.Kind == output.StatusOnTimed {
		if err := d.timers.SetTimer(o.UniqueID, act.Duration, epoch); err != nil {
			return Ack{}, d.abortTimed(ctx, o, src, err)
		}
	}

	d.debugLog("output activated", "unique_id", o.UniqueID, "status", next)
	return Ack{OutputID: o.UniqueID, Status: next}, nil
}

// abortTimed switches o back off after its timer could not be armed, so a
// timed run never outlives its Ack.
func (d *Dispatcher) abortTimed(ctx context.Context, o output.Output, src log.Source, cause error) error {
	if d.config.Logger != nil {
		d.config.Logger.Warn("arm timer failed, switching off", "unique_id", o.UniqueID, "error", cause)
	}
	armErr := fmt.Errorf("%w: arm timer for %s: %v", output.ErrInvalidQualifier, o.UniqueID, cause)

	cmd := output.Command{OutputID: o.UniqueID, Action: output.ActionOff}
	if _, err := d.deactivate(ctx, o, cmd, src, 0); err != nil {
		return errors.Join(armErr, err)
	}
	return armErr
}

// plan translates a qualifier into driver parameters and the status that a
// successful activation produces.
func (d *Dispatcher) plan(o output.Output, q output.Qualifier) (driver.Activation, output.Status, error) {
	switch q.Kind {
	case output.QualifierNone:
		if o.Type.Family() == output.FamilyPWM {
			return driver.Activation{DutyCycle: 100}, output.OnDutyCycle(100), nil
		}
		return driver.Activation{}, output.On(), nil

	case output.QualifierDuration:
		if q.Value == 0 {
			return driver.Activation{}, output.On(), nil
		}
		run, err := timedRun(o, q.Value)
		if err != nil {
			return driver.Activation{}, output.Status{}, err
		}
		return driver.Activation{Duration: run},
			output.Status{Kind: output.StatusOnTimed, Seconds: q.Value}, nil

	case output.QualifierDutyCycle:
		return driver.Activation{DutyCycle: q.Value}, output.OnDutyCycle(q.Value), nil

	case output.QualifierVolume:
		flow := o.Settings.FlowRateMlMin
		if flow <= 0 {
			return driver.Activation{}, output.Status{}, fmt.Errorf(
				"%w: pump %s has no flow rate calibration", output.ErrInvalidQualifier, o.UniqueID)
		}
		sec := q.Value / flow * 60
		run, err := timedRun(o, sec)
		if err != nil {
			return driver.Activation{}, output.Status{}, err
		}
		return driver.Activation{VolumeMl: q.Value, Duration: run},
			output.Status{Kind: output.StatusOnTimed, Seconds: sec}, nil

	default:
		return driver.Activation{}, output.Status{}, fmt.Errorf(
			"%w: unknown qualifier kind %d", output.ErrInvalidQualifier, q.Kind)
	}
}

// deactivate switches o off. Caller must hold o's lock.
func (d *Dispatcher) deactivate(ctx context.Context, o output.Output, cmd output.Command, src log.Source, wait time.Duration) (Ack, error) {
	if e, ok := d.state.Get(o.UniqueID); ok && e.Status.Kind == output.StatusOff {
		d.emitCommand(o, src, cmd, log.ResultAck, 0, wait)
		return Ack{OutputID: o.UniqueID, Status: e.Status}, nil
	}

	drv, err := d.drivers.Get(o.Type)
	if err != nil {
		return Ack{}, d.fail(o, src, cmd, "deactivate", err, 0, wait)
	}

	dctx, cancel := context.WithTimeout(ctx, d.config.DriverTimeout)
	defer cancel()

	start := d.now()
	err = drv.Deactivate(dctx, o)
	took := d.now().Sub(start)
	if err != nil {
		return Ack{}, d.fail(o, src, cmd, "deactivate", err, took, wait)
	}

	next := output.Off()
	prev, ok := d.state.Record(o.UniqueID, next)
	d.emitCommand(o, src, cmd, log.ResultAck, took, wait)
	if ok {
		reason := ""
		if src == log.SourceTimer {
			reason = "timer expired"
		}
		d.emitState(o, src, prev, next, reason)
	}

	d.debugLog("output deactivated", "unique_id", o.UniqueID)
	return Ack{OutputID: o.UniqueID, Status: next}, nil
}

// fail marks the output unreachable and returns the driver failure.
func (d *Dispatcher) fail(o output.Output, src log.Source, cmd output.Command, op string, cause error, took, wait time.Duration) error {
	prev, ok := d.state.Record(o.UniqueID, output.Unreachable())
	timeout := errors.Is(cause, context.DeadlineExceeded)

	d.emitCommand(o, src, cmd, log.ResultFailed, took, wait)
	d.config.EventLogger.Log(log.Event{
		Timestamp:  d.now(),
		OutputID:   o.UniqueID,
		OutputType: string(o.Type),
		Source:     src,
		Category:   log.CategoryError,
		Error:      &log.ErrorEventData{Message: cause.Error(), Context: op, Timeout: timeout},
	})
	if ok {
		d.emitState(o, src, prev, output.Unreachable(), op+" failed")
	}

	if d.config.Logger != nil {
		d.config.Logger.Warn("driver call failed",
			"unique_id", o.UniqueID, "type", o.Type, "op", op, "timeout", timeout, "error", cause)
	}
	return fmt.Errorf("%w: %s %s: %v", output.ErrDriverFailure, op, o.UniqueID, cause)
}

// expire is the timer callback. It switches the output off unless another
// command ran after the timer was armed.
func (d *Dispatcher) expire(outputID string, value any) {
	armed, _ := value.(uint64)

	d.mu.Lock()
	l, ok := d.locks[outputID]
	d.mu.Unlock()
	if !ok {
		return
	}

	l.acquire()
	defer l.release()

	if l.epoch != armed {
		d.config.Metrics.TimerFired(true)
		d.debugLog("timer superseded", "unique_id", outputID, "armed", armed, "epoch", l.epoch)
		return
	}
	d.config.Metrics.TimerFired(false)

	o, err := d.registry.Get(outputID)
	if err != nil {
		return
	}

	l.epoch++
	cmd := output.Command{OutputID: outputID, Action: output.ActionOff}
	if _, err := d.deactivate(context.Background(), o, cmd, log.SourceTimer, 0); err != nil {
		d.debugLog("automatic off failed", "unique_id", outputID, "error", err)
	}
}

// Forget drops the per-output lock and any timer. Commands already queued
// for the output find it gone from the registry and fail with NotFound.
// It never waits for an in-flight command.
func (d *Dispatcher) Forget(outputID string) {
	_ = d.timers.CancelTimer(outputID)

	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.locks, outputID)
}

// Pending returns the number of commands running or queued for an output.
func (d *Dispatcher) Pending(outputID string) int {
	d.mu.Lock()
	l, ok := d.locks[outputID]
	d.mu.Unlock()
	if !ok {
		return 0
	}
	return l.waiting()
}

// dropLock removes l for an output that no longer exists. Commands still
// queued on l hold their own reference and fail with NotFound in turn.
func (d *Dispatcher) dropLock(outputID string, l *outputLock) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.locks[outputID] == l {
		delete(d.locks, outputID)
	}
}

func (d *Dispatcher) lockFor(outputID string) *outputLock {
	d.mu.Lock()
	defer d.mu.Unlock()

	l, ok := d.locks[outputID]
	if !ok {
		l = newOutputLock()
		d.locks[outputID] = l
	}
	return l
}

func (d *Dispatcher) emitCommand(o output.Output, src log.Source, cmd output.Command, result log.Result, took, wait time.Duration) {
	d.config.Metrics.ObserveCommand(string(o.Type), cmd.Action.String(), result.String(), took)
	d.config.EventLogger.Log(log.Event{
		Timestamp:  d.now(),
		OutputID:   o.UniqueID,
		OutputType: string(o.Type),
		Source:     src,
		Category:   log.CategoryCommand,
		Command: &log.CommandEvent{
			Action:     cmd.Action.String(),
			Qualifier:  cmd.Qualifier.Kind.String(),
			Amount:     cmd.Qualifier.Value,
			Result:     result,
			DriverTime: took,
			QueueTime:  wait,
		},
	})
}

func (d *Dispatcher) emitState(o output.Output, src log.Source, prev, next output.Status, reason string) {
	if prev.Kind == next.Kind && prev.Percent == next.Percent && prev.Seconds == next.Seconds {
		return
	}
	d.config.EventLogger.Log(log.Event{
		Timestamp:  d.now(),
		OutputID:   o.UniqueID,
		OutputType: string(o.Type),
		Source:     src,
		Category:   log.CategoryState,
		StateChange: &log.StateChangeEvent{
			OldState: prev.String(),
			NewState: next.String(),
			Reason:   reason,
		},
	})
}

func (d *Dispatcher) debugLog(msg string, args ...any) {
	if d.config.Logger != nil {
		d.config.Logger.Debug(msg, args...)
	}
}

// timedRun converts the run time of a timed activation. A run the timer
// cannot honor is rejected before the driver is touched.
func timedRun(o output.Output, sec float64) (time.Duration, error) {
	run, err := duration.FromSeconds(sec)
	if err != nil {
		return 0, fmt.Errorf("%w: %s: %v", output.ErrInvalidQualifier, o.UniqueID, err)
	}
	return run, nil
}
