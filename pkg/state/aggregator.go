// Package state tracks the observed status of every output and serves
// snapshots to polling clients without touching any driver.
package state

import (
	"errors"
	"sync"
	"time"

	"github.com/mycodo-go/mycodo-go/pkg/output"
)

// ErrSourceUnavailable is returned by Snapshot when the subsystem is down.
// It is distinct from an empty snapshot so callers can render every output
// as unreachable instead of inferring it from absence.
var ErrSourceUnavailable = errors.New("state source unavailable")

// Entry is the cached state of one output.
type Entry struct {
	Status output.Status

	// LastUpdated is the time of the last successful driver interaction.
	// Zero if the output has never been reached.
	LastUpdated time.Time
}

// Token returns the poll token for the entry.
func (e Entry) Token() string {
	return e.Status.Token()
}

// Aggregator owns the state table. It is the only writer of OutputState;
// the dispatcher and timer expiry call Record while holding the output's
// execution lock, so writes for one output are already serialized.
type Aggregator struct {
	mu        sync.RWMutex
	entries   map[string]Entry
	available bool

	now func() time.Time
}

// NewAggregator creates an empty, available aggregator.
func NewAggregator() *Aggregator {
	return &Aggregator{
		entries:   make(map[string]Entry),
		available: true,
		now:       time.Now,
	}
}

// Register adds an output in the unreachable state. Registering an output
// that already has an entry leaves it unchanged.
func (a *Aggregator) Register(outputID string) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if _, ok := a.entries[outputID]; !ok {
		a.entries[outputID] = Entry{Status: output.Unreachable()}
	}
}

// Remove destroys an output's state.
func (a *Aggregator) Remove(outputID string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	delete(a.entries, outputID)
}

// Record overwrites the output's status. Unreachable keeps the previous
// LastUpdated; any other status marks a successful interaction now.
// Returns the previous status, or false if the output is not registered
// (for example because it was deleted while a command was in flight).
func (a *Aggregator) Record(outputID string, status output.Status) (output.Status, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()

	prev, ok := a.entries[outputID]
	if !ok {
		return output.Status{}, false
	}
	next := Entry{Status: status, LastUpdated: prev.LastUpdated}
	if status.Kind != output.StatusUnreachable {
		next.LastUpdated = a.now()
	}
	a.entries[outputID] = next
	return prev.Status, true
}

// Get returns one output's entry.
func (a *Aggregator) Get(outputID string) (Entry, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()

	e, ok := a.entries[outputID]
	return e, ok
}

// Snapshot returns a copy of every entry. Timed-on entries carry the
// remaining seconds in Status.Seconds.
func (a *Aggregator) Snapshot() (map[string]Entry, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()

	if !a.available {
		return nil, ErrSourceUnavailable
	}

	now := a.now()
	result := make(map[string]Entry, len(a.entries))
	for id, e := range a.entries {
		if e.Status.Kind == output.StatusOnTimed {
			e.Status.Seconds = e.Status.Remaining(now)
		}
		result[id] = e
	}
	return result, nil
}

// Tokens returns the poll tokens for every output. Unreachable outputs are
// omitted, matching the poll contract where absence means no data.
func (a *Aggregator) Tokens() (map[string]string, error) {
	snap, err := a.Snapshot()
	if err != nil {
		return nil, err
	}

	result := make(map[string]string, len(snap))
	for id, e := range snap {
		if tok := e.Token(); tok != "" {
			result[id] = tok
		}
	}
	return result, nil
}

// SetAvailable marks the source up or down.
func (a *Aggregator) SetAvailable(available bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.available = available
}

// Available reports whether the source is up.
func (a *Aggregator) Available() bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.available
}

// Count returns the number of tracked outputs.
func (a *Aggregator) Count() int {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return len(a.entries)
}

// Counts returns the number of outputs per status name.
func (a *Aggregator) Counts() map[string]int {
	a.mu.RLock()
	defer a.mu.RUnlock()

	result := make(map[string]int)
	for _, e := range a.entries {
		result[e.Status.Kind.String()]++
	}
	return result
}
