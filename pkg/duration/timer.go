package duration

import (
	"errors"
	"fmt"
	"math"
	"sync"
	"time"
)

const (
	// MinDuration is the shortest timed-on a timer can honor.
	MinDuration = time.Millisecond

	// MaxDuration is the longest timed-on (7 days).
	MaxDuration = 7 * 24 * time.Hour
)

// Duration timer errors.
var (
	ErrTimerNotFound   = errors.New("timer not found")
	ErrInvalidDuration = errors.New("invalid duration")
)

// FromSeconds converts a positive number of seconds to a timer duration.
// Values that fall outside MinDuration..MaxDuration are rejected instead of
// being truncated or overflowing.
func FromSeconds(sec float64) (time.Duration, error) {
	if math.IsNaN(sec) || sec < MinDuration.Seconds() || sec > MaxDuration.Seconds() {
		return 0, fmt.Errorf("%w: %gs outside %s..%s", ErrInvalidDuration, sec, MinDuration, MaxDuration)
	}
	return time.Duration(math.Round(sec * float64(time.Second))), nil
}

// Timer represents an active timed-on timer.
type Timer struct {
	// OutputID identifies the output this timer turns off.
	OutputID string

	// StartTime is when the timer started.
	StartTime time.Time

	// Duration is the timer duration.
	Duration time.Duration

	// Value is handed back to the expiry callback.
	Value any

	// timer is the Go timer for automatic expiry
	timer *time.Timer
}

// ExpiresAt returns when the timer will expire.
func (t *Timer) ExpiresAt() time.Time {
	return t.StartTime.Add(t.Duration)
}

// RemainingTime returns time until expiry.
func (t *Timer) RemainingTime() time.Duration {
	remaining := t.Duration - time.Since(t.StartTime)
	if remaining < 0 {
		return 0
	}
	return remaining
}

// IsExpired returns true if the timer has expired.
func (t *Timer) IsExpired() bool {
	return time.Since(t.StartTime) >= t.Duration
}

// Manager manages timed-on timers, one per output.
type Manager struct {
	mu sync.RWMutex

	// Active timers by output ID
	timers map[string]*Timer

	// Callback when timer expires
	onExpiry func(outputID string, value any)
}

// NewManager creates a new timer manager.
func NewManager() *Manager {
	return &Manager{
		timers: make(map[string]*Timer),
	}
}

// SetTimer creates or replaces the timer for an output.
// The timer starts immediately (on receipt of this call).
func (m *Manager) SetTimer(outputID string, duration time.Duration, value any) error {
	if duration < MinDuration || duration > MaxDuration {
		return fmt.Errorf("%w: %s outside %s..%s", ErrInvalidDuration, duration, MinDuration, MaxDuration)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	// Cancel existing timer if any
	if existing, exists := m.timers[outputID]; exists {
		if existing.timer != nil {
			existing.timer.Stop()
		}
	}

	timer := &Timer{
		OutputID:  outputID,
		StartTime: time.Now(),
		Duration:  duration,
		Value:     value,
	}
	timer.timer = time.AfterFunc(duration, func() {
		m.expireTimer(outputID, timer)
	})

	m.timers[outputID] = timer
	return nil
}

// CancelTimer cancels a timer without triggering the expiry callback.
func (m *Manager) CancelTimer(outputID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	timer, exists := m.timers[outputID]
	if !exists {
		return ErrTimerNotFound
	}

	if timer.timer != nil {
		timer.timer.Stop()
	}
	delete(m.timers, outputID)
	return nil
}

// CancelAll cancels every pending timer (e.g., on shutdown).
func (m *Manager) CancelAll() {
	m.mu.Lock()
	defer m.mu.Unlock()

	for id, timer := range m.timers {
		if timer.timer != nil {
			timer.timer.Stop()
		}
		delete(m.timers, id)
	}
}

// GetTimer returns timer info for an output, or nil if none is pending.
func (m *Manager) GetTimer(outputID string) *Timer {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if timer, exists := m.timers[outputID]; exists {
		// Return a copy to avoid race conditions
		return &Timer{
			OutputID:  timer.OutputID,
			StartTime: timer.StartTime,
			Duration:  timer.Duration,
			Value:     timer.Value,
		}
	}
	return nil
}

// Count returns the total number of active timers.
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.timers)
}

// Pending returns the IDs of outputs with a pending timer.
func (m *Manager) Pending() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	ids := make([]string, 0, len(m.timers))
	for id := range m.timers {
		ids = append(ids, id)
	}
	return ids
}

// OnExpiry sets the callback for timer expiry.
// The callback receives the output ID and the value passed to SetTimer.
func (m *Manager) OnExpiry(fn func(outputID string, value any)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onExpiry = fn
}

// expireTimer handles timer expiry. A timer that was replaced or cancelled
// after its Go timer already fired is no longer in the map and is dropped.
func (m *Manager) expireTimer(outputID string, fired *Timer) {
	m.mu.Lock()

	timer, exists := m.timers[outputID]
	if !exists || timer != fired {
		m.mu.Unlock()
		return
	}

	value := timer.Value
	delete(m.timers, outputID)

	callback := m.onExpiry

	m.mu.Unlock()

	// Call callback outside lock
	if callback != nil {
		callback(outputID, value)
	}
}
