package duration

import (
	"errors"
	"math"
	"sync"
	"testing"
	"time"
)

func TestTimerBasic(t *testing.T) {
	timer := &Timer{
		OutputID:  "out-1",
		StartTime: time.Now(),
		Duration:  60 * time.Second,
		Value:     uint64(7),
	}

	if timer.IsExpired() {
		t.Error("Timer should not be expired immediately")
	}

	remaining := timer.RemainingTime()
	if remaining < 59*time.Second || remaining > 60*time.Second {
		t.Errorf("RemainingTime() = %v, expected ~60s", remaining)
	}

	expiresAt := timer.ExpiresAt()
	expectedExpiry := timer.StartTime.Add(timer.Duration)
	if expiresAt != expectedExpiry {
		t.Errorf("ExpiresAt() = %v, want %v", expiresAt, expectedExpiry)
	}
}

func TestTimerExpired(t *testing.T) {
	timer := &Timer{
		OutputID:  "out-1",
		StartTime: time.Now().Add(-2 * time.Second),
		Duration:  1 * time.Second,
	}

	if !timer.IsExpired() {
		t.Error("Timer should be expired")
	}

	if timer.RemainingTime() != 0 {
		t.Errorf("RemainingTime() = %v, want 0 for expired timer", timer.RemainingTime())
	}
}

func TestManagerSetTimer(t *testing.T) {
	m := NewManager()

	if err := m.SetTimer("out-1", 5*time.Second, uint64(1)); err != nil {
		t.Fatalf("SetTimer() error = %v", err)
	}

	if m.Count() != 1 {
		t.Errorf("Count() = %d, want 1", m.Count())
	}

	timer := m.GetTimer("out-1")
	if timer == nil {
		t.Fatal("GetTimer() returned nil")
	}
	if timer.Value != uint64(1) {
		t.Errorf("Timer value = %v, want 1", timer.Value)
	}
	if m.GetTimer("out-2") != nil {
		t.Error("GetTimer() for unknown output should be nil")
	}
}

func TestManagerInvalidDuration(t *testing.T) {
	m := NewManager()

	for _, d := range []time.Duration{0, -time.Second, time.Nanosecond, MaxDuration + time.Second} {
		if err := m.SetTimer("out-1", d, nil); !errors.Is(err, ErrInvalidDuration) {
			t.Errorf("SetTimer(%s) error = %v, want ErrInvalidDuration", d, err)
		}
	}
	if m.Count() != 0 {
		t.Errorf("Count() = %d, want 0", m.Count())
	}
}

func TestFromSeconds(t *testing.T) {
	tests := []struct {
		name    string
		sec     float64
		want    time.Duration
		wantErr bool
	}{
		{name: "Fraction", sec: 0.1, want: 100 * time.Millisecond},
		{name: "Minimum", sec: 0.001, want: MinDuration},
		{name: "Maximum", sec: MaxDuration.Seconds(), want: MaxDuration},
		{name: "SubNanosecond", sec: 1e-10, wantErr: true},
		{name: "BelowMinimum", sec: 0.0004, wantErr: true},
		{name: "Zero", sec: 0, wantErr: true},
		{name: "AboveMaximum", sec: MaxDuration.Seconds() + 1, wantErr: true},
		{name: "WouldOverflow", sec: 1e12, wantErr: true},
		{name: "NaN", sec: math.NaN(), wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := FromSeconds(tt.sec)
			if (err != nil) != tt.wantErr {
				t.Fatalf("FromSeconds(%g) error = %v, wantErr %v", tt.sec, err, tt.wantErr)
			}
			if err != nil {
				if !errors.Is(err, ErrInvalidDuration) {
					t.Errorf("FromSeconds(%g) error = %v, want ErrInvalidDuration", tt.sec, err)
				}
				return
			}
			if got != tt.want {
				t.Errorf("FromSeconds(%g) = %s, want %s", tt.sec, got, tt.want)
			}
		})
	}
}

func TestManagerTimerReplacement(t *testing.T) {
	m := NewManager()

	_ = m.SetTimer("out-1", 10*time.Second, uint64(1))
	_ = m.SetTimer("out-1", 20*time.Second, uint64(2))

	if m.Count() != 1 {
		t.Errorf("Count() = %d after replacement, want 1", m.Count())
	}

	timer := m.GetTimer("out-1")
	if timer == nil {
		t.Fatal("GetTimer() returned nil")
	}
	if timer.Value != uint64(2) {
		t.Errorf("Timer value = %v after replacement, want 2", timer.Value)
	}
	if timer.Duration != 20*time.Second {
		t.Errorf("Timer duration = %v after replacement, want 20s", timer.Duration)
	}
}

func TestManagerCancelTimer(t *testing.T) {
	m := NewManager()

	_ = m.SetTimer("out-1", 5*time.Second, nil)

	if err := m.CancelTimer("out-1"); err != nil {
		t.Fatalf("CancelTimer() error = %v", err)
	}
	if m.Count() != 0 {
		t.Errorf("Count() = %d after cancel, want 0", m.Count())
	}

	if err := m.CancelTimer("out-1"); err != ErrTimerNotFound {
		t.Errorf("CancelTimer non-existent error = %v, want ErrTimerNotFound", err)
	}
}

func TestManagerCancelAll(t *testing.T) {
	m := NewManager()

	_ = m.SetTimer("out-1", 5*time.Second, nil)
	_ = m.SetTimer("out-2", 5*time.Second, nil)
	_ = m.SetTimer("out-3", 5*time.Second, nil)

	m.CancelAll()

	if m.Count() != 0 {
		t.Errorf("Count() = %d after CancelAll, want 0", m.Count())
	}
}

func TestManagerTimerExpiry(t *testing.T) {
	m := NewManager()

	var mu sync.Mutex
	var expiredID string
	var expiredValue any
	done := make(chan struct{})

	m.OnExpiry(func(outputID string, value any) {
		mu.Lock()
		expiredID = outputID
		expiredValue = value
		mu.Unlock()
		close(done)
	})

	if err := m.SetTimer("out-1", 50*time.Millisecond, uint64(9)); err != nil {
		t.Fatalf("SetTimer() error = %v", err)
	}

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Expiry callback was not called")
	}

	mu.Lock()
	defer mu.Unlock()

	if expiredID != "out-1" {
		t.Errorf("Expired output = %q, want out-1", expiredID)
	}
	if expiredValue != uint64(9) {
		t.Errorf("Expired value = %v, want 9", expiredValue)
	}
	if m.Count() != 0 {
		t.Errorf("Count() = %d after expiry, want 0", m.Count())
	}
}

func TestManagerOutputsIndependent(t *testing.T) {
	m := NewManager()

	var mu sync.Mutex
	var expirations []string

	m.OnExpiry(func(outputID string, value any) {
		mu.Lock()
		expirations = append(expirations, outputID)
		mu.Unlock()
	})

	_ = m.SetTimer("out-1", 50*time.Millisecond, nil)
	_ = m.SetTimer("out-2", 150*time.Millisecond, nil)

	time.Sleep(100 * time.Millisecond)

	mu.Lock()
	if len(expirations) != 1 || expirations[0] != "out-1" {
		t.Errorf("After 100ms: expected only out-1 expired, got %v", expirations)
	}
	mu.Unlock()

	time.Sleep(150 * time.Millisecond)

	mu.Lock()
	if len(expirations) != 2 {
		t.Errorf("After 250ms: expected 2 expirations, got %d", len(expirations))
	}
	mu.Unlock()
}

func TestTimerReplacementCancelsCallback(t *testing.T) {
	m := NewManager()

	var mu sync.Mutex
	var values []any

	m.OnExpiry(func(outputID string, value any) {
		mu.Lock()
		values = append(values, value)
		mu.Unlock()
	})

	_ = m.SetTimer("out-1", 50*time.Millisecond, "first")
	_ = m.SetTimer("out-1", 150*time.Millisecond, "second")

	time.Sleep(250 * time.Millisecond)

	mu.Lock()
	defer mu.Unlock()

	if len(values) != 1 || values[0] != "second" {
		t.Errorf("expirations = %v, want only the replacement", values)
	}
}

func TestStaleExpiryIgnored(t *testing.T) {
	m := NewManager()

	called := false
	m.OnExpiry(func(outputID string, value any) {
		called = true
	})

	_ = m.SetTimer("out-1", time.Hour, "current")
	stale := &Timer{OutputID: "out-1"}

	// An expiry for a timer that is no longer registered must not fire or
	// remove the current timer.
	m.expireTimer("out-1", stale)

	if called {
		t.Error("stale expiry invoked the callback")
	}
	if m.GetTimer("out-1") == nil {
		t.Error("stale expiry removed the current timer")
	}
	m.CancelAll()
}
