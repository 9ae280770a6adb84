package log

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"
)

func createTestLogFile(t *testing.T, events []Event) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.olog")

	logger, err := NewFileLogger(path)
	if err != nil {
		t.Fatalf("NewFileLogger failed: %v", err)
	}
	for _, e := range events {
		logger.Log(e)
	}
	if err := logger.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	return path
}

func readAll(t *testing.T, path string, filter Filter) []Event {
	t.Helper()
	reader, err := NewFilteredReader(path, filter)
	if err != nil {
		t.Fatalf("NewFilteredReader failed: %v", err)
	}
	defer reader.Close()

	var events []Event
	for {
		event, err := reader.Next()
		if err == io.EOF {
			return events
		}
		if err != nil {
			t.Fatalf("Next failed: %v", err)
		}
		events = append(events, event)
	}
}

func TestFileLoggerRoundTrip(t *testing.T) {
	ts := time.Date(2024, 3, 1, 8, 30, 0, 123456789, time.UTC)
	path := createTestLogFile(t, []Event{
		{
			Timestamp:  ts,
			OutputID:   "pump-1",
			OutputType: "peristaltic_pump",
			Source:     SourceAPI,
			Category:   CategoryCommand,
			Command: &CommandEvent{
				Action:     "on",
				Qualifier:  "volume",
				Amount:     25,
				Result:     ResultAck,
				DriverTime: 15 * time.Millisecond,
			},
		},
		{
			Timestamp: ts.Add(time.Second),
			OutputID:  "pump-1",
			Source:    SourceTimer,
			Category:  CategoryState,
			StateChange: &StateChangeEvent{
				OldState: "ON_TIMED(150s)",
				NewState: "OFF",
				Reason:   "timer expired",
			},
		},
	})

	events := readAll(t, path, Filter{})
	if len(events) != 2 {
		t.Fatalf("got %d events, want 2", len(events))
	}

	cmd := events[0]
	if !cmd.Timestamp.Equal(ts) {
		t.Errorf("Timestamp: got %v, want %v", cmd.Timestamp, ts)
	}
	if cmd.Command == nil || cmd.Command.Amount != 25 || cmd.Command.DriverTime != 15*time.Millisecond {
		t.Errorf("Command: got %+v", cmd.Command)
	}
	if events[1].StateChange == nil || events[1].StateChange.NewState != "OFF" {
		t.Errorf("StateChange: got %+v", events[1].StateChange)
	}
	if events[1].Command != nil {
		t.Error("state event should not carry a command payload")
	}
}

func TestFileLoggerAppends(t *testing.T) {
	path := createTestLogFile(t, []Event{{OutputID: "a"}})

	logger, err := NewFileLogger(path)
	if err != nil {
		t.Fatalf("NewFileLogger failed: %v", err)
	}
	logger.Log(Event{OutputID: "b"})
	logger.Close()

	events := readAll(t, path, Filter{})
	if len(events) != 2 || events[0].OutputID != "a" || events[1].OutputID != "b" {
		t.Errorf("got %+v, want a then b", events)
	}
}

func TestFileLoggerConcurrentWrites(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.olog")
	logger, err := NewFileLogger(path)
	if err != nil {
		t.Fatalf("NewFileLogger failed: %v", err)
	}

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 20; j++ {
				logger.Log(Event{OutputID: "out", Category: CategoryCommand, Command: &CommandEvent{Action: "on"}})
			}
		}()
	}
	wg.Wait()
	logger.Close()

	if got := len(readAll(t, path, Filter{})); got != 200 {
		t.Errorf("got %d events, want 200", got)
	}
	if logger.Dropped() != 0 {
		t.Errorf("Dropped() = %d, want 0", logger.Dropped())
	}
}

func TestFileLoggerCloseTwice(t *testing.T) {
	logger, err := NewFileLogger(filepath.Join(t.TempDir(), "test.olog"))
	if err != nil {
		t.Fatalf("NewFileLogger failed: %v", err)
	}
	if err := logger.Close(); err != nil {
		t.Fatalf("first Close failed: %v", err)
	}
	if err := logger.Close(); err != nil {
		t.Errorf("second Close failed: %v", err)
	}
	logger.Log(Event{OutputID: "ignored"})
}

func TestReaderFilter(t *testing.T) {
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	timer := SourceTimer
	state := CategoryState

	path := createTestLogFile(t, []Event{
		{Timestamp: base, OutputID: "a", OutputType: "wired", Source: SourceAPI, Category: CategoryCommand},
		{Timestamp: base.Add(time.Minute), OutputID: "a", OutputType: "wired", Source: SourceTimer, Category: CategoryState},
		{Timestamp: base.Add(2 * time.Minute), OutputID: "b", OutputType: "pwm", Source: SourceAPI, Category: CategoryState},
	})

	start := base.Add(30 * time.Second)
	end := base.Add(2 * time.Minute)

	tests := []struct {
		name   string
		filter Filter
		want   int
	}{
		{"All", Filter{}, 3},
		{"OutputID", Filter{OutputID: "a"}, 2},
		{"OutputType", Filter{OutputType: "pwm"}, 1},
		{"Source", Filter{Source: &timer}, 1},
		{"Category", Filter{Category: &state}, 2},
		{"TimeRange", Filter{TimeStart: &start, TimeEnd: &end}, 1},
		{"Combined", Filter{OutputID: "b", Source: &timer}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := len(readAll(t, path, tt.filter)); got != tt.want {
				t.Errorf("got %d events, want %d", got, tt.want)
			}
		})
	}
}

func TestReaderTruncatedTail(t *testing.T) {
	path := createTestLogFile(t, []Event{{OutputID: "complete"}})

	partial, err := EncodeEvent(Event{OutputID: "partial", Command: &CommandEvent{Action: "off"}})
	if err != nil {
		t.Fatalf("EncodeEvent failed: %v", err)
	}
	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0)
	if err != nil {
		t.Fatalf("open failed: %v", err)
	}
	f.Write(partial[:len(partial)/2])
	f.Close()

	events := readAll(t, path, Filter{})
	if len(events) != 1 || events[0].OutputID != "complete" {
		t.Errorf("got %+v, want only the complete event", events)
	}
}

func TestSlogAdapterLogsCommand(t *testing.T) {
	var buf bytes.Buffer
	adapter := NewSlogAdapter(slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})))

	adapter.Log(Event{
		OutputID: "fan",
		Source:   SourceConsole,
		Category: CategoryCommand,
		Command:  &CommandEvent{Action: "on", Qualifier: "duty_cycle", Amount: 40, Result: ResultAck},
	})

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("failed to parse log output: %v", err)
	}

	want := map[string]any{
		"output_id": "fan",
		"source":    "CONSOLE",
		"category":  "COMMAND",
		"action":    "on",
		"result":    "ACK",
		"qualifier": "duty_cycle",
		"amount":    40.0,
	}
	for k, v := range want {
		if entry[k] != v {
			t.Errorf("%s: got %v, want %v", k, entry[k], v)
		}
	}
}

func TestSlogAdapterLogsError(t *testing.T) {
	var buf bytes.Buffer
	adapter := NewSlogAdapter(slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})))

	adapter.Log(Event{
		OutputID: "heater",
		Category: CategoryError,
		Error:    &ErrorEventData{Message: "exit status 1", Context: "activate", Timeout: true},
	})

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("failed to parse log output: %v", err)
	}
	if entry["error_msg"] != "exit status 1" || entry["timeout"] != true {
		t.Errorf("got %v", entry)
	}
}

type recordingLogger struct {
	mu     sync.Mutex
	events []Event
}

func (r *recordingLogger) Log(e Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func TestMultiLogger(t *testing.T) {
	a, b := &recordingLogger{}, &recordingLogger{}
	m := NewMultiLogger(a, nil, b)

	m.Log(Event{OutputID: "x"})

	if len(a.events) != 1 || len(b.events) != 1 {
		t.Errorf("got %d and %d events, want 1 each", len(a.events), len(b.events))
	}
}

func TestSourceContext(t *testing.T) {
	ctx := context.Background()
	if got := SourceFrom(ctx); got != SourceAPI {
		t.Errorf("default source: got %s, want API", got)
	}
	if got := SourceFrom(WithSource(ctx, SourceConsole)); got != SourceConsole {
		t.Errorf("got %s, want CONSOLE", got)
	}
}

func TestEnumStrings(t *testing.T) {
	tests := []struct {
		got, want string
	}{
		{SourceTimer.String(), "TIMER"},
		{Source(99).String(), "UNKNOWN"},
		{CategoryError.String(), "ERROR"},
		{ResultSuperseded.String(), "SUPERSEDED"},
		{Result(99).String(), "UNKNOWN"},
	}
	for _, tt := range tests {
		if tt.got != tt.want {
			t.Errorf("got %q, want %q", tt.got, tt.want)
		}
	}
}
